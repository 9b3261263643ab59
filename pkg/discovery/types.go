package discovery

import (
	"context"
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the service type advertised by sensor bridges.
	ServiceType = "_sensorbridge._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default health endpoint port.
	DefaultPort = 8080
)

// TXT record keys.
const (
	TXTKeySensors = "sensors"
	TXTKeyPrefix  = "prefix"
	TXTKeyBroker  = "broker"
	TXTKeyVersion = "ver"
)

// BrowseTimeout is the default timeout for mDNS browsing.
const BrowseTimeout = 5 * time.Second

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordLen is the limit of a single key=value string.
	MaxTXTRecordLen = 255
)

// Errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotAdvertising      = errors.New("not advertising")
)

// BridgeInfo is what a bridge advertises.
type BridgeInfo struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Port of the health endpoint. Defaults to DefaultPort.
	Port uint16

	// Sensors are the exported sensor names.
	Sensors []string

	Prefix  string
	Broker  string
	Version string
}

// BridgeService is a bridge found by browsing.
type BridgeService struct {
	BridgeInfo

	Host      string
	Addresses []string
}

// AdvertiserConfig configures an advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface. Empty means
	// all interfaces.
	Interface string

	// TTL of the DNS records. Zero uses the library default.
	TTL time.Duration
}

// BrowserConfig configures a browser.
type BrowserConfig struct {
	Interface string
}

// Advertiser announces a bridge.
type Advertiser interface {
	// Advertise starts (or restarts) announcing info.
	Advertise(ctx context.Context, info *BridgeInfo) error

	// Update replaces the TXT records of the running announcement.
	Update(info *BridgeInfo) error

	// Stop withdraws the announcement.
	Stop() error
}

// Browser finds bridges.
type Browser interface {
	Browse(ctx context.Context) (<-chan *BridgeService, error)
}
