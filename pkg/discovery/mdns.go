package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func getInterfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising info, replacing a previous announcement.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *BridgeInfo) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	txt := EncodeTXT(info)
	if err := ValidateTXT(txt); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(txt),
		getInterfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register bridge service: %w", err)
	}
	a.server = server
	return nil
}

// Update replaces the TXT records of the running announcement.
func (a *MDNSAdvertiser) Update(info *BridgeInfo) error {
	txt := EncodeTXT(info)
	if err := ValidateTXT(txt); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(txt))
	return nil
}

// Stop withdraws the announcement. Stopping twice is not an error.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// Advertising reports whether an announcement is running.
func (a *MDNSAdvertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse searches for bridges until ctx is done. Services are aggregated by
// instance name: addresses seen on several interfaces are combined into one
// entry, which is emitted the first time it is seen.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *BridgeService, error) {
	out := make(chan *BridgeService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := getInterfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		aggregate(ctx, entries, removed, out)
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// aggregate turns zeroconf entries into BridgeServices.
func aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, out chan<- *BridgeService) {
	services := make(map[string]*BridgeService)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc := entryToService(entry)
			if svc == nil {
				continue
			}
			if existing, found := services[svc.Instance]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.Instance] = svc
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// entryToService converts a zeroconf entry; entries with invalid TXT records
// yield nil.
func entryToService(entry *zeroconf.ServiceEntry) *BridgeService {
	info, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	info.Instance = entry.Instance
	info.Port = uint16(entry.Port)

	return &BridgeService{
		BridgeInfo: *info,
		Host:       entry.HostName,
		Addresses:  entryAddresses(entry),
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the entry's addresses from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Browser    = (*MDNSBrowser)(nil)
)
