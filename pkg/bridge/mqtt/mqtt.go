// Package mqtt publishes bridge messages to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Defaults.
const (
	DefaultClientID       = "sensor-bridge"
	DefaultConnectTimeout = 10 * time.Second
	disconnectQuiesce     = 250
)

// ErrNoBroker is returned when no broker URL is configured.
var ErrNoBroker = errors.New("mqtt: broker is required")

// Config configures a Publisher.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker   string
	ClientID string
	Username string
	Password string

	QoS      byte
	Retained bool

	ConnectTimeout time.Duration
}

// Client is the part of paho.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes over MQTT.
type Publisher struct {
	client   Client
	qos      byte
	retained bool
}

// Connect dials the broker and returns a Publisher.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := paho.NewClient(opts)
	if err := wait(ctx, c.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, err)
	}
	return New(c, cfg), nil
}

// New wraps a connected client.
func New(c Client, cfg Config) *Publisher {
	return &Publisher{client: c, qos: cfg.QoS, retained: cfg.Retained}
}

// Publish sends payload to topic and waits for the broker to accept it.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := wait(ctx, p.client.Publish(topic, p.qos, p.retained, payload)); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
