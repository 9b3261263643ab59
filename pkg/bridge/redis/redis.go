// Package redis publishes bridge messages to Redis (or Valkey).
//
// Every message is sent with PUBLISH on its topic and also stored under
// <KeyPrefix><topic> with a TTL, so dashboards can read the latest value
// without subscribing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Defaults.
const (
	DefaultKeyPrefix = "latest:"
	DefaultTTL       = 24 * time.Hour
)

// ErrNoAddr is returned when no server address is configured.
var ErrNoAddr = errors.New("redis: address is required")

// Config configures a Publisher.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix prefixes the latest-value keys. Defaults to DefaultKeyPrefix.
	KeyPrefix string

	// TTL of the latest-value keys. Defaults to DefaultTTL; negative
	// disables storing.
	TTL time.Duration
}

// Publisher publishes over Redis.
type Publisher struct {
	rdb       *goredis.Client
	keyPrefix string
	ttl       time.Duration
}

// Connect creates a client for cfg.Addr and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, ErrNoAddr
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return New(rdb, cfg), nil
}

// New wraps an existing client.
func New(rdb *goredis.Client, cfg Config) *Publisher {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return &Publisher{rdb: rdb, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

// Key returns the latest-value key for topic.
func (p *Publisher) Key(topic string) string {
	return p.keyPrefix + topic
}

// Publish sends payload on topic and stores it as the latest value.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Publish(ctx, topic, payload)
		if p.ttl > 0 {
			pipe.Set(ctx, p.Key(topic), payload, p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
