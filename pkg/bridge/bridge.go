// Package bridge exports sensor readings to a message broker.
//
// A Bridge streams a set of sensors from a client and publishes every event
// as a JSON document on <prefix>/<sensor-name>. Publishers for MQTT and
// Redis live in the mqtt and redis subpackages.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "sensors"

// DefaultPublishTimeout bounds one Publish call.
const DefaultPublishTimeout = 5 * time.Second

// Bridge errors.
var (
	ErrNoClient    = errors.New("bridge: client is required")
	ErrNoPublisher = errors.New("bridge: publisher is required")
	ErrNoSensors   = errors.New("bridge: no sensors to export")
)

// Publisher delivers a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// PublisherFunc adapts a function to Publisher. Close is a no-op.
type PublisherFunc func(ctx context.Context, topic string, payload []byte) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

// Close implements Publisher.
func (f PublisherFunc) Close() error { return nil }

// Message is the JSON document published for one event.
type Message struct {
	Sensor    string             `json:"sensor"`
	SensorID  int32              `json:"sensor_id"`
	Timestamp *time.Time         `json:"timestamp,omitempty"`
	Fields    map[string]float64 `json:"fields,omitempty"`
	Error     *ErrorBody         `json:"error,omitempty"`
}

// ErrorBody carries an error event's code and message.
type ErrorBody struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// NewMessage builds the message for ev.
func NewMessage(desc sensor.Descriptor, ev subscription.Event) Message {
	m := Message{Sensor: desc.Name, SensorID: int32(desc.ID)}
	if ev.Err != nil {
		m.Error = &ErrorBody{Code: int32(errcode.Of(ev.Err)), Message: errcode.MessageOf(ev.Err)}
		return m
	}
	if ev.Reading != nil {
		ts := ev.Reading.Timestamp.UTC()
		m.Timestamp = &ts
		m.Fields = ev.Reading.Fields
	}
	return m
}

// Topic returns the topic for a sensor.
func Topic(prefix string, desc sensor.Descriptor) string {
	if prefix == "" {
		return desc.Name
	}
	return prefix + "/" + desc.Name
}

// Config configures a Bridge.
type Config struct {
	Client    *client.Client
	Publisher Publisher

	// Sensors to export. Defaults to every sensor of the client's catalog
	// that needs no permission.
	Sensors []sensor.ID

	// Prefix is prepended to every topic. Defaults to DefaultPrefix.
	Prefix string

	// Interval is the sampling interval requested for every sensor.
	Interval *int64

	PublishTimeout time.Duration
	Logger         *slog.Logger
}

// Stats counts bridge activity.
type Stats struct {
	Published uint64
	Failed    uint64
	Errors    uint64
}

// Bridge publishes sensor events.
type Bridge struct {
	client  *client.Client
	pub     Publisher
	sensors []sensor.Descriptor
	prefix  string
	opts    *client.Options
	timeout time.Duration
	logger  *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
	errEvents atomic.Uint64
}

// New validates cfg and creates a Bridge. Unsupported sensors fail with 401.
func New(cfg Config) (*Bridge, error) {
	if cfg.Client == nil {
		return nil, ErrNoClient
	}
	if cfg.Publisher == nil {
		return nil, ErrNoPublisher
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var descs []sensor.Descriptor
	if len(cfg.Sensors) == 0 {
		for _, d := range cfg.Client.Sensors() {
			if d.Permission == "" {
				descs = append(descs, d)
			}
		}
	} else {
		for _, id := range cfg.Sensors {
			d, err := cfg.Client.Sensor(id)
			if err != nil {
				return nil, err
			}
			descs = append(descs, d)
		}
	}
	if len(descs) == 0 {
		return nil, ErrNoSensors
	}

	var opts *client.Options
	if cfg.Interval != nil {
		opts = client.WithInterval(*cfg.Interval)
	}
	return &Bridge{
		client:  cfg.Client,
		pub:     cfg.Publisher,
		sensors: descs,
		prefix:  cfg.Prefix,
		opts:    opts,
		timeout: cfg.PublishTimeout,
		logger:  cfg.Logger,
	}, nil
}

// Sensors returns the exported sensors.
func (b *Bridge) Sensors() []sensor.Descriptor {
	return append([]sensor.Descriptor(nil), b.sensors...)
}

// Prefix returns the topic prefix.
func (b *Bridge) Prefix() string {
	return b.prefix
}

// Stats returns the activity counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Failed:    b.failed.Load(),
		Errors:    b.errEvents.Load(),
	}
}

// Run streams every sensor and publishes until ctx is cancelled. Subscription
// failures are returned immediately; publish failures are logged and counted.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streams := make([]<-chan subscription.Event, len(b.sensors))
	for i, d := range b.sensors {
		ch, err := b.client.Stream(ctx, d.ID, b.opts)
		if err != nil {
			return fmt.Errorf("stream %s: %w", d.Name, err)
		}
		streams[i] = ch
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range b.sensors {
		ch, d := streams[i], d
		g.Go(func() error {
			b.pump(gctx, d, ch)
			return nil
		})
	}
	b.logger.Info("bridge running", "sensors", len(b.sensors), "prefix", b.prefix)
	return g.Wait()
}

func (b *Bridge) pump(ctx context.Context, desc sensor.Descriptor, ch <-chan subscription.Event) {
	topic := Topic(b.prefix, desc)
	for ev := range ch {
		if ev.Err != nil {
			b.errEvents.Add(1)
			b.logger.Warn("sensor error", "sensor", desc.Name, "error", ev.Err)
		}
		payload, err := json.Marshal(NewMessage(desc, ev))
		if err != nil {
			b.failed.Add(1)
			b.logger.Error("encode message", "sensor", desc.Name, "error", err)
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, b.timeout)
		err = b.pub.Publish(pctx, topic, payload)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.failed.Add(1)
			b.logger.Warn("publish failed", "topic", topic, "error", err)
			continue
		}
		b.published.Add(1)
		b.logger.Debug("published", "topic", topic, "bytes", len(payload))
	}
}
