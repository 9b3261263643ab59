// Package client implements the sensor API: on, once, off and
// getSingleSensor, plus descriptor queries, push streams and lifecycle
// control.
//
// Every call validates synchronously in a fixed order: the sensor must be
// supported (401), the callback must be invocable (401), and the caller must
// hold the sensor's permission (201). The requested interval is not checked
// here; an interval the driver refuses is reported later through the
// callback as an error event with code 14500101.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/sensorkit/sensorkit-go/pkg/dispatch"
	"github.com/sensorkit/sensorkit-go/pkg/driver"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// Client errors.
var (
	ErrNoDriver = errors.New("client: driver is required")
	ErrClosed   = errors.New("client: closed")
)

// API operation names, used in errors and captured events.
const (
	OpOn              = "on"
	OpOnce            = "once"
	OpOff             = "off"
	OpGetSingleSensor = "getSingleSensor"
	OpOnActiveInfo    = "onActiveInfo"
	OpOffActiveInfo   = "offActiveInfo"
)

// Config configures a Client.
type Config struct {
	// Driver is the sensor service. Required.
	Driver driver.Driver

	// Catalog lists the supported sensors. Defaults to Driver.Sensors().
	Catalog *sensor.Catalog

	// Permissions decides permission checks. Defaults to permission.AllowAll.
	Permissions permission.Checker

	// Logger receives operational logs. Defaults to a discarding logger.
	Logger *slog.Logger

	// EventLog receives captured events. Defaults to log.NoopLogger.
	EventLog log.Logger

	// DefaultInterval applies to subscriptions without an interval.
	DefaultInterval time.Duration

	// MaxSubscriptions bounds the registry.
	MaxSubscriptions int

	// QueueLen is the initial dispatcher queue capacity.
	QueueLen int

	// Clock stamps events. Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns a configuration with every optional field set. The
// driver still has to be provided.
func DefaultConfig() Config {
	return Config{
		Permissions:      permission.AllowAll,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		EventLog:         log.NoopLogger{},
		DefaultInterval:  dispatch.DefaultInterval,
		MaxSubscriptions: subscription.DefaultMaxSubscriptions,
		QueueLen:         64,
		Clock:            clock.New(),
	}
}

// Options are the optional parameters of On.
type Options struct {
	// Interval is the sampling interval in nanoseconds. Negative values are
	// accepted here and rejected by the driver.
	Interval *int64
}

// WithInterval returns Options requesting interval nanoseconds.
func WithInterval(interval int64) *Options {
	return &Options{Interval: &interval}
}

// Client is a sensor API client.
type Client struct {
	id       string
	catalog  *sensor.Catalog
	perms    permission.Checker
	registry *subscription.Registry
	disp     *dispatch.Dispatcher
	clock    clock.Clock
	logger   *slog.Logger
	events   log.Logger

	closing chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// New creates a client and starts its dispatcher.
func New(cfg Config) (*Client, error) {
	if cfg.Driver == nil {
		return nil, ErrNoDriver
	}
	def := DefaultConfig()
	if cfg.Catalog == nil {
		cfg.Catalog = sensor.NewCatalog(cfg.Driver.Sensors()...)
	}
	if cfg.Permissions == nil {
		cfg.Permissions = def.Permissions
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.EventLog == nil {
		cfg.EventLog = def.EventLog
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = def.DefaultInterval
	}
	if cfg.MaxSubscriptions <= 0 {
		cfg.MaxSubscriptions = def.MaxSubscriptions
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = def.QueueLen
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}

	id := uuid.NewString()
	logger := cfg.Logger.With("client_id", id)

	reg := subscription.NewRegistryWithConfig(subscription.Config{MaxSubscriptions: cfg.MaxSubscriptions})
	reg.SetClock(cfg.Clock.Now)

	disp, err := dispatch.New(dispatch.Config{
		Driver:          cfg.Driver,
		Registry:        reg,
		Catalog:         cfg.Catalog,
		DefaultInterval: cfg.DefaultInterval,
		QueueLen:        cfg.QueueLen,
		Clock:           cfg.Clock,
		Logger:          logger,
		EventLog:        cfg.EventLog,
		ClientID:        id,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		id:       id,
		catalog:  cfg.Catalog,
		perms:    cfg.Permissions,
		registry: reg,
		disp:     disp,
		clock:    cfg.Clock,
		logger:   logger,
		events:   cfg.EventLog,
		closing:  make(chan struct{}),
	}
	disp.Start(context.Background())
	c.emitState("", "RUNNING", "created")
	logger.Debug("client created", "sensors", cfg.Catalog.Len())
	return c, nil
}

// ID returns the client's UUID.
func (c *Client) ID() string {
	return c.id
}

// Catalog returns the supported sensors.
func (c *Client) Catalog() *sensor.Catalog {
	return c.catalog
}

// On subscribes cb to id until Off. Re-subscribing the same pair updates its
// interval.
func (c *Client) On(id sensor.ID, cb *subscription.Callback, opts *Options) (*Handle, error) {
	var interval int64
	var has bool
	if opts != nil && opts.Interval != nil {
		interval, has = *opts.Interval, true
	}
	return c.subscribe(OpOn, id, cb, interval, has, sensor.ModeContinuous)
}

// Once subscribes cb to the next event of id.
func (c *Client) Once(id sensor.ID, cb *subscription.Callback) (*Handle, error) {
	return c.subscribe(OpOnce, id, cb, 0, false, sensor.ModeOneShot)
}

func (c *Client) subscribe(op string, id sensor.ID, cb *subscription.Callback, interval int64, has bool, mode sensor.Mode) (*Handle, error) {
	if c.closed.Load() {
		return nil, c.fail(op, id, errcode.Service(op, ErrClosed))
	}
	desc, err := c.validate(op, id, cb)
	if err != nil {
		return nil, err
	}
	if desc.Permission != "" && !c.perms.Granted(desc.Permission) {
		return nil, c.fail(op, id, errcode.PermissionDenied(op, desc.Permission))
	}

	sub, change, err := c.registry.Add(id, cb, interval, has, mode)
	if err != nil {
		return nil, c.fail(op, id, errcode.Service(op, err))
	}
	c.disp.Reconcile(id)

	c.logger.Debug("subscribed",
		"op", op,
		"sensor_id", int32(id),
		"subscription_id", sub.ID,
		"interval_ns", interval,
		"has_interval", has,
		"updated", change.Updated,
		"activated", change.Activated)

	ev := c.event(log.CategorySubscribe, op, id)
	ev.SubscriptionID = sub.ID
	ev.Mode = mode.String()
	ev.Callback = cb.Name()
	if has {
		ev.Interval = &interval
	}
	c.events.Log(ev)

	return &Handle{client: c, sub: sub}, nil
}

// validate checks the sensor ID and the callback.
func (c *Client) validate(op string, id sensor.ID, cb *subscription.Callback) (sensor.Descriptor, error) {
	desc, ok := c.catalog.Lookup(id)
	if !ok {
		return sensor.Descriptor{}, c.fail(op, id, errcode.Parameter(op, fmt.Sprintf("unsupported sensor id %d", int32(id))))
	}
	if !cb.Invocable() {
		return sensor.Descriptor{}, c.fail(op, id, errcode.Parameter(op, "callback is not invocable"))
	}
	return desc, nil
}

// Off removes the subscription of cb to id. A nil cb removes every
// subscription of id. Removing a pair that is not subscribed is not an
// error. When Off returns, no invocation of a removed subscription is
// running or will start, unless Off was called from a callback.
func (c *Client) Off(id sensor.ID, cb *subscription.Callback) error {
	if !c.catalog.Supports(id) {
		return c.fail(OpOff, id, errcode.Parameter(OpOff, fmt.Sprintf("unsupported sensor id %d", int32(id))))
	}
	if cb != nil && !cb.Invocable() {
		return c.fail(OpOff, id, errcode.Parameter(OpOff, "callback is not invocable"))
	}

	removed, change := c.registry.Remove(id, cb)
	if len(removed) > 0 {
		c.disp.Reconcile(id)
	}
	for _, sub := range removed {
		sub.WaitInvocation()
	}

	c.logger.Debug("unsubscribed",
		"sensor_id", int32(id),
		"all", cb == nil,
		"removed", len(removed),
		"remaining", change.Remaining)

	for _, sub := range removed {
		ev := c.event(log.CategoryUnsubscribe, OpOff, id)
		ev.SubscriptionID = sub.ID
		ev.Mode = sub.Mode().String()
		ev.Callback = sub.Callback.Name()
		c.events.Log(ev)
	}
	return nil
}

// GetSingleSensor looks up the descriptor of id and passes it to fn from
// another goroutine. An unsupported id or a nil fn fails synchronously with
// 401.
func (c *Client) GetSingleSensor(id sensor.ID, fn func(sensor.Descriptor, error)) error {
	desc, ok := c.catalog.Lookup(id)
	if !ok {
		return c.fail(OpGetSingleSensor, id, errcode.Parameter(OpGetSingleSensor, fmt.Sprintf("unsupported sensor id %d", int32(id))))
	}
	if fn == nil {
		return c.fail(OpGetSingleSensor, id, errcode.Parameter(OpGetSingleSensor, "callback is not invocable"))
	}
	if c.closed.Load() {
		return c.fail(OpGetSingleSensor, id, errcode.Service(OpGetSingleSensor, ErrClosed))
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(desc, nil)
	}()
	return nil
}

// Sensor returns the descriptor of id.
func (c *Client) Sensor(id sensor.ID) (sensor.Descriptor, error) {
	desc, ok := c.catalog.Lookup(id)
	if !ok {
		return sensor.Descriptor{}, errcode.Parameter("getSensor", fmt.Sprintf("unsupported sensor id %d", int32(id)))
	}
	return desc, nil
}

// Sensors returns every supported sensor, ordered by ID.
func (c *Client) Sensors() []sensor.Descriptor {
	return c.catalog.All()
}

// SubscriptionCount returns how many subscriptions id has.
func (c *Client) SubscriptionCount(id sensor.ID) int {
	return c.registry.CountFor(id)
}

// Subscriptions returns every live subscription ordered by sensor, then ID.
func (c *Client) Subscriptions() []*subscription.Subscription {
	var out []*subscription.Subscription
	for _, id := range c.registry.Sensors() {
		out = append(out, c.registry.Subscribers(id)...)
	}
	return out
}

// Flush waits until the dispatcher processed every pending command.
func (c *Client) Flush(ctx context.Context) error {
	return c.disp.Flush(ctx)
}

// Suspend stops every sensor that is not freeze-exempt.
func (c *Client) Suspend(ctx context.Context) error {
	err := c.disp.Suspend(ctx)
	c.logger.Info("suspend", "error", err)
	return err
}

// Resume restarts the sensors stopped by Suspend.
func (c *Client) Resume(ctx context.Context) error {
	err := c.disp.Resume(ctx)
	c.logger.Info("resume", "error", err)
	return err
}

// ResetSensors puts every enabled sensor back on the default sampling
// period. Subscriptions made afterwards lower it again as usual.
func (c *Client) ResetSensors(ctx context.Context) error {
	err := c.disp.ResetSensors(ctx)
	c.logger.Info("reset sensors", "error", err)
	return err
}

// OnActiveInfo registers cb to receive every activation edge of this
// client's sensors, in order, on a goroutine of its own. cb must not call
// Close. Registering cb twice is a no-op.
func (c *Client) OnActiveInfo(cb *dispatch.ActiveInfoCallback) error {
	if !cb.Invocable() {
		return c.fail(OpOnActiveInfo, 0, errcode.Parameter(OpOnActiveInfo, "callback is not invocable"))
	}
	added := c.disp.AddActiveInfoCallback(cb)
	c.logger.Debug("active info callback registered", "callback", cb.Name(), "added", added)
	return nil
}

// OffActiveInfo unregisters cb. Unregistering a callback that is not
// registered is not an error.
func (c *Client) OffActiveInfo(cb *dispatch.ActiveInfoCallback) error {
	if !cb.Invocable() {
		return c.fail(OpOffActiveInfo, 0, errcode.Parameter(OpOffActiveInfo, "callback is not invocable"))
	}
	removed := c.disp.RemoveActiveInfoCallback(cb)
	c.logger.Debug("active info callback unregistered", "callback", cb.Name(), "removed", removed)
	return nil
}

// ActiveInfo returns the sensors currently enabled or suspended. Pending
// subscription changes are applied first.
func (c *Client) ActiveInfo(ctx context.Context) ([]dispatch.ActiveInfo, error) {
	if err := c.disp.Flush(ctx); err != nil {
		return nil, err
	}
	return c.disp.ActiveInfo(), nil
}

// Close removes every subscription, disables the sensors and waits for
// pending getSingleSensor callbacks. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.closing)

	sensors, removed := c.registry.ClearAll()
	for _, id := range sensors {
		ev := c.event(log.CategoryUnsubscribe, "close", id)
		c.events.Log(ev)
	}
	for _, sub := range removed {
		sub.WaitInvocation()
	}
	err := c.disp.Stop()
	c.wg.Wait()

	c.emitState("RUNNING", "CLOSED", "closed")
	c.logger.Debug("client closed", "error", err)
	return err
}

// fail records a synchronous API error and returns it.
func (c *Client) fail(op string, id sensor.ID, err *errcode.Error) error {
	c.logger.Debug("api error", "op", op, "sensor_id", int32(id), "code", int32(err.Code), "detail", err.Detail)

	ev := c.event(log.CategoryError, op, id)
	ev.Error = &log.ErrorEventData{Code: int32(err.Code), Message: err.Message, Context: err.Detail}
	c.events.Log(ev)
	return err
}

func (c *Client) event(cat log.Category, op string, id sensor.ID) log.Event {
	return log.Event{
		Timestamp: c.clock.Now(),
		ClientID:  c.id,
		Category:  cat,
		Operation: op,
		SensorID:  int32(id),
	}
}

func (c *Client) emitState(from, to, reason string) {
	ev := c.event(log.CategoryState, "", 0)
	ev.StateChange = &log.StateChangeEvent{Entity: log.StateEntityClient, OldState: from, NewState: to, Reason: reason}
	c.events.Log(ev)
}

// Handle refers to one subscription made through On, Once or Stream.
type Handle struct {
	client *Client
	sub    *subscription.Subscription
	once   sync.Once
}

// ID returns the subscription ID.
func (h *Handle) ID() uint32 {
	return h.sub.ID
}

// Subscription returns the underlying subscription.
func (h *Handle) Subscription() *subscription.Subscription {
	return h.sub
}

// Close removes exactly this subscription. It is a no-op once the
// subscription is gone, whether by Off, one-shot delivery or rejection.
// Like Off, it waits for a running invocation of the subscription.
func (h *Handle) Close() error {
	h.once.Do(func() {
		c := h.client
		if _, _, err := c.registry.RemoveByID(h.sub.ID); err != nil {
			return
		}
		c.disp.Reconcile(h.sub.SensorID)
		h.sub.WaitInvocation()

		ev := c.event(log.CategoryUnsubscribe, "close", h.sub.SensorID)
		ev.SubscriptionID = h.sub.ID
		ev.Mode = h.sub.Mode().String()
		ev.Callback = h.sub.Callback.Name()
		c.events.Log(ev)
	})
	return nil
}
