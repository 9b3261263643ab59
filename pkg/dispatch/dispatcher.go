// Package dispatch implements the event dispatcher of a sensor client.
//
// The dispatcher owns the conversation with the driver. A single goroutine
// consumes a command queue fed by the client (subscriptions changed,
// suspend, resume) and by the driver sink (readings, faults). Callers never
// block on the queue.
//
// # Activation
//
// Sensors are reference counted through the subscription registry. The
// first subscription of a sensor enables it at that subscription's period;
// a later subscription asking for a shorter period lowers it; when the
// fastest subscription goes away the period is raised again, and the last
// removal disables the sensor.
//
// Interval validation is deferred to the driver. A subscription whose period
// the driver refuses receives a single error event with code 14500101 and is
// retired. Other subscriptions of the same sensor are unaffected.
//
// # Fan-out
//
// A reading goes to every continuous subscription of its sensor and to every
// pending one-shot subscription, which is retired after that delivery.
// Driver faults reach every subscription of the sensor as error events.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/sensorkit/sensorkit-go/pkg/driver"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// DefaultInterval is the sampling period used for subscriptions that do not
// request one.
const DefaultInterval = 200 * time.Millisecond

// Config configures a Dispatcher.
type Config struct {
	// Driver is the sensor service. Required.
	Driver driver.Driver

	// Registry holds the client's subscriptions. Required.
	Registry *subscription.Registry

	// Catalog supplies freeze-exempt flags. Defaults to the default catalog.
	Catalog *sensor.Catalog

	// DefaultInterval applies to subscriptions without an interval.
	DefaultInterval time.Duration

	// ReportDelay is passed to Driver.Enable.
	ReportDelay time.Duration

	// QueueLen is the initial capacity of the command queue.
	QueueLen int

	// Clock stamps logged events. Defaults to the wall clock.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discarding logger.
	Logger *slog.Logger

	// EventLog receives captured events. Defaults to NoopLogger.
	EventLog log.Logger

	// ClientID tags captured events.
	ClientID string
}

// ActiveInfo describes one enabled or suspended sensor.
type ActiveInfo struct {
	SensorID       sensor.ID
	SamplingPeriod time.Duration
	ReportDelay    time.Duration
	Subscribers    int
	Suspended      bool
}

// Dispatcher routes driver output to subscriptions.
type Dispatcher struct {
	driver   driver.Driver
	registry *subscription.Registry
	catalog  *sensor.Catalog
	clock    clock.Clock
	logger   *slog.Logger
	events   log.Logger
	clientID string

	defaultInterval time.Duration
	reportDelay     time.Duration

	queue  *commandQueue
	notify *notifier

	// mu guards sensors for readers; only the run goroutine writes.
	mu      sync.RWMutex
	sensors map[sensor.ID]*sensorState

	// applied maps subscription ID to the interval last applied to the
	// driver. Owned by the run goroutine.
	applied map[uint32]appliedInterval

	suspended bool

	ctx        context.Context
	cancel     context.CancelFunc
	notifyStop chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
	stopErr    error
}

type sensorState struct {
	enabled   bool
	suspended bool
	period    time.Duration
}

type appliedInterval struct {
	sensorID    sensor.ID
	interval    int64
	hasInterval bool
}

// New creates a dispatcher and installs it as the driver's sink.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("dispatch: driver is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("dispatch: registry is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = sensor.DefaultCatalog()
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultInterval
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 64
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.EventLog == nil {
		cfg.EventLog = log.NoopLogger{}
	}

	d := &Dispatcher{
		driver:          cfg.Driver,
		registry:        cfg.Registry,
		catalog:         cfg.Catalog,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
		events:          cfg.EventLog,
		clientID:        cfg.ClientID,
		defaultInterval: cfg.DefaultInterval,
		reportDelay:     cfg.ReportDelay,
		queue:           newCommandQueue(cfg.QueueLen),
		notify:          newNotifier(),
		sensors:         make(map[sensor.ID]*sensorState),
		applied:         make(map[uint32]appliedInterval),
	}
	cfg.Driver.SetSink(d)
	return d, nil
}

// Start begins processing. It is a no-op if already running.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.notifyStop = make(chan struct{})
	d.wg.Add(2)
	go d.run()
	go func() {
		defer d.wg.Done()
		d.notify.run(d.notifyStop)
	}()
}

// Stop stops processing and disables every sensor the dispatcher enabled.
// Commands still queued are discarded. Activation edges already published,
// including the final stop edges, reach the active-info callbacks before Stop
// returns, so those callbacks must not call Stop.
func (d *Dispatcher) Stop() error {
	if !d.running.Swap(false) {
		return nil
	}
	d.cancel()
	d.wg.Wait()
	return d.stopErr
}

// IsRunning reports whether the dispatcher is processing commands.
func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

// Reconcile asks the dispatcher to bring the driver in line with the
// registry's subscriptions for id.
func (d *Dispatcher) Reconcile(id sensor.ID) {
	d.queue.push(command{kind: cmdReconcile, sensorID: id})
}

// OnReading implements driver.Sink.
func (d *Dispatcher) OnReading(r sensor.Reading) {
	d.queue.push(command{kind: cmdReading, reading: r})
}

// OnFault implements driver.Sink.
func (d *Dispatcher) OnFault(f driver.Fault) {
	d.queue.push(command{kind: cmdFault, fault: f})
}

// Flush waits until every command queued before the call has been processed.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	d.queue.push(command{kind: cmdBarrier, reply: done})
	return d.await(ctx, done)
}

// Suspend disables every enabled sensor that is not freeze-exempt. The
// periods are remembered for Resume.
func (d *Dispatcher) Suspend(ctx context.Context) error {
	done := make(chan error, 1)
	d.queue.push(command{kind: cmdSuspend, reply: done})
	return d.await(ctx, done)
}

// Resume re-enables the sensors disabled by Suspend.
func (d *Dispatcher) Resume(ctx context.Context) error {
	done := make(chan error, 1)
	d.queue.push(command{kind: cmdResume, reply: done})
	return d.await(ctx, done)
}

// ResetSensors sets every enabled sensor back to the default period. A
// suspended sensor resumes at the default period.
func (d *Dispatcher) ResetSensors(ctx context.Context) error {
	done := make(chan error, 1)
	d.queue.push(command{kind: cmdReset, reply: done})
	return d.await(ctx, done)
}

// AddActiveInfoCallback registers cb for activation edges. It reports false
// if cb is already registered.
func (d *Dispatcher) AddActiveInfoCallback(cb *ActiveInfoCallback) bool {
	return d.notify.add(cb)
}

// RemoveActiveInfoCallback unregisters cb. It reports false if cb was not
// registered. Edges already queued for delivery may still reach cb.
func (d *Dispatcher) RemoveActiveInfoCallback(cb *ActiveInfoCallback) bool {
	return d.notify.remove(cb)
}

// Suspended reports whether the dispatcher is suspended.
func (d *Dispatcher) Suspended() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.suspended
}

// ActiveInfo returns the enabled and suspended sensors ordered by ID.
func (d *Dispatcher) ActiveInfo() []ActiveInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]ActiveInfo, 0, len(d.sensors))
	for id, st := range d.sensors {
		if !st.enabled && !st.suspended {
			continue
		}
		out = append(out, ActiveInfo{
			SensorID:       id,
			SamplingPeriod: st.period,
			ReportDelay:    d.reportDelay,
			Subscribers:    d.registry.CountFor(id),
			Suspended:      st.suspended,
		})
	}
	slices.SortFunc(out, func(a, b ActiveInfo) int { return int(a.SensorID) - int(b.SensorID) })
	return out
}

func (d *Dispatcher) await(ctx context.Context, done <-chan error) error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrNotRunning
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			d.stopErr = d.shutdown()
			close(d.notifyStop)
			return
		case <-d.queue.ready():
			for _, cmd := range d.queue.drain() {
				if d.ctx.Err() != nil {
					break
				}
				d.handle(cmd)
			}
		}
	}
}

func (d *Dispatcher) handle(cmd command) {
	switch cmd.kind {
	case cmdReconcile:
		d.reconcile(cmd.sensorID)
	case cmdReading:
		d.fanOut(cmd.reading)
	case cmdFault:
		d.fanOutFault(cmd.fault)
	case cmdSuspend:
		cmd.reply <- d.suspend()
	case cmdResume:
		cmd.reply <- d.resume()
	case cmdReset:
		cmd.reply <- d.reset()
	case cmdBarrier:
		cmd.reply <- nil
	}
}

// effectivePeriod converts a requested interval to a driver period.
func (d *Dispatcher) effectivePeriod(interval int64, hasInterval bool) time.Duration {
	if !hasInterval {
		return d.defaultInterval
	}
	return time.Duration(interval)
}

func (d *Dispatcher) state(id sensor.ID) *sensorState {
	st, ok := d.sensors[id]
	if !ok {
		st = &sensorState{}
		d.sensors[id] = st
	}
	return st
}

func (d *Dispatcher) reconcile(id sensor.ID) {
	subs := d.registry.Subscribers(id)

	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(id)

	for _, sub := range subs {
		interval, has := sub.Interval()
		want := appliedInterval{sensorID: id, interval: interval, hasInterval: has}
		if cur, ok := d.applied[sub.ID]; ok && cur == want {
			continue
		}
		if err := d.applyLocked(id, st, d.effectivePeriod(interval, has)); err != nil {
			d.rejectLocked(sub, err)
			continue
		}
		d.applied[sub.ID] = want
	}

	d.settleLocked(id, st)
}

// applyLocked makes the driver honour period for a new or updated
// subscription.
func (d *Dispatcher) applyLocked(id sensor.ID, st *sensorState, period time.Duration) error {
	if st.suspended || (d.suspended && !st.enabled && !d.exempt(id)) {
		if err := driver.ValidatePeriod(period); err != nil {
			return err
		}
		if !st.suspended {
			st.suspended = true
			st.period = period
		} else if period < st.period {
			st.period = period
		}
		return nil
	}
	if !st.enabled {
		if err := d.driver.Enable(id, period, d.reportDelay); err != nil {
			return err
		}
		st.enabled = true
		st.period = period
		d.logger.Debug("sensor enabled", "client_id", d.clientID, "sensor_id", int32(id), "period", period)
		d.emitActivation(log.CategoryActivate, "enable", id, period)
		return nil
	}
	if period < st.period {
		if err := d.driver.SetPeriod(id, period); err != nil {
			return err
		}
		st.period = period
		d.emitActivation(log.CategoryActivate, "set_period", id, period)
	}
	return nil
}

// rejectLocked delivers the terminal service error to sub and retires it.
func (d *Dispatcher) rejectLocked(sub *subscription.Subscription, cause error) {
	apiErr := errcode.Service(sub.Mode().String(), cause)
	sub.DeliverFinal(subscription.Event{SensorID: sub.SensorID, Err: apiErr})
	d.registry.Retire(sub)
	delete(d.applied, sub.ID)

	interval, has := sub.Interval()
	d.logger.Warn("subscription rejected by driver",
		"client_id", d.clientID,
		"sensor_id", int32(sub.SensorID),
		"subscription_id", sub.ID,
		"interval_ns", interval,
		"error", cause)

	ev := d.event(log.CategoryError, "activate", sub.SensorID)
	ev.SubscriptionID = sub.ID
	ev.Callback = sub.Callback.Name()
	if has {
		ev.Interval = &interval
	}
	ev.Error = &log.ErrorEventData{
		Code:    int32(apiErr.Code),
		Message: apiErr.Message,
		Context: cause.Error(),
		Async:   true,
	}
	d.events.Log(ev)
}

// settleLocked adjusts the driver after subscriptions went away: it drops
// stale bookkeeping, raises the period when the fastest subscription left,
// and disables the sensor when none remain.
func (d *Dispatcher) settleLocked(id sensor.ID, st *sensorState) {
	subs := d.registry.Subscribers(id)

	best := time.Duration(-1)
	live := make(map[uint32]bool, len(subs))
	for _, sub := range subs {
		live[sub.ID] = true
		a, ok := d.applied[sub.ID]
		if !ok {
			continue
		}
		p := d.effectivePeriod(a.interval, a.hasInterval)
		if best < 0 || p < best {
			best = p
		}
	}
	for subID, a := range d.applied {
		if a.sensorID == id && !live[subID] {
			delete(d.applied, subID)
		}
	}

	if best < 0 {
		if st.enabled {
			if err := d.driver.Disable(id); err != nil {
				d.logger.Warn("disable failed", "client_id", d.clientID, "sensor_id", int32(id), "error", err)
			}
			d.logger.Debug("sensor disabled", "client_id", d.clientID, "sensor_id", int32(id))
			d.emitActivation(log.CategoryDeactivate, "disable", id, st.period)
		}
		delete(d.sensors, id)
		return
	}

	if st.suspended {
		st.period = best
		return
	}
	if st.enabled && best != st.period {
		if err := d.driver.SetPeriod(id, best); err != nil {
			d.logger.Warn("set period failed", "client_id", d.clientID, "sensor_id", int32(id), "error", err)
			return
		}
		st.period = best
		d.emitActivation(log.CategoryActivate, "set_period", id, best)
	}
}

func (d *Dispatcher) isApplied(subID uint32) bool {
	_, ok := d.applied[subID]
	return ok
}

func (d *Dispatcher) exempt(id sensor.ID) bool {
	desc, ok := d.catalog.Lookup(id)
	return ok && desc.FreezeExempt
}

func (d *Dispatcher) fanOut(r sensor.Reading) {
	subs := d.registry.Subscribers(r.SensorID)
	if len(subs) == 0 {
		return
	}

	retired := false
	for _, sub := range subs {
		if !d.isApplied(sub.ID) {
			continue
		}
		rd := r.Clone()
		accepted, spent := sub.Deliver(subscription.Event{SensorID: r.SensorID, Reading: &rd})
		if accepted {
			ev := d.event(log.CategoryReading, "", r.SensorID)
			ev.SubscriptionID = sub.ID
			ev.Mode = sub.Mode().String()
			ev.Fields = rd.Fields
			d.events.Log(ev)
		}
		if spent && sub.Mode() == sensor.ModeOneShot {
			if ok, _ := d.registry.Retire(sub); ok {
				retired = true
				d.emitRetired(sub)
			}
		}
	}
	if retired {
		d.reconcile(r.SensorID)
	}
}

func (d *Dispatcher) fanOutFault(f driver.Fault) {
	subs := d.registry.Subscribers(f.SensorID)
	apiErr := errcode.Service("sensor", f.Err)

	retired := false
	for _, sub := range subs {
		if !d.isApplied(sub.ID) {
			continue
		}
		accepted, spent := sub.Deliver(subscription.Event{SensorID: f.SensorID, Err: apiErr})
		if accepted {
			ev := d.event(log.CategoryError, "fault", f.SensorID)
			ev.SubscriptionID = sub.ID
			ev.Error = &log.ErrorEventData{Code: int32(apiErr.Code), Message: apiErr.Message, Context: apiErr.Detail, Async: true}
			d.events.Log(ev)
		}
		if spent && sub.Mode() == sensor.ModeOneShot {
			if ok, _ := d.registry.Retire(sub); ok {
				retired = true
				d.emitRetired(sub)
			}
		}
	}
	d.logger.Warn("driver fault", "client_id", d.clientID, "sensor_id", int32(f.SensorID), "subscribers", len(subs), "error", f.Err)
	if retired {
		d.reconcile(f.SensorID)
	}
}

func (d *Dispatcher) suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.suspended {
		return nil
	}
	d.suspended = true

	var errs error
	for _, id := range d.sortedSensorsLocked() {
		st := d.sensors[id]
		if !st.enabled {
			continue
		}
		if d.exempt(id) {
			continue
		}
		if err := d.driver.Disable(id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("suspend %v: %w", id, err))
			continue
		}
		st.enabled = false
		st.suspended = true
		d.emitActivation(log.CategoryDeactivate, "suspend", id, st.period)
	}
	d.emitState("RUNNING", "SUSPENDED")
	d.logger.Info("client suspended", "client_id", d.clientID, "error", errs)
	return errs
}

func (d *Dispatcher) resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.suspended {
		return nil
	}
	d.suspended = false

	var errs error
	for _, id := range d.sortedSensorsLocked() {
		st := d.sensors[id]
		if !st.suspended {
			continue
		}
		st.suspended = false
		if err := d.driver.Enable(id, st.period, d.reportDelay); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resume %v: %w", id, err))
			continue
		}
		st.enabled = true
		d.emitActivation(log.CategoryActivate, "resume", id, st.period)
	}
	d.emitState("SUSPENDED", "RUNNING")
	d.logger.Info("client resumed", "client_id", d.clientID, "error", errs)
	return errs
}

func (d *Dispatcher) reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs error
	reset := 0
	for _, id := range d.sortedSensorsLocked() {
		st := d.sensors[id]
		if st.period == d.defaultInterval {
			continue
		}
		if st.suspended {
			st.period = d.defaultInterval
			continue
		}
		if !st.enabled {
			continue
		}
		if err := d.driver.SetPeriod(id, d.defaultInterval); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reset %v: %w", id, err))
			continue
		}
		st.period = d.defaultInterval
		reset++
		d.emitActivation(log.CategoryActivate, "reset", id, d.defaultInterval)
	}
	d.logger.Info("sensors reset", "client_id", d.clientID, "count", reset, "period", d.defaultInterval, "error", errs)
	return errs
}

func (d *Dispatcher) shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs error
	for _, id := range d.sortedSensorsLocked() {
		st := d.sensors[id]
		if st.enabled {
			if err := d.driver.Disable(id); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("stop %v: %w", id, err))
			}
			d.emitActivation(log.CategoryDeactivate, "stop", id, st.period)
		}
	}
	d.sensors = make(map[sensor.ID]*sensorState)
	d.applied = make(map[uint32]appliedInterval)
	d.suspended = false
	return errs
}

func (d *Dispatcher) sortedSensorsLocked() []sensor.ID {
	ids := make([]sensor.ID, 0, len(d.sensors))
	for id := range d.sensors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (d *Dispatcher) event(cat log.Category, op string, id sensor.ID) log.Event {
	return log.Event{
		Timestamp: d.clock.Now(),
		ClientID:  d.clientID,
		Category:  cat,
		Operation: op,
		SensorID:  int32(id),
	}
}

func (d *Dispatcher) emitActivation(cat log.Category, op string, id sensor.ID, period time.Duration) {
	ev := d.event(cat, op, id)
	p := int64(period)
	ev.Interval = &p
	d.events.Log(ev)

	d.notify.publish(ActiveChange{
		SensorID:       id,
		Op:             op,
		Active:         cat == log.CategoryActivate,
		SamplingPeriod: period,
		ReportDelay:    d.reportDelay,
	})
}

func (d *Dispatcher) emitRetired(sub *subscription.Subscription) {
	ev := d.event(log.CategoryUnsubscribe, "retire", sub.SensorID)
	ev.SubscriptionID = sub.ID
	ev.Mode = sub.Mode().String()
	ev.Callback = sub.Callback.Name()
	d.events.Log(ev)
}

func (d *Dispatcher) emitState(from, to string) {
	ev := d.event(log.CategoryState, "", 0)
	ev.StateChange = &log.StateChangeEvent{Entity: log.StateEntityClient, OldState: from, NewState: to}
	d.events.Log(ev)
}
