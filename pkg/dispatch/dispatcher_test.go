package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorkit/sensorkit-go/pkg/driver"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

type collector struct {
	mu     sync.Mutex
	events []subscription.Event
	cb     *subscription.Callback
}

func newCollector() *collector {
	c := &collector{}
	c.cb = subscription.NewCallback(func(ev subscription.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, ev)
	})
	return c
}

func (c *collector) snapshot() []subscription.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]subscription.Event(nil), c.events...)
}

func (c *collector) readings() int {
	n := 0
	for _, ev := range c.snapshot() {
		if !ev.IsError() {
			n++
		}
	}
	return n
}

func (c *collector) errors() []subscription.Event {
	var out []subscription.Event
	for _, ev := range c.snapshot() {
		if ev.IsError() {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	t      *testing.T
	clock  *clock.Mock
	driver *sim.Driver
	reg    *subscription.Registry
	disp   *Dispatcher
	events *log.MemoryLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := clock.NewMock()
	drv := sim.New(sim.Config{Clock: mock})
	reg := subscription.NewRegistry()
	mem := log.NewMemoryLogger()

	disp, err := New(Config{
		Driver:   drv,
		Registry: reg,
		Clock:    mock,
		EventLog: mem,
		ClientID: "test-client",
	})
	require.NoError(t, err)
	disp.Start(context.Background())

	f := &fixture{t: t, clock: mock, driver: drv, reg: reg, disp: disp, events: mem}
	t.Cleanup(func() {
		disp.Stop()
		drv.Close()
	})
	return f
}

func (f *fixture) add(id sensor.ID, c *collector, interval int64, has bool, mode sensor.Mode) *subscription.Subscription {
	f.t.Helper()
	sub, _, err := f.reg.Add(id, c.cb, interval, has, mode)
	require.NoError(f.t, err)
	f.disp.Reconcile(id)
	f.flush()
	return sub
}

func (f *fixture) remove(id sensor.ID, c *collector) {
	f.t.Helper()
	if c == nil {
		f.reg.Remove(id, nil)
	} else {
		f.reg.Remove(id, c.cb)
	}
	f.disp.Reconcile(id)
	f.flush()
}

func (f *fixture) flush() {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(f.t, f.disp.Flush(ctx))
}

func (f *fixture) emit(id sensor.ID) {
	f.t.Helper()
	require.True(f.t, f.driver.Emit(id), "sensor %v not enabled", id)
	f.flush()
}

func idle(t *testing.T, subs ...*subscription.Subscription) {
	t.Helper()
	for _, s := range subs {
		require.True(t, s.Idle(2*time.Second), "subscription %d did not go idle", s.ID)
	}
}

func TestNewRequiresDriverAndRegistry(t *testing.T) {
	_, err := New(Config{Registry: subscription.NewRegistry()})
	assert.Error(t, err)
	_, err = New(Config{Driver: sim.New(sim.Config{})})
	assert.Error(t, err)
}

func TestFirstSubscriberEnablesLastDisables(t *testing.T) {
	f := newFixture(t)
	a, b := newCollector(), newCollector()

	f.add(sensor.Barometer, a, int64(100*time.Millisecond), true, sensor.ModeContinuous)
	assert.True(t, f.driver.Enabled(sensor.Barometer))
	p, _ := f.driver.Period(sensor.Barometer)
	assert.Equal(t, 100*time.Millisecond, p)

	f.add(sensor.Barometer, b, int64(50*time.Millisecond), true, sensor.ModeContinuous)
	p, _ = f.driver.Period(sensor.Barometer)
	assert.Equal(t, 50*time.Millisecond, p, "faster subscriber should lower the period")
	assert.Equal(t, 1, f.driver.Stats(sensor.Barometer).Enables)

	f.remove(sensor.Barometer, b)
	p, _ = f.driver.Period(sensor.Barometer)
	assert.Equal(t, 100*time.Millisecond, p, "period should rise when the fastest subscriber leaves")

	f.remove(sensor.Barometer, a)
	assert.False(t, f.driver.Enabled(sensor.Barometer))
	assert.Equal(t, 1, f.driver.Stats(sensor.Barometer).Disables)
	assert.Empty(t, f.disp.ActiveInfo())
}

func TestDefaultIntervalApplied(t *testing.T) {
	f := newFixture(t)
	f.add(sensor.Barometer, newCollector(), 0, false, sensor.ModeContinuous)

	p, ok := f.driver.Period(sensor.Barometer)
	require.True(t, ok)
	assert.Equal(t, DefaultInterval, p)
}

func TestNegativeIntervalOnInactiveSensor(t *testing.T) {
	f := newFixture(t)
	c := newCollector()

	sub := f.add(sensor.Barometer, c, -100000000, true, sensor.ModeContinuous)
	idle(t, sub)

	errs := c.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errcode.CodeServiceException, errcode.Of(errs[0].Err))
	assert.Equal(t, errcode.MessageServiceException, errcode.MessageOf(errs[0].Err))
	assert.ErrorIs(t, errs[0].Err, driver.ErrInvalidPeriod)

	assert.Equal(t, 0, f.reg.CountFor(sensor.Barometer), "rejected subscription must be retired")
	assert.False(t, f.driver.Enabled(sensor.Barometer))
	assert.Equal(t, subscription.StateUnregistered, sub.State())
}

func TestNegativeIntervalLeavesOthersRunning(t *testing.T) {
	f := newFixture(t)
	good, bad := newCollector(), newCollector()

	goodSub := f.add(sensor.Barometer, good, int64(100*time.Millisecond), true, sensor.ModeContinuous)
	badSub := f.add(sensor.Barometer, bad, -1, true, sensor.ModeContinuous)
	idle(t, badSub)

	assert.Len(t, bad.errors(), 1)
	assert.Equal(t, 1, f.reg.CountFor(sensor.Barometer))
	p, _ := f.driver.Period(sensor.Barometer)
	assert.Equal(t, 100*time.Millisecond, p)

	f.emit(sensor.Barometer)
	idle(t, goodSub, badSub)
	assert.Equal(t, 1, good.readings())
	assert.Equal(t, 0, bad.readings())
	assert.Empty(t, good.errors())
}

func TestFanOutContinuousAndOneShot(t *testing.T) {
	f := newFixture(t)
	a, b, once := newCollector(), newCollector(), newCollector()

	subA := f.add(sensor.Barometer, a, 0, false, sensor.ModeContinuous)
	subB := f.add(sensor.Barometer, b, 0, false, sensor.ModeContinuous)
	subO := f.add(sensor.Barometer, once, 0, false, sensor.ModeOneShot)

	f.emit(sensor.Barometer)
	f.emit(sensor.Barometer)
	f.emit(sensor.Barometer)
	idle(t, subA, subB, subO)

	assert.Equal(t, 3, a.readings())
	assert.Equal(t, 3, b.readings())
	assert.Equal(t, 1, once.readings(), "one-shot must fire exactly once")
	assert.Equal(t, 2, f.reg.CountFor(sensor.Barometer))

	for _, ev := range a.snapshot() {
		_, ok := ev.Reading.Field("pressure")
		assert.True(t, ok)
		assert.Equal(t, subA.ID, ev.SubscriptionID)
	}
}

func TestOneShotOnlyDisablesAfterDelivery(t *testing.T) {
	f := newFixture(t)
	once := newCollector()

	sub := f.add(sensor.PedometerDetection, once, 0, false, sensor.ModeOneShot)
	assert.True(t, f.driver.Enabled(sensor.PedometerDetection))

	f.emit(sensor.PedometerDetection)
	idle(t, sub)

	assert.Equal(t, 1, once.readings())
	assert.False(t, f.driver.Enabled(sensor.PedometerDetection), "retiring the only one-shot should disable the sensor")
}

func TestRemovedSubscriptionGetsNothing(t *testing.T) {
	f := newFixture(t)
	a, b := newCollector(), newCollector()
	subA := f.add(sensor.Barometer, a, 0, false, sensor.ModeContinuous)
	subB := f.add(sensor.Barometer, b, 0, false, sensor.ModeContinuous)

	f.emit(sensor.Barometer)
	idle(t, subA, subB)
	f.remove(sensor.Barometer, a)
	f.emit(sensor.Barometer)
	idle(t, subA, subB)

	assert.Equal(t, 1, a.readings())
	assert.Equal(t, 2, b.readings())
}

func TestFaultFansOutAsErrors(t *testing.T) {
	f := newFixture(t)
	a, once := newCollector(), newCollector()
	subA := f.add(sensor.Barometer, a, 0, false, sensor.ModeContinuous)
	subO := f.add(sensor.Barometer, once, 0, false, sensor.ModeOneShot)

	require.True(t, f.driver.InjectFault(sensor.Barometer, errors.New("hal timeout")))
	f.flush()
	idle(t, subA, subO)

	require.Len(t, a.errors(), 1)
	assert.Equal(t, errcode.CodeServiceException, errcode.Of(a.errors()[0].Err))
	require.Len(t, once.errors(), 1)
	assert.Equal(t, 1, f.reg.CountFor(sensor.Barometer), "one-shot consumed by the fault")

	f.emit(sensor.Barometer)
	idle(t, subA)
	assert.Equal(t, 1, a.readings(), "continuous subscription survives a fault")
}

func TestTickerDrivenDelivery(t *testing.T) {
	f := newFixture(t)
	c := newCollector()
	sub := f.add(sensor.Barometer, c, int64(100*time.Millisecond), true, sensor.ModeContinuous)

	for i := 1; i <= 3; i++ {
		f.clock.Add(100 * time.Millisecond)
		want := i
		require.Eventually(t, func() bool {
			_ = f.disp.Flush(context.Background())
			sub.Idle(time.Second)
			return c.readings() >= want
		}, 2*time.Second, 5*time.Millisecond)
	}
}

func TestSuspendResume(t *testing.T) {
	f := newFixture(t)
	f.add(sensor.Barometer, newCollector(), int64(100*time.Millisecond), true, sensor.ModeContinuous)
	f.add(sensor.PedometerDetection, newCollector(), 0, false, sensor.ModeContinuous)
	ctx := context.Background()

	require.NoError(t, f.disp.Suspend(ctx))
	assert.True(t, f.disp.Suspended())
	assert.False(t, f.driver.Enabled(sensor.Barometer))
	assert.True(t, f.driver.Enabled(sensor.PedometerDetection), "pedometer detection is freeze exempt")

	info := f.disp.ActiveInfo()
	require.Len(t, info, 2)
	assert.Equal(t, sensor.Barometer, info[0].SensorID)
	assert.True(t, info[0].Suspended)
	assert.False(t, info[1].Suspended)

	// Subscriptions made while suspended wait for resume.
	f.add(sensor.AmbientLight, newCollector(), 0, false, sensor.ModeContinuous)
	assert.False(t, f.driver.Enabled(sensor.AmbientLight))

	require.NoError(t, f.disp.Suspend(ctx), "second suspend is a no-op")
	require.NoError(t, f.disp.Resume(ctx))
	assert.False(t, f.disp.Suspended())
	assert.True(t, f.driver.Enabled(sensor.Barometer))
	assert.True(t, f.driver.Enabled(sensor.AmbientLight))
	p, _ := f.driver.Period(sensor.Barometer)
	assert.Equal(t, 100*time.Millisecond, p)
}

func TestResumeAggregatesErrors(t *testing.T) {
	f := newFixture(t)
	f.add(sensor.Barometer, newCollector(), 0, false, sensor.ModeContinuous)
	f.add(sensor.AmbientLight, newCollector(), 0, false, sensor.ModeContinuous)
	ctx := context.Background()

	require.NoError(t, f.disp.Suspend(ctx))
	f.driver.FailNextEnable(sensor.Barometer, errors.New("baro down"))
	f.driver.FailNextEnable(sensor.AmbientLight, errors.New("light down"))

	err := f.disp.Resume(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baro down")
	assert.Contains(t, err.Error(), "light down")
}

func TestStopDisablesSensors(t *testing.T) {
	f := newFixture(t)
	f.add(sensor.Barometer, newCollector(), 0, false, sensor.ModeContinuous)
	f.add(sensor.Pedometer, newCollector(), 0, false, sensor.ModeContinuous)

	require.NoError(t, f.disp.Stop())
	assert.False(t, f.disp.IsRunning())
	assert.False(t, f.driver.Enabled(sensor.Barometer))
	assert.False(t, f.driver.Enabled(sensor.Pedometer))

	assert.ErrorIs(t, f.disp.Flush(context.Background()), ErrNotRunning)
	assert.NoError(t, f.disp.Stop(), "second Stop is a no-op")
}

func TestActivationEventsLogged(t *testing.T) {
	f := newFixture(t)
	c := newCollector()
	f.add(sensor.Barometer, c, 0, false, sensor.ModeContinuous)
	f.emit(sensor.Barometer)
	f.remove(sensor.Barometer, c)

	act, deact, reading := log.CategoryActivate, log.CategoryDeactivate, log.CategoryReading
	assert.Len(t, f.events.Events(log.Filter{Category: &act}), 1)
	assert.Len(t, f.events.Events(log.Filter{Category: &deact}), 1)
	readings := f.events.Events(log.Filter{Category: &reading})
	require.Len(t, readings, 1)
	assert.Equal(t, "test-client", readings[0].ClientID)
	assert.Contains(t, readings[0].Fields, "pressure")
}

func TestCommandQueueNeverBlocks(t *testing.T) {
	q := newCommandQueue(1)
	for i := 0; i < 1000; i++ {
		q.push(command{kind: cmdBarrier})
	}
	assert.Equal(t, 1000, q.len())
	assert.Len(t, q.drain(), 1000)
	assert.Equal(t, 0, q.len())
}

type edgeRecorder struct {
	mu    sync.Mutex
	edges []ActiveChange
	cb    *ActiveInfoCallback
}

func newEdgeRecorder() *edgeRecorder {
	r := &edgeRecorder{}
	r.cb = NewActiveInfoCallback(func(ch ActiveChange) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.edges = append(r.edges, ch)
	})
	return r
}

func (r *edgeRecorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.edges))
	for _, e := range r.edges {
		out = append(out, e.Op)
	}
	return out
}

func (r *edgeRecorder) waitOps(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.ops()) >= len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, r.ops())
}

func TestActiveInfoCallbackEdges(t *testing.T) {
	f := newFixture(t)
	rec := newEdgeRecorder()
	require.True(t, f.disp.AddActiveInfoCallback(rec.cb))
	assert.False(t, f.disp.AddActiveInfoCallback(rec.cb), "second registration is a no-op")
	ctx := context.Background()

	a, b := newCollector(), newCollector()
	f.add(sensor.Barometer, a, int64(100*time.Millisecond), true, sensor.ModeContinuous)
	f.add(sensor.Barometer, b, int64(50*time.Millisecond), true, sensor.ModeContinuous)
	f.remove(sensor.Barometer, b)
	require.NoError(t, f.disp.Suspend(ctx))
	require.NoError(t, f.disp.Resume(ctx))
	f.remove(sensor.Barometer, a)

	rec.waitOps(t, "enable", "set_period", "set_period", "suspend", "resume", "disable")

	rec.mu.Lock()
	first, last := rec.edges[0], rec.edges[len(rec.edges)-1]
	rec.mu.Unlock()
	assert.Equal(t, sensor.Barometer, first.SensorID)
	assert.True(t, first.Active)
	assert.Equal(t, 100*time.Millisecond, first.SamplingPeriod)
	assert.False(t, last.Active)

	require.True(t, f.disp.RemoveActiveInfoCallback(rec.cb))
	assert.False(t, f.disp.RemoveActiveInfoCallback(rec.cb))
	f.add(sensor.Barometer, a, 0, false, sensor.ModeContinuous)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.ops(), 6, "removed callback must not see later edges")
}

func TestStopDeliversFinalEdges(t *testing.T) {
	f := newFixture(t)
	rec := newEdgeRecorder()
	f.disp.AddActiveInfoCallback(rec.cb)
	f.add(sensor.Barometer, newCollector(), 0, false, sensor.ModeContinuous)

	require.NoError(t, f.disp.Stop())
	assert.Equal(t, []string{"enable", "stop"}, rec.ops(), "Stop returns after the stop edge is delivered")
}

func TestResetSensors(t *testing.T) {
	f := newFixture(t)
	rec := newEdgeRecorder()
	f.disp.AddActiveInfoCallback(rec.cb)
	ctx := context.Background()

	f.add(sensor.Barometer, newCollector(), int64(50*time.Millisecond), true, sensor.ModeContinuous)
	f.add(sensor.AmbientLight, newCollector(), 0, false, sensor.ModeContinuous)

	require.NoError(t, f.disp.ResetSensors(ctx))
	p, _ := f.driver.Period(sensor.Barometer)
	assert.Equal(t, DefaultInterval, p)
	p, _ = f.driver.Period(sensor.AmbientLight)
	assert.Equal(t, DefaultInterval, p)
	assert.Equal(t, 1, f.driver.Stats(sensor.Barometer).Enables, "reset keeps the sensor enabled")

	// Only the sensor whose period changed reports an edge.
	rec.waitOps(t, "enable", "enable", "reset")
	rec.mu.Lock()
	assert.Equal(t, sensor.Barometer, rec.edges[2].SensorID)
	rec.mu.Unlock()

	// A faster subscriber still lowers the period after a reset.
	f.add(sensor.Barometer, newCollector(), int64(20*time.Millisecond), true, sensor.ModeContinuous)
	p, _ = f.driver.Period(sensor.Barometer)
	assert.Equal(t, 20*time.Millisecond, p)
}

func TestResetSensorsWhileSuspended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(sensor.Barometer, newCollector(), int64(50*time.Millisecond), true, sensor.ModeContinuous)

	require.NoError(t, f.disp.Suspend(ctx))
	require.NoError(t, f.disp.ResetSensors(ctx))
	assert.False(t, f.driver.Enabled(sensor.Barometer))

	require.NoError(t, f.disp.Resume(ctx))
	p, _ := f.driver.Period(sensor.Barometer)
	assert.Equal(t, DefaultInterval, p)
}
