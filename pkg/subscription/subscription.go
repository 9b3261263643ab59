package subscription

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Subscription errors.
var (
	ErrResourceExhausted    = errors.New("maximum subscriptions reached")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotInvocable         = errors.New("callback is not invocable")
)

// Default registry limits.
const (
	DefaultMaxSubscriptions = 1024
)

// State is the lifecycle state of a subscription.
type State uint8

const (
	// StateUnregistered is the state before registration and after removal
	// or one-shot delivery.
	StateUnregistered State = iota

	// StateActive is the state of a registered continuous subscription.
	StateActive

	// StatePending is the state of a one-shot subscription awaiting its event.
	StatePending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateActive:
		return "ACTIVE"
	case StatePending:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// Config holds registry configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of registered subscriptions.
	MaxSubscriptions int
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptions: DefaultMaxSubscriptions,
	}
}

// Subscription is a registered (sensor ID, callback) pair.
type Subscription struct {
	// ID is the unique subscription identifier.
	ID uint32

	// SensorID is the subscribed sensor.
	SensorID sensor.ID

	// Callback receives the events.
	Callback *Callback

	// CreatedAt is when the pair was first registered.
	CreatedAt time.Time

	interval    atomic.Int64
	hasInterval atomic.Bool
	mode        atomic.Uint32

	// removed is set by explicit removal; it stops all further invocations.
	removed atomic.Bool

	// fired is set once a one-shot subscription accepted its event, or when
	// a subscription is retired after a terminal event.
	fired atomic.Bool

	delivered atomic.Uint64

	mbox mailbox
}

// NewSubscription creates an unregistered-to-active subscription. Most
// callers go through Registry.Add instead.
func NewSubscription(id uint32, sensorID sensor.ID, cb *Callback, interval int64, hasInterval bool, mode sensor.Mode, now time.Time) *Subscription {
	s := &Subscription{
		ID:        id,
		SensorID:  sensorID,
		Callback:  cb,
		CreatedAt: now,
	}
	s.update(interval, hasInterval, mode)
	s.mbox.init(s)
	return s
}

func (s *Subscription) update(interval int64, hasInterval bool, mode sensor.Mode) {
	s.interval.Store(interval)
	s.hasInterval.Store(hasInterval)
	s.mode.Store(uint32(mode))
}

// Interval returns the requested interval in nanoseconds and whether one was
// given.
func (s *Subscription) Interval() (int64, bool) {
	return s.interval.Load(), s.hasInterval.Load()
}

// Mode returns the delivery mode.
func (s *Subscription) Mode() sensor.Mode {
	return sensor.Mode(s.mode.Load())
}

// State returns the lifecycle state.
func (s *Subscription) State() State {
	if s.removed.Load() || s.fired.Load() {
		return StateUnregistered
	}
	if s.Mode() == sensor.ModeOneShot {
		return StatePending
	}
	return StateActive
}

// IsActive reports whether the subscription can still accept events.
func (s *Subscription) IsActive() bool {
	return s.State() != StateUnregistered
}

// Delivered returns how many callback invocations completed.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Deactivate removes the subscription: queued events are discarded and no
// new invocation starts. It then waits for an invocation in progress, unless
// it is called from a callback.
func (s *Subscription) Deactivate() {
	s.deactivate()
	s.WaitInvocation()
}

// deactivate is Deactivate without the wait. The registry calls it under its
// lock.
func (s *Subscription) deactivate() {
	s.removed.Store(true)
	s.mbox.close()
}

// WaitInvocation blocks while a callback invocation of s is running. Called
// from any callback goroutine it returns at once, so a callback may remove
// itself or another subscription without deadlocking.
func (s *Subscription) WaitInvocation() {
	if inCallback() {
		return
	}
	s.mbox.waitInvocation()
}

// Deliver queues ev for the callback. A one-shot subscription accepts only
// its first event. It reports whether the event was accepted and whether the
// subscription is now spent (one-shot fired).
func (s *Subscription) Deliver(ev Event) (accepted, spent bool) {
	if s.removed.Load() {
		return false, false
	}
	if s.Mode() == sensor.ModeOneShot {
		if !s.fired.CompareAndSwap(false, true) {
			return false, true
		}
		ev.SubscriptionID = s.ID
		s.mbox.push(ev, true)
		return true, true
	}
	if s.fired.Load() {
		return false, true
	}
	ev.SubscriptionID = s.ID
	return s.mbox.push(ev, false), false
}

// DeliverFinal queues ev as the last event of the subscription, whatever its
// mode. Later events are refused.
func (s *Subscription) DeliverFinal(ev Event) bool {
	if s.removed.Load() || !s.fired.CompareAndSwap(false, true) {
		return false
	}
	ev.SubscriptionID = s.ID
	return s.mbox.push(ev, true)
}

// Idle blocks until the mailbox is empty and no invocation is running, or the
// timeout elapses. It reports whether the subscription went idle.
func (s *Subscription) Idle(timeout time.Duration) bool {
	return s.mbox.waitIdle(timeout)
}

func (s *Subscription) invoke(ev Event) {
	s.Callback.Invoke(ev)
	s.delivered.Add(1)
}

// mailbox is an unbounded FIFO with a lazily started drain goroutine.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	owner   *Subscription
	queue   []Event
	closed  bool
	running bool
	busy    bool
}

func (m *mailbox) init(owner *Subscription) {
	m.owner = owner
	m.cond = sync.NewCond(&m.mu)
}

// push appends ev. When last is set the mailbox closes after ev.
func (m *mailbox) push(ev Event, last bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.queue = append(m.queue, ev)
	if last {
		m.closed = true
	}
	if !m.running {
		m.running = true
		go m.drain()
	}
	m.cond.Broadcast()
	return true
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.owner.removed.Load() {
		m.queue = nil
	}
	m.cond.Broadcast()
}

func (m *mailbox) drain() {
	gid := enterCallbackGoroutine()
	defer leaveCallbackGoroutine(gid)

	m.mu.Lock()
	for {
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 {
			m.running = false
			m.cond.Broadcast()
			m.mu.Unlock()
			return
		}
		ev := m.queue[0]
		m.queue[0] = Event{}
		m.queue = m.queue[1:]
		// removed is checked under mu so an invocation either starts before
		// deactivate's close or not at all.
		if m.owner.removed.Load() {
			continue
		}
		m.busy = true
		m.mu.Unlock()

		m.owner.invoke(ev)

		m.mu.Lock()
		m.busy = false
		m.cond.Broadcast()
	}
}

func (m *mailbox) waitInvocation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.busy {
		m.cond.Wait()
	}
}

func (m *mailbox) waitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) > 0 || m.busy {
		if !time.Now().Before(deadline) {
			return false
		}
		m.cond.Wait()
	}
	return true
}

// idGenerator generates unique subscription IDs.
var idGenerator atomic.Uint32

// nextID returns the next unique subscription ID.
func nextID() uint32 {
	return idGenerator.Add(1)
}
