package subscription

import (
	"slices"
	"sync"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Change describes the effect of a registry mutation on one sensor.
type Change struct {
	// SensorID is the affected sensor.
	SensorID sensor.ID

	// Activated is set when the sensor went from zero to one subscription.
	Activated bool

	// Deactivated is set when the sensor's last subscription went away.
	Deactivated bool

	// Updated is set when Add modified an existing subscription.
	Updated bool

	// Remaining is the sensor's subscription count after the mutation.
	Remaining int
}

// Registry tracks the subscriptions of one client.
type Registry struct {
	mu sync.RWMutex

	config Config
	now    func() time.Time

	// Subscriptions by ID
	subscriptions map[uint32]*Subscription

	// Index by sensor, then callback
	sensorIndex map[sensor.ID]map[*Callback]*Subscription
}

// NewRegistry creates a registry with default configuration.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultConfig())
}

// NewRegistryWithConfig creates a registry with custom configuration.
func NewRegistryWithConfig(config Config) *Registry {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	return &Registry{
		config:        config,
		now:           time.Now,
		subscriptions: make(map[uint32]*Subscription),
		sensorIndex:   make(map[sensor.ID]map[*Callback]*Subscription),
	}
}

// SetClock replaces the time source used for CreatedAt.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Add registers cb for sensorID, or updates the interval and mode of the
// existing subscription for that pair.
func (r *Registry) Add(sensorID sensor.ID, cb *Callback, interval int64, hasInterval bool, mode sensor.Mode) (*Subscription, Change, error) {
	if !cb.Invocable() {
		return nil, Change{SensorID: sensorID}, ErrNotInvocable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.sensorIndex[sensorID]
	if existing, ok := subs[cb]; ok && existing.IsActive() {
		existing.update(interval, hasInterval, mode)
		return existing, Change{SensorID: sensorID, Updated: true, Remaining: len(subs)}, nil
	} else if ok {
		// Spent one-shot still indexed; drop it before re-registering.
		r.removeLocked(existing)
		subs = r.sensorIndex[sensorID]
	}

	if len(r.subscriptions) >= r.config.MaxSubscriptions {
		return nil, Change{SensorID: sensorID, Remaining: len(subs)}, ErrResourceExhausted
	}

	sub := NewSubscription(nextID(), sensorID, cb, interval, hasInterval, mode, r.now())
	r.subscriptions[sub.ID] = sub
	if subs == nil {
		subs = make(map[*Callback]*Subscription)
		r.sensorIndex[sensorID] = subs
	}
	subs[cb] = sub

	return sub, Change{SensorID: sensorID, Activated: len(subs) == 1, Remaining: len(subs)}, nil
}

// Remove deactivates and removes the subscription of cb for sensorID. A nil
// cb removes every subscription of the sensor. Removing a pair that is not
// registered is a no-op. Remove does not wait for a running invocation; use
// Subscription.WaitInvocation after it returns.
func (r *Registry) Remove(sensorID sensor.ID, cb *Callback) ([]*Subscription, Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.sensorIndex[sensorID]
	if len(subs) == 0 {
		return nil, Change{SensorID: sensorID}
	}

	var removed []*Subscription
	if cb == nil {
		removed = make([]*Subscription, 0, len(subs))
		for _, sub := range subs {
			removed = append(removed, sub)
		}
	} else if sub, ok := subs[cb]; ok {
		removed = []*Subscription{sub}
	}
	if len(removed) == 0 {
		return nil, Change{SensorID: sensorID, Remaining: len(subs)}
	}

	for _, sub := range removed {
		sub.deactivate()
		r.removeLocked(sub)
	}
	sortByID(removed)

	remaining := len(r.sensorIndex[sensorID])
	return removed, Change{SensorID: sensorID, Deactivated: remaining == 0, Remaining: remaining}
}

// Retire removes sub if it is still the registered subscription for its
// pair. Unlike Remove it does not deactivate sub, so an event already queued
// for it is still delivered.
func (r *Registry) Retire(sub *Subscription) (bool, Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.sensorIndex[sub.SensorID]
	if subs[sub.Callback] != sub {
		return false, Change{SensorID: sub.SensorID, Remaining: len(subs)}
	}
	r.removeLocked(sub)
	remaining := len(r.sensorIndex[sub.SensorID])
	return true, Change{SensorID: sub.SensorID, Deactivated: remaining == 0, Remaining: remaining}
}

// RemoveByID removes the subscription with the given ID.
func (r *Registry) RemoveByID(id uint32) (*Subscription, Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[id]
	if !ok {
		return nil, Change{}, ErrSubscriptionNotFound
	}
	sub.deactivate()
	r.removeLocked(sub)
	remaining := len(r.sensorIndex[sub.SensorID])
	return sub, Change{SensorID: sub.SensorID, Deactivated: remaining == 0, Remaining: remaining}, nil
}

func (r *Registry) removeLocked(sub *Subscription) {
	delete(r.subscriptions, sub.ID)
	subs := r.sensorIndex[sub.SensorID]
	if subs[sub.Callback] == sub {
		delete(subs, sub.Callback)
	}
	if len(subs) == 0 {
		delete(r.sensorIndex, sub.SensorID)
	}
}

// Lookup returns the subscription of cb for sensorID.
func (r *Registry) Lookup(sensorID sensor.ID, cb *Callback) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.sensorIndex[sensorID][cb]
	return sub, ok
}

// Subscribers returns a snapshot of the sensor's subscriptions ordered by ID.
func (r *Registry) Subscribers(sensorID sensor.ID) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.sensorIndex[sensorID]
	out := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub)
	}
	sortByID(out)
	return out
}

// Sensors returns the sensors with at least one subscription, sorted.
func (r *Registry) Sensors() []sensor.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sensor.ID, 0, len(r.sensorIndex))
	for id := range r.sensorIndex {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// ClearAll deactivates and removes every subscription. It returns the
// sensors that had subscriptions and the removed subscriptions.
func (r *Registry) ClearAll() ([]sensor.ID, []*Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sensors := make([]sensor.ID, 0, len(r.sensorIndex))
	for id := range r.sensorIndex {
		sensors = append(sensors, id)
	}
	slices.Sort(sensors)

	removed := make([]*Subscription, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		sub.deactivate()
		removed = append(removed, sub)
	}
	sortByID(removed)
	r.subscriptions = make(map[uint32]*Subscription)
	r.sensorIndex = make(map[sensor.ID]map[*Callback]*Subscription)
	return sensors, removed
}

// Count returns the number of registered subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}

// CountFor returns the number of subscriptions for sensorID.
func (r *Registry) CountFor(sensorID sensor.ID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensorIndex[sensorID])
}

// Get returns a subscription by ID.
func (r *Registry) Get(subscriptionID uint32) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subscriptions[subscriptionID]
	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func sortByID(subs []*Subscription) {
	slices.SortFunc(subs, func(a, b *Subscription) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
