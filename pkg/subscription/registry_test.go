package subscription

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

func noop() *Callback { return NewCallback(func(Event) {}) }

func TestRegistryAddActivationEdge(t *testing.T) {
	r := NewRegistry()
	cb1, cb2 := noop(), noop()

	sub1, ch, err := r.Add(sensor.Barometer, cb1, 100000000, true, sensor.ModeContinuous)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !ch.Activated || ch.Remaining != 1 {
		t.Errorf("first Add change = %+v, want Activated with 1 remaining", ch)
	}

	sub2, ch, _ := r.Add(sensor.Barometer, cb2, 0, false, sensor.ModeContinuous)
	if ch.Activated {
		t.Error("second subscriber reported activation")
	}
	if sub1.ID == sub2.ID {
		t.Error("distinct callbacks share a subscription")
	}
	if r.CountFor(sensor.Barometer) != 2 {
		t.Errorf("CountFor = %d, want 2", r.CountFor(sensor.Barometer))
	}
}

func TestRegistryReRegisterReplacesInterval(t *testing.T) {
	r := NewRegistry()
	cb := noop()

	first, _, _ := r.Add(sensor.Barometer, cb, 100000000, true, sensor.ModeContinuous)
	second, ch, err := r.Add(sensor.Barometer, cb, 50000000, true, sensor.ModeContinuous)
	if err != nil {
		t.Fatalf("re-Add failed: %v", err)
	}
	if first != second {
		t.Error("re-registering the same pair created a new subscription")
	}
	if !ch.Updated {
		t.Error("Change.Updated = false on re-register")
	}
	if iv, _ := second.Interval(); iv != 50000000 {
		t.Errorf("Interval() = %d, want 50000000", iv)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryRemoveSpecific(t *testing.T) {
	r := NewRegistry()
	cb1, cb2 := noop(), noop()
	sub1, _, _ := r.Add(sensor.Barometer, cb1, 0, false, sensor.ModeContinuous)
	sub2, _, _ := r.Add(sensor.Barometer, cb2, 0, false, sensor.ModeContinuous)

	removed, ch := r.Remove(sensor.Barometer, cb1)
	if len(removed) != 1 || removed[0] != sub1 {
		t.Fatalf("Remove returned %v, want [sub1]", removed)
	}
	if ch.Deactivated {
		t.Error("Deactivated with a subscriber left")
	}
	if sub1.IsActive() {
		t.Error("removed subscription still active")
	}
	if !sub2.IsActive() {
		t.Error("unrelated subscription deactivated")
	}

	_, ch = r.Remove(sensor.Barometer, cb2)
	if !ch.Deactivated {
		t.Error("removing the last subscriber did not report deactivation")
	}
}

func TestRegistryRemoveAll(t *testing.T) {
	r := NewRegistry()
	r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)
	r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)
	r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeOneShot)
	other, _, _ := r.Add(sensor.Pedometer, noop(), 0, false, sensor.ModeContinuous)

	removed, ch := r.Remove(sensor.Barometer, nil)
	if len(removed) != 3 {
		t.Errorf("removed %d subscriptions, want 3", len(removed))
	}
	if !ch.Deactivated {
		t.Error("Remove(nil) did not report deactivation")
	}
	if r.CountFor(sensor.Barometer) != 0 {
		t.Errorf("CountFor = %d after Remove(nil)", r.CountFor(sensor.Barometer))
	}
	if !other.IsActive() || r.Count() != 1 {
		t.Error("Remove(nil) touched another sensor")
	}
}

func TestRegistryRemoveMissingIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)

	removed, ch := r.Remove(sensor.Barometer, noop())
	if len(removed) != 0 || ch.Deactivated {
		t.Errorf("Remove(unknown cb) = %v, %+v; want no-op", removed, ch)
	}
	removed, _ = r.Remove(sensor.Pedometer, nil)
	if len(removed) != 0 {
		t.Error("Remove on sensor without subscriptions returned entries")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryRetire(t *testing.T) {
	r := NewRegistry()
	cb := noop()
	sub, _, _ := r.Add(sensor.Barometer, cb, 0, false, sensor.ModeOneShot)

	sub.Deliver(Event{})
	ok, ch := r.Retire(sub)
	if !ok || !ch.Deactivated {
		t.Errorf("Retire = %v, %+v; want true, deactivated", ok, ch)
	}
	if ok, _ := r.Retire(sub); ok {
		t.Error("second Retire succeeded")
	}
	if _, err := r.Get(sub.ID); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Get after Retire err = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestRegistryReRegisterAfterOneShotFired(t *testing.T) {
	r := NewRegistry()
	cb := noop()
	first, _, _ := r.Add(sensor.Barometer, cb, 0, false, sensor.ModeOneShot)
	first.Deliver(Event{})

	second, ch, err := r.Add(sensor.Barometer, cb, 0, false, sensor.ModeOneShot)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if second == first {
		t.Error("spent one-shot was reused")
	}
	if second.State() != StatePending {
		t.Errorf("State() = %v, want PENDING", second.State())
	}
	if ch.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", ch.Remaining)
	}
}

func TestRegistryRejectsNonInvocable(t *testing.T) {
	r := NewRegistry()
	if _, _, err := r.Add(sensor.Barometer, nil, 0, false, sensor.ModeContinuous); !errors.Is(err, ErrNotInvocable) {
		t.Errorf("Add(nil cb) err = %v, want ErrNotInvocable", err)
	}
	if _, _, err := r.Add(sensor.Barometer, NewCallback(nil), 0, false, sensor.ModeContinuous); !errors.Is(err, ErrNotInvocable) {
		t.Errorf("Add(nil fn) err = %v, want ErrNotInvocable", err)
	}
}

func TestRegistryResourceExhausted(t *testing.T) {
	r := NewRegistryWithConfig(Config{MaxSubscriptions: 2})
	r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)
	r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)

	if _, _, err := r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("err = %v, want ErrResourceExhausted", err)
	}
}

func TestRegistrySnapshots(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })

	a, _, _ := r.Add(sensor.Pedometer, noop(), 0, false, sensor.ModeContinuous)
	b, _, _ := r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)
	c, _, _ := r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeOneShot)

	if !a.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, now)
	}

	sensors := r.Sensors()
	if len(sensors) != 2 || sensors[0] != sensor.Barometer || sensors[1] != sensor.Pedometer {
		t.Errorf("Sensors() = %v", sensors)
	}

	subs := r.Subscribers(sensor.Barometer)
	if len(subs) != 2 || subs[0] != b || subs[1] != c {
		t.Errorf("Subscribers() = %v, want [b c]", subs)
	}

	if got, ok := r.Lookup(sensor.Barometer, c.Callback); !ok || got != c {
		t.Error("Lookup failed")
	}

	cleared, subs := r.ClearAll()
	if len(cleared) != 2 || len(subs) != 3 || r.Count() != 0 {
		t.Errorf("ClearAll = %v, %d subscriptions, Count = %d", cleared, len(subs), r.Count())
	}
	if a.IsActive() || b.IsActive() || c.IsActive() {
		t.Error("ClearAll left subscriptions active")
	}
}

func TestRegistryRemoveByID(t *testing.T) {
	r := NewRegistry()
	sub, _, _ := r.Add(sensor.Barometer, noop(), 0, false, sensor.ModeContinuous)

	got, ch, err := r.RemoveByID(sub.ID)
	if err != nil || got != sub || !ch.Deactivated {
		t.Errorf("RemoveByID = %v, %+v, %v", got, ch, err)
	}
	if _, _, err := r.RemoveByID(sub.ID); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("second RemoveByID err = %v", err)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb := noop()
			for j := 0; j < 20; j++ {
				r.Add(sensor.Barometer, cb, int64(j), true, sensor.ModeContinuous)
				_ = r.Subscribers(sensor.Barometer)
				r.Remove(sensor.Barometer, cb)
			}
		}()
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}
