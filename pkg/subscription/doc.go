// Package subscription implements the subscription registry of a sensor
// client.
//
// A subscription binds a sensor ID to a callback. It is unique per
// (sensor ID, callback) pair: registering the same pair again updates the
// requested interval and mode of the existing subscription instead of
// creating a second one.
//
// # Callback Identity
//
// Go function values are not comparable, so callbacks are wrapped with
// NewCallback. The returned *Callback is the identity used for registration
// and removal; wrapping the same function twice yields two distinct callbacks.
//
// # Modes and States
//
// Each subscription moves through
//
//	UNREGISTERED -> ACTIVE (continuous) | PENDING (one-shot) -> UNREGISTERED
//
// A continuous subscription leaves ACTIVE only when it is removed. A one-shot
// subscription leaves PENDING when its single event is accepted for delivery.
//
// # Delivery
//
// Every subscription owns an unbounded FIFO mailbox drained by its own
// goroutine, so one subscription's events are never dropped, duplicated or
// reordered, and a slow callback does not hold up other subscriptions.
// Removing a subscription marks it inactive without waiting for an
// in-flight callback; callbacks may therefore remove their own
// subscription. Once removal returns, no further callback invocation starts.
//
// # Intervals
//
// Intervals are stored as requested, in nanoseconds, including negative
// values. Whether an interval is acceptable is decided when the sensor is
// enabled, not at registration.
package subscription
