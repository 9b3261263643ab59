package subscription

import (
	"fmt"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Event is what a callback receives: either a reading or an error.
type Event struct {
	SubscriptionID uint32
	SensorID       sensor.ID

	// Reading is set for data events and nil for error events.
	Reading *sensor.Reading

	// Err is set for error events.
	Err error
}

// IsError reports whether the event is error-shaped.
func (e Event) IsError() bool {
	return e.Err != nil
}

// Callback is a registered listener. Its pointer is its identity.
type Callback struct {
	name string
	fn   func(Event)
}

// NewCallback wraps fn.
func NewCallback(fn func(Event)) *Callback {
	return &Callback{fn: fn}
}

// NamedCallback wraps fn and attaches a name used in logs and dumps.
func NamedCallback(name string, fn func(Event)) *Callback {
	return &Callback{name: name, fn: fn}
}

// Invocable reports whether the callback can be called.
func (c *Callback) Invocable() bool {
	return c != nil && c.fn != nil
}

// Name returns the callback name, or its address when unnamed.
func (c *Callback) Name() string {
	if c == nil {
		return "<nil>"
	}
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("cb@%p", c)
}

// Invoke calls the wrapped function. It is a no-op for a non-invocable
// callback.
func (c *Callback) Invoke(ev Event) {
	if !c.Invocable() {
		return
	}
	c.fn(ev)
}
