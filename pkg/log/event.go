package log

import (
	"time"
)

// Event represents one captured client event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ClientID uniquely identifies the client instance (UUID).
	ClientID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Operation is the API operation or internal step ("on", "off", "enable").
	Operation string `cbor:"4,keyasint,omitempty"`

	// SensorID is the sensor involved, if any.
	SensorID int32 `cbor:"5,keyasint,omitempty"`

	// SubscriptionID is the subscription involved, if any.
	SubscriptionID uint32 `cbor:"6,keyasint,omitempty"`

	// Mode is the subscription mode ("CONTINUOUS", "ONE_SHOT").
	Mode string `cbor:"7,keyasint,omitempty"`

	// Interval is the requested interval in nanoseconds, when one was given.
	Interval *int64 `cbor:"8,keyasint,omitempty"`

	// Fields is the reading payload for READING events.
	Fields map[string]float64 `cbor:"9,keyasint,omitempty"`

	// Callback names the callback involved.
	Callback string `cbor:"10,keyasint,omitempty"`

	// Type-specific payload.
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategorySubscribe records an accepted on/once call.
	CategorySubscribe Category = 0
	// CategoryUnsubscribe records an off call or a subscription retirement.
	CategoryUnsubscribe Category = 1
	// CategoryActivate records a driver enable or period change.
	CategoryActivate Category = 2
	// CategoryDeactivate records a driver disable.
	CategoryDeactivate Category = 3
	// CategoryReading records a reading handed to a subscription.
	CategoryReading Category = 4
	// CategoryError records an API error, synchronous or asynchronous.
	CategoryError Category = 5
	// CategoryState records a client state change.
	CategoryState Category = 6
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySubscribe:
		return "SUBSCRIBE"
	case CategoryUnsubscribe:
		return "UNSUBSCRIBE"
	case CategoryActivate:
		return "ACTIVATE"
	case CategoryDeactivate:
		return "DEACTIVATE"
	case CategoryReading:
		return "READING"
	case CategoryError:
		return "ERROR"
	case CategoryState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, bool) {
	for c := CategorySubscribe; c <= CategoryState; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// StateChangeEvent captures client and sensor lifecycle changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityClient indicates a client state change.
	StateEntityClient StateEntity = 0
	// StateEntitySensor indicates a sensor state change.
	StateEntitySensor StateEntity = 1
	// StateEntitySubscription indicates a subscription state change.
	StateEntitySubscription StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityClient:
		return "CLIENT"
	case StateEntitySensor:
		return "SENSOR"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an API error.
type ErrorEventData struct {
	// Code is the API error code.
	Code int32 `cbor:"1,keyasint"`

	// Message is the canonical message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`

	// Async marks errors delivered through a callback rather than returned.
	Async bool `cbor:"4,keyasint,omitempty"`
}
