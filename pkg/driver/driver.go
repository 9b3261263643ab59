// Package driver defines the interface to the underlying sensor service.
//
// The client never talks to hardware directly. It enables a sensor when the
// first subscription for it appears, adjusts its sampling period as
// subscriptions come and go, and disables it when the last subscription is
// removed. Readings and faults flow back through a Sink.
//
// Period validation happens here, not at subscription time: a driver must
// reject a negative sampling period with an error wrapping ErrInvalidPeriod.
package driver

import (
	"errors"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Driver errors.
var (
	ErrInvalidPeriod  = errors.New("invalid sampling period")
	ErrUnsupported    = errors.New("sensor not supported")
	ErrNotEnabled     = errors.New("sensor not enabled")
	ErrAlreadyEnabled = errors.New("sensor already enabled")
)

// Fault is an asynchronous driver failure for one sensor.
type Fault struct {
	SensorID sensor.ID
	Err      error
}

// Sink receives driver output. Implementations must not block for long.
type Sink interface {
	OnReading(r sensor.Reading)
	OnFault(f Fault)
}

// SinkFuncs adapts a pair of functions to Sink. Nil members are ignored.
type SinkFuncs struct {
	Reading func(sensor.Reading)
	Fault   func(Fault)
}

// OnReading implements Sink.
func (s SinkFuncs) OnReading(r sensor.Reading) {
	if s.Reading != nil {
		s.Reading(r)
	}
}

// OnFault implements Sink.
func (s SinkFuncs) OnFault(f Fault) {
	if s.Fault != nil {
		s.Fault(f)
	}
}

// Driver is the sensor service.
type Driver interface {
	// Sensors lists the sensors the device provides.
	Sensors() []sensor.Descriptor

	// Enable starts reporting for id.
	Enable(id sensor.ID, samplingPeriod, reportDelay time.Duration) error

	// SetPeriod changes the sampling period of an enabled sensor.
	SetPeriod(id sensor.ID, samplingPeriod time.Duration) error

	// Disable stops reporting for id.
	Disable(id sensor.ID) error

	// SetSink installs the receiver for readings and faults.
	SetSink(sink Sink)
}

// ValidatePeriod returns an error wrapping ErrInvalidPeriod for negative
// periods.
func ValidatePeriod(period time.Duration) error {
	if period < 0 {
		return &PeriodError{Period: period}
	}
	return nil
}

// PeriodError reports a rejected sampling period.
type PeriodError struct {
	Period time.Duration
}

func (e *PeriodError) Error() string {
	return "invalid sampling period " + e.Period.String()
}

// Unwrap returns ErrInvalidPeriod.
func (e *PeriodError) Unwrap() error {
	return ErrInvalidPeriod
}
