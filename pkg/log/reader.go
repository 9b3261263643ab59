package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for selecting events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// ClientID filters by exact client ID match.
	ClientID string

	// Category filters by event category.
	Category *Category

	// SensorID filters by sensor.
	SensorID *int32

	// SubscriptionID filters by subscription; zero matches all.
	SubscriptionID uint32

	// Operation filters by operation name.
	Operation string

	// ErrorCode filters error events by code.
	ErrorCode *int32

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.ClientID != "" && event.ClientID != f.ClientID {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.SensorID != nil && event.SensorID != *f.SensorID {
		return false
	}
	if f.SubscriptionID != 0 && event.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.Operation != "" && event.Operation != f.Operation {
		return false
	}
	if f.ErrorCode != nil && (event.Error == nil || event.Error.Code != *f.ErrorCode) {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Match reports whether event satisfies the filter.
func (f Filter) Match(event Event) bool {
	return f.matches(event)
}

// Reader streams events from a log file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that returns every event in the file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that returns events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
