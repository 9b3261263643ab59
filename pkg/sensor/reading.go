package sensor

import (
	"maps"
	"slices"
	"time"
)

// Reading is one sample produced by a sensor.
type Reading struct {
	SensorID  ID
	Timestamp time.Time
	Fields    map[string]float64
}

// NewReading creates a reading that owns a copy of fields.
func NewReading(id ID, ts time.Time, fields map[string]float64) Reading {
	return Reading{SensorID: id, Timestamp: ts, Fields: maps.Clone(fields)}
}

// Field returns the value of a payload field.
func (r Reading) Field(name string) (float64, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// FieldNames returns the payload field names in sorted order.
func (r Reading) FieldNames() []string {
	return slices.Sorted(maps.Keys(r.Fields))
}

// Clone returns a deep copy.
func (r Reading) Clone() Reading {
	return NewReading(r.SensorID, r.Timestamp, r.Fields)
}
