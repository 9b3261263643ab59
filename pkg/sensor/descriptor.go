package sensor

import (
	"slices"
	"time"
)

// FieldRange describes the value range of one payload field. A non-zero Step
// marks the field as discrete.
type FieldRange struct {
	Name string
	Min  float64
	Max  float64
	Step float64
}

// Descriptor is the static description of one sensor.
type Descriptor struct {
	Name            string
	Vendor          string
	FirmwareVersion string
	HardwareVersion string
	ID              ID

	MaxRange  float64
	Precision float64
	Power     float64

	MinSamplePeriod time.Duration
	MaxSamplePeriod time.Duration

	// Permission is required to subscribe; empty means none.
	Permission string

	// FreezeExempt sensors keep running while the client is suspended.
	FreezeExempt bool

	Fields []string
	Ranges []FieldRange
}

// HasField reports whether the sensor reports the named field.
func (d Descriptor) HasField(name string) bool {
	return slices.Contains(d.Fields, name)
}

// Catalog is an immutable set of descriptors sorted by ID.
type Catalog struct {
	byID map[ID]Descriptor
	all  []Descriptor
}

// NewCatalog builds a catalog. Later descriptors replace earlier ones with the
// same ID.
func NewCatalog(descs ...Descriptor) *Catalog {
	c := &Catalog{byID: make(map[ID]Descriptor, len(descs))}
	for _, d := range descs {
		c.byID[d.ID] = d
	}
	c.all = make([]Descriptor, 0, len(c.byID))
	for _, d := range c.byID {
		c.all = append(c.all, d)
	}
	slices.SortFunc(c.all, func(a, b Descriptor) int { return int(a.ID) - int(b.ID) })
	return c
}

// DefaultCatalog returns a catalog containing every generated sensor type.
func DefaultCatalog() *Catalog {
	return NewCatalog(generatedDescriptors...)
}

// Lookup returns the descriptor for id.
func (c *Catalog) Lookup(id ID) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Supports reports whether the catalog holds id.
func (c *Catalog) Supports(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns the descriptors sorted by ID. The slice is a copy.
func (c *Catalog) All() []Descriptor {
	return slices.Clone(c.all)
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.all)
}

// Subset returns a catalog restricted to ids. Unknown ids are ignored.
func (c *Catalog) Subset(ids ...ID) *Catalog {
	descs := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		if d, ok := c.byID[id]; ok {
			descs = append(descs, d)
		}
	}
	return NewCatalog(descs...)
}
