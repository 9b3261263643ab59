package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a sensor type.
type ID int32

// String returns the upper-case sensor name, or a numeric form for IDs that
// are not in the generated table.
func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("SENSOR_%d", int32(id))
}

// Known reports whether the ID is one of the generated sensor types.
func (id ID) Known() bool {
	_, ok := idNames[id]
	return ok
}

// ParseID parses a sensor name ("BAROMETER", case-insensitive) or a decimal
// identifier ("8").
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty sensor id")
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return ID(n), nil
	}
	upper := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for id, name := range idNames {
		if name == upper {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor %q", s)
}

// Mode is the delivery mode of a subscription.
type Mode uint8

const (
	// ModeContinuous delivers every reading until the subscription is removed.
	ModeContinuous Mode = iota

	// ModeOneShot delivers a single reading, then the subscription retires.
	ModeOneShot
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "CONTINUOUS"
	case ModeOneShot:
		return "ONE_SHOT"
	default:
		return "UNKNOWN"
	}
}
