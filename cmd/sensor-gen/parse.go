package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawCatalog is the sensor catalog loaded from YAML.
type RawCatalog struct {
	Vendor          string         `yaml:"vendor"`
	FirmwareVersion string         `yaml:"firmware_version"`
	HardwareVersion string         `yaml:"hardware_version"`
	Sensors         []RawSensorDef `yaml:"sensors"`
}

// RawSensorDef is one sensor type.
type RawSensorDef struct {
	Const        string        `yaml:"const"` // Go constant name, e.g. "AmbientLight"
	ID           int32         `yaml:"id"`
	Name         string        `yaml:"name"` // upper-case type name, e.g. "AMBIENT_LIGHT"
	MaxRange     float64       `yaml:"max_range"`
	Precision    float64       `yaml:"precision"`
	Power        float64       `yaml:"power"`
	MinPeriod    int64         `yaml:"min_period"` // nanoseconds
	MaxPeriod    int64         `yaml:"max_period"` // nanoseconds
	Permission   string        `yaml:"permission"`
	FreezeExempt bool          `yaml:"freeze_exempt"`
	Fields       []RawFieldDef `yaml:"fields"`
}

// RawFieldDef is one payload field and its simulated range.
type RawFieldDef struct {
	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*RawCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates catalog YAML. Missing versions default to
// "1.0.0".
func ParseCatalog(data []byte) (*RawCatalog, error) {
	var cat RawCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if cat.FirmwareVersion == "" {
		cat.FirmwareVersion = "1.0.0"
	}
	if cat.HardwareVersion == "" {
		cat.HardwareVersion = "1.0.0"
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks the catalog for duplicates and inconsistent ranges.
func (c *RawCatalog) Validate() error {
	if c.Vendor == "" {
		return fmt.Errorf("catalog: vendor is required")
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("catalog: no sensors")
	}

	ids := make(map[int32]string)
	consts := make(map[string]bool)
	names := make(map[string]bool)
	for i, s := range c.Sensors {
		where := fmt.Sprintf("sensor %d (%s)", i, s.Name)
		switch {
		case s.Const == "" || !isExported(s.Const):
			return fmt.Errorf("%s: const %q is not an exported Go identifier", where, s.Const)
		case s.Name == "" || s.Name != strings.ToUpper(s.Name):
			return fmt.Errorf("%s: name must be upper case", where)
		case s.ID < 0:
			return fmt.Errorf("%s: negative id %d", where, s.ID)
		case s.MinPeriod <= 0 || s.MaxPeriod < s.MinPeriod:
			return fmt.Errorf("%s: invalid period range [%d, %d]", where, s.MinPeriod, s.MaxPeriod)
		case len(s.Fields) == 0:
			return fmt.Errorf("%s: no fields", where)
		}
		if other, dup := ids[s.ID]; dup {
			return fmt.Errorf("%s: id %d already used by %s", where, s.ID, other)
		}
		if consts[s.Const] {
			return fmt.Errorf("%s: duplicate const %s", where, s.Const)
		}
		if names[s.Name] {
			return fmt.Errorf("%s: duplicate name", where)
		}
		ids[s.ID], consts[s.Const], names[s.Name] = s.Name, true, true

		for _, f := range s.Fields {
			if f.Name == "" {
				return fmt.Errorf("%s: field without name", where)
			}
			if f.Min > f.Max {
				return fmt.Errorf("%s: field %s has min %v > max %v", where, f.Name, f.Min, f.Max)
			}
			if f.Step < 0 {
				return fmt.Errorf("%s: field %s has negative step", where, f.Name)
			}
		}
	}
	return nil
}

func isExported(name string) bool {
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
