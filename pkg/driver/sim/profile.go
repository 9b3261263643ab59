package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Profile describes a simulated device.
type Profile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Vendor      string   `yaml:"vendor,omitempty"`
	Sensors     []string `yaml:"sensors"`
}

// LoadProfile reads a device profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses a device profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if _, err := p.Catalog(); err != nil {
		return nil, err
	}
	return &p, nil
}

// IDs resolves the profile's sensor names.
func (p *Profile) IDs() ([]sensor.ID, error) {
	ids := make([]sensor.ID, 0, len(p.Sensors))
	for _, name := range p.Sensors {
		id, err := sensor.ParseID(name)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		if !id.Known() {
			return nil, fmt.Errorf("profile %q: unknown sensor %s", p.Name, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Catalog returns the catalog of the profiled device. A profile without
// sensors describes a device with every known sensor.
func (p *Profile) Catalog() (*sensor.Catalog, error) {
	if len(p.Sensors) == 0 {
		return p.withVendor(sensor.DefaultCatalog()), nil
	}
	ids, err := p.IDs()
	if err != nil {
		return nil, err
	}
	return p.withVendor(sensor.DefaultCatalog().Subset(ids...)), nil
}

func (p *Profile) withVendor(c *sensor.Catalog) *sensor.Catalog {
	if p.Vendor == "" {
		return c
	}
	descs := c.All()
	for i := range descs {
		descs[i].Vendor = p.Vendor
	}
	return sensor.NewCatalog(descs...)
}
