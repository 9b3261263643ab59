package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// The committed catalog must be what the generator produces from the YAML.
func TestGenerateMatchesCommittedCatalog(t *testing.T) {
	cat, err := LoadCatalog("../../docs/sensors.yaml")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	code, err := Generate(cat, "docs/sensors.yaml")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want, err := os.ReadFile("../../pkg/sensor/catalog_gen.go")
	if err != nil {
		t.Fatal(err)
	}
	if normalize(code) != normalize(string(want)) {
		t.Error("pkg/sensor/catalog_gen.go is stale; rerun sensor-gen")
	}
}

const miniCatalog = `
vendor: lab
firmware_version: "2.1"
sensors:
  - const: Thermo
    id: 7
    name: THERMO
    max_range: 125
    precision: 0.5
    power: 0.01
    min_period: 250000000
    max_period: 3000000000
    permission: lab.permission.THERMO
    freeze_exempt: true
    fields:
      - {name: celsius, min: -40, max: 125}
      - {name: alarm, min: 0, max: 1, step: 1}
`

func TestGenerateMini(t *testing.T) {
	cat, err := ParseCatalog([]byte(miniCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if cat.HardwareVersion != "1.0.0" {
		t.Errorf("HardwareVersion = %q, want default 1.0.0", cat.HardwareVersion)
	}

	code, err := Generate(cat, "lab.yaml")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got := normalize(code)
	for _, want := range []string{
		"// Code generated by sensor-gen from lab.yaml. DO NOT EDIT.",
		"Thermo ID = 7",
		`Thermo: "THERMO",`,
		`Name: "thermo",`,
		`Vendor: "lab",`,
		`FirmwareVersion: "2.1",`,
		"MinSamplePeriod: 250 * time.Millisecond,",
		"MaxSamplePeriod: 3 * time.Second,",
		`Permission: "lab.permission.THERMO",`,
		"FreezeExempt: true,",
		`Fields: []string{"celsius", "alarm"},`,
		`Ranges: []FieldRange{{Name: "celsius", Min: -40, Max: 125}, {Name: "alarm", Min: 0, Max: 1, Step: 1}},`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("generated code missing %q", want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ns   int64
		want string
	}{
		{5_000_000, "5 * time.Millisecond"},
		{2_000_000_000, "2 * time.Second"},
		{1_500_000_000, "1500 * time.Millisecond"},
		{2_500, "2500"},
		{3_000, "3 * time.Microsecond"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ns); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ns, got, tt.want)
		}
	}
}

func TestParseCatalogErrors(t *testing.T) {
	base := "vendor: v\nsensors:\n"
	sensor := func(constName string, id int, name string, fields string) string {
		return "  - {const: " + constName + ", id: " + strconv.Itoa(id) + ", name: " + name +
			", min_period: 1000, max_period: 2000, fields: " + fields + "}\n"
	}
	ok := "[{name: x, min: 0, max: 1}]"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no vendor", "sensors: []\n", "vendor"},
		{"no sensors", "vendor: v\n", "no sensors"},
		{"lower const", base + sensor("thermo", 1, "THERMO", ok), "exported"},
		{"lower name", base + sensor("Thermo", 1, "thermo", ok), "upper case"},
		{"duplicate id", base + sensor("A", 1, "A", ok) + sensor("B", 1, "B", ok), "already used"},
		{"duplicate const", base + sensor("A", 1, "A", ok) + sensor("A", 2, "B", ok), "duplicate const"},
		{"no fields", base + sensor("A", 1, "A", "[]"), "no fields"},
		{"inverted range", base + sensor("A", 1, "A", "[{name: x, min: 2, max: 1}]"), "min 2 > max 1"},
		{"bad period", "vendor: v\nsensors:\n  - {const: A, id: 1, name: A, min_period: 5, max_period: 1, fields: " + ok + "}\n", "period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRunWritesFormattedFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "lab.yaml")
	if err := os.WriteFile(src, []byte(miniCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	if err := run(src, out); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "catalog_gen.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\tThermo ID = 7\n") {
		t.Errorf("formatted output missing constant:\n%s", data)
	}
}

func TestWriteFormattedKeepsBrokenOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x_gen.go")
	if err := writeFormatted(path, "package x\nfunc {"); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := os.Stat(path + ".broken"); err != nil {
		t.Errorf("broken output not kept: %v", err)
	}
}
