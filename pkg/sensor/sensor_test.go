package sensor

import (
	"testing"
	"time"
)

func TestIDString(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{Barometer, "BAROMETER"},
		{PedometerDetection, "PEDOMETER_DETECTION"},
		{WearDetection, "WEAR_DETECTION"},
		{ID(-1), "SENSOR_-1"},
		{ID(9999), "SENSOR_9999"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID(%d).String() = %q, want %q", int32(tt.id), got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{"BAROMETER", Barometer, false},
		{"barometer", Barometer, false},
		{"pedometer-detection", PedometerDetection, false},
		{"8", Barometer, false},
		{"-1", ID(-1), false},
		{"", 0, true},
		{"NOT_A_SENSOR", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestModeString(t *testing.T) {
	if ModeContinuous.String() != "CONTINUOUS" {
		t.Errorf("ModeContinuous = %q", ModeContinuous.String())
	}
	if ModeOneShot.String() != "ONE_SHOT" {
		t.Errorf("ModeOneShot = %q", ModeOneShot.String())
	}
	if Mode(9).String() != "UNKNOWN" {
		t.Errorf("Mode(9) = %q", Mode(9).String())
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	if c.Len() != len(idNames) {
		t.Fatalf("Len() = %d, want %d", c.Len(), len(idNames))
	}
	for id := range idNames {
		if !c.Supports(id) {
			t.Errorf("Supports(%v) = false", id)
		}
	}
	if c.Supports(ID(-1)) {
		t.Error("Supports(-1) = true, want false")
	}

	all := c.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("All() not sorted at %d: %v >= %v", i, all[i-1].ID, all[i].ID)
		}
	}

	baro, ok := c.Lookup(Barometer)
	if !ok {
		t.Fatal("Lookup(Barometer) failed")
	}
	if !baro.HasField("pressure") {
		t.Errorf("barometer fields = %v, want pressure", baro.Fields)
	}
	if baro.Permission != "" {
		t.Errorf("barometer permission = %q, want none", baro.Permission)
	}

	pd, _ := c.Lookup(PedometerDetection)
	if !pd.HasField("scalar") {
		t.Errorf("pedometer detection fields = %v, want scalar", pd.Fields)
	}
	if pd.Permission != "ohos.permission.ACTIVITY_MOTION" {
		t.Errorf("pedometer detection permission = %q", pd.Permission)
	}
	if !pd.FreezeExempt {
		t.Error("pedometer detection should be freeze exempt")
	}
}

func TestCatalogDescriptorsConsistent(t *testing.T) {
	for _, d := range DefaultCatalog().All() {
		if len(d.Fields) == 0 {
			t.Errorf("%v has no fields", d.ID)
		}
		if len(d.Fields) != len(d.Ranges) {
			t.Errorf("%v: %d fields, %d ranges", d.ID, len(d.Fields), len(d.Ranges))
		}
		if d.MinSamplePeriod <= 0 || d.MinSamplePeriod > d.MaxSamplePeriod {
			t.Errorf("%v: bad period bounds %v..%v", d.ID, d.MinSamplePeriod, d.MaxSamplePeriod)
		}
	}
}

func TestCatalogSubset(t *testing.T) {
	c := DefaultCatalog().Subset(Barometer, PedometerDetection, ID(-1))
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if c.Supports(Accelerometer) {
		t.Error("subset should not support accelerometer")
	}
}

func TestReadingClone(t *testing.T) {
	src := map[string]float64{"pressure": 1013.25}
	r := NewReading(Barometer, time.Unix(100, 0), src)

	src["pressure"] = 0
	if v, _ := r.Field("pressure"); v != 1013.25 {
		t.Errorf("reading aliased caller map: pressure = %v", v)
	}

	c := r.Clone()
	c.Fields["pressure"] = 1
	if v, _ := r.Field("pressure"); v != 1013.25 {
		t.Errorf("Clone shares fields: pressure = %v", v)
	}

	if _, ok := r.Field("missing"); ok {
		t.Error("Field(missing) ok = true")
	}
}

func TestReadingFieldNames(t *testing.T) {
	r := NewReading(Accelerometer, time.Time{}, map[string]float64{"z": 3, "x": 1, "y": 2})
	names := r.FieldNames()
	want := []string{"x", "y", "z"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("FieldNames() = %v, want %v", names, want)
		}
	}
}
