package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func interval(v int64) *int64 { return &v }

func sampleEvents() []Event {
	base := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	return []Event{
		{Timestamp: base, ClientID: "c1", Category: CategorySubscribe, Operation: "on", SensorID: 8, SubscriptionID: 1, Mode: "CONTINUOUS", Interval: interval(100000000), Callback: "cb1"},
		{Timestamp: base.Add(time.Millisecond), ClientID: "c1", Category: CategoryActivate, Operation: "enable", SensorID: 8, Interval: interval(100000000)},
		{Timestamp: base.Add(2 * time.Millisecond), ClientID: "c1", Category: CategoryReading, SensorID: 8, SubscriptionID: 1, Fields: map[string]float64{"pressure": 1013.25}},
		{Timestamp: base.Add(3 * time.Millisecond), ClientID: "c2", Category: CategoryError, Operation: "on", SensorID: -1, Error: &ErrorEventData{Code: 401, Message: "The parameter invalid."}},
		{Timestamp: base.Add(4 * time.Millisecond), ClientID: "c1", Category: CategoryState, StateChange: &StateChangeEvent{Entity: StateEntityClient, OldState: "RUNNING", NewState: "SUSPENDED"}},
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	for _, e := range sampleEvents() {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("EncodeEvent(%v) failed: %v", e.Category, err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent(%v) failed: %v", e.Category, err)
		}
		if !got.Timestamp.Equal(e.Timestamp) {
			t.Errorf("%v: Timestamp = %v, want %v", e.Category, got.Timestamp, e.Timestamp)
		}
		if got.Category != e.Category || got.SensorID != e.SensorID || got.ClientID != e.ClientID {
			t.Errorf("%v: got %+v", e.Category, got)
		}
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	e := sampleEvents()[2]
	e.Fields = map[string]float64{"x": 1, "y": 2, "z": 3}
	a, _ := EncodeEvent(e)
	b, _ := EncodeEvent(e)
	if !bytes.Equal(a, b) {
		t.Error("encoding the same event twice produced different bytes")
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.slog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range sampleEvents() {
		fl.Log(e)
	}
	if fl.Count() != 5 {
		t.Errorf("Count() = %d, want 5", fl.Count())
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	fl.Log(sampleEvents()[0]) // dropped after close

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var got []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != 5 {
		t.Fatalf("read %d events, want 5", len(got))
	}
	if got[2].Fields["pressure"] != 1013.25 {
		t.Errorf("pressure = %v, want 1013.25", got[2].Fields["pressure"])
	}
	if got[3].Error == nil || got[3].Error.Code != 401 {
		t.Errorf("error event = %+v", got[3].Error)
	}
	if got[0].Interval == nil || *got[0].Interval != 100000000 {
		t.Errorf("interval = %v", got[0].Interval)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.slog")
	for i := 0; i < 2; i++ {
		fl, err := NewFileLogger(path)
		if err != nil {
			t.Fatal(err)
		}
		fl.Log(sampleEvents()[0])
		fl.Close()
	}

	r, _ := NewReader(path)
	defer r.Close()
	n := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		n++
	}
	if n != 2 {
		t.Errorf("read %d events after two sessions, want 2", n)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.slog")
	fl, _ := NewFileLogger(path)
	for _, e := range sampleEvents() {
		fl.Log(e)
	}
	fl.Close()

	sid := int32(8)
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 5},
		{"client", Filter{ClientID: "c2"}, 1},
		{"sensor", Filter{SensorID: &sid}, 3},
		{"subscription", Filter{SubscriptionID: 1}, 2},
		{"operation", Filter{Operation: "on"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			n := 0
			for {
				if _, err := r.Next(); err != nil {
					break
				}
				n++
			}
			if n != tt.want {
				t.Errorf("matched %d events, want %d", n, tt.want)
			}
		})
	}
}

func TestFilterMatch(t *testing.T) {
	events := sampleEvents()
	cat := CategoryError
	code := int32(401)
	other := int32(201)
	start := events[1].Timestamp
	end := events[3].Timestamp

	if !(Filter{Category: &cat}).Match(events[3]) {
		t.Error("category filter missed error event")
	}
	if !(Filter{ErrorCode: &code}).Match(events[3]) {
		t.Error("error code filter missed 401")
	}
	if (Filter{ErrorCode: &other}).Match(events[3]) {
		t.Error("error code filter matched wrong code")
	}
	if (Filter{ErrorCode: &code}).Match(events[0]) {
		t.Error("error code filter matched non-error event")
	}

	f := Filter{TimeStart: &start, TimeEnd: &end}
	n := 0
	for _, e := range events {
		if f.Match(e) {
			n++
		}
	}
	if n != 2 {
		t.Errorf("time window matched %d events, want 2", n)
	}
}

func TestReadAll(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, e := range sampleEvents() {
		if err := enc.Encode(e); err != nil {
			t.Fatal(err)
		}
	}
	events, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 5 {
		t.Errorf("ReadAll returned %d events, want 5", len(events))
	}

	_, err = ReadAll(bytes.NewReader([]byte{0xff, 0x00}))
	if err == nil {
		t.Error("ReadAll accepted garbage")
	}
}

func TestMultiAndMemoryLogger(t *testing.T) {
	a, b := NewMemoryLogger(), NewMemoryLogger()
	var calls int
	m := NewMultiLogger(a, nil, b, LoggerFunc(func(Event) { calls++ }))

	for _, e := range sampleEvents() {
		m.Log(e)
	}
	if a.Len() != 5 || b.Len() != 5 || calls != 5 {
		t.Errorf("a=%d b=%d func=%d, want 5 each", a.Len(), b.Len(), calls)
	}

	cat := CategoryReading
	if got := a.Events(Filter{Category: &cat}); len(got) != 1 {
		t.Errorf("Events(READING) = %d, want 1", len(got))
	}
	a.Reset()
	if a.Len() != 0 {
		t.Error("Reset did not clear events")
	}
	NoopLogger{}.Log(sampleEvents()[0])
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewSlogAdapter(logger)

	for _, e := range sampleEvents() {
		a.Log(e)
	}
	out := buf.String()
	for _, want := range []string{"category=SUBSCRIBE", "interval_ns=100000000", "fields.pressure=1013.25", "error_code=401", "level=WARN", "new_state=SUSPENDED"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q:\n%s", want, out)
		}
	}
}

func TestCategoryString(t *testing.T) {
	for c := CategorySubscribe; c <= CategoryState; c++ {
		parsed, ok := ParseCategory(c.String())
		if !ok || parsed != c {
			t.Errorf("ParseCategory(%q) = %v, %v", c.String(), parsed, ok)
		}
	}
	if Category(99).String() != "UNKNOWN" {
		t.Error("unknown category string")
	}
	if _, ok := ParseCategory("NOPE"); ok {
		t.Error("ParseCategory accepted NOPE")
	}
	if StateEntitySensor.String() != "SENSOR" {
		t.Error("StateEntitySensor string")
	}
}
