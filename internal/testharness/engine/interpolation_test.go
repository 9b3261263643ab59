package engine

import (
	"context"
	"reflect"
	"testing"
)

// TestInterpolation_Basic tests basic variable interpolation.
func TestInterpolation_Basic(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set("sensor", "barometer")

	if got := Interpolate("Sensor: {{ sensor }}", state); got != "Sensor: barometer" {
		t.Errorf("Interpolate() = %q", got)
	}
}

// TestInterpolation_Multiple tests multiple variables in one string.
func TestInterpolation_Multiple(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set("name", "baro")
	state.Set("count", 3)
	state.Set("ratio", 0.5)
	state.Set("ok", true)

	got := Interpolate("{{name}}:{{ count }}:{{ ratio }}:{{ ok }}", state)
	if got != "baro:3:0.5:true" {
		t.Errorf("Interpolate() = %q", got)
	}
}

func TestInterpolation_Undefined(t *testing.T) {
	state := NewExecutionState(context.Background())
	for _, s := range []string{"plain", "{{ missing }}", "a {{ missing }} b", "{ not }"} {
		if got := Interpolate(s, state); got != s {
			t.Errorf("Interpolate(%q) = %q", s, got)
		}
	}
	if got := Interpolate("{{ x }}", nil); got != "{{ x }}" {
		t.Errorf("nil state changed the string: %q", got)
	}
}

// TestInterpolateParams tests type preservation and nesting.
func TestInterpolateParams(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set("interval", int64(100000000))
	state.Set("saved", map[string]any{"id": 4})

	params := map[string]any{
		"interval": "{{ interval }}",
		"label":    "every {{ interval }}ns",
		"nested":   map[string]any{"id": "{{ saved.id }}"},
		"list":     []any{"{{ interval }}", 1},
		"number":   5,
	}
	got := InterpolateParams(params, state)

	want := map[string]any{
		"interval": int64(100000000),
		"label":    "every 100000000ns",
		"nested":   map[string]any{"id": 4},
		"list":     []any{int64(100000000), 1},
		"number":   5,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InterpolateParams() = %#v", got)
	}
	if params["interval"] != "{{ interval }}" {
		t.Error("input map was modified")
	}
	if InterpolateParams(nil, state) != nil {
		t.Error("nil params should stay nil")
	}
}

func TestExecutionStateGetReference(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set("id", 9)
	if v, ok := state.Get("{{ id }}"); !ok || v != 9 {
		t.Errorf("Get reference = %v, %v", v, ok)
	}
}
