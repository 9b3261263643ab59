package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
	"github.com/sensorkit/sensorkit-go/internal/testharness/loader"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

func static(out map[string]any) engine.ActionHandler {
	return func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		return out, nil
	}
}

// TestEngineBasic tests basic engine functionality.
func TestEngineBasic(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("on", static(map[string]any{"error_code": int32(0)}))

	tc := &loader.TestCase{
		ID: "TC-001",
		Steps: []loader.Step{
			{Action: "on", Expect: map[string]any{"error_code": 0}},
		},
	}

	result := e.Run(context.Background(), tc)
	if !result.Passed {
		t.Errorf("Test should pass, error: %v", result.Error)
	}
	if len(result.StepResults) != 1 {
		t.Errorf("Expected 1 step result, got %d", len(result.StepResults))
	}
}

// TestEngineSteps tests sequential step execution and output sharing.
func TestEngineSteps(t *testing.T) {
	e := engine.New()

	var order []int
	e.RegisterHandler("one", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		order = append(order, 1)
		return map[string]any{"sub_id": 7}, nil
	})
	e.RegisterHandler("two", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		order = append(order, 2)
		if step.Params["id"] != 7 {
			return nil, errors.New("id was not interpolated with its type")
		}
		if step.Params["label"] != "sub-7" {
			return nil, errors.New("label was not interpolated")
		}
		return nil, nil
	})

	tc := &loader.TestCase{
		ID: "TC-STEPS",
		Steps: []loader.Step{
			{Action: "one"},
			{Action: "two", Params: map[string]any{"id": "{{ sub_id }}", "label": "sub-{{ sub_id }}"}},
		},
	}

	result := e.Run(context.Background(), tc)
	if !result.Passed {
		t.Fatalf("Test should pass, error: %v", result.Error)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("unexpected order %v", order)
	}
	// The original step is left untouched.
	if tc.Steps[1].Params["id"] != "{{ sub_id }}" {
		t.Error("interpolation modified the test case")
	}
}

// TestEngineStopsAtFailingStep tests that later steps are not run.
func TestEngineStopsAtFailingStep(t *testing.T) {
	e := engine.New()
	ran := false
	e.RegisterHandler("fail", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		return nil, errors.New("boom")
	})
	e.RegisterHandler("after", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		ran = true
		return nil, nil
	})

	result := e.Run(context.Background(), &loader.TestCase{
		ID:    "TC-FAIL",
		Steps: []loader.Step{{Action: "fail"}, {Action: "after"}},
	})
	if result.Passed {
		t.Fatal("Test should fail")
	}
	if ran {
		t.Error("step after failure must not run")
	}
	if !strings.Contains(result.Error.Error(), "step 1 (fail): boom") {
		t.Errorf("unexpected error: %v", result.Error)
	}
}

func TestEngineExpectationFailure(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("on", static(map[string]any{"error_code": int32(401)}))

	result := e.Run(context.Background(), &loader.TestCase{
		ID:    "TC-EXP",
		Steps: []loader.Step{{Action: "on", Expect: map[string]any{"error_code": 0}}},
	})
	if result.Passed {
		t.Fatal("Test should fail")
	}
	er := result.StepResults[0].ExpectResults["error_code"]
	if er == nil || er.Passed {
		t.Fatalf("expected failing expectation, got %+v", er)
	}
	if er.Message != "expected 0, got 401" {
		t.Errorf("unexpected message %q", er.Message)
	}
}

func TestEngineUnknownAction(t *testing.T) {
	e := engine.New()
	result := e.Run(context.Background(), &loader.TestCase{
		ID:    "TC-UNKNOWN",
		Steps: []loader.Step{{Action: "teleport"}},
	})
	if result.Passed || !strings.Contains(result.Error.Error(), "unknown action: teleport") {
		t.Errorf("unexpected result: %v", result.Error)
	}
}

// TestEngineSkip tests explicit skips and unsupported sensor requirements.
func TestEngineSkip(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Catalog = sensor.DefaultCatalog().Subset(sensor.Barometer)
	e := engine.NewWithConfig(cfg)
	e.RegisterHandler("on", static(nil))

	r := e.Run(context.Background(), &loader.TestCase{ID: "A", Skip: true, Steps: []loader.Step{{Action: "on"}}})
	if !r.Skipped || r.SkipReason != "skipped by test definition" {
		t.Errorf("explicit skip: %+v", r)
	}

	r = e.Run(context.Background(), &loader.TestCase{ID: "B", Requires: []string{"pedometer"}, Steps: []loader.Step{{Action: "on"}}})
	if !r.Skipped || !strings.Contains(r.SkipReason, "pedometer") {
		t.Errorf("requirement skip: %+v", r)
	}

	r = e.Run(context.Background(), &loader.TestCase{ID: "C", Requires: []string{"barometer"}, Steps: []loader.Step{{Action: "on"}}})
	if r.Skipped || !r.Passed {
		t.Errorf("supported sensor should run: %+v", r)
	}
}

// TestEngineSetupTeardown tests the per-test hooks.
func TestEngineSetupTeardown(t *testing.T) {
	cfg := engine.DefaultConfig()
	var teardowns int
	cfg.SetupTest = func(ctx context.Context, tc *loader.TestCase, state *engine.ExecutionState) error {
		if tc.ID == "BAD" {
			return errors.New("no device")
		}
		state.Custom["client"] = "ready"
		return nil
	}
	cfg.TeardownTest = func(ctx context.Context, tc *loader.TestCase, state *engine.ExecutionState) {
		if ctx.Err() != nil {
			t.Error("teardown context must not be cancelled")
		}
		teardowns++
	}
	e := engine.NewWithConfig(cfg)
	e.RegisterHandler("check", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		return map[string]any{"client": state.Custom["client"]}, nil
	})

	r := e.Run(context.Background(), &loader.TestCase{ID: "OK", Steps: []loader.Step{{Action: "check", Expect: map[string]any{"client": "ready"}}}})
	if !r.Passed {
		t.Errorf("expected pass: %v", r.Error)
	}

	r = e.Run(context.Background(), &loader.TestCase{ID: "BAD", Steps: []loader.Step{{Action: "check"}}})
	if r.Passed || !strings.Contains(r.Error.Error(), "test setup failed") {
		t.Errorf("expected setup failure: %v", r.Error)
	}
	if teardowns != 1 {
		t.Errorf("teardown should run only for set up tests, ran %d", teardowns)
	}
}

// TestEngineTimeout tests that a test timeout cancels the step context.
func TestEngineTimeout(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("block", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	r := e.Run(context.Background(), &loader.TestCase{ID: "T", Timeout: "50ms", Steps: []loader.Step{{Action: "block"}}})
	if r.Passed {
		t.Fatal("expected timeout failure")
	}
	if !errors.Is(r.Error, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", r.Error)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not honoured")
	}
}

// TestEngineRunSuite tests counting and stop on first failure.
func TestEngineRunSuite(t *testing.T) {
	cfg := engine.DefaultConfig()
	var completed []string
	cfg.OnTestComplete = func(r *engine.TestResult) { completed = append(completed, r.TestCase.ID) }
	e := engine.NewWithConfig(cfg)
	e.RegisterHandler("pass", static(nil))
	e.RegisterHandler("fail", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
		return nil, errors.New("nope")
	})

	cases := []*loader.TestCase{
		{ID: "1", Steps: []loader.Step{{Action: "pass"}}},
		{ID: "2", Skip: true, Steps: []loader.Step{{Action: "pass"}}},
		{ID: "3", Steps: []loader.Step{{Action: "fail"}}},
		{ID: "4", Steps: []loader.Step{{Action: "pass"}}},
	}

	s := e.RunSuite(context.Background(), cases)
	if s.PassCount != 2 || s.FailCount != 1 || s.SkipCount != 1 || s.Passed() {
		t.Errorf("unexpected counts: pass=%d fail=%d skip=%d", s.PassCount, s.FailCount, s.SkipCount)
	}
	if strings.Join(completed, ",") != "1,2,3,4" {
		t.Errorf("OnTestComplete order: %v", completed)
	}

	cfg.StopOnFirstFailure = true
	s = e.RunSuite(context.Background(), cases)
	if len(s.Results) != 3 {
		t.Errorf("expected stop after third case, ran %d", len(s.Results))
	}
}

func TestEngineActions(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("wait", static(nil))
	e.RegisterHandler("on", static(nil))
	if got := strings.Join(e.Actions(), ","); got != "on,wait" {
		t.Errorf("Actions() = %s", got)
	}
}

func TestStepDuration(t *testing.T) {
	tests := []struct {
		params map[string]any
		want   time.Duration
	}{
		{nil, 0},
		{map[string]any{"duration": "250ms"}, 250 * time.Millisecond},
		{map[string]any{"duration_ms": 100}, 100 * time.Millisecond},
		{map[string]any{"duration": "1s", "duration_ms": 2000}, 2 * time.Second},
		{map[string]any{"duration": "soon"}, 0},
	}
	for _, tt := range tests {
		if got := engine.StepDuration(tt.params); got != tt.want {
			t.Errorf("StepDuration(%v) = %v, want %v", tt.params, got, tt.want)
		}
	}
}
