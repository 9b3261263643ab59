// Package engine provides test execution orchestration for the sensor test
// harness.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/loader"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// TestResult represents the outcome of a single test case.
type TestResult struct {
	// TestCase is the test case that was executed.
	TestCase *loader.TestCase

	// Passed indicates if all steps passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	// StepResults contains results for each step.
	StepResults []*StepResult

	// Duration is how long the test took.
	Duration time.Duration

	StartTime time.Time
	EndTime   time.Time

	// Skipped indicates if the test was skipped (e.g., unsupported sensor).
	Skipped bool

	// SkipReason explains why the test was skipped.
	SkipReason string
}

// StepResult represents the outcome of a single step.
type StepResult struct {
	// Step is the step that was executed, with parameters interpolated.
	Step *loader.Step

	// StepIndex is the index of this step (0-based).
	StepIndex int

	// Passed indicates if the step passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	// ExpectResults maps expectation keys to their assertion results.
	ExpectResults map[string]*ExpectResult

	// Duration is how long the step took.
	Duration time.Duration

	// Output contains any captured output from the step.
	Output map[string]any
}

// ExpectResult represents the result of checking an expectation.
type ExpectResult struct {
	// Key is the expectation key (e.g., "error_code").
	Key string

	Expected any
	Actual   any

	// Passed indicates if the expectation was met.
	Passed bool

	// Message describes the result.
	Message string
}

// SuiteResult represents the outcome of running a test suite.
type SuiteResult struct {
	// SuiteName identifies the test suite.
	SuiteName string

	// Results contains results for each test case.
	Results []*TestResult

	PassCount int
	FailCount int
	SkipCount int

	// Duration is the total time for all tests.
	Duration time.Duration
}

// Passed reports whether no test failed.
func (s *SuiteResult) Passed() bool {
	return s.FailCount == 0
}

// ActionHandler processes a test step action.
// Returns outputs to make available for subsequent steps, and an error if the action failed.
type ActionHandler func(ctx context.Context, step *loader.Step, state *ExecutionState) (map[string]any, error)

// ExpectChecker checks an expectation against actual results.
type ExpectChecker func(key string, expected any, state *ExecutionState) *ExpectResult

// ExecutionState holds state during test execution.
type ExecutionState struct {
	// Outputs accumulated from previous steps.
	Outputs map[string]any

	// Context for cancellation.
	Context context.Context

	// Custom state that handlers can use, e.g. the client under test.
	Custom map[string]any
}

// NewExecutionState creates a new execution state.
func NewExecutionState(ctx context.Context) *ExecutionState {
	return &ExecutionState{
		Outputs: make(map[string]any),
		Custom:  make(map[string]any),
		Context: ctx,
	}
}

// Get retrieves a value from outputs. A "{{ key }}" reference is resolved
// like the plain key.
func (s *ExecutionState) Get(key string) (any, bool) {
	if strings.HasPrefix(key, "{{") && strings.HasSuffix(key, "}}") && len(key) > 4 {
		key = strings.TrimSpace(key[2 : len(key)-2])
	}
	v, ok := s.Outputs[key]
	return v, ok
}

// Set stores a value in outputs.
func (s *ExecutionState) Set(key string, value any) {
	s.Outputs[key] = value
}

// EngineConfig configures the test engine.
type EngineConfig struct {
	// DefaultTimeout is the default timeout for test cases.
	DefaultTimeout time.Duration

	// StepTimeout is the default timeout for individual steps.
	StepTimeout time.Duration

	// SuiteTimeout bounds a whole suite run. Zero derives it from the test
	// timeouts.
	SuiteTimeout time.Duration

	// StopOnFirstFailure stops execution after the first test failure.
	StopOnFirstFailure bool

	// Catalog is the device under test. Cases requiring a sensor it does not
	// support are skipped. Nil runs every case.
	Catalog *sensor.Catalog

	// SetupTest runs before the first step of every case.
	SetupTest func(ctx context.Context, tc *loader.TestCase, state *ExecutionState) error

	// TeardownTest runs after the last step of every case that was set up.
	TeardownTest func(ctx context.Context, tc *loader.TestCase, state *ExecutionState)

	// OnTestComplete is called as each case finishes.
	OnTestComplete func(result *TestResult)
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		DefaultTimeout: 30 * time.Second,
		StepTimeout:    10 * time.Second,
	}
}
