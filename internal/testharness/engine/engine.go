package engine

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/loader"
)

// Engine executes test cases.
type Engine struct {
	config   *EngineConfig
	handlers map[string]ActionHandler
	checkers map[string]ExpectChecker
	mu       sync.RWMutex
}

// New creates a new test engine with default configuration.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new test engine with the given configuration.
// The engine keeps the pointer, so hooks set on config after this call are
// honoured.
func NewWithConfig(config *EngineConfig) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		config:   config,
		handlers: make(map[string]ActionHandler),
		checkers: make(map[string]ExpectChecker),
	}

	e.RegisterChecker(CheckerNameDefault, defaultChecker)
	return e
}

// RegisterHandler registers an action handler.
func (e *Engine) RegisterHandler(action string, handler ActionHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = handler
}

// RegisterChecker registers an expectation checker.
func (e *Engine) RegisterChecker(key string, checker ExpectChecker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkers[key] = checker
}

// Actions returns the registered action names, sorted.
func (e *Engine) Actions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a single test case.
func (e *Engine) Run(ctx context.Context, tc *loader.TestCase) *TestResult {
	result := &TestResult{
		TestCase:  tc,
		StartTime: time.Now(),
	}
	finish := func() *TestResult {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result
	}

	if tc.Skip {
		result.Skipped = true
		result.SkipReason = tc.SkipReason
		if result.SkipReason == "" {
			result.SkipReason = "skipped by test definition"
		}
		return finish()
	}

	if e.config.Catalog != nil && !loader.CheckRequirements(e.config.Catalog, tc.Requires) {
		result.Skipped = true
		result.SkipReason = "required sensors not supported: " + strings.Join(tc.Requires, ", ")
		return finish()
	}

	timeout := e.config.DefaultTimeout
	if d := tc.ParsedTimeout(); d > 0 {
		timeout = d
	}

	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := NewExecutionState(testCtx)

	if e.config.SetupTest != nil {
		if err := e.config.SetupTest(testCtx, tc, state); err != nil {
			result.Error = fmt.Errorf("test setup failed: %w", err)
			return finish()
		}
	}
	if e.config.TeardownTest != nil {
		// Teardown gets a fresh context so cleanup still runs after a timeout.
		defer e.config.TeardownTest(context.WithoutCancel(ctx), tc, state)
	}

	for i := range tc.Steps {
		stepResult := e.executeStep(testCtx, &tc.Steps[i], i, state)
		result.StepResults = append(result.StepResults, stepResult)

		if !stepResult.Passed {
			result.Error = fmt.Errorf("step %d (%s): %w", i+1, tc.Steps[i].Action, stepResult.Error)
			return finish()
		}
	}

	result.Passed = true
	return finish()
}

// executeStep executes a single step.
func (e *Engine) executeStep(ctx context.Context, step *loader.Step, index int, state *ExecutionState) *StepResult {
	resolved := &loader.Step{
		Action:      step.Action,
		Params:      InterpolateParams(step.Params, state),
		Expect:      step.Expect,
		Timeout:     step.Timeout,
		Description: step.Description,
	}
	result := &StepResult{
		Step:          resolved,
		StepIndex:     index,
		ExpectResults: make(map[string]*ExpectResult),
		Output:        make(map[string]any),
	}

	startTime := time.Now()

	timeout := e.config.StepTimeout
	if step.Timeout != "" {
		if d, err := time.ParseDuration(step.Timeout); err == nil {
			timeout = d
		}
	}

	// Waiting steps need at least their own duration plus slack.
	if dur := StepDuration(resolved.Params); dur > 0 {
		if needed := dur + 5*time.Second; needed > timeout {
			timeout = needed
		}
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.mu.RLock()
	handler, exists := e.handlers[step.Action]
	e.mu.RUnlock()

	if !exists {
		result.Error = fmt.Errorf("unknown action: %s", step.Action)
		result.Duration = time.Since(startTime)
		return result
	}

	outputs, err := handler(stepCtx, resolved, state)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(startTime)
		return result
	}

	for k, v := range outputs {
		state.Set(k, v)
		result.Output[k] = v
	}
	state.Set(InternalStepOutput, maps.Clone(result.Output))

	// Expectations are checked in key order so failures are reproducible.
	result.Passed = true
	expect := InterpolateParams(step.Expect, state)
	keys := make([]string, 0, len(expect))
	for key := range expect {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		expectResult := e.checkExpectation(key, expect[key], state)
		result.ExpectResults[key] = expectResult
		if !expectResult.Passed && result.Passed {
			result.Passed = false
			result.Error = fmt.Errorf("expectation failed: %s - %s", key, expectResult.Message)
		}
	}

	result.Duration = time.Since(startTime)
	return result
}

// checkExpectation checks a single expectation.
func (e *Engine) checkExpectation(key string, expected any, state *ExecutionState) *ExpectResult {
	e.mu.RLock()
	checker, exists := e.checkers[key]
	if !exists {
		checker = e.checkers[CheckerNameDefault]
	}
	e.mu.RUnlock()

	return checker(key, expected, state)
}

// defaultChecker compares the output stored under key with expected.
func defaultChecker(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(key)
	if !exists {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("key %q not found in outputs", key),
		}
	}

	// "present" means the key exists with any value.
	if expStr, ok := expected.(string); ok && expStr == "present" {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   true,
			Message:  fmt.Sprintf("%s = %v", key, actual),
		}
	}

	if passed, msg := subsetMatchListOfMaps(expected, actual); msg != "" {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual,
			Passed: passed, Message: msg,
		}
	}

	passed := looseEqual(expected, actual)
	result := &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
	}
	if passed {
		result.Message = fmt.Sprintf("%s = %v", key, expected)
	} else {
		result.Message = fmt.Sprintf("expected %v, got %v", expected, actual)
	}
	return result
}

// looseEqual compares numbers by value and everything else by its printed
// form, so YAML ints match int32 codes and durations match their strings.
func looseEqual(expected, actual any) bool {
	if ef, ok := ToFloat64(expected); ok {
		if af, ok := ToFloat64(actual); ok {
			return ef == af
		}
	}
	return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
}

// subsetMatchListOfMaps performs subset matching when both expected and actual
// are slices of maps. If the pattern doesn't apply, it returns an empty
// message so the caller falls through to the default check.
func subsetMatchListOfMaps(expected, actual any) (bool, string) {
	expList, expOK := expected.([]any)
	if !expOK || len(expList) == 0 {
		return false, ""
	}
	hasMap := false
	for _, item := range expList {
		if _, ok := item.(map[string]any); ok {
			hasMap = true
			break
		}
	}
	if !hasMap {
		return false, ""
	}

	var actList []any
	switch a := actual.(type) {
	case []any:
		actList = a
	case []map[string]any:
		for _, m := range a {
			actList = append(actList, m)
		}
	default:
		return false, ""
	}

	if len(actList) != len(expList) {
		return false, fmt.Sprintf("expected %d items, got %d", len(expList), len(actList))
	}

	for i, expItem := range expList {
		expMap, ok := expItem.(map[string]any)
		if !ok {
			if !looseEqual(expItem, actList[i]) {
				return false, fmt.Sprintf("item[%d]: expected %v, got %v", i, expItem, actList[i])
			}
			continue
		}
		actMap, ok := actList[i].(map[string]any)
		if !ok {
			return false, fmt.Sprintf("item[%d]: expected map, got %T", i, actList[i])
		}
		for k, ev := range expMap {
			av, has := actMap[k]
			if !has {
				return false, fmt.Sprintf("item[%d]: missing key %q", i, k)
			}
			if !looseEqual(ev, av) {
				return false, fmt.Sprintf("item[%d].%s: expected %v, got %v", i, k, ev, av)
			}
		}
	}
	return true, "all expected fields match"
}

// RunSuite executes all test cases in a suite.
func (e *Engine) RunSuite(ctx context.Context, cases []*loader.TestCase) *SuiteResult {
	result := &SuiteResult{
		SuiteName: "Sensor Test Suite",
	}

	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	suiteTimeout := e.config.SuiteTimeout
	if suiteTimeout == 0 {
		var total time.Duration
		for _, tc := range cases {
			if d := tc.ParsedTimeout(); d > 0 {
				total += d
				continue
			}
			total += e.config.DefaultTimeout
		}
		suiteTimeout = total + time.Minute
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > suiteTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, suiteTimeout)
		defer cancel()
	}

	for _, tc := range cases {
		if ctx.Err() != nil {
			return result
		}

		testResult := e.Run(ctx, tc)
		result.Results = append(result.Results, testResult)

		switch {
		case testResult.Skipped:
			result.SkipCount++
		case testResult.Passed:
			result.PassCount++
		default:
			result.FailCount++
		}

		if e.config.OnTestComplete != nil {
			e.config.OnTestComplete(testResult)
		}

		if !testResult.Passed && !testResult.Skipped && e.config.StopOnFirstFailure {
			break
		}
	}

	return result
}

// StepDuration extracts an explicit wait duration from step parameters:
// "duration" as a Go duration string, or "duration_ms" in milliseconds. The
// longer of the two wins.
func StepDuration(params map[string]any) time.Duration {
	var d time.Duration
	if v, ok := params["duration"]; ok {
		if pd, err := parseDuration(v); err == nil {
			d = pd
		}
	}
	if ms, ok := params["duration_ms"]; ok {
		if f, ok := ToFloat64(ms); ok {
			if md := time.Duration(f * float64(time.Millisecond)); md > d {
				d = md
			}
		}
	}
	return d
}
