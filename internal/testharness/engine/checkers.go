package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/assertions"
)

// ToFloat64 converts various numeric types to float64 for comparison.
func ToFloat64(v any) (float64, bool) {
	return assertions.Numeric(v)
}

// fromAssertion converts an assertion result into an ExpectResult.
func fromAssertion(key string, expected, actual any, r *assertions.Result) *ExpectResult {
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   r.Passed,
		Message:  r.Message,
	}
}

func missing(key, outputKey string, expected any) *ExpectResult {
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Passed:   false,
		Message:  fmt.Sprintf("output key %q not found", outputKey),
	}
}

// CheckerValueGreaterThan checks if the "value" output is greater than expected.
func CheckerValueGreaterThan(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyValue)
	if !exists {
		return missing(key, KeyValue, expected)
	}
	return fromAssertion(key, expected, actual, assertions.GreaterThan(actual, expected))
}

// CheckerValueLessThan checks if the "value" output is less than expected.
func CheckerValueLessThan(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyValue)
	if !exists {
		return missing(key, KeyValue, expected)
	}
	return fromAssertion(key, expected, actual, assertions.LessThan(actual, expected))
}

// CheckerValueInRange checks if the "value" output is within [min, max].
// Expected should be a map with "min" and "max" keys.
func CheckerValueInRange(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyValue)
	if !exists {
		return missing(key, KeyValue, expected)
	}
	bounds, ok := expected.(map[string]any)
	if !ok {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("value_in_range expects a map with min and max, got %T", expected),
		}
	}
	return fromAssertion(key, expected, actual, assertions.InRange(actual, bounds["min"], bounds["max"]))
}

// CheckerContains checks that the "value" output (string, list or map)
// contains expected.
func CheckerContains(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyValue)
	if !exists {
		return missing(key, KeyValue, expected)
	}
	return fromAssertion(key, expected, actual, assertions.Contains(actual, expected))
}

// CheckerSaveAs stores the complete output of the current step under the
// name given as expected, for later {{ name.field }} references.
func CheckerSaveAs(key string, expected any, state *ExecutionState) *ExpectResult {
	targetKey, ok := expected.(string)
	if !ok {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("save_as target must be a string, got %T", expected),
		}
	}

	output, exists := state.Get(InternalStepOutput)
	if !exists {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  "no step output to save",
		}
	}

	state.Set(targetKey, output)
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   output,
		Passed:   true,
		Message:  fmt.Sprintf("saved step output as %q", targetKey),
	}
}

// CheckerErrorMessageContains checks that the "error" output contains the
// expected substring.
func CheckerErrorMessageContains(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyError)
	if !exists {
		return missing(key, KeyError, expected)
	}

	actualStr, ok1 := actual.(string)
	expectedStr, ok2 := expected.(string)
	if !ok1 || !ok2 {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   false,
			Message:  fmt.Sprintf("expected string types for contains check, got %T and %T", actual, expected),
		}
	}

	passed := strings.Contains(actualStr, expectedStr)
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  fmt.Sprintf("error message contains %q: %v", expectedStr, passed),
	}
}

// CheckerNoError verifies the "error" output field is absent, nil, or empty.
// Used in YAML as: no_error: true
func CheckerNoError(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyError)
	if !exists || actual == nil || actual == "" {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: true,
			Message: "no error present",
		}
	}
	return &ExpectResult{
		Key: key, Expected: expected, Actual: actual, Passed: false,
		Message: fmt.Sprintf("error present: %v", actual),
	}
}

// CheckerDurationUnder checks that the "duration" output is below the
// expected threshold ("500ms").
func CheckerDurationUnder(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get("duration")
	if !exists {
		return missing(key, "duration", expected)
	}

	threshold, err := parseDuration(expected)
	if err != nil {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("invalid threshold: %v", err),
		}
	}
	actualDur, err := parseDuration(actual)
	if err != nil {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("cannot parse actual value %v as duration", actual),
		}
	}

	r := assertions.LessThan(int64(actualDur), int64(threshold))
	return &ExpectResult{
		Key: key, Expected: expected, Actual: actual, Passed: r.Passed,
		Message: fmt.Sprintf("%v < %v = %v", actualDur, threshold, r.Passed),
	}
}

// parseDuration parses a value as time.Duration. Supports time.Duration,
// duration strings ("1000ms") and plain numbers as milliseconds.
func parseDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		return time.ParseDuration(val)
	default:
		if f, ok := ToFloat64(v); ok {
			return time.Duration(f * float64(time.Millisecond)), nil
		}
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}

// RegisterEnhancedCheckers registers the generic checkers with the engine.
func RegisterEnhancedCheckers(e *Engine) {
	e.RegisterChecker(CheckerNameValueGreaterThan, CheckerValueGreaterThan)
	e.RegisterChecker(CheckerNameValueLessThan, CheckerValueLessThan)
	e.RegisterChecker(CheckerNameValueInRange, CheckerValueInRange)
	e.RegisterChecker(CheckerNameContains, CheckerContains)
	e.RegisterChecker(CheckerNameSaveAs, CheckerSaveAs)
	e.RegisterChecker(CheckerNameErrorMessageContains, CheckerErrorMessageContains)
	e.RegisterChecker(CheckerNameNoError, CheckerNoError)
	e.RegisterChecker(CheckerNameDurationUnder, CheckerDurationUnder)
}
