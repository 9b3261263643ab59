// Package assertions provides test assertion helpers for the sensor test
// harness. Every helper returns a Result instead of failing a testing.T, so
// the engine can collect outcomes per step.
package assertions

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Result represents the outcome of an assertion.
type Result struct {
	Passed  bool
	Message string

	// Expected and Actual are reported when the assertion fails.
	Expected any
	Actual   any
}

// Pass creates a passing result.
func Pass(message string) *Result {
	return &Result{Passed: true, Message: message}
}

// Fail creates a failing result.
func Fail(message string, expected, actual any) *Result {
	return &Result{
		Passed:   false,
		Message:  message,
		Expected: expected,
		Actual:   actual,
	}
}

// Equal asserts that two values are equal.
func Equal(expected, actual any) *Result {
	if reflect.DeepEqual(expected, actual) {
		return Pass(fmt.Sprintf("values are equal: %v", expected))
	}
	return Fail("values are not equal", expected, actual)
}

// True asserts that a value is true.
func True(value bool) *Result {
	if value {
		return Pass("value is true")
	}
	return Fail("expected true", true, false)
}

// Contains asserts that a string, slice or map contains element. Maps are
// searched by key.
func Contains(container, element any) *Result {
	cv := reflect.ValueOf(container)

	switch cv.Kind() {
	case reflect.String:
		e := fmt.Sprintf("%v", element)
		if strings.Contains(cv.String(), e) {
			return Pass(fmt.Sprintf("string contains %q", e))
		}
		return Fail(fmt.Sprintf("string does not contain %q", e), e, cv.String())

	case reflect.Slice, reflect.Array:
		for i := 0; i < cv.Len(); i++ {
			if reflect.DeepEqual(cv.Index(i).Interface(), element) {
				return Pass(fmt.Sprintf("slice contains %v", element))
			}
		}
		return Fail("slice does not contain element", element, container)

	case reflect.Map:
		key := reflect.ValueOf(element)
		if key.IsValid() && key.Type().AssignableTo(cv.Type().Key()) && cv.MapIndex(key).IsValid() {
			return Pass(fmt.Sprintf("map contains key %v", element))
		}
		return Fail("map does not contain key", element, "not found")
	}
	return Fail("container must be string, slice, array, or map", "container", cv.Kind().String())
}

// Numeric converts any Go numeric type to float64.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// InRange asserts that a numeric value is within [min, max].
func InRange(value, min, max any) *Result {
	vf, vok := Numeric(value)
	lo, minok := Numeric(min)
	hi, maxok := Numeric(max)
	if !vok || !minok || !maxok {
		return Fail("values must be numeric", "[min, max]", value)
	}

	if vf >= lo && vf <= hi {
		return Pass(fmt.Sprintf("%v is in range [%v, %v]", value, min, max))
	}
	return Fail(fmt.Sprintf("%v is not in range [%v, %v]", value, min, max),
		fmt.Sprintf("[%v, %v]", min, max), value)
}

// GreaterThan asserts that value > threshold.
func GreaterThan(value, threshold any) *Result {
	vf, vok := Numeric(value)
	tf, tok := Numeric(threshold)
	if !vok || !tok {
		return Fail("values must be numeric", "> threshold", value)
	}
	if vf > tf {
		return Pass(fmt.Sprintf("%v > %v", value, threshold))
	}
	return Fail(fmt.Sprintf("%v is not greater than %v", value, threshold),
		fmt.Sprintf("> %v", threshold), value)
}

// LessThan asserts that value < threshold.
func LessThan(value, threshold any) *Result {
	vf, vok := Numeric(value)
	tf, tok := Numeric(threshold)
	if !vok || !tok {
		return Fail("values must be numeric", "< threshold", value)
	}
	if vf < tf {
		return Pass(fmt.Sprintf("%v < %v", value, threshold))
	}
	return Fail(fmt.Sprintf("%v is not less than %v", value, threshold),
		fmt.Sprintf("< %v", threshold), value)
}

// Bound selects how Count compares.
type Bound int

const (
	Exactly Bound = iota
	AtLeast
	AtMost
)

func (b Bound) String() string {
	switch b {
	case AtLeast:
		return "at least"
	case AtMost:
		return "at most"
	}
	return "exactly"
}

// Count asserts how often a callback was invoked.
func Count(calls, want int, b Bound) *Result {
	var ok bool
	switch b {
	case AtLeast:
		ok = calls >= want
	case AtMost:
		ok = calls <= want
	default:
		ok = calls == want
	}
	if ok {
		return Pass(fmt.Sprintf("invoked %d times (%s %d)", calls, b, want))
	}
	return Fail(fmt.Sprintf("invoked %d times, want %s %d", calls, b, want),
		fmt.Sprintf("%s %d", b, want), calls)
}

// Field asserts that a reading carries the named field with a finite value
// in [min, max]. Pass math.Inf for an open side.
func Field(r sensor.Reading, name string, min, max float64) *Result {
	v, ok := r.Field(name)
	if !ok {
		return Fail(fmt.Sprintf("%s reading has no field %q", r.SensorID, name), r.FieldNames(), nil)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Fail(fmt.Sprintf("field %q is not finite", name), "finite", v)
	}
	return InRange(v, min, max)
}

// CodeResult is the outcome of HasCode with the code found.
type CodeResult struct {
	*Result
	Code errcode.Code
}

// HasCode asserts that err carries the expected API code. A nil error has
// code 0, so HasCode(nil, 0) passes.
func HasCode(err error, expected errcode.Code) *CodeResult {
	actual := errcode.Of(err)
	cr := &CodeResult{Code: actual}

	if actual == expected {
		cr.Result = Pass(fmt.Sprintf("error code is %d", int32(expected)))
	} else {
		cr.Result = Fail("error code mismatch", int32(expected), int32(actual))
	}
	return cr
}

// HasMessage asserts that err carries the expected canonical message.
func HasMessage(err error, expected string) *Result {
	if err == nil {
		return Fail("expected an error", expected, nil)
	}
	msg := errcode.MessageOf(err)
	if msg == expected {
		return Pass(fmt.Sprintf("message is %q", expected))
	}
	return Fail("message mismatch", expected, msg)
}
