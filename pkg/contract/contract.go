// Package contract encodes the parameter and error-code contract of the
// sensor API and checks a client against it.
//
// The rule table lists every condition a caller can trigger together with
// the code and message it must produce, and whether the error is returned
// synchronously or delivered to the callback. Properties turns the table
// into executable checks that run against a fresh client.
package contract

import (
	"errors"
	"fmt"

	"github.com/sensorkit/sensorkit-go/pkg/errcode"
)

// Delivery describes how an error reaches the caller.
type Delivery uint8

const (
	// Sync errors are returned by the API call itself.
	Sync Delivery = iota

	// Async errors are delivered to the callback as an error event.
	Async
)

// String returns the delivery name.
func (d Delivery) String() string {
	if d == Async {
		return "async"
	}
	return "sync"
}

// Condition identifies a contract violation.
type Condition string

// Contract conditions.
const (
	UnsupportedSensor    Condition = "unsupported-sensor"
	NonInvocableCallback Condition = "non-invocable-callback"
	MalformedOptions     Condition = "malformed-options"
	PermissionMissing    Condition = "permission-missing"
	InvalidInterval      Condition = "invalid-interval"
	ServiceFailure       Condition = "service-failure"
)

// Rule binds a condition to its code and delivery path.
type Rule struct {
	Condition Condition
	Ops       []string
	Code      errcode.Code
	Delivery  Delivery
}

// Message returns the canonical message of the rule's code.
func (r Rule) Message() string {
	return r.Code.Message()
}

// Rules is the contract table.
var Rules = []Rule{
	{Condition: UnsupportedSensor, Ops: []string{"on", "once", "off", "getSingleSensor"}, Code: errcode.CodeParameterInvalid, Delivery: Sync},
	{Condition: NonInvocableCallback, Ops: []string{"on", "once", "off", "getSingleSensor"}, Code: errcode.CodeParameterInvalid, Delivery: Sync},
	{Condition: MalformedOptions, Ops: []string{"on"}, Code: errcode.CodeParameterInvalid, Delivery: Sync},
	{Condition: PermissionMissing, Ops: []string{"on", "once"}, Code: errcode.CodePermissionDenied, Delivery: Sync},
	{Condition: InvalidInterval, Ops: []string{"on"}, Code: errcode.CodeServiceException, Delivery: Async},
	{Condition: ServiceFailure, Ops: []string{"on", "once"}, Code: errcode.CodeServiceException, Delivery: Async},
}

// Lookup returns the rule for a condition.
func Lookup(c Condition) (Rule, bool) {
	for _, r := range Rules {
		if r.Condition == c {
			return r, true
		}
	}
	return Rule{}, false
}

// Violation errors.
var (
	ErrNoError      = errors.New("contract: expected an error, got none")
	ErrWrongCode    = errors.New("contract: wrong error code")
	ErrWrongMessage = errors.New("contract: wrong error message")
	ErrForeignError = errors.New("contract: error carries no code")
)

// Expect verifies that err carries code and its canonical message.
func Expect(err error, code errcode.Code) error {
	if err == nil {
		return fmt.Errorf("%w (want %d)", ErrNoError, code)
	}
	var apiErr *errcode.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrForeignError, err)
	}
	if apiErr.Code != code {
		return fmt.Errorf("%w: got %d, want %d (%v)", ErrWrongCode, apiErr.Code, code, err)
	}
	if apiErr.Message != code.Message() {
		return fmt.Errorf("%w: got %q, want %q", ErrWrongMessage, apiErr.Message, code.Message())
	}
	return nil
}

// ExpectRule verifies err against the rule for c.
func ExpectRule(err error, c Condition) error {
	r, ok := Lookup(c)
	if !ok {
		return fmt.Errorf("contract: unknown condition %q", c)
	}
	return Expect(err, r.Code)
}
