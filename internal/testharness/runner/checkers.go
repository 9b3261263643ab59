package runner

import (
	"fmt"
	"math"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/assertions"
	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
	"github.com/sensorkit/sensorkit-go/pkg/contract"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
)

func (r *Runner) registerCheckers() {
	r.engine.RegisterChecker(CheckerErrorCode, checkErrorCode)
	r.engine.RegisterChecker(CheckerErrorMessage, checkErrorMessage)
	r.engine.RegisterChecker(CheckerCallbackCount, checkCallbackCount)
	r.engine.RegisterChecker(CheckerMinCallbackCount, checkCallbackCount)
	r.engine.RegisterChecker(CheckerMaxCallbackCount, checkCallbackCount)
	r.engine.RegisterChecker(CheckerFieldNumeric, checkFieldNumeric)
	r.engine.RegisterChecker(CheckerAsyncErrorCode, checkAsyncErrorCode)
	r.engine.RegisterChecker(CheckerActiveSensorCount, checkActiveSensorCount)
	r.engine.RegisterChecker(CheckerActiveEdges, checkActiveEdges)
}

func result(key string, expected, actual any, r *assertions.Result) *engine.ExpectResult {
	return &engine.ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   r.Passed,
		Message:  r.Message,
	}
}

func failed(key string, expected any, format string, args ...any) *engine.ExpectResult {
	return &engine.ExpectResult{
		Key:      key,
		Expected: expected,
		Passed:   false,
		Message:  fmt.Sprintf(format, args...),
	}
}

func toCode(v any) (errcode.Code, bool) {
	n, ok := engine.ToFloat64(v)
	if !ok || n != float64(int32(n)) {
		return 0, false
	}
	return errcode.Code(int32(n)), true
}

func lastError(state *engine.ExecutionState) error {
	err, _ := state.Custom[customLastError].(error)
	return err
}

// checkErrorCode compares the code of the last synchronous API error. 0
// expects success.
func checkErrorCode(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	want, ok := toCode(expected)
	if !ok {
		return failed(key, expected, "expected an integer error code, got %T", expected)
	}
	cr := assertions.HasCode(lastError(state), want)
	return result(key, expected, int32(cr.Code), cr.Result)
}

func checkErrorMessage(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	want, ok := expected.(string)
	if !ok {
		return failed(key, expected, "expected a message string, got %T", expected)
	}
	err := lastError(state)
	return result(key, expected, errcode.MessageOf(err), assertions.HasMessage(err, want))
}

// countSpec reads the expectation of the count checkers. It is either a
// number, applied to the callback of the last subscribing step, or a map of
// callback name to number.
func countSpec(expected any, state *engine.ExecutionState) (map[string]int, error) {
	if n, ok := engine.ToFloat64(expected); ok {
		name, _ := state.Custom[customLastCallback].(string)
		if name == "" {
			name = DefaultCallback
		}
		return map[string]int{name: int(n)}, nil
	}
	m, ok := expected.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a count or a map of callback counts, got %T", expected)
	}
	out := make(map[string]int, len(m))
	for name, v := range m {
		n, ok := engine.ToFloat64(v)
		if !ok {
			return nil, fmt.Errorf("count for %q is not a number: %v", name, v)
		}
		out[name] = int(n)
	}
	return out, nil
}

// checkCallbackCount serves callback_count, min_callback_count and
// max_callback_count. Pending deliveries are settled before counting.
func checkCallbackCount(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	sess, err := sessionFrom(state)
	if err != nil {
		return failed(key, expected, "%v", err)
	}
	spec, err := countSpec(expected, state)
	if err != nil {
		return failed(key, expected, "%v", err)
	}
	if err := sess.settle(state.Context); err != nil {
		return failed(key, expected, "settle: %v", err)
	}

	bound := countBound(key)
	actual := make(map[string]int, len(spec))
	for name, want := range spec {
		calls := 0
		if p, ok := sess.lookupRecorder(name); ok {
			calls = p.Calls()
		}
		actual[name] = calls

		if r := assertions.Count(calls, want, bound); !r.Passed {
			return result(key, expected, calls, &assertions.Result{
				Message: fmt.Sprintf("callback %q %s", name, r.Message),
			})
		}
	}
	return result(key, expected, actual, assertions.Pass(fmt.Sprintf("callback counts %v", actual)))
}

func countBound(key string) assertions.Bound {
	switch key {
	case CheckerMinCallbackCount:
		return assertions.AtLeast
	case CheckerMaxCallbackCount:
		return assertions.AtMost
	}
	return assertions.Exactly
}

// checkFieldNumeric checks a payload field of every reading a callback
// received. Expected is a map with "field" and any of "min", "max" and
// "greater_than"; "callback" defaults to the last subscribing callback.
func checkFieldNumeric(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	sess, err := sessionFrom(state)
	if err != nil {
		return failed(key, expected, "%v", err)
	}
	spec, ok := expected.(map[string]any)
	if !ok {
		return failed(key, expected, "expected a map, got %T", expected)
	}
	field, _ := spec["field"].(string)
	if field == "" {
		return failed(key, expected, "missing field name")
	}
	name, _ := spec["callback"].(string)
	if name == "" {
		name, _ = state.Custom[customLastCallback].(string)
	}
	if name == "" {
		name = DefaultCallback
	}

	if err := sess.settle(state.Context); err != nil {
		return failed(key, expected, "settle: %v", err)
	}
	p, ok := sess.lookupRecorder(name)
	if !ok {
		return failed(key, expected, "unknown callback %q", name)
	}
	readings := p.Readings()
	if len(readings) == 0 {
		return failed(key, expected, "callback %q received no readings", name)
	}

	lo, hi, err := bounds(spec)
	if err != nil {
		return failed(key, expected, "%v", err)
	}
	for i, rd := range readings {
		r := assertions.Field(rd, field, lo, hi)
		if r.Passed {
			if gt, ok := spec["greater_than"]; ok {
				v, _ := rd.Field(field)
				r = assertions.GreaterThan(v, gt)
			}
		}
		if !r.Passed {
			return result(key, expected, r.Actual, &assertions.Result{
				Message: fmt.Sprintf("reading %d: %s", i, r.Message),
			})
		}
	}
	return result(key, expected, len(readings), assertions.Pass(
		fmt.Sprintf("%d readings with %s in bounds", len(readings), field)))
}

// bounds reads "min" and "max"; a missing side is open.
func bounds(spec map[string]any) (lo, hi float64, err error) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if raw, ok := spec["min"]; ok {
		if lo, ok = assertions.Numeric(raw); !ok {
			return 0, 0, fmt.Errorf("min must be numeric, got %v", raw)
		}
	}
	if raw, ok := spec["max"]; ok {
		if hi, ok = assertions.Numeric(raw); !ok {
			return 0, 0, fmt.Errorf("max must be numeric, got %v", raw)
		}
	}
	return lo, hi, nil
}

// checkAsyncErrorCode checks the last error event a callback received.
// Expected is a code, or a map with "code" and optionally "callback".
func checkAsyncErrorCode(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	sess, err := sessionFrom(state)
	if err != nil {
		return failed(key, expected, "%v", err)
	}

	name, _ := state.Custom[customLastCallback].(string)
	raw := expected
	if m, ok := expected.(map[string]any); ok {
		if cb, ok := m["callback"].(string); ok && cb != "" {
			name = cb
		}
		raw = m["code"]
	}
	if name == "" {
		name = DefaultCallback
	}
	want, ok := toCode(raw)
	if !ok {
		return failed(key, expected, "expected an integer error code, got %v", raw)
	}

	if err := sess.settle(state.Context); err != nil {
		return failed(key, expected, "settle: %v", err)
	}
	var p *contract.Recorder
	if p, ok = sess.lookupRecorder(name); !ok {
		return failed(key, expected, "unknown callback %q", name)
	}
	errs := p.Errors()
	if len(errs) == 0 {
		if want == 0 {
			return result(key, expected, 0, assertions.Pass("no error events"))
		}
		return failed(key, expected, "callback %q received no error events", name)
	}
	cr := assertions.HasCode(errs[len(errs)-1], want)
	return result(key, expected, int32(cr.Code), cr.Result)
}

// checkActiveSensorCount compares the number of enabled, unsuspended
// sensors.
func checkActiveSensorCount(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	sess, err := sessionFrom(state)
	if err != nil {
		return failed(key, expected, "%v", err)
	}
	want, ok := engine.ToFloat64(expected)
	if !ok {
		return failed(key, expected, "expected a number, got %T", expected)
	}
	infos, err := sess.env.Client.ActiveInfo(state.Context)
	if err != nil {
		return failed(key, expected, "active info: %v", err)
	}
	active := 0
	for _, info := range infos {
		if !info.Suspended {
			active++
		}
	}
	return result(key, expected, active, assertions.Equal(int(want), active))
}

// edgeWait bounds how long active_edges waits for asynchronous edges.
const edgeWait = time.Second

// checkActiveEdges compares the activation edges seen by watch_active_info
// with a list of "op:sensor" strings, e.g. "enable:BAROMETER".
func checkActiveEdges(key string, expected any, state *engine.ExecutionState) *engine.ExpectResult {
	sess, err := sessionFrom(state)
	if err != nil {
		return failed(key, expected, "%v", err)
	}
	raw, ok := expected.([]any)
	if !ok {
		return failed(key, expected, "expected a list of edges, got %T", expected)
	}
	want := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return failed(key, expected, "edge %v is not a string", v)
		}
		want = append(want, s)
	}

	deadline := time.Now().Add(edgeWait)
	got := sess.edgeOps()
	for len(got) < len(want) && time.Now().Before(deadline) && state.Context.Err() == nil {
		time.Sleep(5 * time.Millisecond)
		got = sess.edgeOps()
	}
	return result(key, expected, got, assertions.Equal(want, got))
}
