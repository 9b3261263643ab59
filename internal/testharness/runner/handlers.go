package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
	"github.com/sensorkit/sensorkit-go/internal/testharness/loader"
	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/contract"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// descriptorTimeout bounds the wait for a get_single_sensor callback.
const descriptorTimeout = 2 * time.Second

// errInjected is the fault the inject_fault and fail_next_enable actions use
// when the step carries no message.
var errInjected = errors.New("injected sensor fault")

func (r *Runner) registerHandlers() {
	r.engine.RegisterHandler(ActionGetSingleSensor, r.handleGetSingleSensor)
	r.engine.RegisterHandler(ActionOn, r.handleOn)
	r.engine.RegisterHandler(ActionOnce, r.handleOnce)
	r.engine.RegisterHandler(ActionOff, r.handleOff)
	r.engine.RegisterHandler(ActionWait, r.handleWait)
	r.engine.RegisterHandler(ActionEmit, r.handleEmit)
	r.engine.RegisterHandler(ActionSettle, r.handleSettle)
	r.engine.RegisterHandler(ActionGrantPermission, r.handleGrantPermission)
	r.engine.RegisterHandler(ActionRevokePermission, r.handleRevokePermission)
	r.engine.RegisterHandler(ActionInjectFault, r.handleInjectFault)
	r.engine.RegisterHandler(ActionFailNextEnable, r.handleFailNextEnable)
	r.engine.RegisterHandler(ActionSuspend, r.handleSuspend)
	r.engine.RegisterHandler(ActionResume, r.handleResume)
	r.engine.RegisterHandler(ActionActiveInfo, r.handleActiveInfo)
	r.engine.RegisterHandler(ActionWatchActiveInfo, r.handleWatchActiveInfo)
	r.engine.RegisterHandler(ActionResetSensors, r.handleResetSensors)
}

// apiResult turns the outcome of an API call into step outputs. API errors
// are outcomes the test asserts on, so they never fail the step by
// themselves.
func apiResult(state *engine.ExecutionState, err error) map[string]any {
	state.Custom[customLastError] = err
	if err == nil {
		return map[string]any{KeyErrorCode: int32(0)}
	}
	return map[string]any{
		KeyErrorCode:    int32(errcode.Of(err)),
		KeyErrorMessage: errcode.MessageOf(err),
		KeyError:        err.Error(),
	}
}

// sensorParam reads the sensor of a step: a numeric id or a sensor name.
func sensorParam(step *loader.Step) (sensor.ID, error) {
	raw, ok := step.Params[ParamSensor]
	if !ok {
		return 0, fmt.Errorf("missing %q parameter", ParamSensor)
	}
	switch v := raw.(type) {
	case string:
		return sensor.ParseID(v)
	case sensor.ID:
		return v, nil
	}
	n, ok := engine.ToFloat64(raw)
	if !ok || n != float64(int32(n)) {
		return 0, fmt.Errorf("invalid %q parameter: %v", ParamSensor, raw)
	}
	return sensor.ID(int32(n)), nil
}

func stringParam(step *loader.Step, key, def string) string {
	if v, ok := step.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

func boolParam(step *loader.Step, key string, def bool) bool {
	if v, ok := step.Params[key].(bool); ok {
		return v
	}
	return def
}

func intParam(step *loader.Step, key string, def int) int {
	if n, ok := engine.ToFloat64(step.Params[key]); ok {
		return int(n)
	}
	return def
}

// callbackParam resolves the callback of a step. It also remembers the name
// for the count checkers.
func callbackParam(sess *session, step *loader.Step, state *engine.ExecutionState) (string, *subscription.Callback) {
	name := stringParam(step, ParamCallback, DefaultCallback)
	state.Custom[customLastCallback] = name
	if !boolParam(step, ParamInvocable, true) {
		return name, subscription.NewCallback(nil)
	}
	return name, sess.recorder(name).Callback()
}

// optionsParam builds the options of an on step from "options" or, as a
// shorthand, "interval".
func optionsParam(step *loader.Step) (any, bool) {
	if raw, ok := step.Params[ParamOptions]; ok {
		return raw, true
	}
	if iv, ok := step.Params[ParamInterval]; ok {
		return map[string]any{"interval": iv}, true
	}
	return nil, false
}

func (r *Runner) handleGetSingleSensor(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}

	type reply struct {
		desc sensor.Descriptor
		err  error
	}
	ch := make(chan reply, 1)

	var fn func(sensor.Descriptor, error)
	if boolParam(step, ParamInvocable, true) {
		fn = func(d sensor.Descriptor, err error) { ch <- reply{d, err} }
	}
	if err := sess.env.Client.GetSingleSensor(id, fn); err != nil {
		return apiResult(state, err), nil
	}

	select {
	case rep := <-ch:
		out := apiResult(state, rep.err)
		if rep.err == nil {
			out[KeySensorName] = rep.desc.Name
			out[KeySensorID] = int32(rep.desc.ID)
			out[KeyPermission] = rep.desc.Permission
			out[KeyFields] = append([]string(nil), rep.desc.Fields...)
			out[KeyMinSamplePeriod] = rep.desc.MinSamplePeriod.Nanoseconds()
			out[KeyMaxSamplePeriod] = rep.desc.MaxSamplePeriod.Nanoseconds()
		}
		return out, nil
	case <-time.After(descriptorTimeout):
		return nil, fmt.Errorf("getSingleSensor callback not invoked within %v", descriptorTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runner) handleOn(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}
	_, cb := callbackParam(sess, step, state)

	var opts any
	if raw, ok := optionsParam(step); ok {
		opts = raw
	}
	decoded, err := contract.DecodeOptions(opts)
	if err != nil {
		return apiResult(state, err), nil
	}

	h, err := sess.env.Client.On(id, cb, decoded)
	if err != nil {
		return apiResult(state, err), nil
	}
	sess.track(h.Subscription())

	out := apiResult(state, nil)
	out[KeySubscriptionID] = h.ID()
	return out, sess.settle(ctx)
}

func (r *Runner) handleOnce(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}
	_, cb := callbackParam(sess, step, state)

	// once has no options parameter.
	if _, ok := optionsParam(step); ok {
		return apiResult(state, errcode.Parameter(client.OpOnce, "once takes no options")), nil
	}

	h, err := sess.env.Client.Once(id, cb)
	if err != nil {
		return apiResult(state, err), nil
	}
	sess.track(h.Subscription())

	out := apiResult(state, nil)
	out[KeySubscriptionID] = h.ID()
	return out, sess.settle(ctx)
}

// handleOff unsubscribes one callback, or all of the sensor's callbacks when
// the step names none.
func (r *Runner) handleOff(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}

	var cb *subscription.Callback
	if _, named := step.Params[ParamCallback]; named {
		_, cb = callbackParam(sess, step, state)
	}
	if err := sess.env.Client.Off(id, cb); err != nil {
		return apiResult(state, err), nil
	}
	return apiResult(state, nil), sess.settle(ctx)
}

func (r *Runner) handleWait(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	d := engine.StepDuration(step.Params)
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if sess, err := sessionFrom(state); err == nil {
		return nil, sess.settle(ctx)
	}
	return nil, nil
}

// handleEmit makes the sensor produce count readings, each delivered before
// the next one is produced.
func (r *Runner) handleEmit(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}

	count := intParam(step, ParamCount, 1)
	emitted := 0
	for range count {
		if err := sess.env.Client.Flush(ctx); err != nil {
			return nil, err
		}
		if !sess.env.Driver.Emit(id) {
			break
		}
		emitted++
		if err := sess.settle(ctx); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		KeyEmitted: emitted > 0,
		KeyValue:   emitted,
	}, nil
}

func (r *Runner) handleSettle(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	return nil, sess.settle(ctx)
}

func permissionParam(step *loader.Step) (string, error) {
	perm := stringParam(step, ParamPermission, "")
	if perm == "" {
		return "", fmt.Errorf("missing %q parameter", ParamPermission)
	}
	return perm, nil
}

func (r *Runner) handleGrantPermission(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	perm, err := permissionParam(step)
	if err != nil {
		return nil, err
	}
	sess.env.Grants.Grant(perm)
	return map[string]any{KeyPermission: perm}, nil
}

func (r *Runner) handleRevokePermission(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	perm, err := permissionParam(step)
	if err != nil {
		return nil, err
	}
	sess.env.Grants.Revoke(perm)
	return map[string]any{KeyPermission: perm}, nil
}

func faultParam(step *loader.Step) error {
	if msg := stringParam(step, ParamMessage, ""); msg != "" {
		return errors.New(msg)
	}
	return errInjected
}

// handleInjectFault reports a driver fault on an enabled sensor. The fault
// reaches every subscriber as a 14500101 error event.
func (r *Runner) handleInjectFault(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}
	if err := sess.env.Client.Flush(ctx); err != nil {
		return nil, err
	}
	injected := sess.env.Driver.InjectFault(id, faultParam(step))
	return map[string]any{KeyInjected: injected}, sess.settle(ctx)
}

// handleFailNextEnable makes the driver refuse the next enable of a sensor.
func (r *Runner) handleFailNextEnable(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	id, err := sensorParam(step)
	if err != nil {
		return nil, err
	}
	sess.env.Driver.FailNextEnable(id, faultParam(step))
	return nil, nil
}

func (r *Runner) handleSuspend(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	if err := sess.env.Client.Suspend(ctx); err != nil {
		return nil, err
	}
	return nil, sess.settle(ctx)
}

func (r *Runner) handleResume(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	if err := sess.env.Client.Resume(ctx); err != nil {
		return nil, err
	}
	return nil, sess.settle(ctx)
}

func (r *Runner) handleWatchActiveInfo(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	return apiResult(state, sess.watch()), nil
}

func (r *Runner) handleResetSensors(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	if err := sess.env.Client.ResetSensors(ctx); err != nil {
		return nil, err
	}
	return nil, sess.settle(ctx)
}

// handleActiveInfo lists the sensors that are enabled and not suspended.
func (r *Runner) handleActiveInfo(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	sess, err := sessionFrom(state)
	if err != nil {
		return nil, err
	}
	infos, err := sess.env.Client.ActiveInfo(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Suspended {
			continue
		}
		names = append(names, info.SensorID.String())
	}
	return map[string]any{
		KeyActiveSensors:     names,
		KeyActiveSensorCount: len(names),
		KeyValue:             len(names),
	}, nil
}
