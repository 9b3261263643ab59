package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// Timing bounds used by the properties.
const (
	// DeliveryWindow is how long subscribers may wait for a reading.
	DeliveryWindow = 1000 * time.Millisecond

	// QuietWindow is how long a removed subscription is watched for stray
	// invocations.
	QuietWindow = 100 * time.Millisecond
)

const unsupportedID = sensor.ID(-1)

// Property is one machine-checkable statement about the API.
type Property struct {
	ID          string
	Description string
	Check       func(ctx context.Context, env *Env) error
}

// Properties returns every property in a stable order.
func Properties() []Property {
	return []Property{
		{
			ID:          "unsupported-sensor",
			Description: "on, once and off fail with 401 for an unsupported sensor id",
			Check:       checkUnsupportedSensor,
		},
		{
			ID:          "off-all",
			Description: "off(id) removes every subscription; later readings invoke nothing",
			Check:       checkOffAll,
		},
		{
			ID:          "off-one",
			Description: "off(id, cb) removes only cb; other subscribers keep receiving",
			Check:       checkOffOne,
		},
		{
			ID:          "once-exactly-once",
			Description: "once invokes its callback exactly once while the stream continues",
			Check:       checkOnceExactlyOnce,
		},
		{
			ID:          "negative-interval",
			Description: "a negative interval subscribes, then fails asynchronously with 14500101",
			Check:       checkNegativeInterval,
		},
		{
			ID:          "barometer-two-callbacks",
			Description: "two barometer callbacks both receive a numeric pressure within 1000 ms",
			Check:       checkBarometerTwoCallbacks,
		},
		{
			ID:          "permission-denied",
			Description: "subscribing to a protected sensor without its permission fails with 201",
			Check:       checkPermissionDenied,
		},
		{
			ID:          "non-invocable-callback",
			Description: "a callback that cannot be invoked fails with 401",
			Check:       checkNonInvocableCallback,
		},
		{
			ID:          "malformed-options",
			Description: "options that are not an object with an integer interval fail with 401",
			Check:       checkMalformedOptions,
		},
	}
}

func checkUnsupportedSensor(ctx context.Context, env *Env) error {
	cb := NewRecorder("unsupported").Callback()
	c := env.Client

	_, onErr := c.On(unsupportedID, cb, nil)
	_, onceErr := c.Once(unsupportedID, cb)
	return multierr.Combine(
		labelled("on", ExpectRule(onErr, UnsupportedSensor)),
		labelled("once", ExpectRule(onceErr, UnsupportedSensor)),
		labelled("off(id, cb)", ExpectRule(c.Off(unsupportedID, cb), UnsupportedSensor)),
		labelled("off(id)", ExpectRule(c.Off(unsupportedID, nil), UnsupportedSensor)),
	)
}

func checkOffAll(ctx context.Context, env *Env) error {
	a, b := NewRecorder("a"), NewRecorder("b")
	ha, err := env.Client.On(sensor.Barometer, a.Callback(), nil)
	if err != nil {
		return err
	}
	hb, err := env.Client.On(sensor.Barometer, b.Callback(), nil)
	if err != nil {
		return err
	}
	if err := env.Pulse(ctx, sensor.Barometer); err != nil {
		return err
	}

	if err := env.Client.Off(sensor.Barometer, nil); err != nil {
		return fmt.Errorf("off: %w", err)
	}
	idle(ctx, ha.Subscription())
	idle(ctx, hb.Subscription())
	before := a.Calls() + b.Calls()

	if err := env.Client.Flush(ctx); err != nil {
		return err
	}
	if n := env.Client.SubscriptionCount(sensor.Barometer); n != 0 {
		return fmt.Errorf("%d subscriptions remain after off", n)
	}
	if env.Driver.Emit(sensor.Barometer) {
		return errors.New("sensor still enabled after off")
	}
	waitFor(ctx, QuietWindow, func() bool { return false })
	if after := a.Calls() + b.Calls(); after != before {
		return fmt.Errorf("%d invocations after off", after-before)
	}
	return nil
}

func checkOffOne(ctx context.Context, env *Env) error {
	a, b := NewRecorder("a"), NewRecorder("b")
	ha, err := env.Client.On(sensor.Barometer, a.Callback(), nil)
	if err != nil {
		return err
	}
	if _, err := env.Client.On(sensor.Barometer, b.Callback(), nil); err != nil {
		return err
	}

	if err := env.Client.Off(sensor.Barometer, a.Callback()); err != nil {
		return fmt.Errorf("off: %w", err)
	}
	idle(ctx, ha.Subscription())
	aBefore, bBefore := a.Calls(), b.Calls()

	if err := env.Pulse(ctx, sensor.Barometer); err != nil {
		return err
	}
	if a.Calls() != aBefore {
		return errors.New("removed callback was invoked")
	}
	if b.Calls() <= bBefore {
		return errors.New("remaining callback stopped receiving")
	}
	return nil
}

func checkOnceExactlyOnce(ctx context.Context, env *Env) error {
	keep, once := NewRecorder("keep"), NewRecorder("once")
	if _, err := env.Client.On(sensor.Barometer, keep.Callback(), nil); err != nil {
		return err
	}
	h, err := env.Client.Once(sensor.Barometer, once.Callback())
	if err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if err := env.Pulse(ctx, sensor.Barometer); err != nil {
			return err
		}
	}
	idle(ctx, h.Subscription())

	if n := once.Calls(); n != 1 {
		return fmt.Errorf("once callback invoked %d times", n)
	}
	if st := h.Subscription().State(); st != subscription.StateUnregistered {
		return fmt.Errorf("one-shot subscription is %v after delivery", st)
	}
	return nil
}

func checkNegativeInterval(ctx context.Context, env *Env) error {
	p := NewRecorder("negative")
	opts, err := DecodeOptions(map[string]any{"interval": -100000000})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if _, err := env.Client.On(sensor.Barometer, p.Callback(), opts); err != nil {
		return fmt.Errorf("on returned %v, want nil", err)
	}

	if !waitFor(ctx, DeliveryWindow, func() bool { return len(p.Errors()) > 0 }) {
		return errors.New("no async error delivered")
	}
	errs := p.Errors()
	if len(p.Readings()) != 0 {
		return errors.New("reading delivered alongside the interval error")
	}
	return ExpectRule(errs[0], InvalidInterval)
}

func checkBarometerTwoCallbacks(ctx context.Context, env *Env) error {
	a, b := NewRecorder("cbA"), NewRecorder("cbB")
	if _, err := env.Client.On(sensor.Barometer, a.Callback(), nil); err != nil {
		return err
	}
	if _, err := env.Client.On(sensor.Barometer, b.Callback(), nil); err != nil {
		return err
	}

	ok := waitFor(ctx, DeliveryWindow, func() bool {
		return hasPressure(a) && hasPressure(b)
	})
	offErr := env.Client.Off(sensor.Barometer, nil)
	if !ok {
		return multierr.Append(
			fmt.Errorf("within %v: cbA got %d readings, cbB got %d", DeliveryWindow, len(a.Readings()), len(b.Readings())),
			offErr)
	}
	return offErr
}

func hasPressure(p *Recorder) bool {
	for _, r := range p.Readings() {
		if _, ok := r.Field("pressure"); ok {
			return true
		}
	}
	return false
}

func checkPermissionDenied(ctx context.Context, env *Env) error {
	cb := NewRecorder("motion").Callback()
	env.Grants.Revoke(permission.ActivityMotion)

	_, err := env.Client.On(sensor.PedometerDetection, cb, nil)
	if err := ExpectRule(err, PermissionMissing); err != nil {
		return labelled("on without grant", err)
	}
	_, err = env.Client.Once(sensor.PedometerDetection, cb)
	if err := ExpectRule(err, PermissionMissing); err != nil {
		return labelled("once without grant", err)
	}

	env.Grants.Grant(permission.ActivityMotion)
	if _, err := env.Client.On(sensor.PedometerDetection, cb, nil); err != nil {
		return fmt.Errorf("on with grant: %w", err)
	}
	return env.Client.Off(sensor.PedometerDetection, nil)
}

func checkNonInvocableCallback(ctx context.Context, env *Env) error {
	var errs error
	for _, raw := range []any{nil, 5, "callback", subscription.NewCallback(nil)} {
		_, err := DecodeCallback(raw)
		errs = multierr.Append(errs, labelled(fmt.Sprintf("decode %T", raw), ExpectRule(err, NonInvocableCallback)))
	}

	_, err := env.Client.On(sensor.Barometer, nil, nil)
	errs = multierr.Append(errs, labelled("on", ExpectRule(err, NonInvocableCallback)))
	_, err = env.Client.Once(sensor.Barometer, subscription.NewCallback(nil))
	errs = multierr.Append(errs, labelled("once", ExpectRule(err, NonInvocableCallback)))
	err = env.Client.GetSingleSensor(sensor.Barometer, nil)
	errs = multierr.Append(errs, labelled("getSingleSensor", ExpectRule(err, NonInvocableCallback)))
	return errs
}

func checkMalformedOptions(ctx context.Context, env *Env) error {
	var errs error
	for _, raw := range []any{5, "fast", []int{1}, map[string]any{"interval": "soon"}, map[string]any{"interval": 1.5}} {
		_, err := DecodeOptions(raw)
		errs = multierr.Append(errs, labelled(fmt.Sprintf("decode %v", raw), ExpectRule(err, MalformedOptions)))
	}

	opts, err := DecodeOptions(map[string]any{"interval": int64(100000000)})
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("well-formed options rejected: %w", err))
	}
	if _, err := env.Client.On(sensor.Barometer, NewRecorder("ok").Callback(), opts); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("on with decoded options: %w", err))
	}
	return errs
}

func labelled(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
