package contract

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

func TestRulesTable(t *testing.T) {
	tests := []struct {
		cond     Condition
		code     errcode.Code
		message  string
		delivery Delivery
	}{
		{UnsupportedSensor, 401, "The parameter invalid.", Sync},
		{NonInvocableCallback, 401, "The parameter invalid.", Sync},
		{MalformedOptions, 401, "The parameter invalid.", Sync},
		{PermissionMissing, 201, "Permission denied.", Sync},
		{InvalidInterval, 14500101, "Service exception.", Async},
		{ServiceFailure, 14500101, "Service exception.", Async},
	}
	for _, tt := range tests {
		t.Run(string(tt.cond), func(t *testing.T) {
			r, ok := Lookup(tt.cond)
			require.True(t, ok)
			assert.Equal(t, tt.code, r.Code)
			assert.Equal(t, tt.message, r.Message())
			assert.Equal(t, tt.delivery, r.Delivery)
			assert.NotEmpty(t, r.Ops)
		})
	}

	_, ok := Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, "async", Async.String())
	assert.Equal(t, "sync", Sync.String())
}

func TestExpect(t *testing.T) {
	assert.NoError(t, Expect(errcode.Parameter("on", "bad id"), errcode.CodeParameterInvalid))
	assert.NoError(t, Expect(errcode.Service("on", errors.New("boom")), errcode.CodeServiceException))

	assert.ErrorIs(t, Expect(nil, errcode.CodeParameterInvalid), ErrNoError)
	assert.ErrorIs(t, Expect(errors.New("plain"), errcode.CodeParameterInvalid), ErrForeignError)
	assert.ErrorIs(t, Expect(errcode.PermissionDenied("on", "x"), errcode.CodeParameterInvalid), ErrWrongCode)

	bad := &errcode.Error{Code: errcode.CodeParameterInvalid, Message: "bad parameter"}
	assert.ErrorIs(t, Expect(bad, errcode.CodeParameterInvalid), ErrWrongMessage)

	assert.Error(t, ExpectRule(nil, "unknown"))
}

func TestDecodeOptions(t *testing.T) {
	interval := func(o *client.Options) int64 {
		require.NotNil(t, o)
		require.NotNil(t, o.Interval)
		return *o.Interval
	}

	o, err := DecodeOptions(nil)
	assert.NoError(t, err)
	assert.Nil(t, o)

	o, err = DecodeOptions(map[string]any{})
	assert.NoError(t, err)
	assert.Nil(t, o.Interval)

	o, err = DecodeOptions(map[string]any{"interval": 100000000, "extra": true})
	require.NoError(t, err)
	assert.Equal(t, int64(100000000), interval(o))

	o, err = DecodeOptions(map[string]any{"interval": -100000000})
	require.NoError(t, err, "sign is not checked at decode time")
	assert.Equal(t, int64(-100000000), interval(o))

	o, err = DecodeOptions(map[string]any{"interval": float64(2e8)})
	require.NoError(t, err)
	assert.Equal(t, int64(200000000), interval(o))

	o, err = DecodeOptions(map[string]any{"interval": json.Number("300")})
	require.NoError(t, err)
	assert.Equal(t, int64(300), interval(o))

	o, err = DecodeOptions(client.WithInterval(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), interval(o))

	o, err = DecodeOptions(map[string]any{"interval": -math.Exp2(63)})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), interval(o))

	for _, raw := range []any{
		5, "fast", []any{},
		map[string]any{"interval": 1.5},
		map[string]any{"interval": true},
		map[string]any{"interval": "100"},
		map[string]any{"interval": math.Exp2(63)},
		map[string]any{"interval": math.Inf(-1)},
		map[string]any{"interval": math.NaN()},
	} {
		_, err := DecodeOptions(raw)
		assert.NoError(t, ExpectRule(err, MalformedOptions), "raw %#v", raw)
	}
}

func TestDecodeCallback(t *testing.T) {
	named := subscription.NamedCallback("n", func(subscription.Event) {})
	cb, err := DecodeCallback(named)
	require.NoError(t, err)
	assert.Same(t, named, cb)

	cb, err = DecodeCallback(func(subscription.Event) {})
	require.NoError(t, err)
	assert.True(t, cb.Invocable())

	var nilFn func(subscription.Event)
	for _, raw := range []any{nil, 5, "cb", nilFn, subscription.NewCallback(nil), func() {}} {
		_, err := DecodeCallback(raw)
		assert.NoError(t, ExpectRule(err, NonInvocableCallback), "raw %#v", raw)
	}
}

func TestVerifyDefaultEnv(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on real sensor ticks")
	}
	report := Verify(context.Background(), DefaultFactory(EnvConfig{}))

	for _, res := range report.Results {
		assert.NoError(t, res.Err, res.Property.ID)
	}
	assert.True(t, report.OK())
	assert.Equal(t, len(Properties()), report.Passed())
	assert.NoError(t, report.Err())
}

func TestPropertiesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Properties() {
		assert.False(t, seen[p.ID], "duplicate property %s", p.ID)
		seen[p.ID] = true
		assert.NotEmpty(t, p.Description)
		assert.NotNil(t, p.Check)
	}
	assert.Len(t, seen, 9)
}

func TestVerifyReportsViolations(t *testing.T) {
	failing := Property{
		ID: "always-fails",
		Check: func(context.Context, *Env) error {
			return errors.New("violated")
		},
	}
	passing := Property{
		ID:    "always-holds",
		Check: func(context.Context, *Env) error { return nil },
	}

	report := VerifyProperties(context.Background(), DefaultFactory(EnvConfig{}), []Property{failing, passing})
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Passed())
	assert.False(t, report.OK())
	assert.ErrorContains(t, report.Err(), "always-fails: violated")
}

func TestVerifyFactoryError(t *testing.T) {
	factory := func() (*Env, error) { return nil, errors.New("no device") }
	report := VerifyProperties(context.Background(), factory, Properties()[:1])
	require.Len(t, report.Results, 1)
	assert.ErrorContains(t, report.Results[0].Err, "no device")
}

func TestVerifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := VerifyProperties(ctx, DefaultFactory(EnvConfig{}), Properties()[:2])
	assert.Equal(t, 2, report.Failed())
	assert.ErrorIs(t, report.Results[0].Err, context.Canceled)
}
