package contract

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

const opDecode = "decode"

// DecodeOptions converts a loosely typed options value into client.Options.
//
// nil means no options. A map may carry "interval" as an integer number of
// nanoseconds; a string interval is rejected and other keys are ignored. Any other shape, such as a bare
// integer passed where options belong, fails with 401. The interval's sign
// is not checked.
func DecodeOptions(raw any) (*client.Options, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *client.Options:
		return v, nil
	case client.Options:
		return &v, nil
	case map[string]any:
		iv, ok := v["interval"]
		if !ok || iv == nil {
			return &client.Options{}, nil
		}
		n, err := toInterval(iv)
		if err != nil {
			return nil, errcode.Parameter(opDecode, err.Error())
		}
		return client.WithInterval(n), nil
	default:
		return nil, errcode.Parameter(opDecode, fmt.Sprintf("options must be an object, got %T", raw))
	}
}

func toInterval(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case float64:
		// math.MaxInt64 rounds up to 2^63 as a float64.
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("interval %v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("interval has type %T", v)
	}
}

// DecodeCallback converts a loosely typed callback value into a callback.
// Only callback references and event functions are invocable.
func DecodeCallback(raw any) (*subscription.Callback, error) {
	switch v := raw.(type) {
	case *subscription.Callback:
		if v.Invocable() {
			return v, nil
		}
	case func(subscription.Event):
		if v != nil {
			return subscription.NewCallback(v), nil
		}
	}
	return nil, errcode.Parameter(opDecode, fmt.Sprintf("callback is not invocable (%T)", raw))
}
