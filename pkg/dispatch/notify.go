package dispatch

import (
	"sync"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// ActiveChange is one activation edge of a sensor: enabled, re-periodized,
// disabled, suspended, resumed, reset or stopped.
type ActiveChange struct {
	SensorID sensor.ID

	// Op is the edge: enable, set_period, reset, resume, disable, suspend or
	// stop.
	Op string

	// Active reports whether the sensor is enabled after the edge.
	Active bool

	SamplingPeriod time.Duration
	ReportDelay    time.Duration
}

// ActiveInfoCallback wraps a function receiving activation edges. Like
// subscription.Callback, identity is the wrapper pointer.
type ActiveInfoCallback struct {
	name string
	fn   func(ActiveChange)
}

// NewActiveInfoCallback wraps fn.
func NewActiveInfoCallback(fn func(ActiveChange)) *ActiveInfoCallback {
	return &ActiveInfoCallback{fn: fn}
}

// NamedActiveInfoCallback wraps fn with a display name.
func NamedActiveInfoCallback(name string, fn func(ActiveChange)) *ActiveInfoCallback {
	return &ActiveInfoCallback{name: name, fn: fn}
}

// Invocable reports whether cb wraps a function.
func (cb *ActiveInfoCallback) Invocable() bool {
	return cb != nil && cb.fn != nil
}

// Name returns the display name.
func (cb *ActiveInfoCallback) Name() string {
	if cb == nil {
		return ""
	}
	return cb.name
}

// notifier delivers activation edges to the registered callbacks, in order,
// on its own goroutine.
type notifier struct {
	mu      sync.Mutex
	cbs     []*ActiveInfoCallback
	pending []ActiveChange
	wake    chan struct{}
}

func newNotifier() *notifier {
	return &notifier{wake: make(chan struct{}, 1)}
}

// add registers cb. It reports false if cb was already registered.
func (n *notifier) add(cb *ActiveInfoCallback) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.cbs {
		if c == cb {
			return false
		}
	}
	n.cbs = append(n.cbs, cb)
	return true
}

// remove unregisters cb. It reports false if cb was not registered.
func (n *notifier) remove(cb *ActiveInfoCallback) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.cbs {
		if c == cb {
			n.cbs = append(n.cbs[:i:i], n.cbs[i+1:]...)
			return true
		}
	}
	return false
}

func (n *notifier) publish(ch ActiveChange) {
	n.mu.Lock()
	if len(n.cbs) == 0 {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, ch)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// run delivers until stop is closed, then delivers what is left.
func (n *notifier) run(stop <-chan struct{}) {
	for {
		select {
		case <-n.wake:
			n.deliver()
		case <-stop:
			n.deliver()
			return
		}
	}
}

func (n *notifier) deliver() {
	for {
		n.mu.Lock()
		batch := n.pending
		n.pending = nil
		cbs := append([]*ActiveInfoCallback(nil), n.cbs...)
		n.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, ch := range batch {
			for _, cb := range cbs {
				cb.fn(ch)
			}
		}
	}
}
