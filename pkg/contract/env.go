package contract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	"github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// Env is the system under test for one property: a client over a simulated
// driver with an explicit permission set.
type Env struct {
	Client *client.Client
	Driver *sim.Driver
	Grants *permission.Grants
	Events *log.MemoryLogger
}

// Factory creates a fresh Env.
type Factory func() (*Env, error)

// EnvConfig configures NewEnv.
type EnvConfig struct {
	Catalog *sensor.Catalog
	Logger  *slog.Logger

	// EventLog also receives captured events, in addition to Env.Events.
	EventLog log.Logger
}

// NewEnv creates an Env on the wall clock with no permissions granted.
func NewEnv(cfg EnvConfig) (*Env, error) {
	drv := sim.New(sim.Config{Catalog: cfg.Catalog, Logger: cfg.Logger})
	grants := permission.NewGrants()
	mem := log.NewMemoryLogger()

	c, err := client.New(client.Config{
		Driver:      drv,
		Catalog:     cfg.Catalog,
		Permissions: grants,
		Logger:      cfg.Logger,
		EventLog:    log.NewMultiLogger(mem, cfg.EventLog),
	})
	if err != nil {
		drv.Close()
		return nil, err
	}
	return &Env{Client: c, Driver: drv, Grants: grants, Events: mem}, nil
}

// DefaultFactory returns a Factory that calls NewEnv with cfg.
func DefaultFactory(cfg EnvConfig) Factory {
	return func() (*Env, error) {
		return NewEnv(cfg)
	}
}

// Close releases the client and the driver.
func (e *Env) Close() error {
	return multierr.Combine(e.Client.Close(), e.Driver.Close())
}

// Pulse makes an enabled sensor produce one reading and waits until every
// subscription has handled it.
func (e *Env) Pulse(ctx context.Context, id sensor.ID) error {
	if err := e.Client.Flush(ctx); err != nil {
		return err
	}
	if !e.Driver.Emit(id) {
		return fmt.Errorf("sensor %v is not enabled", id)
	}
	return e.Settle(ctx)
}

// Settle waits until pending dispatcher work is done and every live
// subscription is idle.
func (e *Env) Settle(ctx context.Context) error {
	if err := e.Client.Flush(ctx); err != nil {
		return err
	}
	for _, s := range e.Client.Subscriptions() {
		if !idle(ctx, s) {
			return fmt.Errorf("subscription %d did not go idle: %w", s.ID, ctx.Err())
		}
	}
	return nil
}

func idle(ctx context.Context, s *subscription.Subscription) bool {
	for {
		if s.Idle(10 * time.Millisecond) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
}

// Recorder is a callback that records what it receives.
type Recorder struct {
	cb *subscription.Callback

	mu       sync.Mutex
	readings []sensor.Reading
	errs     []error
}

// NewRecorder creates a named recorder.
func NewRecorder(name string) *Recorder {
	p := &Recorder{}
	p.cb = subscription.NamedCallback(name, p.record)
	return p
}

func (p *Recorder) record(ev subscription.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.Err != nil {
		p.errs = append(p.errs, ev.Err)
		return
	}
	if ev.Reading != nil {
		p.readings = append(p.readings, ev.Reading.Clone())
	}
}

// Callback returns the recorder's callback.
func (p *Recorder) Callback() *subscription.Callback {
	return p.cb
}

// Calls returns the number of invocations.
func (p *Recorder) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings) + len(p.errs)
}

// Readings returns a copy of the received readings.
func (p *Recorder) Readings() []sensor.Reading {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sensor.Reading(nil), p.readings...)
}

// Errors returns a copy of the received errors.
func (p *Recorder) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return cond()
		case <-tick.C:
		}
	}
}
