package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
	"github.com/sensorkit/sensorkit-go/pkg/contract"
	"github.com/sensorkit/sensorkit-go/pkg/dispatch"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// session is the system under test of one test case.
type session struct {
	env *contract.Env

	mu        sync.Mutex
	recorders map[string]*contract.Recorder

	// subs keeps every subscription created by the test, including retired
	// one-shots whose last event may still be in flight.
	subs []*subscription.Subscription

	watcher *dispatch.ActiveInfoCallback
	edges   []dispatch.ActiveChange
}

func newSession(env *contract.Env) *session {
	return &session{
		env:       env,
		recorders: make(map[string]*contract.Recorder),
	}
}

func sessionFrom(state *engine.ExecutionState) (*session, error) {
	sess, ok := state.Custom[customSession].(*session)
	if !ok {
		return nil, fmt.Errorf("no sensor session: test setup did not run")
	}
	return sess, nil
}

// recorder returns the named recorder, creating it on first use.
func (s *session) recorder(name string) *contract.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.recorders[name]
	if !ok {
		p = contract.NewRecorder(name)
		s.recorders[name] = p
	}
	return p
}

// lookupRecorder returns the named recorder without creating it.
func (s *session) lookupRecorder(name string) (*contract.Recorder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.recorders[name]
	return p, ok
}

// watch registers the session's activation edge recorder with the client.
func (s *session) watch() error {
	s.mu.Lock()
	if s.watcher == nil {
		s.watcher = dispatch.NamedActiveInfoCallback("session", func(ch dispatch.ActiveChange) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.edges = append(s.edges, ch)
		})
	}
	cb := s.watcher
	s.mu.Unlock()
	return s.env.Client.OnActiveInfo(cb)
}

// edgeOps returns the recorded activation edges as "op:sensor" strings.
func (s *session) edgeOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.edges))
	for _, ch := range s.edges {
		out = append(out, ch.Op+":"+ch.SensorID.String())
	}
	return out
}

func (s *session) track(sub *subscription.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// settle waits until the dispatcher is idle and every subscription the test
// created has handled its queued events.
func (s *session) settle(ctx context.Context) error {
	if err := s.env.Settle(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	subs := append([]*subscription.Subscription(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		for !sub.Idle(10 * time.Millisecond) {
			if ctx.Err() != nil {
				return fmt.Errorf("subscription %d did not go idle: %w", sub.ID, ctx.Err())
			}
		}
	}
	return nil
}

func (s *session) close() error {
	return s.env.Close()
}
