package log

import (
	"slices"
	"sync"
)

// Logger receives client events.
// A nil Logger in a configuration means NoopLogger.
type Logger interface {
	// Log records an event. Implementations must be safe for concurrent use
	// and must not block; events are logged from the dispatch path.
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f.
func (f LoggerFunc) Log(event Event) { f(event) }

// MultiLogger sends events to several loggers, e.g. a SlogAdapter for the
// console and a FileLogger for later analysis.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to all configured loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// MemoryLogger keeps events in memory. The test harness uses it to inspect
// what a client did during a test case.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends the event.
func (m *MemoryLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of the recorded events matching filter.
func (m *MemoryLogger) Events(filter Filter) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return slices.Clip(out)
}

// Len returns the number of recorded events.
func (m *MemoryLogger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Reset discards recorded events.
func (m *MemoryLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*MemoryLogger)(nil)
)
