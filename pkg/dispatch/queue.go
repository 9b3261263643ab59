package dispatch

import (
	"errors"
	"sync"

	"github.com/sensorkit/sensorkit-go/pkg/driver"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// ErrNotRunning is returned by synchronous requests when the dispatcher is
// not running.
var ErrNotRunning = errors.New("dispatcher not running")

type commandKind uint8

const (
	cmdReconcile commandKind = iota
	cmdReading
	cmdFault
	cmdSuspend
	cmdResume
	cmdReset
	cmdBarrier
)

type command struct {
	kind     commandKind
	sensorID sensor.ID
	reading  sensor.Reading
	fault    driver.Fault
	reply    chan error
}

// commandQueue is an unbounded FIFO. push never blocks.
type commandQueue struct {
	mu     sync.Mutex
	items  []command
	signal chan struct{}
}

func newCommandQueue(capacity int) *commandQueue {
	return &commandQueue{
		items:  make([]command, 0, capacity),
		signal: make(chan struct{}, 1),
	}
}

func (q *commandQueue) push(cmd command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *commandQueue) ready() <-chan struct{} {
	return q.signal
}

// drain removes and returns every queued command.
func (q *commandQueue) drain() []command {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = make([]command, 0, cap(items))
	return items
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
