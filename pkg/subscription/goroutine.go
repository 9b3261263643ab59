package subscription

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// callbackGoroutines holds the IDs of running drain goroutines.
var callbackGoroutines sync.Map

func enterCallbackGoroutine() uint64 {
	id := goroutineID()
	callbackGoroutines.Store(id, struct{}{})
	return id
}

func leaveCallbackGoroutine(id uint64) {
	callbackGoroutines.Delete(id)
}

// inCallback reports whether the caller runs on a drain goroutine.
func inCallback() bool {
	_, ok := callbackGoroutines.Load(goroutineID())
	return ok
}

// goroutineID parses the "goroutine N [" header of the current stack.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
