package goroutine

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// StackTraceBufferSize is the buffer size for stack trace collection
const StackTraceBufferSize = 4096

// Recover recovers from a panic and logs it with the goroutine name.
// Use it deferred. With a nil logger the panic is written to stderr.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		logPanic(name, r, logger)
	}
}

// Go runs fn in a new goroutine that cannot crash the process.
// If wg is not nil it is incremented before the goroutine starts and
// released when fn returns.
func Go(name string, logger *zap.SugaredLogger, wg *sync.WaitGroup, fn func()) {
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer Recover(name, logger)
		fn()
	}()
}

// SafeCall invokes fn on the calling goroutine and reports whether it
// returned normally. Listener and subscriber callbacks go through here so one
// bad callback cannot take down its caller.
func SafeCall(name string, logger *zap.SugaredLogger, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(name, r, logger)
			ok = false
		}
	}()
	fn()
	return true
}

func logPanic(name string, r interface{}, logger *zap.SugaredLogger) {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)

	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(buf[:n]))
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", name, r, string(buf[:n]))
}
