// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/ternarybob/arbor"
)

// SafeGo runs fn in a goroutine with panic recovery.
// A panic is logged with its stack and the process keeps running.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer recoverPanic(logger, name)
		fn()
	}()
}

// SafeGoWait is SafeGo tracked by wg, so callers can join a fan-out.
func SafeGoWait(wg *sync.WaitGroup, logger arbor.ILogger, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverPanic(logger, name)
		fn()
	}()
}

func recoverPanic(logger arbor.ILogger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
	}
}

func logPanic(logger arbor.ILogger, name string, r interface{}) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stackTrace).
			Msg("Recovered from panic - continuing service operation")
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
}
