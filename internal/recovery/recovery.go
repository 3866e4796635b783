// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var logger atomic.Pointer[log.Logger]

// SetLogger routes panic reports through l. Reports go to stderr by default.
func SetLogger(l *log.Logger) {
	logger.Store(l)
}

func report(r any) {
	l := logger.Load()
	if l == nil {
		l = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	l.Error("FATAL: recovered panic", "panic", r)
	_, _ = fmt.Fprintf(os.Stderr, "\nStack trace:\n%s\n", debug.Stack())
}

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(r)
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details and calls cleanup before exiting. The
// keyer passes a cleanup that silences the sidetone.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(r)
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

// Go runs fn on a new goroutine guarded by HandlePanicFunc(cleanup).
func Go(fn func(), cleanup func()) {
	go func() {
		defer HandlePanicFunc(cleanup)
		fn()
	}()
}
