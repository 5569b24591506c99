// Package applog provides the pipeline's one-line-per-error logging:
// every non-fatal error produces exactly one WARNING line, every fatal
// error produces exactly one ERROR line.
package applog

import (
	"fmt"
	"io"
	"os"
)

// Logger writes WARNING/ERROR lines to an output stream, clearing any
// in-progress terminal line first so progress bars don't collide with
// log output.
type Logger struct {
	out io.Writer
}

// New creates a Logger writing to w.
func New(w io.Writer) *Logger { return &Logger{out: w} }

// Default returns a Logger writing to os.Stderr.
func Default() *Logger { return New(os.Stderr) }

// Warning emits one WARNING line for a non-fatal error. The
// orchestrator continues after this; the pipeline never aborts
// mid-phase on a single non-fatal error.
func (l *Logger) Warning(err error) {
	fmt.Fprintf(l.out, "\r\033[Kwarning: %v\n", err)
}

// Error emits one ERROR line for a fatal error (a config error, or
// running out of memory or file descriptors). Callers exit non-zero
// after this.
func (l *Logger) Error(err error) {
	fmt.Fprintf(l.out, "\r\033[Kerror: %v\n", err)
}

// Drain consumes errors from errs until it is closed, logging each as
// a WARNING.
func (l *Logger) Drain(errs <-chan error) {
	for err := range errs {
		l.Warning(err)
	}
}
