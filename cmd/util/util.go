package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/portmirror/portmirror/pkg/errors"
	"github.com/portmirror/portmirror/pkg/version"
)

// HandleFatalError prints the user-facing message for err and exits with a
// non-zero status. It's the single funnel through which commands abort, so
// the "whole run terminates" semantics live in one place.
func HandleFatalError(err error) {
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	log.WithError(err).Debug("Fatal error")
	os.Exit(1)
}

// HandlePanic recovers from panics, prints a report, and exits non-zero.
// It should be deferred at the top of every goroutine that doesn't have
// another recovery mechanism.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	fmt.Fprintf(os.Stderr,
		"portmirror hit an unexpected error (version %s).\n\n%v\n\n%s\n",
		version.Version, r, debug.Stack())
	os.Exit(1)
}

// ProgressPrinter writes dots to the writer until it's stopped. It gives
// feedback during operations that can block for a long time, like waiting on
// a slow device.
type ProgressPrinter struct {
	out     io.Writer
	message string
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgressPrinter creates a new ProgressPrinter.
func NewProgressPrinter(out io.Writer, message string) *ProgressPrinter {
	return &ProgressPrinter{
		out:     out,
		message: message,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run prints the message, followed by a dot every second until Stop is
// called. It's meant to be run in a goroutine.
func (pp *ProgressPrinter) Run() {
	defer close(pp.stopped)
	fmt.Fprint(pp.out, pp.message)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(pp.out, ".")
		case <-pp.stop:
			fmt.Fprintln(pp.out)
			return
		}
	}
}

// Stop terminates the printer and waits for it to finish writing.
func (pp *ProgressPrinter) Stop() {
	close(pp.stop)
	<-pp.stopped
}
