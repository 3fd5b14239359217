// ABOUTME: Control-thread dispatcher owning all window and surface mutation.
// ABOUTME: Marshals work onto one OS-locked goroutine via Post and Invoke.

// Package uithread serializes window-state mutation onto a single privileged
// OS thread. Callers never touch a window directly: they Post detached calls
// whose failures are logged, or Invoke when they need the result.
package uithread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// ErrStopped indicates the dispatcher was stopped before the call could run.
var ErrStopped = errors.New("control thread stopped")

// defaultQueueSize bounds the work queue when the caller passes zero.
const defaultQueueSize = 128

type task struct {
	fn   func() error
	errc chan error // nil for detached posts
}

// Dispatcher owns the privileged control thread. Run serves the queue on the
// calling goroutine, locked to its OS thread; Post and Invoke marshal work
// onto it from anywhere.
type Dispatcher struct {
	logger   *slog.Logger
	queue    chan task
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a dispatcher. queueSize bounds queued calls; zero or negative
// selects the default. Pass nil logger for default.
func New(logger *slog.Logger, queueSize int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		logger: logger.With("component", "uithread"),
		queue:  make(chan task, queueSize),
		done:   make(chan struct{}),
	}
}

// Run serves queued calls on the calling goroutine until ctx is cancelled or
// Stop is called. The goroutine is locked to its OS thread for the duration.
// Calls still queued when Run returns are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d.logger.Debug("control thread running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return nil
		case tk := <-d.queue:
			d.serve(tk)
		}
	}
}

// Post queues fn for detached execution on the control thread and returns
// immediately. A failure or panic is logged, never discarded.
func (d *Dispatcher) Post(fn func() error) {
	select {
	case <-d.done:
		d.logger.Warn("post after stop, dropping control-thread call")
	case d.queue <- task{fn: fn}:
	}
}

// Invoke runs fn on the control thread and blocks until it completes, ctx is
// cancelled, or the dispatcher stops.
func (d *Dispatcher) Invoke(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	case d.queue <- task{fn: fn, errc: errc}:
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
}

// Stop shuts the dispatcher down. Queued calls are dropped and blocked
// Invoke callers receive ErrStopped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
}

func (d *Dispatcher) serve(tk task) {
	err := d.execute(tk.fn)
	if tk.errc != nil {
		tk.errc <- err
		return
	}
	if err != nil {
		d.logger.Error("detached control-thread call failed", "error", err)
	}
}

func (d *Dispatcher) execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("control-thread call panicked: %v", r)
		}
	}()
	return fn()
}
