// Package loop runs posted functions one at a time on a single goroutine.
// It is the UI thread for the headless surfaces: the HTTP server and the
// cron refresh both hand their controller work to a Loop.
package loop

import (
	"context"
	"errors"
	"sync"

	appLog "monthgrid/internal/log"
)

// ErrStopped is returned by Do once Run has returned.
var ErrStopped = errors.New("loop: stopped")

// Loop is a FIFO of functions executed by Run.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// New returns a Loop whose queue holds up to buffer pending functions.
func New(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes posted functions until ctx is done. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn without blocking. It reports false when the queue is
// full or the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	default:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.queue <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run may have exited with wrapped still queued.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PostFunc enqueues fn, waiting for room when the queue is full. It is the
// hand-off used by goroutines working off the loop, such as event fetches
// and cron jobs, and must not be called from the loop itself. fn is dropped
// only once the loop has stopped.
func (l *Loop) PostFunc(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
		appLog.Warn("loop stopped, posted work dropped")
	}
}
