package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/mapwidget"
)

// ErrLoopClosed is returned when work is submitted to a stopped loop.
var ErrLoopClosed = errors.New("event loop closed")

// Loop runs submitted functions one at a time on a single goroutine. Every
// piece of map state in a session is only touched from its loop.
type Loop struct {
	work chan func()
	quit chan struct{}
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

// NewLoop starts a loop.
func NewLoop(log zerolog.Logger) *Loop {
	l := &Loop{
		work: make(chan func(), 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		log:  log,
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.work:
			l.call(fn)
		case <-l.quit:
			return
		}
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("event loop task panicked")
		}
	}()
	fn()
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.work <- task:
	case <-l.quit:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop stopped before running the task.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return fmt.Errorf("waiting for event loop: %w", ctx.Err())
	}
}

// Post queues fn without waiting. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case l.work <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Close stops the loop. Queued work that has not started is dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}

// Scheduler returns a mapwidget.Scheduler whose timers fire on the loop.
func (l *Loop) Scheduler() mapwidget.Scheduler {
	return mapwidget.SchedulerFunc(func(d time.Duration, fn func()) mapwidget.Timer {
		return time.AfterFunc(d, func() { l.Post(fn) })
	})
}
