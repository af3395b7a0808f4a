package mapwidget

import (
	"sync"
	"time"
)

// Runtime tracks whether the map engine script has loaded. Calls issued
// before readiness are queued and run, in order, once MarkReady is called.
type Runtime struct {
	mu      sync.Mutex
	engine  Engine
	waiters []func(Engine)
}

// NewRuntime returns a runtime that is not ready yet.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// MarkReady records the loaded engine and drains the waiter queue.
// Marking an already ready runtime replaces the engine and runs nothing.
func (r *Runtime) MarkReady(e Engine) {
	r.mu.Lock()
	wasReady := r.engine != nil
	r.engine = e
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	if wasReady {
		return
	}
	for _, fn := range waiters {
		fn(e)
	}
}

// Ready reports whether the engine has loaded.
func (r *Runtime) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine != nil
}

// Engine returns the loaded engine, if any.
func (r *Runtime) Engine() (Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine, r.engine != nil
}

// WhenReady runs fn with the engine now if ready, otherwise once it is.
func (r *Runtime) WhenReady(fn func(Engine)) {
	r.mu.Lock()
	e := r.engine
	if e == nil {
		r.waiters = append(r.waiters, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	fn(e)
}

// Pending returns the number of queued waiters.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// Reset forgets the engine and drops queued waiters (page unload).
func (r *Runtime) Reset() {
	r.mu.Lock()
	r.engine = nil
	r.waiters = nil
	r.mu.Unlock()
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after a delay. Implementations used by a session must
// run fn on the session's event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, fn func()) Timer

// AfterFunc implements Scheduler.
func (f SchedulerFunc) AfterFunc(d time.Duration, fn func()) Timer {
	return f(d, fn)
}

// WallClock schedules with time.AfterFunc on its own goroutine. Only suitable
// when nothing else touches the adapter concurrently.
var WallClock Scheduler = SchedulerFunc(func(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
})
