// Package service runs the map sessions behind the HTTP surface.
//
// A session is one open map page. It owns a page-backed map engine, the widget
// adapter, the view-state controller and the detail binder, and serializes
// every call into them on its own event loop. Engine commands and state
// changes fan out to subscribers through the EventBus.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/mapwidget/browser"
	"github.com/joeblew999/plat-termit/internal/metrics"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

// ErrSessionNotFound is returned for unknown or closed session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Options configures a SessionService.
type Options struct {
	// Container is the DOM element ID the page mounts the map into.
	Container string
	// IdleTimeout closes sessions with no attached stream after this long.
	IdleTimeout time.Duration
	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration
	// Adapter tunes the widget adapter; the scheduler is always the
	// session loop.
	Adapter mapwidget.Options
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	// Now is the clock, for tests.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Container == "" {
		o.Container = "map"
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// SessionService creates, finds and expires map sessions.
type SessionService struct {
	cat  *catalogue.Catalogue
	src  detail.Source
	bus  *EventBus
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// controllerMetrics keeps a nil *metrics.Metrics out of the controller's
// interface field.
func controllerMetrics(m *metrics.Metrics) viewstate.Metrics {
	if m == nil {
		return nil
	}
	return m
}

// hasDetails limits selection to entries the detail source knows.
func (svc *SessionService) hasDetails() func(string) bool {
	if svc.src == nil {
		return nil
	}
	return func(id string) bool {
		_, ok := svc.src.Lookup(id)
		return ok
	}
}

// NewSessionService returns a service building sessions over cat and src.
func NewSessionService(cat *catalogue.Catalogue, src detail.Source, bus *EventBus, opts Options) *SessionService {
	opts.setDefaults()
	if bus == nil {
		bus = NewEventBus()
	}
	return &SessionService{
		cat:      cat,
		src:      src,
		bus:      bus,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "sessions").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Bus returns the event bus sessions publish on.
func (svc *SessionService) Bus() *EventBus { return svc.bus }

// Catalogue returns the catalogue sessions render.
func (svc *SessionService) Catalogue() *catalogue.Catalogue { return svc.cat }

// Container returns the DOM element ID maps mount into.
func (svc *SessionService) Container() string { return svc.opts.Container }

// Create opens a session. The map is created once the page attaches a stream
// and reports ready.
func (svc *SessionService) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	log := svc.opts.Logger.With().Str("session", id).Logger()
	now := svc.opts.Now()

	loop := NewLoop(log)
	s := &Session{
		ID:        id,
		Created:   now,
		loop:      loop,
		bus:       svc.bus,
		log:       log,
		runtime:   mapwidget.NewRuntime(),
		container: svc.opts.Container,
	}
	s.touch(now)
	s.engine = browser.New(browser.SinkFunc(func(cmd browser.Command) {
		svc.bus.Publish(Event{Session: id, Kind: KindCommand, Command: &cmd})
	}))

	adapterOpts := svc.opts.Adapter
	adapterOpts.Bounds = svc.cat.Zoom()
	adapterOpts.Epsilon = svc.cat.Epsilon()
	adapterOpts.Scheduler = loop.Scheduler()
	adapterOpts.Logger = log
	s.adapter = mapwidget.NewAdapter(s.runtime, adapterOpts)

	s.ctrl = viewstate.New(s.adapter, viewstate.Config{
		Catalogue:  svc.cat,
		Thresholds: svc.cat.Thresholds(),
		Bounds:     svc.cat.Zoom(),
		Epsilon:    svc.cat.Epsilon(),
		Initial:    svc.cat.Initial(),
		HasDetails: svc.hasDetails(),
		Metrics:    controllerMetrics(svc.opts.Metrics),
		Logger:     log,
	})
	s.binder = detail.NewBinder(svc.src)

	err := loop.Do(ctx, func() {
		s.wire()
		// Mount from the canonical viewport at the time the widget is
		// created; Sync pushes anything that changed in between.
		s.adapter.Mount(s.container, s.ctrl.Viewport(), func() {
			s.mounted = true
			s.ctrl.Sync()
			s.flush()
			log.Info().Msg("map mounted")
		})
		s.flush()
	})
	if err != nil {
		loop.Close()
		return nil, err
	}

	svc.mu.Lock()
	svc.sessions[id] = s
	svc.mu.Unlock()
	svc.opts.Metrics.SessionOpened()
	log.Info().Msg("session created")
	return s, nil
}

// Get returns a live session and marks it used.
func (svc *SessionService) Get(id string) (*Session, error) {
	svc.mu.RLock()
	s, ok := svc.sessions[id]
	svc.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(svc.opts.Now())
	return s, nil
}

// List returns the live sessions, oldest first.
func (svc *SessionService) List() []*Session {
	svc.mu.RLock()
	out := make([]*Session, 0, len(svc.sessions))
	for _, s := range svc.sessions {
		out = append(out, s)
	}
	svc.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Len returns the number of live sessions.
func (svc *SessionService) Len() int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return len(svc.sessions)
}

// Close tears a session down.
func (svc *SessionService) Close(ctx context.Context, id string) error {
	s, ok := svc.remove(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.close(ctx)
	svc.opts.Metrics.SessionClosed(false)
	return nil
}

func (svc *SessionService) remove(id string) (*Session, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	s, ok := svc.sessions[id]
	if ok {
		delete(svc.sessions, id)
	}
	return s, ok
}

// Sweep closes sessions that have no attached stream and have been idle for
// longer than the idle timeout. It returns how many it closed.
func (svc *SessionService) Sweep(ctx context.Context) int {
	cutoff := svc.opts.Now().Add(-svc.opts.IdleTimeout)

	var idle []string
	svc.mu.RLock()
	for id, s := range svc.sessions {
		if s.Streams() == 0 && s.LastSeen().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	svc.mu.RUnlock()

	n := 0
	for _, id := range idle {
		s, ok := svc.remove(id)
		if !ok {
			continue
		}
		s.close(ctx)
		svc.opts.Metrics.SessionClosed(true)
		n++
	}
	if n > 0 {
		svc.log.Info().Int("closed", n).Msg("expired idle sessions")
	}
	return n
}

// Run sweeps idle sessions until ctx is done, then closes every session.
func (svc *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(svc.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			svc.Sweep(ctx)
		case <-ctx.Done():
			svc.Shutdown(context.Background())
			return
		}
	}
}

// Shutdown closes every session.
func (svc *SessionService) Shutdown(ctx context.Context) {
	for _, s := range svc.List() {
		if _, ok := svc.remove(s.ID); ok {
			s.close(ctx)
			svc.opts.Metrics.SessionClosed(false)
		}
	}
}
