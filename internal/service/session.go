package service

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/mapwidget/browser"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

// Session is one open map page: a page-backed engine, the widget adapter, the
// view-state controller and the detail binder, all driven from one loop.
type Session struct {
	ID      string
	Created time.Time

	loop    *Loop
	bus     *EventBus
	log     zerolog.Logger
	runtime *mapwidget.Runtime
	engine  *browser.Engine
	adapter *mapwidget.Adapter
	ctrl    *viewstate.Controller
	binder  *detail.Binder

	container string
	lastSeen  atomic.Int64
	streams   atomic.Int32
	closeOnce sync.Once

	// Loop-owned.
	pageReady  bool
	attached   bool
	mounted    bool
	lastState  *State
	panelDirty bool
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Streams returns the number of attached event streams.
func (s *Session) Streams() int {
	return int(s.streams.Load())
}

// wire connects the controller hooks. Runs once at creation.
func (s *Session) wire() {
	s.ctrl.OnSelectionChange(func(id string) {
		if s.binder.Bind(id) {
			s.panelDirty = true
		}
	})
	s.ctrl.OnOverlayClick(func(id string) {
		s.log.Debug().Str("overlay", id).Msg("overlay clicked")
	})
}

// do runs fn on the loop, then publishes whatever state fn changed.
func (s *Session) do(ctx context.Context, fn func()) error {
	return s.loop.Do(ctx, func() {
		fn()
		s.flush()
	})
}

func (s *Session) state() State {
	return State{
		ID:      s.ID,
		Ready:   s.pageReady,
		Mounted: s.mounted,
		View:    s.ctrl.Snapshot(),
		Panel:   s.binder.View(),
	}
}

// flush publishes the state and panel when they differ from what
// subscribers last saw.
func (s *Session) flush() {
	st := s.state()
	if s.lastState == nil || !sameState(*s.lastState, st) {
		s.lastState = &st
		s.bus.Publish(Event{Session: s.ID, Kind: KindState, State: &st})
	}
	if s.panelDirty {
		s.panelDirty = false
		panel := st.Panel
		s.bus.Publish(Event{Session: s.ID, Kind: KindPanel, Panel: &panel})
	}
}

func sameState(a, b State) bool {
	return a.Ready == b.Ready &&
		a.Mounted == b.Mounted &&
		a.View.Viewport == b.View.Viewport &&
		a.View.Mode == b.View.Mode &&
		a.View.Selected == b.View.Selected &&
		a.View.Closed == b.View.Closed &&
		slices.Equal(a.View.Overlays, b.View.Overlays) &&
		slices.Equal(a.View.Polygons, b.View.Polygons)
}

// State returns the current session state.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.loop.Do(ctx, func() { st = s.state() })
	return st, err
}

// Attach records that an event stream is listening. The map is only created
// once a stream is attached and the page reported ready, so no engine
// command is published into the void. A stream attaching to a mounted map
// may belong to a page that missed commands while it was away, so the page
// is rebuilt from the server's state.
func (s *Session) Attach(ctx context.Context) error {
	s.streams.Add(1)
	return s.do(ctx, func() {
		s.attached = true
		if s.mounted {
			s.resync()
			return
		}
		s.maybeStart()
	})
}

// resync replays the map and panel to every subscriber.
func (s *Session) resync() {
	if !s.engine.Replay() {
		return
	}
	s.ctrl.Sync()
	s.panelDirty = true
	s.log.Debug().Msg("page resynced")
}

// Detach records that an event stream went away.
func (s *Session) Detach() {
	s.streams.Add(-1)
}

// Ready records that the page loaded the map engine script.
func (s *Session) Ready(ctx context.Context) error {
	return s.do(ctx, func() {
		s.pageReady = true
		s.maybeStart()
	})
}

func (s *Session) maybeStart() {
	if !s.pageReady || !s.attached || s.runtime.Ready() {
		return
	}
	s.runtime.MarkReady(s.engine)
}

// Dispatch delivers a page event (viewport report, click, resize, touch).
func (s *Session) Dispatch(ctx context.Context, ev browser.Event) (browser.Outcome, error) {
	var (
		out browser.Outcome
		err error
	)
	if doErr := s.do(ctx, func() { out, err = s.engine.Dispatch(ev) }); doErr != nil {
		return out, doErr
	}
	return out, err
}

// SetViewport moves the map programmatically.
func (s *Session) SetViewport(ctx context.Context, vp geo.Viewport) (State, error) {
	var st State
	err := s.do(ctx, func() {
		s.ctrl.SetViewport(vp)
		st = s.state()
	})
	return st, err
}

// SetSelection selects an entry and navigates to it. Unknown IDs leave the
// state unchanged.
func (s *Session) SetSelection(ctx context.Context, id string) (State, error) {
	var st State
	err := s.do(ctx, func() {
		s.ctrl.SetSelection(id)
		st = s.state()
	})
	return st, err
}

// ClearSelection closes the detail panel.
func (s *Session) ClearSelection(ctx context.Context) (State, error) {
	var st State
	err := s.do(ctx, func() {
		s.ctrl.ClearSelection()
		st = s.state()
	})
	return st, err
}

// SelectUnit switches the panel's price option.
func (s *Session) SelectUnit(ctx context.Context, i int) (detail.View, error) {
	var v detail.View
	err := s.do(ctx, func() {
		if s.binder.SelectUnit(i) {
			s.panelDirty = true
		}
		v = s.binder.View()
	})
	return v, err
}

// ToggleShowMore expands or collapses the panel's extra transactions.
func (s *Session) ToggleShowMore(ctx context.Context) (detail.View, error) {
	var v detail.View
	err := s.do(ctx, func() {
		if s.binder.ToggleShowMore() {
			s.panelDirty = true
		}
		v = s.binder.View()
	})
	return v, err
}

// close tears the map down and stops the loop. Safe to call more than once.
func (s *Session) close(ctx context.Context) {
	s.closeOnce.Do(func() {
		if err := s.loop.Do(ctx, func() {
			s.ctrl.Close()
			s.runtime.Reset()
		}); err != nil {
			s.log.Warn().Err(err).Msg("session teardown did not finish")
		}
		s.loop.Close()
		s.bus.Publish(Event{Session: s.ID, Kind: KindClosed})
		s.log.Info().Msg("session closed")
	})
}
