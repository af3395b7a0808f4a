package mapwidget

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/geo"
)

// Options configures an Adapter.
type Options struct {
	Bounds      geo.ZoomBounds
	Epsilon     float64
	SettleDelay time.Duration // wait after mount before creating the widget
	RetryDelay  time.Duration // wait before retrying a failed mount
	MaxRetries  int
	ResizeDelay time.Duration // wait after a resize before relayout
	Scheduler   Scheduler
	Logger      zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Bounds == (geo.ZoomBounds{}) {
		o.Bounds = geo.DefaultZoomBounds
	}
	if o.Epsilon == 0 {
		o.Epsilon = geo.DefaultEpsilon
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 100 * time.Millisecond
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 50
	}
	if o.Scheduler == nil {
		o.Scheduler = WallClock
	}
}

// Adapter owns one map widget: it creates it once, pushes viewports onto it,
// reports user-driven viewport changes and tears everything down on unmount.
//
// An Adapter is not safe for concurrent use; callers serialize access on a
// single event loop.
type Adapter struct {
	runtime *Runtime
	opts    Options
	log     zerolog.Logger

	m         Map
	listeners []ListenerID
	onChange  func(geo.Viewport) // latest callback, read by the listeners
	teardowns []func()

	setting  int // >0 while the adapter itself is driving the map
	closed   bool
	mounting bool
	warned   bool

	timerSeq uint64
	timers   map[uint64]Timer
}

// NewAdapter creates an adapter bound to a runtime.
func NewAdapter(runtime *Runtime, opts Options) *Adapter {
	opts.setDefaults()
	return &Adapter{
		runtime: runtime,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "mapwidget").Logger(),
		timers:  make(map[uint64]Timer),
	}
}

// Bounds returns the zoom bounds the adapter clamps to.
func (a *Adapter) Bounds() geo.ZoomBounds { return a.opts.Bounds }

// Live reports whether a widget exists and has not been torn down.
func (a *Adapter) Live() bool {
	return !a.closed && a.m != nil
}

// Initialize creates the widget exactly once. A second call while a widget
// exists is a no-op. It never panics: when the engine or container is not
// available yet it logs once and returns the reason, leaving retry to the
// caller (see Mount).
func (a *Adapter) Initialize(container string, vp geo.Viewport) error {
	if a.closed {
		return ErrTornDown
	}
	if a.m != nil {
		return nil
	}

	engine, ok := a.runtime.Engine()
	if !ok {
		a.warnOnce(ErrEngineUnavailable)
		return ErrEngineUnavailable
	}
	if container == "" {
		a.warnOnce(ErrNoContainer)
		return ErrNoContainer
	}

	vp = a.opts.Bounds.ClampViewport(vp)
	m, err := engine.CreateMap(container, vp)
	if err != nil {
		a.warnOnce(err)
		return fmt.Errorf("create map in %q: %w", container, err)
	}
	a.m = m

	for _, name := range []string{EventZoomChanged, EventDragEnd, EventIdle} {
		a.listeners = append(a.listeners, m.On(name, a.viewportEvent))
	}
	a.listeners = append(a.listeners,
		m.On(EventResize, a.HandleResize),
		m.On(EventTouchMove, a.interceptTouch),
	)

	a.log.Debug().Str("container", container).Stringer("viewport", vp).Msg("map widget created")
	return nil
}

// Mount waits for the engine runtime, lets the layout settle, then
// initializes the widget, retrying shortly on failure. onMounted runs once
// on success.
func (a *Adapter) Mount(container string, vp geo.Viewport, onMounted func()) {
	if a.closed || a.m != nil || a.mounting {
		return
	}
	a.mounting = true

	var attempt func(n int)
	attempt = func(n int) {
		if a.closed {
			return
		}
		err := a.Initialize(container, vp)
		switch {
		case err == nil:
			a.mounting = false
			if onMounted != nil {
				onMounted()
			}
		case errors.Is(err, ErrTornDown):
			a.mounting = false
		case n >= a.opts.MaxRetries:
			a.mounting = false
			a.log.Error().Err(err).Int("attempts", n).Msg("giving up on map mount")
		default:
			a.schedule(a.opts.RetryDelay, func() { attempt(n + 1) })
		}
	}

	a.runtime.WhenReady(func(Engine) {
		if a.closed {
			return
		}
		a.schedule(a.opts.SettleDelay, func() { attempt(1) })
	})
}

// SetViewport pushes center and zoom onto the widget. The zoom is clamped to
// the provider bounds. Equal values are a no-op; it reports whether the map
// was touched. Events the map fires while being set are suppressed.
func (a *Adapter) SetViewport(vp geo.Viewport) bool {
	if !a.Live() {
		return false
	}
	vp = a.opts.Bounds.ClampViewport(vp)

	current := geo.Viewport{Center: a.m.Center(), Zoom: a.m.Zoom()}
	if current.Equal(vp, a.opts.Epsilon) {
		return false
	}

	a.setting++
	defer func() { a.setting-- }()

	if current.Center.Distance(vp.Center) >= a.opts.Epsilon {
		a.m.SetCenter(vp.Center)
	}
	if current.Zoom != vp.Zoom {
		a.m.SetZoom(vp.Zoom)
	}
	return true
}

// Viewport reads the widget's current viewport.
func (a *Adapter) Viewport() (geo.Viewport, bool) {
	if !a.Live() {
		return geo.Viewport{}, false
	}
	return geo.Viewport{Center: a.m.Center(), Zoom: a.m.Zoom()}, true
}

// OnViewportChanged sets the callback for user-driven pan/zoom. Only the
// latest callback is kept; the listeners read it on every event.
func (a *Adapter) OnViewportChanged(fn func(geo.Viewport)) {
	a.onChange = fn
}

// OnTeardown registers fn to run during Teardown while the map is still alive.
func (a *Adapter) OnTeardown(fn func()) {
	a.teardowns = append(a.teardowns, fn)
}

// Relayout makes the widget recompute its canvas size and keeps the center.
// Events fired by the relayout are suppressed.
func (a *Adapter) Relayout() {
	if !a.Live() {
		return
	}
	center := a.m.Center()

	a.setting++
	defer func() { a.setting-- }()

	a.m.Relayout()
	a.m.SetCenter(center)
}

// HandleResize schedules one relayout after the resize delay.
func (a *Adapter) HandleResize(*Event) {
	if !a.Live() {
		return
	}
	a.schedule(a.opts.ResizeDelay, a.Relayout)
}

// Teardown releases listeners, pending timers and the widget. It is safe to
// call more than once.
func (a *Adapter) Teardown() {
	if a.closed {
		return
	}
	a.closed = true
	a.mounting = false
	a.onChange = nil

	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}

	if a.m == nil {
		return
	}
	for _, id := range a.listeners {
		a.m.Off(id)
	}
	a.listeners = nil

	// The map must stay alive while teardown hooks release their handles.
	m := a.m
	for _, fn := range a.teardowns {
		fn()
	}
	a.teardowns = nil
	a.m = nil
	m.Destroy()

	a.log.Debug().Msg("map widget torn down")
}

// AddOverlay renders an overlay on the widget.
func (a *Adapter) AddOverlay(spec OverlaySpec, onClick ClickFunc) (Handle, error) {
	if !a.Live() {
		return 0, ErrEngineUnavailable
	}
	return a.m.AddOverlay(spec, onClick)
}

// RemoveOverlay removes an overlay; a no-op once the widget is gone.
func (a *Adapter) RemoveOverlay(h Handle) {
	if a.m == nil {
		return
	}
	a.m.RemoveOverlay(h)
}

// AddPolygon renders a polygon on the widget.
func (a *Adapter) AddPolygon(spec PolygonSpec) (Handle, error) {
	if !a.Live() {
		return 0, ErrEngineUnavailable
	}
	return a.m.AddPolygon(spec)
}

// RemovePolygon removes a polygon; a no-op once the widget is gone.
func (a *Adapter) RemovePolygon(h Handle) {
	if a.m == nil {
		return
	}
	a.m.RemovePolygon(h)
}

func (a *Adapter) viewportEvent(*Event) {
	if !a.Live() || a.setting > 0 {
		return
	}
	fn := a.onChange
	if fn == nil {
		return
	}
	fn(geo.Viewport{Center: a.m.Center(), Zoom: a.m.Zoom()})
}

// interceptTouch keeps one-finger drags on the map instead of scrolling the
// page; pinch zoom passes through. A browser page must decide this inside
// its own touchmove handler, so the map page applies the same rule in its
// script and engines that run in-process get it here.
func (a *Adapter) interceptTouch(ev *Event) {
	if !a.Live() {
		return
	}
	if ev.Touches == 1 {
		ev.PreventDefault()
	}
}

func (a *Adapter) schedule(d time.Duration, fn func()) {
	a.timerSeq++
	id := a.timerSeq
	fired := false
	t := a.opts.Scheduler.AfterFunc(d, func() {
		fired = true
		delete(a.timers, id)
		if a.closed {
			return
		}
		fn()
	})
	if !fired {
		a.timers[id] = t
	}
}

func (a *Adapter) warnOnce(err error) {
	if a.warned {
		return
	}
	a.warned = true
	a.log.Warn().Err(err).Msg("map widget not ready, deferring")
}
