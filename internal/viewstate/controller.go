// Package viewstate keeps a map widget in sync with declarative view state:
// the canonical viewport, the view mode derived from its zoom, and the
// selected entity.
//
// User pan/zoom arrives from the widget; programmatic navigation (overlay
// clicks, external commands) is pushed to it. Echoes of programmatic pushes
// and sub-epsilon jitter are discarded so the two directions never feed each
// other. While an entity is selected the mode stays frozen.
package viewstate

import (
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/reconcile"
)

// Viewport event outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeJitter  = "jitter"
	OutcomeEcho    = "echo"
	OutcomeStale   = "stale"
)

// Selection outcomes.
const (
	SelectionSelected = "selected"
	SelectionCleared  = "cleared"
	SelectionUnknown  = "unknown"
)

// Target is where an overlay navigates to when clicked.
type Target struct {
	Viewport geo.Viewport
	// Leaf entries are selectable; clicking one opens its details.
	Leaf bool
}

// Catalogue supplies the fixed per-mode overlay and polygon sets.
type Catalogue interface {
	Overlays(m Mode) []mapwidget.OverlaySpec
	Polygons(m Mode) []mapwidget.PolygonSpec
	Target(id string) (Target, bool)
}

// Widget is the map widget the controller drives. *mapwidget.Adapter
// satisfies it.
type Widget interface {
	reconcile.Surface
	SetViewport(vp geo.Viewport) bool
	OnViewportChanged(fn func(geo.Viewport))
	OnTeardown(fn func())
	Teardown()
}

// Metrics receives controller counters. Implementations must tolerate
// being called on every event.
type Metrics interface {
	reconcile.Observer
	ViewportEvent(outcome string)
	ModeTransition(from, to Mode)
	Selection(outcome string)
}

// Config configures a Controller.
type Config struct {
	Catalogue  Catalogue
	Thresholds Thresholds
	Bounds     geo.ZoomBounds
	Epsilon    float64
	Initial    geo.Viewport
	// HasDetails reports whether an entry has a detail record. When set,
	// leaf entries without one cannot be selected.
	HasDetails func(id string) bool
	Metrics    Metrics
	Logger     zerolog.Logger
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Viewport geo.Viewport `json:"viewport" doc:"Canonical viewport"`
	Mode     Mode         `json:"mode" doc:"Current view mode" enum:"NATION,CITY,DISTRICT"`
	Selected string       `json:"selected,omitempty" doc:"Selected entry ID"`
	Overlays []string     `json:"overlays" doc:"Rendered overlay IDs"`
	Polygons []string     `json:"polygons" doc:"Rendered polygon keys"`
	Closed   bool         `json:"closed,omitempty" doc:"Controller has been torn down"`
}

// Controller owns the view state of one map. It is not safe for concurrent
// use; every method must be called from the map's event loop.
type Controller struct {
	widget  Widget
	rec     *reconcile.Reconciler
	cat     Catalogue
	th      Thresholds
	bounds  geo.ZoomBounds
	eps     float64
	metrics Metrics
	details func(id string) bool
	log     zerolog.Logger

	viewport geo.Viewport
	mode     Mode
	selected string
	inflight *geo.Viewport // programmatic target whose echo is still expected
	closed   bool

	onOverlayClick    func(id string)
	onViewportChange  func(geo.Viewport)
	onSelectionChange func(id string)
}

// New creates a controller over w. Nothing is rendered until Sync is called
// once the widget has mounted.
func New(w Widget, cfg Config) *Controller {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds
	}
	if cfg.Bounds == (geo.ZoomBounds{}) {
		cfg.Bounds = geo.DefaultZoomBounds
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = geo.DefaultEpsilon
	}

	c := &Controller{
		widget:  w,
		cat:     cfg.Catalogue,
		th:      cfg.Thresholds,
		bounds:  cfg.Bounds,
		eps:     cfg.Epsilon,
		metrics: cfg.Metrics,
		details: cfg.HasDetails,
		log:     cfg.Logger.With().Str("component", "viewstate").Logger(),
	}
	c.viewport = c.bounds.ClampViewport(cfg.Initial)
	c.mode = DeriveMode(c.viewport.Zoom, c.th)

	var obs reconcile.Observer
	if cfg.Metrics != nil {
		obs = cfg.Metrics
	}
	c.rec = reconcile.New(w, c.OverlayClick, obs, cfg.Logger)

	w.OnViewportChanged(c.HandleViewportChanged)
	w.OnTeardown(func() {
		c.closed = true
		c.inflight = nil
		c.rec.Clear()
	})
	return c
}

// OnOverlayClick sets the hook called after an overlay click is handled.
func (c *Controller) OnOverlayClick(fn func(id string)) { c.onOverlayClick = fn }

// OnViewportChange sets the hook called whenever the canonical viewport
// changes, whether the user or a command moved it.
func (c *Controller) OnViewportChange(fn func(geo.Viewport)) { c.onViewportChange = fn }

// OnSelectionChange sets the hook called when the selected ID changes. An
// empty ID means the selection was cleared.
func (c *Controller) OnSelectionChange(fn func(id string)) { c.onSelectionChange = fn }

// Sync pushes the canonical viewport to the widget and renders the overlay
// set for the current mode. Call it once the widget has mounted.
func (c *Controller) Sync() {
	if c.closed {
		return
	}
	c.push(c.viewport)
	c.render()
}

// HandleViewportChanged processes a user-driven viewport report from the
// widget.
func (c *Controller) HandleViewportChanged(vp geo.Viewport) {
	if c.closed {
		c.observeViewport(OutcomeStale)
		return
	}
	vp = c.bounds.ClampViewport(vp)

	if target := c.inflight; target != nil {
		c.inflight = nil
		if target.Equal(vp, c.eps) {
			c.observeViewport(OutcomeEcho)
			return
		}
	}
	if vp.Zoom == c.viewport.Zoom && vp.Center.Distance(c.viewport.Center) < c.eps {
		c.observeViewport(OutcomeJitter)
		return
	}

	c.viewport = vp
	c.observeViewport(OutcomeApplied)
	c.log.Debug().Stringer("viewport", vp).Msg("viewport changed")

	if c.selected == "" {
		c.setMode(DeriveMode(vp.Zoom, c.th))
	}
	if fn := c.onViewportChange; fn != nil {
		fn(vp)
	}
}

// OverlayClick navigates to the clicked entry's target. Selectable entries
// also become the selection. Unknown IDs are ignored.
func (c *Controller) OverlayClick(id string) {
	if c.closed {
		return
	}
	target, ok := c.cat.Target(id)
	if !ok {
		c.observeSelection(SelectionUnknown)
		c.log.Debug().Str("id", id).Msg("click on unknown overlay ignored")
		return
	}

	if c.selectable(id, target) {
		c.selectID(id)
	}
	c.navigate(target.Viewport)

	if fn := c.onOverlayClick; fn != nil {
		fn(id)
	}
}

// SetSelection selects id and navigates to its target. An empty id clears
// the selection. Ids that cannot be selected leave the state unchanged.
func (c *Controller) SetSelection(id string) {
	if c.closed {
		return
	}
	if id == "" {
		c.ClearSelection()
		return
	}
	target, ok := c.cat.Target(id)
	if !ok || !c.selectable(id, target) {
		c.observeSelection(SelectionUnknown)
		c.log.Debug().Str("id", id).Msg("selection of unselectable entry ignored")
		return
	}
	c.selectID(id)
	c.navigate(target.Viewport)
}

func (c *Controller) selectable(id string, t Target) bool {
	return t.Leaf && (c.details == nil || c.details(id))
}

// ClearSelection drops the selection and derives the mode from the current
// zoom straight away.
func (c *Controller) ClearSelection() {
	if c.closed || c.selected == "" {
		return
	}
	c.selected = ""
	c.observeSelection(SelectionCleared)
	c.log.Debug().Msg("selection cleared")
	if fn := c.onSelectionChange; fn != nil {
		fn("")
	}
	c.setMode(DeriveMode(c.viewport.Zoom, c.th))
}

// SetViewport moves the map programmatically. The selection is kept.
func (c *Controller) SetViewport(vp geo.Viewport) {
	if c.closed {
		return
	}
	c.navigate(vp)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Viewport: c.viewport,
		Mode:     c.mode,
		Selected: c.selected,
		Overlays: c.rec.Rendered(),
		Polygons: c.rec.RenderedPolygons(),
		Closed:   c.closed,
	}
}

// Viewport returns the canonical viewport.
func (c *Controller) Viewport() geo.Viewport { return c.viewport }

// Mode returns the current view mode.
func (c *Controller) Mode() Mode { return c.mode }

// Selected returns the selected ID, or "".
func (c *Controller) Selected() string { return c.selected }

// Closed reports whether the controller has been torn down.
func (c *Controller) Closed() bool { return c.closed }

// Close detaches from the widget and tears it down, removing every overlay
// and polygon. Later events and commands are ignored. Safe to call twice.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.widget.OnViewportChanged(nil)
	// The teardown hook registered in New clears the reconciler and marks
	// the controller closed.
	c.widget.Teardown()
	c.closed = true
	c.log.Debug().Msg("controller closed")
}

// navigate sets the canonical viewport and pushes it to the widget. With no
// selection the mode follows the new zoom immediately.
func (c *Controller) navigate(vp geo.Viewport) {
	vp = c.bounds.ClampViewport(vp)
	changed := !vp.Equal(c.viewport, c.eps)
	c.viewport = vp
	c.push(vp)

	if c.selected == "" {
		c.setMode(DeriveMode(vp.Zoom, c.th))
	}
	if changed {
		if fn := c.onViewportChange; fn != nil {
			fn(vp)
		}
	}
}

func (c *Controller) push(vp geo.Viewport) {
	if c.widget.SetViewport(vp) {
		c.inflight = &vp
	}
}

func (c *Controller) selectID(id string) {
	if c.selected == id {
		return
	}
	c.selected = id
	c.observeSelection(SelectionSelected)
	c.log.Debug().Str("id", id).Stringer("mode", c.mode).Msg("selected")
	if fn := c.onSelectionChange; fn != nil {
		fn(id)
	}
}

func (c *Controller) setMode(m Mode) {
	if m == c.mode {
		return
	}
	from := c.mode
	c.mode = m
	c.render()
	if c.metrics != nil {
		c.metrics.ModeTransition(from, m)
	}
	c.log.Debug().Stringer("from", from).Stringer("to", m).Msg("mode changed")
}

// render replaces the whole derived set for the current mode; the reconciler
// turns that into the minimal widget diff.
func (c *Controller) render() {
	c.rec.Apply(c.cat.Overlays(c.mode))
	c.rec.ApplyPolygons(c.cat.Polygons(c.mode))
}

func (c *Controller) observeViewport(outcome string) {
	if c.metrics != nil {
		c.metrics.ViewportEvent(outcome)
	}
}

func (c *Controller) observeSelection(outcome string) {
	if c.metrics != nil {
		c.metrics.Selection(outcome)
	}
}
