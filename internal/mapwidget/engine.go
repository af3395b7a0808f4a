// Package mapwidget wraps the third-party map engine behind a narrow façade.
//
// The engine itself (Kakao Maps in the browser, or a fake in tests) is an
// injected capability: [Engine] creates a [Map], and a Map exposes the
// imperative operations the rest of the system needs. [Adapter] owns the
// widget lifecycle on top of it; all reconciliation logic lives above the
// adapter, never inside it.
package mapwidget

import (
	"errors"
	"slices"

	"github.com/joeblew999/plat-termit/internal/geo"
)

// Map engine event names.
const (
	EventZoomChanged = "zoom_changed"
	EventDragEnd     = "dragend"
	EventIdle        = "idle"
	EventClick       = "click"     // map background click
	EventResize      = "resize"    // window resize
	EventTouchMove   = "touchmove" // container touch move
)

var (
	// ErrEngineUnavailable is returned when the map runtime has not loaded yet.
	ErrEngineUnavailable = errors.New("map engine not available")
	// ErrNoContainer is returned when there is no container to mount into.
	ErrNoContainer = errors.New("map container not available")
	// ErrTornDown is returned for operations on a torn-down adapter.
	ErrTornDown = errors.New("map widget torn down")
)

// Handle identifies an overlay or polygon rendered on a Map.
type Handle uint64

// ListenerID identifies a registered event listener.
type ListenerID uint64

// Anchor positions overlay content relative to its coordinate, as fractions
// of the content box (0,0 top-left; 0.5,1 bottom-center).
type Anchor struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DefaultAnchor pins the bottom edge of the content to the coordinate.
var DefaultAnchor = Anchor{X: 0.5, Y: 1}

// OverlaySpec describes a positioned, clickable overlay.
// Specs are never mutated in place; a changed overlay is replaced by ID.
type OverlaySpec struct {
	ID       string    `json:"id" doc:"Overlay ID, unique within a render"`
	Position geo.Point `json:"position" doc:"Overlay coordinate"`
	Content  string    `json:"content" doc:"Overlay markup"`
	Anchor   Anchor    `json:"anchor" doc:"Content anchor"`
	ZIndex   int       `json:"zIndex" doc:"Stacking order"`
}

// PolygonSpec describes a filled polygon. The path is closed implicitly.
type PolygonSpec struct {
	ID          string      `json:"id,omitempty" doc:"Stable polygon ID"`
	Path        []geo.Point `json:"path" doc:"Ordered vertices (at least 3)"`
	StrokeColor string      `json:"strokeColor,omitempty" doc:"Stroke color (CSS)"`
	FillColor   string      `json:"fillColor,omitempty" doc:"Fill color (CSS)"`
}

// Equal reports whether two polygon specs render identically.
func (p PolygonSpec) Equal(q PolygonSpec) bool {
	return p.ID == q.ID &&
		p.StrokeColor == q.StrokeColor &&
		p.FillColor == q.FillColor &&
		slices.Equal(p.Path, q.Path)
}

// Event is a map or DOM event delivered to a listener.
type Event struct {
	Name    string
	Touches int // active touch points, for touch events

	prevented bool
}

// PreventDefault suppresses the browser default action for the event.
func (e *Event) PreventDefault() { e.prevented = true }

// Prevented reports whether PreventDefault was called.
func (e *Event) Prevented() bool { return e.prevented }

// ClickEvent is delivered to an overlay's click func.
type ClickEvent struct {
	OverlayID string

	stopped bool
}

// StopPropagation keeps the click from reaching the map background.
func (e *ClickEvent) StopPropagation() { e.stopped = true }

// Stopped reports whether propagation was stopped.
func (e *ClickEvent) Stopped() bool { return e.stopped }

// ClickFunc handles an overlay click.
type ClickFunc func(*ClickEvent)

// Engine is the map runtime capability: it creates maps in containers.
type Engine interface {
	CreateMap(container string, vp geo.Viewport) (Map, error)
}

// Map is a live map widget created by an Engine.
type Map interface {
	Center() geo.Point
	Zoom() int
	SetCenter(p geo.Point)
	SetZoom(z int)

	AddOverlay(spec OverlaySpec, onClick ClickFunc) (Handle, error)
	RemoveOverlay(h Handle)
	AddPolygon(spec PolygonSpec) (Handle, error)
	RemovePolygon(h Handle)

	On(event string, fn func(*Event)) ListenerID
	Off(id ListenerID)

	Relayout()
	Destroy()
}
