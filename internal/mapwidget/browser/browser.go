// Package browser implements mapwidget.Engine for a map that lives in a web
// page. Calls on the map become Commands sent to the page; events reported by
// the page are fed back through Dispatch.
//
// The package keeps a mirror of the last known center and zoom so reads never
// wait on the page.
package browser

import (
	"errors"
	"sort"

	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
)

// Command operations understood by the page script.
const (
	OpCreateMap     = "createMap"
	OpSetCenter     = "setCenter"
	OpSetZoom       = "setZoom"
	OpAddOverlay    = "addOverlay"
	OpRemoveOverlay = "removeOverlay"
	OpAddPolygon    = "addPolygon"
	OpRemovePolygon = "removePolygon"
	OpRelayout      = "relayout"
	OpDestroy       = "destroy"
)

// EventOverlayClick is the event name the page uses for overlay clicks.
const EventOverlayClick = "overlay_click"

// ErrNoMap is returned by Dispatch when no map is live.
var ErrNoMap = errors.New("no live map")

// Command is one instruction for the page.
type Command struct {
	Op        string                 `json:"op"`
	Seq       uint64                 `json:"seq"`
	Container string                 `json:"container,omitempty"`
	Handle    mapwidget.Handle       `json:"handle,omitempty"`
	Center    *geo.Point             `json:"center,omitempty"`
	Zoom      *int                   `json:"zoom,omitempty"`
	Overlay   *mapwidget.OverlaySpec `json:"overlay,omitempty"`
	Polygon   *mapwidget.PolygonSpec `json:"polygon,omitempty"`
}

// Sink receives commands in order.
type Sink interface {
	Send(cmd Command)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Command)

// Send implements Sink.
func (f SinkFunc) Send(cmd Command) { f(cmd) }

// Event is something the page reports.
type Event struct {
	Name      string           `json:"name" doc:"Event name" enum:"zoom_changed,dragend,idle,click,resize,touchmove,overlay_click"`
	Center    *geo.Point       `json:"center,omitempty" doc:"Map center after the event"`
	Zoom      *int             `json:"zoom,omitempty" doc:"Zoom level after the event"`
	Handle    mapwidget.Handle `json:"handle,omitempty" doc:"Clicked overlay handle"`
	OverlayID string           `json:"overlayId,omitempty" doc:"Clicked overlay ID, when the handle is unknown"`
	Touches   int              `json:"touches,omitempty" doc:"Active touch points"`
}

// Outcome reports what listeners did with a dispatched event.
type Outcome struct {
	Prevented bool `json:"prevented"`
	Stopped   bool `json:"stopped"`
}

// Engine creates page-backed maps. It tracks the most recent live map so
// Dispatch knows where to route events.
type Engine struct {
	sink Sink
	seq  uint64
	live *Map
}

// New returns an engine sending commands to sink.
func New(sink Sink) *Engine {
	return &Engine{sink: sink}
}

// CreateMap implements mapwidget.Engine.
func (e *Engine) CreateMap(container string, vp geo.Viewport) (mapwidget.Map, error) {
	if container == "" {
		return nil, mapwidget.ErrNoContainer
	}
	m := &Map{
		engine:    e,
		container: container,
		center:    vp.Center,
		zoom:      vp.Zoom,
		overlays:  make(map[mapwidget.Handle]overlay),
		polygons:  make(map[mapwidget.Handle]mapwidget.PolygonSpec),
		listeners: make(map[mapwidget.ListenerID]listener),
	}
	m.sendCreate()
	e.live = m
	return m, nil
}

// Replay rebuilds the live map on a page that may have missed commands: it
// destroys whatever the page shows, then recreates the map at the last known
// viewport with every overlay and polygon under its existing handle. It
// reports whether a map was live.
func (e *Engine) Replay() bool {
	m := e.live
	if m == nil {
		return false
	}
	e.send(Command{Op: OpDestroy})
	m.sendCreate()

	handles := make([]mapwidget.Handle, 0, len(m.overlays)+len(m.polygons))
	for h := range m.overlays {
		handles = append(handles, h)
	}
	for h := range m.polygons {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		if o, ok := m.overlays[h]; ok {
			spec := o.spec
			e.send(Command{Op: OpAddOverlay, Handle: h, Overlay: &spec})
			continue
		}
		spec := m.polygons[h]
		e.send(Command{Op: OpAddPolygon, Handle: h, Polygon: &spec})
	}
	return true
}

// Map returns the live map, if any.
func (e *Engine) Map() (*Map, bool) {
	return e.live, e.live != nil
}

// Dispatch delivers a page event to the live map.
func (e *Engine) Dispatch(ev Event) (Outcome, error) {
	if e.live == nil {
		return Outcome{}, ErrNoMap
	}
	return e.live.dispatch(ev), nil
}

func (e *Engine) send(cmd Command) {
	e.seq++
	cmd.Seq = e.seq
	if e.sink != nil {
		e.sink.Send(cmd)
	}
}

type overlay struct {
	id      string
	spec    mapwidget.OverlaySpec
	onClick mapwidget.ClickFunc
}

type listener struct {
	event string
	fn    func(*mapwidget.Event)
}

// Map is a map living in the page.
type Map struct {
	engine    *Engine
	container string
	center    geo.Point
	zoom      int
	seq       uint64
	destroyed bool

	overlays  map[mapwidget.Handle]overlay
	polygons  map[mapwidget.Handle]mapwidget.PolygonSpec
	listeners map[mapwidget.ListenerID]listener
}

func (m *Map) sendCreate() {
	center, zoom := m.center, m.zoom
	m.engine.send(Command{Op: OpCreateMap, Container: m.container, Center: &center, Zoom: &zoom})
}

func (m *Map) Center() geo.Point { return m.center }
func (m *Map) Zoom() int         { return m.zoom }

func (m *Map) SetCenter(p geo.Point) {
	if m.destroyed {
		return
	}
	m.center = p
	m.engine.send(Command{Op: OpSetCenter, Center: &p})
}

func (m *Map) SetZoom(z int) {
	if m.destroyed {
		return
	}
	m.zoom = z
	m.engine.send(Command{Op: OpSetZoom, Zoom: &z})
}

func (m *Map) AddOverlay(spec mapwidget.OverlaySpec, onClick mapwidget.ClickFunc) (mapwidget.Handle, error) {
	if m.destroyed {
		return 0, mapwidget.ErrTornDown
	}
	h := m.nextHandle()
	m.overlays[h] = overlay{id: spec.ID, spec: spec, onClick: onClick}
	m.engine.send(Command{Op: OpAddOverlay, Handle: h, Overlay: &spec})
	return h, nil
}

func (m *Map) RemoveOverlay(h mapwidget.Handle) {
	if _, ok := m.overlays[h]; !ok || m.destroyed {
		return
	}
	delete(m.overlays, h)
	m.engine.send(Command{Op: OpRemoveOverlay, Handle: h})
}

func (m *Map) AddPolygon(spec mapwidget.PolygonSpec) (mapwidget.Handle, error) {
	if m.destroyed {
		return 0, mapwidget.ErrTornDown
	}
	h := m.nextHandle()
	m.polygons[h] = spec
	m.engine.send(Command{Op: OpAddPolygon, Handle: h, Polygon: &spec})
	return h, nil
}

func (m *Map) RemovePolygon(h mapwidget.Handle) {
	if _, ok := m.polygons[h]; !ok || m.destroyed {
		return
	}
	delete(m.polygons, h)
	m.engine.send(Command{Op: OpRemovePolygon, Handle: h})
}

func (m *Map) On(event string, fn func(*mapwidget.Event)) mapwidget.ListenerID {
	m.seq++
	id := mapwidget.ListenerID(m.seq)
	m.listeners[id] = listener{event: event, fn: fn}
	return id
}

func (m *Map) Off(id mapwidget.ListenerID) {
	delete(m.listeners, id)
}

func (m *Map) Relayout() {
	if m.destroyed {
		return
	}
	m.engine.send(Command{Op: OpRelayout})
}

func (m *Map) Destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	m.listeners = make(map[mapwidget.ListenerID]listener)
	m.overlays = make(map[mapwidget.Handle]overlay)
	m.polygons = make(map[mapwidget.Handle]mapwidget.PolygonSpec)
	m.engine.send(Command{Op: OpDestroy})
	if m.engine.live == m {
		m.engine.live = nil
	}
}

// Overlays returns the number of overlays the page is showing.
func (m *Map) Overlays() int { return len(m.overlays) }

// Polygons returns the number of polygons the page is showing.
func (m *Map) Polygons() int { return len(m.polygons) }

func (m *Map) nextHandle() mapwidget.Handle {
	m.seq++
	return mapwidget.Handle(m.seq)
}

func (m *Map) dispatch(ev Event) Outcome {
	if m.destroyed {
		return Outcome{}
	}
	if ev.Center != nil {
		m.center = *ev.Center
	}
	if ev.Zoom != nil {
		m.zoom = *ev.Zoom
	}

	if ev.Name == EventOverlayClick {
		return m.clickOverlay(ev)
	}

	e := &mapwidget.Event{Name: ev.Name, Touches: ev.Touches}
	m.fire(e)
	return Outcome{Prevented: e.Prevented()}
}

func (m *Map) clickOverlay(ev Event) Outcome {
	o, ok := m.overlays[ev.Handle]
	if !ok && ev.OverlayID != "" {
		for _, cand := range m.overlays {
			if cand.id == ev.OverlayID {
				o, ok = cand, true
				break
			}
		}
	}
	if !ok {
		return Outcome{}
	}

	click := &mapwidget.ClickEvent{OverlayID: o.id}
	if o.onClick != nil {
		o.onClick(click)
	}
	if click.Stopped() {
		return Outcome{Stopped: true}
	}
	m.fire(&mapwidget.Event{Name: mapwidget.EventClick})
	return Outcome{}
}

func (m *Map) fire(e *mapwidget.Event) {
	ids := make([]mapwidget.ListenerID, 0, len(m.listeners))
	for id, l := range m.listeners {
		if l.event == e.Name {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if l, ok := m.listeners[id]; ok {
			l.fn(e)
		}
	}
}
