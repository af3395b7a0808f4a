// Package fake provides an in-memory map engine and a manual scheduler for
// exercising the map packages without a browser.
package fake

import (
	"errors"
	"sort"
	"time"

	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
)

// Engine creates fake maps. Set Err to make CreateMap fail.
type Engine struct {
	Err  error
	Maps []*Map

	// Applied to every created map.
	FireOnSet      bool
	FireOnRelayout bool
}

// CreateMap implements mapwidget.Engine.
func (e *Engine) CreateMap(container string, vp geo.Viewport) (mapwidget.Map, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	m := NewMap(container, vp)
	m.FireOnSet = e.FireOnSet
	m.FireOnRelayout = e.FireOnRelayout
	e.Maps = append(e.Maps, m)
	return m, nil
}

// Last returns the most recently created map, or nil.
func (e *Engine) Last() *Map {
	if len(e.Maps) == 0 {
		return nil
	}
	return e.Maps[len(e.Maps)-1]
}

type overlay struct {
	spec    mapwidget.OverlaySpec
	onClick mapwidget.ClickFunc
}

type listener struct {
	event string
	fn    func(*mapwidget.Event)
}

// Map records every operation applied to it.
type Map struct {
	Container string

	// FireOnSet makes SetCenter/SetZoom fire the matching change events
	// synchronously, like providers that echo programmatic changes.
	FireOnSet bool
	// FireOnRelayout makes Relayout fire a spurious idle event.
	FireOnRelayout bool

	SetCenterCalls     int
	SetZoomCalls       int
	RelayoutCalls      int
	AddOverlayCalls    int
	RemoveOverlayCalls int
	AddPolygonCalls    int
	RemovePolygonCalls int
	MapClicks          int
	Destroyed          bool

	center    geo.Point
	zoom      int
	seq       uint64
	overlays  map[mapwidget.Handle]overlay
	polygons  map[mapwidget.Handle]mapwidget.PolygonSpec
	listeners map[mapwidget.ListenerID]listener
}

// NewMap returns a map showing vp.
func NewMap(container string, vp geo.Viewport) *Map {
	return &Map{
		Container: container,
		center:    vp.Center,
		zoom:      vp.Zoom,
		overlays:  make(map[mapwidget.Handle]overlay),
		polygons:  make(map[mapwidget.Handle]mapwidget.PolygonSpec),
		listeners: make(map[mapwidget.ListenerID]listener),
	}
}

func (m *Map) Center() geo.Point { return m.center }
func (m *Map) Zoom() int         { return m.zoom }

func (m *Map) SetCenter(p geo.Point) {
	m.SetCenterCalls++
	m.center = p
	if m.FireOnSet {
		m.Fire(mapwidget.EventDragEnd, nil)
	}
}

func (m *Map) SetZoom(z int) {
	m.SetZoomCalls++
	m.zoom = z
	if m.FireOnSet {
		m.Fire(mapwidget.EventZoomChanged, nil)
	}
}

var errDestroyed = errors.New("fake map destroyed")

func (m *Map) AddOverlay(spec mapwidget.OverlaySpec, onClick mapwidget.ClickFunc) (mapwidget.Handle, error) {
	if m.Destroyed {
		return 0, errDestroyed
	}
	m.AddOverlayCalls++
	m.seq++
	h := mapwidget.Handle(m.seq)
	m.overlays[h] = overlay{spec: spec, onClick: onClick}
	return h, nil
}

func (m *Map) RemoveOverlay(h mapwidget.Handle) {
	m.RemoveOverlayCalls++
	delete(m.overlays, h)
}

func (m *Map) AddPolygon(spec mapwidget.PolygonSpec) (mapwidget.Handle, error) {
	if m.Destroyed {
		return 0, errDestroyed
	}
	m.AddPolygonCalls++
	m.seq++
	h := mapwidget.Handle(m.seq)
	m.polygons[h] = spec
	return h, nil
}

func (m *Map) RemovePolygon(h mapwidget.Handle) {
	m.RemovePolygonCalls++
	delete(m.polygons, h)
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
	m.RelayoutCalls++
	if m.FireOnRelayout {
		m.Fire(mapwidget.EventIdle, nil)
	}
}

func (m *Map) Destroy() {
	m.Destroyed = true
}

// Fire delivers an event to every listener registered for name, in
// registration order. A nil ev is replaced by a bare event.
func (m *Map) Fire(name string, ev *mapwidget.Event) *mapwidget.Event {
	if ev == nil {
		ev = &mapwidget.Event{}
	}
	ev.Name = name

	ids := make([]mapwidget.ListenerID, 0, len(m.listeners))
	for id, l := range m.listeners {
		if l.event == name {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if l, ok := m.listeners[id]; ok {
			l.fn(ev)
		}
	}
	return ev
}

// UserMove simulates a user pan/zoom ending at vp.
func (m *Map) UserMove(vp geo.Viewport) {
	zoomed := m.zoom != vp.Zoom
	m.center = vp.Center
	m.zoom = vp.Zoom
	if zoomed {
		m.Fire(mapwidget.EventZoomChanged, nil)
		return
	}
	m.Fire(mapwidget.EventDragEnd, nil)
}

// ClickOverlay clicks the rendered overlay with the given spec ID. Clicks
// that are not stopped fall through to the map background.
func (m *Map) ClickOverlay(id string) bool {
	for _, o := range m.overlays {
		if o.spec.ID != id {
			continue
		}
		ev := &mapwidget.ClickEvent{OverlayID: id}
		if o.onClick != nil {
			o.onClick(ev)
		}
		if !ev.Stopped() {
			m.MapClicks++
			m.Fire(mapwidget.EventClick, nil)
		}
		return true
	}
	return false
}

// OverlayIDs returns the spec IDs of rendered overlays, sorted.
func (m *Map) OverlayIDs() []string {
	ids := make([]string, 0, len(m.overlays))
	for _, o := range m.overlays {
		ids = append(ids, o.spec.ID)
	}
	sort.Strings(ids)
	return ids
}

// OverlayHandles returns rendered overlay handles keyed by spec ID.
func (m *Map) OverlayHandles() map[string]mapwidget.Handle {
	out := make(map[string]mapwidget.Handle, len(m.overlays))
	for h, o := range m.overlays {
		out[o.spec.ID] = h
	}
	return out
}

// PolygonIDs returns the spec IDs of rendered polygons, sorted.
func (m *Map) PolygonIDs() []string {
	ids := make([]string, 0, len(m.polygons))
	for _, p := range m.polygons {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

// ListenerCount returns the number of registered listeners.
func (m *Map) ListenerCount() int { return len(m.listeners) }

// Scheduler queues timers until Run is called.
type Scheduler struct {
	queue []*Timer
}

// Timer is a queued call.
type Timer struct {
	Delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// Stop implements mapwidget.Timer.
func (t *Timer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc implements mapwidget.Scheduler.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) mapwidget.Timer {
	t := &Timer{Delay: d, fn: fn}
	s.queue = append(s.queue, t)
	return t
}

// Pending returns the number of timers not yet run or stopped.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.queue {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Step fires the oldest pending timer and reports whether one fired.
func (s *Scheduler) Step() bool {
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		return true
	}
	return false
}

// Run fires queued timers in order, including ones queued while running.
// It returns how many fired.
func (s *Scheduler) Run() int {
	n := 0
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		n++
	}
	return n
}
