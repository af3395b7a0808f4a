package browser_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/mapwidget/browser"
	"github.com/joeblew999/plat-termit/internal/mapwidget/fake"
	"github.com/joeblew999/plat-termit/internal/reconcile"
)

var daejeon = geo.Viewport{Center: geo.Point{Lat: 36.3504, Lng: 127.3845}, Zoom: 12}

type recorder struct{ cmds []browser.Command }

func (r *recorder) Send(c browser.Command) { r.cmds = append(r.cmds, c) }

func (r *recorder) ops() []string {
	out := make([]string, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.Op
	}
	return out
}

func mount(t *testing.T) (*browser.Engine, *mapwidget.Adapter, *recorder) {
	t.Helper()
	rec := &recorder{}
	eng := browser.New(rec)
	rt := mapwidget.NewRuntime()
	rt.MarkReady(eng)
	a := mapwidget.NewAdapter(rt, mapwidget.Options{Scheduler: &fake.Scheduler{}, Logger: zerolog.Nop()})
	require.NoError(t, a.Initialize("map", daejeon))
	return eng, a, rec
}

func ptr[T any](v T) *T { return &v }

func TestCreateMapSendsCommand(t *testing.T) {
	_, _, rec := mount(t)
	require.Len(t, rec.cmds, 1)
	c := rec.cmds[0]
	assert.Equal(t, browser.OpCreateMap, c.Op)
	assert.Equal(t, "map", c.Container)
	assert.Equal(t, daejeon.Center, *c.Center)
	assert.Equal(t, 12, *c.Zoom)
	assert.Equal(t, uint64(1), c.Seq)
}

func TestCreateMapWithoutContainer(t *testing.T) {
	_, err := browser.New(nil).CreateMap("", daejeon)
	assert.ErrorIs(t, err, mapwidget.ErrNoContainer)
}

func TestViewportReportsUpdateMirrorAndFire(t *testing.T) {
	eng, a, _ := mount(t)

	var got []geo.Viewport
	a.OnViewportChanged(func(vp geo.Viewport) { got = append(got, vp) })

	busan := geo.Point{Lat: 35.1796, Lng: 129.0756}
	_, err := eng.Dispatch(browser.Event{Name: mapwidget.EventZoomChanged, Center: &busan, Zoom: ptr(8)})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, geo.Viewport{Center: busan, Zoom: 8}, got[0])
	vp, _ := a.Viewport()
	assert.Equal(t, got[0], vp)
}

func TestSetViewportSendsOnlyWhatChanged(t *testing.T) {
	_, a, rec := mount(t)

	a.SetViewport(geo.Viewport{Center: daejeon.Center, Zoom: 8})
	assert.Equal(t, []string{browser.OpCreateMap, browser.OpSetZoom}, rec.ops())

	a.Relayout()
	assert.Equal(t, []string{browser.OpCreateMap, browser.OpSetZoom, browser.OpRelayout, browser.OpSetCenter}, rec.ops())
}

func TestOverlayClickIsStoppedBeforeTheMap(t *testing.T) {
	eng, a, rec := mount(t)

	var clicked []string
	r := reconcile.New(a, func(id string) { clicked = append(clicked, id) }, nil, zerolog.Nop())
	r.Apply([]mapwidget.OverlaySpec{{ID: "gangnam-gu", Content: "강남구", Anchor: mapwidget.DefaultAnchor}})

	add := rec.cmds[len(rec.cmds)-1]
	require.Equal(t, browser.OpAddOverlay, add.Op)
	require.NotNil(t, add.Overlay)

	mapClicks := 0
	m, ok := eng.Map()
	require.True(t, ok)
	m.On(mapwidget.EventClick, func(*mapwidget.Event) { mapClicks++ })

	out, err := eng.Dispatch(browser.Event{Name: browser.EventOverlayClick, Handle: add.Handle})
	require.NoError(t, err)
	assert.True(t, out.Stopped)
	assert.Equal(t, []string{"gangnam-gu"}, clicked)
	assert.Zero(t, mapClicks)

	// Clicks by ID work when the page lost the handle.
	_, err = eng.Dispatch(browser.Event{Name: browser.EventOverlayClick, OverlayID: "gangnam-gu"})
	require.NoError(t, err)
	assert.Len(t, clicked, 2)

	_, err = eng.Dispatch(browser.Event{Name: mapwidget.EventClick})
	require.NoError(t, err)
	assert.Equal(t, 1, mapClicks)
}

func TestTouchMoveIsPrevented(t *testing.T) {
	eng, _, _ := mount(t)

	out, err := eng.Dispatch(browser.Event{Name: mapwidget.EventTouchMove, Touches: 1})
	require.NoError(t, err)
	assert.True(t, out.Prevented)

	out, _ = eng.Dispatch(browser.Event{Name: mapwidget.EventTouchMove, Touches: 2})
	assert.False(t, out.Prevented)
}

func TestTeardownDestroysPageMap(t *testing.T) {
	eng, a, rec := mount(t)
	r := reconcile.New(a, nil, nil, zerolog.Nop())
	a.OnTeardown(func() { r.Clear() })
	r.Apply([]mapwidget.OverlaySpec{{ID: "a"}, {ID: "b"}})
	m, _ := eng.Map()

	a.Teardown()
	ops := rec.ops()
	assert.Equal(t, []string{browser.OpRemoveOverlay, browser.OpRemoveOverlay, browser.OpDestroy}, ops[len(ops)-3:])
	assert.Zero(t, m.Overlays())

	_, err := eng.Dispatch(browser.Event{Name: mapwidget.EventIdle})
	assert.ErrorIs(t, err, browser.ErrNoMap)
}

func TestReplayRebuildsPageMap(t *testing.T) {
	assert.False(t, browser.New(nil).Replay())

	eng, a, rec := mount(t)
	r := reconcile.New(a, nil, nil, zerolog.Nop())
	r.Apply([]mapwidget.OverlaySpec{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	r.ApplyPolygons([]mapwidget.PolygonSpec{{ID: "p", Path: []geo.Point{{}, {Lat: 1}, {Lng: 1}}}})
	r.Apply([]mapwidget.OverlaySpec{{ID: "a"}, {ID: "c"}})

	busan := geo.Point{Lat: 35.1796, Lng: 129.0756}
	_, err := eng.Dispatch(browser.Event{Name: mapwidget.EventDragEnd, Center: &busan, Zoom: ptr(9)})
	require.NoError(t, err)

	rec.cmds = nil
	require.True(t, eng.Replay())
	assert.Equal(t, []string{
		browser.OpDestroy, browser.OpCreateMap,
		browser.OpAddOverlay, browser.OpAddOverlay, browser.OpAddPolygon,
	}, rec.ops())

	create := rec.cmds[1]
	assert.Equal(t, "map", create.Container)
	assert.Equal(t, busan, *create.Center)
	assert.Equal(t, 9, *create.Zoom)

	// Handles survive, so later removals and clicks still line up.
	ha, _ := r.Handle("a")
	hc, _ := r.Handle("c")
	assert.Equal(t, ha, rec.cmds[2].Handle)
	assert.Equal(t, "a", rec.cmds[2].Overlay.ID)
	assert.Equal(t, hc, rec.cmds[3].Handle)
	assert.Equal(t, "p", rec.cmds[4].Polygon.ID)

	m, ok := eng.Map()
	require.True(t, ok)
	assert.Equal(t, 2, m.Overlays())
	r.Apply(nil)
	assert.Zero(t, m.Overlays())
}
