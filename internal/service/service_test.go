package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/mapwidget/browser"
	"github.com/joeblew999/plat-termit/internal/metrics"
	"github.com/joeblew999/plat-termit/internal/service"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*service.SessionService, *clock) {
	t.Helper()
	cat, err := catalogue.Default()
	require.NoError(t, err)
	src, err := detail.SeedSource()
	require.NoError(t, err)

	clk := &clock{now: time.Date(2025, 7, 16, 9, 0, 0, 0, time.UTC)}
	svc := service.NewSessionService(cat, src, nil, service.Options{
		Adapter: mapwidget.Options{SettleDelay: time.Millisecond, RetryDelay: time.Millisecond},
		Metrics: metrics.New(),
		Logger:  zerolog.Nop(),
		Now:     clk.Now,
	})
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc, clk
}

func waitFor(t *testing.T, ch chan service.Event, match func(service.Event) bool) service.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return service.Event{}
		}
	}
}

func mounted(ev service.Event) bool {
	return ev.Kind == service.KindState && ev.State.Mounted
}

// start opens a session, attaches a subscriber, reports ready and waits for
// the map to mount. It returns the overlay handles the page was told about.
func start(t *testing.T, svc *service.SessionService) (*service.Session, chan service.Event, map[string]mapwidget.Handle) {
	t.Helper()
	ctx := context.Background()
	s, err := svc.Create(ctx)
	require.NoError(t, err)

	ch := svc.Bus().Subscribe(s.ID)
	require.NoError(t, s.Attach(ctx))
	require.NoError(t, s.Ready(ctx))

	handles := map[string]mapwidget.Handle{}
	created := false
	waitFor(t, ch, func(ev service.Event) bool {
		if ev.Kind == service.KindCommand {
			switch ev.Command.Op {
			case browser.OpCreateMap:
				created = true
			case browser.OpAddOverlay:
				handles[ev.Command.Overlay.ID] = ev.Command.Handle
			}
		}
		return mounted(ev)
	})
	require.True(t, created)
	return s, ch, handles
}

func TestMapMountsOnlyOnceAttachedAndReady(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s, err := svc.Create(ctx)
	require.NoError(t, err)
	ch := svc.Bus().Subscribe(s.ID)

	require.NoError(t, s.Ready(ctx))
	time.Sleep(20 * time.Millisecond)
	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.True(t, st.Ready)
	assert.False(t, st.Mounted, "no stream attached yet")

	require.NoError(t, s.Attach(ctx))
	ev := waitFor(t, ch, mounted)
	assert.Equal(t, viewstate.ModeNation, ev.State.View.Mode)
	assert.ElementsMatch(t, overlayIDs(svc.Catalogue(), viewstate.ModeNation), ev.State.View.Overlays)
}

func overlayIDs(cat *catalogue.Catalogue, m viewstate.Mode) []string {
	var ids []string
	for _, o := range cat.Overlays(m) {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestOverlayClickAndSelectionFlow(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s, ch, handles := start(t, svc)

	out, err := s.Dispatch(ctx, browser.Event{Name: browser.EventOverlayClick, Handle: handles["seoul"]})
	require.NoError(t, err)
	assert.True(t, out.Stopped)

	ev := waitFor(t, ch, func(ev service.Event) bool {
		return ev.Kind == service.KindState && ev.State.View.Mode == viewstate.ModeCity
	})
	assert.Equal(t, 8, ev.State.View.Viewport.Zoom)
	assert.Empty(t, ev.State.View.Selected)

	st, err := s.SetSelection(ctx, "gangnam-gu")
	require.NoError(t, err)
	assert.Equal(t, "gangnam-gu", st.View.Selected)
	assert.Equal(t, viewstate.ModeCity, st.View.Mode)
	assert.Equal(t, 6, st.View.Viewport.Zoom)

	panel := waitFor(t, ch, func(ev service.Event) bool { return ev.Kind == service.KindPanel })
	require.True(t, panel.Panel.Open())
	assert.Equal(t, "서울특별시 강남구", panel.Panel.Record.Title)

	v, err := s.SelectUnit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Unit)

	st, err = s.ClearSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, viewstate.ModeDistrict, st.View.Mode)
	assert.False(t, st.Panel.Open())
	assert.Zero(t, st.Panel.Unit)
}

func TestUnknownSelectionLeavesStateUnchanged(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s, _, _ := start(t, svc)

	before, err := s.State(ctx)
	require.NoError(t, err)
	for _, id := range []string{"atlantis", "seocho-gu", "seoul"} {
		after, err := s.SetSelection(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before, after, id)
	}
}

func TestReattachReplaysMissedCommands(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s, ch, _ := start(t, svc)

	svc.Bus().Unsubscribe(ch)
	s.Detach()

	// The page keeps reporting while no stream listens.
	center := geo.Point{Lat: 37.5665, Lng: 126.9780}
	zoom := 8
	_, err := s.Dispatch(ctx, browser.Event{Name: mapwidget.EventZoomChanged, Center: &center, Zoom: &zoom})
	require.NoError(t, err)
	st, err := s.State(ctx)
	require.NoError(t, err)
	require.Equal(t, viewstate.ModeCity, st.View.Mode)

	ch = svc.Bus().Subscribe(s.ID)
	require.NoError(t, s.Attach(ctx))

	var cmds []*browser.Command
	waitFor(t, ch, func(ev service.Event) bool {
		if ev.Kind == service.KindCommand {
			cmds = append(cmds, ev.Command)
		}
		return ev.Kind == service.KindPanel
	})

	require.GreaterOrEqual(t, len(cmds), 2)
	assert.Equal(t, browser.OpDestroy, cmds[0].Op)
	assert.Equal(t, browser.OpCreateMap, cmds[1].Op)
	assert.Equal(t, center, *cmds[1].Center)
	assert.Equal(t, 8, *cmds[1].Zoom)

	var added []string
	for _, c := range cmds[2:] {
		if c.Op == browser.OpAddOverlay {
			added = append(added, c.Overlay.ID)
		}
	}
	assert.ElementsMatch(t, st.View.Overlays, added)
	assert.ElementsMatch(t, overlayIDs(svc.Catalogue(), viewstate.ModeCity), added)
}

func TestViewportReportChangesMode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s, ch, _ := start(t, svc)

	center := geo.Point{Lat: 37.5140, Lng: 127.0565}
	zoom := 4
	_, err := s.Dispatch(ctx, browser.Event{Name: mapwidget.EventZoomChanged, Center: &center, Zoom: &zoom})
	require.NoError(t, err)

	ev := waitFor(t, ch, func(ev service.Event) bool {
		return ev.Kind == service.KindState && ev.State.View.Mode == viewstate.ModeDistrict
	})
	assert.Equal(t, geo.Viewport{Center: center, Zoom: 4}, ev.State.View.Viewport)

	st, err := s.SetViewport(ctx, geo.Viewport{Center: center, Zoom: 99})
	require.NoError(t, err)
	assert.Equal(t, 14, st.View.Viewport.Zoom)
}

func TestCloseTearsDownAndPublishes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s, ch, _ := start(t, svc)

	require.NoError(t, svc.Close(ctx, s.ID))

	var ops []string
	waitFor(t, ch, func(ev service.Event) bool {
		if ev.Kind == service.KindCommand {
			ops = append(ops, ev.Command.Op)
		}
		return ev.Kind == service.KindClosed
	})
	assert.Contains(t, ops, browser.OpRemoveOverlay)
	assert.Equal(t, browser.OpDestroy, ops[len(ops)-1])

	_, err := svc.Get(s.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(ctx, s.ID), service.ErrSessionNotFound)

	_, err = s.State(ctx)
	assert.ErrorIs(t, err, service.ErrLoopClosed)
}

func TestSweepExpiresIdleDetachedSessions(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	idle, err := svc.Create(ctx)
	require.NoError(t, err)
	watched, err := svc.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, watched.Attach(ctx))

	clk.Advance(10 * time.Minute)
	assert.Zero(t, svc.Sweep(ctx))

	clk.Advance(25 * time.Minute)
	assert.Equal(t, 1, svc.Sweep(ctx))
	_, err = svc.Get(idle.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = svc.Get(watched.ID)
	assert.NoError(t, err)

	watched.Detach()
	clk.Advance(31 * time.Minute)
	assert.Equal(t, 1, svc.Sweep(ctx))
	assert.Zero(t, svc.Len())
}

func TestListOrdersByCreation(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx)
	require.NoError(t, err)
	clk.Advance(time.Second)
	b, err := svc.Create(ctx)
	require.NoError(t, err)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}
