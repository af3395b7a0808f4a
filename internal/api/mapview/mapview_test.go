package mapview

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/service"
	"github.com/joeblew999/plat-termit/internal/templates"
)

type fixture struct {
	srv      *httptest.Server
	sessions *service.SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalogue.Default()
	require.NoError(t, err)
	src, err := detail.SeedSource()
	require.NoError(t, err)
	renderer, err := templates.Default()
	require.NoError(t, err)

	sessions := service.NewSessionService(cat, src, nil, service.Options{Logger: zerolog.Nop()})

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	h := New(sessions, renderer, "test-key", zerolog.Nop())
	h.RegisterRoutes(api)
	h.RegisterPages(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		sessions.Shutdown(context.Background())
	})
	return &fixture{srv: srv, sessions: sessions}
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) session(t *testing.T) *service.Session {
	t.Helper()
	s, err := f.sessions.Create(context.Background())
	require.NoError(t, err)
	return s
}

func TestPageOpensSession(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/map")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	list := f.sessions.List()
	require.Len(t, list, 1)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(body)
	assert.Contains(t, html, "/api/v1/map/"+list[0].ID+"/stream")
	assert.Contains(t, html, "test-key")
	assert.Contains(t, html, `id="detail-panel"`)
}

func TestPagePreselects(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/map?selected=gangnam-gu")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := f.sessions.List()
	require.Len(t, list, 1)
	st, err := list[0].State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gangnam-gu", st.View.Selected)
	assert.Equal(t, "gangnam-gu", st.Panel.ID)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/api/v1/map/nope/ready", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Closing twice is not an error for the page.
	resp = f.post(t, "/api/v1/map/nope/close", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEventsBeforeMount(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)

	resp := f.post(t, base(s.ID)+"/map-click", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.post(t, base(s.ID)+"/viewport", `{"name":"idle","center":{"lat":37.5,"lng":127},"zoom":6}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestViewportValidation(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)

	resp := f.post(t, base(s.ID)+"/viewport", `{"name":"click","center":{"lat":37.5,"lng":127},"zoom":6}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.post(t, base(s.ID)+"/viewport", `{"name":"idle"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPanelUnit(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()
	_, err := s.SetSelection(ctx, "samsung-lotte")
	require.NoError(t, err)

	resp := f.post(t, base(s.ID)+"/panel/unit", `{"other":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.post(t, base(s.ID)+"/panel/more", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.True(t, st.Panel.ShowMore)

	resp = f.post(t, base(s.ID)+"/panel/close", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	st, err = s.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.View.Selected)
	assert.Empty(t, st.Panel.ID)
}

// readUntil scans SSE lines until one contains want.
func readUntil(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended before %q", want)
			if strings.Contains(line, want) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestStreamMountsMapOnceReady(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+base(s.ID)+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	readUntil(t, lines, "datastar-patch-signals")

	ready := f.post(t, base(s.ID)+"/ready", "")
	require.Equal(t, http.StatusNoContent, ready.StatusCode)

	readUntil(t, lines, EventCommand)
	readUntil(t, lines, `"mounted":true`)

	click := f.post(t, base(s.ID)+"/overlay-click", `{"name":"overlay_click","overlayId":"seoul"}`)
	assert.Equal(t, http.StatusOK, click.StatusCode)

	closed := f.post(t, base(s.ID)+"/close", "")
	require.Equal(t, http.StatusNoContent, closed.StatusCode)
	readUntil(t, lines, "map session closed")
}
