package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/metrics"
	"github.com/joeblew999/plat-termit/internal/reconcile"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

func scrape(t *testing.T, m *metrics.Metrics) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Code, rr.Body.String()
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	m.ViewportEvent(viewstate.OutcomeApplied)
	m.Reconciled(reconcile.KindOverlay, reconcile.OpAdd, 3)
	m.ModeTransition(viewstate.ModeNation, viewstate.ModeCity)
	m.Selection(viewstate.SelectionSelected)
	m.SessionOpened()
	m.SessionClosed(true)

	code, body := scrape(t, m)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "metrics unavailable")
}

func TestHandlerExposesMapMetrics(t *testing.T) {
	m := metrics.New()
	m.ViewportEvent(viewstate.OutcomeJitter)
	m.ViewportEvent(viewstate.OutcomeJitter)
	m.Reconciled(reconcile.KindOverlay, reconcile.OpAdd, 3)
	m.Reconciled(reconcile.KindPolygon, reconcile.OpRemove, 0)
	m.ModeTransition(viewstate.ModeNation, viewstate.ModeCity)
	m.Selection(viewstate.SelectionUnknown)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(true)

	code, body := scrape(t, m)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `termit_viewport_events_total{outcome="jitter"} 2`)
	assert.Contains(t, body, `termit_reconcile_operations_total{kind="overlay",op="add"} 3`)
	assert.NotContains(t, body, `kind="polygon"`)
	assert.Contains(t, body, `termit_mode_transitions_total{from="NATION",to="CITY"} 1`)
	assert.Contains(t, body, `termit_selections_total{outcome="unknown"} 1`)
	assert.Contains(t, body, "termit_map_sessions 1")
	assert.Contains(t, body, "termit_map_sessions_expired_total 1")
}

func TestMiddlewareLabelsByPattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, id := range []string{"a", "b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil))
	}

	_, body := scrape(t, m)
	assert.Contains(t, body, `termit_http_requests_total{method="GET",path="GET /api/v1/sessions/{id}",status="404"} 2`)
}
