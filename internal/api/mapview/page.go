package mapview

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/joeblew999/plat-termit/internal/service"
)

// pageData is the map-page template input.
type pageData struct {
	Title     string
	Base      string
	Container string
	KakaoKey  string
	Signals   string
	Panel     template.HTML
}

// Page opens a fresh session and renders the map page for it. A selected
// query parameter preselects an entry, so shared links reopen the panel.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.sessions.Create(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("create session")
		http.Error(w, "could not open a map session", http.StatusServiceUnavailable)
		return
	}

	var st service.State
	if id := r.URL.Query().Get("selected"); id != "" {
		st, err = s.SetSelection(ctx, id)
	} else {
		st, err = s.State(ctx)
	}
	if err != nil {
		h.Log.Error().Err(err).Str("session", s.ID).Msg("preselect")
		http.Error(w, "could not open a map session", http.StatusServiceUnavailable)
		return
	}

	signals, err := json.Marshal(map[string]any{"session": st, "unit": st.Panel.Unit})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = h.Renderer.Execute(&buf, "map-page", pageData{
		Title:     "Termit 지도",
		Base:      base(s.ID),
		Container: h.sessions.Container(),
		KakaoKey:  h.kakaoKey,
		Signals:   string(signals),
		Panel:     template.HTML(h.Render("detail-panel", newPanelData(s.ID, st.Panel))),
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("render map page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}
