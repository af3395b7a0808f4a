// Package mapview contains the Datastar handlers that drive the map page: the
// SSE stream carrying engine commands, state signals and panel patches, and
// the endpoints the page reports its events to.
package mapview

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/humastar"
	"github.com/joeblew999/plat-termit/internal/service"
	"github.com/joeblew999/plat-termit/internal/templates"
)

// Custom DOM events dispatched on the page.
const (
	EventCommand   = "map-command"
	EventSelection = "selection-changed"
)

// PanelSelector is the element the detail panel is patched into.
const PanelSelector = "#detail-panel"

var errSessionClosed = errors.New("session closed")

// Handler serves the map page and its Datastar endpoints.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	kakaoKey string
}

// New creates a map view handler.
func New(sessions *service.SessionService, renderer *templates.Renderer, kakaoKey string, log zerolog.Logger) *Handler {
	return &Handler{
		Handler: humastar.Handler{
			Renderer: renderer,
			Log:      log.With().Str("component", "mapview").Logger(),
		},
		sessions: sessions,
		kakaoKey: kakaoKey,
	}
}

// IDInput addresses one session.
type IDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

func base(id string) string { return "/api/v1/map/" + id }

// RegisterRoutes registers the map endpoints with Huma.
func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("map")
	huma.Get(api, "/api/v1/map/{id}/stream", h.Stream, tags)
	huma.Post(api, "/api/v1/map/{id}/ready", h.Ready, tags)
	huma.Post(api, "/api/v1/map/{id}/viewport", h.Viewport, tags)
	huma.Post(api, "/api/v1/map/{id}/overlay-click", h.OverlayClick, tags)
	huma.Post(api, "/api/v1/map/{id}/map-click", h.MapClick, tags)
	huma.Post(api, "/api/v1/map/{id}/resize", h.Resize, tags)
	huma.Post(api, "/api/v1/map/{id}/panel/close", h.PanelClose, tags)
	huma.Post(api, "/api/v1/map/{id}/panel/unit", h.PanelUnit, tags)
	huma.Post(api, "/api/v1/map/{id}/panel/more", h.PanelMore, tags)
	huma.Post(api, "/api/v1/map/{id}/close", h.Close, tags)
}

// RegisterPages registers the HTML pages on the mux.
func (h *Handler) RegisterPages(mux *http.ServeMux) {
	mux.HandleFunc("GET /map", h.Page)
}

func (h *Handler) session(id string) (*service.Session, error) {
	s, err := h.sessions.Get(id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	return s, err
}

// Stream attaches the page to its session. Engine commands arrive as
// map-command events, view state as the session signal and the detail
// panel as patches. The map is created once a stream is attached and the
// page reported ready.
func (h *Handler) Stream(ctx context.Context, input *IDInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}

	return h.Handler.Stream(func(sse humastar.SSE) {
		bus := h.sessions.Bus()
		ch := bus.Subscribe(s.ID)
		defer bus.Unsubscribe(ch)

		if err := s.Attach(ctx); err != nil {
			sse.Error(err.Error())
			return
		}
		defer s.Detach()

		st, err := s.State(ctx)
		if err != nil {
			return
		}
		if err := sse.Signals(map[string]any{"session": st}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					h.Log.Warn().Str("session", s.ID).Msg("stream fell behind, dropping")
					return
				}
				if err := h.send(sse, ev); err != nil {
					if !errors.Is(err, errSessionClosed) {
						h.Log.Debug().Err(err).Str("session", s.ID).Msg("stream ended")
					}
					return
				}
			}
		}
	}), nil
}

func (h *Handler) send(sse humastar.SSE, ev service.Event) error {
	switch ev.Kind {
	case service.KindCommand:
		return sse.Event(EventCommand, ev.Command)
	case service.KindState:
		return sse.Signals(map[string]any{"session": ev.State})
	case service.KindPanel:
		if err := sse.Patch(h.Render("detail-panel", newPanelData(ev.Session, *ev.Panel)), PanelSelector); err != nil {
			return err
		}
		return sse.Event(EventSelection, map[string]string{"id": ev.Panel.ID})
	case service.KindClosed:
		sse.Error("map session closed")
		return errSessionClosed
	}
	return nil
}

// panelData is the detail-panel template input.
type panelData struct {
	Base  string
	View  detail.View
	Price detail.PriceOption
}

func newPanelData(session string, v detail.View) panelData {
	price, _ := v.Price()
	return panelData{Base: base(session), View: v, Price: price}
}
