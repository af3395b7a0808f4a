// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/humastar"
	"github.com/joeblew999/plat-termit/internal/service"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Catalogue *catalogue.Catalogue
	Details   detail.Source
	Sessions  *service.SessionService
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Session ID" example:"3f1c1f0e-2a8b-4d6e-9a51-0c1b1f6a2d7e"`
}

type EntryIDInput struct {
	ID string `path:"id" doc:"Catalogue entry ID" example:"gangnam-gu"`
}

type CatalogueInput struct {
	Mode   string `query:"mode" doc:"Only entries shown in this mode" enum:"NATION,CITY,DISTRICT"`
	Offset int    `query:"offset" doc:"Items to skip" default:"0" minimum:"0"`
	Limit  int    `query:"limit" doc:"Page size" default:"20" minimum:"1" maximum:"100"`
}

type GeoJSONInput struct {
	Mode string `query:"mode" doc:"Mode to export; empty exports every entry" enum:"NATION,CITY,DISTRICT"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type SessionOutput struct {
	Body SessionBody
}

type SessionSummary struct {
	ID       string    `json:"id" doc:"Session ID"`
	Created  time.Time `json:"created" doc:"When the page opened"`
	LastSeen time.Time `json:"lastSeen" doc:"Last request for the session"`
	Streams  int       `json:"streams" doc:"Attached event streams"`
}

type SelectionInput struct {
	IDInput
	Body struct {
		Selected string `json:"selected" doc:"Entry to select; empty closes the panel" example:"gangnam-gu"`
	}
}

type ViewportInput struct {
	IDInput
	Body geo.Viewport
}

// APIHandler holds all REST API handlers. Methods named Register* are
// called by RegisterRoutes.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterCatalogue(api)
	h.RegisterDetails(api)
	h.RegisterSessions(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCatalogue registers the read-only catalogue routes.
func (h *APIHandler) RegisterCatalogue(api huma.API) {
	huma.Get(api, "/api/v1/catalogue", h.ListCatalogue, huma.OperationTags("catalogue"))
	huma.Get(api, "/api/v1/catalogue/geojson", h.GetCatalogueGeoJSON, huma.OperationTags("catalogue"))
	huma.Get(api, "/api/v1/catalogue/{id}", h.GetCatalogueEntry, huma.OperationTags("catalogue"))
}

// RegisterSessions registers map session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        "POST",
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		Tags:          []string{"sessions"},
		DefaultStatus: 201,
	}, h.CreateSession)
	huma.Get(api, "/api/v1/sessions", h.ListSessions, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/viewport", h.PutViewport, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/selection", h.PutSelection, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}/selection", h.DeleteSelection, huma.OperationTags("sessions"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func parseMode(s string) (viewstate.Mode, error) {
	if s == "" {
		return "", nil
	}
	m, err := viewstate.ParseMode(s)
	if err != nil {
		return "", huma.Error422UnprocessableEntity(err.Error())
	}
	return m, nil
}

func (h *APIHandler) ListCatalogue(ctx context.Context, input *CatalogueInput) (*struct {
	Body humastar.PageBody[catalogue.Entry]
}, error) {
	mode, err := parseMode(input.Mode)
	if err != nil {
		return nil, err
	}
	return &struct {
		Body humastar.PageBody[catalogue.Entry]
	}{Body: humastar.Page(h.svc.Catalogue.Entries(mode), input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetCatalogueEntry(ctx context.Context, input *EntryIDInput) (*struct{ Body catalogue.Entry }, error) {
	e, err := h.svc.Catalogue.Lookup(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{ Body catalogue.Entry }{Body: e}, nil
}

func (h *APIHandler) GetCatalogueGeoJSON(ctx context.Context, input *GeoJSONInput) (*GeoJSONOutput, error) {
	mode, err := parseMode(input.Mode)
	if err != nil {
		return nil, err
	}
	data, err := h.svc.Catalogue.FeatureCollection(mode).MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encode geojson", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) session(id string) (*service.Session, error) {
	s, err := h.svc.Sessions.Get(id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	return s, err
}

func sessionError(err error) error {
	if errors.Is(err, service.ErrLoopClosed) {
		return huma.Error404NotFound(service.ErrSessionNotFound.Error())
	}
	return huma.Error500InternalServerError("session unavailable", err)
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	s, err := h.svc.Sessions.Create(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("create session", err)
	}
	st, err := s.State(ctx)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: SessionBody{State: st}}, nil
}

func (h *APIHandler) ListSessions(ctx context.Context, input *struct{}) (*struct{ Body []SessionSummary }, error) {
	list := h.svc.Sessions.List()
	out := make([]SessionSummary, 0, len(list))
	for _, s := range list {
		out = append(out, SessionSummary{
			ID:       s.ID,
			Created:  s.Created,
			LastSeen: s.LastSeen(),
			Streams:  s.Streams(),
		})
	}
	return &struct{ Body []SessionSummary }{Body: out}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	st, err := s.State(ctx)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: SessionBody{State: st}}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *IDInput) (*struct{}, error) {
	if err := h.svc.Sessions.Close(ctx, input.ID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError("close session", err)
	}
	return nil, nil
}

func (h *APIHandler) PutViewport(ctx context.Context, input *ViewportInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	st, err := s.SetViewport(ctx, input.Body)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: SessionBody{State: st}}, nil
}

// PutSelection selects an entry. Unknown IDs leave the state unchanged and
// still answer 200.
func (h *APIHandler) PutSelection(ctx context.Context, input *SelectionInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	st, err := s.SetSelection(ctx, input.Body.Selected)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: SessionBody{State: st}}, nil
}

func (h *APIHandler) DeleteSelection(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	st, err := s.ClearSelection(ctx)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: SessionBody{State: st}}, nil
}
