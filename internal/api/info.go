package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/service"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

type InfoHandler struct {
	dataDir  string
	dbOK     bool
	cat      *catalogue.Catalogue
	sessions *service.SessionService
}

func NewInfoHandler(dataDir string, dbOK bool, cat *catalogue.Catalogue, sessions *service.SessionService) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, cat: cat, sessions: sessions}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string               `json:"name" doc:"Service name"`
	Version    string               `json:"version" doc:"Service version"`
	DataDir    string               `json:"data_dir" doc:"Data directory path"`
	DB         bool                 `json:"db" doc:"Whether detail records are served from DuckDB"`
	Entries    int                  `json:"entries" doc:"Catalogue entries"`
	Sessions   int                  `json:"sessions" doc:"Open map sessions"`
	Thresholds viewstate.Thresholds `json:"thresholds" doc:"Mode zoom thresholds"`
	Features   []string             `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-termit",
		Version:    "0.1.0",
		DataDir:    h.dataDir,
		DB:         h.dbOK,
		Entries:    h.cat.Len(),
		Sessions:   h.sessions.Len(),
		Thresholds: h.cat.Thresholds(),
		Features:   []string{"map-sessions", "datastar", "geojson", "duckdb"},
	}}, nil
}
