package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/api"
	"github.com/joeblew999/plat-termit/internal/api/mapview"
	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/db"
	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/humastar"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/metrics"
	"github.com/joeblew999/plat-termit/internal/service"
	"github.com/joeblew999/plat-termit/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string // DuckDB location; empty serves detail records from memory
	// Catalogue is an optional catalogue YAML file replacing the embedded one.
	Catalogue string
	// TemplatesDir reloads page templates from disk (dev hot-reload).
	TemplatesDir string
	Container    string
	KakaoKey     string
	IdleTimeout  time.Duration
	SettleDelay  time.Duration
}

// Server is the termit HTTP server.
type Server struct {
	config   Config
	log      zerolog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	metrics  *metrics.Metrics
	renderer *templates.Renderer
	links    *humastar.Links
}

// New creates a new termit server.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Server, error) {
	cat, err := catalogue.Load(cfg.Catalogue)
	if err != nil {
		return nil, err
	}

	renderer, err := templates.Default()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if cfg.TemplatesDir != "" {
		if err := renderer.Reload(cfg.TemplatesDir); err != nil {
			return nil, fmt.Errorf("load templates from %s: %w", cfg.TemplatesDir, err)
		}
		log.Info().Str("dir", cfg.TemplatesDir).Msg("loaded templates from disk")
	}

	s := &Server{
		config:   cfg,
		log:      log,
		mux:      http.NewServeMux(),
		metrics:  metrics.New(),
		renderer: renderer,
		links:    humastar.NewLinks(),
	}

	details, err := s.openDetails(ctx)
	if err != nil {
		return nil, err
	}

	s.services = &api.Services{
		Catalogue: cat,
		Details:   details,
		Sessions: service.NewSessionService(cat, details, nil, service.Options{
			Container:   cfg.Container,
			IdleTimeout: cfg.IdleTimeout,
			Adapter:     mapwidget.Options{SettleDelay: cfg.SettleDelay},
			Metrics:     s.metrics,
			Logger:      log,
		}),
	}

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-termit API", "1.0.0")
	humaConfig.Info.Description = "Map view-state service for property analysis: catalogue, detail records and live map sessions."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())

	s.humaAPI = humago.New(s.mux, humaConfig)
	s.routes()

	s.handler = middleware.RequestID(
		middleware.Recoverer(
			accessLog(log)(
				s.metrics.Middleware(s.mux))))
	return s, nil
}

// openDetails serves detail records from DuckDB when a data directory is
// configured, seeding it on first use, and from the bundled records otherwise.
func (s *Server) openDetails(ctx context.Context) (detail.Source, error) {
	if s.config.DataDir == "" {
		return detail.SeedSource()
	}

	conn, err := db.Open(ctx, db.Config{DataDir: s.config.DataDir})
	if err != nil {
		return nil, err
	}
	records, err := detail.Seed()
	if err != nil {
		conn.Close()
		return nil, err
	}
	n, err := db.Seed(ctx, conn, records)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if n > 0 {
		s.log.Info().Int("records", n).Msg("seeded detail records")
	}
	s.db = conn
	return detail.NewSQLSource(conn, s.log), nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the map session service.
func (s *Server) Sessions() *service.SessionService {
	return s.services.Sessions
}

// Run expires idle sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.services.Sessions.Run(ctx)
}

// Close closes every session and the database.
func (s *Server) Close() error {
	s.services.Sessions.Shutdown(context.Background())
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.Catalogue, s.services.Sessions).RegisterRoutes(s.humaAPI)

	// Map page and its Datastar SSE routes
	mv := mapview.New(s.services.Sessions, s.renderer, s.config.KakaoKey, s.log)
	mv.RegisterRoutes(s.humaAPI)
	mv.RegisterPages(s.mux)

	// Page event endpoints are not resources; leave them out of discovery.
	s.links.Build(s.humaAPI, "map")

	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For(humastar.EntryPoint) {
		w.Header().Add("Link", link)
	}
	w.Header().Add("Link", `</map>; rel="map"`)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-termit",
		"status":  "running",
	})
}
