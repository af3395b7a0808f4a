package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-termit/internal/catalogue"
	"github.com/joeblew999/plat-termit/internal/server"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

// Options defines all CLI flags and env vars for the termit server.
// Flags: --host, --port, --data-dir, --catalogue, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_KAKAO_KEY, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for the DuckDB detail store; empty serves the bundled records from memory" default:".data"`
	Catalogue   string `doc:"Catalogue YAML file; empty uses the built-in catalogue"`
	Templates   string `doc:"Load page templates from this directory instead of the built-in ones"`
	Container   string `doc:"DOM element ID the map mounts into" default:"map"`
	KakaoKey    string `doc:"Kakao Maps JavaScript app key"`
	IdleTimeout int    `doc:"Minutes before a session without a page is closed" default:"30"`
	LogLevel    string `doc:"Log level (trace, debug, info, warn, error)" default:"info"`
}

func (o *Options) config() server.Config {
	return server.Config{
		Host:         o.Host,
		Port:         fmt.Sprintf("%d", o.Port),
		DataDir:      o.DataDir,
		Catalogue:    o.Catalogue,
		TemplatesDir: o.Templates,
		Container:    o.Container,
		KakaoKey:     o.KakaoKey,
		IdleTimeout:  time.Duration(o.IdleTimeout) * time.Minute,
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := server.NewLogger(opts.LogLevel)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		var httpServer *http.Server
		var srv *server.Server

		hooks.OnStart(func() {
			defer stop()

			var err error
			srv, err = server.New(ctx, opts.config(), log)
			if err != nil {
				log.Fatal().Err(err).Msg("server setup failed")
			}
			defer srv.Close()
			go srv.Run(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.Info().
				Str("addr", addr).
				Str("map", baseURL+"/map").
				Str("docs", baseURL+"/docs").
				Str("openapi", baseURL+"/openapi.json").
				Str("data_dir", opts.DataDir).
				Msg("plat-termit server starting")
			if opts.KakaoKey == "" {
				log.Warn().Msg("no Kakao app key set; the map page will not load tiles")
			}

			httpServer = &http.Server{Addr: addr, Handler: srv}
			go func() {
				<-ctx.Done()
				shutdown(httpServer, log)
			}()
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("server error")
			}
		})

		hooks.OnStop(func() {
			stop()
		})
	})

	cli.Root().Use = "termit"
	cli.Root().Short = "Property analysis map with live view-state sessions"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := opts.config()
			cfg.DataDir = ""
			srv, err := server.New(cmd.Context(), cfg, zerolog.Nop())
			if err != nil {
				fail("Error creating server: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalogue subcommand: print the (validated) catalogue
	catalogueCmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Validate and print the catalogue as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, mode := loadCatalogue(cmd, opts)
			output, err := yaml.Marshal(cat.Entries(mode))
			if err != nil {
				fail("Error marshaling catalogue: %v", err)
			}
			fmt.Print(string(output))
		}),
	}
	catalogueCmd.Flags().StringP("mode", "m", "", "Only entries for this mode (NATION, CITY, DISTRICT)")
	cli.Root().AddCommand(catalogueCmd)

	// geojson subcommand: export catalogue positions and areas
	geojsonCmd := &cobra.Command{
		Use:   "geojson",
		Short: "Export the catalogue as a GeoJSON FeatureCollection",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, mode := loadCatalogue(cmd, opts)
			output, err := json.MarshalIndent(cat.FeatureCollection(mode), "", "  ")
			if err != nil {
				fail("Error marshaling geojson: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	geojsonCmd.Flags().StringP("mode", "m", "", "Only entries for this mode (NATION, CITY, DISTRICT)")
	cli.Root().AddCommand(geojsonCmd)

	cli.Run()
}

func loadCatalogue(cmd *cobra.Command, opts *Options) (*catalogue.Catalogue, viewstate.Mode) {
	cat, err := catalogue.Load(opts.Catalogue)
	if err != nil {
		fail("Error loading catalogue: %v", err)
	}
	var mode viewstate.Mode
	if s, _ := cmd.Flags().GetString("mode"); s != "" {
		if mode, err = viewstate.ParseMode(s); err != nil {
			fail("%v", err)
		}
	}
	return cat, mode
}

func shutdown(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}
