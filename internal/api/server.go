package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/framescale/internal/api/models"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/pipeline"
	"github.com/smazurov/framescale/internal/version"
)

// Controller is the run the API reports on and controls.
type Controller interface {
	Status() pipeline.Status
	SetPaused(paused bool) bool
}

// Server is the HTTP control surface of a run.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	controller Controller
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Controller        Controller
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// NewServer creates the API server with Huma v2 on Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	handlePreflight(mux)

	config := huma.DefaultConfig("framescale API", "1.0.0")
	config.Info.Description = "Status, pause control and live events of a video upscaling run"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:        api,
		mux:        mux,
		controller: opts.Controller,
		eventBus:   opts.EventBus,
		options:    opts,
		logger:     logging.GetLogger("api"),
	}
	if server.eventBus == nil {
		server.eventBus = events.New()
	}

	// CORS first, then logging, then auth
	api.UseMiddleware(corsMiddleware, server.loggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.authMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Registered before the API routes, no auth required
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	return server
}

// Start serves the API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting framescale API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	return s.httpServer.ListenAndServe()
}

// Stop closes the server without waiting for open streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				BuildID:   versionInfo.BuildID,
				GoVersion: versionInfo.GoVersion,
				Compiler:  versionInfo.Compiler,
				Platform:  versionInfo.Platform,
				Modified:  versionInfo.Modified,
			},
		}, nil
	})

	s.registerRunRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
