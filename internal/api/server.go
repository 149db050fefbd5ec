// Package api is the HTTP control surface: device status, format
// catalog, runtime toggles, logs and metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/Nakildias/sc0710/internal/capture"
	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/logging"
	"github.com/Nakildias/sc0710/internal/metrics"
	"github.com/Nakildias/sc0710/internal/signal"
	"github.com/Nakildias/sc0710/internal/stream"
	"github.com/Nakildias/sc0710/internal/version"
)

// Options wires the server to the engine.
type Options struct {
	Device   *capture.Device
	Snapshot func() signal.Snapshot
	Mux      *stream.Mux
	Runtime  *config.RuntimeStore
	Monitor  *signal.Monitor // nil when no transport is attached
	Events   *events.Recorder
}

// Server is the Huma v2 API server over Go 1.22 native routing.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger
}

// NewServer builds the server and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	cfg := huma.DefaultConfig("sc0710", version.Version)
	cfg.Info.Description = "Control API for the SC0710 HDMI capture engine"
	// Relative paths so the OpenAPI document works behind any host.
	cfg.Servers = []*huma.Server{}

	api := humago.New(mux, cfg)

	s := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(httpLoggingMiddleware)

	mux.Handle("GET /metrics", metrics.Handler())

	s.registerStatusRoutes()
	s.registerFormatRoutes()
	s.registerOptionRoutes()
	s.registerDebugRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()

	return s
}

// API returns the Huma API instance, for tests.
func (s *Server) API() huma.API { return s.api }

// Start serves on addr until Stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting control api", "addr", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections.
func (s *Server) Stop() error {
	s.logger.Info("stopping control api")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
