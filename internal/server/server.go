// Package server exposes the trip planner over HTTP: the JSON proxy
// endpoint, a health check and a server-rendered form page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/tripintel/internal/render"
	"github.com/ca-srg/tripintel/internal/types"
)

// TripPlanner forwards a trip request upstream and returns the raw JSON
type TripPlanner interface {
	Plan(ctx context.Context, req types.TripRequest) (json.RawMessage, error)
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            3000,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    180 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ServerConfigFrom copies the server settings out of the root configuration
func ServerConfigFrom(cfg *types.Config) *ServerConfig {
	sc := DefaultServerConfig()
	if cfg == nil {
		return sc
	}
	sc.Host = cfg.ServerHost
	sc.Port = cfg.ServerPort
	sc.ReadTimeout = cfg.ServerReadTimeout
	sc.WriteTimeout = cfg.ServerWriteTimeout
	sc.IdleTimeout = cfg.ServerIdleTimeout
	sc.ShutdownTimeout = cfg.ServerShutdownTimeout
	return sc
}

// Addr is the listen address
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server serves the trip planning API and pages
type Server struct {
	config    *ServerConfig
	planner   TripPlanner
	renderer  *render.Renderer
	templates *TemplateManager
	logger    *log.Logger
}

// NewServer creates a new server
func NewServer(serverConfig *ServerConfig, planner TripPlanner, logger *log.Logger) (*Server, error) {
	if planner == nil {
		return nil, errors.New("server: planner is required")
	}
	if serverConfig == nil {
		serverConfig = DefaultServerConfig()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}

	templates, err := NewTemplateManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize templates: %w", err)
	}

	return &Server{
		config:    serverConfig,
		planner:   planner,
		renderer:  render.New(),
		templates: templates,
		logger:    logger,
	}, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.routes()
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return otelhttp.NewHandler(h, "tripintel",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Printf("Server listening on http://%s", s.config.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
