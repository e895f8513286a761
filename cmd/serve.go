package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	appconfig "github.com/ca-srg/tripintel/internal/config"
	"github.com/ca-srg/tripintel/internal/metrics"
	"github.com/ca-srg/tripintel/internal/observability"
	"github.com/ca-srg/tripintel/internal/planner"
	"github.com/ca-srg/tripintel/internal/retry"
	"github.com/ca-srg/tripintel/internal/server"
	"github.com/ca-srg/tripintel/internal/types"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trip planning API server",
	Long: `
The serve command starts the HTTP server that provides:
- POST /api/plan-trip  proxy to the Gemini generateContent API
- GET  /health         liveness and request totals
- GET  /               travel report form

Configuration is read from the environment (and a .env file if present).
GEMINI_API_KEY and GEMINI_API_URL are required for plan requests to succeed.

Example:
  tripintel serve                  # listen on 0.0.0.0:3000
  tripintel serve --port 8080      # custom port
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind (overrides HOST)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to bind (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	loadDotEnv()

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.ServerHost = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.ServerPort = servePort
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Printf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdown, err := observability.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Printf("Warning: observability shutdown: %v", err)
		}
	}()

	if err := metrics.InitOTelMetrics(); err != nil {
		logger.Printf("Warning: failed to register metrics: %v", err)
	}

	if !cfg.HasGeminiCredentials() {
		logger.Println("Warning: GEMINI_API_KEY or GEMINI_API_URL is not set; plan requests will return a configuration error")
	}

	srv, err := server.NewServer(server.ServerConfigFrom(cfg), newPlanner(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}

// newPlanner builds the planner with the upstream retry policy from config
func newPlanner(cfg *types.Config) *planner.Planner {
	logger := log.New(os.Stdout, "[planner] ", log.LstdFlags)

	policy := retry.ServerPolicy()
	policy.MaxAttempts = cfg.UpstreamMaxAttempts
	policy.BaseDelay = cfg.UpstreamBaseDelay
	policy.MaxJitter = cfg.UpstreamMaxJitter

	httpClient := &http.Client{
		Timeout:   cfg.UpstreamTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	upstream := planner.NewUpstreamClient(policy, httpClient, logger)
	return planner.New(planner.FromAppConfig(cfg), upstream, logger)
}

// loadDotEnv reads .env when present. A missing file is not worth a warning.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
}
