// Package server exposes the translation operations over HTTP: one-shot
// JSON endpoints, streamed document jobs (NDJSON or server-sent events)
// and a websocket job transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/logging"
	"github.com/ZaguanLabs/lingoflow/metrics"
	"github.com/ZaguanLabs/lingoflow/processor"
	"github.com/ZaguanLabs/lingoflow/provider"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// ProviderFactory builds a provider for a request that names its own
// provider or API key.
type ProviderFactory func(ctx context.Context, cfg provider.Config) (lingoflow.AIProvider, error)

// Config configures a Server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// AllowRequestKeys lets requests carry "provider" and "apiKey".
	AllowRequestKeys bool
	// Provider is the default collaborator. When nil every request must
	// carry an API key.
	Provider lingoflow.AIProvider
	// Options apply to every orchestrator the server builds.
	Options []lingoflow.OrchestratorOption
	// NewProvider defaults to provider.New.
	NewProvider ProviderFactory
	// Metrics, when set, is served on /metrics.
	Metrics *metrics.Metrics
	// ImproveThreshold is the default for /api/improve-json.
	ImproveThreshold int
	Logger           *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg        Config
	orch       *lingoflow.Orchestrator
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a server. Nothing listens until Start.
func New(cfg Config) *Server {
	if cfg.NewProvider == nil {
		cfg.NewProvider = provider.New
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("server")
	}

	s := &Server{cfg: cfg, logger: cfg.Logger}
	if cfg.Provider != nil {
		s.orch = lingoflow.NewOrchestrator(cfg.Provider, s.options()...)
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) options() []lingoflow.OrchestratorOption {
	opts := []lingoflow.OrchestratorOption{
		lingoflow.WithLogger(s.logger),
		lingoflow.WithProcessor(processor.NewHTMLProcessor()),
	}
	return append(opts, s.cfg.Options...)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.httpServer.Addr, "version", lingoflow.FullVersion())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Run serves until ctx is done, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// orchestrator returns the orchestrator for a request. Requests that name
// a provider or key get their own when the server allows it.
func (s *Server) orchestrator(ctx context.Context, name, apiKey string) (*lingoflow.Orchestrator, error) {
	if name == "" && apiKey == "" {
		if s.orch == nil {
			return nil, &lingoflow.ValidationError{Field: "apiKey", Message: "is required"}
		}
		return s.orch, nil
	}
	if !s.cfg.AllowRequestKeys {
		return nil, &lingoflow.ValidationError{Field: "apiKey", Message: "request credentials are disabled on this server"}
	}
	if apiKey == "" && name != "mock" {
		return nil, &lingoflow.ValidationError{Field: "apiKey", Message: "is required"}
	}

	p, err := s.cfg.NewProvider(ctx, provider.Config{Name: name, APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return lingoflow.NewOrchestrator(p, s.options()...), nil
}
