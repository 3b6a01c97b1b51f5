// Package api exposes the reasoner over HTTP: GET /graph, POST /simulate,
// POST /simulate/compare, POST /reload, GET /health and GET /metrics,
// wired through a composable net/http middleware chain.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lattice-health/physioreason/pkg/api/middleware"
	"github.com/lattice-health/physioreason/pkg/config"
	"github.com/lattice-health/physioreason/pkg/health"
	"github.com/lattice-health/physioreason/pkg/logging"
	"github.com/lattice-health/physioreason/pkg/metrics"
	"github.com/lattice-health/physioreason/pkg/model"
)

// GraphSource is the subset of pkg/watch.Watcher the HTTP layer depends on.
// Handlers program against this interface so tests can substitute a fixed
// in-memory graph without a real filesystem watcher.
type GraphSource interface {
	Graph() *model.Graph
	Reload() (*model.Graph, []model.Diagnostic, error)
}

// Server wires the reasoner's engine packages to an HTTP surface.
type Server struct {
	source    GraphSource
	cfg       config.Config
	logger    logging.Logger
	metrics   *metrics.Registry
	health    *health.HealthChecker
	startTime time.Time
}

// NewServer builds a Server. logger, reg and hc default to sane no-op /
// process-wide singletons when nil, so tests can pass a partially
// configured caller.
func NewServer(source GraphSource, cfg config.Config, logger logging.Logger, reg *metrics.Registry, hc *health.HealthChecker) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	if hc == nil {
		hc = health.NewHealthChecker()
	}

	s := &Server{
		source:    source,
		cfg:       cfg,
		logger:    logger,
		metrics:   reg,
		health:    hc,
		startTime: time.Now(),
	}
	s.registerHealthChecks()
	return s
}

func (s *Server) registerHealthChecks() {
	s.health.RegisterLivenessCheck("api", func() health.Check {
		return health.Check{Name: "api", Status: health.StatusHealthy}
	})
	s.health.RegisterReadinessCheck("graph", func() health.Check {
		graph := s.source.Graph()
		if graph == nil {
			return health.Check{Name: "graph", Status: health.StatusUnhealthy, Message: "no graph loaded"}
		}
		return health.Check{
			Name:    "graph",
			Status:  health.StatusHealthy,
			Details: map[string]any{"node_count": graph.NodeCount()},
		}
	})
}

// Handler builds the full middleware-wrapped mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /graph", s.handleGraph)
	mux.HandleFunc("POST /simulate", s.handleSimulate)
	mux.HandleFunc("POST /simulate/compare", s.handleCompare)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReadiness)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))

	var handler http.Handler = mux
	handler = middleware.Metrics(s.metrics)(handler)
	handler = middleware.BodySizeLimit(int64(s.cfg.MaxRequestBodyKB) * 1024)(handler)
	handler = middleware.SecurityHeaders(&middleware.SecurityHeadersConfig{})(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig())(handler)
	handler = middleware.Logging(middleware.GetRequestID)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.PanicRecovery()(handler)

	return handler
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled
// or the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api: listening", logging.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// newDiagnosticID tags a fatal load error in logs so operators can
// correlate it with a bug report.
func newDiagnosticID() string {
	return uuid.NewString()
}
