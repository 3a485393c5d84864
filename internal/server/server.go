// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ricesearch/rank-eval/internal/bus"
	"github.com/ricesearch/rank-eval/internal/config"
	"github.com/ricesearch/rank-eval/internal/evaluation"
	"github.com/ricesearch/rank-eval/internal/metrics"
	"github.com/ricesearch/rank-eval/internal/observability"
	"github.com/ricesearch/rank-eval/internal/pkg/logger"
	"github.com/ricesearch/rank-eval/internal/pkg/middleware"
	"github.com/ricesearch/rank-eval/internal/snapshot"
)

// Server is the main HTTP server that wires all services together.
type Server struct {
	cfg        Config
	log        *logger.Logger
	httpServer *http.Server

	// Services
	bus     bus.Bus
	store   snapshot.Store
	metrics *metrics.Metrics
	audit   *observability.Service
	eval    *evaluation.Service

	// Handlers and middleware
	evalHandler   *evaluation.Handler
	healthHandler *HealthHandler
	limiter       *middleware.RateLimiter
	apiKey        string
	metricsPath   string

	mu      sync.RWMutex
	started bool
}

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a new server with all dependencies.
func New(cfg Config, appCfg config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		cfg: cfg,
		log: log,
	}

	// Initialize event bus
	baseBus, err := bus.NewBus(appCfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	s.bus = baseBus

	// Durable event log, if configured
	if appCfg.Bus.EventLog != "" {
		eventLog, err := bus.NewEventLogger(appCfg.Bus.EventLog, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		s.bus = bus.NewLoggedBus(s.bus, eventLog, log)
	}

	// Telemetry; history shares the snapshot Redis when available
	if appCfg.Observability.MetricsEnabled {
		persistence, redisURL := "memory", ""
		if appCfg.Snapshot.Type == "redis" {
			persistence, redisURL = "redis", appCfg.Snapshot.RedisURL
		}
		s.metrics = metrics.NewWithConfig(persistence, redisURL)
		s.bus = bus.NewInstrumentedBus(s.bus, s.metrics)

		subscriber := metrics.NewEventSubscriber(s.metrics, s.bus)
		if err := subscriber.SubscribeToEvents(context.Background()); err != nil {
			log.Warn("Failed to subscribe metrics to bus events", "error", err)
		}

		s.metricsPath = appCfg.Observability.MetricsPath
		if s.metricsPath == "" {
			s.metricsPath = "/metrics"
		}
	}

	// Snapshot store; nil means snapshotting is disabled
	store, err := snapshot.NewStore(appCfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}
	s.store = store

	// Evaluation service with audit log
	evalSvc, err := evaluation.NewService(appCfg.Eval, s.bus, store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation service: %w", err)
	}
	s.audit = observability.NewService(log)
	evalSvc.SetAuditLog(s.audit)
	s.eval = evalSvc

	// Handlers
	s.evalHandler = evaluation.NewHandler(evalSvc)
	s.healthHandler = NewHealthHandler(s, cfg.Version)

	// Security
	s.apiKey = appCfg.Security.APIKey
	if appCfg.Security.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(appCfg.Security.RateLimit),
			Burst:             appCfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
	}

	return s, nil
}

// Evaluation returns the evaluation service, mainly for the CLI.
func (s *Server) Evaluation() *evaluation.Service {
	return s.eval
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("Starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	// Close services
	if s.bus != nil {
		s.bus.Close()
	}
	if s.metrics != nil {
		s.metrics.Close()
	}
	if s.store != nil {
		s.store.Close()
	}

	s.started = false
	s.log.Info("Server stopped")

	return nil
}

// Health returns the server health status.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
