// Package app wires configuration, providers, storage and observability
// around the chain runner for the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/your-org/promptchain/internal/audit"
	"github.com/your-org/promptchain/internal/billing"
	"github.com/your-org/promptchain/internal/config"
	"github.com/your-org/promptchain/internal/metrics"
	"github.com/your-org/promptchain/internal/providers"
	"github.com/your-org/promptchain/internal/retry"
	"github.com/your-org/promptchain/internal/store"
	"github.com/your-org/promptchain/internal/trace"
)

// App holds the long-lived collaborators of a process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	providers *providers.Registry
	store     store.Store
	audit     *audit.Logger
	breaker   *retry.CircuitBreaker
	rates     billing.RateCard

	mem      *metrics.InMemoryRecorder
	recorder metrics.Recorder
	promReg  *prometheus.Registry

	tracer      oteltrace.Tracer
	otelCleanup func(context.Context) error

	actor string
	now   func() time.Time
}

// Option customizes New.
type Option func(*App)

// WithProviders replaces the registry built from config.
func WithProviders(r *providers.Registry) Option {
	return func(a *App) { a.providers = r }
}

// WithStore replaces the store opened from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithActor sets the name recorded in the audit log.
func WithActor(actor string) Option {
	return func(a *App) { a.actor = actor }
}

// New builds an App from cfg. Close releases what it opened.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		audit:   audit.NewLogger(cfg.AuditLogPath),
		breaker: retry.NewCircuitBreaker(),
		mem:     metrics.NewInMemoryRecorder(),
		actor:   defaultActor(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	rates, err := billing.NewRateCard(cfg.USDPer1KTokens)
	if err != nil {
		return nil, fmt.Errorf("rate card: %w", err)
	}
	a.rates = rates

	if a.providers == nil {
		a.providers = providers.FromConfig(cfg, nil)
	}
	if a.store == nil {
		s, err := store.Open(cfg.TraceDB, cfg.TraceDir)
		if err != nil {
			return nil, err
		}
		a.store = s
	}

	a.recorder = a.mem
	if cfg.MetricsEnabled {
		a.promReg = prometheus.NewRegistry()
		prom, err := metrics.NewPrometheusRecorder(a.promReg)
		if err != nil {
			return nil, fmt.Errorf("setup prometheus recorder: %w", err)
		}
		a.recorder = metrics.NewMultiRecorder(a.mem, prom)
	}

	otelRuntime, err := trace.SetupOTelFromEnv("promptchain")
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.tracer = otelRuntime.Tracer
	a.otelCleanup = otelRuntime.Shutdown
	return a, nil
}

// Close flushes spans and closes the store.
func (a *App) Close() error {
	var errs []error
	if a.otelCleanup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.otelCleanup(ctx))
		cancel()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Metrics returns the in-process metric totals.
func (a *App) Metrics() metrics.Snapshot {
	return a.mem.Snapshot()
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}
