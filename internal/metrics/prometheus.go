package metrics

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder reports runtime metrics using Prometheus primitives.
type PrometheusRecorder struct {
	steps       *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	retries     *prometheus.CounterVec
	circuitOpen *prometheus.CounterVec
}

func NewPrometheusRecorder(registry *prometheus.Registry) (*PrometheusRecorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	r := &PrometheusRecorder{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptchain_steps_total",
			Help: "Total number of chain steps by outcome",
		}, []string{"chain", "role", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptchain_step_duration_seconds",
			Help:    "Model call latency per chain step in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"chain"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptchain_tokens_total",
			Help: "Tokens consumed by chain steps, reported or estimated",
		}, []string{"chain"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptchain_provider_retries_total",
			Help: "Total provider retry attempts",
		}, []string{"provider"}),
		circuitOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptchain_provider_circuit_breaks_total",
			Help: "Total circuit breaker open events by provider",
		}, []string{"provider"}),
	}

	for _, collector := range []prometheus.Collector{r.steps, r.durations, r.tokens, r.retries, r.circuitOpen} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveStep(chain string, role string, status string, duration time.Duration, tokens int) {
	r.steps.WithLabelValues(chain, role, status).Inc()
	if duration > 0 {
		r.durations.WithLabelValues(chain).Observe(duration.Seconds())
	}
	if tokens > 0 {
		r.tokens.WithLabelValues(chain).Add(float64(tokens))
	}
}

func (r *PrometheusRecorder) ObserveRetry(provider string) {
	r.retries.WithLabelValues(provider).Inc()
}

func (r *PrometheusRecorder) ObserveCircuitOpen(provider string) {
	r.circuitOpen.WithLabelValues(provider).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// StartPrometheusServer serves /metrics on addr. tlsCfg may be nil.
func StartPrometheusServer(addr string, registry *prometheus.Registry, tlsCfg *tls.Config) (*http.Server, error) {
	if addr == "" {
		addr = ":9090"
	}
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics endpoint %q: %w", addr, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(registry))
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return srv, nil
}

func StopServer(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
