// Package metrics exposes the server's Prometheus counters on /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "draftkeeper"

// Push outcomes.
const (
	PushAccepted = "accepted"
	PushConflict = "conflict"
	PushForced   = "forced"
)

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	Pushes      *prometheus.CounterVec
	Leases      *prometheus.CounterVec
	SweptLeases prometheus.Counter
	Archived    *prometheus.CounterVec
	AuditEvents *prometheus.CounterVec
	RateLimited prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_pushes_total",
			Help:      "Draft pushes by outcome.",
		}, []string{"result"}),
		Leases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_requests_total",
			Help:      "Lease operations by operation and outcome.",
		}, []string{"op", "result"}),
		SweptLeases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leases_swept_total",
			Help:      "Expired leases removed by the sweeper.",
		}),
		Archived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_archived_total",
			Help:      "Overwritten drafts copied to the archive, by outcome.",
		}, []string{"result"}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Client audit events received, by kind and severity.",
		}, []string{"kind", "severity"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-user rate limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Pushes, m.Leases, m.SweptLeases, m.Archived, m.AuditEvents, m.RateLimited,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// LeaseResult records one lease operation.
func (m *Metrics) LeaseResult(op string, ok bool) {
	result := "granted"
	if !ok {
		result = "denied"
	}
	m.Leases.WithLabelValues(op, result).Inc()
}

// Serve runs the /metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Stopping metrics server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Starting metrics server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
