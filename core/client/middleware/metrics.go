package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes every metric name when MetricsConfig
// leaves Namespace empty.
const DefaultMetricsNamespace = "docflow"

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Registerer receives the collectors. Required; pass
	// prometheus.DefaultRegisterer to expose them on the global registry.
	Registerer prometheus.Registerer

	// Namespace and Subsystem are joined into the metric names.
	// Default namespace: "docflow".
	Namespace string
	Subsystem string

	// DurationBuckets for request_duration_seconds.
	// Default: prometheus.DefBuckets.
	DurationBuckets []float64
}

// Metrics tracks transport attempts made by the client.
//
// Metrics:
//   - docflow_requests_total: attempts by method and status ("error" for transport failures)
//   - docflow_request_duration_seconds: time until response headers, by method
//   - docflow_retries_total: attempts after the first one, by method
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with cfg.Registerer.
// Collectors that are already registered under the same names are reused, so
// several clients can share one registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if cfg.Registerer == nil {
		return nil, errors.New("metrics registerer is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.DefBuckets
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP attempts made by the docflow client",
			},
			[]string{"method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time until response headers were received, in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"method"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retries_total",
				Help:      "Total number of retried HTTP attempts",
			},
			[]string{"method"},
		),
	}

	var err error
	if m.requestsTotal, err = register(cfg.Registerer, m.requestsTotal); err != nil {
		return nil, err
	}
	if m.requestDuration, err = register(cfg.Registerer, m.requestDuration); err != nil {
		return nil, err
	}
	if m.retriesTotal, err = register(cfg.Registerer, m.retriesTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers collector, or returns the collector that already holds
// its name.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return collector, fmt.Errorf("failed to register metric: %w", err)
}

// Middleware returns the Middleware that records every attempt.
func (m *Metrics) Middleware() Middleware {
	return func(next DoFunc) DoFunc {
		return func(req *http.Request) (*http.Response, error) {
			if AttemptFromContext(req.Context()) > 0 {
				m.retriesTotal.WithLabelValues(req.Method).Inc()
			}

			start := time.Now()
			response, err := next(req)
			m.requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			status := "error"
			if err == nil {
				status = strconv.Itoa(response.StatusCode)
			}
			m.requestsTotal.WithLabelValues(req.Method, status).Inc()

			return response, err
		}
	}
}

// NewMetricsMiddleware is a shortcut for NewMetrics followed by Middleware.
func NewMetricsMiddleware(cfg MetricsConfig) (Middleware, error) {
	m, err := NewMetrics(cfg)
	if err != nil {
		return nil, err
	}
	return m.Middleware(), nil
}
