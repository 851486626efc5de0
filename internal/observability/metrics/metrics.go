package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/menuvia/menuvia/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	webhookEvents *prometheus.CounterVec
	sweepRuns     prometheus.Counter
	sweepExpired  prometheus.Counter
	sweepErrors   prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// New returns the singleton metrics registry.
func New(cfg config.Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg config.Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "menuvia"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "menuvia_http_requests_total",
		Help:        "HTTP requests by method, route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "menuvia_http_request_duration_seconds",
		Help:        "HTTP request latency by method and route.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"method", "route"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "menuvia_webhook_events_total",
		Help:        "Processed gateway webhook events by type.",
		ConstLabels: constLabels,
	}, []string{"event"})
	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "menuvia_expiry_sweep_runs_total",
		Help:        "Expiry sweep executions.",
		ConstLabels: constLabels,
	})
	sweepExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "menuvia_expiry_sweep_expired_total",
		Help:        "Subscriptions marked expired by the sweep.",
		ConstLabels: constLabels,
	})
	sweepErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "menuvia_expiry_sweep_errors_total",
		Help:        "Per-record errors encountered during the sweep.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		httpRequests,
		httpDuration,
		webhookEvents,
		sweepRuns,
		sweepExpired,
		sweepErrors,
	)

	return &Metrics{
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
		webhookEvents: webhookEvents,
		sweepRuns:     sweepRuns,
		sweepExpired:  sweepExpired,
		sweepErrors:   sweepErrors,
	}
}

// RecordHTTPRequest increments request counts and observes latency.
func (m *Metrics) RecordHTTPRequest(method, route string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordWebhookEvent increments processed webhook event counts.
func (m *Metrics) RecordWebhookEvent(event string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(strings.TrimSpace(event)).Inc()
}

// RecordSweep records one sweep execution outcome.
func (m *Metrics) RecordSweep(expired int, errs int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	if expired > 0 {
		m.sweepExpired.Add(float64(expired))
	}
	if errs > 0 {
		m.sweepErrors.Add(float64(errs))
	}
}
