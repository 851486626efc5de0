package metrics

import (
	"testing"
	"time"

	"github.com/menuvia/menuvia/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry(), config.Config{AppName: "menuvia-test", Environment: "test"})
}

func TestRecordHTTPRequestRelabelsUnmatchedRoutes(t *testing.T) {
	m := newTestMetrics()

	m.RecordHTTPRequest("GET", "/api/billing/plans", "200", 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "", "404", time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/billing/plans", "200")); got != 1 {
		t.Fatalf("expected 1 matched request, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected unmatched requests relabeled, got %v", got)
	}
}

func TestRecordSweep(t *testing.T) {
	m := newTestMetrics()

	m.RecordSweep(3, 1)
	m.RecordSweep(0, 0)

	if got := testutil.ToFloat64(m.sweepRuns); got != 2 {
		t.Fatalf("expected 2 sweep runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepExpired); got != 3 {
		t.Fatalf("expected 3 expired, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepErrors); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	m.RecordWebhookEvent("subscription.charged")
	m.RecordSweep(1, 0)
}
