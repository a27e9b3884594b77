package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/gstgraph/internal/model"
)

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gstgraph_builds_total",
		Help: "Total number of snapshot builds by result (success, failure)",
	}, []string{"result"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gstgraph_build_duration_seconds",
		Help:    "Wall time of a full snapshot build",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	coalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gstgraph_rebuild_requests_coalesced_total",
		Help: "Rebuild requests that joined a pending follow-up build instead of starting their own",
	})

	snapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gstgraph_snapshot_version",
		Help: "Version of the currently published snapshot",
	})

	mismatchesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gstgraph_mismatches",
		Help: "Reconciliation mismatches in the current snapshot by status",
	}, []string{"status"})

	patternsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gstgraph_fraud_patterns",
		Help: "Fraud patterns in the current snapshot by type",
	}, []string{"type"})

	anomaliesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gstgraph_anomalies",
		Help: "Statistical anomalies in the current snapshot by type",
	}, []string{"type"})

	alertsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gstgraph_alerts",
		Help: "Alerts in the current snapshot by severity",
	}, []string{"severity"})

	rebuildsThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gstgraph_rebuilds_throttled_total",
		Help: "Watch-triggered rebuilds delayed by the rate limiter",
	}, []string{"dir"})
)

// RecordBuild records the outcome and duration of one build
func RecordBuild(success bool, seconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	buildsTotal.WithLabelValues(result).Inc()
	buildDuration.Observe(seconds)
}

// RecordCoalesced counts a rebuild request that joined a pending build
func RecordCoalesced() {
	coalescedRequests.Inc()
}

// RecordThrottled counts a watch rebuild that had to wait for the limiter
func RecordThrottled(dir string) {
	rebuildsThrottled.WithLabelValues(dir).Inc()
}

// RecordSnapshot publishes the per-snapshot gauges
func RecordSnapshot(s *model.Snapshot) {
	snapshotVersion.Set(float64(s.Version))

	mismatchesGauge.Reset()
	for status, n := range s.Reconciliation.Summary.ByStatus {
		mismatchesGauge.WithLabelValues(string(status)).Set(float64(n))
	}

	patternsGauge.Reset()
	for typ, n := range s.Patterns.Summary.ByType {
		patternsGauge.WithLabelValues(string(typ)).Set(float64(n))
	}

	anomaliesGauge.Reset()
	for typ, n := range s.Anomalies.Summary.ByType {
		anomaliesGauge.WithLabelValues(string(typ)).Set(float64(n))
	}

	alertsGauge.Reset()
	counts := make(map[model.Severity]int)
	for _, a := range s.Alerts {
		counts[a.Severity]++
	}
	for sev, n := range counts {
		alertsGauge.WithLabelValues(string(sev)).Set(float64(n))
	}
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
