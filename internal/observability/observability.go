package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_claimed_total",
		Help: "The total number of jobs claimed by this worker process",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_processed_total",
		Help: "The total number of processed jobs",
	}, []string{"type", "status"}) // status: completed, failed, requeued

	JobsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_swept_total",
		Help: "The total number of timed-out jobs reclaimed by the sweeper",
	})

	JobsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_inflight",
		Help: "Jobs currently executing in this worker process",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of job processing.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"type"})
)

// StartMetricsServer runs an HTTP server to expose Prometheus metrics.
func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}
