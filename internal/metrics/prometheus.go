package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oriys/lambdaburst/internal/logging"
)

// PrometheusMetrics wraps prometheus collectors for batch runs
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	invocationsTotal *prometheus.CounterVec
	statusCodesTotal *prometheus.CounterVec
	dispatchedTotal  *prometheus.CounterVec

	// Histograms
	invocationDuration *prometheus.HistogramVec
	batchDuration      *prometheus.HistogramVec

	// Gauges
	inflight       prometheus.Gauge
	poolRunning    prometheus.Gauge
	poolWaiting    prometheus.Gauge
	profilerActive prometheus.Gauge
}

// Default histogram buckets for invocation duration (in milliseconds)
var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of resolved invocations by outcome",
			},
			[]string{"function", "outcome"},
		),

		statusCodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_codes_total",
				Help:      "Invocation status codes returned by Lambda",
			},
			[]string{"function", "code"},
		),

		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatched_total",
				Help:      "Total number of invocations submitted to the worker pool",
			},
			[]string{"function"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_milliseconds",
				Help:      "Duration of Lambda invocations in milliseconds",
				Buckets:   buckets,
			},
			[]string{"function", "outcome"},
		),

		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Wall time of a whole batch run",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"function"},
		),

		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inflight_invocations",
				Help:      "Invocations currently executing",
			},
		),

		poolRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_running_workers",
				Help:      "Worker goroutines currently running in the dispatch pool",
			},
		),

		poolWaiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_waiting_tasks",
				Help:      "Submitted invocations waiting for a worker",
			},
		),

		profilerActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "profiler_active",
				Help:      "1 while a profiling session is open",
			},
		),
	}

	registry.MustRegister(
		pm.invocationsTotal,
		pm.statusCodesTotal,
		pm.dispatchedTotal,
		pm.invocationDuration,
		pm.batchDuration,
		pm.inflight,
		pm.poolRunning,
		pm.poolWaiting,
		pm.profilerActive,
	)

	promMetrics = pm
}

// RecordDispatch records a submission to the worker pool
func RecordDispatch(funcName string) {
	if promMetrics == nil {
		return
	}
	promMetrics.dispatchedTotal.WithLabelValues(funcName).Inc()
}

// RecordInvocation records a resolved invocation. statusCode is ignored
// for faults (pass 0).
func RecordInvocation(funcName, outcome string, statusCode int, duration time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.invocationsTotal.WithLabelValues(funcName, outcome).Inc()
	if statusCode > 0 {
		promMetrics.statusCodesTotal.WithLabelValues(funcName, strconv.Itoa(statusCode)).Inc()
	}
	promMetrics.invocationDuration.WithLabelValues(funcName, outcome).Observe(float64(duration.Milliseconds()))
}

// RecordBatchDuration records the wall time of a batch
func RecordBatchDuration(funcName string, d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.batchDuration.WithLabelValues(funcName).Observe(d.Seconds())
}

// IncInflight increments the in-flight invocation gauge
func IncInflight() {
	if promMetrics == nil {
		return
	}
	promMetrics.inflight.Inc()
}

// DecInflight decrements the in-flight invocation gauge
func DecInflight() {
	if promMetrics == nil {
		return
	}
	promMetrics.inflight.Dec()
}

// SetPoolStats publishes the worker pool occupancy
func SetPoolStats(running int64, waiting uint64) {
	if promMetrics == nil {
		return
	}
	promMetrics.poolRunning.Set(float64(running))
	promMetrics.poolWaiting.Set(float64(waiting))
}

// SetProfilerActive flips the profiler gauge
func SetProfilerActive(active bool) {
	if promMetrics == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	promMetrics.profilerActive.Set(v)
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(PrometheusRegistry(), promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the registry backing /metrics, or nil before
// InitPrometheus.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}

// Serve exposes /metrics on addr until the returned shutdown func is called.
func Serve(addr string) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", PrometheusHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Op().Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return server.Shutdown
}
