package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/realweather/forecast-service/internal/health"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo API call rate. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Upstream latency per request. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Retry attempts for the weather API. High retries = unstable upstream.
	WeatherAPIRetriesTotal prometheus.Counter

	// Model artifact reloads performed by the hot-swap loader.
	ModelReloadsTotal prometheus.Counter

	// Artifact load failures (missing file, corrupt artifact). The loader keeps
	// serving the previous handle, so these do not map 1:1 to 503s.
	ModelLoadErrorsTotal *prometheus.CounterVec

	// Artifact deserialization latency.
	ModelLoadDuration prometheus.Histogram

	// Unix timestamp the currently served model was trained at. Alert when it
	// stops advancing: the trainer is stuck.
	ModelTrainedAtTimestamp prometheus.Gauge

	// Requests refused because no model has ever been loaded.
	ModelUnavailableTotal prometheus.Counter

	// Predictions served, by status (success, no_data, model_unavailable, error).
	PredictionsTotal *prometheus.CounterVec

	// End-to-end prediction latency (rows + features + model).
	PredictionDuration prometheus.Histogram

	// Readings appended to the warehouse by the pusher, by status.
	ReadingsPushedTotal *prometheus.CounterVec

	// One fetch+append ingest cycle latency.
	IngestCycleDuration prometheus.Histogram

	// Training runs, by status (success, skipped, error).
	TrainingRunsTotal *prometheus.CounterVec

	// Full training run latency (load rows + fit + save).
	TrainingDuration prometheus.Histogram

	// Rows used by the most recent successful fit.
	TrainingRowsLast prometheus.Gauge

	// Warehouse operations, by operation (append, recent) and status.
	WarehouseQueriesTotal *prometheus.CounterVec

	// Warehouse operation latency, by operation.
	WarehouseQueryDuration *prometheus.HistogramVec

	// Cache hits for the recent-readings cache.
	CacheHitsTotal *prometheus.CounterVec

	// Cache failures, by operation and category (timeout, connection, unknown).
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency, by operation and outcome.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Cache warming runs / failures / latency.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker transitions, by component and target state.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker state (0 closed, 1 open, 2 half-open), by component.
	CircuitBreakerState *prometheus.GaugeVec

	// In-flight requests observed when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherApiRetriesTotal",
			Help: "Total number of retry attempts for weather API calls",
		},
	)
	ModelReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelReloadsTotal",
			Help: "Total number of artifact reloads by the hot-swap loader",
		},
	)
	ModelLoadErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelLoadErrorsTotal",
			Help: "Artifact load failures by reason (stat, deserialize)",
		},
		[]string{"reason"},
	)
	ModelLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelLoadDurationSeconds",
			Help:    "Artifact deserialization latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)
	ModelTrainedAtTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelTrainedAtTimestampSeconds",
			Help: "Unix time the currently served model was trained",
		},
	)
	ModelUnavailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelUnavailableTotal",
			Help: "Requests refused because no model has ever been loaded",
		},
	)
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionsTotal",
			Help: "Predictions served by status (success, no_data, model_unavailable, error)",
		},
		[]string{"status"},
	)
	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "predictionDurationSeconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	ReadingsPushedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readingsPushedTotal",
			Help: "Readings appended to the warehouse by status (success, fetch_error, store_error)",
		},
		[]string{"status"},
	)
	IngestCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestCycleDurationSeconds",
			Help:    "Latency of one fetch+append ingest cycle in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	TrainingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingRunsTotal",
			Help: "Training runs by status (success, skipped, error)",
		},
		[]string{"status"},
	)
	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trainingDurationSeconds",
			Help:    "Full training run latency in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)
	TrainingRowsLast = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trainingRowsLast",
			Help: "Rows used by the most recent successful fit",
		},
	)
	WarehouseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouseQueriesTotal",
			Help: "Warehouse operations by operation and status",
		},
		[]string{"operation", "status"},
	)
	WarehouseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouseQueryDurationSeconds",
			Help:    "Warehouse operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5},
		},
		[]string{"operation"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits for the recent-readings cache",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache failures by operation and category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"operation", "outcome"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs that failed",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions by component and target state",
		},
		[]string{"component", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests observed when graceful shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIRetriesTotal,
		ModelReloadsTotal, ModelLoadErrorsTotal, ModelLoadDuration,
		ModelTrainedAtTimestamp, ModelUnavailableTotal,
		PredictionsTotal, PredictionDuration,
		ReadingsPushedTotal, IngestCycleDuration,
		TrainingRunsTotal, TrainingDuration, TrainingRowsLast,
		WarehouseQueriesTotal, WarehouseQueryDuration,
		CacheHitsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
		ShutdownInFlightRequests,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited paths in the sliding window",
				},
				func() float64 { return float64(health.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(health.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition records a state transition for metrics.
func RecordCircuitBreakerTransition(component, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, to).Inc()
}

// SetCircuitBreakerStateGauge sets the numeric state gauge for a component.
func SetCircuitBreakerStateGauge(component string, state int) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(state))
}

// RecordShutdownInFlight records how many requests were in flight when shutdown began.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
