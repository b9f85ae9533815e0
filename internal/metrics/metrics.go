// Package metrics exposes Prometheus instrumentation for the recommendation
// pipeline. Collectors register with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationRequests counts pipeline runs by outcome:
	// "found", "empty", "cached", "no_keywords", "error".
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_recommendation_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giffly_recommendation_duration_seconds",
			Help:    "Recommendation pipeline latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RecommendationProducts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giffly_recommendation_products",
			Help:    "Number of products returned per recommendation",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// AnalysisCalls counts AI analysis attempts by result:
	// "success", "failure", "rejected", "malformed".
	AnalysisCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_analysis_calls_total",
			Help: "AI query analysis calls by result",
		},
		[]string{"result"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giffly_analysis_duration_seconds",
			Help:    "AI query analysis latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AnalysisRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_analysis_retries_total",
			Help: "AI analysis retries by error class",
		},
		[]string{"class"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "giffly_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	SkippedProducts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_skipped_products_total",
			Help: "Products skipped during scoring by reason",
		},
		[]string{"reason"},
	)

	GatewayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffly_gateway_messages_total",
			Help: "Inbound chat messages by platform",
		},
		[]string{"platform"},
	)
)

// RecordRecommendation records one pipeline run.
func RecordRecommendation(outcome string, products int, duration time.Duration) {
	RecommendationRequests.WithLabelValues(outcome).Inc()
	RecommendationDuration.Observe(duration.Seconds())
	RecommendationProducts.Observe(float64(products))
}

// RecordCacheHit increments the hit counter.
func RecordCacheHit() { CacheLookups.WithLabelValues("hit").Inc() }

// RecordCacheMiss increments the miss counter.
func RecordCacheMiss() { CacheLookups.WithLabelValues("miss").Inc() }

// RecordCacheError counts lookups that failed for reasons other than a miss.
func RecordCacheError() { CacheLookups.WithLabelValues("error").Inc() }

// RecordAnalysis records the result and latency of one Analyze call.
func RecordAnalysis(result string, duration time.Duration) {
	AnalysisCalls.WithLabelValues(result).Inc()
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordAnalysisRetry counts one retry of the analysis call.
func RecordAnalysisRetry(class string) {
	AnalysisRetries.WithLabelValues(class).Inc()
}

// RecordBreakerTransition updates the state gauge and transition counter.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordSkippedProduct counts a product dropped before scoring.
func RecordSkippedProduct(reason string) {
	SkippedProducts.WithLabelValues(reason).Inc()
}

// RecordGatewayMessage counts an inbound chat message.
func RecordGatewayMessage(platform string) {
	GatewayMessages.WithLabelValues(platform).Inc()
}
