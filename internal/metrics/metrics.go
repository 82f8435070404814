// Package metrics exposes Prometheus collectors for the import service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_jobs_total",
			Help: "Import jobs reaching a terminal state, labeled by status and code.",
		},
		[]string{"status", "code"},
	)

	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "importer_job_duration_seconds",
			Help:    "Wall time from job pickup to terminal state.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	jobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_job_retries_total",
			Help: "Retries scheduled for import jobs, labeled by the failure code.",
		},
		[]string{"code"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "importer_active_workers",
			Help: "Number of workers currently processing a job.",
		},
	)

	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_fetch_total",
			Help: "Fetch outcomes, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "importer_fetch_duration_seconds",
			Help:    "Network fetch latency, labeled by mode (plain or render).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_cache_events_total",
			Help: "Cache lookups, labeled by cache and result.",
		},
		[]string{"cache", "result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "importer_breaker_state",
			Help: "Circuit state per site (0 closed, 1 half-open, 2 open).",
		},
		[]string{"site"},
	)

	breakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_breaker_transitions_total",
			Help: "Circuit transitions, labeled by site and target state.",
		},
		[]string{"site", "to"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "importer_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"site"},
	)

	renderPoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "importer_render_sessions_in_use",
			Help: "Browser sessions currently leased.",
		},
	)

	renderRecyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "importer_render_session_recycles_total",
			Help: "Browser sessions discarded after a timeout, error, or cancellation.",
		},
	)

	extractionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_extraction_total",
			Help: "Extraction tier attempts, labeled by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	confidenceScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "importer_confidence_score",
			Help:    "Aggregated confidence of completed imports, labeled by tier.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"tier"},
	)

	nutritionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_nutrition_total",
			Help: "Nutrition computations, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_notifications_total",
			Help: "Terminal job notifications, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob records a terminal job outcome.
func ObserveJob(status, code string, duration time.Duration) {
	jobsTotal.WithLabelValues(status, code).Inc()
	if duration > 0 {
		jobDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// ObserveRetry counts a scheduled retry.
func ObserveRetry(code string) {
	jobRetriesTotal.WithLabelValues(code).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveFetch counts a fetch outcome for a site.
func ObserveFetch(site, outcome string) {
	fetchTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveFetchDuration records network latency for plain or rendered fetches.
func ObserveFetchDuration(mode string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveCache records a cache hit or miss.
func ObserveCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheEventsTotal.WithLabelValues(cache, result).Inc()
}

// ObserveBreakerTransition records a circuit state change.
func ObserveBreakerTransition(site, to string) {
	site = SanitizeSite(site)
	breakerTransitionsTotal.WithLabelValues(site, to).Inc()
	var v float64
	switch to {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	breakerState.WithLabelValues(site).Set(v)
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// IncRenderSessions increments the leased browser sessions gauge.
func IncRenderSessions() {
	renderPoolInUse.Inc()
}

// DecRenderSessions decrements the leased browser sessions gauge.
func DecRenderSessions() {
	renderPoolInUse.Dec()
}

// ObserveRenderRecycle counts a discarded browser session.
func ObserveRenderRecycle() {
	renderRecyclesTotal.Inc()
}

// ObserveExtraction counts one tier attempt.
func ObserveExtraction(tier, outcome string) {
	extractionTotal.WithLabelValues(tier, outcome).Inc()
}

// ObserveConfidence records the aggregated score of an import.
func ObserveConfidence(tier string, score float64) {
	confidenceScore.WithLabelValues(tier).Observe(score)
}

// ObserveNutrition counts a nutrition computation outcome.
func ObserveNutrition(outcome string) {
	nutritionTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a notification delivery outcome.
func ObserveNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
