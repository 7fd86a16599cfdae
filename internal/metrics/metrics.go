// Package metrics exposes Prometheus collectors for the price tracker.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerResultsTotal       *prometheus.CounterVec
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	renderFallbacksTotal       *prometheus.CounterVec
	offersAcceptedTotal        *prometheus.CounterVec
	offersRejectedTotal        *prometheus.CounterVec
	alertsTotal                *prometheus.CounterVec
	cyclesTotal                *prometheus.CounterVec
	cycleDurationSeconds       prometheus.Histogram
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		providerResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_provider_results_total",
				Help: "Provider searches, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_fetch_attempts_total",
				Help: "Plain HTTP fetch attempts, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		renderFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_render_fallbacks_total",
				Help: "Browser render fallbacks, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		offersAcceptedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_offers_accepted_total",
				Help: "Offers accepted by the aggregator, labeled by provider.",
			},
			[]string{"provider"},
		)

		offersRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_offers_rejected_total",
				Help: "Candidates rejected by normalization or aggregation, labeled by reason.",
			},
			[]string{"reason"},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_alerts_total",
				Help: "Price alerts triggered, labeled by delivery status.",
			},
			[]string{"status"},
		)

		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricetracker_cycles_total",
				Help: "Tracking cycles run, labeled by status.",
			},
			[]string{"status"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricetracker_cycle_duration_seconds",
				Help:    "Histogram of tracking cycle durations.",
				Buckets: []float64{1, 5, 10, 20, 40, 60, 120, 300},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricetracker_active_workers",
				Help: "Number of workers currently scanning a product.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricetracker_rate_limit_delays_seconds",
				Help:    "Histogram of per-host politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
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
	})
}

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

// ObserveProviderResult counts one provider search outcome.
func ObserveProviderResult(provider, outcome string) {
	Init()
	providerResultsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveFetch counts a fetch attempt and the bytes it returned.
func ObserveFetch(rawURL, result string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, result).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRender counts a render fallback.
func ObserveRender(rawURL, result string) {
	Init()
	renderFallbacksTotal.WithLabelValues(SanitizeSite(rawURL), result).Inc()
}

// ObserveAccepted counts an accepted offer.
func ObserveAccepted(provider string) {
	Init()
	offersAcceptedTotal.WithLabelValues(provider).Inc()
}

// ObserveRejected counts a rejected candidate.
func ObserveRejected(reason string) {
	Init()
	offersRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveAlert counts an alert delivery attempt.
func ObserveAlert(status string) {
	Init()
	alertsTotal.WithLabelValues(status).Inc()
}

// ObserveCycle records a finished tracking cycle.
func ObserveCycle(status string, duration time.Duration) {
	Init()
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
