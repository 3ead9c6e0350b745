// Package metrics exposes Prometheus collectors for the cache service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeCyclesTotal        prometheus.Counter
	scrapeCycleSeconds       prometheus.Histogram
	sourceFetchesTotal       *prometheus.CounterVec
	sourceFetchSeconds       *prometheus.HistogramVec
	probeDurationSeconds     *prometheus.HistogramVec
	cacheEvents              prometheus.Gauge
	cacheRawEvents           prometheus.Gauge
	alertDeliveriesTotal     *prometheus.CounterVec
	enrichPersistFailedTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeCyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eventcache_scrape_cycles_total",
				Help: "Total number of completed refresh cycles.",
			},
		)

		scrapeCycleSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventcache_scrape_cycle_seconds",
				Help:    "Histogram of whole refresh cycle durations.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		)

		sourceFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventcache_source_fetches_total",
				Help: "Total source fetch attempts, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		sourceFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventcache_source_fetch_seconds",
				Help:    "Histogram of per-source fetch durations.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		)

		probeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventcache_probe_seconds",
				Help:    "Histogram of reachability probe durations.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		)

		cacheEvents = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventcache_cache_events",
				Help: "Number of deduplicated events in the published cache.",
			},
		)

		cacheRawEvents = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventcache_cache_raw_events",
				Help: "Number of raw events fetched in the last cycle before dedup.",
			},
		)

		alertDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventcache_alert_deliveries_total",
				Help: "Total alert delivery attempts, labeled by result.",
			},
			[]string{"result"},
		)

		enrichPersistFailedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eventcache_enrich_persist_failures_total",
				Help: "Total failures writing the enrichment side-file.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one completed refresh cycle.
func ObserveCycle(duration time.Duration, rawEvents, dedupedEvents int) {
	scrapeCyclesTotal.Inc()
	scrapeCycleSeconds.Observe(duration.Seconds())
	cacheEvents.Set(float64(dedupedEvents))
	cacheRawEvents.Set(float64(rawEvents))
}

// ObserveSourceFetch records one source fetch attempt.
func ObserveSourceFetch(source, outcome string, duration time.Duration) {
	sourceFetchesTotal.WithLabelValues(source, outcome).Inc()
	sourceFetchSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveProbe records one reachability probe.
func ObserveProbe(source string, duration time.Duration) {
	probeDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveAlertDelivery records one alert delivery attempt.
func ObserveAlertDelivery(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	alertDeliveriesTotal.WithLabelValues(result).Inc()
}

// ObserveEnrichPersistFailure records a failed side-file write.
func ObserveEnrichPersistFailure() {
	enrichPersistFailedTotal.Inc()
}
