// Package metrics provides Prometheus metrics for the upload coordinator,
// the response cache and the optimistic mutation engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Upload coordinator metrics
	uploadsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "superlinks_uploads_queued",
			Help: "Number of upload tasks waiting for a concurrency slot",
		},
	)

	uploadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "superlinks_uploads_active",
			Help: "Number of upload tasks holding a concurrency slot",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superlinks_uploads_total",
			Help: "Total number of upload tasks by terminal status",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "superlinks_upload_bytes_total",
			Help: "Total bytes of successfully uploaded files",
		},
	)

	uploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "superlinks_upload_duration_seconds",
			Help:    "Time from activation to terminal status for upload tasks",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	validationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superlinks_upload_validation_rejections_total",
			Help: "Uploads rejected by pre-flight validation",
		},
		[]string{"field"},
	)

	// Response cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superlinks_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, expired)",
		},
		[]string{"result"},
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superlinks_cache_evictions_total",
			Help: "Response cache entries removed by reason",
		},
		[]string{"reason"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "superlinks_cache_entries",
			Help: "Number of entries physically held by the response cache",
		},
	)

	// Optimistic mutation metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superlinks_mutations_total",
			Help: "Optimistic mutations by outcome (committed, rolled_back, stale)",
		},
		[]string{"outcome"},
	)

	debouncedEdits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superlinks_debounced_edits_total",
			Help: "Local edits seen by debounced fields and the commits they produced",
		},
		[]string{"kind"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetUploadQueue records the current queued and active task counts.
func SetUploadQueue(queued, active int) {
	uploadsQueued.Set(float64(queued))
	uploadsActive.Set(float64(active))
}

// RecordUploadFinished records one terminal upload transition.
func RecordUploadFinished(status string, bytes int64, seconds float64) {
	uploadsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		uploadBytesTotal.Add(float64(bytes))
	}
	if seconds > 0 {
		uploadDuration.Observe(seconds)
	}
}

// RecordValidationRejection records a pre-flight validation failure.
func RecordValidationRejection(field string) {
	validationRejections.WithLabelValues(field).Inc()
}

// RecordCacheLookup records a cache read result: "hit", "miss" or "expired".
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheEviction records n removed entries for a reason such as
// "expired", "delete", "pattern" or "clear".
func RecordCacheEviction(reason string, n int) {
	if n > 0 {
		cacheEvictions.WithLabelValues(reason).Add(float64(n))
	}
}

// SetCacheEntries records the physical size of the cache.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordMutation records the outcome of an optimistic mutation.
func RecordMutation(outcome string) {
	mutationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDebouncedEdit records a local edit ("edit") or a fired commit ("commit").
func RecordDebouncedEdit(kind string) {
	debouncedEdits.WithLabelValues(kind).Inc()
}
