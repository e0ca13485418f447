package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the certificate module. All
// methods are nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheFallbacks prometheus.Counter

	documentsCreated   prometheus.Counter
	documentsCompleted prometheus.Counter
	documentsCloned    prometheus.Counter
	documentsDeleted   prometheus.Counter
	patchesDropped     prometheus.Counter
}

// New creates and registers the module's metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catchcert_cache_hits_total",
			Help: "Draft cache hits by view",
		}, []string{"view"}),
		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catchcert_cache_misses_total",
			Help: "Draft cache misses by view",
		}, []string{"view"}),
		cacheFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catchcert_cache_fallbacks_total",
			Help: "Reads that fell back to the store because the cache errored",
		}),
		documentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catchcert_documents_created_total",
			Help: "Draft documents created",
		}),
		documentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catchcert_documents_completed_total",
			Help: "Documents moved to COMPLETE",
		}),
		documentsCloned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catchcert_documents_cloned_total",
			Help: "Documents cloned to a new number",
		}),
		documentsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catchcert_documents_deleted_total",
			Help: "Draft documents deleted",
		}),
		patchesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catchcert_patches_dropped_total",
			Help: "Patches that matched zero documents and were dropped",
		}),
	}
}

func (m *Metrics) RecordCacheHit(view string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(view).Inc()
}

func (m *Metrics) RecordCacheMiss(view string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(view).Inc()
}

func (m *Metrics) RecordCacheFallback() {
	if m == nil {
		return
	}
	m.cacheFallbacks.Inc()
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.documentsCreated.Inc()
}

func (m *Metrics) IncrementCompleted() {
	if m == nil {
		return
	}
	m.documentsCompleted.Inc()
}

func (m *Metrics) IncrementCloned() {
	if m == nil {
		return
	}
	m.documentsCloned.Inc()
}

func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.documentsDeleted.Inc()
}

func (m *Metrics) IncrementPatchDropped() {
	if m == nil {
		return
	}
	m.patchesDropped.Inc()
}
