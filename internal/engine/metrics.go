package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "docindex"

// Batch results reported by Metrics.
const (
	batchCommitted = "committed"
	batchRejected  = "rejected"
	batchFailed    = "failed"
)

// Metrics holds the engine's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	batches       *prometheus.CounterVec
	versions      *prometheus.CounterVec
	skipped       prometheus.Counter
	forkRepairs   prometheus.Counter
	linksMarked   prometheus.Counter
	batchDuration prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
// It returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		batches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batches_total",
			Help:      "Number of batches by result (committed, rejected, failed)",
		}, []string{"result"}),
		versions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "versions_total",
			Help:      "Number of ingested versions by outcome",
		}, []string{"outcome"}),
		skipped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "versions_skipped_total",
			Help:      "Number of invalid versions dropped under the skip policy",
		}),
		forkRepairs: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fork_repairs_total",
			Help:      "Number of fork entries removed because a later version linked them",
		}),
		linksMarked: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "links_marked_total",
			Help:      "Number of backlink insertions issued",
		}),
		batchDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one batch, including the commit",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeBatch(result string, start time.Time) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
	m.batchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeOutcomes(outcomes []Outcome, skipped, linksMarked int) {
	if m == nil {
		return
	}
	for _, o := range outcomes {
		m.versions.WithLabelValues(o.Kind.String()).Inc()
		m.forkRepairs.Add(float64(len(o.Repaired)))
	}
	m.skipped.Add(float64(skipped))
	m.linksMarked.Add(float64(linksMarked))
}
