// Package metrics exposes tagfs counters. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentic-research/tagfs/internal/items"
)

const namespace = "tagfs"

// Metrics groups the collectors of one mount.
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	// Resolutions counts tree walks by outcome (found, absent).
	Resolutions  *prometheus.CounterVec
	Scans        prometheus.Counter
	ScanErrors   prometheus.Counter
	ScanDuration prometheus.Histogram
	Items        *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_cache_hits_total",
			Help:      "Path resolutions served from the path cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_cache_misses_total",
			Help:      "Path resolutions that walked the tree",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_cache_evictions_total",
			Help:      "Entries dropped from the path cache",
		}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Tree walks by outcome",
		}, []string{"outcome"}),
		Scans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans of the items directory",
		}),
		ScanErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Scans that failed to list the items directory",
		}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of items directory scans",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
		}),
		Items: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Items in the current snapshot",
		}, []string{"state"}),
	}
}

// ObserveScan implements items.ScanObserver.
func (m *Metrics) ObserveScan(d time.Duration, a *items.Access, err error) {
	if m == nil {
		return
	}
	m.Scans.Inc()
	m.ScanDuration.Observe(d.Seconds())
	if err != nil {
		m.ScanErrors.Inc()
		return
	}
	m.Items.WithLabelValues("tagged").Set(float64(a.TaggedItems().GetCardinality()))
	m.Items.WithLabelValues("untagged").Set(float64(a.UntaggedItems().GetCardinality()))
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) CacheEvicted() {
	if m != nil {
		m.CacheEvictions.Inc()
	}
}

// Resolved records the outcome of one tree walk.
func (m *Metrics) Resolved(found bool) {
	if m == nil {
		return
	}
	outcome := "absent"
	if found {
		outcome = "found"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

var _ items.ScanObserver = (*Metrics)(nil)
