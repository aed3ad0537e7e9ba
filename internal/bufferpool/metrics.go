package bufferpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type poolMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	deadlocks prometheus.Counter
	flushes   prometheus.Counter
	cached    prometheus.Gauge
}

// newPoolMetrics builds the pool's counters. reg may be nil, in which case
// the metrics are live but never exported.
func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	f := promauto.With(reg)
	return &poolMetrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Name: "pagedb_bufferpool_hits_total",
			Help: "Page requests served from the cache.",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name: "pagedb_bufferpool_misses_total",
			Help: "Page requests that went to disk.",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "pagedb_bufferpool_evictions_total",
			Help: "Clean pages evicted to make room.",
		}),
		deadlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "pagedb_bufferpool_deadlock_aborts_total",
			Help: "Transactions aborted by the deadlock detector.",
		}),
		flushes: f.NewCounter(prometheus.CounterOpts{
			Name: "pagedb_bufferpool_page_flushes_total",
			Help: "Dirty pages written back to their heap files.",
		}),
		cached: f.NewGauge(prometheus.GaugeOpts{
			Name: "pagedb_bufferpool_cached_pages",
			Help: "Pages currently held in the cache.",
		}),
	}
}
