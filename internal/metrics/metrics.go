// Package metrics holds Prometheus instruments used by the resolver and
// the reconciler.  All collectors are registered with the global registry,
// so mounting promhttp.Handler() is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dnscache_entries",
			Help: "Number of domains currently resident in the LRU cache.",
		})

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_hits_total",
			Help: "Cumulative number of lookups answered from the cache.",
		})

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_misses_total",
			Help: "Cumulative number of lookups that fell through to the record store.",
		})

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_evictions_total",
			Help: "Cumulative number of least-recently-used evictions.",
		})

	StoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_store_errors_total",
			Help: "Cumulative number of record store reads or writes that failed.",
		})

	ReconcileRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_reconcile_runs_total",
			Help: "Cumulative number of reconciliation passes applied to the cache.",
		})

	ReconcileRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_reconcile_removed_total",
			Help: "Cumulative number of entries dropped because they vanished upstream.",
		})

	ReconcileRefreshedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnscache_reconcile_refreshed_total",
			Help: "Cumulative number of entries refreshed with a changed upstream IP.",
		})

	UpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnscache_upserts_total",
			Help: "Cumulative number of record upserts by outcome.",
		}, []string{"change"})
)

func init() {
	prometheus.MustRegister(
		CacheEntries,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		StoreErrorsTotal,
		ReconcileRunsTotal,
		ReconcileRemovedTotal,
		ReconcileRefreshedTotal,
		UpsertsTotal,
	)
}
