// Package metrics provides Prometheus metrics for slabkv
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus instrument the engine exposes.
type Metrics struct {
	// WAL metrics
	WalAppendsTotal   prometheus.Counter
	WalAppendBytes    prometheus.Counter
	WalRotationsTotal prometheus.Counter
	WalFsyncDuration  prometheus.Histogram

	// Write-buffer / flusher metrics
	WriteBufferDepth    prometheus.Gauge
	FlushingBuffersDepth prometheus.Gauge
	FlushCycleDuration  prometheus.Histogram
	FlushOpsTotal       *prometheus.CounterVec

	// Hash-bucket metrics
	BucketExpansionsTotal prometheus.Counter
	BucketPutRetriesTotal prometheus.Counter

	// Page-allocator / LPVS metrics
	PageAllocationsTotal *prometheus.CounterVec
	PageFreesTotal       *prometheus.CounterVec
	LevelCacheHitsTotal  prometheus.Counter
	LevelCacheMissTotal  prometheus.Counter

	// Operation latency, keyed by public API call
	OperationDuration *prometheus.HistogramVec

	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers every instrument.
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.WalAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_wal_appends_total",
		Help: "Total number of WAL records appended",
	})
	m.WalAppendBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_wal_append_bytes_total",
		Help: "Total bytes appended to WAL files",
	})
	m.WalRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_wal_rotations_total",
		Help: "Total number of WAL rotations",
	})
	m.WalFsyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slabkv_wal_fsync_duration_seconds",
		Help:    "Duration of WAL fsync calls",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
	})

	m.WriteBufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slabkv_write_buffer_depth",
		Help: "Number of keys in the active write buffer",
	})
	m.FlushingBuffersDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slabkv_flushing_buffers_depth",
		Help: "Number of sealed buffers awaiting flush",
	})
	m.FlushCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slabkv_flush_cycle_duration_seconds",
		Help:    "Duration of one sealed-buffer drain by the background flusher",
		Buckets: prometheus.DefBuckets,
	})
	m.FlushOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabkv_flush_ops_total",
			Help: "Total number of ops applied by the background flusher",
		},
		[]string{"op"},
	)

	m.BucketExpansionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_bucket_expansions_total",
		Help: "Total number of hash-bucket expand() calls",
	})
	m.BucketPutRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_bucket_put_retries_total",
		Help: "Total number of SB.Put retries after MaxSearchReached",
	})

	m.PageAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabkv_page_allocations_total",
			Help: "Total number of pages allocated, by level index",
		},
		[]string{"level"},
	)
	m.PageFreesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabkv_page_frees_total",
			Help: "Total number of pages freed, by level index",
		},
		[]string{"level"},
	)
	m.LevelCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_level_cache_hits_total",
		Help: "Total number of LPVS small-page read-cache hits",
	})
	m.LevelCacheMissTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slabkv_level_cache_misses_total",
		Help: "Total number of LPVS small-page read-cache misses",
	})

	m.OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slabkv_operation_duration_seconds",
			Help:    "Duration of public KV operations",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slabkv_uptime_seconds",
		Help: "Process uptime in seconds",
	})

	go m.updateUptime()

	return m
}

// updateUptime periodically updates the uptime gauge.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordOperation records the latency of a public KV operation.
func (m *Metrics) RecordOperation(op string, duration time.Duration) {
	m.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFlushOp records one op (put/del) applied by the flusher.
func (m *Metrics) RecordFlushOp(op string) {
	m.FlushOpsTotal.WithLabelValues(op).Inc()
}
