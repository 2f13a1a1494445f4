// Package metrics exposes Prometheus counters/gauges for operation
// lifecycle and current library size, scraped by internal/statusapi.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	operationStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "operations_started_total",
		Help:      "Total number of operations started by type",
	}, []string{"type"})
	operationCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "operations_completed_total",
		Help:      "Total number of operations successfully completed by type",
	}, []string{"type"})
	operationFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "operations_failed_total",
		Help:      "Total number of operations failed by type",
	}, []string{"type"})
	operationCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "operations_canceled_total",
		Help:      "Total number of operations canceled by type",
	}, []string{"type"})
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ipodsync",
		Name:      "operation_duration_seconds",
		Help:      "Histogram of operation durations in seconds by type",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10), // ~50ms up to several seconds/minutes
	}, []string{"type"})

	tracksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "device_tracks_total",
		Help:      "Current total number of tracks on the device, as of the last sync",
	})
	playlistsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "device_playlists_total",
		Help:      "Current total number of playlists on the device, as of the last sync",
	})
	memoryAllocGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "process_memory_alloc_bytes",
		Help:      "Current process memory allocation (runtime.Alloc)",
	})
	goroutinesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "process_goroutines",
		Help:      "Number of currently running goroutines",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operationStarted, operationCompleted, operationFailed, operationCanceled, operationDuration,
			tracksGauge, playlistsGauge, memoryAllocGauge, goroutinesGauge)
	})
}

// Operation lifecycle helpers
func IncOperationStarted(opType string)   { operationStarted.WithLabelValues(opType).Inc() }
func IncOperationCompleted(opType string) { operationCompleted.WithLabelValues(opType).Inc() }
func IncOperationFailed(opType string)    { operationFailed.WithLabelValues(opType).Inc() }
func IncOperationCanceled(opType string)  { operationCanceled.WithLabelValues(opType).Inc() }
func ObserveOperationDuration(opType string, d time.Duration) {
	operationDuration.WithLabelValues(opType).Observe(d.Seconds())
}

// Gauges
func SetTracks(n int)         { tracksGauge.Set(float64(n)) }
func SetPlaylists(n int)      { playlistsGauge.Set(float64(n)) }
func SetMemoryAlloc(b uint64) { memoryAllocGauge.Set(float64(b)) }
func SetGoroutines(n int)     { goroutinesGauge.Set(float64(n)) }
