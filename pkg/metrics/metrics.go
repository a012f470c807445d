// Package metrics provides Prometheus instrumentation for converter
// resolution and batch production.
//
// # Basic Usage
//
//	metrics.RowsEncoded.WithLabelValues("train", "classification").Inc()
//
//	timer := metrics.NewTimer("next")
//	batch, err := it.Next(ctx)
//	metrics.BatchLatency.WithLabelValues("train").Observe(timer.Stop().Seconds())
//
// All collectors are registered with the default Prometheus registry on
// package initialization.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dl4j"

var (
	// RowsEncoded counts rows successfully turned into examples.
	// Labels: mode (train/test), policy (classification/regression/reconstruction)
	RowsEncoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_encoded_total",
			Help:      "Total number of rows encoded into examples",
		},
		[]string{"mode", "policy"},
	)

	// RowsSkipped counts rows dropped from a batch because encoding failed.
	// Labels: mode, reason (error type)
	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Total number of rows skipped after an encoding failure",
		},
		[]string{"mode", "reason"},
	)

	// BatchesProduced counts batches returned by iterators.
	BatchesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_produced_total",
			Help:      "Total number of batches produced",
		},
		[]string{"mode"},
	)

	// IteratorResets counts iterator resets.
	IteratorResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterator_resets_total",
			Help:      "Total number of iterator resets",
		},
	)

	// BatchLatency tracks the time spent assembling one batch.
	BatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_latency_seconds",
			Help:      "Time to assemble one batch",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"mode"},
	)

	// ConverterCacheLookups counts cache lookups by result (hit/miss).
	ConverterCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converter_cache_lookups_total",
			Help:      "Converter cache lookups by result",
		},
		[]string{"result"},
	)

	// ConverterResolutions counts registry scans by outcome (found/unsupported).
	ConverterResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converter_resolutions_total",
			Help:      "Registry resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// ConvertersRegistered tracks the number of converters in registries.
	ConvertersRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "converters_registered",
			Help:      "Number of converters registered",
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks examples per second over a window. Safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
}

// NewThroughputTracker creates a tracker whose window starts now.
func NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now()}
}

// Increment adds n to the example count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// Count returns the examples counted in the current window.
func (t *ThroughputTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// GetAndReset returns examples per second since the last reset and starts
// a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()
	return throughput
}
