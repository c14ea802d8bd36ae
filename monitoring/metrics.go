package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

const latencyWindow = 1000

// MetricsCollector counts served predictions and their latency.
type MetricsCollector struct {
	mu        sync.RWMutex
	byLabel   map[string]int64
	failures  map[string]int64
	latencies []time.Duration
	startTime time.Time
}

// MetricsSnapshot is the JSON view of the collector.
type MetricsSnapshot struct {
	Predictions   int64            `json:"predictions"`
	ByLabel       map[string]int64 `json:"by_label"`
	Failures      map[string]int64 `json:"failures"`
	LatencyP50    time.Duration    `json:"latency_p50_ns"`
	LatencyP99    time.Duration    `json:"latency_p99_ns"`
	LatencyMax    time.Duration    `json:"latency_max_ns"`
	Goroutines    int              `json:"goroutines"`
	HeapAlloc     uint64           `json:"heap_alloc_bytes"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		byLabel:   make(map[string]int64),
		failures:  make(map[string]int64),
		startTime: time.Now(),
	}
}

// Seed adds counts carried over from the prediction history.
func (mc *MetricsCollector) Seed(counts map[string]int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for label, n := range counts {
		mc.byLabel[label] += n
	}
}

func (mc *MetricsCollector) RecordPrediction(label string, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.byLabel[label]++
	mc.latencies = append(mc.latencies, latency)
	// keep the most recent window only
	if len(mc.latencies) > latencyWindow {
		mc.latencies = mc.latencies[len(mc.latencies)-latencyWindow:]
	}
}

func (mc *MetricsCollector) RecordFailure(reason string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.failures[reason]++
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	snapshot := MetricsSnapshot{
		ByLabel:       make(map[string]int64, len(mc.byLabel)),
		Failures:      make(map[string]int64, len(mc.failures)),
		UptimeSeconds: time.Since(mc.startTime).Seconds(),
	}
	for label, n := range mc.byLabel {
		snapshot.ByLabel[label] = n
		snapshot.Predictions += n
	}
	for reason, n := range mc.failures {
		snapshot.Failures[reason] = n
	}
	latencies := append([]time.Duration(nil), mc.latencies...)
	mc.mu.RUnlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		snapshot.LatencyP50 = percentile(latencies, 0.50)
		snapshot.LatencyP99 = percentile(latencies, 0.99)
		snapshot.LatencyMax = latencies[len(latencies)-1]
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snapshot.HeapAlloc = m.HeapAlloc
	snapshot.Goroutines = runtime.NumGoroutine()
	return snapshot
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
