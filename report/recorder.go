package report

import (
	"sync"
	"time"

	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
)

// InMemoryRecorder implements MetricsRecorder
type InMemoryRecorder struct {
	metrics  Metrics
	exporter MetricsExporter
	mutex    sync.Mutex
}

// NewInMemoryRecorder creates a new InMemoryRecorder, exporter can be nil
func NewInMemoryRecorder(exporter MetricsExporter) *InMemoryRecorder {
	if exporter == nil {
		exporter = NewNilExporter()
	}

	return &InMemoryRecorder{
		metrics:  newEmptyMetrics(),
		exporter: exporter,
		mutex:    sync.Mutex{},
	}
}

// RecordHit records a request served from cache
func (recorder *InMemoryRecorder) RecordHit() {
	recorder.mutex.Lock()
	recorder.metrics.TotalLoads++
	recorder.metrics.CacheHits++
	recorder.updateHitRate()
	recorder.mutex.Unlock()

	recorder.exporter.ExportHit()
}

// RecordLoad records a successful load that missed cache
func (recorder *InMemoryRecorder) RecordLoad(duration time.Duration, priority types.Priority) {
	priority = priority.OrDefault()
	durationMs := utils.DurationToMillis(duration)

	recorder.mutex.Lock()
	recorder.metrics.TotalLoads++
	recorder.metrics.SuccessfulLoads++
	recorder.metrics.AverageLoadTimeMs = runningAverage(recorder.metrics.AverageLoadTimeMs, durationMs, recorder.metrics.SuccessfulLoads)

	stats := recorder.metrics.PriorityStats[priority]
	stats.Count++
	stats.AverageTimeMs = runningAverage(stats.AverageTimeMs, durationMs, stats.Count)
	recorder.metrics.PriorityStats[priority] = stats

	recorder.updateHitRate()
	recorder.mutex.Unlock()

	recorder.exporter.ExportLoad(duration, priority)
}

// RecordFailure records a load that failed after all retries
func (recorder *InMemoryRecorder) RecordFailure() {
	recorder.mutex.Lock()
	recorder.metrics.TotalLoads++
	recorder.metrics.FailedLoads++
	recorder.updateHitRate()
	recorder.mutex.Unlock()

	recorder.exporter.ExportFailure()
}

// Snapshot returns a copy of current metrics
func (recorder *InMemoryRecorder) Snapshot() Metrics {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	return recorder.metrics.copy()
}

// Reset clears all metrics, exported counters are not affected
func (recorder *InMemoryRecorder) Reset() {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	recorder.metrics = newEmptyMetrics()
}

// must be called with lock held
func (recorder *InMemoryRecorder) updateHitRate() {
	if recorder.metrics.TotalLoads == 0 {
		recorder.metrics.CacheHitRate = 0
		return
	}
	recorder.metrics.CacheHitRate = float64(recorder.metrics.CacheHits) / float64(recorder.metrics.TotalLoads)
}

func runningAverage(average float64, value float64, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return average + (value-average)/float64(count)
}
