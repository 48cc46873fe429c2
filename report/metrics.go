package report

import "github.com/cyverse/lazyload-common/types"

// PriorityStats is load statistics of a priority
type PriorityStats struct {
	Count         int64   `json:"count"`
	AverageTimeMs float64 `json:"average_time_ms"`
}

// Metrics is a snapshot of aggregated load statistics
type Metrics struct {
	TotalLoads        int64                            `json:"total_loads"`
	SuccessfulLoads   int64                            `json:"successful_loads"`
	FailedLoads       int64                            `json:"failed_loads"`
	CacheHits         int64                            `json:"cache_hits"`
	AverageLoadTimeMs float64                          `json:"average_load_time_ms"`
	CacheHitRate      float64                          `json:"cache_hit_rate"`
	PriorityStats     map[types.Priority]PriorityStats `json:"priority_stats"`
}

func newEmptyMetrics() Metrics {
	return Metrics{
		PriorityStats: map[types.Priority]PriorityStats{},
	}
}

func (metrics Metrics) copy() Metrics {
	metricsCopy := metrics
	metricsCopy.PriorityStats = make(map[types.Priority]PriorityStats, len(metrics.PriorityStats))
	for priority, stats := range metrics.PriorityStats {
		metricsCopy.PriorityStats[priority] = stats
	}
	return metricsCopy
}
