package report

import (
	"time"

	"github.com/cyverse/lazyload-common/types"
)

// MetricsRecorder aggregates load statistics of a loader
type MetricsRecorder interface {
	RecordHit()
	RecordLoad(duration time.Duration, priority types.Priority)
	RecordFailure()

	Snapshot() Metrics
	Reset()
}

// MetricsExporter receives every recorded event, e.g., to publish them to a monitoring system
type MetricsExporter interface {
	Release()

	ExportHit()
	ExportLoad(duration time.Duration, priority types.Priority)
	ExportFailure()
}
