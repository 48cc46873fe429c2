package report

import (
	"time"

	"github.com/cyverse/lazyload-common/types"
)

// NilExporter implements MetricsExporter, drops everything
type NilExporter struct{}

// NewNilExporter creates a new NilExporter
func NewNilExporter() MetricsExporter {
	return &NilExporter{}
}

// Release releases resources
func (exporter *NilExporter) Release() {}

// ExportHit does nothing
func (exporter *NilExporter) ExportHit() {}

// ExportLoad does nothing
func (exporter *NilExporter) ExportLoad(duration time.Duration, priority types.Priority) {}

// ExportFailure does nothing
func (exporter *NilExporter) ExportFailure() {}
