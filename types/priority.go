package types

import (
	"strings"

	"golang.org/x/xerrors"
)

// Priority is a scheduling priority of a resource load
type Priority string

const (
	// PriorityHigh is loaded first
	PriorityHigh Priority = "high"
	// PriorityMedium is the default priority
	PriorityMedium Priority = "medium"
	// PriorityLow is loaded last
	PriorityLow Priority = "low"
)

// AllPriorities returns all priorities in scheduling order
func AllPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// ParsePriority returns Priority from text, empty text returns PriorityMedium
func ParsePriority(p string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case string(PriorityHigh):
		return PriorityHigh, nil
	case string(PriorityMedium), "":
		return PriorityMedium, nil
	case string(PriorityLow):
		return PriorityLow, nil
	default:
		return PriorityMedium, xerrors.Errorf("unknown priority %q", p)
	}
}

// IsValid checks if the priority is one of known priorities
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// OrDefault returns PriorityMedium for unknown or empty priority
func (p Priority) OrDefault() Priority {
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}

// Rank returns sort rank, lower is scheduled earlier
func (p Priority) Rank() int {
	switch p.OrDefault() {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// String returns text representation
func (p Priority) String() string {
	return string(p)
}
