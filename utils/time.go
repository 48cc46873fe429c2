package utils

import "time"

// DurationToMillis returns the duration in fractional milliseconds
func DurationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
