package utils

import (
	"math"
	"math/rand"
	"time"
)

// ComputeBackoff returns the delay before retrying after the given zero-indexed attempt.
// delay = min(baseDelay * multiplier^attempt, maxDelay)
// maxDelay <= 0 means no cap, the delay then saturates at the largest time.Duration.
func ComputeBackoff(attempt int, baseDelay time.Duration, multiplier float64, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	if baseDelay <= 0 {
		return 0
	}

	delay := float64(baseDelay) * math.Pow(multiplier, float64(attempt))
	if maxDelay > 0 && (delay > float64(maxDelay) || math.IsInf(delay, 1) || math.IsNaN(delay)) {
		return maxDelay
	}

	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits
	if math.IsInf(delay, 1) || math.IsNaN(delay) || delay >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}

// BackoffPolicy computes retry delays with an optional jitter
type BackoffPolicy struct {
	Multiplier  float64
	MaxDelay    time.Duration
	JitterRatio float64 // 0 disables jitter
}

// Delay returns the delay for the attempt.
// With jitter, the delay is spread within [delay*(1-JitterRatio), delay] and never exceeds MaxDelay.
func (policy BackoffPolicy) Delay(attempt int, baseDelay time.Duration) time.Duration {
	delay := ComputeBackoff(attempt, baseDelay, policy.Multiplier, policy.MaxDelay)
	if policy.JitterRatio <= 0 || delay <= 0 {
		return delay
	}

	ratio := math.Min(policy.JitterRatio, 1)
	spread := float64(delay) * ratio
	return delay - time.Duration(rand.Float64()*spread)
}
