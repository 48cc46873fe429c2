package loader

import (
	"context"
	"time"

	"github.com/cyverse/lazyload-common/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

type attemptResult struct {
	value interface{}
	err   error
}

// RetryExecutor runs a load function with per-attempt timeout and backoff-delayed retries
type RetryExecutor struct {
	backoff utils.BackoffPolicy
}

// NewRetryExecutor creates a new RetryExecutor
func NewRetryExecutor(backoff utils.BackoffPolicy) *RetryExecutor {
	return &RetryExecutor{
		backoff: backoff,
	}
}

// GetBackoffPolicy returns backoff policy
func (executor *RetryExecutor) GetBackoffPolicy() utils.BackoffPolicy {
	return executor.backoff
}

// Execute runs loadFn up to config.RetryAttempts times.
// It returns the value and the number of attempts made.
func (executor *RetryExecutor) Execute(ctx context.Context, key string, loadFn func(ctx context.Context) (interface{}, error), config LoadConfig) (interface{}, int, error) {
	logger := log.WithFields(log.Fields{
		"package":  "loader",
		"struct":   "RetryExecutor",
		"function": "Execute",
	})

	defer utils.StackTraceFromPanic(logger)

	attempts := config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		value, err := executor.attempt(ctx, key, attempt, loadFn, config.Timeout)
		if err == nil {
			return value, attempt + 1, nil
		}

		if ctx.Err() != nil {
			return nil, attempt + 1, xerrors.Errorf("load of %s canceled: %w", key, ctx.Err())
		}

		lastErr = err

		if attempt >= attempts-1 {
			break
		}

		delay := executor.backoff.Delay(attempt, config.RetryBaseDelay)
		logger.Debugf("load attempt %d of %s failed, retrying in %s - %v", attempt+1, key, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt + 1, xerrors.Errorf("load of %s canceled: %w", key, ctx.Err())
		}
	}

	return nil, attempts, NewLoadExhaustedError(key, attempts, lastErr)
}

// attempt races loadFn against the timeout, a timed out loadFn keeps running in background
func (executor *RetryExecutor) attempt(ctx context.Context, key string, attempt int, loadFn func(ctx context.Context) (interface{}, error), timeout time.Duration) (interface{}, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultChan := make(chan attemptResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- attemptResult{
					err: xerrors.Errorf("load function of %s panicked: %v", key, r),
				}
			}
		}()

		value, err := loadFn(attemptCtx)
		resultChan <- attemptResult{
			value: value,
			err:   err,
		}
	}()

	select {
	case result := <-resultChan:
		return result.value, result.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewLoadTimeoutError(key, attempt, timeout)
	}
}
