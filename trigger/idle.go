package trigger

import (
	"context"
	"sort"
	"time"

	"github.com/cyverse/lazyload-common/loader"
	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// IdleDetector reports an idle window of the host
type IdleDetector interface {
	// WaitIdle blocks until the host is idle or maxWait elapses, returns true if idle was observed
	WaitIdle(ctx context.Context, maxWait time.Duration) bool
}

// IdleTrigger runs a batch load once the host becomes idle
type IdleTrigger[T any] struct {
	loader      *loader.Loader[T]
	detector    IdleDetector // can be nil
	idleTimeout time.Duration
}

// NewIdleTrigger creates a new IdleTrigger, without a detector it waits idleTimeout
func NewIdleTrigger[T any](resourceLoader *loader.Loader[T], detector IdleDetector, idleTimeout time.Duration) *IdleTrigger[T] {
	return &IdleTrigger[T]{
		loader:      resourceLoader,
		detector:    detector,
		idleTimeout: idleTimeout,
	}
}

// GetIdleTimeout returns the max wait for idle
func (trigger *IdleTrigger[T]) GetIdleTimeout() time.Duration {
	return trigger.idleTimeout
}

// Schedule waits for idle, then batch loads the keys by their priorities.
// loadFuncFor provides the load function of a key.
func (trigger *IdleTrigger[T]) Schedule(ctx context.Context, priorities map[string]types.Priority, loadFuncFor func(key string) loader.LoadFunc[T], options *loader.BatchOptions) ([]loader.BatchResult, error) {
	logger := log.WithFields(log.Fields{
		"package":  "trigger",
		"struct":   "IdleTrigger",
		"function": "Schedule",
	})

	defer utils.StackTraceFromPanic(logger)

	if loadFuncFor == nil {
		return nil, xerrors.Errorf("load function provider is nil")
	}

	idle := trigger.waitIdle(ctx)
	if ctx.Err() != nil {
		return nil, xerrors.Errorf("stopped waiting for idle: %w", ctx.Err())
	}

	logger.Debugf("starting idle batch of %d items, idle observed %t", len(priorities), idle)

	// map order is random, sort keys for a stable order within a priority
	keys := make([]string, 0, len(priorities))
	for key := range priorities {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	items := make([]loader.BatchItem[T], 0, len(keys))
	for _, key := range keys {
		items = append(items, loader.BatchItem[T]{
			Key:      key,
			LoadFunc: loadFuncFor(key),
			Priority: priorities[key],
		})
	}

	return trigger.loader.BatchLoad(ctx, items, options), nil
}

func (trigger *IdleTrigger[T]) waitIdle(ctx context.Context) bool {
	if trigger.detector != nil {
		return trigger.detector.WaitIdle(ctx, trigger.idleTimeout)
	}

	// fixed timer fallback
	timer := time.NewTimer(trigger.idleTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
