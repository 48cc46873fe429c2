package loader

import (
	"context"
	"sort"
	"time"

	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BatchItem is a resource to be loaded in a batch
type BatchItem[T any] struct {
	Key      string
	LoadFunc LoadFunc[T]
	Priority types.Priority
}

// BatchOptions controls batch pacing
type BatchOptions struct {
	Concurrency         int
	DelayBetweenBatches time.Duration
}

// BatchResult is the outcome of a batch item
type BatchResult struct {
	Key      string
	Priority types.Priority
	Err      error
}

// SortBatchItems returns a copy of items ordered high, medium, low, keeping the given order within a priority
func SortBatchItems[T any](items []BatchItem[T]) []BatchItem[T] {
	sorted := make([]BatchItem[T], len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i int, j int) bool {
		return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
	})
	return sorted
}

// BatchLoad loads items in priority order, running at most options.Concurrency loads at once.
// Every chunk settles before the next one starts. Item failures do not stop the batch,
// they are reported in the results which follow the scheduled order.
// options can be nil to use the loader's batch config.
func (loader *Loader[T]) BatchLoad(ctx context.Context, items []BatchItem[T], options *BatchOptions) []BatchResult {
	logger := log.WithFields(log.Fields{
		"package":  "loader",
		"struct":   "Loader",
		"function": "BatchLoad",
		"batch":    xid.New().String(),
	})

	defer utils.StackTraceFromPanic(logger)

	batchOptions := BatchOptions{
		Concurrency:         loader.config.Batch.Concurrency,
		DelayBetweenBatches: loader.config.Batch.DelayBetweenBatches,
	}

	if options != nil {
		if options.Concurrency > 0 {
			batchOptions.Concurrency = options.Concurrency
		}

		if options.DelayBetweenBatches >= 0 {
			batchOptions.DelayBetweenBatches = options.DelayBetweenBatches
		}
	}

	sorted := SortBatchItems(items)

	results := make([]BatchResult, len(sorted))
	for idx, item := range sorted {
		results[idx] = BatchResult{
			Key:      item.Key,
			Priority: item.Priority.OrDefault(),
		}
	}

	helper := utils.NewBatchHelper(batchOptions.Concurrency)
	batchCount := helper.GetBatchCount(len(sorted))

	logger.Debugf("loading %d items in %d chunks, concurrency %d", len(sorted), batchCount, batchOptions.Concurrency)

	for batchID := 0; batchID < batchCount; batchID++ {
		start, end := helper.GetBatchRange(batchID, len(sorted))

		if ctx.Err() != nil {
			loader.markCanceled(results[start:], ctx.Err())
			logger.Debugf("batch canceled before chunk %d", batchID)
			return results
		}

		// all-settled join, workers never return an error so siblings are never canceled
		group := errgroup.Group{}
		for idx := start; idx < end; idx++ {
			item := sorted[idx]
			result := &results[idx]

			group.Go(func() error {
				_, err := loader.Load(ctx, item.Key, item.LoadFunc, LoadConfig{Priority: item.Priority})
				if err != nil {
					logger.WithError(err).Warnf("failed to load batch item %s", item.Key)
					result.Err = err
				}
				return nil
			})
		}
		group.Wait()

		if helper.IsLastBatch(batchID, len(sorted)) || batchOptions.DelayBetweenBatches <= 0 {
			continue
		}

		timer := time.NewTimer(batchOptions.DelayBetweenBatches)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			nextStart, _ := helper.GetBatchRange(batchID+1, len(sorted))
			loader.markCanceled(results[nextStart:], ctx.Err())
			logger.Debugf("batch canceled after chunk %d", batchID)
			return results
		}
	}

	return results
}

func (loader *Loader[T]) markCanceled(results []BatchResult, err error) {
	for idx := range results {
		if results[idx].Err == nil {
			results[idx].Err = err
		}
	}
}
