package loader

import (
	"context"
	"sync"
	"time"

	"github.com/cyverse/lazyload-common/cache"
	"github.com/cyverse/lazyload-common/report"
	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// CacheStats is a summary of cache state
type CacheStats struct {
	Size           int     `json:"size"`
	InFlightCount  int     `json:"in_flight_count"`
	HitRate        float64 `json:"hit_rate"`
	EvictedEntries int64   `json:"evicted_entries"`
}

// Loader loads resources through a cache, at most one load runs per key at a time
type Loader[T any] struct {
	config        LoaderConfig
	cacheStore    cache.CacheStore
	inFlight      *InFlightMap
	retryExecutor *RetryExecutor
	recorder      report.MetricsRecorder

	// guards check cache -> check in-flight -> register in-flight as one step
	mutex sync.Mutex
}

// NewLoader creates a new Loader with a RAM cache store, exporter can be nil
func NewLoader[T any](config LoaderConfig, exporter report.MetricsExporter) (*Loader[T], error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	cacheStore, err := cache.NewRAMCacheStore(config.Cache.MaxEntries, config.Cache.EvictionRatio, config.Cache.TTL)
	if err != nil {
		return nil, xerrors.Errorf("failed to create cache store: %w", err)
	}

	return NewLoaderWithCacheStore[T](config, cacheStore, report.NewInMemoryRecorder(exporter))
}

// NewLoaderWithPrometheus creates a new Loader with a RAM cache store that exports metrics to Prometheus
// under config.MetricsNamespace
func NewLoaderWithPrometheus[T any](config LoaderConfig) (*Loader[T], *report.PrometheusExporter, error) {
	exporter := report.NewPrometheusExporter(config.MetricsNamespace)

	loader, err := NewLoader[T](config, exporter)
	if err != nil {
		exporter.Release()
		return nil, nil, err
	}

	return loader, exporter, nil
}

// NewLoaderWithCacheStore creates a new Loader with the given cache store and recorder
func NewLoaderWithCacheStore[T any](config LoaderConfig, cacheStore cache.CacheStore, recorder report.MetricsRecorder) (*Loader[T], error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	if cacheStore == nil {
		return nil, xerrors.Errorf("cache store is nil")
	}

	if recorder == nil {
		recorder = report.NewInMemoryRecorder(nil)
	}

	config.DefaultLoad = config.DefaultLoad.FillDefaults(NewDefaultLoadConfig())

	return &Loader[T]{
		config:        config,
		cacheStore:    cacheStore,
		inFlight:      NewInFlightMap(),
		retryExecutor: NewRetryExecutor(config.Backoff.GetPolicy()),
		recorder:      recorder,
		mutex:         sync.Mutex{},
	}, nil
}

// Release releases all resources
func (loader *Loader[T]) Release() {
	loader.cacheStore.Release()
}

// GetConfig returns loader config
func (loader *Loader[T]) GetConfig() LoaderConfig {
	return loader.config
}

// Load returns the resource for the key from cache, or loads it with loadFn.
// Concurrent calls for the same key share a single load.
// Zero fields of config are filled with the loader's default load config.
func (loader *Loader[T]) Load(ctx context.Context, key string, loadFn LoadFunc[T], config LoadConfig) (T, error) {
	logger := log.WithFields(log.Fields{
		"package":  "loader",
		"struct":   "Loader",
		"function": "Load",
	})

	defer utils.StackTraceFromPanic(logger)

	var zero T
	if loadFn == nil {
		return zero, xerrors.Errorf("load function for %s is nil", key)
	}

	config = config.FillDefaults(loader.config.DefaultLoad)

	loader.mutex.Lock()

	if entry := loader.cacheStore.GetEntry(key); entry != nil {
		loader.mutex.Unlock()

		logger.Debugf("cache hit - %s", key)
		loader.recorder.RecordHit()
		return loader.castValue(key, entry.GetValue())
	}

	if request := loader.inFlight.Get(key); request != nil {
		loader.mutex.Unlock()

		logger.Debugf("attaching to in-flight load - %s, started %s ago", key, time.Since(request.GetStartTime()))
		return loader.wait(ctx, request)
	}

	request := NewInFlightRequest(key)
	loader.inFlight.Put(request)

	loader.mutex.Unlock()

	logger.Debugf("cache miss, loading - %s, priority %s", key, config.Priority)

	// the shared load must not be canceled by this caller alone
	go loader.runLoad(context.WithoutCancel(ctx), request, loadFn, config)

	return loader.wait(ctx, request)
}

// LoadWith is Load for a ResourceLoader
func (loader *Loader[T]) LoadWith(ctx context.Context, key string, resourceLoader ResourceLoader[T], config LoadConfig) (T, error) {
	if resourceLoader == nil {
		var zero T
		return zero, xerrors.Errorf("resource loader for %s is nil", key)
	}

	return loader.Load(ctx, key, resourceLoader.Load, config)
}

// Preload loads the resource in background, failures are only logged
func (loader *Loader[T]) Preload(key string, loadFn LoadFunc[T], priority types.Priority) {
	logger := log.WithFields(log.Fields{
		"package":  "loader",
		"struct":   "Loader",
		"function": "Preload",
	})

	go func() {
		defer utils.StackTraceFromPanic(logger)

		_, err := loader.Load(context.Background(), key, loadFn, LoadConfig{Priority: priority})
		if err != nil {
			logger.WithError(err).Warnf("failed to preload %s", key)
		}
	}()
}

// Invalidate drops the cached resource for the key
func (loader *Loader[T]) Invalidate(key string) {
	loader.mutex.Lock()
	defer loader.mutex.Unlock()

	loader.cacheStore.DeleteEntry(key)
}

// ClearCache drops all cached resources, loads in progress are not affected
func (loader *Loader[T]) ClearCache() {
	loader.mutex.Lock()
	defer loader.mutex.Unlock()

	loader.cacheStore.DeleteAllEntries()
}

// IsCached checks if a fresh resource for the key is cached
func (loader *Loader[T]) IsCached(key string) bool {
	return loader.cacheStore.HasEntry(key)
}

// IsLoading checks if a load for the key is in progress
func (loader *Loader[T]) IsLoading(key string) bool {
	return loader.inFlight.Contains(key)
}

// GetMetrics returns a snapshot of metrics
func (loader *Loader[T]) GetMetrics() report.Metrics {
	return loader.recorder.Snapshot()
}

// ResetMetrics clears metrics
func (loader *Loader[T]) ResetMetrics() {
	loader.recorder.Reset()
}

// GetCacheStats returns a summary of cache state
func (loader *Loader[T]) GetCacheStats() CacheStats {
	return CacheStats{
		Size:           loader.cacheStore.GetTotalEntries(),
		InFlightCount:  loader.inFlight.Len(),
		HitRate:        loader.recorder.Snapshot().CacheHitRate,
		EvictedEntries: loader.cacheStore.GetEvictedEntries(),
	}
}

func (loader *Loader[T]) runLoad(ctx context.Context, request *InFlightRequest, loadFn LoadFunc[T], config LoadConfig) {
	logger := log.WithFields(log.Fields{
		"package":  "loader",
		"struct":   "Loader",
		"function": "runLoad",
	})

	key := request.GetKey()
	startTime := time.Now()

	var value interface{}
	var err error
	attempts := 0

	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("load of %s panicked: %v", key, r)
		}

		duration := time.Since(startTime)

		// record, populate cache and deregister in one step
		loader.mutex.Lock()
		if err == nil {
			loader.recorder.RecordLoad(duration, config.Priority)
			loader.cacheStore.PutEntry(key, value, duration, config.Priority, 0)
		} else {
			loader.recorder.RecordFailure()
		}
		loader.inFlight.Remove(key)
		loader.mutex.Unlock()

		if err == nil {
			logger.Debugf("loaded %s in %s after %d attempts", key, duration, attempts)
		} else {
			logger.WithError(err).Debugf("failed to load %s", key)
		}

		request.Complete(value, err)
	}()

	value, attempts, err = loader.retryExecutor.Execute(ctx, key, func(attemptCtx context.Context) (interface{}, error) {
		return loadFn(attemptCtx)
	}, config)
}

func (loader *Loader[T]) wait(ctx context.Context, request *InFlightRequest) (T, error) {
	var zero T

	value, err := request.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil && !request.IsCompleted() {
			return zero, xerrors.Errorf("stopped waiting for %s: %w", request.GetKey(), err)
		}
		return zero, err
	}

	return loader.castValue(request.GetKey(), value)
}

func (loader *Loader[T]) castValue(key string, value interface{}) (T, error) {
	var zero T
	if value == nil {
		return zero, nil
	}

	typedValue, ok := value.(T)
	if !ok {
		return zero, xerrors.Errorf("cached value for %s has unexpected type %T", key, value)
	}
	return typedValue, nil
}
