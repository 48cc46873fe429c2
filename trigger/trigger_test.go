package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyverse/lazyload-common/loader"
	"github.com/cyverse/lazyload-common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoadFuncs struct {
	calls map[string]*int32
	order []string
	mutex sync.Mutex
}

func newCountingLoadFuncs() *countingLoadFuncs {
	return &countingLoadFuncs{
		calls: map[string]*int32{},
	}
}

func (funcs *countingLoadFuncs) loadFuncFor(key string) loader.LoadFunc[string] {
	funcs.mutex.Lock()
	counter, ok := funcs.calls[key]
	if !ok {
		counter = new(int32)
		funcs.calls[key] = counter
	}
	funcs.mutex.Unlock()

	return func(ctx context.Context) (string, error) {
		atomic.AddInt32(counter, 1)

		funcs.mutex.Lock()
		funcs.order = append(funcs.order, key)
		funcs.mutex.Unlock()
		return "resource-" + key, nil
	}
}

func (funcs *countingLoadFuncs) getCalls(key string) int32 {
	funcs.mutex.Lock()
	defer funcs.mutex.Unlock()

	if counter, ok := funcs.calls[key]; ok {
		return atomic.LoadInt32(counter)
	}
	return 0
}

func (funcs *countingLoadFuncs) getOrder() []string {
	funcs.mutex.Lock()
	defer funcs.mutex.Unlock()

	orderCopy := make([]string, len(funcs.order))
	copy(orderCopy, funcs.order)
	return orderCopy
}

type fakeIdleDetector struct {
	idleAfter time.Duration
	called    int32
}

func (detector *fakeIdleDetector) WaitIdle(ctx context.Context, maxWait time.Duration) bool {
	atomic.AddInt32(&detector.called, 1)

	wait := detector.idleAfter
	idle := true
	if wait > maxWait {
		wait = maxWait
		idle = false
	}

	select {
	case <-time.After(wait):
		return idle
	case <-ctx.Done():
		return false
	}
}

func newTestLoader(t *testing.T) *loader.Loader[string] {
	resourceLoader, err := loader.NewLoader[string](loader.NewDefaultLoaderConfig(), nil)
	require.NoError(t, err)
	return resourceLoader
}

func TestTrigger(t *testing.T) {
	t.Run("test VisibilityFiresOnce", testVisibilityFiresOnce)
	t.Run("test VisibilityUnregister", testVisibilityUnregister)
	t.Run("test VisibilityRun", testVisibilityRun)
	t.Run("test IdleWithDetector", testIdleWithDetector)
	t.Run("test IdleFallbackTimer", testIdleFallbackTimer)
	t.Run("test IdleCanceled", testIdleCanceled)
}

func testVisibilityFiresOnce(t *testing.T) {
	resourceLoader := newTestLoader(t)
	defer resourceLoader.Release()

	funcs := newCountingLoadFuncs()
	trigger := NewVisibilityTrigger(resourceLoader)

	trigger.Register("element-1", "mod-a", funcs.loadFuncFor("mod-a"))
	assert.Equal(t, 1, trigger.Pending())

	assert.True(t, trigger.Notify("element-1"))
	assert.False(t, trigger.Notify("element-1"))
	assert.False(t, trigger.Notify("element-unknown"))
	assert.Equal(t, 0, trigger.Pending())

	// visibility loads run at medium priority
	assert.Eventually(t, func() bool {
		return resourceLoader.GetMetrics().PriorityStats[types.PriorityMedium].Count == 1
	}, time.Second, time.Millisecond)
	assert.True(t, resourceLoader.IsCached("mod-a"))
	assert.Equal(t, int32(1), funcs.getCalls("mod-a"))
}

func testVisibilityUnregister(t *testing.T) {
	resourceLoader := newTestLoader(t)
	defer resourceLoader.Release()

	funcs := newCountingLoadFuncs()
	trigger := NewVisibilityTrigger(resourceLoader)

	trigger.Register("element-1", "mod-a", funcs.loadFuncFor("mod-a"))
	trigger.Unregister("element-1")

	assert.False(t, trigger.Notify("element-1"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), funcs.getCalls("mod-a"))
}

func testVisibilityRun(t *testing.T) {
	resourceLoader := newTestLoader(t)
	defer resourceLoader.Release()

	funcs := newCountingLoadFuncs()
	trigger := NewVisibilityTrigger(resourceLoader)

	trigger.Register("element-1", "mod-a", funcs.loadFuncFor("mod-a"))
	trigger.Register("element-2", "mod-b", funcs.loadFuncFor("mod-b"))

	events := make(chan string, 10)
	done := make(chan struct{})
	go func() {
		trigger.Run(context.Background(), events)
		close(done)
	}()

	events <- "element-1"
	events <- "element-1"
	events <- "element-2"
	close(events)
	<-done

	assert.Eventually(t, func() bool {
		return resourceLoader.IsCached("mod-a") && resourceLoader.IsCached("mod-b")
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), funcs.getCalls("mod-a"))
	assert.Equal(t, int32(1), funcs.getCalls("mod-b"))
}

func testIdleWithDetector(t *testing.T) {
	resourceLoader := newTestLoader(t)
	defer resourceLoader.Release()

	funcs := newCountingLoadFuncs()
	detector := &fakeIdleDetector{idleAfter: 10 * time.Millisecond}
	trigger := NewIdleTrigger(resourceLoader, detector, time.Second)

	priorities := map[string]types.Priority{
		"mod-low":  types.PriorityLow,
		"mod-high": types.PriorityHigh,
		"mod-mid":  types.PriorityMedium,
	}

	results, err := trigger.Schedule(context.Background(), priorities, funcs.loadFuncFor, &loader.BatchOptions{
		Concurrency:         1,
		DelayBetweenBatches: time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&detector.called))
	assert.Len(t, results, 3)
	assert.Equal(t, []string{"mod-high", "mod-mid", "mod-low"}, funcs.getOrder())
	for _, result := range results {
		assert.NoError(t, result.Err)
	}
}

func testIdleFallbackTimer(t *testing.T) {
	resourceLoader := newTestLoader(t)
	defer resourceLoader.Release()

	funcs := newCountingLoadFuncs()
	trigger := NewIdleTrigger(resourceLoader, nil, 30*time.Millisecond)

	startTime := time.Now()
	results, err := trigger.Schedule(context.Background(), map[string]types.Priority{
		"mod-a": types.PriorityMedium,
	}, funcs.loadFuncFor, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(startTime), 30*time.Millisecond)
	assert.Len(t, results, 1)
	assert.True(t, resourceLoader.IsCached("mod-a"))
}

func testIdleCanceled(t *testing.T) {
	resourceLoader := newTestLoader(t)
	defer resourceLoader.Release()

	funcs := newCountingLoadFuncs()
	trigger := NewIdleTrigger(resourceLoader, nil, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := trigger.Schedule(ctx, map[string]types.Priority{
		"mod-a": types.PriorityMedium,
	}, funcs.loadFuncFor, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), funcs.getCalls("mod-a"))
}
