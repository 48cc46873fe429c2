package testcases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyverse/lazyload-common/loader"
	"github.com/rs/xid"
	"golang.org/x/xerrors"
)

// Module is a fake lazily loaded program module
type Module struct {
	Name     string
	LoadedAt time.Time
}

// ModuleRegistry produces fake modules and counts how many times each one was fetched
type ModuleRegistry struct {
	fetchDelay time.Duration
	failures   map[string]int // remaining failures per module
	fetches    map[string]*int32
	mutex      sync.Mutex
}

// NewModuleRegistry creates a new ModuleRegistry
func NewModuleRegistry(fetchDelay time.Duration) *ModuleRegistry {
	return &ModuleRegistry{
		fetchDelay: fetchDelay,
		failures:   map[string]int{},
		fetches:    map[string]*int32{},
	}
}

// FailNext makes the next n fetches of the module fail
func (registry *ModuleRegistry) FailNext(name string, n int) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	registry.failures[name] = n
}

// GetFetches returns the number of fetches of the module
func (registry *ModuleRegistry) GetFetches(name string) int32 {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if counter, ok := registry.fetches[name]; ok {
		return atomic.LoadInt32(counter)
	}
	return 0
}

// LoadFuncFor returns a load function fetching the module
func (registry *ModuleRegistry) LoadFuncFor(name string) loader.LoadFunc[*Module] {
	return func(ctx context.Context) (*Module, error) {
		registry.mutex.Lock()
		counter, ok := registry.fetches[name]
		if !ok {
			counter = new(int32)
			registry.fetches[name] = counter
		}
		atomic.AddInt32(counter, 1)

		fail := registry.failures[name] > 0
		if fail {
			registry.failures[name]--
		}
		registry.mutex.Unlock()

		select {
		case <-time.After(registry.fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if fail {
			return nil, xerrors.Errorf("failed to fetch module %s", name)
		}

		return &Module{
			Name:     name,
			LoadedAt: time.Now(),
		}, nil
	}
}

// MakeModuleNames returns n unique module names
func MakeModuleNames(n int) []string {
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, fmt.Sprintf("module-%s", xid.New().String()))
	}
	return names
}
