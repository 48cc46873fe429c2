package trigger

import (
	"context"
	"sync"

	"github.com/cyverse/lazyload-common/loader"
	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
	log "github.com/sirupsen/logrus"
)

type visibilityRegistration[T any] struct {
	key      string
	loadFunc loader.LoadFunc[T]
}

// VisibilityTrigger preloads a resource the first time its element becomes visible
type VisibilityTrigger[T any] struct {
	loader        *loader.Loader[T]
	registrations map[string]*visibilityRegistration[T] // key = element handle
	mutex         sync.Mutex
}

// NewVisibilityTrigger creates a new VisibilityTrigger
func NewVisibilityTrigger[T any](resourceLoader *loader.Loader[T]) *VisibilityTrigger[T] {
	return &VisibilityTrigger[T]{
		loader:        resourceLoader,
		registrations: map[string]*visibilityRegistration[T]{},
		mutex:         sync.Mutex{},
	}
}

// Register subscribes the element, re-registering replaces the previous subscription
func (trigger *VisibilityTrigger[T]) Register(elementHandle string, key string, loadFn loader.LoadFunc[T]) {
	trigger.mutex.Lock()
	defer trigger.mutex.Unlock()

	trigger.registrations[elementHandle] = &visibilityRegistration[T]{
		key:      key,
		loadFunc: loadFn,
	}
}

// Unregister unsubscribes the element without loading
func (trigger *VisibilityTrigger[T]) Unregister(elementHandle string) {
	trigger.mutex.Lock()
	defer trigger.mutex.Unlock()

	delete(trigger.registrations, elementHandle)
}

// Pending returns the number of elements not yet seen
func (trigger *VisibilityTrigger[T]) Pending() int {
	trigger.mutex.Lock()
	defer trigger.mutex.Unlock()

	return len(trigger.registrations)
}

// Notify handles "element became visible", returns true if a load was fired.
// An element fires at most once, later notifications are ignored.
func (trigger *VisibilityTrigger[T]) Notify(elementHandle string) bool {
	logger := log.WithFields(log.Fields{
		"package":  "trigger",
		"struct":   "VisibilityTrigger",
		"function": "Notify",
	})

	defer utils.StackTraceFromPanic(logger)

	trigger.mutex.Lock()
	registration, ok := trigger.registrations[elementHandle]
	if ok {
		delete(trigger.registrations, elementHandle)
	}
	trigger.mutex.Unlock()

	if !ok {
		return false
	}

	logger.Debugf("element %s became visible, preloading %s", elementHandle, registration.key)
	trigger.loader.Preload(registration.key, registration.loadFunc, types.PriorityMedium)
	return true
}

// Run consumes visibility events until ctx is done or events is closed
func (trigger *VisibilityTrigger[T]) Run(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case elementHandle, ok := <-events:
			if !ok {
				return
			}
			trigger.Notify(elementHandle)
		}
	}
}
