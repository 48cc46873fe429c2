package loader

import (
	"context"
	"sync"
	"time"
)

// InFlightRequest is a load in progress for a key, shared by all callers of the key
type InFlightRequest struct {
	key       string
	startTime time.Time
	value     interface{}
	err       error
	completed bool
	waiters   int
	done      chan struct{}
	mutex     sync.Mutex
}

// NewInFlightRequest creates a new InFlightRequest
func NewInFlightRequest(key string) *InFlightRequest {
	return &InFlightRequest{
		key:       key,
		startTime: time.Now(),
		completed: false,
		waiters:   0,
		done:      make(chan struct{}),
		mutex:     sync.Mutex{},
	}
}

// GetKey returns key of the request
func (request *InFlightRequest) GetKey() string {
	return request.key
}

// GetStartTime returns the time the load started
func (request *InFlightRequest) GetStartTime() time.Time {
	return request.startTime
}

// GetWaiters returns the number of callers attached
func (request *InFlightRequest) GetWaiters() int {
	request.mutex.Lock()
	defer request.mutex.Unlock()

	return request.waiters
}

// IsCompleted checks if the request settled
func (request *InFlightRequest) IsCompleted() bool {
	request.mutex.Lock()
	defer request.mutex.Unlock()

	return request.completed
}

// Complete settles the request and wakes up all waiters, only the first call takes effect
func (request *InFlightRequest) Complete(value interface{}, err error) {
	request.mutex.Lock()
	defer request.mutex.Unlock()

	if request.completed {
		return
	}

	request.value = value
	request.err = err
	request.completed = true
	close(request.done)
}

// Wait waits until the request settles or ctx is done
func (request *InFlightRequest) Wait(ctx context.Context) (interface{}, error) {
	request.mutex.Lock()
	request.waiters++
	request.mutex.Unlock()

	defer func() {
		request.mutex.Lock()
		request.waiters--
		request.mutex.Unlock()
	}()

	select {
	case <-request.done:
		request.mutex.Lock()
		defer request.mutex.Unlock()

		return request.value, request.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InFlightMap is a table of loads in progress
type InFlightMap struct {
	requests map[string]*InFlightRequest
	mutex    sync.Mutex
}

// NewInFlightMap creates a new InFlightMap
func NewInFlightMap() *InFlightMap {
	return &InFlightMap{
		requests: map[string]*InFlightRequest{},
		mutex:    sync.Mutex{},
	}
}

// Put registers the request
func (inFlightMap *InFlightMap) Put(request *InFlightRequest) {
	inFlightMap.mutex.Lock()
	defer inFlightMap.mutex.Unlock()

	inFlightMap.requests[request.key] = request
}

// Remove deregisters the request for the key
func (inFlightMap *InFlightMap) Remove(key string) {
	inFlightMap.mutex.Lock()
	defer inFlightMap.mutex.Unlock()

	delete(inFlightMap.requests, key)
}

// Contains checks if a request for the key is registered
func (inFlightMap *InFlightMap) Contains(key string) bool {
	inFlightMap.mutex.Lock()
	defer inFlightMap.mutex.Unlock()

	_, ok := inFlightMap.requests[key]
	return ok
}

// Get returns the request for the key, nil if absent
func (inFlightMap *InFlightMap) Get(key string) *InFlightRequest {
	inFlightMap.mutex.Lock()
	defer inFlightMap.mutex.Unlock()

	if request, ok := inFlightMap.requests[key]; ok {
		return request
	}
	return nil
}

// Len returns the number of registered requests
func (inFlightMap *InFlightMap) Len() int {
	inFlightMap.mutex.Lock()
	defer inFlightMap.mutex.Unlock()

	return len(inFlightMap.requests)
}

// GetKeys returns keys of registered requests
func (inFlightMap *InFlightMap) GetKeys() []string {
	inFlightMap.mutex.Lock()
	defer inFlightMap.mutex.Unlock()

	keys := make([]string, 0, len(inFlightMap.requests))
	for key := range inFlightMap.requests {
		keys = append(keys, key)
	}
	return keys
}
