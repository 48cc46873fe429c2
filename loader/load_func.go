package loader

import "context"

// ResourceLoader produces a resource for a key.
// Load may be invoked again on retry, so it must be safe to re-invoke.
type ResourceLoader[T any] interface {
	Load(ctx context.Context) (T, error)
}

// LoadFunc is a function adapter of ResourceLoader
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Load calls the function
func (fn LoadFunc[T]) Load(ctx context.Context) (T, error) {
	return fn(ctx)
}
