package loader

import (
	"errors"
	"fmt"
	"time"
)

// LoadTimeoutError is returned when a single load attempt exceeds its timeout
type LoadTimeoutError struct {
	Key     string
	Attempt int
	Timeout time.Duration
}

// NewLoadTimeoutError creates LoadTimeoutError struct
func NewLoadTimeoutError(key string, attempt int, timeout time.Duration) *LoadTimeoutError {
	return &LoadTimeoutError{
		Key:     key,
		Attempt: attempt,
		Timeout: timeout,
	}
}

// Error returns error message
func (err *LoadTimeoutError) Error() string {
	return fmt.Sprintf("load attempt %d of %s timed out after %s", err.Attempt+1, err.Key, err.Timeout)
}

// Is tests type of error
func (err *LoadTimeoutError) Is(other error) bool {
	_, ok := other.(*LoadTimeoutError)
	return ok
}

// IsLoadTimeoutError evaluates if the given error is LoadTimeoutError
func IsLoadTimeoutError(err error) bool {
	return errors.Is(err, &LoadTimeoutError{})
}

// LoadExhaustedError is returned when all load attempts failed
type LoadExhaustedError struct {
	Key      string
	Attempts int
	Cause    error
}

// NewLoadExhaustedError creates LoadExhaustedError struct
func NewLoadExhaustedError(key string, attempts int, cause error) *LoadExhaustedError {
	return &LoadExhaustedError{
		Key:      key,
		Attempts: attempts,
		Cause:    cause,
	}
}

// Error returns error message
func (err *LoadExhaustedError) Error() string {
	return fmt.Sprintf("failed to load %s after %d attempts: %v", err.Key, err.Attempts, err.Cause)
}

// Unwrap returns the last underlying error
func (err *LoadExhaustedError) Unwrap() error {
	return err.Cause
}

// Is tests type of error
func (err *LoadExhaustedError) Is(other error) bool {
	_, ok := other.(*LoadExhaustedError)
	return ok
}

// IsLoadExhaustedError evaluates if the given error is LoadExhaustedError
func IsLoadExhaustedError(err error) bool {
	return errors.Is(err, &LoadExhaustedError{})
}
