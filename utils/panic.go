package utils

import (
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// StackTraceFromPanic logs a panic with its stack trace and re-panics.
// It must be deferred directly.
func StackTraceFromPanic(logger *log.Entry) {
	if r := recover(); r != nil {
		logger.Errorf("stacktrace from panic: %v\n%s", r, string(debug.Stack()))
		panic(r)
	}
}
