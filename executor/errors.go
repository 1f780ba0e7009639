package executor

import "errors"

// Sentinel errors for command execution.
var (
	// ErrPoolFull is returned when no executor slot frees up in time.
	ErrPoolFull = errors.New("executor: pool at capacity")

	// ErrTimeout is returned when a command exceeds the configured timeout.
	ErrTimeout = errors.New("executor: command timed out")

	// ErrNilExecutor is returned when a pool is built without an executor.
	ErrNilExecutor = errors.New("executor: executor is nil")
)
