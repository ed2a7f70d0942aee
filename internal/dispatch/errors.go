package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running loop.
	ErrAlreadyRunning = errors.New("loop is already running")

	// ErrNotRunning is returned when tasks are submitted to a stopped loop.
	ErrNotRunning = errors.New("loop is not running")
)
