package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KirkDiggler/mcbot/internal/dispatch"
)

// FailurePolicy decides what an emit call does with listener failures.
type FailurePolicy int

const (
	// CollectFailures returns every failure of a pass from the emit call.
	CollectFailures FailurePolicy = iota

	// LogFailures logs each failure and lets the emit call succeed.
	LogFailures
)

// ParseFailurePolicy maps the configuration names "collect" and "log".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "collect":
		return CollectFailures, nil
	case "log":
		return LogFailures, nil
	default:
		return CollectFailures, fmt.Errorf("unknown failure policy %q", s)
	}
}

func (p FailurePolicy) String() string {
	switch p {
	case CollectFailures:
		return "collect"
	case LogFailures:
		return "log"
	default:
		return "unknown"
	}
}

// ListenerError is one listener's failure during a pass.
type ListenerError struct {
	Kind   string
	Handle Handle
	Err    error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s for %s: %v", e.Handle, e.Kind, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// Panicked reports whether the listener panicked instead of returning.
func (e *ListenerError) Panicked() bool {
	var panicErr *dispatch.PanicError
	return errors.As(e.Err, &panicErr)
}

// DispatchError aggregates the failures of one emission pass, in snapshot
// order.
type DispatchError struct {
	Kind     string
	Failures []*ListenerError
}

func (e *DispatchError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d listeners for %s failed: %s", len(e.Failures), e.Kind, strings.Join(msgs, "; "))
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
