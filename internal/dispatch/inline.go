package dispatch

import "context"

// Inline runs every task immediately on the caller's goroutine.
// The zero value is ready to use.
type Inline struct{}

// Dispatch executes task and returns its error.
func (Inline) Dispatch(ctx context.Context, task Task) error {
	return Execute(ctx, task)
}
