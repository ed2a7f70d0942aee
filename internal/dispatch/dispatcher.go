package dispatch

//go:generate mockgen -destination=mock/mock_dispatcher.go -package=mockdispatch -source=dispatcher.go Dispatcher

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Task is one unit of work handed to a Dispatcher, usually a single
// listener invocation.
type Task func(ctx context.Context) error

// Dispatcher is an execution context. Dispatch either runs the task before
// returning (and returns its error) or schedules it and returns nil.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// ErrorHandler receives failures of tasks that ran after Dispatch returned.
type ErrorHandler func(err error)

// PanicError is returned in place of a task error when the task panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Execute runs task on the calling goroutine and converts a panic into a
// *PanicError.
func Execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

type turnKey struct{}

// Suspend runs wait while letting other tasks on the same Loop proceed.
// The caller gets its turn back before Suspend returns. Outside a Loop task
// wait simply runs inline.
func Suspend(ctx context.Context, wait func(ctx context.Context) error) error {
	loop, ok := ctx.Value(turnKey{}).(*Loop)
	if !ok {
		return wait(ctx)
	}

	loop.releaseTurn()
	defer loop.acquireTurn()

	// wait does not hold a turn, so it must not give one away again
	return wait(context.WithValue(ctx, turnKey{}, nil))
}

// Suspendable reports whether ctx belongs to a task that may Suspend
// without blocking its execution context.
func Suspendable(ctx context.Context) bool {
	_, ok := ctx.Value(turnKey{}).(*Loop)
	return ok
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
