// Package dispatch provides the execution contexts event listeners run on.
//
// Every emitter is bound to exactly one Dispatcher for its lifetime. The
// dispatcher decides whether a listener invocation runs inline on the caller
// or is queued onto a single logical thread of execution.
//
// # Dispatchers
//
//   - Inline: runs each task synchronously on the caller's goroutine. This is
//     the default and has no suspension capability.
//
//   - Loop: a FIFO task queue drained by one logical thread. Tasks start in
//     submission order and only one task proceeds at a time. A running task
//     may call Suspend to hand the turn to the next queued task while it
//     waits on something else, and takes the turn back afterwards.
//     NewLoop(WithWorkers(n)) explicitly allows n tasks to proceed at once.
//
// # Panic Recovery
//
// All dispatchers recover from panics in tasks. A recovered panic is
// reported as a *PanicError carrying the panic value and stack.
//
// # Usage
//
//	loop := dispatch.NewLoop(dispatch.WithLogger(logger))
//	if err := loop.Start(); err != nil {
//	    return err
//	}
//	defer loop.Stop(ctx)
//
//	_ = loop.Dispatch(ctx, func(ctx context.Context) error {
//	    return dispatch.Suspend(ctx, func(ctx context.Context) error {
//	        return waitForServer(ctx)
//	    })
//	})
package dispatch
