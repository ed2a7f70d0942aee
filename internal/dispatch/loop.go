package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrReentrantFlush is returned when Flush is called from a task running on
// the same loop; waiting there would wait on itself.
var ErrReentrantFlush = errors.New("flush called from a task on the same loop")

// Loop is a cooperative execution context. Tasks are started in submission
// order and at most `workers` of them (one by default) hold a turn at any
// moment. A task gives its turn away only by returning or through Suspend.
type Loop struct {
	workers      int
	logger       logrus.FieldLogger
	errorHandler ErrorHandler

	turn *semaphore.Weighted

	mu          sync.Mutex
	queue       []queuedTask
	wake        chan struct{}
	running     bool
	done        chan struct{}
	nextSeq     uint64
	outstanding map[uint64]struct{}
	changed     chan struct{}

	// Stats
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

type queuedTask struct {
	ctx  context.Context
	task Task
	seq  uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithWorkers lets n tasks hold a turn at the same time, turning the loop
// into an explicitly parallel pool. Values below 1 are ignored.
func WithWorkers(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger used for lifecycle messages and, unless
// WithErrorHandler is given, for task failures.
func WithLogger(logger logrus.FieldLogger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithErrorHandler sets the callback receiving task errors and panics.
func WithErrorHandler(h ErrorHandler) LoopOption {
	return func(l *Loop) {
		l.errorHandler = h
	}
}

// NewLoop creates a stopped loop; call Start before dispatching.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		workers:     1,
		logger:      discardLogger(),
		outstanding: make(map[uint64]struct{}),
		changed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.errorHandler == nil {
		l.errorHandler = l.logFailure
	}
	l.turn = semaphore.NewWeighted(int64(l.workers))
	return l
}

// Start launches the goroutine that drains the queue.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running || (l.done != nil && !closed(l.done)) {
		return ErrAlreadyRunning
	}

	l.running = true
	l.wake = make(chan struct{}, 1)
	l.done = make(chan struct{})
	go l.run(l.wake, l.done)

	l.logger.WithField("workers", l.workers).Debug("Loop: started")
	return nil
}

// Stop refuses new tasks, runs everything already queued and waits for
// in-flight tasks to finish or for ctx to end.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.running = false
	done := l.done
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	select {
	case <-done:
		l.logger.WithField("completed", l.completed.Load()).Debug("Loop: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch appends task to the queue and returns without waiting for it.
// The task runs with ctx's values but not its cancellation.
func (l *Loop) Dispatch(ctx context.Context, task Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return ErrNotRunning
	}

	l.nextSeq++
	l.queue = append(l.queue, queuedTask{ctx: ctx, task: task, seq: l.nextSeq})
	l.outstanding[l.nextSeq] = struct{}{}
	l.submitted.Add(1)

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until every task submitted before the call has finished.
func (l *Loop) Flush(ctx context.Context) error {
	if loop, ok := ctx.Value(turnKey{}).(*Loop); ok && loop == l {
		return ErrReentrantFlush
	}

	l.mu.Lock()
	target := l.nextSeq
	l.mu.Unlock()

	for {
		l.mu.Lock()
		pending := false
		for seq := range l.outstanding {
			if seq <= target {
				pending = true
				break
			}
		}
		changed := l.changed
		l.mu.Unlock()

		if !pending {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// IsRunning returns true between Start and Stop.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// QueueDepth returns the number of tasks waiting for a turn.
func (l *Loop) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// LoopStats contains counters for a loop.
type LoopStats struct {
	// Submitted is the number of accepted Dispatch calls.
	Submitted uint64

	// Completed is the number of tasks that ran, whatever their outcome.
	Completed uint64

	// Failed is the number of tasks that returned an error.
	Failed uint64

	// Panicked is the number of tasks that panicked.
	Panicked uint64

	// QueueDepth is the number of tasks still waiting for a turn.
	QueueDepth int
}

// Stats returns loop statistics.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Submitted:  l.submitted.Load(),
		Completed:  l.completed.Load(),
		Failed:     l.failed.Load(),
		Panicked:   l.panicked.Load(),
		QueueDepth: l.QueueDepth(),
	}
}

func (l *Loop) run(wake <-chan struct{}, done chan struct{}) {
	defer close(done)

	var group errgroup.Group
	for {
		t, ok := l.next(wake)
		if !ok {
			break
		}

		l.acquireTurn()
		group.Go(func() error {
			l.execute(t)
			return nil
		})
	}

	_ = group.Wait()
}

// next pops the oldest task, waiting for one while the loop is running.
func (l *Loop) next(wake <-chan struct{}) (queuedTask, bool) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			t := l.queue[0]
			l.queue[0] = queuedTask{}
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return t, true
		}
		running := l.running
		l.mu.Unlock()

		if !running {
			return queuedTask{}, false
		}
		<-wake
	}
}

func (l *Loop) execute(t queuedTask) {
	defer l.releaseTurn()

	ctx := context.WithValue(context.WithoutCancel(t.ctx), turnKey{}, l)
	err := Execute(ctx, t.task)

	l.completed.Add(1)
	if err != nil {
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			l.panicked.Add(1)
		} else {
			l.failed.Add(1)
		}
		l.report(err)
	}

	l.finish(t.seq)
}

// report hands err to the error handler; a panicking handler must not take
// the loop down.
func (l *Loop) report(err error) {
	defer func() {
		_ = recover()
	}()
	l.errorHandler(err)
}

func (l *Loop) finish(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.outstanding, seq)
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *Loop) logFailure(err error) {
	entry := l.logger.WithError(err)
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		entry = entry.WithField("stack", string(panicErr.Stack))
	}
	entry.Error("Loop: task failed")
}

func (l *Loop) acquireTurn() {
	// Acquire only fails when its context ends.
	_ = l.turn.Acquire(context.Background(), 1)
}

func (l *Loop) releaseTurn() {
	l.turn.Release(1)
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
