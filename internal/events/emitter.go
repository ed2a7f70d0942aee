package events

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/KirkDiggler/mcbot/internal/dispatch"
	boterr "github.com/KirkDiggler/mcbot/internal/errors"
)

// Emitter registers listeners per kind and delivers payloads to them through
// its dispatcher. It is safe for concurrent use.
type Emitter struct {
	name       string
	registry   *registry
	dispatcher dispatch.Dispatcher
	logger     logrus.FieldLogger
	policy     FailurePolicy
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithDispatcher binds the emitter to an execution context. The default is
// dispatch.Inline.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(em *Emitter) {
		if d != nil {
			em.dispatcher = d
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(em *Emitter) {
		if logger != nil {
			em.logger = logger
		}
	}
}

// WithFailurePolicy sets what emit calls do with listener failures.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(em *Emitter) {
		em.policy = p
	}
}

// WithName tags the emitter's log lines.
func WithName(name string) Option {
	return func(em *Emitter) {
		em.name = name
	}
}

// New creates an emitter with no listeners.
func New(opts ...Option) *Emitter {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	em := &Emitter{
		name:       "events",
		registry:   newRegistry(),
		dispatcher: dispatch.Inline{},
		logger:     logger,
		policy:     CollectFailures,
	}
	for _, opt := range opts {
		opt(em)
	}
	em.logger = em.logger.WithField("emitter", em.name)
	return em
}

// Name returns the name given with WithName.
func (em *Emitter) Name() string { return em.name }

// Dispatcher returns the execution context the emitter is bound to.
func (em *Emitter) Dispatcher() dispatch.Dispatcher { return em.dispatcher }

// On registers a listener for every future payload of kind.
// A nil listener is ignored and yields the zero Handle.
func On[P any](em *Emitter, kind *Kind[P], listener Listener[P]) Handle {
	return em.register(kind, listener, listener == nil, false)
}

// Once registers a listener that is removed before its first invocation, so
// it runs at most once however many passes race for it. The listener is
// used up by the first pass that reaches it even when the dispatcher then
// refuses the task (a stopped Loop); the refusal is reported by that emit
// call.
func Once[P any](em *Emitter, kind *Kind[P], listener Listener[P]) Handle {
	return em.register(kind, listener, listener == nil, true)
}

func (em *Emitter) register(kind Descriptor, fn any, isNil, once bool) Handle {
	if isNil {
		return Handle{}
	}

	h := em.registry.register(kind.kindID(), fn, once)

	em.logger.WithFields(logrus.Fields{
		"kind":   kind.Name(),
		"handle": h.String(),
		"once":   once,
	}).Debug("EventBus: Subscribed listener")

	return h
}

// Off removes a registration. It reports whether anything was removed;
// unknown and already removed handles are a no-op.
func (em *Emitter) Off(h Handle) bool {
	removed := em.registry.unregister(h)
	if removed {
		em.logger.WithField("handle", h.String()).Debug("EventBus: Unsubscribed listener")
	}
	return removed
}

// ListenerCount returns the number of listeners registered for kind.
func (em *Emitter) ListenerCount(kind Descriptor) int {
	return em.registry.count(kind.kindID())
}

// TotalListenerCount returns the number of listeners across all kinds.
func (em *Emitter) TotalListenerCount() int {
	return em.registry.total()
}

// Clear removes all listeners.
func (em *Emitter) Clear() {
	removed := em.registry.clear()
	em.logger.WithField("listeners", removed).Debug("EventBus: Cleared all listeners")
}

// Emit delivers payload to every listener registered for kind, in
// registration order.
func Emit[P any](ctx context.Context, em *Emitter, kind *Kind[P], payload P) error {
	return deliver(ctx, em, kind, em.registry.snapshot(kind.id), func(ctx context.Context, l Listener[P]) error {
		return l(ctx, payload)
	})
}

// Post emits a payload that carries its own kind.
func Post[P Record[P]](ctx context.Context, em *Emitter, payload P) error {
	return Emit(ctx, em, payload.Kind(), payload)
}

// EmitLazy calls build at most once, and only when kind has listeners, then
// delivers its result like Emit.
func EmitLazy[P any](ctx context.Context, em *Emitter, kind *Kind[P], build func() P) error {
	entries := em.registry.snapshot(kind.id)
	if len(entries) == 0 {
		return nil
	}

	payload := build()
	return deliver(ctx, em, kind, entries, func(ctx context.Context, l Listener[P]) error {
		return l(ctx, payload)
	})
}

// EmitEach calls invoke once per listener, passing the listener for invoke
// to call with a payload it builds. invoke is never called when kind has no
// listeners. Its return value counts as the listener's result.
func EmitEach[P any](ctx context.Context, em *Emitter, kind *Kind[P], invoke func(ctx context.Context, listener Listener[P]) error) error {
	return deliver(ctx, em, kind, em.registry.snapshot(kind.id), invoke)
}

// Wait blocks until the next payload of kind is emitted or ctx ends. Inside
// a dispatch.Loop task the wait suspends, so other tasks keep running.
func Wait[P any](ctx context.Context, em *Emitter, kind *Kind[P]) (P, error) {
	received := make(chan P, 1)
	h := Once(em, kind, func(ctx context.Context, payload P) error {
		received <- payload
		return nil
	})

	var payload P
	err := dispatch.Suspend(ctx, func(ctx context.Context) error {
		select {
		case payload = <-received:
			return nil
		case <-ctx.Done():
			em.Off(h)
			return ctx.Err()
		}
	})
	return payload, err
}

// deliver runs one emission pass over a snapshot.
func deliver[P any](ctx context.Context, em *Emitter, kind *Kind[P], entries []entry, invoke func(context.Context, Listener[P]) error) error {
	if len(entries) == 0 {
		return nil
	}

	em.logger.WithFields(logrus.Fields{
		"kind":      kind.name,
		"listeners": len(entries),
	}).Trace("EventBus: Emitting event")

	var failures []*ListenerError
	for _, e := range entries {
		if !e.claim() {
			continue
		}
		if e.fired != nil {
			em.registry.unregister(e.handle)
		}

		listener, _ := e.fn.(Listener[P])
		h := e.handle
		task := func(ctx context.Context) error {
			err := dispatch.Execute(ctx, func(ctx context.Context) error {
				return invoke(ctx, listener)
			})
			if errors.Is(err, ErrRemoveListener) {
				em.Off(h)
				return nil
			}
			if err != nil {
				return &ListenerError{Kind: kind.name, Handle: h, Err: err}
			}
			return nil
		}

		if err := em.dispatcher.Dispatch(ctx, task); err != nil {
			var listenerErr *ListenerError
			if !errors.As(err, &listenerErr) {
				listenerErr = &ListenerError{Kind: kind.name, Handle: h, Err: err}
			}
			failures = append(failures, listenerErr)
		}
	}

	return em.settle(kind.name, failures)
}

// settle applies the failure policy to a finished pass.
func (em *Emitter) settle(kind string, failures []*ListenerError) error {
	if len(failures) == 0 {
		return nil
	}

	for _, f := range failures {
		entry := em.logger.WithError(f.Err).WithFields(logrus.Fields{
			"kind":   kind,
			"handle": f.Handle.String(),
		})
		if em.policy == LogFailures {
			entry.Error("EventBus: listener failed")
		} else {
			entry.Debug("EventBus: listener failed")
		}
	}

	if em.policy == LogFailures {
		return nil
	}

	return boterr.WrapWithCode(&DispatchError{Kind: kind, Failures: failures},
		boterr.CodeListenerFailure, "emit "+kind).
		WithMeta("kind", kind).
		WithMeta("failures", len(failures))
}
