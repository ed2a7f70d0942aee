package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KirkDiggler/mcbot/internal/avatar"
	"github.com/KirkDiggler/mcbot/internal/config"
	"github.com/KirkDiggler/mcbot/internal/dispatch"
	boterr "github.com/KirkDiggler/mcbot/internal/errors"
	"github.com/KirkDiggler/mcbot/internal/events"
	"github.com/KirkDiggler/mcbot/internal/uuid"
)

// Config holds the settings and dependencies of a Session.
type Config struct {
	Bot    config.BotConfig
	Events config.EventsConfig
	Logger logrus.FieldLogger

	// UUIDGenerator is optional
	UUIDGenerator uuid.Generator
}

// Session is one bot instance. It owns the emitter, the execution context
// listeners run on and the avatar producing events, from New until Close.
type Session struct {
	ID     string
	Name   string
	Server string

	logger  logrus.FieldLogger
	emitter *events.Emitter
	loop    *dispatch.Loop
	avatar  *avatar.Avatar

	mu     sync.Mutex
	closed bool
}

// New creates a session and starts its execution context.
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, boterr.InvalidArgument("config is required")
	}

	generator := cfg.UUIDGenerator
	if generator == nil {
		generator = uuid.NewRandomGenerator()
	}

	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	id := generator.New()
	s := &Session{
		ID:     id,
		Name:   cfg.Bot.Name,
		Server: cfg.Bot.Server,
		logger: logger.WithField("session", uuid.Short(id)),
	}

	var dispatcher dispatch.Dispatcher
	switch cfg.Events.Dispatch {
	case "", config.DispatchInline:
		dispatcher = dispatch.Inline{}
	case config.DispatchLoop:
		s.loop = dispatch.NewLoop(
			dispatch.WithWorkers(cfg.Events.Workers),
			dispatch.WithLogger(s.logger),
			dispatch.WithErrorHandler(s.reportFailure),
		)
		if err := s.loop.Start(); err != nil {
			return nil, boterr.Wrap(err, "start session loop")
		}
		dispatcher = s.loop
	default:
		return nil, boterr.InvalidArgumentf("unknown dispatch mode %q", cfg.Events.Dispatch)
	}

	s.emitter = events.New(
		events.WithName("session-"+uuid.Short(id)),
		events.WithDispatcher(dispatcher),
		events.WithLogger(s.logger),
		events.WithFailurePolicy(cfg.Events.Policy()),
	)
	s.avatar = avatar.New(&avatar.Config{
		Emitter: s.emitter,
		Logger:  s.logger,
		Name:    cfg.Bot.Name,
	})

	s.logger.WithFields(logrus.Fields{
		"name":     s.Name,
		"server":   s.Server,
		"dispatch": cfg.Events.Dispatch,
	}).Info("Session: created")

	return s, nil
}

func (s *Session) Emitter() *events.Emitter { return s.emitter }

func (s *Session) Avatar() *avatar.Avatar { return s.avatar }

// Flush waits until every listener invocation scheduled so far has run.
// With inline dispatch there is never anything to wait for.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return boterr.New(boterr.CodeNotRunning, "session is closed")
	}

	if s.loop == nil {
		return nil
	}
	if err := s.loop.Flush(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return boterr.WrapWithCode(err, boterr.CodeCanceled, "flush session")
		}
		return boterr.Wrap(err, "flush session")
	}
	return nil
}

// Run ticks the avatar every interval until ctx ends.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return boterr.InvalidArgumentf("tick interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.avatar.Tick(ctx); err != nil {
				s.logger.WithError(err).Warn("Session: tick failed")
			}
		}
	}
}

// Close disconnects the avatar, runs everything still queued and removes
// all listeners. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if err := s.avatar.Disconnect(ctx, "session closed", nil); err != nil {
		errs = append(errs, err)
	}
	if s.loop != nil {
		if err := s.loop.Stop(ctx); err != nil {
			errs = append(errs, boterr.Wrap(err, "stop session loop"))
		}
	}
	s.emitter.Clear()

	s.logger.Info("Session: closed")
	return errors.Join(errs...)
}

// reportFailure logs listener failures that ran after their emit call
// returned.
func (s *Session) reportFailure(err error) {
	entry := s.logger.WithError(err)

	var listenerErr *events.ListenerError
	if errors.As(err, &listenerErr) {
		entry = entry.WithFields(logrus.Fields{
			"kind":   listenerErr.Kind,
			"handle": listenerErr.Handle.String(),
		})
	}

	var panicErr *dispatch.PanicError
	if errors.As(err, &panicErr) {
		entry.WithField("code", boterr.CodePanic).
			WithField("stack", string(panicErr.Stack)).
			Error("Session: listener panicked")
		return
	}

	entry.WithField("code", boterr.CodeListenerFailure).Error("Session: listener failed")
}
