package events_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/mcbot/internal/dispatch"
	mockdispatch "github.com/KirkDiggler/mcbot/internal/dispatch/mock"
	boterr "github.com/KirkDiggler/mcbot/internal/errors"
	"github.com/KirkDiggler/mcbot/internal/events"
)

type greeting struct {
	Name string
}

var (
	kindGreeting = events.NewKind[greeting]("greeting")
	kindFarewell = events.NewKind[string]("farewell")
)

func (greeting) Kind() *events.Kind[greeting] { return kindGreeting }

// recorder collects listener calls in the order they happen.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) listener(label string) events.Listener[greeting] {
	return func(ctx context.Context, g greeting) error {
		r.add(label + " " + g.Name)
		return nil
	}
}

type EmitterSuite struct {
	suite.Suite
	em  *events.Emitter
	rec *recorder
	ctx context.Context
}

func TestEmitterSuite(t *testing.T) {
	suite.Run(t, new(EmitterSuite))
}

func (s *EmitterSuite) SetupTest() {
	s.em = events.New()
	s.rec = &recorder{}
	s.ctx = context.Background()
}

func (s *EmitterSuite) TestOnAndEmit() {
	events.On(s.em, kindGreeting, s.rec.listener("L1"))

	err := events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "steve"})

	s.NoError(err)
	s.Equal([]string{"L1 steve"}, s.rec.get())
}

func (s *EmitterSuite) TestRegistrationOrder() {
	events.On(s.em, kindGreeting, s.rec.listener("L1"))
	events.On(s.em, kindGreeting, s.rec.listener("L2"))
	events.On(s.em, kindGreeting, s.rec.listener("L3"))

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "x"}))

	s.Equal([]string{"L1 x", "L2 x", "L3 x"}, s.rec.get())
}

func (s *EmitterSuite) TestPostResolvesKindFromPayload() {
	events.On(s.em, kindGreeting, s.rec.listener("L1"))

	s.Require().NoError(events.Post(s.ctx, s.em, greeting{Name: "alex"}))

	s.Equal([]string{"L1 alex"}, s.rec.get())
}

func (s *EmitterSuite) TestKindsAreIsolated() {
	events.On(s.em, kindGreeting, s.rec.listener("greeting"))
	events.On(s.em, kindFarewell, func(ctx context.Context, name string) error {
		s.rec.add("farewell " + name)
		return nil
	})

	s.Require().NoError(events.Emit(s.ctx, s.em, kindFarewell, "bob"))

	s.Equal([]string{"farewell bob"}, s.rec.get())
}

func (s *EmitterSuite) TestSameNameDifferentKinds() {
	other := events.NewKind[greeting]("greeting")
	events.On(s.em, kindGreeting, s.rec.listener("mine"))
	events.On(s.em, other, s.rec.listener("other"))

	s.Require().NoError(events.Emit(s.ctx, s.em, other, greeting{Name: "x"}))

	s.Equal([]string{"other x"}, s.rec.get())
	s.Equal(1, s.em.ListenerCount(kindGreeting))
	s.Equal(1, s.em.ListenerCount(other))
}

func (s *EmitterSuite) TestOnceRunsExactlyOnce() {
	var calls atomic.Int32
	events.Once(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		calls.Add(1)
		return nil
	})

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{}))
	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{}))

	s.Equal(int32(1), calls.Load())
	s.Equal(0, s.em.ListenerCount(kindGreeting))
}

func (s *EmitterSuite) TestOnceUnderConcurrentEmits() {
	var calls atomic.Int32
	events.Once(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = events.Emit(s.ctx, s.em, kindGreeting, greeting{})
		}()
	}
	wg.Wait()

	s.Equal(int32(1), calls.Load())
}

func (s *EmitterSuite) TestSameListenerTwiceGetsTwoHandles() {
	l := s.rec.listener("L")
	h1 := events.On(s.em, kindGreeting, l)
	h2 := events.On(s.em, kindGreeting, l)

	s.NotEqual(h1, h2)
	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "a"}))
	s.Equal([]string{"L a", "L a"}, s.rec.get())

	s.True(s.em.Off(h1))
	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "b"}))
	s.Equal([]string{"L a", "L a", "L b"}, s.rec.get())
}

func (s *EmitterSuite) TestOff() {
	h := events.On(s.em, kindGreeting, s.rec.listener("L1"))

	s.True(s.em.Off(h))
	s.False(s.em.Off(h))
	s.False(s.em.Off(events.Handle{}))

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "x"}))
	s.Empty(s.rec.get())
}

func (s *EmitterSuite) TestNilListenerIsIgnored() {
	h := events.On(s.em, kindGreeting, nil)

	s.True(h.IsZero())
	s.Equal(0, s.em.ListenerCount(kindGreeting))
}

func (s *EmitterSuite) TestOffDuringPassKeepsSnapshot() {
	var h2 events.Handle
	events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		s.rec.add("L1 " + g.Name)
		s.em.Off(h2)
		return nil
	})
	h2 = events.On(s.em, kindGreeting, s.rec.listener("L2"))

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "first"}))
	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "second"}))

	s.Equal([]string{"L1 first", "L2 first", "L1 second"}, s.rec.get())
}

func (s *EmitterSuite) TestOnDuringPassWaitsForNextPass() {
	var added atomic.Bool
	events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		s.rec.add("L1 " + g.Name)
		if added.CompareAndSwap(false, true) {
			events.On(s.em, kindGreeting, s.rec.listener("late"))
		}
		return nil
	})

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "first"}))
	s.Equal([]string{"L1 first"}, s.rec.get())

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "second"}))
	s.Equal([]string{"L1 first", "L1 second", "late second"}, s.rec.get())
}

func (s *EmitterSuite) TestRemoveListenerSignal() {
	var calls atomic.Int32
	events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		calls.Add(1)
		return events.ErrRemoveListener
	})
	events.On(s.em, kindGreeting, s.rec.listener("L2"))

	s.NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "a"}))
	s.NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "b"}))

	s.Equal(int32(1), calls.Load())
	s.Equal([]string{"L2 a", "L2 b"}, s.rec.get())
	s.Equal(1, s.em.ListenerCount(kindGreeting))
}

func (s *EmitterSuite) TestFailuresDoNotStopDelivery() {
	expectedErr := errors.New("listener failed")

	events.On(s.em, kindGreeting, s.rec.listener("L1"))
	h2 := events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		return expectedErr
	})
	events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		panic("boom")
	})
	events.On(s.em, kindGreeting, s.rec.listener("L4"))

	err := events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "x"})

	s.Equal([]string{"L1 x", "L4 x"}, s.rec.get())
	s.Require().Error(err)
	s.True(boterr.IsListenerFailure(err))
	s.ErrorIs(err, expectedErr)

	var dispatchErr *events.DispatchError
	s.Require().ErrorAs(err, &dispatchErr)
	s.Equal("greeting", dispatchErr.Kind)
	s.Require().Len(dispatchErr.Failures, 2)
	s.Equal(h2, dispatchErr.Failures[0].Handle)
	s.False(dispatchErr.Failures[0].Panicked())
	s.True(dispatchErr.Failures[1].Panicked())

	var panicErr *dispatch.PanicError
	s.Require().ErrorAs(err, &panicErr)
	s.Equal("boom", panicErr.Value)

	s.Equal(2, boterr.GetMeta(err)["failures"])
}

func (s *EmitterSuite) TestLogFailuresPolicy() {
	logger, hook := logtest.NewNullLogger()
	em := events.New(events.WithLogger(logger), events.WithFailurePolicy(events.LogFailures))

	events.On(em, kindGreeting, func(ctx context.Context, g greeting) error {
		return errors.New("listener failed")
	})
	events.On(em, kindGreeting, s.rec.listener("L2"))

	err := events.Emit(s.ctx, em, kindGreeting, greeting{Name: "x"})

	s.NoError(err)
	s.Equal([]string{"L2 x"}, s.rec.get())

	var failures []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			failures = append(failures, entry)
		}
	}
	s.Require().Len(failures, 1)
	s.Equal("greeting", failures[0].Data["kind"])
	s.Equal("events", failures[0].Data["emitter"])
}

func (s *EmitterSuite) TestEmitLazySkipsBuildWithoutListeners() {
	built := 0
	build := func() greeting {
		built++
		return greeting{Name: "lazy"}
	}

	s.Require().NoError(events.EmitLazy(s.ctx, s.em, kindGreeting, build))
	s.Equal(0, built)

	events.On(s.em, kindGreeting, s.rec.listener("L1"))
	events.On(s.em, kindGreeting, s.rec.listener("L2"))
	s.Require().NoError(events.EmitLazy(s.ctx, s.em, kindGreeting, build))

	s.Equal(1, built)
	s.Equal([]string{"L1 lazy", "L2 lazy"}, s.rec.get())
}

func (s *EmitterSuite) TestEmitEach() {
	thunkCalls := 0
	thunk := func(ctx context.Context, l events.Listener[greeting]) error {
		thunkCalls++
		return l(ctx, greeting{Name: "each"})
	}

	s.Require().NoError(events.EmitEach(s.ctx, s.em, kindGreeting, thunk))
	s.Equal(0, thunkCalls)

	events.On(s.em, kindGreeting, s.rec.listener("L1"))
	events.On(s.em, kindGreeting, s.rec.listener("L2"))
	s.Require().NoError(events.EmitEach(s.ctx, s.em, kindGreeting, thunk))

	s.Equal(2, thunkCalls)
	s.Equal([]string{"L1 each", "L2 each"}, s.rec.get())
}

func (s *EmitterSuite) TestEmitWithoutListeners() {
	s.NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{}))
}

func (s *EmitterSuite) TestCountsAndClear() {
	events.On(s.em, kindGreeting, s.rec.listener("L1"))
	events.Once(s.em, kindGreeting, s.rec.listener("L2"))
	events.On(s.em, kindFarewell, func(ctx context.Context, name string) error { return nil })

	s.Equal(2, s.em.ListenerCount(kindGreeting))
	s.Equal(1, s.em.ListenerCount(kindFarewell))
	s.Equal(3, s.em.TotalListenerCount())

	s.em.Clear()

	s.Equal(0, s.em.TotalListenerCount())
	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{}))
	s.Empty(s.rec.get())
}

func (s *EmitterSuite) TestConcurrentAccess() {
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)

		go func() {
			defer wg.Done()
			h := events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error { return nil })
			s.em.Off(h)
		}()

		go func() {
			defer wg.Done()
			_ = events.Emit(s.ctx, s.em, kindGreeting, greeting{})
		}()

		go func() {
			defer wg.Done()
			events.On(s.em, kindFarewell, func(ctx context.Context, name string) error {
				events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error { return nil })
				return events.ErrRemoveListener
			})
			_ = events.Emit(s.ctx, s.em, kindFarewell, "x")
		}()
	}

	wg.Wait()
}

func (s *EmitterSuite) TestWaitReturnsNextPayload() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()

	go func() {
		for s.em.ListenerCount(kindGreeting) == 0 {
			time.Sleep(time.Millisecond)
		}
		_ = events.Emit(ctx, s.em, kindGreeting, greeting{Name: "hello"})
	}()

	g, err := events.Wait(ctx, s.em, kindGreeting)

	s.Require().NoError(err)
	s.Equal("hello", g.Name)
	s.Equal(0, s.em.ListenerCount(kindGreeting))
}

func (s *EmitterSuite) TestWaitRemovesListenerOnCancel() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Millisecond)
	defer cancel()

	_, err := events.Wait(ctx, s.em, kindGreeting)

	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal(0, s.em.ListenerCount(kindGreeting))
}

func TestEmitter_DispatchesThroughDispatcher(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDispatcher := mockdispatch.NewMockDispatcher(ctrl)

	em := events.New(events.WithDispatcher(mockDispatcher))
	s := &recorder{}
	events.On(em, kindGreeting, s.listener("L1"))
	events.On(em, kindGreeting, s.listener("L2"))

	gomock.InOrder(
		mockDispatcher.EXPECT().
			Dispatch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, task dispatch.Task) error {
				return task(ctx)
			}),
		mockDispatcher.EXPECT().
			Dispatch(gomock.Any(), gomock.Any()).
			Return(dispatch.ErrNotRunning),
	)

	err := events.Emit(context.Background(), em, kindGreeting, greeting{Name: "x"})

	if !errors.Is(err, dispatch.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning in %v", err)
	}
	if got := s.get(); len(got) != 1 || got[0] != "L1 x" {
		t.Fatalf("unexpected calls %v", got)
	}
	if em.Dispatcher() != mockDispatcher {
		t.Fatal("emitter is not bound to the given dispatcher")
	}
}

func TestOnce_RefusedDispatchUsesUpListener(t *testing.T) {
	loop := dispatch.NewLoop()
	em := events.New(events.WithDispatcher(loop))

	var calls atomic.Int32
	events.Once(em, kindGreeting, func(ctx context.Context, g greeting) error {
		calls.Add(1)
		return nil
	})

	err := events.Emit(context.Background(), em, kindGreeting, greeting{Name: "early"})
	if !errors.Is(err, dispatch.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if n := em.ListenerCount(kindGreeting); n != 0 {
		t.Fatalf("expected the once listener to be gone, %d left", n)
	}

	if err := loop.Start(); err != nil {
		t.Fatal(err)
	}
	if err := events.Emit(context.Background(), em, kindGreeting, greeting{Name: "late"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := loop.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}
}

type LoopEmitterSuite struct {
	suite.Suite
	loop *dispatch.Loop
	em   *events.Emitter
	rec  *recorder
	ctx  context.Context

	cancel context.CancelFunc
	mu     sync.Mutex
	errs   []error
}

func TestLoopEmitterSuite(t *testing.T) {
	suite.Run(t, new(LoopEmitterSuite))
}

func (s *LoopEmitterSuite) SetupTest() {
	s.errs = nil
	s.rec = &recorder{}
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Second)
	s.loop = dispatch.NewLoop(dispatch.WithErrorHandler(func(err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.errs = append(s.errs, err)
	}))
	s.Require().NoError(s.loop.Start())
	s.em = events.New(events.WithDispatcher(s.loop), events.WithName("loop"))
}

func (s *LoopEmitterSuite) TearDownTest() {
	s.NoError(s.loop.Stop(s.ctx))
	s.cancel()
}

func (s *LoopEmitterSuite) TestEmitReturnsBeforeDelivery() {
	release := make(chan struct{})
	events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		<-release
		s.rec.add("L1 " + g.Name)
		return nil
	})

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "x"}))
	s.Empty(s.rec.get())

	close(release)
	s.Require().NoError(s.loop.Flush(s.ctx))
	s.Equal([]string{"L1 x"}, s.rec.get())
}

func (s *LoopEmitterSuite) TestSequentialEmitsKeepOrder() {
	events.On(s.em, kindGreeting, s.rec.listener("L1"))
	events.On(s.em, kindGreeting, s.rec.listener("L2"))

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "a"}))
	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "b"}))
	s.Require().NoError(s.loop.Flush(s.ctx))

	s.Equal([]string{"L1 a", "L2 a", "L1 b", "L2 b"}, s.rec.get())
}

func (s *LoopEmitterSuite) TestDeferredFailuresGoToErrorHandler() {
	expectedErr := errors.New("listener failed")
	events.On(s.em, kindGreeting, func(ctx context.Context, g greeting) error {
		return expectedErr
	})
	events.On(s.em, kindGreeting, s.rec.listener("L2"))

	s.Require().NoError(events.Emit(s.ctx, s.em, kindGreeting, greeting{Name: "x"}))
	s.Require().NoError(s.loop.Flush(s.ctx))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().Len(s.errs, 1)
	s.ErrorIs(s.errs[0], expectedErr)
	var listenerErr *events.ListenerError
	s.Require().ErrorAs(s.errs[0], &listenerErr)
	s.Equal("greeting", listenerErr.Kind)
	s.Equal([]string{"L2 x"}, s.rec.get())
}

func (s *LoopEmitterSuite) TestWaitSuspendsInsideTask() {
	result := make(chan string, 1)

	s.Require().NoError(s.loop.Dispatch(s.ctx, func(ctx context.Context) error {
		g, err := events.Wait(ctx, s.em, kindGreeting)
		if err != nil {
			return err
		}
		result <- g.Name
		return nil
	}))
	s.Require().NoError(s.loop.Dispatch(s.ctx, func(ctx context.Context) error {
		return events.Emit(ctx, s.em, kindGreeting, greeting{Name: "resumed"})
	}))

	s.Require().NoError(s.loop.Flush(s.ctx))
	s.Equal("resumed", <-result)
}
