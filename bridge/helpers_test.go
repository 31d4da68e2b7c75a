package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func newTestLoop(t *testing.T, opts ...eventloop.LoopOption) *eventloop.Loop {
	t.Helper()
	l, err := eventloop.New(opts...)
	require.NoError(t, err)
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = l.Shutdown(ctx)
	})
	return l
}

// onLoop runs fn on l, blocking until it returns.
func onLoop(t *testing.T, l *eventloop.Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		defer close(done)
		fn()
	}))
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the loop")
	}
}

// recorder is an observer, recording every signal.
type recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	done      chan struct{}
	onNext    func(T)
	errors    int
	completes int
	once      sync.Once
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{done: make(chan struct{})}
}

func (x *recorder[T]) OnNext(value T) {
	x.mu.Lock()
	x.values = append(x.values, value)
	fn := x.onNext
	x.mu.Unlock()
	if fn != nil {
		fn(value)
	}
}

func (x *recorder[T]) OnError(err error) {
	x.mu.Lock()
	x.err = err
	x.errors++
	x.mu.Unlock()
	x.once.Do(func() { close(x.done) })
}

func (x *recorder[T]) OnComplete() {
	x.mu.Lock()
	x.completes++
	x.mu.Unlock()
	x.once.Do(func() { close(x.done) })
}

func (x *recorder[T]) Values() []T {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]T(nil), x.values...)
}

func (x *recorder[T]) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

// Terminals returns the number of OnError and OnComplete signals.
func (x *recorder[T]) Terminals() (errors, completes int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.errors, x.completes
}

func (x *recorder[T]) Wait(t *testing.T) {
	t.Helper()
	select {
	case <-x.done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a terminal signal")
	}
}

func (x *recorder[T]) Terminated() bool {
	select {
	case <-x.done:
		return true
	default:
		return false
	}
}

// fakeSource is a Source driven by the test, from the loop.
type fakeSource[T any] struct {
	onData     func(T)
	onEnd      func()
	onError    func(error)
	closeErr   error
	calls      []string
	resumes    int
	pauses     int
	closes     int
	violations int // values emitted while paused
	paused     bool
}

func newFakeSource[T any]() *fakeSource[T] {
	return &fakeSource[T]{paused: true}
}

func (x *fakeSource[T]) Handler(fn func(value T)) { x.onData = fn }

func (x *fakeSource[T]) EndHandler(fn func()) { x.onEnd = fn }

func (x *fakeSource[T]) ExceptionHandler(fn func(error)) { x.onError = fn }

func (x *fakeSource[T]) Pause() {
	x.calls = append(x.calls, `pause`)
	x.pauses++
	x.paused = true
}

func (x *fakeSource[T]) Resume() {
	x.calls = append(x.calls, `resume`)
	x.resumes++
	x.paused = false
}

func (x *fakeSource[T]) Close() error {
	x.calls = append(x.calls, `close`)
	x.closes++
	return x.closeErr
}

func (x *fakeSource[T]) emit(values ...T) {
	for _, v := range values {
		if x.paused {
			x.violations++
		}
		x.onData(v)
	}
}

// flowing emits values while the source is not paused, returning the
// number emitted.
func (x *fakeSource[T]) flowing(values ...T) int {
	var n int
	for _, v := range values {
		if x.paused {
			break
		}
		x.onData(v)
		n++
	}
	return n
}

// fakeSink records writes, acknowledging each via ack, which defaults to
// an asynchronous success.
type fakeSink[T any] struct {
	mu          sync.Mutex
	writes      []T
	acks        []func(error)
	closeErr    error
	ack         func(index int, chunk T, ack func(error))
	outstanding int
	closes      int
	overlapped  bool
}

func (x *fakeSink[T]) Write(chunk T, ack func(err error)) {
	x.mu.Lock()
	index := len(x.writes)
	x.writes = append(x.writes, chunk)
	x.outstanding++
	if x.outstanding > 1 {
		x.overlapped = true
	}
	wrapped := func(err error) {
		x.mu.Lock()
		x.outstanding--
		x.mu.Unlock()
		ack(err)
	}
	x.acks = append(x.acks, wrapped)
	fn := x.ack
	x.mu.Unlock()
	if fn == nil {
		go wrapped(nil)
		return
	}
	fn(index, chunk, wrapped)
}

func (x *fakeSink[T]) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closes++
	return x.closeErr
}

func (x *fakeSink[T]) Writes() []T {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]T(nil), x.writes...)
}

func (x *fakeSink[T]) Closes() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closes
}

func (x *fakeSink[T]) Overlapped() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.overlapped
}

func (x *fakeSink[T]) Ack(index int) func(error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if index >= len(x.acks) {
		return nil
	}
	return x.acks[index]
}

func contextWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}
