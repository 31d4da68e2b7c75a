package bridge

import (
	"sync/atomic"

	"github.com/joeycumines/go-rxloop/rx"
)

// Sink is a callback-style destination accepting one chunk at a time.
type Sink[T any] interface {
	// Write starts writing chunk, calling ack exactly once, from any
	// goroutine, when the write has finished (nil) or failed.
	Write(chunk T, ack func(err error))

	// Close releases the sink. It is called exactly once, by [Pump].
	Close() error
}

type (
	pumpStream[T any] struct {
		e          Executor
		input      rx.Stream[T]
		sink       Sink[T]
		size       func(T) int64
		op         string
		subscribed bool // loop-confined
	}

	pumpSubscription[T any] struct {
		stream   *pumpStream[T]
		o        rx.Observer[int64]
		canceled atomic.Bool
		// fields below are accessed only on the loop
		upstream  rx.Subscription
		inputErr  error
		requested int64
		total     int64
		state     State
		owner     bool
		pending   bool
		writing   bool
		inputDone bool
		released  bool
	}
)

var _ rx.Subscription = (*pumpSubscription[any])(nil)

// Pump writes every chunk of input to sink, strictly sequentially: the next
// chunk is requested from input only after the previous write was
// acknowledged, so at most one write is ever outstanding.
//
// The returned stream emits the cumulative count (per size) after each
// acknowledged write, and completes after input completes, and the last
// write is acknowledged. A failed write fails the stream with an [IOError],
// and cancels input. The sink is closed exactly once, on completion,
// failure, or cancellation, and a close failure after a successful pump
// fails the stream. Nothing is written until the stream is subscribed and
// requested, and it supports a single subscriber.
//
// If size is nil, each chunk counts as 1.
func Pump[T any](e Executor, input rx.Stream[T], sink Sink[T], size func(T) int64, opts ...Option) rx.Stream[int64] {
	if e == nil {
		panic("bridge: nil executor")
	}
	if input == nil || sink == nil {
		panic("bridge: nil input or sink")
	}
	if size == nil {
		size = func(T) int64 { return 1 }
	}
	cfg := resolveOptions(opts)
	return &pumpStream[T]{
		e:     e,
		input: input,
		sink:  sink,
		size:  size,
		op:    cfg.operation,
	}
}

func (x *pumpStream[T]) Subscribe(o rx.Observer[int64]) rx.Subscription {
	s := &pumpSubscription[T]{stream: x, o: o}
	if err := x.e.Execute(s.start); err != nil {
		s.canceled.Store(true)
		o.OnError(err)
	}
	return s
}

func (x *pumpSubscription[T]) start() {
	if x.stream.subscribed {
		x.state = StateFailed
		if !x.canceled.Load() {
			x.o.OnError(ErrAlreadySubscribed)
		}
		return
	}
	x.stream.subscribed = true
	x.owner = true
	if x.canceled.Load() {
		x.state.terminate(StateCancelled)
		x.release()
		return
	}
	x.state.activate()
	x.upstream = x.stream.input.Subscribe(rx.ObserverFuncs[T]{
		Next:     x.inputNext,
		Error:    x.inputError,
		Complete: x.inputComplete,
	})
	x.pull()
}

func (x *pumpSubscription[T]) Request(n int64) {
	if x.canceled.Load() {
		return
	}
	confine(x.stream.e, func() {
		if x.state.Terminal() || x.canceled.Load() {
			return
		}
		if n <= 0 {
			x.fail(rx.InvalidRequestError(n))
			return
		}
		x.requested = rx.AddDemand(x.requested, n)
		x.pull()
	})
}

func (x *pumpSubscription[T]) Cancel() {
	if x.canceled.Swap(true) {
		return
	}
	confine(x.stream.e, func() {
		if x.owner && x.state.terminate(StateCancelled) {
			x.cancelUpstream()
			x.release()
		}
	})
}

// pull requests the next chunk, if there is demand for its count, and no
// write is outstanding.
func (x *pumpSubscription[T]) pull() {
	if x.state != StateActive || x.upstream == nil || x.pending || x.writing || x.inputDone || x.requested == 0 {
		return
	}
	x.pending = true
	x.upstream.Request(1)
}

func (x *pumpSubscription[T]) inputNext(chunk T) {
	x.pending = false
	if x.state.Terminal() {
		return
	}
	if x.writing {
		x.fail(ErrBackpressureViolation)
		return
	}
	x.writing = true
	n := x.stream.size(chunk)
	var acked atomic.Bool
	x.stream.sink.Write(chunk, func(err error) {
		if acked.Swap(true) {
			logDoubleCompletion(x.stream.e.Logger(), x.stream.op)
			return
		}
		confine(x.stream.e, func() { x.ack(n, err) })
	})
}

func (x *pumpSubscription[T]) ack(n int64, err error) {
	x.writing = false
	if x.state.Terminal() {
		return
	}
	if err != nil {
		x.fail(wrapIOError(x.stream.op, err))
		return
	}
	x.total += n
	if x.requested != rx.Unbounded {
		x.requested--
	}
	if !x.canceled.Load() {
		x.o.OnNext(x.total)
	}
	switch {
	case x.inputErr != nil:
		x.fail(x.inputErr)
	case x.inputDone:
		x.complete()
	default:
		x.pull()
	}
}

func (x *pumpSubscription[T]) inputError(err error) {
	x.pending = false
	if x.state.Terminal() {
		return
	}
	x.upstream = nil
	if x.writing {
		x.inputErr = err
		return
	}
	x.fail(err)
}

func (x *pumpSubscription[T]) inputComplete() {
	x.pending = false
	x.inputDone = true
	x.upstream = nil
	if x.state.Terminal() || x.writing {
		return
	}
	x.complete()
}

func (x *pumpSubscription[T]) complete() {
	if x.state != StateActive {
		return
	}
	if err := x.closeSink(); err != nil {
		x.fail(wrapIOError(x.stream.op, err))
		return
	}
	x.state.terminate(StateCompleted)
	if !x.canceled.Load() {
		x.o.OnComplete()
	}
}

func (x *pumpSubscription[T]) fail(err error) {
	if !x.state.terminate(StateFailed) {
		return
	}
	x.cancelUpstream()
	x.release()
	if !x.canceled.Load() {
		x.o.OnError(err)
	}
}

func (x *pumpSubscription[T]) cancelUpstream() {
	if x.upstream != nil {
		upstream := x.upstream
		x.upstream = nil
		upstream.Cancel()
	}
}

func (x *pumpSubscription[T]) release() {
	if err := x.closeSink(); err != nil {
		logCloseError(x.stream.e.Logger(), x.stream.op, err)
	}
}

func (x *pumpSubscription[T]) closeSink() error {
	if x.released || !x.owner {
		return nil
	}
	x.released = true
	return x.stream.sink.Close()
}
