package rx

import (
	"fmt"
	"math"
)

// Unbounded is the demand that effectively disables backpressure.
const Unbounded int64 = math.MaxInt64

type (
	// Observer receives the signals of a [Stream]: zero or more OnNext calls,
	// never more than the outstanding demand, followed by at most one of
	// OnError or OnComplete. No signal follows OnError or OnComplete, and no
	// signal is delivered after the Subscription is canceled.
	//
	// Signals are serialized, i.e. never delivered concurrently.
	Observer[T any] interface {
		OnNext(value T)
		OnError(err error)
		OnComplete()
	}

	// Subscription is the link between a [Stream] and an [Observer], and
	// the channel through which the observer signals demand.
	Subscription interface {
		// Request adds n to the outstanding demand. Values less than 1 fail
		// the stream. Saturates at Unbounded.
		Request(n int64)

		// Cancel detaches the observer, releasing any associated resources.
		// Idempotent.
		Cancel()
	}

	// Stream models an asynchronous sequence of values, which may be
	// subscribed to. Whether each subscription observes the same values
	// (multicast) or the stream may be subscribed to at most once (unicast)
	// is defined by each implementation.
	Stream[T any] interface {
		Subscribe(o Observer[T]) Subscription
	}

	// StreamFunc implements [Stream].
	StreamFunc[T any] func(o Observer[T]) Subscription

	// ObserverFuncs implements [Observer] using optional callbacks.
	ObserverFuncs[T any] struct {
		Next     func(value T)
		Error    func(err error)
		Complete func()
	}

	// SubscriptionFuncs implements [Subscription] using optional callbacks.
	SubscriptionFuncs struct {
		RequestFunc func(n int64)
		CancelFunc  func()
	}

	noopSubscription struct{}
)

var (
	// compile time assertions

	_ Stream[any]   = StreamFunc[any](nil)
	_ Observer[any] = ObserverFuncs[any]{}
	_ Subscription  = SubscriptionFuncs{}
	_ Subscription  = noopSubscription{}
)

func (x StreamFunc[T]) Subscribe(o Observer[T]) Subscription { return x(o) }

func (x ObserverFuncs[T]) OnNext(value T) {
	if x.Next != nil {
		x.Next(value)
	}
}

func (x ObserverFuncs[T]) OnError(err error) {
	if x.Error != nil {
		x.Error(err)
	}
}

func (x ObserverFuncs[T]) OnComplete() {
	if x.Complete != nil {
		x.Complete()
	}
}

func (x SubscriptionFuncs) Request(n int64) {
	if x.RequestFunc != nil {
		x.RequestFunc(n)
	}
}

func (x SubscriptionFuncs) Cancel() {
	if x.CancelFunc != nil {
		x.CancelFunc()
	}
}

func (noopSubscription) Request(int64) {}

func (noopSubscription) Cancel() {}

// NoopSubscription returns a Subscription that ignores all calls, e.g. for
// streams that terminate within Subscribe.
func NoopSubscription() Subscription { return noopSubscription{} }

// Subscribe subscribes to s using the provided callbacks (any of which may be
// nil), and requests [Unbounded] demand.
func Subscribe[T any](s Stream[T], next func(T), err func(error), complete func()) Subscription {
	sub := s.Subscribe(ObserverFuncs[T]{Next: next, Error: err, Complete: complete})
	sub.Request(Unbounded)
	return sub
}

// AddDemand returns current+n, saturating at [Unbounded].
func AddDemand(current, n int64) int64 {
	if current >= Unbounded-n {
		return Unbounded
	}
	return current + n
}

// InvalidRequestError is the error streams fail with, when Request is called
// with a non-positive n.
func InvalidRequestError(n int64) error {
	return fmt.Errorf("rx: invalid request: %d", n)
}
