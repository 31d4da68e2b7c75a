package rx

// FromSlice returns a cold stream, emitting items, in order, to each
// subscriber, as demand allows. Emission happens on the goroutine calling
// Request (recursive requests, from within OnNext, are trampolined).
func FromSlice[T any](items ...T) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Subscription {
		if len(items) == 0 {
			o.OnComplete()
			return NoopSubscription()
		}
		return &sliceSubscription[T]{items: items, o: o}
	})
}

// Just returns a cold stream emitting a single value.
func Just[T any](value T) Stream[T] {
	return FromSlice(value)
}

// Empty returns a stream that completes immediately on subscribe.
func Empty[T any]() Stream[T] {
	return FromSlice[T]()
}

// Fail returns a stream that fails immediately on subscribe.
func Fail[T any](err error) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Subscription {
		o.OnError(err)
		return NoopSubscription()
	})
}

type sliceSubscription[T any] struct {
	o         Observer[T]
	items     []T
	index     int
	requested int64
	emitting  bool
	done      bool
}

func (x *sliceSubscription[T]) Request(n int64) {
	if x.done {
		return
	}
	if n <= 0 {
		x.done = true
		x.o.OnError(InvalidRequestError(n))
		return
	}

	x.requested = AddDemand(x.requested, n)
	if x.emitting {
		return
	}
	x.emitting = true
	defer func() { x.emitting = false }()

	for !x.done && x.requested > 0 && x.index < len(x.items) {
		value := x.items[x.index]
		x.index++
		if x.requested != Unbounded {
			x.requested--
		}
		x.o.OnNext(value)
	}

	if !x.done && x.index == len(x.items) {
		x.done = true
		x.o.OnComplete()
	}
}

func (x *sliceSubscription[T]) Cancel() {
	x.done = true
}

// Defer returns a stream that calls factory for each subscriber, subscribing
// to the stream it returns. Use it to make a hot stream (e.g. a future)
// start only on subscription.
func Defer[T any](factory func() Stream[T]) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Subscription {
		return factory().Subscribe(o)
	})
}
