package rx

// Map returns a stream applying fn to each value of s. Demand and
// cancellation pass straight through.
func Map[T, U any](s Stream[T], fn func(T) U) Stream[U] {
	return StreamFunc[U](func(o Observer[U]) Subscription {
		return s.Subscribe(ObserverFuncs[T]{
			Next:     func(value T) { o.OnNext(fn(value)) },
			Error:    o.OnError,
			Complete: o.OnComplete,
		})
	})
}

// Reduce returns a stream emitting a single value, the result of folding
// every value of s into an accumulator, initialized per subscription by
// seed. Upstream is requested (unbounded) on the first downstream request.
func Reduce[T, A any](s Stream[T], seed func() A, accumulator func(A, T) A) Stream[A] {
	return StreamFunc[A](func(o Observer[A]) Subscription {
		r := &reducer[T, A]{o: o, acc: seed(), fn: accumulator}
		r.upstream = s.Subscribe(r)
		return r
	})
}

// FlatMap returns a stream that maps each value of s to an inner stream, and
// emits the values of each inner stream, sequentially (the next value of s
// is only requested after the previous inner stream completes).
func FlatMap[T, U any](s Stream[T], fn func(T) Stream[U]) Stream[U] {
	return StreamFunc[U](func(o Observer[U]) Subscription {
		f := &flatMap[T, U]{o: o, fn: fn}
		f.outer = s.Subscribe(ObserverFuncs[T]{
			Next:     f.outerNext,
			Error:    f.fail,
			Complete: f.outerComplete,
		})
		return f
	})
}

type reducer[T, A any] struct {
	o         Observer[A]
	upstream  Subscription
	acc       A
	fn        func(A, T) A
	requested bool
	started   bool
	completed bool
	done      bool
}

func (x *reducer[T, A]) OnNext(value T) {
	if x.done {
		return
	}
	x.acc = x.fn(x.acc, value)
}

func (x *reducer[T, A]) OnError(err error) {
	if x.done {
		return
	}
	x.done = true
	x.o.OnError(err)
}

func (x *reducer[T, A]) OnComplete() {
	if x.done {
		return
	}
	x.completed = true
	x.emit()
}

func (x *reducer[T, A]) Request(n int64) {
	if x.done {
		return
	}
	if n <= 0 {
		x.done = true
		x.upstream.Cancel()
		x.o.OnError(InvalidRequestError(n))
		return
	}
	x.requested = true
	if !x.started {
		x.started = true
		x.upstream.Request(Unbounded)
	}
	x.emit()
}

func (x *reducer[T, A]) Cancel() {
	if x.done {
		return
	}
	x.done = true
	x.upstream.Cancel()
}

func (x *reducer[T, A]) emit() {
	if x.completed && x.requested && !x.done {
		x.done = true
		x.o.OnNext(x.acc)
		x.o.OnComplete()
	}
}

type flatMap[T, U any] struct {
	o            Observer[U]
	fn           func(T) Stream[U]
	outer        Subscription
	inner        *flatInner[T, U]
	requested    int64
	outerPending bool
	outerDone    bool
	done         bool
}

type flatInner[T, U any] struct {
	parent   *flatMap[T, U]
	sub      Subscription
	finished bool
}

func (x *flatMap[T, U]) Request(n int64) {
	if x.done {
		return
	}
	if n <= 0 {
		x.fail(InvalidRequestError(n))
		return
	}
	x.requested = AddDemand(x.requested, n)
	if x.inner != nil {
		if x.inner.sub != nil {
			x.inner.sub.Request(n)
		}
		return
	}
	x.pullOuter()
}

func (x *flatMap[T, U]) Cancel() {
	if x.done {
		return
	}
	x.done = true
	x.cancelAll()
}

func (x *flatMap[T, U]) cancelAll() {
	if x.outer != nil {
		x.outer.Cancel()
	}
	if x.inner != nil && x.inner.sub != nil {
		x.inner.sub.Cancel()
	}
}

func (x *flatMap[T, U]) pullOuter() {
	if x.done || x.outerDone || x.outerPending || x.requested == 0 || x.outer == nil {
		return
	}
	x.outerPending = true
	x.outer.Request(1)
}

func (x *flatMap[T, U]) outerNext(value T) {
	x.outerPending = false
	if x.done {
		return
	}
	in := &flatInner[T, U]{parent: x}
	x.inner = in
	sub := x.fn(value).Subscribe(in)
	if in.finished || x.done {
		if x.done {
			sub.Cancel()
		}
		return
	}
	in.sub = sub
	if x.requested > 0 {
		sub.Request(x.requested)
	}
}

func (x *flatMap[T, U]) outerComplete() {
	x.outerPending = false
	x.outerDone = true
	if x.inner == nil && !x.done {
		x.done = true
		x.o.OnComplete()
	}
}

func (x *flatMap[T, U]) fail(err error) {
	if x.done {
		return
	}
	x.done = true
	x.cancelAll()
	x.o.OnError(err)
}

func (x *flatInner[T, U]) OnNext(value U) {
	p := x.parent
	if p.done || p.inner != x {
		return
	}
	if p.requested != Unbounded {
		p.requested--
	}
	p.o.OnNext(value)
}

func (x *flatInner[T, U]) OnError(err error) {
	p := x.parent
	if p.done || p.inner != x {
		return
	}
	x.finished = true
	p.inner = nil
	p.fail(err)
}

func (x *flatInner[T, U]) OnComplete() {
	p := x.parent
	if p.done || p.inner != x {
		return
	}
	x.finished = true
	p.inner = nil
	if p.outerDone {
		p.done = true
		p.o.OnComplete()
		return
	}
	p.pullOuter()
}
