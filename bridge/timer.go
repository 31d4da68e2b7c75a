package bridge

import (
	"time"

	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/joeycumines/go-rxloop/rx"
)

// Tick is a single timer firing.
type Tick struct {
	// At is the time the timer fired.
	At time.Time
	// Seq is the 1-based index of the firing, within its timer.
	Seq int64
}

// OneShot returns a future completed with a single [Tick], after delay. Like
// all futures, the timer is started immediately, and observed by any number
// of subscribers.
func OneShot(e Executor, delay time.Duration, opts ...Option) *Future[Tick] {
	f, cb := NewFuture[Tick](e, opts...)
	if _, err := e.ScheduleTimer(delay, func() {
		cb(Tick{At: time.Now(), Seq: 1}, nil)
	}); err != nil {
		cb(Tick{}, err)
	}
	return f
}

// Periodic returns a stream of ticks, every interval (measured from the
// previous tick's delivery). Each subscriber gets its own timer, started on
// first request, and stopped while there is no outstanding demand, so ticks
// never queue up behind a slow consumer. Cancelling the subscription stops
// the timer: no tick delivery starts after Cancel returns.
func Periodic(e Executor, interval time.Duration, opts ...Option) rx.Stream[Tick] {
	if e == nil {
		panic("bridge: nil executor")
	}
	if interval <= 0 {
		panic("bridge: non-positive interval")
	}
	return rx.StreamFunc[Tick](func(o rx.Observer[Tick]) rx.Subscription {
		return FromSource[Tick](e, &timerSource{e: e, interval: interval, paused: true}, opts...).Subscribe(o)
	})
}

// timerSource adapts a self-rescheduling loop timer to [Source]. The timer
// handle is only ever touched on the loop, so a cancel and a firing can
// never interleave.
type timerSource struct {
	e         Executor
	handler   func(Tick)
	onError   func(error)
	interval  time.Duration
	id        eventloop.TimerID
	seq       int64
	scheduled bool
	paused    bool
	closed    bool
}

func (x *timerSource) Handler(fn func(value Tick)) { x.handler = fn }

func (x *timerSource) EndHandler(func()) {}

func (x *timerSource) ExceptionHandler(fn func(err error)) { x.onError = fn }

func (x *timerSource) Pause() {
	x.paused = true
	x.stop()
}

func (x *timerSource) Resume() {
	x.paused = false
	x.schedule()
}

func (x *timerSource) Close() error {
	x.closed = true
	x.stop()
	return nil
}

func (x *timerSource) schedule() {
	if x.closed || x.paused || x.scheduled {
		return
	}
	id, err := x.e.ScheduleTimer(x.interval, x.fire)
	if err != nil {
		if x.onError != nil {
			x.onError(err)
		}
		return
	}
	x.id = id
	x.scheduled = true
}

func (x *timerSource) stop() {
	if !x.scheduled {
		return
	}
	x.scheduled = false
	_ = x.e.CancelTimer(x.id)
}

func (x *timerSource) fire() {
	x.scheduled = false
	if x.closed || x.paused {
		return
	}
	x.seq++
	if x.handler != nil {
		x.handler(Tick{At: time.Now(), Seq: x.seq})
	}
	x.schedule()
}
