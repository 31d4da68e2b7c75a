package bridge

import (
	"time"

	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/joeycumines/logiface"
)

// Executor is the owning execution context of a bridge, i.e. the event loop
// on which the wrapped operation delivers its callbacks. It is implemented by
// [eventloop.Loop].
type Executor interface {
	// Submit queues task, to run on the loop, never inline.
	Submit(task func()) error

	// Execute runs task inline if called on the loop, otherwise it submits
	// it.
	Execute(task func()) error

	// IsLoopThread reports whether the caller is running on the loop.
	IsLoopThread() bool

	ScheduleTimer(delay time.Duration, fn func()) (eventloop.TimerID, error)
	CancelTimer(id eventloop.TimerID) error

	// Logger may return nil.
	Logger() *logiface.Logger[logiface.Event]
}

var _ Executor = (*eventloop.Loop)(nil)

// confine runs task on the loop (inline if already there). If the loop has
// terminated, task runs on the calling goroutine instead, which is safe, as
// nothing else can be running on the loop at that point.
func confine(e Executor, task func()) {
	if err := e.Execute(task); err != nil {
		task()
	}
}
