package eventloop

import (
	"container/heap"
	"time"
)

// TimerID identifies a timer scheduled via [Loop.ScheduleTimer].
// IDs are unique per loop, and never reused.
type TimerID uint64

// timer represents a scheduled task
type timer struct {
	when  time.Time
	fn    func()
	id    TimerID
	index int // heap index, maintained by timerHeap
}

// timerHeap is a min-heap of timers, ordered by deadline then ID (FIFO for
// equal deadlines).
type timerHeap []*timer

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	x.index = -1
	*h = old[:n-1]
	return x
}

// ScheduleTimer schedules fn to be executed on the loop, once, after the
// specified delay. Negative delays are treated as zero. It is safe to call
// from any goroutine.
//
// The returned ID may be passed to [Loop.CancelTimer].
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) (TimerID, error) {
	if fn == nil {
		panic(`eventloop: nil timer callback`)
	}
	if delay < 0 {
		delay = 0
	}

	t := &timer{
		when: time.Now().Add(delay),
		fn:   fn,
		id:   TimerID(l.nextTimerID.Add(1)),
	}

	if err := l.Execute(func() { l.addTimer(t) }); err != nil {
		return 0, err
	}

	return t.id, nil
}

// CancelTimer cancels a timer scheduled via [Loop.ScheduleTimer].
//
// On the loop goroutine, cancellation is synchronous, and ErrTimerNotFound is
// returned if the timer already fired, was already canceled, or never
// existed. From any other goroutine, the cancellation is handed off to the
// loop, and nil is returned unless the loop has terminated.
func (l *Loop) CancelTimer(id TimerID) error {
	if l.IsLoopThread() {
		return l.removeTimer(id)
	}
	return l.Submit(func() { _ = l.removeTimer(id) })
}

func (l *Loop) addTimer(t *timer) {
	heap.Push(&l.timers, t)
	l.timerIndex[t.id] = t
}

func (l *Loop) removeTimer(id TimerID) error {
	t, ok := l.timerIndex[id]
	if !ok {
		return ErrTimerNotFound
	}
	delete(l.timerIndex, id)
	heap.Remove(&l.timers, t.index)
	return nil
}

// runTimers executes all expired timers.
func (l *Loop) runTimers() {
	now := time.Now()
	for len(l.timers) > 0 {
		if l.timers[0].when.After(now) {
			break
		}
		t := heap.Pop(&l.timers).(*timer)
		delete(l.timerIndex, t.id)
		l.safeExecute(t.fn)
	}
}
