package eventloop

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

// Loop is a single-goroutine task executor, owning a set of (non-thread-safe)
// resources, e.g. I/O handles and the state machines that wrap them.
//
// Every task submitted to a Loop, and every timer callback it fires, runs on
// the goroutine that called [Loop.Run], one at a time, in submission order.
// Code running on the loop may therefore mutate loop-owned state without
// locks. Code running elsewhere must hand work off, via [Loop.Submit] or
// [Loop.Execute].
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger     *logiface.Logger[logiface.Event]
	onOverload func(error)

	// State machine (cache-line padded internally)
	state *FastState

	// Task queue, guarded by queueMu. Never popped while holding the lock
	// and running a task.
	queue   *queue.Queue
	queueMu sync.Mutex

	// Wake-up mechanism, buffered (cap 1), sent to after every push.
	wake chan struct{}

	// Timers, loop-owned (only accessed on the loop goroutine).
	timers      timerHeap
	timerIndex  map[TimerID]*timer
	nextTimerID atomic.Uint64

	// Goroutine tracking
	loopGoroutineID atomic.Uint64

	// Loop termination signaling
	loopDone chan struct{}

	// Set by Close, to drop (rather than drain) queued tasks.
	discard atomic.Bool

	// Task batch buffer (avoid allocation)
	batchBuf []func()

	taskBudget int

	// Loop ID
	id uint64
}

var loopIDCounter atomic.Uint64

// New creates a new loop, in [StateAwake]. Call [Loop.Run] to start it.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Loop{
		logger:     cfg.logger,
		onOverload: cfg.onOverload,
		state:      NewFastState(),
		queue:      queue.New(),
		wake:       make(chan struct{}, 1),
		timers:     make(timerHeap, 0),
		timerIndex: make(map[TimerID]*timer),
		loopDone:   make(chan struct{}),
		batchBuf:   make([]func(), 0, cfg.taskBudget),
		taskBudget: cfg.taskBudget,
		id:         loopIDCounter.Add(1),
	}, nil
}

// Run runs the event loop and blocks until fully stopped.
//
// Run blocks until the loop terminates (via Shutdown(), Close(), or ctx
// cancellation). To run in a separate goroutine, use: `go loop.Run(ctx)`.
// If ctx is canceled, queued tasks are still drained, and ctx.Err() is
// returned.
func (l *Loop) Run(ctx context.Context) error {
	if l.IsLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.IsStopping() {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// Close loopDone when run exits to signal completion to Shutdown waiters
	defer close(l.loopDone)

	return l.run(ctx)
}

// run is the main loop goroutine.
func (l *Loop) run(ctx context.Context) error {
	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	for {
		if err := ctx.Err(); err != nil {
			l.beginTermination()
			l.shutdown()
			return err
		}

		if l.state.IsStopping() {
			l.shutdown()
			return nil
		}

		if l.tick() {
			l.sleep(ctx)
		}
	}
}

// tick is a single iteration of the event loop, it returns true if the loop
// may go idle.
func (l *Loop) tick() bool {
	// Execute expired timers
	l.runTimers()

	// Process queued tasks with budget
	remaining := l.processTasks()
	if remaining > 0 {
		if l.onOverload != nil {
			l.onOverload(ErrLoopOverloaded)
		}
		logOverload(l.logger, l.id, remaining)
		return false
	}

	return true
}

// processTasks runs up to taskBudget queued tasks, returning the number of
// tasks still queued.
func (l *Loop) processTasks() int {
	l.queueMu.Lock()
	for l.queue.Length() > 0 && len(l.batchBuf) < l.taskBudget {
		l.batchBuf = append(l.batchBuf, l.queue.Remove().(func()))
	}
	remaining := l.queue.Length()
	l.queueMu.Unlock()

	for i, task := range l.batchBuf {
		l.safeExecute(task)
		l.batchBuf[i] = nil // Clear for GC
	}
	l.batchBuf = l.batchBuf[:0]

	return remaining
}

// sleep blocks until a task is submitted, the next timer is due, or ctx is
// done.
func (l *Loop) sleep(ctx context.Context) {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}
	defer l.state.TryTransition(StateSleeping, StateRunning)

	var timerC <-chan time.Time
	if len(l.timers) > 0 {
		delay := time.Until(l.timers[0].when)
		if delay <= 0 {
			return
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		timerC = t.C
	}

	select {
	case <-l.wake:
	case <-timerC:
	case <-ctx.Done():
	}
}

// signal wakes the loop, if it is (or is about to go) idle.
func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// shutdown performs the shutdown sequence, on the loop goroutine.
//
// The queue is drained until it is observed empty, at which point the state
// is set to Terminated, under the same lock Submit checks it under, so no
// accepted task is ever stranded.
func (l *Loop) shutdown() {
	for {
		l.queueMu.Lock()
		if l.queue.Length() == 0 {
			l.state.Store(StateTerminated)
			l.queueMu.Unlock()
			break
		}
		if l.discard.Load() {
			for l.queue.Length() > 0 {
				l.queue.Remove()
			}
			l.queueMu.Unlock()
			continue
		}
		l.queueMu.Unlock()

		l.processTasks()
	}

	if n := len(l.timers); n > 0 {
		logTimersDropped(l.logger, l.id, n)
		l.timers = l.timers[:0]
		clear(l.timerIndex)
	}
}

// beginTermination moves the loop into StateTerminating (or StateTerminated,
// if it was never started), returning the state it transitioned from, and
// false if termination had already been requested.
func (l *Loop) beginTermination() (LoopState, bool) {
	for {
		current := l.state.Load()
		if current == StateTerminating || current == StateTerminated {
			return current, false
		}

		if current == StateAwake {
			// never started: nothing will drain the queue
			l.queueMu.Lock()
			if !l.state.TryTransition(StateAwake, StateTerminated) {
				l.queueMu.Unlock()
				continue
			}
			for l.queue.Length() > 0 {
				l.queue.Remove()
			}
			l.queueMu.Unlock()
			// Run can no longer succeed, so it will never close this
			close(l.loopDone)
			return current, true
		}

		if l.state.TryTransition(current, StateTerminating) {
			l.signal()
			return current, true
		}
	}
}

// Shutdown gracefully shuts down the event loop.
//
// Shutdown initiates graceful shutdown that waits for all queued tasks to
// complete. Pending timers are discarded. It blocks until termination
// completes or ctx expires, unless it is called from the loop goroutine, in
// which case it returns immediately, and the loop stops after the current
// task. Returns [ErrLoopTerminated] if termination was already requested.
func (l *Loop) Shutdown(ctx context.Context) error {
	from, ok := l.beginTermination()
	if !ok {
		return ErrLoopTerminated
	}

	if from == StateAwake || l.IsLoopThread() {
		return nil
	}

	// Wait for termination via channel, NOT polling
	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately terminates the event loop, discarding queued tasks and
// pending timers, without waiting for the loop goroutine to exit.
func (l *Loop) Close() error {
	l.discard.Store(true)
	if _, ok := l.beginTermination(); !ok {
		return ErrLoopTerminated
	}
	return nil
}

// Done returns a channel that is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// Submit submits a task to the queue. It is safe to call from any goroutine,
// including the loop itself, in which case the task runs after the current
// one (never inline).
//
// State Policy during shutdown:
//   - StateTerminated: returns ErrLoopTerminated
//   - StateTerminating: ALLOWS submission (loop needs to drain in-flight work)
//   - StateAwake/StateSleeping/StateRunning: normal operation
func (l *Loop) Submit(task func()) error {
	if task == nil {
		panic(`eventloop: nil task`)
	}

	l.queueMu.Lock()
	if l.state.Load() == StateTerminated {
		l.queueMu.Unlock()
		return ErrLoopTerminated
	}
	l.queue.Add(task)
	l.queueMu.Unlock()

	l.signal()

	return nil
}

// Execute runs task inline if called from the loop goroutine, otherwise it
// behaves like [Loop.Submit].
func (l *Loop) Execute(task func()) error {
	if l.IsLoopThread() {
		l.safeExecute(task)
		return nil
	}
	return l.Submit(task)
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// ID returns the process-unique identifier of the loop.
func (l *Loop) ID() uint64 {
	return l.id
}

// Logger returns the logger configured via [WithLogger], which may be nil.
func (l *Loop) Logger() *logiface.Logger[logiface.Event] {
	return l.logger
}

// safeExecute executes a task with panic recovery.
func (l *Loop) safeExecute(task func()) {
	if task == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logTaskPanicked(l.logger, l.id, r)
		}
	}()

	task()
}

// IsLoopThread reports whether the caller is running on the loop goroutine.
func (l *Loop) IsLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
