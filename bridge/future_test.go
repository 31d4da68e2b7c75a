package bridge

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/joeycumines/go-rxloop/rx"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_OperationStartedOnce(t *testing.T) {
	l := newTestLoop(t)

	var calls atomic.Int32
	f := Bridge(l, func(cb Callback[int]) {
		calls.Add(1)
		_, err := l.ScheduleTimer(10*time.Millisecond, func() { cb(42, nil) })
		require.NoError(t, err)
	})
	assert.Equal(t, int32(1), calls.Load(), "operation should start before any subscription")

	recorders := make([]*recorder[int], 3)
	for i := range recorders {
		recorders[i] = newRecorder[int]()
		f.Subscribe(recorders[i]).Request(1)
	}
	for _, r := range recorders {
		r.Wait(t)
		assert.Equal(t, []int{42}, r.Values())
		assert.NoError(t, r.Err())
	}

	late := newRecorder[int]()
	f.Subscribe(late).Request(rx.Unbounded)
	late.Wait(t)
	assert.Equal(t, []int{42}, late.Values())

	assert.Equal(t, int32(1), calls.Load())
	outcome, ok := f.Outcome()
	require.True(t, ok)
	assert.Equal(t, 42, outcome.Value)
}

func TestFuture_ReplayIsSynchronousOnLoop(t *testing.T) {
	l := newTestLoop(t)
	f := Resolved(l, `done`)
	<-f.Done()

	onLoop(t, l, func() {
		r := newRecorder[string]()
		rx.Subscribe[string](f, r.OnNext, r.OnError, r.OnComplete)
		assert.Equal(t, []string{`done`}, r.Values())
		assert.True(t, r.Terminated())
	})
}

func TestFuture_Failure(t *testing.T) {
	l := newTestLoop(t)
	native := io.ErrUnexpectedEOF

	f := Bridge(l, func(cb Callback[int]) {
		go cb(0, native)
	}, WithOperation(`read`))

	var rs []*recorder[int]
	for i := 0; i < 2; i++ {
		r := newRecorder[int]()
		f.Subscribe(r)
		rs = append(rs, r)
	}
	for _, r := range rs {
		r.Wait(t)
		assert.Empty(t, r.Values())
		err := r.Err()
		require.ErrorIs(t, err, native)
		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, `read`, ioErr.Op)
		errs, completes := r.Terminals()
		assert.Equal(t, 1, errs)
		assert.Equal(t, 0, completes)
	}
}

func TestFuture_DoubleCompletionIgnored(t *testing.T) {
	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(writerFunc(func(p []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			return buf.Write(p)
		}))),
		stumpy.L.WithLevel(stumpy.L.LevelDebug()),
	).Logger()
	l := newTestLoop(t, eventloop.WithLogger(logger))

	f, cb := NewFuture[string](l)
	cb(`first`, nil)
	cb(`second`, nil)
	cb(``, errors.New(`third`))

	r := newRecorder[string]()
	f.Subscribe(r).Request(1)
	r.Wait(t)
	assert.Equal(t, []string{`first`}, r.Values())
	assert.NoError(t, r.Err())

	onLoop(t, l, func() {})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, strings.Count(buf.String(), `ignored extra completion`))
}

func TestFuture_RespectsDemand(t *testing.T) {
	l := newTestLoop(t)
	f := Resolved(l, 7)

	r := newRecorder[int]()
	sub := f.Subscribe(r)
	onLoop(t, l, func() {})
	assert.Empty(t, r.Values(), "no value without demand")
	assert.False(t, r.Terminated())

	sub.Request(1)
	r.Wait(t)
	assert.Equal(t, []int{7}, r.Values())
}

func TestFuture_CancelBeforeCompletion(t *testing.T) {
	l := newTestLoop(t)
	f, cb := NewFuture[int](l)

	r := newRecorder[int]()
	sub := f.Subscribe(r)
	sub.Request(1)
	sub.Cancel()

	cb(1, nil)
	<-f.Done()
	onLoop(t, l, func() {})

	assert.Empty(t, r.Values())
	assert.False(t, r.Terminated())

	other := newRecorder[int]()
	f.Subscribe(other).Request(1)
	other.Wait(t)
	assert.Equal(t, []int{1}, other.Values())
}

func TestFuture_InvalidRequest(t *testing.T) {
	l := newTestLoop(t)
	f, _ := NewFuture[int](l)

	r := newRecorder[int]()
	f.Subscribe(r).Request(0)
	r.Wait(t)
	assert.Error(t, r.Err())
}

func TestFuture_SubscribeAfterLoopTerminated(t *testing.T) {
	l, err := eventloop.New()
	require.NoError(t, err)

	completed, cb := NewFuture[int](l)
	pending, _ := NewFuture[int](l)
	require.NoError(t, l.Close())
	// settled directly, as the loop can no longer accept the hand-off
	cb(5, nil)

	<-completed.Done()
	r := newRecorder[int]()
	completed.Subscribe(r).Request(1)
	r.Wait(t)
	assert.Equal(t, []int{5}, r.Values())

	r = newRecorder[int]()
	pending.Subscribe(r).Request(1)
	r.Wait(t)
	assert.ErrorIs(t, r.Err(), eventloop.ErrLoopTerminated)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
