package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-rxloop/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strLen(s string) int64 { return int64(len(s)) }

func TestPump_WritesSequentially(t *testing.T) {
	l := newTestLoop(t)
	sink := &fakeSink[string]{}
	chunks := []string{`a`, `bb`, `ccc`, `dddd`, `eeeee`}

	r := newRecorder[int64]()
	Pump[string](l, rx.FromSlice(chunks...), sink, strLen).Subscribe(r).Request(rx.Unbounded)

	r.Wait(t)
	require.NoError(t, r.Err())
	assert.Equal(t, []int64{1, 3, 6, 10, 15}, r.Values())
	assert.Equal(t, chunks, sink.Writes())
	assert.False(t, sink.Overlapped(), "more than one write outstanding")
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_WriteFailure(t *testing.T) {
	l := newTestLoop(t)
	native := errors.New(`disk full`)
	sink := &fakeSink[string]{
		ack: func(index int, chunk string, ack func(error)) {
			if index == 2 {
				go ack(native)
				return
			}
			go ack(nil)
		},
	}

	r := newRecorder[int64]()
	Pump[string](l, rx.FromSlice(`c1`, `c2`, `c3`, `c4`, `c5`), sink, nil, WithOperation(`write`)).
		Subscribe(r).
		Request(rx.Unbounded)

	r.Wait(t)
	assert.Equal(t, []int64{1, 2}, r.Values())
	assert.ErrorIs(t, r.Err(), native)
	var ioErr *IOError
	require.ErrorAs(t, r.Err(), &ioErr)
	assert.Equal(t, `write`, ioErr.Op)

	onLoop(t, l, func() {})
	assert.Equal(t, []string{`c1`, `c2`, `c3`}, sink.Writes(), "no write after the failure")
	assert.Equal(t, 1, sink.Closes())
	errs, completes := r.Terminals()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 0, completes)
}

func TestPump_SecondAckFails(t *testing.T) {
	l := newTestLoop(t)
	native := errors.New(`EIO`)
	sink := &fakeSink[string]{
		ack: func(index int, chunk string, ack func(error)) {
			if index == 1 {
				ack(native)
				return
			}
			ack(nil)
		},
	}

	r := newRecorder[int64]()
	Pump[string](l, rx.FromSlice(`chunk1`, `chunk2`), sink, strLen).Subscribe(r).Request(rx.Unbounded)

	r.Wait(t)
	assert.Equal(t, []int64{6}, r.Values())
	assert.ErrorIs(t, r.Err(), native)
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_RespectsDemand(t *testing.T) {
	l := newTestLoop(t)
	sink := &fakeSink[string]{}

	r := newRecorder[int64]()
	p := Pump[string](l, rx.FromSlice(`a`, `b`, `c`), sink, nil)
	onLoop(t, l, func() {})
	assert.Empty(t, sink.Writes(), "nothing written before subscription")

	sub := p.Subscribe(r)
	onLoop(t, l, func() {})
	assert.Empty(t, sink.Writes(), "nothing written before demand")

	sub.Request(1)
	require.Eventually(t, func() bool { return len(r.Values()) == 1 }, waitTimeout, time.Millisecond)
	onLoop(t, l, func() {})
	assert.Equal(t, []string{`a`}, sink.Writes())

	sub.Request(2)
	r.Wait(t)
	assert.Equal(t, []int64{1, 2, 3}, r.Values())
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_CancelDuringWrite(t *testing.T) {
	l := newTestLoop(t)
	sink := &fakeSink[string]{
		ack: func(int, string, func(error)) {},
	}

	r := newRecorder[int64]()
	sub := Pump[string](l, rx.FromSlice(`a`, `b`), sink, nil).Subscribe(r)
	sub.Request(rx.Unbounded)
	require.Eventually(t, func() bool { return len(sink.Writes()) == 1 }, waitTimeout, time.Millisecond)

	sub.Cancel()
	onLoop(t, l, func() {})
	assert.Equal(t, 1, sink.Closes())

	sink.Ack(0)(nil)
	onLoop(t, l, func() {})
	assert.Equal(t, []string{`a`}, sink.Writes())
	assert.Empty(t, r.Values())
	assert.False(t, r.Terminated())
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_CloseErrorFailsStream(t *testing.T) {
	l := newTestLoop(t)
	native := errors.New(`flush failed`)
	sink := &fakeSink[string]{closeErr: native}

	r := newRecorder[int64]()
	Pump[string](l, rx.Just(`a`), sink, nil).Subscribe(r).Request(rx.Unbounded)

	r.Wait(t)
	assert.Equal(t, []int64{1}, r.Values())
	assert.ErrorIs(t, r.Err(), native)
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_InputErrorWaitsForWrite(t *testing.T) {
	l := newTestLoop(t)
	native := errors.New(`read failed`)
	sink := &fakeSink[string]{
		ack: func(int, string, func(error)) {},
	}
	input := rx.StreamFunc[string](func(o rx.Observer[string]) rx.Subscription {
		return rx.SubscriptionFuncs{
			RequestFunc: func(int64) {
				o.OnNext(`a`)
				o.OnError(native)
			},
		}
	})

	r := newRecorder[int64]()
	Pump[string](l, input, sink, nil).Subscribe(r).Request(rx.Unbounded)
	require.Eventually(t, func() bool { return len(sink.Writes()) == 1 }, waitTimeout, time.Millisecond)
	onLoop(t, l, func() {})
	assert.False(t, r.Terminated(), "failed while a write was outstanding")
	assert.Equal(t, 0, sink.Closes())

	sink.Ack(0)(nil)
	r.Wait(t)
	assert.Equal(t, []int64{1}, r.Values())
	assert.ErrorIs(t, r.Err(), native)
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_DuplicateAckIgnored(t *testing.T) {
	l := newTestLoop(t)
	sink := &fakeSink[string]{
		ack: func(_ int, _ string, ack func(error)) {
			go func() {
				ack(nil)
				ack(errors.New(`late`))
			}()
		},
	}

	r := newRecorder[int64]()
	Pump[string](l, rx.FromSlice(`a`, `b`, `c`), sink, nil).Subscribe(r).Request(rx.Unbounded)

	r.Wait(t)
	assert.NoError(t, r.Err())
	assert.Equal(t, []int64{1, 2, 3}, r.Values())
}

func TestPump_EmptyInput(t *testing.T) {
	l := newTestLoop(t)
	sink := &fakeSink[string]{}

	r := newRecorder[int64]()
	Pump[string](l, rx.Empty[string](), sink, nil).Subscribe(r).Request(1)

	r.Wait(t)
	assert.NoError(t, r.Err())
	assert.Empty(t, r.Values())
	assert.Equal(t, 1, sink.Closes())
}

func TestPump_SingleSubscriber(t *testing.T) {
	l := newTestLoop(t)
	sink := &fakeSink[string]{}
	p := Pump[string](l, rx.Just(`a`), sink, nil)

	first := newRecorder[int64]()
	p.Subscribe(first).Request(1)
	second := newRecorder[int64]()
	p.Subscribe(second)

	first.Wait(t)
	second.Wait(t)
	assert.NoError(t, first.Err())
	assert.ErrorIs(t, second.Err(), ErrAlreadySubscribed)
	assert.Equal(t, 1, sink.Closes())
}
