package rxfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-rxloop/bridge"
	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/joeycumines/go-rxloop/rx"
	"github.com/valyala/bytebufferpool"
)

// OpenOptions are the flags for [FileSystem.Open]. Read is implied, unless
// Write or Append is set.
type OpenOptions struct {
	Perm      fs.FileMode
	Read      bool
	Write     bool
	Append    bool
	Create    bool
	CreateNew bool
	Truncate  bool
}

func (x OpenOptions) flags() int {
	var flag int
	writable := x.Write || x.Append
	switch {
	case writable && x.Read:
		flag = os.O_RDWR
	case writable:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	if x.Append {
		flag |= os.O_APPEND
	}
	if x.Create || x.CreateNew {
		flag |= os.O_CREATE
	}
	if x.CreateNew {
		flag |= os.O_EXCL
	}
	if x.Truncate {
		flag |= os.O_TRUNC
	}
	return flag
}

func (x OpenOptions) perm() fs.FileMode {
	if x.Perm == 0 {
		return 0o666
	}
	return x.Perm
}

// File is an open file, readable as a [bridge.Source], see [File.Read], and
// writable via [File.Write]. Reads are sequential from the start of the file, and
// independent of writes, which are sequential from the position implied by
// the open flags.
type File struct {
	fs     *FileSystem
	f      *os.File
	path   string
	closed atomic.Bool
	once   sync.Once
	err    error
	// fields below are accessed only on the loop
	onData  func([]byte)
	onEnd   func()
	onError func(error)
	readPos int64
	paused  bool
	reading bool
	eof     bool
}

// fileSink adapts a File to [bridge.Sink].
type fileSink struct{ *File }

var (
	_ bridge.Source[[]byte] = (*File)(nil)
	_ bridge.Sink[[]byte]   = fileSink{}
)

const categoryRxfs = `rxfs`

// only observed if a subscription races its own cancellation
var errFileAbandoned = errors.New("rxfs: file already closed by canceled subscription")

// Open opens the file at path.
func (x *FileSystem) Open(path string, opts OpenOptions) *bridge.Future[*File] {
	return call(x, `open`, func() (*File, error) {
		f, err := os.OpenFile(path, opts.flags(), opts.perm())
		if err != nil {
			return nil, err
		}
		return &File{fs: x, f: f, path: path, paused: true}, nil
	})
}

// Path returns the path the file was opened with.
func (x *File) Path() string {
	return x.path
}

// Read returns a stream of the chunks of the file, see [bridge.FromSource].
// The file is closed once the stream terminates, for any reason.
func (x *File) Read(opts ...bridge.Option) rx.Stream[[]byte] {
	return bridge.FromSource[[]byte](x.fs.e, x, append([]bridge.Option{bridge.WithOperation(`read`)}, opts...)...)
}

// Write writes every chunk of input to the file, see [bridge.Pump],
// emitting the running total of bytes written. The file is closed once the
// stream terminates, for any reason.
func (x *File) Write(input rx.Stream[[]byte]) rx.Stream[int64] {
	return bridge.Pump[[]byte](x.fs.e, input, fileSink{x}, chunkLen, bridge.WithOperation(`write`))
}

// Close closes the file. It is safe to call more than once, from any
// goroutine, and always returns the result of the first call.
func (x *File) Close() error {
	x.once.Do(func() {
		x.closed.Store(true)
		x.err = x.f.Close()
	})
	return x.err
}

func (x *File) Handler(fn func(value []byte)) { x.onData = fn }

func (x *File) EndHandler(fn func()) { x.onEnd = fn }

func (x *File) ExceptionHandler(fn func(err error)) { x.onError = fn }

func (x *File) Pause() {
	x.paused = true
}

func (x *File) Resume() {
	x.paused = false
	x.readNext()
}

// Write writes chunk on a separate goroutine.
func (x fileSink) Write(chunk []byte, ack func(err error)) {
	go func() {
		if x.closed.Load() {
			ack(fs.ErrClosed)
			return
		}
		if err := x.fs.sem.Acquire(context.Background(), 1); err != nil {
			ack(err)
			return
		}
		defer x.fs.sem.Release(1)
		_, err := x.f.Write(chunk)
		ack(err)
	}()
}

// readNext starts reading the next chunk, unless paused, or a read is in
// flight.
func (x *File) readNext() {
	if x.paused || x.reading || x.eof || x.closed.Load() {
		return
	}
	x.reading = true
	pos := x.readPos
	size := x.fs.chunkSize
	go func() {
		buf := make([]byte, size)
		var (
			n   int
			err error
		)
		if err = x.fs.sem.Acquire(context.Background(), 1); err == nil {
			n, err = x.f.ReadAt(buf, pos)
			x.fs.sem.Release(1)
		}
		// dropped if the loop has terminated, nothing remains to observe it
		_ = x.fs.e.Submit(func() { x.onRead(buf[:n], err) })
	}()
}

func (x *File) onRead(chunk []byte, err error) {
	x.reading = false
	if x.closed.Load() {
		return
	}
	x.readPos += int64(len(chunk))
	if len(chunk) != 0 && x.onData != nil {
		x.onData(chunk)
	}
	if x.closed.Load() {
		return
	}
	switch {
	case errors.Is(err, io.EOF):
		x.eof = true
		if x.onEnd != nil {
			x.onEnd()
		}
	case err != nil:
		if x.onError != nil {
			x.onError(err)
		}
	default:
		x.readNext()
	}
}

func chunkLen(chunk []byte) int64 {
	return int64(len(chunk))
}

// Using returns a cold stream that opens the file at path on subscription,
// then emits the values of the stream fn returns for it. That stream owns the
// file, e.g. [File.Read] and [File.Write] close it once they terminate. If the
// subscription is canceled or fails before fn is called, the file is closed
// as soon as the open completes.
func Using[U any](fsys *FileSystem, path string, opts OpenOptions, fn func(f *File) rx.Stream[U]) rx.Stream[U] {
	return rx.Defer(func() rx.Stream[U] {
		var (
			open    = fsys.Open(path, opts)
			claimed atomic.Bool
			once    sync.Once
		)
		abandon := func() {
			once.Do(func() {
				rx.Subscribe[*File](open, func(f *File) {
					if !claimed.Swap(true) {
						fsys.closeAbandoned(f)
					}
				}, nil, nil)
			})
		}
		stream := rx.FlatMap[*File, U](open, func(f *File) rx.Stream[U] {
			if claimed.Swap(true) {
				return rx.Fail[U](errFileAbandoned)
			}
			return fn(f)
		})
		return rx.StreamFunc[U](func(o rx.Observer[U]) rx.Subscription {
			sub := stream.Subscribe(rx.ObserverFuncs[U]{
				Next: o.OnNext,
				Error: func(err error) {
					abandon()
					o.OnError(err)
				},
				Complete: o.OnComplete,
			})
			return rx.SubscriptionFuncs{
				RequestFunc: sub.Request,
				CancelFunc: func() {
					sub.Cancel()
					abandon()
				},
			}
		})
	})
}

func (x *FileSystem) closeAbandoned(f *File) {
	if err := f.Close(); err != nil {
		x.e.Logger().Warning().
			Str(eventloop.FieldCategory, categoryRxfs).
			Str(`path`, f.Path()).
			Err(err).
			Log(`rxfs: failed to close abandoned file`)
	}
}

// ReadFileChunked returns a stream of the chunks of the file at path. The
// file is opened on subscription, and closed once the stream terminates.
func (x *FileSystem) ReadFileChunked(path string) rx.Stream[[]byte] {
	return Using(x, path, OpenOptions{Read: true}, func(f *File) rx.Stream[[]byte] {
		return f.Read()
	})
}

// ReadFile returns a stream of a single value, the entire contents of the
// file at path.
func (x *FileSystem) ReadFile(path string) rx.Stream[[]byte] {
	contents := rx.Reduce(x.ReadFileChunked(path), bytebufferpool.Get, func(b *bytebufferpool.ByteBuffer, chunk []byte) *bytebufferpool.ByteBuffer {
		_, _ = b.Write(chunk)
		return b
	})
	return rx.Map(contents, func(b *bytebufferpool.ByteBuffer) []byte {
		data := append([]byte(nil), b.B...)
		bytebufferpool.Put(b)
		return data
	})
}

// WriteFile writes data to the file at path, creating or truncating it,
// emitting the number of bytes written.
func (x *FileSystem) WriteFile(path string, data []byte) rx.Stream[int64] {
	return Using(x, path, OpenOptions{Write: true, Create: true, Truncate: true}, func(f *File) rx.Stream[int64] {
		return f.Write(rx.Just(data))
	})
}
