// Package eventloop provides a single-goroutine execution context, the
// "owning context" for a set of non-thread-safe resources.
//
// # Architecture
//
// A [Loop] runs tasks and timer callbacks, one at a time, on the goroutine
// that called [Loop.Run]. State owned by the loop is therefore only ever
// touched by one goroutine, and needs no locking. Work originating elsewhere
// (I/O completions on other goroutines, cancellation requests, etc) is handed
// off to the loop via [Loop.Submit], or [Loop.Execute], which runs inline
// when already on the loop.
//
// # Thread Safety
//
//   - [Loop.Submit], [Loop.Execute], [Loop.ScheduleTimer] and
//     [Loop.CancelTimer] are safe to call from any goroutine
//   - Tasks run in FIFO order; expired timers run before queued tasks, in
//     deadline order
//   - [Loop.IsLoopThread] identifies the loop goroutine, allowing callers to
//     choose between synchronous and handed-off execution
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go func() {
//	    _, _ = loop.ScheduleTimer(100*time.Millisecond, func() {
//	        fmt.Println("Hello after 100ms")
//	        _ = loop.Shutdown(context.Background())
//	    })
//	}()
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package eventloop
