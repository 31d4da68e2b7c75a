// Package bridge adapts callback-style asynchronous operations, owned by an
// event loop, to the demand-driven streams of package rx.
//
// Four bridges are provided:
//
//   - [Future] (see [Bridge], [Go] and [OneShot]) memoizes a single
//     callback-style result, and replays it to any number of subscribers.
//   - [FromSource] adapts a push-style [Source] with pause/resume, mapping
//     consumer demand onto the source's flow control.
//   - [Pump] writes a stream into a [Sink], one acknowledged write at a time.
//   - [Periodic] is a stream of timer ticks, paused while there is no demand.
//
// Every bridge follows the same lifecycle, see [State], and delivers all of
// its signals on the loop of its [Executor]. Any underlying failure surfaces
// as an [IOError].
package bridge
