// Package rx models asynchronous sequences, as [Stream] values, with
// demand-driven (pull) flow control, and provides the handful of standard
// operators (map, flat map, reduce) needed to compose them.
//
// A [Stream] is subscribed to with an [Observer], yielding a [Subscription],
// through which the observer requests values, and may cancel. A stream never
// emits more values than have been requested, which is how backpressure
// propagates from a consumer back to a producer.
//
// Stateful operators ([FlatMap], [Reduce], [FromSlice]) assume that
// signals, requests and cancellation are serialized, typically by confining
// them to an event loop. Use [SubscribeOn] to consume a stream from other
// goroutines.
package rx
