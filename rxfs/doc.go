// Package rxfs exposes the local filesystem through bridges onto an event
// loop: one-shot operations are futures, and file contents are streams with
// backpressure.
//
// Blocking calls run on separate goroutines, bounded by a semaphore (see
// [WithMaxConcurrency]), and complete on the loop.
package rxfs
