package eventloop

import (
	"github.com/joeycumines/logiface"
)

// Log field names shared by packages built on the loop.
const (
	FieldCategory = `category`
	FieldLoopID   = `loop_id`
)

// Category values for FieldCategory.
const (
	CategoryTask     = `task`
	CategoryTimer    = `timer`
	CategoryShutdown = `shutdown`
)

// All of the below are nil-safe, as the logger is optional.

func logTaskPanicked(logger *logiface.Logger[logiface.Event], loopID uint64, value any) {
	logger.Err().
		Str(FieldCategory, CategoryTask).
		Uint64(FieldLoopID, loopID).
		Err(PanicError{Value: value}).
		Log(`eventloop: recovered panic in task`)
}

func logOverload(logger *logiface.Logger[logiface.Event], loopID uint64, remaining int) {
	logger.Warning().
		Str(FieldCategory, CategoryTask).
		Uint64(FieldLoopID, loopID).
		Int(`remaining`, remaining).
		Err(ErrLoopOverloaded).
		Log(`eventloop: task budget exhausted`)
}

func logTimersDropped(logger *logiface.Logger[logiface.Event], loopID uint64, count int) {
	logger.Debug().
		Str(FieldCategory, CategoryShutdown).
		Uint64(FieldLoopID, loopID).
		Int(`timers`, count).
		Log(`eventloop: discarded pending timers`)
}
