package bridge

import (
	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/joeycumines/logiface"
)

const categoryBridge = `bridge`

func logDoubleCompletion(logger *logiface.Logger[logiface.Event], op string) {
	logger.Debug().
		Str(eventloop.FieldCategory, categoryBridge).
		Str(`op`, op).
		Err(ErrDoubleCompletion).
		Log(`bridge: ignored extra completion`)
}

func logCloseError(logger *logiface.Logger[logiface.Event], op string, err error) {
	logger.Warning().
		Str(eventloop.FieldCategory, categoryBridge).
		Str(`op`, op).
		Err(err).
		Log(`bridge: failed to close resource`)
}
