//go:build !(linux || darwin || freebsd)

package rxfs

import (
	"errors"
)

func statFS(string) (FSProps, error) {
	return FSProps{}, errors.ErrUnsupported
}
