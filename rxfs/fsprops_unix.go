//go:build linux || darwin || freebsd

package rxfs

import (
	"golang.org/x/sys/unix"
)

func statFS(path string) (FSProps, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSProps{}, err
	}
	bsize := uint64(st.Bsize)
	return FSProps{
		Total:  uint64(st.Blocks) * bsize,
		Free:   uint64(st.Bfree) * bsize,
		Usable: uint64(st.Bavail) * bsize,
	}, nil
}
