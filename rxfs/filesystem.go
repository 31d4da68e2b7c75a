package rxfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joeycumines/go-rxloop/bridge"
	"golang.org/x/sync/semaphore"
)

type (
	// Void is the value type of futures for operations with no result.
	Void = struct{}

	// FileSystem exposes the local filesystem as streams, bridged onto an
	// event loop. Every operation returns a hot [bridge.Future]: the call is
	// started immediately, on a separate goroutine, and completes on the
	// loop.
	FileSystem struct {
		e         bridge.Executor
		sem       *semaphore.Weighted
		chunkSize int
	}

	// Props describes a file, see [FileSystem.Props].
	Props struct {
		ModTime   time.Time
		Mode      fs.FileMode
		Size      int64
		IsDir     bool
		IsRegular bool
		IsSymlink bool
		IsOther   bool
	}

	// FSProps describes a filesystem, in bytes.
	FSProps struct {
		Total  uint64
		Free   uint64
		Usable uint64
	}
)

// New returns a FileSystem bridged onto e.
func New(e bridge.Executor, opts ...Option) (*FileSystem, error) {
	if e == nil {
		return nil, errors.New("rxfs: nil executor")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &FileSystem{
		e:         e,
		sem:       semaphore.NewWeighted(cfg.maxConcurrency),
		chunkSize: cfg.chunkSize,
	}, nil
}

// call runs fn, bounded by the semaphore, bridging the result onto the loop.
func call[T any](x *FileSystem, op string, fn func() (T, error)) *bridge.Future[T] {
	return bridge.Go(x.e, context.Background(), func(ctx context.Context) (T, error) {
		if err := x.sem.Acquire(ctx, 1); err != nil {
			var zero T
			return zero, err
		}
		defer x.sem.Release(1)
		return fn()
	}, bridge.WithOperation(op))
}

func callVoid(x *FileSystem, op string, fn func() error) *bridge.Future[Void] {
	return call(x, op, func() (Void, error) { return Void{}, fn() })
}

// Copy copies the regular file from to the path to, which must not exist.
func (x *FileSystem) Copy(from, to string) *bridge.Future[Void] {
	return callVoid(x, `copy`, func() error { return copyFile(from, to) })
}

// CopyRecursive copies from to to, descending into directories. The
// destination must not exist.
func (x *FileSystem) CopyRecursive(from, to string) *bridge.Future[Void] {
	return callVoid(x, `copy`, func() error { return copyTree(from, to) })
}

// Move renames from to to.
func (x *FileSystem) Move(from, to string) *bridge.Future[Void] {
	return callVoid(x, `move`, func() error { return os.Rename(from, to) })
}

// Truncate changes the size of the file at path.
func (x *FileSystem) Truncate(path string, size int64) *bridge.Future[Void] {
	return callVoid(x, `truncate`, func() error { return os.Truncate(path, size) })
}

// Chmod changes the permissions of the file at path.
func (x *FileSystem) Chmod(path string, perm fs.FileMode) *bridge.Future[Void] {
	return callVoid(x, `chmod`, func() error { return os.Chmod(path, perm) })
}

// Chown changes the numeric owner and group of the file at path.
func (x *FileSystem) Chown(path string, uid, gid int) *bridge.Future[Void] {
	return callVoid(x, `chown`, func() error { return os.Chown(path, uid, gid) })
}

// Props describes the file at path, following symbolic links.
func (x *FileSystem) Props(path string) *bridge.Future[Props] {
	return call(x, `props`, func() (Props, error) {
		info, err := os.Stat(path)
		if err != nil {
			return Props{}, err
		}
		return newProps(info), nil
	})
}

// LProps describes the file at path, without following symbolic links.
func (x *FileSystem) LProps(path string) *bridge.Future[Props] {
	return call(x, `lprops`, func() (Props, error) {
		info, err := os.Lstat(path)
		if err != nil {
			return Props{}, err
		}
		return newProps(info), nil
	})
}

// Link creates link as a hard link to existing.
func (x *FileSystem) Link(link, existing string) *bridge.Future[Void] {
	return callVoid(x, `link`, func() error { return os.Link(existing, link) })
}

// Symlink creates link as a symbolic link to existing.
func (x *FileSystem) Symlink(link, existing string) *bridge.Future[Void] {
	return callVoid(x, `symlink`, func() error { return os.Symlink(existing, link) })
}

// Unlink removes the link at link.
func (x *FileSystem) Unlink(link string) *bridge.Future[Void] {
	return callVoid(x, `unlink`, func() error { return os.Remove(link) })
}

// ReadSymlink returns the target of the symbolic link at link.
func (x *FileSystem) ReadSymlink(link string) *bridge.Future[string] {
	return call(x, `readlink`, func() (string, error) { return os.Readlink(link) })
}

// Delete removes the file, or empty directory, at path.
func (x *FileSystem) Delete(path string) *bridge.Future[Void] {
	return callVoid(x, `delete`, func() error { return os.Remove(path) })
}

// DeleteRecursive removes path, and anything it contains.
func (x *FileSystem) DeleteRecursive(path string) *bridge.Future[Void] {
	return callVoid(x, `delete`, func() error { return os.RemoveAll(path) })
}

// Mkdir creates the directory path, the parent of which must exist.
func (x *FileSystem) Mkdir(path string, perm fs.FileMode) *bridge.Future[Void] {
	return callVoid(x, `mkdir`, func() error { return os.Mkdir(path, perm) })
}

// MkdirAll creates the directory path, along with any missing parents.
func (x *FileSystem) MkdirAll(path string, perm fs.FileMode) *bridge.Future[Void] {
	return callVoid(x, `mkdir`, func() error { return os.MkdirAll(path, perm) })
}

// ReadDir lists the paths of the entries of the directory dir, sorted by
// name. If filter is non-empty, only entries with names matching the
// regular expression are returned.
func (x *FileSystem) ReadDir(dir string, filter string) *bridge.Future[[]string] {
	return call(x, `readdir`, func() ([]string, error) {
		var re *regexp.Regexp
		if filter != `` {
			var err error
			if re, err = regexp.Compile(filter); err != nil {
				return nil, fmt.Errorf("invalid filter: %w", err)
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(entries))
		for _, entry := range entries {
			if re != nil && !re.MatchString(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
		return paths, nil
	})
}

// CreateFile creates an empty file at path, which must not exist.
func (x *FileSystem) CreateFile(path string, perm fs.FileMode) *bridge.Future[Void] {
	return callVoid(x, `create`, func() error {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			return err
		}
		return f.Close()
	})
}

// Exists reports whether path exists.
func (x *FileSystem) Exists(path string) *bridge.Future[bool] {
	return call(x, `exists`, func() (bool, error) {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	})
}

// FSProps describes the filesystem containing path.
func (x *FileSystem) FSProps(path string) *bridge.Future[FSProps] {
	return call(x, `fsprops`, func() (FSProps, error) { return statFS(path) })
}

func newProps(info fs.FileInfo) Props {
	mode := info.Mode()
	return Props{
		ModTime:   info.ModTime(),
		Mode:      mode,
		Size:      info.Size(),
		IsDir:     mode.IsDir(),
		IsRegular: mode.IsRegular(),
		IsSymlink: mode&fs.ModeSymlink != 0,
		IsOther:   !mode.IsDir() && !mode.IsRegular() && mode&fs.ModeSymlink == 0,
	}
}

func copyFile(from, to string) (err error) {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", from)
	}

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if e := dst.Close(); err == nil {
			err = e
		}
	}()

	_, err = io.Copy(dst, src)
	return err
}

func copyTree(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return &fs.PathError{Op: `copy`, Path: to, Err: fs.ErrExist}
	}
	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.Mkdir(target, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target)
		}
	})
}
