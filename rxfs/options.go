package rxfs

import (
	"errors"
)

const (
	defaultChunkSize      = 8 * 1024
	defaultMaxConcurrency = 8
)

type fsOptions struct {
	chunkSize      int
	maxConcurrency int64
}

// Option configures a [FileSystem].
type Option interface {
	apply(*fsOptions) error
}

type optionImpl struct {
	applyFunc func(*fsOptions) error
}

func (x *optionImpl) apply(opts *fsOptions) error {
	return x.applyFunc(opts)
}

// WithChunkSize sets the size of the chunks read from files. Defaults to
// 8KiB.
func WithChunkSize(n int) Option {
	return &optionImpl{func(opts *fsOptions) error {
		if n <= 0 {
			return errors.New("rxfs: chunk size must be positive")
		}
		opts.chunkSize = n
		return nil
	}}
}

// WithMaxConcurrency bounds the number of blocking filesystem calls in
// flight at any one time. Defaults to 8.
func WithMaxConcurrency(n int64) Option {
	return &optionImpl{func(opts *fsOptions) error {
		if n <= 0 {
			return errors.New("rxfs: max concurrency must be positive")
		}
		opts.maxConcurrency = n
		return nil
	}}
}

func resolveOptions(opts []Option) (*fsOptions, error) {
	cfg := &fsOptions{
		chunkSize:      defaultChunkSize,
		maxConcurrency: defaultMaxConcurrency,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
