package bridge

import (
	"errors"
)

// defaultBufferSize bounds the values a paused source may still deliver.
const defaultBufferSize = 16

type options struct {
	operation  string
	bufferSize int
}

// Option configures a bridge. Options not relevant to a particular bridge
// are ignored.
type Option interface {
	apply(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (x *optionImpl) apply(opts *options) error {
	return x.applyFunc(opts)
}

// WithOperation names the wrapped operation, for error messages, see
// [IOError], and logs.
func WithOperation(name string) Option {
	return &optionImpl{func(opts *options) error {
		opts.operation = name
		return nil
	}}
}

// WithBufferSize sets the maximum number of values [FromSource] will hold
// for a source that keeps emitting after being paused. Must be positive.
// Defaults to 16.
func WithBufferSize(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n <= 0 {
			return errors.New("bridge: buffer size must be positive")
		}
		opts.bufferSize = n
		return nil
	}}
}

// resolveOptions applies opts, panicking on invalid configuration.
func resolveOptions(opts []Option) *options {
	cfg := &options{
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			panic(err)
		}
	}
	return cfg
}
