// Command rxcopy copies a file, streaming it through an event loop, with
// backpressure, logging progress periodically.
//
// Usage:
//
//	rxcopy [-config rxcopy.yaml] [-env .env] src dst
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-rxloop/bridge"
	"github.com/joeycumines/go-rxloop/eventloop"
	"github.com/joeycumines/go-rxloop/internal/config"
	"github.com/joeycumines/go-rxloop/rx"
	"github.com/joeycumines/go-rxloop/rxfs"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "rxcopy: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet(`rxcopy`, flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String(`config`, ``, `path to a YAML config file`)
	envFiles := flags.String(`env`, `.env`, `comma separated list of .env files to load`)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return errors.New(`expected exactly two arguments: src dst`)
	}
	src, dst := flags.Arg(0), flags.Arg(1)

	if *envFiles != `` {
		if _, err := config.LoadEnvFiles(strings.Split(*envFiles, `,`)); err != nil {
			return err
		}
	}

	cfg := config.Default()
	if *configPath != `` {
		var err error
		if cfg, err = config.LoadFromFile(*configPath); err != nil {
			return err
		}
	}

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&lockedWriter{w: stderr})),
		stumpy.L.WithLevel(level),
	).Logger()

	loop, err := eventloop.New(eventloop.WithLogger(logger))
	if err != nil {
		return err
	}

	fsys, err := rxfs.New(loop,
		rxfs.WithChunkSize(cfg.Copy.ChunkSize),
		rxfs.WithMaxConcurrency(cfg.Copy.MaxConcurrency),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	g.Go(func() error {
		defer func() { _ = loop.Shutdown(context.Background()) }()
		return copyFile(gctx, loop, fsys, logger, &cfg.Copy, src, dst)
	})

	return g.Wait()
}

func copyFile(ctx context.Context, loop *eventloop.Loop, fsys *rxfs.FileSystem, logger *logiface.Logger[logiface.Event], cfg *config.CopyConfig, src, dst string) error {
	var written atomic.Int64

	progress := rx.Subscribe(
		bridge.Periodic(loop, cfg.ProgressInterval),
		func(tick bridge.Tick) {
			logger.Info().
				Int64(`tick`, tick.Seq).
				Int64(`bytes`, written.Load()).
				Log(`copy in progress`)
		},
		nil,
		nil,
	)
	defer progress.Cancel()

	var readOpts []bridge.Option
	if cfg.BufferSize > 0 {
		readOpts = append(readOpts, bridge.WithBufferSize(cfg.BufferSize))
	}

	chunks := rxfs.Using(fsys, src, rxfs.OpenOptions{Read: true}, func(f *rxfs.File) rx.Stream[[]byte] {
		return f.Read(readOpts...)
	})

	counts := rxfs.Using(fsys, dst, rxfs.OpenOptions{Write: true, Create: true, Truncate: true}, func(f *rxfs.File) rx.Stream[int64] {
		return f.Write(chunks)
	})

	total := rx.Reduce(
		rx.Map(counts, func(n int64) int64 {
			written.Store(n)
			return n
		}),
		func() int64 { return 0 },
		func(_ int64, n int64) int64 { return n },
	)

	n, err := rx.First(ctx, rx.SubscribeOn(total, loop))
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	logger.Info().
		Str(`src`, src).
		Str(`dst`, dst).
		Int64(`bytes`, n).
		Log(`copy complete`)

	return nil
}

func parseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(s) {
	case `error`:
		return logiface.LevelError, nil
	case `warn`:
		return logiface.LevelWarning, nil
	}
	for level := logiface.LevelEmergency; level <= logiface.LevelTrace; level++ {
		if level.String() == strings.ToLower(s) {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}

// lockedWriter serializes writes from the loop and the main goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (x *lockedWriter) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.w.Write(p)
}
