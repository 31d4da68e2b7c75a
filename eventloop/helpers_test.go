package eventloop

import (
	"context"
	"testing"
	"time"
)

// startLoop creates and runs a loop for the duration of the test.
func startLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	l, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(context.Background()) }()
	waitFor(t, func() bool { return l.State() != StateAwake })
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
		select {
		case err := <-runErr:
			if err != nil {
				t.Errorf("Run() returned %v", err)
			}
		case <-ctx.Done():
			t.Error("Run() did not return")
		}
	})
	return l
}

// waitFor polls cond until it returns true, failing the test after 5s.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

// await submits fn to l and blocks until it has run.
func await(t *testing.T, l *Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	if err := l.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}
