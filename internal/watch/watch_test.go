package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatch_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dns.txt")
	if err := os.WriteFile(path, []byte("a.com=1.1.1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 50*time.Millisecond, func(context.Context) { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond) // let the watcher register

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("a.com=2.2.2.2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 1 }) {
		t.Fatalf("fn never called")
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("fn called %d times for one burst, want 1", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dns.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, 20*time.Millisecond, func(context.Context) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("sibling write triggered fn %d times", n)
	}

	// Rename over the target, as editors do.
	tmp := filepath.Join(dir, "dns.txt.tmp")
	if err := os.WriteFile(tmp, []byte("b.com=2.2.2.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 1 }) {
		t.Fatalf("rename did not trigger fn")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "dns.txt"), 0, func(context.Context) {})
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		Poll(ctx, 10*time.Millisecond, func(context.Context) { calls.Add(1) })
		close(done)
	}()
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 3 }) {
		t.Fatalf("poll ran %d times", calls.Load())
	}
	cancel()
	<-done
}
