package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherSignalsRegistryChanges(t *testing.T) {
	base := t.TempDir()
	registry := filepath.Join(base, ".bare", "worktrees")
	if err := os.MkdirAll(registry, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(base, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Give Run a moment to install the watch before mutating the dir.
	time.Sleep(100 * time.Millisecond)
	if err := os.Mkdir(filepath.Join(registry, "feature-x"), 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Events():
	case <-time.After(10 * time.Second):
		t.Fatal("no event for new worktree registry entry")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on cancel")
	}
}

func TestWatcherToleratesMissingRegistry(t *testing.T) {
	// The registry dir appears only after the first worktree add; the
	// watcher must start anyway and pick it up via polling.
	w, err := NewWatcher(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Run = %v, want context deadline", err)
	}
}
