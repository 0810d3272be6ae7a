package watcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbalint/repovector-mcp/ignore"
)

func startTestWatcher(t *testing.T, rootDir string) *Watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(Options{
		RootDir:        rootDir,
		CoalesceWindow: 30 * time.Millisecond,
		QueueCapacity:  32,
		Checker:        ignore.NewMatcher(ignore.MatcherOptions{RootDir: rootDir, Logger: logger}),
		Logger:         logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	go w.Start()
	t.Cleanup(func() { w.Stop() })
	return w
}

func waitForEvent(t *testing.T, w *Watcher, relPath string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case event, ok := <-w.Events():
			if !ok {
				t.Fatal("event queue closed while waiting")
			}
			if event.RelPath == relPath {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", relPath)
		}
	}
}

func Test_Watcher_ReportsCreatedFile(t *testing.T) {
	tmpDir := t.TempDir()
	w := startTestWatcher(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "new.go"), []byte("package x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	event := waitForEvent(t, w, "new.go", 3*time.Second)
	if event.Kind != KindCreated && event.Kind != KindModified {
		t.Errorf("expected created or modified, got %s", event.Kind)
	}
}

func Test_Watcher_ReportsDeletedFile(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "victim.txt")
	if err := os.WriteFile(target, []byte("bye"), 0644); err != nil {
		t.Fatal(err)
	}

	w := startTestWatcher(t, tmpDir)

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}

	event := waitForEvent(t, w, "victim.txt", 3*time.Second)
	if event.Kind != KindDeleted {
		t.Errorf("expected deleted, got %s", event.Kind)
	}
}

func Test_Watcher_FiltersIgnoredPaths(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("*.log\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w := startTestWatcher(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "noise.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "kept.go"), []byte("package x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Only the non-ignored file may surface.
	event := waitForEvent(t, w, "kept.go", 3*time.Second)
	if event.RelPath != "kept.go" {
		t.Fatalf("unexpected event %+v", event)
	}
	select {
	case extra, ok := <-w.Events():
		if ok && extra.RelPath == "noise.log" {
			t.Errorf("expected ignored path to be filtered, got %+v", extra)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func Test_Watcher_WatchesNewDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	w := startTestWatcher(t, tmpDir)

	subDir := filepath.Join(tmpDir, "sub")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(300 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(subDir, "inner.go"), []byte("package sub\n"), 0644); err != nil {
		t.Fatal(err)
	}

	event := waitForEvent(t, w, "sub/inner.go", 3*time.Second)
	if event.RelPath != "sub/inner.go" {
		t.Errorf("unexpected event %+v", event)
	}
}

func Test_Watcher_StopClosesQueueAfterDrain(t *testing.T) {
	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(Options{
		RootDir:        tmpDir,
		CoalesceWindow: 30 * time.Millisecond,
		QueueCapacity:  32,
		Checker:        ignore.NewMatcher(ignore.MatcherOptions{RootDir: tmpDir, Logger: logger}),
		Logger:         logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	go w.Start()

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	if _, ok := <-w.Events(); ok {
		t.Error("expected event queue to be closed after Stop")
	}
}
