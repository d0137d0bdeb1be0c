package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, path string, loader func(string) (File, error), opts ...WatchOption) *Watcher {
	t.Helper()
	opts = append([]WatchOption{WithDebounce(50 * time.Millisecond), WithLoader(loader), WithLogger(newTestLogger())}, opts...)
	w := NewWatcher(path, opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Let the watcher settle before the first write
	time.Sleep(100 * time.Millisecond)
	return w
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path, LoadFile)

	received := make(chan File, 1)
	w.OnReload(func(f File) { received <- f })

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\nencoder = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-received:
		if f.Logging.Level != "debug" || f.Logging.Modules["encoder"] != "warn" {
			t.Errorf("Unexpected reload: %+v", f.Logging)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatcherReplacedByRename(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path, LoadFile)

	received := make(chan File, 1)
	w.OnReload(func(f File) { received <- f })

	tmp := filepath.Join(filepath.Dir(path), ".framescale.toml.swp")
	if err := os.WriteFile(tmp, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-received:
		if f.Logging.Level != "error" {
			t.Errorf("Level = %q, want error", f.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	var loads atomic.Int32
	startWatcher(t, path, func(p string) (File, error) {
		loads.Add(1)
		return LoadFile(p)
	})

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := loads.Load(); got != 0 {
		t.Errorf("expected no loads for sibling file, got %d", got)
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	var loads atomic.Int32
	w := startWatcher(t, path, func(p string) (File, error) {
		loads.Add(1)
		return LoadFile(p)
	}, WithDebounce(200*time.Millisecond))

	received := make(chan File, 10)
	w.OnReload(func(f File) { received <- f })

	for _, level := range []string{"debug", "warn", "error"} {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case f := <-received:
		if f.Logging.Level != "error" {
			t.Errorf("Level = %q, want last write", f.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
	time.Sleep(300 * time.Millisecond)
	if got := loads.Load(); got != 1 {
		t.Errorf("expected 1 debounced load, got %d", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	errCh := make(chan error, 1)
	w := startWatcher(t, path, LoadFile, WithErrorHandler(func(err error) { errCh <- err }))

	var reloads atomic.Int32
	w.OnReload(func(File) { reloads.Add(1) })

	if err := os.WriteFile(path, []byte("[logging\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected a parse error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	if got := reloads.Load(); got != 0 {
		t.Errorf("handlers ran %d times on a broken file", got)
	}
}

func TestWatcherIgnoresUnchangedSave(t *testing.T) {
	content := "[logging]\nlevel = \"info\"\n"
	path := writeConfig(t, content)

	var loads atomic.Int32
	startWatcher(t, path, func(p string) (File, error) {
		loads.Add(1)
		return LoadFile(p)
	})

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := loads.Load(); got != 0 {
		t.Errorf("expected no reload for identical content, got %d", got)
	}
}

func TestWatcherStopTwice(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := NewWatcher(path, WithLogger(newTestLogger()))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path, LoadFile)

	var first, second atomic.Int32
	unsub := w.OnReload(func(File) { first.Add(1) })
	done := make(chan struct{}, 1)
	w.OnReload(func(File) {
		second.Add(1)
		done <- struct{}{}
	})
	unsub()

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
	if first.Load() != 0 || second.Load() != 1 {
		t.Errorf("first=%d second=%d, want 0 and 1", first.Load(), second.Load())
	}
}

func TestWatcherStartMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "absent", "framescale.toml"), WithLogger(newTestLogger()))
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected Start to fail for a missing directory")
	}
}

func TestWatchFileAppliesLevels(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	received := make(chan File, 1)
	w, err := WatchFile(path, func(f File) { received <- f })
	if err != nil {
		t.Fatalf("WatchFile failed: %v", err)
	}
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\nupscaler = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-received:
		if f.Logging.Modules["upscaler"] != "debug" {
			t.Errorf("Unexpected modules: %v", f.Logging.Modules)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
