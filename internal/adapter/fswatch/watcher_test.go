package fswatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type loadCall struct {
	data   string
	source string
}

func startWatcher(t *testing.T, path string, load LoadFunc) {
	t.Helper()
	w, err := New(path, load)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
}

// waitFor returns the first reload carrying want. Saves can surface as more
// than one reload, so earlier calls with other content are skipped.
func waitFor(t *testing.T, calls <-chan loadCall, want string) loadCall {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-calls:
			if c.data == want {
				return c
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reload of %q", want)
			return loadCall{}
		}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{"events":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := make(chan loadCall, 8)
	startWatcher(t, path, func(_ context.Context, data []byte, source string) error {
		calls <- loadCall{data: string(data), source: source}
		return nil
	})

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"events":[{"kind":"click"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	c := waitFor(t, calls, `{"events":[{"kind":"click"}]}`)
	if c.source != "session.json" {
		t.Errorf("unexpected source %q", c.source)
	}
}

func TestWatcherSurvivesRejectedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := make(chan loadCall, 8)
	startWatcher(t, path, func(_ context.Context, data []byte, _ string) error {
		calls <- loadCall{data: string(data)}
		if string(data) == "broken" {
			return errors.New("malformed trace")
		}
		return nil
	})

	if err := os.WriteFile(path, []byte("broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, calls, "broken")

	if err := os.WriteFile(path, []byte(`{"events":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	// The watcher keeps running after a rejected reload.
	waitFor(t, calls, `{"events":[]}`)
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "trace.json"), nil)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
