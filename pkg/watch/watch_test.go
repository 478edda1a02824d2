package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

func startWatcher(t *testing.T, paths []string, debounce time.Duration) (<-chan []string, *Watcher) {
	t.Helper()
	calls := make(chan []string, 8)
	w, err := New(paths, func(p []string) { calls <- p }, Options{Debounce: debounce, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(w.Stop)
	return calls, w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewNoPaths(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "a.py")}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}
	if got := w.Files(); len(got) != 1 || !filepath.IsAbs(got[0]) {
		t.Errorf("Files() = %v, want one absolute path", got)
	}
}

func TestBurstDeliveredOnce(t *testing.T) {
	dir := t.TempDir()
	code := filepath.Join(dir, "code.py")
	writeFile(t, code, "x = 1\n")

	calls, _ := startWatcher(t, []string{code}, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		writeFile(t, code, "x = 2\n")
	}

	select {
	case got := <-calls:
		if !reflect.DeepEqual(got, []string{code}) {
			t.Errorf("handler paths = %v, want [%s]", got, code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not called")
	}

	select {
	case got := <-calls:
		t.Errorf("unexpected second call with %v", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestIgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	code := filepath.Join(dir, "code.py")
	pattern := filepath.Join(dir, "pattern.pyt")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, code, "")
	writeFile(t, pattern, "")

	calls, _ := startWatcher(t, []string{code, pattern}, 50*time.Millisecond)

	writeFile(t, other, "ignored")
	select {
	case got := <-calls:
		t.Fatalf("unwatched file triggered handler with %v", got)
	case <-time.After(300 * time.Millisecond):
	}

	writeFile(t, pattern, "_")
	writeFile(t, code, "y")
	select {
	case got := <-calls:
		want := []string{code, pattern}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("handler paths = %v, want %v", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestStopFlushesPending(t *testing.T) {
	dir := t.TempDir()
	code := filepath.Join(dir, "code.py")
	writeFile(t, code, "")

	calls, w := startWatcher(t, []string{code}, time.Hour)
	writeFile(t, code, "z")

	// Give fsnotify time to deliver the event before stopping.
	time.Sleep(300 * time.Millisecond)
	w.Stop()

	select {
	case got := <-calls:
		if !reflect.DeepEqual(got, []string{code}) {
			t.Errorf("handler paths = %v", got)
		}
	default:
		t.Error("Stop() did not deliver the pending change")
	}
}
