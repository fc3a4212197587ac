package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "watcher-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	w, err := New(tmpDir, 100*time.Millisecond, func(e Event) {}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if w == nil {
		t.Fatal("New() returned nil watcher")
	}
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/that/does/not/exist", 100*time.Millisecond, func(e Event) {}, nil)
	if err == nil {
		t.Fatal("New() should return error for invalid path")
	}
}

func TestWatcherWriteEvent(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "watcher-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	var mu sync.Mutex
	var events []Event

	w, err := New(tmpDir, 50*time.Millisecond, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("hello"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	// Wait past the debounce window.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 {
		t.Fatal("no events received for file creation")
	}
	if events[0].Path != testFile {
		t.Errorf("event path = %q, want %q", events[0].Path, testFile)
	}
}

func TestWatcherDebounceCollapsesWrites(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "watcher-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	var mu sync.Mutex
	count := 0

	w, err := New(tmpDir, 150*time.Millisecond, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	testFile := filepath.Join(tmpDir, "rapid.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(testFile, []byte("write"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		t.Fatal("no events received")
	}
	if count > 2 {
		t.Errorf("got %d callbacks for a rapid write burst, want the debounce to collapse them", count)
	}
}

func TestWatcherIgnoresGuardianDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "watcher-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, dir := range []string{".git", ".guardian", "node_modules"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	var mu sync.Mutex
	var events []Event

	w, err := New(tmpDir, 50*time.Millisecond, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, dir := range []string{".git", ".guardian", "node_modules"} {
		path := filepath.Join(tmpDir, dir, "ignored.txt")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 0 {
		t.Errorf("got %d events from ignored directories: %v", len(events), events)
	}
}
