package devicewatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPendingAfterFileChange(t *testing.T) {
	dir := t.TempDir()

	w, err := New(50*time.Millisecond, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if w.Pending() {
		t.Fatal("Pending() = true before any change")
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Pending() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("Pending() never became true after a file was created")
}

func TestPendingIsConsumedOnce(t *testing.T) {
	dir := t.TempDir()

	w, err := New(30*time.Millisecond, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if !w.Pending() {
		t.Fatal("expected Pending() to report the change")
	}
	if w.Pending() {
		t.Fatal("expected second Pending() call to return false (consume-once)")
	}
}

func TestCloseStopsWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := New(10*time.Millisecond, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
