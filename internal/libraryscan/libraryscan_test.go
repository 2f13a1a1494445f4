package libraryscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipodsync/core/internal/metadataprovider"
)

func TestScanSkipsNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte{0xFF, 0xD8}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tracks, failures, err := Scan(t.Context(), dir, metadataprovider.NewDefaultProvider())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(tracks) != 0 || len(failures) != 0 {
		t.Errorf("expected no tracks or failures from non-audio files, got %d tracks, %d failures", len(tracks), len(failures))
	}
}

func TestScanReportsFailureForUnreadableAudioFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, []byte("not really an mp3"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, failures, err := Scan(t.Context(), dir, metadataprovider.NewDefaultProvider())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1 (fingerprint or tag read should fail on a bogus file)", len(failures))
	}
	if failures[0].Path != path {
		t.Errorf("failure path = %q, want %q", failures[0].Path, path)
	}
}

func TestScanContextCancellation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "track.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, _, err := Scan(ctx, dir, metadataprovider.NewDefaultProvider())
	if err == nil {
		t.Error("expected an error from a pre-cancelled context")
	}
}

func TestEmbeddedArtHashDegradesToNoneWithoutArtwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, []byte("not an mp3"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if got := EmbeddedArtHash(path); got != "none" {
		t.Errorf("EmbeddedArtHash = %q, want none", got)
	}
}

func TestEmbeddedArtHashMissingFile(t *testing.T) {
	if got := EmbeddedArtHash("/nonexistent/track.mp3"); got != "none" {
		t.Errorf("EmbeddedArtHash = %q, want none", got)
	}
}
