package mediainfo

import "testing"

func TestDefaultsForKnownFormat(t *testing.T) {
	info, err := defaultsFor(".mp3")
	if err != nil {
		t.Fatalf("defaultsFor(.mp3): %v", err)
	}
	if info.Bitrate != 192 || info.SampleRate != 44100 {
		t.Errorf("unexpected defaults: %+v", info)
	}
}

func TestDefaultsForUnsupportedFormat(t *testing.T) {
	if _, err := defaultsFor(".xyz"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := Extract("/nonexistent/path/track.mp3"); err == nil {
		t.Error("expected error for a file that doesn't exist")
	}
}
