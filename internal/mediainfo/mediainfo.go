// Package mediainfo probes a freshly written device-side file for the
// bitrate/sample-rate values Stage 2/4 stamp into the mhit record,
// since neither a straight copy nor an external transcoder tool
// reports these back to the caller. Trimmed from the teacher's fuller
// format-quality prober down to the two fields the executor actually
// consumes.
package mediainfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Info holds the technical fields the executor needs per track.
type Info struct {
	Bitrate    int
	SampleRate int
}

// Extract reads bitrate/sample-rate from path's tag metadata, falling
// back to a format-typical default when the tag library can't report
// them (common for files dhowden/tag can parse but whose container
// doesn't expose bitrate directly, e.g. most FLAC/OGG files).
func Extract(path string) (*Info, error) {
	ext := strings.ToLower(filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mediainfo: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return defaultsFor(ext)
	}

	info := &Info{}
	raw := m.Raw()
	if v, ok := raw["bitrate"].(int); ok {
		info.Bitrate = v / 1000
	}
	if v, ok := raw["sample_rate"].(int); ok {
		info.SampleRate = v
	}

	if info.Bitrate == 0 || info.SampleRate == 0 {
		fallback, err := defaultsFor(ext)
		if err != nil {
			return nil, err
		}
		if info.Bitrate == 0 {
			info.Bitrate = fallback.Bitrate
		}
		if info.SampleRate == 0 {
			info.SampleRate = fallback.SampleRate
		}
	}

	return info, nil
}

func defaultsFor(ext string) (*Info, error) {
	switch ext {
	case ".mp3":
		return &Info{Bitrate: 192, SampleRate: 44100}, nil
	case ".m4a", ".m4b", ".aac":
		return &Info{Bitrate: 128, SampleRate: 44100}, nil
	case ".flac":
		return &Info{Bitrate: 1000, SampleRate: 44100}, nil
	case ".ogg", ".oga":
		return &Info{Bitrate: 160, SampleRate: 44100}, nil
	case ".wav", ".aif", ".aiff":
		return &Info{Bitrate: 1411, SampleRate: 44100}, nil
	default:
		return nil, fmt.Errorf("mediainfo: unsupported format %q", ext)
	}
}
