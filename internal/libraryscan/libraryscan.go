// Package libraryscan walks a PC music directory and builds
// diffengine.PCTrack entries by reading tags and computing an
// acoustic fingerprint for each file, the default PC-side track
// source when no Library.xml import is configured. Grounded on the
// teacher's internal/scanner's filepath.WalkDir-based directory walk,
// adapted to read audio tags with metadataprovider and fingerprints
// with internal/fingerprint instead of audiobook-series parsing.
package libraryscan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/ipodsync/core/internal/diffengine"
	"github.com/ipodsync/core/internal/fingerprint"
	"github.com/ipodsync/core/internal/metadataprovider"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true,
	".flac": true, ".wav": true, ".aif": true, ".aiff": true,
	".ogg": true, ".opus": true, ".wma": true,
}

// FileFailure records one file this walk could not process, matching
// the executor's per-file tolerance: a bad file is skipped, not fatal.
type FileFailure struct {
	Path string
	Err  error
}

// Scan walks root and returns one PCTrack per audio file found, plus
// any per-file failures (missing fingerprint tool, unreadable tags).
func Scan(ctx context.Context, root string, provider metadataprovider.Provider) ([]diffengine.PCTrack, []FileFailure, error) {
	var tracks []diffengine.PCTrack
	var failures []FileFailure

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		track, err := buildPCTrack(ctx, path, provider)
		if err != nil {
			failures = append(failures, FileFailure{Path: path, Err: err})
			return nil
		}
		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return nil, failures, fmt.Errorf("libraryscan: walk %s: %w", root, err)
	}
	return tracks, failures, nil
}

func buildPCTrack(ctx context.Context, path string, provider metadataprovider.Provider) (diffengine.PCTrack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return diffengine.PCTrack{}, fmt.Errorf("stat: %w", err)
	}

	fp, err := fingerprint.Compute(ctx, path)
	if err != nil {
		return diffengine.PCTrack{}, fmt.Errorf("fingerprint: %w", err)
	}

	tags, err := provider.Read(path)
	if err != nil {
		return diffengine.PCTrack{}, fmt.Errorf("read tags: %w", err)
	}

	artHash := EmbeddedArtHash(path)

	return diffengine.PCTrack{
		Path:        path,
		Fingerprint: fp,
		Size:        info.Size(),
		MTime:       info.ModTime().Unix(),
		Title:       tags.Title,
		Artist:      tags.Artist,
		Album:       tags.Album,
		AlbumArtist: tags.Artist,
		Genre:       tags.Genre,
		Year:        tags.Year,
		TrackNumber: tags.TrackNumber,
		DiscNumber:  tags.DiscNumber,
		Rating:      tags.Rating0to100,
		ArtHash:     artHash,
		FormatInfo:  strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), ".")),
	}, nil
}

// EmbeddedArtHash reads a file's embedded picture frame, if any, and
// hashes it for art_hash comparison (§4.6). A missing or unreadable
// picture degrades to "none" rather than failing the whole file.
// Exported for internal/libraryimport, which needs the same hash for
// tracks sourced from a Library.xml entry instead of a directory walk.
func EmbeddedArtHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "none"
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return "none"
	}
	pic := m.Picture()
	if pic == nil {
		return "none"
	}
	return diffengine.MD5Hex(pic.Data)
}
