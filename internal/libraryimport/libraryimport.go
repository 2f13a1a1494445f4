// Package libraryimport reads an iTunes-style Library.xml plist as an
// alternate source of PC-side tracks, instead of walking the music
// directory and fingerprinting every file directly. Grounded on the
// teacher's internal/itunes/plist_parser.go, which decodes the same
// plist schema with howett.net/plist.
package libraryimport

import (
	"fmt"
	"net/url"
	"os"

	"howett.net/plist"

	"github.com/ipodsync/core/internal/diffengine"
)

type rawLibrary struct {
	Tracks map[string]*rawTrack `plist:"Tracks"`
}

type rawTrack struct {
	Name         string `plist:"Name"`
	Artist       string `plist:"Artist"`
	AlbumArtist  string `plist:"Album Artist"`
	Album        string `plist:"Album"`
	Genre        string `plist:"Genre"`
	Year         int    `plist:"Year"`
	TrackNumber  int    `plist:"Track Number"`
	DiscNumber   int    `plist:"Disc Number"`
	Location     string `plist:"Location"`
	Size         int64  `plist:"Size"`
	Rating       int    `plist:"Rating"`
}

// Track is one library entry. It still needs a fingerprint and an
// ArtHash computed by the caller before it becomes a diffengine.PCTrack;
// libraryimport only supplies what the plist itself carries.
type Track struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Year        int
	TrackNumber int
	DiscNumber  int
	Size        int64
	Rating      uint32
}

// Read parses path (an iTunes Library.xml) and returns every track
// entry with a non-empty, file-scheme-stripped Location.
func Read(path string) ([]Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("libraryimport: read %s: %w", path, err)
	}

	var raw rawLibrary
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("libraryimport: unmarshal %s: %w", path, err)
	}

	out := make([]Track, 0, len(raw.Tracks))
	for _, t := range raw.Tracks {
		loc := stripFileScheme(t.Location)
		if loc == "" {
			continue
		}
		out = append(out, Track{
			Path:        loc,
			Title:       t.Name,
			Artist:      t.Artist,
			Album:       t.Album,
			AlbumArtist: t.AlbumArtist,
			Genre:       t.Genre,
			Year:        t.Year,
			TrackNumber: t.TrackNumber,
			DiscNumber:  t.DiscNumber,
			Size:        t.Size,
			Rating:      uint32(t.Rating),
		})
	}
	return out, nil
}

// ToPCTrack merges a library entry with its computed fingerprint and
// artwork hash into a diffengine.PCTrack.
func (t Track) ToPCTrack(fingerprint string, mtime int64, artHash, formatInfo string) diffengine.PCTrack {
	return diffengine.PCTrack{
		Path:        t.Path,
		Fingerprint: fingerprint,
		Size:        t.Size,
		MTime:       mtime,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		AlbumArtist: t.AlbumArtist,
		Genre:       t.Genre,
		Year:        t.Year,
		TrackNumber: t.TrackNumber,
		DiscNumber:  t.DiscNumber,
		Rating:      t.Rating,
		ArtHash:     artHash,
		FormatInfo:  formatInfo,
	}
}

// stripFileScheme trims a "file://" URL down to a filesystem path, the
// form iTunes stores Location in.
func stripFileScheme(location string) string {
	const scheme = "file://"
	if len(location) >= len(scheme) && location[:len(scheme)] == scheme {
		if unescaped, err := url.PathUnescape(location[len(scheme):]); err == nil {
			return unescaped
		}
		return location[len(scheme):]
	}
	return location
}
