// Package integrity reconciles the three sources of truth a sync run
// depends on — the mounted device's audio files, its iTunesDB track
// records, and the mapping store — before the diff engine runs (§4.5).
package integrity

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/mapping"
)

// orphanExtensions is the audio extension set Check C treats as
// device-managed media; anything else under Music/F00..F49 is left
// alone.
var orphanExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".m4b": true, ".m4p": true,
	".mp4": true, ".aac": true, ".wav": true, ".aif": true,
	".aiff": true, ".alac": true,
}

// Report summarizes one check's repairs. Fixed is the number of
// corrective actions taken; Descriptions gives a human-readable line
// per action for the plan's informational section.
type Report struct {
	Fixed        int
	Descriptions []string
}

func (r *Report) add(desc string) {
	r.Fixed++
	r.Descriptions = append(r.Descriptions, desc)
}

// Merge folds other's counters and descriptions into r.
func (r *Report) Merge(other Report) {
	r.Fixed += other.Fixed
	r.Descriptions = append(r.Descriptions, other.Descriptions...)
}

// CheckDBToFilesystem is Check A: every track with a location string
// must exist on the mounted device. Tracks whose file is missing are
// dropped from tracks (order preserved); the drop is silent to the
// diff engine but reported here.
func CheckDBToFilesystem(mountRoot string, tracks []itunesdb.Track) ([]itunesdb.Track, Report) {
	var report Report
	kept := make([]itunesdb.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.Location == "" {
			kept = append(kept, t)
			continue
		}
		full := filepath.Join(mountRoot, filepath.FromSlash(t.Location))
		if _, err := os.Stat(full); err != nil {
			report.add(fmt.Sprintf("removed track %d: file missing at %s", t.TrackID, t.Location))
			continue
		}
		kept = append(kept, t)
	}
	return kept, report
}

// CheckMappingToDB is Check B: every mapping entry whose dbid is no
// longer present among tracks (post Check A) is deleted from store.
func CheckMappingToDB(store mapping.Store, tracks []itunesdb.Track) Report {
	var report Report
	known := make(map[uint64]bool, len(tracks))
	for _, t := range tracks {
		known[t.DBID] = true
	}
	for _, e := range store.All() {
		if !known[e.DBID] {
			store.Remove(e.Fingerprint, e.DBID)
			report.add(fmt.Sprintf("removed mapping entry for fingerprint %s (dbid %d no longer in database)", e.Fingerprint, e.DBID))
		}
	}
	return report
}

// CheckOrphanFiles is Check C: walk musicRoot (the device's Music/F00
// .. F49 tree) and delete any recognized audio file not referenced by
// referencedLocations. Grounded on the teacher's filepath.Walk
// directory-sweep idiom (internal/scanner/scanner.go).
func CheckOrphanFiles(musicRoot string, referencedLocations map[string]bool) (Report, error) {
	var report Report

	err := filepath.WalkDir(musicRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !orphanExtensions[ext] {
			return nil
		}
		rel, relErr := filepath.Rel(musicRoot, path)
		if relErr != nil {
			rel = path
		}
		key := filepath.ToSlash(rel)
		if referencedLocations[key] {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			return rmErr
		}
		report.add(fmt.Sprintf("deleted orphan file %s", key))
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("integrity: orphan sweep: %w", err)
	}
	return report, nil
}

// ReferencedLocations builds the set CheckOrphanFiles needs from a
// track list's Location fields (relative to the device's root, e.g.
// "Music/F12/ABCD.mp3" or "F12/ABCD.mp3" depending on how location
// strings are stored; callers pass whatever musicRoot-relative form
// matches their Location convention).
func ReferencedLocations(tracks []itunesdb.Track, musicRoot string) map[string]bool {
	refs := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if t.Location == "" {
			continue
		}
		rel := strings.TrimPrefix(filepath.ToSlash(t.Location), filepath.ToSlash(musicRoot)+"/")
		refs[rel] = true
	}
	return refs
}

// RunAll runs Checks A, B, and C in order and returns the combined
// report plus the surviving track list.
func RunAll(mountRoot, musicRoot string, tracks []itunesdb.Track, store mapping.Store) ([]itunesdb.Track, Report, error) {
	var combined Report

	survivors, reportA := CheckDBToFilesystem(mountRoot, tracks)
	combined.Merge(reportA)

	reportB := CheckMappingToDB(store, survivors)
	combined.Merge(reportB)

	refs := ReferencedLocations(survivors, musicRoot)
	reportC, err := CheckOrphanFiles(musicRoot, refs)
	combined.Merge(reportC)
	if err != nil {
		return survivors, combined, err
	}

	return survivors, combined, nil
}
