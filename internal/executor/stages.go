package executor

import (
	"context"

	"github.com/ipodsync/core/internal/diffengine"
	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/mapping"
	"github.com/ipodsync/core/internal/metrics"
	"github.com/ipodsync/core/internal/transcode"
)

// stage1Remove implements §4.7 stage 1: delete each removed track's
// file, drop it from the working set and the mapping, then sweep any
// mapping entries left pointing at a dbid that's no longer in the
// track map.
func stage1Remove(ctx context.Context, result *Result, ws *workingSet, store mapping.Store, plan diffengine.SyncPlan, opts Options) {
	for _, a := range plan.Actions {
		if opts.cancelled() {
			return
		}
		if a.Kind != diffengine.ActionRemove {
			continue
		}
		if t, ok := ws.track(a.DBID); ok {
			if err := removeDeviceFile(opts, t.Location); err != nil {
				result.Failures = append(result.Failures, FileFailure{Path: t.Location, Kind: "remove", Err: err})
			}
		}
		ws.removeTrack(a.DBID)
		if a.MappingEntry != nil {
			store.Remove(a.MappingEntry.Fingerprint, a.DBID)
		}
	}

	for _, e := range store.All() {
		if _, ok := ws.byDBID[e.DBID]; !ok {
			store.Remove(e.Fingerprint, e.DBID)
		}
	}
}

// stage2ResyncChangedFiles implements §4.7 stage 2.
func stage2ResyncChangedFiles(ctx context.Context, result *Result, ws *workingSet, store mapping.Store, plan diffengine.SyncPlan, opts Options) {
	cursor := &folderCursor{}
	for _, a := range plan.Actions {
		if opts.cancelled() {
			return
		}
		if a.Kind != diffengine.ActionUpdateFile {
			continue
		}
		t, ok := ws.track(a.DBID)
		if !ok || a.PC == nil {
			continue
		}

		oldLocation := t.Location
		if opts.Cache != nil && a.MappingEntry != nil {
			// Cache entries are keyed by fingerprint, target format and
			// bitrate (transcode.CacheKey); a file change can only happen
			// for a track whose fingerprint is unchanged, so both of that
			// fingerprint's cached transcodes must be evicted.
			fp := a.MappingEntry.Fingerprint
			opts.Cache.Invalidate(transcode.CacheKey(fp, "alac", 0))
			opts.Cache.Invalidate(transcode.CacheKey(fp, "aac", opts.AACBitrateKbps))
		}

		rel, abs, err := materialize(ctx, a.PC.Path, a.PC.Fingerprint, cursor, opts)
		if err != nil {
			result.Failures = append(result.Failures, FileFailure{Path: a.PC.Path, Kind: "copy", Err: err})
			continue
		}
		_ = removeDeviceFile(opts, oldLocation)

		bitrate, sampleRate := mediaInfoOrZero(abs)
		t.Location = rel
		t.Size = uint32(fileSize(abs))
		t.FileType = fileTypeWord(rel[len(rel)-4:])
		t.BitRateKbps = bitrate
		t.SampleRateHz = sampleRate

		if a.MappingEntry != nil {
			entry := *a.MappingEntry
			entry.SourceSize = a.PC.Size
			entry.SourceMTime = a.PC.MTime
			entry.FormatInfo = a.PC.FormatInfo
			store.Update(entry)
		}
	}
}

// stage3UpdateMetadataAndArtworkMapping implements §4.7 stages 3 and 3b.
func stage3UpdateMetadataAndArtworkMapping(result *Result, ws *workingSet, store mapping.Store, plan diffengine.SyncPlan) {
	for _, a := range plan.Actions {
		switch a.Kind {
		case diffengine.ActionUpdateMetadata:
			t, ok := ws.track(a.DBID)
			if !ok || a.PC == nil {
				continue
			}
			applyMetadataFields(t, a.ChangedFields, a.PC)
			if a.MappingEntry != nil {
				entry := *a.MappingEntry
				entry.SourceSize = a.PC.Size
				entry.SourceMTime = a.PC.MTime
				store.Update(entry)
			}

		case diffengine.ActionUpdateArtwork:
			if a.MappingEntry != nil {
				entry := *a.MappingEntry
				entry.ArtHash = a.NewArtHash
				store.Update(entry)
			}
		}
	}
}

func applyMetadataFields(t *itunesdb.Track, changed []string, pc *diffengine.PCTrack) {
	for _, field := range changed {
		switch field {
		case "title":
			t.Title = pc.Title
		case "artist":
			t.Artist = pc.Artist
		case "album":
			t.Album = pc.Album
		case "album_artist":
			t.AlbumArtist = pc.AlbumArtist
		case "genre":
			t.Genre = pc.Genre
		case "year":
			t.Year = uint32(pc.Year)
		case "track_number":
			t.TrackNumber = uint32(pc.TrackNumber)
		case "disc_number":
			t.DiscNumber = uint32(pc.DiscNumber)
		}
	}
}

// stage4Add implements §4.7 stage 4. It returns the PC source path for
// every newly added dbid, which stage 7 uses for artwork extraction.
// The new dbids' mapping entries are collected in
// result.NewMappingEntries, which stage 7 adds to the store only after
// a successful atomic database replace.
func stage4Add(ctx context.Context, result *Result, ws *workingSet, plan diffengine.SyncPlan, opts Options) (map[uint64]string, error) {
	pcPaths := make(map[uint64]string)
	cursor := &folderCursor{}

	for _, a := range plan.Actions {
		if opts.cancelled() {
			return pcPaths, nil
		}
		if a.Kind != diffengine.ActionAdd || a.PC == nil {
			continue
		}
		pc := a.PC

		rel, abs, err := materialize(ctx, pc.Path, pc.Fingerprint, cursor, opts)
		if err != nil {
			result.Failures = append(result.Failures, FileFailure{Path: pc.Path, Kind: "copy", Err: err})
			continue
		}

		bitrate, sampleRate := mediaInfoOrZero(abs)
		dbid := newDBID()
		track := itunesdb.Track{
			DBID:         dbid,
			TrackID:      ws.nextTrackID(),
			FileType:     fileTypeWord(rel[len(rel)-4:]),
			MediaType:    itunesdb.MediaTypeAudio,
			Size:         uint32(fileSize(abs)),
			BitRateKbps:  bitrate,
			SampleRateHz: sampleRate,
			TrackNumber:  uint32(pc.TrackNumber),
			DiscNumber:   uint32(pc.DiscNumber),
			Year:         uint32(pc.Year),
			Rating:       pc.Rating,
			Location:     rel,
			Title:        pc.Title,
			Album:        pc.Album,
			Artist:       pc.Artist,
			AlbumArtist:  pc.AlbumArtist,
			Genre:        pc.Genre,
			AlbumID:      ws.albumIDFor(pc.Album, pc.AlbumArtist),
		}
		ws.addTrack(track)
		pcPaths[dbid] = pc.Path

		artHash := pc.ArtHash
		if artHash == "" {
			artHash = "none"
		}
		result.NewMappingEntries = append(result.NewMappingEntries, mappingEntryFor(dbid, a.AlbumKey, pc, artHash))
	}

	return pcPaths, nil
}

func mappingEntryFor(dbid uint64, albumKey string, pc *diffengine.PCTrack, artHash string) mapping.Entry {
	return mapping.Entry{
		Fingerprint:    pc.Fingerprint,
		DBID:           dbid,
		AlbumKey:       albumKey,
		SourcePathHint: pc.Path,
		SourceSize:     pc.Size,
		SourceMTime:    pc.MTime,
		ArtHash:        artHash,
		FormatInfo:     pc.FormatInfo,
	}
}

// stage5PlayCounts implements §4.7 stage 5 and testable property 10:
// every existing track folds play_count_2 into play_count and resets
// play_count_2 to zero, regardless of whether the diff engine emitted
// a SyncPlayCount action for it.
func stage5PlayCounts(result *Result, ws *workingSet, plan diffengine.SyncPlan, opts Options) {
	entryByDBID := entriesByDBID(plan)

	for i := range ws.db.Tracks {
		t := &ws.db.Tracks[i]
		delta := t.PlayCount2
		t.PlayCount += t.PlayCount2
		t.PlayCount2 = 0
		if delta == 0 || !opts.WriteBackTags || opts.MetadataProvider == nil {
			continue
		}
		if entry, ok := entryByDBID[t.DBID]; ok && entry.SourcePathHint != "" {
			if err := opts.MetadataProvider.WritePlayCount(entry.SourcePathHint, delta); err != nil {
				result.Failures = append(result.Failures, FileFailure{Path: entry.SourcePathHint, Kind: "playcount-writeback", Err: err})
			}
		}
	}
}

// stage6Ratings implements §4.7 stage 6.
func stage6Ratings(result *Result, ws *workingSet, plan diffengine.SyncPlan, opts Options) {
	entryByDBID := entriesByDBID(plan)

	for _, a := range plan.Actions {
		if a.Kind != diffengine.ActionSyncRating {
			continue
		}
		t, ok := ws.track(a.DBID)
		if !ok {
			continue
		}
		t.Rating = a.ResolvedRating

		if !opts.WriteBackTags || opts.MetadataProvider == nil {
			continue
		}
		if entry, ok := entryByDBID[t.DBID]; ok && entry.SourcePathHint != "" {
			if err := opts.MetadataProvider.WriteRating(entry.SourcePathHint, a.ResolvedRating); err != nil {
				result.Failures = append(result.Failures, FileFailure{Path: entry.SourcePathHint, Kind: "rating-writeback", Err: err})
			}
		}
	}
}

// entriesByDBID indexes every mapping entry touched by the plan by
// dbid, for stages that need a PC-side path but whose SyncAction
// doesn't itself carry a full mapping.Entry (SyncPlayCount, SyncRating).
func entriesByDBID(plan diffengine.SyncPlan) map[uint64]mapping.Entry {
	out := make(map[uint64]mapping.Entry)
	for _, a := range plan.Actions {
		if a.MappingEntry != nil {
			out[a.MappingEntry.DBID] = *a.MappingEntry
		}
	}
	return out
}

func init() {
	metrics.Register()
}
