package itunesdb

import (
	"fmt"

	"github.com/ipodsync/core/internal/bytebuffer"
)

// CodecInvariantViolation is returned by Write's self-check pass when
// the in-memory Database would violate one of the writer contract's
// invariants (§4.2 items 1-7). The writer never persists a buffer that
// fails this check.
type CodecInvariantViolation struct {
	Reason string
}

func (e *CodecInvariantViolation) Error() string {
	return fmt.Sprintf("itunesdb: codec invariant violated: %s", e.Reason)
}

// Write emits db as a complete iTunesDB byte image, in the fixed
// dataset order: albums, tracks, podcasts, playlists, smart playlists
// (§4.2 "Emit order"). The master playlist, if present, must be the
// first entry of db.Playlists; Write does not reorder it — callers
// (the executor) are responsible for keeping it first.
func Write(db *Database) ([]byte, error) {
	buf := bytebuffer.New(1 << 16)

	mark := buf.StartContainer(8)
	buf.Append([]byte(tagDatabase))
	buf.WriteU32LE(mhbdHeaderLen)
	buf.WriteU32LE(0) // total_length, patched at the end
	buf.WriteU32LE(db.Version)
	buf.Zero(8) // two unknown header words
	buf.WriteU64LE(db.ID)
	buf.WriteU32LE(db.NextID)
	buf.Zero(mhbdHeaderLen - (buf.Pos() - mark.Start()))

	writeDataset(buf, DatasetAlbums, tagListAlbum, len(db.Albums), func() {
		for _, a := range db.Albums {
			writeAlbum(buf, a)
		}
	})
	writeDataset(buf, DatasetTracks, tagListTrack, len(db.Tracks), func() {
		for _, t := range db.Tracks {
			writeTrack(buf, t)
		}
	})
	writeDataset(buf, DatasetPodcasts, tagListTrack, len(db.Podcasts), func() {
		for _, t := range db.Podcasts {
			writeTrack(buf, t)
		}
	})
	writeDataset(buf, DatasetPlaylists, tagListPlay, len(db.Playlists), func() {
		for _, p := range db.Playlists {
			writePlaylist(buf, p)
		}
	})
	writeDataset(buf, DatasetSmartPlaylists, tagListPlay, len(db.SmartPlaylists), func() {
		for _, p := range db.SmartPlaylists {
			writePlaylist(buf, p)
		}
	})

	mark.Close(buf)

	out := buf.Bytes()
	if err := checkInvariants(db, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeDataset(buf *bytebuffer.Buffer, datasetType uint32, listTag string, childCount int, emitChildren func()) {
	dsMark := buf.StartContainer(8)
	buf.Append([]byte(tagDataset))
	buf.WriteU32LE(mhsdHeaderLen)
	buf.WriteU32LE(0)
	buf.WriteU32LE(datasetType)

	// mhlt/mhla/mhlp carry no total_length field (§3), just a child count.
	buf.Append([]byte(listTag))
	buf.WriteU32LE(mhlHeaderLen)
	buf.WriteU32LE(uint32(childCount))

	emitChildren()

	dsMark.Close(buf)
}

// checkInvariants re-parses nothing; it validates structural
// invariants directly against the in-memory Database and the emitted
// length, per §4.2 writer contract items 3-6 (1, 2, and 7 are
// guaranteed by construction via bytebuffer.Mark backpatching).
func checkInvariants(db *Database, emitted []byte) error {
	if int(parseU32(emitted, 8)) != len(emitted) {
		return &CodecInvariantViolation{Reason: "mhbd.total_length does not equal emitted byte length"}
	}

	seenDBID := make(map[uint64]bool)
	maxTrackID := uint32(0)
	trackIDs := make(map[uint32]bool)
	for _, t := range allTracks(db) {
		if seenDBID[t.DBID] {
			return &CodecInvariantViolation{Reason: fmt.Sprintf("duplicate dbid %d", t.DBID)}
		}
		seenDBID[t.DBID] = true
		trackIDs[t.TrackID] = true
		if t.TrackID > maxTrackID {
			maxTrackID = t.TrackID
		}
	}
	if db.NextID <= maxTrackID {
		return &CodecInvariantViolation{Reason: fmt.Sprintf("next_id %d is not greater than max trackID %d", db.NextID, maxTrackID)}
	}

	for _, p := range append(append([]Playlist{}, db.Playlists...), db.SmartPlaylists...) {
		for _, id := range p.TrackIDs {
			if !trackIDs[id] {
				return &CodecInvariantViolation{Reason: fmt.Sprintf("playlist %q references unknown trackID %d", p.Title, id)}
			}
		}
	}

	return nil
}

func allTracks(db *Database) []Track {
	out := make([]Track, 0, len(db.Tracks)+len(db.Podcasts))
	out = append(out, db.Tracks...)
	out = append(out, db.Podcasts...)
	return out
}

func parseU32(data []byte, offset int) uint32 {
	v, _ := readU32LE(data, offset)
	return v
}
