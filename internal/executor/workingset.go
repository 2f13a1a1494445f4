package executor

import "github.com/ipodsync/core/internal/itunesdb"

// workingSet indexes db's tracks by dbid for O(1) stage lookups; db
// itself remains the single source of truth the codec eventually emits.
type workingSet struct {
	db        *itunesdb.Database
	byDBID    map[uint64]int // index into db.Tracks
	byAlbum   map[string]uint32 // "title\x00artist" -> AlbumID
}

func newWorkingSet(db *itunesdb.Database) *workingSet {
	ws := &workingSet{db: db, byDBID: make(map[uint64]int, len(db.Tracks)), byAlbum: make(map[string]uint32, len(db.Albums))}
	for i, t := range db.Tracks {
		ws.byDBID[t.DBID] = i
	}
	for _, a := range db.Albums {
		ws.byAlbum[albumKey(a.Title, a.Artist)] = a.AlbumID
	}
	return ws
}

func albumKey(title, artist string) string {
	return title + "\x00" + artist
}

func (ws *workingSet) track(dbid uint64) (*itunesdb.Track, bool) {
	i, ok := ws.byDBID[dbid]
	if !ok {
		return nil, false
	}
	return &ws.db.Tracks[i], true
}

// removeTrack deletes the track with dbid from db.Tracks and every
// playlist's TrackIDs that reference its TrackID, keeping the working
// set and the master playlist consistent.
func (ws *workingSet) removeTrack(dbid uint64) {
	i, ok := ws.byDBID[dbid]
	if !ok {
		return
	}
	trackID := ws.db.Tracks[i].TrackID

	ws.db.Tracks = append(ws.db.Tracks[:i], ws.db.Tracks[i+1:]...)
	delete(ws.byDBID, dbid)
	for idx := i; idx < len(ws.db.Tracks); idx++ {
		ws.byDBID[ws.db.Tracks[idx].DBID] = idx
	}

	for pi := range ws.db.Playlists {
		ws.db.Playlists[pi].TrackIDs = removeTrackID(ws.db.Playlists[pi].TrackIDs, trackID)
	}
	for pi := range ws.db.SmartPlaylists {
		ws.db.SmartPlaylists[pi].TrackIDs = removeTrackID(ws.db.SmartPlaylists[pi].TrackIDs, trackID)
	}
}

func removeTrackID(ids []uint32, target uint32) []uint32 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// addTrack appends t to db.Tracks, indexes it, and references its
// TrackID from the master playlist (§S2 "master playlist has one mhip
// referencing that trackID").
func (ws *workingSet) addTrack(t itunesdb.Track) {
	ws.db.Tracks = append(ws.db.Tracks, t)
	ws.byDBID[t.DBID] = len(ws.db.Tracks) - 1

	for pi := range ws.db.Playlists {
		if ws.db.Playlists[pi].IsMaster {
			ws.db.Playlists[pi].TrackIDs = append(ws.db.Playlists[pi].TrackIDs, t.TrackID)
			return
		}
	}
	// No master playlist yet: create one, as the first playlist entry
	// (§4.2 "Emit order": "master playlist is emitted first").
	ws.db.Playlists = append([]itunesdb.Playlist{{Title: "iPod", IsMaster: true, TrackIDs: []uint32{t.TrackID}}}, ws.db.Playlists...)
}

// albumIDFor returns the AlbumID for (title, artist), creating a new
// mhia record if none exists yet.
func (ws *workingSet) albumIDFor(title, artist string) uint32 {
	key := albumKey(title, artist)
	if id, ok := ws.byAlbum[key]; ok {
		return id
	}
	maxID := uint32(0)
	for _, a := range ws.db.Albums {
		if a.AlbumID > maxID {
			maxID = a.AlbumID
		}
	}
	newID := maxID + 1
	ws.db.Albums = append(ws.db.Albums, itunesdb.Album{AlbumID: newID, Title: title, Artist: artist})
	ws.byAlbum[key] = newID
	return newID
}

// nextTrackID assigns trackID values greater than every existing one,
// keeping db.NextID strictly greater than the maximum assigned
// trackID at all times (§4.2 writer contract item 4).
func (ws *workingSet) nextTrackID() uint32 {
	id := ws.db.NextID
	ws.db.NextID++
	return id
}
