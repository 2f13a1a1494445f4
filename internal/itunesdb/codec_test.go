package itunesdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDatabase() *Database {
	return &Database{
		Version: 25,
		ID:      0xAABBCCDDEE,
		NextID:  3,
		Albums: []Album{
			{AlbumID: 1, Title: "Elephant", Artist: "The White Stripes"},
		},
		Tracks: []Track{
			{
				DBID: 1001, TrackID: 1, FileType: "MP3 ", MediaType: MediaTypeAudio,
				Size: 4_200_000, DurationMS: 210_000, BitRateKbps: 192, SampleRateHz: 44100,
				TrackNumber: 1, TrackCount: 14, Rating: 80, PlayCount: 5,
				DateAdded: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
				AlbumID:   1,
				Title:     "Seven Nation Army", Artist: "The White Stripes", Album: "Elephant",
				Genre: "Rock", Location: ":Music:F00:ABCD.mp3",
			},
			{
				DBID: 1002, TrackID: 2, FileType: "M4A ", MediaType: MediaTypeAudio,
				Size: 3_800_000, DurationMS: 198_000, BitRateKbps: 256, SampleRateHz: 48000,
				TrackNumber: 2, TrackCount: 14, Rating: 100,
				AlbumID: 1,
				Title:   "Black Math", Artist: "The White Stripes", Album: "Elephant",
				Location: ":Music:F01:WXYZ.m4a",
			},
		},
		Playlists: []Playlist{
			{Title: "Library", IsMaster: true, TrackIDs: []uint32{1, 2}},
		},
	}
}

func TestWriteThenParseRoundTrip(t *testing.T) {
	db := sampleDatabase()
	out, err := Write(db)
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)

	assert.Equal(t, db.Version, parsed.Version)
	assert.Equal(t, db.ID, parsed.ID)
	assert.Equal(t, db.NextID, parsed.NextID)
	require.Len(t, parsed.Albums, 1)
	assert.Equal(t, db.Albums[0], parsed.Albums[0])
	require.Len(t, parsed.Tracks, 2)
	for i := range db.Tracks {
		assert.Equal(t, db.Tracks[i].Title, parsed.Tracks[i].Title)
		assert.Equal(t, db.Tracks[i].Artist, parsed.Tracks[i].Artist)
		assert.Equal(t, db.Tracks[i].Album, parsed.Tracks[i].Album)
		assert.Equal(t, db.Tracks[i].Location, parsed.Tracks[i].Location)
		assert.Equal(t, db.Tracks[i].DBID, parsed.Tracks[i].DBID)
		assert.Equal(t, db.Tracks[i].TrackID, parsed.Tracks[i].TrackID)
		assert.Equal(t, db.Tracks[i].SampleRateHz, parsed.Tracks[i].SampleRateHz)
	}
	require.Len(t, parsed.Playlists, 1)
	assert.True(t, parsed.Playlists[0].IsMaster)
	assert.Equal(t, []uint32{1, 2}, parsed.Playlists[0].TrackIDs)
	assert.Equal(t, "Library", parsed.Playlists[0].Title)

	assert.Equal(t, len(out), int(parseU32(out, 8)), "mhbd.total_length must equal emitted byte length")
}

func TestParseThenWriteIsStableSecondRoundTrip(t *testing.T) {
	db := sampleDatabase()
	out1, err := Write(db)
	require.NoError(t, err)
	parsed1, err := Parse(out1)
	require.NoError(t, err)

	out2, err := Write(parsed1)
	require.NoError(t, err)
	parsed2, err := Parse(out2)
	require.NoError(t, err)

	assert.Equal(t, parsed1.Tracks, parsed2.Tracks)
	assert.Equal(t, parsed1.Albums, parsed2.Albums)
	assert.Equal(t, parsed1.Playlists, parsed2.Playlists)
}

func TestWriteRejectsDuplicateDBID(t *testing.T) {
	db := sampleDatabase()
	db.Tracks[1].DBID = db.Tracks[0].DBID
	_, err := Write(db)
	require.Error(t, err)
	var violation *CodecInvariantViolation
	assert.ErrorAs(t, err, &violation)
}

func TestWriteRejectsNextIDNotMonotone(t *testing.T) {
	db := sampleDatabase()
	db.NextID = 1 // not greater than max trackID (2)
	_, err := Write(db)
	require.Error(t, err)
	var violation *CodecInvariantViolation
	assert.ErrorAs(t, err, &violation)
}

func TestWriteRejectsDanglingPlaylistReference(t *testing.T) {
	db := sampleDatabase()
	db.Playlists[0].TrackIDs = append(db.Playlists[0].TrackIDs, 999)
	_, err := Write(db)
	require.Error(t, err)
	var violation *CodecInvariantViolation
	assert.ErrorAs(t, err, &violation)
}

func TestMhodStringEncodingDetection(t *testing.T) {
	ascii := encodeMhodString("Rock")
	assert.Equal(t, "Rock", decodeMhodString(ascii))

	unicode := encodeMhodString("Café 日本")
	assert.Equal(t, "Café 日本", decodeMhodString(unicode))
	// Any of the first four bytes must be zero to trigger UTF-16 detection.
	hasZero := false
	probe := unicode
	if len(probe) > 4 {
		probe = probe[:4]
	}
	for _, b := range probe {
		if b == 0 {
			hasZero = true
		}
	}
	assert.True(t, hasZero)
}

func TestPlayCountsRoundTrip(t *testing.T) {
	entries := []PlayCountEntry{
		{PlayCount: 5, Rating: 100, LastPlayed: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{PlayCount: 0},
	}
	out := WritePlayCounts(entries)
	parsed, err := ParsePlayCounts(out)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, uint32(5), parsed[0].PlayCount)
	assert.Equal(t, uint32(100), parsed[0].Rating)
	assert.True(t, parsed[0].LastPlayed.Equal(entries[0].LastPlayed))
}

func TestMacTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	mac := timeToMacTime(now)
	back := macTimeToTime(mac)
	assert.True(t, now.Equal(back))
	assert.Equal(t, uint32(0), timeToMacTime(time.Time{}))
	assert.True(t, macTimeToTime(0).IsZero())
}
