package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipodsync/core/internal/diffengine"
	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/mapping"
	"github.com/ipodsync/core/internal/signer"
)

func newMountRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "iPod_Control", "iTunes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "iPod_Control", "Music"), 0o755))
	return root
}

func newTestStore(t *testing.T) *mapping.JSONStore {
	t.Helper()
	store, err := mapping.LoadJSON(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)
	return store
}

func baseOptions(t *testing.T, mountRoot string) Options {
	return Options{
		MountRoot:   mountRoot,
		DeviceClass: signer.ClassHash58Only,
		FireWireGUID: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
}

func TestRunAddsOneTrackAndWritesDatabase(t *testing.T) {
	mountRoot := newMountRoot(t)
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "song.mp3")
	require.NoError(t, os.WriteFile(srcPath, []byte("fake mp3 bytes"), 0o644))

	db := &itunesdb.Database{NextID: 1}
	store := newTestStore(t)

	plan := diffengine.SyncPlan{
		Actions: []diffengine.SyncAction{
			{
				Kind:     diffengine.ActionAdd,
				AlbumKey: "the album\x00the artist",
				PC: &diffengine.PCTrack{
					Path:        srcPath,
					Fingerprint: "fp-1",
					Size:        14,
					Title:       "Song One",
					Artist:      "The Artist",
					Album:       "The Album",
					AlbumArtist: "The Artist",
					ArtHash:     "none",
				},
			},
		},
		Storage: diffengine.StorageSummary{BytesToAdd: 14},
	}

	opts := baseOptions(t, mountRoot)
	result, err := Run(t.Context(), plan, db, store, opts)
	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	assert.Empty(t, result.Failures)
	require.Len(t, db.Tracks, 1)
	assert.Equal(t, "Song One", db.Tracks[0].Title)
	assert.Equal(t, "MP3 ", db.Tracks[0].FileType)
	require.Len(t, db.Playlists, 1)
	assert.True(t, db.Playlists[0].IsMaster)
	assert.Contains(t, db.Playlists[0].TrackIDs, db.Tracks[0].TrackID)

	dbPath := opts.dbPath()
	written, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	assert.NotEmpty(t, written)

	require.Len(t, store.All(), 1)
	assert.Equal(t, "fp-1", store.All()[0].Fingerprint)

	devicePath := filepath.Join(mountRoot, "iPod_Control", filepath.FromSlash(db.Tracks[0].Location))
	_, err = os.Stat(devicePath)
	require.NoError(t, err)
}

func TestRunRemovesTrackAndDeletesFile(t *testing.T) {
	mountRoot := newMountRoot(t)
	relLocation := "Music/F00/AAAA.mp3"
	absLocation := filepath.Join(mountRoot, "iPod_Control", relLocation)
	require.NoError(t, os.MkdirAll(filepath.Dir(absLocation), 0o755))
	require.NoError(t, os.WriteFile(absLocation, []byte("x"), 0o644))

	db := &itunesdb.Database{
		NextID: 2,
		Tracks: []itunesdb.Track{{DBID: 42, TrackID: 1, Location: relLocation, Title: "Gone"}},
		Playlists: []itunesdb.Playlist{{Title: "iPod", IsMaster: true, TrackIDs: []uint32{1}}},
	}
	store := newTestStore(t)
	store.Add(mapping.Entry{Fingerprint: "fp-gone", DBID: 42})

	plan := diffengine.SyncPlan{
		Actions: []diffengine.SyncAction{
			{Kind: diffengine.ActionRemove, DBID: 42, MappingEntry: &mapping.Entry{Fingerprint: "fp-gone", DBID: 42}},
		},
	}

	opts := baseOptions(t, mountRoot)
	result, err := Run(t.Context(), plan, db, store, opts)
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Empty(t, db.Tracks)
	assert.Empty(t, db.Playlists[0].TrackIDs)
	assert.Empty(t, store.All())

	_, statErr := os.Stat(absLocation)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunFoldsPlayCountsEveryRun(t *testing.T) {
	mountRoot := newMountRoot(t)
	db := &itunesdb.Database{
		NextID: 2,
		Tracks: []itunesdb.Track{{DBID: 7, TrackID: 1, PlayCount: 3, PlayCount2: 2}},
	}
	store := newTestStore(t)

	opts := baseOptions(t, mountRoot)
	result, err := Run(t.Context(), diffengine.SyncPlan{}, db, store, opts)
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Equal(t, uint32(5), db.Tracks[0].PlayCount)
	assert.Equal(t, uint32(0), db.Tracks[0].PlayCount2)
}

func TestRunSyncsRating(t *testing.T) {
	mountRoot := newMountRoot(t)
	db := &itunesdb.Database{
		NextID: 2,
		Tracks: []itunesdb.Track{{DBID: 9, TrackID: 1, Rating: 0}},
	}
	store := newTestStore(t)

	plan := diffengine.SyncPlan{
		Actions: []diffengine.SyncAction{
			{Kind: diffengine.ActionSyncRating, DBID: 9, ResolvedRating: 80},
		},
	}

	opts := baseOptions(t, mountRoot)
	_, err := Run(t.Context(), plan, db, store, opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(80), db.Tracks[0].Rating)
}

func TestRunStopsWhenCancelledBeforeCommit(t *testing.T) {
	mountRoot := newMountRoot(t)
	db := &itunesdb.Database{NextID: 1}
	store := newTestStore(t)

	calls := 0
	opts := baseOptions(t, mountRoot)
	opts.CancelCheck = func() bool {
		calls++
		return calls > 1
	}

	result, err := Run(t.Context(), diffengine.SyncPlan{}, db, store, opts)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)

	_, statErr := os.Stat(opts.dbPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunReturnsErrorWhenStorageInsufficient(t *testing.T) {
	mountRoot := newMountRoot(t)
	db := &itunesdb.Database{NextID: 1}
	store := newTestStore(t)

	plan := diffengine.SyncPlan{
		Actions: []diffengine.SyncAction{{Kind: diffengine.ActionAdd, PC: &diffengine.PCTrack{Path: "/nonexistent/x.mp3"}}},
		Storage: diffengine.StorageSummary{BytesToAdd: 1 << 62},
	}

	opts := baseOptions(t, mountRoot)
	_, err := Run(t.Context(), plan, db, store, opts)
	assert.ErrorIs(t, err, ErrStorageInsufficient)
}
