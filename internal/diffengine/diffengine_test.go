package diffengine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipodsync/core/internal/mapping"
)

func newStore(t *testing.T) *mapping.JSONStore {
	t.Helper()
	s, err := mapping.LoadJSON(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)
	return s
}

func TestBuildAddsTrackWithNoMappingEntry(t *testing.T) {
	store := newStore(t)
	plan := Build([]PCTrack{{Path: "Song.mp3", Fingerprint: "F", Album: "B", Size: 1000}}, store, nil, nil)

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionAdd, plan.Actions[0].Kind)
	assert.Equal(t, "b", plan.Actions[0].AlbumKey)
	assert.Equal(t, int64(1000), plan.Storage.BytesToAdd)
}

func TestBuildSameRecordingTwoAlbumsBothAdd(t *testing.T) {
	store := newStore(t)
	pc := []PCTrack{
		{Path: "File1.flac", Fingerprint: "F", Album: "Studio"},
		{Path: "File2.m4a", Fingerprint: "F", Album: "Greatest Hits"},
	}
	plan := Build(pc, store, nil, nil)

	require.Len(t, plan.Actions, 2)
	assert.Equal(t, ActionAdd, plan.Actions[0].Kind)
	assert.Equal(t, ActionAdd, plan.Actions[1].Kind)
	assert.NotEqual(t, plan.Actions[0].AlbumKey, plan.Actions[1].AlbumKey)
}

func TestBuildMatchesExistingEntryNoActionWhenUnchanged(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Song.mp3", SourceSize: 1000, SourceMTime: 500, ArtHash: "none"})

	pc := PCTrack{Path: "Song.mp3", Fingerprint: "F", Album: "B", Size: 1000, MTime: 500, ArtHash: "none"}
	plan := Build([]PCTrack{pc}, store, map[uint64]IPodMetadata{}, map[uint64]IPodTrack{})

	assert.Empty(t, plan.Actions)
}

func TestBuildDetectsFileChangeOnSizeAndMtimeDelta(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Song.mp3", SourceSize: 1_000_000, SourceMTime: 500, ArtHash: "none"})

	pc := PCTrack{Path: "Song.mp3", Fingerprint: "F", Album: "B", Size: 1_200_000, MTime: 600, ArtHash: "none"}
	plan := Build([]PCTrack{pc}, store, map[uint64]IPodMetadata{1: {Album: "B"}}, map[uint64]IPodTrack{})

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionUpdateFile, plan.Actions[0].Kind)
}

func TestBuildIgnoresSizeDeltaWithoutMtimeChange(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Song.mp3", SourceSize: 1_000_000, SourceMTime: 500, ArtHash: "none"})

	pc := PCTrack{Path: "Song.mp3", Fingerprint: "F", Album: "B", Size: 2_000_000, MTime: 500, ArtHash: "none"}
	plan := Build([]PCTrack{pc}, store, map[uint64]IPodMetadata{1: {Album: "B"}}, map[uint64]IPodTrack{})

	assert.Empty(t, plan.Actions)
}

func TestBuildDetectsMetadataChange(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Song.mp3", ArtHash: "none"})

	pc := PCTrack{Path: "Song.mp3", Fingerprint: "F", Album: "B", Title: "New Title", ArtHash: "none"}
	prior := map[uint64]IPodMetadata{1: {Title: "Old Title", Album: "B"}}
	plan := Build([]PCTrack{pc}, store, prior, map[uint64]IPodTrack{})

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionUpdateMetadata, plan.Actions[0].Kind)
	assert.Contains(t, plan.Actions[0].ChangedFields, "title")
}

func TestBuildRemovesFingerprintAbsentFromPC(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "Gone", DBID: 7, AlbumKey: "b", SourceSize: 500})

	plan := Build(nil, store, nil, nil)

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionRemove, plan.Actions[0].Kind)
	assert.Equal(t, uint64(7), plan.Actions[0].DBID)
	assert.Equal(t, int64(500), plan.Storage.BytesToRemove)
}

func TestBuildUnresolvedCollisionWithSuggestions(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Alpha.mp3"})
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 2, AlbumKey: "b", SourcePathHint: "Beta.mp3"})

	pc := PCTrack{Path: "Alph.mp3", Fingerprint: "F", Album: "B"}
	plan := Build([]PCTrack{pc}, store, nil, nil)

	require.Len(t, plan.UnresolvedCollisions, 1)
	assert.Empty(t, plan.Actions, "an unresolved collision emits no action")
	// "Alph.mp3" fuzzy-matches "Alpha.mp3" but not "Beta.mp3".
	suggestions := plan.UnresolvedCollisions[0].Suggestions
	require.Len(t, suggestions, 1)
	assert.Equal(t, uint64(1), suggestions[0].Entry.DBID)
}

func TestBuildExactPathHintResolvesCollision(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Alpha.mp3", ArtHash: "none"})
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 2, AlbumKey: "b", SourcePathHint: "Beta.mp3", ArtHash: "none"})

	pc := PCTrack{Path: "Beta.mp3", Fingerprint: "F", Album: "B", ArtHash: "none"}
	plan := Build([]PCTrack{pc}, store, map[uint64]IPodMetadata{}, map[uint64]IPodTrack{})

	assert.Empty(t, plan.UnresolvedCollisions)
	// The claimed entry (dbid 2) produces no action since nothing
	// changed; dbid 1 remains unclaimed and is removed.
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionRemove, plan.Actions[0].Kind)
	assert.Equal(t, uint64(1), plan.Actions[0].DBID)
}

func TestBuildMissingArtworkListed(t *testing.T) {
	store := newStore(t)
	plan := Build(nil, store, nil, map[uint64]IPodTrack{
		5: {DBID: 5, ArtworkCount: 0, MHIILink: 0},
		6: {DBID: 6, ArtworkCount: 1, MHIILink: 42},
	})
	assert.Equal(t, []uint64{5}, plan.MissingArtwork)
}

func TestBuildPlayCountAndRatingSync(t *testing.T) {
	store := newStore(t)
	store.Add(mapping.Entry{Fingerprint: "F", DBID: 1, AlbumKey: "b", SourcePathHint: "Song.mp3", ArtHash: "none"})

	pc := PCTrack{Path: "Song.mp3", Fingerprint: "F", Album: "B", Rating: 60, ArtHash: "none"}
	ipodTracks := map[uint64]IPodTrack{1: {DBID: 1, PlayCount2: 3, Rating: 100}}
	plan := Build([]PCTrack{pc}, store, map[uint64]IPodMetadata{}, ipodTracks)

	var kinds []ActionKind
	for _, a := range plan.Actions {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, ActionSyncPlayCount)
	assert.Contains(t, kinds, ActionSyncRating)
}

func TestAlbumKeyLowercasesAndStrips(t *testing.T) {
	assert.Equal(t, "greatest hits", AlbumKey("  Greatest Hits  "))
}

func TestMD5HexReturnsNoneForEmpty(t *testing.T) {
	assert.Equal(t, "none", MD5Hex(nil))
	assert.NotEqual(t, "none", MD5Hex([]byte{1, 2, 3}))
}
