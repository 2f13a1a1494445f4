package mapping

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStoreAddLookupUpdateRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := LoadJSON(filepath.Join(dir, "mapping.json"))
	require.NoError(t, err)

	e := Entry{Fingerprint: "F1", DBID: 1, AlbumKey: "studio", SourcePathHint: "Song.mp3", SourceSize: 100}
	store.Add(e)
	assert.Len(t, store.Lookup("F1"), 1)

	e.SourceSize = 200
	store.Update(e)
	got := store.Lookup("F1")
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].SourceSize)

	store.Remove("F1", 1)
	assert.Empty(t, store.Lookup("F1"))
}

func TestJSONStoreSameFingerprintTwoAlbums(t *testing.T) {
	dir := t.TempDir()
	store, err := LoadJSON(filepath.Join(dir, "mapping.json"))
	require.NoError(t, err)

	store.Add(Entry{Fingerprint: "F", DBID: 1, AlbumKey: "studio"})
	store.Add(Entry{Fingerprint: "F", DBID: 2, AlbumKey: "greatest hits"})

	got := store.Lookup("F")
	require.Len(t, got, 2)
}

func TestJSONStoreSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	store, err := LoadJSON(path)
	require.NoError(t, err)
	store.Add(Entry{Fingerprint: "F1", DBID: 42, AlbumKey: "b", SourcePathHint: "a/b.mp3", FormatInfo: "mp3"})
	require.NoError(t, store.Save())

	reloaded, err := LoadJSON(path)
	require.NoError(t, err)
	got := reloaded.Lookup("F1")
	require.Len(t, got, 1)
	assert.Equal(t, uint64(42), got[0].DBID)
	assert.Equal(t, "mp3", got[0].FormatInfo)
}

func TestJSONStoreLoadMissingFileIsEmpty(t *testing.T) {
	store, err := LoadJSON(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Empty(t, store.All())
}

func TestJSONStoreAllReturnsEveryEntry(t *testing.T) {
	dir := t.TempDir()
	store, err := LoadJSON(filepath.Join(dir, "mapping.json"))
	require.NoError(t, err)
	store.Add(Entry{Fingerprint: "F1", DBID: 1})
	store.Add(Entry{Fingerprint: "F2", DBID: 2})
	assert.Len(t, store.All(), 2)
}
