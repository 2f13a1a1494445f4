package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSideBySideCopiesAndChecksums(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "iTunesDB")
	require.NoError(t, os.WriteFile(src, []byte("database bytes"), 0o644))

	dst := filepath.Join(dir, "iTunesDB.backup")
	info, err := WriteSideBySide(src, dst)
	require.NoError(t, err)

	assert.Equal(t, int64(len("database bytes")), info.Size)
	assert.NotEmpty(t, info.Checksum)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "database bytes", string(got))
}

func TestWriteSideBySideOverwritesPreviousBackup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "iTunesDB")
	dst := filepath.Join(dir, "iTunesDB.backup")
	require.NoError(t, os.WriteFile(dst, []byte("stale backup"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte("fresh"), 0o644))

	_, err := WriteSideBySide(src, dst)
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

func TestVerifyChecksumDetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	ok, err := VerifyChecksum(path, "not-a-real-checksum")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyChecksumConfirmsMatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "iTunesDB")
	dst := filepath.Join(dir, "iTunesDB.backup")
	require.NoError(t, os.WriteFile(src, []byte("database bytes"), 0o644))

	info, err := WriteSideBySide(src, dst)
	require.NoError(t, err)

	ok, err := VerifyChecksum(dst, info.Checksum)
	require.NoError(t, err)
	assert.True(t, ok)
}
