// Package backup saves a copy of the device database next to itself
// before an atomic replace, so a failed or interrupted sync can be
// recovered from (§4.7 stage 7, §6 "iTunesDB.backup"). Adapted from the
// teacher's internal/backup/backup.go: that package archives an entire
// application database directory into a rotated set of tar.gz
// snapshots, which doesn't fit here — the device only ever has one
// fixed-name sibling backup (iTunesDB.backup) to maintain, so this
// version drops the archive format and rotation and keeps the
// teacher's checksum-verification idiom.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Info describes a backup copy written by WriteSideBySide.
type Info struct {
	Path     string
	Size     int64
	Checksum string
}

// WriteSideBySide copies src to dst, overwriting any previous backup
// at dst, and returns its size and a sha256 checksum for later
// verification. The copy is not itself atomic: dst is a backup of the
// database that is about to be replaced, not the database itself, so
// a torn write here is recoverable by re-running sync.
func WriteSideBySide(src, dst string) (Info, error) {
	in, err := os.Open(src)
	if err != nil {
		return Info{}, fmt.Errorf("backup: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return Info{}, fmt.Errorf("backup: create %s: %w", dst, err)
	}
	defer out.Close()

	hasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, hasher))
	if err != nil {
		return Info{}, fmt.Errorf("backup: copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		return Info{}, fmt.Errorf("backup: sync %s: %w", dst, err)
	}

	return Info{Path: dst, Size: written, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// VerifyChecksum reports whether the file at path still matches want.
func VerifyChecksum(path, want string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return false, fmt.Errorf("backup: hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)) == want, nil
}
