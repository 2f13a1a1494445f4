package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipodsync/core/internal/transcode"
)

// folderCursor round-robins destination folders across Music/F00..F49
// (§4.7 "Re-sync changed files" / "Add").
type folderCursor struct{ n int }

func (c *folderCursor) next() string {
	folder := fmt.Sprintf("F%02d", c.n%numMusicFolders)
	c.n++
	return folder
}

// targetExtension maps a routed transcode.Action to the container
// extension the destination file is written with.
func targetExtension(srcExt string, action transcode.Action) string {
	switch action {
	case transcode.ActionTranscodeALAC, transcode.ActionTranscodeAAC:
		return ".m4a"
	default:
		return strings.ToLower(srcExt)
	}
}

// fileTypeWord derives the 4-character mhit.file_type word from a
// destination extension (§3 "file type as a four-character ASCII word").
func fileTypeWord(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp3":
		return "MP3 "
	case "m4a":
		return "M4A "
	case "aac":
		return "AAC "
	default:
		return strings.ToUpper(strings.TrimPrefix(ext, "."))
	}
}

// materialize copies or transcodes srcPath into a freshly chosen
// Music/F00..F49 destination, consulting and populating the transcode
// cache for non-copy routes (§4.7 "File copy/transcode").
func materialize(ctx context.Context, srcPath, fingerprint string, cursor *folderCursor, opts Options) (deviceRelPath, absPath string, err error) {
	action := transcode.RouteExtension(filepath.Ext(srcPath))
	ext := targetExtension(filepath.Ext(srcPath), action)
	folder := cursor.next()
	stem := newFileStem()

	rel := filepath.Join("Music", folder, stem+ext)
	abs := filepath.Join(opts.MountRoot, "iPod_Control", rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", "", fmt.Errorf("executor: create destination dir: %w", err)
	}

	switch action {
	case transcode.ActionCopy:
		if err := copyFile(srcPath, abs); err != nil {
			return "", "", err
		}
	case transcode.ActionTranscodeALAC:
		if err := transcodeWithCache(ctx, srcPath, fingerprint, "alac", 0, abs, opts, transcode.ToALAC); err != nil {
			return "", "", err
		}
	case transcode.ActionTranscodeAAC:
		bitrate := opts.AACBitrateKbps
		if err := transcodeWithCache(ctx, srcPath, fingerprint, "aac", bitrate, abs, opts, func(ctx context.Context, src, dst string) error {
			return transcode.ToAAC(ctx, src, dst, bitrate)
		}); err != nil {
			return "", "", err
		}
	}

	return filepath.ToSlash(rel), abs, nil
}

func transcodeWithCache(ctx context.Context, srcPath, fingerprint, format string, bitrateKbps int, destPath string, opts Options, run func(context.Context, string, string) error) error {
	key := transcode.CacheKey(fingerprint, format, bitrateKbps)
	if opts.Cache != nil {
		if cached, ok := opts.Cache.Get(key); ok {
			if err := copyFile(cached, destPath); err == nil {
				return nil
			}
			opts.Cache.Invalidate(key)
		}
	}
	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("executor: transcode rate limiter: %w", err)
		}
	}
	if err := run(ctx, srcPath, destPath); err != nil {
		return err
	}
	if opts.Cache != nil {
		opts.Cache.Set(key, destPath)
	}
	return nil
}

func copyFile(srcPath, dstPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("executor: open %s: %w", srcPath, err)
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("executor: create %s: %w", dstPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("executor: copy %s to %s: %w", srcPath, dstPath, err)
	}
	return out.Sync()
}

// removeDeviceFile deletes the file a track's location points to.
// Missing files are not an error here: the integrity checker is the
// component responsible for reconciling a database that already
// disagrees with the filesystem.
func removeDeviceFile(opts Options, location string) error {
	if location == "" {
		return nil
	}
	abs := filepath.Join(opts.MountRoot, "iPod_Control", filepath.FromSlash(location))
	err := os.Remove(abs)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("executor: remove %s: %w", abs, err)
	}
	return nil
}
