// Package executor runs a diffengine.SyncPlan against the in-memory
// iTunesDB working set as seven ordered stages, then invokes the codec
// and signer exactly once to commit the result (§4.7). It is the one
// component allowed to mutate tracks, albums, playlists, device files,
// and the mapping store.
package executor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ipodsync/core/internal/backup"
	"github.com/ipodsync/core/internal/device"
	"github.com/ipodsync/core/internal/diffengine"
	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/mapping"
	"github.com/ipodsync/core/internal/mediainfo"
	"github.com/ipodsync/core/internal/metadataprovider"
	"github.com/ipodsync/core/internal/metrics"
	"github.com/ipodsync/core/internal/signer"
	"github.com/ipodsync/core/internal/transcode"
)

// preflightReserveBytes is the fixed slack §4.7 requires beyond the
// plan's net storage delta.
const preflightReserveBytes = 10 * 1024 * 1024

// numMusicFolders is the device's Music/F00..F49 fan-out.
const numMusicFolders = 50

// ArtworkWriter rewrites the device's ArtworkDB and .ithmb pixel files
// when the plan flags missing artwork. Pixel resampling (RGB565) is an
// explicit non-goal of this engine (§1), so it is abstracted here
// exactly as the distilled spec's "image_encoder" capability.
type ArtworkWriter interface {
	// Write extracts artwork from the given PC paths (keyed by dbid),
	// deduplicates by content hash, and returns each dbid's assigned
	// mhii_img_id and source image byte size.
	Write(pcPathsByDBID map[uint64]string) (map[uint64]ArtworkLink, error)
}

// ArtworkLink is one track's resolved artwork placement.
type ArtworkLink struct {
	MHIIImgID     uint32
	SourceByteSize int64
}

// Options configures one Run. MountRoot is the device's mounted
// filesystem root (the parent of iPod_Control); all device paths are
// derived from it per §6's fixed layout.
type Options struct {
	MountRoot string

	DeviceClass  signer.DeviceClass
	FireWireGUID [8]byte
	HashInfo     *signer.HashInfo

	Cache            transcode.Cache
	Limiter          *transcode.Limiter
	AACBitrateKbps   int
	MetadataProvider metadataprovider.Provider
	WriteBackTags    bool
	ArtworkWriter    ArtworkWriter

	// CancelCheck is polled between items in stages 1, 2 and 4, after
	// every stage, and at the start of stage 7; stages 3, 5 and 6 do not
	// poll between their own items. When it returns true, processing
	// stops and nothing is persisted (§4.7, §5 "Cancellation is
	// cooperative").
	CancelCheck func() bool

	Logger *log.Logger
}

func (o Options) musicRoot() string    { return filepath.Join(o.MountRoot, "iPod_Control", "Music") }
func (o Options) dbPath() string       { return filepath.Join(o.MountRoot, "iPod_Control", "iTunes", "iTunesDB") }
func (o Options) dbBackupPath() string { return o.dbPath() + ".backup" }

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

func (o Options) cancelled() bool {
	return o.CancelCheck != nil && o.CancelCheck()
}

// FileFailure records a per-file error that §7's error table allows a
// sync run to tolerate: the offending action is skipped and the run
// continues.
type FileFailure struct {
	Path string
	Kind string // "fingerprint", "transcode", "copy"
	Err  error
}

// Result summarizes one Run.
type Result struct {
	Cancelled     bool
	Failures      []FileFailure
	NewMappingEntries []mapping.Entry
	BackupInfo    backup.Info
}

// ErrStorageInsufficient is returned when free space on the device
// falls short of the plan's requirement (§4.7 "Pre-flight storage check").
var ErrStorageInsufficient = errors.New("executor: insufficient free space for planned additions")

// Run executes plan's actions in the fixed seven-stage order against
// db and store, then commits the result with exactly one codec emit
// and signer pass (§4.7). db is mutated in place; store is mutated in
// place and saved only after a successful atomic database replace.
func Run(ctx context.Context, plan diffengine.SyncPlan, db *itunesdb.Database, store mapping.Store, opts Options) (result Result, runErr error) {
	const opType = "sync"
	log := opts.logger()
	start := time.Now()

	metrics.IncOperationStarted(opType)
	defer func() {
		metrics.ObserveOperationDuration(opType, time.Since(start))
		switch {
		case runErr != nil:
			metrics.IncOperationFailed(opType)
		case result.Cancelled:
			metrics.IncOperationCanceled(opType)
		default:
			metrics.IncOperationCompleted(opType)
		}
	}()

	if err := preflightStorageCheck(plan, opts); err != nil {
		runErr = err
		return result, runErr
	}

	ws := newWorkingSet(db)

	stage1Remove(ctx, &result, ws, store, plan, opts)
	if opts.cancelled() {
		result.Cancelled = true
		return result, nil
	}

	stage2ResyncChangedFiles(ctx, &result, ws, store, plan, opts)
	if opts.cancelled() {
		result.Cancelled = true
		return result, nil
	}

	stage3UpdateMetadataAndArtworkMapping(&result, ws, store, plan)
	if opts.cancelled() {
		result.Cancelled = true
		return result, nil
	}

	addedPCPaths, err := stage4Add(ctx, &result, ws, plan, opts)
	if err != nil {
		runErr = err
		return result, runErr
	}
	if opts.cancelled() {
		result.Cancelled = true
		return result, nil
	}

	stage5PlayCounts(&result, ws, plan, opts)
	if opts.cancelled() {
		result.Cancelled = true
		return result, nil
	}

	stage6Ratings(&result, ws, plan, opts)
	if opts.cancelled() {
		result.Cancelled = true
		return result, nil
	}

	if err := stage7Write(ctx, &result, ws, store, plan, addedPCPaths, opts); err != nil {
		runErr = err
		return result, runErr
	}

	log.Printf("executor: sync complete: %d actions applied, %d failures", len(plan.Actions), len(result.Failures))
	return result, nil
}

func preflightStorageCheck(plan diffengine.SyncPlan, opts Options) error {
	hasAdd := false
	for _, a := range plan.Actions {
		if a.Kind == diffengine.ActionAdd {
			hasAdd = true
			break
		}
	}
	if !hasAdd {
		return nil
	}

	stats, err := device.DiskStats(opts.MountRoot)
	if err != nil {
		return fmt.Errorf("executor: preflight storage check: %w", err)
	}
	required := plan.Storage.BytesToAdd - plan.Storage.BytesToRemove + preflightReserveBytes
	if required > 0 && int64(stats.FreeBytes) < required {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrStorageInsufficient, required, stats.FreeBytes)
	}
	return nil
}

// newDBID generates a random, never-reused 64-bit track identifier
// (§3 "Track record invariants"), grounded on the teacher's
// database/pebble_store.go use of oklog/ulid with a crypto/rand
// entropy source for collision-resistant IDs.
func newDBID() uint64 {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// crypto/rand failure is not recoverable; a zero-entropy
		// fallback still yields a value unlikely to collide within a
		// single run, and the process should be treated as fatal by
		// the caller if this ever triggers in practice.
		var buf [8]byte
		_, _ = io.ReadFull(rand.Reader, buf[:])
		return uint64(buf[0])<<56 | uint64(buf[1])<<48 | uint64(buf[2])<<40 | uint64(buf[3])<<32 |
			uint64(buf[4])<<24 | uint64(buf[5])<<16 | uint64(buf[6])<<8 | uint64(buf[7])
	}
	entropyBytes := id.Entropy()
	return uint64(entropyBytes[0])<<56 | uint64(entropyBytes[1])<<48 | uint64(entropyBytes[2])<<40 | uint64(entropyBytes[3])<<32 |
		uint64(entropyBytes[4])<<24 | uint64(entropyBytes[5])<<16 | uint64(entropyBytes[6])<<8 | uint64(entropyBytes[7])
}

// newFileStem returns a random 4-character alphanumeric stem for an
// on-device filename, drawn from a ULID's Crockford-base32 random
// component (§4.7 "Re-sync changed files").
func newFileStem() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "AAAA"
	}
	s := id.String()
	return strings.ToUpper(s[len(s)-4:])
}

// mediaInfoOrZero best-effort probes bitrate/sample rate for a freshly
// written file; a probe failure degrades to zeros rather than failing
// the stage, matching mediainfo.Extract's own fallback behavior.
func mediaInfoOrZero(path string) (bitrateKbps, sampleRateHz uint32) {
	info, err := mediainfo.Extract(path)
	if err != nil {
		return 0, 0
	}
	return uint32(info.Bitrate), uint32(info.SampleRate)
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
