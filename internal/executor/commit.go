package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipodsync/core/internal/backup"
	"github.com/ipodsync/core/internal/diffengine"
	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/mapping"
	"github.com/ipodsync/core/internal/signer"
)

// stage7Write implements §4.7 stage 7: rewrite artwork if needed,
// serialize and sign the database exactly once, back up the previous
// copy, then atomically replace it. The mapping store is only saved
// after the replace succeeds, so a crash mid-commit never leaves the
// mapping ahead of the on-device database.
func stage7Write(ctx context.Context, result *Result, ws *workingSet, store mapping.Store, plan diffengine.SyncPlan, addedPCPaths map[uint64]string, opts Options) error {
	if opts.cancelled() {
		result.Cancelled = true
		return nil
	}

	if opts.ArtworkWriter != nil && len(plan.MissingArtwork) > 0 {
		pcPaths := make(map[uint64]string, len(plan.MissingArtwork))
		for _, dbid := range plan.MissingArtwork {
			if p, ok := addedPCPaths[dbid]; ok {
				pcPaths[dbid] = p
			}
		}
		if len(pcPaths) > 0 {
			links, err := opts.ArtworkWriter.Write(pcPaths)
			if err != nil {
				result.Failures = append(result.Failures, FileFailure{Path: "artwork", Kind: "artwork", Err: err})
			} else {
				for dbid, link := range links {
					if t, ok := ws.track(dbid); ok {
						t.MHIILink = link.MHIIImgID
					}
				}
			}
		}
	}

	raw, err := itunesdb.Write(ws.db)
	if err != nil {
		return fmt.Errorf("executor: serialize database: %w", err)
	}

	signed, err := signer.Sign(raw, opts.DeviceClass, opts.FireWireGUID, opts.HashInfo)
	if err != nil {
		return fmt.Errorf("executor: sign database: %w", err)
	}

	dbPath := opts.dbPath()
	if _, err := os.Stat(dbPath); err == nil {
		info, err := backup.WriteSideBySide(dbPath, opts.dbBackupPath())
		if err != nil {
			return fmt.Errorf("executor: backup database: %w", err)
		}
		result.BackupInfo = info
	}

	tmpPath := dbPath + ".tmp"
	if err := os.WriteFile(tmpPath, signed, 0o644); err != nil {
		return fmt.Errorf("executor: write temp database: %w", err)
	}
	f, err := os.Open(tmpPath)
	if err == nil {
		_ = f.Sync()
		_ = f.Close()
	}
	if err := os.Rename(tmpPath, dbPath); err != nil {
		return fmt.Errorf("executor: replace database: %w", err)
	}
	if dir, err := os.Open(filepath.Dir(dbPath)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	for _, e := range result.NewMappingEntries {
		store.Add(e)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("executor: save mapping store: %w", err)
	}

	return nil
}
