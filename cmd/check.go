package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ipodsync/core/internal/integrity"
	"github.com/ipodsync/core/internal/itunesdb"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile the device's iTunesDB against its filesystem and the mapping store, without syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMappingStore()
		if err != nil {
			return err
		}
		if closer, ok := store.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		dbPath := filepath.Join(cfg.MountRoot, "iPod_Control", "iTunes", "iTunesDB")
		raw, err := os.ReadFile(dbPath)
		if err != nil {
			return fmt.Errorf("check: read %s: %w", dbPath, err)
		}
		db, err := itunesdb.Parse(raw)
		if err != nil {
			return fmt.Errorf("check: parse iTunesDB: %w", err)
		}

		musicRoot := filepath.Join(cfg.MountRoot, "iPod_Control", "Music")
		_, report, err := integrity.RunAll(cfg.MountRoot, musicRoot, db.Tracks, store)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}

		if report.Fixed == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "check: no inconsistencies found")
			return nil
		}
		if err := store.Save(); err != nil {
			return fmt.Errorf("check: save mapping store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "check: %d inconsistencies repaired\n", report.Fixed)
		for _, desc := range report.Descriptions {
			fmt.Fprintln(cmd.OutOrStdout(), " -", desc)
		}
		return nil
	},
}
