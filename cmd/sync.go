package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ipodsync/core/internal/device"
	"github.com/ipodsync/core/internal/devicewatch"
	"github.com/ipodsync/core/internal/diffengine"
	"github.com/ipodsync/core/internal/executor"
	"github.com/ipodsync/core/internal/fingerprint"
	"github.com/ipodsync/core/internal/integrity"
	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/libraryimport"
	"github.com/ipodsync/core/internal/libraryscan"
	"github.com/ipodsync/core/internal/mapping"
	"github.com/ipodsync/core/internal/metadataprovider"
	"github.com/ipodsync/core/internal/metrics"
	"github.com/ipodsync/core/internal/search"
	"github.com/ipodsync/core/internal/signer"
	"github.com/ipodsync/core/internal/synclog"
	"github.com/ipodsync/core/internal/transcode"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the PC library with the device and write an updated iTunesDB",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.Watch {
			return runWatchLoop(ctx)
		}
		return runOneSync(ctx)
	},
}

func runWatchLoop(ctx context.Context) error {
	watcher, err := devicewatch.New(2*time.Second, cfg.LibraryRoot, filepath.Join(cfg.MountRoot, "iPod_Control", "iTunes", "iTunesDB"))
	if err != nil {
		return fmt.Errorf("sync --watch: %w", err)
	}
	defer watcher.Close()

	fmt.Fprintln(os.Stderr, "ipodsync: watching for changes, press Ctrl+C to stop")
	if err := runOneSync(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ipodsync: sync failed:", err)
	}

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !watcher.Pending() {
				continue
			}
			if err := runOneSync(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "ipodsync: sync failed:", err)
			}
		}
	}
}

func runOneSync(ctx context.Context) (err error) {
	if !fingerprint.Available() {
		return fmt.Errorf("sync: %w", fingerprint.ErrToolNotFound)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, err := synclog.Open(cfg.LogDir, runID)
	if err != nil {
		return err
	}
	defer logger.Close()

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
		return fmt.Errorf("sync: read %s: %w", dbPath, err)
	}
	db, err := itunesdb.Parse(raw)
	if err != nil {
		return fmt.Errorf("sync: parse iTunesDB: %w", err)
	}

	musicRoot := filepath.Join(cfg.MountRoot, "iPod_Control", "Music")
	tracks, checkReport, err := integrity.RunAll(cfg.MountRoot, musicRoot, db.Tracks, store)
	if err != nil {
		return fmt.Errorf("sync: integrity check: %w", err)
	}
	for _, desc := range checkReport.Descriptions {
		logger.Println(desc)
	}
	db.Tracks = tracks

	if err := mergePlayCountsFile(db); err != nil {
		logger.Printf("play counts: %v", err)
	}

	pcTracks, failures, err := gatherPCTracks(ctx)
	if err != nil {
		return fmt.Errorf("sync: gather PC tracks: %w", err)
	}
	for _, f := range failures {
		logger.Printf("skipped %s: %v", f.Path, f.Err)
	}

	ipodMeta, ipodTracks := buildIPodMaps(db)
	plan := diffengine.Build(pcTracks, store, ipodMeta, ipodTracks)
	logger.Printf("plan: %d actions, %d duplicate groups, %d unresolved collisions", len(plan.Actions), len(plan.Duplicates), len(plan.UnresolvedCollisions))

	opts, err := buildExecutorOptions(logger.Logger)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(plan.Actions),
		progressbar.OptionSetDescription("syncing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	opts.CancelCheck = func() bool {
		_ = bar.Add(1)
		return ctx.Err() != nil
	}

	result, runErr := executor.Run(ctx, plan, db, store, opts)
	_ = bar.Finish()

	if idx, idxErr := search.Open(cfg.SearchIndexPath); idxErr == nil {
		if rebuildErr := idx.Rebuild(db); rebuildErr != nil {
			logger.Printf("search index rebuild failed: %v", rebuildErr)
		}
	}

	metrics.SetTracks(len(db.Tracks))
	metrics.SetPlaylists(len(db.Playlists))

	if runErr != nil {
		logger.Printf("sync failed: %v", runErr)
		return runErr
	}
	logger.Printf("sync complete: cancelled=%v failures=%d", result.Cancelled, len(result.Failures))
	return nil
}

func openMappingStore() (mapping.Store, error) {
	switch cfg.MappingBackend {
	case "sqlite":
		return mapping.OpenSQLite(cfg.MappingPath)
	default:
		return mapping.LoadJSON(cfg.MappingPath)
	}
}

func gatherPCTracks(ctx context.Context) ([]diffengine.PCTrack, []libraryscan.FileFailure, error) {
	if cfg.PCLibrarySource == "itunes-xml" && cfg.LibraryXMLPath != "" {
		entries, err := libraryimport.Read(cfg.LibraryXMLPath)
		if err != nil {
			return nil, nil, err
		}
		var tracks []diffengine.PCTrack
		var failures []libraryscan.FileFailure
		for _, e := range entries {
			info, err := os.Stat(e.Path)
			if err != nil {
				failures = append(failures, libraryscan.FileFailure{Path: e.Path, Err: err})
				continue
			}
			fp, err := fingerprint.Compute(ctx, e.Path)
			if err != nil {
				failures = append(failures, libraryscan.FileFailure{Path: e.Path, Err: err})
				continue
			}
			artHash := libraryscan.EmbeddedArtHash(e.Path)
			formatInfo := filepath.Ext(e.Path)
			tracks = append(tracks, e.ToPCTrack(fp, info.ModTime().Unix(), artHash, formatInfo))
		}
		return tracks, failures, nil
	}

	provider := metadataprovider.NewDefaultProvider()
	return libraryscan.Scan(ctx, cfg.LibraryRoot, provider)
}

func buildIPodMaps(db *itunesdb.Database) (map[uint64]diffengine.IPodMetadata, map[uint64]diffengine.IPodTrack) {
	meta := make(map[uint64]diffengine.IPodMetadata, len(db.Tracks))
	tracks := make(map[uint64]diffengine.IPodTrack, len(db.Tracks))
	for _, t := range db.Tracks {
		meta[t.DBID] = diffengine.IPodMetadata{
			Title: t.Title, Artist: t.Artist, Album: t.Album, AlbumArtist: t.AlbumArtist, Genre: t.Genre,
			Year: int(t.Year), TrackNumber: int(t.TrackNumber), DiscNumber: int(t.DiscNumber),
		}
		artworkCount := 0
		if t.MHIILink != 0 {
			artworkCount = 1
		}
		tracks[t.DBID] = diffengine.IPodTrack{
			DBID: t.DBID, Rating: t.Rating, PlayCount2: t.PlayCount2,
			ArtworkCount: artworkCount, MHIILink: t.MHIILink,
		}
	}
	return meta, tracks
}

// mergePlayCountsFile folds the device's standalone Play Counts file
// into each track's PlayCount2, on top of whatever the mhit record
// itself already carries (§6 "PlayCountsFile"). Entries are positional
// (Nth entry <-> Nth track in file order), so a file shorter than the
// track list only updates a prefix.
func mergePlayCountsFile(db *itunesdb.Database) error {
	path := filepath.Join(cfg.MountRoot, "iPod_Control", "iTunes", "Play Counts")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	entries, err := itunesdb.ParsePlayCounts(data)
	if err != nil {
		return err
	}
	for i := range entries {
		if i >= len(db.Tracks) {
			break
		}
		db.Tracks[i].PlayCount2 += entries[i].PlayCount
		if entries[i].Rating > 0 {
			db.Tracks[i].Rating = entries[i].Rating
		}
	}
	return nil
}

func buildExecutorOptions(logger *log.Logger) (executor.Options, error) {
	sysInfoPath := filepath.Join(cfg.MountRoot, "iPod_Control", "Device", "SysInfo")
	sysInfoData, err := os.ReadFile(sysInfoPath)
	if err != nil {
		return executor.Options{}, fmt.Errorf("sync: read SysInfo: %w", err)
	}
	sysInfo, err := device.ParseSysInfo(sysInfoData)
	if err != nil {
		return executor.Options{}, fmt.Errorf("sync: parse SysInfo: %w", err)
	}

	class := sysInfo.Class()
	if override := deviceClassFromOverride(cfg.DeviceClassOverride); override != nil {
		class = *override
	}

	var hashInfo *signer.HashInfo
	hashInfoPath := filepath.Join(cfg.MountRoot, "iPod_Control", "Device", "HashInfo")
	if data, err := os.ReadFile(hashInfoPath); err == nil {
		parsed, err := device.ParseHashInfo(data)
		if err != nil {
			return executor.Options{}, fmt.Errorf("sync: parse HashInfo: %w", err)
		}
		hashInfo = &parsed
	}

	var cache transcode.Cache
	if cfg.CacheDir != "" {
		pebbleCache, err := transcode.OpenPebbleCache(filepath.Join(cfg.CacheDir, "transcodes.pebble"))
		if err != nil {
			return executor.Options{}, fmt.Errorf("sync: open transcode cache: %w", err)
		}
		cache = pebbleCache
	} else {
		cache = transcode.NewMemoryCache(24 * time.Hour)
	}

	return executor.Options{
		MountRoot:        cfg.MountRoot,
		DeviceClass:      class,
		FireWireGUID:     sysInfo.FireWireGUID,
		HashInfo:         hashInfo,
		Cache:            cache,
		Limiter:          transcode.NewLimiter(int(cfg.TranscodeRatePerSec)),
		AACBitrateKbps:   cfg.AACBitrateKbps,
		MetadataProvider: metadataprovider.NewDefaultProvider(),
		WriteBackTags:    cfg.WriteBackTags,
		Logger:           logger,
	}, nil
}

func deviceClassFromOverride(s string) *signer.DeviceClass {
	var c signer.DeviceClass
	switch s {
	case "hash58":
		c = signer.ClassHash58Only
	case "classic":
		c = signer.ClassClassicBoth
	case "hashab":
		c = signer.ClassHashABUnsupported
	default:
		return nil
	}
	return &c
}
