// Package cmd implements ipodsync's command-line surface: sync, check,
// search, and status. Grounded on the teacher's cmd/root.go Cobra/Viper
// wiring (persistent flags bound into viper, a layered config file
// search, Execute as the sole entry point main.go calls).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ipodsync/core/internal/config"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:           "ipodsync",
	Short:         "Sync a PC music library onto a jailbroken-free iPod over its native iTunesDB protocol",
	Long:          "ipodsync reconciles a PC-side music library against an iPod's iTunesDB, signs the result for the device's firmware, and writes it back atomically, without an iTunes install.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if err := loaded.EnsureDirs(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command; main calls this and only this.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ipodsync:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.ipodsync.yaml)")
	flags.String("mount-root", "", "device's mounted filesystem root (parent of iPod_Control)")
	flags.String("library-root", "", "PC-side music directory to scan")
	flags.String("library-xml-path", "", "iTunes Library.xml to import tracks from instead of scanning")
	flags.String("pc-library-source", "scan", `PC track source: "scan" or "itunes-xml"`)
	flags.String("mapping-path", "", "fingerprint-to-device mapping JSON document")
	flags.String("mapping-backend", "json", `mapping store backend: "json" or "sqlite"`)
	flags.String("search-index-path", "", "bleve search index path")
	flags.String("log-dir", "", "directory for per-run sync logs")
	flags.Int("aac-bitrate-kbps", 192, "target AAC transcode bitrate")
	flags.Bool("write-back-tags", false, "write resolved ratings/play counts back to PC file tags")
	flags.String("device-class-override", "", "force a signing scheme (hash58, classic, hashab) instead of auto-detecting")
	flags.String("cache-dir", "", "transcode output cache directory")
	flags.Float64("transcode-rate-per-sec", 2.0, "max concurrent external transcoder launches per second")
	flags.String("status-api-addr", "", "listen address for the read-only status server (empty disables it)")
	flags.Bool("watch", false, "keep running, re-syncing whenever the library or device changes")

	for _, name := range []string{
		"mount-root", "library-root", "library-xml-path", "pc-library-source",
		"mapping-path", "mapping-backend", "search-index-path", "log-dir",
		"aac-bitrate-kbps", "write-back-tags", "device-class-override",
		"cache-dir", "transcode-rate-per-sec", "status-api-addr", "watch",
	} {
		key := flagToKey(name)
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(syncCmd, checkCmd, searchCmd, statusCmd)
}

// flagToKey maps a dash-separated flag name to its mapstructure tag.
func flagToKey(flag string) string {
	out := make([]byte, 0, len(flag))
	for _, r := range flag {
		if r == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, byte(r))
	}
	return string(out)
}
