// Package config layers CLI flags over environment variables over a
// YAML file, using spf13/viper (grounded on the teacher's
// cmd/root.go initConfig idiom: bound persistent flags + AutomaticEnv
// + an optional file in $HOME).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every setting the CLI needs to drive one sync, check,
// search, or status-server run.
type Config struct {
	// MountRoot is the device's mounted filesystem root (the parent of
	// iPod_Control). Required for sync/check/search.
	MountRoot string `mapstructure:"mount_root"`

	// LibraryRoot is the PC-side music directory to scan for tracks.
	LibraryRoot string `mapstructure:"library_root"`

	// LibraryXMLPath, if set, imports PC tracks from an iTunes
	// Library.xml instead of walking LibraryRoot (§ "alternate PC-library
	// source").
	LibraryXMLPath string `mapstructure:"library_xml_path"`

	// PCLibrarySource selects how PC-side tracks are discovered:
	// "scan" (default, walk LibraryRoot) or "itunes-xml" (parse
	// LibraryXMLPath via internal/libraryimport).
	PCLibrarySource string `mapstructure:"pc_library_source"`

	// MappingPath is the fingerprint-to-device mapping store: the JSON
	// document when MappingBackend is "json", the SQLite database file
	// when it is "sqlite".
	MappingPath string `mapstructure:"mapping_path"`

	// MappingBackend selects the mapping.Store implementation: "json"
	// (default, a single document) or "sqlite" (for libraries large
	// enough that JSON parsing on every run becomes a bottleneck).
	MappingBackend string `mapstructure:"mapping_backend"`

	// SearchIndexPath is where the offline bleve index is persisted.
	SearchIndexPath string `mapstructure:"search_index_path"`

	// LogDir holds one structured log file per sync run.
	LogDir string `mapstructure:"log_dir"`

	// AACBitrateKbps is the target bitrate for AAC transcodes.
	AACBitrateKbps int `mapstructure:"aac_bitrate_kbps"`

	// WriteBackTags enables writing resolved ratings/play counts back
	// into the PC-side file tags.
	WriteBackTags bool `mapstructure:"write_back_tags"`

	// DeviceClassOverride forces a signing scheme instead of the one
	// SysInfo.Class() infers ("", "hash58", "classic", "hashab").
	DeviceClassOverride string `mapstructure:"device_class_override"`

	// CacheDir stores previously produced transcodes, keyed by
	// fingerprint+format+bitrate.
	CacheDir string `mapstructure:"cache_dir"`

	// TranscodeRatePerSec caps how many external transcoder launches
	// start per second; it is truncated to a whole number, minimum 1.
	TranscodeRatePerSec float64 `mapstructure:"transcode_rate_per_sec"`

	// StatusAPIAddr is the listen address for the read-only status
	// server ("" disables it).
	StatusAPIAddr string `mapstructure:"status_api_addr"`

	// StatusAPIBasicAuthUser/Hash gate the status server behind HTTP
	// Basic Auth when both are set (bcrypt hash, never the raw password).
	StatusAPIBasicAuthUser string `mapstructure:"status_api_basic_auth_user"`
	StatusAPIBasicAuthHash string `mapstructure:"status_api_basic_auth_hash"`

	// Watch enables fsnotify-based continuous sync mode.
	Watch bool `mapstructure:"watch"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pc_library_source", "scan")
	v.SetDefault("mapping_path", "ipodsync-mapping.json")
	v.SetDefault("mapping_backend", "json")
	v.SetDefault("search_index_path", "ipodsync-search.bleve")
	v.SetDefault("log_dir", "ipodsync-logs")
	v.SetDefault("aac_bitrate_kbps", 192)
	v.SetDefault("write_back_tags", false)
	v.SetDefault("cache_dir", "ipodsync-cache")
	v.SetDefault("transcode_rate_per_sec", 2.0)
	v.SetDefault("status_api_addr", "")
	v.SetDefault("watch", false)
}

// Load reads configuration from cfgFile (if non-empty), $HOME/.ipodsync.yaml
// otherwise, layered under IPODSYNC_-prefixed environment variables and
// whatever flags the caller has already bound into v.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".ipodsync")
	}

	v.SetEnvPrefix("ipodsync")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// EnsureDirs creates every directory the config references that must
// exist before a run starts.
func (c Config) EnsureDirs() error {
	for _, p := range []string{c.LogDir, c.CacheDir} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", p, err)
		}
	}
	for _, p := range []string{filepath.Dir(c.MappingPath), filepath.Dir(c.SearchIndexPath)} {
		if p == "" || p == "." {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", p, err)
		}
	}
	return nil
}
