package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v, filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AACBitrateKbps != 192 {
		t.Errorf("AACBitrateKbps = %d, want 192", cfg.AACBitrateKbps)
	}
	if cfg.MappingBackend != "json" {
		t.Errorf("MappingBackend = %q, want json", cfg.MappingBackend)
	}
	if cfg.PCLibrarySource != "scan" {
		t.Errorf("PCLibrarySource = %q, want scan", cfg.PCLibrarySource)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ipodsync.yaml")
	contents := "mount_root: /mnt/ipod\naac_bitrate_kbps: 256\nwrite_back_tags: true\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v := viper.New()
	cfg, err := Load(v, cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MountRoot != "/mnt/ipod" {
		t.Errorf("MountRoot = %q, want /mnt/ipod", cfg.MountRoot)
	}
	if cfg.AACBitrateKbps != 256 {
		t.Errorf("AACBitrateKbps = %d, want 256", cfg.AACBitrateKbps)
	}
	if !cfg.WriteBackTags {
		t.Error("WriteBackTags = false, want true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IPODSYNC_MOUNT_ROOT", "/Volumes/IPOD")

	v := viper.New()
	cfg, err := Load(v, filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MountRoot != "/Volumes/IPOD" {
		t.Errorf("MountRoot = %q, want /Volumes/IPOD", cfg.MountRoot)
	}
}

func TestEnsureDirsCreatesMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		LogDir:          filepath.Join(dir, "logs"),
		CacheDir:        filepath.Join(dir, "cache"),
		MappingPath:     filepath.Join(dir, "mapping", "map.json"),
		SearchIndexPath: filepath.Join(dir, "search", "idx.bleve"),
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, p := range []string{cfg.LogDir, cfg.CacheDir, filepath.Dir(cfg.MappingPath), filepath.Dir(cfg.SearchIndexPath)} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("expected directory at %s", p)
		}
	}
}
