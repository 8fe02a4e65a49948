package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.ListenAddr = "127.0.0.1:9999"
	cfg.Upstream.BaseURL = "https://exchange.example.com/api"
	cfg.Sync.ChunkDays = 1
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %q", loaded.ListenAddr)
	}
	if loaded.Upstream.BaseURL != "https://exchange.example.com/api" {
		t.Errorf("BaseURL = %q", loaded.Upstream.BaseURL)
	}
	if loaded.Sync.ChunkDays != 1 {
		t.Errorf("ChunkDays = %d", loaded.Sync.ChunkDays)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Sync.ChunkDays != 7 || cfg.Upstream.MessageNS != "DECL" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestValidateChunkDays(t *testing.T) {
	for _, days := range []int{0, -1, 46, 100} {
		cfg := Default()
		cfg.Sync.ChunkDays = days
		if err := cfg.Validate(); err == nil {
			t.Errorf("chunk_days=%d should not validate", days)
		}
	}
	for _, days := range []int{1, 7, 45} {
		cfg := Default()
		cfg.Sync.ChunkDays = days
		if err := cfg.Validate(); err != nil {
			t.Errorf("chunk_days=%d: %v", days, err)
		}
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
