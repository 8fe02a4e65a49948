package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the daemon config at ~/.declsync/config.toml.
type Config struct {
	ListenAddr string   `toml:"listen_addr"`
	Upstream   Upstream `toml:"upstream"`
	Sync       Sync     `toml:"sync"`
	Security   Security `toml:"security"`
}

// Upstream describes the customs data-exchange endpoint.
type Upstream struct {
	BaseURL string `toml:"base_url"`
	// MessageNS is the namespace prefix stamped into MessageType
	// ("<ns>.REQ.60.1" for list, "<ns>.REQ.61.1" for detail).
	MessageNS string `toml:"message_ns"`
}

// Sync holds the synchronization profile.
type Sync struct {
	// ChunkDays is the sub-period size for list requests. The upstream API
	// rejects periods longer than 45 days; production deployments run with 1.
	ChunkDays int `toml:"chunk_days"`
}

// Security holds credential-at-rest settings.
type Security struct {
	// CredentialKey is the passphrase the company API tokens are sealed with.
	CredentialKey string `toml:"credential_key"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8745",
		Upstream: Upstream{
			MessageNS: "DECL",
		},
		Sync: Sync{
			ChunkDays: 7,
		},
	}
}

// Load reads config from the given path, applying defaults for absent fields.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from path; a missing file yields defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks field bounds.
func (c *Config) Validate() error {
	if c.Sync.ChunkDays < 1 || c.Sync.ChunkDays > 45 {
		return fmt.Errorf("sync.chunk_days must be within [1, 45], got %d", c.Sync.ChunkDays)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
