package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.declsync, unless DECLSYNC_HOME overrides it.
func BaseDir() string {
	if env := os.Getenv("DECLSYNC_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".declsync")
}

// DBPath returns the daemon-owned declsync.db path.
func DBPath(base string) string {
	return filepath.Join(base, "declsync.db")
}

// LogDir returns the log directory.
func LogDir(base string) string {
	return filepath.Join(base, "logs")
}

// LogPath returns the daemon log file path.
func LogPath(base string) string {
	return filepath.Join(LogDir(base), "declsyncd.log")
}

// ConfigPath returns the config file path.
func ConfigPath(base string) string {
	return filepath.Join(base, "config.toml")
}

// KeySaltPath returns the path of the persisted credential-key salt.
func KeySaltPath(base string) string {
	return filepath.Join(base, "credential.salt")
}

// EnsureDirs creates the data directory tree with proper permissions.
func EnsureDirs(base string) error {
	dirs := []string{
		base,
		LogDir(base),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
