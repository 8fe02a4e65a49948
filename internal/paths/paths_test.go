package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBaseDirDefault(t *testing.T) {
	t.Setenv("DECLSYNC_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := BaseDir(), filepath.Join(home, ".declsync"); got != want {
		t.Errorf("BaseDir() = %q, want %q", got, want)
	}
}

func TestBaseDirEnvOverride(t *testing.T) {
	t.Setenv("DECLSYNC_HOME", "/srv/declsync")
	if got := BaseDir(); got != "/srv/declsync" {
		t.Errorf("BaseDir() = %q, want /srv/declsync", got)
	}
}

func TestDerivedPaths(t *testing.T) {
	base := "/data/declsync"
	tests := []struct {
		got, want string
	}{
		{DBPath(base), "/data/declsync/declsync.db"},
		{LogPath(base), "/data/declsync/logs/declsyncd.log"},
		{ConfigPath(base), "/data/declsync/config.toml"},
		{KeySaltPath(base), "/data/declsync/credential.salt"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "declsync")
	if err := EnsureDirs(base); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{base, LogDir(base)} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s permission = %o, want 0700", d, perm)
		}
	}
}
