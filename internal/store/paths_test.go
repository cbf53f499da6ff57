package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalTangoPath(t *testing.T) {
	got, err := GlobalTangoPath()
	if err != nil {
		t.Fatalf("GlobalTangoPath() error = %v", err)
	}
	if !strings.HasSuffix(got, ".tango") {
		t.Errorf("GlobalTangoPath() = %v, should end with .tango", got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("GlobalTangoPath() = %v, should be absolute path", got)
	}
	homeDir, _ := os.UserHomeDir()
	if !strings.HasPrefix(got, homeDir) {
		t.Errorf("GlobalTangoPath() = %v, should start with home directory %v", got, homeDir)
	}
}

func TestLocalTangoPath(t *testing.T) {
	tests := []struct {
		name        string
		projectRoot string
		want        string
	}{
		{"unix path", "/home/user/project", "/home/user/project/.tango"},
		{"relative path", ".", ".tango"},
		{"trailing slash", "/srv/app/", "/srv/app/.tango"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalTangoPath(tt.projectRoot); got != tt.want {
				t.Errorf("LocalTangoPath(%q) = %v, want %v", tt.projectRoot, got, tt.want)
			}
		})
	}
}

func TestDatabasePath(t *testing.T) {
	if got := DatabasePath("/p"); got != filepath.Join("/p", ".tango", "tango.db") {
		t.Errorf("DatabasePath() = %v", got)
	}
}

func TestEnsureLocalTangoDir(t *testing.T) {
	root := t.TempDir()

	dir, err := EnsureLocalTangoDir(root)
	if err != nil {
		t.Fatalf("EnsureLocalTangoDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", dir)
	}

	// Idempotent.
	if _, err := EnsureLocalTangoDir(root); err != nil {
		t.Errorf("second call error = %v", err)
	}
}
