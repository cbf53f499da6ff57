package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName is the per-project state directory.
const StateDirName = ".tango"

// DatabaseFile is the SQLite database inside the state directory.
const DatabaseFile = "tango.db"

// GlobalTangoPath returns the path to the global .tango directory.
// On Unix: ~/.tango
// On Windows: %USERPROFILE%\.tango
func GlobalTangoPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, StateDirName), nil
}

// LocalTangoPath returns the path to the .tango directory for the given
// project root.
func LocalTangoPath(projectRoot string) string {
	return filepath.Join(projectRoot, StateDirName)
}

// DatabasePath returns the SQLite database path for the given project root.
func DatabasePath(projectRoot string) string {
	return filepath.Join(LocalTangoPath(projectRoot), DatabaseFile)
}

// EnsureLocalTangoDir creates projectRoot/.tango if it doesn't exist.
func EnsureLocalTangoDir(projectRoot string) (string, error) {
	dir := LocalTangoPath(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", StateDirName, err)
	}
	return dir, nil
}
