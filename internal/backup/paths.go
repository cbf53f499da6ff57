package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/tango/internal/store"
)

// AllowedDirs returns the directories snapshots may be written to: the
// project's .tango/backups and, when the home directory resolves,
// ~/.tango/backups.
func AllowedDirs(projectRoot string) []string {
	dirs := []string{DefaultBackupDir(projectRoot)}
	if global, err := store.GlobalTangoPath(); err == nil {
		dirs = append(dirs, filepath.Join(global, BackupDirName))
	}
	return dirs
}

// CheckOutputPath rejects snapshot paths outside allowed. Symlinks are
// resolved on the deepest existing ancestor, so a link inside an allowed
// directory cannot point a write elsewhere.
func CheckOutputPath(path string, allowed []string) error {
	if path == "" {
		return fmt.Errorf("snapshot path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("snapshot path contains a null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving snapshot path: %w", err)
	}
	resolved, err := resolveDeepest(abs)
	if err != nil {
		return err
	}

	for _, dir := range allowed {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		base, err := resolveDeepest(dirAbs)
		if err != nil {
			continue
		}
		if resolved == base || strings.HasPrefix(resolved, base+string(os.PathSeparator)) {
			return nil
		}
	}
	return fmt.Errorf("snapshot path %s is outside the backup directories", shortPath(abs))
}

// resolveDeepest evaluates symlinks on the longest existing prefix of path
// and re-appends the missing tail.
func resolveDeepest(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(path)
	if parent == path {
		return "", fmt.Errorf("cannot resolve %s", shortPath(path))
	}
	head, err := resolveDeepest(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(head, filepath.Base(path)), nil
}

// shortPath keeps the last two elements of path for error messages.
func shortPath(path string) string {
	clean := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(clean))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(clean)
	}
	return ".../" + parent + "/" + filepath.Base(clean)
}
