package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one snapshot file on disk.
type Info struct {
	Path      string
	Size      int64
	CreatedAt time.Time
	Nodes     int
	Edges     int
	Prompts   int
}

// Retention decides which snapshots survive a prune. A snapshot is kept
// when it is among the newest MaxCount or younger than MaxAge; a zero
// field disables that rule. With both fields zero everything is kept.
type Retention struct {
	MaxCount int
	MaxAge   time.Duration
}

// Keep returns the snapshots to keep from backups, which must be sorted
// newest first.
func (r Retention) Keep(backups []Info, now time.Time) []Info {
	if r.MaxCount <= 0 && r.MaxAge <= 0 {
		return backups
	}
	cutoff := now.Add(-r.MaxAge)

	var keep []Info
	for i, b := range backups {
		byCount := r.MaxCount > 0 && i < r.MaxCount
		byAge := r.MaxAge > 0 && b.CreatedAt.After(cutoff)
		if byCount || byAge {
			keep = append(keep, b)
		}
	}
	return keep
}

// List returns the snapshots in dir, newest first. Files whose header
// cannot be read are skipped. A missing dir yields no snapshots.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		path := filepath.Join(dir, name)
		header, err := ReadHeader(path)
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      path,
			Size:      fi.Size(),
			CreatedAt: header.CreatedAt,
			Nodes:     header.NodeCount,
			Edges:     header.EdgeCount,
			Prompts:   header.PromptCount,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Prune deletes the snapshots in dir that r does not keep and returns the
// deleted paths.
func Prune(dir string, r Retention, now time.Time) ([]string, error) {
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool)
	for _, b := range r.Keep(backups, now) {
		kept[b.Path] = true
	}

	var deleted []string
	for _, b := range backups {
		if kept[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseAge parses a retention age such as "30d", "2w" or "720h".
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	unit := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[s[len(s)-1]]
	n, err := strconv.Atoi(s[:len(s)-1])
	if unit == 0 || err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q (want e.g. 720h, 30d or 2w)", s)
	}
	return time.Duration(n) * unit, nil
}
