package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// OpenFileSnapshot is a point-in-time set of file paths with active handles.
// The walker and the deletion executor consult it with pure lookups; the
// snapshot itself is collected once per tick.
type OpenFileSnapshot struct {
	paths []string // sorted
}

// NewOpenFileSnapshot builds a snapshot from an explicit path list (tests,
// alternative collectors).
func NewOpenFileSnapshot(paths []string) *OpenFileSnapshot {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return &OpenFileSnapshot{paths: sorted}
}

// CollectOpenFiles scans procRoot (normally /proc) for fd symlinks and
// returns the snapshot. Processes that disappear mid-scan are skipped.
func CollectOpenFiles(procRoot string) *OpenFileSnapshot {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return NewOpenFileSnapshot(nil)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() || !isNumeric(entry.Name()) {
			continue
		}
		fdDir := filepath.Join(procRoot, entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "/proc/") {
				paths = append(paths, target)
			}
		}
	}
	return NewOpenFileSnapshot(paths)
}

// IsOpen reports whether path itself has an active handle.
func (s *OpenFileSnapshot) IsOpen(path string) bool {
	i := sort.SearchStrings(s.paths, path)
	return i < len(s.paths) && s.paths[i] == path
}

// IsOpenUnder reports whether any open file sits at or below dir.
func (s *OpenFileSnapshot) IsOpenUnder(dir string) bool {
	if s.IsOpen(dir) {
		return true
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	i := sort.SearchStrings(s.paths, prefix)
	return i < len(s.paths) && strings.HasPrefix(s.paths[i], prefix)
}

// Len returns the number of open paths in the snapshot.
func (s *OpenFileSnapshot) Len() int { return len(s.paths) }

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
