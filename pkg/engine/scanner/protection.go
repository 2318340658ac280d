package scanner

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DrSkyle/sbh/pkg/core"
)

// MarkerFileName is the well-known filename whose presence protects the
// containing directory and its whole subtree.
const MarkerFileName = ".sbh-protect"

// MarkerPayload is the optional JSON body of a marker file. Presence alone is
// sufficient; the payload only adds context for humans.
type MarkerPayload struct {
	Reason string `json:"reason,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

// Protection describes one active protection and where it came from.
type Protection struct {
	Path   string `json:"path"`
	Source string `json:"source"` // "marker" or "pattern"
	Reason string `json:"reason,omitempty"`
}

// ProtectionRegistry is the canonical set of paths immune from deletion.
// Marker discovery repopulates the cache each tick; readers always see a
// consistent snapshot.
type ProtectionRegistry struct {
	mu       sync.RWMutex
	markers  map[string]MarkerPayload // canonical dir -> payload
	patterns []string
}

// NewProtectionRegistry builds a registry over the configured glob patterns.
func NewProtectionRegistry(patterns []string) *ProtectionRegistry {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &ProtectionRegistry{
		markers:  make(map[string]MarkerPayload),
		patterns: cleaned,
	}
}

// DiscoverMarkers walks root up to maxDepth collecting marker files. Existing
// marker entries under root are replaced by what the walk finds; markers
// outside root are untouched.
func (r *ProtectionRegistry) DiscoverMarkers(root string, maxDepth int) error {
	rootResolved := core.ResolveAbsolute(root)
	found := make(map[string]MarkerPayload)

	err := filepath.WalkDir(rootResolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			return fs.SkipDir
		}
		if d.IsDir() && depthBelow(rootResolved, path) > maxDepth {
			return fs.SkipDir
		}
		if !d.IsDir() && d.Name() == MarkerFileName {
			dir := filepath.Dir(path)
			found[dir] = readMarkerPayload(path)
		}
		return nil
	})
	if err != nil {
		return core.Io(root, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for dir := range r.markers {
		if core.IsPathWithin(dir, rootResolved) {
			delete(r.markers, dir)
		}
	}
	for dir, payload := range found {
		r.markers[dir] = payload
	}
	return nil
}

// AddMarker writes a marker file into dir and registers it.
func (r *ProtectionRegistry) AddMarker(dir string, payload MarkerPayload) error {
	resolved := core.ResolveAbsolute(dir)
	body, err := json.Marshal(payload)
	if err != nil {
		return core.Serialization("marker", err)
	}
	if err := os.WriteFile(filepath.Join(resolved, MarkerFileName), body, 0o644); err != nil {
		return core.Io(dir, err)
	}
	r.mu.Lock()
	r.markers[resolved] = payload
	r.mu.Unlock()
	return nil
}

// RemoveMarker deletes the marker file from dir and unregisters it.
func (r *ProtectionRegistry) RemoveMarker(dir string) error {
	resolved := core.ResolveAbsolute(dir)
	if err := os.Remove(filepath.Join(resolved, MarkerFileName)); err != nil && !os.IsNotExist(err) {
		return core.Io(dir, err)
	}
	r.mu.Lock()
	delete(r.markers, resolved)
	r.mu.Unlock()
	return nil
}

// IsProtected reports whether path falls under a protection, and the source
// ("marker" or "pattern") when it does. Descendants of a protected directory
// are protected; ancestors are not.
func (r *ProtectionRegistry) IsProtected(path string) (bool, string) {
	resolved := core.ResolveAbsolute(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for dir := range r.markers {
		if core.IsPathWithin(resolved, dir) {
			return true, "marker"
		}
	}

	base := filepath.Base(resolved)
	for _, pattern := range r.patterns {
		if matchPattern(pattern, resolved, base) {
			return true, "pattern"
		}
	}
	return false, ""
}

// ListProtections returns the active set, markers first.
func (r *ProtectionRegistry) ListProtections() []Protection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Protection, 0, len(r.markers)+len(r.patterns))
	for dir, payload := range r.markers {
		out = append(out, Protection{Path: dir, Source: "marker", Reason: payload.Reason})
	}
	for _, p := range r.patterns {
		out = append(out, Protection{Path: p, Source: "pattern"})
	}
	return out
}

// matchPattern applies a configured protection pattern. Glob patterns match
// against the basename and the full path; plain paths protect their subtree.
func matchPattern(pattern, resolved, base string) bool {
	if strings.ContainsAny(pattern, "*?[") {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, resolved); ok {
			return true
		}
		return false
	}
	return core.IsPathWithin(resolved, core.ResolveAbsolute(pattern))
}

func readMarkerPayload(path string) MarkerPayload {
	var payload MarkerPayload
	body, err := os.ReadFile(path)
	if err != nil || len(body) == 0 {
		return payload
	}
	// Malformed payloads still protect; presence is what counts.
	_ = json.Unmarshal(body, &payload)
	return payload
}

// depthBelow counts path separators between root and path.
func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}
