package core

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolute canonicalizes path, following symlinks when the target
// exists. When canonicalization fails (dangling link, missing intermediate
// directories) it falls back to a purely syntactic cleanup of the absolute
// path. The syntactic fallback will resolve ".." segments, so callers gating
// destructive operations must additionally check containment with
// ResolveWithinRoots.
func ResolveAbsolute(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			return abs
		}
		return resolved
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// ResolveWithinRoots resolves path and verifies the result stays inside one of
// the given roots. Escapes via ".." or symlinks are rejected with a safety
// veto rather than silently normalized.
func ResolveWithinRoots(path string, roots []string) (string, error) {
	resolved := ResolveAbsolute(path)
	for _, root := range roots {
		rootResolved := ResolveAbsolute(root)
		if IsPathWithin(resolved, rootResolved) {
			return resolved, nil
		}
	}
	return "", SafetyVeto(path, "resolved path escapes configured roots")
}

// IsPathWithin reports whether path equals root or is a descendant of it.
// Both arguments must already be absolute and cleaned.
func IsPathWithin(path, root string) bool {
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if root == sep {
		return strings.HasPrefix(path, sep)
	}
	return strings.HasPrefix(path, root+sep)
}
