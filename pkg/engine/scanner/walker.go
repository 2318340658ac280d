package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/DrSkyle/sbh/pkg/core"
)

// CandidateEntry is one directory the walker proposes for evaluation.
type CandidateEntry struct {
	Path               string
	SizeBytes          uint64
	ModifiedAt         time.Time
	IsOpen             bool
	Excluded           bool
	Signals            StructuralSignals
	ClassificationHint ArtifactClassification
}

// WalkerConfig bounds the walk.
type WalkerConfig struct {
	RootPaths      []string
	MaxDepth       int
	FollowSymlinks bool
	CrossDevices   bool
	Parallelism    int
	ExcludedPaths  map[string]struct{}
	// RootBudget bounds wall clock per root; zero means unbounded.
	RootBudget time.Duration
}

// WalkResult is the outcome of one scan.
type WalkResult struct {
	Entries []CandidateEntry
	// ProtectedSkips records subtrees dropped by the protection registry.
	ProtectedSkips []Protection
	// Incomplete is set when a root exceeded its wall-clock budget.
	Incomplete bool
	Errors     []error
}

// DirectoryWalker enumerates deletion candidates under protection rules.
// Output ordering across workers is unspecified until the final sort; a scan
// is deterministic given identical filesystem state.
type DirectoryWalker struct {
	cfg        WalkerConfig
	protection *ProtectionRegistry
	patterns   *ArtifactPatternRegistry
	openFiles  *OpenFileSnapshot
}

// NewDirectoryWalker wires a walker. openFiles may be nil when open-file
// tagging is not wanted.
func NewDirectoryWalker(cfg WalkerConfig, protection *ProtectionRegistry, patterns *ArtifactPatternRegistry, openFiles *OpenFileSnapshot) *DirectoryWalker {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if patterns == nil {
		patterns = NewArtifactPatternRegistry()
	}
	return &DirectoryWalker{cfg: cfg, protection: protection, patterns: patterns, openFiles: openFiles}
}

type rootContext struct {
	path     string
	device   uint64
	deadline time.Time
}

// Walk runs the scan. Directory-level candidates are emitted for every
// directory encountered within depth; files are only inspected to derive
// sizes and structural signals. Subtrees fan out onto spare workers when the
// pool has capacity and are walked inline otherwise.
func (w *DirectoryWalker) Walk(ctx context.Context) (WalkResult, error) {
	var (
		mu     sync.Mutex
		result WalkResult
		wg     sync.WaitGroup
	)
	slots := make(chan struct{}, w.cfg.Parallelism)

	var walkDir func(path string, depth int, rc rootContext)
	walkDir = func(path string, depth int, rc rootContext) {
		if ctx.Err() != nil {
			return
		}
		if !rc.deadline.IsZero() && time.Now().After(rc.deadline) {
			mu.Lock()
			result.Incomplete = true
			mu.Unlock()
			return
		}

		if protected, source := w.protection.IsProtected(path); protected {
			mu.Lock()
			result.ProtectedSkips = append(result.ProtectedSkips, Protection{Path: path, Source: source})
			mu.Unlock()
			return
		}

		excluded := w.isExcluded(path)

		children, err := os.ReadDir(path)
		if err != nil {
			mu.Lock()
			result.Errors = append(result.Errors, core.Io(path, err))
			mu.Unlock()
			return
		}

		signals := deriveSignals(children)
		hint := w.patterns.Classify(path, signals)

		// The root itself is not a candidate; everything below it is.
		if depth > 0 {
			entry := CandidateEntry{
				Path:               path,
				Excluded:           excluded,
				Signals:            signals,
				ClassificationHint: hint,
			}
			if info, err := os.Stat(path); err == nil {
				entry.ModifiedAt = info.ModTime()
			}
			entry.SizeBytes = w.sizeOf(path, children, hint.Category != CategoryUnknown)
			if w.openFiles != nil {
				entry.IsOpen = w.openFiles.IsOpenUnder(path)
			}
			mu.Lock()
			result.Entries = append(result.Entries, entry)
			mu.Unlock()
		}

		// Classified artifact directories are terminal: their contents
		// are the artifact, not further candidates. Excluded subtrees
		// stop here too.
		if excluded || (depth > 0 && hint.Category != CategoryUnknown) {
			return
		}
		if depth >= w.cfg.MaxDepth {
			return
		}

		for _, child := range children {
			isDir := child.IsDir()
			isLink := child.Type()&fs.ModeSymlink != 0
			if !isDir && !isLink {
				continue
			}
			childPath := filepath.Join(path, child.Name())
			if isLink {
				if !w.cfg.FollowSymlinks {
					continue
				}
				target, err := os.Stat(childPath)
				if err != nil || !target.IsDir() {
					continue
				}
			}
			if !w.cfg.CrossDevices {
				if info, err := os.Stat(childPath); err == nil {
					if dev := deviceOf(info); dev != 0 && rc.device != 0 && dev != rc.device {
						continue
					}
				}
			}
			select {
			case slots <- struct{}{}:
				wg.Add(1)
				go func(p string, d int) {
					defer wg.Done()
					defer func() { <-slots }()
					walkDir(p, d, rc)
				}(childPath, depth+1)
			default:
				walkDir(childPath, depth+1, rc)
			}
		}
	}

	for _, root := range w.cfg.RootPaths {
		resolved := core.ResolveAbsolute(root)
		info, err := os.Stat(resolved)
		if err != nil {
			result.Errors = append(result.Errors, core.Io(root, err))
			continue
		}
		if !info.IsDir() {
			continue
		}
		rc := rootContext{path: resolved, device: deviceOf(info)}
		if w.cfg.RootBudget != 0 {
			rc.deadline = time.Now().Add(w.cfg.RootBudget)
		}
		walkDir(resolved, 0, rc)
	}
	wg.Wait()

	// Deterministic output regardless of worker interleaving.
	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Path < result.Entries[j].Path
	})
	return result, nil
}

func (w *DirectoryWalker) isExcluded(path string) bool {
	if _, ok := w.cfg.ExcludedPaths[path]; ok {
		return true
	}
	for excluded := range w.cfg.ExcludedPaths {
		if core.IsPathWithin(path, excluded) {
			return true
		}
	}
	return false
}

// sizeOf computes the candidate size: a full subtree sum for classified
// artifacts (that is what deletion would reclaim), a shallow sum otherwise.
func (w *DirectoryWalker) sizeOf(path string, children []os.DirEntry, classified bool) uint64 {
	if classified {
		var total uint64
		_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				if info, err := d.Info(); err == nil {
					total += uint64(info.Size())
				}
			}
			return nil
		})
		return total
	}
	var total uint64
	for _, child := range children {
		if info, err := child.Info(); err == nil && !child.IsDir() {
			total += uint64(info.Size())
		}
	}
	return total
}

// deriveSignals inspects one level of children.
func deriveSignals(children []os.DirEntry) StructuralSignals {
	var s StructuralSignals
	files := 0
	objects := 0
	for _, child := range children {
		name := child.Name()
		if child.IsDir() {
			switch name {
			case "incremental":
				s.HasIncremental = true
			case "deps":
				s.HasDeps = true
			case "build":
				s.HasBuild = true
			case ".fingerprint":
				s.HasFingerprint = true
			case ".git":
				s.HasGit = true
			}
			continue
		}
		files++
		switch name {
		case "Cargo.toml", "package.json", "go.mod", "pyproject.toml", "setup.py", "CMakeLists.txt":
			s.HasProjectManifest = true
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".o", ".obj", ".rlib", ".rmeta", ".a", ".pyc", ".d":
			objects++
		}
	}
	if files > 0 && objects*2 > files {
		s.MostlyObjectFiles = true
	}
	return s
}

// deviceOf extracts the device id when the platform exposes one.
func deviceOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Dev)
	}
	return 0
}
