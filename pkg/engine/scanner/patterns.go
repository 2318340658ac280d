// Package scanner contains the candidate-discovery half of the decision
// plane: protection rules, the directory walker, artifact classification,
// the scoring engine, the deletion executor and the decision record builder.
package scanner

import (
	"path/filepath"
	"strings"
)

// ArtifactCategory tags a path with the build-tool family it belongs to.
type ArtifactCategory string

const (
	CategoryRustTarget   ArtifactCategory = "rust_target"
	CategoryNodeModules  ArtifactCategory = "node_modules"
	CategoryPythonCache  ArtifactCategory = "python_cache"
	CategoryGoBuildCache ArtifactCategory = "go_build_cache"
	CategoryGradleCache  ArtifactCategory = "gradle_cache"
	CategoryMavenCache   ArtifactCategory = "maven_cache"
	CategoryCCache       ArtifactCategory = "ccache"
	CategoryAgentScratch ArtifactCategory = "agent_scratch"
	CategoryBuildOutput  ArtifactCategory = "build_output"
	CategoryUnknown      ArtifactCategory = "unknown"
)

// StructuralSignals describe what one level of child inspection found under a
// candidate directory.
type StructuralSignals struct {
	HasIncremental     bool `json:"has_incremental"`
	HasDeps            bool `json:"has_deps"`
	HasBuild           bool `json:"has_build"`
	HasFingerprint     bool `json:"has_fingerprint"`
	HasGit             bool `json:"has_git"`
	HasProjectManifest bool `json:"has_project_manifest"`
	MostlyObjectFiles  bool `json:"mostly_object_files"`
}

// positiveCount counts the artifact-indicating signals.
func (s StructuralSignals) positiveCount() int {
	n := 0
	for _, b := range []bool{s.HasIncremental, s.HasDeps, s.HasBuild, s.HasFingerprint, s.MostlyObjectFiles} {
		if b {
			n++
		}
	}
	return n
}

// ArtifactClassification is the category and confidence assigned to a path.
type ArtifactClassification struct {
	PatternName          string           `json:"pattern_name"`
	Category             ArtifactCategory `json:"category"`
	NameConfidence       float64          `json:"name_confidence"`
	StructuralConfidence float64          `json:"structural_confidence"`
	CombinedConfidence   float64          `json:"combined_confidence"`
}

// UnknownClassification is the zero-confidence fallback.
func UnknownClassification() ArtifactClassification {
	return ArtifactClassification{PatternName: "", Category: CategoryUnknown}
}

// artifactPattern pairs a path-shape matcher with the structural evidence the
// category is expected to show.
type artifactPattern struct {
	name       string
	category   ArtifactCategory
	match      func(base string) bool
	required   func(s StructuralSignals) float64 // fraction of expected evidence present
	nameConf   float64
	structConf float64
}

// ArtifactPatternRegistry is the ordered pattern list; first match wins.
type ArtifactPatternRegistry struct {
	patterns []artifactPattern
	// nameWeight and structWeight blend the two confidences into the
	// combined score.
	nameWeight   float64
	structWeight float64
}

// NewArtifactPatternRegistry returns the built-in pattern set.
func NewArtifactPatternRegistry() *ArtifactPatternRegistry {
	all := func(StructuralSignals) float64 { return 1 }
	return &ArtifactPatternRegistry{
		nameWeight:   0.6,
		structWeight: 0.4,
		patterns: []artifactPattern{
			{
				name:     "cargo-target",
				category: CategoryRustTarget,
				match:    func(base string) bool { return base == "target" },
				required: func(s StructuralSignals) float64 {
					n := 0
					for _, b := range []bool{s.HasIncremental, s.HasDeps, s.HasBuild, s.HasFingerprint} {
						if b {
							n++
						}
					}
					return float64(n) / 4
				},
				nameConf:   0.6,
				structConf: 0.95,
			},
			{
				name:       "agent-scratch",
				category:   CategoryAgentScratch,
				match:      func(base string) bool { return strings.HasPrefix(base, ".target_") },
				required:   all,
				nameConf:   0.85,
				structConf: 0.7,
			},
			{
				name:       "node-modules",
				category:   CategoryNodeModules,
				match:      func(base string) bool { return base == "node_modules" },
				required:   all,
				nameConf:   0.95,
				structConf: 0.6,
			},
			{
				name:     "python-cache",
				category: CategoryPythonCache,
				match: func(base string) bool {
					switch base {
					case "__pycache__", ".pytest_cache", ".mypy_cache", ".tox", ".venv", ".ruff_cache":
						return true
					}
					return false
				},
				required:   all,
				nameConf:   0.9,
				structConf: 0.6,
			},
			{
				name:       "go-build-cache",
				category:   CategoryGoBuildCache,
				match:      func(base string) bool { return base == "go-build" },
				required:   all,
				nameConf:   0.85,
				structConf: 0.6,
			},
			{
				name:       "gradle-cache",
				category:   CategoryGradleCache,
				match:      func(base string) bool { return base == ".gradle" },
				required:   all,
				nameConf:   0.85,
				structConf: 0.55,
			},
			{
				name:     "maven-repo",
				category: CategoryMavenCache,
				match:    func(base string) bool { return base == ".m2" },
				required: func(s StructuralSignals) float64 {
					// A local repo is jars all the way down; a project
					// manifest beside it means this is not ~/.m2.
					if s.HasProjectManifest {
						return 0.3
					}
					return 1
				},
				nameConf:   0.85,
				structConf: 0.55,
			},
			{
				name:       "ccache",
				category:   CategoryCCache,
				match:      func(base string) bool { return base == ".ccache" },
				required:   all,
				nameConf:   0.9,
				structConf: 0.6,
			},
			{
				name:     "generic-build",
				category: CategoryBuildOutput,
				match: func(base string) bool {
					switch base {
					case "build", "dist", "out", "_build", ".next", ".turbo":
						return true
					}
					return false
				},
				required: func(s StructuralSignals) float64 {
					if s.MostlyObjectFiles || s.HasBuild || s.HasDeps {
						return 1
					}
					return 0.3
				},
				nameConf:   0.5,
				structConf: 0.7,
			},
		},
	}
}

// Classify walks the ordered pattern list; the first name match wins. The
// structural confidence is discounted by how much of the expected evidence is
// actually present.
func (r *ArtifactPatternRegistry) Classify(path string, signals StructuralSignals) ArtifactClassification {
	base := filepath.Base(path)
	for _, p := range r.patterns {
		if !p.match(base) {
			continue
		}
		presence := p.required(signals)
		structural := p.structConf * presence
		combined := r.nameWeight*p.nameConf + r.structWeight*structural
		return ArtifactClassification{
			PatternName:          p.name,
			Category:             p.category,
			NameConfidence:       p.nameConf,
			StructuralConfidence: structural,
			CombinedConfidence:   combined,
		}
	}
	return UnknownClassification()
}
