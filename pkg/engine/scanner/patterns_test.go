package scanner

import (
	"testing"
)

func TestClassifyRustTarget(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	signals := StructuralSignals{
		HasIncremental: true,
		HasDeps:        true,
		HasBuild:       true,
		HasFingerprint: true,
	}
	class := registry.Classify("/data/projects/myapp/target", signals)
	if class.Category != CategoryRustTarget {
		t.Fatalf("expected rust target, got %s", class.Category)
	}
	if class.CombinedConfidence <= 0.5 {
		t.Fatalf("full structural evidence should push confidence past 0.5, got %.3f", class.CombinedConfidence)
	}
}

func TestClassifyRustTargetWithoutEvidence(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	class := registry.Classify("/data/projects/myapp/target", StructuralSignals{})
	if class.Category != CategoryRustTarget {
		t.Fatalf("name still matches, got %s", class.Category)
	}
	if class.StructuralConfidence != 0 {
		t.Errorf("no evidence means zero structural confidence, got %.3f", class.StructuralConfidence)
	}
	withEvidence := registry.Classify("/data/projects/myapp/target", StructuralSignals{HasDeps: true, HasBuild: true})
	if withEvidence.CombinedConfidence <= class.CombinedConfidence {
		t.Error("partial evidence must raise combined confidence")
	}
}

func TestClassifyNodeModules(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	class := registry.Classify("/data/projects/webapp/node_modules", StructuralSignals{})
	if class.Category != CategoryNodeModules {
		t.Fatalf("expected node_modules, got %s", class.Category)
	}
	if class.CombinedConfidence < 0.5 {
		t.Errorf("node_modules is a strong name signal, got %.3f", class.CombinedConfidence)
	}
}

func TestClassifyAgentScratch(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	class := registry.Classify("/data/projects/p1/.target_opus_42", StructuralSignals{})
	if class.Category != CategoryAgentScratch {
		t.Fatalf("expected agent scratch, got %s", class.Category)
	}
}

func TestClassifyPythonCaches(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	for _, name := range []string{"__pycache__", ".pytest_cache", ".mypy_cache", ".tox", ".venv"} {
		class := registry.Classify("/data/projects/py/"+name, StructuralSignals{})
		if class.Category != CategoryPythonCache {
			t.Errorf("%s: expected python cache, got %s", name, class.Category)
		}
	}
}

func TestClassifyMavenRepo(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	class := registry.Classify("/home/agent/.m2", StructuralSignals{})
	if class.Category != CategoryMavenCache {
		t.Fatalf("expected maven cache, got %s", class.Category)
	}
	// A manifest next to the contents discounts the structural read.
	withManifest := registry.Classify("/home/agent/.m2", StructuralSignals{HasProjectManifest: true})
	if withManifest.CombinedConfidence >= class.CombinedConfidence {
		t.Error("a project manifest should lower confidence in the .m2 read")
	}
}

func TestClassifyUnknownFallback(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	class := registry.Classify("/data/projects/src", StructuralSignals{})
	if class.Category != CategoryUnknown {
		t.Fatalf("unmatched paths must be Unknown, got %s", class.Category)
	}
	if class.CombinedConfidence != 0 {
		t.Errorf("Unknown carries zero confidence, got %.3f", class.CombinedConfidence)
	}
}

func TestFirstMatchWins(t *testing.T) {
	registry := NewArtifactPatternRegistry()
	// "build" matches the generic-build pattern only; "target" must hit the
	// cargo pattern even though generic-build lists similar names.
	class := registry.Classify("/p/build", StructuralSignals{HasBuild: true})
	if class.Category != CategoryBuildOutput {
		t.Fatalf("expected build output, got %s", class.Category)
	}
	class = registry.Classify("/p/target", StructuralSignals{})
	if class.Category != CategoryRustTarget {
		t.Fatalf("expected rust target, got %s", class.Category)
	}
}
