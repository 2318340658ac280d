package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrSkyle/sbh/pkg/config"
)

// seededRng is a small LCG for reproducible randomized fixtures. Not
// cryptographically secure; only for test determinism.
type seededRng struct {
	state uint64
}

func newSeededRng(seed uint64) *seededRng { return &seededRng{state: seed} }

func (r *seededRng) nextU64() uint64 {
	r.state = r.state*6364136223846793005 + 1
	return r.state
}

func (r *seededRng) nextF64() float64 {
	return float64(r.nextU64()>>11) / float64(uint64(1)<<53)
}

func (r *seededRng) nextRange(lo, hi uint64) uint64 {
	return lo + r.nextU64()%(hi-lo+1)
}

func defaultEngine() *ScoringEngine {
	cfg := config.Default()
	return NewScoringEngine(&cfg.Scoring, cfg.Scanner.MinFileAgeMinutes)
}

func makeCandidate(rng *seededRng, path string, ageHours, sizeGiB uint64, confidence float64) CandidateInput {
	return CandidateInput{
		Path:      path,
		SizeBytes: sizeGiB * 1073741824,
		Age:       time.Duration(ageHours) * time.Hour,
		Classification: ArtifactClassification{
			PatternName:          "agent-scratch",
			Category:             CategoryAgentScratch,
			NameConfidence:       confidence,
			StructuralConfidence: confidence * 0.9,
			CombinedConfidence:   confidence,
		},
		Signals: StructuralSignals{
			HasIncremental:    rng.nextF64() > 0.3,
			HasDeps:           rng.nextF64() > 0.2,
			HasBuild:          rng.nextF64() > 0.2,
			HasFingerprint:    rng.nextF64() > 0.5,
			MostlyObjectFiles: rng.nextF64() > 0.4,
		},
	}
}

func randomCandidates(rng *seededRng, count int) []CandidateInput {
	results := make([]CandidateInput, 0, count)
	for i := 0; i < count; i++ {
		age := rng.nextRange(1, 48)
		size := rng.nextRange(1, 10)
		conf := 0.5 + rng.nextF64()*0.45
		suffix := rng.nextU64() % 1000
		path := fmt.Sprintf("/data/projects/p%d/.target_opus_%d", i, suffix)
		results = append(results, makeCandidate(rng, path, age, size, conf))
	}
	return results
}

// ─── Deterministic ranking and tie-break stability ───

func TestScoringIsPerfectlyDeterministic(t *testing.T) {
	engine := defaultEngine()
	for trial := 0; trial < 5; trial++ {
		rng := newSeededRng(42)
		candidates := randomCandidates(rng, 20)

		a := engine.ScoreBatch(candidates, 0.5)
		b := engine.ScoreBatch(candidates, 0.5)

		for i := range a {
			if a[i].TotalScore != b[i].TotalScore {
				t.Fatalf("trial %d: scores must be bitwise identical at %d", trial, i)
			}
			if a[i].Path != b[i].Path {
				t.Fatalf("trial %d: paths must be identical at %d", trial, i)
			}
			if a[i].Decision.Action != b[i].Decision.Action {
				t.Fatalf("trial %d: actions must be identical at %d", trial, i)
			}
		}
	}
}

func TestTiebreakIsLexicographicByPath(t *testing.T) {
	engine := defaultEngine()
	rng := newSeededRng(99)
	base := makeCandidate(rng, "/data/projects/alpha/.target_opus", 5, 3, 0.9)

	var candidates []CandidateInput
	for _, name := range []string{"zzz", "aaa", "mmm", "bbb"} {
		c := base
		c.Path = fmt.Sprintf("/data/projects/%s/.target_opus", name)
		candidates = append(candidates, c)
	}

	scored := engine.ScoreBatch(candidates, 0.5)
	for i := 0; i+1 < len(scored); i++ {
		if scored[i].TotalScore == scored[i+1].TotalScore && scored[i].Path > scored[i+1].Path {
			t.Fatalf("tie-break must be path-ascending: %s vs %s", scored[i].Path, scored[i+1].Path)
		}
	}
}

func TestBatchSortedDescendingByScore(t *testing.T) {
	engine := defaultEngine()
	rng := newSeededRng(123)
	scored := engine.ScoreBatch(randomCandidates(rng, 30), 0.6)
	for i := 0; i+1 < len(scored); i++ {
		if scored[i].TotalScore < scored[i+1].TotalScore {
			t.Fatalf("batch must be sorted descending: %f < %f", scored[i].TotalScore, scored[i+1].TotalScore)
		}
	}
}

// ─── Posterior/loss monotonicity ───

func TestHigherScoreImpliesHigherPosterior(t *testing.T) {
	engine := defaultEngine()
	rng := newSeededRng(200)
	scored := engine.ScoreBatch(randomCandidates(rng, 50), 0.5)

	var nonVetoed []CandidacyScore
	for _, s := range scored {
		if !s.Vetoed {
			nonVetoed = append(nonVetoed, s)
		}
	}
	for i := 0; i+1 < len(nonVetoed); i++ {
		a, b := nonVetoed[i], nonVetoed[i+1]
		confDelta := a.Classification.CombinedConfidence - b.Classification.CombinedConfidence
		if confDelta < 0.01 && confDelta > -0.01 && a.TotalScore > b.TotalScore+0.01 {
			if a.Decision.PosteriorAbandoned < b.Decision.PosteriorAbandoned {
				t.Fatalf("higher score (%.3f) should give higher posterior (%.4f vs %.4f)",
					a.TotalScore, a.Decision.PosteriorAbandoned, b.Decision.PosteriorAbandoned)
			}
		}
	}
}

func TestExpectedLossesNonNegative(t *testing.T) {
	engine := defaultEngine()
	rng := newSeededRng(201)
	for _, c := range randomCandidates(rng, 30) {
		scored := engine.ScoreCandidate(&c, 0.5)
		if scored.Vetoed {
			continue
		}
		if scored.Decision.ExpectedLossKeep < 0 {
			t.Fatal("expected_loss_keep must be non-negative")
		}
		if scored.Decision.ExpectedLossDelete < 0 {
			t.Fatal("expected_loss_delete must be non-negative")
		}
	}
}

func TestPressureMultiplierIsMonotone(t *testing.T) {
	engine := defaultEngine()
	rng := newSeededRng(202)
	input := makeCandidate(rng, "/data/projects/mono/.target_opus", 5, 3, 0.9)

	prev := 0.0
	for pct := 0; pct <= 10; pct++ {
		urgency := float64(pct) / 10
		scored := engine.ScoreCandidate(&input, urgency)
		if scored.TotalScore < prev {
			t.Fatalf("score must be monotone in urgency: %.1f gave %.3f < %.3f", urgency, scored.TotalScore, prev)
		}
		prev = scored.TotalScore
	}
}

// ─── Clamping and vetoes ───

func TestScoreClampedTo03(t *testing.T) {
	engine := defaultEngine()
	for seed := uint64(0); seed < 20; seed++ {
		rng := newSeededRng(seed*7 + 13)
		candidates := randomCandidates(rng, 50)
		urgency := rng.nextF64()
		for _, s := range engine.ScoreBatch(candidates, urgency) {
			if s.TotalScore < 0 || s.TotalScore > 3 {
				t.Fatalf("seed=%d: score %.4f out of [0,3] for %s", seed, s.TotalScore, s.Path)
			}
		}
	}
}

func TestVetoedCandidatesHaveZeroScore(t *testing.T) {
	engine := defaultEngine()
	for seed := uint64(0); seed < 10; seed++ {
		rng := newSeededRng(seed*11 + 7)
		candidates := randomCandidates(rng, 20)
		for i := 0; i < len(candidates); i += 3 {
			candidates[i].IsOpen = true
		}
		for _, c := range candidates {
			scored := engine.ScoreCandidate(&c, 0.5)
			if scored.Vetoed {
				if scored.TotalScore != 0 {
					t.Fatalf("seed=%d: vetoed candidate must have score 0", seed)
				}
				if scored.Decision.Action != ActionKeep {
					t.Fatalf("seed=%d: vetoed candidate must Keep", seed)
				}
			}
		}
	}
}

func TestVarTmpRootIsVetoed(t *testing.T) {
	engine := defaultEngine()
	score := engine.ScoreCandidate(&CandidateInput{
		Path:           "/var/tmp",
		SizeBytes:      4096,
		Age:            30 * 24 * time.Hour,
		Classification: UnknownClassification(),
	}, 0.5)
	if !score.Vetoed {
		t.Fatal("the root of /var/tmp must be vetoed")
	}
}

func TestDevShmRootIsVetoed(t *testing.T) {
	engine := defaultEngine()
	score := engine.ScoreCandidate(&CandidateInput{
		Path:           "/dev/shm",
		SizeBytes:      4096,
		Age:            30 * 24 * time.Hour,
		Classification: UnknownClassification(),
	}, 0.5)
	if !score.Vetoed {
		t.Fatal("the root of /dev/shm must be vetoed")
	}
}

func TestVarTmpSubdirIsScoreable(t *testing.T) {
	engine := defaultEngine()
	score := engine.ScoreCandidate(&CandidateInput{
		Path:      "/var/tmp/my-build-artifact",
		SizeBytes: 100 << 20,
		Age:       5 * time.Hour,
		Classification: ArtifactClassification{
			PatternName: "generic-build", Category: CategoryBuildOutput,
			NameConfidence: 0.9, StructuralConfidence: 0.9, CombinedConfidence: 0.9,
		},
	}, 0.5)
	if score.Vetoed {
		t.Fatalf("descendants of /var/tmp are scoreable, got veto %q", score.VetoReason)
	}
}

func TestSystemRootAncestorsAreVetoed(t *testing.T) {
	engine := defaultEngine()
	for _, path := range []string{"/", "/var", "/dev"} {
		score := engine.ScoreCandidate(&CandidateInput{
			Path:           path,
			SizeBytes:      4096,
			Age:            30 * 24 * time.Hour,
			Classification: UnknownClassification(),
		}, 0.9)
		if !score.Vetoed {
			t.Errorf("%s must be vetoed", path)
		}
	}
}

func TestMountBoundaryAncestorsAreVetoed(t *testing.T) {
	engine := defaultEngine().WithMounts([]string{"/data/scratch", "/mnt/cache"})

	for _, path := range []string{"/data", "/data/scratch", "/mnt"} {
		score := engine.ScoreCandidate(&CandidateInput{
			Path:           path,
			SizeBytes:      1 << 30,
			Age:            30 * 24 * time.Hour,
			Classification: UnknownClassification(),
		}, 0.9)
		if !score.Vetoed || score.VetoReason != "mount-boundary" {
			t.Errorf("%s: mount boundaries and their ancestors must be vetoed, got %v/%q",
				path, score.Vetoed, score.VetoReason)
		}
	}

	// Descendants of a mount are ordinary candidates.
	score := engine.ScoreCandidate(&CandidateInput{
		Path:      "/data/scratch/proj/target",
		SizeBytes: 1 << 30,
		Age:       48 * time.Hour,
		Classification: ArtifactClassification{
			PatternName: "cargo-target", Category: CategoryRustTarget,
			NameConfidence: 0.9, StructuralConfidence: 0.9, CombinedConfidence: 0.9,
		},
	}, 0.9)
	if score.Vetoed {
		t.Fatalf("descendants of a mount are scoreable, got veto %q", score.VetoReason)
	}
}

func TestYoungLowConfidenceCandidateIsVetoed(t *testing.T) {
	engine := defaultEngine()
	score := engine.ScoreCandidate(&CandidateInput{
		Path:           "/data/projects/x/maybe-junk",
		SizeBytes:      1 << 30,
		Age:            5 * time.Minute,
		Classification: UnknownClassification(),
	}, 0.5)
	if !score.Vetoed || score.VetoReason != "too-young" {
		t.Fatalf("young unknown candidates must be vetoed, got %v/%q", score.Vetoed, score.VetoReason)
	}
}

func TestProtectionMarkerWinsOverScore(t *testing.T) {
	root := t.TempDir()
	artifact := filepath.Join(root, "hot", "target")
	if err := os.MkdirAll(artifact, 0o755); err != nil {
		t.Fatal(err)
	}

	registry := NewProtectionRegistry(nil)
	// Marker in the parent: the whole subtree is immune.
	if err := registry.AddMarker(filepath.Join(root, "hot"), MarkerPayload{Reason: "live"}); err != nil {
		t.Fatal(err)
	}

	engine := defaultEngine().WithProtection(registry)
	score := engine.ScoreCandidate(&CandidateInput{
		Path:      artifact,
		SizeBytes: 10 << 30,
		Age:       7 * 24 * time.Hour,
		Classification: ArtifactClassification{
			PatternName: "cargo-target", Category: CategoryRustTarget,
			NameConfidence: 0.95, StructuralConfidence: 0.95, CombinedConfidence: 0.95,
		},
	}, 0.9)

	if !score.Vetoed || score.TotalScore != 0 {
		t.Fatalf("protection must win over any score, got vetoed=%v score=%.3f", score.Vetoed, score.TotalScore)
	}
	if score.VetoReason != "marker" {
		t.Fatalf("veto reason should name the marker, got %q", score.VetoReason)
	}
	if score.Decision.Action != ActionKeep {
		t.Fatal("protected candidates must Keep")
	}
}

// ─── Pipeline-flavoured expectations ───

func TestGreenPressureKeepsUnknownSource(t *testing.T) {
	engine := defaultEngine()
	score := engine.ScoreCandidate(&CandidateInput{
		Path:           "/tmp/project/src/main.rs",
		SizeBytes:      12,
		Age:            time.Hour,
		Classification: UnknownClassification(),
	}, 0.0)
	if score.Decision.Action == ActionDelete {
		t.Fatal("green pressure must not delete unknown files")
	}
}

func TestArtifactRanksAboveSource(t *testing.T) {
	engine := defaultEngine()
	target := CandidateInput{
		Path:      "/tmp/project/target",
		SizeBytes: 500_000_000,
		Age:       4 * time.Hour,
		Classification: ArtifactClassification{
			PatternName: "cargo-target", Category: CategoryRustTarget,
			NameConfidence: 0.9, StructuralConfidence: 0.95, CombinedConfidence: 0.9,
		},
		Signals: StructuralSignals{HasIncremental: true, HasDeps: true, HasBuild: true, HasFingerprint: true},
	}
	source := CandidateInput{
		Path:           "/tmp/project/src/main.rs",
		SizeBytes:      500,
		Age:            time.Hour,
		Classification: UnknownClassification(),
	}

	targetScore := engine.ScoreCandidate(&target, 0.8)
	sourceScore := engine.ScoreCandidate(&source, 0.8)

	if targetScore.Vetoed {
		t.Fatalf("target should not be vetoed: %q", targetScore.VetoReason)
	}
	if targetScore.TotalScore <= sourceScore.TotalScore {
		t.Fatalf("artifact (%.3f) should outrank source (%.3f)", targetScore.TotalScore, sourceScore.TotalScore)
	}
	if targetScore.TotalScore <= 0.5 {
		t.Fatalf("artifact should have substantial score: %.3f", targetScore.TotalScore)
	}
}

func TestHighEvidenceOldArtifactDeletesUnderPressure(t *testing.T) {
	engine := defaultEngine()
	input := CandidateInput{
		Path:      "/tmp/agents/scratch/.target_opus_7",
		SizeBytes: 10 << 30,
		Age:       7 * 24 * time.Hour,
		Classification: ArtifactClassification{
			PatternName: "agent-scratch", Category: CategoryAgentScratch,
			NameConfidence: 0.95, StructuralConfidence: 0.95, CombinedConfidence: 0.95,
		},
		Signals: StructuralSignals{HasIncremental: true, HasDeps: true, HasBuild: true, HasFingerprint: true, MostlyObjectFiles: true},
	}
	score := engine.ScoreCandidate(&input, 0.9)
	if score.Decision.Action != ActionDelete {
		t.Fatalf("old high-confidence artifact under pressure must Delete, got %s (score %.3f posterior %.3f)",
			score.Decision.Action, score.TotalScore, score.Decision.PosteriorAbandoned)
	}
	if score.Decision.PosteriorAbandoned < 0.8 {
		t.Fatalf("high score + high confidence must calibrate to >= 0.8, got %.3f", score.Decision.PosteriorAbandoned)
	}
}
