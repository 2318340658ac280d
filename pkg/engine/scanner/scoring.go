package scanner

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/core"
)

// DecisionAction is the scorer's recommendation for one candidate.
type DecisionAction string

const (
	ActionKeep   DecisionAction = "keep"
	ActionDelete DecisionAction = "delete"
	ActionDefer  DecisionAction = "defer"
)

// DecisionOutcome carries the probabilistic reasoning behind an action.
type DecisionOutcome struct {
	Action             DecisionAction `json:"action"`
	PosteriorAbandoned float64        `json:"posterior_abandoned"`
	ExpectedLossKeep   float64        `json:"expected_loss_keep"`
	ExpectedLossDelete float64        `json:"expected_loss_delete"`
	CalibrationScore   float64        `json:"calibration_score"`
	FallbackActive     bool           `json:"fallback_active"`
}

// ScoreFactors are the six scoring dimensions, each in [0,1] except the
// multiplier.
type ScoreFactors struct {
	Location           float64 `json:"location"`
	Name               float64 `json:"name"`
	Age                float64 `json:"age"`
	Size               float64 `json:"size"`
	Structure          float64 `json:"structure"`
	PressureMultiplier float64 `json:"pressure_multiplier"`
}

// EvidenceTerm is one weighted contribution to the total score.
type EvidenceTerm struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// EvidenceLedger explains how the total score was assembled.
type EvidenceLedger struct {
	Terms   []EvidenceTerm `json:"terms"`
	Summary string         `json:"summary"`
}

// CandidateInput is the scorer's view of one walker candidate.
type CandidateInput struct {
	Path           string
	SizeBytes      uint64
	Age            time.Duration
	Classification ArtifactClassification
	Signals        StructuralSignals
	IsOpen         bool
	Excluded       bool
}

// CandidacyScore is the full scoring result for one candidate.
type CandidacyScore struct {
	Path           string                 `json:"path"`
	SizeBytes      uint64                 `json:"size_bytes"`
	Age            time.Duration          `json:"age"`
	TotalScore     float64                `json:"total_score"`
	Factors        ScoreFactors           `json:"factors"`
	Vetoed         bool                   `json:"vetoed"`
	VetoReason     string                 `json:"veto_reason,omitempty"`
	Classification ArtifactClassification `json:"classification"`
	Decision       DecisionOutcome        `json:"decision"`
	Ledger         EvidenceLedger         `json:"ledger"`
}

// protectedLocationRoots are system scratch roots that may never themselves
// be deleted. Their descendants are still scoreable.
var protectedLocationRoots = []string{"/tmp", "/var/tmp", "/dev/shm"}

// Posterior calibration constants: chosen so a high score with high
// classifier confidence lands at or above 0.8.
const (
	posteriorBias      = -1.0
	posteriorScoreGain = 2.0
	posteriorDoubtGain = 2.0
)

// ScoringEngine produces deterministic multi-factor scores with explicit
// safety vetoes. It holds no mutable state: scoring the same inputs twice
// yields bitwise-identical outputs.
type ScoringEngine struct {
	weights struct {
		location, name, age, size, structure float64
	}
	pressureGain      float64
	minScore          float64
	confidenceFloor   float64
	agePlateauHours   float64
	falseNegativeLoss float64
	falsePositiveLoss float64
	minFileAge        time.Duration
	protection        *ProtectionRegistry
	mountRoots        []string
}

// NewScoringEngine builds an engine from the scoring section plus the
// scanner's minimum file age.
func NewScoringEngine(cfg *config.ScoringConfig, minFileAgeMinutes int) *ScoringEngine {
	e := &ScoringEngine{
		pressureGain:      cfg.PressureGain,
		minScore:          cfg.MinScore,
		confidenceFloor:   cfg.ConfidenceFloor,
		agePlateauHours:   cfg.AgePlateauHours,
		falseNegativeLoss: cfg.FalseNegativeLoss,
		falsePositiveLoss: cfg.FalsePositiveLoss,
		minFileAge:        time.Duration(minFileAgeMinutes) * time.Minute,
	}
	e.weights.location = cfg.WeightLocation
	e.weights.name = cfg.WeightName
	e.weights.age = cfg.WeightAge
	e.weights.size = cfg.WeightSize
	e.weights.structure = cfg.WeightStructure
	return e
}

// WithProtection makes the engine re-check the protection registry as a
// scoring veto. The walker already skips protected subtrees; this is the
// second line of defense for candidates fed in from elsewhere.
func (e *ScoringEngine) WithProtection(registry *ProtectionRegistry) *ScoringEngine {
	e.protection = registry
	return e
}

// WithMounts supplies the live mount-point list so ancestors of a mount
// boundary are vetoed. The filesystem root is implied and need not be listed.
func (e *ScoringEngine) WithMounts(mountPaths []string) *ScoringEngine {
	cleaned := make([]string, 0, len(mountPaths))
	for _, m := range mountPaths {
		if m != "" && m != "/" {
			cleaned = append(cleaned, core.ResolveAbsolute(m))
		}
	}
	e.mountRoots = cleaned
	return e
}

// ScoreCandidate evaluates one candidate under the given urgency in [0,1].
func (e *ScoringEngine) ScoreCandidate(input *CandidateInput, urgency float64) CandidacyScore {
	score := CandidacyScore{
		Path:           input.Path,
		SizeBytes:      input.SizeBytes,
		Age:            input.Age,
		Classification: input.Classification,
	}

	if reason := e.veto(input); reason != "" {
		score.Vetoed = true
		score.VetoReason = reason
		score.TotalScore = 0
		score.Decision = DecisionOutcome{
			Action:           ActionKeep,
			CalibrationScore: input.Classification.CombinedConfidence,
		}
		score.Ledger = EvidenceLedger{Summary: "vetoed: " + reason}
		return score
	}

	factors := ScoreFactors{
		Location:           locationFactor(input.Path),
		Name:               input.Classification.NameConfidence,
		Age:                e.ageFactor(input.Age),
		Size:               sizeFactor(input.SizeBytes),
		Structure:          structureFactor(input.Classification, input.Signals),
		PressureMultiplier: 1 + e.pressureGain*clamp01(urgency),
	}

	terms := []EvidenceTerm{
		{Name: "location", Weight: e.weights.location, Value: factors.Location},
		{Name: "name", Weight: e.weights.name, Value: factors.Name},
		{Name: "age", Weight: e.weights.age, Value: factors.Age},
		{Name: "size", Weight: e.weights.size, Value: factors.Size},
		{Name: "structure", Weight: e.weights.structure, Value: factors.Structure},
	}
	weighted := 0.0
	for i := range terms {
		terms[i].Contribution = terms[i].Weight * terms[i].Value
		weighted += terms[i].Contribution
	}

	total := weighted * factors.PressureMultiplier
	if total < 0 {
		total = 0
	}
	if total > 3 {
		total = 3
	}

	confidence := input.Classification.CombinedConfidence
	posterior := sigmoid(posteriorBias + posteriorScoreGain*total - posteriorDoubtGain*(1-confidence))
	lossKeep := posterior * e.falseNegativeLoss
	lossDelete := (1 - posterior) * e.falsePositiveLoss

	action := ActionKeep
	switch {
	case lossDelete < lossKeep && total >= e.minScore:
		action = ActionDelete
	case lossDelete < lossKeep:
		// The evidence favors deletion but the score floor holds it back:
		// revisit when pressure raises the multiplier.
		action = ActionDefer
	}

	score.TotalScore = total
	score.Factors = factors
	score.Decision = DecisionOutcome{
		Action:             action,
		PosteriorAbandoned: posterior,
		ExpectedLossKeep:   lossKeep,
		ExpectedLossDelete: lossDelete,
		CalibrationScore:   confidence,
	}
	score.Ledger = EvidenceLedger{
		Terms: terms,
		Summary: fmt.Sprintf("%s score=%.3f posterior=%.3f (%s)",
			strings.ToUpper(string(action)), total, posterior, input.Classification.Category),
	}
	return score
}

// ScoreBatch scores every candidate and sorts by descending total score with
// an ascending lexicographic path tie-break for determinism.
func (e *ScoringEngine) ScoreBatch(inputs []CandidateInput, urgency float64) []CandidacyScore {
	scored := make([]CandidacyScore, len(inputs))
	for i := range inputs {
		scored[i] = e.ScoreCandidate(&inputs[i], urgency)
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].TotalScore != scored[j].TotalScore {
			return scored[i].TotalScore > scored[j].TotalScore
		}
		return scored[i].Path < scored[j].Path
	})
	return scored
}

// veto returns the reason when any safety veto fires, empty otherwise.
func (e *ScoringEngine) veto(input *CandidateInput) string {
	if input.IsOpen {
		return "open"
	}
	if input.Excluded {
		return "excluded"
	}
	if e.protection != nil {
		if protected, source := e.protection.IsProtected(input.Path); protected {
			return source // "marker" or "pattern"
		}
	}

	resolved := core.ResolveAbsolute(input.Path)
	if resolved == "/" {
		return "system-root"
	}
	for _, root := range protectedLocationRoots {
		if resolved == root {
			return "protected-location-root"
		}
		// An ancestor of a protected root (e.g. /var above /var/tmp) is a
		// system path, never a candidate.
		if core.IsPathWithin(root, resolved) {
			return "system-path"
		}
	}
	// Mount boundaries and their ancestors are structural, not reclaimable:
	// deleting them would take live filesystems with them.
	for _, mount := range e.mountRoots {
		if core.IsPathWithin(mount, resolved) {
			return "mount-boundary"
		}
	}

	if input.Age < e.minFileAge && input.Classification.CombinedConfidence < e.confidenceFloor {
		return "too-young"
	}
	return ""
}

// locationFactor scores how safe the surrounding location is for deletion.
// Well-known scratch territory scores high; arbitrary locations are neutral.
func locationFactor(path string) float64 {
	resolved := core.ResolveAbsolute(path)
	for _, root := range protectedLocationRoots {
		if core.IsPathWithin(resolved, root) {
			return 0.9
		}
	}
	for _, segment := range strings.Split(resolved, string(filepath.Separator)) {
		switch strings.ToLower(segment) {
		case "tmp", "cache", ".cache", "caches", "scratch":
			return 0.75
		}
	}
	return 0.5
}

// ageFactor saturates linearly at the configured plateau.
func (e *ScoringEngine) ageFactor(age time.Duration) float64 {
	if e.agePlateauHours <= 0 {
		return 1
	}
	return clamp01(age.Hours() / e.agePlateauHours)
}

// sizeFactor is a log-scale saturating function: ~0 for tiny entries,
// saturating at 1 around 100 GiB.
func sizeFactor(sizeBytes uint64) float64 {
	mib := float64(sizeBytes) / (1 << 20)
	return clamp01(math.Log10(mib+1) / 5)
}

func structureFactor(class ArtifactClassification, signals StructuralSignals) float64 {
	presence := 0.5 + 0.5*float64(signals.positiveCount())/5
	return clamp01(class.StructuralConfidence * presence)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
