package scanner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DrSkyle/sbh/pkg/core"
	"github.com/DrSkyle/sbh/pkg/engine/monitor"
)

// PolicyMode is the record-level view of the active policy: what the daemon
// was allowed to do when the decision was made.
type PolicyMode string

const (
	// ModeShadow logs decisions without acting (observe and fallback).
	ModeShadow PolicyMode = "shadow"
	// ModeCanary acts under a budget.
	ModeCanary PolicyMode = "canary"
	// ModeLive acts on every approved candidate.
	ModeLive PolicyMode = "live"
	// ModeDryRun acts on nothing by operator request.
	ModeDryRun PolicyMode = "dry_run"
)

// ExplainLevel selects how much of a record the formatter prints.
type ExplainLevel int

const (
	ExplainL0 ExplainLevel = iota
	ExplainL1
	ExplainL2
	ExplainL3
)

// DecisionRecord is the immutable audit row written for every candidate that
// reaches the policy engine.
type DecisionRecord struct {
	DecisionID      string         `json:"decision_id"`
	TimestampMs     int64          `json:"timestamp_ms"`
	Path            string         `json:"path"`
	SizeBytes       uint64         `json:"size_bytes"`
	AgeSeconds      int64          `json:"age_seconds"`
	Action          DecisionAction `json:"action"`
	EffectiveAction DecisionAction `json:"effective_action"`
	PolicyMode      PolicyMode     `json:"policy_mode"`
	Factors         ScoreFactors   `json:"factors"`
	TotalScore      float64        `json:"total_score"`
	Posterior       float64        `json:"posterior"`
	LossKeep        float64        `json:"loss_keep"`
	LossDelete      float64        `json:"loss_delete"`
	Calibration     float64        `json:"calibration"`
	Vetoed          bool           `json:"vetoed"`
	VetoReason      string         `json:"veto_reason,omitempty"`
	GuardStatus     string         `json:"guard_status"`
	Summary         string         `json:"summary"`
}

// ToJSONCompact serializes the record on one line.
func (r *DecisionRecord) ToJSONCompact() (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", core.Serialization("decision_record", err)
	}
	return string(body), nil
}

// ToJSONPretty serializes the record indented for humans.
func (r *DecisionRecord) ToJSONPretty() (string, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", core.Serialization("decision_record", err)
	}
	return string(body), nil
}

// DecisionRecordBuilder stamps records with ids and timestamps. The zero
// clock uses wall time; tests inject a fixed one.
type DecisionRecordBuilder struct {
	now func() time.Time
}

// NewDecisionRecordBuilder returns a wall-clock builder.
func NewDecisionRecordBuilder() *DecisionRecordBuilder {
	return &DecisionRecordBuilder{now: time.Now}
}

// WithClock overrides the timestamp source.
func (b *DecisionRecordBuilder) WithClock(now func() time.Time) *DecisionRecordBuilder {
	b.now = now
	return b
}

// Build assembles a record from a score plus policy context. effective may
// differ from the scored action when the policy engine withheld approval;
// nil means the scored action stood. guard may be nil before the guard has
// produced diagnostics.
func (b *DecisionRecordBuilder) Build(score *CandidacyScore, mode PolicyMode, guard *monitor.GuardDiagnostics, effective *DecisionAction) DecisionRecord {
	record := DecisionRecord{
		DecisionID:      uuid.NewString(),
		TimestampMs:     b.now().UnixMilli(),
		Path:            score.Path,
		SizeBytes:       score.SizeBytes,
		AgeSeconds:      int64(score.Age.Seconds()),
		Action:          score.Decision.Action,
		EffectiveAction: score.Decision.Action,
		PolicyMode:      mode,
		Factors:         score.Factors,
		TotalScore:      score.TotalScore,
		Posterior:       score.Decision.PosteriorAbandoned,
		LossKeep:        score.Decision.ExpectedLossKeep,
		LossDelete:      score.Decision.ExpectedLossDelete,
		Calibration:     score.Decision.CalibrationScore,
		Vetoed:          score.Vetoed,
		VetoReason:      score.VetoReason,
		GuardStatus:     monitor.GuardUnknown.String(),
		Summary:         score.Ledger.Summary,
	}
	if effective != nil {
		record.EffectiveAction = *effective
	}
	if guard != nil {
		record.GuardStatus = guard.Status.String()
	}
	return record
}

// FormatExplain renders a record at the requested verbosity. Output length is
// strictly increasing across levels, and the top level always carries the
// upper-case action token.
func FormatExplain(record *DecisionRecord, level ExplainLevel) string {
	action := strings.ToUpper(string(record.EffectiveAction))
	l0 := fmt.Sprintf("%s %s", action, record.Path)
	if level == ExplainL0 {
		return l0
	}

	l1 := fmt.Sprintf("%s score=%.3f posterior=%.3f mode=%s", l0, record.TotalScore, record.Posterior, record.PolicyMode)
	if level == ExplainL1 {
		return l1
	}

	f := record.Factors
	l2 := fmt.Sprintf("%s\n  factors: location=%.2f name=%.2f age=%.2f size=%.2f structure=%.2f pressure=%.2f",
		l1, f.Location, f.Name, f.Age, f.Size, f.Structure, f.PressureMultiplier)
	if level == ExplainL2 {
		return l2
	}

	var b strings.Builder
	b.WriteString(l2)
	fmt.Fprintf(&b, "\n  losses: keep=%.3f delete=%.3f calibration=%.3f", record.LossKeep, record.LossDelete, record.Calibration)
	fmt.Fprintf(&b, "\n  guard=%s vetoed=%v", record.GuardStatus, record.Vetoed)
	if record.VetoReason != "" {
		fmt.Fprintf(&b, " reason=%s", record.VetoReason)
	}
	fmt.Fprintf(&b, "\n  id=%s at=%d", record.DecisionID, record.TimestampMs)
	if record.Summary != "" {
		fmt.Fprintf(&b, "\n  %s", record.Summary)
	}
	return b.String()
}
