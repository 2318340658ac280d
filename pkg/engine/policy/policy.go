// Package policy implements the active-mode state machine deciding which
// scored candidates the daemon may actually delete.
package policy

import (
	"log/slog"
	"time"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/engine/monitor"
	"github.com/DrSkyle/sbh/pkg/engine/scanner"
)

// ActiveMode is the policy state. FallbackSafe dominates everything.
type ActiveMode int

const (
	Observe ActiveMode = iota
	Canary
	Enforce
	FallbackSafe
)

func (m ActiveMode) String() string {
	switch m {
	case Canary:
		return "canary"
	case Enforce:
		return "enforce"
	case FallbackSafe:
		return "fallback_safe"
	default:
		return "observe"
	}
}

// AllowsDeletion reports whether the mode can approve any deletion at all.
func (m ActiveMode) AllowsDeletion() bool {
	return m == Canary || m == Enforce
}

// ParseMode maps a config string to a mode, defaulting to Observe.
func ParseMode(s string) ActiveMode {
	switch s {
	case "canary":
		return Canary
	case "enforce":
		return Enforce
	default:
		return Observe
	}
}

// recordMode maps the active mode onto the audit-record vocabulary.
func recordMode(m ActiveMode) scanner.PolicyMode {
	switch m {
	case Canary:
		return scanner.ModeCanary
	case Enforce:
		return scanner.ModeLive
	default:
		return scanner.ModeShadow
	}
}

// FallbackReason names why the engine entered FallbackSafe.
type FallbackReason string

const (
	ReasonGuardrailDrift       FallbackReason = "guardrail_drift"
	ReasonKillSwitch           FallbackReason = "kill_switch"
	ReasonPolicyError          FallbackReason = "policy_error"
	ReasonSerializationFailure FallbackReason = "serialization_failure"
)

// Config is the engine's own tuning, lifted from the config file.
type Config struct {
	InitialMode              ActiveMode
	MaxCanaryDeletesPerHour  int
	RecoveryCleanWindows     int
	CalibrationBreachWindows int
}

// FromConfig converts the file section.
func FromConfig(cfg config.PolicyConfig) Config {
	return Config{
		InitialMode:              ParseMode(cfg.InitialMode),
		MaxCanaryDeletesPerHour:  cfg.MaxCanaryDeletesPerHour,
		RecoveryCleanWindows:     cfg.RecoveryCleanWindows,
		CalibrationBreachWindows: cfg.CalibrationBreachWindows,
	}
}

// DefaultConfig mirrors the daemon defaults.
func DefaultConfig() Config {
	return Config{
		InitialMode:              Observe,
		MaxCanaryDeletesPerHour:  5,
		RecoveryCleanWindows:     3,
		CalibrationBreachWindows: 3,
	}
}

// EvaluationResult is one policy pass over a scored batch.
type EvaluationResult struct {
	Mode                ActiveMode
	Records             []scanner.DecisionRecord
	ApprovedForDeletion []scanner.CandidacyScore
}

// Engine is the mode state machine. Mode transitions are serialized by the
// daemon's main loop; the engine itself is not safe for concurrent use.
type Engine struct {
	cfg   Config
	mode  ActiveMode
	rules *RuleEngine

	preFallback     ActiveMode
	fallbackEntries int
	fallbackReason  FallbackReason
	passWindows     int
	failWindows     int

	canaryWindowStart time.Time
	canaryUsed        int
	canaryExhausted   bool

	records *scanner.DecisionRecordBuilder
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine starts in the configured initial mode.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxCanaryDeletesPerHour <= 0 {
		cfg.MaxCanaryDeletesPerHour = 5
	}
	if cfg.RecoveryCleanWindows <= 0 {
		cfg.RecoveryCleanWindows = 1
	}
	if cfg.CalibrationBreachWindows <= 0 {
		cfg.CalibrationBreachWindows = 3
	}
	return &Engine{
		cfg:     cfg,
		mode:    cfg.InitialMode,
		records: scanner.NewDecisionRecordBuilder(),
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// WithRules attaches a compiled dynamic-rule engine.
func (e *Engine) WithRules(rules *RuleEngine) *Engine {
	e.rules = rules
	return e
}

// WithClock overrides the time source (canary budget windows).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Mode returns the current mode.
func (e *Engine) Mode() ActiveMode { return e.mode }

// LastFallbackReason returns why the engine last entered fallback.
func (e *Engine) LastFallbackReason() FallbackReason { return e.fallbackReason }

// TotalFallbackEntries counts distinct fallback entries.
func (e *Engine) TotalFallbackEntries() int { return e.fallbackEntries }

// Promote moves one step along Observe → Canary → Enforce. It returns false
// when already at Enforce or in fallback.
func (e *Engine) Promote() bool {
	switch e.mode {
	case Observe:
		e.mode = Canary
	case Canary:
		e.mode = Enforce
	default:
		return false
	}
	e.logger.Info("policy promoted", "mode", e.mode.String())
	return true
}

// Demote moves one step along Enforce → Canary → Observe. It returns false
// when already at Observe or in fallback.
func (e *Engine) Demote() bool {
	switch e.mode {
	case Enforce:
		e.mode = Canary
	case Canary:
		e.mode = Observe
	default:
		return false
	}
	e.logger.Info("policy demoted", "mode", e.mode.String())
	return true
}

// EnterFallback drops to FallbackSafe, remembering the pre-fallback mode.
// It is idempotent: re-entering while already in fallback neither re-counts
// nor overwrites the remembered mode.
func (e *Engine) EnterFallback(reason FallbackReason) {
	if e.mode == FallbackSafe {
		return
	}
	e.preFallback = e.mode
	e.mode = FallbackSafe
	e.fallbackReason = reason
	e.fallbackEntries++
	e.passWindows = 0
	e.logger.Warn("policy entered fallback", "reason", string(reason), "pre_fallback", e.preFallback.String())
}

// ObserveWindow folds one guard window. Consecutive Pass windows recover from
// fallback; consecutive Fail windows force it.
func (e *Engine) ObserveWindow(diag *monitor.GuardDiagnostics) {
	if diag == nil {
		return
	}
	switch diag.Status {
	case monitor.GuardPass:
		e.failWindows = 0
		if e.mode == FallbackSafe {
			e.passWindows++
			if e.passWindows >= e.cfg.RecoveryCleanWindows {
				e.mode = e.preFallback
				e.passWindows = 0
				e.logger.Info("policy recovered from fallback", "mode", e.mode.String())
			}
		}
	case monitor.GuardFail:
		e.passWindows = 0
		e.failWindows++
		if e.mode != FallbackSafe && e.failWindows >= e.cfg.CalibrationBreachWindows {
			e.EnterFallback(ReasonGuardrailDrift)
		}
	default:
		// Unknown windows neither recover nor breach.
		e.passWindows = 0
		e.failWindows = 0
	}
}

// Evaluate runs one policy pass over a scored batch (descending score order).
// A decision record is produced for every candidate; approvals depend on the
// mode, the guard, the canary budget and any matching dynamic block rules.
func (e *Engine) Evaluate(scored []scanner.CandidacyScore, guard *monitor.GuardDiagnostics) EvaluationResult {
	e.rollCanaryWindow()

	result := EvaluationResult{}
	guardBlocks := guard != nil && guard.Status == monitor.GuardFail

	for i := range scored {
		s := &scored[i]
		approved := false

		switch {
		case s.Vetoed || s.Decision.Action != scanner.ActionDelete:
			// Nothing to approve.
		case !e.mode.AllowsDeletion():
			// Observe and FallbackSafe log but never act, no matter how
			// good the guard looks.
		case guardBlocks:
		case e.blockedByRule(s):
		case e.mode == Enforce:
			approved = true
		case e.mode == Canary:
			if e.canaryUsed < e.cfg.MaxCanaryDeletesPerHour {
				e.canaryUsed++
				approved = true
				if e.canaryUsed >= e.cfg.MaxCanaryDeletesPerHour {
					// Budget exhaustion is a mode change by design, not a
					// silent drop: demote for the rest of the hour.
					e.canaryExhausted = true
					e.mode = Observe
					e.logger.Warn("canary budget exhausted; demoting to observe for the hour")
				}
			}
		}

		var effective *scanner.DecisionAction
		if !approved && s.Decision.Action == scanner.ActionDelete {
			keep := scanner.ActionKeep
			effective = &keep
		}
		recordScore := *s
		recordScore.Decision.FallbackActive = e.mode == FallbackSafe
		record := e.records.Build(&recordScore, recordMode(e.mode), guard, effective)
		result.Records = append(result.Records, record)
		if approved {
			result.ApprovedForDeletion = append(result.ApprovedForDeletion, *s)
		}
	}

	result.Mode = e.mode
	return result
}

// rollCanaryWindow resets the hourly budget and lifts a budget-exhaustion
// demotion once the hour has passed.
func (e *Engine) rollCanaryWindow() {
	now := e.now()
	if e.canaryWindowStart.IsZero() {
		e.canaryWindowStart = now
		return
	}
	if now.Sub(e.canaryWindowStart) < time.Hour {
		return
	}
	e.canaryWindowStart = now
	e.canaryUsed = 0
	if e.canaryExhausted && e.mode == Observe {
		e.mode = Canary
	}
	e.canaryExhausted = false
}

func (e *Engine) blockedByRule(s *scanner.CandidacyScore) bool {
	if e.rules == nil {
		return false
	}
	verdict, err := e.rules.Evaluate(s)
	if err != nil {
		// A broken rule set must fail safe.
		e.EnterFallback(ReasonPolicyError)
		return true
	}
	return verdict == VerdictBlock
}
