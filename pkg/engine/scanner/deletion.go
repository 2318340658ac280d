package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/DrSkyle/sbh/pkg/core"
)

// DeletionConfig bounds one execution batch.
type DeletionConfig struct {
	MaxBatchSize int
	DryRun       bool
	MinScore     float64
	// CircuitBreakerThreshold is the consecutive-failure count that aborts
	// the remainder of the batch.
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration
	// CheckOpenFiles rechecks the open-file snapshot immediately before
	// each unlink.
	CheckOpenFiles bool
	// AllowedRoots bounds every deletion: a path that does not resolve
	// inside one of these roots is refused with a safety veto, no matter
	// how it was scored. Empty disables the containment check (tests,
	// synthetic plans).
	AllowedRoots []string
}

// DeletionPlan is the filtered, ordered set of candidates to remove.
type DeletionPlan struct {
	Items      []CandidacyScore
	TotalBytes uint64
	DryRun     bool
}

// DeletionFailure records one per-item failure.
type DeletionFailure struct {
	Path        string `json:"path"`
	Error       string `json:"error"`
	Code        string `json:"error_code"`
	Recoverable bool   `json:"recoverable"`
}

// DeletionReport is the outcome of executing a plan.
type DeletionReport struct {
	DryRun                bool              `json:"dry_run"`
	Deleted               []string          `json:"deleted"`
	BytesFreed            uint64            `json:"bytes_freed"`
	Failures              []DeletionFailure `json:"failures"`
	CircuitBreakerTripped bool              `json:"circuit_breaker_tripped"`
	PressureRecovered     bool              `json:"pressure_recovered"`
	SkippedOpen           []string          `json:"skipped_open,omitempty"`
}

// DeletionExecutor turns approved scores into filesystem mutations, guarded
// by a circuit breaker and an optional pressure short-circuit.
type DeletionExecutor struct {
	cfg       DeletionConfig
	openFiles *OpenFileSnapshot
	logger    *slog.Logger
}

// NewDeletionExecutor wires an executor. openFiles may be nil, disabling the
// pre-unlink recheck regardless of configuration.
func NewDeletionExecutor(cfg DeletionConfig, openFiles *OpenFileSnapshot) *DeletionExecutor {
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 3
	}
	return &DeletionExecutor{cfg: cfg, openFiles: openFiles, logger: slog.Default()}
}

// Plan filters scored candidates down to the executable batch: vetoes
// removed, score floor applied, batch size capped. Input order (descending
// score) is preserved.
func (e *DeletionExecutor) Plan(scored []CandidacyScore) DeletionPlan {
	plan := DeletionPlan{DryRun: e.cfg.DryRun}
	for i := range scored {
		if len(plan.Items) >= e.cfg.MaxBatchSize && e.cfg.MaxBatchSize > 0 {
			break
		}
		s := scored[i]
		if s.Vetoed {
			continue
		}
		if s.TotalScore < e.cfg.MinScore {
			continue
		}
		if s.Decision.Action != ActionDelete {
			continue
		}
		plan.Items = append(plan.Items, s)
		plan.TotalBytes += s.SizeBytes
	}
	return plan
}

// Execute removes every planned item in order. pressureCheck, when non-nil,
// is consulted between items: returning true means the pressure target has
// recovered and the rest of the batch is unnecessary. A deletion in progress
// is never interrupted; cancellation takes effect between items.
func (e *DeletionExecutor) Execute(ctx context.Context, plan DeletionPlan, pressureCheck func() bool) DeletionReport {
	report := DeletionReport{DryRun: plan.DryRun}
	consecutiveFailures := 0

	for i := range plan.Items {
		item := &plan.Items[i]

		if ctx.Err() != nil {
			break
		}
		if pressureCheck != nil && pressureCheck() {
			report.PressureRecovered = true
			break
		}
		if consecutiveFailures >= e.cfg.CircuitBreakerThreshold {
			report.CircuitBreakerTripped = true
			e.logger.Error("deletion circuit breaker tripped",
				"consecutive_failures", consecutiveFailures,
				"remaining", len(plan.Items)-i)
			break
		}

		// Containment re-check right at the unlink boundary: the scored
		// path must resolve inside a configured root. Escapes (symlink
		// games, ".." survivors) are refused, not normalized.
		target := item.Path
		if len(e.cfg.AllowedRoots) > 0 {
			resolved, err := core.ResolveWithinRoots(item.Path, e.cfg.AllowedRoots)
			if err != nil {
				var vetoErr *core.Error
				if !errors.As(err, &vetoErr) {
					vetoErr = core.SafetyVeto(item.Path, err.Error())
				}
				report.Failures = append(report.Failures, DeletionFailure{
					Path:        item.Path,
					Error:       vetoErr.Error(),
					Code:        vetoErr.Code(),
					Recoverable: false,
				})
				e.logger.Error("deletion refused: path escapes configured roots", "path", item.Path)
				continue
			}
			target = resolved
		}

		if plan.DryRun {
			report.Deleted = append(report.Deleted, item.Path)
			report.BytesFreed += item.SizeBytes
			continue
		}

		if e.cfg.CheckOpenFiles && e.openFiles != nil && e.openFiles.IsOpenUnder(target) {
			report.SkippedOpen = append(report.SkippedOpen, item.Path)
			continue
		}

		if err := os.RemoveAll(target); err != nil {
			wrapped := core.Io(item.Path, err)
			report.Failures = append(report.Failures, DeletionFailure{
				Path:        item.Path,
				Error:       wrapped.Error(),
				Code:        wrapped.Code(),
				Recoverable: wrapped.Retryable(),
			})
			consecutiveFailures++
			e.logger.Warn("deletion failed", "path", item.Path, "error", err)
			continue
		}

		consecutiveFailures = 0
		report.Deleted = append(report.Deleted, item.Path)
		report.BytesFreed += item.SizeBytes
		e.logger.Info("deleted candidate", "path", item.Path, "bytes", item.SizeBytes)
	}

	return report
}
