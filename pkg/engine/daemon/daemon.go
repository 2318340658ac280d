// Package daemon runs the decision plane on a fixed tick: read pressure,
// observe the guard (the previous tick's prediction against this reading),
// update estimators and the controller, walk, score, evaluate policy, delete,
// write state. The guard is not fed from this tick's deletions. Every phase communicates by value; no
// component observes a later phase's output from the same tick.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/core"
	"github.com/DrSkyle/sbh/pkg/engine/ballast"
	"github.com/DrSkyle/sbh/pkg/engine/history"
	"github.com/DrSkyle/sbh/pkg/engine/monitor"
	"github.com/DrSkyle/sbh/pkg/engine/policy"
	"github.com/DrSkyle/sbh/pkg/engine/scanner"
	"github.com/DrSkyle/sbh/pkg/platform"
	"github.com/DrSkyle/sbh/pkg/telemetry"
	"github.com/DrSkyle/sbh/pkg/version"
)

// mountPipeline is the per-mount sensing chain.
type mountPipeline struct {
	estimator *monitor.DiskRateEstimator
	pid       *monitor.PidPressureController
	lastLevel monitor.PressureLevel
	// Previous tick's estimate, held for guard calibration.
	lastEstimate monitor.RateEstimate
	lastFree     uint64
	lastAt       time.Time
}

// Daemon owns every decision-plane component and serializes them on the tick.
type Daemon struct {
	cfg      *config.Config
	platform platform.Platform

	mounts     map[string]*mountPipeline
	protection *scanner.ProtectionRegistry
	patterns   *scanner.ArtifactPatternRegistry
	scoring    *scanner.ScoringEngine
	policy     *policy.Engine
	guard      *monitor.AdaptiveGuard
	predictive *monitor.PredictiveActionPolicy
	special    *monitor.SpecialLocationRegistry
	ballast    *ballast.Manager
	sink       history.Sink
	notify     *NotificationManager
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger

	startedAt time.Time
	state     StateFile
	reload    chan struct{}
}

// New assembles a daemon from configuration. Construction touches the
// filesystem (ballast dir, logs); a failure here is fatal at startup.
func New(cfg *config.Config, p platform.Platform) (*Daemon, error) {
	d := &Daemon{
		cfg:        cfg,
		platform:   p,
		mounts:     make(map[string]*mountPipeline),
		protection: scanner.NewProtectionRegistry(cfg.Scanner.ProtectedPaths),
		patterns:   scanner.NewArtifactPatternRegistry(),
		scoring:    scanner.NewScoringEngine(&cfg.Scoring, cfg.Scanner.MinFileAgeMinutes),
		guard: monitor.NewAdaptiveGuard(monitor.GuardrailConfig{
			MinObservations:      cfg.Guardrail.MinObservations,
			RateErrorTolerance:   cfg.Guardrail.RateErrorTolerance,
			ConservativeMinimum:  cfg.Guardrail.ConservativeMinimum,
			EProcessAlarm:        cfg.Guardrail.EProcessAlarm,
			BreachWindows:        cfg.Policy.CalibrationBreachWindows,
			RecoveryCleanWindows: cfg.Guardrail.RecoveryCleanWindows,
			WindowSize:           64,
		}),
		predictive: monitor.NewPredictiveActionPolicy(monitor.DefaultPredictiveConfig()),
		notify:     NewNotificationManager(cfg.Notify.WebhookURL, cfg.Notify.Channel),
		metrics:    telemetry.NewMetrics(),
		tracer:     telemetry.Tracer("sbh/daemon"),
		logger:     slog.Default(),
		startedAt:  time.Now(),
		reload:     make(chan struct{}, 1),
	}
	if !cfg.Notify.Enabled {
		d.notify = DisabledNotificationManager()
	}
	d.scoring = d.scoring.WithProtection(d.protection)

	// RAM-backed mounts get tighter buffer targets than the global bands.
	special, err := monitor.DiscoverSpecialLocations(p, nil)
	if err != nil {
		return nil, err
	}
	d.special = special

	engine := policy.NewEngine(policy.FromConfig(cfg.Policy))
	if cfg.Policy.RulesFile != "" {
		rules, err := policy.LoadRulesFile(cfg.Policy.RulesFile)
		if err != nil {
			return nil, err
		}
		engine = engine.WithRules(rules)
	}
	d.policy = engine

	manager, err := ballast.NewManager(cfg.Paths.BallastDir, cfg.Ballast)
	if err != nil {
		return nil, err
	}
	d.ballast = manager

	var sinks []history.Sink
	if cfg.Paths.JsonlLog != "" {
		jsonl, err := history.OpenJsonl(cfg.Paths.JsonlLog)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, jsonl)
	}
	if cfg.Paths.SqliteDB != "" {
		db, err := history.OpenSqlite(cfg.Paths.SqliteDB)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}
	d.sink = history.NewMultiSink(sinks...)

	d.state.Version = version.Current
	d.state.PID = os.Getpid()
	d.state.StartedAt = d.startedAt
	d.state.Rates = make(map[string]RateState)
	return d, nil
}

// Run drives the tick loop until ctx is cancelled. A tick in progress
// completes its current phase before the loop exits; a deletion is never
// interrupted mid-unlink.
func (d *Daemon) Run(ctx context.Context) error {
	interval := time.Duration(d.cfg.Pressure.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	if d.cfg.Ballast.AutoProvision {
		if _, err := d.ballast.Provision(nil); err != nil {
			// Ballast failure is non-fatal: the cleaner still works, it
			// just has no reserve to hand back.
			d.logger.Warn("ballast provisioning failed", "error", err)
			d.countError(err)
		}
	}

	if d.cfg.Telemetry.MetricsAddr != "" {
		go func() {
			if err := d.metrics.Serve(ctx, d.cfg.Telemetry.MetricsAddr); err != nil {
				d.logger.Warn("metrics listener failed", "error", err)
			}
		}()
	}
	go d.watchConfig(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("daemon started",
		"poll_interval", interval,
		"mode", d.policy.Mode().String(),
		"roots", d.cfg.Scanner.RootPaths)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return d.sink.Close()
		case <-d.reload:
			d.applyReload()
		case now := <-ticker.C:
			d.Tick(ctx, now)
		}
	}
}

// Tick executes one full pass of the decision plane.
func (d *Daemon) Tick(ctx context.Context, now time.Time) {
	ctx, span := d.tracer.Start(ctx, "Daemon.Tick")
	defer span.End()
	tickStart := time.Now()
	defer func() { d.metrics.TickDuration.Observe(time.Since(tickStart).Seconds()) }()

	// Phase 1: pressure sensing per mount.
	worst := monitor.Green
	var worstUrgency float64
	var worstMount string
	mountStates := d.senseMounts(now, &worst, &worstUrgency, &worstMount)

	// The scorer vetoes ancestors of any live mount boundary; feed it the
	// list this tick observed.
	mountPaths := make([]string, 0, len(mountStates))
	for _, m := range mountStates {
		mountPaths = append(mountPaths, m.Path)
	}
	d.scoring = d.scoring.WithMounts(mountPaths)

	// Phase 1.5: RAM-backed special locations breach their buffer targets
	// well before the global bands would notice.
	d.checkSpecialLocations(&worst, &worstMount)

	// Phase 2: ballast response to pressure transitions.
	d.manageBallast(worst, worstMount)

	// Phase 3..6: walk, score, evaluate, delete. The walker runs on every
	// tick whose context has not been cancelled.
	if ctx.Err() == nil {
		d.scanAndClean(ctx, worstUrgency, worstMount)
	}

	// Phase 7: state file for external observers.
	d.state.LastUpdated = now
	d.state.UptimeSeconds = int64(now.Sub(d.startedAt).Seconds())
	d.state.Pressure.Overall = worst.String()
	d.state.Pressure.Mounts = mountStates
	d.state.Ballast.Available = d.ballast.AvailableCount()
	d.state.Ballast.Total = d.cfg.Ballast.FileCount
	d.state.Ballast.Released = d.cfg.Ballast.FileCount - d.ballast.AvailableCount()
	d.state.MemoryRSSBytes = currentRSSBytes()
	d.metrics.BallastAvailable.Set(float64(d.ballast.AvailableCount()))

	if err := d.state.WriteAtomic(d.cfg.Paths.StateFile); err != nil {
		d.logger.Warn("state write failed", "error", err)
		d.countError(err)
	}
}

// senseMounts updates the estimator and controller for every monitored mount
// and feeds the guard with calibration observations.
func (d *Daemon) senseMounts(now time.Time, worst *monitor.PressureLevel, worstUrgency *float64, worstMount *string) []MountState {
	var states []MountState

	mounts, err := d.platform.MountPoints()
	if err != nil {
		// One bad mount-table read degrades the tick, never kills it.
		d.logger.Warn("mount enumeration failed", "error", err)
		d.countError(err)
		return states
	}

	for _, mount := range mounts {
		stats, err := d.platform.FsStats(mount.Path)
		if err != nil {
			d.logger.Warn("fs stats failed", "mount", mount.Path, "error", err)
			d.countError(err)
			continue
		}

		pipe := d.mounts[mount.Path]
		if pipe == nil {
			pipe = &mountPipeline{
				estimator: monitor.NewDiskRateEstimator(0.4, 0.1, 0.5, 3),
				pid: monitor.NewPidPressureController(
					d.cfg.Pressure.Kp, d.cfg.Pressure.Ki, d.cfg.Pressure.Kd,
					d.cfg.Pressure.Scale, d.cfg.Pressure.TargetFreePct, d.cfg.Pressure.HysteresisPct,
					d.cfg.Pressure.GreenMinFreePct, d.cfg.Pressure.YellowMinFreePct,
					d.cfg.Pressure.OrangeMinFreePct, d.cfg.Pressure.RedMinFreePct,
					time.Duration(d.cfg.Pressure.MinDtMs)*time.Millisecond,
				),
				lastLevel: monitor.Green,
			}
			d.mounts[mount.Path] = pipe
		}

		threshold := uint64(float64(stats.TotalBytes) * d.cfg.Pressure.RedMinFreePct / 100)
		d.observeCalibration(pipe, stats.AvailableBytes, now, threshold)
		estimate := pipe.estimator.Update(stats.AvailableBytes, stats.ObservedAt, threshold)

		reading := monitor.PressureReading{
			FreeBytes:  stats.AvailableBytes,
			TotalBytes: stats.TotalBytes,
			Mount:      mount.Path,
			ObservedAt: stats.ObservedAt,
		}
		output := pipe.pid.Update(reading, &estimate, now)

		if output.Level != pipe.lastLevel {
			d.logEvent(history.Event{
				ID:      uuid.NewString(),
				Kind:    history.EventPressureChange,
				At:      now,
				Mount:   mount.Path,
				Success: true,
				Details: fmt.Sprintf("%s -> %s", pipe.lastLevel, output.Level),
			})
			d.notify.Notify(&NotificationEvent{
				Kind:    NotifyPressureChanged,
				From:    pipe.lastLevel.String(),
				To:      output.Level.String(),
				Mount:   mount.Path,
				FreePct: stats.FreePct(),
			})
			pipe.lastLevel = output.Level
		}

		// Predicted exhaustion escalates ahead of the instantaneous level,
		// so ballast can go out before the controller reacts.
		if action := d.predictive.Evaluate(estimate, stats.FreePct(), mount.Path); action >= monitor.ActionImminent && output.Level < monitor.Red {
			d.logger.Warn("predictive escalation", "mount", mount.Path, "action", action.String())
			output.Level = monitor.Red
		}

		d.metrics.PressureLevel.WithLabelValues(mount.Path).Set(float64(output.Level))
		d.metrics.Urgency.WithLabelValues(mount.Path).Set(output.Urgency)

		states = append(states, MountState{
			Path:    mount.Path,
			FreePct: stats.FreePct(),
			Level:   output.Level.String(),
			RateBps: estimate.BytesPerSec,
		})
		d.state.Rates[mount.Path] = RateState{BytesPerSec: estimate.BytesPerSec}

		if output.Level > *worst || (output.Level == *worst && output.Urgency > *worstUrgency) {
			*worst = output.Level
			*worstUrgency = output.Urgency
			*worstMount = mount.Path
		}
	}
	return states
}

// observeCalibration compares the previous tick's prediction against what
// actually happened and feeds the guard.
func (d *Daemon) observeCalibration(pipe *mountPipeline, freeBytes uint64, now time.Time, threshold uint64) {
	// Called before this tick's Update, so Last() is the estimate the
	// previous tick produced.
	pipe.lastEstimate = pipe.estimator.Last()
	defer func() {
		pipe.lastFree = freeBytes
		pipe.lastAt = now
	}()

	if pipe.lastAt.IsZero() || pipe.lastEstimate.SampleCount < 3 {
		return
	}
	dt := now.Sub(pipe.lastAt).Seconds()
	if dt <= 0 {
		return
	}
	actualRate := (float64(pipe.lastFree) - float64(freeBytes)) / dt
	predicted := pipe.lastEstimate.BytesPerSec
	if predicted == 0 && actualRate == 0 {
		return
	}

	obs := monitor.CalibrationObservation{
		PredictedRate: predicted,
		ActualRate:    actualRate,
	}
	if pipe.lastEstimate.TimeToThresholdSeconds != nil {
		obs.PredictedTTE = *pipe.lastEstimate.TimeToThresholdSeconds
		if actualRate > 0 && freeBytes > threshold {
			obs.ActualTTE = (float64(freeBytes) - float64(threshold)) / actualRate
		}
	}
	d.guard.Observe(obs)

	diag := d.guard.Diagnostics()
	d.policy.ObserveWindow(&diag)
}

// checkSpecialLocations escalates pressure when a tmpfs-class location drops
// below its buffer target.
func (d *Daemon) checkSpecialLocations(worst *monitor.PressureLevel, worstMount *string) {
	for _, location := range d.special.All() {
		stats, err := d.platform.FsStats(location.Path)
		if err != nil {
			continue
		}
		if location.NeedsAttention(stats) && *worst < monitor.Orange {
			d.logger.Warn("special location under buffer target",
				"path", location.Path, "kind", location.Kind.String(), "free_pct", stats.FreePct())
			*worst = monitor.Orange
			*worstMount = location.Path
		}
	}
}

// manageBallast releases reserve under hard pressure and replenishes once the
// filesystem has recovered.
func (d *Daemon) manageBallast(worst monitor.PressureLevel, mount string) {
	switch {
	case worst >= monitor.Red:
		if d.ballast.AvailableCount() == 0 {
			return
		}
		released, err := d.ballast.Release(1)
		if err != nil {
			d.logger.Warn("ballast release failed", "error", err)
			d.countError(err)
			return
		}
		if released.FilesReleased > 0 {
			d.logEvent(history.Event{
				ID:      uuid.NewString(),
				Kind:    history.EventBallast,
				At:      time.Now(),
				Mount:   mount,
				Bytes:   released.BytesFreed,
				Success: true,
				Details: "released",
			})
			d.notify.Notify(&NotificationEvent{
				Kind:          NotifyBallastReleased,
				Mount:         mount,
				FilesReleased: released.FilesReleased,
				BytesFreed:    released.BytesFreed,
			})
		}
	case worst == monitor.Green:
		if d.ballast.AvailableCount() >= d.cfg.Ballast.FileCount {
			return
		}
		result, err := d.ballast.Replenish(nil)
		if err != nil {
			d.logger.Warn("ballast replenish failed", "error", err)
			d.countError(err)
			return
		}
		if result.FilesCreated > 0 {
			d.logEvent(history.Event{
				ID:      uuid.NewString(),
				Kind:    history.EventBallast,
				At:      time.Now(),
				Success: true,
				Details: fmt.Sprintf("replenished %d", result.FilesCreated),
			})
		}
	}
}

// scanAndClean runs walk → score → policy → delete for one tick.
func (d *Daemon) scanAndClean(ctx context.Context, urgency float64, mount string) {
	ctx, span := d.tracer.Start(ctx, "Daemon.ScanAndClean")
	defer span.End()

	// The marker cache is rebuilt per tick so operators can protect a
	// directory mid-flight without restarting the daemon.
	for _, root := range d.cfg.Scanner.RootPaths {
		if err := d.protection.DiscoverMarkers(root, d.cfg.Scanner.MaxDepth); err != nil {
			d.logger.Warn("marker discovery failed", "root", root, "error", err)
			d.countError(err)
		}
	}

	openFiles := scanner.CollectOpenFiles("/proc")
	walker := scanner.NewDirectoryWalker(scanner.WalkerConfig{
		RootPaths:      d.cfg.Scanner.RootPaths,
		MaxDepth:       d.cfg.Scanner.MaxDepth,
		FollowSymlinks: d.cfg.Scanner.FollowSymlinks,
		CrossDevices:   d.cfg.Scanner.CrossDevices,
		Parallelism:    d.cfg.Scanner.Parallelism,
		ExcludedPaths:  toSet(d.cfg.Scanner.ExcludedPaths),
		RootBudget:     time.Duration(d.cfg.Scanner.RootBudgetMs) * time.Millisecond,
	}, d.protection, d.patterns, openFiles)

	result, err := walker.Walk(ctx)
	if err != nil {
		d.logger.Warn("walk failed", "error", err)
		d.countError(err)
		return
	}
	d.state.Counters.Scans++
	d.metrics.ScansTotal.Inc()
	d.metrics.CandidatesScanned.Add(float64(len(result.Entries)))
	for _, walkErr := range result.Errors {
		d.logger.Debug("walker subtree error", "error", walkErr)
	}

	now := time.Now()
	inputs := make([]scanner.CandidateInput, 0, len(result.Entries))
	for _, entry := range result.Entries {
		inputs = append(inputs, scanner.CandidateInput{
			Path:           entry.Path,
			SizeBytes:      entry.SizeBytes,
			Age:            now.Sub(entry.ModifiedAt),
			Classification: entry.ClassificationHint,
			Signals:        entry.Signals,
			IsOpen:         entry.IsOpen,
			Excluded:       entry.Excluded,
		})
	}

	scored := d.scoring.ScoreBatch(inputs, urgency)
	diag := d.guard.Diagnostics()
	evaluation := d.policy.Evaluate(scored, &diag)

	for i := range evaluation.Records {
		record := &evaluation.Records[i]
		d.logEvent(history.Event{
			ID:       record.DecisionID,
			Kind:     history.EventDecision,
			At:       time.UnixMilli(record.TimestampMs),
			Path:     record.Path,
			Category: string(scoreCategory(scored, record.Path)),
			Success:  true,
			Details:  scanner.FormatExplain(record, scanner.ExplainL1),
		})
	}

	if len(evaluation.ApprovedForDeletion) == 0 {
		d.state.LastScan.At = now
		d.state.LastScan.Candidates = len(result.Entries)
		d.state.LastScan.Deleted = 0
		return
	}

	executor := scanner.NewDeletionExecutor(scanner.DeletionConfig{
		MaxBatchSize:            d.cfg.Scanner.MaxDeleteBatch,
		DryRun:                  d.cfg.Scanner.DryRun,
		MinScore:                d.cfg.Scoring.MinScore,
		CircuitBreakerThreshold: 3,
		CircuitBreakerCooldown:  time.Minute,
		CheckOpenFiles:          true,
		AllowedRoots:            d.cfg.Scanner.RootPaths,
	}, openFiles)

	plan := executor.Plan(evaluation.ApprovedForDeletion)
	report := executor.Execute(ctx, plan, d.pressureRecovered(mount))

	d.recordDeletionReport(&report, mount, now, len(result.Entries))
}

// pressureRecovered builds the short-circuit callback for the executor.
func (d *Daemon) pressureRecovered(mount string) func() bool {
	if mount == "" {
		return nil
	}
	return func() bool {
		stats, err := d.platform.FsStats(mount)
		if err != nil {
			return false
		}
		return stats.FreePct() >= d.cfg.Pressure.TargetFreePct
	}
}

func (d *Daemon) recordDeletionReport(report *scanner.DeletionReport, mount string, at time.Time, candidates int) {
	for _, path := range report.Deleted {
		d.state.Counters.Deletions++
		d.metrics.DeletionsTotal.WithLabelValues("ok").Inc()
		d.logEvent(history.Event{
			ID:      uuid.NewString(),
			Kind:    history.EventDeletion,
			At:      at,
			Mount:   mount,
			Path:    path,
			Success: true,
		})
	}
	for _, failure := range report.Failures {
		d.metrics.DeletionsTotal.WithLabelValues("failed").Inc()
		d.state.Counters.Errors++
		d.logEvent(history.Event{
			ID:      uuid.NewString(),
			Kind:    history.EventDeletion,
			At:      at,
			Mount:   mount,
			Path:    failure.Path,
			Success: false,
			Code:    failure.Code,
			Details: failure.Error,
		})
	}
	d.state.Counters.BytesFreed += report.BytesFreed
	d.metrics.BytesFreedTotal.Add(float64(report.BytesFreed))
	d.state.LastScan.At = at
	d.state.LastScan.Candidates = candidates
	d.state.LastScan.Deleted = len(report.Deleted)

	if len(report.Deleted) > 0 && !report.DryRun {
		d.notify.Notify(&NotificationEvent{
			Kind:         NotifyCleanupCompleted,
			Mount:        mount,
			ItemsDeleted: len(report.Deleted),
			BytesFreed:   report.BytesFreed,
		})
	}
	if report.CircuitBreakerTripped {
		d.logger.Error("deletion circuit breaker tripped this tick")
	}
}

// watchConfig debounces fsnotify events on the config and rules files into
// reload requests handled between ticks.
func (d *Daemon) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Warn("config watcher unavailable", "error", err)
		return
	}
	defer watcher.Close()

	paths := []string{d.cfg.Paths.ConfigFile, d.cfg.Policy.RulesFile}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err != nil {
			d.logger.Debug("cannot watch", "path", p, "error", err)
		}
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case d.reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Debug("watcher error", "error", err)
		}
	}
}

// applyReload re-reads the hot-reloadable surfaces: protection globs and
// dynamic rules. Structural settings (roots, thresholds) need a restart.
func (d *Daemon) applyReload() {
	cfg, err := config.Load(d.cfg.Paths.ConfigFile)
	if err != nil {
		d.logger.Warn("config reload rejected", "error", err)
		d.countError(err)
		return
	}
	d.protection = scanner.NewProtectionRegistry(cfg.Scanner.ProtectedPaths)
	d.scoring = d.scoring.WithProtection(d.protection)
	d.cfg.Scanner.ProtectedPaths = cfg.Scanner.ProtectedPaths
	d.cfg.Scanner.ExcludedPaths = cfg.Scanner.ExcludedPaths

	if cfg.Policy.RulesFile != "" {
		rules, err := policy.LoadRulesFile(cfg.Policy.RulesFile)
		if err != nil {
			d.logger.Warn("rules reload rejected; keeping previous set", "error", err)
			d.countError(err)
		} else {
			d.policy = d.policy.WithRules(rules)
		}
	}
	d.logger.Info("configuration reloaded")
}

func (d *Daemon) logEvent(event history.Event) {
	if err := d.sink.Append(event); err != nil {
		d.state.Counters.DroppedLogEvents++
		d.logger.Debug("event append failed", "error", err)
	}
}

func (d *Daemon) countError(err error) {
	d.state.Counters.Errors++
	d.metrics.ErrorsTotal.WithLabelValues(core.CodeOf(err)).Inc()
}

func scoreCategory(scored []scanner.CandidacyScore, path string) scanner.ArtifactCategory {
	for i := range scored {
		if scored[i].Path == path {
			return scored[i].Classification.Category
		}
	}
	return scanner.CategoryUnknown
}

func toSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
