package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/engine/scanner"
)

var (
	cleanForce    bool
	cleanMaxItems int
	cleanMinScore float64
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete high-confidence abandoned artifacts (dry-run by default)",
	Long: `Scan, score, and remove abandoned build artifacts.

Without --force this is a dry run: the plan is printed and nothing is
deleted. Vetoed candidates are never deleted under any flag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		protection := scanner.NewProtectionRegistry(cfg.Scanner.ProtectedPaths)
		for _, root := range cfg.Scanner.RootPaths {
			_ = protection.DiscoverMarkers(root, cfg.Scanner.MaxDepth)
		}

		openFiles := scanner.CollectOpenFiles("/proc")
		walker := scanner.NewDirectoryWalker(scanner.WalkerConfig{
			RootPaths:      cfg.Scanner.RootPaths,
			MaxDepth:       cfg.Scanner.MaxDepth,
			FollowSymlinks: cfg.Scanner.FollowSymlinks,
			CrossDevices:   cfg.Scanner.CrossDevices,
			Parallelism:    cfg.Scanner.Parallelism,
			ExcludedPaths:  pathSet(cfg.Scanner.ExcludedPaths),
			RootBudget:     time.Duration(cfg.Scanner.RootBudgetMs) * time.Millisecond,
		}, protection, scanner.NewArtifactPatternRegistry(), openFiles)

		result, err := walker.Walk(context.Background())
		if err != nil {
			return err
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

		engine := scanner.NewScoringEngine(&cfg.Scoring, cfg.Scanner.MinFileAgeMinutes).
			WithProtection(protection).
			WithMounts(liveMountPaths())
		// Manual clean acts like high pressure: the operator asked.
		scored := engine.ScoreBatch(inputs, 0.9)

		minScore := cfg.Scoring.MinScore
		if cmd.Flags().Changed("min-score") {
			minScore = cleanMinScore
		}
		maxBatch := cfg.Scanner.MaxDeleteBatch
		if cleanMaxItems > 0 {
			maxBatch = cleanMaxItems
		}

		executor := scanner.NewDeletionExecutor(scanner.DeletionConfig{
			MaxBatchSize:            maxBatch,
			DryRun:                  !cleanForce,
			MinScore:                minScore,
			CircuitBreakerThreshold: 3,
			CircuitBreakerCooldown:  time.Minute,
			CheckOpenFiles:          true,
			AllowedRoots:            cfg.Scanner.RootPaths,
		}, openFiles)

		plan := executor.Plan(scored)
		if len(plan.Items) == 0 {
			if jsonMode {
				writeJSONLine(map[string]any{"command": "clean", "planned": 0, "deleted": 0, "dry_run": !cleanForce})
				return nil
			}
			fmt.Println(subtleStyle.Render("Nothing meets the deletion bar."))
			return nil
		}

		if !jsonMode {
			verb := "Would delete"
			if cleanForce {
				verb = "Deleting"
			}
			fmt.Printf("%s %d item(s), %s:\n", titleStyle.Render(verb), len(plan.Items), humanize.IBytes(plan.TotalBytes))
			for i := range plan.Items {
				item := &plan.Items[i]
				fmt.Printf("  %5.2f  %9s  %s\n", item.TotalScore, humanize.IBytes(item.SizeBytes), item.Path)
			}
		}

		report := executor.Execute(context.Background(), plan, nil)

		if jsonMode {
			writeJSONLine(map[string]any{
				"command":                 "clean",
				"dry_run":                 report.DryRun,
				"planned":                 len(plan.Items),
				"deleted":                 len(report.Deleted),
				"bytes_freed":             report.BytesFreed,
				"failures":                report.Failures,
				"circuit_breaker_tripped": report.CircuitBreakerTripped,
			})
			return nil
		}

		if report.DryRun {
			fmt.Println(subtleStyle.Render("\nDry run: nothing was deleted. Re-run with --force to execute."))
			return nil
		}
		fmt.Printf("\n%s %d item(s), %s freed\n", okStyle.Render("Deleted"), len(report.Deleted), humanize.IBytes(report.BytesFreed))
		for _, failure := range report.Failures {
			fmt.Printf("  %s %s: %s\n", dangerStyle.Render("failed"), failure.Path, failure.Error)
		}
		if report.CircuitBreakerTripped {
			fmt.Println(dangerStyle.Render("Circuit breaker tripped; remaining deletions aborted."))
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Actually delete (default is dry run)")
	cleanCmd.Flags().IntVar(&cleanMaxItems, "max-items", 0, "Cap the batch size (default from config)")
	cleanCmd.Flags().Float64Var(&cleanMinScore, "min-score", 0, "Override the score floor")
}
