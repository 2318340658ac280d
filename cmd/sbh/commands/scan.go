package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/engine/scanner"
	"github.com/DrSkyle/sbh/pkg/platform"
)

var scanTop int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the configured roots and rank deletion candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		protection := scanner.NewProtectionRegistry(cfg.Scanner.ProtectedPaths)
		for _, root := range cfg.Scanner.RootPaths {
			if err := protection.DiscoverMarkers(root, cfg.Scanner.MaxDepth); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.Render("marker discovery failed for "+root))
			}
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
		// A manual scan reports what the daemon would see under moderate
		// pressure, so scores are comparable across runs.
		scored := engine.ScoreBatch(inputs, 0.5)

		if jsonMode {
			payload := map[string]any{
				"command":         "scan",
				"candidates":      len(scored),
				"incomplete":      result.Incomplete,
				"protected_skips": len(result.ProtectedSkips),
				"top":             topCandidates(scored, scanTop),
			}
			writeJSONLine(payload)
			return nil
		}

		fmt.Printf("%s %d candidates (%d protected subtrees skipped)\n",
			titleStyle.Render("Scan complete:"), len(scored), len(result.ProtectedSkips))
		if result.Incomplete {
			fmt.Println(warnStyle.Render("  partial result: per-root time budget exceeded"))
		}

		shown := 0
		for i := range scored {
			if shown >= scanTop {
				break
			}
			s := &scored[i]
			if s.Vetoed {
				continue
			}
			shown++
			fmt.Printf("  %5.2f  %-10s  %9s  %5s  %s\n",
				s.TotalScore,
				s.Classification.Category,
				humanize.IBytes(s.SizeBytes),
				humanize.Time(now.Add(-s.Age)),
				s.Path,
			)
		}
		if shown == 0 {
			fmt.Println(subtleStyle.Render("  nothing scoreable found"))
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanTop, "top", 20, "Number of candidates to display")
}

func topCandidates(scored []scanner.CandidacyScore, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := range scored {
		if len(out) >= n {
			break
		}
		s := &scored[i]
		if s.Vetoed {
			continue
		}
		out = append(out, map[string]any{
			"path":       s.Path,
			"score":      s.TotalScore,
			"size_bytes": s.SizeBytes,
			"category":   s.Classification.Category,
			"action":     s.Decision.Action,
			"posterior":  s.Decision.PosteriorAbandoned,
		})
	}
	return out
}

// liveMountPaths feeds the scorer's mount-boundary veto; a failed mount
// enumeration degrades to the built-in roots rather than blocking the scan.
func liveMountPaths() []string {
	p, err := platform.New()
	if err != nil {
		return nil
	}
	mounts, err := p.MountPoints()
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(mounts))
	for _, m := range mounts {
		paths = append(paths, m.Path)
	}
	return paths
}

func pathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
