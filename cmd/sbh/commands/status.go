package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/engine/daemon"
	"github.com/DrSkyle/sbh/pkg/engine/history"
	"github.com/DrSkyle/sbh/pkg/platform"
	"github.com/DrSkyle/sbh/pkg/version"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pressure, rates, ballast and recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := platform.New()
		if err != nil {
			return err
		}

		mounts, err := p.MountPoints()
		if err != nil {
			return err
		}

		// Daemon state and database are both optional; status degrades.
		state, stateErr := daemon.ReadStateFile(cfg.Paths.StateFile)
		daemonRunning := stateErr == nil

		var stats *history.WindowStats
		if _, err := os.Stat(cfg.Paths.SqliteDB); err == nil {
			if db, err := history.OpenSqlite(cfg.Paths.SqliteDB); err == nil {
				if s, err := db.WindowStats(time.Hour); err == nil {
					stats = &s
				}
				db.Close()
			}
		}

		if jsonMode {
			return emitStatusJSON(cfg, p, mounts, state, daemonRunning, stats)
		}

		fmt.Printf("%s v%s\n", titleStyle.Render("Storage Ballast Helper"), version.Current)
		fmt.Printf("  Config: %s\n", cfg.Paths.ConfigFile)
		if daemonRunning {
			fmt.Printf("  Daemon: %s\n", okStyle.Render("running"))
		} else {
			fmt.Printf("  Daemon: %s\n", subtleStyle.Render("not running (degraded mode)"))
		}

		fmt.Printf("\n%s\n", titleStyle.Render("Pressure Status:"))
		fmt.Printf("  %-24s  %10s  %10s  %7s  %-10s\n", "Mount Point", "Total", "Free", "Free %", "Level")
		fmt.Printf("  %s\n", strings.Repeat("-", 70))

		for _, mount := range mounts {
			stats, err := p.FsStats(mount.Path)
			if err != nil {
				continue
			}
			level := levelFor(stats.FreePct(), cfg)
			note := ""
			if mount.IsRAMBacked {
				note = " (tmpfs)"
			}
			fmt.Printf("  %-24s  %10s  %10s  %6.1f%%  %s\n",
				mount.Path+note,
				humanize.IBytes(stats.TotalBytes),
				humanize.IBytes(stats.AvailableBytes),
				stats.FreePct(),
				levelStyle(level).Render(strings.ToUpper(level)),
			)
		}

		if state != nil && len(state.Rates) > 0 {
			fmt.Printf("\n%s\n", titleStyle.Render("Rate Estimates:"))
			for mount, rate := range state.Rates {
				trend := "stable"
				sign := ""
				if rate.BytesPerSec > 0 {
					trend = "filling"
					sign = "+"
				} else if rate.BytesPerSec < 0 {
					trend = "recovering"
				}
				bps := rate.BytesPerSec
				if bps < 0 {
					bps = -bps
				}
				fmt.Printf("  %-24s  %s%s/s (%s)\n", mount, sign, humanize.IBytes(uint64(bps)), trend)
			}
		}

		fmt.Printf("\n%s\n", titleStyle.Render("Ballast:"))
		fmt.Printf("  Configured: %d files x %s\n", cfg.Ballast.FileCount, humanize.IBytes(cfg.Ballast.FileSizeBytes))
		if state != nil {
			fmt.Printf("  Available:  %d/%d\n", state.Ballast.Available, state.Ballast.Total)
		}
		fmt.Printf("  Total pool: %s\n", humanize.IBytes(uint64(cfg.Ballast.FileCount)*cfg.Ballast.FileSizeBytes))

		if stats != nil {
			fmt.Printf("\n%s\n", titleStyle.Render("Recent Activity (last hour):"))
			fmt.Printf("  Deletions: %d items, %s freed\n", stats.Deletions.Count, humanize.IBytes(stats.Deletions.TotalBytesFreed))
			if stats.Deletions.MostCommonCategory != "" {
				fmt.Printf("  Most common: %s\n", stats.Deletions.MostCommonCategory)
			}
			if stats.Deletions.Failures > 0 {
				fmt.Printf("  Failures: %s\n", warnStyle.Render(fmt.Sprintf("%d", stats.Deletions.Failures)))
			}
		} else {
			fmt.Printf("\n%s\n", subtleStyle.Render("Recent Activity: no database available"))
		}
		return nil
	},
}

func emitStatusJSON(cfg *config.Config, p platform.Platform, mounts []platform.MountPoint, state *daemon.StateFile, daemonRunning bool, stats *history.WindowStats) error {
	mountsJSON := make([]map[string]any, 0, len(mounts))
	overall := "green"
	for _, mount := range mounts {
		s, err := p.FsStats(mount.Path)
		if err != nil {
			continue
		}
		level := levelFor(s.FreePct(), cfg)
		if levelSeverity(level) > levelSeverity(overall) {
			overall = level
		}
		mountsJSON = append(mountsJSON, map[string]any{
			"path":     mount.Path,
			"total":    s.TotalBytes,
			"free":     s.AvailableBytes,
			"free_pct": s.FreePct(),
			"level":    level,
			"fs_type":  s.FsType,
		})
	}

	payload := map[string]any{
		"command":        "status",
		"version":        version.Current,
		"daemon_running": daemonRunning,
		"config_path":    cfg.Paths.ConfigFile,
		"pressure": map[string]any{
			"mounts":  mountsJSON,
			"overall": overall,
		},
		"ballast": map[string]any{
			"file_count":       cfg.Ballast.FileCount,
			"file_size_bytes":  cfg.Ballast.FileSizeBytes,
			"total_pool_bytes": uint64(cfg.Ballast.FileCount) * cfg.Ballast.FileSizeBytes,
		},
	}
	if state != nil {
		payload["rates"] = state.Rates
	}
	if stats != nil {
		payload["recent_hour"] = map[string]any{
			"deletions":            stats.Deletions.Count,
			"bytes_freed":          stats.Deletions.TotalBytesFreed,
			"failures":             stats.Deletions.Failures,
			"most_common_category": stats.Deletions.MostCommonCategory,
		}
	}
	writeJSONLine(payload)
	return nil
}

// levelFor maps a free percentage onto the configured bands, hysteresis-free:
// the status view reports instantaneous truth.
func levelFor(freePct float64, cfg *config.Config) string {
	switch {
	case freePct >= cfg.Pressure.GreenMinFreePct:
		return "green"
	case freePct >= cfg.Pressure.YellowMinFreePct:
		return "yellow"
	case freePct >= cfg.Pressure.OrangeMinFreePct:
		return "orange"
	case freePct >= cfg.Pressure.RedMinFreePct:
		return "red"
	default:
		return "critical"
	}
}

func levelSeverity(level string) int {
	switch level {
	case "yellow":
		return 1
	case "orange":
		return 2
	case "red":
		return 3
	case "critical":
		return 4
	default:
		return 0
	}
}
