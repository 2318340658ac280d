package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Defaults are tuned for a multi-tenant developer workstation: conservative
// deletion thresholds, a modest ballast pool, observe-first policy.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pressure.green_min_free_pct", 20.0)
	v.SetDefault("pressure.yellow_min_free_pct", 14.0)
	v.SetDefault("pressure.orange_min_free_pct", 10.0)
	v.SetDefault("pressure.red_min_free_pct", 6.0)
	v.SetDefault("pressure.target_free_pct", 18.0)
	v.SetDefault("pressure.hysteresis_pct", 1.0)
	v.SetDefault("pressure.poll_interval_ms", 1000)
	v.SetDefault("pressure.kp", 0.25)
	v.SetDefault("pressure.ki", 0.08)
	v.SetDefault("pressure.kd", 0.02)
	v.SetDefault("pressure.scale", 100.0)
	v.SetDefault("pressure.min_dt_ms", 1000)

	v.SetDefault("scanner.root_paths", defaultRoots())
	v.SetDefault("scanner.max_depth", 6)
	v.SetDefault("scanner.follow_symlinks", false)
	v.SetDefault("scanner.cross_devices", false)
	v.SetDefault("scanner.parallelism", 4)
	v.SetDefault("scanner.excluded_paths", []string{})
	v.SetDefault("scanner.protected_paths", []string{})
	v.SetDefault("scanner.min_file_age_minutes", 30)
	v.SetDefault("scanner.max_delete_batch", 50)
	v.SetDefault("scanner.root_budget_ms", 30000)
	v.SetDefault("scanner.dry_run", false)

	v.SetDefault("scoring.weight_location", 0.20)
	v.SetDefault("scoring.weight_name", 0.25)
	v.SetDefault("scoring.weight_age", 0.20)
	v.SetDefault("scoring.weight_size", 0.15)
	v.SetDefault("scoring.weight_structure", 0.20)
	v.SetDefault("scoring.pressure_gain", 1.0)
	v.SetDefault("scoring.min_score", 0.8)
	v.SetDefault("scoring.confidence_floor", 0.3)
	v.SetDefault("scoring.age_plateau_hours", 168.0)
	v.SetDefault("scoring.false_negative_loss", 1.0)
	v.SetDefault("scoring.false_positive_loss", 10.0)

	v.SetDefault("ballast.file_count", 4)
	v.SetDefault("ballast.file_size_bytes", uint64(1<<30))
	v.SetDefault("ballast.replenish_cooldown_minutes", 30)
	v.SetDefault("ballast.auto_provision", true)

	v.SetDefault("policy.initial_mode", "observe")
	v.SetDefault("policy.max_canary_deletes_per_hour", 5)
	v.SetDefault("policy.recovery_clean_windows", 3)
	v.SetDefault("policy.calibration_breach_windows", 3)
	v.SetDefault("policy.rules_file", "")

	v.SetDefault("guardrail.min_observations", 20)
	v.SetDefault("guardrail.rate_error_tolerance", 0.25)
	v.SetDefault("guardrail.conservative_minimum", 0.7)
	v.SetDefault("guardrail.e_process_alarm", 20.0)
	v.SetDefault("guardrail.recovery_clean_windows", 3)

	stateDir := defaultStateDir()
	v.SetDefault("paths.config_file", "")
	v.SetDefault("paths.state_file", filepath.Join(stateDir, "state.json"))
	v.SetDefault("paths.ballast_dir", filepath.Join(stateDir, "ballast"))
	v.SetDefault("paths.sqlite_db", filepath.Join(stateDir, "events.db"))
	v.SetDefault("paths.jsonl_log", filepath.Join(stateDir, "events.jsonl"))

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.channel", "")

	v.SetDefault("telemetry.otel_endpoint", "")
	v.SetDefault("telemetry.metrics_addr", "")
}

func defaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return []string{"/tmp"}
	}
	return []string{home, "/tmp"}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/sbh"
	}
	return filepath.Join(home, ".local", "share", "sbh")
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)
	return &cfg
}
