// Package config defines the daemon configuration, loaded from a TOML file
// with SBH_* environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/DrSkyle/sbh/pkg/core"
)

// PressureConfig holds the controller thresholds.
type PressureConfig struct {
	GreenMinFreePct  float64 `mapstructure:"green_min_free_pct"`
	YellowMinFreePct float64 `mapstructure:"yellow_min_free_pct"`
	OrangeMinFreePct float64 `mapstructure:"orange_min_free_pct"`
	RedMinFreePct    float64 `mapstructure:"red_min_free_pct"`
	TargetFreePct    float64 `mapstructure:"target_free_pct"`
	HysteresisPct    float64 `mapstructure:"hysteresis_pct"`
	PollIntervalMs   int     `mapstructure:"poll_interval_ms"`

	// PID gains. Scale bounds the raw controller output before
	// normalization into [0,1].
	Kp    float64 `mapstructure:"kp"`
	Ki    float64 `mapstructure:"ki"`
	Kd    float64 `mapstructure:"kd"`
	Scale float64 `mapstructure:"scale"`
	// MinDtMs suppresses the derivative term for samples closer together
	// than this.
	MinDtMs int `mapstructure:"min_dt_ms"`
}

// ScannerConfig controls the directory walker.
type ScannerConfig struct {
	RootPaths         []string `mapstructure:"root_paths"`
	MaxDepth          int      `mapstructure:"max_depth"`
	FollowSymlinks    bool     `mapstructure:"follow_symlinks"`
	CrossDevices      bool     `mapstructure:"cross_devices"`
	Parallelism       int      `mapstructure:"parallelism"`
	ExcludedPaths     []string `mapstructure:"excluded_paths"`
	ProtectedPaths    []string `mapstructure:"protected_paths"`
	MinFileAgeMinutes int      `mapstructure:"min_file_age_minutes"`
	MaxDeleteBatch    int      `mapstructure:"max_delete_batch"`
	// RootBudgetMs bounds the wall clock spent per root; exceeding it
	// yields a partial result.
	RootBudgetMs int  `mapstructure:"root_budget_ms"`
	DryRun       bool `mapstructure:"dry_run"`
}

// ScoringConfig holds factor weights and decision thresholds.
type ScoringConfig struct {
	WeightLocation  float64 `mapstructure:"weight_location"`
	WeightName      float64 `mapstructure:"weight_name"`
	WeightAge       float64 `mapstructure:"weight_age"`
	WeightSize      float64 `mapstructure:"weight_size"`
	WeightStructure float64 `mapstructure:"weight_structure"`

	// PressureGain is k in pressure_multiplier = 1 + k*urgency.
	PressureGain float64 `mapstructure:"pressure_gain"`

	MinScore float64 `mapstructure:"min_score"`
	// ConfidenceFloor is the hard floor below which young candidates are
	// vetoed outright.
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	// AgePlateauHours saturates the age factor.
	AgePlateauHours float64 `mapstructure:"age_plateau_hours"`

	FalseNegativeLoss float64 `mapstructure:"false_negative_loss"`
	FalsePositiveLoss float64 `mapstructure:"false_positive_loss"`
}

// BallastConfig controls the reserved-slack file pool.
type BallastConfig struct {
	FileCount                int    `mapstructure:"file_count"`
	FileSizeBytes            uint64 `mapstructure:"file_size_bytes"`
	ReplenishCooldownMinutes int    `mapstructure:"replenish_cooldown_minutes"`
	AutoProvision            bool   `mapstructure:"auto_provision"`
}

// PolicyConfig controls the active-mode state machine.
type PolicyConfig struct {
	InitialMode              string `mapstructure:"initial_mode"`
	MaxCanaryDeletesPerHour  int    `mapstructure:"max_canary_deletes_per_hour"`
	RecoveryCleanWindows     int    `mapstructure:"recovery_clean_windows"`
	CalibrationBreachWindows int    `mapstructure:"calibration_breach_windows"`
	// RulesFile points at an optional CEL rules document.
	RulesFile string `mapstructure:"rules_file"`
}

// GuardrailConfig controls the adaptive calibration guard.
type GuardrailConfig struct {
	MinObservations      int     `mapstructure:"min_observations"`
	RateErrorTolerance   float64 `mapstructure:"rate_error_tolerance"`
	ConservativeMinimum  float64 `mapstructure:"conservative_minimum"`
	EProcessAlarm        float64 `mapstructure:"e_process_alarm"`
	RecoveryCleanWindows int     `mapstructure:"recovery_clean_windows"`
}

// PathsConfig locates the daemon's working files.
type PathsConfig struct {
	ConfigFile string `mapstructure:"config_file"`
	StateFile  string `mapstructure:"state_file"`
	BallastDir string `mapstructure:"ballast_dir"`
	SqliteDB   string `mapstructure:"sqlite_db"`
	JsonlLog   string `mapstructure:"jsonl_log"`
}

// NotifyConfig controls outbound notifications.
type NotifyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// TelemetryConfig controls tracing and metrics.
type TelemetryConfig struct {
	OtelEndpoint string `mapstructure:"otel_endpoint"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// Config is the root configuration document.
type Config struct {
	Pressure  PressureConfig  `mapstructure:"pressure"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Ballast   BallastConfig   `mapstructure:"ballast"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Guardrail GuardrailConfig `mapstructure:"guardrail"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Load reads the configuration from path, or from the default location when
// path is empty. A missing explicit file is an error; a missing default file
// yields defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix("SBH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) || isConfigNotFound(err) {
			if explicit {
				return nil, core.MissingConfig(path)
			}
			// Default location absent: run on defaults.
		} else {
			return nil, core.ConfigParse("toml", err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.ConfigParse("unmarshal", err.Error())
	}
	if cfg.Paths.ConfigFile == "" {
		cfg.Paths.ConfigFile = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isConfigNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		return true
	}
	_, ok = err.(*os.PathError)
	return ok
}

// Validate checks cross-field invariants that viper cannot express.
func (c *Config) Validate() error {
	p := c.Pressure
	if !(p.GreenMinFreePct > p.YellowMinFreePct &&
		p.YellowMinFreePct > p.OrangeMinFreePct &&
		p.OrangeMinFreePct > p.RedMinFreePct &&
		p.RedMinFreePct > 0) {
		return core.InvalidConfig("pressure thresholds must be strictly descending and positive")
	}
	if p.HysteresisPct < 0 {
		return core.InvalidConfig("hysteresis_pct must be non-negative")
	}
	if p.Scale <= 0 || p.Ki < 0 || p.Kp < 0 || p.Kd < 0 {
		return core.InvalidConfig("pid gains must be non-negative with positive scale")
	}

	s := c.Scoring
	sum := s.WeightLocation + s.WeightName + s.WeightAge + s.WeightSize + s.WeightStructure
	if sum < 0.999 || sum > 1.001 {
		return core.InvalidConfig("scoring factor weights must sum to 1")
	}
	if s.PressureGain < 0 || s.PressureGain > 2 {
		// 1 + k keeps total_score within [0,3] for factor sums in [0,1].
		return core.InvalidConfig("pressure_gain must be in [0, 2]")
	}
	if s.FalseNegativeLoss <= 0 || s.FalsePositiveLoss <= 0 {
		return core.InvalidConfig("loss weights must be positive")
	}

	if c.Scanner.MaxDepth <= 0 {
		return core.InvalidConfig("scanner max_depth must be positive")
	}
	if c.Scanner.Parallelism <= 0 {
		return core.InvalidConfig("scanner parallelism must be positive")
	}
	if c.Ballast.FileCount < 0 || (c.Ballast.FileCount > 0 && c.Ballast.FileSizeBytes == 0) {
		return core.InvalidConfig("ballast file_size_bytes required when file_count > 0")
	}
	switch c.Policy.InitialMode {
	case "observe", "canary", "enforce":
	default:
		return core.InvalidConfig("policy initial_mode must be observe, canary or enforce")
	}
	return nil
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/sbh/config.toml"
	}
	return filepath.Join(home, ".config", "sbh", "config.toml")
}
