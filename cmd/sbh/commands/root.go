// Package commands wires the CLI surface. Commands stay thin: argument
// parsing and rendering only; everything substantive lives in the engine.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/core"
	"github.com/DrSkyle/sbh/pkg/version"
)

var (
	cfgFile  string
	jsonMode bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "sbh",
	Short: "Disk-pressure guardian for agent workstations",
	Long: `sbh watches filesystem fullness, identifies abandoned build artifacts
with calibrated confidence, and reclaims space through layered defense:
ballast release, targeted deletion, emergency recovery.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Flags are parsed by now; logging level depends on --verbose.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

// Execute runs the CLI and maps errors onto the process exit-code contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		emitError(err)
		os.Exit(core.ExitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ~/.config/sbh/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "Emit machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(ballastCmd)
	rootCmd.AddCommand(protectCmd)
	rootCmd.AddCommand(unprotectCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

func configureLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig resolves the configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// emitError prints the error with its stable code and a suggested next step.
func emitError(err error) {
	var sbhErr *core.Error
	if jsonMode {
		payload := map[string]any{"error": err.Error(), "code": core.CodeOf(err)}
		if errors.As(err, &sbhErr) {
			payload["retryable"] = sbhErr.Retryable()
		}
		writeJSONLine(payload)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", dangerStyle.Render("error:"), err.Error())
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", subtleStyle.Render(hint))
	}
}

func hintFor(err error) string {
	var sbhErr *core.Error
	if !errors.As(err, &sbhErr) {
		return ""
	}
	switch sbhErr.Kind {
	case core.KindMissingConfig:
		return "pass --config with a valid path"
	case core.KindInvalidConfig, core.KindConfigParse:
		return "check the configuration file for the offending key"
	case core.KindPermissionDenied:
		return "re-run with sufficient privileges or adjust ownership"
	case core.KindUnsupportedPlatform:
		return "sbh currently supports Linux hosts only"
	default:
		if sbhErr.Retryable() {
			return "transient failure; retrying may succeed"
		}
		return ""
	}
}

func writeJSONLine(payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(body))
}
