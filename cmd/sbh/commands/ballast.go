package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/engine/ballast"
)

var ballastCmd = &cobra.Command{
	Use:   "ballast",
	Short: "Manage the reserved-slack file pool",
}

var ballastProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the configured ballast files",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openBallast()
		if err != nil {
			return err
		}
		result, err := m.Provision(nil)
		if err != nil {
			if ballast.IsNoSpace(err) {
				// Non-fatal by contract: the pool is best-effort.
				fmt.Println(warnStyle.Render("filesystem full; ballast pool left partial"))
				return nil
			}
			return err
		}
		if jsonMode {
			writeJSONLine(map[string]any{
				"command":        "ballast_provision",
				"files_created":  result.FilesCreated,
				"bytes_reserved": result.BytesReserved,
				"available":      m.AvailableCount(),
			})
			return nil
		}
		fmt.Printf("%s %d file(s), %s reserved (%d available)\n",
			okStyle.Render("Provisioned"), result.FilesCreated, humanize.IBytes(result.BytesReserved), m.AvailableCount())
		return nil
	},
}

var ballastReleaseN int

var ballastReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release ballast files, returning their space to the filesystem",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openBallast()
		if err != nil {
			return err
		}
		result, err := m.Release(ballastReleaseN)
		if err != nil {
			return err
		}
		if jsonMode {
			writeJSONLine(map[string]any{
				"command":        "ballast_release",
				"files_released": result.FilesReleased,
				"bytes_freed":    result.BytesFreed,
				"available":      m.AvailableCount(),
			})
			return nil
		}
		fmt.Printf("%s %d file(s), %s freed (%d remaining)\n",
			okStyle.Render("Released"), result.FilesReleased, humanize.IBytes(result.BytesFreed), m.AvailableCount())
		return nil
	},
}

var ballastVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify ballast pool integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openBallast()
		if err != nil {
			return err
		}
		result := m.Verify()
		if jsonMode {
			writeJSONLine(map[string]any{
				"command":         "ballast_verify",
				"files_ok":        result.FilesOK,
				"files_corrupted": result.FilesCorrupted,
				"corrupted":       result.Corrupted,
			})
			if result.FilesCorrupted > 0 {
				return fmt.Errorf("%d corrupted ballast file(s)", result.FilesCorrupted)
			}
			return nil
		}
		if result.FilesCorrupted == 0 {
			fmt.Printf("%s %d file(s) intact\n", okStyle.Render("OK:"), result.FilesOK)
			return nil
		}
		fmt.Printf("%s %d intact, %d corrupted:\n", dangerStyle.Render("CORRUPTION:"), result.FilesOK, result.FilesCorrupted)
		for _, path := range result.Corrupted {
			fmt.Printf("  %s\n", path)
		}
		return fmt.Errorf("%d corrupted ballast file(s)", result.FilesCorrupted)
	},
}

func openBallast() (*ballast.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ballast.NewManager(cfg.Paths.BallastDir, cfg.Ballast)
}

func init() {
	ballastReleaseCmd.Flags().IntVar(&ballastReleaseN, "count", 1, "Number of files to release")
	ballastCmd.AddCommand(ballastProvisionCmd)
	ballastCmd.AddCommand(ballastReleaseCmd)
	ballastCmd.AddCommand(ballastVerifyCmd)
}
