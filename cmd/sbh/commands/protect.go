package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/engine/scanner"
)

var (
	protectReason string
	protectOwner  string
)

var protectCmd = &cobra.Command{
	Use:   "protect <dir>",
	Short: "Mark a directory (and its subtree) immune from deletion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := scanner.NewProtectionRegistry(nil)
		payload := scanner.MarkerPayload{Reason: protectReason, Owner: protectOwner}
		if err := registry.AddMarker(args[0], payload); err != nil {
			return err
		}
		if jsonMode {
			writeJSONLine(map[string]any{"command": "protect", "path": args[0], "marker": scanner.MarkerFileName})
			return nil
		}
		fmt.Printf("%s %s (marker: %s)\n", okStyle.Render("Protected"), args[0], scanner.MarkerFileName)
		return nil
	},
}

var unprotectCmd = &cobra.Command{
	Use:   "unprotect <dir>",
	Short: "Remove a protection marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := scanner.NewProtectionRegistry(nil)
		if err := registry.RemoveMarker(args[0]); err != nil {
			return err
		}
		if jsonMode {
			writeJSONLine(map[string]any{"command": "unprotect", "path": args[0]})
			return nil
		}
		fmt.Printf("%s %s\n", okStyle.Render("Unprotected"), args[0])
		return nil
	},
}

func init() {
	protectCmd.Flags().StringVar(&protectReason, "reason", "", "Why this subtree is protected")
	protectCmd.Flags().StringVar(&protectOwner, "owner", "", "Who owns this protection")
}
