package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonMode {
			writeJSONLine(map[string]any{
				"command": "version",
				"name":    version.AppName,
				"version": version.Current,
				"go":      runtime.Version(),
				"os":      runtime.GOOS,
				"arch":    runtime.GOARCH,
			})
			return
		}
		fmt.Printf("%s %s (%s %s/%s)\n", version.AppName, version.Current, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
