package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/sbh/pkg/engine/daemon"
	"github.com/DrSkyle/sbh/pkg/platform"
	"github.com/DrSkyle/sbh/pkg/telemetry"
	"github.com/DrSkyle/sbh/pkg/version"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the guardian loop in the foreground",
	Long: `Run the monitoring/cleanup loop until SIGINT or SIGTERM. The current
syscall completes before shutdown; a deletion is never interrupted mid-unlink.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := platform.New()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if shutdown, err := telemetry.Init(ctx, "sbh", version.Current, cfg.Telemetry.OtelEndpoint); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}

		d, err := daemon.New(cfg, p)
		if err != nil {
			return err
		}
		if !jsonMode {
			fmt.Printf("%s v%s watching %v\n", titleStyle.Render("sbh daemon"), version.Current, cfg.Scanner.RootPaths)
		}
		return d.Run(ctx)
	},
}
