package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gmsas95/medremind/internal/app"
	"github.com/spf13/cobra"
)

func runCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reminder daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := rt.configPath
			if configPath == "" {
				configPath = filepath.Join(rt.cfg.Storage.DataDir, "medremind.yaml")
			}
			var opts []app.Option
			if _, err := os.Stat(configPath); err == nil {
				opts = append(opts, app.WithConfigPath(configPath))
			}

			a, err := rt.openApp(cmd, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
}

func (rt *runtime) now() time.Time {
	loc, err := rt.cfg.Scheduler.Location()
	if err != nil {
		return rt.clock.Now()
	}
	return rt.clock.Now().In(loc)
}
