// Package cli implements the medremind command line
package cli

import (
	"github.com/gmsas95/medremind/internal/app"
	"github.com/gmsas95/medremind/internal/config"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// runtime is the state shared by every subcommand of one invocation
type runtime struct {
	version    string
	configPath string
	dataDir    string
	jsonOut    bool

	clock  clockwork.Clock
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the medremind command tree
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, clockwork.NewRealClock())
}

func newRootCommand(version string, clock clockwork.Clock) *cobra.Command {
	rt := &runtime{version: version, clock: clock}

	root := &cobra.Command{
		Use:           "medremind",
		Short:         "Medication reminders with adherence tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return rt.init(cmd.Name() == "run")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&rt.dataDir, "data", "", "path to data directory")
	root.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "output JSON")

	root.AddCommand(
		runCmd(rt),
		reminderCmd(rt),
		medicineCmd(rt),
		adherenceCmd(rt),
		historyCmd(rt),
		configCmd(rt),
		telegramCmd(rt),
		versionCmd(rt),
	)
	return root
}

func (rt *runtime) init(daemon bool) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}
	cfg, err := config.Load(rt.configPath, rt.dataDir)
	if err != nil {
		return err
	}
	rt.cfg = cfg

	logger, err := newLogger(cfg.Log, daemon)
	if err != nil {
		return err
	}
	rt.logger = logger
	return nil
}

// newLogger builds a development or production zap logger. One-shot
// commands only log warnings so their output stays readable.
func newLogger(c config.LogConfig, daemon bool) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if !daemon && level.Level() < zapcore.WarnLevel {
		level.SetLevel(zapcore.WarnLevel)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// openApp builds the components without starting them
func (rt *runtime) openApp(cmd *cobra.Command, opts ...app.Option) (*app.App, error) {
	opts = append([]app.Option{
		app.WithClock(rt.clock),
		app.WithVersion(rt.version),
		app.WithConsoleIO(cmd.InOrStdin(), cmd.OutOrStdout()),
	}, opts...)
	return app.New(rt.cfg, rt.logger, opts...)
}
