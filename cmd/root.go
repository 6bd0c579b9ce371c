package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/logging"
)

var (
	cfgFile      string
	flagLogLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "effcurve",
		Short:        "Sweep a simulation over a parameter grid and log its efficiency results",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "effcurve.yaml", "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// newLogger builds the stderr logger from the config and --log-level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	return logging.New(level, cfg.Logging.Format, os.Stderr)
}
