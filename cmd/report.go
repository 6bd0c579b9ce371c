package cmd

import (
	"github.com/spf13/cobra"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [log-path]",
		Short: "Print the result log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				path = cfg.Log.Path
			}
			return report.Generate(path, flagFormat, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json, csv)")
	return cmd
}
