package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/effcurve/internal/config"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the sweep dimensions and every run in sweep order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := applyOverrides(cfg, flagDimensions); err != nil {
				return err
			}
			g, err := cfg.Grid()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Dimensions:")
			for _, d := range g {
				vals := make([]string, len(d.Values))
				for i, v := range d.Values {
					vals[i] = v.String()
				}
				fmt.Fprintf(out, "  - %s (%d): %s\n", d.Name, len(d.Values), strings.Join(vals, ", "))
			}
			fmt.Fprintf(out, "\nRuns (%d):\n", g.Size())
			for spec := range g.All() {
				fmt.Fprintf(out, "  [%d] %s\n", spec.Index, spec)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&flagDimensions, "dimension", nil, "replace a dimension's values, e.g. energy=0.1,0.5 (repeatable)")
	return cmd
}
