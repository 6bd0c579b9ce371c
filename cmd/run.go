package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/extract"
	"github.com/signalnine/effcurve/internal/grid"
	"github.com/signalnine/effcurve/internal/invoke"
	"github.com/signalnine/effcurve/internal/report"
	"github.com/signalnine/effcurve/internal/result"
	"github.com/signalnine/effcurve/internal/sweep"
)

var (
	flagDimensions []string
	flagTimeout    time.Duration
	flagNoReport   bool
	flagCleanup    bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sweep and append one row per run to the result log",
		RunE:  runSweep,
	}
	cmd.Flags().StringArrayVar(&flagDimensions, "dimension", nil, "replace a dimension's values, e.g. energy=0.1,0.5 (repeatable)")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "override tool.timeout for each step (0 disables)")
	cmd.Flags().BoolVar(&flagNoReport, "no-report", false, "skip printing the log after the sweep")
	cmd.Flags().BoolVar(&flagCleanup, "cleanup", false, "prune effcurve-labeled Docker containers after the sweep")
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg, flagDimensions); err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Tool.Timeout.Duration = flagTimeout
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	g, err := cfg.Grid()
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	inv, err := buildInvoker(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	sweeper := sweep.New(inv, extract.NewParser(rules...),
		sweep.WithLogger(logger),
		sweep.WithConsole(out),
		sweep.WithColumns(cfg.Sweep.Parameter, cfg.Sweep.RunSize))

	csvLog, err := result.OpenCSV(cfg.Log.Path)
	if err != nil {
		return err
	}
	defer csvLog.Close()
	sinks := []result.Sink{csvLog}

	if cfg.Log.Database != "" {
		db, err := result.OpenSQLite(ctx, cfg.Log.Database, sweeper.ID())
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	fmt.Fprintf(out, "Sweep %s: %d runs, result log %s\n", sweeper.ID(), g.Size(), cfg.Log.Path)

	sum, err := sweeper.Run(ctx, g, result.Multi(sinks...))
	printSummary(out, sum)
	if err != nil {
		return err
	}

	if flagCleanup && cfg.Tool.Runtime == config.RuntimeDocker {
		cleanupDocker(out)
	}

	if !flagNoReport {
		fmt.Fprintln(out, "\n--- Results ---")
		return report.Generate(cfg.Log.Path, "table", out)
	}
	return nil
}

func printSummary(w io.Writer, sum *sweep.Summary) {
	if sum == nil {
		return
	}
	fmt.Fprintf(w, "Completed %d/%d runs in %s (%d partial, %d empty)\n",
		sum.Completed, sum.Total, sum.Elapsed.Round(time.Second), sum.Partial, sum.Empty)
}

// applyOverrides replaces dimension values from --dimension flags and
// revalidates the config.
func applyOverrides(cfg *config.Config, overrides []string) error {
	if len(overrides) == 0 {
		return nil
	}
	for _, o := range overrides {
		name, vals, err := parseDimensionOverride(o)
		if err != nil {
			return err
		}
		if err := cfg.SetDimension(name, vals); err != nil {
			return fmt.Errorf("--dimension %s: %w", o, err)
		}
	}
	return cfg.Validate()
}

func parseDimensionOverride(s string) (string, []grid.Value, error) {
	name, list, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(list) == "" {
		return "", nil, fmt.Errorf("--dimension %q: want name=v1,v2,...", s)
	}
	var vals []grid.Value
	for _, part := range strings.Split(list, ",") {
		v, err := grid.ParseValue(part)
		if err != nil {
			return "", nil, fmt.Errorf("--dimension %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

func buildInvoker(cfg *config.Config, logger *zap.Logger) (invoke.Invoker, error) {
	var env []string
	if cfg.Tool.EnvFile != "" {
		loaded, err := invoke.LoadEnvFile(cfg.Tool.EnvFile)
		if err != nil {
			return nil, &config.Error{Op: "load env file", Path: cfg.Tool.EnvFile, Err: err}
		}
		env = loaded
	}
	gen := toolStep("generate", cfg.Tool.Generate, cfg.Sweep)
	an := toolStep("analyze", cfg.Tool.Analyze, cfg.Sweep)

	if cfg.Tool.Runtime == config.RuntimeDocker {
		dir, err := filepath.Abs(cfg.Tool.Workdir)
		if err != nil {
			return nil, fmt.Errorf("resolving workdir: %w", err)
		}
		return invoke.NewContainerInvoker(invoke.ContainerOptions{
			Image:    cfg.Tool.Image,
			Generate: gen,
			Analyze:  an,
			Dir:      dir,
			Env:      env,
			Timeout:  cfg.Tool.Timeout.Duration,
			Logger:   logger,
		}), nil
	}
	return invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: gen,
		Analyze:  an,
		Dir:      cfg.Tool.Workdir,
		Env:      env,
		Timeout:  cfg.Tool.Timeout.Duration,
		Logger:   logger,
	}), nil
}

func toolStep(name string, c config.Command, s config.Sweep) invoke.Step {
	args := c.Args
	if len(args) == 0 {
		args = invoke.DefaultArgs(c.Script, s.Parameter, s.RunSize)
	}
	return invoke.Step{Name: name, Command: c.Command, Args: args}
}

func cleanupDocker(w io.Writer) {
	// best effort; RunContainer already removes what it creates
	fmt.Fprintln(w, "Cleaning up Docker artifacts...")
	exec.Command("docker", "container", "prune", "-f", "--filter", "label=effcurve=true").Run()
}
