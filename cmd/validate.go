package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/docker"
	"github.com/signalnine/effcurve/internal/invoke"
	"github.com/signalnine/effcurve/internal/result"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config, the tool and the result log before a sweep",
		Long:  "Load the config, resolve both tool commands (or create a container from the image for the docker runtime), read the env file and check that the result log could be opened. Nothing is created.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			g, err := cfg.Grid()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "config %s: %d dimensions, %d runs\n", cfgFile, len(g), g.Size())

			var errs []error
			check := func(what string, err error) {
				printCheck(out, what, err)
				if err != nil {
					errs = append(errs, err)
				}
			}

			switch cfg.Tool.Runtime {
			case config.RuntimeDocker:
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				err := docker.CheckImage(ctx, cfg.Tool.Image)
				if err != nil {
					err = &config.Error{Op: "docker", Path: cfg.Tool.Image, Err: err}
				}
				check("image "+cfg.Tool.Image, err)
			default:
				for _, c := range []struct {
					step string
					cmd  config.Command
				}{{"generate", cfg.Tool.Generate}, {"analyze", cfg.Tool.Analyze}} {
					path, err := resolveTool(cfg.Tool.Workdir, c.cmd.Command)
					if err != nil {
						err = &config.Error{Op: c.step, Path: c.cmd.Command, Err: err}
					}
					check(c.step+" tool "+path, err)
				}
			}

			if cfg.Tool.EnvFile != "" {
				_, err := invoke.LoadEnvFile(cfg.Tool.EnvFile)
				if err != nil {
					err = &config.Error{Op: "load env file", Path: cfg.Tool.EnvFile, Err: err}
				}
				check("env file "+cfg.Tool.EnvFile, err)
			}

			check("result log "+cfg.Log.Path, result.CheckLog(cfg.Log.Path))
			if cfg.Log.Database != "" {
				dir := filepath.Dir(cfg.Log.Database)
				err := result.CheckDir(dir)
				if err != nil {
					err = &config.Error{Op: "open database", Path: dir, Err: err}
				}
				check("database dir "+dir, err)
			}
			return errors.Join(errs...)
		},
	}
}

func printCheck(w io.Writer, what string, err error) {
	if err != nil {
		fmt.Fprintf(w, "  FAIL %s: %v\n", what, err)
		return
	}
	fmt.Fprintf(w, "  ok   %s\n", what)
}

// resolveTool finds command the way the invoker will run it: names with a
// path separator relative to workdir, bare names on PATH.
func resolveTool(workdir, command string) (string, error) {
	if !strings.Contains(command, string(filepath.Separator)) {
		return exec.LookPath(command)
	}
	path := command
	if !filepath.IsAbs(path) {
		path = filepath.Join(workdir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return path, err
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return path, fmt.Errorf("%s is not executable", path)
	}
	return path, nil
}
