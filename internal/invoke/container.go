package invoke

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/docker"
	"github.com/signalnine/effcurve/internal/grid"
)

// ContainerOptions configures a ContainerInvoker.
type ContainerOptions struct {
	Image    string
	Generate Step
	Analyze  Step
	Dir      string // bind-mounted at /workspace
	Env      []string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// ContainerInvoker runs both steps in throwaway containers of one image.
type ContainerInvoker struct {
	opts ContainerOptions
	log  *zap.Logger
	run  func(context.Context, *docker.RunOpts) (*docker.RunResult, error)
}

func NewContainerInvoker(opts ContainerOptions) *ContainerInvoker {
	if opts.Generate.Name == "" {
		opts.Generate.Name = "generate"
	}
	if opts.Analyze.Name == "" {
		opts.Analyze.Name = "analyze"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ContainerInvoker{opts: opts, log: log, run: docker.RunContainer}
}

func (c *ContainerInvoker) Run(ctx context.Context, spec grid.RunSpec) (*Output, error) {
	start := time.Now()

	gen, err := c.runStep(ctx, c.opts.Generate, spec)
	if err != nil {
		return nil, err
	}
	warnStep(c.log, c.opts.Generate.Name, spec, gen.ExitCode, gen.TimedOut, gen.Stderr)

	an, err := c.runStep(ctx, c.opts.Analyze, spec)
	if err != nil {
		return nil, err
	}
	warnStep(c.log, c.opts.Analyze.Name, spec, an.ExitCode, an.TimedOut, an.Stderr)

	return &Output{
		Report:           string(an.Stdout),
		GenerateExit:     gen.ExitCode,
		GenerateTimedOut: gen.TimedOut,
		AnalyzeExit:      an.ExitCode,
		AnalyzeTimedOut:  an.TimedOut,
		Duration:         time.Since(start),
	}, nil
}

func (c *ContainerInvoker) runStep(ctx context.Context, step Step, spec grid.RunSpec) (*docker.RunResult, error) {
	argv := step.Argv(spec)
	c.log.Debug("starting container step",
		zap.String("step", step.Name),
		zap.String("image", c.opts.Image),
		zap.Strings("argv", argv),
		zap.Int("run", spec.Index))

	res, err := c.run(ctx, &docker.RunOpts{
		Image:   c.opts.Image,
		Command: argv,
		WorkDir: c.opts.Dir,
		Env:     EnvMap(c.opts.Env),
		Timeout: c.opts.Timeout,
		UserID:  fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	})
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s step interrupted: %w", step.Name, ctx.Err())
	}
	if err != nil {
		return nil, &config.Error{Op: step.Name, Path: c.opts.Image, Err: err}
	}
	return res, nil
}
