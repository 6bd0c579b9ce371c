package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/grid"
)

// ExecOptions configures an ExecInvoker.
type ExecOptions struct {
	Generate Step
	Analyze  Step
	Dir      string
	Env      []string // merged over the inherited environment
	Timeout  time.Duration
	Logger   *zap.Logger
}

// ExecInvoker runs both steps as host processes.
type ExecInvoker struct {
	opts ExecOptions
	log  *zap.Logger
}

func NewExecInvoker(opts ExecOptions) *ExecInvoker {
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
	return &ExecInvoker{opts: opts, log: log}
}

type stepResult struct {
	stdout   []byte
	stderr   []byte
	exitCode int
	timedOut bool
}

func (e *ExecInvoker) Run(ctx context.Context, spec grid.RunSpec) (*Output, error) {
	start := time.Now()

	gen, err := e.runStep(ctx, e.opts.Generate, spec)
	if err != nil {
		return nil, err
	}
	warnStep(e.log, e.opts.Generate.Name, spec, gen.exitCode, gen.timedOut, gen.stderr)

	an, err := e.runStep(ctx, e.opts.Analyze, spec)
	if err != nil {
		return nil, err
	}
	warnStep(e.log, e.opts.Analyze.Name, spec, an.exitCode, an.timedOut, an.stderr)

	return &Output{
		Report:           string(an.stdout),
		GenerateExit:     gen.exitCode,
		GenerateTimedOut: gen.timedOut,
		AnalyzeExit:      an.exitCode,
		AnalyzeTimedOut:  an.timedOut,
		Duration:         time.Since(start),
	}, nil
}

func (e *ExecInvoker) runStep(ctx context.Context, step Step, spec grid.RunSpec) (*stepResult, error) {
	stepCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	argv := step.Argv(spec)
	cmd := exec.CommandContext(stepCtx, argv[0], argv[1:]...)
	cmd.Dir = e.opts.Dir
	if len(e.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), e.opts.Env...)
	}
	// a grandchild holding the pipes open must not block Wait forever
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("starting step",
		zap.String("step", step.Name),
		zap.Strings("argv", argv),
		zap.Int("run", spec.Index))

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s step interrupted: %w", step.Name, ctx.Err())
		}
		return nil, &config.Error{Op: step.Name, Path: step.Command, Err: err}
	}
	err := cmd.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s step interrupted: %w", step.Name, ctx.Err())
	}
	res := &stepResult{stdout: stdout.Bytes(), stderr: stderr.Bytes()}
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		res.timedOut = true
		res.exitCode = TimeoutExitCode
		return res, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %s step: %w", step.Name, err)
		}
		res.exitCode = exitErr.ExitCode()
	}
	return res, nil
}

func warnStep(log *zap.Logger, step string, spec grid.RunSpec, exitCode int, timedOut bool, stderr []byte) {
	fields := []zap.Field{
		zap.String("step", step),
		zap.Int("run", spec.Index),
		zap.Stringer("spec", spec),
	}
	switch {
	case timedOut:
		log.Warn(step+" step timed out", fields...)
	case exitCode != 0:
		log.Warn(step+" step exited non-zero",
			append(fields, zap.Int("exit_code", exitCode), zap.ByteString("stderr", tail(stderr, 2048)))...)
	}
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
