package invoke_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/grid"
	"github.com/signalnine/effcurve/internal/invoke"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeScript creates an executable sh script in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func spec(t *testing.T, energy, noEvent string) grid.RunSpec {
	t.Helper()
	e, err := grid.ParseValue(energy)
	require.NoError(t, err)
	n, err := grid.ParseValue(noEvent)
	require.NoError(t, err)
	return grid.NewRunSpec(1, []string{"energy", "no_event"}, []grid.Value{e, n})
}

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestStepArgv(t *testing.T) {
	step := invoke.Step{
		Command: "root",
		Args:    []string{"-l", "-b", "-q", "gamma_sim.C({energy},{no_event})"},
	}
	assert.Equal(t,
		[]string{"root", "-l", "-b", "-q", "gamma_sim.C(0.06903793103448276,100000)"},
		step.Argv(spec(t, "0.06903793103448276", "100000")))

	def := invoke.Step{Command: "python3", Args: invoke.DefaultArgs("sim.py", "energy", "no_event")}
	assert.Equal(t, []string{"python3", "sim.py", "1e-3", "10"}, def.Argv(spec(t, "1e-3", "10")))

	bare := invoke.Step{Command: "./sim", Args: invoke.DefaultArgs("", "energy", "no_event")}
	assert.Equal(t, []string{"./sim", "0.5", "10"}, bare.Argv(spec(t, "0.5", "10")))
}

func TestStepArgvLeavesUnknownPlaceholders(t *testing.T) {
	step := invoke.Step{Command: "tool", Args: []string{"{energy}", "{other}", "$(whoami)"}}
	assert.Equal(t, []string{"tool", "2", "{other}", "$(whoami)"}, step.Argv(spec(t, "2", "5")))
}

func TestExecInvokerRun(t *testing.T) {
	dir := t.TempDir()
	gen := writeScript(t, dir, "gen.sh", `printf '%s\n' "$@" > "$(dirname "$0")/gen.args"`)
	an := writeScript(t, dir, "analyze.sh", `echo "Total number of events : $2"
echo "Photopeak Efficency : 12.5%"
echo "Error: $1"
echo "noise on stderr" >&2`)

	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: gen, Args: []string{"{energy}", "{no_event}"}},
		Analyze:  invoke.Step{Command: an, Args: []string{"{energy}", "{no_event}"}},
	})
	out, err := inv.Run(context.Background(), spec(t, "0.06903793103448276", "100000"))
	require.NoError(t, err)
	assert.Equal(t, "Total number of events : 100000\nPhotopeak Efficency : 12.5%\nError: 0.06903793103448276\n", out.Report)
	assert.Zero(t, out.GenerateExit)
	assert.Zero(t, out.AnalyzeExit)

	args, err := os.ReadFile(filepath.Join(dir, "gen.args"))
	require.NoError(t, err, "generate step did not run")
	assert.Equal(t, "0.06903793103448276\n100000\n", string(args))
}

func TestExecInvokerGenerateFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	gen := writeScript(t, dir, "gen.sh", `echo "cannot open geometry" >&2; exit 3`)
	an := writeScript(t, dir, "analyze.sh", `echo "Number of events in photopeak : 7"`)

	logger, logs := observed(zapcore.WarnLevel)
	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: gen},
		Analyze:  invoke.Step{Command: an},
		Logger:   logger,
	})
	out, err := inv.Run(context.Background(), spec(t, "1", "10"))
	require.NoError(t, err)
	assert.Equal(t, 3, out.GenerateExit)
	assert.Contains(t, out.Report, "photopeak : 7")

	warns := logs.FilterMessage("generate step exited non-zero").All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	assert.Equal(t, int64(3), fields["exit_code"])
	assert.Contains(t, fields["stderr"], "cannot open geometry")
}

func TestExecInvokerAnalyzeFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	gen := writeScript(t, dir, "gen.sh", `exit 0`)
	an := writeScript(t, dir, "analyze.sh", `echo partial; exit 1`)

	logger, logs := observed(zapcore.WarnLevel)
	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: gen},
		Analyze:  invoke.Step{Command: an},
		Logger:   logger,
	})
	out, err := inv.Run(context.Background(), spec(t, "1", "10"))
	require.NoError(t, err)
	assert.Equal(t, 1, out.AnalyzeExit)
	assert.Equal(t, "partial\n", out.Report)
	assert.Equal(t, 1, logs.FilterMessage("analyze step exited non-zero").Len())
}

func TestExecInvokerMissingTool(t *testing.T) {
	dir := t.TempDir()
	an := writeScript(t, dir, "analyze.sh", `exit 0`)
	missing := filepath.Join(dir, "no-such-tool")

	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: missing},
		Analyze:  invoke.Step{Command: an},
	})
	_, err := inv.Run(context.Background(), spec(t, "1", "10"))
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "generate", cfgErr.Op)
	assert.Equal(t, missing, cfgErr.Path)
	assert.Contains(t, err.Error(), missing)

	inv = invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: an},
		Analyze:  invoke.Step{Command: "effcurve-definitely-not-on-path"},
	})
	_, err = inv.Run(context.Background(), spec(t, "1", "10"))
	assert.True(t, config.IsFatal(err), "missing analyze tool: %v", err)
}

func TestExecInvokerNotExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a program"), 0o644))

	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: path},
		Analyze:  invoke.Step{Command: path},
	})
	_, err := inv.Run(context.Background(), spec(t, "1", "10"))
	assert.True(t, config.IsFatal(err), "got %v", err)
}

func TestExecInvokerTimeout(t *testing.T) {
	dir := t.TempDir()
	gen := writeScript(t, dir, "gen.sh", `exit 0`)
	an := writeScript(t, dir, "analyze.sh", `echo "Error: 0.5"; exec sleep 30`)

	logger, logs := observed(zapcore.WarnLevel)
	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: gen},
		Analyze:  invoke.Step{Command: an},
		Timeout:  300 * time.Millisecond,
		Logger:   logger,
	})
	start := time.Now()
	out, err := inv.Run(context.Background(), spec(t, "1", "10"))
	require.NoError(t, err)
	assert.True(t, time.Since(start) < 10*time.Second, "timeout not enforced")
	assert.True(t, out.AnalyzeTimedOut)
	assert.Equal(t, invoke.TimeoutExitCode, out.AnalyzeExit)
	assert.Equal(t, "Error: 0.5\n", out.Report)
	assert.Equal(t, 1, logs.FilterMessage("analyze step timed out").Len())
}

func TestExecInvokerCancelled(t *testing.T) {
	dir := t.TempDir()
	gen := writeScript(t, dir, "gen.sh", `exit 0`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: gen},
		Analyze:  invoke.Step{Command: gen},
	})
	_, err := inv.Run(ctx, spec(t, "1", "10"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, config.IsFatal(err), "cancellation must not be reported as a configuration error")
}

func TestExecInvokerEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	gen := writeScript(t, dir, "gen.sh", `exit 0`)
	an := writeScript(t, dir, "analyze.sh", `echo "$VMCWORKDIR $(pwd)"`)

	inv := invoke.NewExecInvoker(invoke.ExecOptions{
		Generate: invoke.Step{Command: gen},
		Analyze:  invoke.Step{Command: an},
		Dir:      work,
		Env:      []string{"VMCWORKDIR=/opt/attpc"},
	})
	out, err := inv.Run(context.Background(), spec(t, "1", "10"))
	require.NoError(t, err)
	realWork, _ := filepath.EvalSymlinks(work)
	got := strings.TrimSpace(out.Report)
	assert.Contains(t, []string{"/opt/attpc " + work, "/opt/attpc " + realWork}, got)
}
