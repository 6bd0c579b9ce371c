// Package invoke runs the external simulation tool for one RunSpec: a
// generate step followed by an analyze step whose stdout is the report.
package invoke

import (
	"context"
	"strings"
	"time"

	"github.com/signalnine/effcurve/internal/grid"
)

// TimeoutExitCode is reported for a step killed by the step timeout.
const TimeoutExitCode = 124

// Invoker performs both steps for a RunSpec.
type Invoker interface {
	Run(ctx context.Context, spec grid.RunSpec) (*Output, error)
}

// Output is what one invocation pair produced.
type Output struct {
	Report           string
	GenerateExit     int
	GenerateTimedOut bool
	AnalyzeExit      int
	AnalyzeTimedOut  bool
	Duration         time.Duration
}

// Step is one command line. Each argument may contain {name} placeholders
// naming grid dimensions; they are replaced per argument and the result is
// passed to the process as a discrete argv element, never through a shell.
type Step struct {
	Name    string
	Command string
	Args    []string
}

// DefaultArgs passes the script, if any, then the parameter value and the
// run size as positional arguments.
func DefaultArgs(script, parameter, runSize string) []string {
	args := []string{"{" + parameter + "}", "{" + runSize + "}"}
	if script != "" {
		args = append([]string{script}, args...)
	}
	return args
}

// Argv expands the placeholders for spec and returns the full argv with the
// command first.
func (s Step) Argv(spec grid.RunSpec) []string {
	ph := spec.Placeholders()
	pairs := make([]string, 0, 2*len(ph))
	for k, v := range ph {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)
	argv := make([]string, 0, 1+len(s.Args))
	argv = append(argv, s.Command)
	for _, a := range s.Args {
		argv = append(argv, r.Replace(a))
	}
	return argv
}
