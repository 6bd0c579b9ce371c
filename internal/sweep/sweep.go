// Package sweep drives a grid of RunSpecs through the invoker, the report
// parser and the result log, one RunSpec at a time.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/signalnine/effcurve/internal/config"
	"github.com/signalnine/effcurve/internal/extract"
	"github.com/signalnine/effcurve/internal/grid"
	"github.com/signalnine/effcurve/internal/invoke"
	"github.com/signalnine/effcurve/internal/result"
)

const (
	DefaultParameter = "energy"
	DefaultRunSize   = "no_event"
)

// Summary counts what a sweep did. Completed always equals the number of
// rows appended.
type Summary struct {
	SweepID   string
	Total     int
	Completed int
	Partial   int // at least one field was N/A
	Empty     int // every field was N/A
	Elapsed   time.Duration
}

type Option func(*Sweeper)

func WithLogger(l *zap.Logger) Option {
	return func(s *Sweeper) { s.log = l }
}

// WithConsole sets where progress and per-run summaries are printed.
func WithConsole(w io.Writer) Option {
	return func(s *Sweeper) { s.out = w }
}

// WithColumns names the dimensions written to the Energy and no_event
// columns.
func WithColumns(parameter, runSize string) Option {
	return func(s *Sweeper) {
		s.parameter = parameter
		s.runSize = runSize
	}
}

func WithSweepID(id string) Option {
	return func(s *Sweeper) { s.id = id }
}

type Sweeper struct {
	inv       invoke.Invoker
	parser    *extract.Parser
	log       *zap.Logger
	out       io.Writer
	parameter string
	runSize   string
	id        string
}

// New returns a Sweeper. A nil parser uses the default report rules.
func New(inv invoke.Invoker, parser *extract.Parser, opts ...Option) *Sweeper {
	s := &Sweeper{
		inv:       inv,
		parser:    parser,
		log:       zap.NewNop(),
		out:       io.Discard,
		parameter: DefaultParameter,
		runSize:   DefaultRunSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.parser == nil {
		s.parser = extract.NewParser()
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.log = s.log.With(zap.String("sweep_id", s.id))
	return s
}

func (s *Sweeper) ID() string { return s.id }

// Run attempts every RunSpec of g exactly once, first dimension outermost,
// appending one record per RunSpec to sink as soon as it is parsed. It
// stops at the first fatal error or when ctx is cancelled; the returned
// Summary then covers the RunSpecs completed so far.
func (s *Sweeper) Run(ctx context.Context, g grid.Grid, sink result.Sink) (*Summary, error) {
	start := time.Now()
	sum := &Summary{SweepID: s.id, Total: g.Size()}
	finish := func(err error) (*Summary, error) {
		sum.Elapsed = time.Since(start)
		return sum, err
	}

	if err := g.Validate(); err != nil {
		return finish(&config.Error{Op: "sweep", Path: "grid", Err: err})
	}
	for _, name := range []string{s.parameter, s.runSize} {
		if _, ok := g.Dimension(name); !ok {
			return finish(&config.Error{Op: "sweep", Path: name, Err: errors.New("no such dimension")})
		}
	}

	if in, ok := sink.(result.Initializer); ok {
		if err := in.EnsureInitialized(); err != nil {
			return finish(err)
		}
	}

	s.log.Info("sweep starting", zap.Int("runs", sum.Total), zap.Strings("dimensions", g.Names()))

	for spec := range g.All() {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("sweep interrupted after %d of %d runs: %w", sum.Completed, sum.Total, err))
		}
		fmt.Fprintf(s.out, "[%d/%d] %s\n", spec.Index, sum.Total, spec)

		rec, res, err := s.runOne(ctx, spec)
		if err != nil {
			return finish(err)
		}
		if err := sink.Append(ctx, rec); err != nil {
			return finish(fmt.Errorf("appending run %d: %w", spec.Index, err))
		}
		sum.Completed++
		switch res.Found() {
		case res.Len():
		case 0:
			sum.Empty++
		default:
			sum.Partial++
		}
	}

	sum.Elapsed = time.Since(start)
	s.log.Info("sweep finished",
		zap.Int("completed", sum.Completed),
		zap.Int("partial", sum.Partial),
		zap.Int("empty", sum.Empty),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

func (s *Sweeper) runOne(ctx context.Context, spec grid.RunSpec) (result.Record, extract.Result, error) {
	out, err := s.inv.Run(ctx, spec)
	if err != nil {
		return result.Record{}, extract.Result{}, err
	}
	res := s.parser.Parse(out.Report)

	param, _ := spec.Lookup(s.parameter)
	size, _ := spec.Lookup(s.runSize)
	rec := result.NewRecord(size.String(), param.String(), res)

	s.echo(rec)
	if missing := res.Missing(); len(missing) > 0 {
		s.log.Warn("report fields missing",
			zap.Strings("missing", missing),
			zap.Int("run", spec.Index),
			zap.Stringer("spec", spec),
			zap.String("generate", Reason(out.GenerateExit, out.GenerateTimedOut)),
			zap.String("analyze", Reason(out.AnalyzeExit, out.AnalyzeTimedOut)))
	}
	s.log.Debug("run recorded",
		zap.Int("run", spec.Index),
		zap.Duration("duration", out.Duration))
	return rec, res, nil
}

func (s *Sweeper) echo(rec result.Record) {
	fmt.Fprintf(s.out, "Energy: %s\n", rec.Energy)
	fmt.Fprintf(s.out, "Total number of events: %s\n", rec.TotalEvents)
	fmt.Fprintf(s.out, "Number of events in photopeak: %s\n", rec.PhotopeakCount)
	fmt.Fprintf(s.out, "Photopeak Efficiency: %s%%\n", rec.Efficiency)
	fmt.Fprintf(s.out, "Error: %s\n\n", rec.Error)
}

// Reason names how a step ended.
func Reason(code int, timedOut bool) string {
	if timedOut {
		return "timeout"
	}
	switch code {
	case 0:
		return "completed"
	default:
		return "failed"
	}
}
