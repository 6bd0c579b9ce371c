package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/effcurve/internal/extract"
	"github.com/signalnine/effcurve/internal/grid"
)

const (
	RuntimeExec   = "exec"
	RuntimeDocker = "docker"

	DefaultLogPath = "./EfficiencyCurves/efficiency_curve.csv"
)

type Config struct {
	Sweep   Sweep   `yaml:"sweep"`
	Tool    Tool    `yaml:"tool"`
	Report  Report  `yaml:"report"`
	Log     Log     `yaml:"log"`
	Logging Logging `yaml:"logging"`
}

type Sweep struct {
	Dimensions []Dimension `yaml:"dimensions"`
	Parameter  string      `yaml:"parameter"`
	RunSize    string      `yaml:"run_size"`
}

// Dimension lists explicit values and optional generators. The values of
// the resulting grid dimension are Values, then Linspace, then Arange.
type Dimension struct {
	Name     string       `yaml:"name"`
	Values   []grid.Value `yaml:"values"`
	Linspace *Linspace    `yaml:"linspace"`
	Arange   *Arange      `yaml:"arange"`
}

type Linspace struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Count int     `yaml:"count"`
}

type Arange struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

type Tool struct {
	Runtime  string   `yaml:"runtime"`
	Image    string   `yaml:"image"`
	Workdir  string   `yaml:"workdir"`
	EnvFile  string   `yaml:"env_file"`
	Timeout  Duration `yaml:"timeout"`
	Generate Command  `yaml:"generate"`
	Analyze  Command  `yaml:"analyze"`
}

// Command is one tool invocation. When Args is empty the script (if any),
// the parameter value and the run size are passed positionally.
type Command struct {
	Command string   `yaml:"command"`
	Script  string   `yaml:"script"`
	Args    []string `yaml:"args"`
}

type Report struct {
	Patterns map[string]string `yaml:"patterns"`
}

type Log struct {
	Path     string `yaml:"path"`
	Database string `yaml:"database"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration accepts Go duration strings such as "90s" or "1h30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, s)
	}
	d.Duration = v
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate fills defaults and checks cfg. Load calls it; callers that
// modify a loaded config should call it again.
func (cfg *Config) Validate() error {
	return validate(cfg)
}

func validate(cfg *Config) error {
	s := &cfg.Sweep
	if s.Parameter == "" {
		s.Parameter = "energy"
	}
	if s.RunSize == "" {
		s.RunSize = "no_event"
	}
	g, err := cfg.Grid()
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if _, ok := g.Dimension(s.Parameter); !ok {
		return fmt.Errorf("sweep.parameter %q is not a dimension", s.Parameter)
	}
	if _, ok := g.Dimension(s.RunSize); !ok {
		return fmt.Errorf("sweep.run_size %q is not a dimension", s.RunSize)
	}
	if s.Parameter == s.RunSize {
		return fmt.Errorf("sweep.parameter and sweep.run_size must differ")
	}

	t := &cfg.Tool
	if t.Runtime == "" {
		t.Runtime = RuntimeExec
	}
	switch t.Runtime {
	case RuntimeExec:
	case RuntimeDocker:
		if t.Image == "" {
			return fmt.Errorf("tool.image is required for the docker runtime")
		}
	default:
		return fmt.Errorf("tool.runtime %q: must be %s or %s", t.Runtime, RuntimeExec, RuntimeDocker)
	}
	if t.Workdir == "" {
		t.Workdir = "."
	}
	if t.Timeout.Duration < 0 {
		return fmt.Errorf("tool.timeout must not be negative")
	}
	if t.Generate.Command == "" {
		return fmt.Errorf("tool.generate.command is required")
	}
	if t.Analyze.Command == "" {
		return fmt.Errorf("tool.analyze.command is required")
	}

	if _, err := cfg.Rules(); err != nil {
		return err
	}

	if cfg.Log.Path == "" {
		cfg.Log.Path = DefaultLogPath
	}

	l := &cfg.Logging
	if l.Level == "" {
		l.Level = "info"
	}
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if l.Format == "" {
		l.Format = "console"
	}
	if l.Format != "console" && l.Format != "json" {
		return fmt.Errorf("logging.format %q: must be console or json", l.Format)
	}
	return nil
}

// Grid builds the sweep grid in declaration order.
func (cfg *Config) Grid() (grid.Grid, error) {
	g := make(grid.Grid, 0, len(cfg.Sweep.Dimensions))
	for i, d := range cfg.Sweep.Dimensions {
		vals := append([]grid.Value(nil), d.Values...)
		if d.Linspace != nil {
			ls, err := grid.Linspace(d.Linspace.Start, d.Linspace.Stop, d.Linspace.Count)
			if err != nil {
				return nil, fmt.Errorf("dimension %d linspace: %w", i, err)
			}
			vals = append(vals, ls...)
		}
		if d.Arange != nil {
			ar, err := grid.Arange(d.Arange.Start, d.Arange.Stop, d.Arange.Step)
			if err != nil {
				return nil, fmt.Errorf("dimension %d arange: %w", i, err)
			}
			vals = append(vals, ar...)
		}
		g = append(g, grid.Dimension{Name: d.Name, Values: vals})
	}
	return g, nil
}

// Rules returns the report rules with report.patterns applied.
func (cfg *Config) Rules() ([]extract.Rule, error) {
	rules, err := extract.WithPatterns(extract.DefaultRules(), cfg.Report.Patterns)
	if err != nil {
		return nil, fmt.Errorf("report.patterns: %w", err)
	}
	return rules, nil
}

// SetDimension replaces the values of the named dimension, dropping its
// generators. The config must be validated again afterwards.
func (cfg *Config) SetDimension(name string, values []grid.Value) error {
	for i := range cfg.Sweep.Dimensions {
		d := &cfg.Sweep.Dimensions[i]
		if d.Name == name {
			d.Values = values
			d.Linspace = nil
			d.Arange = nil
			return nil
		}
	}
	return fmt.Errorf("no dimension named %q", name)
}
