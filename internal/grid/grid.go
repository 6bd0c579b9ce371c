// Package grid describes the swept parameter space: named dimensions of
// numeric values and the RunSpecs produced by their Cartesian product.
package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is a single parameter value. Text is the literal the value was
// written as and is what gets passed to the external tool, so a value read
// as 0.06903793103448276 is never rounded on its way to a command line.
type Value struct {
	Num  float64
	Text string
}

// ParseValue parses s as a float and keeps s verbatim as its text.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("parsing value %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("parsing value %q: not a finite number", s)
	}
	return Value{Num: f, Text: s}, nil
}

// FloatValue builds a Value from a computed float using the shortest
// representation that round-trips.
func FloatValue(f float64) Value {
	return Value{Num: f, Text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func (v Value) String() string {
	if v.Text == "" {
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	}
	return v.Text
}

// UnmarshalYAML keeps the scalar exactly as written in the config file.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: parameter value must be a scalar", node.Line)
	}
	parsed, err := ParseValue(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

// Dimension is one swept variable and its ordered values.
type Dimension struct {
	Name   string
	Values []Value
}

// Grid is an ordered list of dimensions. The first dimension is the
// outermost loop of the product.
type Grid []Dimension

// Size returns the number of RunSpecs in the product.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, d := range g {
		n *= len(d.Values)
	}
	return n
}

// Names returns the dimension names in declaration order.
func (g Grid) Names() []string {
	names := make([]string, len(g))
	for i, d := range g {
		names[i] = d.Name
	}
	return names
}

// Dimension returns the named dimension.
func (g Grid) Dimension(name string) (Dimension, bool) {
	for _, d := range g {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Validate checks that every dimension is named uniquely and non-empty.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("no dimensions defined")
	}
	seen := make(map[string]bool, len(g))
	for i, d := range g {
		if d.Name == "" {
			return fmt.Errorf("dimension %d: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("dimension %q: declared twice", d.Name)
		}
		seen[d.Name] = true
		if len(d.Values) == 0 {
			return fmt.Errorf("dimension %q: no values", d.Name)
		}
	}
	return nil
}
