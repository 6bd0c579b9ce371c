package grid

import (
	"iter"
	"strings"
)

// RunSpec is one point of the product: a value per dimension, in grid
// order. Index is 1-based within the sweep.
type RunSpec struct {
	Index  int
	names  []string
	values []Value
}

// NewRunSpec builds a RunSpec from parallel name and value slices.
func NewRunSpec(index int, names []string, values []Value) RunSpec {
	return RunSpec{
		Index:  index,
		names:  append([]string(nil), names...),
		values: append([]Value(nil), values...),
	}
}

// Lookup returns the value of the named dimension.
func (r RunSpec) Lookup(name string) (Value, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Values returns a copy of the values in grid order.
func (r RunSpec) Values() []Value {
	return append([]Value(nil), r.values...)
}

// Names returns a copy of the dimension names in grid order.
func (r RunSpec) Names() []string {
	return append([]string(nil), r.names...)
}

// Placeholders maps "{name}" to the value text for every dimension.
func (r RunSpec) Placeholders() map[string]string {
	m := make(map[string]string, len(r.names))
	for i, n := range r.names {
		m["{"+n+"}"] = r.values[i].String()
	}
	return m
}

func (r RunSpec) String() string {
	parts := make([]string, len(r.names))
	for i, n := range r.names {
		parts[i] = n + "=" + r.values[i].String()
	}
	return strings.Join(parts, " ")
}

// All yields the RunSpecs of the product one at a time, last dimension
// varying fastest. Nothing beyond the current index vector is held.
func (g Grid) All() iter.Seq[RunSpec] {
	return func(yield func(RunSpec) bool) {
		if g.Size() == 0 {
			return
		}
		names := g.Names()
		idx := make([]int, len(g))
		vals := make([]Value, len(g))
		for n := 1; ; n++ {
			for i, d := range g {
				vals[i] = d.Values[idx[i]]
			}
			if !yield(NewRunSpec(n, names, vals)) {
				return
			}
			// odometer increment, innermost first
			i := len(g) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(g[i].Values) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}
