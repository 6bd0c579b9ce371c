package grid

import (
	"fmt"
	"math"
)

// Linspace returns count evenly spaced values over [start, stop], both
// endpoints included. The last value is exactly stop.
func Linspace(start, stop float64, count int) ([]Value, error) {
	if count < 1 {
		return nil, fmt.Errorf("linspace: count must be at least 1, got %d", count)
	}
	if count == 1 {
		return []Value{FloatValue(start)}, nil
	}
	step := (stop - start) / float64(count-1)
	out := make([]Value, count)
	for i := range count {
		out[i] = FloatValue(start + float64(i)*step)
	}
	out[count-1] = FloatValue(stop)
	return out, nil
}

// Arange returns start, start+step, ... for values strictly below stop
// (above stop for a negative step).
func Arange(start, stop, step float64) ([]Value, error) {
	if step == 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("arange: step must be non-zero")
	}
	n := int(math.Ceil((stop - start) / step))
	if n <= 0 {
		return nil, nil
	}
	out := make([]Value, n)
	for i := range n {
		out[i] = FloatValue(start + float64(i)*step)
	}
	return out, nil
}
