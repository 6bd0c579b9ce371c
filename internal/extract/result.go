package extract

import (
	"fmt"
	"strconv"
)

// Field is one extracted value. Text is exactly what the tool printed.
type Field struct {
	Text  string
	Found bool
}

// String returns the extracted text, or NotAvailable.
func (f Field) String() string {
	if !f.Found {
		return NotAvailable
	}
	return f.Text
}

// Result holds the fields of one report in rule order.
type Result struct {
	names  []string
	fields []Field
}

// Get returns the named field; unknown names are reported as not found.
func (r Result) Get(name string) Field {
	for i, n := range r.names {
		if n == name {
			return r.fields[i]
		}
	}
	return Field{}
}

// Missing lists the fields that were not found, in rule order.
func (r Result) Missing() []string {
	var out []string
	for i, f := range r.fields {
		if !f.Found {
			out = append(out, r.names[i])
		}
	}
	return out
}

// Found reports how many fields were extracted.
func (r Result) Found() int {
	n := 0
	for _, f := range r.fields {
		if f.Found {
			n++
		}
	}
	return n
}

// Len is the number of rules the result was produced from.
func (r Result) Len() int { return len(r.fields) }

// Int returns the named field as an integer.
func (r Result) Int(name string) (int64, error) {
	f := r.Get(name)
	if !f.Found {
		return 0, fmt.Errorf("field %s: %s", name, NotAvailable)
	}
	return strconv.ParseInt(f.Text, 10, 64)
}

// Float returns the named field as a float. Percentages are returned as
// printed, without the % sign and without scaling.
func (r Result) Float(name string) (float64, error) {
	f := r.Get(name)
	if !f.Found {
		return 0, fmt.Errorf("field %s: %s", name, NotAvailable)
	}
	return strconv.ParseFloat(f.Text, 64)
}

// Map returns field name to rendered value, sentinel included.
func (r Result) Map() map[string]string {
	m := make(map[string]string, len(r.names))
	for i, n := range r.names {
		m[n] = r.fields[i].String()
	}
	return m
}
