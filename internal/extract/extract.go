// Package extract pulls named numeric fields out of the analysis tool's
// free-text report.
//
// Each Rule is a regular expression with one capture group. The first
// match in the text wins; later occurrences are ignored. A field whose
// pattern does not match, or whose captured text does not parse as the
// rule's Kind, is reported as missing and renders as NotAvailable.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
)

// NotAvailable is the sentinel written in place of a field that could not
// be extracted.
const NotAvailable = "N/A"

// Field names produced by DefaultRules.
const (
	TotalEvents    = "total_events"
	PhotopeakCount = "photopeak_count"
	Efficiency     = "efficiency"
	Error          = "error"
)

// Kind is the numeric type a rule's capture must parse as.
type Kind int

const (
	Integer Kind = iota
	Percentage
	Decimal
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Percentage:
		return "percentage"
	case Decimal:
		return "decimal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rule extracts one field.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
	Kind    Kind
}

// number matches a decimal as printed by iostream, including exponent
// notation such as 1.2e-05.
const number = `([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)`

// DefaultRules matches the report printed by the photopeak analysis macro.
func DefaultRules() []Rule {
	return []Rule{
		{Field: TotalEvents, Kind: Integer, Pattern: regexp.MustCompile(`Total number of events\s*:\s*(\d+)`)},
		{Field: PhotopeakCount, Kind: Integer, Pattern: regexp.MustCompile(`Number of events in photopeak\s*:\s*(\d+)`)},
		{Field: Efficiency, Kind: Percentage, Pattern: regexp.MustCompile(`Photopeak Efficency\s*:\s*` + number + `\s*%`)},
		{Field: Error, Kind: Decimal, Pattern: regexp.MustCompile(`Error:\s*` + number)},
	}
}

// CompilePattern compiles an override pattern and checks it has exactly
// one capture group.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", expr, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("pattern %q: want exactly 1 capture group, got %d", expr, re.NumSubexp())
	}
	return re, nil
}

// WithPatterns returns a copy of rules with patterns replaced by field name.
// Unknown field names are an error.
func WithPatterns(rules []Rule, overrides map[string]string) ([]Rule, error) {
	out := append([]Rule(nil), rules...)
	for field, expr := range overrides {
		i := indexOf(out, field)
		if i < 0 {
			return nil, fmt.Errorf("pattern override for unknown field %q", field)
		}
		re, err := CompilePattern(expr)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		out[i].Pattern = re
	}
	return out, nil
}

func indexOf(rules []Rule, field string) int {
	for i, r := range rules {
		if r.Field == field {
			return i
		}
	}
	return -1
}

// Parser applies a fixed rule set to report text.
type Parser struct {
	rules []Rule
}

// NewParser returns a parser over rules, or DefaultRules when none given.
func NewParser(rules ...Rule) *Parser {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Parser{rules: append([]Rule(nil), rules...)}
}

// Fields returns the field names in rule order.
func (p *Parser) Fields() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Field
	}
	return names
}

// Parse extracts every rule's field from text. It never fails.
func (p *Parser) Parse(text string) Result {
	res := Result{fields: make([]Field, len(p.rules)), names: p.Fields()}
	for i, r := range p.rules {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil || !valid(m[1], r.Kind) {
			continue
		}
		res.fields[i] = Field{Text: m[1], Found: true}
	}
	return res
}

func valid(s string, k Kind) bool {
	var err error
	switch k {
	case Integer:
		_, err = strconv.ParseInt(s, 10, 64)
	default:
		_, err = strconv.ParseFloat(s, 64)
	}
	return err == nil
}
