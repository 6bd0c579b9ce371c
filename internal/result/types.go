package result

import (
	"context"
	"fmt"

	"github.com/signalnine/effcurve/internal/extract"
)

// Header is the first row of every CSV log, in column order.
var Header = []string{"no_event", "Energy", "PhotopeakCount", "Efficiency", "Error"}

// Record is one row of the log. All fields are text: the value as the
// tool or the config wrote it, or extract.NotAvailable.
type Record struct {
	RunSize        string `json:"no_event"`
	Energy         string `json:"Energy"`
	PhotopeakCount string `json:"PhotopeakCount"`
	Efficiency     string `json:"Efficiency"`
	Error          string `json:"Error"`

	// TotalEvents is echoed and mirrored to SQLite but is not a CSV column.
	TotalEvents string `json:"-"`
}

// NewRecord assembles a record from the swept values and a parsed report.
func NewRecord(runSize, energy string, res extract.Result) Record {
	return Record{
		RunSize:        runSize,
		Energy:         energy,
		PhotopeakCount: res.Get(extract.PhotopeakCount).String(),
		Efficiency:     res.Get(extract.Efficiency).String(),
		Error:          res.Get(extract.Error).String(),
		TotalEvents:    res.Get(extract.TotalEvents).String(),
	}
}

// Row returns the CSV fields in Header order.
func (r Record) Row() []string {
	return []string{r.RunSize, r.Energy, r.PhotopeakCount, r.Efficiency, r.Error}
}

// FromRow is the inverse of Row.
func FromRow(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("row has %d fields, want %d", len(row), len(Header))
	}
	return Record{
		RunSize:        row[0],
		Energy:         row[1],
		PhotopeakCount: row[2],
		Efficiency:     row[3],
		Error:          row[4],
	}, nil
}

// Sink receives records as they are produced. Append must not return
// before the record is durable.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Initializer is implemented by sinks that must exist, header and all,
// before the first record arrives.
type Initializer interface {
	EnsureInitialized() error
}
