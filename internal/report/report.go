package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/effcurve/internal/extract"
	"github.com/signalnine/effcurve/internal/result"
)

// Totals summarizes a log.
type Totals struct {
	Rows       int `json:"rows"`
	Incomplete int `json:"incomplete"`
}

type document struct {
	Totals  Totals          `json:"totals"`
	Records []result.Record `json:"records"`
}

// Generate reads the CSV log at path and writes it to w in the given
// format: table (default), markdown, json or csv.
func Generate(path, format string, w io.Writer) error {
	recs, err := result.ReadCSV(path)
	if err != nil {
		return err
	}
	return Write(recs, format, w)
}

// Write renders recs in the given format.
func Write(recs []result.Record, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(recs, w)
	case "json":
		return writeJSON(recs, w)
	case "csv":
		return writeCSV(recs, w)
	case "", "table":
		return writeTable(recs, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Summarize counts rows and rows with at least one missing field.
func Summarize(recs []result.Record) Totals {
	t := Totals{Rows: len(recs)}
	for _, r := range recs {
		for _, f := range r.Row()[2:] {
			if f == extract.NotAvailable {
				t.Incomplete++
				break
			}
		}
	}
	return t
}

func writeTable(recs []result.Record, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NO_EVENT\tENERGY\tPHOTOPEAK COUNT\tEFFICIENCY\tERROR")
	fmt.Fprintln(tw, strings.Repeat("-", 72))
	for _, r := range recs {
		eff := r.Efficiency
		if eff != extract.NotAvailable {
			eff += "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RunSize, r.Energy, r.PhotopeakCount, eff, r.Error)
	}
	t := Summarize(recs)
	fmt.Fprintf(tw, "\n%d rows, %d incomplete\n", t.Rows, t.Incomplete)
	return tw.Flush()
}

func writeMarkdown(recs []result.Record, w io.Writer) error {
	fmt.Fprintln(w, "| no_event | Energy | PhotopeakCount | Efficiency | Error |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, r := range recs {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			r.RunSize, r.Energy, r.PhotopeakCount, r.Efficiency, r.Error)
	}
	return nil
}

func writeJSON(recs []result.Record, w io.Writer) error {
	if recs == nil {
		recs = []result.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{Totals: Summarize(recs), Records: recs})
}

func writeCSV(recs []result.Record, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Header); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
