package result

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/signalnine/effcurve/internal/config"
)

// EnsureInitialized creates the log with its header if it is missing or
// empty. An existing non-empty log is only checked, never rewritten.
func EnsureInitialized(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &config.Error{Op: "create log dir", Path: filepath.Dir(path), Err: err}
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return &config.Error{Op: "open log", Path: path, Err: errors.New("is a directory")}
	case err == nil && info.Size() > 0:
		return checkExisting(path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return &config.Error{Op: "open log", Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return &config.Error{Op: "create log", Path: path, Err: err}
	}
	defer f.Close()
	if err := writeRow(f, Header); err != nil {
		return &config.Error{Op: "write log header", Path: path, Err: err}
	}
	return nil
}

// CheckLog reports whether the log at path could be opened for append,
// without creating or writing anything. An existing log gets the same
// header and tail checks as EnsureInitialized.
func CheckLog(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return &config.Error{Op: "open log", Path: path, Err: errors.New("is a directory")}
	case err == nil && info.Size() > 0:
		return checkExisting(path)
	case err == nil:
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return &config.Error{Op: "open log", Path: path, Err: err}
		}
		return f.Close()
	case !errors.Is(err, fs.ErrNotExist):
		return &config.Error{Op: "open log", Path: path, Err: err}
	}
	if err := CheckDir(filepath.Dir(path)); err != nil {
		return &config.Error{Op: "create log", Path: path, Err: err}
	}
	return nil
}

// CheckDir reports whether files could be created under dir. Missing
// directories are not created; the nearest existing ancestor must be a
// writable directory.
func CheckDir(dir string) error {
	dir = filepath.Clean(dir)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
	}
	f, err := os.CreateTemp(dir, ".effcurve-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkExisting(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &config.Error{Op: "open log", Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first, err := r.Read()
	if err != nil {
		return &config.Error{Op: "read log header", Path: path, Err: err}
	}
	if !slices.Equal(first, Header) {
		return &config.Error{Op: "open log", Path: path, Err: fmt.Errorf("unexpected header %q", first)}
	}

	// a torn final row means a writer died mid-append
	if _, err := f.Seek(-1, io.SeekEnd); err != nil {
		return &config.Error{Op: "open log", Path: path, Err: err}
	}
	last := make([]byte, 1)
	if _, err := io.ReadFull(f, last); err != nil {
		return &config.Error{Op: "open log", Path: path, Err: err}
	}
	if last[0] != '\n' {
		return &config.Error{Op: "open log", Path: path, Err: errors.New("log ends with an incomplete row")}
	}
	return nil
}

// writeRow encodes one CSV row and commits it with a single write and
// an fsync, so a crash leaves either the whole row or none of it.
func writeRow(f *os.File, row []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}
	return f.Sync()
}

// CSVLog is an append-only CSV result log.
type CSVLog struct {
	path string
	f    *os.File
}

// OpenCSV initializes the log at path if needed and opens it for append.
func OpenCSV(path string) (*CSVLog, error) {
	if err := EnsureInitialized(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &config.Error{Op: "open log", Path: path, Err: err}
	}
	return &CSVLog{path: path, f: f}, nil
}

func (l *CSVLog) Path() string { return l.path }

// EnsureInitialized re-checks the log on disk. It never rewrites it.
func (l *CSVLog) EnsureInitialized() error { return EnsureInitialized(l.path) }

// Append writes rec as one row and syncs it to disk.
func (l *CSVLog) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeRow(l.f, rec.Row()); err != nil {
		return &config.Error{Op: "append log", Path: l.path, Err: err}
	}
	return nil
}

func (l *CSVLog) Close() error {
	return l.f.Close()
}

// ReadCSV reads every record from the log at path.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	defer f.Close()
	recs, err := ReadCSVFrom(f)
	if err != nil {
		return nil, fmt.Errorf("reading log %s: %w", path, err)
	}
	return recs, nil
}

// ReadCSVFrom reads a log stream. An empty stream has no records.
func ReadCSVFrom(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if !slices.Equal(first, Header) {
		return nil, fmt.Errorf("unexpected header %q", first)
	}
	var recs []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing row: %w", err)
		}
		rec, err := FromRow(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}
