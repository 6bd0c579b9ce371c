package result

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/signalnine/effcurve/internal/config"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sweep_id TEXT NOT NULL,
    no_event TEXT NOT NULL,
    energy TEXT NOT NULL,
    photopeak_count TEXT NOT NULL,
    efficiency TEXT NOT NULL,
    error TEXT NOT NULL,
    total_events TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_sweep ON results(sweep_id);
`

// SQLiteLog mirrors the CSV log into a SQLite table. Values are stored as
// TEXT so the N/A sentinel survives unchanged. Every Append is its own
// autocommitted statement.
type SQLiteLog struct {
	db      *sql.DB
	path    string
	sweepID string
}

// StoredRecord is a Record read back with its sweep metadata.
type StoredRecord struct {
	Record
	SweepID    string
	RecordedAt time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Rows
// appended through it are tagged with sweepID.
func OpenSQLite(ctx context.Context, path, sweepID string) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &config.Error{Op: "create database dir", Path: filepath.Dir(path), Err: err}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, &config.Error{Op: "open database", Path: path, Err: err}
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, &config.Error{Op: "initialize database", Path: path, Err: err}
	}
	return &SQLiteLog{db: db, path: path, sweepID: sweepID}, nil
}

func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO results (sweep_id, no_event, energy, photopeak_count, efficiency, error, total_events, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.sweepID, rec.RunSize, rec.Energy, rec.PhotopeakCount, rec.Efficiency, rec.Error,
		orNA(rec.TotalEvents), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &config.Error{Op: "append database", Path: l.path, Err: err}
	}
	return nil
}

// Records returns every stored row in insertion order.
func (l *SQLiteLog) Records(ctx context.Context) ([]StoredRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT sweep_id, no_event, energy, photopeak_count, efficiency, error, total_events, recorded_at
		 FROM results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var (
			sr       StoredRecord
			recorded string
		)
		if err := rows.Scan(&sr.SweepID, &sr.RunSize, &sr.Energy, &sr.PhotopeakCount,
			&sr.Efficiency, &sr.Error, &sr.TotalEvents, &recorded); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		sr.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
