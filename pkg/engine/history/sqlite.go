package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DrSkyle/sbh/pkg/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id       TEXT PRIMARY KEY,
    kind     TEXT NOT NULL,
    at_ms    INTEGER NOT NULL,
    mount    TEXT,
    path     TEXT,
    category TEXT,
    bytes    INTEGER NOT NULL DEFAULT 0,
    success  INTEGER NOT NULL DEFAULT 1,
    code     TEXT,
    details  TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_kind_at ON events (kind, at_ms);
`

// SqliteSink stores events in a single-file database. The primary key on the
// event id plus INSERT OR IGNORE gives the idempotent-append contract.
type SqliteSink struct {
	db *sql.DB
}

// OpenSqlite opens (creating if needed) the database and applies the schema.
func OpenSqlite(path string) (*SqliteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, core.Io(path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.Sql("open", err)
	}
	// The daemon is the only writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.Sql("schema", err)
	}
	return &SqliteSink{db: db}, nil
}

func (s *SqliteSink) Append(event Event) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO events (id, kind, at_ms, mount, path, category, bytes, success, code, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Kind), event.At.UnixMilli(), event.Mount, event.Path,
		event.Category, int64(event.Bytes), boolToInt(event.Success), event.Code, event.Details,
	)
	if err != nil {
		return core.Sql("append", err)
	}
	return nil
}

func (s *SqliteSink) Close() error {
	return s.db.Close()
}

// WindowStats aggregates deletion activity over the trailing window.
func (s *SqliteSink) WindowStats(window time.Duration) (WindowStats, error) {
	cutoff := time.Now().Add(-window).UnixMilli()
	var stats WindowStats

	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 1 THEN bytes ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		 FROM events WHERE kind = ? AND at_ms >= ?`,
		string(EventDeletion), cutoff,
	)
	if err := row.Scan(&stats.Deletions.Count, &stats.Deletions.TotalBytesFreed, &stats.Deletions.Failures); err != nil {
		return stats, core.Sql("window_stats", err)
	}

	row = s.db.QueryRow(
		`SELECT category FROM events
		 WHERE kind = ? AND at_ms >= ? AND category != ''
		 GROUP BY category ORDER BY COUNT(*) DESC, category ASC LIMIT 1`,
		string(EventDeletion), cutoff,
	)
	var category sql.NullString
	if err := row.Scan(&category); err != nil && err != sql.ErrNoRows {
		return stats, core.Sql("window_stats", err)
	}
	if category.Valid {
		stats.Deletions.MostCommonCategory = category.String
	}
	return stats, nil
}

// EventCount returns the total stored rows (diagnostics, tests).
func (s *SqliteSink) EventCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, core.Sql("count", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
