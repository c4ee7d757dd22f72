package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a call summary does not exist.
var ErrNotFound = errors.New("call summary not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS call_summaries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transcript TEXT NOT NULL,
	summary TEXT,
	created_at REAL NOT NULL,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS commlog (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	call_summary_id INTEGER NOT NULL REFERENCES call_summaries(id) ON DELETE CASCADE,
	action TEXT NOT NULL,
	message TEXT,
	created_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commlog_summary ON commlog(call_summary_id, created_at);
`

// Store provides read-write access to the stub server's SQLite database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Pass MemoryPath for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	if path == MemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSummary stores a transcript with no summary text and records a
// "created" commlog entry.
func (s *Store) CreateSummary(ctx context.Context, transcript, message string) (CallSummary, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := unixFromTime(s.now())
		res, err := tx.ExecContext(ctx,
			`INSERT INTO call_summaries (transcript, summary, created_at) VALUES (?, NULL, ?)`,
			transcript, now)
		if err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("summary id: %w", err)
		}
		return addCommlog(ctx, tx, id, ActionCreated, message, now)
	})
	if err != nil {
		return CallSummary{}, err
	}
	return s.GetSummary(ctx, id)
}

// GetSummary returns one call summary.
func (s *Store) GetSummary(ctx context.Context, id int64) (CallSummary, error) {
	var row summaryRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, transcript, summary, created_at, updated_at
		FROM call_summaries
		WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return CallSummary{}, ErrNotFound
	}
	if err != nil {
		return CallSummary{}, fmt.Errorf("query summary: %w", err)
	}
	return row.model(), nil
}

// ListSummaries returns call summaries newest first.
func (s *Store) ListSummaries(ctx context.Context, skip, limit int) ([]CallSummary, error) {
	var rows []summaryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, transcript, summary, created_at, updated_at
		FROM call_summaries
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, limit, max(0, skip))
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}

	out := make([]CallSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// RerunSummary replaces the summary text of id, stamps updated_at and
// records a "rerun" commlog entry.
func (s *Store) RerunSummary(ctx context.Context, id int64, text, message string) (CallSummary, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := unixFromTime(s.now())
		res, err := tx.ExecContext(ctx,
			`UPDATE call_summaries SET summary = ?, updated_at = ? WHERE id = ?`,
			text, now, id)
		if err != nil {
			return fmt.Errorf("update summary: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update summary: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return addCommlog(ctx, tx, id, ActionRerun, message, now)
	})
	if err != nil {
		return CallSummary{}, err
	}
	return s.GetSummary(ctx, id)
}

// CommlogForSummary returns the commlog of one summary, newest first.
func (s *Store) CommlogForSummary(ctx context.Context, summaryID int64) ([]Commlog, error) {
	var rows []commlogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, call_summary_id, action, message, created_at
		FROM commlog
		WHERE call_summary_id = ?
		ORDER BY created_at DESC, id DESC
	`, summaryID)
	if err != nil {
		return nil, fmt.Errorf("query commlog: %w", err)
	}
	return commlogModels(rows), nil
}

// ListCommlog returns commlog entries across all summaries, newest first.
func (s *Store) ListCommlog(ctx context.Context, skip, limit int) ([]Commlog, error) {
	var rows []commlogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, call_summary_id, action, message, created_at
		FROM commlog
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, max(0, skip))
	if err != nil {
		return nil, fmt.Errorf("query commlog: %w", err)
	}
	return commlogModels(rows), nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func addCommlog(ctx context.Context, tx *sqlx.Tx, summaryID int64, action, message string, at float64) error {
	var msg sql.NullString
	if message != "" {
		msg = sql.NullString{String: message, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO commlog (call_summary_id, action, message, created_at) VALUES (?, ?, ?, ?)`,
		summaryID, action, msg, at)
	if err != nil {
		return fmt.Errorf("insert commlog: %w", err)
	}
	return nil
}

func commlogModels(rows []commlogRow) []Commlog {
	out := make([]Commlog, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
