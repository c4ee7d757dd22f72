// Package db provides SQLite storage for the stub call-summary server.
package db

import (
	"database/sql"
	"time"
)

// CallSummary is a stored transcript and its generated summary.
type CallSummary struct {
	ID         int64
	Transcript string
	Summary    *string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// Commlog is one action recorded against a call summary.
type Commlog struct {
	ID            int64
	CallSummaryID int64
	Action        string
	Message       *string
	CreatedAt     time.Time
}

// Commlog actions written by the stub server.
const (
	ActionCreated = "created"
	ActionRerun   = "rerun"
)

// summaryRow and commlogRow mirror the table columns for sqlx scanning.
type summaryRow struct {
	ID         int64           `db:"id"`
	Transcript string          `db:"transcript"`
	Summary    sql.NullString  `db:"summary"`
	CreatedAt  float64         `db:"created_at"`
	UpdatedAt  sql.NullFloat64 `db:"updated_at"`
}

func (r summaryRow) model() CallSummary {
	cs := CallSummary{
		ID:         r.ID,
		Transcript: r.Transcript,
		CreatedAt:  timeFromUnix(r.CreatedAt),
	}
	if r.Summary.Valid {
		s := r.Summary.String
		cs.Summary = &s
	}
	if r.UpdatedAt.Valid {
		t := timeFromUnix(r.UpdatedAt.Float64)
		cs.UpdatedAt = &t
	}
	return cs
}

type commlogRow struct {
	ID            int64          `db:"id"`
	CallSummaryID int64          `db:"call_summary_id"`
	Action        string         `db:"action"`
	Message       sql.NullString `db:"message"`
	CreatedAt     float64        `db:"created_at"`
}

func (r commlogRow) model() Commlog {
	c := Commlog{
		ID:            r.ID,
		CallSummaryID: r.CallSummaryID,
		Action:        r.Action,
		CreatedAt:     timeFromUnix(r.CreatedAt),
	}
	if r.Message.Valid {
		m := r.Message.String
		c.Message = &m
	}
	return c
}
