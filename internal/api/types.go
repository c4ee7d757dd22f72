// Package api provides the HTTP client and wire types for the call-summary
// service.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Summary is a transcript plus its (possibly pending) generated summary.
type Summary struct {
	ID         int64      `json:"id"`
	Transcript string     `json:"transcript"`
	Summary    *string    `json:"summary"`
	CreatedAt  Timestamp  `json:"created_at"`
	UpdatedAt  *Timestamp `json:"updated_at"`
}

// HasSummary reports whether the server has produced summary text yet.
func (s Summary) HasSummary() bool {
	return s.Summary != nil && *s.Summary != ""
}

// CommlogEntry is an immutable record of an action taken against a summary.
type CommlogEntry struct {
	ID            int64     `json:"id"`
	CallSummaryID int64     `json:"call_summary_id"`
	Action        string    `json:"action"`
	Message       *string   `json:"message"`
	CreatedAt     Timestamp `json:"created_at"`
}

// CreateRequest is the body of POST /summaries.
type CreateRequest struct {
	Transcript string `json:"transcript"`
}

// ErrorBody is the JSON shape the service uses for non-2xx responses.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// naiveLayout matches ISO-8601 timestamps without a zone, as emitted by
// SQLite-backed services.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time.Time that also accepts zone-less ISO-8601 values,
// which are interpreted as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// TimestampPtr returns a pointer to a Timestamp for t.
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
