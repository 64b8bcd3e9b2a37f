// Package schema provides the record types persisted by the FlightMode
// local store: focus sessions and user profiles.
//
// Timestamps are stored as RFC 3339 strings rather than time.Time so that
// both storage backends (SQLite and the JSON document fallback) persist
// byte-identical values, and so that end-time comparison during sync
// conflict resolution has a single canonical representation.
package schema

import (
	"fmt"
	"time"
)

// Status describes the lifecycle state of a focus session.
type Status string

const (
	// StatusInProgress marks a session whose timer is still running.
	StatusInProgress Status = "in-progress"
	// StatusCompleted marks a session that ran to the end of its timer.
	StatusCompleted Status = "completed"
	// StatusAbandoned marks a session the user cut short.
	StatusAbandoned Status = "abandoned"
)

// Valid reports whether s is one of the known session statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Session is the unit of persistence: one focus "flight".
//
// ID is assigned by the local store at insert time (max existing id + 1,
// never reused) and is stable for the lifetime of the record. UserID is
// never reassigned after creation. SyncedToRemote transitions false->true
// exactly once, set only by the sync engine after a confirmed remote write.
type Session struct {
	ID              int64   `json:"id"`
	UserID          string  `json:"user_id"`
	DurationMinutes int     `json:"duration_minutes"`
	Objective       *string `json:"objective,omitempty"`
	FromCode        *string `json:"from_code,omitempty"`
	ToCode          *string `json:"to_code,omitempty"`
	Seat            *string `json:"seat,omitempty"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time,omitempty"` // nil while in-progress
	Status          Status  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	SyncedToRemote  bool    `json:"synced_to_remote"`
}

// Validate checks the fields required at insert time.
func (s *Session) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes is required (got %d)", s.DurationMinutes)
	}
	if s.StartTime == "" {
		return fmt.Errorf("start_time is required")
	}
	if s.Status != "" && !s.Status.Valid() {
		return fmt.Errorf("invalid status %q", s.Status)
	}
	return nil
}

// EndedAt parses the session's end time. A nil or unparseable end time
// returns the zero time, which sorts before every real timestamp; the sync
// engine relies on this when resolving conflicts.
func (s *Session) EndedAt() time.Time {
	return ParseTime(s.EndTime)
}

// StartedAt parses the session's start time, zero time if unparseable.
func (s *Session) StartedAt() time.Time {
	t, err := time.Parse(time.RFC3339, s.StartTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseTime parses an optional RFC 3339 timestamp. nil and unparseable
// values map to the zero time.
func ParseTime(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime renders t in the canonical RFC 3339 form used throughout the
// store.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
