package schema

import (
	"testing"
	"time"
)

func TestSessionValidate(t *testing.T) {
	valid := Session{
		UserID:          "user-1",
		DurationMinutes: 25,
		StartTime:       "2024-01-01T10:00:00Z",
		Status:          StatusCompleted,
	}

	tests := []struct {
		name    string
		mutate  func(*Session)
		wantErr bool
	}{
		{"valid", func(s *Session) {}, false},
		{"empty status allowed", func(s *Session) { s.Status = "" }, false},
		{"missing user", func(s *Session) { s.UserID = "" }, true},
		{"zero duration", func(s *Session) { s.DurationMinutes = 0 }, true},
		{"negative duration", func(s *Session) { s.DurationMinutes = -5 }, true},
		{"missing start time", func(s *Session) { s.StartTime = "" }, true},
		{"unknown status", func(s *Session) { s.Status = "paused" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusInProgress, StatusCompleted, StatusAbandoned} {
		if !s.Valid() {
			t.Errorf("Status %q should be valid", s)
		}
	}
	if Status("done").Valid() {
		t.Error("Status \"done\" should not be valid")
	}
}

func TestEndedAt(t *testing.T) {
	end := "2024-01-01T10:30:00Z"
	s := Session{EndTime: &end}
	want := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	if got := s.EndedAt(); !got.Equal(want) {
		t.Errorf("EndedAt() = %v, want %v", got, want)
	}

	// nil and garbage both map to the zero time
	s.EndTime = nil
	if !s.EndedAt().IsZero() {
		t.Error("EndedAt() with nil end time should be zero")
	}
	bad := "not-a-timestamp"
	s.EndTime = &bad
	if !s.EndedAt().IsZero() {
		t.Error("EndedAt() with unparseable end time should be zero")
	}
}

func TestFormatTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	formatted := FormatTime(now)
	parsed := ParseTime(&formatted)
	if !parsed.Equal(now) {
		t.Errorf("round trip = %v, want %v", parsed, now)
	}
}
