// Package remote defines the contract with the cloud document store and
// an HTTP implementation of it.
//
// Session documents live in a flat collection keyed by "{userId}_{localId}"
// so re-running sync for the same local record always targets the same
// remote slot. User profile documents are keyed by user id.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/aadityasamani/FlightMode/internal/schema"
)

// SessionDoc is the remote representation of a focus session. LocalID
// keeps the local store id so a document can always be traced back.
type SessionDoc struct {
	ID              int64   `json:"id"`
	UserID          string  `json:"user_id"`
	DurationMinutes int     `json:"duration_minutes"`
	Objective       *string `json:"objective"`
	FromCode        *string `json:"from_code"`
	ToCode          *string `json:"to_code"`
	Seat            *string `json:"seat"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	SyncedAt        string  `json:"synced_at,omitempty"`
	LocalID         int64   `json:"local_id"`
}

// EndedAt parses the document's end time; nil or unparseable values map
// to the zero time, which loses every conflict comparison.
func (d *SessionDoc) EndedAt() time.Time {
	return schema.ParseTime(d.EndTime)
}

// UserDoc is the remote representation of a user profile.
type UserDoc struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// Client is the remote document store contract consumed by the sync
// engine. Implementations must treat an absent document as (nil, false,
// nil), not an error.
type Client interface {
	// GetSession fetches the session document for key. found is false when
	// no document exists at that key.
	GetSession(ctx context.Context, key string) (doc *SessionDoc, found bool, err error)

	// PutSession writes the session document at key. With merge set, only
	// the supplied fields change on an existing document; without it the
	// document is created or fully replaced.
	PutSession(ctx context.Context, key string, doc SessionDoc, merge bool) error

	// PutUser upserts the user profile document keyed by user id.
	PutUser(ctx context.Context, id string, doc UserDoc) error
}

// SessionKey builds the deterministic document key for a local session.
func SessionKey(userID string, localID int64) string {
	return fmt.Sprintf("%s_%d", userID, localID)
}

// DocFromSession converts a local record to its remote document form.
// SyncedAt is left for the client to stamp at write time.
func DocFromSession(s schema.Session, userID string) SessionDoc {
	status := s.Status
	if status == "" {
		status = schema.StatusCompleted
	}
	createdAt := s.CreatedAt
	if createdAt == "" {
		createdAt = s.StartTime
	}
	return SessionDoc{
		ID:              s.ID,
		UserID:          userID,
		DurationMinutes: s.DurationMinutes,
		Objective:       s.Objective,
		FromCode:        s.FromCode,
		ToCode:          s.ToCode,
		Seat:            s.Seat,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Status:          string(status),
		CreatedAt:       createdAt,
		LocalID:         s.ID,
	}
}

// DocFromUser converts a local profile to its remote document form.
func DocFromUser(u schema.UserProfile) UserDoc {
	return UserDoc{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
		LastUpdated: u.LastUpdated,
	}
}
