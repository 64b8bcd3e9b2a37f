// Package store provides the durable, backend-agnostic record store for
// FlightMode sessions and user profiles.
//
// Two backends implement the same contract:
//   - SQLiteStore: embedded SQLite (ncruces/go-sqlite3) with WAL mode.
//     This is the native backend and executes real SQL queries.
//   - DocStore: a JSON document persisted to a single file, queried
//     through the typed translator in store/query. This is the fallback
//     when SQLite cannot be opened.
//
// Backend selection happens once in Open. Callers never branch on backend
// identity; both backends produce identical observable behavior for every
// operation in the Store interface.
package store

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/stats"
	"github.com/aadityasamani/FlightMode/internal/store/query"
)

// ErrNotFound indicates a point lookup matched no record.
var ErrNotFound = errors.New("record not found")

// DefaultLimit caps session list reads when the caller does not set one.
const DefaultLimit = 100

// ListOptions configures SessionsByUser.
type ListOptions struct {
	// Status filters to a single status (empty = all statuses).
	Status schema.Status
	// Limit caps the number of results (0 = DefaultLimit).
	Limit int
	// Order sorts by start time (default OrderStartTimeDesc).
	Order query.Order
}

// normalize applies the documented defaults.
func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Order == query.OrderNone {
		o.Order = query.OrderStartTimeDesc
	}
	return o
}

// Patch describes an in-place session update. Only these three fields are
// mutable; everything else on a session is fixed at insert time. A nil
// field leaves the column untouched.
type Patch struct {
	EndTime        *string
	Status         *schema.Status
	SyncedToRemote *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.EndTime == nil && p.Status == nil && p.SyncedToRemote == nil
}

// Store is the local persistence contract shared by both backends.
//
// All operations are per-call atomic; there is no multi-call transaction
// support. A caller performing read-then-write must tolerate interleaving
// from the sync engine between the two steps.
type Store interface {
	// InsertSession validates the session, assigns the next local id and
	// writes the record. Status defaults to completed and CreatedAt is set
	// once at insert. Returns the assigned id.
	InsertSession(ctx context.Context, s schema.Session) (int64, error)

	// GetSessionByID returns the record or ErrNotFound.
	GetSessionByID(ctx context.Context, id int64) (*schema.Session, error)

	// SessionsByUser returns the user's sessions, optionally filtered by
	// status, ordered by start time, truncated to the limit. Ordering is
	// applied after filtering, limiting after ordering.
	SessionsByUser(ctx context.Context, userID string, opts ListOptions) ([]schema.Session, error)

	// UpdateSession applies the patch to the record with the given id and
	// returns the number of rows affected: zero when the id does not exist
	// or the patch is empty.
	UpdateSession(ctx context.Context, id int64, patch Patch) (int64, error)

	// UnsyncedSessions returns the user's completed sessions that have not
	// been confirmed at the remote store. In-progress and abandoned
	// sessions are never selected.
	UnsyncedSessions(ctx context.Context, userID string) ([]schema.Session, error)

	// MarkSynced flips the record's sync flag to true.
	MarkSynced(ctx context.Context, id int64) error

	// SaveUser upserts a user profile, refreshing LastUpdated.
	SaveUser(ctx context.Context, u schema.UserProfile) error

	// GetUser returns the profile or ErrNotFound.
	GetUser(ctx context.Context, id string) (*schema.UserProfile, error)

	// Stats summarizes the user's completed sessions.
	Stats(ctx context.Context, userID string) (stats.Stats, error)

	// Native reports whether the embedded SQLite backend is engaged.
	Native() bool

	// Close releases the backend handle.
	Close() error
}

const (
	sqliteFile   = "flightmode.db"
	fallbackFile = "flightmode_store.json"
)

// Open selects and initializes a backend under dir.
//
// It tries the embedded SQLite backend first; if opening or schema
// creation fails for any reason the failure is logged and the JSON
// document fallback is selected instead. Open never reports backend
// selection as an error to the caller, so the store is always writable.
// Idempotent: reopening the same directory sees previously written
// records.
//
// If logger is nil, a default logger writing to stderr is used.
func Open(dir string, logger *log.Logger) Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Printf("Cannot create data directory %s: %v (using fallback)", dir, err)
		return openFallback(filepath.Join(dir, fallbackFile), logger)
	}

	db, err := OpenSQLite(filepath.Join(dir, sqliteFile))
	if err != nil {
		logger.Printf("SQLite backend unavailable: %v (using fallback)", err)
		return openFallback(filepath.Join(dir, fallbackFile), logger)
	}

	logger.Printf("SQLite backend engaged at %s", filepath.Join(dir, sqliteFile))
	return db
}

// openFallback never fails: a load error starts from an empty document.
func openFallback(path string, logger *log.Logger) Store {
	ds, err := OpenDocStore(path, logger)
	if err != nil {
		logger.Printf("Fallback load failed: %v (starting empty)", err)
		ds = NewEmptyDocStore(path, logger)
	}
	logger.Printf("Document fallback engaged at %s", path)
	return ds
}
