package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/stats"
	"github.com/aadityasamani/FlightMode/internal/store/query"
)

// document is the on-disk shape of the fallback store: the two collections
// from the SQLite schema held in one structured blob.
type document struct {
	Sessions []schema.Session     `json:"focus_sessions"`
	Users    []schema.UserProfile `json:"users"`
}

// DocStore is the fallback backend: the full record set lives in memory
// and is persisted as a JSON document after every mutation. Reads go
// through the typed query translator so filter/order/limit semantics match
// the SQLite backend exactly.
type DocStore struct {
	path   string
	logger *log.Logger

	mu   sync.RWMutex
	data document
}

var _ Store = (*DocStore)(nil)

// OpenDocStore loads the document at path, or initializes an empty one if
// the file does not exist yet. A corrupt or unreadable file is an error;
// the factory handles it by starting empty.
func OpenDocStore(path string, logger *log.Logger) (*DocStore, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	ds := &DocStore{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store document: %w", err)
	}
	if err := json.Unmarshal(raw, &ds.data); err != nil {
		return nil, fmt.Errorf("failed to parse store document: %w", err)
	}

	return ds, nil
}

// NewEmptyDocStore returns a fallback store with no records, keeping path
// so later mutations still persist.
func NewEmptyDocStore(path string, logger *log.Logger) *DocStore {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &DocStore{path: path, logger: logger}
}

// Native implements Store.
func (ds *DocStore) Native() bool { return false }

// Close implements Store. The document is already durable after every
// mutation, so there is nothing to flush.
func (ds *DocStore) Close() error { return nil }

// persist writes the document to disk. Called with the write lock held.
// Write failures are logged, not returned: the in-memory state is still
// valid and the caller's mutation has already been applied.
func (ds *DocStore) persist() {
	raw, err := json.MarshalIndent(&ds.data, "", "  ")
	if err != nil {
		ds.logger.Printf("Failed to encode store document: %v", err)
		return
	}

	tmp := ds.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		ds.logger.Printf("Failed to write store document: %v", err)
		return
	}
	if err := os.Rename(tmp, ds.path); err != nil {
		ds.logger.Printf("Failed to replace store document: %v", err)
	}
}

// nextID assigns max existing id + 1. Ids are never reused: the max is
// taken over all records, which never get deleted.
func (ds *DocStore) nextID() int64 {
	var max int64
	for _, s := range ds.data.Sessions {
		if s.ID > max {
			max = s.ID
		}
	}
	return max + 1
}

// InsertSession implements Store.
func (ds *DocStore) InsertSession(ctx context.Context, sess schema.Session) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := sess.Validate(); err != nil {
		return 0, fmt.Errorf("invalid session: %w", err)
	}
	if sess.Status == "" {
		sess.Status = schema.StatusCompleted
	}
	if sess.CreatedAt == "" {
		sess.CreatedAt = schema.FormatTime(time.Now())
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	sess.ID = ds.nextID()
	ds.data.Sessions = append(ds.data.Sessions, sess)
	ds.persist()

	return sess.ID, nil
}

// GetSessionByID implements Store.
func (ds *DocStore) GetSessionByID(ctx context.Context, id int64) (*schema.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	results, err := query.Apply(ds.data.Sessions, query.Query{
		Filters: []query.Filter{query.ByID(id)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return &results[0], nil
}

// SessionsByUser implements Store.
func (ds *DocStore) SessionsByUser(ctx context.Context, userID string, opts ListOptions) ([]schema.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.normalize()

	filters := []query.Filter{query.ByUser(userID)}
	if opts.Status != "" {
		filters = append(filters, query.ByStatus(opts.Status))
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return query.Apply(ds.data.Sessions, query.Query{
		Filters: filters,
		Order:   opts.Order,
		Limit:   opts.Limit,
	})
}

// UpdateSession implements Store.
func (ds *DocStore) UpdateSession(ctx context.Context, id int64, patch Patch) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if patch.Empty() {
		return 0, nil
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return 0, fmt.Errorf("invalid status %q", *patch.Status)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	for i := range ds.data.Sessions {
		if ds.data.Sessions[i].ID != id {
			continue
		}
		if patch.EndTime != nil {
			ds.data.Sessions[i].EndTime = patch.EndTime
		}
		if patch.Status != nil {
			ds.data.Sessions[i].Status = *patch.Status
		}
		if patch.SyncedToRemote != nil {
			ds.data.Sessions[i].SyncedToRemote = *patch.SyncedToRemote
		}
		ds.persist()
		return 1, nil
	}

	return 0, nil
}

// UnsyncedSessions implements Store.
func (ds *DocStore) UnsyncedSessions(ctx context.Context, userID string) ([]schema.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return query.Apply(ds.data.Sessions, query.Query{
		Filters: []query.Filter{
			query.ByUser(userID),
			query.ByStatus(schema.StatusCompleted),
			query.BySynced(false),
		},
	})
}

// MarkSynced implements Store.
func (ds *DocStore) MarkSynced(ctx context.Context, id int64) error {
	synced := true
	_, err := ds.UpdateSession(ctx, id, Patch{SyncedToRemote: &synced})
	return err
}

// SaveUser implements Store.
func (ds *DocStore) SaveUser(ctx context.Context, u schema.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	u.LastUpdated = schema.FormatTime(time.Now())

	ds.mu.Lock()
	defer ds.mu.Unlock()

	for i := range ds.data.Users {
		if ds.data.Users[i].ID == u.ID {
			ds.data.Users[i] = u
			ds.persist()
			return nil
		}
	}
	ds.data.Users = append(ds.data.Users, u)
	ds.persist()
	return nil
}

// GetUser implements Store.
func (ds *DocStore) GetUser(ctx context.Context, id string) (*schema.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	for i := range ds.data.Users {
		if ds.data.Users[i].ID == id {
			u := ds.data.Users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// Stats implements Store.
func (ds *DocStore) Stats(ctx context.Context, userID string) (stats.Stats, error) {
	sessions, err := ds.SessionsByUser(ctx, userID, ListOptions{
		Status: schema.StatusCompleted,
		Limit:  1000,
	})
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Compute(sessions, time.Now()), nil
}

// Path returns the document file location, used by the daemon's watcher.
func (ds *DocStore) Path() string { return ds.path }
