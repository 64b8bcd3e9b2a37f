package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/stats"
	"github.com/aadityasamani/FlightMode/internal/store/query"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the native backend: embedded SQLite with WAL mode.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and ensures the schema.
//
// The database runs in embedded mode with WAL for concurrent reads. The
// caller MUST call Close() when done. Unlike Open, this constructor does
// return errors: the factory uses them to decide on fallback.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteStore{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the two tables and four indexes. Idempotent.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS focus_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		objective TEXT,
		from_code TEXT,
		to_code TEXT,
		seat TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT,
		status TEXT NOT NULL DEFAULT 'completed',
		created_at TEXT NOT NULL,
		synced_to_remote INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT,
		email TEXT,
		photo_url TEXT,
		last_updated TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON focus_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON focus_sessions(start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON focus_sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_synced ON focus_sessions(synced_to_remote);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Native implements Store.
func (s *SQLiteStore) Native() bool { return true }

// Close closes the database connection after a WAL checkpoint.
func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InsertSession implements Store.
func (s *SQLiteStore) InsertSession(ctx context.Context, sess schema.Session) (int64, error) {
	if err := sess.Validate(); err != nil {
		return 0, fmt.Errorf("invalid session: %w", err)
	}
	if sess.Status == "" {
		sess.Status = schema.StatusCompleted
	}
	if sess.CreatedAt == "" {
		sess.CreatedAt = schema.FormatTime(time.Now())
	}

	q := `
	INSERT INTO focus_sessions (
		user_id, duration_minutes, objective, from_code, to_code, seat,
		start_time, end_time, status, created_at, synced_to_remote
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.conn.ExecContext(ctx, q,
		sess.UserID,
		sess.DurationMinutes,
		optToNull(sess.Objective),
		optToNull(sess.FromCode),
		optToNull(sess.ToCode),
		optToNull(sess.Seat),
		sess.StartTime,
		optToNull(sess.EndTime),
		string(sess.Status),
		sess.CreatedAt,
		boolToInt(sess.SyncedToRemote),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

const sessionColumns = `id, user_id, duration_minutes, objective, from_code, to_code, seat,
	start_time, end_time, status, created_at, synced_to_remote`

// GetSessionByID implements Store.
func (s *SQLiteStore) GetSessionByID(ctx context.Context, id int64) (*schema.Session, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM focus_sessions WHERE id = ? LIMIT 1`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return sess, nil
}

// SessionsByUser implements Store.
func (s *SQLiteStore) SessionsByUser(ctx context.Context, userID string, opts ListOptions) ([]schema.Session, error) {
	opts = opts.normalize()

	conditions := []string{"user_id = ?"}
	args := []interface{}{userID}

	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}

	order := "DESC"
	if opts.Order == query.OrderStartTimeAsc {
		order = "ASC"
	}

	q := `SELECT ` + sessionColumns + ` FROM focus_sessions
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY start_time ` + order + ` LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// UpdateSession implements Store.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id int64, patch Patch) (int64, error) {
	if patch.Empty() {
		return 0, nil
	}

	var fields []string
	var args []interface{}

	if patch.EndTime != nil {
		fields = append(fields, "end_time = ?")
		args = append(args, *patch.EndTime)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return 0, fmt.Errorf("invalid status %q", *patch.Status)
		}
		fields = append(fields, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.SyncedToRemote != nil {
		fields = append(fields, "synced_to_remote = ?")
		args = append(args, boolToInt(*patch.SyncedToRemote))
	}

	args = append(args, id)
	q := `UPDATE focus_sessions SET ` + strings.Join(fields, ", ") + ` WHERE id = ?`

	res, err := s.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update session %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// UnsyncedSessions implements Store.
func (s *SQLiteStore) UnsyncedSessions(ctx context.Context, userID string) ([]schema.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM focus_sessions
		WHERE user_id = ? AND synced_to_remote = 0 AND status = ?`

	rows, err := s.conn.QueryContext(ctx, q, userID, string(schema.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// MarkSynced implements Store.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64) error {
	synced := true
	_, err := s.UpdateSession(ctx, id, Patch{SyncedToRemote: &synced})
	return err
}

// SaveUser implements Store.
func (s *SQLiteStore) SaveUser(ctx context.Context, u schema.UserProfile) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	u.LastUpdated = schema.FormatTime(time.Now())

	q := `
	INSERT INTO users (id, display_name, email, photo_url, last_updated)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		display_name = excluded.display_name,
		email = excluded.email,
		photo_url = excluded.photo_url,
		last_updated = excluded.last_updated
	`

	if _, err := s.conn.ExecContext(ctx, q, u.ID, u.DisplayName, u.Email, u.PhotoURL, u.LastUpdated); err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser implements Store.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*schema.UserProfile, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, display_name, email, photo_url, last_updated FROM users WHERE id = ?`, id)

	var u schema.UserProfile
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PhotoURL, &u.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context, userID string) (stats.Stats, error) {
	sessions, err := s.SessionsByUser(ctx, userID, ListOptions{
		Status: schema.StatusCompleted,
		Limit:  1000,
	})
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Compute(sessions, time.Now()), nil
}

// scanner abstracts sql.Row and sql.Rows for scanSession.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSession reads one session row.
func scanSession(row scanner) (*schema.Session, error) {
	var sess schema.Session
	var objective, fromCode, toCode, seat, endTime sql.NullString
	var status string
	var synced int

	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.DurationMinutes,
		&objective,
		&fromCode,
		&toCode,
		&seat,
		&sess.StartTime,
		&endTime,
		&status,
		&sess.CreatedAt,
		&synced,
	)
	if err != nil {
		return nil, err
	}

	sess.Objective = nullToOpt(objective)
	sess.FromCode = nullToOpt(fromCode)
	sess.ToCode = nullToOpt(toCode)
	sess.Seat = nullToOpt(seat)
	sess.EndTime = nullToOpt(endTime)
	sess.Status = schema.Status(status)
	sess.SyncedToRemote = synced != 0

	return &sess, nil
}

// scanSessions reads all session rows from a query result.
func scanSessions(rows *sql.Rows) ([]schema.Session, error) {
	var sessions []schema.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// optToNull converts an optional string to a nullable SQL value.
func optToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullToOpt converts a nullable SQL value to an optional string.
func nullToOpt(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
