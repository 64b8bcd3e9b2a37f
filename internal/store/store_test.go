package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/store/query"
)

// backends lists both implementations; every contract test runs against
// each so observable behavior cannot drift between them.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() failed: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"fallback": func(t *testing.T) Store {
			s, err := OpenDocStore(filepath.Join(t.TempDir(), "store.json"), nil)
			if err != nil {
				t.Fatalf("OpenDocStore() failed: %v", err)
			}
			return s
		},
	}
}

func testSession(userID string, start time.Time) schema.Session {
	return schema.Session{
		UserID:          userID,
		DurationMinutes: 25,
		StartTime:       schema.FormatTime(start),
		Status:          schema.StatusCompleted,
	}
}

func TestInsertSession_AssignsSequentialIDs(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

			for i := 1; i <= 5; i++ {
				id, err := s.InsertSession(ctx, testSession("alice", start.Add(time.Duration(i)*time.Hour)))
				if err != nil {
					t.Fatalf("InsertSession() #%d failed: %v", i, err)
				}
				if id != int64(i) {
					t.Errorf("InsertSession() #%d id = %d, want %d", i, id, i)
				}
			}
		})
	}
}

func TestInsertSession_Validation(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			_, err := s.InsertSession(ctx, schema.Session{DurationMinutes: 25, StartTime: "2024-01-01T09:00:00Z"})
			if err == nil {
				t.Error("InsertSession() without user_id should fail")
			}

			_, err = s.InsertSession(ctx, schema.Session{UserID: "alice", StartTime: "2024-01-01T09:00:00Z"})
			if err == nil {
				t.Error("InsertSession() without duration should fail")
			}
		})
	}
}

func TestInsertSession_Defaults(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			sess := testSession("alice", time.Now())
			sess.Status = ""
			id, err := s.InsertSession(ctx, sess)
			if err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}

			got, err := s.GetSessionByID(ctx, id)
			if err != nil {
				t.Fatalf("GetSessionByID() failed: %v", err)
			}
			if got.Status != schema.StatusCompleted {
				t.Errorf("Status = %q, want %q", got.Status, schema.StatusCompleted)
			}
			if got.CreatedAt == "" {
				t.Error("CreatedAt should be set at insert")
			}
			if got.SyncedToRemote {
				t.Error("SyncedToRemote should default to false")
			}
			if got.EndTime != nil {
				t.Errorf("EndTime = %v, want nil", *got.EndTime)
			}
		})
	}
}

func TestGetSessionByID_NotFound(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			_, err := s.GetSessionByID(context.Background(), 42)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("GetSessionByID(42) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSessionsByUser_FilterOrderLimit(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

			// 3 completed + 1 abandoned for alice, 1 completed for bob
			for i := 0; i < 3; i++ {
				if _, err := s.InsertSession(ctx, testSession("alice", base.AddDate(0, 0, i))); err != nil {
					t.Fatalf("InsertSession() failed: %v", err)
				}
			}
			abandoned := testSession("alice", base.AddDate(0, 0, 10))
			abandoned.Status = schema.StatusAbandoned
			if _, err := s.InsertSession(ctx, abandoned); err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}
			if _, err := s.InsertSession(ctx, testSession("bob", base)); err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}

			got, err := s.SessionsByUser(ctx, "alice", ListOptions{
				Status: schema.StatusCompleted,
				Limit:  2,
			})
			if err != nil {
				t.Fatalf("SessionsByUser() failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("SessionsByUser() returned %d sessions, want 2", len(got))
			}
			// Newest start time first, and the abandoned session (which has
			// the newest start of all) must not appear.
			if got[0].StartedAt().Before(got[1].StartedAt()) {
				t.Error("results not in descending start time order")
			}
			for _, sess := range got {
				if sess.UserID != "alice" || sess.Status != schema.StatusCompleted {
					t.Errorf("unexpected session in results: %+v", sess)
				}
			}

			asc, err := s.SessionsByUser(ctx, "alice", ListOptions{Order: query.OrderStartTimeAsc})
			if err != nil {
				t.Fatalf("SessionsByUser(asc) failed: %v", err)
			}
			for i := 1; i < len(asc); i++ {
				if asc[i].StartedAt().Before(asc[i-1].StartedAt()) {
					t.Error("ascending order violated")
				}
			}
		})
	}
}

func TestUpdateSession_PatchWhitelist(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			id, err := s.InsertSession(ctx, testSession("alice", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
			if err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}
			before, err := s.GetSessionByID(ctx, id)
			if err != nil {
				t.Fatalf("GetSessionByID() failed: %v", err)
			}

			end := "2024-01-01T09:25:00Z"
			status := schema.StatusAbandoned
			affected, err := s.UpdateSession(ctx, id, Patch{EndTime: &end, Status: &status})
			if err != nil {
				t.Fatalf("UpdateSession() failed: %v", err)
			}
			if affected != 1 {
				t.Errorf("UpdateSession() affected = %d, want 1", affected)
			}

			after, err := s.GetSessionByID(ctx, id)
			if err != nil {
				t.Fatalf("GetSessionByID() failed: %v", err)
			}
			if after.EndTime == nil || *after.EndTime != end {
				t.Errorf("EndTime = %v, want %q", after.EndTime, end)
			}
			if after.Status != schema.StatusAbandoned {
				t.Errorf("Status = %q, want abandoned", after.Status)
			}
			// Everything outside the whitelist is untouched.
			if after.UserID != before.UserID || after.DurationMinutes != before.DurationMinutes ||
				after.CreatedAt != before.CreatedAt || after.StartTime != before.StartTime {
				t.Errorf("immutable fields changed: before=%+v after=%+v", before, after)
			}
		})
	}
}

func TestUpdateSession_NoOps(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			// Missing id
			end := "2024-01-01T09:25:00Z"
			affected, err := s.UpdateSession(ctx, 99, Patch{EndTime: &end})
			if err != nil {
				t.Fatalf("UpdateSession() failed: %v", err)
			}
			if affected != 0 {
				t.Errorf("UpdateSession(missing id) affected = %d, want 0", affected)
			}

			// Empty patch
			id, err := s.InsertSession(ctx, testSession("alice", time.Now()))
			if err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}
			affected, err = s.UpdateSession(ctx, id, Patch{})
			if err != nil {
				t.Fatalf("UpdateSession() failed: %v", err)
			}
			if affected != 0 {
				t.Errorf("UpdateSession(empty patch) affected = %d, want 0", affected)
			}
		})
	}
}

func TestUnsyncedSessions_Scope(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

			completedID, err := s.InsertSession(ctx, testSession("alice", base))
			if err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}

			inProgress := testSession("alice", base.Add(time.Hour))
			inProgress.Status = schema.StatusInProgress
			if _, err := s.InsertSession(ctx, inProgress); err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}

			abandoned := testSession("alice", base.Add(2*time.Hour))
			abandoned.Status = schema.StatusAbandoned
			if _, err := s.InsertSession(ctx, abandoned); err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}

			syncedID, err := s.InsertSession(ctx, testSession("alice", base.Add(3*time.Hour)))
			if err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}
			if err := s.MarkSynced(ctx, syncedID); err != nil {
				t.Fatalf("MarkSynced() failed: %v", err)
			}

			got, err := s.UnsyncedSessions(ctx, "alice")
			if err != nil {
				t.Fatalf("UnsyncedSessions() failed: %v", err)
			}
			if len(got) != 1 || got[0].ID != completedID {
				t.Errorf("UnsyncedSessions() = %+v, want only session %d", got, completedID)
			}
			for _, sess := range got {
				if sess.Status != schema.StatusCompleted || sess.SyncedToRemote {
					t.Errorf("UnsyncedSessions() returned out-of-scope session: %+v", sess)
				}
			}
		})
	}
}

func TestSaveUser_Upsert(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			u := schema.UserProfile{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"}
			if err := s.SaveUser(ctx, u); err != nil {
				t.Fatalf("SaveUser() failed: %v", err)
			}

			first, err := s.GetUser(ctx, "alice")
			if err != nil {
				t.Fatalf("GetUser() failed: %v", err)
			}
			if first.DisplayName != "Alice" || first.LastUpdated == "" {
				t.Errorf("GetUser() = %+v", first)
			}

			u.DisplayName = "Alice B."
			if err := s.SaveUser(ctx, u); err != nil {
				t.Fatalf("SaveUser() (upsert) failed: %v", err)
			}
			second, err := s.GetUser(ctx, "alice")
			if err != nil {
				t.Fatalf("GetUser() failed: %v", err)
			}
			if second.DisplayName != "Alice B." {
				t.Errorf("DisplayName = %q, want replaced value", second.DisplayName)
			}

			if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetUser(nobody) error = %v, want ErrNotFound", err)
			}
		})
	}
}

// Known gap, preserved deliberately: nothing stops a user from having two
// in-progress sessions at once. Enforcement is the caller's job.
func TestMultipleInProgressSessionsAllowed(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			for i := 0; i < 2; i++ {
				sess := testSession("alice", time.Now())
				sess.Status = schema.StatusInProgress
				if _, err := s.InsertSession(ctx, sess); err != nil {
					t.Fatalf("InsertSession() #%d failed: %v", i+1, err)
				}
			}

			got, err := s.SessionsByUser(ctx, "alice", ListOptions{Status: schema.StatusInProgress})
			if err != nil {
				t.Fatalf("SessionsByUser() failed: %v", err)
			}
			if len(got) != 2 {
				t.Errorf("got %d in-progress sessions, want 2 (gap is unenforced)", len(got))
			}
		})
	}
}

func TestStats(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			if _, err := s.InsertSession(ctx, testSession("alice", time.Now())); err != nil {
				t.Fatalf("InsertSession() failed: %v", err)
			}

			st, err := s.Stats(ctx, "alice")
			if err != nil {
				t.Fatalf("Stats() failed: %v", err)
			}
			if st.TotalFlights != 1 || st.TodayMinutes != 25 || st.StreakDays != 1 {
				t.Errorf("Stats() = %+v, want 1 flight / 25 min / 1 day streak", st)
			}
		})
	}
}
