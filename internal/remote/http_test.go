package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aadityasamani/FlightMode/internal/schema"
)

// docServer is a minimal in-memory document API used to exercise the
// HTTP client end to end.
type docServer struct {
	mu       sync.Mutex
	sessions map[string]SessionDoc
	users    map[string]UserDoc
	methods  []string
}

func newDocServer() *docServer {
	return &docServer{
		sessions: make(map[string]SessionDoc),
		users:    make(map[string]UserDoc),
	}
}

func (ds *docServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.methods = append(ds.methods, r.Method)

	const sessionsPrefix = "/sessions/"
	const usersPrefix = "/users/"

	switch {
	case len(r.URL.Path) > len(sessionsPrefix) && r.URL.Path[:len(sessionsPrefix)] == sessionsPrefix:
		key := r.URL.Path[len(sessionsPrefix):]
		switch r.Method {
		case http.MethodGet:
			doc, ok := ds.sessions[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(doc)
		case http.MethodPut, http.MethodPatch:
			var doc SessionDoc
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ds.sessions[key] = doc
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case len(r.URL.Path) > len(usersPrefix) && r.URL.Path[:len(usersPrefix)] == usersPrefix:
		var doc UserDoc
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ds.users[r.URL.Path[len(usersPrefix):]] = doc
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func TestHTTPClient_GetSessionAbsent(t *testing.T) {
	srv := httptest.NewServer(newDocServer())
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	doc, found, err := c.GetSession(context.Background(), "alice_1")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if found || doc != nil {
		t.Errorf("GetSession(absent) = (%v, %v), want (nil, false)", doc, found)
	}
}

func TestHTTPClient_PutThenGet(t *testing.T) {
	srv := httptest.NewServer(newDocServer())
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token-123")
	end := "2024-01-01T10:00:00Z"
	doc := SessionDoc{ID: 1, UserID: "alice", DurationMinutes: 25, StartTime: "2024-01-01T09:00:00Z", EndTime: &end, Status: "completed", LocalID: 1}

	if err := c.PutSession(context.Background(), "alice_1", doc, false); err != nil {
		t.Fatalf("PutSession() failed: %v", err)
	}

	got, found, err := c.GetSession(context.Background(), "alice_1")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if !found {
		t.Fatal("GetSession() found = false after put")
	}
	if got.UserID != "alice" || got.LocalID != 1 {
		t.Errorf("GetSession() = %+v", got)
	}
	if got.SyncedAt == "" {
		t.Error("SyncedAt should be stamped at write time")
	}
	if got.EndTime == nil || *got.EndTime != end {
		t.Errorf("EndTime = %v, want %q", got.EndTime, end)
	}
}

func TestHTTPClient_MergeUsesPatch(t *testing.T) {
	backend := newDocServer()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	if err := c.PutSession(context.Background(), "alice_1", SessionDoc{ID: 1}, true); err != nil {
		t.Fatalf("PutSession(merge) failed: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.methods) != 1 || backend.methods[0] != http.MethodPatch {
		t.Errorf("methods = %v, want single PATCH", backend.methods)
	}
}

func TestHTTPClient_PutUser(t *testing.T) {
	backend := newDocServer()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	doc := DocFromUser(schema.UserProfile{ID: "alice", DisplayName: "Alice"})
	if err := c.PutUser(context.Background(), "alice", doc); err != nil {
		t.Fatalf("PutUser() failed: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if got := backend.users["alice"]; got.DisplayName != "Alice" {
		t.Errorf("stored user = %+v", got)
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey("alice", 7); got != "alice_7" {
		t.Errorf("SessionKey() = %q, want alice_7", got)
	}
}

func TestDocFromSession_Defaults(t *testing.T) {
	s := schema.Session{ID: 3, UserID: "alice", DurationMinutes: 25, StartTime: "2024-01-01T09:00:00Z"}
	doc := DocFromSession(s, "alice")
	if doc.Status != string(schema.StatusCompleted) {
		t.Errorf("Status = %q, want completed default", doc.Status)
	}
	if doc.CreatedAt != s.StartTime {
		t.Errorf("CreatedAt = %q, want start time fallback", doc.CreatedAt)
	}
	if doc.LocalID != 3 || doc.ID != 3 {
		t.Errorf("ids = (%d, %d), want (3, 3)", doc.ID, doc.LocalID)
	}
}
