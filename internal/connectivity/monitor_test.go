package connectivity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbeMonitor_OnlineAgainstLiveEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewProbeMonitor(srv.URL, time.Hour, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if !m.Online() {
		t.Error("Online() = false against a live endpoint")
	}
}

func TestProbeMonitor_OfflineAgainstDeadEndpoint(t *testing.T) {
	// Reserve an address, then close it so nothing is listening.
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	m := NewProbeMonitor(dead, time.Hour, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if m.Online() {
		t.Error("Online() = true against a dead endpoint")
	}
}

func TestProbeMonitor_ErrorStatusStillCountsAsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewProbeMonitor(srv.URL, time.Hour, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if !m.Online() {
		t.Error("a 500 response still proves connectivity; Online() should be true")
	}
}

func TestProbeMonitor_EmitsTransition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	m := NewProbeMonitor(srv.URL, 10*time.Millisecond, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	// Kill the endpoint; the polling loop should notice and emit false.
	srv.Close()

	select {
	case online := <-m.Events():
		if online {
			t.Error("Events() emitted true, want online->offline transition")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transition event emitted")
	}
}

func TestProbeMonitor_NoEventOnStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewProbeMonitor(srv.URL, 10*time.Millisecond, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if !m.Online() {
		t.Fatal("Online() = false against a live endpoint")
	}

	// Starting online seeds the state silently; repeated online probes
	// are not transitions, so nothing should reach Events().
	select {
	case online := <-m.Events():
		t.Errorf("Events() emitted %v on startup, want no event", online)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProbeMonitor_StopIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := NewProbeMonitor(srv.URL, time.Hour, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	m.Stop()
	m.Stop()
}
