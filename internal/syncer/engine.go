// Package syncer reconciles completed-but-unsynced local sessions with
// the remote document store.
//
// Rules, in order:
//   - The local store is the source of truth; the remote store is backup
//     and cross-device visibility only.
//   - Sync never blocks the caller's primary workflow. Background runs
//     absorb every failure into logged counts.
//   - Conflict resolution is last-write-wins by end time: the copy with
//     the later (or equal) end time survives; a nil end time sorts
//     earliest.
//
// Only one run may be in flight at a time process-wide. A request to
// start while running is dropped, not queued.
package syncer

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aadityasamani/FlightMode/internal/connectivity"
	"github.com/aadityasamani/FlightMode/internal/identity"
	"github.com/aadityasamani/FlightMode/internal/remote"
	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/store"
)

// Skip reasons reported in Result.Reason.
const (
	ReasonAlreadySyncing = "already_syncing"
	ReasonOffline        = "offline"
	ReasonNoAuth         = "no_auth"
	ReasonNoUnsynced     = "no_unsynced"
)

// Result summarizes one sync run. A skipped run carries a Reason and zero
// synced/failed counts.
type Result struct {
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	Total   int    `json:"total"`
	Reason  string `json:"reason,omitempty"`
}

// Status is the observable engine state, side-effect free.
type Status struct {
	IsSyncing    bool      `json:"is_syncing"`
	LastSyncTime time.Time `json:"last_sync_time"`
	IsOnline     bool      `json:"is_online"`
}

// Engine owns the sync lifecycle: one-shot runs, detached background
// runs, the periodic schedule, and the connectivity trigger.
//
// The run-exclusion flag is a real mutex-guarded bool rather than a bare
// variable: unlike the single-threaded environment this design came from,
// Go callers may trigger runs from arbitrary goroutines.
type Engine struct {
	store    store.Store
	remote   remote.Client
	monitor  connectivity.Monitor
	identity identity.Provider
	logger   *log.Logger

	// onResult, when set, observes every completed (non-skipped) run.
	onResult func(Result)

	mu       sync.Mutex
	syncing  bool
	lastSync time.Time

	periodicMu     sync.Mutex
	periodicCancel context.CancelFunc

	watchOnce   sync.Once
	watchMu     sync.Mutex
	watchCancel context.CancelFunc

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger; nil keeps the stderr default.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithResultHook registers a callback invoked after every completed run,
// including empty ones. Skipped runs (already syncing, offline, no auth)
// do not fire the hook.
func WithResultHook(hook func(Result)) Option {
	return func(e *Engine) { e.onResult = hook }
}

// New creates the engine. All collaborators are required except options.
func New(st store.Store, rc remote.Client, mon connectivity.Monitor, idp identity.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		remote:   rc,
		monitor:  mon,
		identity: idp,
		logger:   log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncUnsynced performs one sync run for the given user, resolving the
// identity provider when userID is empty.
//
// It never returns an error: every failure path is absorbed into the
// Result. Per-record failures increment Failed and the batch continues;
// one record can never abort the rest.
func (e *Engine) SyncUnsynced(ctx context.Context, userID string) Result {
	if !e.acquire() {
		e.logger.Printf("Sync already in progress, skipping")
		return Result{Skipped: 1, Reason: ReasonAlreadySyncing}
	}
	defer e.release()

	if !e.monitor.Online() {
		e.logger.Printf("Offline, skipping sync")
		return Result{Skipped: 1, Reason: ReasonOffline}
	}

	if userID == "" {
		resolved, err := e.identity.CurrentUserID()
		if err != nil {
			e.logger.Printf("No authenticated user, skipping sync")
			return Result{Skipped: 1, Reason: ReasonNoAuth}
		}
		userID = resolved
	}

	sessions, err := e.store.UnsyncedSessions(ctx, userID)
	if err != nil {
		// Treat a store read failure like an empty set: the next run
		// retries, and nothing was lost.
		e.logger.Printf("Failed to read unsynced sessions: %v", err)
		sessions = nil
	}

	if len(sessions) == 0 {
		e.recordRun()
		return e.finish(Result{Reason: ReasonNoUnsynced})
	}

	e.logger.Printf("Found %d unsynced session(s), starting sync", len(sessions))

	res := Result{Total: len(sessions)}
	for _, sess := range sessions {
		if err := e.pushSession(ctx, &sess, userID); err != nil {
			e.logger.Printf("Failed to sync session %d: %v", sess.ID, err)
			res.Failed++
			continue
		}
		if err := e.store.MarkSynced(ctx, sess.ID); err != nil {
			// The remote copy exists; the flag will be set on a later run.
			e.logger.Printf("Failed to mark session %d synced: %v", sess.ID, err)
		}
		res.Synced++
	}

	e.pushProfile(ctx, userID)

	e.recordRun()
	e.logger.Printf("Sync complete: %d synced, %d failed", res.Synced, res.Failed)
	return e.finish(res)
}

// pushProfile mirrors the local user profile to the remote store.
// Best-effort: a missing profile or a failed write only logs.
func (e *Engine) pushProfile(ctx context.Context, userID string) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Printf("Failed to read user profile: %v", err)
		}
		return
	}
	if err := e.remote.PutUser(ctx, userID, remote.DocFromUser(*u)); err != nil {
		e.logger.Printf("Failed to sync user profile: %v", err)
	}
}

// pushSession reconciles one local record with its remote slot.
func (e *Engine) pushSession(ctx context.Context, sess *schema.Session, userID string) error {
	key := remote.SessionKey(userID, sess.ID)
	doc := remote.DocFromSession(*sess, userID)

	existing, found, err := e.remote.GetSession(ctx, key)
	if err != nil {
		return err
	}

	if !found {
		if err := e.remote.PutSession(ctx, key, doc, false); err != nil {
			return err
		}
		e.logger.Printf("Synced session %d (created)", sess.ID)
		return nil
	}

	// Last write wins by end time. Local >= remote overwrites with merge
	// semantics; a strictly newer remote copy is authoritative, so the
	// write is skipped but the record still counts as synced.
	if !sess.EndedAt().Before(existing.EndedAt()) {
		if err := e.remote.PutSession(ctx, key, doc, true); err != nil {
			return err
		}
		e.logger.Printf("Synced session %d (updated existing)", sess.ID)
		return nil
	}

	e.logger.Printf("Skipped write for session %d: remote copy is newer", sess.ID)
	return nil
}

// TriggerBackgroundSync runs a sync in a detached goroutine. The caller
// gets nothing back by design; outcomes are logged and, via the result
// hook, observable from the dashboard.
func (e *Engine) TriggerBackgroundSync(userID string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.SyncUnsynced(context.Background(), userID)
	}()
}

// StartPeriodicSync cancels any existing schedule, runs once immediately,
// then re-runs on the interval. Only one schedule is ever active.
func (e *Engine) StartPeriodicSync(interval time.Duration, userID string) {
	e.periodicMu.Lock()
	defer e.periodicMu.Unlock()

	if e.periodicCancel != nil {
		e.periodicCancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.periodicCancel = cancel

	e.TriggerBackgroundSync(userID)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.TriggerBackgroundSync(userID)
			}
		}
	}()

	e.logger.Printf("Periodic sync started (every %v)", interval)
}

// StopPeriodicSync cancels the active schedule. Idempotent; an in-flight
// run is allowed to finish.
func (e *Engine) StopPeriodicSync() {
	e.periodicMu.Lock()
	defer e.periodicMu.Unlock()

	if e.periodicCancel != nil {
		e.periodicCancel()
		e.periodicCancel = nil
		e.logger.Printf("Periodic sync stopped")
	}
}

// StartConnectivityTrigger subscribes to the monitor's transition stream
// and fires a background sync whenever connectivity comes back. Safe to
// call once; subsequent calls are no-ops.
func (e *Engine) StartConnectivityTrigger(userID string) {
	e.watchOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		e.watchMu.Lock()
		e.watchCancel = cancel
		e.watchMu.Unlock()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case online, ok := <-e.monitor.Events():
					if !ok {
						return
					}
					if online {
						e.logger.Printf("Came online, triggering sync")
						e.TriggerBackgroundSync(userID)
					}
				}
			}
		}()
	})
}

// Close stops the periodic schedule and the connectivity trigger, then
// waits for any in-flight background runs to finish.
func (e *Engine) Close() {
	e.StopPeriodicSync()
	e.watchMu.Lock()
	cancel := e.watchCancel
	e.watchMu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Status implements the observation surface: current state only, no side
// effects.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		IsSyncing:    e.syncing,
		LastSyncTime: e.lastSync,
		IsOnline:     e.monitor.Online(),
	}
}

// acquire takes the run-exclusion flag; false means a run is in flight.
func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	e.syncing = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

func (e *Engine) recordRun() {
	e.mu.Lock()
	e.lastSync = time.Now()
	e.mu.Unlock()
}

func (e *Engine) finish(res Result) Result {
	if e.onResult != nil {
		e.onResult(res)
	}
	return res
}
