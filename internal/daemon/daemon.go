// Package daemon runs the background half of the persistence layer.
//
// The daemon:
// 1. Keeps the periodic sync schedule running
// 2. Fires a sync when connectivity comes back
// 3. Watches the data directory and syncs after external writes
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Trigger is the slice of the sync engine the daemon drives.
type Trigger interface {
	TriggerBackgroundSync(userID string)
	StartPeriodicSync(interval time.Duration, userID string)
	StopPeriodicSync()
	StartConnectivityTrigger(userID string)
}

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often the periodic sync runs
	SyncInterval time.Duration

	// DebounceInterval is how long to wait before reacting to file changes
	// This batches rapid updates together
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon wires the sync engine's schedules to the filesystem and the
// connectivity signal.
type Daemon struct {
	trigger Trigger
	dataDir string
	userID  string
	config  *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> timestamp
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// The daemon requires:
//   - trigger: the sync engine (or equivalent)
//   - dataDir: the directory holding the local store files
//   - userID: the user whose sessions get synced
//
// Use Start() to begin watching and syncing.
func New(trigger Trigger, dataDir, userID string) (*Daemon, error) {
	return NewWithConfig(trigger, dataDir, userID, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(trigger Trigger, dataDir, userID string, config *Config) (*Daemon, error) {
	if trigger == nil {
		return nil, fmt.Errorf("trigger cannot be nil")
	}
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		trigger:     trigger,
		dataDir:     dataDir,
		userID:      userID,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Start the periodic sync schedule (which runs once immediately)
// 2. Subscribe to connectivity transitions
// 3. Watch the data directory and sync after external writes, debounced
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.watcher.Add(d.dataDir); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.dataDir)

	d.trigger.StartPeriodicSync(d.config.SyncInterval, d.userID)
	d.trigger.StartConnectivityTrigger(d.userID)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.trigger.StopPeriodicSync()

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create, Write, Rename
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			if !isStoreFile(event.Name) {
				continue
			}

			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// isStoreFile reports whether a path looks like one of the local store's
// data files.
func isStoreFile(path string) bool {
	switch filepath.Ext(path) {
	case ".json", ".db", ".db-wal", ".db-shm":
		return true
	}
	return false
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue drains settled changes into a single sync trigger.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges triggers one sync if any queued change has
// settled past the debounce window.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()

	now := time.Now()
	settled := 0
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		delete(d.changeQueue, path)
		settled++
	}
	d.changeQueueMu.Unlock()

	if settled == 0 {
		return
	}

	d.config.Logger.Printf("Data changed (%d file(s)), triggering sync", settled)
	d.trigger.TriggerBackgroundSync(d.userID)
}
