// Package connectivity provides the ambient online/offline signal the
// sync engine consults before touching the network.
//
// The signal is best-effort by design: a stale "online" reading is
// re-validated implicitly by individual push failures during sync, so the
// monitor favors cheap probes over accuracy.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// Monitor exposes the current connectivity state and a transition stream.
type Monitor interface {
	// Online reports the most recent probe result.
	Online() bool

	// Events emits true when connectivity transitions offline->online and
	// false on the reverse transition. The channel is buffered; slow
	// consumers drop transitions rather than block the monitor.
	Events() <-chan bool
}

// ProbeMonitor polls an HTTP endpoint on a fixed interval and derives the
// online/offline state from whether the probe completes.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *log.Logger

	events chan bool
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	online  bool
	running bool
}

var _ Monitor = (*ProbeMonitor)(nil)

// NewProbeMonitor creates a monitor probing url every interval. The
// monitor must be started with Start() before it reflects real state.
//
// If logger is nil, a default logger writing to stderr is used.
func NewProbeMonitor(url string, interval time.Duration, logger *log.Logger) *ProbeMonitor {
	if logger == nil {
		logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	return &ProbeMonitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		events:   make(chan bool, 16),
		done:     make(chan struct{}),
	}
}

// Start runs one synchronous probe to seed the state, then begins the
// polling loop. The seed does not emit an event: only real transitions
// observed by the loop reach Events().
func (m *ProbeMonitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.mu.Unlock()

	initial := m.probe()
	m.mu.Lock()
	m.online = initial
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop ends the polling loop and waits for it to exit. Idempotent.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}

// Online implements Monitor.
func (m *ProbeMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Events implements Monitor.
func (m *ProbeMonitor) Events() <-chan bool {
	return m.events
}

func (m *ProbeMonitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.setOnline(m.probe())
		}
	}
}

// probe reports whether the endpoint answered at all. Any HTTP status
// counts as connectivity; only transport errors mean offline.
func (m *ProbeMonitor) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// setOnline records the probe result and emits a transition event when
// the state flips.
func (m *ProbeMonitor) setOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	if online {
		m.logger.Printf("Connectivity restored")
	} else {
		m.logger.Printf("Connectivity lost")
	}

	select {
	case m.events <- online:
	default:
		m.logger.Printf("Dropping connectivity event (consumer too slow)")
	}
}
