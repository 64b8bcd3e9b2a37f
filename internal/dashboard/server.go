// Package dashboard provides a real-time WebSocket server for observing
// the persistence layer.
//
// The dashboard broadcasts sync run outcomes, engine status snapshots,
// and focus statistics to connected WebSocket clients.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/aadityasamani/FlightMode/internal/stats"
	"github.com/aadityasamani/FlightMode/internal/syncer"
)

// MessageType distinguishes the payloads on the broadcast stream.
type MessageType string

const (
	// MessageTypeSyncResult carries the outcome of a completed sync run.
	MessageTypeSyncResult MessageType = "sync_result"

	// MessageTypeStatus carries an engine status snapshot.
	MessageTypeStatus MessageType = "status"

	// MessageTypeStats carries updated focus statistics.
	MessageTypeStats MessageType = "stats"
)

// Message is the envelope every broadcast wears on the wire.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// writeTimeout bounds every send to a client; a stalled client is
// dropped rather than allowed to stall the broadcast loop.
const writeTimeout = 5 * time.Second

// Server fans dashboard messages out to WebSocket subscribers. The
// stream is one-way: clients only listen.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	// statusFn supplies the snapshot sent to newly connected clients.
	statusFn func() syncer.Status

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on; 0 picks a free port
	Port int

	// StatusFunc supplies the status snapshot for new clients (optional)
	StatusFunc func() syncer.Status

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer builds a dashboard server; call Start to begin serving.
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		statusFn:  config.StatusFunc,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start binds the listener and launches the serve and broadcast
// goroutines. It returns once the port is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go s.broadcastLoop()
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop disconnects all clients and shuts the HTTP server down, waiting
// for the background goroutines to drain.
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast queues a message for every connected client. A full queue
// drops the message; the dashboard is observation, not record.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// BroadcastSyncResult publishes the outcome of a sync run. Wired into the
// engine as its result hook.
func (s *Server) BroadcastSyncResult(res syncer.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Printf("Failed to marshal sync result: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeSyncResult, Data: data})
}

// BroadcastStats publishes updated focus statistics.
func (s *Server) BroadcastStats(st stats.Stats) {
	data, err := json.Marshal(st)
	if err != nil {
		s.logger.Printf("Failed to marshal stats: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeStats, Data: data})
}

// broadcastLoop serializes queued messages and delivers them until the
// server is stopped.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}
			s.deliver(data)
		}
	}
}

// deliver writes one encoded message to every client. The client set is
// snapshotted first so writes happen outside the lock; a failed write
// evicts that client.
func (s *Server) deliver(data []byte) {
	s.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clientsMu.RUnlock()

	for _, conn := range conns {
		if err := s.write(conn, data); err != nil {
			s.logger.Printf("Failed to send to client: %v", err)
			s.removeClient(conn)
		}
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// handleWebSocket upgrades the connection, registers the client and
// greets it with the current engine status so it does not have to wait
// for the next run.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("Client connected (total: %d)", total)

	welcome := Message{Type: MessageTypeStatus, Timestamp: time.Now()}
	if s.statusFn != nil {
		if data, err := json.Marshal(s.statusFn()); err == nil {
			welcome.Data = data
		}
	}
	if data, err := json.Marshal(welcome); err == nil {
		_ = s.write(conn, data)
	}

	go s.readLoop(conn)
}

// readLoop drains inbound frames until the client goes away. Client
// messages are ignored; the stream is one-way.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient deregisters and closes a connection. Safe to call more
// than once for the same connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, known := s.clients[conn]
	delete(s.clients, conn)
	total := len(s.clients)
	s.clientsMu.Unlock()

	if known {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", total)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>FlightMode Dashboard</title></head>
<body>
<h1>FlightMode Dashboard</h1>
<p>Subscribe at <code>ws://%s/ws</code> for sync and stats updates; health at <a href="/health">/health</a>.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the bound listen address, or the configured one if the
// server has not started.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount reports how many clients are currently connected.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
