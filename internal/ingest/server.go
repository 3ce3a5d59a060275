// Package ingest runs the websocket listener that forwards inbound text
// frames, unparsed, into an unbounded queue consumed once per frame tick.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/pioneer-egui/timeline/internal/queue"
)

const (
	DefaultAddress       = "127.0.0.1:9001"
	DefaultWelcome       = "Connected to Pioneer eGUI"
	DefaultAcceptBackoff = 100 * time.Millisecond

	writeWait = 5 * time.Second
)

// Config holds listener settings.
type Config struct {
	Address       string
	Welcome       string
	AcceptBackoff time.Duration
}

// Message is one inbound text frame.
type Message struct {
	ConnID     string
	Payload    string
	ReceivedAt time.Time
}

// Server accepts websocket connections and queues every text frame they send.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	queue    *queue.Queue[Message]
	upgrader ws.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	conns    map[string]*ws.Conn
	listener net.Listener
	closed   bool
	done     chan struct{}
	handlers sync.WaitGroup
}

// New creates a server. Zero config fields take the package defaults.
func New(cfg Config, logger *slog.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Welcome == "" {
		cfg.Welcome = DefaultWelcome
	}
	if cfg.AcceptBackoff <= 0 {
		cfg.AcceptBackoff = DefaultAcceptBackoff
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		queue:  queue.New[Message](),
		upgrader: ws.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*ws.Conn),
		done:  make(chan struct{}),
	}
	s.httpSrv = &http.Server{
		Handler:           http.HandlerFunc(s.handle),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}

	go func() {
		if err := s.Serve(ln); err != nil {
			s.logger.Error("Ingest server stopped", "error", err)
		}
	}()
	return nil
}

// Serve accepts connections on ln until Shutdown. Transient accept errors are
// logged and retried after the configured backoff. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Ingest server listening", "address", ln.Addr().String())

	rl := &retryListener{
		Listener: ln,
		backoff:  s.cfg.AcceptBackoff,
		logger:   s.logger,
		done:     s.done,
	}
	err := s.httpSrv.Serve(rl)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Drain returns every pending message in arrival order without blocking.
func (s *Server) Drain() []Message {
	return s.queue.Drain()
}

// Backlog returns the number of queued, undrained messages.
func (s *Server) Backlog() int {
	return s.queue.Len()
}

// Received returns the total number of messages queued since start.
func (s *Server) Received() uint64 {
	return s.queue.Pushed()
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, closes every client connection and waits for
// their read loops to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conns := make([]*ws.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	err := s.httpSrv.Shutdown(ctx)

	// Hijacked connections are not closed by http.Server.
	for _, c := range conns {
		_ = c.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		_ = c.Close()
	}

	wait := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(wait)
	}()
	select {
	case <-wait:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	if !s.track(id, conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(id)
	defer conn.Close()

	log := s.logger.With("conn", id, "remote", r.RemoteAddr)
	log.Info("Client connected")

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Warn("WebSocket SetWriteDeadline error", "error", err)
		return
	}
	if err := conn.WriteMessage(ws.TextMessage, []byte(s.cfg.Welcome)); err != nil {
		log.Warn("Failed to send welcome", "error", err)
		return
	}

	s.readLoop(conn, id, log)
}

// readLoop queues text frames until the peer closes or the transport fails.
// Only this connection ends on error.
func (s *Server) readLoop(conn *ws.Conn, id string, log *slog.Logger) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
				log.Info("Client disconnected")
			} else {
				select {
				case <-s.done:
					log.Debug("Connection closed by shutdown")
				default:
					log.Warn("WebSocket read error", "error", err)
				}
			}
			return
		}
		if mt != ws.TextMessage {
			log.Debug("Ignoring non-text frame", "type", mt, "size", len(data))
			continue
		}

		s.queue.Push(Message{ConnID: id, Payload: string(data), ReceivedAt: time.Now()})
	}
}

func (s *Server) track(id string, conn *ws.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[id] = conn
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	s.handlers.Done()
}
