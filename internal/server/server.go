package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/termchat/internal/config"
	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
	"github.com/Tyrowin/termchat/internal/store"
)

// LoginRecorder persists successful logins. It is never consulted for routing.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, username string, at time.Time) error
}

// UserDirectory answers questions about users who logged in at some point.
type UserDirectory interface {
	User(ctx context.Context, username string) (store.User, error)
	Count(ctx context.Context) (int, error)
}

// Option customizes a Server.
type Option func(*Server)

// WithLoginRecorder records every accepted username.
func WithLoginRecorder(r LoginRecorder) Option {
	return func(s *Server) { s.users = r }
}

// WithUserDirectory enables the user lookup endpoint and the "users seen"
// line of the health check.
func WithUserDirectory(d UserDirectory) Option {
	return func(s *Server) { s.directory = d }
}

// WithClock replaces the wall clock used for notification timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server accepts connections and runs one session goroutine per connection.
type Server struct {
	cfg       config.Config
	router    *Router
	origins   *originPolicy
	users     LoginRecorder
	directory UserDirectory
	now       func() time.Time

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[Conn]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// NewServer creates a Server for cfg. cfg is sanitized and then never changed.
func NewServer(cfg config.Config, opts ...Option) *Server {
	cfg = config.Sanitize(cfg)
	s := &Server{
		cfg:       cfg,
		router:    NewRouter(),
		origins:   newOriginPolicy(cfg.AllowedOrigins),
		now:       time.Now,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the server's broadcast router.
func (s *Server) Router() *Router { return s.router }

// Config returns the server's configuration.
func (s *Server) Config() config.Config { return s.cfg }

// ActiveConnections returns the number of connections being served,
// including those still in the handshake.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ListenAndServe listens on the configured TCP address and serves it.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called, then returns
// ErrServerClosed. Accept failures never stop other sessions.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	logger.Info("Chat server listening on %s", ln.Addr())

	var backoff time.Duration
	for {
		raw, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			logger.Error("Error accepting connection: %v; retrying in %v", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		conn := protocol.NewLineConn(raw, s.cfg.MaxLineSize)
		go s.ServeConn(conn)
	}
}

// ServeConn serves an already established connection and returns when the
// session ends. Connections over the limit get a ServerFull response;
// connections arriving after Shutdown are closed without one.
func (s *Server) ServeConn(conn Conn) {
	if err := s.trackConn(conn); err != nil {
		if errors.Is(err, ErrServerClosed) {
			logger.Debug("Server is closed, dropping connection from %s", conn.RemoteAddr())
			_ = conn.Close()
			return
		}
		s.reject(conn)
		return
	}
	defer s.untrackConn(conn)

	s.serveConn(conn)
}

func (s *Server) reject(conn Conn) {
	logger.Warn("Connection limit reached, rejecting connection from %s", conn.RemoteAddr())
	if err := conn.WriteEnvelope(protocol.NewResponse(protocol.StatusBadRequest, protocol.ReasonServerFull)); err != nil {
		logger.Debug("Could not notify %s of full server: %v", conn.RemoteAddr(), err)
	}
	_ = conn.Close()
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) trackConn(conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if len(s.conns) >= s.cfg.MaxConnections {
		return ErrServerFull
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return nil
}

func (s *Server) untrackConn(conn Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Shutdown stops accepting, closes every live connection, and waits for the
// session goroutines to finish or for timeout to elapse.
func (s *Server) Shutdown(timeout time.Duration) error {
	logger.Info("Initiating chat server shutdown...")

	s.mu.Lock()
	s.closed = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for ln := range s.listeners {
		listeners = append(listeners, ln)
	}
	conns := make([]Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			logger.Error("Error closing listener: %v", err)
		}
	}
	for _, conn := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			logger.Error("Error closing client connection from %s: %v", conn.RemoteAddr(), err)
		}
	}
	logger.Info("Closed %d client connections", len(conns))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Chat server shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		logger.Warn("Chat server shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
