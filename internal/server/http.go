package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
	"github.com/Tyrowin/termchat/internal/store"
)

// NewHTTPHandler returns the HTTP routes for s: a health check on "/" and the
// WebSocket transport on "/ws". With a user directory configured,
// "/users/:name" describes one user. All routes accept GET only.
func NewHTTPHandler(s *Server) http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/", s.HealthHandler)
	router.HandlerFunc(http.MethodGet, "/ws", s.WebSocketHandler)
	if s.directory != nil {
		router.GET("/users/:name", s.UserHandler)
	}
	return router
}

// HealthHandler reports that the server is running and who is online.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	names := s.router.Usernames()
	_, _ = fmt.Fprintf(w, "Chat server is running! Sessions: %d\n", len(names))
	if len(names) > 0 {
		_, _ = fmt.Fprintf(w, "Online: %s\n", strings.Join(names, ", "))
	}

	if s.directory == nil {
		return
	}
	seen, err := s.directory.Count(r.Context())
	if err != nil {
		logger.Warn("Could not count users: %v", err)
		return
	}
	_, _ = fmt.Fprintf(w, "Users seen: %d\n", seen)
}

type userInfo struct {
	Username  string `json:"username"`
	Online    bool   `json:"online"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
	Logins    int    `json:"logins"`
}

// UserHandler reports the login history of one user as JSON.
func (s *Server) UserHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")

	u, err := s.directory.User(r.Context(), name)
	if errors.Is(err, store.ErrUserNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Could not look up user %q: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(userInfo{
		Username:  u.Username,
		Online:    s.router.Online(u.Username),
		FirstSeen: protocol.FormatDate(u.FirstSeen),
		LastSeen:  protocol.FormatDate(u.LastSeen),
		Logins:    u.Logins,
	})
}

// WebSocketHandler upgrades the request and serves the connection with the
// same handshake and routing as TCP sessions. It returns when the session ends.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}

	s.ServeConn(newWSConn(conn, r.RemoteAddr, s.cfg.MaxLineSize, s.cfg.PongWait))
}

// CreateHTTPServer creates an HTTP server with the specified address and
// handler and reasonable timeouts.
func CreateHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ShutdownHTTPServer gracefully shuts down srv within timeout.
func ShutdownHTTPServer(srv *http.Server, timeout time.Duration) error {
	logger.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
		return err
	}

	logger.Info("HTTP server shutdown completed")
	return nil
}
