package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
)

// Session is the server-side state of one connection. It is owned by the
// goroutine running serveConn for its whole lifetime.
type Session struct {
	ID       uuid.UUID
	Username string
	Addr     string

	conn    Conn
	inbound chan protocol.Envelope
	limiter *rateLimiter
	log     *logger.Logger
}

func (s *Server) newSession(conn Conn) *Session {
	addr := conn.RemoteAddr()
	return &Session{
		ID:      uuid.New(),
		Addr:    addr,
		conn:    conn,
		inbound: make(chan protocol.Envelope, s.cfg.MaxConnections),
		limiter: newRateLimiter(s.cfg.RateLimit, s.now),
		log:     logger.Global().WithPrefix(addr),
	}
}

func connectedText(username string) string {
	return fmt.Sprintf("%s has been connected to the server", username)
}

func disconnectedText(username string) string {
	return fmt.Sprintf("%s has been disconnected from the server", username)
}

// serveConn drives one connection from accept to close.
func (s *Server) serveConn(conn Conn) {
	sess := s.newSession(conn)
	defer func() {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			sess.log.Error("Error closing connection: %v", err)
		}
	}()

	sess.log.Info("Client connected, awaiting username")

	if err := s.handshake(sess); err != nil {
		s.router.Deregister(sess.ID)
		switch {
		case isExpectedCloseError(err):
			sess.log.Info("Client disconnected before entering username")
		case isTimeout(err):
			sess.log.Info("Client did not log in within %v", s.cfg.HandshakeTimeout)
		default:
			sess.log.Warn("Handshake failed: %v", err)
		}
		return
	}

	s.recordLogin(sess.Username)
	sess.log.Info("%s has been connected to the server", sess.Username)
	s.router.Broadcast(sess.ID, protocol.NewConnectionNotice(connectedText(sess.Username), s.now()))

	s.runSession(sess)

	// Deregister first so the departing session never sees its own notice.
	s.router.Deregister(sess.ID)
	s.router.Broadcast(sess.ID, protocol.NewConnectionNotice(disconnectedText(sess.Username), s.now()))
	sess.log.Info("%s has been disconnected from the server", sess.Username)
}

// handshake keeps the session in the awaiting-username state until a
// LogInUsername request is accepted or HandshakeTimeout runs out. On success
// the session is registered with the router, the 200 response has been
// written, and the read deadline is lifted.
func (s *Server) handshake(sess *Session) error {
	if err := sess.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		return fmt.Errorf("set handshake deadline: %w", err)
	}

	for {
		line, err := sess.conn.ReadLine()
		if err != nil {
			return err
		}

		e, err := protocol.Decode(line)
		if err != nil {
			return err
		}

		resp := s.authenticate(sess, e)
		if err := sess.conn.WriteEnvelope(resp); err != nil {
			return fmt.Errorf("write handshake response: %w", err)
		}
		if resp.OK() {
			return sess.conn.SetReadDeadline(time.Time{})
		}
	}
}

func (s *Server) authenticate(sess *Session, e protocol.Envelope) *protocol.Response {
	req, ok := e.(*protocol.Request)
	if !ok || req.Method != protocol.MethodLogInUsername {
		return protocol.NewResponse(protocol.StatusBadRequest, protocol.ReasonBadRequest)
	}
	if !s.cfg.IsValidUsername(req.Body) {
		return protocol.NewResponse(protocol.StatusBadRequest, protocol.ReasonInvalidUsername)
	}

	username := strings.TrimSpace(req.Body)
	if err := s.router.Register(sess.ID, username, sess.inbound); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return protocol.NewResponse(protocol.StatusBadRequest, protocol.ReasonUsernameTaken)
		}
		return protocol.NewResponse(protocol.StatusBadRequest, protocol.ReasonBadRequest)
	}

	sess.Username = username
	return protocol.NewResponse(protocol.StatusOK, protocol.ReasonOK)
}

func (s *Server) recordLogin(username string) {
	if s.users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.users.RecordLogin(ctx, username, s.now()); err != nil {
		logger.Warn("Could not record login of %s: %v", username, err)
	}
}

type readResult struct {
	line []byte
	err  error
}

// readLoop forwards frames from the socket until a read fails or done closes.
func (sess *Session) readLoop(lines chan<- readResult, done <-chan struct{}) {
	for {
		line, err := sess.conn.ReadLine()
		select {
		case lines <- readResult{line: line, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// runSession multiplexes inbound frames and mailbox deliveries until the
// peer goes away or a fatal error occurs. It is the only writer to the socket.
func (s *Server) runSession(sess *Session) {
	lines := make(chan readResult)
	done := make(chan struct{})
	defer close(done)

	go sess.readLoop(lines, done)

	for {
		select {
		case res := <-lines:
			if res.err != nil {
				s.logReadError(sess, res.err)
				return
			}
			if err := s.handleFrame(sess, res.line); err != nil {
				sess.log.Warn("Closing %s: %v", sess.Username, err)
				return
			}

		case e := <-sess.inbound:
			if err := sess.conn.WriteEnvelope(e); err != nil {
				if !isExpectedCloseError(err) {
					sess.log.Error("Error writing to %s: %v", sess.Username, err)
				}
				return
			}
		}
	}
}

func (s *Server) logReadError(sess *Session, err error) {
	switch {
	case isExpectedCloseError(err):
		sess.log.Info("Client %s connection closed", sess.Username)
	case isTimeout(err):
		sess.log.Info("Client %s stopped answering pings", sess.Username)
	case errors.Is(err, protocol.ErrProtocol):
		sess.log.Warn("Closing %s: %v", sess.Username, err)
	default:
		sess.log.Error("Read error from %s: %v", sess.Username, err)
	}
}

// handleFrame processes one frame from an authenticated session. Only
// decode failures are returned; validation failures are answered in-band.
func (s *Server) handleFrame(sess *Session, line []byte) error {
	e, err := protocol.Decode(line)
	if err != nil {
		return err
	}

	req, ok := e.(*protocol.Request)
	if !ok || req.Method != protocol.MethodSendMessage {
		s.reply(sess, protocol.ReasonBadRequest)
		return nil
	}

	if !s.cfg.IsValidMessage(req.Body) {
		s.reply(sess, protocol.ReasonInvalidMessage)
		return nil
	}
	if !sess.limiter.allow() {
		sess.log.Warn("Rate limit exceeded for %s (%d messages per %s); discarding message",
			sess.Username, s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval)
		s.reply(sess, protocol.ReasonRateLimited)
		return nil
	}

	// Relay what was validated: the trimmed text.
	data := strings.TrimSpace(req.Body)
	n := s.router.Broadcast(sess.ID, protocol.NewChatMessage(sess.Username, data, s.now()))
	sess.log.Debug("Message from %s delivered to %d sessions", sess.Username, n)
	return nil
}

// reply queues a 400 response for sess through its own mailbox so it is
// written in order with other deliveries.
func (s *Server) reply(sess *Session, reason string) {
	resp := protocol.NewResponse(protocol.StatusBadRequest, reason)
	if err := s.router.SendTargeted(sess.ID, resp); err != nil {
		sess.log.Warn("Could not respond to %s: %v", sess.Username, err)
	}
}
