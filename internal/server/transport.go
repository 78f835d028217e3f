package server

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
)

// Conn is a duplex, frame-oriented connection to one peer. Reads come from a
// single goroutine; WriteEnvelope is only called by the owning session.
type Conn interface {
	// ReadLine returns the next frame, io.EOF when the peer is gone, or a
	// protocol error for frames that cannot be accepted.
	ReadLine() ([]byte, error)
	// SetReadDeadline bounds reads until t. The zero time lifts the bound.
	SetReadDeadline(t time.Time) error
	WriteEnvelope(e protocol.Envelope) error
	RemoteAddr() string
	Close() error
}

var _ Conn = (*protocol.LineConn)(nil)

// wsConn carries one envelope per WebSocket text message. A peer that stops
// answering pings for pongWait is cut off.
type wsConn struct {
	conn     *websocket.Conn
	addr     string
	pongWait time.Duration
	writeMu  sync.Mutex

	deadlineMu sync.Mutex
	// deadline is the caller's bound from SetReadDeadline, zero when unset.
	deadline time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, addr string, maxLine int, pongWait time.Duration) *wsConn {
	if maxLine > 0 {
		conn.SetReadLimit(int64(maxLine))
	}
	c := &wsConn{
		conn:     conn,
		addr:     addr,
		pongWait: pongWait,
		done:     make(chan struct{}),
	}

	if err := conn.SetReadDeadline(c.readDeadline()); err != nil {
		logger.Warn("Error setting initial read deadline for %s: %v", addr, err)
	}
	conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.readDeadline())
	})
	go c.pingLoop(pongWait * 9 / 10)

	return c
}

// readDeadline is the earlier of the keepalive bound and the caller's bound.
func (c *wsConn) readDeadline() time.Time {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()

	keepalive := time.Now().Add(c.pongWait)
	if !c.deadline.IsZero() && c.deadline.Before(keepalive) {
		return c.deadline
	}
	return keepalive
}

func (c *wsConn) pingLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(protocol.DefaultWriteTimeout))
			if err != nil {
				if !isExpectedCloseError(err) {
					logger.Warn("Error writing ping to %s: %v", c.addr, err)
				}
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) ReadLine() ([]byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, &protocol.Error{Reason: "frame exceeds read limit", Err: err}
		}
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure,
			websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, err
	}
	if messageType != websocket.TextMessage {
		return nil, &protocol.Error{Reason: fmt.Sprintf("unexpected frame type %d", messageType)}
	}
	return data, nil
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	c.deadlineMu.Lock()
	c.deadline = t
	c.deadlineMu.Unlock()

	return c.conn.SetReadDeadline(c.readDeadline())
}

func (c *wsConn) WriteEnvelope(e protocol.Envelope) error {
	data, err := protocol.Encode(e)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(protocol.DefaultWriteTimeout)); err != nil {
		return err
	}
	// One envelope per message; the newline terminator is implied by framing.
	return c.conn.WriteMessage(websocket.TextMessage, data[:len(data)-1])
}

func (c *wsConn) RemoteAddr() string { return c.addr }

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}
