package server

import (
	"errors"
	"io"
	"net"
	"strings"
)

var (
	// ErrRecipientNotFound is returned by Router.SendTargeted for unknown sessions.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrAlreadyRegistered is returned when a session id is registered twice.
	ErrAlreadyRegistered = errors.New("session already registered")
	// ErrUsernameTaken is returned when another session holds the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("server closed")
	// ErrServerFull means the connection limit has been reached.
	ErrServerFull = errors.New("server full")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "io: read/write on closed pipe")
}

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
