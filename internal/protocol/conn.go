package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultMaxLineSize bounds a single frame when no explicit limit is given.
const DefaultMaxLineSize = 4096

// ClientMaxLineSize is the frame limit of the terminal client. Servers keep
// every frame they relay below it.
const ClientMaxLineSize = 64 << 10

// DefaultWriteTimeout bounds every socket write.
const DefaultWriteTimeout = 10 * time.Second

// Worst-case JSON growth of one rune ("<") and the fixed bytes any
// envelope adds around its string fields.
const (
	maxEncodedRune   = 6
	envelopeOverhead = 128
)

// MaxRequestSize bounds the encoded size of a request whose body has at most
// bodyRunes runes.
func MaxRequestSize(bodyRunes int) int {
	return maxEncodedRune*bodyRunes + envelopeOverhead
}

// MaxNotificationSize bounds the encoded size of a notification with at most
// dataRunes runes of data and senderRunes runes of sender.
func MaxNotificationSize(dataRunes, senderRunes int) int {
	return maxEncodedRune*(dataRunes+senderRunes) + envelopeOverhead
}

// MaxDataRunes returns the longest notification data, in runes, that still
// fits in limit bytes next to a sender of senderRunes runes.
func MaxDataRunes(limit, senderRunes int) int {
	return max((limit-envelopeOverhead)/maxEncodedRune-senderRunes, 0)
}

// LineConn frames a byte stream into newline-terminated lines. Reads must come
// from a single goroutine; writes are serialized internally.
type LineConn struct {
	conn     net.Conn
	reader   *bufio.Reader
	maxLine  int
	// skipping is set after an oversized line until its newline is consumed.
	skipping bool
	writeMu  sync.Mutex
}

// NewLineConn wraps conn. maxLine <= 0 selects DefaultMaxLineSize.
func NewLineConn(conn net.Conn, maxLine int) *LineConn {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	// Room for the newline and an optional carriage return.
	reader := bufio.NewReaderSize(conn, maxLine+2)
	return &LineConn{conn: conn, reader: reader, maxLine: maxLine}
}

// ReadLine returns the next line without its terminator. It returns io.EOF
// once the peer has closed the stream, and an *Error for oversized lines.
// The next call after an oversized line resumes at the following line.
func (c *LineConn) ReadLine() ([]byte, error) {
	if c.skipping {
		if err := c.skipLine(); err != nil {
			return nil, err
		}
	}

	line, err := c.reader.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		c.skipping = true
		return nil, protocolErrorf(nil, "frame exceeds %d bytes", c.maxLine)
	case errors.Is(err, io.EOF) && len(line) > 0:
		// Last line without a terminator.
	default:
		return nil, err
	}

	line = bytes.TrimSuffix(bytes.TrimSuffix(line, []byte{'\n'}), []byte{'\r'})
	if len(line) > c.maxLine {
		return nil, protocolErrorf(nil, "frame exceeds %d bytes", c.maxLine)
	}
	return append([]byte(nil), line...), nil
}

// skipLine discards input up to and including the next newline.
func (c *LineConn) skipLine() error {
	for {
		_, err := c.reader.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			if err == nil {
				c.skipping = false
			}
			return err
		}
	}
}

// ReadEnvelope reads and decodes the next frame.
func (c *LineConn) ReadEnvelope() (Envelope, error) {
	line, err := c.ReadLine()
	if err != nil {
		return nil, err
	}
	return Decode(line)
}

// SetReadDeadline bounds pending and future reads; the zero time clears it.
func (c *LineConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// WriteLine writes line followed by a newline, adding one only if missing.
func (c *LineConn) WriteLine(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout)); err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append(make([]byte, 0, len(line)+1), line...), '\n')
	}
	_, err := c.conn.Write(line)
	return err
}

// WriteEnvelope encodes e and writes it as one frame.
func (c *LineConn) WriteEnvelope(e Envelope) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	return c.WriteLine(data)
}

// RemoteAddr returns the peer address as a string.
func (c *LineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Close closes the underlying connection.
func (c *LineConn) Close() error {
	return c.conn.Close()
}
