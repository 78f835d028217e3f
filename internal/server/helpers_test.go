package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/termchat/internal/config"
	"github.com/Tyrowin/termchat/internal/protocol"
)

const waitTimeout = 2 * time.Second

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

// testPeer is the client end of a connection to a server under test. Its
// reader goroutine collects envelopes so tests can wait with a timeout.
type testPeer struct {
	t        *testing.T
	conn     *protocol.LineConn
	incoming chan protocol.Envelope
	closed   chan struct{}
}

func newTestPeer(t *testing.T, raw net.Conn) *testPeer {
	t.Helper()
	p := &testPeer{
		t:        t,
		conn:     protocol.NewLineConn(raw, 0),
		incoming: make(chan protocol.Envelope, 64),
		closed:   make(chan struct{}),
	}
	go func() {
		defer close(p.closed)
		for {
			e, err := p.conn.ReadEnvelope()
			if err != nil {
				return
			}
			p.incoming <- e
		}
	}()
	t.Cleanup(func() { _ = p.conn.Close() })
	return p
}

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) *Server {
	t.Helper()
	cfg := config.NewConfig()
	cfg.RateLimit = config.RateLimitConfig{Burst: 100, RefillInterval: time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := NewServer(cfg, opts...)
	t.Cleanup(func() { _ = s.Shutdown(waitTimeout) })
	return s
}

// connectPipe attaches a new in-memory connection to s.
func connectPipe(t *testing.T, s *Server) *testPeer {
	t.Helper()
	local, remote := net.Pipe()
	go s.ServeConn(protocol.NewLineConn(local, s.Config().MaxLineSize))
	return newTestPeer(t, remote)
}

// login connects a peer, completes the handshake as name, and waits until
// every peer in others has seen the connection notice.
func login(t *testing.T, s *Server, name string, others ...*testPeer) *testPeer {
	t.Helper()
	p := connectPipe(t, s)
	p.send(&protocol.Request{Method: protocol.MethodLogInUsername, Body: name})
	p.expectResponse(protocol.StatusOK, protocol.ReasonOK)
	for _, o := range others {
		o.expectNotice(connectedText(name))
	}
	return p
}

func (p *testPeer) send(e protocol.Envelope) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteEnvelope(e))
}

func (p *testPeer) sendRaw(line string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteLine([]byte(line)))
}

func (p *testPeer) say(text string) {
	p.t.Helper()
	p.send(&protocol.Request{Method: protocol.MethodSendMessage, Body: text})
}

func (p *testPeer) next() protocol.Envelope {
	p.t.Helper()
	select {
	case e := <-p.incoming:
		return e
	case <-time.After(waitTimeout):
		p.t.Fatal("timed out waiting for an envelope")
		return nil
	}
}

func (p *testPeer) expectResponse(code int, message string) {
	p.t.Helper()
	assert.Equal(p.t, protocol.NewResponse(code, message), p.next())
}

func (p *testPeer) expectNotice(text string) {
	p.t.Helper()
	assert.Equal(p.t, protocol.NewConnectionNotice(text, fixedNow), p.next())
}

func (p *testPeer) expectChat(sender, data string) {
	p.t.Helper()
	assert.Equal(p.t, protocol.NewChatMessage(sender, data, fixedNow), p.next())
}

func (p *testPeer) expectNothing() {
	p.t.Helper()
	select {
	case e := <-p.incoming:
		p.t.Fatalf("unexpected envelope %#v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

// expectClosed waits for the server to close the connection and checks that
// nothing else arrived first.
func (p *testPeer) expectClosed() {
	p.t.Helper()
	select {
	case <-p.closed:
	case <-time.After(waitTimeout):
		p.t.Fatal("timed out waiting for the connection to close")
	}
	assert.Empty(p.t, p.incoming)
}
