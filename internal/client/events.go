package client

import (
	"fmt"

	"github.com/Tyrowin/termchat/internal/protocol"
)

var reasonText = map[string]string{
	protocol.ReasonBadRequest:      "The server did not accept this request",
	protocol.ReasonInvalidUsername: "Invalid username, try another one",
	protocol.ReasonInvalidMessage:  "Message is empty or too long",
	protocol.ReasonUsernameTaken:   "This username is already in use",
	protocol.ReasonRateLimited:     "You are sending messages too fast",
	protocol.ReasonServerFull:      "The server is full, try again later",
}

// describe turns a response reason into banner text.
func describe(reason string) string {
	if text, ok := reasonText[reason]; ok {
		return text
	}
	return reason
}

// HandleLine decodes one line from the server and applies it. Decode failures
// set the error banner and leave every other piece of state untouched.
func (m *Model) HandleLine(line []byte) {
	e, err := protocol.Decode(line)
	if err != nil {
		m.HandleFrameError(err)
		return
	}
	m.HandleEnvelope(e)
}

// HandleFrameError reports a frame from the server that could not be used,
// such as an oversized line. The connection stays open.
func (m *Model) HandleFrameError(err error) {
	m.banner = fmt.Sprintf("Invalid request: %v", err)
}

// HandleEnvelope applies a decoded server envelope.
func (m *Model) HandleEnvelope(e protocol.Envelope) {
	switch v := e.(type) {
	case *protocol.Response:
		m.handleResponse(v)
	case *protocol.Notification:
		m.handleNotification(v)
	default:
		m.banner = fmt.Sprintf("Invalid request: unexpected %s from server", e.Kind())
	}
}

func (m *Model) handleResponse(r *protocol.Response) {
	if r.OK() {
		m.advance()
		return
	}

	m.banner = describe(r.Message)
	switch m.stage {
	case StageLoggedIn:
		m.retractEcho()
	case StageUsername:
		m.username = ""
	}
}

// advance moves one login stage forward. Once logged in a 200 is only an
// acknowledgement.
func (m *Model) advance() {
	switch m.stage {
	case StageUsername:
		if m.opts.PasswordStage {
			m.stage = StagePassword
		} else {
			m.stage = StageLoggedIn
		}
	case StagePassword:
		m.stage = StageLoggedIn
	}
}

// retractEcho removes the most recent optimistic echo of our own message.
func (m *Model) retractEcho() {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Own {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return
		}
	}
}

func (m *Model) handleNotification(n *protocol.Notification) {
	switch n.Method {
	case protocol.MethodSendMessage, protocol.MethodConnection:
	default:
		// MessageRead receipts are not rendered.
		return
	}
	if m.stage != StageLoggedIn {
		return
	}

	date := n.Body.Date
	if t, err := protocol.ParseDate(date); err == nil {
		date = m.stamp(t)
	}
	m.messages = append(m.messages, Message{
		Data:   n.Body.Data,
		Sender: n.Body.Sender,
		Date:   date,
	})
}

// HandleEOF records that the server closed the stream. Afterwards only 'q'
// is accepted.
func (m *Model) HandleEOF() {
	if m.closed {
		return
	}
	m.closed = true
	m.messages = append(m.messages, Message{
		Data: m.opts.ShutdownNotice,
		Date: m.stamp(m.opts.Now()),
	})
}
