package client

import (
	"strings"

	"github.com/Tyrowin/termchat/internal/protocol"
)

// KeyType classifies a key press.
type KeyType int

const (
	KeyRune KeyType = iota
	KeyEnter
	KeyBackspace
	KeyEsc
	KeyTab
	KeyOther
)

// Key is a single key press. Rune is set only for KeyRune.
type Key struct {
	Type KeyType
	Rune rune
}

// RuneKey returns the key press for a printable character.
func RuneKey(r rune) Key { return Key{Type: KeyRune, Rune: r} }

func (k Key) is(r rune) bool { return k.Type == KeyRune && k.Rune == r }

// HandleKey applies one key press and reports what the caller must do.
func (m *Model) HandleKey(k Key) Action {
	switch {
	case m.closed:
		if k.is('q') {
			return Action{Quit: true}
		}
		return Action{}

	case m.banner != "":
		// The banner swallows everything but its dismissal.
		if k.is('q') {
			m.banner = ""
			m.input = m.input[:0]
		}
		return Action{}

	case m.mode == ModeNormal:
		switch {
		case k.is('i'):
			m.mode = ModeInsert
		case k.is('q'):
			return Action{Quit: true}
		}
		return Action{}
	}

	switch k.Type {
	case KeyRune:
		m.input = append(m.input, k.Rune)
	case KeyBackspace:
		if n := len(m.input); n > 0 {
			m.input = m.input[:n-1]
		}
	case KeyEsc:
		m.mode = ModeNormal
	case KeyTab:
		if m.stage == StageChoosing {
			m.flow = 1 - m.flow
		}
	case KeyEnter:
		return m.submit()
	}
	return Action{}
}

// submit turns the pending input into the request for the current stage.
func (m *Model) submit() Action {
	text := string(m.input)
	m.input = m.input[:0]

	switch m.stage {
	case StageChoosing:
		m.stage = StageUsername
		return Action{}

	case StageUsername:
		m.username = strings.TrimSpace(text)
		method := protocol.MethodLogInUsername
		if m.flow == FlowRegister {
			method = protocol.MethodRegisterUsername
		}
		return Action{Send: &protocol.Request{Method: method, Body: text}}

	case StagePassword:
		method := protocol.MethodLogInPassword
		if m.flow == FlowRegister {
			method = protocol.MethodRegisterPassword
		}
		return Action{Send: &protocol.Request{Method: method, Body: text}}

	default:
		m.messages = append(m.messages, Message{
			Data:   text,
			Sender: m.username,
			Date:   m.stamp(m.opts.Now()),
			Own:    true,
		})
		return Action{Send: &protocol.Request{Method: protocol.MethodSendMessage, Body: text}}
	}
}
