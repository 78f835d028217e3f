// Package tui is the bubbletea front end of the chat client. It owns the
// terminal and the socket; every protocol decision is made by client.Model.
package tui

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tyrowin/termchat/internal/client"
	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
)

// DefaultGrace is how long the log stays on screen after the server leaves.
const DefaultGrace = 10 * time.Second

// Conn is the socket side the UI talks to.
type Conn interface {
	ReadLine() ([]byte, error)
	WriteEnvelope(e protocol.Envelope) error
	Close() error
}

type lineMsg struct{ line []byte }

type eofMsg struct{ err error }

// frameErrMsg carries a read that failed on one frame; the stream is intact.
type frameErrMsg struct{ err error }

type graceExpiredMsg struct{}

// Model is the bubbletea model of the chat client.
type Model struct {
	chat     *client.Model
	conn     Conn
	grace    time.Duration
	viewport viewport.Model

	width  int
	height int
	err    error
}

// New creates the UI for conn. grace <= 0 selects DefaultGrace.
func New(conn Conn, opts client.Options, grace time.Duration) *Model {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if opts.ShutdownNotice == "" {
		opts.ShutdownNotice = client.ShutdownNotice(grace)
	}
	return &Model{
		chat:     client.New(opts),
		conn:     conn,
		grace:    grace,
		viewport: viewport.New(MinWidth-2, MinHeight-6),
	}
}

// Err returns the fatal error that ended the program, if any.
func (m *Model) Err() error { return m.err }

// Chat exposes the underlying state machine.
func (m *Model) Chat() *client.Model { return m.chat }

func (m *Model) Init() tea.Cmd {
	return m.readNext()
}

// readNext waits for the next line in a command goroutine. Only one read is
// ever outstanding; the next is scheduled after its result is applied.
func (m *Model) readNext() tea.Cmd {
	return func() tea.Msg {
		line, err := m.conn.ReadLine()
		if errors.Is(err, protocol.ErrProtocol) {
			return frameErrMsg{err: err}
		}
		if err != nil {
			return eofMsg{err: err}
		}
		return lineMsg{line: line}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-2, 1)
		m.viewport.Height = max(msg.Height-6, 1)
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case lineMsg:
		m.chat.HandleLine(msg.line)
		m.refreshLog()
		return m, m.readNext()

	case frameErrMsg:
		logger.Warn("Skipping frame from server: %v", msg.err)
		m.chat.HandleFrameError(msg.err)
		return m, m.readNext()

	case eofMsg:
		if !errors.Is(msg.err, io.EOF) && !errors.Is(msg.err, net.ErrClosed) {
			logger.Warn("Connection to server lost: %v", msg.err)
		} else {
			logger.Info("Server closed the connection")
		}
		m.chat.HandleEOF()
		m.refreshLog()
		return m, tea.Tick(m.grace, func(time.Time) tea.Msg { return graceExpiredMsg{} })

	case graceExpiredMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	for _, k := range translateKey(msg) {
		act := m.chat.HandleKey(k)
		if act.Send != nil {
			// Writes happen here, on the update goroutine, so the socket has
			// a single writer and requests go out in key order.
			if err := m.conn.WriteEnvelope(act.Send); err != nil {
				logger.Error("Failed to send %s: %v", act.Send.Kind(), err)
				m.err = fmt.Errorf("send to server: %w", err)
				return m, tea.Quit
			}
		}
		if act.Quit {
			return m, tea.Quit
		}
	}

	m.refreshLog()
	return m, nil
}

// translateKey maps a bubbletea key event to client keys. Pasted text
// arrives as one event with several runes.
func translateKey(msg tea.KeyMsg) []client.Key {
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		keys := make([]client.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, client.RuneKey(r))
		}
		return keys
	case tea.KeyEnter:
		return []client.Key{{Type: client.KeyEnter}}
	case tea.KeyBackspace:
		return []client.Key{{Type: client.KeyBackspace}}
	case tea.KeyEsc:
		return []client.Key{{Type: client.KeyEsc}}
	case tea.KeyTab:
		return []client.Key{{Type: client.KeyTab}}
	default:
		return []client.Key{{Type: client.KeyOther}}
	}
}

// Run starts the program on the alternate screen and blocks until it exits.
func Run(m *Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return err
	}
	return m.Err()
}
