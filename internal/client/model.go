// Package client holds the terminal client's protocol state machine: login
// stages, input modes, the message log and the error banner. It performs no
// I/O; the caller feeds it keys and server lines and executes the returned
// Action.
package client

import (
	"fmt"
	"time"

	"github.com/Tyrowin/termchat/internal/protocol"
)

// DisplayLayout is how message timestamps are shown to the user.
const DisplayLayout = "02-01-2006 15:04"

// Stage is the position in the login sequence.
type Stage int

const (
	StageChoosing Stage = iota
	StageUsername
	StagePassword
	StageLoggedIn
)

func (s Stage) String() string {
	switch s {
	case StageChoosing:
		return "choosing"
	case StageUsername:
		return "username"
	case StagePassword:
		return "password"
	case StageLoggedIn:
		return "logged in"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Flow is the branch picked on the menu.
type Flow int

const (
	FlowLogIn Flow = iota
	FlowRegister
)

// InputMode mirrors a modal editor: keys edit the input only in ModeInsert.
type InputMode int

const (
	ModeInsert InputMode = iota
	ModeNormal
)

// Message is one rendered entry of the message log.
type Message struct {
	Data   string
	Sender string // empty for system notices
	Date   string // already in DisplayLayout
	Own    bool   // optimistic local echo
}

// Options selects the optional login stages.
type Options struct {
	Menu          bool
	PasswordStage bool
	// ShutdownNotice is appended to the log when the server goes away.
	ShutdownNotice string
	Now            func() time.Time
	Location       *time.Location
}

// Action tells the caller what to do after a key press.
type Action struct {
	Send protocol.Envelope
	Quit bool
}

// Model is the client state machine. It is not safe for concurrent use.
type Model struct {
	opts Options

	stage    Stage
	flow     Flow
	mode     InputMode
	input    []rune
	username string
	messages []Message
	banner   string
	closed   bool
}

// ShutdownNotice is the log entry shown when the server closes the stream.
func ShutdownNotice(grace time.Duration) string {
	return fmt.Sprintf("Server is shutting down, app will be closed in %d seconds", int(grace.Round(time.Second)/time.Second))
}

// New returns a model in its initial stage, in insert mode.
func New(opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ShutdownNotice == "" {
		opts.ShutdownNotice = ShutdownNotice(10 * time.Second)
	}

	m := &Model{opts: opts, stage: StageUsername}
	if opts.Menu {
		m.stage = StageChoosing
	}
	return m
}

func (m *Model) Stage() Stage     { return m.stage }
func (m *Model) Flow() Flow       { return m.flow }
func (m *Model) Mode() InputMode  { return m.mode }
func (m *Model) Input() string    { return string(m.input) }
func (m *Model) Username() string { return m.username }
func (m *Model) Banner() string   { return m.banner }
func (m *Model) LoggedIn() bool   { return m.stage == StageLoggedIn }
func (m *Model) Closed() bool     { return m.closed }

// Messages returns a copy of the message log, oldest first.
func (m *Model) Messages() []Message {
	return append([]Message(nil), m.messages...)
}

func (m *Model) stamp(t time.Time) string {
	return t.In(m.opts.Location).Format(DisplayLayout)
}
