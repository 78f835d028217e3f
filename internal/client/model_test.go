package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/termchat/internal/protocol"
)

var testNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func newTestModel(opts Options) *Model {
	opts.Now = func() time.Time { return testNow }
	opts.Location = time.UTC
	return New(opts)
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.HandleKey(RuneKey(r))
	}
}

func enter(m *Model) Action {
	return m.HandleKey(Key{Type: KeyEnter})
}

func loggedIn(t *testing.T, name string) *Model {
	t.Helper()
	m := newTestModel(Options{})
	typeText(m, name)
	enter(m)
	m.HandleEnvelope(protocol.NewResponse(200, protocol.ReasonOK))
	require.True(t, m.LoggedIn())
	return m
}

func TestInitialState(t *testing.T) {
	m := newTestModel(Options{})
	assert.Equal(t, StageUsername, m.Stage())
	assert.Equal(t, ModeInsert, m.Mode())
	assert.Empty(t, m.Messages())

	menu := newTestModel(Options{Menu: true})
	assert.Equal(t, StageChoosing, menu.Stage())
}

func TestLoginFlow(t *testing.T) {
	m := newTestModel(Options{})

	typeText(m, "alice")
	assert.Equal(t, "alice", m.Input())

	act := enter(m)
	assert.Equal(t, &protocol.Request{Method: protocol.MethodLogInUsername, Body: "alice"}, act.Send)
	assert.Empty(t, m.Input())
	assert.Equal(t, StageUsername, m.Stage(), "stage changes only on the server's answer")

	m.HandleEnvelope(protocol.NewResponse(200, protocol.ReasonOK))
	assert.Equal(t, StageLoggedIn, m.Stage())
	assert.Equal(t, "alice", m.Username())
}

func TestLoginRejected(t *testing.T) {
	m := newTestModel(Options{})
	enter(m)

	m.HandleEnvelope(protocol.NewResponse(400, protocol.ReasonInvalidUsername))
	assert.Equal(t, StageUsername, m.Stage())
	assert.Equal(t, "Invalid username, try another one", m.Banner())
	assert.Empty(t, m.Username())
}

func TestPasswordStage(t *testing.T) {
	m := newTestModel(Options{PasswordStage: true})
	typeText(m, "alice")
	enter(m)
	m.HandleEnvelope(protocol.NewResponse(200, protocol.ReasonOK))
	assert.Equal(t, StagePassword, m.Stage())

	typeText(m, "secret")
	act := enter(m)
	assert.Equal(t, &protocol.Request{Method: protocol.MethodLogInPassword, Body: "secret"}, act.Send)

	m.HandleEnvelope(protocol.NewResponse(400, protocol.ReasonBadRequest))
	assert.Equal(t, StagePassword, m.Stage(), "a rejected password keeps the stage")
	assert.NotEmpty(t, m.Banner())

	m.HandleKey(RuneKey('q'))
	typeText(m, "secret")
	enter(m)
	m.HandleEnvelope(protocol.NewResponse(200, protocol.ReasonOK))
	assert.Equal(t, StageLoggedIn, m.Stage())
}

func TestMenuSelectsFlow(t *testing.T) {
	m := newTestModel(Options{Menu: true, PasswordStage: true})

	assert.Equal(t, FlowLogIn, m.Flow())
	m.HandleKey(Key{Type: KeyTab})
	assert.Equal(t, FlowRegister, m.Flow())

	act := enter(m)
	assert.Nil(t, act.Send)
	assert.Equal(t, StageUsername, m.Stage())

	m.HandleKey(Key{Type: KeyTab})
	assert.Equal(t, FlowRegister, m.Flow(), "tab only toggles on the menu")

	typeText(m, "bob")
	act = enter(m)
	assert.Equal(t, &protocol.Request{Method: protocol.MethodRegisterUsername, Body: "bob"}, act.Send)

	m.HandleEnvelope(protocol.NewResponse(200, protocol.ReasonOK))
	typeText(m, "pw")
	act = enter(m)
	assert.Equal(t, &protocol.Request{Method: protocol.MethodRegisterPassword, Body: "pw"}, act.Send)
}

func TestInsertModeEditing(t *testing.T) {
	m := newTestModel(Options{})

	typeText(m, "héllo")
	m.HandleKey(Key{Type: KeyBackspace})
	assert.Equal(t, "héll", m.Input())

	m.HandleKey(Key{Type: KeyOther})
	assert.Equal(t, "héll", m.Input())

	for i := 0; i < 10; i++ {
		m.HandleKey(Key{Type: KeyBackspace})
	}
	assert.Empty(t, m.Input())
}

func TestNormalMode(t *testing.T) {
	m := newTestModel(Options{})

	m.HandleKey(Key{Type: KeyEsc})
	assert.Equal(t, ModeNormal, m.Mode())

	typeText(m, "x")
	assert.Empty(t, m.Input(), "normal mode does not edit")
	assert.Nil(t, enter(m).Send)

	m.HandleKey(RuneKey('i'))
	assert.Equal(t, ModeInsert, m.Mode())

	typeText(m, "q")
	assert.Equal(t, "q", m.Input(), "q is text in insert mode")

	m.HandleKey(Key{Type: KeyEsc})
	assert.True(t, m.HandleKey(RuneKey('q')).Quit)
}

func TestBannerOnlyAcceptsQ(t *testing.T) {
	m := newTestModel(Options{})
	typeText(m, "abc")
	m.HandleLine([]byte(`{"type":"response"}`))
	require.NotEmpty(t, m.Banner())
	assert.Contains(t, m.Banner(), "Invalid request")

	typeText(m, "xyz")
	assert.Nil(t, enter(m).Send)
	m.HandleKey(Key{Type: KeyEsc})
	assert.Equal(t, ModeInsert, m.Mode())
	assert.Equal(t, "abc", m.Input())

	act := m.HandleKey(RuneKey('q'))
	assert.False(t, act.Quit, "q dismisses the banner instead of quitting")
	assert.Empty(t, m.Banner())
	assert.Empty(t, m.Input(), "dismissing clears the input")
}

func TestChatEchoAndRetraction(t *testing.T) {
	m := loggedIn(t, "alice")

	typeText(m, "hello")
	act := enter(m)
	assert.Equal(t, &protocol.Request{Method: protocol.MethodSendMessage, Body: "hello"}, act.Send)
	assert.Equal(t, []Message{{Data: "hello", Sender: "alice", Date: "09-03-2024 14:30", Own: true}}, m.Messages())

	m.HandleEnvelope(protocol.NewChatMessage("bob", "hey", testNow))

	typeText(m, "")
	enter(m)
	m.HandleEnvelope(protocol.NewResponse(400, protocol.ReasonInvalidMessage))

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Data)
	assert.Equal(t, "hey", msgs[1].Data, "only our own echo is retracted")
	assert.Equal(t, "Message is empty or too long", m.Banner())
}

func TestOKWhileLoggedInIsAcknowledgement(t *testing.T) {
	m := loggedIn(t, "alice")
	m.HandleEnvelope(protocol.NewResponse(200, protocol.ReasonOK))
	assert.Equal(t, StageLoggedIn, m.Stage())
	assert.Empty(t, m.Banner())
}

func TestNotifications(t *testing.T) {
	t.Run("ignored before login", func(t *testing.T) {
		m := newTestModel(Options{})
		m.HandleEnvelope(protocol.NewConnectionNotice("bob has been connected to the server", testNow))
		assert.Empty(t, m.Messages())
	})

	t.Run("rendered once logged in", func(t *testing.T) {
		m := loggedIn(t, "alice")
		m.HandleEnvelope(protocol.NewConnectionNotice("bob has been connected to the server", testNow))
		m.HandleLine([]byte(`{"type":"request_s2c","method":"SendMessage","body":{"data":"hi","sender":"bob","date":"2024-03-09 14:31:00 +0200"}}`))

		assert.Equal(t, []Message{
			{Data: "bob has been connected to the server", Date: "09-03-2024 14:30"},
			{Data: "hi", Sender: "bob", Date: "09-03-2024 12:31"},
		}, m.Messages())
	})

	t.Run("read receipts are not rendered", func(t *testing.T) {
		m := loggedIn(t, "alice")
		m.HandleEnvelope(&protocol.Notification{Method: protocol.MethodMessageRead})
		assert.Empty(t, m.Messages())
	})

	t.Run("request from server sets banner", func(t *testing.T) {
		m := loggedIn(t, "alice")
		m.HandleEnvelope(&protocol.Request{Method: protocol.MethodSendMessage, Body: "x"})
		assert.NotEmpty(t, m.Banner())
	})
}

func TestHandleEOF(t *testing.T) {
	m := newTestModel(Options{ShutdownNotice: ShutdownNotice(3 * time.Second)})
	m.HandleEOF()
	m.HandleEOF()

	require.True(t, m.Closed())
	assert.Equal(t, []Message{{Data: "Server is shutting down, app will be closed in 3 seconds", Date: "09-03-2024 14:30"}}, m.Messages())

	typeText(m, "abc")
	assert.Empty(t, m.Input())
	assert.True(t, m.HandleKey(RuneKey('q')).Quit)
}

func TestHandleFrameErrorKeepsSession(t *testing.T) {
	m := loggedIn(t, "alice")
	m.HandleFrameError(&protocol.Error{Reason: "frame exceeds 65536 bytes"})

	assert.Contains(t, m.Banner(), "frame exceeds 65536 bytes")
	assert.False(t, m.Closed())
	assert.True(t, m.LoggedIn())
	assert.Empty(t, m.Messages())
}

func TestDescribeUnknownReason(t *testing.T) {
	assert.Equal(t, "Something", describe("Something"))
	assert.Equal(t, "logged in", StageLoggedIn.String())
}
