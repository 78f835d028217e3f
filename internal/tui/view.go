package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tyrowin/termchat/internal/client"
)

func (m *Model) View() string {
	if m.width < MinWidth || m.height < MinHeight {
		return m.tooSmallView()
	}
	if banner := m.chat.Banner(); banner != "" {
		return m.center(errorView(banner))
	}

	switch m.chat.Stage() {
	case client.StageChoosing:
		return m.center(m.menuView())
	case client.StageUsername:
		return m.center(m.inputBox("username", m.chat.Input()))
	case client.StagePassword:
		return m.center(m.inputBox("password", strings.Repeat("*", len([]rune(m.chat.Input())))))
	default:
		return m.chatView()
	}
}

func (m *Model) center(s string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m *Model) tooSmallView() string {
	text := strings.Join([]string{
		"Terminal size is too small:",
		fmt.Sprintf("Width = %s, height = %s", sizeStyle.Render(fmt.Sprint(m.width)), sizeStyle.Render(fmt.Sprint(m.height))),
		"Needed for current user interface:",
		fmt.Sprintf("Width = %s, height = %s", sizeStyle.Render(fmt.Sprint(MinWidth)), sizeStyle.Render(fmt.Sprint(MinHeight))),
	}, "\n")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Align(lipgloss.Center).Render(text))
}

func errorView(banner string) string {
	title := errorTitleStyle.Render("Error!") + " Press " + helpKeyStyle.Render("q") + " to continue"
	return errorBoxStyle.Render(title + "\n\n" + banner)
}

func (m *Model) menuView() string {
	logIn, signUp := menuItemStyle, menuItemStyle
	if m.chat.Flow() == client.FlowLogIn {
		logIn = menuSelectedStyle
	} else {
		signUp = menuSelectedStyle
	}
	hint := helpStyle.Render("Tab to switch, Enter to select")
	return lipgloss.JoinVertical(lipgloss.Center, logIn.Render("Log in"), signUp.Render("Sign up"), hint)
}

func (m *Model) inputBox(field, value string) string {
	style := frameStyle.Width(m.width / 2)
	if m.chat.Mode() == client.ModeInsert {
		value = activeInputStyle.Render(value + "▏")
	}
	return style.Render(fmt.Sprintf("Enter the %s\n%s", field, value)) + "\n" + m.helpLine()
}

func (m *Model) chatView() string {
	log := frameStyle.Width(m.width - 2).Render(m.viewport.View())

	value := m.chat.Input()
	if m.chat.Mode() == client.ModeInsert && !m.chat.Closed() {
		value = activeInputStyle.Render(value + "▏")
	}
	input := frameStyle.Width(m.width - 2).Render(value)

	return lipgloss.JoinVertical(lipgloss.Left, log, input, m.helpLine())
}

func (m *Model) helpLine() string {
	key := helpKeyStyle.Render
	switch {
	case m.chat.Closed():
		return helpStyle.Render(" Press ") + key("q") + helpStyle.Render(" to exit now")
	case m.chat.Mode() == client.ModeNormal:
		return helpStyle.Render(" Press ") + key("q") + helpStyle.Render(" to exit, ") +
			key("i") + helpStyle.Render(" to enter the insert mode")
	default:
		return helpStyle.Render(" Press ") + key("Esc") + helpStyle.Render(" to enter the normal mode, ") +
			key("Enter") + helpStyle.Render(" to send")
	}
}

// refreshLog re-renders the message log into the viewport, following the
// newest message.
func (m *Model) refreshLog() {
	msgs := m.chat.Messages()
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, formatMessage(msg))
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(lines, "\n")))
	m.viewport.GotoBottom()
}

func formatMessage(msg client.Message) string {
	date := dateStyle.Render("[" + msg.Date + "] ")
	if msg.Sender == "" {
		return date + systemStyle.Render(msg.Data)
	}
	return date + senderStyle.Render("["+msg.Sender+"] ") + textStyle.Render(msg.Data)
}
