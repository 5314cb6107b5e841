package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/cli"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/pip"
	"github.com/clippy-oss/homie/callchat/internal/service"
)

// Presence reports how many participants share the call.
type Presence interface {
	Participants() int
}

type Config struct {
	Handler  *cli.CommandHandler
	Messages *service.MessageService
	Surface  *chat.Surface
	PiP      cli.PiPController
	Caller   service.Caller
	Presence Presence
	Bus      domain.EventBus
}

type busEventMsg struct {
	event domain.Event
}

type sendDoneMsg struct {
	err error
}

type actionDoneMsg struct {
	status string
	err    error
	quit   bool
}

type model struct {
	cfg Config
	ctx context.Context

	busInbound chan tea.Msg

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme

	width      int
	height     int
	callID     string
	callState  domain.CallState
	statusLine string
	inflight   bool
	rendered   int
}

func newModel(ctx context.Context, cfg Config, inbound chan tea.Msg) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = domain.MaxBodyLength
	input.Placeholder = "Message everyone in the call. /help lists commands."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	m := model{
		cfg:        cfg,
		ctx:        ctx,
		busInbound: inbound,
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
		callID:     cfg.Messages.CurrentCallID(),
		callState:  domain.CallStateIdle,
		statusLine: "ready",
	}
	if m.callID != "" {
		m.callState = domain.CallStateJoined
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitBusMsg(m.busInbound))
}

func waitBusMsg(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case busEventMsg:
		m.applyEvent(msg.event)
		m.renderTimeline()
		cmds = append(cmds, waitBusMsg(m.busInbound))
	case sendDoneMsg:
		m.inflight = false
		if msg.err != nil && !errors.Is(msg.err, chat.ErrSendFailed) {
			m.statusLine = msg.err.Error()
		}
		m.renderTimeline()
	case actionDoneMsg:
		m.inflight = false
		if msg.quit {
			return m, tea.Quit
		}
		if msg.err != nil {
			m.statusLine = msg.err.Error()
		} else if msg.status != "" {
			m.statusLine = msg.status
		}
		m.renderTimeline()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTimeline()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.cfg.Surface.Toggle(m.ctx)
			m.renderTimeline()
			return m, nil
		case "esc":
			if m.cfg.Surface.Err() != nil {
				m.cfg.Surface.DismissError()
			} else if m.cfg.Surface.IsOpen() {
				m.cfg.Surface.Close(m.ctx)
			}
			m.renderTimeline()
			return m, nil
		case "ctrl+p":
			if !m.pipAvailable() {
				return m, nil
			}
			cmd := m.commandCmd("/pip")
			return m, cmd
		case "ctrl+t":
			line := "/mute"
			if m.cfg.Caller != nil && m.cfg.Caller.Muted() {
				line = "/unmute"
			}
			cmd := m.commandCmd(line)
			return m, cmd
		case "ctrl+l":
			cmd := m.commandCmd("/leave")
			return m, cmd
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		case "enter":
			cmd := m.submit()
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.commandCmd(text)
	}
	if !m.cfg.Surface.IsOpen() {
		m.statusLine = "open the chat with Tab to send messages"
		return nil
	}
	if m.inflight {
		return nil
	}
	m.input.Reset()
	m.inflight = true
	surface := m.cfg.Surface
	ctx := m.ctx
	return func() tea.Msg {
		_, err := surface.Send(ctx, text)
		return sendDoneMsg{err: err}
	}
}

func (m *model) commandCmd(line string) tea.Cmd {
	handler := m.cfg.Handler
	ctx := m.ctx
	m.inflight = true
	return func() tea.Msg {
		cmd, err := cli.ParseCommand(line)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		result, err := handler.Execute(ctx, cmd)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: describe(cmd.Name, result), quit: isQuit(result)}
	}
}

func (m *model) applyEvent(event domain.Event) {
	switch e := event.(type) {
	case domain.CallStateEvent:
		m.callState = e.State
		m.callID = ""
		if e.State == domain.CallStateJoined {
			m.callID = e.CallID
		}
		m.statusLine = fmt.Sprintf("call %s", e.State)
	case domain.PiPStateEvent:
		m.statusLine = "picture-in-picture " + e.State
	case domain.SendFailedEvent:
		m.statusLine = "message not delivered"
	}
}

func (m *model) resize() {
	m.timeline.Width = maxInt(20, m.width-6)
	m.timeline.Height = maxInt(3, m.height-12)
	m.input.Width = maxInt(10, m.width-8)
}

// renderTimeline jumps to the newest entry whenever messages were appended
// and otherwise keeps the reader's scroll position.
func (m *model) renderTimeline() {
	atBottom := m.timeline.AtBottom()
	offset := m.timeline.YOffset

	var b strings.Builder
	me := m.cfg.Surface.User().ID
	messages := m.cfg.Surface.Messages()
	grew := len(messages) > m.rendered
	m.rendered = len(messages)
	for _, msg := range messages {
		name := m.theme.other.Render(msg.SenderName)
		if msg.IsFrom(me) {
			name = m.theme.self.Render("You")
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			m.theme.timestamp.Render(domain.FormatMessageTime(msg.SentAt)), name, msg.Body))
	}
	m.timeline.SetContent(b.String())
	if grew || atBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(offset)
	}
}

func (m model) View() string {
	header := m.renderHeader()
	var body string
	if m.cfg.Surface.IsOpen() {
		body = m.renderChat()
	} else {
		body = m.renderClosed()
	}
	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

func (m model) renderHeader() string {
	call := "Not connected to call"
	switch {
	case m.callID != "":
		call = "Connected to call: " + m.callID
	case m.callState == domain.CallStateConnecting:
		call = "Connecting..."
	}
	parts := []string{call}
	if m.callID != "" {
		parts = append(parts, fmt.Sprintf("%d participant(s)", m.participants()))
		if m.cfg.Presence != nil {
			parts = append(parts, fmt.Sprintf("%d online", m.cfg.Presence.Participants()))
		}
	}
	if m.cfg.Caller != nil && m.cfg.Caller.Muted() {
		parts = append(parts, "muted")
	}
	if m.cfg.PiP != nil && m.cfg.PiP.State() == pip.StateOpen {
		parts = append(parts, "pip open")
	}

	line := strings.Join(parts, " · ")
	if badge := m.badge(); badge != "" {
		line += " " + m.theme.badge.Render(badge)
	}
	return m.theme.header.Render(line)
}

// participants counts the distinct senders of the conversation plus the
// local user.
func (m model) participants() int {
	me := m.cfg.Surface.User().ID
	ids := lo.Map(m.cfg.Surface.Messages(), func(msg domain.ChatMessage, _ int) string {
		return msg.SenderID
	})
	return len(lo.Uniq(append(ids, me)))
}

func (m model) badge() string {
	if m.cfg.Surface.IsOpen() {
		return ""
	}
	return m.cfg.Messages.Badge()
}

func (m model) renderChat() string {
	title := m.theme.panelTitle.Render("Chat")
	input := m.input.View()
	if m.inflight {
		input = m.spinner.View() + " sending..."
	}
	parts := []string{title, m.timeline.View(), input}
	if err := m.cfg.Surface.Err(); err != nil {
		parts = append(parts, m.theme.errorStatus.Render(err.Error()+" (esc to dismiss)"))
	}
	return m.theme.panel.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m model) renderClosed() string {
	text := "Chat is hidden. Press Tab to open it."
	if n := m.cfg.Messages.Unread().UnreadCount; n > 0 {
		text = fmt.Sprintf("%d unread message(s). Press Tab to open the chat.", n)
	}
	return m.theme.panel.Render(m.theme.helpText.Render(text))
}

func (m model) renderFooter() string {
	status := m.theme.status.Render(m.statusLine)
	keys := []string{"tab chat", "enter send", "esc dismiss"}
	if m.pipAvailable() {
		keys = append(keys, "ctrl+p pip")
	}
	keys = append(keys, "ctrl+t mute", "ctrl+l leave", "ctrl+c quit")
	help := m.theme.helpText.Render(strings.Join(keys, " · "))
	return m.theme.footer.Render(status + "\n" + help)
}

func (m model) pipAvailable() bool {
	return m.cfg.PiP != nil && m.cfg.PiP.State() != pip.StateUnsupported
}

func describe(name string, result interface{}) string {
	switch r := result.(type) {
	case map[string]string:
		if msg, ok := r["message"]; ok {
			return msg
		}
		if _, ok := r["help"]; ok {
			return "commands: /join /leave /mute /unmute /send /messages /read /unread /pip /quit"
		}
	case cli.CallStatus:
		return r.Status
	case cli.UnreadInfo:
		if !r.HasUnread {
			return "no unread messages"
		}
		return "unread: " + r.Badge
	case cli.PiPInfo:
		return "picture-in-picture " + r.State
	case cli.MessageInfo:
		return "sent"
	}
	return name + " done"
}

func isQuit(result interface{}) bool {
	m, ok := result.(map[string]bool)
	return ok && m["quit"]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
