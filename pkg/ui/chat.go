// Package ui holds the presenters of a brainstorm session: a bubbletea chat
// panel with an embedded huh setup form, and a plain line-mode fallback.
// Both consume render commands and drive a Controller; neither reads session
// state directly.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/session"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

// Controller is what the presenters drive. *session.Manager implements it.
type Controller interface {
	CreateSession(ctx context.Context, topic string, agents []api.AgentConfig) (string, error)
	SendUserMessage(ctx context.Context, text string) error
	StopGeneration(ctx context.Context) error
	EndSession(ctx context.Context) error
	Export(ctx context.Context) error
}

var _ Controller = &session.Manager{}

// CommandMsg carries a render command into the bubbletea program.
type CommandMsg struct {
	Command render.Command
}

type actionDoneMsg struct {
	op        string
	sessionID string
	// text is the message a "send" carried.
	text string
	err  error
}

type statusTickMsg time.Time

const helpText = "enter send · ctrl+s stop · ctrl+e end · ctrl+x export · ctrl+y copy · pgup/pgdn scroll · ctrl+c quit"

type Option func(*ChatModel)

// WithModels enables per-agent model selection in the setup form.
func WithModels(models *api.ModelsResponse) Option {
	return func(m *ChatModel) { m.models = models }
}

// WithMarkdownStyle sets the glamour style for final agent messages. An empty
// style renders them as plain text.
func WithMarkdownStyle(style string) Option {
	return func(m *ChatModel) { m.mdStyle = style }
}

func WithClipboard(write func(string) error) Option {
	return func(m *ChatModel) {
		if write != nil {
			m.copy = write
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *ChatModel) {
		if now != nil {
			m.now = now
		}
	}
}

// ChatModel is the session panel. It starts in the setup form and switches to
// the conversation once the controller reports the Active panel.
type ChatModel struct {
	ctx  context.Context
	ctrl Controller
	now  func() time.Time
	copy func(string) error

	timeline  *render.Timeline
	statuses  *statusBuffer
	roster    []events.Agent
	panel     render.Panel
	sessionID string
	topic     string
	paused    bool
	activity  string
	creating  bool

	models    *api.ModelsResponse
	values    *setupValues
	setup     *huh.Form
	confirm   *huh.Form
	confirmed *bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	mdStyle string
	md      *glamour.TermRenderer
	mdWidth int
	mdCache map[string]string

	width  int
	height int
}

func NewChatModel(ctx context.Context, ctrl Controller, opts ...Option) *ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Join the conversation…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := &ChatModel{
		ctx:      ctx,
		ctrl:     ctrl,
		now:      time.Now,
		copy:     clipboard.WriteAll,
		timeline: render.NewTimeline(),
		statuses: newStatusBuffer(50, 5*time.Second),
		panel:    render.PanelSetup,
		viewport: viewport.New(80, 20),
		input:    ta,
		spinner:  sp,
		mdStyle:  "dark",
		mdCache:  map[string]string{},
		width:    80,
		height:   30,
	}
	for _, o := range opts {
		o(m)
	}
	m.values = newSetupValues(m.models)
	m.setup = newSetupForm(m.values, m.models)
	return m
}

// Bind sets the controller. The controller usually needs the program's sink,
// so it is created after the model.
func (m *ChatModel) Bind(ctrl Controller) {
	m.ctrl = ctrl
}

func statusTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

func (m *ChatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, textarea.Blink, statusTick()}
	if m.setup != nil {
		cmds = append(cmds, m.setup.Init())
	}
	return tea.Batch(cmds...)
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		if m.setup != nil {
			f, cmd := m.setup.Update(msg)
			if form, ok := f.(*huh.Form); ok {
				m.setup = form
			}
			return m, cmd
		}
		return m, nil
	case CommandMsg:
		m.apply(msg.Command)
		return m, nil
	case actionDoneMsg:
		return m, m.handleAction(msg)
	case statusTickMsg:
		return m, statusTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.timeline.Pending() > 0 {
			m.refresh()
		}
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	if m.confirm != nil {
		return m, m.updateConfirm(msg)
	}
	if m.panel == render.PanelSetup {
		if m.setup == nil || m.creating {
			return m, nil
		}
		return m, m.updateSetup(msg)
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKey(key); handled {
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if _, ok := msg.(tea.MouseMsg); ok {
		var vcmd tea.Cmd
		m.viewport, vcmd = m.viewport.Update(msg)
		cmd = tea.Batch(cmd, vcmd)
	}
	return m, cmd
}

func (m *ChatModel) updateSetup(msg tea.Msg) tea.Cmd {
	f, cmd := m.setup.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		m.setup = form
	}
	switch m.setup.State {
	case huh.StateCompleted:
		return m.submitSetup()
	case huh.StateAborted:
		return tea.Quit
	}
	return cmd
}

// submitSetup sends the collected answers to the controller.
func (m *ChatModel) submitSetup() tea.Cmd {
	m.creating = true
	ctx, ctrl := m.ctx, m.ctrl
	topic := strings.TrimSpace(m.values.Topic)
	agents := m.values.agentConfigs()
	m.topic = topic
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		id, err := ctrl.CreateSession(ctx, topic, agents)
		return actionDoneMsg{op: "create", sessionID: id, err: err}
	})
}

func (m *ChatModel) handleKey(key tea.KeyMsg) (tea.Cmd, bool) {
	switch key.String() {
	case "enter":
		if m.panel == render.PanelEnded {
			m.localStatus(render.StatusWarn, "The session has ended")
			return nil, true
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			m.localStatus(render.StatusWarn, "Message is empty")
			return nil, true
		}
		ctx, ctrl := m.ctx, m.ctrl
		return func() tea.Msg {
			return actionDoneMsg{op: "send", text: text, err: ctrl.SendUserMessage(ctx, text)}
		}, true
	case "ctrl+s":
		if m.panel == render.PanelEnded {
			return nil, true
		}
		return m.do("stop", func(ctx context.Context, c Controller) error { return c.StopGeneration(ctx) }), true
	case "ctrl+e":
		if m.panel == render.PanelEnded {
			return nil, true
		}
		return m.openConfirm(), true
	case "ctrl+x":
		return m.do("export", func(ctx context.Context, c Controller) error { return c.Export(ctx) }), true
	case "ctrl+y":
		m.copyLast()
		return nil, true
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return cmd, true
	}
	return nil, false
}

func (m *ChatModel) do(op string, f func(context.Context, Controller) error) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: f(ctx, ctrl)}
	}
}

func (m *ChatModel) handleAction(msg actionDoneMsg) tea.Cmd {
	if msg.op != "create" {
		if msg.err != nil {
			log.Debug().Err(msg.err).Str("op", msg.op).Msg("ui action failed")
			m.localStatus(render.StatusWarn, actionError(msg.op, msg.err))
			return nil
		}
		// keep anything typed while the send was in flight
		if msg.op == "send" && m.input.Value() == msg.text {
			m.input.Reset()
		}
		return nil
	}

	m.creating = false
	if msg.err == nil || msg.sessionID != "" {
		// Created. A stream failure has already been reported by the controller.
		m.sessionID = msg.sessionID
		m.setup = nil
		return m.input.Focus()
	}
	if session.IsInputValidation(msg.err) {
		m.localStatus(render.StatusError, msg.err.Error())
	}
	m.setup = newSetupForm(m.values, m.models)
	return m.setup.Init()
}

func (m *ChatModel) openConfirm() tea.Cmd {
	confirmed := false
	m.confirmed = &confirmed
	m.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("End this session?").
				Description("The agents stop and the conversation cannot be resumed.").
				Affirmative("End").
				Negative("Keep going").
				Value(m.confirmed),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(false)
	m.input.Blur()
	return m.confirm.Init()
}

func (m *ChatModel) updateConfirm(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		return m.finishConfirm(false)
	}
	f, cmd := m.confirm.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		m.confirm = form
	}
	switch m.confirm.State {
	case huh.StateCompleted:
		return m.finishConfirm(*m.confirmed)
	case huh.StateAborted:
		return m.finishConfirm(false)
	}
	return cmd
}

func (m *ChatModel) finishConfirm(ok bool) tea.Cmd {
	m.confirm = nil
	m.confirmed = nil
	focus := m.input.Focus()
	if !ok {
		return focus
	}
	return tea.Batch(focus, m.do("end", func(ctx context.Context, c Controller) error { return c.EndSession(ctx) }))
}

func (m *ChatModel) copyLast() {
	v, ok := m.timeline.LastFinal()
	if !ok {
		m.localStatus(render.StatusWarn, "Nothing to copy yet")
		return
	}
	if err := m.copy(v.Content); err != nil {
		log.Warn().Err(err).Str("component", "ui").Msg("clipboard write failed")
		m.localStatus(render.StatusError, "Copy failed: "+err.Error())
		return
	}
	m.localStatus(render.StatusInfo, "Copied message from "+v.DisplayName)
}

func (m *ChatModel) localStatus(level render.StatusLevel, text string) {
	m.statuses.Add(render.StatusLine{Level: level, Text: text, Transient: true, At: m.now()})
}

// apply folds a render command into the model.
func (m *ChatModel) apply(cmd render.Command) {
	m.timeline.Apply(cmd)
	switch c := cmd.(type) {
	case render.StatusLine:
		m.statuses.Add(c)
	case render.Activity:
		m.activity = describeActivity(c)
	case render.Finalize:
		m.activity = ""
	case render.Roster:
		m.roster = append([]events.Agent(nil), c.Agents...)
	case render.PauseChanged:
		m.paused = c.Paused
	case render.PanelChanged:
		m.panel = c.State
		if c.SessionID != "" {
			m.sessionID = c.SessionID
		}
		if c.Topic != "" {
			m.topic = c.Topic
		}
		switch c.State {
		case render.PanelActive:
			m.setup = nil
			m.creating = false
			m.input.Focus()
		case render.PanelEnded:
			m.input.Blur()
			m.confirm = nil
			m.activity = ""
		}
	}
	m.refresh()
}

func (m *ChatModel) resize(w, h int) {
	m.width, m.height = w, h
	m.input.SetWidth(w)
	// title, roster, status and help take a line each
	vh := h - 4 - m.input.Height() - 1
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = w
	m.viewport.Height = vh
	m.refresh()
}

func (m *ChatModel) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTimeline())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *ChatModel) renderTimeline() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	var sb strings.Builder
	for i, v := range m.timeline.Views() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderHeader(v))
		sb.WriteString("\n")
		sb.WriteString(m.renderBody(v, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *ChatModel) renderHeader(v render.View) string {
	name := v.DisplayName
	var out string
	if v.Author == render.AuthorUser {
		out = userStyle.Render(name)
	} else {
		out = agentStyle.Render(name)
	}
	if v.ReplyTo != "" {
		out += replyStyle.Render(" ↪ " + v.ReplyTo)
	}
	if v.State == render.ViewPending {
		out += " " + m.spinner.View()
	}
	return out
}

func (m *ChatModel) renderBody(v render.View, width int) string {
	if v.State == render.ViewPending {
		if v.Content == "" {
			return pendingStyle.Render("…")
		}
		return pendingStyle.Width(width).Render(v.Content)
	}
	if v.Author == render.AuthorAI {
		if out, ok := m.markdown(v, width); ok {
			return out
		}
	}
	return lipgloss.NewStyle().Width(width).Render(v.Content)
}

func (m *ChatModel) markdown(v render.View, width int) (string, bool) {
	if m.mdStyle == "" {
		return "", false
	}
	if m.md == nil || m.mdWidth != width {
		r, err := glamour.NewTermRenderer(glamour.WithStylePath(m.mdStyle), glamour.WithWordWrap(width))
		if err != nil {
			log.Warn().Err(err).Str("component", "ui").Msg("markdown renderer unavailable")
			m.mdStyle = ""
			return "", false
		}
		m.md = r
		m.mdWidth = width
		m.mdCache = map[string]string{}
	}
	if out, ok := m.mdCache[v.ID]; ok {
		return out, true
	}
	out, err := m.md.Render(v.Content)
	if err != nil {
		return "", false
	}
	out = strings.Trim(out, "\n")
	m.mdCache[v.ID] = out
	return out, true
}

func (m *ChatModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("brainstorm"))
	if m.topic != "" {
		sb.WriteString(" " + topicStyle.Render(m.topic))
	}
	if m.paused {
		sb.WriteString(" " + pausedStyle.Render("[paused]"))
	}
	if m.panel == render.PanelEnded {
		sb.WriteString(" " + replyStyle.Render("[ended]"))
	}
	sb.WriteString("\n")

	if m.panel == render.PanelSetup {
		if m.creating {
			sb.WriteString(m.spinner.View() + " Creating session…\n")
		} else if m.setup != nil {
			sb.WriteString(m.setup.View())
			sb.WriteString("\n")
		}
		sb.WriteString(m.statusView())
		return sb.String()
	}

	sb.WriteString(rosterStyle.Render(describeRoster(m.roster)))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusView())
	sb.WriteString("\n")
	switch {
	case m.confirm != nil:
		sb.WriteString(confirmStyle.Render(m.confirm.View()))
	case m.panel == render.PanelEnded:
		sb.WriteString(helpStyle.Render("Session ended. ctrl+x export · ctrl+y copy · ctrl+c quit"))
	default:
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(helpStyle.Render(helpText))
	}
	return sb.String()
}

func (m *ChatModel) statusView() string {
	if l, ok := m.statuses.Current(m.now()); ok {
		return statusStyle(l.Level).Render(l.Text)
	}
	if m.activity != "" {
		return pendingStyle.Render(m.activity)
	}
	return ""
}
