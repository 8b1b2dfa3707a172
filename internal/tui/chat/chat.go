// Package chat is the full-screen terminal chat client.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/lipgloss"
	"github.com/samsaffron/seek-chat/internal/llm"
	"github.com/samsaffron/seek-chat/internal/normalize"
	"github.com/samsaffron/seek-chat/internal/render"
	"github.com/samsaffron/seek-chat/internal/scroll"
	"github.com/samsaffron/seek-chat/internal/session"
	"github.com/samsaffron/seek-chat/internal/turn"
	"github.com/samsaffron/seek-chat/internal/ui"
)

// DefaultSuggestions are offered on an empty conversation.
var DefaultSuggestions = []string{
	"What is 2+2?",
	"Generate a tasty vegan lasagna recipe",
	"Tell me a fun fact",
	"What is the capital of France?",
	"Write a simple hello world program in Python",
}

// Options configures a Model.
type Options struct {
	Sender   turn.Sender
	Style    ansi.StyleConfig
	Styles   *ui.Styles
	Pipeline *normalize.Pipeline

	StallTimeout time.Duration
	CopyReset    time.Duration
	// Clipboard overrides the system clipboard, mostly for tests.
	Clipboard func(string) error
	// AfterFunc overrides timers for the stall and copy-reset delays.
	AfterFunc func(time.Duration, func()) session.Timer

	Logger      *slog.Logger
	ModelName   string
	Suggestions []string
	Width       int
	Height      int
}

type (
	turnUpdateMsg turn.Update
	copyResetMsg  string
)

// Model is the main chat TUI model
type Model struct {
	// Dimensions
	width  int
	height int

	// Components
	textarea textarea.Model
	spinner  spinner.Model
	styles   *ui.Styles
	keyMap   KeyMap
	vp       *scroll.ViewportAdapter
	term     *render.Terminal
	pipeline *normalize.Pipeline

	// Session state
	ctx        context.Context
	store      *session.Store
	tracker    *session.Tracker
	controller *turn.Controller
	turn       turn.Update
	copyResets chan string

	// View state
	suggestions []string
	suggestion  int    // highlighted suggestion, -1 for none
	selected    string // selected assistant message, "" follows the newest
	notice      string
	rendered    map[string]string // final assistant bodies by id and width
	lastCount   int

	log       *slog.Logger
	modelName string
	quitting  bool
}

// New creates the chat model.
func New(opts Options) *Model {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 24
	}
	if opts.Styles == nil {
		opts.Styles = ui.DefaultStyles()
	}
	if opts.Pipeline == nil {
		opts.Pipeline = normalize.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Suggestions == nil {
		opts.Suggestions = DefaultSuggestions
	}
	styles := opts.Styles

	// Create spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "❯ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0 // No limit
	ta.SetWidth(opts.Width)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(styles.Theme().Muted)
	ta.FocusedStyle.EndOfBuffer = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(styles.Theme().Primary).Bold(true)
	ta.BlurredStyle = ta.FocusedStyle
	// Enter sends; newlines come from KeyMap.Newline.
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	m := &Model{
		width:       opts.Width,
		height:      opts.Height,
		textarea:    ta,
		spinner:     s,
		styles:      styles,
		keyMap:      DefaultKeyMap(),
		vp:          scroll.NewViewportAdapter(opts.Width, 1),
		term:        render.NewTerminal(opts.Style),
		pipeline:    opts.Pipeline,
		ctx:         context.Background(),
		store:       session.NewStore(),
		copyResets:  make(chan string, 16),
		suggestions: opts.Suggestions,
		suggestion:  -1,
		rendered:    make(map[string]string),
		log:         opts.Logger,
		modelName:   opts.ModelName,
	}
	m.tracker = session.NewTracker(session.TrackerOptions{
		CopyReset: opts.CopyReset,
		Clipboard: opts.Clipboard,
		AfterFunc: opts.AfterFunc,
		OnChange:  m.notifyCopyReset,
	})
	m.controller = turn.NewController(m.store, opts.Sender, turn.Options{
		StallTimeout: opts.StallTimeout,
		AfterFunc:    opts.AfterFunc,
		Logger:       opts.Logger,
	})
	m.layout()
	return m
}

// notifyCopyReset runs on a timer goroutine. The UI loop picks the id up
// through waitForCopyReset.
func (m *Model) notifyCopyReset(id string) {
	select {
	case m.copyResets <- id:
	default:
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.waitForUpdate(),
		m.waitForCopyReset(),
	)
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.controller.Updates()
	return func() tea.Msg {
		return turnUpdateMsg(<-updates)
	}
}

func (m *Model) waitForCopyReset() tea.Cmd {
	resets := m.copyResets
	return func() tea.Msg {
		return copyResetMsg(<-resets)
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(m.width)
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m, m.vp.Update(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnUpdateMsg:
		prev := m.turn
		m.turn = turn.Update(msg)
		if m.turn.Err != nil && m.turn.Err != prev.Err {
			m.log.Warn("response failed", "error", m.turn.Err)
		}
		m.layout()
		m.refresh()
		return m, m.waitForUpdate()

	case copyResetMsg:
		m.refresh()
		return m, m.waitForCopyReset()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.controller.Cancel()
		m.tracker.Reset()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Stop):
		if m.controller.Cancel() {
			return m, nil
		}
		m.suggestion = -1
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		m.send()
		return m, nil

	case key.Matches(msg, m.keyMap.Retry):
		m.retry()
		return m, nil

	case key.Matches(msg, m.keyMap.NewSession):
		m.newSession()
		return m, nil

	case key.Matches(msg, m.keyMap.Newline), key.Matches(msg, m.keyMap.NewlineAlt):
		m.textarea.InsertString("\n")
		m.layout()
		return m, nil

	case key.Matches(msg, m.keyMap.ClearLine):
		m.textarea.Reset()
		m.layout()
		return m, nil

	case m.suggestionsVisible() && key.Matches(msg, m.keyMap.NextSuggestion):
		m.suggestion = (m.suggestion + 1) % len(m.suggestions)
		return m, nil

	case m.suggestionsVisible() && key.Matches(msg, m.keyMap.PrevSuggestion):
		if m.suggestion <= 0 {
			m.suggestion = len(m.suggestions) - 1
		} else {
			m.suggestion--
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		return m, m.vp.Update(msg)

	case key.Matches(msg, m.keyMap.Bottom):
		m.vp.Follow()
		return m, nil

	case key.Matches(msg, m.keyMap.SelectPrev):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keyMap.SelectNext):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keyMap.Copy):
		m.copySelected()
		return m, nil

	case key.Matches(msg, m.keyMap.Like):
		m.feedback(session.FeedbackLiked)
		return m, nil

	case key.Matches(msg, m.keyMap.Dislike):
		m.feedback(session.FeedbackDisliked)
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.layout()
	return m, cmd
}

// send submits the input, or the highlighted suggestion when the input is
// empty. Enter does nothing while a response is in flight; Esc stops it.
func (m *Model) send() {
	if m.turn.State.Active() {
		return
	}
	text := m.textarea.Value()
	if strings.TrimSpace(text) == "" && m.suggestionsVisible() && m.suggestion >= 0 {
		text = m.suggestions[m.suggestion]
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	if _, err := m.controller.Send(m.ctx, text); err != nil {
		if !errors.Is(err, turn.ErrEmptyPrompt) {
			m.notice = err.Error()
		}
		return
	}
	m.turn = m.controller.Snapshot()
	m.textarea.Reset()
	m.suggestion = -1
	m.selected = ""
	m.vp.Follow()
	m.layout()
	m.refresh()
}

func (m *Model) retry() {
	if !m.turn.Stalled && m.turn.State != turn.Failed {
		return
	}
	if err := m.controller.Retry(m.ctx); err != nil {
		m.notice = err.Error()
		return
	}
	m.turn = m.controller.Snapshot()
	m.vp.Follow()
	m.layout()
	m.refresh()
}

func (m *Model) newSession() {
	m.controller.Reset()
	m.tracker.Reset()
	m.store.Clear()
	m.turn = m.controller.Snapshot()
	m.rendered = make(map[string]string)
	m.lastCount = 0
	m.selected = ""
	m.suggestion = -1
	m.textarea.Reset()
	m.vp.Follow()
	m.layout()
	m.refresh()
}

// finalAnswers lists the ids of finished assistant messages in order.
func (m *Model) finalAnswers() []string {
	var ids []string
	for _, msg := range m.store.Messages() {
		if msg.Role == llm.RoleAssistant && msg.Final {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

// selectedID resolves the selection, defaulting to the newest answer.
func (m *Model) selectedID() string {
	ids := m.finalAnswers()
	if len(ids) == 0 {
		return ""
	}
	for _, id := range ids {
		if id == m.selected {
			return id
		}
	}
	return ids[len(ids)-1]
}

func (m *Model) moveSelection(step int) {
	ids := m.finalAnswers()
	if len(ids) == 0 {
		return
	}
	cur := len(ids) - 1
	sel := m.selectedID()
	for i, id := range ids {
		if id == sel {
			cur = i
		}
	}
	cur += step
	if cur < 0 {
		cur = 0
	}
	if cur >= len(ids) {
		cur = len(ids) - 1
	}
	m.selected = ids[cur]
	if cur == len(ids)-1 {
		m.selected = ""
	}
	m.refresh()
}

func (m *Model) copySelected() {
	id := m.selectedID()
	if id == "" {
		return
	}
	msg, ok := m.store.Get(id)
	if !ok {
		return
	}
	if err := m.tracker.Copy(id, msg.Content); err != nil {
		m.log.Warn("copy failed", "error", err)
		m.notice = "Copy failed: " + err.Error()
		return
	}
	m.refresh()
}

func (m *Model) feedback(f session.Feedback) {
	id := m.selectedID()
	if id == "" {
		return
	}
	m.tracker.SetFeedback(id, f)
	m.log.Debug("feedback", "message", id, "value", f.String())
	m.refresh()
}

func (m *Model) suggestionsVisible() bool {
	return m.store.Len() == 0 && m.textarea.Value() == "" && len(m.suggestions) > 0
}

// layout sizes the viewport to whatever the fixed rows leave over.
func (m *Model) layout() {
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines > 6 {
		lines = 6
	}
	m.textarea.SetHeight(lines)

	fixed := 1 + 1 + lines + 1 // header, rule, input, status
	if b := m.banner(); b != "" {
		fixed += lipgloss.Height(b)
	}
	h := m.height - fixed
	if h < 1 {
		h = 1
	}
	m.vp.SetSize(m.width, h)
}

// refresh re-renders the transcript into the viewport. The scroll engine
// sees it as a content mutation.
func (m *Model) refresh() {
	count := m.store.Len()
	newMessage := count > m.lastCount
	m.lastCount = count
	m.vp.SetContent(m.renderTranscript(), newMessage)
}

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.suggestionsVisible() {
		b.WriteString(m.renderSuggestions())
	} else {
		b.WriteString(m.vp.View())
	}
	b.WriteString("\n")
	if banner := m.banner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}
	b.WriteString(m.renderHR())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}
