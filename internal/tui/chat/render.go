package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samsaffron/seek-chat/internal/llm"
	"github.com/samsaffron/seek-chat/internal/render"
	"github.com/samsaffron/seek-chat/internal/session"
	"github.com/samsaffron/seek-chat/internal/turn"
	"github.com/samsaffron/seek-chat/internal/ui"
)

const (
	bannerGenerating = "Generating response..."
	bannerStalled    = "Taking longer than expected!"
	bannerFailed     = "Error: Failed to load response. Please try again."
)

func (m *Model) renderHeader() string {
	title := m.styles.Title.Render("seek-chat")
	if m.modelName == "" {
		return title
	}
	return title + m.styles.Muted.Render(" · "+m.modelName)
}

func (m *Model) renderHR() string {
	return m.styles.Border.Render(strings.Repeat("─", max(m.width, 1)))
}

// banner returns the status banner for the current turn, or "".
func (m *Model) banner() string {
	retry := m.styles.Muted.Render("  (" + m.keyMap.Retry.Help().Key + " to retry)")
	switch {
	case m.turn.State.Active() && m.turn.Stalled:
		return m.styles.Banner.Foreground(m.styles.Theme().Warning).Render(bannerStalled) + retry
	case m.turn.State == turn.Sending:
		return m.spinner.View() + " " + m.styles.Muted.Render(bannerGenerating)
	case m.turn.State == turn.Failed:
		return m.styles.Banner.Foreground(m.styles.Theme().Error).Render(bannerFailed) + retry
	}
	return ""
}

func (m *Model) renderSuggestions() string {
	var rows []string
	rows = append(rows, m.styles.Subtitle.Render("Try one of these ("+m.keyMap.NextSuggestion.Help().Key+" to pick, enter to send):"))
	for i, s := range m.suggestions {
		style := m.styles.Suggestion
		if i == m.suggestion {
			style = m.styles.SuggestionSel
		}
		rows = append(rows, style.Render(ui.Truncate(s, max(m.width-4, 8))))
	}
	out := lipgloss.JoinVertical(lipgloss.Left, rows...)
	// Keep the input anchored at the bottom.
	h := m.vp.Model.Height
	if pad := h - lipgloss.Height(out); pad > 0 {
		out += strings.Repeat("\n", pad)
	}
	return out
}

// renderTranscript renders every message in insertion order.
func (m *Model) renderTranscript() string {
	width := max(m.width-2, 10)
	selected := m.selectedID()

	var b strings.Builder
	for i, msg := range m.store.Messages() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width, msg.ID == selected))
	}
	return b.String()
}

func (m *Model) renderMessage(msg session.Message, width int, selected bool) string {
	switch msg.Role {
	case llm.RoleUser:
		label := m.styles.UserLabel.Render("You")
		body := m.styles.UserMessage.Width(width).Render(msg.Content)
		return label + "\n" + body
	case llm.RoleAssistant:
		marker := "  "
		if selected {
			marker = m.styles.Highlighted.Render("› ")
		}
		label := marker + m.styles.AssistantLabel.Render("DeepSeek")
		out := label + "\n" + m.renderAssistantBody(msg, width)
		if msg.Final {
			out += "\n" + m.renderActions(msg.ID)
		}
		return out
	default:
		return m.styles.Muted.Render(msg.Content)
	}
}

// renderAssistantBody normalizes and renders markdown. Finished messages
// never change, so their output is cached per width.
func (m *Model) renderAssistantBody(msg session.Message, width int) string {
	cacheKey := fmt.Sprintf("%s:%d", msg.ID, width)
	if msg.Final {
		if out, ok := m.rendered[cacheKey]; ok {
			return out
		}
	}
	text := render.PreprocessBrackets(m.pipeline.Normalize(msg.Content))
	out := m.term.Render(text, width)
	if msg.Final {
		m.rendered[cacheKey] = out
	}
	return out
}

func (m *Model) renderActions(id string) string {
	copyLabel := m.styles.Muted.Render(ui.CopyIcon + " copy")
	if m.tracker.Copied(id) {
		copyLabel = m.styles.Success.Render(ui.SuccessIcon + " copied")
	}
	like := m.styles.Muted.Render(ui.LikedIcon)
	dislike := m.styles.Muted.Render(ui.DislikedIcon)
	switch m.tracker.Feedback(id) {
	case session.FeedbackLiked:
		like = m.styles.Success.Render(ui.LikedIcon)
	case session.FeedbackDisliked:
		dislike = m.styles.Error.Render(ui.DislikedIcon)
	}
	return "  " + copyLabel + "  " + like + " " + dislike
}

func (m *Model) renderStatusBar() string {
	if m.notice != "" {
		return m.styles.Error.Render(ui.Truncate(m.notice, max(m.width, 10)))
	}

	prefix := ""
	var parts []string
	if m.turn.State.Active() {
		prefix = m.spinner.View() + " "
		parts = append(parts, m.keyMap.Stop.Help().Key+" stop")
	} else {
		parts = append(parts, m.keyMap.Send.Help().Key+" send")
	}
	if !m.vp.Engine().Enabled() {
		parts = append(parts, m.keyMap.Bottom.Help().Key+" follow")
	}
	parts = append(parts,
		m.keyMap.Copy.Help().Key+" copy",
		m.keyMap.Like.Help().Key+"/"+m.keyMap.Dislike.Help().Key+" rate",
		m.keyMap.NewSession.Help().Key+" new",
		m.keyMap.Quit.Help().Key+" quit",
	)
	if u := m.turn.Usage; u != nil && !m.turn.State.Active() {
		parts = append(parts, fmt.Sprintf("%d↑ %d↓ tokens", u.InputTokens, u.OutputTokens))
	}
	width := max(m.width-lipgloss.Width(prefix), 10)
	return prefix + m.styles.Footer.Render(ui.Truncate(strings.Join(parts, " · "), width))
}
