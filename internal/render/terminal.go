package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// Terminal renders markdown for a terminal with glamour. Building a glamour
// renderer is expensive, so one is kept per wrap width.
type Terminal struct {
	style ansi.StyleConfig

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewTerminal creates a terminal renderer with the given glamour style.
// Document margins are stripped so the caller controls layout.
func NewTerminal(style ansi.StyleConfig) *Terminal {
	margin := uint(0)
	style.Document.Margin = &margin
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	style.CodeBlock.Margin = &margin
	return &Terminal{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

func (t *Terminal) renderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := t.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(t.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	t.renderers[width] = r
	return r, nil
}

// Render renders content wrapped to width. On error the content is returned
// unchanged.
func (t *Terminal) Render(content string, width int) string {
	if content == "" {
		return ""
	}
	out, err := t.RenderWithError(content, width)
	if err != nil {
		return content
	}
	return out
}

// RenderWithError is Render for callers that want the error.
func (t *Terminal) RenderWithError(content string, width int) (string, error) {
	if width < 10 {
		width = 10
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.renderer(width)
	if err != nil {
		return "", err
	}
	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
