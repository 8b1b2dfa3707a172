package scroll

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewportAdapter drives a bubbles viewport with an Engine. Terminal
// scrolls are applied immediately, so a programmatic scroll settles in the
// same call that starts it.
type ViewportAdapter struct {
	Model  viewport.Model
	engine *Engine
}

// NewViewportAdapter returns an adapter measuring in lines.
func NewViewportAdapter(width, height int) *ViewportAdapter {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return &ViewportAdapter{
		Model: vp,
		engine: New(Options{
			BottomThreshold: 1,
			TargetTolerance: 1,
		}),
	}
}

// Engine exposes the follow state.
func (a *ViewportAdapter) Engine() *Engine { return a.engine }

// Geometry returns the current viewport snapshot.
func (a *ViewportAdapter) Geometry() Viewport {
	return Viewport{
		Offset:        a.Model.YOffset,
		Height:        a.Model.Height,
		ContentHeight: a.Model.TotalLineCount(),
	}
}

// SetSize resizes the viewport, keeping the bottom pinned when following.
func (a *ViewportAdapter) SetSize(width, height int) {
	a.Model.Width = width
	a.Model.Height = height
	if a.engine.Enabled() {
		a.Model.GotoBottom()
	}
	a.engine.Scroll(a.Geometry())
}

// SetContent replaces the transcript. newMessage is true when the content
// gained a message rather than grew within the last one.
func (a *ViewportAdapter) SetContent(content string, newMessage bool) {
	before := a.Model.TotalLineCount()
	a.Model.SetContent(content)
	delta := a.Model.TotalLineCount() - before
	if newMessage && delta <= 0 {
		delta = 1
	}
	cmd := a.engine.Mutation(a.Geometry(), Change{Delta: delta, NewMessage: newMessage})
	if cmd.Behavior == None {
		return
	}
	a.Model.SetYOffset(cmd.Target)
	a.engine.ScrollEnd(a.Geometry())
}

// Follow re-enables following and jumps to the bottom.
func (a *ViewportAdapter) Follow() {
	a.engine.Follow()
	a.Model.GotoBottom()
	a.engine.Scroll(a.Geometry())
}

// Update forwards navigation messages to the viewport and records the
// resulting position.
func (a *ViewportAdapter) Update(msg tea.Msg) tea.Cmd {
	if m, ok := msg.(tea.MouseMsg); ok && m.Action == tea.MouseActionPress && m.Button == tea.MouseButtonWheelUp {
		a.engine.Wheel(-1)
	}
	var cmd tea.Cmd
	a.Model, cmd = a.Model.Update(msg)
	a.engine.Scroll(a.Geometry())
	return cmd
}

// View renders the viewport.
func (a *ViewportAdapter) View() string {
	return a.Model.View()
}
