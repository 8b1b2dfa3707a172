// Package render turns normalized chat text into HTML.
//
// Markdown is parsed with goldmark (GitHub flavored) plus a TeX math
// extension. Fenced code is highlighted with chroma off the render path: the
// first render of a block shows a plain placeholder and later renders pick up
// the highlighted markup from a bounded cache.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samsaffron/seek-chat/internal/normalize"
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

const (
	// DefaultTheme is the chroma style used when none is configured.
	DefaultTheme     = "github"
	defaultCacheSize = 256
)

// Options configures a Renderer.
type Options struct {
	// Theme is the chroma style name for code blocks.
	Theme string
	// CacheSize bounds the number of highlighted blocks kept in memory.
	CacheSize int
	// Sync highlights code blocks during Render instead of in the background.
	Sync bool
	// OnHighlight is called from a worker goroutine each time a background
	// highlight finishes, so a caller can schedule a re-render.
	OnHighlight func()
	// Pipeline normalizes message text in Prepare. Nil means normalize.Default().
	Pipeline *normalize.Pipeline
}

// Result is the output of one render.
type Result struct {
	HTML string
	// Pending counts code blocks in this output that are still placeholders.
	Pending int
}

// Renderer converts markdown to HTML. It is safe for concurrent use; renders
// are serialized.
type Renderer struct {
	md       goldmark.Markdown
	hl       *highlighter
	theme    string
	pipeline *normalize.Pipeline

	mu    sync.Mutex
	state renderState
}

// renderState is scoped to a single Render call.
type renderState struct {
	theme   string
	pending int
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Theme == "" {
		opts.Theme = DefaultTheme
	}
	if opts.Pipeline == nil {
		opts.Pipeline = normalize.Default()
	}
	r := &Renderer{
		hl:       newHighlighter(opts.CacheSize, opts.Sync, opts.OnHighlight),
		theme:    opts.Theme,
		pipeline: opts.Pipeline,
	}
	r.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM, MathExtension),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(&codeRenderer{r: r, writer: html.DefaultWriter}, 100)),
		),
	)
	return r
}

// Theme returns the default code theme.
func (r *Renderer) Theme() string {
	return r.theme
}

// Prepare normalizes raw message text and rewrites bracketed math so it is
// ready for Render.
func (r *Renderer) Prepare(content string) string {
	return PreprocessBrackets(r.pipeline.Normalize(content))
}

// Render converts normalized markdown to HTML using the default theme.
func (r *Renderer) Render(text string) (Result, error) {
	return r.RenderWithTheme(text, "")
}

// RenderWithTheme is Render with an explicit code theme. An empty theme
// means the default.
func (r *Renderer) RenderWithTheme(text, theme string) (Result, error) {
	if theme == "" {
		theme = r.theme
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = renderState{theme: theme}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return Result{}, fmt.Errorf("render markdown: %w", err)
	}
	return Result{HTML: buf.String(), Pending: r.state.pending}, nil
}

// Pending reports how many code blocks are being highlighted right now.
func (r *Renderer) Pending() int {
	return r.hl.Pending()
}

// Wait blocks until background highlighting has drained.
func (r *Renderer) Wait(ctx context.Context) error {
	return r.hl.Wait(ctx)
}

// ClearCache drops every highlighted block.
func (r *Renderer) ClearCache() {
	r.hl.cache.Clear()
}

// codeRenderer overrides goldmark's code output. It runs with r.mu held.
type codeRenderer struct {
	r      *Renderer
	writer html.Writer
}

func (c *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(gast.KindFencedCodeBlock, c.renderFencedCode)
	reg.Register(gast.KindCodeBlock, c.renderIndentedCode)
	reg.Register(gast.KindCodeSpan, c.renderCodeSpan)
}

func (c *codeRenderer) renderFencedCode(w util.BufWriter, source []byte, node gast.Node, entering bool) (gast.WalkStatus, error) {
	if !entering {
		return gast.WalkContinue, nil
	}
	n := node.(*gast.FencedCodeBlock)
	var info string
	if n.Info != nil {
		info = string(n.Info.Segment.Value(source))
	}
	c.writeBlock(w, DetectLanguage(info), blockSource(n, source))
	return gast.WalkSkipChildren, nil
}

func (c *codeRenderer) renderIndentedCode(w util.BufWriter, source []byte, node gast.Node, entering bool) (gast.WalkStatus, error) {
	if !entering {
		return gast.WalkContinue, nil
	}
	c.writeBlock(w, PlainText, blockSource(node, source))
	return gast.WalkSkipChildren, nil
}

func blockSource(n gast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(source))
	}
	return b.String()
}

func (c *codeRenderer) writeBlock(w util.BufWriter, lang, code string) {
	state := &c.r.state
	attr := util.EscapeHTML([]byte(lang))
	if highlighted, ok := c.r.hl.Lookup(state.theme, lang, code); ok {
		_, _ = fmt.Fprintf(w, `<div class="code-block" data-lang="%s">`, attr)
		_, _ = w.WriteString(highlighted)
		_, _ = w.WriteString("</div>\n")
		return
	}
	state.pending++
	_, _ = fmt.Fprintf(w, `<div class="code-block" data-lang="%s" data-pending="true"><pre><code>`, attr)
	c.writer.RawWrite(w, []byte(code))
	_, _ = w.WriteString("</code></pre></div>\n")
}

func (c *codeRenderer) renderCodeSpan(w util.BufWriter, source []byte, node gast.Node, entering bool) (gast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code>")
		return gast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<code class="inline-code">`)
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		value := child.(*gast.Text).Segment.Value(source)
		if bytes.HasSuffix(value, []byte("\n")) {
			c.writer.RawWrite(w, value[:len(value)-1])
			c.writer.RawWrite(w, []byte(" "))
		} else {
			c.writer.RawWrite(w, value)
		}
	}
	return gast.WalkSkipChildren, nil
}
