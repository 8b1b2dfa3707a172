package render

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	xhtml "golang.org/x/net/html"
)

// classes returns "tag.class" for every element with a class attribute, in
// document order.
func classes(t *testing.T, fragment string) []string {
	t.Helper()
	doc, err := xhtml.Parse(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	var out []string
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "class" {
					out = append(out, n.Data+"."+a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func mustRender(t *testing.T, r *Renderer, text string) Result {
	t.Helper()
	res, err := r.Render(text)
	if err != nil {
		t.Fatalf("Render(%q) error: %v", text, err)
	}
	return res
}

func TestRenderMath(t *testing.T) {
	r := New(Options{Sync: true})
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline", "where $x + 1$ is odd", `<span class="math math-inline">x + 1</span>`},
		{"display paragraph", "The area is\n\n$$\\pi r^2$$\n\nunits.", `<div class="math math-display">\pi r^2</div>`},
		{"display multi line", "$$a \\\\\nb$$", "<div class=\"math math-display\">a \\\\\nb</div>"},
		{"display inside prose", "so $$x$$ here", `<span class="math math-display">x</span>`},
		{"escaped tex", "$a<b$", `<span class="math math-inline">a&lt;b</span>`},
		{"emphasis chars untouched", "$a_1 * b_2$", `<span class="math math-inline">a_1 * b_2</span>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, r, tt.in).HTML
			if !strings.Contains(got, tt.want) {
				t.Fatalf("Render(%q) = %q, want it to contain %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderPricesAreNotMath(t *testing.T) {
	r := New(Options{Sync: true})
	got := mustRender(t, r, "It costs $5 and $10.").HTML
	if strings.Contains(got, "math") {
		t.Fatalf("Render() = %q, want no math spans", got)
	}
	if !strings.Contains(got, "$5 and $10.") {
		t.Fatalf("Render() = %q, want literal prices", got)
	}
}

func TestRenderDisplayBlockIsNotInParagraph(t *testing.T) {
	r := New(Options{Sync: true})
	got := mustRender(t, r, "$$x^2$$").HTML
	if strings.Contains(got, "<p>") {
		t.Fatalf("Render() = %q, want display math outside a paragraph", got)
	}
}

func TestRenderInlineCode(t *testing.T) {
	r := New(Options{Sync: true})
	got := mustRender(t, r, "call `f($x$)` now").HTML
	want := `<code class="inline-code">f($x$)</code>`
	if !strings.Contains(got, want) {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRenderGFM(t *testing.T) {
	r := New(Options{Sync: true})
	in := "| a | b |\n|---|---|\n| 1 | 2 |\n\n~~old~~\n\n- [x] done\n"
	got := mustRender(t, r, in).HTML
	for _, want := range []string{"<table>", "<del>old</del>", `type="checkbox"`} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() missing %q in %q", want, got)
		}
	}
}

func TestRenderStructureFollowsSourceOrder(t *testing.T) {
	r := New(Options{Sync: true})
	in := "Intro $a$\n\n```py\nprint(1)\n```\n\n$$b$$\n\nuse `c`"
	got := classes(t, mustRender(t, r, in).HTML)
	want := []string{"span.math math-inline", "div.code-block", "div.math math-display", "code.inline-code"}
	var filtered []string
	for _, c := range got {
		for _, w := range want {
			if c == w {
				filtered = append(filtered, c)
			}
		}
	}
	if strings.Join(filtered, ",") != strings.Join(want, ",") {
		t.Fatalf("classes = %v, want %v", filtered, want)
	}
}

func TestCodeBlockHighlightsAsynchronously(t *testing.T) {
	var ready atomic.Int32
	r := New(Options{OnHighlight: func() { ready.Add(1) }})
	in := "```py\nprint('hi')\n```"

	first := mustRender(t, r, in)
	if first.Pending != 1 {
		t.Fatalf("first Pending = %d, want 1", first.Pending)
	}
	if !strings.Contains(first.HTML, `data-lang="python" data-pending="true"><pre><code>print(&#39;hi&#39;)`) &&
		!strings.Contains(first.HTML, `data-lang="python" data-pending="true"><pre><code>print('hi')`) {
		t.Fatalf("first HTML = %q, want plain placeholder", first.HTML)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if ready.Load() != 1 {
		t.Fatalf("OnHighlight called %d times, want 1", ready.Load())
	}

	second := mustRender(t, r, in)
	if second.Pending != 0 {
		t.Fatalf("second Pending = %d, want 0", second.Pending)
	}
	if strings.Contains(second.HTML, "data-pending") {
		t.Fatalf("second HTML still a placeholder: %q", second.HTML)
	}
	if !strings.Contains(second.HTML, `<div class="code-block" data-lang="python"><pre`) {
		t.Fatalf("second HTML = %q, want highlighted block", second.HTML)
	}
}

func TestRepeatedRenderSchedulesOnce(t *testing.T) {
	r := New(Options{})
	in := "```go\nfunc main() {}\n```"
	for i := 0; i < 5; i++ {
		mustRender(t, r, in)
	}
	if p := r.Pending(); p > 1 {
		t.Fatalf("Pending() = %d, want at most 1", p)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if got := r.hl.cache.Len(); got != 1 {
		t.Fatalf("cache.Len() = %d, want 1", got)
	}
}

func TestEngineBuiltOncePerTheme(t *testing.T) {
	r := New(Options{Sync: true})
	mustRender(t, r, "```go\nx := 1\n```")
	mustRender(t, r, "```go\ny := 2\n```")
	if got := r.hl.built.Load(); got != 1 {
		t.Fatalf("engines built = %d, want 1", got)
	}
	if _, err := r.RenderWithTheme("```go\nz := 3\n```", "monokai"); err != nil {
		t.Fatalf("RenderWithTheme() error: %v", err)
	}
	if got := r.hl.built.Load(); got != 2 {
		t.Fatalf("engines built = %d, want 2", got)
	}
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	r := New(Options{Sync: true})
	got := mustRender(t, r, "```notalanguage\nsome text\n```\n\n```\nbare\n```").HTML
	if strings.Count(got, `data-lang="plaintext"`) != 2 {
		t.Fatalf("Render() = %q, want two plaintext blocks", got)
	}
}

func TestPrepareBoxesEmptyFinalAnswer(t *testing.T) {
	r := New(Options{Sync: true})
	got := mustRender(t, r, r.Prepare("Final Answer: []")).HTML
	if !strings.Contains(got, `<div class="math math-display">\boxed{4}</div>`) {
		t.Fatalf("Render(Prepare()) = %q, want boxed placeholder", got)
	}
	if strings.Contains(got, "[]") {
		t.Fatalf("Render(Prepare()) = %q, still has empty brackets", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		info string
		want string
	}{
		{"", PlainText},
		{"js", "javascript"},
		{"ts", "typescript"},
		{"py", "python"},
		{"rb", "ruby"},
		{"sh", "bash"},
		{"yml", "yaml"},
		{"md", "markdown"},
		{"Go", "go"},
		{"python {.numberLines}", "python"},
		{"golang", "go"},
		{"main.go", "go"},
		{`x"onmouseover="alert(1)".js`, "javascript"},
		{"notalanguage", PlainText},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.info); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestCodeBlockLanguageAttributeIsSafe(t *testing.T) {
	for _, sync := range []bool{true, false} {
		r := New(Options{Sync: sync})
		in := "```x\"onmouseover=\"alert(1)\".js\nlet a = 1\n```"
		got := mustRender(t, r, in).HTML
		if strings.Contains(got, "onmouseover=") {
			t.Fatalf("sync=%v: fence tag leaked into markup: %q", sync, got)
		}
		if !strings.Contains(got, `data-lang="javascript"`) {
			t.Fatalf("sync=%v: Render() = %q, want canonical data-lang", sync, got)
		}
		if sync {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.Wait(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	}
}
