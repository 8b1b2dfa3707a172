// Package normalize rewrites streamed model text into a form that the
// markdown and math renderers handle cleanly.
//
// The work is an ordered pipeline of small named rules. Each rule is a pure
// string function that is stable on its own output, and the pipeline as a
// whole is applied until the text stops changing, so Normalize(Normalize(x))
// equals Normalize(x). Fenced code blocks and inline code spans are never
// touched by any rule.
package normalize

import "strings"

// maxPasses bounds the fixed-point loop in Pipeline.Normalize.
const maxPasses = 8

// Rule is a single named rewrite step.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Pipeline applies rules in order to the prose parts of a text.
type Pipeline struct {
	rules []Rule
}

// Options toggles the optional heuristics of the default pipeline.
type Options struct {
	// FinalAnswerFixup enables the "Final Answer: []" placeholder rewrite.
	FinalAnswerFixup bool
}

// DefaultOptions matches the behavior of the hosted chat page.
func DefaultOptions() Options {
	return Options{FinalAnswerFixup: true}
}

// NewPipeline builds a pipeline from an explicit rule list.
func NewPipeline(rules ...Rule) *Pipeline {
	return &Pipeline{rules: append([]Rule(nil), rules...)}
}

// New builds the standard nine-rule pipeline with the given options.
func New(opts Options) *Pipeline {
	p := NewPipeline(DefaultRules()...)
	if !opts.FinalAnswerFixup {
		p = p.Without(RuleFinalAnswer)
	}
	return p
}

var defaultPipeline = New(DefaultOptions())

// Default returns the shared default pipeline. Pipelines are never mutated
// in place, so sharing is safe.
func Default() *Pipeline {
	return defaultPipeline
}

// Normalize runs the default pipeline.
func Normalize(text string) string {
	return defaultPipeline.Normalize(text)
}

// Names lists the rule names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names = append(names, r.Name)
	}
	return names
}

// Without returns a copy of the pipeline with the named rules removed.
func (p *Pipeline) Without(names ...string) *Pipeline {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Pipeline{}
	for _, r := range p.rules {
		if !skip[r.Name] {
			out.rules = append(out.rules, r)
		}
	}
	return out
}

// Normalize applies the pipeline until the output is stable.
func (p *Pipeline) Normalize(text string) string {
	if text == "" || len(p.rules) == 0 {
		return text
	}
	out := text
	for i := 0; i < maxPasses; i++ {
		next := p.once(out)
		if next == out {
			return next
		}
		out = next
	}
	return out
}

func (p *Pipeline) once(text string) string {
	segs := splitFences(text)
	if len(segs) == 1 && !segs[0].code {
		return p.prose(text)
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, seg := range segs {
		if seg.code {
			b.WriteString(seg.text)
			continue
		}
		b.WriteString(p.prose(seg.text))
	}
	return b.String()
}

func (p *Pipeline) prose(s string) string {
	masked, spans := maskInlineCode(s)
	for _, r := range p.rules {
		masked = r.Apply(masked)
	}
	out := unmaskInlineCode(masked, spans)
	// A following fence must stay at the start of a line.
	if strings.HasSuffix(s, "\n") && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
