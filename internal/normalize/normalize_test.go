package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeRules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain prose", "Hello, world. This is plain prose.\nSecond line.", "Hello, world. This is plain prose.\nSecond line."},
		{"escaped dollar", "The cost is \\$5", "The cost is $5"},
		{"escaped display delimiters", "\\$$x^2\\$$", "$$x^2$$\n\n"},
		{"degenerate display math", "a $$ \\ $$ b", "a  b"},
		{"trailing stray escape", "line one\\\nline two", "line one\nline two"},
		{"tex line break kept", "a \\\\\nb", "a \\\\\nb"},
		{"escape after colon", "Answer:\\ 42", "Answer: 42"},
		{"instruction break", "Solve the equation:\nx + 2 = 5", "Solve the equation:\n\nx + 2 = 5"},
		{"instruction at end waits", "Solve:", "Solve:"},
		{"instruction already broken", "Simplify:\n\nx", "Simplify:\n\nx"},
		{"final answer placeholder", "Final Answer: []", BoxedPlaceholder},
		{"final answer spread brackets", "Final Answer:\n[\n]", BoxedPlaceholder},
		{"display math rewrapped", "The area is $$ \\pi r^2 $$ units.", "The area is\n\n$$\\pi r^2$$\n\nunits."},
		{"empty display math dropped", "a $$  $$ b", "a  b"},
		{"inline math trimmed", "where $ x + 1 $ is odd", "where $x + 1$ is odd"},
		{"inline math at line start", "first\n$y$ second", "first\n $y$ second"},
		{"empty inline math dropped", "a $ $ b", "a  b"},
		{"prices stay literal", "$5 and $10", "$5 and $10"},
		{"speed units", "Cheetahs run 100-120km/h and 70MPH", "Cheetahs run 100-120 km/h and 70 mph"},
		{"scientific name", "The gray wolf(Canis lupus) lives", "The gray wolf (Canis lupus) lives"},
		{"scientific name already spaced", "The gray wolf (Canis lupus) lives", "The gray wolf (Canis lupus) lives"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLeavesCodeAlone(t *testing.T) {
	tests := []string{
		"Run this:\n\n```sh\necho \\$HOME\nprice=$5 \\\n```\n",
		"Use `\\$PATH` here",
		"Here:\n```python\nprint('$ x $')",
		"~~~\nFinal Answer: []\n~~~\n",
	}
	for _, in := range tests {
		if got := Normalize(in); got != in {
			t.Errorf("Normalize(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestNormalizeProseAroundFence(t *testing.T) {
	in := "Compute $$ 1+1 $$\n```go\nx := \"$$ a $$\"\n```\nthen $ y $"
	want := "Compute\n\n$$1+1$$\n\n```go\nx := \"$$ a $$\"\n```\nthen $y$"
	if got := Normalize(in); got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestFinalAnswerFixupCanBeDisabled(t *testing.T) {
	p := New(Options{FinalAnswerFixup: false})
	if got := p.Normalize("Final Answer: []"); got != "Final Answer: []" {
		t.Fatalf("Normalize() = %q, want input unchanged", got)
	}
	for _, name := range p.Names() {
		if name == RuleFinalAnswer {
			t.Fatalf("rule %q still present", RuleFinalAnswer)
		}
	}
	if got := len(p.Names()); got != len(DefaultRules())-1 {
		t.Fatalf("len(Names()) = %d, want %d", got, len(DefaultRules())-1)
	}
}

func TestDefaultRuleOrder(t *testing.T) {
	want := []string{
		RuleStripMathEscapes,
		RuleDropEmptyMath,
		RuleTrimStrayEscapes,
		RuleInstructionBreak,
		RuleFinalAnswer,
		RuleWrapDisplayMath,
		RuleTidyInlineMath,
		RuleSpeedUnits,
		RuleScientificName,
	}
	got := Default().Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestEmptyPipelineIsIdentity(t *testing.T) {
	p := NewPipeline()
	in := "Final Answer: [] \\$ x"
	if got := p.Normalize(in); got != in {
		t.Fatalf("Normalize() = %q, want %q", got, in)
	}
}

var streamCorpus = []string{
	"To add these numbers:\n\n$$2 + 2 = 4$$\n\nFinal Answer: []",
	"Calculate the area:\nThe area is $ \\pi r^2 $ where r is the radius.\\\nDone:\\ ok",
	"Here is code:\n```python\ndef f(x):\n    return x ** 2  # $cost\n```\nand inline `a\\$b` too.",
	"The cheetah(Acinonyx jubatus) reaches 100-120km/h, about 70MPH.",
	"Solve: \\$\\$ x^2 - 4 = 0 \\$\\$\nSo $x = \\pm 2$ and $$ $$ nothing \\\\\nend",
	"Prices: $5 and $10, then $ a+b $ at\n$c$ line start and $$\\frac{1}{2}$$ done.",
	"Evaluate:\n$$\n\\int_0^1 x\\,dx\n$$\nFinal Answer:\n[\n]\n~~~\nraw $$ x $$\n",
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, text := range streamCorpus {
		once := Normalize(text)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\nonce:  %q\ntwice: %q", text, once, twice)
		}
	}
}

func TestNormalizeIdempotentOnStreamPrefixes(t *testing.T) {
	for _, text := range streamCorpus {
		for i := 1; i <= len(text); i++ {
			if i < len(text) && !utf8.RuneStart(text[i]) {
				continue
			}
			prefix := text[:i]
			once := Normalize(prefix)
			if twice := Normalize(once); twice != once {
				t.Fatalf("prefix %q not idempotent:\nonce:  %q\ntwice: %q", prefix, once, twice)
			}
		}
	}
}

func TestSplitFences(t *testing.T) {
	segs := splitFences("a\n```go\ncode\n```\nb\n~~~\nopen")
	var kinds []string
	for _, s := range segs {
		if s.code {
			kinds = append(kinds, "code")
		} else {
			kinds = append(kinds, "prose")
		}
	}
	want := "prose,code,prose,code"
	if got := strings.Join(kinds, ","); got != want {
		t.Fatalf("segments = %s, want %s", got, want)
	}
	if segs[1].text != "```go\ncode\n```\n" {
		t.Fatalf("code segment = %q", segs[1].text)
	}
	if segs[3].text != "~~~\nopen" {
		t.Fatalf("unclosed segment = %q", segs[3].text)
	}
}

func TestMaskInlineCodeRoundTrip(t *testing.T) {
	in := "a `x$y` b ``c`d`` e `unclosed"
	masked, spans := maskInlineCode(in)
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if strings.Contains(masked, "x$y") {
		t.Fatalf("masked text still contains code: %q", masked)
	}
	if got := unmaskInlineCode(masked, spans); got != in {
		t.Fatalf("round trip = %q, want %q", got, in)
	}
}
