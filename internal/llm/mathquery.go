package llm

import "regexp"

// MathPattern is one named signal that a prompt asks for a calculation.
type MathPattern struct {
	Name string
	Re   *regexp.Regexp
}

// MathPatterns are checked in order by IsMathQuery.
var MathPatterns = []MathPattern{
	{"arithmetic", regexp.MustCompile(`\d+\s*[+\-*/]\s*\d+`)},
	{"equals-question", regexp.MustCompile(`\d+\s*=\s*\?`)},
	{"what-is", regexp.MustCompile(`(?i)what is \d+\s*[+\-*/]\s*\d+`)},
	{"calculate", regexp.MustCompile(`(?i)calculate`)},
	{"solve", regexp.MustCompile(`(?i)solve`)},
	{"equation", regexp.MustCompile(`(?i)equation`)},
	{"exponent", regexp.MustCompile(`\d+\s*\^\s*\d+`)},
	{"square-root", regexp.MustCompile(`(?i)square root`)},
	{"derivative", regexp.MustCompile(`(?i)derivative`)},
	{"integral", regexp.MustCompile(`(?i)integral`)},
}

// MatchMathPattern returns the name of the first pattern that matches text.
func MatchMathPattern(text string) (string, bool) {
	for _, p := range MathPatterns {
		if p.Re.MatchString(text) {
			return p.Name, true
		}
	}
	return "", false
}

// IsMathQuery reports whether text looks like a math question.
func IsMathQuery(text string) bool {
	_, ok := MatchMathPattern(text)
	return ok
}

// IsMathTurn reports whether the last message is a user math question.
func IsMathTurn(messages []Message) bool {
	last, ok := LastMessage(messages)
	return ok && last.Role == RoleUser && IsMathQuery(last.Text())
}

// PlainArithmeticInstruction asks the model to answer simple arithmetic in
// plain text. Models tend to wrap "2 + 2 = 4" in display math otherwise.
const PlainArithmeticInstruction = "You are a helpful assistant. " +
	"Answer simple arithmetic in plain text, for example \"2 + 2 = 4\", without LaTeX. " +
	"Use LaTeX math only for expressions that need it, such as fractions, integrals or matrices."

// WithSystemInstruction prepends a system message unless one is present.
func WithSystemInstruction(messages []Message, instruction string) []Message {
	if instruction == "" || HasRole(messages, RoleSystem) {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, SystemText(instruction))
	return append(out, messages...)
}
