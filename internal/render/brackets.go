package render

import (
	"regexp"
	"strings"
)

var bracketMathRe = regexp.MustCompile(`\\|=|\+|-|\*|/|boxed|quad|text`)

// PreprocessBrackets rewrites "[ x + 1 ]" to "$ x + 1 $" when the bracketed
// text looks like TeX. Models often use bare brackets where they mean
// display math. Links, reference definitions, code and existing math spans
// are left alone.
func PreprocessBrackets(text string) string {
	if !strings.Contains(text, "[") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	inFence := false
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			b.WriteString(line)
			continue
		}
		if inFence {
			b.WriteString(line)
			continue
		}
		b.WriteString(bracketLine(line))
	}
	return b.String()
}

func bracketLine(line string) string {
	if !strings.Contains(line, "[") {
		return line
	}
	var b strings.Builder
	for i := 0; i < len(line); {
		switch {
		case line[i] == '`':
			n := 1
			for i+n < len(line) && line[i+n] == '`' {
				n++
			}
			end := strings.Index(line[i+n:], line[i:i+n])
			if end < 0 {
				b.WriteString(line[i : i+n])
				i += n
				continue
			}
			end += i + 2*n
			b.WriteString(line[i:end])
			i = end
		case strings.HasPrefix(line[i:], "$$"):
			end := strings.Index(line[i+2:], "$$")
			if end < 0 {
				b.WriteString(line[i:])
				return b.String()
			}
			end += i + 4
			b.WriteString(line[i:end])
			i = end
		case line[i] == '$':
			end := strings.IndexByte(line[i+1:], '$')
			if end < 0 {
				b.WriteByte('$')
				i++
				continue
			}
			end += i + 2
			b.WriteString(line[i:end])
			i = end
		case line[i] == '[':
			end := strings.IndexByte(line[i+1:], ']')
			if end < 0 {
				b.WriteString(line[i:])
				return b.String()
			}
			end += i + 1
			inner := line[i+1 : end]
			next := byte(0)
			if end+1 < len(line) {
				next = line[end+1]
			}
			if next == '(' || next == '[' || next == ':' || !bracketMathRe.MatchString(inner) {
				b.WriteByte('[')
				i++
				continue
			}
			b.WriteByte('$')
			b.WriteString(inner)
			b.WriteByte('$')
			i = end + 1
		default:
			b.WriteByte(line[i])
			i++
		}
	}
	return b.String()
}
