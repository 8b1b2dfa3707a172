package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

type segment struct {
	text string
	code bool
}

// splitFences cuts text into prose and fenced-code segments. An unclosed
// fence runs to the end of the text, which is the common state while a code
// block is still streaming in.
func splitFences(text string) []segment {
	if !strings.Contains(text, "```") && !strings.Contains(text, "~~~") {
		return []segment{{text: text}}
	}

	var (
		segs      []segment
		cur       strings.Builder
		inCode    bool
		fenceChar byte
		fenceLen  int
	)
	flush := func(code bool) {
		if cur.Len() > 0 {
			segs = append(segs, segment{text: cur.String(), code: code})
			cur.Reset()
		}
	}

	rest := text
	for len(rest) > 0 {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i+1]
		}
		rest = rest[len(line):]

		if !inCode {
			if ch, n, ok := fenceOpen(line); ok {
				flush(false)
				inCode, fenceChar, fenceLen = true, ch, n
			}
			cur.WriteString(line)
			continue
		}

		cur.WriteString(line)
		if fenceClose(line, fenceChar, fenceLen) {
			flush(true)
			inCode = false
		}
	}
	flush(inCode)
	return segs
}

func fenceIndent(line string) (string, bool) {
	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	if indent > 3 {
		return "", false
	}
	return line[indent:], true
}

func fenceOpen(line string) (byte, int, bool) {
	rest, ok := fenceIndent(strings.TrimRight(line, "\r\n"))
	if !ok || len(rest) < 3 {
		return 0, 0, false
	}
	ch := rest[0]
	if ch != '`' && ch != '~' {
		return 0, 0, false
	}
	n := runLen(rest, 0, ch)
	if n < 3 {
		return 0, 0, false
	}
	if ch == '`' && strings.IndexByte(rest[n:], '`') >= 0 {
		return 0, 0, false
	}
	return ch, n, true
}

func fenceClose(line string, ch byte, n int) bool {
	rest, ok := fenceIndent(strings.TrimRight(line, " \t\r\n"))
	if !ok {
		return false
	}
	m := runLen(rest, 0, ch)
	return m >= n && m == len(rest)
}

func runLen(s string, i int, ch byte) int {
	n := 0
	for i+n < len(s) && s[i+n] == ch {
		n++
	}
	return n
}

const (
	maskOpen  = '\uE000'
	maskClose = '\uE001'
)

var maskRe = regexp.MustCompile(`\x{E000}(\d+)\x{E001}`)

// maskInlineCode swaps backtick code spans for private-use placeholders so
// the rules cannot see dollar signs or backslashes inside them.
func maskInlineCode(s string) (string, []string) {
	if strings.IndexByte(s, '`') < 0 {
		return s, nil
	}
	var (
		b     strings.Builder
		spans []string
	)
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '`' {
			b.WriteByte(s[i])
			i++
			continue
		}
		n := runLen(s, i, '`')
		end := matchingRun(s, i+n, n)
		if end < 0 {
			b.WriteString(s[i : i+n])
			i += n
			continue
		}
		b.WriteRune(maskOpen)
		b.WriteString(strconv.Itoa(len(spans)))
		b.WriteRune(maskClose)
		spans = append(spans, s[i:end])
		i = end
	}
	return b.String(), spans
}

func matchingRun(s string, from, n int) int {
	for j := from; j < len(s); {
		if s[j] != '`' {
			j++
			continue
		}
		m := runLen(s, j, '`')
		if m == n {
			return j + m
		}
		j += m
	}
	return -1
}

func unmaskInlineCode(s string, spans []string) string {
	if len(spans) == 0 {
		return s
	}
	return maskRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := maskRe.FindStringSubmatch(m)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(spans) {
			return m
		}
		return spans[idx]
	})
}
