package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// PlainText is the language reported for untagged or unknown code blocks.
const PlainText = "plaintext"

var languageAliases = map[string]string{
	"js":  "javascript",
	"ts":  "typescript",
	"py":  "python",
	"rb":  "ruby",
	"sh":  "bash",
	"yml": "yaml",
	"md":  "markdown",
}

// DetectLanguage maps a fence info string to a canonical language name:
// the lowercased name of the chroma lexer it resolves to. Short aliases are
// expanded before the lookup, file names resolve by extension, and anything
// chroma does not know falls back to PlainText.
func DetectLanguage(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return PlainText
	}
	lang := strings.ToLower(strings.TrimPrefix(fields[0], "language-"))
	if canonical, ok := languageAliases[lang]; ok {
		lang = canonical
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return PlainText
	}
	return strings.ToLower(lexer.Config().Name)
}
