package ui

import (
	"os"

	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// Theme defines the color palette for the UI
type Theme struct {
	// Primary colors
	Primary   lipgloss.Color // main accent color (user messages, highlights)
	Secondary lipgloss.Color // secondary accent (headers, borders)

	// Semantic colors
	Success lipgloss.Color // copied, liked
	Error   lipgloss.Color // error banner, disliked
	Warning lipgloss.Color // stall banner
	Muted   lipgloss.Color // dimmed/secondary text
	Text    lipgloss.Color // primary text

	// UI element colors
	Spinner    lipgloss.Color // loading spinner
	Border     lipgloss.Color // borders and dividers
	Background lipgloss.Color // background (if needed)

	// Message backgrounds
	UserMsgBg lipgloss.Color // background for user messages in chat
}

// DefaultTheme returns the default color theme (gruvbox)
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#b8bb26"), // gruvbox green
		Secondary:  lipgloss.Color("#83a598"), // gruvbox aqua
		Success:    lipgloss.Color("#b8bb26"), // gruvbox green
		Error:      lipgloss.Color("#fb4934"), // gruvbox red
		Warning:    lipgloss.Color("#fabd2f"), // gruvbox yellow
		Muted:      lipgloss.Color("#928374"), // gruvbox gray
		Text:       lipgloss.Color("#ebdbb2"), // gruvbox foreground
		Spinner:    lipgloss.Color("#d3869b"), // gruvbox purple
		Border:     lipgloss.Color("#83a598"), // gruvbox aqua (matches secondary)
		Background: lipgloss.Color(""),        // default/transparent
		UserMsgBg:  lipgloss.Color("#3c3836"), // gruvbox dark gray (subtle bg)
	}
}

// ThemeConfig mirrors the config.ThemeConfig for applying overrides
type ThemeConfig struct {
	Preset    string
	Primary   string
	Secondary string
	Success   string
	Error     string
	Warning   string
	Muted     string
	Text      string
	Spinner   string
	UserMsgBg string
}

// ThemeFromConfig creates a theme with config overrides applied. A named
// preset is applied first, then individual colors.
func ThemeFromConfig(cfg ThemeConfig) *Theme {
	theme := DefaultTheme()
	if preset := GetPresetTheme(cfg.Preset); preset != nil {
		theme = applyThemeConfig(theme, preset.Config)
	}
	return applyThemeConfig(theme, cfg)
}

func applyThemeConfig(theme *Theme, cfg ThemeConfig) *Theme {
	if cfg.Primary != "" {
		theme.Primary = lipgloss.Color(cfg.Primary)
	}
	if cfg.Secondary != "" {
		theme.Secondary = lipgloss.Color(cfg.Secondary)
		theme.Border = lipgloss.Color(cfg.Secondary) // border follows secondary
	}
	if cfg.Success != "" {
		theme.Success = lipgloss.Color(cfg.Success)
	}
	if cfg.Error != "" {
		theme.Error = lipgloss.Color(cfg.Error)
	}
	if cfg.Warning != "" {
		theme.Warning = lipgloss.Color(cfg.Warning)
	}
	if cfg.Muted != "" {
		theme.Muted = lipgloss.Color(cfg.Muted)
	}
	if cfg.Text != "" {
		theme.Text = lipgloss.Color(cfg.Text)
	}
	if cfg.Spinner != "" {
		theme.Spinner = lipgloss.Color(cfg.Spinner)
	}
	if cfg.UserMsgBg != "" {
		theme.UserMsgBg = lipgloss.Color(cfg.UserMsgBg)
	}
	return theme
}

// currentTheme is the active theme instance
var currentTheme = DefaultTheme()

// SetTheme sets the current active theme
func SetTheme(t *Theme) {
	currentTheme = t
}

// InitTheme initializes the theme from config
func InitTheme(cfg ThemeConfig) {
	SetTheme(ThemeFromConfig(cfg))
}

// Status indicators
const (
	SuccessIcon  = "✓"
	LikedIcon    = "▲"
	DislikedIcon = "▼"
	CopyIcon     = "⧉"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer
	theme    *Theme

	// Text styles
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Highlighted lipgloss.Style

	// Chat styles
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserMessage    lipgloss.Style
	Suggestion     lipgloss.Style
	SuggestionSel  lipgloss.Style
	Banner         lipgloss.Style

	// UI element styles
	Spinner lipgloss.Style
	Footer  lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	return NewStyledWithTheme(output, currentTheme)
}

// NewStyledWithTheme creates styles with a specific theme
func NewStyledWithTheme(output *os.File, theme *Theme) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,
		theme:    theme,

		Title: r.NewStyle().
			Bold(true).
			Foreground(theme.Text),

		Subtitle: r.NewStyle().
			Foreground(theme.Muted),

		Success: r.NewStyle().
			Foreground(theme.Success),

		Error: r.NewStyle().
			Foreground(theme.Error),

		Warning: r.NewStyle().
			Foreground(theme.Warning),

		Muted: r.NewStyle().
			Foreground(theme.Muted),

		Bold: r.NewStyle().
			Bold(true),

		Highlighted: r.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		UserLabel: r.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		AssistantLabel: r.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		UserMessage: r.NewStyle().
			Foreground(theme.Text).
			Background(theme.UserMsgBg).
			Padding(0, 1),

		Suggestion: r.NewStyle().
			Foreground(theme.Muted).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		SuggestionSel: r.NewStyle().
			Foreground(theme.Primary).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),

		Banner: r.NewStyle().
			Bold(true).
			Padding(0, 1),

		Spinner: r.NewStyle().
			Foreground(theme.Spinner),

		Footer: r.NewStyle().
			Foreground(theme.Muted),

		Border: r.NewStyle().
			Foreground(theme.Border),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// Theme returns the theme used by these styles
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Truncate shortens a string to maxWidth display cells with an ellipsis
func Truncate(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// Markdown style modes accepted by GlamourStyleFor.
const (
	MarkdownAuto  = "auto"
	MarkdownDark  = "dark"
	MarkdownLight = "light"
	MarkdownPlain = "plain"
)

// GlamourStyleFor picks the markdown style for a ui.theme setting. auto
// uses the color theme on dark terminals and glamour's light style on
// light ones.
func GlamourStyleFor(mode string) ansi.StyleConfig {
	switch mode {
	case MarkdownDark:
		return styles.DarkStyleConfig
	case MarkdownLight:
		return styles.LightStyleConfig
	case MarkdownPlain:
		return styles.NoTTYStyleConfig
	}
	if termenv.EnvNoColor() {
		return styles.NoTTYStyleConfig
	}
	if !termenv.HasDarkBackground() {
		return styles.LightStyleConfig
	}
	return GlamourStyle()
}

// GlamourStyle returns a glamour StyleConfig based on the current theme
func GlamourStyle() ansi.StyleConfig {
	return GlamourStyleFromTheme(currentTheme)
}

// GlamourStyleFromTheme recolors glamour's dark style with the theme
// palette. The transcript supplies its own indentation, so the document
// margin and surrounding blank lines are dropped.
func GlamourStyleFromTheme(theme *Theme) ansi.StyleConfig {
	primary := string(theme.Primary)
	secondary := string(theme.Secondary)
	success := string(theme.Success)
	warning := string(theme.Warning)
	muted := string(theme.Muted)
	text := string(theme.Text)

	cfg := styles.DarkStyleConfig
	cfg.Document.BlockPrefix = ""
	cfg.Document.BlockSuffix = ""
	cfg.Document.Color = &text
	cfg.Document.Margin = uintPtr(0)
	cfg.BlockQuote.Color = &muted
	cfg.Heading.Color = &secondary
	cfg.H1.Color = &secondary
	cfg.H1.BackgroundColor = nil
	cfg.Strong.Color = &primary
	cfg.Emph.Color = &warning
	cfg.HorizontalRule.Color = &muted
	cfg.Enumeration.Color = &secondary
	cfg.Link.Color = &secondary
	cfg.LinkText.Color = &primary
	cfg.Code.Color = &primary
	cfg.CodeBlock.Margin = uintPtr(1)
	cfg.Task.Ticked = "[" + SuccessIcon + "] "

	if cfg.CodeBlock.Chroma != nil {
		chroma := *cfg.CodeBlock.Chroma
		chroma.Text.Color = &text
		chroma.Comment.Color = &muted
		chroma.Keyword.Color = &primary
		chroma.KeywordReserved.Color = &primary
		chroma.KeywordType.Color = &secondary
		chroma.NameFunction.Color = &success
		chroma.NameBuiltin.Color = &secondary
		chroma.LiteralNumber.Color = &secondary
		chroma.LiteralString.Color = &warning
		cfg.CodeBlock.Chroma = &chroma
	}
	return cfg
}

func uintPtr(u uint) *uint {
	return &u
}
