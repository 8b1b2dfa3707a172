package ui

import "strings"

// ThemePreset is a named palette selectable with `config theme <name>`.
type ThemePreset struct {
	Name        string
	Description string
	Config      ThemeConfig
}

// PresetThemeNames lists presets in display order.
var PresetThemeNames = []string{
	"gruvbox",
	"deepseek",
	"dracula",
	"nord",
	"solarized-light",
	"mono",
}

// PresetThemes maps preset names to palettes. Every preset sets the user
// bubble background so switching presets never leaves a mismatched bubble.
var PresetThemes = map[string]ThemePreset{
	"gruvbox": {
		Name:        "gruvbox",
		Description: "Warm retro palette (default)",
		Config: ThemeConfig{
			Primary:   "#b8bb26",
			Secondary: "#83a598",
			Success:   "#b8bb26",
			Error:     "#fb4934",
			Warning:   "#fabd2f",
			Muted:     "#928374",
			Text:      "#ebdbb2",
			Spinner:   "#d3869b",
			UserMsgBg: "#3c3836",
		},
	},
	"deepseek": {
		Name:        "deepseek",
		Description: "Blue accents on a dark slate",
		Config: ThemeConfig{
			Primary:   "#4d6bfe",
			Secondary: "#7aa2f7",
			Success:   "#9ece6a",
			Error:     "#f7768e",
			Warning:   "#e0af68",
			Muted:     "#565f89",
			Text:      "#c0caf5",
			Spinner:   "#4d6bfe",
			UserMsgBg: "#1f2335",
		},
	},
	"dracula": {
		Name:        "dracula",
		Description: "Dark theme with purple accents",
		Config: ThemeConfig{
			Primary:   "#bd93f9",
			Secondary: "#8be9fd",
			Success:   "#50fa7b",
			Error:     "#ff5555",
			Warning:   "#f1fa8c",
			Muted:     "#6272a4",
			Text:      "#f8f8f2",
			Spinner:   "#ff79c6",
			UserMsgBg: "#44475a",
		},
	},
	"nord": {
		Name:        "nord",
		Description: "Arctic, north-bluish palette",
		Config: ThemeConfig{
			Primary:   "#88c0d0",
			Secondary: "#81a1c1",
			Success:   "#a3be8c",
			Error:     "#bf616a",
			Warning:   "#ebcb8b",
			Muted:     "#4c566a",
			Text:      "#eceff4",
			Spinner:   "#b48ead",
			UserMsgBg: "#3b4252",
		},
	},
	"solarized-light": {
		Name:        "solarized-light",
		Description: "Solarized for light terminals",
		Config: ThemeConfig{
			Primary:   "#268bd2",
			Secondary: "#2aa198",
			Success:   "#859900",
			Error:     "#dc322f",
			Warning:   "#b58900",
			Muted:     "#93a1a1",
			Text:      "#586e75",
			Spinner:   "#d33682",
			UserMsgBg: "#eee8d5",
		},
	},
	"mono": {
		Name:        "mono",
		Description: "ANSI 256 greys, for limited terminals",
		Config: ThemeConfig{
			Primary:   "15",
			Secondary: "250",
			Success:   "15",
			Error:     "9",
			Warning:   "11",
			Muted:     "244",
			Text:      "252",
			Spinner:   "250",
			UserMsgBg: "236",
		},
	},
}

// GetPresetTheme looks a preset up by name, case-insensitively.
func GetPresetTheme(name string) *ThemePreset {
	preset, ok := PresetThemes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return &preset
}

// MatchPresetTheme returns the preset whose colors equal cfg, or "" when the
// configured colors are custom. Unset fields in cfg never match.
func MatchPresetTheme(cfg ThemeConfig) string {
	for _, name := range PresetThemeNames {
		if sameColors(PresetThemes[name].Config, cfg) {
			return name
		}
	}
	return ""
}

func sameColors(a, b ThemeConfig) bool {
	return strings.EqualFold(a.Primary, b.Primary) &&
		strings.EqualFold(a.Secondary, b.Secondary) &&
		strings.EqualFold(a.Success, b.Success) &&
		strings.EqualFold(a.Error, b.Error) &&
		strings.EqualFold(a.Warning, b.Warning) &&
		strings.EqualFold(a.Muted, b.Muted) &&
		strings.EqualFold(a.Text, b.Text) &&
		strings.EqualFold(a.Spinner, b.Spinner)
}
