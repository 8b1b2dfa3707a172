package ui

import (
	"testing"

	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

func TestThemeFromConfigAppliesPresetThenOverrides(t *testing.T) {
	theme := ThemeFromConfig(ThemeConfig{Preset: "Nord", Error: "#ff0000"})

	if theme.Primary != lipgloss.Color("#88c0d0") {
		t.Fatalf("primary = %q, want nord primary", theme.Primary)
	}
	if theme.Border != lipgloss.Color("#81a1c1") {
		t.Fatalf("border = %q, want it to follow secondary", theme.Border)
	}
	if theme.Error != lipgloss.Color("#ff0000") {
		t.Fatalf("error = %q, want override", theme.Error)
	}
	if theme.UserMsgBg != lipgloss.Color("#3b4252") {
		t.Fatalf("user bg = %q", theme.UserMsgBg)
	}
}

func TestThemeFromConfigUnknownPresetFallsBack(t *testing.T) {
	theme := ThemeFromConfig(ThemeConfig{Preset: "nope"})
	if *theme != *DefaultTheme() {
		t.Fatalf("unknown preset should leave the default theme, got %+v", theme)
	}
}

func TestMatchPresetTheme(t *testing.T) {
	for _, name := range PresetThemeNames {
		cfg := PresetThemes[name].Config
		cfg.UserMsgBg = ""
		if got := MatchPresetTheme(cfg); got != name {
			t.Fatalf("MatchPresetTheme(%s) = %q", name, got)
		}
	}
	if got := MatchPresetTheme(ThemeConfig{Primary: "#123456"}); got != "" {
		t.Fatalf("custom colors matched %q", got)
	}
}

func TestPresetNamesAreComplete(t *testing.T) {
	if len(PresetThemeNames) != len(PresetThemes) {
		t.Fatalf("%d names for %d presets", len(PresetThemeNames), len(PresetThemes))
	}
	for _, name := range PresetThemeNames {
		p := GetPresetTheme(name)
		if p == nil || p.Name != name {
			t.Fatalf("preset %q missing or misnamed", name)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer line of text", 10, "a longe..."},
		{"abcdef", 3, "abc"},
		{"日本語テキスト", 7, "日本..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestGlamourStyleForExplicitModes(t *testing.T) {
	if got := GlamourStyleFor(MarkdownPlain); got.Document.Color != styles.NoTTYStyleConfig.Document.Color {
		t.Fatal("plain should use the no-tty style")
	}
	if got := GlamourStyleFor(MarkdownLight); got.Document.Color != styles.LightStyleConfig.Document.Color {
		t.Fatal("light should use glamour's light style")
	}
}

func TestGlamourStyleFromThemeUsesPalette(t *testing.T) {
	var before string
	if c := styles.DarkStyleConfig.Document.Color; c != nil {
		before = *c
	}

	cfg := GlamourStyleFromTheme(ThemeFromConfig(ThemeConfig{Preset: "dracula"}))
	if cfg.Document.Color == nil || *cfg.Document.Color != "#f8f8f2" {
		t.Fatalf("document color = %v", cfg.Document.Color)
	}
	if cfg.Strong.Color == nil || *cfg.Strong.Color != "#bd93f9" {
		t.Fatalf("strong color = %v", cfg.Strong.Color)
	}

	var after string
	if c := styles.DarkStyleConfig.Document.Color; c != nil {
		after = *c
	}
	if before != after {
		t.Fatalf("dark style was modified: %q -> %q", before, after)
	}
}
