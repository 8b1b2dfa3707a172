package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/samsaffron/seek-chat/internal/normalize"
	"github.com/samsaffron/seek-chat/internal/render"
	"github.com/samsaffron/seek-chat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	renderHTML      bool
	renderCodeTheme string
	renderStyle     string
	renderRaw       bool
	renderWidth     int
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render a markdown answer to the terminal or HTML",
	Long: `Normalize and render model output the same way chat does.

Reads the file, or stdin when no file (or "-") is given.

Examples:
  seek-chat render answer.md
  seek-chat render answer.md --html > answer.html
  pbpaste | seek-chat render --raw     # only normalize`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().BoolVar(&renderHTML, "html", false, "Output an HTML fragment")
	renderCmd.Flags().StringVar(&renderCodeTheme, "code-theme", "", "Chroma style for HTML code blocks (default from config)")
	renderCmd.Flags().BoolVar(&renderRaw, "raw", false, "Print the normalized markdown without rendering")
	renderCmd.Flags().IntVarP(&renderWidth, "width", "w", 0, "Wrap width for terminal output (default: terminal width)")
	AddStyleFlag(renderCmd, &renderStyle)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initThemeFromConfig(cfg)

	input, err := readRenderInput(cmd, args)
	if err != nil {
		return err
	}

	pipeline := normalize.New(normalize.Options{FinalAnswerFixup: cfg.Normalize.FinalAnswerFixup})
	out := cmd.OutOrStdout()

	if renderRaw {
		_, err := fmt.Fprintln(out, render.PreprocessBrackets(pipeline.Normalize(input)))
		return err
	}

	if renderHTML {
		theme := cfg.UI.CodeTheme
		if renderCodeTheme != "" {
			theme = renderCodeTheme
		}
		r := render.New(render.Options{Theme: theme, Sync: true, Pipeline: pipeline})
		res, err := r.Render(r.Prepare(input))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := r.Wait(ctx); err != nil {
			return fmt.Errorf("highlight code blocks: %w", err)
		}
		_, err = io.WriteString(out, res.HTML)
		return err
	}

	style := cfg.UI.Theme
	if renderStyle != "" {
		style = renderStyle
	}
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	width := renderWidth
	if width <= 0 {
		width = 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	text := render.PreprocessBrackets(pipeline.Normalize(input))
	rendered, err := render.NewTerminal(ui.GlamourStyleFor(style)).RenderWithError(text, width)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	// Piped output stays plain unless a style was asked for.
	if !tty && renderStyle == "" {
		rendered = ansi.Strip(rendered)
	}
	_, err = fmt.Fprintln(out, rendered)
	return err
}

func readRenderInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
