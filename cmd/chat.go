package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samsaffron/seek-chat/internal/chatapi"
	"github.com/samsaffron/seek-chat/internal/config"
	"github.com/samsaffron/seek-chat/internal/normalize"
	"github.com/samsaffron/seek-chat/internal/tui/chat"
	"github.com/samsaffron/seek-chat/internal/turn"
	"github.com/samsaffron/seek-chat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	chatModel  string
	chatStyle  string
	chatServer string
	chatDebug  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a terminal chat session",
	Long: `Start a full-screen chat with DeepSeek.

By default the terminal talks to DeepSeek directly using deepseek.api_key or
DEEPSEEK_API_KEY. With --server it goes through a running 'seek-chat serve'
instead and needs no key.

Keys:
  enter        send (or pick a suggestion with tab first)
  esc          stop the response
  ctrl+r       retry after an error or a stall
  ctrl+y       copy the selected answer
  alt+l/alt+d  like / dislike the selected answer
  alt+↑/alt+↓  select another answer
  pgup/pgdn    scroll; ctrl+g follows the bottom again
  ctrl+n       new chat
  ctrl+c       quit

Examples:
  seek-chat chat
  seek-chat chat -m deepseek-reasoner
  seek-chat chat --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	AddModelFlag(chatCmd, &chatModel)
	AddStyleFlag(chatCmd, &chatStyle)
	chatCmd.Flags().StringVar(&chatServer, "server", "", "Use a seek-chat server (e.g., http://localhost:8080) instead of calling DeepSeek directly")
	AddDebugFlag(chatCmd, &chatDebug)
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("chat needs an interactive terminal")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chatModel != "" {
		cfg.DeepSeek.Model = chatModel
	}
	initThemeFromConfig(cfg)

	logger, closeLog, err := newFileLogger(chatDebug)
	if err != nil {
		return err
	}
	defer closeLog()

	sender, err := chatSender(cfg)
	if err != nil {
		return err
	}

	style := cfg.UI.Theme
	if chatStyle != "" {
		style = chatStyle
	}

	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width, height = w, h
	}

	model := chat.New(chat.Options{
		Sender:       sender,
		Style:        ui.GlamourStyleFor(style),
		Styles:       ui.NewStyles(os.Stdout),
		Pipeline:     normalize.New(normalize.Options{FinalAnswerFixup: cfg.Normalize.FinalAnswerFixup}),
		StallTimeout: cfg.UI.StallTimeout,
		CopyReset:    cfg.UI.CopyReset,
		Logger:       logger,
		ModelName:    cfg.DeepSeek.Model,
		Width:        width,
		Height:       height,
	})

	logger.Info("chat started", "model", cfg.DeepSeek.Model, "server", chatServer)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

// chatSender picks the proxy client or a direct provider.
func chatSender(cfg *config.Config) (turn.Sender, error) {
	if chatServer != "" {
		return chatapi.NewClient(chatServer), nil
	}
	if cfg.DeepSeek.APIKey == "" {
		return nil, fmt.Errorf("DeepSeek API key is not configured: set DEEPSEEK_API_KEY, add it to .env, or use --server")
	}
	return newSender(cfg), nil
}
