package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "seek-chat",
	Short: "Chat with DeepSeek in the terminal or the browser",
	Long: `seek-chat is a small chat client and proxy for the DeepSeek API.
Answers stream in as markdown with code highlighting and math.

Examples:
  seek-chat chat                        # terminal chat
  seek-chat chat --server http://localhost:8080
  seek-chat serve --port 8080           # proxy + browser chat page
  seek-chat render answer.md --html     # render markdown to HTML

  seek-chat config                      # view configuration
  seek-chat config completion zsh       # shell completions`,
	Version:           Version,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
