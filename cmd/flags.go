package cmd

import (
	"strings"

	"github.com/samsaffron/seek-chat/internal/ui"
	"github.com/spf13/cobra"
)

// AddDebugFlag adds the --debug/-d flag
func AddDebugFlag(cmd *cobra.Command, dest *bool) {
	cmd.Flags().BoolVarP(dest, "debug", "d", false, "Show debug information")
}

// AddModelFlag adds the --model/-m flag
func AddModelFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "model", "m", "", "Override the DeepSeek model (e.g., deepseek-reasoner)")
	if err := cmd.RegisterFlagCompletionFunc("model", ModelFlagCompletion); err != nil {
		panic("failed to register model completion: " + err.Error())
	}
}

// AddStyleFlag adds the --style flag for terminal markdown rendering
func AddStyleFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVar(dest, "style", "", "Markdown style: auto, dark, light, plain (default from config)")
	if err := cmd.RegisterFlagCompletionFunc("style", StyleFlagCompletion); err != nil {
		panic("failed to register style completion: " + err.Error())
	}
}

var knownModels = []string{"deepseek-chat", "deepseek-reasoner"}

// ModelFlagCompletion completes --model with the models DeepSeek serves
func ModelFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(knownModels, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// StyleFlagCompletion completes --style
func StyleFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	styles := []string{ui.MarkdownAuto, ui.MarkdownDark, ui.MarkdownLight, ui.MarkdownPlain}
	return filterPrefix(styles, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(items []string, prefix string) []string {
	var out []string
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			out = append(out, item)
		}
	}
	return out
}
