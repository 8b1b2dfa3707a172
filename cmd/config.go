package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samsaffron/seek-chat/internal/config"
	"github.com/samsaffron/seek-chat/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage seek-chat configuration",
	Long: `View or edit your seek-chat configuration.

Examples:
  seek-chat config                     # show current config
  seek-chat config edit                # edit in $EDITOR
  seek-chat config reset               # reset to defaults
  seek-chat config set serve.port 9090
  seek-chat config theme dracula
  seek-chat config completion zsh      # generate shell completions`,
	RunE: configShow, // Default to show
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in $EDITOR",
	RunE:  configEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file path",
	RunE:  configPath,
}

var configCompletionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script.

Examples:
  seek-chat config completion bash
  seek-chat config completion zsh
  seek-chat config completion fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      configCompletion,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	Long:  `Reset the configuration file to default values. This will overwrite any existing configuration.`,
	RunE:  configReset,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value while preserving comments.

Examples:
  seek-chat config set deepseek.model deepseek-reasoner
  seek-chat config set serve.port 9090
  seek-chat config set ui.theme light`,
	Args:              cobra.ExactArgs(2),
	RunE:              configSet,
	ValidArgsFunction: configKeyCompletion,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value, including defaults.

Examples:
  seek-chat config get deepseek.model
  seek-chat config get serve.rate_limit`,
	Args:              cobra.ExactArgs(1),
	RunE:              configGet,
	ValidArgsFunction: configKeyCompletion,
}

var configThemeCmd = &cobra.Command{
	Use:   "theme [name]",
	Short: "List or select a UI color theme",
	Long: `Without an argument, list the predefined color themes with a preview.
With a name, save it as theme.preset.

Available themes: gruvbox (default), dracula, nord, solarized, monokai, classic`,
	Args:              cobra.MaximumNArgs(1),
	RunE:              configTheme,
	ValidArgsFunction: configThemeCompletion,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configCompletionCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configThemeCmd)
}

func configShow(cmd *cobra.Command, args []string) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if config.Exists() {
		fmt.Fprintf(out, "# %s\n", configPath)
	} else {
		fmt.Fprintf(out, "# %s (not created yet, showing defaults)\n", configPath)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	enc.Close()
	fmt.Fprint(out, buf.String())

	fmt.Fprintln(out)
	if cfg.DeepSeek.APIKey != "" {
		fmt.Fprintln(out, "# credentials: api_key [set]")
	} else {
		fmt.Fprintln(out, "# credentials: api_key [NOT SET - export DEEPSEEK_API_KEY or add it to .env]")
	}
	return nil
}

func configEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Create default config if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}
	}

	// Get editor from environment
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	return editorCmd.Run()
}

func configPath(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func configReset(cmd *cobra.Command, args []string) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := writeDefaultConfig(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config reset to defaults: %s\n", configPath)
	return nil
}

// writeDefaultConfig writes the defaults alone, ignoring any existing file.
func writeDefaultConfig(path string) error {
	defaults, err := config.LoadFrom(viper.New())
	if err != nil {
		return err
	}
	if err := config.Save(path, defaults); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func configCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletion(out)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	}
	return nil
}

// configSet sets a configuration value while preserving comments
func configSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !knownConfigKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := setConfigValue(configPath, key, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	return nil
}

func setConfigValue(configPath, key, value string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Read existing file or create empty document
	var root yaml.Node
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err) || (err == nil && len(bytes.TrimSpace(data)) == 0):
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	case err != nil:
		return fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := setYAMLValue(&root, strings.Split(key, "."), value); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// setYAMLValue walks path through the mapping under root, creating
// intermediate mappings, and sets the final scalar.
func setYAMLValue(root *yaml.Node, path []string, value string) error {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid document structure")
	}
	current := root.Content[0]
	if current.Kind != yaml.MappingNode {
		return fmt.Errorf("root is not a mapping")
	}

	for i, part := range path {
		last := i == len(path)-1
		var next *yaml.Node
		for j := 0; j+1 < len(current.Content); j += 2 {
			if current.Content[j].Value == part {
				next = current.Content[j+1]
				break
			}
		}
		if next == nil {
			next = &yaml.Node{Kind: yaml.MappingNode}
			current.Content = append(current.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: part}, next)
		}
		if last {
			next.Kind = yaml.ScalarNode
			next.Tag = ""
			next.Value = value
			next.Content = nil
			return nil
		}
		if next.Kind != yaml.MappingNode {
			next.Kind = yaml.MappingNode
			next.Tag = ""
			next.Value = ""
			next.Content = nil
		}
		current = next
	}
	return nil
}

// configGet prints the effective value, so defaults show up too.
func configGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !knownConfigKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	value := viper.Get(key)
	if key == "deepseek.api_key" {
		value = cfg.Redacted().DeepSeek.APIKey
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func configTheme(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		preset := ui.GetPresetTheme(args[0])
		if preset == nil {
			return fmt.Errorf("unknown theme %q (available: %s)", args[0], strings.Join(ui.PresetThemeNames, ", "))
		}
		name := preset.Name
		configPath, err := config.GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		if err := setConfigValue(configPath, "theme.preset", name); err != nil {
			return err
		}
		fmt.Fprintf(out, "theme.preset = %s\n", name)
		return nil
	}

	current := ""
	if cfg, err := config.Load(); err == nil {
		current = cfg.Theme.Preset
		if current == "" {
			current = ui.MatchPresetTheme(ui.ThemeConfig{
				Primary:   cfg.Theme.Primary,
				Secondary: cfg.Theme.Secondary,
				Success:   cfg.Theme.Success,
				Error:     cfg.Theme.Error,
				Warning:   cfg.Theme.Warning,
				Muted:     cfg.Theme.Muted,
				Text:      cfg.Theme.Text,
				Spinner:   cfg.Theme.Spinner,
			})
		}
	}
	for _, name := range ui.PresetThemeNames {
		preset := ui.PresetThemes[name]
		marker := "  "
		if name == current {
			marker = "> "
		}
		fmt.Fprintf(out, "%s%-10s %s  %s\n", marker, name, themeSwatch(preset.Config), preset.Description)
	}
	return nil
}

func themeSwatch(cfg ui.ThemeConfig) string {
	var sb strings.Builder
	for _, c := range []string{cfg.Primary, cfg.Secondary, cfg.Success, cfg.Error, cfg.Warning, cfg.Muted} {
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render("■"))
	}
	return sb.String()
}

var configKeys = []string{
	"deepseek.api_key",
	"deepseek.base_url",
	"deepseek.model",
	"deepseek.temperature",
	"deepseek.math_temperature",
	"deepseek.timeout",
	"deepseek.math_detection",
	"deepseek.inject_system_prompt",
	"serve.host",
	"serve.port",
	"serve.ui",
	"serve.rate_limit",
	"serve.rate_burst",
	"ui.theme",
	"ui.code_theme",
	"ui.stall_timeout",
	"ui.copy_reset",
	"normalize.final_answer_fixup",
	"theme.preset",
	"theme.primary",
	"theme.secondary",
	"theme.success",
	"theme.error",
	"theme.warning",
	"theme.muted",
	"theme.text",
	"theme.spinner",
	"theme.user_msg_bg",
}

func knownConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

func configKeyCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(configKeys, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func configThemeCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(ui.PresetThemeNames, toComplete), cobra.ShellCompDirectiveNoFileComp
}
