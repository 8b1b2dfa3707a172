package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const appName = "seek-chat"

type Config struct {
	DeepSeek  DeepSeekConfig  `mapstructure:"deepseek" yaml:"deepseek"`
	Serve     ServeConfig     `mapstructure:"serve" yaml:"serve"`
	UI        UIConfig        `mapstructure:"ui" yaml:"ui"`
	Normalize NormalizeConfig `mapstructure:"normalize" yaml:"normalize"`
	Theme     ThemeConfig     `mapstructure:"theme" yaml:"theme"`
}

// DeepSeekConfig configures the upstream model API.
type DeepSeekConfig struct {
	APIKey             string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	Model              string        `mapstructure:"model" yaml:"model"`
	Temperature        float64       `mapstructure:"temperature" yaml:"temperature"`
	MathTemperature    float64       `mapstructure:"math_temperature" yaml:"math_temperature"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`                           // time to first response
	MathDetection      bool          `mapstructure:"math_detection" yaml:"math_detection"`             // use math_temperature for calculations
	InjectSystemPrompt bool          `mapstructure:"inject_system_prompt" yaml:"inject_system_prompt"` // ask for plain-text arithmetic
}

// ServeConfig configures `seek-chat serve`.
type ServeConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	UI          bool     `mapstructure:"ui" yaml:"ui"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit   float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst   int      `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// UIConfig configures rendering and the terminal client.
type UIConfig struct {
	Theme        string        `mapstructure:"theme" yaml:"theme"`           // terminal markdown style: auto, dark, light
	CodeTheme    string        `mapstructure:"code_theme" yaml:"code_theme"` // chroma style for HTML code blocks
	StallTimeout time.Duration `mapstructure:"stall_timeout" yaml:"stall_timeout"`
	CopyReset    time.Duration `mapstructure:"copy_reset" yaml:"copy_reset"`
}

type NormalizeConfig struct {
	FinalAnswerFixup bool `mapstructure:"final_answer_fixup" yaml:"final_answer_fixup"`
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Preset    string `mapstructure:"preset" yaml:"preset,omitempty"`       // gruvbox, dracula, nord, solarized, monokai, classic
	Primary   string `mapstructure:"primary" yaml:"primary,omitempty"`     // main accent (user messages, highlights)
	Secondary string `mapstructure:"secondary" yaml:"secondary,omitempty"` // secondary accent (headers, borders)
	Success   string `mapstructure:"success" yaml:"success,omitempty"`     // copied, liked
	Error     string `mapstructure:"error" yaml:"error,omitempty"`         // error banner
	Warning   string `mapstructure:"warning" yaml:"warning,omitempty"`     // stall banner
	Muted     string `mapstructure:"muted" yaml:"muted,omitempty"`         // dimmed text
	Text      string `mapstructure:"text" yaml:"text,omitempty"`           // primary text
	Spinner   string `mapstructure:"spinner" yaml:"spinner,omitempty"`     // loading spinner
	UserMsgBg string `mapstructure:"user_msg_bg" yaml:"user_msg_bg,omitempty"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("deepseek.temperature", 0.3)
	v.SetDefault("deepseek.math_temperature", 0.1)
	v.SetDefault("deepseek.timeout", 30*time.Second)
	v.SetDefault("deepseek.math_detection", true)
	v.SetDefault("deepseek.inject_system_prompt", false)

	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.ui", true)
	v.SetDefault("serve.cors_origins", []string{})
	v.SetDefault("serve.rate_limit", 5.0)
	v.SetDefault("serve.rate_burst", 10)

	v.SetDefault("ui.theme", "auto")
	v.SetDefault("ui.code_theme", "github")
	v.SetDefault("ui.stall_timeout", 30*time.Second)
	v.SetDefault("ui.copy_reset", 2*time.Second)

	v.SetDefault("normalize.final_answer_fixup", true)
}

// Load reads config.yaml from the config directory or the working
// directory. A missing file is not an error.
func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}
	LoadDotEnv(".", configPath)
	return LoadFrom(viper.GetViper(), configPath, ".")
}

// LoadFrom reads the config with v, searching dirs in order.
func LoadFrom(v *viper.Viper, dirs ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	SetDefaults(v)

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	resolveDeepSeekCredentials(&cfg.DeepSeek)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env files from dirs into the environment. Variables
// that are already set win, and missing files are skipped.
func LoadDotEnv(dirs ...string) {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// resolveDeepSeekCredentials resolves the API key from config or environment
func resolveDeepSeekCredentials(cfg *DeepSeekConfig) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	cfg.BaseURL = expandEnv(cfg.BaseURL)
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port %d out of range", c.Serve.Port))
	}
	if c.Serve.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("serve.rate_limit must not be negative"))
	}
	if c.Serve.RateLimit > 0 && c.Serve.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("serve.rate_burst must be at least 1 when rate limiting"))
	}
	for name, t := range map[string]float64{
		"deepseek.temperature":      c.DeepSeek.Temperature,
		"deepseek.math_temperature": c.DeepSeek.MathTemperature,
	} {
		if t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("%s %.2f outside [0, 2]", name, t))
		}
	}
	if c.DeepSeek.Timeout < 0 {
		errs = append(errs, fmt.Errorf("deepseek.timeout must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	if c.DeepSeek.APIKey != "" {
		c.DeepSeek.APIKey = redact(c.DeepSeek.APIKey)
	}
	c.Serve.CORSOrigins = append([]string(nil), c.Serve.CORSOrigins...)
	return c
}

func redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "****" + key[len(key)-4:]
}

// Addr is the listen address of the server.
func (c ServeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for seek-chat.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes a starter config to path. The API key is never written;
// it belongs in DEEPSEEK_API_KEY or a .env file.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`deepseek:
  model: %s
  base_url: %s
  # api_key: ${DEEPSEEK_API_KEY}
  temperature: %.2f
  math_temperature: %.2f
  timeout: %s
  math_detection: %t
  inject_system_prompt: %t

serve:
  host: %s
  port: %d
  ui: %t
  rate_limit: %g
  rate_burst: %d
  # cors_origins:
  #   - https://chat.example.com

ui:
  theme: %s
  code_theme: %s
  stall_timeout: %s
  copy_reset: %s

normalize:
  final_answer_fixup: %t
`, cfg.DeepSeek.Model, cfg.DeepSeek.BaseURL, cfg.DeepSeek.Temperature, cfg.DeepSeek.MathTemperature,
		cfg.DeepSeek.Timeout, cfg.DeepSeek.MathDetection, cfg.DeepSeek.InjectSystemPrompt,
		cfg.Serve.Host, cfg.Serve.Port, cfg.Serve.UI, cfg.Serve.RateLimit, cfg.Serve.RateBurst,
		cfg.UI.Theme, cfg.UI.CodeTheme, cfg.UI.StallTimeout, cfg.UI.CopyReset,
		cfg.Normalize.FinalAnswerFixup)

	return os.WriteFile(path, []byte(content), 0600)
}
