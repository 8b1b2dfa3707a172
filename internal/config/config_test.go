package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-from-env")
	cfg, err := LoadFrom(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.DeepSeek.Model != "deepseek-chat" {
		t.Fatalf("model=%q", cfg.DeepSeek.Model)
	}
	if cfg.DeepSeek.Timeout != 30*time.Second {
		t.Fatalf("timeout=%v", cfg.DeepSeek.Timeout)
	}
	if cfg.DeepSeek.Temperature != 0.3 || cfg.DeepSeek.MathTemperature != 0.1 {
		t.Fatalf("temperatures=%v/%v", cfg.DeepSeek.Temperature, cfg.DeepSeek.MathTemperature)
	}
	if cfg.DeepSeek.APIKey != "sk-from-env" {
		t.Fatalf("api key=%q, want env fallback", cfg.DeepSeek.APIKey)
	}
	if cfg.UI.CopyReset != 2*time.Second || cfg.UI.StallTimeout != 30*time.Second {
		t.Fatalf("ui timings=%v/%v", cfg.UI.CopyReset, cfg.UI.StallTimeout)
	}
	if !cfg.Normalize.FinalAnswerFixup {
		t.Fatal("final answer fixup should default on")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MY_DEEPSEEK_KEY", "sk-expanded")
	data := `deepseek:
  api_key: ${MY_DEEPSEEK_KEY}
  timeout: 10s
  inject_system_prompt: true
serve:
  port: 9090
  cors_origins: ["https://a.example", "https://b.example"]
normalize:
  final_answer_fixup: false
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(viper.New(), dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.DeepSeek.APIKey != "sk-expanded" {
		t.Fatalf("api key=%q", cfg.DeepSeek.APIKey)
	}
	if cfg.DeepSeek.Timeout != 10*time.Second || !cfg.DeepSeek.InjectSystemPrompt {
		t.Fatalf("deepseek=%+v", cfg.DeepSeek)
	}
	if cfg.Serve.Port != 9090 || len(cfg.Serve.CORSOrigins) != 2 {
		t.Fatalf("serve=%+v", cfg.Serve)
	}
	if cfg.Serve.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr=%q", cfg.Serve.Addr())
	}
	if cfg.Normalize.FinalAnswerFixup {
		t.Fatal("final_answer_fixup override ignored")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	data := "deepseek:\n  temperature: 3\nserve:\n  port: 70000\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFrom(viper.New(), dir)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"deepseek.temperature", "serve.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{DeepSeek: DeepSeekConfig{APIKey: "sk-1234567890abcdef"}}
	got := cfg.Redacted().DeepSeek.APIKey
	if strings.Contains(got, "567890") || !strings.HasSuffix(got, "cdef") {
		t.Fatalf("redacted=%q", got)
	}
	if cfg.DeepSeek.APIKey != "sk-1234567890abcdef" {
		t.Fatal("Redacted modified the receiver")
	}
	if got := (Config{DeepSeek: DeepSeekConfig{APIKey: "short"}}).Redacted().DeepSeek.APIKey; got != "****" {
		t.Fatalf("short key redacted=%q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SEEK_CHAT_TEST_VAR=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEEK_CHAT_TEST_VAR", "")
	os.Unsetenv("SEEK_CHAT_TEST_VAR")
	LoadDotEnv(filepath.Join(dir, "missing"), dir)
	if got := os.Getenv("SEEK_CHAT_TEST_VAR"); got != "from-dotenv" {
		t.Fatalf("SEEK_CHAT_TEST_VAR=%q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	defaults, err := LoadFrom(viper.New(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defaults.DeepSeek.Model = "deepseek-reasoner"
	path := filepath.Join(dir, "nested", "config.yaml")
	if err := Save(path, defaults); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	cfg, err := LoadFrom(viper.New(), filepath.Dir(path))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.DeepSeek.Model != "deepseek-reasoner" || cfg.UI.CopyReset != defaults.UI.CopyReset {
		t.Fatalf("round trip lost values: %+v", cfg)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SEEK_CHAT_X", "value")
	tests := map[string]string{
		"${SEEK_CHAT_X}": "value",
		"$SEEK_CHAT_X":   "value",
		"literal":        "literal",
	}
	for in, want := range tests {
		if got := expandEnv(in); got != want {
			t.Errorf("expandEnv(%q)=%q, want %q", in, got, want)
		}
	}
}
