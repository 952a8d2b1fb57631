package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})
	setArgs(args)
	resetFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	withArgs(t, "mcp-form-pilot", "--dir="+dir)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Errorf("LoadFromFlags() Provider = %v, want %v", cfg.LLM.Provider, ProviderOllama)
	}
	if cfg.LLM.Timeout != DefaultLLMTimeout {
		t.Errorf("LoadFromFlags() LLM.Timeout = %v, want %v", cfg.LLM.Timeout, DefaultLLMTimeout)
	}
	if cfg.ContextMaxChars != DefaultContextMaxChars {
		t.Errorf("LoadFromFlags() ContextMaxChars = %v, want %v", cfg.ContextMaxChars, DefaultContextMaxChars)
	}
	if cfg.WorkDirectory != dir {
		t.Errorf("LoadFromFlags() WorkDirectory = %v, want %v", cfg.WorkDirectory, dir)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	dir := t.TempDir()
	withArgs(t, "mcp-form-pilot",
		"--dir="+dir,
		"--loglevel=debug",
		"--llm-provider=OpenAI",
		"--llm-model=gpt-4o-mini",
		"--llm-questions-model=gpt-4o",
		"--llm-timeout=30s",
		"--llm-rps=2.5",
		"--llm-burst=3",
		"--context-max-chars=1000",
		"--context-policy=strict",
		"--inference-concurrency=4",
		"--document-timeout=5s",
	)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("Provider = %v, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.ModelFor(RoleQuestions) != "gpt-4o" || cfg.LLM.ModelFor(RoleChat) != "gpt-4o-mini" {
		t.Errorf("unexpected per-role models: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM.Timeout = %v, want 30s", cfg.LLM.Timeout)
	}
	if cfg.LLM.RPS != 2.5 || cfg.LLM.Burst != 3 {
		t.Errorf("rate limit = %v/%v, want 2.5/3", cfg.LLM.RPS, cfg.LLM.Burst)
	}
	if cfg.ContextMaxChars != 1000 || !cfg.IsStrictContext() {
		t.Errorf("context = %d/%s, want 1000/strict", cfg.ContextMaxChars, cfg.ContextPolicy)
	}
	if cfg.InferenceConcurrency != 4 {
		t.Errorf("InferenceConcurrency = %d, want 4", cfg.InferenceConcurrency)
	}
	if cfg.DocumentTimeout != 5*time.Second {
		t.Errorf("DocumentTimeout = %v, want 5s", cfg.DocumentTimeout)
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FORM_PILOT_DIR", dir)
	t.Setenv("FORM_PILOT_LLM_PROVIDER", "anthropic")
	t.Setenv("FORM_PILOT_LLM_MODEL", "claude-sonnet")
	t.Setenv("FORM_PILOT_LLM_API_KEY", "sk-test")
	t.Setenv("FORM_PILOT_CONTEXT_POLICY", "strict")
	withArgs(t, "mcp-form-pilot")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.WorkDirectory != dir {
		t.Errorf("WorkDirectory = %v, want %v", cfg.WorkDirectory, dir)
	}
	if cfg.LLM.Provider != ProviderAnthropic || cfg.LLM.Model != "claude-sonnet" {
		t.Errorf("LLM = %s/%s, want anthropic/claude-sonnet", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey not read from environment")
	}
	if !cfg.IsStrictContext() {
		t.Errorf("ContextPolicy = %s, want strict", cfg.ContextPolicy)
	}
}

func TestLoadFromFlags_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		arg  string
	}{
		{"invalid mode", "--mode=invalid"},
		{"invalid provider", "--llm-provider=nope"},
		{"invalid policy", "--context-policy=maybe"},
		{"invalid concurrency", "--inference-concurrency=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, "mcp-form-pilot", "--dir="+t.TempDir(), tt.arg)

			if _, err := LoadFromFlags(); err == nil {
				t.Errorf("LoadFromFlags() expected error for %s", tt.arg)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	withArgs(t, "mcp-form-pilot", "--version")

	if _, err := LoadFromFlags(); err == nil || err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want version requested", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("FORM_PILOT_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("FORM_PILOT_TEST_DOTENV") })

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() unexpected error: %v", err)
	}
	if got := os.Getenv("FORM_PILOT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("FORM_PILOT_TEST_DOTENV = %q, want from-file", got)
	}

	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("loadDotEnv() on a missing file should be a no-op, got %v", err)
	}
}
