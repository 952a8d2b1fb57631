package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// LLM providers
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	// Context budget policies
	PolicyWarn   = "warn"
	PolicyStrict = "strict"

	// Default values
	DefaultPort                 = 8080
	DefaultHost                 = "127.0.0.1"
	DefaultLogLevel             = "info"
	DefaultMaxFileSize          = 100 * 1024 * 1024 // 100MB
	DefaultProvider             = ProviderOllama
	DefaultModel                = "llama3.2"
	DefaultLLMTimeout           = 120 * time.Second
	DefaultContextMaxChars      = 204800
	DefaultContextPolicy        = PolicyWarn
	DefaultInferenceConcurrency = 1
	DefaultDocumentTimeout      = 60 * time.Second
	DefaultDocumentConcurrency  = 4
	DefaultCheckpointDirName    = ".form-pilot"
	DefaultEnvFile              = ".env"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Model roles
const (
	RolePrefill   = "prefill"
	RoleQuestions = "questions"
	RoleChat      = "chat"
)

// LLMConfig selects and tunes the language model backend
type LLMConfig struct {
	Provider       string
	Model          string
	PrefillModel   string // optional per-role overrides
	QuestionsModel string
	ChatModel      string
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RPS            float64 // 0 disables rate limiting
	Burst          int
}

// ModelFor returns the model configured for a role, falling back to Model
func (l LLMConfig) ModelFor(role string) string {
	var m string
	switch role {
	case RolePrefill:
		m = l.PrefillModel
	case RoleQuestions:
		m = l.QuestionsModel
	case RoleChat:
		m = l.ChatModel
	}
	if m == "" {
		return l.Model
	}
	return m
}

// Config holds all configuration for the form pilot MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// WorkDirectory bounds every form, document and output path
	WorkDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum input file size in bytes

	LLM LLMConfig

	// Context assembly
	ContextMaxChars int
	ContextPolicy   string

	// Pipeline tuning
	InferenceConcurrency int
	DocumentTimeout      time.Duration
	DocumentConcurrency  int

	// CheckpointDir holds the checkpoint database; empty means <WorkDirectory>/.form-pilot
	CheckpointDir string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:          ModeStdio, // Default to stdio mode for MCP compatibility
		Host:          DefaultHost,
		Port:          DefaultPort,
		WorkDirectory: currentDir,
		Version:       "1.0.0",
		ServerName:    "mcp-form-pilot",
		LogLevel:      DefaultLogLevel,
		MaxFileSize:   DefaultMaxFileSize,
		LLM: LLMConfig{
			Provider: DefaultProvider,
			Model:    DefaultModel,
			Timeout:  DefaultLLMTimeout,
		},
		ContextMaxChars:      DefaultContextMaxChars,
		ContextPolicy:        DefaultContextPolicy,
		InferenceConcurrency: DefaultInferenceConcurrency,
		DocumentTimeout:      DefaultDocumentTimeout,
		DocumentConcurrency:  DefaultDocumentConcurrency,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, err
	}

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.WorkDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.WorkDirectory); err == nil {
			cfg.WorkDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads a .env file when present. Existing variables win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// FORM_PILOT_LLM_PROVIDER maps to llm.provider
	viper.SetEnvPrefix("FORM_PILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.WorkDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)

	viper.SetDefault("llm.provider", cfg.LLM.Provider)
	viper.SetDefault("llm.model", cfg.LLM.Model)
	viper.SetDefault("llm.prefill_model", "")
	viper.SetDefault("llm.questions_model", "")
	viper.SetDefault("llm.chat_model", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.timeout", cfg.LLM.Timeout)
	viper.SetDefault("llm.rps", cfg.LLM.RPS)
	viper.SetDefault("llm.burst", cfg.LLM.Burst)

	viper.SetDefault("context.max_chars", cfg.ContextMaxChars)
	viper.SetDefault("context.policy", cfg.ContextPolicy)
	viper.SetDefault("inference.concurrency", cfg.InferenceConcurrency)
	viper.SetDefault("documents.timeout", cfg.DocumentTimeout)
	viper.SetDefault("documents.concurrency", cfg.DocumentConcurrency)
	viper.SetDefault("checkpoint.dir", cfg.CheckpointDir)
}

// flagKeys maps flag names to viper keys
var flagKeys = map[string]string{
	"mode":                  "mode",
	"host":                  "host",
	"port":                  "port",
	"dir":                   "dir",
	"loglevel":              "loglevel",
	"maxfilesize":           "maxfilesize",
	"llm-provider":          "llm.provider",
	"llm-model":             "llm.model",
	"llm-prefill-model":     "llm.prefill_model",
	"llm-questions-model":   "llm.questions_model",
	"llm-chat-model":        "llm.chat_model",
	"llm-base-url":          "llm.base_url",
	"llm-timeout":           "llm.timeout",
	"llm-rps":               "llm.rps",
	"llm-burst":             "llm.burst",
	"context-max-chars":     "context.max_chars",
	"context-policy":        "context.policy",
	"inference-concurrency": "inference.concurrency",
	"document-timeout":      "documents.timeout",
	"document-concurrency":  "documents.concurrency",
	"checkpoint-dir":        "checkpoint.dir",
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.WorkDirectory, "Working directory containing forms and supporting documents")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum input file size in bytes")

	pflag.String("llm-provider", cfg.LLM.Provider, "LLM provider: ollama, openai, anthropic, gemini")
	pflag.String("llm-model", cfg.LLM.Model, "Default model for every role")
	pflag.String("llm-prefill-model", "", "Model used to prefill fields from documents")
	pflag.String("llm-questions-model", "", "Model used to phrase survey questions")
	pflag.String("llm-chat-model", "", "Model used for free conversation")
	pflag.String("llm-base-url", "", "Override the provider base URL")
	pflag.Duration("llm-timeout", cfg.LLM.Timeout, "Timeout for a single model call")
	pflag.Float64("llm-rps", cfg.LLM.RPS, "Model requests per second (0 disables limiting)")
	pflag.Int("llm-burst", cfg.LLM.Burst, "Model request burst size")

	pflag.Int("context-max-chars", cfg.ContextMaxChars, "Character budget of the assembled document context")
	pflag.String("context-policy", cfg.ContextPolicy, "Behaviour over budget: 'warn' or 'strict'")
	pflag.Int("inference-concurrency", cfg.InferenceConcurrency, "Fields inferred in parallel (1 = sequential)")
	pflag.Duration("document-timeout", cfg.DocumentTimeout, "Timeout for extracting a single document")
	pflag.Int("document-concurrency", cfg.DocumentConcurrency, "Documents extracted in parallel")
	pflag.String("checkpoint-dir", cfg.CheckpointDir, "Checkpoint database directory (default <dir>/.form-pilot)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for flag, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(flag))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Form Pilot - fills PDF forms from supporting documents with an LLM\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, local ollama, current directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                    "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --llm-provider=openai --llm-model=gpt-4o-mini\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --context-policy=strict --inference-concurrency=4\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from .env):\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_MODE             Server mode\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_DIR              Working directory\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_LOGLEVEL         Log level\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_LLM_PROVIDER     LLM provider\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_LLM_MODEL        Default model\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_LLM_API_KEY      Provider API key\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_LLM_BASE_URL     Provider base URL\n")
		fmt.Fprintf(os.Stderr, "  FORM_PILOT_CONTEXT_POLICY   Context budget policy\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.WorkDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")

	cfg.LLM = LLMConfig{
		Provider:       strings.ToLower(viper.GetString("llm.provider")),
		Model:          viper.GetString("llm.model"),
		PrefillModel:   viper.GetString("llm.prefill_model"),
		QuestionsModel: viper.GetString("llm.questions_model"),
		ChatModel:      viper.GetString("llm.chat_model"),
		BaseURL:        viper.GetString("llm.base_url"),
		APIKey:         viper.GetString("llm.api_key"),
		Timeout:        viper.GetDuration("llm.timeout"),
		RPS:            viper.GetFloat64("llm.rps"),
		Burst:          viper.GetInt("llm.burst"),
	}

	cfg.ContextMaxChars = viper.GetInt("context.max_chars")
	cfg.ContextPolicy = strings.ToLower(viper.GetString("context.policy"))
	cfg.InferenceConcurrency = viper.GetInt("inference.concurrency")
	cfg.DocumentTimeout = viper.GetDuration("documents.timeout")
	cfg.DocumentConcurrency = viper.GetInt("documents.concurrency")
	cfg.CheckpointDir = viper.GetString("checkpoint.dir")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate working directory
	if c.WorkDirectory == "" {
		return errors.New("working directory cannot be empty")
	}

	// Check if the working directory exists, create if it doesn't
	if _, err := os.Stat(c.WorkDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.WorkDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create working directory %s: %w", c.WorkDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access working directory %s: %w", c.WorkDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if err := c.LLM.validate(); err != nil {
		return err
	}

	if c.ContextMaxChars <= 0 {
		return errors.New("context budget must be positive")
	}
	if c.ContextPolicy != PolicyWarn && c.ContextPolicy != PolicyStrict {
		return fmt.Errorf("invalid context policy: %s (must be 'warn' or 'strict')", c.ContextPolicy)
	}
	if c.InferenceConcurrency < 1 {
		return errors.New("inference concurrency must be at least 1")
	}
	if c.DocumentConcurrency < 1 {
		return errors.New("document concurrency must be at least 1")
	}
	if c.DocumentTimeout <= 0 {
		return errors.New("document timeout must be positive")
	}

	return nil
}

func (l LLMConfig) validate() error {
	switch l.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("invalid llm provider: %s (must be one of: ollama, openai, anthropic, gemini)", l.Provider)
	}
	if l.Model == "" {
		return errors.New("llm model cannot be empty")
	}
	if l.Timeout <= 0 {
		return errors.New("llm timeout must be positive")
	}
	if l.RPS < 0 || l.Burst < 0 {
		return errors.New("llm rate limits cannot be negative")
	}
	return nil
}

// CheckpointPath returns the directory of the checkpoint database
func (c *Config) CheckpointPath() string {
	if c.CheckpointDir != "" {
		return c.CheckpointDir
	}
	return filepath.Join(c.WorkDirectory, DefaultCheckpointDirName)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The API key is never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, WorkDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"LLM: %s/%s, ContextMaxChars: %d, ContextPolicy: %s, InferenceConcurrency: %d}",
		c.Mode, c.Host, c.Port, c.WorkDirectory, c.LogLevel, c.MaxFileSize,
		c.LLM.Provider, c.LLM.Model, c.ContextMaxChars, c.ContextPolicy, c.InferenceConcurrency)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsStrictContext reports whether an oversized context aborts prefill
func (c *Config) IsStrictContext() bool {
	return c.ContextPolicy == PolicyStrict
}
