package llm

import (
	"context"
	"fmt"

	"github.com/a3tai/mcp-form-pilot/internal/config"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// Clients holds one client per model role
type Clients struct {
	Prefill   Client
	Questions Client
	Chat      Client
}

// Close releases every client
func (c Clients) Close() error {
	var first error
	for _, cl := range []Client{c.Prefill, c.Questions, c.Chat} {
		if cl == nil {
			continue
		}
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewClients builds the prefill, questions and chat clients from config
func NewClients(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (Clients, error) {
	var out Clients
	var err error
	if out.Prefill, err = New(ctx, cfg, config.RolePrefill, log); err != nil {
		return Clients{}, err
	}
	if out.Questions, err = New(ctx, cfg, config.RoleQuestions, log); err != nil {
		return Clients{}, err
	}
	if out.Chat, err = New(ctx, cfg, config.RoleChat, log); err != nil {
		return Clients{}, err
	}
	return out, nil
}

// New creates the provider client for a model role, wrapped with logging,
// rate limiting, a per-call timeout and response cleaning
func New(ctx context.Context, cfg config.LLMConfig, role string, log *logger.Logger) (Client, error) {
	model := cfg.ModelFor(role)

	var inner Client
	switch cfg.Provider {
	case config.ProviderOllama, "":
		inner = NewOllamaClient(cfg.BaseURL, model, nil)
	case config.ProviderOpenAI:
		inner = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, model)
	case config.ProviderAnthropic:
		inner = NewAnthropicClient(cfg.APIKey, cfg.BaseURL, model)
	case config.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.BaseURL, model)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	if log != nil {
		log = log.With("role", role)
	}
	return Wrap(inner,
		Logging(log),
		RateLimit(cfg.RPS, cfg.Burst),
		Timeout(cfg.Timeout),
		Cleaned(),
	), nil
}
