package session

import (
	"context"
	"fmt"

	"github.com/a3tai/mcp-form-pilot/internal/checkpoint"
	"github.com/a3tai/mcp-form-pilot/internal/config"
	"github.com/a3tai/mcp-form-pilot/internal/conversation"
	"github.com/a3tai/mcp-form-pilot/internal/document"
	"github.com/a3tai/mcp-form-pilot/internal/evidence"
	"github.com/a3tai/mcp-form-pilot/internal/inference"
	"github.com/a3tai/mcp-form-pilot/internal/llm"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
	"github.com/a3tai/mcp-form-pilot/internal/pdf/acroform"
	"github.com/a3tai/mcp-form-pilot/internal/workspace"
)

// FromConfig wires a Service from configuration and the model clients. The
// returned close function releases the checkpoint store. A checkpoint store
// that cannot be opened disables checkpoints instead of failing.
func FromConfig(_ context.Context, cfg *config.Config, clients llm.Clients, log *logger.Logger) (*Service, func() error, error) {
	if log == nil {
		log = logger.Nop()
	}

	guard, err := workspace.NewGuard(cfg.WorkDirectory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create path guard: %w", err)
	}

	normalizer, err := document.NewNormalizer(document.Options{
		MaxFileSize: cfg.MaxFileSize,
		Timeout:     cfg.DocumentTimeout,
		Concurrency: cfg.DocumentConcurrency,
	}, log.With("component", "normalizer"))
	if err != nil {
		return nil, nil, err
	}

	store, err := checkpoint.Open(cfg.CheckpointPath(), log.With("component", "checkpoint"))
	if err != nil {
		log.Warn("checkpoints disabled", "dir", cfg.CheckpointPath(), "error", err)
		store = nil
	}
	closeFn := func() error { return nil }
	if store != nil {
		closeFn = store.Close
	}

	svc, err := NewService(Components{
		Guard:        guard,
		Normalizer:   normalizer,
		Extractor:    acroform.NewExtractor(cfg.MaxFileSize, log.With("component", "extractor")),
		Materializer: acroform.NewMaterializer(log.With("component", "materializer")),
		Prefill: inference.NewEngine(clients.Prefill,
			inference.Options{Concurrency: cfg.InferenceConcurrency}, log.With("component", "inference")),
		Conversation: conversation.NewEngine(clients.Questions, clients.Chat,
			conversation.Options{}, log.With("component", "conversation")),
		Checkpoints: store,
		Budget: evidence.Budget{
			MaxChars: cfg.ContextMaxChars,
			Policy:   evidence.Policy(cfg.ContextPolicy),
		},
		Info: Info{
			ServerName:  cfg.ServerName,
			Version:     cfg.Version,
			MaxFileSize: cfg.MaxFileSize,
			Provider:    cfg.LLM.Provider,
			Models: []string{
				config.RolePrefill + "=" + cfg.LLM.ModelFor(config.RolePrefill),
				config.RoleQuestions + "=" + cfg.LLM.ModelFor(config.RoleQuestions),
				config.RoleChat + "=" + cfg.LLM.ModelFor(config.RoleChat),
			},
		},
	}, log.With("component", "session"))
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}
