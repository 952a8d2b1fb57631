// Package session holds the single active form-filling session and
// orchestrates the pipeline components behind the MCP tools.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/a3tai/mcp-form-pilot/internal/checkpoint"
	"github.com/a3tai/mcp-form-pilot/internal/conversation"
	"github.com/a3tai/mcp-form-pilot/internal/document"
	ferr "github.com/a3tai/mcp-form-pilot/internal/errors"
	"github.com/a3tai/mcp-form-pilot/internal/evidence"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/inference"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
	"github.com/a3tai/mcp-form-pilot/internal/pdf/acroform"
	"github.com/a3tai/mcp-form-pilot/internal/workspace"
)

const filledSuffix = "_filled"

// ErrNoForm is returned by operations that need a loaded form
var ErrNoForm = errors.New("no form loaded, use form_load first")

// Components are the pipeline stages a Service drives
type Components struct {
	Guard        *workspace.Guard
	Normalizer   *document.Normalizer
	Extractor    *acroform.Extractor
	Materializer *acroform.Materializer
	Prefill      *inference.Engine
	Conversation *conversation.Engine
	Checkpoints  *checkpoint.Store // optional
	Budget       evidence.Budget
	Info         Info
}

// Info is static server information reported by ServerInfo
type Info struct {
	ServerName  string
	Version     string
	MaxFileSize int64
	Provider    string
	Models      []string
}

// Service is the single active session. Calls are serialized.
type Service struct {
	mu sync.Mutex
	c  Components

	scanner *scanner
	log     *logger.Logger

	formPath string
	template []byte
	draft    *form.Draft
	docs     []document.Document
	evidence *evidence.Context
	history  []conversation.Message
}

// NewService creates a Service
func NewService(c Components, log *logger.Logger) (*Service, error) {
	switch {
	case c.Guard == nil:
		return nil, fmt.Errorf("guard cannot be nil")
	case c.Normalizer == nil:
		return nil, fmt.Errorf("normalizer cannot be nil")
	case c.Extractor == nil || c.Materializer == nil:
		return nil, fmt.Errorf("form extractor and materializer cannot be nil")
	case c.Prefill == nil || c.Conversation == nil:
		return nil, fmt.Errorf("inference and conversation engines cannot be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		c:       c,
		scanner: newScanner(),
		log:     log,
		history: []conversation.Message{{Role: conversation.RoleAssistant, Content: conversation.DefaultGreeting}},
	}, nil
}

// LoadForm extracts the form at req.Path and starts a new session on it.
// Loaded documents and the conversation are kept.
func (s *Service) LoadForm(_ context.Context, req FormLoadRequest) (*FormLoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.c.Guard.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	draft, err := s.c.Extractor.ExtractFile(path)
	if err != nil {
		return nil, err
	}
	template, err := os.ReadFile(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindExtractionFailure, path, err)
	}

	s.formPath = path
	s.template = template
	s.draft = draft

	msgs := s.c.Conversation.FormLoaded(draft)
	s.history = append(s.history, msgs...)

	s.log.Info("form loaded", "path", path, "fields", len(draft.Fields), "unanswered", draft.UnansweredCount())
	return &FormLoadResult{
		Path:       path,
		Fields:     len(draft.Fields),
		Unanswered: draft.UnansweredCount(),
		Draft:      draft,
		Messages:   msgs,
	}, nil
}

// LoadDocuments normalizes req.Paths, adds them to the session evidence and
// prefills the loaded form. Under the strict context policy an oversized
// evidence set fails with ContextTooLarge before any inference call and the
// new documents are discarded.
func (s *Service) LoadDocuments(ctx context.Context, req DocumentsLoadRequest) (*DocumentsLoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.Paths) == 0 {
		return nil, fmt.Errorf("no document paths given")
	}
	paths, err := s.c.Guard.ResolveAll(req.Paths)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	taken := make(map[string]bool, len(s.docs))
	for _, d := range s.docs {
		taken[d.ID] = true
	}
	loaded := document.Uniquify(s.c.Normalizer.LoadAll(ctx, paths), taken)

	candidate := make([]document.Document, 0, len(s.docs)+len(loaded))
	candidate = append(append(candidate, s.docs...), loaded...)
	ev, err := evidence.Assemble(candidate, s.c.Budget, s.log)
	if err != nil {
		return nil, err
	}
	s.docs = candidate
	s.evidence = ev

	res := &DocumentsLoadResult{Documents: make([]DocumentInfo, len(loaded))}
	for i, d := range loaded {
		res.Documents[i] = documentInfo(d)
		if d.IsError() {
			res.Failed++
		}
	}

	note := fmt.Sprintf("I loaded %d document(s)", len(loaded))
	if res.Failed > 0 {
		note += fmt.Sprintf(", %d of them could not be read", res.Failed)
	}

	if s.draft == nil {
		res.Messages = s.say(note + ". Load a form to prefill it from these documents.")
		return res, nil
	}

	rep := s.c.Prefill.Prefill(ctx, s.draft, s.evidence)
	res.Prefill = &rep
	res.Unanswered = s.draft.UnansweredCount()
	res.Messages = s.say(fmt.Sprintf("%s and prefilled %d of %d empty field(s).", note, rep.Filled, rep.Processed))
	res.Messages = append(res.Messages, s.survey(ctx))
	return res, nil
}

// Prefill reruns inference over the loaded evidence for every empty field
func (s *Service) Prefill(ctx context.Context) (*PrefillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return nil, ErrNoForm
	}
	if s.evidence.Empty() {
		return nil, fmt.Errorf("no documents loaded, use documents_load first")
	}

	rep := s.c.Prefill.Prefill(ctx, s.draft, s.evidence)
	msgs := s.say(fmt.Sprintf("I prefilled %d of %d empty field(s).", rep.Filled, rep.Processed))
	msgs = append(msgs, s.survey(ctx))
	return &PrefillResult{Report: rep, Unanswered: s.draft.UnansweredCount(), Messages: msgs}, nil
}

// Chat runs one conversational turn
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	msgs := s.c.Conversation.Turn(ctx, s.history, s.draft, req.Message)
	s.history = append(s.history, msgs...)

	res := &ChatResult{Messages: msgs, State: conversation.StateOf(s.history, s.draft)}
	if s.draft != nil {
		res.Unanswered = s.draft.UnansweredCount()
	}
	return res, nil
}

// Fill writes the draft into a copy of the form. Fields missing from the
// template are reported in the result while the others are still written.
func (s *Service) Fill(_ context.Context, req FillRequest) (*FillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return nil, ErrNoForm
	}
	if s.template == nil {
		return nil, fmt.Errorf("form template %q is not available, load the form again", s.draft.FormFileName)
	}

	target := req.Output
	if target == "" {
		target = defaultOutput(s.formPath, s.draft.FormFileName, s.c.Guard.Root())
	}
	out, err := s.c.Guard.ResolveOutput(target)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if out == s.formPath {
		return nil, fmt.Errorf("refusing to overwrite the form template %s", out)
	}

	data, err := s.c.Materializer.Materialize(s.template, s.draft)
	var missing []string
	if err != nil {
		var fe *ferr.Error
		if data == nil || !errors.As(err, &fe) {
			return nil, err
		}
		missing = fe.Details
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, ferr.Wrap(ferr.KindMaterializationError, out, err)
	}
	s.scanner.Invalidate(s.c.Guard.Root())

	s.log.Info("filled form written", "output", out, "bytes", len(data), "missing", len(missing))
	return &FillResult{
		Output:   out,
		Size:     len(data),
		Answered: len(s.draft.Fields) - s.draft.UnansweredCount(),
		Missing:  missing,
	}, nil
}

func defaultOutput(formPath, name, root string) string {
	if formPath == "" {
		formPath = filepath.Join(root, name)
	}
	ext := filepath.Ext(formPath)
	return strings.TrimSuffix(formPath, ext) + filledSuffix + ext
}

// Checkpoint saves the session
func (s *Service) Checkpoint(ctx context.Context) (*CheckpointResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoints are disabled")
	}
	if s.draft == nil {
		return nil, ErrNoForm
	}
	info, err := s.c.Checkpoints.Save(ctx, s.draft, s.history, s.docs)
	if err != nil {
		return nil, err
	}
	return &CheckpointResult{
		ID:         info.ID,
		Form:       info.Form,
		Unanswered: info.Unanswered,
		CreatedAt:  info.CreatedAt,
	}, nil
}

// Restore replaces the session with a checkpoint. The form template is
// looked up by name in the working directory.
func (s *Service) Restore(ctx context.Context, req RestoreRequest) (*RestoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoints are disabled")
	}

	var (
		cp  *checkpoint.Checkpoint
		err error
	)
	if req.ID != "" {
		cp, err = s.c.Checkpoints.Load(ctx, req.ID)
	} else {
		cp, err = s.c.Checkpoints.Latest(ctx, req.Form)
	}
	if err != nil {
		return nil, err
	}

	s.draft = cp.Draft
	s.docs = cp.Documents
	s.history = cp.History
	s.formPath, s.template = "", nil
	if path, err := s.c.Guard.Resolve(cp.Form); err == nil {
		if data, err := os.ReadFile(path); err == nil {
			s.formPath, s.template = path, data
		}
	}

	s.evidence = nil
	if ev, err := evidence.Assemble(s.docs, s.c.Budget, s.log); err == nil {
		s.evidence = ev
	} else {
		s.log.Warn("restored documents not usable for prefill", "error", err)
	}

	msgs := s.say(fmt.Sprintf("I restored the checkpoint of %s from %s.",
		cp.Form, cp.CreatedAt.Format(timeListLayout)))
	if conversation.StateOf(s.history, s.draft) != conversation.StateAwaitingAnswer {
		msgs = append(msgs, s.survey(ctx))
	}

	s.log.Info("checkpoint restored", "id", cp.ID, "form", cp.Form, "template", s.template != nil)
	return &RestoreResult{
		ID:          cp.ID,
		Form:        cp.Form,
		Unanswered:  s.draft.UnansweredCount(),
		Documents:   len(s.docs),
		TemplateSet: s.template != nil,
		Messages:    msgs,
	}, nil
}

// Status reports the session state
func (s *Service) Status(context.Context) *StatusResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &StatusResult{
		FormPath:  s.formPath,
		State:     conversation.StateOf(s.history, s.draft),
		Documents: make([]DocumentInfo, len(s.docs)),
		Evidence:  s.evidence.DocumentIDs(),
		Turns:     len(s.history),
	}
	for i, d := range s.docs {
		res.Documents[i] = documentInfo(d)
	}
	if s.draft != nil {
		res.Draft = s.draft.Clone()
		res.Fields = len(s.draft.Fields)
		res.Unanswered = s.draft.UnansweredCount()
		for _, f := range s.draft.Fields {
			if f.Error != "" {
				res.Failed++
			}
		}
	}
	return res
}

// History returns a copy of the conversation log
func (s *Service) History() []conversation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversation.Message(nil), s.history...)
}

// say appends an assistant message to the log and returns it
func (s *Service) say(content string) []conversation.Message {
	m := conversation.Message{Role: conversation.RoleAssistant, Content: content}
	s.history = append(s.history, m)
	return []conversation.Message{m}
}

// survey appends the next survey question or the completion notice
func (s *Service) survey(ctx context.Context) conversation.Message {
	m := s.c.Conversation.Survey(ctx, s.draft)
	s.history = append(s.history, m)
	return m
}
