package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-form-pilot/internal/config"
	"github.com/a3tai/mcp-form-pilot/internal/conversation"
	"github.com/a3tai/mcp-form-pilot/internal/descriptions"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
	"github.com/a3tai/mcp-form-pilot/internal/session"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	session   *session.Service
	mcpServer *server.MCPServer
	log       *logger.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *session.Service, log *logger.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("session service cannot be nil")
	}
	if log == nil {
		log = logger.Nop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		session:   svc,
		mcpServer: mcpServer,
		log:       log,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormLoad,
		mcp.WithDescription(descriptions.FormLoadDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the fillable PDF form"),
		),
	), s.handleFormLoad)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolDocumentsLoad,
		mcp.WithDescription(descriptions.DocumentsLoadDescription),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("Paths of the supporting documents (.pdf, .docx, .txt, .text, .md)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), s.handleDocumentsLoad)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormPrefill,
		mcp.WithDescription(descriptions.FormPrefillDescription),
	), s.handleFormPrefill)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormChat,
		mcp.WithDescription(descriptions.FormChatDescription),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user message"),
		),
	), s.handleFormChat)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormStatus,
		mcp.WithDescription(descriptions.FormStatusDescription),
		mcp.WithBoolean("json",
			mcp.Description("Include the draft as JSON"),
		),
	), s.handleFormStatus)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormFill,
		mcp.WithDescription(descriptions.FormFillDescription),
		mcp.WithString("output",
			mcp.Description("Output path (defaults to <form>_filled.pdf next to the form)"),
		),
	), s.handleFormFill)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormCheckpoint,
		mcp.WithDescription(descriptions.FormCheckpointDescription),
	), s.handleFormCheckpoint)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormRestore,
		mcp.WithDescription(descriptions.FormRestoreDescription),
		mcp.WithString("id",
			mcp.Description("Checkpoint id (defaults to the latest checkpoint)"),
		),
		mcp.WithString("form",
			mcp.Description("Form file name to pick the latest checkpoint of"),
		),
	), s.handleFormRestore)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.ServerInfoDescription),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleFormLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.session.LoadForm(ctx, session.FormLoadRequest{Path: path})
	if err != nil {
		return s.toolError(descriptions.ToolFormLoad, err), nil
	}

	text := fmt.Sprintf("Loaded form: %s\n", result.Path)
	text += fmt.Sprintf("Fields: %d (%d empty)\n\n", result.Fields, result.Unanswered)
	text += result.Draft.Summary()
	text += "\n" + formatMessages(result.Messages)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleDocumentsLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := stringList(request.GetArguments()["paths"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.session.LoadDocuments(ctx, session.DocumentsLoadRequest{Paths: paths})
	if err != nil {
		return s.toolError(descriptions.ToolDocumentsLoad, err), nil
	}

	return mcp.NewToolResultText(formatDocumentsLoadResult(result)), nil
}

func (s *Server) handleFormPrefill(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.session.Prefill(ctx)
	if err != nil {
		return s.toolError(descriptions.ToolFormPrefill, err), nil
	}

	text := fmt.Sprintf("Prefill: %d processed, %d filled, %d failed\n",
		result.Report.Processed, result.Report.Filled, result.Report.Failed)
	text += fmt.Sprintf("Empty fields left: %d\n\n", result.Unanswered)
	text += formatMessages(result.Messages)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFormChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.session.Chat(ctx, session.ChatRequest{Message: message})
	if err != nil {
		return s.toolError(descriptions.ToolFormChat, err), nil
	}

	// the user message is echoed by the client already
	var replies []conversation.Message
	for _, m := range result.Messages {
		if m.Role == conversation.RoleAssistant {
			replies = append(replies, m)
		}
	}
	return mcp.NewToolResultText(formatMessages(replies)), nil
}

func (s *Server) handleFormStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.session.Status(ctx)
	text := formatStatusResult(result)

	if asJSON, ok := request.GetArguments()["json"].(bool); ok && asJSON && result.Draft != nil {
		data, err := result.Draft.MarshalIndent()
		if err != nil {
			return s.toolError(descriptions.ToolFormStatus, err), nil
		}
		text += "\nDraft JSON:\n" + string(data) + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFormFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, _ := request.GetArguments()["output"].(string)

	result, err := s.session.Fill(ctx, session.FillRequest{Output: output})
	if err != nil {
		return s.toolError(descriptions.ToolFormFill, err), nil
	}

	text := fmt.Sprintf("Filled form written: %s\n", result.Output)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Answered fields written: %d\n", result.Answered)
	if len(result.Missing) > 0 {
		text += fmt.Sprintf("\n⚠️  WARNING: %d field(s) were not found in the template and were skipped:\n", len(result.Missing))
		for _, name := range result.Missing {
			text += fmt.Sprintf("  • %s\n", name)
		}
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFormCheckpoint(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.session.Checkpoint(ctx)
	if err != nil {
		return s.toolError(descriptions.ToolFormCheckpoint, err), nil
	}

	text := fmt.Sprintf("Checkpoint saved: %s\n", result.ID)
	text += fmt.Sprintf("Form: %s\n", result.Form)
	text += fmt.Sprintf("Empty fields: %d\n", result.Unanswered)
	text += fmt.Sprintf("Created: %s\n", result.CreatedAt.Format("2006-01-02 15:04:05"))
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFormRestore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, _ := args["id"].(string)
	formName, _ := args["form"].(string)

	result, err := s.session.Restore(ctx, session.RestoreRequest{ID: id, Form: formName})
	if err != nil {
		return s.toolError(descriptions.ToolFormRestore, err), nil
	}

	text := fmt.Sprintf("Restored checkpoint %s of %s\n", result.ID, result.Form)
	text += fmt.Sprintf("Empty fields: %d\n", result.Unanswered)
	text += fmt.Sprintf("Documents: %d\n", result.Documents)
	if !result.TemplateSet {
		text += "\n⚠️  WARNING: the form template was not found in the working directory; load it again before form_fill.\n"
	}
	text += "\n" + formatMessages(result.Messages)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.session.ServerInfo(ctx)
	if err != nil {
		return s.toolError(descriptions.ToolServerInfo, err), nil
	}
	return mcp.NewToolResultText(formatServerInfoResult(result)), nil
}

// toolError logs a failed call and reports it to the client
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.log.Warn("tool call failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

// stringList accepts a JSON array of strings or a comma separated string
func stringList(v any) ([]string, error) {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("paths must be strings, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case nil:
		return nil, errors.New(`required argument "paths" not found`)
	default:
		return nil, fmt.Errorf("paths must be an array of strings, got %T", v)
	}
	if len(out) == 0 {
		return nil, errors.New("paths cannot be empty")
	}
	return out, nil
}

// Formatting methods
func formatMessages(msgs []conversation.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == conversation.RoleAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func formatDocumentsLoadResult(result *session.DocumentsLoadResult) string {
	text := fmt.Sprintf("Loaded %d document(s)", len(result.Documents))
	if result.Failed > 0 {
		text += fmt.Sprintf(", %d failed", result.Failed)
	}
	text += "\n"
	for i, d := range result.Documents {
		if d.Error != "" {
			text += fmt.Sprintf("%d. %s: ERROR %s\n", i+1, d.Source, d.Error)
			continue
		}
		text += fmt.Sprintf("%d. %s (%s, %d characters)\n   ID: %s\n", i+1, d.Source, d.Type, d.Chars, d.ID)
	}

	if result.Prefill != nil {
		text += fmt.Sprintf("\nPrefill: %d processed, %d filled, %d failed\n",
			result.Prefill.Processed, result.Prefill.Filled, result.Prefill.Failed)
		text += fmt.Sprintf("Empty fields left: %d\n", result.Unanswered)
	}
	text += "\n" + formatMessages(result.Messages)
	return text
}

func formatStatusResult(result *session.StatusResult) string {
	text := "Form Pilot Session Status\n"
	text += fmt.Sprintf("State: %s\n", result.State)
	if result.FormPath != "" {
		text += fmt.Sprintf("Form: %s\n", result.FormPath)
	}
	if result.Draft == nil {
		text += "No form loaded.\n"
	} else {
		text += fmt.Sprintf("Fields: %d (%d empty, %d with errors)\n\n", result.Fields, result.Unanswered, result.Failed)
		text += result.Draft.Summary()
	}

	text += fmt.Sprintf("\nDocuments: %d\n", len(result.Documents))
	for i, d := range result.Documents {
		if d.Error != "" {
			text += fmt.Sprintf("%d. %s: ERROR %s\n", i+1, d.Source, d.Error)
			continue
		}
		text += fmt.Sprintf("%d. %s (%s)\n", i+1, d.ID, d.Type)
	}
	if len(result.Evidence) > 0 {
		text += fmt.Sprintf("In prompt context: %s\n", strings.Join(result.Evidence, ", "))
	}
	text += fmt.Sprintf("Conversation turns: %d\n", result.Turns)
	return text
}

func formatServerInfoResult(result *session.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Working Directory: %s\n", result.WorkDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🤖 Language Model: %s (%s)\n", result.Provider, strings.Join(result.Models, ", "))
	text += fmt.Sprintf("📚 Context Budget: %d characters, policy %s\n", result.ContextMaxChars, result.ContextPolicy)
	text += fmt.Sprintf("💾 Checkpoints: %t\n\n", result.Checkpoints)

	if len(result.Files) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d files found):\n", len(result.Files))
		for i, file := range result.Files {
			if i >= 20 {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.Files)-20)
				break
			}
			text += fmt.Sprintf("   %d. %s [%s] (%d bytes)\n", i+1, file.Path, file.Kind, file.Size)
		}
		if result.FilesTruncated {
			text += "   (listing truncated)\n"
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No forms or documents found\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	if len(result.SupportedFormats) > 0 {
		text += "\n📄 Supported Document Formats: " + strings.Join(result.SupportedFormats, ", ") + "\n"
	}

	text += "\n" + result.UsageGuidance
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("server not started: %w", err)
	}
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server over stdin and stdout
func (s *Server) runStdioMode(_ context.Context) error {
	s.log.Info("starting form pilot MCP server", "mode", config.ModeStdio, "dir", s.config.WorkDirectory)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the SSE transport until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	sse := server.NewSSEServer(s.mcpServer)
	addr := s.config.Address()
	s.log.Info("starting form pilot MCP server", "mode", config.ModeServer, "addr", addr,
		"dir", s.config.WorkDirectory)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve sse: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutting down MCP server", "addr", addr)
		if err := sse.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("failed to shut down sse server: %w", err)
		}
		return nil
	}
}
