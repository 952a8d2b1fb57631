package session

import (
	"time"

	"github.com/a3tai/mcp-form-pilot/internal/conversation"
	"github.com/a3tai/mcp-form-pilot/internal/document"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/inference"
)

// FileInfo describes a file found in the working directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Kind         string `json:"kind"` // "form" or a document type
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// DocumentInfo summarizes a loaded document
type DocumentInfo struct {
	ID     string        `json:"id"`
	Type   document.Type `json:"type"`
	Source string        `json:"source"`
	Chars  int           `json:"chars"`
	Error  string        `json:"error,omitempty"`
}

func documentInfo(d document.Document) DocumentInfo {
	info := DocumentInfo{ID: d.ID, Type: d.Type, Source: d.Source}
	if d.IsError() {
		info.Error = d.Content
		return info
	}
	info.Chars = len([]rune(d.Content))
	return info
}

// Request Types

// FormLoadRequest loads the form to fill
type FormLoadRequest struct {
	Path string `json:"path"`
}

// DocumentsLoadRequest loads supporting documents
type DocumentsLoadRequest struct {
	Paths []string `json:"paths"`
}

// ChatRequest carries one user message
type ChatRequest struct {
	Message string `json:"message"`
}

// FillRequest writes the filled form. An empty Output writes next to the
// form as <name>_filled.pdf.
type FillRequest struct {
	Output string `json:"output"`
}

// RestoreRequest selects a checkpoint by ID, or the latest one for Form
type RestoreRequest struct {
	ID   string `json:"id"`
	Form string `json:"form"`
}

// Response Types

// FormLoadResult is the outcome of loading a form
type FormLoadResult struct {
	Path       string                 `json:"path"`
	Fields     int                    `json:"fields"`
	Unanswered int                    `json:"unanswered"`
	Draft      *form.Draft            `json:"draft"`
	Messages   []conversation.Message `json:"messages"`
}

// DocumentsLoadResult is the outcome of loading documents and prefilling
type DocumentsLoadResult struct {
	Documents  []DocumentInfo         `json:"documents"`
	Failed     int                    `json:"failed"`
	Prefill    *inference.Report      `json:"prefill,omitempty"`
	Unanswered int                    `json:"unanswered"`
	Messages   []conversation.Message `json:"messages"`
}

// PrefillResult is the outcome of an explicit prefill run
type PrefillResult struct {
	Report     inference.Report       `json:"report"`
	Unanswered int                    `json:"unanswered"`
	Messages   []conversation.Message `json:"messages"`
}

// ChatResult holds the messages appended by a chat turn
type ChatResult struct {
	Messages   []conversation.Message `json:"messages"`
	State      conversation.State     `json:"state"`
	Unanswered int                    `json:"unanswered"`
}

// FillResult is the outcome of writing the filled form
type FillResult struct {
	Output   string   `json:"output"`
	Size     int      `json:"size"`
	Answered int      `json:"answered"`
	Missing  []string `json:"missing,omitempty"`
}

// CheckpointResult identifies a saved checkpoint
type CheckpointResult struct {
	ID         string    `json:"id"`
	Form       string    `json:"form"`
	Unanswered int       `json:"unanswered"`
	CreatedAt  time.Time `json:"created_at"`
}

// RestoreResult describes the restored session
type RestoreResult struct {
	ID          string                 `json:"id"`
	Form        string                 `json:"form"`
	Unanswered  int                    `json:"unanswered"`
	Documents   int                    `json:"documents"`
	TemplateSet bool                   `json:"template_set"`
	Messages    []conversation.Message `json:"messages"`
}

// StatusResult is a snapshot of the session
type StatusResult struct {
	FormPath   string             `json:"form_path,omitempty"`
	State      conversation.State `json:"state"`
	Fields     int                `json:"fields"`
	Unanswered int                `json:"unanswered"`
	Failed     int                `json:"failed"`
	Documents  []DocumentInfo     `json:"documents"`
	Evidence   []string           `json:"evidence"` // document IDs the prompts quote
	Turns      int                `json:"turns"`
	Draft      *form.Draft        `json:"draft,omitempty"`
}

// ToolInfo describes an available MCP tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName       string     `json:"server_name"`
	Version          string     `json:"version"`
	WorkDirectory    string     `json:"work_directory"`
	MaxFileSize      int64      `json:"max_file_size"`
	Provider         string     `json:"provider"`
	Models           []string   `json:"models"`
	ContextPolicy    string     `json:"context_policy"`
	ContextMaxChars  int        `json:"context_max_chars"`
	Checkpoints      bool       `json:"checkpoints"`
	Files            []FileInfo `json:"files"`
	FilesTruncated   bool       `json:"files_truncated"`
	AvailableTools   []ToolInfo `json:"available_tools"`
	SupportedFormats []string   `json:"supported_formats"`
	UsageGuidance    string     `json:"usage_guidance"`
}
