package session

import (
	"context"
	"fmt"

	"github.com/a3tai/mcp-form-pilot/internal/descriptions"
	"github.com/a3tai/mcp-form-pilot/internal/document"
	"github.com/a3tai/mcp-form-pilot/internal/evidence"
)

// ServerInfo reports configuration, tools and the candidate files of the
// working directory. A scan cut short by cancellation still returns what it
// found.
func (s *Service) ServerInfo(ctx context.Context) (*ServerInfoResult, error) {
	root := s.c.Guard.Root()
	scan, err := s.scanner.Scan(ctx, root)
	if err != nil {
		s.log.Warn("directory scan interrupted", "dir", root, "error", err)
		scan.Truncated = true
	}

	policy := s.c.Budget.Policy
	if policy == "" {
		policy = evidence.PolicyWarn
	}
	maxChars := s.c.Budget.MaxChars
	if maxChars <= 0 {
		maxChars = evidence.DefaultMaxChars
	}

	return &ServerInfoResult{
		ServerName:       s.c.Info.ServerName,
		Version:          s.c.Info.Version,
		WorkDirectory:    root,
		MaxFileSize:      s.c.Info.MaxFileSize,
		Provider:         s.c.Info.Provider,
		Models:           s.c.Info.Models,
		ContextPolicy:    string(policy),
		ContextMaxChars:  maxChars,
		Checkpoints:      s.c.Checkpoints != nil,
		Files:            scan.Files,
		FilesTruncated:   scan.Truncated,
		AvailableTools:   availableTools(),
		SupportedFormats: document.SupportedExtensions(),
		UsageGuidance:    s.usageGuidance(),
	}, nil
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        descriptions.ToolFormLoad,
			Description: descriptions.GetToolDescription(descriptions.ToolFormLoad),
			Usage:       "Use this tool first to load the fillable PDF form.",
			Parameters:  "path (required): Path to the PDF form, relative to the working directory or absolute inside it",
		},
		{
			Name:        descriptions.ToolDocumentsLoad,
			Description: descriptions.GetToolDescription(descriptions.ToolDocumentsLoad),
			Usage:       "Use this tool to add supporting documents and prefill empty fields from them.",
			Parameters:  "paths (required): Array of document paths (.pdf, .docx, .txt, .text, .md)",
		},
		{
			Name:        descriptions.ToolFormPrefill,
			Description: descriptions.GetToolDescription(descriptions.ToolFormPrefill),
			Usage:       "Use this tool to retry inference for fields that are still empty.",
			Parameters:  "No parameters required",
		},
		{
			Name:        descriptions.ToolFormChat,
			Description: descriptions.GetToolDescription(descriptions.ToolFormChat),
			Usage:       "Use this tool to answer survey questions or to talk to the assistant.",
			Parameters:  "message (required): The user message",
		},
		{
			Name:        descriptions.ToolFormStatus,
			Description: descriptions.GetToolDescription(descriptions.ToolFormStatus),
			Usage:       "Use this tool to review the draft and the loaded documents.",
			Parameters:  "No parameters required",
		},
		{
			Name:        descriptions.ToolFormFill,
			Description: descriptions.GetToolDescription(descriptions.ToolFormFill),
			Usage:       "Use this tool to write the filled PDF.",
			Parameters:  "output (optional): Output path, defaults to <form>_filled.pdf next to the form",
		},
		{
			Name:        descriptions.ToolFormCheckpoint,
			Description: descriptions.GetToolDescription(descriptions.ToolFormCheckpoint),
			Usage:       "Use this tool to save the session.",
			Parameters:  "No parameters required",
		},
		{
			Name:        descriptions.ToolFormRestore,
			Description: descriptions.GetToolDescription(descriptions.ToolFormRestore),
			Usage:       "Use this tool to resume a saved session.",
			Parameters:  "id (optional): Checkpoint id, form (optional): Form file name for the latest checkpoint",
		},
		{
			Name:        descriptions.ToolServerInfo,
			Description: descriptions.GetToolDescription(descriptions.ToolServerInfo),
			Usage:       "Use this tool to get server information and the files available to load.",
			Parameters:  "No parameters required",
		},
	}
}

func (s *Service) usageGuidance() string {
	maxFileSizeMB := s.c.Info.MaxFileSize / (1024 * 1024)

	return fmt.Sprintf(`Form Pilot Usage Guide:

1. LOAD THE FORM:
   - Use 'form_server_info' to see the forms and documents in the working directory
   - Use 'form_load' with the path of a fillable PDF form

2. PREFILL FROM DOCUMENTS:
   - Use 'documents_load' with letters, statements or notes that contain answers
   - Every prefilled field records the document it came from
   - Use 'form_prefill' to retry fields that failed

3. ANSWER THE REMAINING FIELDS:
   - Assistant messages starting with "[N fields left]" are questions about one field
   - Reply with 'form_chat'; choice fields accept option names, comma-separated lists or "none"

4. WRITE THE RESULT:
   - Use 'form_status' to review values and provenance
   - Use 'form_fill' to write <form>_filled.pdf or a path of your choice

5. SAVE AND RESUME:
   - Use 'form_checkpoint' to save the draft, documents and conversation
   - Use 'form_restore' to resume later

IMPORTANT NOTES:
- Every path must be inside the working directory
- The server can handle files up to %dMB
- Scanned PDFs without a text layer yield no evidence; OCR is not performed
- Directory listings are cached for 5 minutes and limited to 100 files`, maxFileSizeMB)
}
