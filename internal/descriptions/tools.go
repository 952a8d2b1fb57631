package descriptions

import "sort"

// Tool names exposed by the MCP server
const (
	ToolFormLoad       = "form_load"
	ToolDocumentsLoad  = "documents_load"
	ToolFormPrefill    = "form_prefill"
	ToolFormChat       = "form_chat"
	ToolFormStatus     = "form_status"
	ToolFormFill       = "form_fill"
	ToolFormCheckpoint = "form_checkpoint"
	ToolFormRestore    = "form_restore"
	ToolServerInfo     = "form_server_info"
)

// Tool descriptions with practical examples and use cases

const (
	// Session Tools
	FormLoadDescription = `Load a fillable PDF form and start a new form-filling session.

**When to use:** At the start of every session, before loading documents or chatting about fields.

**Why it's useful:** Reads the AcroForm field tree into a draft with one entry per field. Checkbox families are grouped, radio groups become dropdowns, and existing values are kept.

**Examples:**
• Start a session: "Load tax-return-2024.pdf so we can fill it in"
• Switch forms: "Load rental-application.pdf instead" (discards the previous draft)

**Common workflows:**
1. Full pipeline: form_load → documents_load → form_chat until complete → form_fill
2. Manual only: form_load → form_chat answering every question → form_fill

**Best practices:** Paths are resolved inside the working directory. Forms without AcroForm fields are rejected.`

	DocumentsLoadDescription = `Load supporting documents and prefill the loaded form from them.

**When to use:** After form_load, whenever you have letters, IDs, statements or notes that contain answers.

**Why it's useful:** Extracts text from PDF, DOCX and plain-text files, then asks the language model to fill each empty field with a value grounded in one document. Every filled field records the document it came from.

**Examples:**
• Prefill from a letter: "Load letter.txt and passport.pdf"
• Add more evidence later: "Load bank-statement.docx" (only still-empty fields are inferred)

**Common workflows:**
1. Evidence first: form_load → documents_load → form_status to review provenance
2. Incremental: documents_load → form_chat → documents_load with new material

**Best practices:** A failing file never blocks the others; it is reported with its error. Under the strict context policy an oversized document set is rejected before any model call.`

	FormPrefillDescription = `Run field inference again over the documents already loaded.

**When to use:** After a model or network failure left fields with errors, or after answering questions that change what the documents imply.

**Why it's useful:** Retries only the fields that are still empty, leaving answered fields untouched.

**Examples:**
• Retry failures: "Prefill again, the model timed out on three fields"

**Best practices:** Check form_status first; fields with an error message are the ones worth retrying.`

	FormChatDescription = `Send a message to the form assistant and receive its reply.

**When to use:** To answer survey questions about empty fields or to ask the assistant for guidance.

**Why it's useful:** When the assistant has just asked about a field (messages start with "[N fields left]"), your message becomes that field's answer. Choice fields accept option names or captions, comma-separated for multiple choices, or "none".

**Examples:**
• Answer a question: "[2 fields left] What is your name?" → "Jane Doe"
• Pick options: "Which of these apply to Pets: Dog, Cat?" → "dog, cat"
• Ask for help: "What should I do next?"

**Best practices:** Unmatched answers leave the field empty and the question is asked again.`

	FormStatusDescription = `Show the current draft, loaded documents and conversation state.

**When to use:** To review which fields are filled, where each value came from, and which fields failed.

**Why it's useful:** Lists every field with its value, provenance document and last error, plus the number of fields still empty.

**Best practices:** Use before form_fill to confirm the values that will be written.`

	FormFillDescription = `Write the draft values into a copy of the original PDF form.

**When to use:** When the draft is complete, or whenever you want a partially filled copy.

**Why it's useful:** Produces a PDF with the same fields as the template. Only answered fields are written; empty fields keep the template content.

**Examples:**
• Default output: "Fill the form" (writes <form>_filled.pdf next to the original)
• Named output: "Fill the form into out/application-done.pdf"

**Best practices:** Fields that cannot be found in the template are listed in the result; the rest are still written.`

	FormCheckpointDescription = `Save a checkpoint of the draft, documents and conversation.

**When to use:** Before stopping work on a long form, or before experimenting with answers.

**Why it's useful:** Checkpoints survive server restarts and can be restored with form_restore.`

	FormRestoreDescription = `Restore a saved checkpoint into the current session.

**When to use:** To resume a form after a restart or to roll back to an earlier state.

**Why it's useful:** Brings back the draft, the loaded documents and the conversation. Without an id the latest checkpoint is used, optionally restricted to one form.

**Examples:**
• Resume: "Restore the latest checkpoint for application.pdf"
• Roll back: "Restore checkpoint 3f2a…"`

	// Utility Tools
	ServerInfoDescription = `Get server status, model configuration, available tools and the forms and documents in the working directory.

**When to use:** Starting a session, troubleshooting, or looking for the file names to load.

**Why it's useful:** Shows the configured language model, the context budget and policy, and a cached listing of candidate files.

**Best practices:** Run at the start of a session; the directory listing is cached for five minutes.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	ToolFormLoad:       FormLoadDescription,
	ToolDocumentsLoad:  DocumentsLoadDescription,
	ToolFormPrefill:    FormPrefillDescription,
	ToolFormChat:       FormChatDescription,
	ToolFormStatus:     FormStatusDescription,
	ToolFormFill:       FormFillDescription,
	ToolFormCheckpoint: FormCheckpointDescription,
	ToolFormRestore:    FormRestoreDescription,
	ToolServerInfo:     ServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns every tool name, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
