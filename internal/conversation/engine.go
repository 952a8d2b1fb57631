package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/llm"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

const (
	questionTemperature = 0.2
	chatTemperature     = 0.7
	maxQuestionLen      = 300
	chatHistoryLimit    = 20
)

var questionTmpl = template.Must(template.New("question").Parse(`As context, take into account all the fields in the form:
<form>
{{.Form}}
</form>

The field that the user needs to answer is:
<field>
<label>{{.Field.Label}}</label>
<description>{{.Field.Description}}</description>
<type>{{.Field.Type}}</type>
{{- if .Field.Format}}
<format>{{.Field.Format}}</format>
{{- end}}
</field>

Ask one polite and clear question that will help the user answer the field.
Reply with the question only, on a single line.`))

const questionSystem = `You are a helpful assistant that wants to help the user answer a field in a form.
You will be given information about the form field and your goal is to come up with a question that will solicit the information needed to answer the field.`

// Options tunes an Engine
type Options struct {
	Now func() time.Time
}

// Engine runs conversational turns against a draft
type Engine struct {
	questions llm.Client
	chat      llm.Client
	now       func() time.Time
	log       *logger.Logger
}

// NewEngine creates an Engine. questions generates survey questions for text
// fields and chat answers free-form messages.
func NewEngine(questions, chat llm.Client, opts Options, log *logger.Logger) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{questions: questions, chat: chat, now: opts.Now, log: log}
}

// Turn handles one user message and returns the messages to append to the
// log, starting with the user message itself. When the previous assistant
// turn was a survey question the message answers the first unanswered text
// field, or the choice field the survey last asked about.
func (e *Engine) Turn(ctx context.Context, history []Message, draft *form.Draft, userMessage string) []Message {
	out := []Message{{Role: RoleUser, Content: userMessage}}

	if draft != nil && awaitingAnswer(history) {
		if f := answerTarget(draft); f != nil {
			if err := applyAnswer(f, userMessage); err != nil {
				e.log.Debug("survey answer rejected", "field", f.Label, "error", err)
				reask := fmt.Sprintf("Sorry, I could not use that answer for %q: %v.", f.Label, err)
				out = append(out, Message{Role: RoleAssistant, Content: reask})
				return append(out, e.Survey(ctx, draft))
			}
			e.log.Info("field answered by user", "field", f.Label, "left", draft.UnansweredCount())
			return append(out, e.Survey(ctx, draft))
		}
	}

	reply := e.reply(ctx, append(history[:len(history):len(history)], out[0]), draft)
	return append(out, Message{Role: RoleAssistant, Content: reply})
}

// answerTarget picks the field a survey answer binds to. A surveyed field
// that is still empty and not free text takes the answer as an option
// choice; otherwise the answer goes to the first unanswered text field.
func answerTarget(draft *form.Draft) *form.Field {
	var surveyed *form.Field
	for _, f := range draft.Unanswered() {
		if f.LastSurveyed.IsZero() {
			continue
		}
		if surveyed == nil || f.LastSurveyed.After(surveyed.LastSurveyed.Time) {
			surveyed = f
		}
	}
	if surveyed != nil && surveyed.Type != form.FieldTypeText {
		return surveyed
	}
	if f := draft.FirstUnansweredOfType(form.FieldTypeText); f != nil {
		return f
	}
	return draft.FirstUnanswered()
}

// Survey returns the question for the first unanswered field, or the
// completion notice when none is left. The surveyed field is stamped.
func (e *Engine) Survey(ctx context.Context, draft *form.Draft) Message {
	f := draft.FirstUnanswered()
	if f == nil {
		return Message{Role: RoleAssistant, Content: CompletionNotice}
	}

	var question string
	if f.Type == form.FieldTypeText {
		question = e.textQuestion(ctx, draft, f)
	} else {
		question = cannedQuestion(f)
	}
	f.LastSurveyed = form.Timestamp{Time: e.now().Truncate(time.Second)}

	return Message{Role: RoleAssistant, Content: SurveyMessage(draft.UnansweredCount(), question)}
}

// FormLoaded reports the state of a freshly loaded form and invites the user
// to supply documents
func (e *Engine) FormLoaded(draft *form.Draft) []Message {
	empty := draft.UnansweredCount()
	summary := fmt.Sprintf("The form %s has %d fields and %d of them are empty.",
		draft.FormFileName, len(draft.Fields), empty)
	if empty == 0 {
		summary = fmt.Sprintf("The form %s has %d fields and all of them already hold a value.",
			draft.FormFileName, len(draft.Fields))
	}
	return []Message{
		{Role: RoleAssistant, Content: summary},
		{Role: RoleAssistant, Content: documentsInvite},
	}
}

func (e *Engine) textQuestion(ctx context.Context, draft *form.Draft, f *form.Field) string {
	fallback := cannedQuestion(f)
	if e.questions == nil {
		return fallback
	}

	schema, err := json.MarshalIndent(draft.Fields, "", "  ")
	if err != nil {
		return fallback
	}
	var prompt strings.Builder
	if err := questionTmpl.Execute(&prompt, struct {
		Form  string
		Field *form.Field
	}{string(schema), f}); err != nil {
		return fallback
	}

	req := llm.UserPrompt(questionSystem, prompt.String())
	req.Temperature = questionTemperature
	out, err := e.questions.Complete(ctx, req)
	if err != nil {
		e.log.Warn("question generation failed", "field", f.Label, "error", err)
		return fallback
	}

	q := strings.Join(strings.Fields(llm.Clean(out)), " ")
	if q == "" || len(q) > maxQuestionLen || !strings.HasSuffix(q, "?") {
		e.log.Debug("generated question rejected", "field", f.Label, "question", q)
		return fallback
	}
	return q
}

// reply answers a free-form message with the chat model
func (e *Engine) reply(ctx context.Context, history []Message, draft *form.Draft) string {
	if e.chat == nil {
		return chatFallback
	}

	system := SystemPrompt + "\n\n"
	if draft == nil {
		system += "No form has been loaded yet."
	} else {
		system += "Current state of the form:\n" + draft.Summary()
	}

	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}
	req := llm.Request{Temperature: chatTemperature}
	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			system += "\n\n" + m.Content
		case RoleAssistant:
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case RoleTool:
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: "Tool output:\n" + m.Content})
		default:
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: m.Content})
		}
	}
	req.System = system

	out, err := e.chat.Complete(ctx, req)
	if err != nil {
		e.log.Warn("chat reply failed", "error", err)
		return chatFallback
	}
	out = llm.Clean(out)
	if out == "" {
		return chatFallback
	}
	return out
}
