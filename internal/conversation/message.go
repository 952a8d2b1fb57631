// Package conversation drives the survey dialogue that completes a draft
// after prefill.
package conversation

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/a3tai/mcp-form-pilot/internal/form"
)

// Role is the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry of the append-only conversation log
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the position of the dialogue
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingAnswer    State = "awaiting_answer"
	StateAllFieldsAnswered State = "all_fields_answered"
)

const (
	DefaultGreeting = "Hello! 👋 I'm Form Pilot, your form assistant. How can I help you today? " +
		"Are you ready to fill out a form, or would you like some guidance on how to proceed?"

	SystemPrompt = `You are a friendly and helpful assistant whose goal is to help a user fill out a form.
If the user is not familiar with the workflow, you will guide them through the process.
If the user is familiar with the workflow, you will assist the user in responding to the empty fields in the form.

The workflow is as follows:
1. User loads the form that needs to be completed
2. User loads any supporting documents relevant to the form
3. You will assist the user in filling out any remaining empty fields in the form`

	CompletionNotice = "All fields of the form are answered. You can now write the filled PDF."

	documentsInvite = "Do you have any supporting documents related to the form?\n" +
		"If so, now would be a good time to load them. I'll do my best to prefill the form " +
		"with the information from the supporting documents."

	chatFallback = "Sorry, I could not come up with a reply right now. Please try again."
)

var reSurvey = regexp.MustCompile(`^\[(\d+) fields left\] (?s:.*)\?$`)

// SurveyMessage formats a survey question with its unanswered count marker.
// The marker wording is fixed, including for a single field.
func SurveyMessage(left int, question string) string {
	return fmt.Sprintf("[%d fields left] %s", left, question)
}

// ParseSurvey reports whether content is a survey question and the count it
// carries
func ParseSurvey(content string) (int, bool) {
	m := reSurvey.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// lastAssistant returns the most recent assistant message
func lastAssistant(history []Message) (Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i], true
		}
	}
	return Message{}, false
}

// awaitingAnswer reports whether the latest assistant turn is a survey question
func awaitingAnswer(history []Message) bool {
	m, ok := lastAssistant(history)
	if !ok {
		return false
	}
	_, ok = ParseSurvey(m.Content)
	return ok
}

// StateOf derives the dialogue state from the log and the draft
func StateOf(history []Message, draft *form.Draft) State {
	if draft != nil && len(draft.Fields) > 0 && draft.Complete() {
		return StateAllFieldsAnswered
	}
	if draft != nil && awaitingAnswer(history) {
		return StateAwaitingAnswer
	}
	return StateIdle
}
