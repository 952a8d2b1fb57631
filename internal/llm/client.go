// Package llm is the provider-neutral language model handle used by the
// inference and conversation engines.
package llm

import "context"

// Role is the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion request
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object response
}

// UserPrompt builds a request holding a single user message
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Client completes chat requests. Output is untrusted text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Close() error
}

// ClientFunc adapts a function to the Client interface
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func (f ClientFunc) Name() string { return "func" }
func (f ClientFunc) Close() error { return nil }
