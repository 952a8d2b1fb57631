package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pilot/internal/config"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello  ", "hello"},
		{"think block", "<think>\nreasoning\n</think>\n\nWhat is your name?", "What is your name?"},
		{"unterminated think", "Answer<think>half", "Answer"},
		{"json fence", "```json\n{\"value\": \"x\"}\n```", `{"value": "x"}`},
		{"bare fence", "```\n{}\n```", "{}"},
		{"think then fence", "<think>x</think>```json\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mw := func(tag string) Middleware {
		return func(next Client) Client {
			return &wrapped{next: next, complete: func(ctx context.Context, req Request) (string, error) {
				order = append(order, tag)
				return next.Complete(ctx, req)
			}}
		}
	}
	inner := ClientFunc(func(context.Context, Request) (string, error) {
		order = append(order, "inner")
		return "ok", nil
	})

	c := Wrap(inner, mw("A"), mw("B"))
	out, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"A", "B", "inner"}, order)
	assert.Equal(t, "func", c.Name())
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := ClientFunc(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := Wrap(slow, Timeout(10*time.Millisecond)).Complete(context.Background(), Request{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRateLimitHonoursContext(t *testing.T) {
	calls := 0
	inner := ClientFunc(func(context.Context, Request) (string, error) {
		calls++
		return "", nil
	})
	c := Wrap(inner, RateLimit(0.001, 1))

	_, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, Request{})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCleanedMiddleware(t *testing.T) {
	inner := ClientFunc(func(context.Context, Request) (string, error) {
		return "<think>hmm</think>```json\n{}\n```", nil
	})
	out, err := Wrap(inner, Cleaned()).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestOllamaClient(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"value":"Jane Doe"}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "gemma3:4b", srv.Client())
	out, err := c.Complete(context.Background(), Request{
		System:      "sys",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.2,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"value":"Jane Doe"}`, out)

	assert.Equal(t, "gemma3:4b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "ollama:gemma3:4b", c.Name())
}

func TestOllamaClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "missing", srv.Client()).Complete(context.Background(), UserPrompt("", "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestOpenAIClient(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"gpt-4o-mini",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"What is your name?"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL+"/", "gpt-4o-mini", option.WithMaxRetries(0))
	out, err := c.Complete(context.Background(), Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "ask"}, {Role: RoleAssistant, Content: "ok"}},
		JSON:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "What is your name?", out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{Provider: "nope"}, config.RoleChat, nil)
	assert.Error(t, err)
}

func TestNewUsesRoleModel(t *testing.T) {
	cfg := config.LLMConfig{Provider: config.ProviderOllama, Model: "base", QuestionsModel: "asker"}
	c, err := New(context.Background(), cfg, config.RoleQuestions, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama:asker", c.Name())

	c, err = New(context.Background(), cfg, config.RolePrefill, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama:base", c.Name())
}
