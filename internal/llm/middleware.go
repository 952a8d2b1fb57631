package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// Middleware decorates a Client with a cross-cutting concern
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// wrapped forwards Name and Close to the inner client
type wrapped struct {
	next     Client
	complete func(ctx context.Context, req Request) (string, error)
}

func (w *wrapped) Complete(ctx context.Context, req Request) (string, error) {
	return w.complete(ctx, req)
}
func (w *wrapped) Name() string { return w.next.Name() }
func (w *wrapped) Close() error { return w.next.Close() }

// RateLimit waits for a token before every call. rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
			return next.Complete(ctx, req)
		}}
	}
}

// Timeout bounds every call. d <= 0 disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, req)
		}}
	}
}

// Cleaned strips reasoning blocks and code fences from every response
func Cleaned() Middleware {
	return func(next Client) Client {
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			out, err := next.Complete(ctx, req)
			if err != nil {
				return "", err
			}
			return Clean(out), nil
		}}
	}
}

// Logging records the duration and outcome of every call
func Logging(log *logger.Logger) Middleware {
	return func(next Client) Client {
		if log == nil {
			return next
		}
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			out, err := next.Complete(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				log.Warn("llm call failed", "client", next.Name(), "duration", elapsed, "error", err)
				return "", err
			}
			log.Debug("llm call", "client", next.Name(), "duration", elapsed,
				"messages", len(req.Messages), "response_chars", len(out))
			return out, nil
		}}
	}
}
