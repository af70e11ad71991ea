// Package timeout provides timeout middleware for LLM clients.
package timeout

import (
	"context"
	"time"

	"roadmapbp/pkg/llm"
)

// Middleware gives each request its own deadline. A non-positive duration
// disables the middleware.
func Middleware(duration time.Duration) llm.Middleware {
	if duration <= 0 {
		return nil
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()

				return next.Complete(timeoutCtx, req)
			},
			next.GetModelName,
		)
	}
}
