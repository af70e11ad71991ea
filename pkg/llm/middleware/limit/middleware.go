// Package limit caps the number of in-flight LLM requests.
package limit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/llm/middleware/metrics"
)

// Middleware allows at most n concurrent calls through the wrapped client.
// Waiting honors ctx; time spent waiting is reported to recorder.
// A non-positive n disables the middleware.
func Middleware(n int, recorder metrics.Recorder) llm.Middleware {
	if n <= 0 {
		return nil
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	sem := semaphore.NewWeighted(int64(n))

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				if err := sem.Acquire(ctx, 1); err != nil {
					return llm.CompletionResponse{}, err //nolint:wrapcheck // ctx error passed through
				}
				defer sem.Release(1)
				recorder.ObserveQueueWait(next.GetModelName(), time.Since(start))

				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}
