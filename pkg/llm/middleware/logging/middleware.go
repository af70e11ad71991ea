// Package logging provides logging middleware for LLM clients.
package logging

import (
	"context"
	"time"

	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/llmerrors"
	"roadmapbp/pkg/logx"
)

// promptPreviewChars bounds how much of a prompt lands in the log on failure.
const promptPreviewChars = 400

// Middleware logs entry and exit of every call with request and response
// sizes. Prompts are never logged in full; on empty responses a sanitized
// preview is logged at error level.
func Middleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("gateway")
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				stage := llm.StageFrom(ctx)
				inBytes := 0
				for i := range req.Messages {
					inBytes += len(req.Messages[i].Content)
				}

				logger.Event(logx.LevelInfo, "stage call", logx.Fields{
					"stage":    stage,
					"event":    "enter",
					"model":    next.GetModelName(),
					"in_bytes": inBytes,
				})

				start := time.Now()
				resp, err := next.Complete(ctx, req)

				fields := logx.Fields{
					"stage":       stage,
					"event":       "exit",
					"in_bytes":    inBytes,
					"out_bytes":   len(resp.Content),
					"duration_ms": time.Since(start).Milliseconds(),
				}
				if err != nil {
					fields["error_type"] = llmerrors.TypeOf(err).String()
					logger.Event(logx.LevelWarn, "stage call failed", fields)
					if llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						logEmptyResponse(logger, req)
					}
				} else {
					logger.Event(logx.LevelInfo, "stage call", fields)
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

func logEmptyResponse(logger *logx.Logger, req llm.CompletionRequest) {
	logger.Error("empty response from model; %d message(s) sent", len(req.Messages))
	for i := range req.Messages {
		msg := &req.Messages[i]
		logger.Error("  [%d] %s: %s", i, msg.Role, llmerrors.SanitizePrompt(msg.Content, promptPreviewChars))
	}
}
