package metrics

import (
	"context"
	"time"

	"roadmapbp/pkg/config"
	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/llmerrors"
	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/tokens"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor returns the token usage of one request.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers provider-reported usage and falls back to
// tiktoken counts when the provider reported none.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.InputTokens > 0 || resp.OutputTokens > 0 {
		return resp.InputTokens, resp.OutputTokens
	}

	var promptText string
	for i := range req.Messages {
		promptText += req.Messages[i].Content + "\n"
	}
	return tokens.Count(promptText), tokens.Count(resp.Content)
}

// Middleware records latency, token usage, cost and error type per model and stage.
// The stage label comes from llm.WithStage on the request context.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()
				stage := llm.StageFrom(ctx)

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				var cost float64
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
					cost = config.CalculateCost(model, promptTokens, completionTokens)
				} else {
					errorType = llmerrors.TypeOf(err).String()
				}

				recorder.ObserveRequest(model, stage, promptTokens, completionTokens, cost, err == nil, errorType, duration)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Event(logx.LevelDebug, "llm request", logx.Fields{
						"model":       model,
						"stage":       stage,
						"tokens_in":   promptTokens,
						"tokens_out":  completionTokens,
						"status":      status,
						"duration_ms": duration.Milliseconds(),
					})
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
