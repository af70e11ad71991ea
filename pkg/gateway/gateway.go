// Package gateway is the single entry point the pipeline uses to talk to a
// text-generation model: one system prompt and one user prompt in, text out.
package gateway

import (
	"context"

	"roadmapbp/pkg/llm"
)

// Completer is the call shape every pipeline stage depends on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Gateway adapts an llm.LLMClient (with its middleware chain) to Completer.
type Gateway struct {
	client      llm.LLMClient
	maxTokens   int
	temperature float32
}

// New wraps client. Non-positive maxTokens and negative temperature fall back
// to the llm package defaults. A temperature of 0 is sent as is.
func New(client llm.LLMClient, maxTokens int, temperature float32) *Gateway {
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	if temperature < 0 {
		temperature = llm.TemperatureDefault
	}
	return &Gateway{
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Complete sends one request and returns the generated text. Provider errors
// are returned unmodified; they are *llmerrors.Error values.
func (g *Gateway) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]llm.CompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(systemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(userPrompt))

	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err //nolint:wrapcheck // classified provider errors pass through
	}
	return resp.Content, nil
}

// ModelName returns the model behind the gateway.
func (g *Gateway) ModelName() string {
	return g.client.GetModelName()
}
