// Package anthropic provides the Anthropic Claude implementation of llm.LLMClient.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/llmerrors"
)

const providerName = "anthropic"

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a raw client; middleware is applied by the gateway.
// SDK-level retries are disabled so that one gateway call is one HTTP request.
func NewClaudeClient(apiKey, model string, opts ...option.RequestOption) *ClaudeClient {
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	return &ClaudeClient{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  anthropic.Model(model),
	}
}

// buildMessages extracts the system prompt and merges consecutive same-role
// messages, since the Messages API requires strict user/assistant alternation
// starting and ending with a user turn.
func buildMessages(messages []llm.CompletionMessage) (string, []anthropic.MessageParam, error) {
	system, rest := llm.SplitSystem(messages)
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	type turn struct {
		role  llm.CompletionRole
		parts []string
	}
	var turns []turn
	for i := range rest {
		msg := &rest[i]
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
			return "", nil, fmt.Errorf("invalid role %s at index %d", msg.Role, i)
		}
		if n := len(turns); n > 0 && turns[n-1].role == msg.Role {
			turns[n-1].parts = append(turns[n-1].parts, msg.Content)
			continue
		}
		turns = append(turns, turn{role: msg.Role, parts: []string{msg.Content}})
	}
	if turns[0].role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", turns[0].role)
	}
	if last := turns[len(turns)-1].role; last != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", last)
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == llm.RoleUser {
			out = append(out, anthropic.NewUserMessage(block))
		} else {
			out = append(out, anthropic.NewAssistantMessage(block))
		}
	}
	return system, out, nil
}

// Complete sends one Messages API request.
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	system, messages, err := buildMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from Claude API")
	}

	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].AsText().Text)
		}
	}
	if text.Len() == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "Claude API response carried no text blocks")
	}

	return llm.CompletionResponse{
		Content:      text.String(),
		StopReason:   string(resp.StopReason),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// GetModelName returns the configured model.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

func classifyError(err error) *llmerrors.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
