// Package openai provides the OpenAI implementation of llm.LLMClient over the Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"roadmapbp/pkg/config"
	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/llmerrors"
)

const providerName = "openai"

// Client wraps the official OpenAI SDK.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a raw client; middleware is applied by the gateway.
// SDK-level retries are disabled so that one gateway call is one HTTP request.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	return &Client{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// reasoningModel reports whether the model rejects sampling parameters.
func reasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

// flatten renders the non-system conversation as one input string. A single
// user message is passed through unchanged.
func flatten(messages []llm.CompletionMessage) string {
	if len(messages) == 1 && messages[0].Role == llm.RoleUser {
		return messages[0].Content
	}
	var b strings.Builder
	for i := range messages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if messages[i].Role == llm.RoleAssistant {
			b.WriteString("Assistant: ")
		}
		b.WriteString(messages[i].Content)
	}
	return b.String()
}

func (c *Client) buildParams(in llm.CompletionRequest) (responses.ResponseNewParams, error) {
	system, rest := llm.SplitSystem(in.Messages)
	if len(rest) == 0 {
		return responses.ResponseNewParams{}, fmt.Errorf("must have at least one non-system message")
	}

	maxTokens := in.MaxTokens
	if info, exists := config.KnownModels[c.model]; exists && info.MaxOutputTokens > 0 && maxTokens > info.MaxOutputTokens {
		maxTokens = info.MaxOutputTokens
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(flatten(rest))},
	}
	if system != "" {
		params.Instructions = openai.String(system)
	}
	if !reasoningModel(c.model) {
		params.Temperature = openai.Float(float64(in.Temperature))
	}
	return params, nil
}

// Complete sends one Responses API request.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	params, err := c.buildParams(in)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	content := resp.OutputText()
	if content == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "OpenAI response carried no output text")
	}

	return llm.CompletionResponse{
		Content:      content,
		StopReason:   string(resp.Status),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// GetModelName returns the configured model.
func (c *Client) GetModelName() string {
	return c.model
}

func classifyError(err error) *llmerrors.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
