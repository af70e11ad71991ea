package llm

import (
	"context"
	"fmt"
	"sync"
)

// Responder produces a response for one request. Used by MockClient.
type Responder func(req CompletionRequest) (CompletionResponse, error)

// MockClient is a controllable LLMClient. It answers with a Responder when one
// is set, otherwise it pops scripted responses in order. Every request is recorded.
type MockClient struct {
	responder Responder
	model     string
	responses []CompletionResponse
	errors    []error
	calls     []CompletionRequest
	index     int
	mu        sync.Mutex
}

// NewMockClient creates a mock that delegates every call to responder.
func NewMockClient(model string, responder Responder) *MockClient {
	return &MockClient{model: model, responder: responder}
}

// NewScriptedClient creates a mock that returns responses in order. A non-nil
// entry in errs at the same position takes precedence over the response.
func NewScriptedClient(responses []CompletionResponse, errs []error) *MockClient {
	return &MockClient{model: "mock", responses: responses, errors: errs}
}

// Complete returns the next scripted response or the responder's answer.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	if m.responder != nil {
		responder := m.responder
		m.mu.Unlock()
		return responder(req)
	}
	defer m.mu.Unlock()

	i := m.index
	m.index++
	if i < len(m.errors) && m.errors[i] != nil {
		return CompletionResponse{}, m.errors[i]
	}
	if i >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}
	return m.responses[i], nil
}

// GetModelName returns the configured model name.
func (m *MockClient) GetModelName() string {
	return m.model
}

// Calls returns a copy of every request received so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
