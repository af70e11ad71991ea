package metrics

import (
	"sort"
	"sync"
	"time"
)

// StageUsage is the aggregated usage of one pipeline stage.
//
//nolint:govet
type StageUsage struct {
	Stage            string    `json:"stage"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	RequestCount     int64     `json:"request_count"`
	ErrorCount       int64     `json:"error_count"`
	TotalCost        float64   `json:"total_cost_usd"`
	LastUpdated      time.Time `json:"last_updated"`
}

// InternalRecorder aggregates usage in memory per stage. It backs the usage
// endpoint when no Prometheus server is configured.
type InternalRecorder struct {
	stages map[string]*StageUsage
	mu     sync.RWMutex
}

// NewInternalRecorder creates an empty in-memory recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{stages: make(map[string]*StageUsage)}
}

// ObserveRequest records metrics for a completed LLM request.
func (r *InternalRecorder) ObserveRequest(
	_, stage string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	_ string,
	_ time.Duration,
) {
	r.mu.Lock()
	defer r.mu.Unlock()

	usage, exists := r.stages[stage]
	if !exists {
		usage = &StageUsage{Stage: stage}
		r.stages[stage] = usage
	}

	usage.RequestCount++
	usage.LastUpdated = time.Now()
	if !success {
		usage.ErrorCount++
		return
	}
	usage.PromptTokens += int64(promptTokens)
	usage.CompletionTokens += int64(completionTokens)
	usage.TotalTokens += int64(promptTokens + completionTokens)
	usage.TotalCost += cost
}

// ObserveQueueWait is not aggregated.
func (r *InternalRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

// Usage returns a snapshot of all stages sorted by name.
func (r *InternalRecorder) Usage() []StageUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StageUsage, 0, len(r.stages))
	for _, usage := range r.stages {
		out = append(out, *usage)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// Reset clears all aggregates.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = make(map[string]*StageUsage)
}
