// Package metrics queries a Prometheus server for LLM usage recorded by the gateway.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	llmmetrics "roadmapbp/pkg/llm/middleware/metrics"
)

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	client    api.Client
	queryAPI  v1.API
	namespace string
}

// NewQueryService creates a new metrics query service. namespace must match the
// one the gateway recorder registered its metrics under.
func NewQueryService(prometheusURL, namespace string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:    client,
		queryAPI:  v1.NewAPI(client),
		namespace: namespace,
	}, nil
}

func (q *QueryService) metric(name string) string {
	if q.namespace == "" {
		return name
	}
	return q.namespace + "_" + name
}

// sumByStage runs `sum by (stage) (...)` and returns the value per stage.
func (q *QueryService) sumByStage(ctx context.Context, query string) (map[string]float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add query context
	}

	out := make(map[string]float64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			out[string(sample.Metric["stage"])] = float64(sample.Value)
		}
	}
	return out, nil
}

// GetStageUsage retrieves token, cost and request totals per pipeline stage.
func (q *QueryService) GetStageUsage(ctx context.Context) ([]llmmetrics.StageUsage, error) {
	tokensMetric := q.metric("llm_tokens_total")

	prompt, err := q.sumByStage(ctx, fmt.Sprintf(`sum by (stage) (%s{type="prompt"})`, tokensMetric))
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	completion, err := q.sumByStage(ctx, fmt.Sprintf(`sum by (stage) (%s{type="completion"})`, tokensMetric))
	if err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	cost, err := q.sumByStage(ctx, fmt.Sprintf(`sum by (stage) (%s)`, q.metric("llm_costs_total")))
	if err != nil {
		return nil, fmt.Errorf("failed to query total cost: %w", err)
	}
	requests, err := q.sumByStage(ctx, fmt.Sprintf(`sum by (stage) (%s)`, q.metric("llm_requests_total")))
	if err != nil {
		return nil, fmt.Errorf("failed to query request count: %w", err)
	}
	errorsByStage, err := q.sumByStage(ctx, fmt.Sprintf(`sum by (stage) (%s{status="error"})`, q.metric("llm_requests_total")))
	if err != nil {
		return nil, fmt.Errorf("failed to query error count: %w", err)
	}

	stages := make(map[string]struct{})
	for _, m := range []map[string]float64{prompt, completion, cost, requests} {
		for stage := range m {
			stages[stage] = struct{}{}
		}
	}

	now := time.Now()
	usage := make([]llmmetrics.StageUsage, 0, len(stages))
	for stage := range stages {
		u := llmmetrics.StageUsage{
			Stage:            stage,
			PromptTokens:     int64(prompt[stage]),
			CompletionTokens: int64(completion[stage]),
			RequestCount:     int64(requests[stage]),
			ErrorCount:       int64(errorsByStage[stage]),
			TotalCost:        cost[stage],
			LastUpdated:      now,
		}
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
		usage = append(usage, u)
	}
	sort.Slice(usage, func(i, j int) bool { return usage[i].Stage < usage[j].Stage })
	return usage, nil
}
