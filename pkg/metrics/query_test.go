package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	fragment string
	vector   string
}

// fakePrometheus answers instant queries with the vector of the first matching fragment.
func fakePrometheus(t *testing.T, answers []answer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query := r.Form.Get("query")

		result := "[]"
		for _, a := range answers {
			if strings.Contains(query, a.fragment) {
				result = a.vector
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":%s}}`, result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sample(stage, value string) string {
	return fmt.Sprintf(`{"metric":{"stage":%q},"value":[1700000000,%q]}`, stage, value)
}

func TestGetStageUsage(t *testing.T) {
	srv := fakePrometheus(t, []answer{
		{`type="prompt"`, "[" + sample("brief", "100") + "," + sample("render", "900") + "]"},
		{`type="completion"`, "[" + sample("brief", "50") + "," + sample("render", "3000") + "]"},
		{`roadmapbp_llm_costs_total`, "[" + sample("render", "0.25") + "]"},
		{`status="error"`, "[" + sample("render", "1") + "]"},
		{`roadmapbp_llm_requests_total`, "[" + sample("brief", "1") + "," + sample("render", "4") + "]"},
	})

	q, err := NewQueryService(srv.URL, "roadmapbp")
	require.NoError(t, err)

	usage, err := q.GetStageUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 2)

	assert.Equal(t, "brief", usage[0].Stage)
	assert.Equal(t, int64(150), usage[0].TotalTokens)
	assert.Equal(t, int64(1), usage[0].RequestCount)

	assert.Equal(t, "render", usage[1].Stage)
	assert.Equal(t, int64(3900), usage[1].TotalTokens)
	assert.Equal(t, int64(4), usage[1].RequestCount)
	assert.Equal(t, int64(1), usage[1].ErrorCount)
	assert.InDelta(t, 0.25, usage[1].TotalCost, 0.0001)
}

func TestGetStageUsageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q, err := NewQueryService(srv.URL, "")
	require.NoError(t, err)
	_, err = q.GetStageUsage(context.Background())
	assert.Error(t, err)
}

func TestMetricName(t *testing.T) {
	q := &QueryService{namespace: "ns"}
	assert.Equal(t, "ns_llm_costs_total", q.metric("llm_costs_total"))
	q.namespace = ""
	assert.Equal(t, "llm_costs_total", q.metric("llm_costs_total"))
}
