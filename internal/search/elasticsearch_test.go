package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/internal/config"
	"tripmate/internal/models"
)

// fakeCluster answers like a single Elasticsearch node.
func fakeCluster(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) *ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		handle(w, r, body)
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticsearchClient(config.ElasticsearchConfig{
		URL:     srv.URL,
		Index:   "travel_plans",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestSearchPlansDecodesHits(t *testing.T) {
	var sent map[string]any
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/travel_plans/_search"))
		require.NoError(t, json.Unmarshal(body, &sent))
		w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":7,"user_id":3,"destination":"Sylhet",
			"start_date":"2026-06-20","end_date":"2026-06-22","budget_range":"budget","status":"open"}}]}}`))
	})

	today := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	plans, err := client.SearchPlans(testContext(t), models.PlanSearchFilter{
		Destination:   "syl",
		ExcludeUserID: 1,
		Today:         today,
		Limit:         500,
	})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, int64(7), plans[0].ID)
	assert.Equal(t, "Sylhet", plans[0].Destination)
	assert.Equal(t, time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC), plans[0].StartDate)
	assert.EqualValues(t, maxLimit, sent["size"])
}

func TestSearchPlansReportsClusterErrors(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad query"}`))
	})

	_, err := client.SearchPlans(testContext(t), models.PlanSearchFilter{})
	assert.Error(t, err)
}

func TestBuildSearchQueryUsesLaterStartDate(t *testing.T) {
	today := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	query := buildSearchQuery(models.PlanSearchFilter{
		StartDate:     &from,
		Today:         today,
		BudgetRange:   "luxury",
		Purpose:       "family",
		ExcludeUserID: 9,
	})

	raw, err := json.Marshal(query)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"gte":"2026-07-01"`)
	assert.Contains(t, s, `"budget_range":"luxury"`)
	assert.Contains(t, s, `"purpose":"family"`)
	assert.Contains(t, s, `"must_not":[{"term":{"user_id":9}}]`)
	assert.NotContains(t, s, "wildcard")
}

func TestBulkIndexPlansSendsNDJSON(t *testing.T) {
	var lines []string
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/travel_plans/_bulk"))
		lines = strings.Split(strings.TrimSpace(string(body)), "\n")
		w.Write([]byte(`{"errors":false,"items":[{"index":{"_id":"1","status":201}},{"index":{"_id":"2","status":201}}]}`))
	})

	err := client.BulkIndexPlans(testContext(t), []models.TravelPlan{
		{ID: 1, Destination: "Sylhet", Status: models.PlanStatusOpen},
		{ID: 2, Destination: "Bandarban", Status: models.PlanStatusOpen},
	})
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_id":"1"}}`, lines[0])
	assert.Contains(t, lines[3], `"destination":"Bandarban"`)
}

func TestBulkIndexPlansReportsItemFailures(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.Write([]byte(`{"errors":true,"items":[{"index":{"_id":"1","status":201}},{"index":{"_id":"2","status":400}}]}`))
	})

	err := client.BulkIndexPlans(testContext(t), []models.TravelPlan{{ID: 1}, {ID: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plans 2")
}

func TestBulkIndexPlansEmptyIsNoop(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	assert.NoError(t, client.BulkIndexPlans(testContext(t), nil))
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
