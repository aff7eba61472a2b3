//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"tripmate/internal/middleware"
	"tripmate/internal/models"
)

// TestClient provides methods for testing the API as one user
type TestClient struct {
	BaseURL    string
	HTTPClient *http.Client
	token      string
}

// NewTestClient creates a client that signs requests as user
func NewTestClient(t *testing.T, baseURL string, user middleware.User) *TestClient {
	token, err := middleware.GenerateToken(user, JWTSecret(), time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return &TestClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		token: token,
	}
}

// makeRequest makes an HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(testContext(t), method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// do makes the request, checks the status and decodes the body into out
func (c *TestClient) do(t *testing.T, method, path string, body interface{}, wantStatus int, out interface{}) {
	resp := c.makeRequest(t, method, path, body)
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, wantStatus, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
		}
	}
}

// HealthCheck checks if the API is healthy
func (c *TestClient) HealthCheck(t *testing.T) {
	c.do(t, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

// CreatePlan creates a travel plan
func (c *TestClient) CreatePlan(t *testing.T, req models.CreatePlanRequest) *models.TravelPlan {
	var plan models.TravelPlan
	c.do(t, http.MethodPost, "/api/plans", req, http.StatusCreated, &plan)
	return &plan
}

// SearchPlans searches open plans of other users
func (c *TestClient) SearchPlans(t *testing.T, destination string, startDate string) []models.PlanSearchResult {
	q := url.Values{}
	if destination != "" {
		q.Set("destination", destination)
	}
	if startDate != "" {
		q.Set("start_date", startDate)
	}

	var result struct {
		Plans []models.PlanSearchResult `json:"plans"`
		Count int                       `json:"count"`
	}
	c.do(t, http.MethodGet, "/api/plans?"+q.Encode(), nil, http.StatusOK, &result)
	return result.Plans
}

// ListMyPlans lists plans created by the current user
func (c *TestClient) ListMyPlans(t *testing.T) []models.TravelPlan {
	var result struct {
		Plans []models.TravelPlan `json:"plans"`
	}
	c.do(t, http.MethodGet, "/api/plans/mine", nil, http.StatusOK, &result)
	return result.Plans
}

// GetPlan returns plan details for the current user
func (c *TestClient) GetPlan(t *testing.T, planID int64) *models.PlanDetailResponse {
	var detail models.PlanDetailResponse
	c.do(t, http.MethodGet, fmt.Sprintf("/api/plans/%d", planID), nil, http.StatusOK, &detail)
	return &detail
}

// ExpressInterest registers interest in a plan
func (c *TestClient) ExpressInterest(t *testing.T, planID int64) *models.TravelPlanInterest {
	var interest models.TravelPlanInterest
	c.do(t, http.MethodPost, fmt.Sprintf("/api/plans/%d/interest", planID), nil, http.StatusCreated, &interest)
	return &interest
}

// ExpressInterestStatus registers interest and returns the raw status code
func (c *TestClient) ExpressInterestStatus(t *testing.T, planID int64) int {
	resp := c.makeRequest(t, http.MethodPost, fmt.Sprintf("/api/plans/%d/interest", planID), nil)
	defer resp.Body.Close()
	return resp.StatusCode
}

// WithdrawInterest withdraws interest in a plan
func (c *TestClient) WithdrawInterest(t *testing.T, planID int64) {
	c.do(t, http.MethodDelete, fmt.Sprintf("/api/plans/%d/interest", planID), nil, http.StatusNoContent, nil)
}

// DeletePlan deletes an open plan
func (c *TestClient) DeletePlan(t *testing.T, planID int64) {
	c.do(t, http.MethodDelete, fmt.Sprintf("/api/plans/%d", planID), nil, http.StatusNoContent, nil)
}

// ListTrips lists trips visible to the current user
func (c *TestClient) ListTrips(t *testing.T) []models.OrganizedTrip {
	var result struct {
		Trips []models.OrganizedTrip `json:"trips"`
	}
	c.do(t, http.MethodGet, "/api/trips", nil, http.StatusOK, &result)
	return result.Trips
}

// PaymentHistory returns the current user's payments grouped by trip or plan
func (c *TestClient) PaymentHistory(t *testing.T) *models.PaymentHistoryResponse {
	var history models.PaymentHistoryResponse
	c.do(t, http.MethodGet, "/api/payments/history", nil, http.StatusOK, &history)
	return &history
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
