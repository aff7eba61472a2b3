//go:build integration

package integration

import (
	"net/http"
	"os"
	"testing"
	"time"

	"tripmate/internal/models"
)

const (
	APIBaseURL = "http://localhost:8081"
)

// BaseURL returns the API address, TRIPMATE_API_URL overrides the default
func BaseURL() string {
	if u := os.Getenv("TRIPMATE_API_URL"); u != "" {
		return u
	}
	return APIBaseURL
}

// JWTSecret returns the secret the API under test was started with
func JWTSecret() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "dev-secret"
}

// RequireAPI skips the test when the API is not running
func RequireAPI(t *testing.T) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(BaseURL() + "/health")
	if err != nil {
		t.Skipf("API not reachable at %s: %v", BaseURL(), err)
	}
	resp.Body.Close()
}

// UniqueUserID returns a user id unlikely to collide with earlier runs
func UniqueUserID(offset int64) int64 {
	return time.Now().UnixNano()/1000%1_000_000_000 + offset
}

// FutureDate returns a date days from today in the API date layout
func FutureDate(days int) string {
	return models.DateOnly(time.Now()).AddDate(0, 0, days).Format(models.DateLayout)
}

// AssertPlanInResults checks if a plan appears in search results
func AssertPlanInResults(t *testing.T, results []models.PlanSearchResult, planID int64) models.PlanSearchResult {
	for _, r := range results {
		if r.Plan.ID == planID {
			return r
		}
	}
	t.Fatalf("Plan with ID %d not found in search results, %+v", planID, results)
	return models.PlanSearchResult{}
}

// SearchUntilFound polls search until planID shows up; the search index is
// fed asynchronously by the consumers
func SearchUntilFound(t *testing.T, c *TestClient, destination string, planID int64) []models.PlanSearchResult {
	deadline := time.Now().Add(10 * time.Second)
	for {
		results := c.SearchPlans(t, destination, "")
		for _, r := range results {
			if r.Plan.ID == planID {
				return results
			}
		}
		if time.Now().After(deadline) {
			return results
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// LogTestStep logs a test step for better debugging
func LogTestStep(t *testing.T, step string, args ...interface{}) {
	t.Logf("🔹 "+step, args...)
}

// LogTestResult logs a test result
func LogTestResult(t *testing.T, result string, args ...interface{}) {
	t.Logf("✅ "+result, args...)
}
