//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"tripmate/internal/middleware"
	"tripmate/internal/models"
)

func TestPlanFunnel(t *testing.T) {
	RequireAPI(t)

	base := UniqueUserID(0)
	creator := NewTestClient(t, BaseURL(), middleware.User{ID: base, Email: "creator@example.com", Name: "Creator"})
	traveller := NewTestClient(t, BaseURL(), middleware.User{ID: base + 1, Email: "traveller@example.com", Name: "Traveller"})

	LogTestStep(t, "Step 1: Health check")
	creator.HealthCheck(t)

	destination := fmt.Sprintf("Sajek Valley %d", base)

	LogTestStep(t, "Step 2: Creator publishes a plan to %s", destination)
	plan := creator.CreatePlan(t, models.CreatePlanRequest{
		Destination:     destination,
		StartDate:       FutureDate(20),
		EndDate:         FutureDate(23),
		Purpose:         models.Purposes[0],
		BudgetRange:     models.BudgetRanges[0],
		Description:     "Integration test plan",
		MaxParticipants: models.MinPlanCapacity,
	})
	if plan.ID == 0 || plan.Status != models.PlanStatusOpen {
		t.Fatalf("Unexpected plan: %+v", plan)
	}
	LogTestResult(t, "Plan %d created", plan.ID)

	LogTestStep(t, "Step 3: Plan shows up in the creator's list")
	found := false
	for _, p := range creator.ListMyPlans(t) {
		found = found || p.ID == plan.ID
	}
	if !found {
		t.Fatalf("Plan %d missing from creator's plans", plan.ID)
	}

	LogTestStep(t, "Step 4: Another user finds the plan")
	match := AssertPlanInResults(t, SearchUntilFound(t, traveller, destination, plan.ID), plan.ID)
	if match.Compatible {
		t.Fatalf("Traveller has no plans, match should not be compatible")
	}
	LogTestResult(t, "Plan found")

	LogTestStep(t, "Step 5: Creator does not see their own plan in search")
	for _, r := range creator.SearchPlans(t, destination, "") {
		if r.Plan.ID == plan.ID {
			t.Fatalf("Own plan %d returned by search", plan.ID)
		}
	}

	LogTestStep(t, "Step 6: Traveller expresses interest")
	traveller.ExpressInterest(t, plan.ID)
	if status := traveller.ExpressInterestStatus(t, plan.ID); status != http.StatusConflict {
		t.Fatalf("Duplicate interest: expected 409, got %d", status)
	}

	detail := traveller.GetPlan(t, plan.ID)
	if !detail.Interested || detail.InterestCount != 1 || !detail.JoinWindowOpen {
		t.Fatalf("Unexpected plan detail: %+v", detail)
	}
	LogTestResult(t, "Interest recorded, count=%d", detail.InterestCount)

	LogTestStep(t, "Step 7: Traveller withdraws and nothing was paid")
	traveller.WithdrawInterest(t, plan.ID)
	if detail := traveller.GetPlan(t, plan.ID); detail.Interested {
		t.Fatalf("Interest still present after withdrawal")
	}
	history := traveller.PaymentHistory(t)
	if len(history.Groups) != 0 || !history.CompletedTotal.IsZero() {
		t.Fatalf("Unexpected payment history: %+v", history)
	}

	LogTestStep(t, "Step 8: Trips list is reachable")
	traveller.ListTrips(t)

	LogTestStep(t, "Step 9: Creator deletes the plan")
	creator.DeletePlan(t, plan.ID)
	resp := traveller.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/plans/%d", plan.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Deleted plan: expected 404, got %d", resp.StatusCode)
	}
	LogTestResult(t, "Funnel completed")
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	RequireAPI(t)

	anon := &TestClient{BaseURL: BaseURL(), HTTPClient: http.DefaultClient}
	resp := anon.makeRequest(t, http.MethodGet, "/api/plans", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}
}
