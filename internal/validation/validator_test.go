package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/models"
)

var today = time.Date(2026, 5, 1, 15, 30, 0, 0, time.UTC)

func validPlan() *models.CreatePlanRequest {
	return &models.CreatePlanRequest{
		Destination: "  Cox's Bazar ",
		StartDate:   "2026-05-10",
		EndDate:     "2026-05-12",
	}
}

func TestValidatePlanRequestDefaults(t *testing.T) {
	in, err := ValidatePlanRequest(validPlan(), today)
	require.NoError(t, err)

	assert.Equal(t, "Cox's Bazar", in.Destination)
	assert.Equal(t, "leisure", in.Purpose)
	assert.Equal(t, "mid-range", in.BudgetRange)
	assert.Equal(t, models.DefaultPlanCapacity, in.MaxParticipants)
}

func TestValidatePlanRequestDuration(t *testing.T) {
	tests := []struct {
		name    string
		end     string
		wantErr bool
	}{
		{"single day", "2026-05-10", true},
		{"two days", "2026-05-11", false},
		{"fourteen days", "2026-05-23", false},
		{"fifteen days", "2026-05-24", true},
		{"end before start", "2026-05-09", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPlan()
			req.EndDate = tt.end
			_, err := ValidatePlanRequest(req, today)
			if tt.wantErr {
				var vErr *apperrors.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "end_date", vErr.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePlanRequestRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CreatePlanRequest)
		field  string
	}{
		{"missing destination", func(r *models.CreatePlanRequest) { r.Destination = " " }, "destination"},
		{"bad date", func(r *models.CreatePlanRequest) { r.StartDate = "10/05/2026" }, "start_date"},
		{"past start", func(r *models.CreatePlanRequest) { r.StartDate = "2026-04-30" }, "start_date"},
		{"unknown purpose", func(r *models.CreatePlanRequest) { r.Purpose = "party" }, "purpose"},
		{"unknown budget", func(r *models.CreatePlanRequest) { r.BudgetRange = "cheap" }, "budget_range"},
		{"too many people", func(r *models.CreatePlanRequest) { r.MaxParticipants = 6 }, "max_participants"},
		{"too few people", func(r *models.CreatePlanRequest) { r.MaxParticipants = 1 }, "max_participants"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPlan()
			tt.mutate(req)
			_, err := ValidatePlanRequest(req, today)
			var vErr *apperrors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidatePlanCosts(t *testing.T) {
	costs := &models.PlanCosts{
		AccommodationCost: decimal.NewFromInt(100),
		FoodCost:          decimal.NewFromInt(50),
	}
	assert.NoError(t, ValidatePlanCosts(costs))

	costs.FoodCost = decimal.NewFromInt(-1)
	assert.Error(t, ValidatePlanCosts(costs))

	assert.Error(t, ValidatePlanCosts(&models.PlanCosts{}))
}

func TestValidateJoinRequest(t *testing.T) {
	req := &models.JoinTripRequest{EmergencyContact: " +8801700000000 ", AgreeToTerms: true}
	require.NoError(t, ValidateJoinRequest(req))
	assert.Equal(t, "+8801700000000", req.EmergencyContact)

	assert.Error(t, ValidateJoinRequest(&models.JoinTripRequest{AgreeToTerms: true}))
	assert.Error(t, ValidateJoinRequest(&models.JoinTripRequest{EmergencyContact: "x"}))
}
