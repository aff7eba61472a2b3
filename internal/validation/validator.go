package validation

import (
	"slices"
	"strings"
	"time"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/models"
)

// PlanInput - проверенные и нормализованные поля плана
type PlanInput struct {
	Destination     string
	StartDate       time.Time
	EndDate         time.Time
	Purpose         string
	BudgetRange     string
	Description     string
	MaxParticipants int
}

// ValidatePlanRequest проверяет форму плана поездки. today is the caller's
// current date; plans cannot start in the past.
func ValidatePlanRequest(req *models.CreatePlanRequest, today time.Time) (*PlanInput, error) {
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return nil, apperrors.NewValidationError("destination", "is required")
	}
	if len(destination) > 200 {
		return nil, apperrors.NewValidationError("destination", "must be at most 200 characters")
	}

	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return nil, apperrors.NewValidationError("start_date", "must be a date in YYYY-MM-DD format")
	}
	end, err := time.Parse(models.DateLayout, req.EndDate)
	if err != nil {
		return nil, apperrors.NewValidationError("end_date", "must be a date in YYYY-MM-DD format")
	}
	if start.Before(models.DateOnly(today)) {
		return nil, apperrors.NewValidationError("start_date", "cannot be in the past")
	}
	if end.Before(start) {
		return nil, apperrors.NewValidationError("end_date", "must not be before start date")
	}
	if days := models.DurationDays(start, end); days < models.MinDurationDays || days > models.MaxDurationDays {
		return nil, apperrors.NewValidationError("end_date", "trip duration must be between 2 and 14 days")
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = "leisure"
	}
	if !slices.Contains(models.Purposes, purpose) {
		return nil, apperrors.NewValidationError("purpose", "unknown purpose")
	}

	budget := req.BudgetRange
	if budget == "" {
		budget = "mid-range"
	}
	if !slices.Contains(models.BudgetRanges, budget) {
		return nil, apperrors.NewValidationError("budget_range", "unknown budget range")
	}

	capacity := req.MaxParticipants
	if capacity == 0 {
		capacity = models.DefaultPlanCapacity
	}
	if capacity < models.MinPlanCapacity || capacity > models.MaxPlanCapacity {
		return nil, apperrors.NewValidationError("max_participants", "must be between 2 and 5")
	}

	return &PlanInput{
		Destination:     destination,
		StartDate:       start,
		EndDate:         end,
		Purpose:         purpose,
		BudgetRange:     budget,
		Description:     strings.TrimSpace(req.Description),
		MaxParticipants: capacity,
	}, nil
}

// ValidatePlanCosts проверяет стоимость, назначаемую при финализации
func ValidatePlanCosts(costs *models.PlanCosts) error {
	fields := []struct {
		name  string
		value interface{ IsNegative() bool }
	}{
		{"accommodation_cost", costs.AccommodationCost},
		{"food_cost", costs.FoodCost},
		{"transportation_cost", costs.TransportationCost},
		{"driver_payment", costs.DriverPayment},
		{"other_costs", costs.OtherCosts},
		{"platform_commission", costs.PlatformCommission},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return apperrors.NewValidationError(f.name, "must not be negative")
		}
	}

	total := costs.AccommodationCost.Add(costs.FoodCost).Add(costs.TransportationCost).
		Add(costs.DriverPayment).Add(costs.OtherCosts)
	if !total.IsPositive() {
		return apperrors.NewValidationError("costs", "final cost per person must be positive")
	}
	return nil
}

// ValidateJoinRequest проверяет форму присоединения к поездке
func ValidateJoinRequest(req *models.JoinTripRequest) error {
	req.EmergencyContact = strings.TrimSpace(req.EmergencyContact)
	if req.EmergencyContact == "" {
		return apperrors.NewValidationError("emergency_contact", "is required")
	}
	if len(req.EmergencyContact) > 100 {
		return apperrors.NewValidationError("emergency_contact", "must be at most 100 characters")
	}
	if !req.AgreeToTerms {
		return apperrors.NewValidationError("agree_to_terms", "you must agree to the trip terms")
	}
	req.SpecialRequirements = strings.TrimSpace(req.SpecialRequirements)
	return nil
}
