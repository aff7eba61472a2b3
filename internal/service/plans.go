package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/logger"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/validation"
)

// PlanService drives the user and staff side of the plan funnel.
type PlanService struct {
	store  repository.Store
	search PlanSearcher
	events *eventBus
	now    func() time.Time
}

func NewPlanService(store repository.Store, search PlanSearcher, events *eventBus, now func() time.Time) *PlanService {
	return &PlanService{store: store, search: search, events: events, now: now}
}

func (s *PlanService) Create(ctx context.Context, userID int64, req *models.CreatePlanRequest) (*models.TravelPlan, error) {
	now := s.now()
	in, err := validation.ValidatePlanRequest(req, now)
	if err != nil {
		return nil, err
	}

	plan := &models.TravelPlan{
		UserID:          userID,
		Destination:     in.Destination,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Purpose:         in.Purpose,
		BudgetRange:     in.BudgetRange,
		Description:     in.Description,
		MaxParticipants: in.MaxParticipants,
		Status:          models.PlanStatusOpen,
		JoinDeadline:    now.Add(models.JoinWindow),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Plans().Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	s.events.publish(ctx, models.EventPlanCreated, models.PlanEvent{PlanID: plan.ID, UserID: userID, Timestamp: now})
	return plan, nil
}

// ownedOpenPlan loads a plan the user may still edit.
func (s *PlanService) ownedOpenPlan(ctx context.Context, userID, planID int64) (*models.TravelPlan, error) {
	plan, err := s.store.Plans().GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, apperrors.ErrNotFound
	}
	if plan.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	if plan.Status != models.PlanStatusOpen {
		return nil, apperrors.ErrPlanNotOpen
	}
	return plan, nil
}

func (s *PlanService) Update(ctx context.Context, userID, planID int64, req *models.UpdatePlanRequest) (*models.TravelPlan, error) {
	plan, err := s.ownedOpenPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	in, err := validation.ValidatePlanRequest(req, s.now())
	if err != nil {
		return nil, err
	}

	interested, err := s.store.Interests().CountByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to count interests: %w", err)
	}
	if in.MaxParticipants < interested {
		return nil, apperrors.NewValidationError("max_participants",
			fmt.Sprintf("%d users already joined this plan", interested))
	}

	plan.Destination = in.Destination
	plan.StartDate = in.StartDate
	plan.EndDate = in.EndDate
	plan.Purpose = in.Purpose
	plan.BudgetRange = in.BudgetRange
	plan.Description = in.Description
	plan.MaxParticipants = in.MaxParticipants

	ok, err := s.store.Plans().UpdateDetails(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrPlanNotOpen
	}

	s.events.publish(ctx, models.EventPlanUpdated, models.PlanEvent{PlanID: plan.ID, UserID: userID, Timestamp: s.now()})
	return plan, nil
}

func (s *PlanService) Delete(ctx context.Context, userID, planID int64) error {
	if _, err := s.ownedOpenPlan(ctx, userID, planID); err != nil {
		return err
	}

	ok, err := s.store.Plans().Delete(ctx, planID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if !ok {
		return apperrors.ErrPlanNotOpen
	}

	s.events.publish(ctx, models.EventPlanDeleted, models.PlanEvent{PlanID: planID, UserID: userID, Timestamp: s.now()})
	return nil
}

// Get returns the plan with the caller's interest state.
func (s *PlanService) Get(ctx context.Context, userID, planID int64) (*models.PlanDetailResponse, error) {
	plan, err := s.store.Plans().GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, apperrors.ErrNotFound
	}

	count, err := s.store.Interests().CountByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to count interests: %w", err)
	}

	interest, err := s.store.Interests().Get(ctx, planID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interest: %w", err)
	}

	now := s.now()
	resp := &models.PlanDetailResponse{
		Plan:              plan,
		InterestCount:     count,
		JoinWindowOpen:    plan.IsJoinWindowOpen(now),
		PaymentWindowOpen: plan.IsPaymentWindowOpen(now),
		Interested:        interest != nil,
		Agreed:            interest != nil && interest.Agreed,
	}

	if plan.Status == models.PlanStatusApproved || plan.Status == models.PlanStatusFinalized {
		trip, err := s.store.Trips().GetByPlanID(ctx, planID)
		if err != nil {
			return nil, fmt.Errorf("failed to get trip: %w", err)
		}
		if trip != nil {
			resp.TripID = &trip.ID
		}
	}
	return resp, nil
}

func (s *PlanService) ListMine(ctx context.Context, userID int64) ([]models.TravelPlan, error) {
	plans, err := s.store.Plans().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// Search finds open plans of other users. The search index is preferred;
// the database is used when the index is unavailable.
func (s *PlanService) Search(ctx context.Context, userID int64, filter models.PlanSearchFilter) ([]models.PlanSearchResult, error) {
	filter.ExcludeUserID = userID
	filter.Today = models.DateOnly(s.now())

	var plans []models.TravelPlan
	var err error
	if s.search != nil {
		plans, err = s.search.SearchPlans(ctx, filter)
		if err != nil {
			logger.WithContext(ctx).Warn("Plan search index failed, falling back to database", "error", err)
		}
	}
	if s.search == nil || err != nil {
		plans, err = s.store.Plans().Search(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to search plans: %w", err)
		}
	}

	own, err := s.store.Plans().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list own plans: %w", err)
	}

	results := make([]models.PlanSearchResult, len(plans))
	for i, plan := range plans {
		results[i] = models.PlanSearchResult{Plan: plan, Compatible: compatible(plan, own)}
	}
	return results, nil
}

// compatible is an equality filter: same destination and same budget as one
// of the caller's own plans.
func compatible(plan models.TravelPlan, own []models.TravelPlan) bool {
	for _, mine := range own {
		if strings.EqualFold(strings.TrimSpace(mine.Destination), strings.TrimSpace(plan.Destination)) &&
			mine.BudgetRange == plan.BudgetRange {
			return true
		}
	}
	return false
}

// ExpressInterest records interest while the join window is open and the
// plan still has free places.
func (s *PlanService) ExpressInterest(ctx context.Context, userID, planID int64) (*models.TravelPlanInterest, error) {
	now := s.now()
	interest := &models.TravelPlanInterest{PlanID: planID, UserID: userID, CreatedAt: now}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			return apperrors.ErrNotFound
		}
		if !plan.IsJoinWindowOpen(now) {
			return apperrors.ErrPlanNotOpen
		}

		existing, err := tx.Interests().Get(ctx, planID, userID)
		if err != nil {
			return fmt.Errorf("failed to get interest: %w", err)
		}
		if existing != nil {
			return apperrors.ErrAlreadyJoined
		}

		count, err := tx.Interests().CountByPlan(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to count interests: %w", err)
		}
		if count >= plan.MaxParticipants {
			return apperrors.ErrPlanFull
		}

		return tx.Interests().Create(ctx, interest)
	})
	if err != nil {
		return nil, err
	}

	s.events.publish(ctx, models.EventInterestChanged, models.InterestChangedEvent{
		PlanID: planID, UserID: userID, Action: "interested", Timestamp: now,
	})
	return interest, nil
}

// WithdrawInterest is allowed only while the plan is open and before agreement.
func (s *PlanService) WithdrawInterest(ctx context.Context, userID, planID int64) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			return apperrors.ErrNotFound
		}
		if plan.Status != models.PlanStatusOpen {
			return apperrors.ErrPlanNotOpen
		}

		interest, err := tx.Interests().Get(ctx, planID, userID)
		if err != nil {
			return fmt.Errorf("failed to get interest: %w", err)
		}
		if interest == nil {
			return apperrors.ErrNotInterested
		}
		if interest.Agreed {
			return apperrors.ErrAlreadyAgreed
		}

		if _, err := tx.Interests().Delete(ctx, planID, userID); err != nil {
			return fmt.Errorf("failed to delete interest: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.publish(ctx, models.EventInterestChanged, models.InterestChangedEvent{
		PlanID: planID, UserID: userID, Action: "withdrawn", Timestamp: s.now(),
	})
	return nil
}

// Agree marks the user's acceptance of the finalized terms, the prerequisite
// for paying. When the creator agrees, a planning trip is created eagerly.
func (s *PlanService) Agree(ctx context.Context, userID, planID int64) error {
	now := s.now()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			return apperrors.ErrNotFound
		}
		if plan.Status != models.PlanStatusFinalized {
			return apperrors.ErrPlanNotFinalized
		}
		if !plan.IsPaymentWindowOpen(now) {
			return apperrors.ErrPaymentWindowExpired
		}

		interest, err := tx.Interests().Get(ctx, planID, userID)
		if err != nil {
			return fmt.Errorf("failed to get interest: %w", err)
		}
		if interest == nil {
			return apperrors.ErrNotInterested
		}
		if interest.Agreed {
			return apperrors.ErrAlreadyAgreed
		}

		if _, err := tx.Interests().Agree(ctx, planID, userID, now); err != nil {
			return fmt.Errorf("failed to agree: %w", err)
		}

		if userID != plan.UserID {
			return nil
		}
		trip, err := tx.Trips().GetByPlanID(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get trip: %w", err)
		}
		if trip != nil {
			return nil
		}
		planning := plan.NewTripSnapshot(0)
		planning.TripStatus = models.TripStatusPlanning
		if err := tx.Trips().Create(ctx, planning); err != nil {
			return fmt.Errorf("failed to create planning trip: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.publish(ctx, models.EventInterestChanged, models.InterestChangedEvent{
		PlanID: planID, UserID: userID, Action: "agreed", Timestamp: now,
	})
	return nil
}

// Finalize is the staff action closed → finalized.
func (s *PlanService) Finalize(ctx context.Context, planID int64, costs *models.PlanCosts) (*models.TravelPlan, error) {
	if err := validation.ValidatePlanCosts(costs); err != nil {
		return nil, err
	}

	now := s.now()
	var plan *models.TravelPlan
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		plan, err = tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			return apperrors.ErrNotFound
		}
		if models.IsTerminalPlanStatus(plan.Status) {
			return apperrors.ErrPlanTerminal
		}
		if !models.CanTransitionPlan(plan.Status, models.PlanStatusFinalized) {
			return apperrors.ErrPlanNotClosed
		}

		plan.Finalize(*costs, now)
		ok, err := tx.Plans().Finalize(ctx, plan)
		if err != nil {
			return fmt.Errorf("failed to finalize plan: %w", err)
		}
		if !ok {
			return apperrors.ErrPlanNotClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.planStatusChanged(ctx, planID, models.PlanStatusClosed, models.PlanStatusFinalized, "finalized by staff", now)
	return plan, nil
}

// Reject is the staff action forcing a non-terminal plan to rejected. An
// eagerly created planning trip is cancelled with it.
func (s *PlanService) Reject(ctx context.Context, planID int64, reason string) error {
	var from string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			return apperrors.ErrNotFound
		}
		if models.IsTerminalPlanStatus(plan.Status) {
			return apperrors.ErrPlanTerminal
		}
		from = plan.Status

		ok, err := tx.Plans().TransitionStatus(ctx, planID,
			[]string{models.PlanStatusOpen, models.PlanStatusClosed, models.PlanStatusFinalized},
			models.PlanStatusRejected)
		if err != nil {
			return fmt.Errorf("failed to reject plan: %w", err)
		}
		if !ok {
			return apperrors.ErrPlanTerminal
		}
		return cancelPlanningTrip(ctx, tx, planID)
	})
	if err != nil {
		return err
	}

	if reason == "" {
		reason = "rejected by staff"
	}
	s.events.planStatusChanged(ctx, planID, from, models.PlanStatusRejected, reason, s.now())
	return nil
}

func cancelPlanningTrip(ctx context.Context, tx repository.Store, planID int64) error {
	trip, err := tx.Trips().GetByPlanID(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil
	}
	if _, err := tx.Trips().TransitionStatus(ctx, trip.ID,
		[]string{models.TripStatusPlanning}, models.TripStatusCancelled); err != nil {
		return fmt.Errorf("failed to cancel planning trip: %w", err)
	}
	return nil
}
