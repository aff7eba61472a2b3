package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tripmate/internal/logger"
	"tripmate/internal/metrics"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/tracing"
)

var errPlanMoved = errors.New("plan left finalized status during formation")

// FormationEngine turns a funded, finalized plan into an organized trip.
// Formation and the plan's move to approved happen in one transaction, so a
// plan is approved if and only if its trip exists.
type FormationEngine struct {
	store   repository.Store
	events  *eventBus
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewFormationEngine(store repository.Store, events *eventBus, m *metrics.Metrics, now func() time.Time) *FormationEngine {
	return &FormationEngine{store: store, events: events, metrics: m, now: now}
}

// qualifyingUsers returns the agreed users holding a completed payment made
// after the plan was finalized.
func qualifyingUsers(ctx context.Context, tx repository.Store, plan *models.TravelPlan) ([]int64, error) {
	if plan.FinalizedAt == nil {
		return nil, nil
	}

	agreed, err := tx.Interests().ListAgreed(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreed interests: %w", err)
	}

	var users []int64
	for _, interest := range agreed {
		paid, err := tx.Payments().HasCompletedForPlan(ctx, plan.ID, interest.UserID, *plan.FinalizedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to check payment: %w", err)
		}
		if paid {
			users = append(users, interest.UserID)
		}
	}
	return users, nil
}

// TryMaterialize forms the trip when the plan is full or its payment deadline
// passed with a quorum. It returns nil when nothing was formed.
func (f *FormationEngine) TryMaterialize(ctx context.Context, planID int64) (*models.OrganizedTrip, error) {
	ctx, end := tracing.StartSpan(ctx, "formation.try_materialize", attribute.Int64("plan.id", planID))

	now := f.now()
	var (
		trip    *models.OrganizedTrip
		users   []int64
		trigger string
	)

	err := f.store.WithTx(ctx, func(tx repository.Store) error {
		plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil || plan.Status != models.PlanStatusFinalized {
			return nil
		}

		existing, err := tx.Trips().GetByPlanID(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get trip: %w", err)
		}
		if existing != nil && existing.TripStatus != models.TripStatusPlanning {
			return nil
		}

		users, err = qualifyingUsers(ctx, tx, plan)
		if err != nil {
			return err
		}
		if !plan.ShouldMaterialize(len(users), now) {
			return nil
		}

		trigger = "deadline"
		if len(users) >= plan.MaxParticipants {
			trigger = "capacity"
		}

		snapshot := plan.NewTripSnapshot(len(users))
		snapshot.EnsureDepartureLead(now)
		if existing != nil {
			snapshot.ID = existing.ID
			snapshot.CreatedAt = existing.CreatedAt
			if err := tx.Trips().Update(ctx, snapshot); err != nil {
				return fmt.Errorf("failed to update planning trip: %w", err)
			}
		} else if err := tx.Trips().Create(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to create trip: %w", err)
		}

		if _, err := tx.Payments().LinkToTrip(ctx, planID, users, *plan.FinalizedAt, snapshot.ID); err != nil {
			return fmt.Errorf("failed to link payments: %w", err)
		}

		for _, userID := range users {
			_, err := tx.Participants().Create(ctx, &models.TripParticipant{
				TripID:            snapshot.ID,
				UserID:            userID,
				PaymentStatus:     models.ParticipantPaid,
				AmountPaid:        snapshot.FinalCostPerPerson,
				CommissionCharged: snapshot.PlatformCommission,
				AttendanceStatus:  models.AttendanceRegistered,
				JoinDate:          now,
			})
			if err != nil {
				return fmt.Errorf("failed to create participant: %w", err)
			}
		}

		moved, err := tx.Plans().TransitionStatus(ctx, planID,
			[]string{models.PlanStatusFinalized}, models.PlanStatusApproved)
		if err != nil {
			return fmt.Errorf("failed to approve plan: %w", err)
		}
		if !moved {
			return errPlanMoved
		}

		trip = snapshot
		return nil
	})
	end(err)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, nil
	}

	logger.WithContext(ctx).Info("Trip formed",
		"plan_id", planID,
		"trip_id", trip.ID,
		"participants", len(users),
		"trigger", trigger)

	f.metrics.IncTripFormed(trigger)
	f.events.publish(ctx, models.EventTripCreated, models.TripCreatedEvent{
		TripID:       trip.ID,
		PlanID:       planID,
		Participants: users,
		Timestamp:    now,
	})
	f.events.planStatusChanged(ctx, planID, models.PlanStatusFinalized, models.PlanStatusApproved, trigger, now)
	return trip, nil
}

// MaterializeAll evaluates every finalized plan still without a trip. A
// failing plan is logged and skipped.
func (f *FormationEngine) MaterializeAll(ctx context.Context) (int, error) {
	plans, err := f.store.Plans().ListFinalizedWithoutTrip(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list finalized plans: %w", err)
	}

	formed := 0
	for _, plan := range plans {
		trip, err := f.TryMaterialize(ctx, plan.ID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to materialize plan", "plan_id", plan.ID, "error", err)
			continue
		}
		if trip != nil {
			formed++
		}
	}
	return formed, nil
}

// RejectUnfunded rejects finalized plans whose payment deadline passed
// without a paid quorum.
func (f *FormationEngine) RejectUnfunded(ctx context.Context) (int, error) {
	plans, err := f.store.Plans().ListFinalizedWithoutTrip(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list finalized plans: %w", err)
	}

	now := f.now()
	rejected := 0
	for _, candidate := range plans {
		if !candidate.PaymentDeadlinePassed(now) {
			continue
		}

		planID := candidate.ID
		var moved bool
		err := f.store.WithTx(ctx, func(tx repository.Store) error {
			plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
			if err != nil {
				return fmt.Errorf("failed to get plan: %w", err)
			}
			if plan == nil || plan.Status != models.PlanStatusFinalized {
				return nil
			}

			users, err := qualifyingUsers(ctx, tx, plan)
			if err != nil {
				return err
			}
			if !plan.ShouldRejectUnfunded(len(users), now) {
				return nil
			}

			moved, err = tx.Plans().TransitionStatus(ctx, planID,
				[]string{models.PlanStatusFinalized}, models.PlanStatusRejected)
			if err != nil {
				return fmt.Errorf("failed to reject plan: %w", err)
			}
			if !moved {
				return nil
			}
			return cancelPlanningTrip(ctx, tx, planID)
		})
		if err != nil {
			logger.WithContext(ctx).Error("Failed to reject unfunded plan", "plan_id", planID, "error", err)
			continue
		}
		if moved {
			rejected++
			f.events.planStatusChanged(ctx, planID, models.PlanStatusFinalized, models.PlanStatusRejected,
				"payment deadline passed without quorum", now)
		}
	}
	return rejected, nil
}
