package service

import (
	"context"
	"fmt"
	"time"

	"tripmate/internal/models"
	"tripmate/internal/repository"
)

// ConfirmationTrigger moves an open trip to confirmed once a quorum has paid.
// It runs inside the caller's transaction; the caller publishes the returned
// event after commit.
type ConfirmationTrigger struct {
	events *eventBus
	now    func() time.Time
}

func NewConfirmationTrigger(events *eventBus, now func() time.Time) *ConfirmationTrigger {
	return &ConfirmationTrigger{events: events, now: now}
}

// Recalculate returns nil when the trip did not change.
func (c *ConfirmationTrigger) Recalculate(ctx context.Context, tx repository.Store, tripID int64) (*models.TripStatusChangedEvent, error) {
	trip, err := tx.Trips().GetByIDForUpdate(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil, nil
	}
	if trip.TripStatus != models.TripStatusOpen && trip.TripStatus != models.TripStatusPlanning {
		return nil, nil
	}

	paid, err := tx.Participants().CountPaid(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to count paid participants: %w", err)
	}
	if paid < models.MinQuorum {
		return nil, nil
	}

	now := c.now()
	trip.EnsureDepartureLead(now)
	ok, err := tx.Trips().Confirm(ctx, tripID, trip.DepartureTime, trip.ReturnTime)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm trip: %w", err)
	}
	if !ok {
		return nil, nil
	}

	return &models.TripStatusChangedEvent{
		TripID:    tripID,
		From:      trip.TripStatus,
		To:        models.TripStatusConfirmed,
		Timestamp: now,
	}, nil
}
