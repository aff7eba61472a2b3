package service

import (
	"context"
	"fmt"
	"time"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/validation"
)

type TripService struct {
	store repository.Store
	now   func() time.Time
}

func NewTripService(store repository.Store, now func() time.Time) *TripService {
	return &TripService{store: store, now: now}
}

// List returns trips that still accept registrations.
func (s *TripService) List(ctx context.Context) ([]models.TripListItem, error) {
	trips, err := s.store.Trips().ListByStatus(ctx, []string{models.TripStatusOpen, models.TripStatusConfirmed})
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	items := make([]models.TripListItem, len(trips))
	for i, trip := range trips {
		items[i] = models.TripListItem{OrganizedTrip: trip, AvailableSlots: trip.AvailableSlots()}
	}
	return items, nil
}

func (s *TripService) Get(ctx context.Context, userID, tripID int64) (*models.TripDetailResponse, error) {
	trip, err := s.store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.ErrNotFound
	}

	participants, err := s.store.Participants().ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	resp := &models.TripDetailResponse{
		Trip:           trip,
		AvailableSlots: trip.AvailableSlots(),
		IsFinalized:    trip.IsFinalized(),
		Participants:   participants,
	}
	for i := range participants {
		if participants[i].UserID == userID {
			resp.Participant = &participants[i]
			break
		}
	}
	return resp, nil
}

// Join registers the user as a pending participant.
func (s *TripService) Join(ctx context.Context, userID, tripID int64, req *models.JoinTripRequest) (*models.TripParticipant, error) {
	if err := validation.ValidateJoinRequest(req); err != nil {
		return nil, err
	}

	participant := &models.TripParticipant{
		TripID:              tripID,
		UserID:              userID,
		PaymentStatus:       models.ParticipantPending,
		AttendanceStatus:    models.AttendanceRegistered,
		EmergencyContact:    req.EmergencyContact,
		SpecialRequirements: req.SpecialRequirements,
		JoinDate:            s.now(),
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		trip, err := tx.Trips().GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return fmt.Errorf("failed to get trip: %w", err)
		}
		if trip == nil {
			return apperrors.ErrNotFound
		}
		if !trip.AcceptsRegistrations() {
			return apperrors.ErrTripNotOpen
		}

		existing, err := tx.Participants().Get(ctx, tripID, userID)
		if err != nil {
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if existing != nil {
			return apperrors.ErrAlreadyJoined
		}
		if trip.AvailableSlots() <= 0 {
			return apperrors.ErrTripFull
		}

		created, err := tx.Participants().Create(ctx, participant)
		if err != nil {
			return fmt.Errorf("failed to create participant: %w", err)
		}
		if !created {
			return apperrors.ErrAlreadyJoined
		}
		return tx.Trips().AdjustParticipants(ctx, tripID, 1)
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// Leave removes an unpaid registration. Paid participants go through refunds.
func (s *TripService) Leave(ctx context.Context, userID, tripID int64) error {
	return s.store.WithTx(ctx, func(tx repository.Store) error {
		trip, err := tx.Trips().GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return fmt.Errorf("failed to get trip: %w", err)
		}
		if trip == nil {
			return apperrors.ErrNotFound
		}

		participant, err := tx.Participants().Get(ctx, tripID, userID)
		if err != nil {
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if participant == nil {
			return apperrors.ErrNotParticipant
		}
		if participant.PaymentStatus == models.ParticipantPaid {
			return apperrors.ErrPaidParticipant
		}

		deleted, err := tx.Participants().Delete(ctx, tripID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete participant: %w", err)
		}
		// refunded rows were already uncounted
		if deleted && participant.PaymentStatus != models.ParticipantRefunded {
			return tx.Trips().AdjustParticipants(ctx, tripID, -1)
		}
		return nil
	})
}
