package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/models"
)

func TestTripJoinAndLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tripID := env.openTrip(2)

	_, err := env.svc.Trips.Join(ctx, aliceID, tripID, &models.JoinTripRequest{AgreeToTerms: true})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "emergency_contact", verr.Field)

	env.joinTrip(t, tripID, aliceID)
	_, err = env.svc.Trips.Join(ctx, aliceID, tripID, &models.JoinTripRequest{
		EmergencyContact: "Mother", AgreeToTerms: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyJoined)

	env.joinTrip(t, tripID, bobID)
	_, err = env.svc.Trips.Join(ctx, carolID, tripID, &models.JoinTripRequest{
		EmergencyContact: "Brother", AgreeToTerms: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrTripFull)

	require.NoError(t, env.svc.Trips.Leave(ctx, aliceID, tripID))
	assert.Equal(t, 1, env.store.trip(tripID).TotalParticipants)
	assert.ErrorIs(t, env.svc.Trips.Leave(ctx, aliceID, tripID), apperrors.ErrNotParticipant)

	env.joinTrip(t, tripID, carolID)
	assert.Equal(t, 2, env.store.trip(tripID).TotalParticipants)
}

func TestPaidParticipantCannotLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tripID := env.openTrip(4)
	env.joinTrip(t, tripID, aliceID)
	env.payTrip(t, tripID, aliceID)

	assert.ErrorIs(t, env.svc.Trips.Leave(ctx, aliceID, tripID), apperrors.ErrPaidParticipant)

	_, err := env.svc.Refunds.RequestRefund(ctx, aliceID, tripID, "change of plans")
	require.NoError(t, err)
	require.NoError(t, env.svc.Trips.Leave(ctx, aliceID, tripID))
	assert.Equal(t, 0, env.store.trip(tripID).TotalParticipants)
}

func TestJoinRequiresOpenTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tripID := env.store.putTrip(models.OrganizedTrip{MaxParticipants: 4, TripStatus: models.TripStatusCompleted})

	_, err := env.svc.Trips.Join(ctx, aliceID, tripID, &models.JoinTripRequest{
		EmergencyContact: "Mother", AgreeToTerms: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrTripNotOpen)

	_, err = env.svc.Trips.Join(ctx, aliceID, 999, &models.JoinTripRequest{
		EmergencyContact: "Mother", AgreeToTerms: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListAndGetTrips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.openTrip(3)
	env.store.putTrip(models.OrganizedTrip{MaxParticipants: 4, TripStatus: models.TripStatusCancelled})
	env.joinTrip(t, open, aliceID)

	items, err := env.svc.Trips.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, open, items[0].ID)
	assert.Equal(t, 2, items[0].AvailableSlots)

	detail, err := env.svc.Trips.Get(ctx, aliceID, open)
	require.NoError(t, err)
	require.NotNil(t, detail.Participant)
	assert.Equal(t, models.ParticipantPending, detail.Participant.PaymentStatus)
	assert.False(t, detail.IsFinalized)

	other, err := env.svc.Trips.Get(ctx, bobID, open)
	require.NoError(t, err)
	assert.Nil(t, other.Participant)
	assert.Len(t, other.Participants, 1)
}
