package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/external"
	"tripmate/internal/logger"
	"tripmate/internal/metrics"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/tracing"
)

// Refund outcomes for metrics
const (
	refundSucceeded      = "succeeded"
	refundWindowExpired  = "window_expired"
	refundGatewayRefused = "gateway_refused"
)

type RefundService struct {
	store   repository.Store
	gateway PaymentGateway
	events  *eventBus
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRefundService(store repository.Store, gateway PaymentGateway, events *eventBus, m *metrics.Metrics, now func() time.Time) *RefundService {
	return &RefundService{store: store, gateway: gateway, events: events, metrics: m, now: now}
}

// Status reports whether the user's latest completed payment for the trip can
// still be refunded.
func (s *RefundService) Status(ctx context.Context, userID, tripID int64) (*models.RefundStatusResponse, error) {
	payment, err := s.store.Payments().LatestCompleted(ctx, tripID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, apperrors.ErrNoPayment
	}

	now := s.now()
	deadline := payment.RefundDeadline()
	remaining := int64(0)
	if payment.CanRefund(now) {
		remaining = int64(math.Ceil(deadline.Sub(now).Seconds()))
	}

	return &models.RefundStatusResponse{
		Payment:          payment,
		CanRefund:        payment.CanRefund(now),
		RefundDeadline:   deadline,
		SecondsRemaining: remaining,
	}, nil
}

// RequestRefund refunds the latest completed payment inside the refund
// window. The ledger changes only after the gateway accepts the refund.
func (s *RefundService) RequestRefund(ctx context.Context, userID, tripID int64, remarks string) (*models.Payment, error) {
	ctx, end := tracing.StartSpan(ctx, "payment.refund",
		attribute.Int64("trip.id", tripID),
		attribute.Int64("user.id", userID))

	payment, err := s.requestRefund(ctx, userID, tripID, remarks)
	end(err)
	return payment, err
}

func (s *RefundService) requestRefund(ctx context.Context, userID, tripID int64, remarks string) (*models.Payment, error) {
	payment, err := s.store.Payments().LatestCompleted(ctx, tripID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, apperrors.ErrNoPayment
	}
	if !payment.CanRefund(s.now()) {
		s.metrics.IncRefund(refundWindowExpired)
		return nil, apperrors.ErrRefundWindowExpired
	}

	claimed, err := s.store.Payments().ClaimRefund(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim payment for refund: %w", err)
	}
	if !claimed {
		return nil, apperrors.ErrRefundInProgress
	}

	query := s.gateway.QueryTransaction(ctx, payment.TransactionID)
	if !query.Valid() {
		s.releaseRefund(ctx, payment)
		s.metrics.IncRefund(refundGatewayRefused)
		if query.Status == external.StatusFailed {
			s.metrics.IncGatewayFailure("query")
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrNotRefundable,
			&apperrors.GatewayError{Operation: "transaction query", Reason: query.ErrorReason})
	}

	refund := s.gateway.InitiateRefund(ctx, query.BankTranID, payment.TotalAmount, remarks)
	if !refund.OK() {
		s.releaseRefund(ctx, payment)
		s.metrics.IncRefund(refundGatewayRefused)
		s.metrics.IncGatewayFailure("refund")
		return nil, &apperrors.GatewayError{Operation: "refund", Reason: refund.ErrorReason}
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Payments().MarkRefunded(ctx, payment.ID); err != nil {
			return fmt.Errorf("failed to mark payment refunded: %w", err)
		}

		left, err := tx.Participants().MarkRefunded(ctx, tripID, userID)
		if err != nil {
			return fmt.Errorf("failed to mark participant refunded: %w", err)
		}
		if left {
			if err := tx.Trips().AdjustParticipants(ctx, tripID, -1); err != nil {
				return fmt.Errorf("failed to update trip participants: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// The gateway already moved the money; the ledger has to be fixed by hand.
		logger.WithContext(ctx).Error("Refund accepted by gateway but ledger update failed",
			"error", err,
			"transaction_id", payment.TransactionID,
			"refund_ref_id", refund.RefundRefID)
		return nil, err
	}

	payment.PaymentStatus = models.PaymentRefunded
	payment.RefundStatus = true

	logger.WithContext(ctx).Info("Payment refunded",
		"transaction_id", payment.TransactionID,
		"user_id", userID,
		"trip_id", tripID,
		"refund_ref_id", refund.RefundRefID)

	s.metrics.IncRefund(refundSucceeded)
	s.metrics.IncPayment(paymentContext(payment), models.PaymentRefunded)
	s.events.publish(ctx, models.EventPaymentRefunded, models.PaymentEvent{
		TransactionID: payment.TransactionID,
		UserID:        userID,
		TripID:        payment.TripID,
		PlanID:        payment.PlanID,
		Amount:        payment.TotalAmount.StringFixed(2),
		Reason:        remarks,
		Timestamp:     s.now(),
	})
	return payment, nil
}

// releaseRefund puts a claimed payment back to completed so the user can
// retry after the gateway refused.
func (s *RefundService) releaseRefund(ctx context.Context, payment *models.Payment) {
	if _, err := s.store.Payments().ReleaseRefund(context.WithoutCancel(ctx), payment.ID); err != nil {
		logger.WithContext(ctx).Error("Failed to release refund claim",
			"error", err,
			"transaction_id", payment.TransactionID)
	}
}
