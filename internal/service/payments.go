package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/external"
	"tripmate/internal/logger"
	"tripmate/internal/metrics"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/tracing"
)

// PaymentService owns the payment ledger: checkout, gateway callbacks and
// payment history.
type PaymentService struct {
	store        repository.Store
	gateway      PaymentGateway
	formation    *FormationEngine
	confirmation *ConfirmationTrigger
	events       *eventBus
	metrics      *metrics.Metrics
	callbacks    CallbackURLs
	now          func() time.Time
}

func NewPaymentService(
	store repository.Store,
	gateway PaymentGateway,
	formation *FormationEngine,
	confirmation *ConfirmationTrigger,
	events *eventBus,
	m *metrics.Metrics,
	callbacks CallbackURLs,
	now func() time.Time,
) *PaymentService {
	return &PaymentService{
		store:        store,
		gateway:      gateway,
		formation:    formation,
		confirmation: confirmation,
		events:       events,
		metrics:      m,
		callbacks:    callbacks,
		now:          now,
	}
}

// newTransactionID builds PREFIX-<id>-USER-<user>-<8 hex chars>.
func newTransactionID(prefix string, id, userID int64) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%d-USER-%d-%s", prefix, id, userID, suffix)
}

func paymentContext(p *models.Payment) string {
	if p.TripID != nil {
		return "trip"
	}
	return "plan"
}

// InitiateForPlan starts checkout for an agreed user of a finalized plan.
func (s *PaymentService) InitiateForPlan(ctx context.Context, customer models.Customer, planID int64) (*models.CheckoutResponse, error) {
	plan, err := s.store.Plans().GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, apperrors.ErrNotFound
	}
	if plan.Status != models.PlanStatusFinalized {
		return nil, apperrors.ErrPlanNotFinalized
	}

	now := s.now()
	if !plan.IsPaymentWindowOpen(now) {
		return nil, apperrors.ErrPaymentWindowExpired
	}

	interest, err := s.store.Interests().Get(ctx, planID, customer.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interest: %w", err)
	}
	if interest == nil || !interest.Agreed {
		return nil, apperrors.ErrNotAgreed
	}

	paid, err := s.store.Payments().HasCompletedForPlan(ctx, planID, customer.UserID, *plan.FinalizedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if paid {
		return nil, apperrors.ErrAlreadyPaid
	}

	amount, ok := plan.AmountDue()
	if !ok {
		return nil, apperrors.NewValidationError("final_cost_per_person", "plan has no payable amount")
	}

	payment := &models.Payment{
		PlanID:             &plan.ID,
		UserID:             customer.UserID,
		TotalAmount:        amount,
		PlatformCommission: plan.PlatformCommission.Decimal,
		PaymentMethod:      "card",
		PaymentStatus:      models.PaymentPending,
		TransactionID:      newTransactionID("PLAN", planID, customer.UserID),
		PaymentDate:        now,
	}
	return s.checkout(ctx, customer, payment, plan.Destination)
}

// InitiateForTrip starts checkout for a registered, unpaid trip participant.
func (s *PaymentService) InitiateForTrip(ctx context.Context, customer models.Customer, tripID int64) (*models.CheckoutResponse, error) {
	trip, err := s.store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.ErrNotFound
	}

	participant, err := s.store.Participants().Get(ctx, tripID, customer.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if participant == nil {
		return nil, apperrors.ErrNotParticipant
	}
	if participant.PaymentStatus == models.ParticipantPaid {
		return nil, apperrors.ErrAlreadyPaid
	}
	if !trip.AcceptsRegistrations() {
		return nil, apperrors.ErrTripNotOpen
	}
	if !trip.FinalCostPerPerson.IsPositive() {
		return nil, apperrors.NewValidationError("final_cost_per_person", "trip has no payable amount")
	}

	payment := &models.Payment{
		TripID:             &trip.ID,
		PlanID:             trip.TravelPlanID,
		UserID:             customer.UserID,
		TotalAmount:        trip.FinalCostPerPerson,
		PlatformCommission: trip.PlatformCommission,
		PaymentMethod:      "card",
		PaymentStatus:      models.PaymentPending,
		TransactionID:      newTransactionID("TRIP", tripID, customer.UserID),
		PaymentDate:        s.now(),
	}
	return s.checkout(ctx, customer, payment, trip.TripName)
}

func (s *PaymentService) checkout(ctx context.Context, customer models.Customer, payment *models.Payment, product string) (*models.CheckoutResponse, error) {
	ctx, end := tracing.StartSpan(ctx, "payment.checkout",
		attribute.String("payment.transaction_id", payment.TransactionID))

	if err := s.store.Payments().Create(ctx, payment); err != nil {
		err = fmt.Errorf("failed to create payment: %w", err)
		end(err)
		return nil, err
	}

	session := s.gateway.CreateSession(ctx, external.SessionRequest{
		Amount:          payment.TotalAmount,
		Currency:        s.gateway.Currency(),
		TransactionID:   payment.TransactionID,
		SuccessURL:      s.callbacks.Success,
		FailURL:         s.callbacks.Fail,
		CancelURL:       s.callbacks.Cancel,
		IPNURL:          s.callbacks.IPN,
		CustomerName:    customer.Name,
		CustomerEmail:   customer.Email,
		CustomerPhone:   customer.Phone,
		CustomerAddress: customer.Address,
		ProductName:     product,
		ProductCategory: "travel",
	})

	if !session.OK() {
		if _, err := s.store.Payments().MarkFailed(ctx, payment.TransactionID); err != nil {
			logger.WithContext(ctx).Error("Failed to mark payment failed",
				"error", err,
				"transaction_id", payment.TransactionID)
		}
		payment.PaymentStatus = models.PaymentFailed
		s.metrics.IncGatewayFailure("session")
		s.metrics.IncPayment(paymentContext(payment), models.PaymentFailed)
		s.publishPayment(ctx, models.EventPaymentFailed, payment, session.FailedReason)

		gwErr := &apperrors.GatewayError{Operation: "payment initialization", Reason: session.FailedReason}
		end(gwErr)
		return nil, gwErr
	}

	if err := s.store.Payments().SetSessionKey(ctx, payment.ID, session.SessionKey); err != nil {
		logger.WithContext(ctx).Error("Failed to store session key",
			"error", err,
			"transaction_id", payment.TransactionID)
	}

	s.metrics.IncPayment(paymentContext(payment), models.PaymentPending)
	s.publishPayment(ctx, models.EventPaymentInitiated, payment, "")
	end(nil)

	return &models.CheckoutResponse{
		TransactionID: payment.TransactionID,
		Amount:        payment.TotalAmount,
		RedirectURL:   session.GatewayPageURL,
	}, nil
}

// Confirm handles the success and IPN callbacks. The move to completed is a
// compare-and-swap, so concurrent callbacks for one transaction produce a
// single paid transition.
func (s *PaymentService) Confirm(ctx context.Context, cb models.GatewayCallback) (*models.ConfirmResult, error) {
	ctx, end := tracing.StartSpan(ctx, "payment.confirm",
		attribute.String("payment.transaction_id", cb.TranID))

	result, err := s.confirm(ctx, cb)
	end(err)
	return result, err
}

func (s *PaymentService) confirm(ctx context.Context, cb models.GatewayCallback) (*models.ConfirmResult, error) {
	payment, err := s.store.Payments().GetByTransactionID(ctx, cb.TranID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, apperrors.ErrPaymentNotFound
	}

	switch payment.PaymentStatus {
	case models.PaymentCompleted, models.PaymentRefunding, models.PaymentRefunded:
		return &models.ConfirmResult{Payment: payment, AlreadyProcessed: true, TripID: payment.TripID}, nil
	}

	validation := s.gateway.ValidateTransaction(ctx, cb.ValID, cb.TranID)
	if reason := validationMismatch(validation, payment); reason != "" {
		if _, err := s.store.Payments().MarkFailed(ctx, payment.TransactionID); err != nil {
			return nil, fmt.Errorf("failed to mark payment failed: %w", err)
		}
		payment.PaymentStatus = models.PaymentFailed
		if validation.Status == external.StatusFailed {
			s.metrics.IncGatewayFailure("validate")
		}
		s.metrics.IncPayment(paymentContext(payment), models.PaymentFailed)
		s.publishPayment(ctx, models.EventPaymentFailed, payment, reason)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPaymentValidation, reason)
	}

	method := validation.CardType
	if method == "" {
		method = cb.CardType
	}

	var (
		won     bool
		tripEvt *models.TripStatusChangedEvent
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		won, err = tx.Payments().MarkCompleted(ctx, payment.TransactionID, method)
		if err != nil {
			return fmt.Errorf("failed to complete payment: %w", err)
		}
		if !won || payment.TripID == nil {
			return nil
		}

		marked, err := tx.Participants().MarkPaid(ctx, *payment.TripID, payment.UserID, payment.TotalAmount)
		if err != nil {
			return fmt.Errorf("failed to mark participant paid: %w", err)
		}
		if !marked {
			logger.WithContext(ctx).Warn("Completed payment has no unpaid participant row",
				"transaction_id", payment.TransactionID,
				"trip_id", *payment.TripID,
				"user_id", payment.UserID)
		}

		tripEvt, err = s.confirmation.Recalculate(ctx, tx, *payment.TripID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !won {
		current, err := s.store.Payments().GetByTransactionID(ctx, payment.TransactionID)
		if err == nil && current != nil {
			payment = current
		}
		return &models.ConfirmResult{Payment: payment, AlreadyProcessed: true, TripID: payment.TripID}, nil
	}

	payment.PaymentStatus = models.PaymentCompleted
	payment.PaymentMethod = method
	s.metrics.IncPayment(paymentContext(payment), models.PaymentCompleted)
	s.publishPayment(ctx, models.EventPaymentCompleted, payment, "")
	s.events.tripStatusChanged(ctx, tripEvt)

	logger.WithContext(ctx).Info("Payment completed",
		"transaction_id", payment.TransactionID,
		"user_id", payment.UserID,
		"amount", payment.TotalAmount.StringFixed(2))

	result := &models.ConfirmResult{Payment: payment, Completed: true, TripID: payment.TripID}

	if payment.TripID == nil && payment.PlanID != nil {
		trip, err := s.formation.TryMaterialize(ctx, *payment.PlanID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to evaluate trip formation",
				"error", err,
				"plan_id", *payment.PlanID)
		} else if trip != nil {
			result.TripID = &trip.ID
		} else {
			s.settleLatePlanPayment(ctx, payment, result)
		}
	}
	return result, nil
}

// settleLatePlanPayment handles a plan payment that completed after the plan
// left finalized. It joins the payer to the formed trip when a place is left;
// otherwise the payment is flagged for manual reconciliation.
func (s *PaymentService) settleLatePlanPayment(ctx context.Context, payment *models.Payment, result *models.ConfirmResult) {
	planID := *payment.PlanID

	var (
		tripID  *int64
		reason  string
		tripEvt *models.TripStatusChangedEvent
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plan, err := tx.Plans().GetByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			reason = "plan no longer exists"
			return nil
		}
		if plan.Status == models.PlanStatusFinalized {
			// formation still pending, the payment is linked when it runs
			return nil
		}

		trip, err := tx.Trips().GetByPlanID(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to get trip: %w", err)
		}
		if trip == nil {
			reason = "plan " + plan.Status + " without a trip"
			return nil
		}
		trip, err = tx.Trips().GetByIDForUpdate(ctx, trip.ID)
		if err != nil {
			return fmt.Errorf("failed to lock trip: %w", err)
		}
		if !trip.AcceptsRegistrations() || trip.AvailableSlots() == 0 {
			reason = "trip " + trip.TripStatus + " has no free place"
			return nil
		}

		existing, err := tx.Participants().Get(ctx, trip.ID, payment.UserID)
		if err != nil {
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if existing != nil {
			reason = "user already participates in the trip"
			return nil
		}

		attached, err := tx.Payments().AttachToTrip(ctx, payment.ID, trip.ID)
		if err != nil {
			return fmt.Errorf("failed to link payment: %w", err)
		}
		if !attached {
			reason = "payment is no longer linkable"
			return nil
		}

		if _, err := tx.Participants().Create(ctx, &models.TripParticipant{
			TripID:            trip.ID,
			UserID:            payment.UserID,
			PaymentStatus:     models.ParticipantPaid,
			AmountPaid:        payment.TotalAmount,
			CommissionCharged: payment.PlatformCommission,
			AttendanceStatus:  models.AttendanceRegistered,
			JoinDate:          s.now(),
		}); err != nil {
			return fmt.Errorf("failed to create participant: %w", err)
		}
		if err := tx.Trips().AdjustParticipants(ctx, trip.ID, 1); err != nil {
			return fmt.Errorf("failed to update trip participants: %w", err)
		}

		tripEvt, err = s.confirmation.Recalculate(ctx, tx, trip.ID)
		if err != nil {
			return err
		}
		tripID = &trip.ID
		return nil
	})

	log := logger.WithContext(ctx)
	switch {
	case err != nil:
		reason = err.Error()
	case tripID != nil:
		payment.TripID = tripID
		result.TripID = tripID
		s.events.tripStatusChanged(ctx, tripEvt)
		log.Info("Late plan payment joined formed trip",
			"transaction_id", payment.TransactionID,
			"plan_id", planID,
			"trip_id", *tripID,
			"user_id", payment.UserID)
		return
	case reason == "":
		return
	}

	result.NeedsReconciliation = true
	log.Error("Completed plan payment could not be applied, manual reconciliation required",
		"transaction_id", payment.TransactionID,
		"plan_id", planID,
		"user_id", payment.UserID,
		"amount", payment.TotalAmount.StringFixed(2),
		"reason", reason)
}

// validationMismatch returns why a gateway validation cannot complete the
// payment, or "" when it can.
func validationMismatch(v *external.ValidationResponse, p *models.Payment) string {
	if !v.Valid() {
		if v.FailedReason != "" {
			return v.FailedReason
		}
		return fmt.Sprintf("gateway status %s", v.Status)
	}
	if v.TranID != p.TransactionID {
		return "transaction id mismatch"
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil || !amount.Equal(p.TotalAmount) {
		return "amount mismatch"
	}
	return ""
}

// Fail handles the gateway fail callback. Unknown transactions are ignored.
func (s *PaymentService) Fail(ctx context.Context, tranID string) error {
	return s.markFailed(ctx, tranID, "payment failed at gateway")
}

// Cancel handles the gateway cancel callback.
func (s *PaymentService) Cancel(ctx context.Context, tranID string) error {
	return s.markFailed(ctx, tranID, "payment cancelled by user")
}

func (s *PaymentService) markFailed(ctx context.Context, tranID, reason string) error {
	payment, err := s.store.Payments().GetByTransactionID(ctx, tranID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		logger.WithContext(ctx).Warn("Callback for unknown transaction", "transaction_id", tranID)
		return nil
	}

	moved, err := s.store.Payments().MarkFailed(ctx, tranID)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if moved {
		payment.PaymentStatus = models.PaymentFailed
		s.metrics.IncPayment(paymentContext(payment), models.PaymentFailed)
		s.publishPayment(ctx, models.EventPaymentFailed, payment, reason)
	}
	return nil
}

// Query passes a gateway transaction lookup through for staff.
func (s *PaymentService) Query(ctx context.Context, tranID string) (*external.QueryResponse, error) {
	payment, err := s.store.Payments().GetByTransactionID(ctx, tranID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, apperrors.ErrPaymentNotFound
	}
	return s.gateway.QueryTransaction(ctx, tranID), nil
}

// History groups the user's payments by trip, falling back to the plan for
// payments not yet linked to a trip.
func (s *PaymentService) History(ctx context.Context, userID int64) (*models.PaymentHistoryResponse, error) {
	payments, err := s.store.Payments().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	resp := &models.PaymentHistoryResponse{Groups: []models.PaymentHistoryGroup{}, CompletedTotal: decimal.Zero}
	index := make(map[string]int)
	for _, p := range payments {
		key := fmt.Sprintf("plan:%d", derefID(p.PlanID))
		if p.TripID != nil {
			key = fmt.Sprintf("trip:%d", *p.TripID)
		}

		i, ok := index[key]
		if !ok {
			i = len(resp.Groups)
			index[key] = i
			resp.Groups = append(resp.Groups, models.PaymentHistoryGroup{
				TripID:         p.TripID,
				PlanID:         p.PlanID,
				CompletedTotal: decimal.Zero,
			})
		}

		group := &resp.Groups[i]
		group.Payments = append(group.Payments, p)
		if p.PaymentStatus == models.PaymentCompleted {
			group.CompletedTotal = group.CompletedTotal.Add(p.TotalAmount)
			resp.CompletedTotal = resp.CompletedTotal.Add(p.TotalAmount)
		}
	}
	return resp, nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func (s *PaymentService) publishPayment(ctx context.Context, subject string, p *models.Payment, reason string) {
	s.events.publish(ctx, subject, models.PaymentEvent{
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		TripID:        p.TripID,
		PlanID:        p.PlanID,
		Amount:        p.TotalAmount.StringFixed(2),
		Reason:        reason,
		Timestamp:     s.now(),
	})
}
