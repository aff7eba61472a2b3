package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tripmate/internal/external"
	"tripmate/internal/logger"
	"tripmate/internal/metrics"
	"tripmate/internal/models"
	"tripmate/internal/repository"
)

// EventPublisher is satisfied by *messaging.NATSClient.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// PaymentGateway is satisfied by *external.PaymentClient. Implementations
// never return transport errors; failures come back as FAILED results.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req external.SessionRequest) *external.SessionResponse
	ValidateTransaction(ctx context.Context, valID, tranID string) *external.ValidationResponse
	InitiateRefund(ctx context.Context, bankTranID string, amount decimal.Decimal, remarks string) *external.RefundResponse
	QueryTransaction(ctx context.Context, tranID string) *external.QueryResponse
	Currency() string
}

// PlanSearcher is the search index used for finding travel buddies.
type PlanSearcher interface {
	SearchPlans(ctx context.Context, filter models.PlanSearchFilter) ([]models.TravelPlan, error)
}

// CallbackURLs are handed to the gateway with every session.
type CallbackURLs struct {
	Success string
	Fail    string
	Cancel  string
	IPN     string
}

type Deps struct {
	Store     repository.Store
	Publisher EventPublisher
	Gateway   PaymentGateway
	Search    PlanSearcher
	Metrics   *metrics.Metrics
	Callbacks CallbackURLs
	Now       func() time.Time
}

type Services struct {
	Plans        *PlanService
	Formation    *FormationEngine
	Confirmation *ConfirmationTrigger
	Payments     *PaymentService
	Refunds      *RefundService
	Trips        *TripService
	Sweeper      *Sweeper
}

func NewServices(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	events := &eventBus{pub: d.Publisher}

	confirmation := NewConfirmationTrigger(events, d.Now)
	formation := NewFormationEngine(d.Store, events, d.Metrics, d.Now)

	return &Services{
		Plans:        NewPlanService(d.Store, d.Search, events, d.Now),
		Formation:    formation,
		Confirmation: confirmation,
		Payments:     NewPaymentService(d.Store, d.Gateway, formation, confirmation, events, d.Metrics, d.Callbacks, d.Now),
		Refunds:      NewRefundService(d.Store, d.Gateway, events, d.Metrics, d.Now),
		Trips:        NewTripService(d.Store, d.Now),
		Sweeper:      NewSweeper(d.Store, formation, events, d.Metrics, d.Now),
	}
}

// eventBus publishes domain events; failures are logged and never fail the
// operation that produced them.
type eventBus struct {
	pub EventPublisher
}

func (b *eventBus) publish(ctx context.Context, subject string, data any) {
	if b == nil || b.pub == nil {
		return
	}
	if err := b.pub.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}

func (b *eventBus) planStatusChanged(ctx context.Context, planID int64, from, to, reason string, at time.Time) {
	b.publish(ctx, models.EventPlanStatusChanged, models.PlanStatusChangedEvent{
		PlanID:    planID,
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: at,
	})
}

func (b *eventBus) tripStatusChanged(ctx context.Context, ev *models.TripStatusChangedEvent) {
	if ev == nil {
		return
	}
	b.publish(ctx, models.EventTripStatusChanged, ev)
}
