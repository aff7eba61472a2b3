package models

import "time"

// NATS subjects
const (
	EventPlanCreated       = "plan.created"
	EventPlanUpdated       = "plan.updated"
	EventPlanDeleted       = "plan.deleted"
	EventPlanStatusChanged = "plan.status_changed"
	EventInterestChanged   = "plan.interest_changed"
	EventTripCreated       = "trip.created"
	EventTripStatusChanged = "trip.status_changed"
	EventPaymentInitiated  = "payment.initiated"
	EventPaymentCompleted  = "payment.completed"
	EventPaymentFailed     = "payment.failed"
	EventPaymentRefunded   = "payment.refunded"
)

// PlanEvent is published for plan create/update/delete
type PlanEvent struct {
	PlanID    int64     `json:"plan_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PlanStatusChangedEvent is published for every funnel transition
type PlanStatusChangedEvent struct {
	PlanID    int64     `json:"plan_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InterestChangedEvent is published when a user expresses, withdraws or agrees
type InterestChangedEvent struct {
	PlanID    int64     `json:"plan_id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// TripCreatedEvent is published when the formation engine materializes a plan
type TripCreatedEvent struct {
	TripID       int64     `json:"trip_id"`
	PlanID       int64     `json:"plan_id"`
	Participants []int64   `json:"participants"`
	Timestamp    time.Time `json:"timestamp"`
}

// TripStatusChangedEvent is published for trip lifecycle changes
type TripStatusChangedEvent struct {
	TripID    int64     `json:"trip_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentEvent covers initiation, completion, failure and refund
type PaymentEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	TripID        *int64    `json:"trip_id,omitempty"`
	PlanID        *int64    `json:"plan_id,omitempty"`
	Amount        string    `json:"amount"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
