package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan statuses
const (
	PlanStatusOpen      = "open"
	PlanStatusClosed    = "closed"
	PlanStatusFinalized = "finalized"
	PlanStatusApproved  = "approved"
	PlanStatusRejected  = "rejected"
)

// Trip statuses
const (
	TripStatusPlanning  = "planning"
	TripStatusOpen      = "open"
	TripStatusConfirmed = "confirmed"
	TripStatusOngoing   = "ongoing"
	TripStatusCompleted = "completed"
	TripStatusCancelled = "cancelled"
)

// Participant payment statuses
const (
	ParticipantPending  = "pending"
	ParticipantPartial  = "partial"
	ParticipantPaid     = "paid"
	ParticipantRefunded = "refunded"
)

// Payment statuses
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentRefunding  = "refunding"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

const AttendanceRegistered = "registered"

// TravelPlan is a user's travel proposal moving through the funnel
type TravelPlan struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	Destination     string     `json:"destination" db:"destination"`
	StartDate       time.Time  `json:"start_date" db:"start_date"`
	EndDate         time.Time  `json:"end_date" db:"end_date"`
	Purpose         string     `json:"purpose" db:"purpose"`
	BudgetRange     string     `json:"budget_range" db:"budget_range"`
	Description     string     `json:"description" db:"description"`
	MaxParticipants int        `json:"max_participants" db:"max_participants"`
	Status          string     `json:"status" db:"status"`
	JoinDeadline    time.Time  `json:"join_deadline" db:"join_deadline"`
	PaymentDeadline *time.Time `json:"payment_deadline" db:"payment_deadline"`
	FinalizedAt     *time.Time `json:"finalized_at" db:"finalized_at"`

	AccommodationCost          decimal.NullDecimal `json:"accommodation_cost" db:"accommodation_cost"`
	FoodCost                   decimal.NullDecimal `json:"food_cost" db:"food_cost"`
	TransportationCost         decimal.NullDecimal `json:"transportation_cost" db:"transportation_cost"`
	DriverPayment              decimal.NullDecimal `json:"driver_payment" db:"driver_payment"`
	OtherCosts                 decimal.NullDecimal `json:"other_costs" db:"other_costs"`
	PlatformCommission         decimal.NullDecimal `json:"platform_commission" db:"platform_commission"`
	CombinedTransportationCost decimal.NullDecimal `json:"combined_transportation_cost" db:"combined_transportation_cost"`
	FinalCostPerPerson         decimal.NullDecimal `json:"final_cost_per_person" db:"final_cost_per_person"`

	TransportationDetails string `json:"transportation_details" db:"transportation_details"`
	AccommodationDetails  string `json:"accommodation_details" db:"accommodation_details"`
	MealArrangements      string `json:"meal_arrangements" db:"meal_arrangements"`
	Itinerary             string `json:"itinerary" db:"itinerary"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TravelPlanInterest records a user's interest in a plan
type TravelPlanInterest struct {
	ID        int64      `json:"id" db:"id"`
	PlanID    int64      `json:"plan_id" db:"plan_id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Agreed    bool       `json:"agreed" db:"agreed"`
	AgreedAt  *time.Time `json:"agreed_at" db:"agreed_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// OrganizedTrip is the materialized group trip. Logistics are a snapshot of
// the plan at creation time.
type OrganizedTrip struct {
	ID                 int64           `json:"id" db:"id"`
	TravelPlanID       *int64          `json:"travel_plan_id" db:"travel_plan_id"`
	TripName           string          `json:"trip_name" db:"trip_name"`
	Destination        string          `json:"destination" db:"destination"`
	MaxParticipants    int             `json:"max_participants" db:"max_participants"`
	TotalParticipants  int             `json:"total_participants" db:"total_participants"`
	BaseCost           decimal.Decimal `json:"base_cost" db:"base_cost"`
	PlatformCommission decimal.Decimal `json:"platform_commission" db:"platform_commission"`
	FinalCostPerPerson decimal.Decimal `json:"final_cost_per_person" db:"final_cost_per_person"`
	DriverPayment      decimal.Decimal `json:"driver_payment" db:"driver_payment"`

	TransportationDetails string `json:"transportation_details" db:"transportation_details"`
	AccommodationDetails  string `json:"accommodation_details" db:"accommodation_details"`
	MealArrangements      string `json:"meal_arrangements" db:"meal_arrangements"`
	Itinerary             string `json:"itinerary" db:"itinerary"`

	TripStatus    string    `json:"trip_status" db:"trip_status"`
	DepartureTime time.Time `json:"departure_time" db:"departure_time"`
	ReturnTime    time.Time `json:"return_time" db:"return_time"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// IsFinalized is derived from the status and never stored.
func (t *OrganizedTrip) IsFinalized() bool {
	switch t.TripStatus {
	case TripStatusConfirmed, TripStatusOngoing, TripStatusCompleted:
		return true
	}
	return false
}

// AvailableSlots returns the number of places left on the trip.
func (t *OrganizedTrip) AvailableSlots() int {
	if free := t.MaxParticipants - t.TotalParticipants; free > 0 {
		return free
	}
	return 0
}

// AcceptsRegistrations reports whether new participants may join.
func (t *OrganizedTrip) AcceptsRegistrations() bool {
	return t.TripStatus == TripStatusOpen || t.TripStatus == TripStatusConfirmed
}

// TripParticipant joins a user to an organized trip
type TripParticipant struct {
	ID                  int64           `json:"id" db:"id"`
	TripID              int64           `json:"trip_id" db:"trip_id"`
	UserID              int64           `json:"user_id" db:"user_id"`
	PaymentStatus       string          `json:"payment_status" db:"payment_status"`
	AmountPaid          decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	CommissionCharged   decimal.Decimal `json:"commission_charged" db:"commission_charged"`
	AttendanceStatus    string          `json:"attendance_status" db:"attendance_status"`
	EmergencyContact    string          `json:"emergency_contact" db:"emergency_contact"`
	SpecialRequirements string          `json:"special_requirements" db:"special_requirements"`
	JoinDate            time.Time       `json:"join_date" db:"join_date"`
}

// Payment is one checkout attempt. PaymentDate is set on creation and never
// changes; it anchors the refund window.
type Payment struct {
	ID                 int64           `json:"id" db:"id"`
	TripID             *int64          `json:"trip_id" db:"trip_id"`
	PlanID             *int64          `json:"plan_id" db:"plan_id"`
	UserID             int64           `json:"user_id" db:"user_id"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	PlatformCommission decimal.Decimal `json:"platform_commission" db:"platform_commission"`
	PaymentMethod      string          `json:"payment_method" db:"payment_method"`
	PaymentStatus      string          `json:"payment_status" db:"payment_status"`
	TransactionID      string          `json:"transaction_id" db:"transaction_id"`
	SessionKey         *string         `json:"-" db:"session_key"`
	PaymentDate        time.Time       `json:"payment_date" db:"payment_date"`
	RefundStatus       bool            `json:"refund_status" db:"refund_status"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}
