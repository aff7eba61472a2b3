package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Funnel timing and quorum rules
const (
	JoinWindow        = 5 * time.Minute
	PaymentWindow     = 5 * time.Minute
	RefundWindow      = 5 * time.Minute
	DepartureLeadTime = 5 * time.Minute

	// MinQuorum is the number of paid, agreed participants needed to avoid
	// rejection and to confirm a trip.
	MinQuorum = 2

	MinDurationDays     = 2
	MaxDurationDays     = 14
	MinPlanCapacity     = 2
	MaxPlanCapacity     = 5
	DefaultPlanCapacity = 4
)

var Purposes = []string{"leisure", "business", "adventure", "cultural", "religious", "family", "other"}
var BudgetRanges = []string{"budget", "mid-range", "luxury"}

var planTransitions = map[string][]string{
	PlanStatusOpen:      {PlanStatusClosed, PlanStatusRejected},
	PlanStatusClosed:    {PlanStatusFinalized, PlanStatusRejected},
	PlanStatusFinalized: {PlanStatusApproved, PlanStatusRejected},
}

// CanTransitionPlan reports whether the funnel allows moving from one status to another.
// approved and rejected have no outgoing edges, so a plan never reopens.
func CanTransitionPlan(from, to string) bool {
	for _, next := range planTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalPlanStatus reports whether no further transition is possible.
func IsTerminalPlanStatus(status string) bool {
	return status == PlanStatusApproved || status == PlanStatusRejected
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DurationDays counts both the start and the end day.
func DurationDays(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours()/24) + 1
}

func (p *TravelPlan) DurationDays() int {
	return DurationDays(p.StartDate, p.EndDate)
}

// IsJoinWindowOpen is false once the plan left open, whatever the deadline says.
func (p *TravelPlan) IsJoinWindowOpen(now time.Time) bool {
	return p.Status == PlanStatusOpen && !now.After(p.JoinDeadline)
}

// JoinWindowExpired reports whether the sweep should close the plan.
func (p *TravelPlan) JoinWindowExpired(now time.Time) bool {
	return p.Status == PlanStatusOpen && now.After(p.JoinDeadline)
}

// PaymentDeadlinePassed is false for plans that were never finalized.
func (p *TravelPlan) PaymentDeadlinePassed(now time.Time) bool {
	return p.PaymentDeadline != nil && now.After(*p.PaymentDeadline)
}

// IsPaymentWindowOpen reports whether agreed users may still pay.
func (p *TravelPlan) IsPaymentWindowOpen(now time.Time) bool {
	return p.Status == PlanStatusFinalized && p.PaymentDeadline != nil && !now.After(*p.PaymentDeadline)
}

// ShouldMaterialize is the formation trigger: either the plan filled up
// before its deadline, or the deadline passed with at least a quorum paid.
func (p *TravelPlan) ShouldMaterialize(paidCount int, now time.Time) bool {
	if paidCount >= p.MaxParticipants {
		return true
	}
	return p.PaymentDeadlinePassed(now) && paidCount >= MinQuorum
}

// ShouldRejectUnfunded reports whether the payment deadline passed without quorum.
func (p *TravelPlan) ShouldRejectUnfunded(paidCount int, now time.Time) bool {
	return p.PaymentDeadlinePassed(now) && paidCount < MinQuorum
}

// Finalize applies staff-assigned costs and logistics and opens the payment window.
func (p *TravelPlan) Finalize(costs PlanCosts, now time.Time) {
	p.AccommodationCost = decimal.NewNullDecimal(costs.AccommodationCost)
	p.FoodCost = decimal.NewNullDecimal(costs.FoodCost)
	p.TransportationCost = decimal.NewNullDecimal(costs.TransportationCost)
	p.DriverPayment = decimal.NewNullDecimal(costs.DriverPayment)
	p.OtherCosts = decimal.NewNullDecimal(costs.OtherCosts)
	p.PlatformCommission = decimal.NewNullDecimal(costs.PlatformCommission)
	p.TransportationDetails = costs.TransportationDetails
	p.AccommodationDetails = costs.AccommodationDetails
	p.MealArrangements = costs.MealArrangements
	p.Itinerary = costs.Itinerary

	deadline := now.Add(PaymentWindow)
	finalizedAt := now
	p.PaymentDeadline = &deadline
	p.FinalizedAt = &finalizedAt
	p.Status = PlanStatusFinalized
	p.RecalculateCosts()
}

// RecalculateCosts derives combined transport and the per-person total.
// Must run on every write that touches a cost field.
func (p *TravelPlan) RecalculateCosts() {
	if p.TransportationCost.Valid || p.DriverPayment.Valid {
		combined := decimal.Zero
		if p.TransportationCost.Valid {
			combined = combined.Add(p.TransportationCost.Decimal)
		}
		if p.DriverPayment.Valid {
			combined = combined.Add(p.DriverPayment.Decimal)
		}
		p.CombinedTransportationCost = decimal.NewNullDecimal(combined)
	}

	if p.AccommodationCost.Valid && p.FoodCost.Valid && p.TransportationCost.Valid && p.OtherCosts.Valid {
		total := p.AccommodationCost.Decimal.
			Add(p.FoodCost.Decimal).
			Add(p.CombinedTransportationCost.Decimal).
			Add(p.OtherCosts.Decimal)
		p.FinalCostPerPerson = decimal.NewNullDecimal(total.Round(2))
	}
}

// AmountDue is what one participant pays for the plan.
func (p *TravelPlan) AmountDue() (decimal.Decimal, bool) {
	if !p.FinalCostPerPerson.Valid || !p.FinalCostPerPerson.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return p.FinalCostPerPerson.Decimal, true
}

// NewTripSnapshot builds the organized trip for a materializing plan.
// Logistics are copied, not linked.
func (p *TravelPlan) NewTripSnapshot(paidCount int) *OrganizedTrip {
	planID := p.ID
	perPerson := p.FinalCostPerPerson.Decimal
	departure := DateOnly(p.StartDate)
	return &OrganizedTrip{
		TravelPlanID:          &planID,
		TripName:              fmt.Sprintf("%s - %s", p.Destination, p.StartDate.Format("Jan 02")),
		Destination:           p.Destination,
		MaxParticipants:       p.MaxParticipants,
		TotalParticipants:     paidCount,
		BaseCost:              perPerson.Mul(decimal.NewFromInt(int64(paidCount))),
		PlatformCommission:    p.PlatformCommission.Decimal,
		FinalCostPerPerson:    perPerson,
		DriverPayment:         p.DriverPayment.Decimal,
		TransportationDetails: p.TransportationDetails,
		AccommodationDetails:  p.AccommodationDetails,
		MealArrangements:      p.MealArrangements,
		Itinerary:             p.Itinerary,
		TripStatus:            TripStatusConfirmed,
		DepartureTime:         departure,
		ReturnTime:            DateOnly(p.EndDate).Add(24 * time.Hour),
	}
}

// EnsureDepartureLead pushes the departure to at least now+DepartureLeadTime,
// shifting the return by the same amount when it would otherwise precede it.
// Reports whether anything changed.
func (t *OrganizedTrip) EnsureDepartureLead(now time.Time) bool {
	earliest := now.Add(DepartureLeadTime)
	if !t.DepartureTime.Before(earliest) {
		return false
	}
	length := t.ReturnTime.Sub(t.DepartureTime)
	t.DepartureTime = earliest
	if length < 0 {
		length = 0
	}
	if t.ReturnTime.Before(earliest) {
		t.ReturnTime = earliest.Add(length)
	}
	return true
}

// NextLifecycleStatus returns the status the sweep should move the trip to, if any.
func (t *OrganizedTrip) NextLifecycleStatus(now time.Time) (string, bool) {
	switch t.TripStatus {
	case TripStatusConfirmed:
		if !now.Before(t.ReturnTime) {
			return TripStatusCompleted, true
		}
		if !now.Before(t.DepartureTime) {
			return TripStatusOngoing, true
		}
	case TripStatusOngoing:
		if !now.Before(t.ReturnTime) {
			return TripStatusCompleted, true
		}
	}
	return "", false
}

// RefundDeadline is payment_date plus the refund window.
func (p *Payment) RefundDeadline() time.Time {
	return p.PaymentDate.Add(RefundWindow)
}

// CanRefund uses the strict inequality now < deadline, so a request that
// lands exactly on the boundary is refused.
func (p *Payment) CanRefund(now time.Time) bool {
	return p.PaymentStatus == PaymentCompleted && now.Before(p.RefundDeadline())
}
