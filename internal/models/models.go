package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// CreatePlanRequest - модель для создания плана поездки
type CreatePlanRequest struct {
	Destination     string `json:"destination" binding:"required"`
	StartDate       string `json:"start_date" binding:"required"`
	EndDate         string `json:"end_date" binding:"required"`
	Purpose         string `json:"purpose"`
	BudgetRange     string `json:"budget_range"`
	Description     string `json:"description"`
	MaxParticipants int    `json:"max_participants"`
}

// UpdatePlanRequest - редактирование плана, пока он открыт
type UpdatePlanRequest = CreatePlanRequest

// PlanCosts - стоимость и логистика, назначаемые сотрудником при финализации
type PlanCosts struct {
	AccommodationCost     decimal.Decimal `json:"accommodation_cost"`
	FoodCost              decimal.Decimal `json:"food_cost"`
	TransportationCost    decimal.Decimal `json:"transportation_cost"`
	DriverPayment         decimal.Decimal `json:"driver_payment"`
	OtherCosts            decimal.Decimal `json:"other_costs"`
	PlatformCommission    decimal.Decimal `json:"platform_commission"`
	TransportationDetails string          `json:"transportation_details"`
	AccommodationDetails  string          `json:"accommodation_details"`
	MealArrangements      string          `json:"meal_arrangements"`
	Itinerary             string          `json:"itinerary"`
}

// PlanSearchFilter - фильтр поиска попутчиков
type PlanSearchFilter struct {
	Destination   string     `form:"destination"`
	StartDate     *time.Time `form:"-"`
	BudgetRange   string     `form:"budget_range"`
	Purpose       string     `form:"purpose"`
	ExcludeUserID int64      `form:"-"`
	Today         time.Time  `form:"-"`
	Limit         int        `form:"limit"`
}

// PlanDetailResponse - план с данными, зависящими от пользователя
type PlanDetailResponse struct {
	Plan              *TravelPlan `json:"plan"`
	InterestCount     int         `json:"interest_count"`
	JoinWindowOpen    bool        `json:"join_window_open"`
	PaymentWindowOpen bool        `json:"payment_window_open"`
	Interested        bool        `json:"interested"`
	Agreed            bool        `json:"agreed"`
	TripID            *int64      `json:"trip_id,omitempty"`
}

// PlanSearchResult - элемент результата поиска
type PlanSearchResult struct {
	Plan       TravelPlan `json:"plan"`
	Compatible bool       `json:"compatible"`
}

// JoinTripRequest - форма присоединения к организованной поездке
type JoinTripRequest struct {
	EmergencyContact    string `json:"emergency_contact"`
	SpecialRequirements string `json:"special_requirements"`
	AgreeToTerms        bool   `json:"agree_to_terms"`
}

// TripDetailResponse - поездка со свободными местами и статусом участника
type TripDetailResponse struct {
	Trip           *OrganizedTrip    `json:"trip"`
	AvailableSlots int               `json:"available_slots"`
	IsFinalized    bool              `json:"is_finalized"`
	Participants   []TripParticipant `json:"participants,omitempty"`
	Participant    *TripParticipant  `json:"participant,omitempty"`
}

// TripListItem - элемент списка поездок
type TripListItem struct {
	OrganizedTrip
	AvailableSlots int `json:"available_slots"`
}

// Customer - данные покупателя для платёжной сессии
type Customer struct {
	UserID  int64
	Name    string
	Email   string
	Phone   string
	Address string
}

// CheckoutResponse - результат инициализации платежа
type CheckoutResponse struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	RedirectURL   string          `json:"redirect_url"`
}

// GatewayCallback - поля, которые шлюз присылает на success/ipn
type GatewayCallback struct {
	ValID      string `form:"val_id"`
	TranID     string `form:"tran_id"`
	Amount     string `form:"amount"`
	CardType   string `form:"card_type"`
	BankTranID string `form:"bank_tran_id"`
}

// ConfirmResult - итог подтверждения платежа
// NeedsReconciliation - деньги получены, но платеж не удалось привязать к поездке
type ConfirmResult struct {
	Payment             *Payment `json:"payment"`
	Completed           bool     `json:"completed"`
	AlreadyProcessed    bool     `json:"already_processed"`
	TripID              *int64   `json:"trip_id,omitempty"`
	NeedsReconciliation bool     `json:"needs_reconciliation,omitempty"`
}

// RefundStatusResponse - может ли участник вернуть деньги
type RefundStatusResponse struct {
	Payment          *Payment  `json:"payment"`
	CanRefund        bool      `json:"can_refund"`
	RefundDeadline   time.Time `json:"refund_deadline"`
	SecondsRemaining int64     `json:"seconds_remaining"`
}

// PaymentHistoryGroup - платежи пользователя, сгруппированные по поездке
type PaymentHistoryGroup struct {
	TripID         *int64          `json:"trip_id"`
	PlanID         *int64          `json:"plan_id"`
	Payments       []Payment       `json:"payments"`
	CompletedTotal decimal.Decimal `json:"completed_total"`
}

// PaymentHistoryResponse - история платежей
type PaymentHistoryResponse struct {
	Groups         []PaymentHistoryGroup `json:"groups"`
	CompletedTotal decimal.Decimal       `json:"completed_total"`
}
