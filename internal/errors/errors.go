package errors

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")
var ErrNotFound = errors.New("resource not found")

// Funnel preconditions
var (
	ErrPlanNotOpen          = errors.New("travel plan is not open for interest")
	ErrPlanNotClosed        = errors.New("travel plan is not closed")
	ErrPlanNotFinalized     = errors.New("travel plan is not finalized")
	ErrPlanTerminal         = errors.New("travel plan is already approved or rejected")
	ErrPlanFull             = errors.New("travel plan has no free places")
	ErrAlreadyJoined        = errors.New("user already joined")
	ErrNotInterested        = errors.New("user has not expressed interest")
	ErrAlreadyAgreed        = errors.New("user already agreed to the final terms")
	ErrNotAgreed            = errors.New("user has not agreed to the final terms")
	ErrPaymentWindowExpired = errors.New("payment deadline has passed")
)

// Trip and ledger preconditions
var (
	ErrTripNotOpen         = errors.New("trip is not open for registration")
	ErrTripFull            = errors.New("trip is full")
	ErrNotParticipant      = errors.New("user is not a participant of this trip")
	ErrAlreadyPaid         = errors.New("payment already completed")
	ErrPaidParticipant     = errors.New("paid participants must request a refund before leaving")
	ErrRefundWindowExpired = errors.New("refund period expired (5-minute limit)")
	ErrNoPayment           = errors.New("no payment found")
	ErrPaymentNotFound     = errors.New("payment record not found")
	ErrPaymentValidation   = errors.New("payment validation failed")
	ErrNotRefundable       = errors.New("unable to process refund, transaction is not valid at the gateway")
	ErrRefundInProgress    = errors.New("refund is already in progress")
)

// ValidationError is returned for request data that must never be persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GatewayError carries the failure reason reported by the payment gateway
// (or the transport error that replaced it).
type GatewayError struct {
	Operation string
	Reason    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Reason)
}

// IsPrecondition reports whether err is a user-facing state precondition error.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrPlanNotOpen, ErrPlanNotClosed, ErrPlanNotFinalized, ErrPlanTerminal, ErrPlanFull,
		ErrAlreadyJoined, ErrNotInterested, ErrAlreadyAgreed, ErrNotAgreed, ErrPaymentWindowExpired,
		ErrTripNotOpen, ErrTripFull, ErrNotParticipant, ErrAlreadyPaid, ErrPaidParticipant,
		ErrRefundWindowExpired, ErrNoPayment, ErrPaymentValidation, ErrNotRefundable, ErrRefundInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
