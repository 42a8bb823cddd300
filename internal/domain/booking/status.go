package booking

import "github.com/atlastours/service-booking/pkg/domain"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// validTransitions is the complete transition table. Anything not listed is
// rejected; completed, cancelled and no_show are terminal.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving to the target status is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(validTransitions[s]) == 0
}

// CanBeCancelled reports whether the booking may still be cancelled.
func (s Status) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", domain.NewValidationError("unknown booking status: " + s)
	}
	return status, nil
}

// PaymentStatus tracks the money side of a booking independently of its
// lifecycle state.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsValid reports whether the payment status is known.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// ParsePaymentStatus converts a stored string into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.IsValid() {
		return "", domain.NewValidationError("unknown payment status: " + s)
	}
	return status, nil
}

// RefundStatus records what happened to the refund on cancellation.
type RefundStatus string

const (
	// RefundNone: nothing was owed back.
	RefundNone RefundStatus = "none"
	// RefundProcessed: the money moved.
	RefundProcessed RefundStatus = "processed"
	// RefundFailed: the refund could not complete; the cancellation still
	// stands and the case needs manual settlement.
	RefundFailed RefundStatus = "failed"
)
