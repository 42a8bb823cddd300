package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/atlastours/service-booking/internal/domain/payment"
	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/pkg/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain. It is created in
// pending/pending, never physically deleted, and is the unit of every
// subsequent state transition.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	tourID        uuid.UUID
	slotID        uuid.UUID
	customerID    uuid.UUID

	totalParticipants int
	categoryCounts    map[string]int
	seatsReserved     int
	addonIDs          []string

	price    pricing.Breakdown
	currency string

	status        Status
	paymentStatus PaymentStatus
	chargeRef     string

	paidOut   bool
	payoutRef string

	cancelledBy       policy.CancelledBy
	cancelReason      string
	cancelledAt       *time.Time
	refundStatus      RefundStatus
	refundPercent     int
	refundAmountCents int64
	refundRef         string
	refundFailure     string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "TB-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "TB-" + string(result), nil
}

// NewBooking creates a new Booking aggregate. Free bookings skip the payment
// gate entirely: no processor interaction is needed, so they are created
// already confirmed and paid.
func NewBooking(
	tourID, slotID, customerID uuid.UUID,
	totalParticipants int,
	categoryCounts map[string]int,
	seatsReserved int,
	addonIDs []string,
	price pricing.Breakdown,
	currency string,
) (*Booking, error) {
	if tourID == uuid.Nil {
		return nil, domain.NewValidationError("tour ID is required")
	}
	if slotID == uuid.Nil {
		return nil, domain.NewValidationError("time slot ID is required")
	}
	if customerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if totalParticipants < 1 {
		return nil, domain.NewValidationError("at least one participant is required")
	}
	if seatsReserved < 0 {
		return nil, domain.NewValidationError("reserved seats must not be negative")
	}
	if price.TotalCents < 0 {
		return nil, domain.NewValidationError("booking total must not be negative")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	status := StatusPending
	paymentStatus := PaymentPending
	if price.IsFree() {
		status = StatusConfirmed
		paymentStatus = PaymentPaid
	}

	now := time.Now().UTC()
	return &Booking{
		id:                uuid.New(),
		bookingNumber:     bookingNumber,
		tourID:            tourID,
		slotID:            slotID,
		customerID:        customerID,
		totalParticipants: totalParticipants,
		categoryCounts:    categoryCounts,
		seatsReserved:     seatsReserved,
		addonIDs:          addonIDs,
		price:             price,
		currency:          currency,
		status:            status,
		paymentStatus:     paymentStatus,
		refundStatus:      RefundNone,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	bookingNumber string,
	tourID, slotID, customerID uuid.UUID,
	totalParticipants int,
	categoryCounts map[string]int,
	seatsReserved int,
	addonIDs []string,
	price pricing.Breakdown,
	currency string,
	status Status,
	paymentStatus PaymentStatus,
	chargeRef string,
	paidOut bool,
	payoutRef string,
	cancelledBy policy.CancelledBy,
	cancelReason string,
	cancelledAt *time.Time,
	refundStatus RefundStatus,
	refundPercent int,
	refundAmountCents int64,
	refundRef string,
	refundFailure string,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                id,
		bookingNumber:     bookingNumber,
		tourID:            tourID,
		slotID:            slotID,
		customerID:        customerID,
		totalParticipants: totalParticipants,
		categoryCounts:    categoryCounts,
		seatsReserved:     seatsReserved,
		addonIDs:          addonIDs,
		price:             price,
		currency:          currency,
		status:            status,
		paymentStatus:     paymentStatus,
		chargeRef:         chargeRef,
		paidOut:           paidOut,
		payoutRef:         payoutRef,
		cancelledBy:       cancelledBy,
		cancelReason:      cancelReason,
		cancelledAt:       cancelledAt,
		refundStatus:      refundStatus,
		refundPercent:     refundPercent,
		refundAmountCents: refundAmountCents,
		refundRef:         refundRef,
		refundFailure:     refundFailure,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// TourID returns the booked tour's ID.
func (b *Booking) TourID() uuid.UUID { return b.tourID }

// SlotID returns the booked time slot's ID.
func (b *Booking) SlotID() uuid.UUID { return b.slotID }

// CustomerID returns the booking customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// TotalParticipants returns the total party size.
func (b *Booking) TotalParticipants() int { return b.totalParticipants }

// CategoryCounts returns the participant breakdown keyed by category ID.
func (b *Booking) CategoryCounts() map[string]int { return b.categoryCounts }

// SeatsReserved returns how many capacity seats this booking holds.
func (b *Booking) SeatsReserved() int { return b.seatsReserved }

// AddonIDs returns the selected add-on IDs.
func (b *Booking) AddonIDs() []string { return b.addonIDs }

// Price returns the computed price breakdown.
func (b *Booking) Price() pricing.Breakdown { return b.price }

// Currency returns the settlement currency code.
func (b *Booking) Currency() string { return b.currency }

// Status returns the current lifecycle status.
func (b *Booking) Status() Status { return b.status }

// PaymentStatus returns the current payment status.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// ChargeRef returns the processor charge reference, if the booking was charged.
func (b *Booking) ChargeRef() string { return b.chargeRef }

// PaidOut reports whether funds were already transferred to the provider.
func (b *Booking) PaidOut() bool { return b.paidOut }

// PayoutRef returns the payout reference, if funds were transferred.
func (b *Booking) PayoutRef() string { return b.payoutRef }

// CancelledBy returns who cancelled the booking, if cancelled.
func (b *Booking) CancelledBy() policy.CancelledBy { return b.cancelledBy }

// CancelReason returns the cancellation reason.
func (b *Booking) CancelReason() string { return b.cancelReason }

// CancelledAt returns when the booking was cancelled.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// RefundStatus returns the refund sub-step outcome.
func (b *Booking) RefundStatus() RefundStatus { return b.refundStatus }

// RefundPercent returns the refunded percentage of the paid amount.
func (b *Booking) RefundPercent() int { return b.refundPercent }

// RefundAmountCents returns the refunded amount in minor units.
func (b *Booking) RefundAmountCents() int64 { return b.refundAmountCents }

// RefundRef returns the processor refund reference.
func (b *Booking) RefundRef() string { return b.refundRef }

// RefundFailure returns why the refund failed, if it did.
func (b *Booking) RefundFailure() string { return b.refundFailure }

// PayoutState returns the explicit payout state used by refund routing.
func (b *Booking) PayoutState() payment.PayoutState {
	if b.paidOut {
		return payment.PaidOut
	}
	return payment.PayoutPending
}

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// ConfirmPayment records a successful charge and confirms the booking in one
// step, so a confirmed-but-unpaid booking can never exist.
func (b *Booking) ConfirmPayment(chargeRef string) error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	b.paymentStatus = PaymentPaid
	b.chargeRef = chargeRef
	b.status = StatusConfirmed
	b.updatedAt = time.Now().UTC()
	return nil
}

// MarkPaymentFailed records a failed charge attempt. The booking stays
// pending so creation can be retried safely.
func (b *Booking) MarkPaymentFailed() error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusPending))
	}
	b.paymentStatus = PaymentFailed
	b.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions a confirmed, paid booking to completed after the tour ran.
func (b *Booking) Complete() error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	if b.paymentStatus != PaymentPaid {
		return domain.NewInvalidStateError(string(b.paymentStatus), string(PaymentPaid))
	}
	b.status = StatusCompleted
	b.updatedAt = time.Now().UTC()
	return nil
}

// MarkNoShow transitions a confirmed booking to no_show once the slot has started.
func (b *Booking) MarkNoShow(now, slotStart time.Time) error {
	if !b.status.CanTransitionTo(StatusNoShow) {
		return domain.NewInvalidStateError(string(b.status), string(StatusNoShow))
	}
	if slotStart.After(now) {
		return domain.NewValidationError("cannot mark no-show before the tour starts")
	}
	b.status = StatusNoShow
	b.updatedAt = time.Now().UTC()
	return nil
}

// MarkPaidOut records that funds for this booking were transferred to the
// provider. After this, refunds must claw money back via transfer reversal.
func (b *Booking) MarkPaidOut(payoutRef string) error {
	if b.paymentStatus != PaymentPaid {
		return domain.NewInvalidStateError(string(b.paymentStatus), string(PaymentPaid))
	}
	if payoutRef == "" {
		return domain.NewValidationError("payout reference is required")
	}
	b.paidOut = true
	b.payoutRef = payoutRef
	b.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions the booking to cancelled, recording the refund
// calculation and the settlement outcome. The cancellation always commits:
// a failed refund is recorded as such, never rolled back.
func (b *Booking) Cancel(by policy.CancelledBy, reason string, calc policy.RefundCalculation, outcome payment.RefundOutcome) error {
	if !b.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}

	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelledBy = by
	b.cancelReason = reason
	b.cancelledAt = &now
	b.refundPercent = calc.Percent
	b.refundAmountCents = calc.AmountCents

	switch outcome.Status {
	case payment.SettlementProcessed:
		b.refundStatus = RefundProcessed
		b.refundRef = outcome.RefundRef
		b.paymentStatus = PaymentRefunded
	case payment.SettlementFailed:
		b.refundStatus = RefundFailed
		b.refundFailure = outcome.FailureReason
	default:
		b.refundStatus = RefundNone
	}

	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
