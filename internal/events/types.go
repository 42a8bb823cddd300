package events

import (
	"time"

	"github.com/google/uuid"
)

// Event source identifier used in CloudEvent envelopes.
const Source = "service-booking"

// Event types published on the booking events topic.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingCompleted = "booking.completed"
	TypeBookingNoShow    = "booking.no_show"
)

// Event types consumed from the payment events topic.
const (
	TypePaymentSucceeded       = "payment.succeeded"
	TypePaymentFailed          = "payment.failed"
	TypePaymentPayoutCompleted = "payment.payout.completed"
)

// BookingCreatedEvent is published when a booking is created.
type BookingCreatedEvent struct {
	BookingID         uuid.UUID `json:"booking_id"`
	BookingNumber     string    `json:"booking_number"`
	TourID            uuid.UUID `json:"tour_id"`
	SlotID            uuid.UUID `json:"slot_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	TotalParticipants int       `json:"total_participants"`
	SeatsReserved     int       `json:"seats_reserved"`
	TotalCents        int64     `json:"total_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// BookingConfirmedEvent is published when payment clears and the booking
// moves to confirmed.
type BookingConfirmedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	CustomerID    uuid.UUID `json:"customer_id"`
	ChargeRef     string    `json:"charge_ref,omitempty"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a booking is cancelled, whatever
// the refund outcome was.
type BookingCancelledEvent struct {
	BookingID         uuid.UUID `json:"booking_id"`
	BookingNumber     string    `json:"booking_number"`
	CustomerID        uuid.UUID `json:"customer_id"`
	CancelledBy       string    `json:"cancelled_by"`
	Reason            string    `json:"reason,omitempty"`
	RefundStatus      string    `json:"refund_status"`
	RefundPercent     int       `json:"refund_percent"`
	RefundAmountCents int64     `json:"refund_amount_cents"`
	RefundMethod      string    `json:"refund_method,omitempty"`
	CancelledAt       time.Time `json:"cancelled_at"`
}

// BookingCompletedEvent is published when a booking is marked completed.
type BookingCompletedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	TourID        uuid.UUID `json:"tour_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// BookingNoShowEvent is published when a customer fails to show up.
type BookingNoShowEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	TourID        uuid.UUID `json:"tour_id"`
	MarkedAt      time.Time `json:"marked_at"`
}

// PaymentSucceededEvent arrives when the payment service captures a charge
// for a booking asynchronously.
type PaymentSucceededEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	ChargeRef string    `json:"charge_ref"`
}

// PaymentFailedEvent arrives when a charge attempt fails.
type PaymentFailedEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	Reason    string    `json:"reason,omitempty"`
}

// PayoutCompletedEvent arrives when the provider has been paid out for a
// booking. After this the only refund path is a transfer reversal.
type PayoutCompletedEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	PayoutRef string    `json:"payout_ref"`
}
