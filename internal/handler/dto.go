package handler

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/atlastours/service-booking/internal/domain/booking"
	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/internal/domain/timeslot"
	tourDomain "github.com/atlastours/service-booking/internal/domain/tour"
)

// bookingResponse is the wire representation of a booking.
type bookingResponse struct {
	ID                uuid.UUID         `json:"id"`
	BookingNumber     string            `json:"booking_number"`
	TourID            uuid.UUID         `json:"tour_id"`
	SlotID            uuid.UUID         `json:"slot_id"`
	CustomerID        uuid.UUID         `json:"customer_id"`
	TotalParticipants int               `json:"total_participants"`
	CategoryCounts    map[string]int    `json:"category_counts,omitempty"`
	SeatsReserved     int               `json:"seats_reserved"`
	AddonIDs          []string          `json:"addon_ids,omitempty"`
	Price             pricing.Breakdown `json:"price"`
	Currency          string            `json:"currency"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	CancelledBy       string            `json:"cancelled_by,omitempty"`
	CancelReason      string            `json:"cancel_reason,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	RefundStatus      string            `json:"refund_status"`
	RefundPercent     int               `json:"refund_percent"`
	RefundAmountCents int64             `json:"refund_amount_cents"`
	RefundFailure     string            `json:"refund_failure,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

func toBookingResponse(bk *bookingDomain.Booking) bookingResponse {
	return bookingResponse{
		ID:                bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		TourID:            bk.TourID(),
		SlotID:            bk.SlotID(),
		CustomerID:        bk.CustomerID(),
		TotalParticipants: bk.TotalParticipants(),
		CategoryCounts:    bk.CategoryCounts(),
		SeatsReserved:     bk.SeatsReserved(),
		AddonIDs:          bk.AddonIDs(),
		Price:             bk.Price(),
		Currency:          bk.Currency(),
		Status:            string(bk.Status()),
		PaymentStatus:     string(bk.PaymentStatus()),
		CancelledBy:       string(bk.CancelledBy()),
		CancelReason:      bk.CancelReason(),
		CancelledAt:       bk.CancelledAt(),
		RefundStatus:      string(bk.RefundStatus()),
		RefundPercent:     bk.RefundPercent(),
		RefundAmountCents: bk.RefundAmountCents(),
		RefundFailure:     bk.RefundFailure(),
		CreatedAt:         bk.CreatedAt(),
	}
}

func toBookingResponses(bookings []*bookingDomain.Booking) []bookingResponse {
	out := make([]bookingResponse, len(bookings))
	for i, bk := range bookings {
		out[i] = toBookingResponse(bk)
	}
	return out
}

// tourResponse is the wire representation of a tour.
type tourResponse struct {
	ID            uuid.UUID                 `json:"id"`
	ProviderID    uuid.UUID                 `json:"provider_id"`
	Name          string                    `json:"name"`
	Description   string                    `json:"description,omitempty"`
	Currency      string                    `json:"currency"`
	PricingConfig pricing.Configuration     `json:"pricing_config"`
	CancelPolicy  policy.CancellationPolicy `json:"cancel_policy"`
	Active        bool                      `json:"active"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func toTourResponse(t *tourDomain.Tour) tourResponse {
	return tourResponse{
		ID:            t.ID(),
		ProviderID:    t.ProviderID(),
		Name:          t.Name(),
		Description:   t.Description(),
		Currency:      t.Currency(),
		PricingConfig: t.PricingConfig(),
		CancelPolicy:  t.CancelPolicy(),
		Active:        t.Active(),
		CreatedAt:     t.CreatedAt(),
	}
}

func toTourResponses(tours []*tourDomain.Tour) []tourResponse {
	out := make([]tourResponse, len(tours))
	for i, t := range tours {
		out[i] = toTourResponse(t)
	}
	return out
}

// slotResponse is the wire representation of a time slot.
type slotResponse struct {
	ID        uuid.UUID `json:"id"`
	TourID    uuid.UUID `json:"tour_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
	Committed int       `json:"committed"`
	Available int       `json:"available"`
}

func toSlotResponse(s *timeslot.TimeSlot) slotResponse {
	return slotResponse{
		ID:        s.ID(),
		TourID:    s.TourID(),
		StartTime: s.StartTime(),
		EndTime:   s.EndTime(),
		Capacity:  s.Capacity(),
		Committed: s.Committed(),
		Available: s.Available(),
	}
}

func toSlotResponses(slots []*timeslot.TimeSlot) []slotResponse {
	out := make([]slotResponse, len(slots))
	for i, s := range slots {
		out[i] = toSlotResponse(s)
	}
	return out
}
