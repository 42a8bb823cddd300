package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/atlastours/service-booking/internal/domain/booking"
	"github.com/atlastours/service-booking/internal/domain/payment"
	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/internal/domain/timeslot"
	tourDomain "github.com/atlastours/service-booking/internal/domain/tour"
	"github.com/atlastours/service-booking/internal/events"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/domain"
)

// EventPublisher publishes booking lifecycle events. Publishing is
// fire-and-forget; implementations must not fail the calling operation.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, data interface{})
}

// BookingService orchestrates the booking lifecycle: pricing, capacity,
// payment, cancellation and refund settlement.
type BookingService struct {
	bookings  bookingDomain.Repository
	tours     tourDomain.Repository
	slots     timeslot.Repository
	gateway   payment.Gateway
	router    *payment.SettlementRouter
	publisher EventPublisher
	logger    *zap.Logger
}

// NewBookingService creates a BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	tours tourDomain.Repository,
	slots timeslot.Repository,
	gateway payment.Gateway,
	router *payment.SettlementRouter,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		tours:     tours,
		slots:     slots,
		gateway:   gateway,
		router:    router,
		publisher: publisher,
		logger:    logger,
	}
}

// QuoteInput describes a price quote request.
type QuoteInput struct {
	TourID            uuid.UUID
	TotalParticipants int
	CategoryCounts    map[string]int
	AddonIDs          []string
}

// QuotePrice prices a prospective booking without creating anything.
func (s *BookingService) QuotePrice(ctx context.Context, in QuoteInput) (pricing.Breakdown, error) {
	t, err := s.tours.FindByID(ctx, in.TourID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return pricing.Calculate(t.PricingConfig(), pricing.Input{
		TotalParticipants: in.TotalParticipants,
		CategoryCounts:    in.CategoryCounts,
		AddonIDs:          in.AddonIDs,
		Currency:          t.Currency(),
	})
}

// CreateBookingInput describes a booking creation request.
type CreateBookingInput struct {
	TourID            uuid.UUID
	SlotID            uuid.UUID
	CustomerID        uuid.UUID
	TotalParticipants int
	CategoryCounts    map[string]int
	AddonIDs          []string
	CustomerRef       string
	PaymentMethodRef  string
}

// CreateBooking prices the request, reserves seats, persists the booking and
// attempts the charge. A failed charge leaves the booking pending with its
// seats held and is returned alongside it as a payment error, so the customer
// can retry payment; a failed persist releases the seats again.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*bookingDomain.Booking, error) {
	t, err := s.tours.FindByID(ctx, in.TourID)
	if err != nil {
		return nil, err
	}
	if !t.Active() {
		return nil, domain.NewValidationError("tour is not open for booking")
	}

	slot, err := s.slots.FindByID(ctx, in.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.TourID() != t.ID() {
		return nil, domain.NewValidationError("time slot does not belong to this tour")
	}
	if slot.HasStarted(time.Now().UTC()) {
		return nil, domain.NewValidationError("time slot has already started")
	}

	breakdown, err := pricing.Calculate(t.PricingConfig(), pricing.Input{
		TotalParticipants: in.TotalParticipants,
		CategoryCounts:    in.CategoryCounts,
		AddonIDs:          in.AddonIDs,
		Currency:          t.Currency(),
	})
	if err != nil {
		return nil, err
	}

	// Seats are counted at booking time so later pricing changes on the tour
	// cannot desync the release from the original reservation.
	seats := t.PricingConfig().CountingParticipants(in.TotalParticipants, in.CategoryCounts)

	bk, err := bookingDomain.NewBooking(
		t.ID(), slot.ID(), in.CustomerID,
		in.TotalParticipants, in.CategoryCounts, seats,
		in.AddonIDs, breakdown, t.Currency(),
	)
	if err != nil {
		return nil, err
	}

	if seats > 0 {
		if err := s.slots.Reserve(ctx, slot.ID(), seats); err != nil {
			return nil, err
		}
	}

	if err := s.bookings.Save(ctx, bk); err != nil {
		s.releaseSeats(ctx, slot.ID(), seats, bk.ID())
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}

	var chargeErr error
	if !breakdown.IsFree() {
		chargeErr = s.attemptCharge(ctx, bk, t, in)
	}

	s.publisher.Publish(ctx, events.TypeBookingCreated, bk.ID().String(), events.BookingCreatedEvent{
		BookingID:         bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		TourID:            bk.TourID(),
		SlotID:            bk.SlotID(),
		CustomerID:        bk.CustomerID(),
		TotalParticipants: bk.TotalParticipants(),
		SeatsReserved:     bk.SeatsReserved(),
		TotalCents:        breakdown.TotalCents,
		Currency:          bk.Currency(),
		Status:            string(bk.Status()),
		CreatedAt:         bk.CreatedAt(),
	})
	if bk.Status() == bookingDomain.StatusConfirmed {
		s.publishConfirmed(ctx, bk)
	}

	// The booking itself was created either way; a failed charge is reported
	// alongside it so the caller knows payment is still owed.
	return bk, chargeErr
}

// attemptCharge runs the synchronous charge for a paid booking. On failure
// the booking stays pending with the failure recorded on it, and a typed
// payment error is returned for the caller.
func (s *BookingService) attemptCharge(ctx context.Context, bk *bookingDomain.Booking, t *tourDomain.Tour, in CreateBookingInput) error {
	chargeRef, chargeErr := s.gateway.Charge(ctx, payment.ChargeRequest{
		AmountCents:      bk.Price().TotalCents,
		Currency:         bk.Currency(),
		CustomerRef:      in.CustomerRef,
		PaymentMethodRef: in.PaymentMethodRef,
		Description:      fmt.Sprintf("Booking %s for %s", bk.BookingNumber(), t.Name()),
		IdempotencyKey:   "charge-" + bk.ID().String(),
	})
	if chargeErr != nil {
		s.logger.Warn("charge failed",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(chargeErr))
		if err := bk.MarkPaymentFailed(); err != nil {
			return err
		}
	} else {
		if err := bk.ConfirmPayment(chargeRef); err != nil {
			s.logger.Error("failed to confirm paid booking",
				zap.String("booking_id", bk.ID().String()),
				zap.Error(err))
			return err
		}
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		s.logger.Error("failed to persist charge outcome",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err))
	}

	if chargeErr != nil {
		return domain.NewPaymentError(fmt.Sprintf("charge failed: %v", chargeErr))
	}
	return nil
}

// CancelBooking cancels a booking on behalf of the given actor, evaluating
// the tour's cancellation policy and routing any refund. Cancelling an
// already-cancelled booking returns it unchanged; the refund is never run a
// second time.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID uuid.UUID, role, reason string) (*bookingDomain.Booking, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if bk.Status() == bookingDomain.StatusCancelled {
		return bk, nil
	}
	if !bk.Status().CanBeCancelled() {
		return nil, domain.NewInvalidStateError(string(bk.Status()), string(bookingDomain.StatusCancelled))
	}

	t, err := s.tours.FindByID(ctx, bk.TourID())
	if err != nil {
		return nil, err
	}

	by, err := s.cancellationActor(bk, t, actorID, role)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.FindByID(ctx, bk.SlotID())
	if err != nil {
		return nil, err
	}

	// Only money actually captured can be refunded.
	var refundable int64
	if bk.PaymentStatus() == bookingDomain.PaymentPaid {
		refundable = bk.Price().TotalCents
	}

	calc := policy.Evaluate(refundable, slot.StartTime(), time.Now().UTC(), t.CancelPolicy(), by)
	if !calc.CanCancel {
		return nil, domain.NewValidationError(calc.RuleDescription)
	}

	outcome := payment.RefundOutcome{Status: payment.SettlementSkipped}
	if calc.IsRefundable && calc.AmountCents > 0 {
		outcome = s.router.Settle(ctx, payment.SettlementRequest{
			BookingID:          bk.ID().String(),
			AmountCents:        calc.AmountCents,
			Currency:           bk.Currency(),
			ChargeRef:          bk.ChargeRef(),
			PayoutState:        bk.PayoutState(),
			PayoutRef:          bk.PayoutRef(),
			ProviderAccountRef: t.ProviderAccountRef(),
		})
	}

	if err := bk.Cancel(by, reason, calc, outcome); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	if bk.SeatsReserved() > 0 {
		s.releaseSeats(ctx, bk.SlotID(), bk.SeatsReserved(), bk.ID())
	}

	s.publisher.Publish(ctx, events.TypeBookingCancelled, bk.ID().String(), events.BookingCancelledEvent{
		BookingID:         bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		CustomerID:        bk.CustomerID(),
		CancelledBy:       string(by),
		Reason:            reason,
		RefundStatus:      string(bk.RefundStatus()),
		RefundPercent:     bk.RefundPercent(),
		RefundAmountCents: bk.RefundAmountCents(),
		RefundMethod:      string(outcome.Method),
		CancelledAt:       time.Now().UTC(),
	})

	return bk, nil
}

// cancellationActor maps the caller to the party recorded on the
// cancellation, enforcing who may cancel which booking.
func (s *BookingService) cancellationActor(bk *bookingDomain.Booking, t *tourDomain.Tour, actorID uuid.UUID, role string) (policy.CancelledBy, error) {
	switch role {
	case auth.RoleAdmin:
		return policy.CancelledByAdmin, nil
	case auth.RoleProvider:
		if t.ProviderID() != actorID {
			return "", domain.NewForbiddenError("booking belongs to another provider's tour")
		}
		return policy.CancelledByProvider, nil
	default:
		if bk.CustomerID() != actorID {
			return "", domain.NewForbiddenError("booking belongs to another customer")
		}
		return policy.CancelledByCustomer, nil
	}
}

// CompleteBooking marks a confirmed booking completed after the tour ran.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*bookingDomain.Booking, error) {
	bk, t, err := s.findForProvider(ctx, bookingID, actorID, role)
	if err != nil {
		return nil, err
	}

	if err := bk.Complete(); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TypeBookingCompleted, bk.ID().String(), events.BookingCompletedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		TourID:        t.ID(),
		CompletedAt:   time.Now().UTC(),
	})
	return bk, nil
}

// MarkNoShow marks a confirmed booking as no_show once its slot has started.
// The customer keeps no refund claim and seats are not released.
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*bookingDomain.Booking, error) {
	bk, t, err := s.findForProvider(ctx, bookingID, actorID, role)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.FindByID(ctx, bk.SlotID())
	if err != nil {
		return nil, err
	}

	if err := bk.MarkNoShow(time.Now().UTC(), slot.StartTime()); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TypeBookingNoShow, bk.ID().String(), events.BookingNoShowEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		TourID:        t.ID(),
		MarkedAt:      time.Now().UTC(),
	})
	return bk, nil
}

func (s *BookingService) findForProvider(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*bookingDomain.Booking, *tourDomain.Tour, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.tours.FindByID(ctx, bk.TourID())
	if err != nil {
		return nil, nil, err
	}
	if role != auth.RoleAdmin && t.ProviderID() != actorID {
		return nil, nil, domain.NewForbiddenError("booking belongs to another provider's tour")
	}
	return bk, t, nil
}

// ConfirmPayment records an asynchronous successful charge for a pending
// booking. Already-confirmed bookings are left alone so redelivered events
// stay harmless.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, chargeRef string) error {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if bk.Status() == bookingDomain.StatusConfirmed && bk.PaymentStatus() == bookingDomain.PaymentPaid {
		return nil
	}

	if err := bk.ConfirmPayment(chargeRef); err != nil {
		return err
	}
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return err
	}

	s.publishConfirmed(ctx, bk)
	return nil
}

// MarkPaymentFailed records an asynchronous failed charge attempt.
func (s *BookingService) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if bk.PaymentStatus() == bookingDomain.PaymentFailed {
		return nil
	}

	if err := bk.MarkPaymentFailed(); err != nil {
		return err
	}
	bk.IncrementVersion()
	return s.bookings.Update(ctx, bk)
}

// MarkPaidOut records that the provider has been paid for this booking, which
// switches any later refund from a direct refund to a transfer reversal.
func (s *BookingService) MarkPaidOut(ctx context.Context, bookingID uuid.UUID, payoutRef string) error {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if bk.PaidOut() {
		return nil
	}

	if err := bk.MarkPaidOut(payoutRef); err != nil {
		return err
	}
	bk.IncrementVersion()
	return s.bookings.Update(ctx, bk)
}

// GetBooking retrieves a booking, restricted to its customer, the tour's
// provider, or an admin.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*bookingDomain.Booking, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch role {
	case auth.RoleAdmin:
		return bk, nil
	case auth.RoleProvider:
		t, err := s.tours.FindByID(ctx, bk.TourID())
		if err != nil {
			return nil, err
		}
		if t.ProviderID() != actorID {
			return nil, domain.NewForbiddenError("booking belongs to another provider's tour")
		}
		return bk, nil
	default:
		if bk.CustomerID() != actorID {
			return nil, domain.NewForbiddenError("booking belongs to another customer")
		}
		return bk, nil
	}
}

// GetCustomerBookings retrieves a customer's bookings with pagination.
func (s *BookingService) GetCustomerBookings(ctx context.Context, customerID uuid.UUID, page, limit int) (*domain.PaginatedResult[*bookingDomain.Booking], error) {
	page, limit = normalizePaging(page, limit)
	bookings, total, err := s.bookings.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(bookings, total, page, limit)
	return &result, nil
}

// GetTourBookings retrieves a tour's bookings for its provider or an admin.
func (s *BookingService) GetTourBookings(ctx context.Context, tourID, actorID uuid.UUID, role string, page, limit int) (*domain.PaginatedResult[*bookingDomain.Booking], error) {
	t, err := s.tours.FindByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && t.ProviderID() != actorID {
		return nil, domain.NewForbiddenError("tour belongs to another provider")
	}

	page, limit = normalizePaging(page, limit)
	bookings, total, err := s.bookings.FindByTourID(ctx, tourID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(bookings, total, page, limit)
	return &result, nil
}

// ListAllBookings retrieves all bookings with pagination (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) (*domain.PaginatedResult[*bookingDomain.Booking], error) {
	page, limit = normalizePaging(page, limit)
	bookings, total, err := s.bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(bookings, total, page, limit)
	return &result, nil
}

// GetBookingStats returns booking counts grouped by status (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (map[string]int64, error) {
	return s.bookings.CountByStatus(ctx)
}

func (s *BookingService) publishConfirmed(ctx context.Context, bk *bookingDomain.Booking) {
	s.publisher.Publish(ctx, events.TypeBookingConfirmed, bk.ID().String(), events.BookingConfirmedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		ChargeRef:     bk.ChargeRef(),
		TotalCents:    bk.Price().TotalCents,
		Currency:      bk.Currency(),
		ConfirmedAt:   time.Now().UTC(),
	})
}

func (s *BookingService) releaseSeats(ctx context.Context, slotID uuid.UUID, seats int, bookingID uuid.UUID) {
	if seats <= 0 {
		return
	}
	if err := s.slots.Release(ctx, slotID, seats); err != nil {
		s.logger.Error("failed to release seats",
			zap.String("slot_id", slotID.String()),
			zap.String("booking_id", bookingID.String()),
			zap.Int("seats", seats),
			zap.Error(err))
	}
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
