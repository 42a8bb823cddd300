package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

var _ events.PaymentApplier = (*BookingService)(nil)

// --- Fakes ---

type memBookingRepo struct {
	mu              sync.Mutex
	bookings        map[uuid.UUID]*bookingDomain.Booking
	saveErr         error
	conflictUpdates int
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[uuid.UUID]*bookingDomain.Booking)}
}

// cloneBooking rehydrates a detached copy, the way a row read from the
// database would come back. A failed Update must leave reads unaffected.
func cloneBooking(bk *bookingDomain.Booking) *bookingDomain.Booking {
	var cancelledAt *time.Time
	if bk.CancelledAt() != nil {
		at := *bk.CancelledAt()
		cancelledAt = &at
	}
	return bookingDomain.Reconstruct(
		bk.ID(), bk.BookingNumber(), bk.TourID(), bk.SlotID(), bk.CustomerID(),
		bk.TotalParticipants(), bk.CategoryCounts(), bk.SeatsReserved(), bk.AddonIDs(),
		bk.Price(), bk.Currency(), bk.Status(), bk.PaymentStatus(), bk.ChargeRef(),
		bk.PaidOut(), bk.PayoutRef(), bk.CancelledBy(), bk.CancelReason(), cancelledAt,
		bk.RefundStatus(), bk.RefundPercent(), bk.RefundAmountCents(), bk.RefundRef(), bk.RefundFailure(),
		bk.Version(), bk.CreatedAt(), bk.UpdatedAt(),
	)
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return cloneBooking(bk), nil
}

func (r *memBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.bookings {
		if bk.BookingNumber() == number {
			return cloneBooking(bk), nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

func (r *memBookingRepo) FindByCustomerID(_ context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.CustomerID() == customerID {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memBookingRepo) FindByTourID(_ context.Context, tourID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.TourID() == tourID {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memBookingRepo) ListAll(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*bookingDomain.Booking, 0, len(r.bookings))
	for _, bk := range r.bookings {
		out = append(out, bk)
	}
	return out, int64(len(out)), nil
}

func (r *memBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *memBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.bookings[bk.ID()] = cloneBooking(bk)
	return nil
}

func (r *memBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[bk.ID()]; !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if r.conflictUpdates > 0 {
		r.conflictUpdates--
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[bk.ID()] = cloneBooking(bk)
	return nil
}

type memTourRepo struct {
	tours map[uuid.UUID]*tourDomain.Tour
}

func newMemTourRepo() *memTourRepo {
	return &memTourRepo{tours: make(map[uuid.UUID]*tourDomain.Tour)}
}

func (r *memTourRepo) FindByID(_ context.Context, id uuid.UUID) (*tourDomain.Tour, error) {
	t, ok := r.tours[id]
	if !ok {
		return nil, domain.NewNotFoundError("Tour", id.String())
	}
	return t, nil
}

func (r *memTourRepo) FindByProviderID(_ context.Context, providerID uuid.UUID) ([]*tourDomain.Tour, error) {
	var out []*tourDomain.Tour
	for _, t := range r.tours {
		if t.ProviderID() == providerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTourRepo) Save(_ context.Context, t *tourDomain.Tour) error {
	r.tours[t.ID()] = t
	return nil
}

func (r *memTourRepo) Update(_ context.Context, t *tourDomain.Tour) error {
	r.tours[t.ID()] = t
	return nil
}

type memSlotRepo struct {
	mu        sync.Mutex
	slots     map[uuid.UUID]*timeslot.TimeSlot
	committed map[uuid.UUID]int
	reserves  int
	releases  int
}

func newMemSlotRepo() *memSlotRepo {
	return &memSlotRepo{
		slots:     make(map[uuid.UUID]*timeslot.TimeSlot),
		committed: make(map[uuid.UUID]int),
	}
}

func (r *memSlotRepo) FindByID(_ context.Context, id uuid.UUID) (*timeslot.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, domain.NewNotFoundError("TimeSlot", id.String())
	}
	return timeslot.Reconstruct(s.ID(), s.TourID(), s.StartTime(), s.EndTime(), s.Capacity(), r.committed[id], s.CreatedAt(), s.UpdatedAt()), nil
}

func (r *memSlotRepo) ListByTour(_ context.Context, tourID uuid.UUID, after time.Time) ([]*timeslot.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*timeslot.TimeSlot
	for _, s := range r.slots {
		if s.TourID() == tourID && s.StartTime().After(after) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSlotRepo) Save(_ context.Context, slot *timeslot.TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot.ID()] = slot
	r.committed[slot.ID()] = slot.Committed()
	return nil
}

func (r *memSlotRepo) Reserve(_ context.Context, slotID uuid.UUID, seats int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotID]
	if !ok {
		return domain.NewNotFoundError("TimeSlot", slotID.String())
	}
	if r.committed[slotID]+seats > s.Capacity() {
		return domain.NewCapacityError("time slot is full")
	}
	r.committed[slotID] += seats
	r.reserves++
	return nil
}

func (r *memSlotRepo) Release(_ context.Context, slotID uuid.UUID, seats int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[slotID]; !ok {
		return domain.NewNotFoundError("TimeSlot", slotID.String())
	}
	r.committed[slotID] -= seats
	if r.committed[slotID] < 0 {
		r.committed[slotID] = 0
	}
	r.releases++
	return nil
}

// fakeGateway dedupes money movements by idempotency key, the way the real
// processor does: a replayed key returns the original reference and moves no
// new money.
type fakeGateway struct {
	mu              sync.Mutex
	chargeErr       error
	refundErr       error
	balance         int64
	chargeCalls     int
	refundCalls     int
	reverseCalls    int
	refundMovements int
	refundsByKey    map[string]string
	reversalsByKey  map[string]string
}

func (f *fakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargeCalls++
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	return "ch_test", nil
}

func (f *fakeGateway) Refund(_ context.Context, req payment.RefundRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls++
	if f.refundErr != nil {
		return "", f.refundErr
	}
	if f.refundsByKey == nil {
		f.refundsByKey = make(map[string]string)
	}
	if ref, ok := f.refundsByKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return ref, nil
	}
	f.refundMovements++
	ref := fmt.Sprintf("re_test_%d", f.refundMovements)
	if req.IdempotencyKey != "" {
		f.refundsByKey[req.IdempotencyKey] = ref
	}
	return ref, nil
}

func (f *fakeGateway) ReverseTransfer(_ context.Context, req payment.ReversalRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverseCalls++
	if f.reversalsByKey == nil {
		f.reversalsByKey = make(map[string]string)
	}
	if ref, ok := f.reversalsByKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return ref, nil
	}
	if req.IdempotencyKey != "" {
		f.reversalsByKey[req.IdempotencyKey] = "trr_test"
	}
	return "trr_test", nil
}

func (f *fakeGateway) AvailableBalance(_ context.Context, accountRef string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// --- Fixture ---

type fixture struct {
	service   *BookingService
	bookings  *memBookingRepo
	tours     *memTourRepo
	slots     *memSlotRepo
	gateway   *fakeGateway
	publisher *recordingPublisher
	tour      *tourDomain.Tour
	slot      *timeslot.TimeSlot
	customer  uuid.UUID
	provider  uuid.UUID
}

func newFixture(t *testing.T, cfg pricing.Configuration) *fixture {
	t.Helper()

	provider := uuid.New()
	tr, err := tourDomain.NewTour(provider, "acct_prov", "Harbor Kayak Tour", "", "USD", cfg, policy.Flexible)
	require.NoError(t, err)

	slot, err := timeslot.NewTimeSlot(tr.ID(), time.Now().UTC().Add(72*time.Hour), time.Now().UTC().Add(75*time.Hour), 10)
	require.NoError(t, err)

	bookings := newMemBookingRepo()
	tours := newMemTourRepo()
	slots := newMemSlotRepo()
	gateway := &fakeGateway{balance: 1 << 30}
	publisher := &recordingPublisher{}

	require.NoError(t, tours.Save(context.Background(), tr))
	require.NoError(t, slots.Save(context.Background(), slot))

	router := payment.NewSettlementRouter(gateway, zap.NewNop())
	service := NewBookingService(bookings, tours, slots, gateway, router, publisher, zap.NewNop())

	return &fixture{
		service:   service,
		bookings:  bookings,
		tours:     tours,
		slots:     slots,
		gateway:   gateway,
		publisher: publisher,
		tour:      tr,
		slot:      slot,
		customer:  uuid.New(),
		provider:  provider,
	}
}

func perPersonConfig() pricing.Configuration {
	return pricing.Configuration{Mode: pricing.ModePerPerson, PerPersonPriceCents: 5000}
}

func (f *fixture) createInput() CreateBookingInput {
	return CreateBookingInput{
		TourID:            f.tour.ID(),
		SlotID:            f.slot.ID(),
		CustomerID:        f.customer,
		TotalParticipants: 2,
		CustomerRef:       "cus_1",
		PaymentMethodRef:  "pm_1",
	}
}

// --- Tests ---

func TestCreateBooking_ChargesAndConfirms(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.StatusConfirmed, bk.Status())
	assert.Equal(t, bookingDomain.PaymentPaid, bk.PaymentStatus())
	assert.Equal(t, "ch_test", bk.ChargeRef())
	assert.Equal(t, 1, f.gateway.chargeCalls)
	assert.Equal(t, 2, f.slots.committed[f.slot.ID()])
	assert.True(t, f.publisher.has("booking.created"))
	assert.True(t, f.publisher.has("booking.confirmed"))
}

func TestCreateBooking_ChargeFailureStaysPendingWithSeatsHeld(t *testing.T) {
	f := newFixture(t, perPersonConfig())
	f.gateway.chargeErr = errors.New("card declined")

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	// The booking is created and returned, but the caller is told the
	// charge failed.
	require.Error(t, err)
	assert.Equal(t, domain.KindPayment, domain.KindOf(err))
	require.NotNil(t, bk)

	assert.Equal(t, bookingDomain.StatusPending, bk.Status())
	assert.Equal(t, bookingDomain.PaymentFailed, bk.PaymentStatus())
	assert.Equal(t, 2, f.slots.committed[f.slot.ID()])
	assert.True(t, f.publisher.has("booking.created"))
	assert.False(t, f.publisher.has("booking.confirmed"))
}

func TestCreateBooking_FreeSkipsCharge(t *testing.T) {
	f := newFixture(t, pricing.Configuration{Mode: pricing.ModePerPerson, PerPersonPriceCents: 0})

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.StatusConfirmed, bk.Status())
	assert.Zero(t, f.gateway.chargeCalls)
}

func TestCreateBooking_CapacityExceeded(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	in := f.createInput()
	in.TotalParticipants = 11
	_, err := f.service.CreateBooking(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, domain.KindCapacity, domain.KindOf(err))
	assert.Zero(t, f.gateway.chargeCalls)
}

func TestCreateBooking_SaveFailureReleasesSeats(t *testing.T) {
	f := newFixture(t, perPersonConfig())
	f.bookings.saveErr = errors.New("connection reset")

	_, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.Error(t, err)
	assert.Equal(t, 0, f.slots.committed[f.slot.ID()])
	assert.Equal(t, 1, f.slots.releases)
}

func TestCreateBooking_InfantsDoNotHoldSeats(t *testing.T) {
	f := newFixture(t, pricing.Configuration{
		Mode: pricing.ModeParticipantCategories,
		Categories: []pricing.ParticipantCategory{
			{ID: "adult", Label: "Adult", UnitPriceCents: 3500, CountsTowardCapacity: true},
			{ID: "infant", Label: "Infant", UnitPriceCents: 0},
		},
	})

	in := f.createInput()
	in.TotalParticipants = 3
	in.CategoryCounts = map[string]int{"adult": 2, "infant": 1}

	bk, err := f.service.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, bk.SeatsReserved())
	assert.Equal(t, 2, f.slots.committed[f.slot.ID()])
}

func TestCreateBooking_InactiveTourRejected(t *testing.T) {
	f := newFixture(t, perPersonConfig())
	f.tour.Deactivate()

	_, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCancelBooking_FullRefundReleasesSeats(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	// 72h ahead under the flexible policy: full refund.
	cancelled, err := f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "change of plans")
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.StatusCancelled, cancelled.Status())
	assert.Equal(t, bookingDomain.RefundProcessed, cancelled.RefundStatus())
	assert.Equal(t, 100, cancelled.RefundPercent())
	assert.Equal(t, bk.Price().TotalCents, cancelled.RefundAmountCents())
	assert.Equal(t, 1, f.gateway.refundCalls)
	assert.Equal(t, 0, f.slots.committed[f.slot.ID()])
	assert.True(t, f.publisher.has("booking.cancelled"))
}

func TestCancelBooking_IdempotentNoSecondRefund(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.NoError(t, err)

	again, err := f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.StatusCancelled, again.Status())
	assert.Equal(t, 1, f.gateway.refundCalls)
	assert.Equal(t, 1, f.slots.releases)
}

func TestCancelBooking_ConflictRetryDoesNotMoveMoneyTwice(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	// The first attempt refunds, then loses the optimistic-lock race when
	// persisting the cancellation.
	f.bookings.conflictUpdates = 1
	_, err = f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	stored, err := f.bookings.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)
	require.NotEqual(t, bookingDomain.StatusCancelled, stored.Status())

	// The retry settles again, but the replayed idempotency key keeps it a
	// single money movement at the processor.
	cancelled, err := f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.StatusCancelled, cancelled.Status())
	assert.Equal(t, bookingDomain.RefundProcessed, cancelled.RefundStatus())
	assert.Equal(t, 2, f.gateway.refundCalls)
	assert.Equal(t, 1, f.gateway.refundMovements)
	assert.Equal(t, "re_test_1", cancelled.RefundRef())
}

func TestCancelBooking_UnpaidGetsNoRefund(t *testing.T) {
	f := newFixture(t, perPersonConfig())
	f.gateway.chargeErr = errors.New("card declined")

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.Error(t, err)
	require.NotNil(t, bk)
	require.Equal(t, bookingDomain.PaymentFailed, bk.PaymentStatus())

	cancelled, err := f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.RefundNone, cancelled.RefundStatus())
	assert.Zero(t, f.gateway.refundCalls)
}

func TestCancelBooking_ProviderOverridesPolicy(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	// Move the slot to 1h before start, where policy grants the customer 0%.
	nearSlot := timeslot.Reconstruct(
		f.slot.ID(), f.tour.ID(),
		time.Now().UTC().Add(time.Hour), time.Now().UTC().Add(4*time.Hour),
		10, 2, f.slot.CreatedAt(), f.slot.UpdatedAt(),
	)
	require.NoError(t, f.slots.Save(context.Background(), nearSlot))

	cancelled, err := f.service.CancelBooking(context.Background(), bk.ID(), f.provider, auth.RoleProvider, "boat maintenance")
	require.NoError(t, err)

	assert.Equal(t, policy.CancelledByProvider, cancelled.CancelledBy())
	assert.Equal(t, 100, cancelled.RefundPercent())
	assert.Equal(t, bookingDomain.RefundProcessed, cancelled.RefundStatus())
}

func TestCancelBooking_ForbiddenForStrangers(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), bk.ID(), uuid.New(), auth.RoleCustomer, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	_, err = f.service.CancelBooking(context.Background(), bk.ID(), uuid.New(), auth.RoleProvider, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestCancelBooking_AfterPayoutUsesReversal(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)
	require.NoError(t, f.service.MarkPaidOut(context.Background(), bk.ID(), "po_1"))

	cancelled, err := f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.RefundProcessed, cancelled.RefundStatus())
	assert.Equal(t, 1, f.gateway.reverseCalls)
	assert.Equal(t, 1, f.gateway.refundCalls)
}

func TestCancelBooking_InsufficientBalanceCommitsWithFailedRefund(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)
	require.NoError(t, f.service.MarkPaidOut(context.Background(), bk.ID(), "po_1"))

	f.gateway.balance = 0

	cancelled, err := f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.StatusCancelled, cancelled.Status())
	assert.Equal(t, bookingDomain.RefundFailed, cancelled.RefundStatus())
	assert.Equal(t, "insufficient provider balance", cancelled.RefundFailure())
	assert.Zero(t, f.gateway.reverseCalls)
	// Seats are still released even when the refund fails.
	assert.Equal(t, 0, f.slots.committed[f.slot.ID()])
}

func TestCancelBooking_AfterStartRejected(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	startedSlot := timeslot.Reconstruct(
		f.slot.ID(), f.tour.ID(),
		time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(2*time.Hour),
		10, 2, f.slot.CreatedAt(), f.slot.UpdatedAt(),
	)
	require.NoError(t, f.slots.Save(context.Background(), startedSlot))

	_, err = f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.Error(t, err)
	assert.Zero(t, f.gateway.refundCalls)
}

func TestCompleteBooking(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	done, err := f.service.CompleteBooking(context.Background(), bk.ID(), f.provider, auth.RoleProvider)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusCompleted, done.Status())
	assert.True(t, f.publisher.has("booking.completed"))

	// Completed is terminal: cancelling afterwards is rejected.
	_, err = f.service.CancelBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestMarkNoShow_BeforeStartRejected(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	_, err = f.service.MarkNoShow(context.Background(), bk.ID(), f.provider, auth.RoleProvider)
	require.Error(t, err)

	startedSlot := timeslot.Reconstruct(
		f.slot.ID(), f.tour.ID(),
		time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(2*time.Hour),
		10, 2, f.slot.CreatedAt(), f.slot.UpdatedAt(),
	)
	require.NoError(t, f.slots.Save(context.Background(), startedSlot))

	marked, err := f.service.MarkNoShow(context.Background(), bk.ID(), f.provider, auth.RoleProvider)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusNoShow, marked.Status())
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t, perPersonConfig())
	f.gateway.chargeErr = errors.New("card declined")

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.Error(t, err)
	require.NotNil(t, bk)

	require.NoError(t, f.service.ConfirmPayment(context.Background(), bk.ID(), "ch_async"))
	require.NoError(t, f.service.ConfirmPayment(context.Background(), bk.ID(), "ch_other"))

	got, err := f.bookings.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)
	assert.Equal(t, "ch_async", got.ChargeRef())
	assert.Equal(t, bookingDomain.StatusConfirmed, got.Status())
}

func TestMarkPaidOut_Idempotent(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	require.NoError(t, f.service.MarkPaidOut(context.Background(), bk.ID(), "po_1"))
	require.NoError(t, f.service.MarkPaidOut(context.Background(), bk.ID(), "po_2"))

	got, err := f.bookings.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)
	assert.Equal(t, "po_1", got.PayoutRef())
}

func TestGetBooking_AccessControl(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bk, err := f.service.CreateBooking(context.Background(), f.createInput())
	require.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), bk.ID(), f.customer, auth.RoleCustomer)
	assert.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), bk.ID(), f.provider, auth.RoleProvider)
	assert.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), bk.ID(), uuid.New(), auth.RoleAdmin)
	assert.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), bk.ID(), uuid.New(), auth.RoleCustomer)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestQuotePrice(t *testing.T) {
	f := newFixture(t, perPersonConfig())

	bd, err := f.service.QuotePrice(context.Background(), QuoteInput{
		TourID:            f.tour.ID(),
		TotalParticipants: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bd.SubtotalCents)
	assert.Equal(t, "USD", bd.Currency)
}
