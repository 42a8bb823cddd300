//go:build integration

package main_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlastours/service-booking/internal/application"
	"github.com/atlastours/service-booking/internal/events"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/domain"
)

func TestConcurrentReserve_NeverOversells(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	_, slot := seedTourWithSlot(t, stack, 10)

	// 20 workers each grab one seat; exactly 10 must win.
	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stack.SlotRepo.Reserve(context.Background(), slot.ID(), 1); err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), successes)

	stored, err := stack.SlotRepo.FindByID(context.Background(), slot.ID())
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Committed())
	assert.Equal(t, 0, stored.Available())
}

func TestReserveRelease_RoundTrip(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	_, slot := seedTourWithSlot(t, stack, 5)
	ctx := context.Background()

	require.NoError(t, stack.SlotRepo.Reserve(ctx, slot.ID(), 3))

	// A request the slot cannot hold is rejected atomically.
	err := stack.SlotRepo.Reserve(ctx, slot.ID(), 3)
	require.Error(t, err)
	assert.Equal(t, domain.KindCapacity, domain.KindOf(err))

	require.NoError(t, stack.SlotRepo.Release(ctx, slot.ID(), 3))

	// Releasing more than is committed floors at zero instead of going negative.
	require.NoError(t, stack.SlotRepo.Release(ctx, slot.ID(), 99))
	stored, err := stack.SlotRepo.FindByID(ctx, slot.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Committed())
}

func TestPaymentSucceededEvent_ConfirmsBooking(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	tr, slot := seedTourWithSlot(t, stack, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = stack.Consumer.Run(ctx) }()

	// Create a booking whose synchronous charge "failed" so it stays pending,
	// then let the async payment event confirm it.
	customerID := uuid.New()
	bk, err := stack.Service.CreateBooking(context.Background(), application.CreateBookingInput{
		TourID:            tr.ID(),
		SlotID:            slot.ID(),
		CustomerID:        customerID,
		TotalParticipants: 2,
	})
	require.NoError(t, err)
	require.NoError(t, stack.Service.MarkPaymentFailed(context.Background(), bk.ID()))

	publishTestEvent(t, infra.KafkaBrokers, "payment.events", "service-payment",
		events.TypePaymentSucceeded, events.PaymentSucceededEvent{
			BookingID: bk.ID(),
			ChargeRef: "ch_async_1",
		})

	model := waitForBookingStatus(t, infra.DB, bk.ID(), "confirmed", 30*time.Second)
	assert.Equal(t, "paid", model.PaymentStatus)
	assert.Equal(t, "ch_async_1", model.ChargeRef)

	ce := consumeOneEvent(t, infra.KafkaBrokers, "booking.events", events.TypeBookingConfirmed, 30*time.Second)
	var payload events.BookingConfirmedEvent
	require.NoError(t, ce.ParseData(&payload))
	assert.Equal(t, bk.ID(), payload.BookingID)
}

func TestPayoutEvent_SwitchesRefundToReversal(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	tr, slot := seedTourWithSlot(t, stack, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = stack.Consumer.Run(ctx) }()

	customerID := uuid.New()
	bk, err := stack.Service.CreateBooking(context.Background(), application.CreateBookingInput{
		TourID:            tr.ID(),
		SlotID:            slot.ID(),
		CustomerID:        customerID,
		TotalParticipants: 1,
	})
	require.NoError(t, err)

	publishTestEvent(t, infra.KafkaBrokers, "payment.events", "service-payment",
		events.TypePaymentPayoutCompleted, events.PayoutCompletedEvent{
			BookingID: bk.ID(),
			PayoutRef: "po_int_1",
		})

	require.Eventually(t, func() bool {
		got, err := stack.BookingRepo.FindByID(context.Background(), bk.ID())
		return err == nil && got.PaidOut()
	}, 30*time.Second, 200*time.Millisecond, "payout event was not applied")

	cancelled, err := stack.Service.CancelBooking(context.Background(), bk.ID(), customerID, auth.RoleCustomer, "")
	require.NoError(t, err)
	assert.Equal(t, "processed", string(cancelled.RefundStatus()))
}

func TestOptimisticLocking_ConflictingUpdateRejected(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	tr, slot := seedTourWithSlot(t, stack, 10)

	bk, err := stack.Service.CreateBooking(context.Background(), application.CreateBookingInput{
		TourID:            tr.ID(),
		SlotID:            slot.ID(),
		CustomerID:        uuid.New(),
		TotalParticipants: 1,
	})
	require.NoError(t, err)

	// Two copies of the same aggregate race on an update: the stale one loses.
	first, err := stack.BookingRepo.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)
	second, err := stack.BookingRepo.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)

	require.NoError(t, first.Complete())
	first.IncrementVersion()
	require.NoError(t, stack.BookingRepo.Update(context.Background(), first))

	require.NoError(t, second.Complete())
	second.IncrementVersion()
	err = stack.BookingRepo.Update(context.Background(), second)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}
