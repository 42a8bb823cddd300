package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/atlastours/service-booking/pkg/kafka"
)

// PaymentApplier records payment service outcomes on bookings. Implemented by
// the booking application service.
type PaymentApplier interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, chargeRef string) error
	MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error
	MarkPaidOut(ctx context.Context, bookingID uuid.UUID, payoutRef string) error
}

// PaymentConsumer applies payment service events to bookings: asynchronous
// charge outcomes and payout completions.
type PaymentConsumer struct {
	consumer *kafka.Consumer
	service  PaymentApplier
	logger   *zap.Logger
}

// NewPaymentConsumer creates a PaymentConsumer over the given Kafka consumer.
func NewPaymentConsumer(consumer *kafka.Consumer, service PaymentApplier, logger *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{consumer: consumer, service: service, logger: logger}
}

// Run consumes payment events until the context is cancelled. Handler errors
// are logged and the message is committed anyway; payment events are
// replayable and the handlers tolerate redelivery.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
		event, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			c.logger.Warn("skipping malformed payment event", zap.Error(err))
			return nil
		}
		if err := c.handle(ctx, event); err != nil {
			c.logger.Error("failed to handle payment event",
				zap.String("type", event.Type),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
		return nil
	})
}

func (c *PaymentConsumer) handle(ctx context.Context, event kafka.CloudEvent) error {
	switch event.Type {
	case TypePaymentSucceeded:
		var payload PaymentSucceededEvent
		if err := event.ParseData(&payload); err != nil {
			return err
		}
		return c.service.ConfirmPayment(ctx, payload.BookingID, payload.ChargeRef)

	case TypePaymentFailed:
		var payload PaymentFailedEvent
		if err := event.ParseData(&payload); err != nil {
			return err
		}
		return c.service.MarkPaymentFailed(ctx, payload.BookingID)

	case TypePaymentPayoutCompleted:
		var payload PayoutCompletedEvent
		if err := event.ParseData(&payload); err != nil {
			return err
		}
		return c.service.MarkPaidOut(ctx, payload.BookingID, payload.PayoutRef)

	default:
		c.logger.Debug("ignoring payment event", zap.String("type", event.Type))
		return nil
	}
}
