package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlastours/service-booking/pkg/kafka"
)

// Publisher publishes booking lifecycle events to the booking topic.
// Publishing is fire-and-forget: a broker outage must never roll back a
// committed booking change, so failures are logged and dropped.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger
}

// NewPublisher creates a Publisher writing to the given topic.
func NewPublisher(producer *kafka.Producer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish wraps the payload in a CloudEvent and writes it keyed by the
// aggregate ID so events for one booking stay ordered.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, data interface{}) {
	event, err := kafka.NewCloudEvent(Source, eventType, data)
	if err != nil {
		p.logger.Error("failed to build event",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}
	if err := p.producer.PublishKeyed(ctx, p.topic, key, event); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("type", eventType),
			zap.String("key", key),
			zap.Error(err))
	}
}
