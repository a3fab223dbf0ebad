// Package messaging provides event publisher implementations that do not
// depend on an external bus.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/events"
)

// LogPublisher implements ports.EventPublisher by writing events to the log.
// It stands in for the EventBridge publisher in development and in tests.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs events instead of sending them
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// Publish logs a single event
func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateId", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()))
	return nil
}

// PublishBatch logs each event in the batch
func (p *LogPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
