package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// eventWriter is satisfied by *Producer.
type eventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer eventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer eventWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func bookingKey(bookingID int64) string {
	return fmt.Sprintf("booking-%d", bookingID)
}

// PublishBookingStatus publishes a lifecycle transition event
func (ep *EventPublisher) PublishBookingStatus(ctx context.Context, event *models.BookingStatusEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishBookingOrphaned publishes BookingOrphaned event
func (ep *EventPublisher) PublishBookingOrphaned(ctx context.Context, event *models.BookingOrphanedEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishReminderDue publishes ReminderDue event
func (ep *EventPublisher) PublishReminderDue(ctx context.Context, event *models.ReminderDueEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onBookingOrphaned func(context.Context, *models.BookingOrphanedEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnBookingOrphaned registers a handler for BookingOrphaned events
func (eh *EventHandler) OnBookingOrphaned(handler func(context.Context, *models.BookingOrphanedEvent) error) {
	eh.onBookingOrphaned = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeBookingOrphaned:
		if eh.onBookingOrphaned != nil {
			var event models.BookingOrphanedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BookingOrphaned event: %w", err)
			}
			return eh.onBookingOrphaned(ctx, &event)
		}

	default:
		// lifecycle events on the shared topic are for downstream consumers
	}

	return nil
}
