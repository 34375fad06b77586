package events

import (
	"context"
	"fmt"
	"noqbot/pkg/kafka"
	"noqbot/pkg/logger"
	"noqbot/pkg/middleware"
	"noqbot/pkg/model"
	"time"
)

const (
	EventCreated     = "booking.created"
	EventCancelled   = "booking.cancelled"
	EventRescheduled = "booking.rescheduled"

	SchemaVersion = "1"
	Source        = "noqbot-bookings"
)

// Event is the payload published for every booking state change.
type Event struct {
	Type         string    `json:"type"`
	BookingID    string    `json:"bookingId"`
	ClientID     string    `json:"clientId"`
	SlotDayID    string    `json:"slotDayId"`
	Date         string    `json:"date"`
	SelectedTime string    `json:"selectedTime"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	UserPhone    string    `json:"userPhone"`
	PreviousDate string    `json:"previousDate,omitempty"`
	PreviousTime string    `json:"previousTime,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

func NewEvent(eventType string, b *model.Booking, at time.Time) Event {
	return Event{
		Type:         eventType,
		BookingID:    b.ID,
		ClientID:     b.ClientID,
		SlotDayID:    b.SlotDayID,
		Date:         b.Date,
		SelectedTime: b.SelectedTime,
		Status:       b.Status,
		Source:       b.Source,
		UserPhone:    b.UserPhone,
		OccurredAt:   at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer MessagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer MessagePublisher, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(event.Type).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.log.Debug("Booking event published", "event_type", event.Type, "booking_id", event.BookingID)
	return nil
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
