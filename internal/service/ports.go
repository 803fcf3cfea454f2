package service

import (
	"context"
	"time"

	"booking-scheduler/internal/models"
)

// CatalogReader reads the externally managed service catalog.
type CatalogReader interface {
	GetServiceProduct(ctx context.Context, id int64) (*models.ServiceProduct, error)
}

// ProviderReader reads service providers.
type ProviderReader interface {
	GetServiceProvider(ctx context.Context, id int64) (*models.ServiceProvider, error)
}

// CalendarWriter stores availability templates and exceptions.
type CalendarWriter interface {
	CreateAvailability(ctx context.Context, a *models.Availability) error
	CreateException(ctx context.Context, e *models.AvailabilityException) error
}

// CalendarReader reads availability templates and exceptions.
type CalendarReader interface {
	ListAvailabilities(ctx context.Context, ownerType string, ownerID int64, activeOnly bool) ([]models.Availability, error)
	ListExceptions(ctx context.Context, from, to time.Time) ([]models.AvailabilityException, error)
}

// BookingStore persists bookings. ReserveBooking must run check against the active
// bookings overlapping the new booking and insert it atomically, so that two
// concurrent reservations for the same slot cannot both pass check.
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ReserveBooking(ctx context.Context, booking *models.Booking, item *models.BookingItem, check func(existing []models.Booking) error) error
	TransitionBooking(ctx context.Context, id int64, from []string, tr models.BookingTransition) (*models.Booking, error)
	GetBookingItems(ctx context.Context, bookingID int64) ([]models.BookingItem, error)
}

// ReminderStore persists booking reminders.
type ReminderStore interface {
	CreateReminder(ctx context.Context, reminder *models.BookingReminder) error
	CancelReminders(ctx context.Context, bookingID int64) (int64, error)
	ListDueReminders(ctx context.Context, before time.Time, limit int) ([]models.BookingReminder, error)
	GetRemindersByBookingID(ctx context.Context, bookingID int64) ([]models.BookingReminder, error)
	MarkReminderSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkReminderCancelled(ctx context.Context, id int64) error
}

// EventLedger deduplicates consumed events.
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// EventPublisher publishes booking domain events.
type EventPublisher interface {
	PublishBookingStatus(ctx context.Context, event *models.BookingStatusEvent) error
	PublishBookingOrphaned(ctx context.Context, event *models.BookingOrphanedEvent) error
}

// IdempotencyStore remembers which booking a create request produced.
type IdempotencyStore interface {
	GetIdempotentBooking(ctx context.Context, key string) (int64, bool, error)
	SetIdempotentBooking(ctx context.Context, key string, bookingID int64, ttl time.Duration) error
}
