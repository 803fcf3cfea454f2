package models

import "time"

// Event types
const (
	EventTypeBookingCreated     = "BOOKING_CREATED"
	EventTypeBookingConfirmed   = "BOOKING_CONFIRMED"
	EventTypeBookingCheckedIn   = "BOOKING_CHECKED_IN"
	EventTypeBookingStarted     = "BOOKING_STARTED"
	EventTypeBookingCompleted   = "BOOKING_COMPLETED"
	EventTypeBookingCancelled   = "BOOKING_CANCELLED"
	EventTypeBookingNoShow      = "BOOKING_NO_SHOW"
	EventTypeBookingRescheduled = "BOOKING_RESCHEDULED"
	EventTypeBookingOrphaned    = "BOOKING_ORPHANED"
	EventTypeReminderDue        = "REMINDER_DUE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingStatusEvent is published on every lifecycle transition.
type BookingStatusEvent struct {
	BaseEvent
	BookingID       int64     `json:"booking_id"`
	BookingNumber   string    `json:"booking_number"`
	ServiceID       int64     `json:"service_id"`
	ProviderID      *int64    `json:"provider_id,omitempty"`
	CustomerEmail   string    `json:"customer_email"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	CancellationFee int64     `json:"cancellation_fee,omitempty"`
	RelatedID       *int64    `json:"related_booking_id,omitempty"`
}

// BookingOrphanedEvent is published when reschedule compensation orphans a replacement.
type BookingOrphanedEvent struct {
	BaseEvent
	BookingID  int64  `json:"booking_id"`
	OriginalID int64  `json:"original_booking_id"`
	Reason     string `json:"reason"`
}

// ReminderDueEvent is published by the reminder relay for an external dispatcher.
type ReminderDueEvent struct {
	BaseEvent
	ReminderID        int64     `json:"reminder_id"`
	BookingID         int64     `json:"booking_id"`
	Recipient         string    `json:"recipient"`
	Channel           string    `json:"channel"`
	SendBeforeMinutes int       `json:"send_before_minutes"`
	ScheduledFor      time.Time `json:"scheduled_for"`
}
