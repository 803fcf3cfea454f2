package models

import (
	"time"

	"github.com/lib/pq"
)

// ServiceProduct is a bookable offering. Read-only to the engine.
type ServiceProduct struct {
	ID                      int64         `db:"id" json:"id"`
	TenantID                int64         `db:"tenant_id" json:"tenant_id"`
	Name                    string        `db:"name" json:"name"`
	DurationMinutes         int           `db:"duration_minutes" json:"duration_minutes"`
	BufferBeforeMinutes     int           `db:"buffer_before_minutes" json:"buffer_before_minutes"`
	BufferAfterMinutes      int           `db:"buffer_after_minutes" json:"buffer_after_minutes"`
	SlotStepMinutes         int           `db:"slot_step_minutes" json:"slot_step_minutes"`
	LocationType            string        `db:"location_type" json:"location_type"`
	LocationAddress         string        `db:"location_address" json:"location_address"`
	MinAdvanceBookingHours  int           `db:"min_advance_booking_hours" json:"min_advance_booking_hours"`
	MaxAdvanceBookingDays   int           `db:"max_advance_booking_days" json:"max_advance_booking_days"`
	MaxCapacity             int           `db:"max_capacity" json:"max_capacity"`
	CancellationPolicyHours int           `db:"cancellation_policy_hours" json:"cancellation_policy_hours"`
	Price                   int64         `db:"price" json:"price"`
	Currency                string        `db:"currency" json:"currency"`
	Timezone                string        `db:"timezone" json:"timezone"`
	ProviderIDs             pq.Int64Array `db:"provider_ids" json:"provider_ids"`
	CreatedAt               time.Time     `db:"created_at" json:"created_at"`
}

// Capacity returns the attendee capacity of a single overlapping group.
func (s *ServiceProduct) Capacity() int {
	if s.MaxCapacity <= 0 {
		return 1
	}
	return s.MaxCapacity
}

func (s *ServiceProduct) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Location resolves the service timezone, falling back to UTC.
func (s *ServiceProduct) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServiceProvider is a person or resource that can be assigned to a booking.
type ServiceProvider struct {
	ID        int64     `db:"id" json:"id"`
	TenantID  int64     `db:"tenant_id" json:"tenant_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Availability owner types
const (
	OwnerTypeProvider = "provider"
	OwnerTypeService  = "service"
)

// Availability is a weekly recurring template for one owner.
type Availability struct {
	ID             int64          `db:"id" json:"id"`
	OwnerType      string         `db:"owner_type" json:"owner_type"`
	OwnerID        int64          `db:"owner_id" json:"owner_id"`
	WeeklySchedule WeeklySchedule `db:"weekly_schedule" json:"weekly_schedule"`
	EffectiveFrom  *time.Time     `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveTo    *time.Time     `db:"effective_to" json:"effective_to,omitempty"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// CoversDate reports whether the validity window contains the civil date of day.
// Nil bounds are open.
func (a *Availability) CoversDate(day time.Time) bool {
	d := civilDate(day)
	if a.EffectiveFrom != nil && d.Before(civilDate(*a.EffectiveFrom)) {
		return false
	}
	if a.EffectiveTo != nil && d.After(civilDate(*a.EffectiveTo)) {
		return false
	}
	return true
}

// Exception types
const (
	ExceptionBlocked   = "blocked"
	ExceptionTimeOff   = "time_off"
	ExceptionHoliday   = "holiday"
	ExceptionAvailable = "available"
)

// AvailabilityException is a date-ranged override of the weekly template.
type AvailabilityException struct {
	ID            int64     `db:"id" json:"id"`
	OwnerType     string    `db:"owner_type" json:"owner_type,omitempty"`
	OwnerID       *int64    `db:"owner_id" json:"owner_id,omitempty"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	EndDate       time.Time `db:"end_date" json:"end_date"`
	ExceptionType string    `db:"exception_type" json:"exception_type"`
	AllDay        bool      `db:"all_day" json:"all_day"`
	StartTime     string    `db:"start_time" json:"start_time,omitempty"`
	EndTime       string    `db:"end_time" json:"end_time,omitempty"`
	Reason        string    `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Blocking reports whether the exception removes availability.
func (e *AvailabilityException) Blocking() bool {
	return e.ExceptionType != ExceptionAvailable
}

// AppliesOn reports whether the civil date of day is inside [StartDate, EndDate].
func (e *AvailabilityException) AppliesOn(day time.Time) bool {
	d := civilDate(day)
	return !d.Before(civilDate(e.StartDate)) && !d.After(civilDate(e.EndDate))
}

// Booking represents a reservation of a service slot.
type Booking struct {
	ID                 int64      `db:"id" json:"id"`
	BookingNumber      string     `db:"booking_number" json:"booking_number"`
	TenantID           int64      `db:"tenant_id" json:"tenant_id"`
	CustomerID         string     `db:"customer_id" json:"customer_id"`
	CustomerName       string     `db:"customer_name" json:"customer_name"`
	CustomerEmail      string     `db:"customer_email" json:"customer_email"`
	CustomerPhone      string     `db:"customer_phone" json:"customer_phone,omitempty"`
	ServiceID          int64      `db:"service_id" json:"service_id"`
	ProviderID         *int64     `db:"provider_id" json:"provider_id,omitempty"`
	StartTime          time.Time  `db:"start_time" json:"start_time"`
	EndTime            time.Time  `db:"end_time" json:"end_time"`
	Timezone           string     `db:"timezone" json:"timezone"`
	AttendeeCount      int        `db:"attendee_count" json:"attendee_count"`
	LocationType       string     `db:"location_type" json:"location_type,omitempty"`
	LocationAddress    string     `db:"location_address" json:"location_address,omitempty"`
	CustomerNotes      string     `db:"customer_notes" json:"customer_notes,omitempty"`
	ProviderNotes      string     `db:"provider_notes" json:"provider_notes,omitempty"`
	Status             string     `db:"status" json:"status"`
	TotalAmount        int64      `db:"total_amount" json:"total_amount"`
	Currency           string     `db:"currency" json:"currency"`
	CancelledBy        string     `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason string     `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancellationFee    int64      `db:"cancellation_fee" json:"cancellation_fee"`
	RescheduledToID    *int64     `db:"rescheduled_to_id" json:"rescheduled_to_id,omitempty"`
	RescheduledFromID  *int64     `db:"rescheduled_from_id" json:"rescheduled_from_id,omitempty"`
	RescheduleCount    int        `db:"reschedule_count" json:"reschedule_count"`
	IdempotencyKey     *string    `db:"idempotency_key" json:"-"`
	ConfirmedAt        *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CheckedInAt        *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt          *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	NoShowAt           *time.Time `db:"no_show_at" json:"no_show_at,omitempty"`
	RescheduledAt      *time.Time `db:"rescheduled_at" json:"rescheduled_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the booking still holds capacity.
func (b *Booking) IsActive() bool {
	return IsActiveStatus(b.Status)
}

// BookingItem is the line-item snapshot of what was booked.
type BookingItem struct {
	ID              int64  `db:"id" json:"id"`
	BookingID       int64  `db:"booking_id" json:"booking_id"`
	ServiceID       int64  `db:"service_id" json:"service_id"`
	Description     string `db:"description" json:"description"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`
	Quantity        int    `db:"quantity" json:"quantity"`
	UnitPrice       int64  `db:"unit_price" json:"unit_price"`
	TotalPrice      int64  `db:"total_price" json:"total_price"`
}

// BookingReminder is a scheduled notification tied to one booking.
type BookingReminder struct {
	ID                int64      `db:"id" json:"id"`
	BookingID         int64      `db:"booking_id" json:"booking_id"`
	SendBeforeMinutes int        `db:"send_before_minutes" json:"send_before_minutes"`
	ScheduledFor      time.Time  `db:"scheduled_for" json:"scheduled_for"`
	Recipient         string     `db:"recipient" json:"recipient"`
	Channel           string     `db:"channel" json:"channel"`
	Status            string     `db:"status" json:"status"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Booking statuses
const (
	BookingStatusPending     = "pending"
	BookingStatusConfirmed   = "confirmed"
	BookingStatusCheckedIn   = "checked_in"
	BookingStatusInProgress  = "in_progress"
	BookingStatusCompleted   = "completed"
	BookingStatusCancelled   = "cancelled"
	BookingStatusNoShow      = "no_show"
	BookingStatusRescheduled = "rescheduled"
	// BookingStatusOrphaned marks a reschedule replacement whose original could not be linked.
	BookingStatusOrphaned = "orphaned"
)

// ActiveBookingStatuses hold capacity and can still transition.
var ActiveBookingStatuses = []string{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCheckedIn,
	BookingStatusInProgress,
}

func IsActiveStatus(status string) bool {
	for _, s := range ActiveBookingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Reminder statuses
const (
	ReminderStatusScheduled = "scheduled"
	ReminderStatusCancelled = "cancelled"
	ReminderStatusSent      = "sent"
)

// Cancellation actors
const (
	CancelledByCustomer = "customer"
	CancelledByProvider = "provider"
	CancelledByAdmin    = "admin"
	CancelledBySystem   = "system"
)

// BookingFilter narrows ListBookings. Zero values are ignored.
type BookingFilter struct {
	ServiceID  *int64
	ProviderID *int64
	CustomerID string
	Statuses   []string
	// From/To select bookings whose [start,end) overlaps [From,To).
	From  time.Time
	To    time.Time
	Limit int
}

// BookingTransition carries the fields a status transition writes.
// Nil pointers and empty strings leave the column untouched.
type BookingTransition struct {
	Status             string
	At                 time.Time
	ProviderNotes      string
	CancelledBy        string
	CancellationReason string
	CancellationFee    *int64
	RescheduledToID    *int64
}

// Slot is a concrete bookable interval reported by the availability resolver.
type Slot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ProviderID *int64    `json:"provider_id,omitempty"`
	// ScheduleFallback is set when no availability record covered the date and the
	// owner's first record was used instead.
	ScheduleFallback bool `json:"schedule_fallback,omitempty"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
