package service

import (
	"context"
	"fmt"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/util"

	"go.uber.org/zap"
)

// DefaultReminderLeadMinutes are used when no lead times are configured.
var DefaultReminderLeadMinutes = []int{1440, 60}

// ReminderScheduler derives reminder rows from bookings. It never sends anything;
// an external dispatcher consumes DuePending.
type ReminderScheduler struct {
	store       ReminderStore
	leadMinutes []int
	logger      *zap.Logger
	now         func() time.Time
}

// NewReminderScheduler creates a new reminder scheduler
func NewReminderScheduler(store ReminderStore, leadMinutes []int) *ReminderScheduler {
	if len(leadMinutes) == 0 {
		leadMinutes = DefaultReminderLeadMinutes
	}
	return &ReminderScheduler{
		store:       store,
		leadMinutes: leadMinutes,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// Schedule creates one reminder per lead time that is still in the future.
// Past-due lead times are skipped, not backfilled.
func (rs *ReminderScheduler) Schedule(ctx context.Context, bookingID int64, start time.Time, recipient string) ([]models.BookingReminder, error) {
	ctx, span := util.StartSpan(ctx, "ReminderScheduler.Schedule")
	defer span.End()

	if recipient == "" {
		rs.logger.Info("No reminder recipient, skipping", zap.Int64("booking_id", bookingID))
		return nil, nil
	}

	now := rs.now()
	var created []models.BookingReminder
	for _, lead := range rs.leadMinutes {
		scheduledFor := start.Add(-time.Duration(lead) * time.Minute)
		if !scheduledFor.After(now) {
			continue
		}

		reminder := &models.BookingReminder{
			BookingID:         bookingID,
			SendBeforeMinutes: lead,
			ScheduledFor:      scheduledFor,
			Recipient:         recipient,
			Channel:           "email",
			Status:            models.ReminderStatusScheduled,
		}
		if err := rs.store.CreateReminder(ctx, reminder); err != nil {
			return created, fmt.Errorf("failed to create reminder: %w", err)
		}
		created = append(created, *reminder)
		util.RemindersScheduledTotal.Inc()
	}

	return created, nil
}

// Cancel moves every scheduled reminder of the booking to cancelled.
func (rs *ReminderScheduler) Cancel(ctx context.Context, bookingID int64) error {
	ctx, span := util.StartSpan(ctx, "ReminderScheduler.Cancel")
	defer span.End()

	n, err := rs.store.CancelReminders(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	util.RemindersCancelledTotal.Add(float64(n))
	return nil
}

// DuePending returns scheduled reminders with scheduled_for <= before.
func (rs *ReminderScheduler) DuePending(ctx context.Context, before time.Time, limit int) ([]models.BookingReminder, error) {
	return rs.store.ListDueReminders(ctx, before, limit)
}

// ForBooking lists every reminder of a booking, whatever its status.
func (rs *ReminderScheduler) ForBooking(ctx context.Context, bookingID int64) ([]models.BookingReminder, error) {
	reminders, err := rs.store.GetRemindersByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// MarkSent records that the dispatcher took ownership of the reminder.
func (rs *ReminderScheduler) MarkSent(ctx context.Context, reminderID int64) error {
	if err := rs.store.MarkReminderSent(ctx, reminderID, rs.now()); err != nil {
		return err
	}
	util.RemindersDispatchedTotal.Inc()
	return nil
}

// Discard cancels a single reminder, e.g. one whose booking is no longer active.
func (rs *ReminderScheduler) Discard(ctx context.Context, reminderID int64) error {
	if err := rs.store.MarkReminderCancelled(ctx, reminderID); err != nil {
		return err
	}
	util.RemindersCancelledTotal.Inc()
	return nil
}
