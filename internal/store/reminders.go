package store

import (
	"context"
	"fmt"
	"time"

	"booking-scheduler/internal/models"
)

// CreateReminder creates a new booking reminder
func (s *Store) CreateReminder(ctx context.Context, r *models.BookingReminder) error {
	query := `
		INSERT INTO booking_reminders (booking_id, send_before_minutes, scheduled_for, recipient, channel, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, r, query,
		r.BookingID, r.SendBeforeMinutes, r.ScheduledFor, r.Recipient, r.Channel, r.Status)
}

// CancelReminders cancels every still-scheduled reminder of a booking and returns
// how many were cancelled.
func (s *Store) CancelReminders(ctx context.Context, bookingID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE booking_reminders SET status = $1 WHERE booking_id = $2 AND status = $3",
		models.ReminderStatusCancelled, bookingID, models.ReminderStatusScheduled)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListDueReminders returns scheduled reminders due at or before before, oldest first.
func (s *Store) ListDueReminders(ctx context.Context, before time.Time, limit int) ([]models.BookingReminder, error) {
	if limit <= 0 {
		limit = 100
	}
	var reminders []models.BookingReminder
	err := s.db.SelectContext(ctx, &reminders, `
		SELECT * FROM booking_reminders
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for, id
		LIMIT $3`,
		models.ReminderStatusScheduled, before, limit)
	return reminders, err
}

// GetRemindersByBookingID lists every reminder of a booking
func (s *Store) GetRemindersByBookingID(ctx context.Context, bookingID int64) ([]models.BookingReminder, error) {
	var reminders []models.BookingReminder
	err := s.db.SelectContext(ctx, &reminders,
		"SELECT * FROM booking_reminders WHERE booking_id = $1 ORDER BY scheduled_for", bookingID)
	return reminders, err
}

// MarkReminderSent flips a scheduled reminder to sent.
func (s *Store) MarkReminderSent(ctx context.Context, id int64, sentAt time.Time) error {
	return s.setReminderStatus(ctx, id, models.ReminderStatusSent, &sentAt)
}

// MarkReminderCancelled flips a scheduled reminder to cancelled.
func (s *Store) MarkReminderCancelled(ctx context.Context, id int64) error {
	return s.setReminderStatus(ctx, id, models.ReminderStatusCancelled, nil)
}

func (s *Store) setReminderStatus(ctx context.Context, id int64, status string, sentAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE booking_reminders SET status = $1, sent_at = $2 WHERE id = $3 AND status = $4",
		status, sentAt, id, models.ReminderStatusScheduled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reminder %d is not scheduled: %w", id, models.ErrInvalidState)
	}
	return nil
}
