package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"booking-scheduler/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// GetBooking retrieves a booking by ID
func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &booking, nil
}

// GetBookingByIdempotencyKey retrieves the booking created under key, or nil.
func (s *Store) GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings, "SELECT * FROM bookings WHERE idempotency_key = $1", key)
	if err != nil || len(bookings) == 0 {
		return nil, err
	}
	return &bookings[0], nil
}

// ListBookings returns bookings matching filter in start time order.
func (s *Store) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	query, args := buildBookingQuery(filter, false)

	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings, query, args...)
	return bookings, err
}

// buildBookingQuery renders filter as a positional postgres query.
func buildBookingQuery(filter models.BookingFilter, forUpdate bool) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ServiceID != nil {
		add("service_id = $%d", *filter.ServiceID)
	}
	if filter.ProviderID != nil {
		add("provider_id = $%d", *filter.ProviderID)
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(filter.Statuses))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		add("start_time < $%d", filter.To)
		add("end_time > $%d", filter.From)
	}

	query := "SELECT * FROM bookings"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if forUpdate {
		query += " FOR UPDATE"
	}
	return query, args
}

// ReserveBooking inserts booking and item inside one transaction. The service row
// is locked FOR UPDATE first, so concurrent reservations for the same service run
// check one after another and each sees the bookings committed before it.
func (s *Store) ReserveBooking(ctx context.Context, booking *models.Booking, item *models.BookingItem, check func(existing []models.Booking) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.GetContext(ctx, &locked,
		"SELECT id FROM service_products WHERE id = $1 FOR UPDATE", booking.ServiceID)
	if err != nil {
		return notFound(err, "service", booking.ServiceID)
	}

	query, args := buildBookingQuery(models.BookingFilter{
		ServiceID:  &booking.ServiceID,
		ProviderID: booking.ProviderID,
		Statuses:   models.ActiveBookingStatuses,
		From:       booking.StartTime,
		To:         booking.EndTime,
	}, true)

	var existing []models.Booking
	if err := tx.SelectContext(ctx, &existing, query, args...); err != nil {
		return fmt.Errorf("failed to load overlapping bookings: %w", err)
	}

	if err := check(existing); err != nil {
		return err
	}

	if err := insertBooking(ctx, tx, booking); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("booking %s: %w", booking.BookingNumber, models.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	item.BookingID = booking.ID
	err = tx.GetContext(ctx, &item.ID, `
		INSERT INTO booking_items (booking_id, service_id, description, duration_minutes, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		item.BookingID, item.ServiceID, item.Description, item.DurationMinutes, item.Quantity, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to insert booking item: %w", err)
	}

	return tx.Commit()
}

func insertBooking(ctx context.Context, tx *sqlx.Tx, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			booking_number, tenant_id, customer_id, customer_name, customer_email, customer_phone,
			service_id, provider_id, start_time, end_time, timezone, attendee_count,
			location_type, location_address, customer_notes, provider_notes, status,
			total_amount, currency, rescheduled_from_id, reschedule_count, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		b.BookingNumber, b.TenantID, b.CustomerID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.ServiceID, b.ProviderID, b.StartTime, b.EndTime, b.Timezone, b.AttendeeCount,
		b.LocationType, b.LocationAddress, b.CustomerNotes, b.ProviderNotes, b.Status,
		b.TotalAmount, b.Currency, b.RescheduledFromID, b.RescheduleCount, b.IdempotencyKey)
	return row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// transitionColumns maps a target status to the timestamp column it stamps.
var transitionColumns = map[string]string{
	models.BookingStatusConfirmed:   "confirmed_at",
	models.BookingStatusCheckedIn:   "checked_in_at",
	models.BookingStatusInProgress:  "started_at",
	models.BookingStatusCompleted:   "completed_at",
	models.BookingStatusCancelled:   "cancelled_at",
	models.BookingStatusNoShow:      "no_show_at",
	models.BookingStatusRescheduled: "rescheduled_at",
}

// TransitionBooking moves booking id to tr.Status only if its current status is in
// from. A booking that exists but no longer matches yields ErrInvalidState.
func (s *Store) TransitionBooking(ctx context.Context, id int64, from []string, tr models.BookingTransition) (*models.Booking, error) {
	query, args := buildTransition(id, from, tr)

	var updated models.Booking
	err := s.db.GetContext(ctx, &updated, query, args...)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	current, getErr := s.GetBooking(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("booking %d is %s: %w", id, current.Status, models.ErrInvalidState)
}

func buildTransition(id int64, from []string, tr models.BookingTransition) (string, []interface{}) {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{tr.Status, tr.At}
	set := func(column string, arg interface{}) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if column, ok := transitionColumns[tr.Status]; ok {
		set(column, tr.At)
	}
	if tr.ProviderNotes != "" {
		set("provider_notes", tr.ProviderNotes)
	}
	if tr.CancelledBy != "" {
		set("cancelled_by", tr.CancelledBy)
	}
	if tr.CancellationReason != "" {
		set("cancellation_reason", tr.CancellationReason)
	}
	if tr.CancellationFee != nil {
		set("cancellation_fee", *tr.CancellationFee)
	}
	if tr.RescheduledToID != nil {
		set("rescheduled_to_id", *tr.RescheduledToID)
	}

	args = append(args, id, pq.Array(from))
	query := fmt.Sprintf("UPDATE bookings SET %s WHERE id = $%d AND status = ANY($%d) RETURNING *",
		strings.Join(sets, ", "), len(args)-1, len(args))
	return query, args
}

// GetBookingItems retrieves all items for a booking
func (s *Store) GetBookingItems(ctx context.Context, bookingID int64) ([]models.BookingItem, error) {
	var items []models.BookingItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM booking_items WHERE booking_id = $1 ORDER BY id", bookingID)
	return items, err
}
