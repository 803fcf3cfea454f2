package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/scheduling"
	"booking-scheduler/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCancellationFeePercent applies when BookingRules carries a negative fee.
const DefaultCancellationFeePercent = 50

// BookingRules are the engine-wide lifecycle settings. A zero
// CancellationFeePercent means late cancellations are free.
type BookingRules struct {
	CancellationFeePercent   int
	DefaultCancellationHours int
	IdempotencyTTL           time.Duration
}

// BookingService is the booking lifecycle state machine.
type BookingService struct {
	catalog     CatalogReader
	store       BookingStore
	checker     *ConflictChecker
	reminders   *ReminderScheduler
	publisher   EventPublisher
	idempotency IdempotencyStore
	rules       BookingRules
	logger      *zap.Logger
	now         func() time.Time
}

// NewBookingService creates a new booking service. idempotency may be nil.
func NewBookingService(
	catalog CatalogReader,
	store BookingStore,
	reminders *ReminderScheduler,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	rules BookingRules,
) *BookingService {
	if rules.CancellationFeePercent < 0 {
		rules.CancellationFeePercent = DefaultCancellationFeePercent
	}
	if rules.DefaultCancellationHours <= 0 {
		rules.DefaultCancellationHours = 24
	}
	if rules.IdempotencyTTL <= 0 {
		rules.IdempotencyTTL = 24 * time.Hour
	}
	return &BookingService{
		catalog:     catalog,
		store:       store,
		checker:     NewConflictChecker(catalog, store),
		reminders:   reminders,
		publisher:   publisher,
		idempotency: idempotency,
		rules:       rules,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// CreateBookingRequest represents a request to reserve a slot
type CreateBookingRequest struct {
	TenantID       int64     `json:"tenant_id"`
	CustomerID     string    `json:"customer_id" binding:"required"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone  string    `json:"customer_phone"`
	ServiceID      int64     `json:"service_id" binding:"required"`
	ProviderID     *int64    `json:"provider_id,omitempty"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	Timezone       string    `json:"timezone"`
	AttendeeCount  int       `json:"attendee_count"`
	CustomerNotes  string    `json:"customer_notes"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// CompleteRequest carries the optional provider notes of a completion.
type CompleteRequest struct {
	ProviderNotes string `json:"provider_notes"`
}

// CancelRequest describes who cancels and why.
type CancelRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

// rescheduleLink is set when a booking is created as a reschedule replacement.
type rescheduleLink struct {
	fromID  int64
	count   int
	inherit *models.Booking
}

// CreateBooking reserves a slot and creates a pending booking.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if req.IdempotencyKey != "" {
		existing, err := s.findIdempotent(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Duplicate booking request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("booking_id", existing.ID))
			return existing, nil
		}
	}

	booking, err := s.create(ctx, req, nil)
	if errors.Is(err, models.ErrDuplicate) && req.IdempotencyKey != "" {
		// lost a race with a request carrying the same key
		if existing, findErr := s.store.GetBookingByIdempotencyKey(ctx, req.IdempotencyKey); findErr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetIdempotentBooking(ctx, req.IdempotencyKey, booking.ID, s.rules.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
		}
	}
	return booking, nil
}

// findIdempotent looks the key up in the fast cache first and falls back to the
// bookings table, which holds the key under a unique index.
func (s *BookingService) findIdempotent(ctx context.Context, key string) (*models.Booking, error) {
	if s.idempotency != nil {
		id, found, err := s.idempotency.GetIdempotentBooking(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency cache lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		} else if found {
			return s.store.GetBooking(ctx, id)
		}
	}

	existing, err := s.store.GetBookingByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	return existing, nil
}

func (s *BookingService) create(ctx context.Context, req *CreateBookingRequest, link *rescheduleLink) (*models.Booking, error) {
	svc, err := s.catalog.GetServiceProduct(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	attendees := req.AttendeeCount
	if attendees == 0 {
		attendees = 1
	}
	if attendees < 0 {
		return nil, fmt.Errorf("attendee count must be positive: %w", models.ErrValidation)
	}
	if req.ProviderID != nil && len(svc.ProviderIDs) > 0 && !containsID(svc.ProviderIDs, *req.ProviderID) {
		return nil, fmt.Errorf("provider %d is not assigned to service %d: %w", *req.ProviderID, svc.ID, models.ErrValidation)
	}

	now := s.now()
	start := req.StartTime
	end := start.Add(svc.Duration())

	// rules that need no lock are rejected before opening the transaction
	if reason := s.checker.Evaluate(now, svc, start, end, attendees, nil, 0); reason != scheduling.ReasonNone {
		util.SlotRejectionsTotal.WithLabelValues(string(reason)).Inc()
		util.BookingsFailedTotal.WithLabelValues(string(reason)).Inc()
		return nil, fmt.Errorf("%s: %w", reason, models.ErrSlotUnavailable)
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = svc.Location().String()
	}

	booking := &models.Booking{
		BookingNumber:   newBookingNumber(now),
		TenantID:        req.TenantID,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ServiceID:       svc.ID,
		ProviderID:      req.ProviderID,
		StartTime:       start,
		EndTime:         end,
		Timezone:        timezone,
		AttendeeCount:   attendees,
		LocationType:    svc.LocationType,
		LocationAddress: svc.LocationAddress,
		CustomerNotes:   req.CustomerNotes,
		Status:          models.BookingStatusPending,
		TotalAmount:     svc.Price * int64(attendees),
		Currency:        svc.Currency,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		booking.IdempotencyKey = &key
	}

	var excludeID int64
	if link != nil {
		fromID := link.fromID
		booking.RescheduledFromID = &fromID
		booking.RescheduleCount = link.count
		excludeID = link.fromID
		if link.inherit != nil {
			booking.LocationType = link.inherit.LocationType
			booking.LocationAddress = link.inherit.LocationAddress
			booking.ProviderNotes = link.inherit.ProviderNotes
		}
	}

	item := &models.BookingItem{
		ServiceID:       svc.ID,
		Description:     svc.Name,
		DurationMinutes: svc.DurationMinutes,
		Quantity:        attendees,
		UnitPrice:       svc.Price,
		TotalPrice:      svc.Price * int64(attendees),
	}

	err = s.store.ReserveBooking(ctx, booking, item, func(existing []models.Booking) error {
		if reason := s.checker.Evaluate(now, svc, start, end, attendees, existing, excludeID); reason != scheduling.ReasonNone {
			util.SlotRejectionsTotal.WithLabelValues(string(reason)).Inc()
			return fmt.Errorf("%s: %w", reason, models.ErrSlotUnavailable)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrSlotUnavailable) {
			util.BookingsFailedTotal.WithLabelValues("slot_unavailable").Inc()
			return nil, err
		}
		util.BookingsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to reserve booking: %w", err)
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber),
		zap.Int64("service_id", booking.ServiceID),
		zap.Time("start", booking.StartTime))

	if _, err := s.reminders.Schedule(ctx, booking.ID, booking.StartTime, booking.CustomerEmail); err != nil {
		s.logger.Error("Failed to schedule reminders", zap.Int64("booking_id", booking.ID), zap.Error(err))
	}

	s.publishStatus(ctx, booking, models.EventTypeBookingCreated, "", booking.RescheduledFromID)
	return booking, nil
}

// GetBooking retrieves a booking by ID
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// GetBookingWithItems retrieves a booking and its line items
func (s *BookingService) GetBookingWithItems(ctx context.Context, id int64) (*models.Booking, []models.BookingItem, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetBookingItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return booking, items, nil
}

// Confirm moves a pending booking to confirmed.
func (s *BookingService) Confirm(ctx context.Context, id int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Confirm")
	defer span.End()

	return s.transition(ctx, id, []string{models.BookingStatusPending},
		models.BookingTransition{Status: models.BookingStatusConfirmed}, models.EventTypeBookingConfirmed)
}

// CheckIn moves a confirmed booking to checked_in.
func (s *BookingService) CheckIn(ctx context.Context, id int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CheckIn")
	defer span.End()

	return s.transition(ctx, id, []string{models.BookingStatusConfirmed},
		models.BookingTransition{Status: models.BookingStatusCheckedIn}, models.EventTypeBookingCheckedIn)
}

// StartService moves a checked-in booking to in_progress.
func (s *BookingService) StartService(ctx context.Context, id int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.StartService")
	defer span.End()

	return s.transition(ctx, id, []string{models.BookingStatusCheckedIn},
		models.BookingTransition{Status: models.BookingStatusInProgress}, models.EventTypeBookingStarted)
}

// Complete finishes a confirmed, checked-in or in-progress booking.
func (s *BookingService) Complete(ctx context.Context, id int64, req CompleteRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Complete")
	defer span.End()

	from := []string{models.BookingStatusConfirmed, models.BookingStatusCheckedIn, models.BookingStatusInProgress}
	booking, err := s.transition(ctx, id, from, models.BookingTransition{
		Status:        models.BookingStatusCompleted,
		ProviderNotes: req.ProviderNotes,
	}, models.EventTypeBookingCompleted)
	if err != nil {
		return nil, err
	}
	s.cancelReminders(ctx, id)
	return booking, nil
}

// MarkNoShow records that the customer of a confirmed booking did not turn up.
func (s *BookingService) MarkNoShow(ctx context.Context, id int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.MarkNoShow")
	defer span.End()

	booking, err := s.transition(ctx, id, []string{models.BookingStatusConfirmed},
		models.BookingTransition{Status: models.BookingStatusNoShow}, models.EventTypeBookingNoShow)
	if err != nil {
		return nil, err
	}
	s.cancelReminders(ctx, id)
	return booking, nil
}

// Cancel cancels an active booking, charging the late-cancellation fee when the
// booking starts within the service's cancellation policy window.
func (s *BookingService) Cancel(ctx context.Context, id int64, req CancelRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Cancel")
	defer span.End()

	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return nil, invalidState("cancel", current)
	}

	svc, err := s.catalog.GetServiceProduct(ctx, current.ServiceID)
	if err != nil {
		return nil, err
	}
	policyHours := svc.CancellationPolicyHours
	if policyHours <= 0 {
		policyHours = s.rules.DefaultCancellationHours
	}
	fee := scheduling.CancellationFee(s.now(), current.StartTime, policyHours, s.rules.CancellationFeePercent, current.TotalAmount)

	cancelledBy := req.CancelledBy
	if cancelledBy == "" {
		cancelledBy = models.CancelledByCustomer
	}

	booking, err := s.transition(ctx, id, models.ActiveBookingStatuses, models.BookingTransition{
		Status:             models.BookingStatusCancelled,
		CancelledBy:        cancelledBy,
		CancellationReason: req.Reason,
		CancellationFee:    &fee,
	}, models.EventTypeBookingCancelled)
	if err != nil {
		return nil, err
	}

	if fee > 0 {
		util.CancellationFeesTotal.Add(float64(fee))
	}
	s.cancelReminders(ctx, id)
	return booking, nil
}

// transition applies a guarded status change. The guard is checked here for a clear
// error and again by the store as a compare-and-swap, so a concurrent change also
// surfaces as ErrInvalidState.
func (s *BookingService) transition(ctx context.Context, id int64, from []string, tr models.BookingTransition, eventType string) (*models.Booking, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !containsStatus(from, current.Status) {
		return nil, invalidState(tr.Status, current)
	}

	tr.At = s.now()
	updated, err := s.store.TransitionBooking(ctx, id, from, tr)
	if err != nil {
		return nil, err
	}

	util.BookingTransitionsTotal.WithLabelValues(tr.Status).Inc()
	s.logger.Info("Booking transitioned",
		zap.Int64("booking_id", id),
		zap.String("from", current.Status),
		zap.String("to", updated.Status))

	s.publishStatus(ctx, updated, eventType, current.Status, tr.RescheduledToID)
	return updated, nil
}

func (s *BookingService) cancelReminders(ctx context.Context, bookingID int64) {
	if err := s.reminders.Cancel(ctx, bookingID); err != nil {
		s.logger.Error("Failed to cancel reminders", zap.Int64("booking_id", bookingID), zap.Error(err))
	}
}

func (s *BookingService) publishStatus(ctx context.Context, b *models.Booking, eventType, previous string, related *int64) {
	event := &models.BookingStatusEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		BookingID:       b.ID,
		BookingNumber:   b.BookingNumber,
		ServiceID:       b.ServiceID,
		ProviderID:      b.ProviderID,
		CustomerEmail:   b.CustomerEmail,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Status:          b.Status,
		PreviousStatus:  previous,
		CancellationFee: b.CancellationFee,
		RelatedID:       related,
	}
	if err := s.publisher.PublishBookingStatus(ctx, event); err != nil {
		s.logger.Error("Failed to publish booking event",
			zap.String("event_type", eventType),
			zap.Int64("booking_id", b.ID),
			zap.Error(err))
	}
}

func invalidState(action string, b *models.Booking) error {
	return fmt.Errorf("cannot move booking %d from %s to %s: %w", b.ID, b.Status, action, models.ErrInvalidState)
}

// newBookingNumber formats BK-<base36 unix millis>-<base36 random>.
func newBookingNumber(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	random := strconv.FormatInt(rand.Int63n(36*36*36*36*36*36), 36)
	return strings.ToUpper(fmt.Sprintf("BK-%s-%s", ts, random))
}

func containsStatus(statuses []string, status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
