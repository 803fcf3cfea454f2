package service

import (
	"context"
	"fmt"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RescheduleRequest moves a booking to a new start time.
type RescheduleRequest struct {
	NewStartTime time.Time `json:"new_start_time" binding:"required"`
	ProviderID   *int64    `json:"provider_id,omitempty"`
	Reason       string    `json:"reason"`
}

// RescheduleResult holds both sides of a completed reschedule.
type RescheduleResult struct {
	Original    *models.Booking `json:"original"`
	Replacement *models.Booking `json:"replacement"`
}

// Reschedule runs as a two-step saga: reserve the replacement slot, then link the
// original to it. If linking fails the replacement is orphaned so it stops holding
// capacity, and a BOOKING_ORPHANED event lets consumers clean up after it.
func (s *BookingService) Reschedule(ctx context.Context, id int64, req *RescheduleRequest) (*RescheduleResult, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Reschedule")
	defer span.End()
	util.AnnotateBooking(ctx, id)

	original, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !original.IsActive() {
		return nil, invalidState(models.BookingStatusRescheduled, original)
	}

	providerID := original.ProviderID
	if req.ProviderID != nil {
		providerID = req.ProviderID
	}

	// Step 1: reserve the new slot. The original's own attendance is excluded from
	// the capacity check so a booking can move within its own window.
	replacement, err := s.create(ctx, &CreateBookingRequest{
		TenantID:      original.TenantID,
		CustomerID:    original.CustomerID,
		CustomerName:  original.CustomerName,
		CustomerEmail: original.CustomerEmail,
		CustomerPhone: original.CustomerPhone,
		ServiceID:     original.ServiceID,
		ProviderID:    providerID,
		StartTime:     req.NewStartTime,
		Timezone:      original.Timezone,
		AttendeeCount: original.AttendeeCount,
		CustomerNotes: original.CustomerNotes,
	}, &rescheduleLink{
		fromID:  original.ID,
		count:   original.RescheduleCount + 1,
		inherit: original,
	})
	if err != nil {
		return nil, err
	}

	// Step 2: link the original. This is a compare-and-swap, so a concurrent
	// cancel or second reschedule makes it fail.
	linked, err := s.store.TransitionBooking(ctx, original.ID, models.ActiveBookingStatuses, models.BookingTransition{
		Status:          models.BookingStatusRescheduled,
		At:              s.now(),
		RescheduledToID: &replacement.ID,
	})
	if err != nil {
		s.compensateReschedule(ctx, original, replacement, err)
		return nil, fmt.Errorf("failed to link booking %d to replacement: %w", original.ID, err)
	}

	util.BookingReschedulesTotal.Inc()
	util.BookingTransitionsTotal.WithLabelValues(models.BookingStatusRescheduled).Inc()
	s.cancelReminders(ctx, original.ID)
	s.publishStatus(ctx, linked, models.EventTypeBookingRescheduled, original.Status, &replacement.ID)

	s.logger.Info("Booking rescheduled",
		zap.Int64("booking_id", original.ID),
		zap.Int64("replacement_id", replacement.ID),
		zap.Int("reschedule_count", replacement.RescheduleCount),
		zap.String("reason", req.Reason))

	return &RescheduleResult{Original: linked, Replacement: replacement}, nil
}

func (s *BookingService) compensateReschedule(ctx context.Context, original, replacement *models.Booking, cause error) {
	s.logger.Warn("Reschedule link failed - orphaning replacement",
		zap.Int64("booking_id", original.ID),
		zap.Int64("replacement_id", replacement.ID),
		zap.Error(cause))

	if _, err := s.store.TransitionBooking(ctx, replacement.ID, []string{models.BookingStatusPending}, models.BookingTransition{
		Status: models.BookingStatusOrphaned,
		At:     s.now(),
	}); err != nil {
		s.logger.Error("Failed to orphan replacement booking",
			zap.Int64("replacement_id", replacement.ID),
			zap.Error(err))
	}
	util.RescheduleCompensationsTotal.Inc()

	event := &models.BookingOrphanedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBookingOrphaned,
			Timestamp: s.now(),
		},
		BookingID:  replacement.ID,
		OriginalID: original.ID,
		Reason:     cause.Error(),
	}
	if err := s.publisher.PublishBookingOrphaned(ctx, event); err != nil {
		s.logger.Error("Failed to publish orphaned event",
			zap.Int64("replacement_id", replacement.ID),
			zap.Error(err))
	}
}

// OrphanCleaner consumes BOOKING_ORPHANED events and releases what the orphaned
// replacement still holds.
type OrphanCleaner struct {
	ledger    EventLedger
	reminders *ReminderScheduler
	logger    *zap.Logger
}

// NewOrphanCleaner creates a new orphan cleaner
func NewOrphanCleaner(ledger EventLedger, reminders *ReminderScheduler) *OrphanCleaner {
	return &OrphanCleaner{
		ledger:    ledger,
		reminders: reminders,
		logger:    util.GetLogger(),
	}
}

// HandleBookingOrphaned cancels the orphaned booking's reminders once per event.
func (oc *OrphanCleaner) HandleBookingOrphaned(ctx context.Context, event *models.BookingOrphanedEvent) error {
	ctx, span := util.StartSpan(ctx, "OrphanCleaner.HandleBookingOrphaned")
	defer span.End()

	processed, err := oc.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		oc.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	oc.logger.Info("Cleaning up orphaned booking",
		zap.Int64("booking_id", event.BookingID),
		zap.Int64("original_id", event.OriginalID),
		zap.String("reason", event.Reason))

	if err := oc.reminders.Cancel(ctx, event.BookingID); err != nil {
		return err
	}

	if err := oc.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		oc.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
