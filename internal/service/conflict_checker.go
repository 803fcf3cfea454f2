package service

import (
	"context"
	"fmt"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/scheduling"
	"booking-scheduler/internal/util"

	"go.uber.org/zap"
)

// ConflictChecker decides whether a concrete slot can be booked.
type ConflictChecker struct {
	catalog  CatalogReader
	bookings BookingStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewConflictChecker creates a new conflict checker
func NewConflictChecker(catalog CatalogReader, bookings BookingStore) *ConflictChecker {
	return &ConflictChecker{
		catalog:  catalog,
		bookings: bookings,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// IsAvailable reports whether [start,end) can take one more attendee for the
// service (and provider, when given).
func (cc *ConflictChecker) IsAvailable(ctx context.Context, serviceID int64, start, end time.Time, providerID *int64) (bool, error) {
	reason, err := cc.Check(ctx, serviceID, start, end, providerID, 1)
	if err != nil {
		return false, err
	}
	return reason == scheduling.ReasonNone, nil
}

// Check applies the booking window rule, then the overlap and capacity rule, and
// returns the first failing reason.
func (cc *ConflictChecker) Check(ctx context.Context, serviceID int64, start, end time.Time, providerID *int64, attendees int) (scheduling.RejectReason, error) {
	ctx, span := util.StartSpan(ctx, "ConflictChecker.Check")
	defer span.End()

	svc, err := cc.catalog.GetServiceProduct(ctx, serviceID)
	if err != nil {
		return scheduling.ReasonNone, err
	}

	now := cc.now()
	if reason := cc.Evaluate(now, svc, start, end, attendees, nil, 0); reason != scheduling.ReasonNone {
		cc.reject(svc.ID, start, reason)
		return reason, nil
	}

	existing, err := cc.bookings.ListBookings(ctx, models.BookingFilter{
		ServiceID:  &serviceID,
		ProviderID: providerID,
		Statuses:   models.ActiveBookingStatuses,
		From:       start,
		To:         end,
	})
	if err != nil {
		return scheduling.ReasonNone, fmt.Errorf("failed to list bookings: %w", err)
	}

	reason := cc.Evaluate(now, svc, start, end, attendees, existing, 0)
	if reason != scheduling.ReasonNone {
		cc.reject(svc.ID, start, reason)
	}
	return reason, nil
}

// Evaluate runs the booking window rule and then the capacity rule against
// bookings the caller already loaded. existing may be nil to check only the
// rules that do not depend on other bookings. It records nothing.
func (cc *ConflictChecker) Evaluate(
	now time.Time,
	svc *models.ServiceProduct,
	start, end time.Time,
	attendees int,
	existing []models.Booking,
	excludeID int64,
) scheduling.RejectReason {
	if reason := scheduling.CheckBookingWindow(now, start, svc.MinAdvanceBookingHours, svc.MaxAdvanceBookingDays); reason != scheduling.ReasonNone {
		return reason
	}
	return scheduling.CheckCapacity(start, end, attendees, svc.Capacity(), existing, excludeID)
}

func (cc *ConflictChecker) reject(serviceID int64, start time.Time, reason scheduling.RejectReason) {
	util.SlotRejectionsTotal.WithLabelValues(string(reason)).Inc()
	cc.logger.Debug("Slot rejected",
		zap.Int64("service_id", serviceID),
		zap.Time("start", start),
		zap.String("reason", string(reason)))
}
