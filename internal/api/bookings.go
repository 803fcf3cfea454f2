package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to create booking", err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "Invalid booking ID")
	if !ok {
		return
	}

	booking, items, err := h.bookings.GetBookingWithItems(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, "Booking not found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking": booking,
		"items":   items,
	})
}

func (h *Handler) confirmBooking(c *gin.Context) {
	h.lifecycle(c, "Failed to confirm booking", h.bookings.Confirm)
}

func (h *Handler) checkInBooking(c *gin.Context) {
	h.lifecycle(c, "Failed to check in booking", h.bookings.CheckIn)
}

func (h *Handler) startBooking(c *gin.Context) {
	h.lifecycle(c, "Failed to start booking", h.bookings.StartService)
}

func (h *Handler) noShowBooking(c *gin.Context) {
	h.lifecycle(c, "Failed to mark no-show", h.bookings.MarkNoShow)
}

// completeBooking accepts an optional body with provider notes
func (h *Handler) completeBooking(c *gin.Context) {
	var req service.CompleteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.lifecycle(c, "Failed to complete booking", func(ctx context.Context, id int64) (*models.Booking, error) {
		return h.bookings.Complete(ctx, id, req)
	})
}

// cancelBooking accepts an optional body naming the canceller and reason
func (h *Handler) cancelBooking(c *gin.Context) {
	var req service.CancelRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.lifecycle(c, "Failed to cancel booking", func(ctx context.Context, id int64) (*models.Booking, error) {
		return h.bookings.Cancel(ctx, id, req)
	})
}

// rescheduleBooking moves a booking to a new start time
func (h *Handler) rescheduleBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "Invalid booking ID")
	if !ok {
		return
	}

	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.bookings.Reschedule(c.Request.Context(), bookingID, &req)
	if err != nil {
		h.respondError(c, "Failed to reschedule booking", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// getBookingReminders lists the booking's reminders in every status
func (h *Handler) getBookingReminders(c *gin.Context) {
	bookingID, ok := pathID(c, "Invalid booking ID")
	if !ok {
		return
	}

	if _, _, err := h.bookings.GetBookingWithItems(c.Request.Context(), bookingID); err != nil {
		h.respondError(c, "Booking not found", err)
		return
	}

	reminders, err := h.reminders.ForBooking(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, "Failed to list reminders", err)
		return
	}
	if reminders == nil {
		reminders = []models.BookingReminder{}
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID,
		"reminders":  reminders,
	})
}

// getAvailability lists free slots for one service on one date
func (h *Handler) getAvailability(c *gin.Context) {
	serviceID, ok := pathID(c, "Invalid service ID")
	if !ok {
		return
	}

	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid date, expected YYYY-MM-DD",
			"details": err.Error(),
		})
		return
	}

	var providerID *int64
	if raw := c.Query("provider_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid provider ID",
			})
			return
		}
		providerID = &id
	}

	slots, err := h.availability.Resolve(c.Request.Context(), serviceID, date, providerID)
	if err != nil {
		h.respondError(c, "Failed to resolve availability", err)
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"service_id": serviceID,
		"date":       date.Format(dateLayout),
		"slots":      slots,
	})
}

// getProviderSchedule returns a provider's bookings between two dates. to is
// inclusive and defaults to seven days after from.
func (h *Handler) getProviderSchedule(c *gin.Context) {
	providerID, ok := pathID(c, "Invalid provider ID")
	if !ok {
		return
	}

	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid from date, expected YYYY-MM-DD",
			"details": err.Error(),
		})
		return
	}

	to := from.AddDate(0, 0, 7)
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid to date, expected YYYY-MM-DD",
				"details": err.Error(),
			})
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	schedule, err := h.schedules.GetProviderSchedule(c.Request.Context(), providerID, from, to)
	if err != nil {
		h.respondError(c, "Failed to load provider schedule", err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (h *Handler) lifecycle(c *gin.Context, failure string, op func(ctx context.Context, id int64) (*models.Booking, error)) {
	bookingID, ok := pathID(c, "Invalid booking ID")
	if !ok {
		return
	}

	booking, err := op(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, failure, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrSlotUnavailable),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func pathID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": message,
		})
		return 0, false
	}
	return id, true
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}
