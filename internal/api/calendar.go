package api

import (
	"net/http"

	"booking-scheduler/internal/service"

	"github.com/gin-gonic/gin"
)

// createAvailability stores a weekly template
func (h *Handler) createAvailability(c *gin.Context) {
	var req service.CreateAvailabilityRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	availability, err := h.calendar.CreateAvailability(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to create availability", err)
		return
	}

	c.JSON(http.StatusCreated, availability)
}

// createException stores a date-ranged override
func (h *Handler) createException(c *gin.Context) {
	var req service.CreateExceptionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	exception, err := h.calendar.CreateException(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to create exception", err)
		return
	}

	c.JSON(http.StatusCreated, exception)
}
