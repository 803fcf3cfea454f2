package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/service"
	"booking-scheduler/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BookingAPI is the lifecycle surface the handlers drive.
type BookingAPI interface {
	CreateBooking(ctx context.Context, req *service.CreateBookingRequest) (*models.Booking, error)
	GetBookingWithItems(ctx context.Context, id int64) (*models.Booking, []models.BookingItem, error)
	Confirm(ctx context.Context, id int64) (*models.Booking, error)
	CheckIn(ctx context.Context, id int64) (*models.Booking, error)
	StartService(ctx context.Context, id int64) (*models.Booking, error)
	Complete(ctx context.Context, id int64, req service.CompleteRequest) (*models.Booking, error)
	Cancel(ctx context.Context, id int64, req service.CancelRequest) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id int64) (*models.Booking, error)
	Reschedule(ctx context.Context, id int64, req *service.RescheduleRequest) (*service.RescheduleResult, error)
}

// AvailabilityAPI resolves free slots.
type AvailabilityAPI interface {
	Resolve(ctx context.Context, serviceID int64, date time.Time, providerID *int64) ([]models.Slot, error)
}

// ScheduleAPI reads provider schedules.
type ScheduleAPI interface {
	GetProviderSchedule(ctx context.Context, providerID int64, from, to time.Time) (*service.ProviderSchedule, error)
}

// ReminderAPI lists a booking's reminders.
type ReminderAPI interface {
	ForBooking(ctx context.Context, bookingID int64) ([]models.BookingReminder, error)
}

// CalendarAPI stores availability templates and exceptions.
type CalendarAPI interface {
	CreateAvailability(ctx context.Context, req *service.CreateAvailabilityRequest) (*models.Availability, error)
	CreateException(ctx context.Context, req *service.CreateExceptionRequest) (*models.AvailabilityException, error)
}

// Services groups what the handlers call into.
type Services struct {
	Bookings     BookingAPI
	Availability AvailabilityAPI
	Schedules    ScheduleAPI
	Reminders    ReminderAPI
	Calendar     CalendarAPI
}

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	bookings     BookingAPI
	availability AvailabilityAPI
	schedules    ScheduleAPI
	reminders    ReminderAPI
	calendar     CalendarAPI
	checks       map[string]ReadinessCheck
	limiter      *RateLimiter
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler. limiter may be nil.
func NewHandler(services Services, checks map[string]ReadinessCheck, limiter *RateLimiter) *Handler {
	return &Handler{
		bookings:     services.Bookings,
		availability: services.Availability,
		schedules:    services.Schedules,
		reminders:    services.Reminders,
		calendar:     services.Calendar,
		checks:       checks,
		limiter:      limiter,
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if h.limiter != nil {
		v1.Use(h.limiter.Middleware())
	}
	{
		v1.GET("/services/:id/availability", h.getAvailability)

		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings/:id", h.getBooking)
		v1.POST("/bookings/:id/confirm", h.confirmBooking)
		v1.POST("/bookings/:id/check-in", h.checkInBooking)
		v1.POST("/bookings/:id/start", h.startBooking)
		v1.POST("/bookings/:id/complete", h.completeBooking)
		v1.POST("/bookings/:id/cancel", h.cancelBooking)
		v1.POST("/bookings/:id/no-show", h.noShowBooking)
		v1.POST("/bookings/:id/reschedule", h.rescheduleBooking)
		v1.GET("/bookings/:id/reminders", h.getBookingReminders)

		v1.GET("/providers/:id/schedule", h.getProviderSchedule)

		v1.POST("/availabilities", h.createAvailability)
		v1.POST("/exceptions", h.createException)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// NewMetricsServer serves only /metrics, for scrapers kept off the API port.
func NewMetricsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
