package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of rejected or failed booking attempts",
	}, []string{"reason"})

	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Total number of booking status transitions by target status",
	}, []string{"status"})

	BookingReschedulesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_reschedules_total",
		Help: "Total number of completed reschedules",
	})

	RescheduleCompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_reschedule_compensations_total",
		Help: "Total number of reschedule replacements orphaned by compensation",
	})

	CancellationFeesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_cancellation_fees_total",
		Help: "Sum of late-cancellation fees charged, in minor currency units",
	})

	SlotRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slot_rejections_total",
		Help: "Total number of slots rejected by the conflict checker",
	}, []string{"reason"})

	AvailabilityResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_resolve_latency_seconds",
		Help:    "Latency of availability resolution",
		Buckets: prometheus.DefBuckets,
	})

	AvailabilityFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_fallback_total",
		Help: "Total number of resolutions that used an availability record not covering the date",
	})

	RemindersScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_scheduled_total",
		Help: "Total number of booking reminders scheduled",
	})

	RemindersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_cancelled_total",
		Help: "Total number of booking reminders cancelled",
	})

	RemindersDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_dispatched_total",
		Help: "Total number of reminders handed to the dispatcher",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
