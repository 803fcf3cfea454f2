package scheduling

import (
	"sort"
	"time"

	"booking-scheduler/internal/models"
)

// RejectReason explains why a slot is not bookable. Empty means bookable.
type RejectReason string

const (
	ReasonNone         RejectReason = ""
	ReasonTooSoon      RejectReason = "too_soon"
	ReasonTooFar       RejectReason = "too_far"
	ReasonCapacityFull RejectReason = "capacity_full"
	ReasonOversized    RejectReason = "exceeds_capacity"
)

// CheckBookingWindow enforces min-advance hours and max-advance days relative to now.
// maxDays <= 0 leaves the upper bound open.
func CheckBookingWindow(now, start time.Time, minHours, maxDays int) RejectReason {
	lead := start.Sub(now)
	if lead < time.Duration(minHours)*time.Hour {
		return ReasonTooSoon
	}
	if maxDays > 0 && lead > time.Duration(maxDays)*24*time.Hour {
		return ReasonTooFar
	}
	return ReasonNone
}

// CheckCapacity rejects [start,end) when adding attendees would push the peak
// concurrent attendance of the overlapping active bookings above capacity.
// The booking with excludeID (if non-zero) is ignored, which lets a reschedule
// move inside its own footprint.
func CheckCapacity(start, end time.Time, attendees, capacity int, existing []models.Booking, excludeID int64) RejectReason {
	if attendees > capacity {
		return ReasonOversized
	}
	if PeakAttendance(start, end, existing, excludeID)+attendees > capacity {
		return ReasonCapacityFull
	}
	return ReasonNone
}

type edge struct {
	at    time.Time
	delta int
}

// PeakAttendance is the maximum number of attendees present at any instant of
// [start,end) across active bookings overlapping it.
func PeakAttendance(start, end time.Time, existing []models.Booking, excludeID int64) int {
	var edges []edge
	for i := range existing {
		b := &existing[i]
		if b.ID == excludeID && excludeID != 0 {
			continue
		}
		if !b.IsActive() || !Overlaps(start, end, b.StartTime, b.EndTime) {
			continue
		}
		from, to := b.StartTime, b.EndTime
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		n := b.AttendeeCount
		if n <= 0 {
			n = 1
		}
		edges = append(edges, edge{at: from, delta: n}, edge{at: to, delta: -n})
	}

	// Ends sort before starts at the same instant: [a,b) and [b,c) never coexist.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	current, peak := 0, 0
	for _, e := range edges {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}

// CancellationFee charges feePercent of total when the booking is cancelled
// less than policyHours before it starts.
func CancellationFee(now, start time.Time, policyHours, feePercent int, total int64) int64 {
	if start.Sub(now) < time.Duration(policyHours)*time.Hour {
		return total * int64(feePercent) / 100
	}
	return 0
}
