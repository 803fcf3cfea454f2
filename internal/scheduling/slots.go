// Package scheduling holds the pure slot, exception and capacity rules of the
// booking engine. Nothing here performs I/O.
package scheduling

import (
	"time"

	"booking-scheduler/internal/models"
)

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// SlotTiming is the service timing that drives slot generation.
type SlotTiming struct {
	Duration     time.Duration
	BufferBefore time.Duration
	BufferAfter  time.Duration
	// Step overrides the cadence when positive.
	Step time.Duration
}

// TimingFor builds the slot timing of a service product.
func TimingFor(svc *models.ServiceProduct) SlotTiming {
	return SlotTiming{
		Duration:     svc.Duration(),
		BufferBefore: time.Duration(svc.BufferBeforeMinutes) * time.Minute,
		BufferAfter:  time.Duration(svc.BufferAfterMinutes) * time.Minute,
		Step:         time.Duration(svc.SlotStepMinutes) * time.Minute,
	}
}

// Cadence is the distance between consecutive slot starts.
func (t SlotTiming) Cadence() time.Duration {
	if t.Step > 0 {
		return t.Step
	}
	return t.Duration + t.BufferBefore + t.BufferAfter
}

// GenerateSlots emits [cursor, cursor+duration) slots from period.Start, advancing by
// the cadence, while the slot plus both buffers still fits in the period. Buffers only
// space consecutive slots; they are not part of the slot.
func GenerateSlots(period Window, timing SlotTiming) []models.Slot {
	if timing.Duration <= 0 || !period.End.After(period.Start) {
		return nil
	}
	cadence := timing.Cadence()
	if cadence <= 0 {
		return nil
	}
	footprint := timing.Duration + timing.BufferBefore + timing.BufferAfter

	var slots []models.Slot
	for cursor := period.Start; !cursor.Add(footprint).After(period.End); cursor = cursor.Add(cadence) {
		slots = append(slots, models.Slot{
			Start: cursor,
			End:   cursor.Add(timing.Duration),
		})
	}
	return slots
}
