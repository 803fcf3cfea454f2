package scheduling

import (
	"fmt"
	"time"

	"booking-scheduler/internal/models"
)

// Exception scopes
const (
	ScopeDate  = "date"
	ScopeOwner = "owner"
)

// Owner identifies the availability owner a slot was generated for.
type Owner struct {
	Type string
	ID   int64
}

// ExceptionFilter removes slots that fall inside blocking exceptions.
type ExceptionFilter struct {
	Scope string
}

// NewExceptionFilter returns a filter for scope, defaulting to date scope.
func NewExceptionFilter(scope string) ExceptionFilter {
	if scope != ScopeOwner {
		scope = ScopeDate
	}
	return ExceptionFilter{Scope: scope}
}

// Apply returns the slots of owner on day that survive every blocking exception.
// Order is preserved. Timed exceptions with unparseable times block the whole day.
func (f ExceptionFilter) Apply(day time.Time, loc *time.Location, owner Owner, slots []models.Slot, exceptions []models.AvailabilityException) []models.Slot {
	var blocks []Window
	for i := range exceptions {
		e := &exceptions[i]
		if !e.Blocking() || !e.AppliesOn(day) || !f.matchesOwner(e, owner) {
			continue
		}
		w, err := exceptionWindow(e, day, loc)
		if err != nil || e.AllDay {
			return nil
		}
		blocks = append(blocks, w)
	}
	if len(blocks) == 0 {
		return slots
	}

	kept := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		blocked := false
		for _, b := range blocks {
			if Overlaps(s.Start, s.End, b.Start, b.End) {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, s)
		}
	}
	return kept
}

func (f ExceptionFilter) matchesOwner(e *models.AvailabilityException, owner Owner) bool {
	if f.Scope != ScopeOwner || e.OwnerID == nil {
		return true
	}
	return e.OwnerType == owner.Type && *e.OwnerID == owner.ID
}

func exceptionWindow(e *models.AvailabilityException, day time.Time, loc *time.Location) (Window, error) {
	if e.AllDay {
		return Window{}, nil
	}
	start, err := models.AtTimeOfDay(day, e.StartTime, loc)
	if err != nil {
		return Window{}, err
	}
	end, err := models.AtTimeOfDay(day, e.EndTime, loc)
	if err != nil {
		return Window{}, err
	}
	if !end.After(start) {
		return Window{}, fmt.Errorf("exception %d: end before start", e.ID)
	}
	return Window{Start: start, End: end}, nil
}
