package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Period is a time-of-day range inside one weekday, e.g. {"09:00","12:00"}.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// On anchors the period to the civil date of day in loc.
func (p Period) On(day time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start, err := AtTimeOfDay(day, p.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := AtTimeOfDay(day, p.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("period %s-%s: end must be after start", p.Start, p.End)
	}
	return start, end, nil
}

// WeeklySchedule maps a lowercase weekday name ("monday") to its open periods.
type WeeklySchedule map[string][]Period

// PeriodsFor returns the periods configured for the weekday of day.
func (w WeeklySchedule) PeriodsFor(day time.Time) []Period {
	if w == nil {
		return nil
	}
	return w[strings.ToLower(day.Weekday().String())]
}

// Value implements driver.Valuer for JSONB storage.
func (w WeeklySchedule) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner for JSONB storage.
func (w *WeeklySchedule) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = WeeklySchedule{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("weekly schedule: unsupported type %T", src)
	}
	out := WeeklySchedule{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("weekly schedule: %w", err)
	}
	*w = out
	return nil
}

// AtTimeOfDay returns the instant at "HH:MM" on the civil date of day in loc.
func AtTimeOfDay(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	tod, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

// DateLayout is the calendar date format used in query parameters and request bodies.
const DateLayout = "2006-01-02"

// Date is a calendar day in JSON bodies. It decodes either "2026-03-03" or an
// RFC3339 timestamp and encodes as RFC3339.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("date %q: expected YYYY-MM-DD or RFC3339", raw)
	}
	d.Time = t
	return nil
}

// TimePtr returns nil for a nil or zero date.
func (d *Date) TimePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
