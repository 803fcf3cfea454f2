package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklySchedulePeriodsFor(t *testing.T) {
	var ws WeeklySchedule
	require.NoError(t, ws.Scan([]byte(`{"monday":[{"start":"09:00","end":"12:00"}]}`)))

	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	periods := ws.PeriodsFor(monday)
	require.Len(t, periods, 1)

	start, end, err := periods[0].On(monday, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), end)

	assert.Empty(t, ws.PeriodsFor(monday.AddDate(0, 0, 1)))
}

func TestPeriodRejectsInvertedRange(t *testing.T) {
	_, _, err := Period{Start: "12:00", End: "09:00"}.On(time.Now(), time.UTC)
	assert.Error(t, err)

	_, _, err = Period{Start: "9am", End: "10:00"}.On(time.Now(), time.UTC)
	assert.Error(t, err)
}

func TestAvailabilityCoversDate(t *testing.T) {
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)
	a := Availability{EffectiveFrom: &from, EffectiveTo: &to}

	assert.True(t, a.CoversDate(time.Date(2026, 10, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, a.CoversDate(time.Date(2026, 10, 31, 18, 0, 0, 0, time.UTC)))
	assert.False(t, a.CoversDate(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)))

	open := Availability{}
	assert.True(t, open.CoversDate(time.Now()))
}

func TestExceptionAppliesOn(t *testing.T) {
	e := AvailabilityException{
		StartDate:     time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 12, 26, 0, 0, 0, 0, time.UTC),
		ExceptionType: ExceptionHoliday,
	}
	assert.True(t, e.AppliesOn(time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC)))
	assert.False(t, e.AppliesOn(time.Date(2026, 12, 27, 10, 0, 0, 0, time.UTC)))
	assert.True(t, e.Blocking())

	e.ExceptionType = ExceptionAvailable
	assert.False(t, e.Blocking())
}

func TestServiceCapacityDefaults(t *testing.T) {
	s := ServiceProduct{}
	assert.Equal(t, 1, s.Capacity())
	assert.Equal(t, time.UTC, s.Location())

	s.MaxCapacity = 4
	assert.Equal(t, 4, s.Capacity())
}

func TestDateAcceptsDateOnlyAndRFC3339(t *testing.T) {
	var body struct {
		Start Date  `json:"start"`
		End   Date  `json:"end"`
		Until *Date `json:"until"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2026-03-03","end":"2026-03-04T10:00:00Z","until":null}`), &body))

	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), body.Start.Time)
	assert.Equal(t, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), body.End.Time)
	assert.Nil(t, body.Until.TimePtr())

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`"03/03/2026"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`20260303`), &bad))
}
