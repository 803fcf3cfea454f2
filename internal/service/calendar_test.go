package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"booking-scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCalendarWriter struct {
	availabilities []*models.Availability
	exceptions     []*models.AvailabilityException
}

func (m *memCalendarWriter) CreateAvailability(ctx context.Context, a *models.Availability) error {
	a.ID = int64(len(m.availabilities) + 1)
	m.availabilities = append(m.availabilities, a)
	return nil
}

func (m *memCalendarWriter) CreateException(ctx context.Context, e *models.AvailabilityException) error {
	e.ID = int64(len(m.exceptions) + 1)
	m.exceptions = append(m.exceptions, e)
	return nil
}

func TestCreateAvailabilityNormalizesWeekdays(t *testing.T) {
	writer := &memCalendarWriter{}
	calendar := NewCalendarService(writer)

	a, err := calendar.CreateAvailability(context.Background(), &CreateAvailabilityRequest{
		OwnerType: models.OwnerTypeProvider,
		OwnerID:   7,
		WeeklySchedule: models.WeeklySchedule{
			"Monday": {{Start: "09:00", End: "12:00"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.True(t, a.Active)
	assert.Contains(t, a.WeeklySchedule, "monday")
	assert.NotContains(t, a.WeeklySchedule, "Monday")
	require.Len(t, writer.availabilities, 1)
}

func TestCreateAvailabilityValidation(t *testing.T) {
	calendar := NewCalendarService(&memCalendarWriter{})
	ctx := context.Background()
	from := models.NewDate(testNow)
	to := models.NewDate(testNow.Add(-24 * time.Hour))

	tests := []struct {
		name string
		req  CreateAvailabilityRequest
	}{
		{"bad owner type", CreateAvailabilityRequest{OwnerType: "room", OwnerID: 1, WeeklySchedule: models.WeeklySchedule{"monday": {{Start: "09:00", End: "10:00"}}}}},
		{"missing owner", CreateAvailabilityRequest{OwnerType: models.OwnerTypeService, WeeklySchedule: models.WeeklySchedule{"monday": {{Start: "09:00", End: "10:00"}}}}},
		{"empty schedule", CreateAvailabilityRequest{OwnerType: models.OwnerTypeService, OwnerID: 1}},
		{"unknown weekday", CreateAvailabilityRequest{OwnerType: models.OwnerTypeService, OwnerID: 1, WeeklySchedule: models.WeeklySchedule{"funday": {{Start: "09:00", End: "10:00"}}}}},
		{"inverted period", CreateAvailabilityRequest{OwnerType: models.OwnerTypeService, OwnerID: 1, WeeklySchedule: models.WeeklySchedule{"monday": {{Start: "12:00", End: "09:00"}}}}},
		{"bad time", CreateAvailabilityRequest{OwnerType: models.OwnerTypeService, OwnerID: 1, WeeklySchedule: models.WeeklySchedule{"monday": {{Start: "9am", End: "10:00"}}}}},
		{"inverted window", CreateAvailabilityRequest{OwnerType: models.OwnerTypeService, OwnerID: 1, EffectiveFrom: &from, EffectiveTo: &to, WeeklySchedule: models.WeeklySchedule{"monday": {{Start: "09:00", End: "10:00"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calendar.CreateAvailability(ctx, &tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestCreateException(t *testing.T) {
	writer := &memCalendarWriter{}
	calendar := NewCalendarService(writer)
	ctx := context.Background()
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	global, err := calendar.CreateException(ctx, &CreateExceptionRequest{
		StartDate: models.NewDate(day),
		EndDate:   models.NewDate(day),
		AllDay:    true,
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExceptionBlocked, global.ExceptionType)
	assert.Empty(t, global.StartTime, "all-day exceptions drop their times")
	assert.Nil(t, global.OwnerID)

	partial, err := calendar.CreateException(ctx, &CreateExceptionRequest{
		OwnerType:     models.OwnerTypeProvider,
		OwnerID:       int64Ptr(7),
		StartDate:     models.NewDate(day),
		EndDate:       models.NewDate(day.AddDate(0, 0, 1)),
		ExceptionType: models.ExceptionTimeOff,
		StartTime:     "13:00",
		EndTime:       "15:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "13:00", partial.StartTime)
	assert.Len(t, writer.exceptions, 2)
}

func TestCreateExceptionValidation(t *testing.T) {
	calendar := NewCalendarService(&memCalendarWriter{})
	ctx := context.Background()
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	_, err := calendar.CreateException(ctx, &CreateExceptionRequest{StartDate: models.NewDate(day), EndDate: models.NewDate(day.AddDate(0, 0, -1)), AllDay: true})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = calendar.CreateException(ctx, &CreateExceptionRequest{StartDate: models.NewDate(day), EndDate: models.NewDate(day)})
	assert.ErrorIs(t, err, models.ErrValidation, "partial exception without times")

	_, err = calendar.CreateException(ctx, &CreateExceptionRequest{OwnerID: int64Ptr(3), StartDate: models.NewDate(day), EndDate: models.NewDate(day), AllDay: true})
	assert.ErrorIs(t, err, models.ErrValidation, "owner id without owner type")

	_, err = calendar.CreateException(ctx, &CreateExceptionRequest{AllDay: true})
	assert.ErrorIs(t, err, models.ErrValidation, "missing dates")
}

func TestCreateAvailabilityOrdersPeriods(t *testing.T) {
	calendar := NewCalendarService(&memCalendarWriter{})

	a, err := calendar.CreateAvailability(context.Background(), &CreateAvailabilityRequest{
		OwnerType: models.OwnerTypeService,
		OwnerID:   1,
		WeeklySchedule: models.WeeklySchedule{
			"tuesday": {{Start: "13:00", End: "15:00"}, {Start: "9:00", End: "11:00"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Period{{Start: "9:00", End: "11:00"}, {Start: "13:00", End: "15:00"}}, a.WeeklySchedule["tuesday"])

	_, err = calendar.CreateAvailability(context.Background(), &CreateAvailabilityRequest{
		OwnerType: models.OwnerTypeService,
		OwnerID:   1,
		WeeklySchedule: models.WeeklySchedule{
			"tuesday": {{Start: "13:00", End: "15:00"}, {Start: "09:00", End: "13:30"}},
		},
	})
	assert.ErrorIs(t, err, models.ErrValidation, "overlapping periods")
}

func TestCalendarRequestsAcceptDateOnly(t *testing.T) {
	writer := &memCalendarWriter{}
	calendar := NewCalendarService(writer)
	ctx := context.Background()

	var exReq CreateExceptionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"start_date":"2026-03-03","end_date":"2026-03-04T00:00:00Z","all_day":true}`), &exReq))
	exception, err := calendar.CreateException(ctx, &exReq)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), exception.StartDate)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), exception.EndDate)

	var avReq CreateAvailabilityRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"owner_type":"service","owner_id":1,
		"weekly_schedule":{"monday":[{"start":"09:00","end":"12:00"}]},
		"effective_from":"2026-03-01","effective_to":"2026-06-30"}`), &avReq))
	availability, err := calendar.CreateAvailability(ctx, &avReq)
	require.NoError(t, err)
	require.NotNil(t, availability.EffectiveFrom)
	require.NotNil(t, availability.EffectiveTo)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *availability.EffectiveFrom)
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), *availability.EffectiveTo)
}
