package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/util"

	"go.uber.org/zap"
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// CalendarService validates and stores availability templates and exceptions.
type CalendarService struct {
	writer CalendarWriter
	logger *zap.Logger
}

// NewCalendarService creates a new calendar service
func NewCalendarService(writer CalendarWriter) *CalendarService {
	return &CalendarService{
		writer: writer,
		logger: util.GetLogger(),
	}
}

// CreateAvailabilityRequest describes a weekly template for one owner.
type CreateAvailabilityRequest struct {
	OwnerType      string                `json:"owner_type" binding:"required,oneof=provider service"`
	OwnerID        int64                 `json:"owner_id" binding:"required"`
	WeeklySchedule models.WeeklySchedule `json:"weekly_schedule" binding:"required"`
	EffectiveFrom  *models.Date          `json:"effective_from,omitempty"`
	EffectiveTo    *models.Date          `json:"effective_to,omitempty"`
}

// CreateExceptionRequest describes a date-ranged override. Owner fields are
// optional; an exception without an owner applies to everyone.
type CreateExceptionRequest struct {
	OwnerType     string      `json:"owner_type" binding:"omitempty,oneof=provider service"`
	OwnerID       *int64      `json:"owner_id,omitempty"`
	StartDate     models.Date `json:"start_date"`
	EndDate       models.Date `json:"end_date"`
	ExceptionType string      `json:"exception_type"`
	AllDay        bool        `json:"all_day"`
	StartTime     string      `json:"start_time"`
	EndTime       string      `json:"end_time"`
	Reason        string      `json:"reason"`
}

// CreateAvailability stores an active weekly template.
func (cs *CalendarService) CreateAvailability(ctx context.Context, req *CreateAvailabilityRequest) (*models.Availability, error) {
	ctx, span := util.StartSpan(ctx, "CalendarService.CreateAvailability")
	defer span.End()

	if err := validateOwner(req.OwnerType, &req.OwnerID); err != nil {
		return nil, err
	}
	schedule, err := normalizeSchedule(req.WeeklySchedule)
	if err != nil {
		return nil, err
	}
	effectiveFrom, effectiveTo := req.EffectiveFrom.TimePtr(), req.EffectiveTo.TimePtr()
	if effectiveFrom != nil && effectiveTo != nil && effectiveTo.Before(*effectiveFrom) {
		return nil, fmt.Errorf("effective_to before effective_from: %w", models.ErrValidation)
	}

	availability := &models.Availability{
		OwnerType:      req.OwnerType,
		OwnerID:        req.OwnerID,
		WeeklySchedule: schedule,
		EffectiveFrom:  effectiveFrom,
		EffectiveTo:    effectiveTo,
		Active:         true,
	}
	if err := cs.writer.CreateAvailability(ctx, availability); err != nil {
		return nil, fmt.Errorf("failed to create availability: %w", err)
	}

	cs.logger.Info("Availability created",
		zap.Int64("availability_id", availability.ID),
		zap.String("owner_type", availability.OwnerType),
		zap.Int64("owner_id", availability.OwnerID))

	return availability, nil
}

// CreateException stores an exception. Partial-day exceptions need a valid
// start_time before end_time.
func (cs *CalendarService) CreateException(ctx context.Context, req *CreateExceptionRequest) (*models.AvailabilityException, error) {
	ctx, span := util.StartSpan(ctx, "CalendarService.CreateException")
	defer span.End()

	if req.OwnerType != "" || req.OwnerID != nil {
		if err := validateOwner(req.OwnerType, req.OwnerID); err != nil {
			return nil, err
		}
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, fmt.Errorf("start_date and end_date are required: %w", models.ErrValidation)
	}
	if req.EndDate.Before(req.StartDate.Time) {
		return nil, fmt.Errorf("end_date before start_date: %w", models.ErrValidation)
	}

	exceptionType := req.ExceptionType
	if exceptionType == "" {
		exceptionType = models.ExceptionBlocked
	}

	if !req.AllDay {
		period := models.Period{Start: req.StartTime, End: req.EndTime}
		if _, _, err := period.On(req.StartDate.Time, time.UTC); err != nil {
			return nil, fmt.Errorf("partial-day exception: %v: %w", err, models.ErrValidation)
		}
	}

	exception := &models.AvailabilityException{
		OwnerType:     req.OwnerType,
		OwnerID:       req.OwnerID,
		StartDate:     req.StartDate.Time,
		EndDate:       req.EndDate.Time,
		ExceptionType: exceptionType,
		AllDay:        req.AllDay,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Reason:        req.Reason,
	}
	if exception.AllDay {
		exception.StartTime, exception.EndTime = "", ""
	}
	if err := cs.writer.CreateException(ctx, exception); err != nil {
		return nil, fmt.Errorf("failed to create exception: %w", err)
	}

	cs.logger.Info("Availability exception created",
		zap.Int64("exception_id", exception.ID),
		zap.String("type", exception.ExceptionType),
		zap.Bool("all_day", exception.AllDay))

	return exception, nil
}

func validateOwner(ownerType string, ownerID *int64) error {
	if ownerType != models.OwnerTypeProvider && ownerType != models.OwnerTypeService {
		return fmt.Errorf("owner_type %q: %w", ownerType, models.ErrValidation)
	}
	if ownerID == nil || *ownerID <= 0 {
		return fmt.Errorf("owner_id required: %w", models.ErrValidation)
	}
	return nil
}

// normalizeSchedule lowercases weekday keys, orders each day's periods by start
// and rejects unknown days, malformed periods and overlapping periods.
func normalizeSchedule(in models.WeeklySchedule) (models.WeeklySchedule, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("weekly_schedule is empty: %w", models.ErrValidation)
	}
	out := make(models.WeeklySchedule, len(in))
	for day, periods := range in {
		key := strings.ToLower(strings.TrimSpace(day))
		if !weekdays[key] {
			return nil, fmt.Errorf("unknown weekday %q: %w", day, models.ErrValidation)
		}
		for _, p := range periods {
			if _, _, err := p.On(time.Time{}, time.UTC); err != nil {
				return nil, fmt.Errorf("%s: %v: %w", key, err, models.ErrValidation)
			}
		}
		out[key] = append(out[key], periods...)
	}

	for key, periods := range out {
		sort.SliceStable(periods, func(i, j int) bool {
			a, _, _ := periods[i].On(time.Time{}, time.UTC)
			b, _, _ := periods[j].On(time.Time{}, time.UTC)
			return a.Before(b)
		})
		for i := 1; i < len(periods); i++ {
			_, prevEnd, _ := periods[i-1].On(time.Time{}, time.UTC)
			start, _, _ := periods[i].On(time.Time{}, time.UTC)
			if start.Before(prevEnd) {
				return nil, fmt.Errorf("%s: period %s-%s overlaps %s-%s: %w",
					key, periods[i].Start, periods[i].End, periods[i-1].Start, periods[i-1].End, models.ErrValidation)
			}
		}
	}
	return out, nil
}
