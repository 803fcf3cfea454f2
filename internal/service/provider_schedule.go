package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/util"

	"go.uber.org/zap"
)

// ScheduleStats summarizes a provider's bookings in a date range.
type ScheduleStats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	Completed      int            `json:"completed"`
	Cancelled      int            `json:"cancelled"`
	NoShow         int            `json:"no_show"`
	CompletionRate float64        `json:"completion_rate"`
	NoShowRate     float64        `json:"no_show_rate"`
	BookedMinutes  int64          `json:"booked_minutes"`
}

// ProviderSchedule is a provider's bookings between From and To.
type ProviderSchedule struct {
	ProviderID int64                   `json:"provider_id"`
	Provider   *models.ServiceProvider `json:"provider,omitempty"`
	From       time.Time               `json:"from"`
	To         time.Time               `json:"to"`
	Bookings   []models.Booking        `json:"bookings"`
	Stats      ScheduleStats           `json:"stats"`
}

// ProviderScheduleService answers read-only schedule queries for providers.
type ProviderScheduleService struct {
	providers ProviderReader
	bookings  BookingStore
	logger    *zap.Logger
}

// NewProviderScheduleService creates a new provider schedule service. When providers
// is nil the provider id is not checked.
func NewProviderScheduleService(providers ProviderReader, bookings BookingStore) *ProviderScheduleService {
	return &ProviderScheduleService{
		providers: providers,
		bookings:  bookings,
		logger:    util.GetLogger(),
	}
}

// GetProviderSchedule lists every booking of the provider overlapping [from, to)
// in chronological order, with statistics.
func (ps *ProviderScheduleService) GetProviderSchedule(ctx context.Context, providerID int64, from, to time.Time) (*ProviderSchedule, error) {
	ctx, span := util.StartSpan(ctx, "ProviderScheduleService.GetProviderSchedule")
	defer span.End()

	if !to.After(from) {
		return nil, fmt.Errorf("range end must be after start: %w", models.ErrValidation)
	}

	var provider *models.ServiceProvider
	if ps.providers != nil {
		p, err := ps.providers.GetServiceProvider(ctx, providerID)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	bookings, err := ps.bookings.ListBookings(ctx, models.BookingFilter{
		ProviderID: &providerID,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list provider bookings: %w", err)
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})

	ps.logger.Debug("Provider schedule loaded",
		zap.Int64("provider_id", providerID),
		zap.Int("bookings", len(bookings)))

	return &ProviderSchedule{
		ProviderID: providerID,
		Provider:   provider,
		From:       from,
		To:         to,
		Bookings:   bookings,
		Stats:      summarize(bookings),
	}, nil
}

// summarize computes rates over bookings that reached an outcome (completed,
// cancelled or no-show). Booked minutes count active and completed bookings.
func summarize(bookings []models.Booking) ScheduleStats {
	stats := ScheduleStats{
		Total:    len(bookings),
		ByStatus: make(map[string]int),
	}
	for _, b := range bookings {
		stats.ByStatus[b.Status]++
		switch b.Status {
		case models.BookingStatusCompleted:
			stats.Completed++
		case models.BookingStatusCancelled:
			stats.Cancelled++
		case models.BookingStatusNoShow:
			stats.NoShow++
		}
		if b.IsActive() || b.Status == models.BookingStatusCompleted {
			stats.BookedMinutes += int64(b.EndTime.Sub(b.StartTime) / time.Minute)
		}
	}

	outcomes := stats.Completed + stats.Cancelled + stats.NoShow
	if outcomes > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(outcomes)
		stats.NoShowRate = float64(stats.NoShow) / float64(outcomes)
	}
	return stats
}
