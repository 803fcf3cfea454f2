package store

import (
	"context"
	"time"

	"booking-scheduler/internal/models"
)

// GetServiceProduct retrieves a service product by ID
func (s *Store) GetServiceProduct(ctx context.Context, id int64) (*models.ServiceProduct, error) {
	var svc models.ServiceProduct
	err := s.db.GetContext(ctx, &svc, "SELECT * FROM service_products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "service", id)
	}
	return &svc, nil
}

// GetServiceProvider retrieves a provider by ID
func (s *Store) GetServiceProvider(ctx context.Context, id int64) (*models.ServiceProvider, error) {
	var provider models.ServiceProvider
	err := s.db.GetContext(ctx, &provider, "SELECT * FROM service_providers WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "provider", id)
	}
	return &provider, nil
}

// ListAvailabilities returns the owner's availability templates, oldest first, so
// that "first applicable record" is stable.
func (s *Store) ListAvailabilities(ctx context.Context, ownerType string, ownerID int64, activeOnly bool) ([]models.Availability, error) {
	query := "SELECT * FROM availabilities WHERE owner_type = $1 AND owner_id = $2"
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY id"

	var availabilities []models.Availability
	err := s.db.SelectContext(ctx, &availabilities, query, ownerType, ownerID)
	return availabilities, err
}

// CreateAvailability inserts a weekly template.
func (s *Store) CreateAvailability(ctx context.Context, a *models.Availability) error {
	query := `
		INSERT INTO availabilities (owner_type, owner_id, weekly_schedule, effective_from, effective_to, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, a, query,
		a.OwnerType, a.OwnerID, a.WeeklySchedule, a.EffectiveFrom, a.EffectiveTo, a.Active)
}

// ListExceptions returns every exception whose date range touches [from, to].
func (s *Store) ListExceptions(ctx context.Context, from, to time.Time) ([]models.AvailabilityException, error) {
	var exceptions []models.AvailabilityException
	err := s.db.SelectContext(ctx, &exceptions,
		"SELECT * FROM availability_exceptions WHERE start_date <= $2::date AND end_date >= $1::date ORDER BY id",
		from, to)
	return exceptions, err
}

// CreateException inserts an availability exception.
func (s *Store) CreateException(ctx context.Context, e *models.AvailabilityException) error {
	query := `
		INSERT INTO availability_exceptions
			(owner_type, owner_id, start_date, end_date, exception_type, all_day, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, e, query,
		e.OwnerType, e.OwnerID, e.StartDate, e.EndDate, e.ExceptionType, e.AllDay, e.StartTime, e.EndTime, e.Reason)
}
