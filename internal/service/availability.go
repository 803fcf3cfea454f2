package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/scheduling"
	"booking-scheduler/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AvailabilityResolver answers "which slots are free on day D for service S".
type AvailabilityResolver struct {
	catalog  CatalogReader
	calendar CalendarReader
	bookings BookingStore
	checker  *ConflictChecker
	filter   scheduling.ExceptionFilter
	logger   *zap.Logger
	now      func() time.Time
}

// NewAvailabilityResolver creates a new availability resolver
func NewAvailabilityResolver(
	catalog CatalogReader,
	calendar CalendarReader,
	bookings BookingStore,
	exceptionScope string,
) *AvailabilityResolver {
	return &AvailabilityResolver{
		catalog:  catalog,
		calendar: calendar,
		bookings: bookings,
		checker:  NewConflictChecker(catalog, bookings),
		filter:   scheduling.NewExceptionFilter(exceptionScope),
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

type candidateOwner struct {
	owner      scheduling.Owner
	providerID *int64
}

// Resolve returns the free slots of serviceID on date. Slots of different providers
// are reported independently and in provider order; each provider's slots are
// chronological.
func (r *AvailabilityResolver) Resolve(ctx context.Context, serviceID int64, date time.Time, providerID *int64) ([]models.Slot, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityResolver.Resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.AvailabilityResolveLatency.Observe(time.Since(start).Seconds())
	}()

	svc, err := r.catalog.GetServiceProduct(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if providerID != nil && len(svc.ProviderIDs) > 0 && !containsID(svc.ProviderIDs, *providerID) {
		return nil, fmt.Errorf("provider %d is not assigned to service %d: %w", *providerID, svc.ID, models.ErrValidation)
	}

	loc := svc.Location()
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	exceptions, err := r.calendar.ListExceptions(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}

	owners := candidateOwners(svc, providerID)
	results := make([][]models.Slot, len(owners))

	g, gctx := errgroup.WithContext(ctx)
	for i := range owners {
		i := i
		g.Go(func() error {
			slots, err := r.resolveOwner(gctx, svc, day, owners[i], exceptions)
			if err != nil {
				return err
			}
			results[i] = slots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var slots []models.Slot
	for _, ownerSlots := range results {
		slots = append(slots, ownerSlots...)
	}

	r.logger.Debug("Availability resolved",
		zap.Int64("service_id", serviceID),
		zap.String("date", day.Format("2006-01-02")),
		zap.Int("owners", len(owners)),
		zap.Int("slots", len(slots)))

	return slots, nil
}

func candidateOwners(svc *models.ServiceProduct, providerID *int64) []candidateOwner {
	if providerID != nil {
		id := *providerID
		return []candidateOwner{{owner: scheduling.Owner{Type: models.OwnerTypeProvider, ID: id}, providerID: &id}}
	}
	if len(svc.ProviderIDs) > 0 {
		owners := make([]candidateOwner, 0, len(svc.ProviderIDs))
		for _, pid := range svc.ProviderIDs {
			id := pid
			owners = append(owners, candidateOwner{owner: scheduling.Owner{Type: models.OwnerTypeProvider, ID: id}, providerID: &id})
		}
		return owners
	}
	return []candidateOwner{{owner: scheduling.Owner{Type: models.OwnerTypeService, ID: svc.ID}}}
}

func (r *AvailabilityResolver) resolveOwner(
	ctx context.Context,
	svc *models.ServiceProduct,
	day time.Time,
	co candidateOwner,
	exceptions []models.AvailabilityException,
) ([]models.Slot, error) {
	availabilities, err := r.calendar.ListAvailabilities(ctx, co.owner.Type, co.owner.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities for %s %d: %w", co.owner.Type, co.owner.ID, err)
	}

	availability, fallback := pickAvailability(availabilities, day)
	if availability == nil {
		return nil, nil
	}
	if fallback {
		util.AvailabilityFallbackTotal.Inc()
		r.logger.Warn("No availability covers date, falling back to first record",
			zap.String("owner_type", co.owner.Type),
			zap.Int64("owner_id", co.owner.ID),
			zap.Int64("availability_id", availability.ID),
			zap.String("date", day.Format("2006-01-02")))
	}

	periods := availability.WeeklySchedule.PeriodsFor(day)
	if len(periods) == 0 {
		return nil, nil
	}

	loc := day.Location()
	timing := scheduling.TimingFor(svc)
	var candidates []models.Slot
	for _, p := range periods {
		pStart, pEnd, err := p.On(day, loc)
		if err != nil {
			r.logger.Warn("Skipping invalid schedule period",
				zap.Int64("availability_id", availability.ID),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, scheduling.GenerateSlots(scheduling.Window{Start: pStart, End: pEnd}, timing)...)
	}

	// periods are stored in whatever order they were submitted
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})

	candidates = r.filter.Apply(day, loc, co.owner, candidates, exceptions)
	if len(candidates) == 0 {
		return nil, nil
	}

	from, to := candidates[0].Start, candidates[0].End
	for _, slot := range candidates[1:] {
		if slot.End.After(to) {
			to = slot.End
		}
	}

	existing, err := r.bookings.ListBookings(ctx, models.BookingFilter{
		ServiceID:  &svc.ID,
		ProviderID: co.providerID,
		Statuses:   models.ActiveBookingStatuses,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	now := r.now()
	free := make([]models.Slot, 0, len(candidates))
	for _, slot := range candidates {
		if r.checker.Evaluate(now, svc, slot.Start, slot.End, 1, existing, 0) != scheduling.ReasonNone {
			continue
		}
		slot.ProviderID = co.providerID
		slot.ScheduleFallback = fallback
		free = append(free, slot)
	}
	return free, nil
}

// pickAvailability returns the first record whose validity window covers day. When
// none does, the first record is returned with fallback set.
func pickAvailability(availabilities []models.Availability, day time.Time) (*models.Availability, bool) {
	for i := range availabilities {
		if availabilities[i].CoversDate(day) {
			return &availabilities[i], false
		}
	}
	if len(availabilities) > 0 {
		return &availabilities[0], true
	}
	return nil, false
}
