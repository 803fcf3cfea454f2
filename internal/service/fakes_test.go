package service

import (
	"context"
	"sync"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/scheduling"
)

type fakeCatalog struct {
	services map[int64]*models.ServiceProduct
}

func (f *fakeCatalog) GetServiceProduct(ctx context.Context, id int64) (*models.ServiceProduct, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

type fakeCalendar struct {
	availabilities []models.Availability
	exceptions     []models.AvailabilityException
}

func (f *fakeCalendar) ListAvailabilities(ctx context.Context, ownerType string, ownerID int64, activeOnly bool) ([]models.Availability, error) {
	var out []models.Availability
	for _, a := range f.availabilities {
		if a.OwnerType != ownerType || a.OwnerID != ownerID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeCalendar) ListExceptions(ctx context.Context, from, to time.Time) ([]models.AvailabilityException, error) {
	return f.exceptions, nil
}

// memBookingStore mirrors the postgres store: ReserveBooking holds one lock across
// check and insert, TransitionBooking is a compare-and-swap on status.
type memBookingStore struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]*models.Booking
	items    map[int64][]models.BookingItem

	// failTransition, when set, can reject a transition before it is applied.
	failTransition func(id int64, status string) error
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{
		bookings: make(map[int64]*models.Booking),
		items:    make(map[int64][]models.BookingItem),
	}
}

func (m *memBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookingStore) GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBookingStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(filter), nil
}

func (m *memBookingStore) list(filter models.BookingFilter) []models.Booking {
	var out []models.Booking
	for id := int64(1); id <= m.nextID; id++ {
		b, ok := m.bookings[id]
		if !ok {
			continue
		}
		if filter.ServiceID != nil && b.ServiceID != *filter.ServiceID {
			continue
		}
		if filter.ProviderID != nil && (b.ProviderID == nil || *b.ProviderID != *filter.ProviderID) {
			continue
		}
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, b.Status) {
			continue
		}
		if !filter.From.IsZero() && !filter.To.IsZero() && !scheduling.Overlaps(b.StartTime, b.EndTime, filter.From, filter.To) {
			continue
		}
		out = append(out, *b)
	}
	return out
}

func (m *memBookingStore) ReserveBooking(ctx context.Context, booking *models.Booking, item *models.BookingItem, check func(existing []models.Booking) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.list(models.BookingFilter{
		ServiceID:  &booking.ServiceID,
		ProviderID: booking.ProviderID,
		Statuses:   models.ActiveBookingStatuses,
		From:       booking.StartTime,
		To:         booking.EndTime,
	})
	if err := check(existing); err != nil {
		return err
	}

	m.nextID++
	booking.ID = m.nextID
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	m.bookings[booking.ID] = &cp

	item.ID = booking.ID
	item.BookingID = booking.ID
	m.items[booking.ID] = append(m.items[booking.ID], *item)
	return nil
}

func (m *memBookingStore) TransitionBooking(ctx context.Context, id int64, from []string, tr models.BookingTransition) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if m.failTransition != nil {
		if err := m.failTransition(id, tr.Status); err != nil {
			return nil, err
		}
	}
	if !containsStatus(from, b.Status) {
		return nil, models.ErrInvalidState
	}

	at := tr.At
	b.Status = tr.Status
	b.UpdatedAt = at
	switch tr.Status {
	case models.BookingStatusConfirmed:
		b.ConfirmedAt = &at
	case models.BookingStatusCheckedIn:
		b.CheckedInAt = &at
	case models.BookingStatusInProgress:
		b.StartedAt = &at
	case models.BookingStatusCompleted:
		b.CompletedAt = &at
	case models.BookingStatusCancelled:
		b.CancelledAt = &at
	case models.BookingStatusNoShow:
		b.NoShowAt = &at
	case models.BookingStatusRescheduled:
		b.RescheduledAt = &at
	}
	if tr.ProviderNotes != "" {
		b.ProviderNotes = tr.ProviderNotes
	}
	if tr.CancelledBy != "" {
		b.CancelledBy = tr.CancelledBy
	}
	if tr.CancellationReason != "" {
		b.CancellationReason = tr.CancellationReason
	}
	if tr.CancellationFee != nil {
		b.CancellationFee = *tr.CancellationFee
	}
	if tr.RescheduledToID != nil {
		to := *tr.RescheduledToID
		b.RescheduledToID = &to
	}

	cp := *b
	return &cp, nil
}

func (m *memBookingStore) GetBookingItems(ctx context.Context, bookingID int64) ([]models.BookingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[bookingID], nil
}

type memReminderStore struct {
	mu        sync.Mutex
	nextID    int64
	reminders []*models.BookingReminder
}

func (m *memReminderStore) CreateReminder(ctx context.Context, r *models.BookingReminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.reminders = append(m.reminders, &cp)
	return nil
}

func (m *memReminderStore) CancelReminders(ctx context.Context, bookingID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reminders {
		if r.BookingID == bookingID && r.Status == models.ReminderStatusScheduled {
			r.Status = models.ReminderStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *memReminderStore) ListDueReminders(ctx context.Context, before time.Time, limit int) ([]models.BookingReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BookingReminder
	for _, r := range m.reminders {
		if r.Status == models.ReminderStatusScheduled && !r.ScheduledFor.After(before) {
			out = append(out, *r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memReminderStore) MarkReminderSent(ctx context.Context, id int64, sentAt time.Time) error {
	return m.setStatus(id, models.ReminderStatusSent, &sentAt)
}

func (m *memReminderStore) MarkReminderCancelled(ctx context.Context, id int64) error {
	return m.setStatus(id, models.ReminderStatusCancelled, nil)
}

func (m *memReminderStore) setStatus(id int64, status string, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.ID == id {
			r.Status = status
			r.SentAt = sentAt
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memReminderStore) GetRemindersByBookingID(ctx context.Context, bookingID int64) ([]models.BookingReminder, error) {
	return m.forBooking(bookingID), nil
}

func (m *memReminderStore) forBooking(bookingID int64) []models.BookingReminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BookingReminder
	for _, r := range m.reminders {
		if r.BookingID == bookingID {
			out = append(out, *r)
		}
	}
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	statuses []*models.BookingStatusEvent
	orphans  []*models.BookingOrphanedEvent
}

func (f *fakePublisher) PublishBookingStatus(ctx context.Context, event *models.BookingStatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, event)
	return nil
}

func (f *fakePublisher) PublishBookingOrphaned(ctx context.Context, event *models.BookingOrphanedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orphans = append(f.orphans, event)
	return nil
}

func (f *fakePublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.statuses {
		out = append(out, e.EventType)
	}
	return out
}

type fakeLedger struct {
	mu        sync.Mutex
	processed map[string]bool
}

func (f *fakeLedger) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeLedger) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed == nil {
		f.processed = make(map[string]bool)
	}
	f.processed[eventID] = true
	return nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]int64
}

func (m *memIdempotency) GetIdempotentBooking(ctx context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *memIdempotency) SetIdempotentBooking(ctx context.Context, key string, bookingID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]int64)
	}
	m.keys[key] = bookingID
	return nil
}

// testNow is a Monday.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type harness struct {
	catalog   *fakeCatalog
	calendar  *fakeCalendar
	store     *memBookingStore
	reminders *memReminderStore
	publisher *fakePublisher
	bookings  *BookingService
	resolver  *AvailabilityResolver
}

func newHarness(services ...*models.ServiceProduct) *harness {
	h := &harness{
		catalog:   &fakeCatalog{services: make(map[int64]*models.ServiceProduct)},
		calendar:  &fakeCalendar{},
		store:     newMemBookingStore(),
		reminders: &memReminderStore{},
		publisher: &fakePublisher{},
	}
	for _, svc := range services {
		h.catalog.services[svc.ID] = svc
	}

	scheduler := NewReminderScheduler(h.reminders, nil)
	scheduler.now = fixedClock(testNow)

	h.bookings = NewBookingService(h.catalog, h.store, scheduler, h.publisher, nil, BookingRules{CancellationFeePercent: DefaultCancellationFeePercent})
	h.bookings.now = fixedClock(testNow)

	h.resolver = NewAvailabilityResolver(h.catalog, h.calendar, h.store, scheduling.ScopeDate)
	h.resolver.now = fixedClock(testNow)
	return h
}

func consultation() *models.ServiceProduct {
	return &models.ServiceProduct{
		ID:                      1,
		Name:                    "Consultation",
		DurationMinutes:         60,
		MaxCapacity:             1,
		CancellationPolicyHours: 24,
		Price:                   10000,
		Currency:                "USD",
		Timezone:                "UTC",
	}
}

func int64Ptr(v int64) *int64 { return &v }
