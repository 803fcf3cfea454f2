package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booking-scheduler/internal/models"
	"booking-scheduler/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	extended int
	stolen   bool
}

func (f *fakeLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return "", false, nil
	}
	f.held = true
	return "token", true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	return nil
}

func (f *fakeLocker) ExtendLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extended++
	return f.held && !f.stolen, nil
}

type fakeReminderStore struct {
	reminders map[int64]*models.BookingReminder
}

func (f *fakeReminderStore) CreateReminder(ctx context.Context, r *models.BookingReminder) error {
	f.reminders[r.ID] = r
	return nil
}

func (f *fakeReminderStore) CancelReminders(ctx context.Context, bookingID int64) (int64, error) {
	return 0, nil
}

func (f *fakeReminderStore) ListDueReminders(ctx context.Context, before time.Time, limit int) ([]models.BookingReminder, error) {
	var out []models.BookingReminder
	for id := int64(1); id <= int64(len(f.reminders)); id++ {
		r, ok := f.reminders[id]
		if ok && r.Status == models.ReminderStatusScheduled && !r.ScheduledFor.After(before) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReminderStore) GetRemindersByBookingID(ctx context.Context, bookingID int64) ([]models.BookingReminder, error) {
	var out []models.BookingReminder
	for _, r := range f.reminders {
		if r.BookingID == bookingID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReminderStore) MarkReminderSent(ctx context.Context, id int64, sentAt time.Time) error {
	f.reminders[id].Status = models.ReminderStatusSent
	f.reminders[id].SentAt = &sentAt
	return nil
}

func (f *fakeReminderStore) MarkReminderCancelled(ctx context.Context, id int64) error {
	f.reminders[id].Status = models.ReminderStatusCancelled
	return nil
}

type fakeBookings map[int64]*models.Booking

func (f fakeBookings) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, ok := f[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return b, nil
}

type fakeReminderPublisher struct {
	events []*models.ReminderDueEvent
	err    error
}

func (f *fakeReminderPublisher) PublishReminderDue(ctx context.Context, event *models.ReminderDueEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func relayFixture(now time.Time) (*fakeReminderStore, fakeBookings) {
	store := &fakeReminderStore{reminders: map[int64]*models.BookingReminder{
		1: {ID: 1, BookingID: 10, ScheduledFor: now.Add(-time.Minute), Recipient: "a@example.com", Channel: "email", Status: models.ReminderStatusScheduled},
		2: {ID: 2, BookingID: 20, ScheduledFor: now.Add(-time.Minute), Recipient: "b@example.com", Channel: "email", Status: models.ReminderStatusScheduled},
		3: {ID: 3, BookingID: 30, ScheduledFor: now.Add(-time.Minute), Recipient: "c@example.com", Channel: "email", Status: models.ReminderStatusScheduled},
		4: {ID: 4, BookingID: 10, ScheduledFor: now.Add(time.Hour), Recipient: "a@example.com", Channel: "email", Status: models.ReminderStatusScheduled},
	}}
	bookings := fakeBookings{
		10: {ID: 10, Status: models.BookingStatusConfirmed},
		20: {ID: 20, Status: models.BookingStatusCancelled},
		// 30 is missing
	}
	return store, bookings
}

func TestReminderRelayRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store, bookings := relayFixture(now)
	publisher := &fakeReminderPublisher{}

	relay := NewReminderRelay(&fakeLocker{}, service.NewReminderScheduler(store, nil), bookings, publisher, time.Minute, 10)
	relay.now = func() time.Time { return now }

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, int64(1), publisher.events[0].ReminderID)
	assert.Equal(t, models.EventTypeReminderDue, publisher.events[0].EventType)
	assert.NotEmpty(t, publisher.events[0].EventID)

	assert.Equal(t, models.ReminderStatusSent, store.reminders[1].Status)
	assert.Equal(t, models.ReminderStatusCancelled, store.reminders[2].Status)
	assert.Equal(t, models.ReminderStatusCancelled, store.reminders[3].Status)
	assert.Equal(t, models.ReminderStatusScheduled, store.reminders[4].Status)
}

func TestReminderRelaySkipsWhenLockHeld(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store, bookings := relayFixture(now)
	publisher := &fakeReminderPublisher{}
	locker := &fakeLocker{held: true}

	relay := NewReminderRelay(locker, service.NewReminderScheduler(store, nil), bookings, publisher, time.Minute, 10)
	relay.now = func() time.Time { return now }

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, publisher.events)
	assert.True(t, locker.held)
}

func TestReminderRelayPublishFailureKeepsReminder(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store, bookings := relayFixture(now)
	publisher := &fakeReminderPublisher{err: errors.New("kafka down")}
	locker := &fakeLocker{}

	relay := NewReminderRelay(locker, service.NewReminderScheduler(store, nil), bookings, publisher, time.Minute, 10)
	relay.now = func() time.Time { return now }

	_, err := relay.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, models.ReminderStatusScheduled, store.reminders[1].Status)
	assert.False(t, locker.held, "lock released after a failed run")
}

func bulkFixture(now time.Time, n int) (*fakeReminderStore, fakeBookings) {
	store := &fakeReminderStore{reminders: map[int64]*models.BookingReminder{}}
	bookings := fakeBookings{10: {ID: 10, Status: models.BookingStatusConfirmed}}
	for id := int64(1); id <= int64(n); id++ {
		store.reminders[id] = &models.BookingReminder{
			ID: id, BookingID: 10, ScheduledFor: now.Add(-time.Minute),
			Recipient: "a@example.com", Channel: "email", Status: models.ReminderStatusScheduled,
		}
	}
	return store, bookings
}

func TestReminderRelayExtendsLockOnLargeBatches(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store, bookings := bulkFixture(now, 45)
	publisher := &fakeReminderPublisher{}
	locker := &fakeLocker{}

	relay := NewReminderRelay(locker, service.NewReminderScheduler(store, nil), bookings, publisher, time.Minute, 100)
	relay.now = func() time.Time { return now }

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, n)
	assert.Equal(t, 2, locker.extended)
}

func TestReminderRelayStopsWhenLockLost(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store, bookings := bulkFixture(now, 30)
	publisher := &fakeReminderPublisher{}
	locker := &fakeLocker{stolen: true}

	relay := NewReminderRelay(locker, service.NewReminderScheduler(store, nil), bookings, publisher, time.Minute, 100)
	relay.now = func() time.Time { return now }

	n, err := relay.RunOnce(context.Background())
	assert.ErrorIs(t, err, errRelayLockLost)
	assert.Equal(t, 20, n)
	assert.Len(t, publisher.events, 20)
}
