package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-scheduler/internal/broker"
	"booking-scheduler/internal/models"
	"booking-scheduler/internal/service"
	"booking-scheduler/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrphanWorker consumes booking events and cleans up orphaned reschedule replacements
type OrphanWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrphanWorker creates a new orphan worker
func NewOrphanWorker(consumer *broker.Consumer, cleaner *service.OrphanCleaner) *OrphanWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnBookingOrphaned(cleaner.HandleBookingOrphaned)

	return &OrphanWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *OrphanWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting orphan worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrphanWorker) Stop() error {
	w.logger.Info("Stopping orphan worker")
	return w.consumer.Close()
}

// Locker is a distributed mutex, implemented by redisclient.Client.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
	ExtendLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
}

// BookingReader looks up the booking a reminder belongs to.
type BookingReader interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
}

// ReminderPublisher hands due reminders to the external dispatcher.
type ReminderPublisher interface {
	PublishReminderDue(ctx context.Context, event *models.ReminderDueEvent) error
}

const (
	relayLockName = "reminder-relay"
	// extendEvery is how many reminders are relayed between lock extensions.
	extendEvery = 20
)

var errRelayLockLost = errors.New("reminder relay lock lost")

// ReminderRelay periodically turns due reminders into REMINDER_DUE events. Only one
// replica relays at a time; the others skip the tick while the lock is held.
type ReminderRelay struct {
	locker    Locker
	reminders *service.ReminderScheduler
	bookings  BookingReader
	publisher ReminderPublisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewReminderRelay creates a new reminder relay
func NewReminderRelay(
	locker Locker,
	reminders *service.ReminderScheduler,
	bookings BookingReader,
	publisher ReminderPublisher,
	interval time.Duration,
	batchSize int,
) *ReminderRelay {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReminderRelay{
		locker:    locker,
		reminders: reminders,
		bookings:  bookings,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Start relays on every tick until ctx is cancelled.
func (r *ReminderRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting reminder relay", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reminder relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Reminder relay run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce relays one batch of due reminders and returns how many were published.
func (r *ReminderRelay) RunOnce(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReminderRelay.RunOnce")
	defer span.End()

	lockTTL := 2 * r.interval
	token, ok, err := r.locker.AcquireLock(ctx, relayLockName, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire relay lock: %w", err)
	}
	if !ok {
		r.logger.Debug("Reminder relay lock held elsewhere, skipping")
		return 0, nil
	}
	defer func() {
		if err := r.locker.ReleaseLock(context.Background(), relayLockName, token); err != nil {
			r.logger.Warn("Failed to release relay lock", zap.Error(err))
		}
	}()

	due, err := r.reminders.DuePending(ctx, r.now(), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due reminders: %w", err)
	}

	published := 0
	for i, reminder := range due {
		if i > 0 && i%extendEvery == 0 {
			held, err := r.locker.ExtendLock(ctx, relayLockName, token, lockTTL)
			if err != nil {
				return published, fmt.Errorf("failed to extend relay lock: %w", err)
			}
			if !held {
				return published, errRelayLockLost
			}
		}

		booking, err := r.bookings.GetBooking(ctx, reminder.BookingID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return published, fmt.Errorf("failed to load booking %d: %w", reminder.BookingID, err)
		}
		if booking == nil || !booking.IsActive() {
			if err := r.reminders.Discard(ctx, reminder.ID); err != nil {
				r.logger.Warn("Failed to discard stale reminder", zap.Int64("reminder_id", reminder.ID), zap.Error(err))
			}
			continue
		}

		event := &models.ReminderDueEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeReminderDue,
				Timestamp: r.now(),
			},
			ReminderID:        reminder.ID,
			BookingID:         reminder.BookingID,
			Recipient:         reminder.Recipient,
			Channel:           reminder.Channel,
			SendBeforeMinutes: reminder.SendBeforeMinutes,
			ScheduledFor:      reminder.ScheduledFor,
		}
		if err := r.publisher.PublishReminderDue(ctx, event); err != nil {
			return published, fmt.Errorf("failed to publish reminder %d: %w", reminder.ID, err)
		}

		if err := r.reminders.MarkSent(ctx, reminder.ID); err != nil {
			r.logger.Error("Failed to mark reminder sent", zap.Int64("reminder_id", reminder.ID), zap.Error(err))
			continue
		}
		published++
	}

	if published > 0 {
		r.logger.Info("Relayed due reminders", zap.Int("count", published))
	}
	return published, nil
}
