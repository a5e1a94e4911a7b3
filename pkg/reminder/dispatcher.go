package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/cleanup"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/metrics"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/jonboulle/clockwork"
)

// DefaultCleanupDelay is how long the start notice and announcement stay up
const DefaultCleanupDelay = 10 * time.Minute

// FiredRecorder persists a dispatched tier together with the message that
// now represents the event's latest reminder
type FiredRecorder interface {
	RecordFired(ctx context.Context, id, tier string, last *models.MessageRef) error
	SetLastReminder(ctx context.Context, id string, ref models.MessageRef) error
}

// CleanupScheduler accepts deferred message deletions
type CleanupScheduler interface {
	Schedule(ctx context.Context, job cleanup.Job) error
}

// Dispatcher turns due tiers into posted reminders
type Dispatcher struct {
	store        FiredRecorder
	notifier     notify.Notifier
	cleanup      CleanupScheduler
	clock        clockwork.Clock
	cleanupDelay time.Duration
	logger       *logger.Logger
}

// NewDispatcher creates a new reminder dispatcher
func NewDispatcher(store FiredRecorder, notifier notify.Notifier, cleanup CleanupScheduler, clock clockwork.Clock, cleanupDelay time.Duration) *Dispatcher {
	if cleanupDelay <= 0 {
		cleanupDelay = DefaultCleanupDelay
	}
	return &Dispatcher{
		store:        store,
		notifier:     notifier,
		cleanup:      cleanup,
		clock:        clock,
		cleanupDelay: cleanupDelay,
		logger:       logger.New("dispatcher"),
	}
}

// Dispatch posts the reminder for tier, replacing the event's previous
// reminder, and records the tier as fired.
//
// event is updated in place on success so several tiers due in the same
// tick chain their replacements. A failed post leaves the tier unrecorded;
// the returned error then wraps notify.ErrTransient.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.ScheduledEvent, tier Tier) error {
	if event.HasFired(tier.Label) {
		return nil
	}

	if event.LastReminder != nil {
		d.deletePrevious(ctx, event)
	}

	payload := notify.Payload{
		Kind:      notify.KindReminder,
		Tier:      tier.Label,
		EventID:   event.ID,
		Category:  event.Category,
		Title:     event.Title,
		StartAt:   event.StartAt,
		Remaining: event.Remaining(d.clock.Now()),
	}

	ref, err := d.notifier.Post(ctx, event.Channel, payload)
	if err != nil {
		metrics.DispatchFailures.WithLabelValues("post").Inc()
		if !errors.Is(err, notify.ErrTransient) {
			err = fmt.Errorf("%w: %w", notify.ErrTransient, err)
		}
		return fmt.Errorf("failed to post %s reminder for event %s: %w", tier.Label, event.ID, err)
	}

	if err := d.store.RecordFired(ctx, event.ID, tier.Label, &ref); err != nil {
		metrics.DispatchFailures.WithLabelValues("persist").Inc()
		d.keepTrackOf(ctx, event, ref)
		return fmt.Errorf("failed to record %s reminder for event %s: %w", tier.Label, event.ID, err)
	}

	event.MarkFired(tier.Label)
	event.LastReminder = &ref
	metrics.RemindersFired.WithLabelValues(tier.Label).Inc()
	d.logger.Info("Sent %s reminder for event %s (%s - %s)", tier.Label, event.ID, event.Category, event.Title)

	if tier.Label == TierStart {
		d.scheduleCleanup(ctx, *event)
	}
	return nil
}

// keepTrackOf handles a posted reminder whose tier could not be recorded.
// The next tick re-fires the tier from the stored row, so the stored
// LastReminder must point at ref for that retry to replace it. When even
// that write fails the message is withdrawn instead.
func (d *Dispatcher) keepTrackOf(ctx context.Context, event *models.ScheduledEvent, ref models.MessageRef) {
	err := d.store.SetLastReminder(ctx, event.ID, ref)
	if err == nil {
		event.LastReminder = &ref
		return
	}
	d.logger.Warn("Failed to store reminder %s for event %s, withdrawing it: %v", ref.MessageID, event.ID, err)

	if err := d.notifier.Delete(ctx, ref); err != nil && !notify.IsBenign(err) {
		metrics.DispatchFailures.WithLabelValues("delete").Inc()
		d.logger.Error("Reminder %s for event %s is untracked and could not be deleted: %v", ref.MessageID, event.ID, err)
	}
}

// deletePrevious removes the last reminder; it never blocks the new post
func (d *Dispatcher) deletePrevious(ctx context.Context, event *models.ScheduledEvent) {
	prev := *event.LastReminder
	err := d.notifier.Delete(ctx, prev)
	switch {
	case err == nil:
		d.logger.Debug("Deleted previous reminder %s for event %s", prev.MessageID, event.ID)
	case notify.IsBenign(err):
		d.logger.Debug("Previous reminder %s for event %s already gone: %v", prev.MessageID, event.ID, err)
	default:
		metrics.DispatchFailures.WithLabelValues("delete").Inc()
		d.logger.Warn("Failed to delete previous reminder %s for event %s: %v", prev.MessageID, event.ID, err)
	}
}

// scheduleCleanup queues deletion of the start notice and the announcement
func (d *Dispatcher) scheduleCleanup(ctx context.Context, event models.ScheduledEvent) {
	var refs []models.MessageRef
	if event.LastReminder != nil {
		refs = append(refs, *event.LastReminder)
	}
	if event.Anchor != nil {
		refs = append(refs, *event.Anchor)
	}
	if len(refs) == 0 || d.cleanup == nil {
		return
	}

	job := cleanup.Job{
		EventID:  event.ID,
		Messages: refs,
		DueAt:    d.clock.Now().Add(d.cleanupDelay),
	}
	if err := d.cleanup.Schedule(ctx, job); err != nil {
		metrics.DispatchFailures.WithLabelValues("cleanup").Inc()
		d.logger.Error("Failed to schedule cleanup for event %s: %v", event.ID, err)
		return
	}
	d.logger.Info("Scheduled cleanup of %d message(s) for event %s at %s", len(refs), event.ID, job.DueAt.Format(time.RFC3339))
}
