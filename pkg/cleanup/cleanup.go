// Package cleanup runs deferred, best-effort message deletions.
//
// Jobs are persisted before their timer is armed, so a restart inside the
// delay window re-arms them instead of leaving stale messages behind.
package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/metrics"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/storage"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	keyPrefix = "cleanup:"
	// jobTimeout bounds the deletions of a single job
	jobTimeout = 30 * time.Second
)

// Job deletes a set of messages once DueAt has passed
type Job struct {
	ID        string              `json:"id"`
	EventID   string              `json:"event_id"`
	Messages  []models.MessageRef `json:"messages"`
	DueAt     time.Time           `json:"due_at"`
	CreatedAt time.Time           `json:"created_at"`
}

// Deleter removes chat messages
type Deleter interface {
	Delete(ctx context.Context, ref models.MessageRef) error
}

// Queue holds pending jobs and fires them on the clock
type Queue struct {
	store   *storage.Store
	deleter Deleter
	clock   clockwork.Clock
	logger  *logger.Logger

	mu     sync.Mutex
	timers map[string]clockwork.Timer
	// early marks jobs whose timer fired before it was registered
	early  map[string]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a new cleanup queue
func New(store *storage.Store, deleter Deleter, clock clockwork.Clock) *Queue {
	return &Queue{
		store:   store,
		deleter: deleter,
		clock:   clock,
		logger:  logger.New("cleanup"),
		timers:  make(map[string]clockwork.Timer),
		early:   make(map[string]struct{}),
	}
}

// Schedule persists job and arms its timer. It returns immediately.
func (q *Queue) Schedule(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.clock.Now().UTC()
	}

	if err := q.store.Set(keyPrefix+job.ID, job); err != nil {
		return fmt.Errorf("failed to persist cleanup job: %w", err)
	}

	q.arm(job)
	return nil
}

// Restore re-arms every persisted job; overdue jobs run right away
func (q *Queue) Restore(ctx context.Context) (int, error) {
	jobs, err := q.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		q.arm(job)
	}
	if len(jobs) > 0 {
		q.logger.Info("Restored %d pending cleanup job(s)", len(jobs))
	}
	return len(jobs), nil
}

// Pending lists persisted jobs that have not run yet
func (q *Queue) Pending(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var jobs []Job
	err := q.store.Scan(keyPrefix, func(key string, data []byte) error {
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			q.logger.Error("Dropping unreadable cleanup job %s: %v", key, err)
			return nil
		}
		jobs = append(jobs, job)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cleanup jobs: %w", err)
	}
	return jobs, nil
}

func (q *Queue) arm(job Job) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if _, armed := q.timers[job.ID]; armed {
		q.mu.Unlock()
		return
	}
	q.wg.Add(1)
	q.mu.Unlock()

	delay := job.DueAt.Sub(q.clock.Now())
	if delay < 0 {
		delay = 0
	}

	timer := q.clock.AfterFunc(delay, func() {
		defer q.wg.Done()
		q.run(job)
	})

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, fired := q.early[job.ID]; fired {
		delete(q.early, job.ID)
		return
	}
	q.timers[job.ID] = timer
}

func (q *Queue) run(job Job) {
	q.mu.Lock()
	if _, ok := q.timers[job.ID]; ok {
		delete(q.timers, job.ID)
	} else {
		q.early[job.ID] = struct{}{}
	}
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	failed := 0
	for _, ref := range job.Messages {
		err := q.deleter.Delete(ctx, ref)
		switch {
		case err == nil:
			q.logger.Debug("Deleted message %s for event %s", ref.MessageID, job.EventID)
		case notify.IsBenign(err):
			q.logger.Debug("Message %s for event %s not deletable: %v", ref.MessageID, job.EventID, err)
		default:
			failed++
			q.logger.Warn("Failed to delete message %s for event %s: %v", ref.MessageID, job.EventID, err)
		}
	}

	if err := q.store.Delete(keyPrefix + job.ID); err != nil {
		q.logger.Error("Failed to remove finished cleanup job %s: %v", job.ID, err)
	}

	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	metrics.CleanupJobs.WithLabelValues(result).Inc()
	q.logger.Info("Cleanup for event %s finished (%d message(s), %d failed)", job.EventID, len(job.Messages), failed)
}

// Stop cancels armed timers and waits for running jobs. Persisted jobs that
// did not run are restored on the next start.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	for id, timer := range q.timers {
		if timer.Stop() {
			q.wg.Done()
		}
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
