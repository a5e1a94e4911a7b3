// Package events persists scheduled events and their reminder progress in BadgerDB.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/storage"
	"github.com/jonboulle/clockwork"
)

const (
	keyPrefix   = "event:"
	sequenceKey = "seq:event"
)

var (
	// ErrNotFound is returned when no event has the requested ID
	ErrNotFound = errors.New("event not found")
	// ErrMalformedEvent marks a stored row whose start time cannot be parsed
	ErrMalformedEvent = errors.New("malformed event")
)

// record is the on-disk shape; start_at stays text so a corrupted value is
// reported per row instead of failing the whole listing
type record struct {
	models.ScheduledEvent
	StartAt string `json:"start_at"`
}

func toRecord(e models.ScheduledEvent) record {
	return record{ScheduledEvent: e, StartAt: e.StartAt.UTC().Format(time.RFC3339)}
}

func (r record) event() (models.ScheduledEvent, error) {
	start, err := time.Parse(time.RFC3339, r.StartAt)
	if err != nil {
		return models.ScheduledEvent{}, fmt.Errorf("%w: event %s has start_at %q: %v", ErrMalformedEvent, r.ID, r.StartAt, err)
	}
	e := r.ScheduledEvent
	e.StartAt = start.UTC()
	return e, nil
}

// NewEvent holds the fields supplied by a schedule request
type NewEvent struct {
	Category string
	Title    string
	StartAt  time.Time
	Channel  string
}

// Store provides event persistence
type Store struct {
	store *storage.Store
	clock clockwork.Clock
}

// New creates a new event store
func New(store *storage.Store, clock clockwork.Clock) *Store {
	return &Store{store: store, clock: clock}
}

func eventKey(id string) string {
	return keyPrefix + id
}

// Create persists a new event and assigns its ID
func (s *Store) Create(ctx context.Context, in NewEvent) (models.ScheduledEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.ScheduledEvent{}, err
	}

	seq, err := s.store.NextID(sequenceKey)
	if err != nil {
		return models.ScheduledEvent{}, err
	}

	event := models.ScheduledEvent{
		ID:         storage.FormatID(seq),
		Category:   in.Category,
		Title:      in.Title,
		StartAt:    in.StartAt.UTC().Truncate(time.Second),
		Channel:    in.Channel,
		FiredTiers: []string{},
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.store.Set(eventKey(event.ID), toRecord(event)); err != nil {
		return models.ScheduledEvent{}, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

// Get returns a single event
func (s *Store) Get(ctx context.Context, id string) (models.ScheduledEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.ScheduledEvent{}, err
	}

	var r record
	if err := s.store.Get(eventKey(id), &r); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ScheduledEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return models.ScheduledEvent{}, err
	}
	return r.event()
}

// mutate applies fn to the stored event inside a single transaction
func (s *Store) mutate(ctx context.Context, id string, fn func(e *models.ScheduledEvent)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.store.Update(func(tx *storage.Tx) error {
		var r record
		if err := tx.Get(eventKey(id), &r); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		e, err := r.event()
		if err != nil {
			return err
		}
		fn(&e)
		return tx.Set(eventKey(id), toRecord(e))
	})
}

// SetAnchor records the announcement message of an event
func (s *Store) SetAnchor(ctx context.Context, id string, ref models.MessageRef) error {
	return s.mutate(ctx, id, func(e *models.ScheduledEvent) {
		e.Anchor = &ref
	})
}

// AppendFiredTier adds tier to the event's fired set
func (s *Store) AppendFiredTier(ctx context.Context, id, tier string) error {
	return s.mutate(ctx, id, func(e *models.ScheduledEvent) {
		e.MarkFired(tier)
	})
}

// SetLastReminder records the most recent reminder message
func (s *Store) SetLastReminder(ctx context.Context, id string, ref models.MessageRef) error {
	return s.mutate(ctx, id, func(e *models.ScheduledEvent) {
		e.LastReminder = &ref
	})
}

// RecordFired marks tier as fired and replaces the last reminder reference
// in one transaction
func (s *Store) RecordFired(ctx context.Context, id, tier string, last *models.MessageRef) error {
	return s.mutate(ctx, id, func(e *models.ScheduledEvent) {
		e.MarkFired(tier)
		if last != nil {
			ref := *last
			e.LastReminder = &ref
		}
	})
}

// ListLive returns every stored event ordered by start time.
// Rows that cannot be decoded are skipped; they are reported through the
// returned error (wrapping ErrMalformedEvent) alongside the valid events.
func (s *Store) ListLive(ctx context.Context) ([]models.ScheduledEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		events    []models.ScheduledEvent
		malformed []error
	)
	err := s.store.Scan(keyPrefix, func(key string, data []byte) error {
		var r record
		if err := json.Unmarshal(data, &r); err != nil {
			malformed = append(malformed, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, key, err))
			return nil
		}
		if r.ID == "" {
			r.ID = strings.TrimPrefix(key, keyPrefix)
		}
		e, err := r.event()
		if err != nil {
			malformed = append(malformed, err)
			return nil
		}
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartAt.Before(events[j].StartAt)
	})
	return events, errors.Join(malformed...)
}

// Prune deletes events that started before cutoff and returns how many
// were removed
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	events, err := s.ListLive(ctx)
	if err != nil && !errors.Is(err, ErrMalformedEvent) {
		return 0, err
	}

	removed := 0
	for _, e := range events {
		if !e.StartAt.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(eventKey(e.ID)); err != nil {
			return removed, fmt.Errorf("failed to prune event %s: %w", e.ID, err)
		}
		removed++
	}
	return removed, nil
}
