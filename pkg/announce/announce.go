// Package announce handles schedule requests: it creates the event, posts
// the announcement that carries the vote reactions and records it as the
// event's anchor.
package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/events"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/messages"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/jonboulle/clockwork"
)

// ErrStartInPast rejects events that would be stale on creation
var ErrStartInPast = errors.New("start time is in the past")

// EventCreator is the part of the event store used here
type EventCreator interface {
	Create(ctx context.Context, in events.NewEvent) (models.ScheduledEvent, error)
	SetAnchor(ctx context.Context, id string, ref models.MessageRef) error
}

// Request is a validated schedule request
type Request struct {
	Category string
	Title    string
	StartAt  time.Time
}

// Service provides event scheduling functionality
type Service struct {
	events   EventCreator
	notifier notify.Notifier
	clock    clockwork.Clock
	channel  string
	logger   *logger.Logger
}

// New creates a new announce service posting into channel
func New(events EventCreator, notifier notify.Notifier, clock clockwork.Clock, channel string) *Service {
	return &Service{
		events:   events,
		notifier: notifier,
		clock:    clock,
		channel:  channel,
		logger:   logger.New("announce"),
	}
}

// Schedule creates the event and posts its announcement. When the post
// fails the event still exists and its reminders will fire; the error is
// returned so the caller can tell the requester.
func (s *Service) Schedule(ctx context.Context, req Request) (models.ScheduledEvent, error) {
	now := s.clock.Now()
	if !req.StartAt.After(now) {
		return models.ScheduledEvent{}, ErrStartInPast
	}

	event, err := s.events.Create(ctx, events.NewEvent{
		Category: strings.ToLower(req.Category),
		Title:    req.Title,
		StartAt:  req.StartAt,
		Channel:  s.channel,
	})
	if err != nil {
		return models.ScheduledEvent{}, fmt.Errorf("failed to create event: %w", err)
	}
	s.logger.Info("Created event %s: %s - %s at %s", event.ID, event.Category, event.Title, event.StartAt.Format(time.RFC3339))

	ref, err := s.notifier.Post(ctx, s.channel, notify.Payload{
		Kind:      notify.KindAnnouncement,
		EventID:   event.ID,
		Category:  event.Category,
		Title:     event.Title,
		StartAt:   event.StartAt,
		Remaining: event.Remaining(now),
	})
	if err != nil {
		return event, fmt.Errorf("failed to post announcement for event %s: %w", event.ID, err)
	}

	if err := s.events.SetAnchor(ctx, event.ID, ref); err != nil {
		return event, fmt.Errorf("failed to record announcement for event %s: %w", event.ID, err)
	}
	event.Anchor = &ref
	return event, nil
}

// HandleCommand runs a schedule command and returns the reply for the
// requester
func (s *Service) HandleCommand(ctx context.Context, args string) string {
	cmd, err := ParseCommand(args)
	if err != nil {
		return "Invalid command format.\n" + Usage
	}

	start, err := ResolveStart(cmd.Time, cmd.Date, s.clock.Now())
	if err != nil {
		return "Invalid date/time format. Use HH:MM or HH:MM dd/mm/yyyy"
	}

	event, err := s.Schedule(ctx, Request{Category: cmd.Category, Title: cmd.Name, StartAt: start})
	switch {
	case errors.Is(err, ErrStartInPast):
		return "That time is already in the past."
	case err != nil && event.ID == "":
		s.logger.Error("Failed to schedule %s: %v", cmd.Category, err)
		return "😢 Sorry, I couldn't schedule that event. Please try again later."
	case err != nil:
		s.logger.Error("Event %s scheduled without announcement: %v", event.ID, err)
		return fmt.Sprintf("⚠️ Event %s was scheduled but the announcement could not be posted. Reminders will still be sent.", event.ID)
	}

	return fmt.Sprintf("✅ Scheduled %s \"%s\" for %s (Event ID: %s)",
		messages.Capitalize(event.Category), event.Title, messages.FormatTime(event.StartAt), event.ID)
}
