package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/events"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/metrics"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/reminder"
	"github.com/jonboulle/clockwork"
)

// EventLister returns the events to evaluate on a tick
type EventLister interface {
	ListLive(ctx context.Context) ([]models.ScheduledEvent, error)
}

// Dispatcher sends one due tier of an event
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.ScheduledEvent, tier reminder.Tier) error
}

// TickReport summarizes one pass
type TickReport struct {
	Events    int
	Fired     int
	Failed    int
	Malformed int
}

// Service runs the periodic reminder pass
type Service struct {
	events     EventLister
	dispatcher Dispatcher
	clock      clockwork.Clock
	interval   time.Duration
	logger     *logger.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new scheduler service
func New(events EventLister, dispatcher Dispatcher, clock clockwork.Clock, interval time.Duration) *Service {
	if interval <= 0 {
		interval = reminder.DefaultInterval
	}
	return &Service{
		events:     events,
		dispatcher: dispatcher,
		clock:      clock,
		interval:   interval,
		logger:     logger.New("scheduler"),
	}
}

// Start runs the loop in the background until Stop is called
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}

	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	stop := s.stopChan

	go func() {
		<-stop
		cancel()
	}()
	go func() {
		defer close(s.done)
		_ = s.Run(ctx)
	}()
}

// Stop stops a loop started with Start and waits for the current tick
func (s *Service) Stop() {
	s.mu.Lock()
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Run ticks immediately and then once per interval until ctx is cancelled.
// Ticks run inline, so a slow pass delays the next one instead of
// overlapping it.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Starting reminder scheduler (interval %s)", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping reminder scheduler")
			return ctx.Err()
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every live event once and dispatches its due tiers in
// catalog order. A failure stops the remaining tiers of that event only.
func (s *Service) Tick(ctx context.Context) TickReport {
	started := s.clock.Now()
	defer func() {
		metrics.TickDuration.Observe(s.clock.Since(started).Seconds())
	}()

	var report TickReport

	list, err := s.events.ListLive(ctx)
	if err != nil {
		if !errors.Is(err, events.ErrMalformedEvent) {
			s.logger.Error("Failed to list events: %v", err)
			return report
		}
		report.Malformed = countMalformed(err)
		metrics.MalformedEvents.Add(float64(report.Malformed))
		s.logger.Warn("Skipping %d malformed event(s): %v", report.Malformed, err)
	}
	report.Events = len(list)

	now := s.clock.Now()
	for i := range list {
		if ctx.Err() != nil {
			break
		}
		event := &list[i]

		for _, tier := range reminder.Due(*event, now, s.interval) {
			if err := s.dispatcher.Dispatch(ctx, event, tier); err != nil {
				report.Failed++
				s.logger.Error("Reminder %s for event %s not sent, retrying next tick: %v", tier.Label, event.ID, err)
				break
			}
			report.Fired++
		}
	}

	if report.Fired > 0 || report.Failed > 0 {
		s.logger.Info("Tick done: %d event(s), %d reminder(s) sent, %d failed", report.Events, report.Fired, report.Failed)
	} else {
		s.logger.Debug("Tick done: %d event(s), nothing due", report.Events)
	}
	return report
}

// countMalformed counts the malformed rows joined into err
func countMalformed(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		n := 0
		for _, e := range joined.Unwrap() {
			if errors.Is(e, events.ErrMalformedEvent) {
				n++
			}
		}
		return n
	}
	return 1
}
