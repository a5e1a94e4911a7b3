// Package vote keeps at most one recognised vote reaction per user on a
// response message.
package vote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/metrics"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
)

// Result describes what handling a reaction did
type Result struct {
	Ignored   bool
	Retracted []models.VoteEmoji
}

// Reconciler reacts to "user added emoji" notifications. Reactions on the
// same message are processed in arrival order; different messages run
// concurrently.
type Reconciler struct {
	notifier notify.Notifier
	channel  string
	logger   *logger.Logger

	mu     sync.Mutex
	queues map[models.MessageRef][]queued
	wg     sync.WaitGroup
}

type queued struct {
	ctx      context.Context
	reaction models.Reaction
}

// NewReconciler creates a reconciler for reactions in channel. An empty
// channel accepts reactions from every channel.
func NewReconciler(notifier notify.Notifier, channel string) *Reconciler {
	return &Reconciler{
		notifier: notifier,
		channel:  channel,
		logger:   logger.New("vote"),
		queues:   make(map[models.MessageRef][]queued),
	}
}

// Submit queues r behind earlier reactions on the same message and returns
// without waiting
func (rc *Reconciler) Submit(ctx context.Context, r models.Reaction) {
	rc.wg.Add(1)

	rc.mu.Lock()
	pending, running := rc.queues[r.Message]
	rc.queues[r.Message] = append(pending, queued{ctx: ctx, reaction: r})
	rc.mu.Unlock()

	if !running {
		go rc.drain(r.Message)
	}
}

func (rc *Reconciler) drain(ref models.MessageRef) {
	for {
		rc.mu.Lock()
		pending := rc.queues[ref]
		if len(pending) == 0 {
			delete(rc.queues, ref)
			rc.mu.Unlock()
			return
		}
		next := pending[0]
		rc.queues[ref] = pending[1:]
		stale := superseded(next.reaction, pending[1:])
		rc.mu.Unlock()

		if stale {
			rc.logger.Debug("Skipping %s from %s on %s: a newer vote is queued", next.reaction.Emoji, next.reaction.UserID, ref.MessageID)
			metrics.ReactionsHandled.WithLabelValues("superseded").Inc()
			rc.wg.Done()
			continue
		}
		if _, err := rc.Handle(next.ctx, next.reaction); err != nil {
			rc.logger.Warn("Vote reconciliation for user %s on message %s incomplete: %v", next.reaction.UserID, ref.MessageID, err)
		}
		rc.wg.Done()
	}
}

// Wait blocks until every submitted reaction has been handled
func (rc *Reconciler) Wait() {
	rc.wg.Wait()
}

// Handle retracts the user's reactions with every other vote emoji on the
// message. Not-found and permission failures are swallowed; other failures
// are returned after all emojis were tried.
func (rc *Reconciler) Handle(ctx context.Context, r models.Reaction) (Result, error) {
	if reason := rc.ignoreReason(r); reason != "" {
		rc.logger.Debug("Ignoring reaction %s from %s on %s: %s", r.Emoji, r.UserID, r.Message.MessageID, reason)
		metrics.ReactionsHandled.WithLabelValues("ignored").Inc()
		return Result{Ignored: true}, nil
	}

	added := models.VoteEmoji(r.Emoji)

	// A vote the user already took back must not clear the others
	held, err := rc.notifier.Reactors(ctx, r.Message, added)
	if err == nil && !containsUser(held, r.UserID) {
		rc.logger.Debug("Ignoring withdrawn %s from %s on %s", r.Emoji, r.UserID, r.Message.MessageID)
		metrics.ReactionsHandled.WithLabelValues("withdrawn").Inc()
		return Result{Ignored: true}, nil
	}

	var (
		result Result
		errs   []error
	)
	for _, other := range models.VoteEmojis {
		if other == added {
			continue
		}

		reactors, err := rc.notifier.Reactors(ctx, r.Message, other)
		if err != nil {
			if !notify.IsBenign(err) {
				errs = append(errs, fmt.Errorf("list %s reactors: %w", other, err))
			}
			continue
		}
		if !containsUser(reactors, r.UserID) {
			continue
		}

		err = rc.notifier.RetractReaction(ctx, r.Message, r.UserID, other)
		switch {
		case err == nil:
			result.Retracted = append(result.Retracted, other)
			metrics.VotesRetracted.Inc()
		case notify.IsBenign(err):
			rc.logger.Debug("Could not retract %s from %s: %v", other, r.UserID, err)
		default:
			errs = append(errs, fmt.Errorf("retract %s: %w", other, err))
		}
	}

	if len(errs) > 0 {
		metrics.ReactionsHandled.WithLabelValues("failed").Inc()
		return result, errors.Join(errs...)
	}
	metrics.ReactionsHandled.WithLabelValues("reconciled").Inc()
	if len(result.Retracted) > 0 {
		rc.logger.Info("User %s switched vote to %s on message %s", r.UserID, added.Label(), r.Message.MessageID)
	}
	return result, nil
}

func (rc *Reconciler) ignoreReason(r models.Reaction) string {
	switch {
	case r.IsBot:
		return "bot account"
	case rc.channel != "" && r.Message.ChannelID != rc.channel:
		return "outside response channel"
	case !models.IsVote(r.Emoji):
		return "not a vote emoji"
	}
	return ""
}

// superseded reports whether a later queued reaction carries a newer vote
// from the same user
func superseded(r models.Reaction, later []queued) bool {
	if r.IsBot || !models.IsVote(r.Emoji) {
		return false
	}
	for _, q := range later {
		if q.reaction.UserID == r.UserID && !q.reaction.IsBot && models.IsVote(q.reaction.Emoji) {
			return true
		}
	}
	return false
}

func containsUser(users []string, id string) bool {
	for _, u := range users {
		if u == id {
			return true
		}
	}
	return false
}
