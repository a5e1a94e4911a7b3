// Package poll keeps button-driven ballots for platforms without native
// reaction listings. Each ballot records which users hold which vote emoji
// on a posted message.
package poll

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// ErrNoReaction is returned when removing a reaction the user does not hold
var ErrNoReaction = errors.New("reaction not present")

// Service provides ballot management functionality
type Service struct {
	store  *storage.Store
	clock  clockwork.Clock
	logger *logger.Logger
}

// New creates a new ballot service
func New(store *storage.Store, clock clockwork.Clock) *Service {
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger.New("poll"),
	}
}

func ballotKey(ref models.MessageRef) string {
	return fmt.Sprintf("ballot:%s:%s", ref.ChannelID, ref.MessageID)
}

func (s *Service) load(tx *storage.Tx, ref models.MessageRef) (models.Ballot, error) {
	var ballot models.Ballot
	err := tx.Get(ballotKey(ref), &ballot)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Ballot{Message: ref, Reactions: make(map[string][]string)}, nil
	}
	if err != nil {
		return ballot, err
	}
	if ballot.Reactions == nil {
		ballot.Reactions = make(map[string][]string)
	}
	return ballot, nil
}

// Add records userID reacting with emoji. Adding a held reaction is a no-op.
func (s *Service) Add(ctx context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		ballot, err := s.load(tx, ref)
		if err != nil {
			return err
		}

		users := ballot.Reactions[string(emoji)]
		for _, u := range users {
			if u == userID {
				return nil
			}
		}
		ballot.Reactions[string(emoji)] = append(users, userID)
		ballot.UpdatedAt = s.clock.Now().UTC()
		return tx.Set(ballotKey(ref), ballot)
	})
}

// Remove drops userID's emoji reaction, or returns ErrNoReaction
func (s *Service) Remove(ctx context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		ballot, err := s.load(tx, ref)
		if err != nil {
			return err
		}

		users := ballot.Reactions[string(emoji)]
		for i, u := range users {
			if u != userID {
				continue
			}
			rest := append(users[:i:i], users[i+1:]...)
			if len(rest) == 0 {
				delete(ballot.Reactions, string(emoji))
			} else {
				ballot.Reactions[string(emoji)] = rest
			}
			ballot.UpdatedAt = s.clock.Now().UTC()
			return tx.Set(ballotKey(ref), ballot)
		}
		return fmt.Errorf("%w: %s on message %s", ErrNoReaction, emoji, ref.MessageID)
	})
}

// Get returns the ballot for a message; a message nobody voted on yields
// an empty ballot
func (s *Service) Get(ctx context.Context, ref models.MessageRef) (models.Ballot, error) {
	if err := ctx.Err(); err != nil {
		return models.Ballot{}, err
	}
	var ballot models.Ballot
	err := s.store.Get(ballotKey(ref), &ballot)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Ballot{Message: ref, Reactions: make(map[string][]string)}, nil
	}
	if err != nil {
		return ballot, fmt.Errorf("failed to load ballot: %w", err)
	}
	return ballot, nil
}

// Reactors lists users holding emoji on a message
func (s *Service) Reactors(ctx context.Context, ref models.MessageRef, emoji models.VoteEmoji) ([]string, error) {
	ballot, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	users := ballot.Reactions[string(emoji)]
	out := make([]string, len(users))
	copy(out, users)
	return out, nil
}

// Counts returns the number of holders per vote emoji
func (s *Service) Counts(ctx context.Context, ref models.MessageRef) (map[models.VoteEmoji]int, error) {
	ballot, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.VoteEmoji]int, len(models.VoteEmojis))
	for _, emoji := range models.VoteEmojis {
		counts[emoji] = len(ballot.Reactions[string(emoji)])
	}
	return counts, nil
}

// Delete forgets the ballot of a deleted message
func (s *Service) Delete(ctx context.Context, ref models.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Delete(ballotKey(ref)); err != nil {
		return fmt.Errorf("failed to delete ballot: %w", err)
	}
	s.logger.Debug("Deleted ballot for message %s", ref.MessageID)
	return nil
}
