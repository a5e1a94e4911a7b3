// Package notify defines the outbound chat port used by the reminder engine
// and the vote reconciler, together with its error taxonomy.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
)

var (
	// ErrNotFound means the target message or reaction no longer exists
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the bot lacks permission for the operation
	ErrForbidden = errors.New("forbidden")
	// ErrTransient marks a delivery failure worth retrying on a later tick
	ErrTransient = errors.New("transient delivery failure")
)

// IsBenign reports whether err is a not-found or permission failure, which
// cleanup and vote retraction swallow
func IsBenign(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

// Kind selects how a payload is rendered
type Kind string

const (
	KindAnnouncement Kind = "announcement"
	KindReminder     Kind = "reminder"
)

// Payload carries everything a transport needs to render a message
type Payload struct {
	Kind     Kind
	Tier     string
	EventID  string
	Category string
	Title    string
	StartAt  time.Time
	// Remaining is the time left when the payload was built; announcements show it
	Remaining time.Duration
}

// Notifier is the chat platform as seen by the core
type Notifier interface {
	// Post sends payload to channel and returns the posted message
	Post(ctx context.Context, channel string, p Payload) (models.MessageRef, error)
	// Delete removes a message; ErrNotFound or ErrForbidden when it cannot
	Delete(ctx context.Context, ref models.MessageRef) error
	// RetractReaction removes user's emoji reaction from a message
	RetractReaction(ctx context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error
	// Reactors lists the users that reacted to a message with emoji
	Reactors(ctx context.Context, ref models.MessageRef, emoji models.VoteEmoji) ([]string, error)
}
