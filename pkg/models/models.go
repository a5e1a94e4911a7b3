package models

import (
	"time"
)

// MessageRef identifies a posted chat message
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// ScheduledEvent is a future group activity with its reminder progress
type ScheduledEvent struct {
	ID           string      `json:"id"`
	Category     string      `json:"category"`
	Title        string      `json:"title"`
	StartAt      time.Time   `json:"-"`
	Channel      string      `json:"channel"`
	Anchor       *MessageRef `json:"anchor,omitempty"`
	FiredTiers   []string    `json:"fired_tiers"`
	LastReminder *MessageRef `json:"last_reminder,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HasFired reports whether tier has already been dispatched
func (e *ScheduledEvent) HasFired(tier string) bool {
	for _, t := range e.FiredTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// MarkFired appends tier to FiredTiers unless it is already present
func (e *ScheduledEvent) MarkFired(tier string) {
	if !e.HasFired(tier) {
		e.FiredTiers = append(e.FiredTiers, tier)
	}
}

// Remaining returns the time left until the event starts
func (e *ScheduledEvent) Remaining(now time.Time) time.Duration {
	return e.StartAt.Sub(now)
}

// VoteEmoji is one of the recognised response reactions
type VoteEmoji string

const (
	VoteYes   VoteEmoji = "✅"
	VoteNo    VoteEmoji = "❌"
	VoteMaybe VoteEmoji = "❓"
)

// VoteEmojis lists the recognised vote emojis in display order
var VoteEmojis = []VoteEmoji{VoteYes, VoteNo, VoteMaybe}

// IsVote reports whether s is a recognised vote emoji
func IsVote(s string) bool {
	for _, e := range VoteEmojis {
		if string(e) == s {
			return true
		}
	}
	return false
}

// Label returns the human word for a vote emoji
func (v VoteEmoji) Label() string {
	switch v {
	case VoteYes:
		return "Yes"
	case VoteNo:
		return "No"
	case VoteMaybe:
		return "Maybe"
	}
	return string(v)
}

// Reaction is an inbound "user added emoji to message" notification
type Reaction struct {
	Message MessageRef
	UserID  string
	Emoji   string
	IsBot   bool
}

// Ballot holds emulated reactions for a message on platforms that cannot
// list reactors natively
type Ballot struct {
	Message   MessageRef          `json:"message"`
	Reactions map[string][]string `json:"reactions"` // emoji -> user IDs
	UpdatedAt time.Time           `json:"updated_at"`
}
