// Package notifytest provides an in-memory Notifier for tests.
package notifytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
)

// Call records one Notifier invocation
type Call struct {
	Op      string
	Channel string
	Ref     models.MessageRef
	Payload notify.Payload
	UserID  string
	Emoji   models.VoteEmoji
}

// Fake is a goroutine-safe Notifier that keeps posted messages and reactions
// in memory
type Fake struct {
	mu        sync.Mutex
	calls     []Call
	seq       int
	live      map[models.MessageRef]notify.Payload
	reactions map[models.MessageRef]map[models.VoteEmoji][]string

	postErr    error
	deleteErr  error
	retractErr error
}

var _ notify.Notifier = (*Fake)(nil)

// New creates an empty fake
func New() *Fake {
	return &Fake{
		live:      make(map[models.MessageRef]notify.Payload),
		reactions: make(map[models.MessageRef]map[models.VoteEmoji][]string),
	}
}

// SetPostErr makes every Post fail with err (nil restores success)
func (f *Fake) SetPostErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postErr = err
}

// SetDeleteErr makes every Delete fail with err (nil restores normal behaviour)
func (f *Fake) SetDeleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// SetRetractErr makes every RetractReaction fail with err
func (f *Fake) SetRetractErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retractErr = err
}

// Post implements notify.Notifier
func (f *Fake) Post(_ context.Context, channel string, p notify.Payload) (models.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "post", Channel: channel, Payload: p})
	if f.postErr != nil {
		return models.MessageRef{}, f.postErr
	}

	f.seq++
	ref := models.MessageRef{ChannelID: channel, MessageID: fmt.Sprintf("m%d", f.seq)}
	f.live[ref] = p
	return ref, nil
}

// Delete implements notify.Notifier
func (f *Fake) Delete(_ context.Context, ref models.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "delete", Ref: ref})
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.live[ref]; !ok {
		return notify.ErrNotFound
	}
	delete(f.live, ref)
	delete(f.reactions, ref)
	return nil
}

// React simulates a user adding emoji to a message
func (f *Fake) React(ref models.MessageRef, userID string, emoji models.VoteEmoji) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byEmoji, ok := f.reactions[ref]
	if !ok {
		byEmoji = make(map[models.VoteEmoji][]string)
		f.reactions[ref] = byEmoji
	}
	for _, u := range byEmoji[emoji] {
		if u == userID {
			return
		}
	}
	byEmoji[emoji] = append(byEmoji[emoji], userID)
}

// RetractReaction implements notify.Notifier
func (f *Fake) RetractReaction(_ context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "retract", Ref: ref, UserID: userID, Emoji: emoji})
	if f.retractErr != nil {
		return f.retractErr
	}

	users := f.reactions[ref][emoji]
	for i, u := range users {
		if u == userID {
			f.reactions[ref][emoji] = append(users[:i:i], users[i+1:]...)
			return nil
		}
	}
	return notify.ErrNotFound
}

// Reactors implements notify.Notifier
func (f *Fake) Reactors(_ context.Context, ref models.MessageRef, emoji models.VoteEmoji) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "reactors", Ref: ref, Emoji: emoji})
	users := f.reactions[ref][emoji]
	out := make([]string, len(users))
	copy(out, users)
	return out, nil
}

// Calls returns a copy of every recorded call
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Ops returns the operation names of the recorded calls, filtered to the
// given names when any are passed
func (f *Fake) Ops(only ...string) []string {
	var ops []string
	for _, c := range f.Calls() {
		if len(only) == 0 || contains(only, c.Op) {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Posts returns the payloads of the recorded posts
func (f *Fake) Posts() []Call {
	var posts []Call
	for _, c := range f.Calls() {
		if c.Op == "post" {
			posts = append(posts, c)
		}
	}
	return posts
}

// Live reports whether a posted message still exists
func (f *Fake) Live(ref models.MessageRef) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live[ref]
	return ok
}

// Seed registers an existing message, e.g. an announcement posted elsewhere
func (f *Fake) Seed(ref models.MessageRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[ref] = notify.Payload{Kind: notify.KindAnnouncement}
}

// VotesOf returns the vote emojis currently held by userID on a message
func (f *Fake) VotesOf(ref models.MessageRef, userID string) []models.VoteEmoji {
	f.mu.Lock()
	defer f.mu.Unlock()

	var held []models.VoteEmoji
	for _, emoji := range models.VoteEmojis {
		for _, u := range f.reactions[ref][emoji] {
			if u == userID {
				held = append(held, emoji)
			}
		}
	}
	return held
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
