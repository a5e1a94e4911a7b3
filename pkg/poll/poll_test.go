package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/storage"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = models.MessageRef{ChannelID: "-1001", MessageID: "42"}

func newTestService(t *testing.T) *Service {
	t.Helper()
	kv, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv, clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestService_AddAndReactors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, ref, "u1", models.VoteYes))
	require.NoError(t, s.Add(ctx, ref, "u2", models.VoteYes))
	require.NoError(t, s.Add(ctx, ref, "u1", models.VoteYes))
	require.NoError(t, s.Add(ctx, ref, "u1", models.VoteNo))

	yes, err := s.Reactors(ctx, ref, models.VoteYes)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, yes)

	counts, err := s.Counts(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[models.VoteEmoji]int{models.VoteYes: 2, models.VoteNo: 1, models.VoteMaybe: 0}, counts)
}

func TestService_Remove(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, ref, "u1", models.VoteMaybe))
	require.NoError(t, s.Remove(ctx, ref, "u1", models.VoteMaybe))

	maybe, err := s.Reactors(ctx, ref, models.VoteMaybe)
	require.NoError(t, err)
	assert.Empty(t, maybe)

	err = s.Remove(ctx, ref, "u1", models.VoteMaybe)
	assert.True(t, errors.Is(err, ErrNoReaction))
}

func TestService_UnknownMessageIsEmpty(t *testing.T) {
	s := newTestService(t)

	users, err := s.Reactors(context.Background(), models.MessageRef{ChannelID: "1", MessageID: "nope"}, models.VoteYes)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestService_Delete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, ref, "u1", models.VoteYes))
	require.NoError(t, s.Delete(ctx, ref))

	ballot, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, ballot.Reactions)
}
