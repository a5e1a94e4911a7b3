package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/messages"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.True(t, errors.Is(classify(restError(http.StatusNotFound)), notify.ErrNotFound))
	assert.True(t, errors.Is(classify(restError(http.StatusForbidden)), notify.ErrForbidden))

	err := classify(restError(http.StatusBadGateway))
	assert.False(t, notify.IsBenign(err))

	plain := errors.New("dial tcp: timeout")
	assert.Equal(t, plain, classify(plain))
}

func TestCommandArgs(t *testing.T) {
	args, ok := commandArgs(`  /schedule hydra 20:30 "Hydra hunt" `)
	require.True(t, ok)
	assert.Equal(t, `hydra 20:30 "Hydra hunt"`, args)

	args, ok = commandArgs("/schedule")
	assert.True(t, ok)
	assert.Empty(t, args)

	_, ok = commandArgs("/scheduled hydra")
	assert.False(t, ok)
	_, ok = commandArgs("hello")
	assert.False(t, ok)
}

func TestToReaction(t *testing.T) {
	r := &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{
			UserID:    "u1",
			MessageID: "m1",
			ChannelID: "c1",
			Emoji:     discordgo.Emoji{Name: "✅"},
		},
	}
	assert.Equal(t, models.Reaction{
		Message: models.MessageRef{ChannelID: "c1", MessageID: "m1"},
		UserID:  "u1",
		Emoji:   "✅",
	}, toReaction(r, "self"))

	assert.True(t, toReaction(r, "u1").IsBot)

	r.Member = &discordgo.Member{User: &discordgo.User{ID: "u1", Bot: true}}
	assert.True(t, toReaction(r, "self").IsBot)
}

func TestToMessageSend(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	send := toMessageSend(messages.Rendered{
		Mention:     "<@&42>",
		Title:       "🛡️ Scheduled Hydra",
		Description: "Hydra hunt",
		Fields:      []messages.Field{{Name: "🕒 Time", Value: "later"}},
		Footer:      "Event ID: 1",
		Color:       messages.ColorGold,
		Timestamp:   at,
	})

	assert.Equal(t, "<@&42>", send.Content)
	require.Len(t, send.Embeds, 1)
	embed := send.Embeds[0]
	assert.Equal(t, "🛡️ Scheduled Hydra", embed.Title)
	assert.Equal(t, messages.ColorGold, embed.Color)
	assert.Equal(t, "Event ID: 1", embed.Footer.Text)
	assert.Equal(t, "2026-03-01T20:30:00Z", embed.Timestamp)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "later", embed.Fields[0].Value)

	assert.Nil(t, toMessageSend(messages.Rendered{Title: "x"}).Embeds[0].Footer)
}

func TestRenderOptions(t *testing.T) {
	opts := renderOptions(Config{MentionRole: "42"})
	assert.Equal(t, "<@&42>", opts.Mention)
	assert.Equal(t, "<t:1772397000:F>", opts.FormatTime(time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)))

	assert.Empty(t, renderOptions(Config{}).Mention)
}
