package messages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)

type stubGenerator struct {
	line string
	err  error
}

func (g stubGenerator) GenerateChatMessage(context.Context, string, map[string]interface{}) (string, error) {
	return g.line, g.err
}

func TestRender_Announcement(t *testing.T) {
	s := New(Options{Mention: "<@&42>"})

	r := s.Render(context.Background(), notify.Payload{
		Kind:      notify.KindAnnouncement,
		EventID:   "7",
		Category:  "hydra",
		Title:     "Hydra hunt",
		StartAt:   start,
		Remaining: 26*time.Hour + 5*time.Minute + 59*time.Second,
	})

	assert.Equal(t, "<@&42>", r.Mention)
	assert.Equal(t, "🛡️ Scheduled Hydra", r.Title)
	assert.Equal(t, "Hydra hunt", r.Description)
	assert.Equal(t, "Event ID: 7", r.Footer)
	assert.Equal(t, ColorGold, r.Color)
	assert.Equal(t, []Field{
		{Name: "🕒 Time", Value: "Sunday, March 1, 2026 8:30 PM UTC"},
		{Name: "⏳ Time Remaining", Value: "1 days 2 hours 5 minutes"},
		{Name: "🗳️ React with:", Value: "✅ — Yes\n❌ — No\n❓ — Maybe"},
	}, r.Fields)
}

func TestRender_Reminders(t *testing.T) {
	s := New(Options{FormatTime: func(time.Time) string { return "<when>" }})
	ctx := context.Background()
	base := notify.Payload{Kind: notify.KindReminder, Category: "CARAVAN", Title: "Escort", StartAt: start}

	p := base
	p.Tier = "halfway"
	r := s.Render(ctx, p)
	assert.Equal(t, "⏰ Reminder: Caravan Halfway There!", r.Title)
	assert.Equal(t, "Event **Caravan - Escort** is halfway there!\nHappening at <when>", r.Description)
	assert.Equal(t, ColorOrange, r.Color)
	assert.Equal(t, "Get ready!", r.Footer)

	p.Tier = "12h"
	r = s.Render(ctx, p)
	assert.Equal(t, "⏰ Reminder: 12 Hours Left", r.Title)
	assert.Equal(t, "Event **Caravan - Escort** starts in 12 hours.\nTime: <when>", r.Description)
	assert.Equal(t, ColorGreen, r.Color)

	p.Tier = "15m"
	r = s.Render(ctx, p)
	assert.Equal(t, "⏰ Reminder: 15 Minutes Left", r.Title)

	p.Tier = "start"
	r = s.Render(ctx, p)
	assert.Equal(t, "🚨 Caravan Started!", r.Title)
	assert.Equal(t, "**Caravan - Escort IS NOW!!! LET'S DO THIS!!**", r.Description)
	assert.Equal(t, ColorRed, r.Color)
	assert.Empty(t, r.Footer)
}

func TestRender_StartUsesGenerator(t *testing.T) {
	p := notify.Payload{Kind: notify.KindReminder, Tier: "start", Category: "hydra", Title: "x", StartAt: start}

	s := New(Options{Generator: stubGenerator{line: "Heads up, heroes!"}})
	assert.Contains(t, s.Render(context.Background(), p).Description, "Heads up, heroes!")

	s = New(Options{Generator: stubGenerator{err: errors.New("quota")}})
	assert.Contains(t, s.Render(context.Background(), p).Description, defaultHype)
}

func TestRendered_Text(t *testing.T) {
	r := Rendered{
		Mention:     "@all",
		Title:       "🚨 Hydra Started!",
		Description: "**Hydra - x IS NOW!!!**",
		Fields:      []Field{{Name: "🕒 Time", Value: "now"}},
		Footer:      "Event ID: 1",
	}
	text := r.Text()
	assert.True(t, strings.HasPrefix(text, "@all\n🚨 Hydra Started!\nHydra - x IS NOW!!!"))
	assert.Contains(t, text, "\n\n🕒 Time\nnow")
	assert.True(t, strings.HasSuffix(text, "Event ID: 1"))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "0 hours 30 minutes", FormatRemaining(30*time.Minute+59*time.Second))
	assert.Equal(t, "2 days 0 hours 0 minutes", FormatRemaining(48*time.Hour))
	assert.Equal(t, "0 hours 0 minutes", FormatRemaining(-time.Minute))
}

func TestTierTextAndCapitalize(t *testing.T) {
	assert.Equal(t, "3 Hours", TierText("3h", true))
	assert.Equal(t, "10 minutes", TierText("10m", false))
	assert.Equal(t, "start", TierText("start", false))
	assert.Equal(t, "Hydra", Capitalize("hYDRA"))
	assert.Equal(t, "", Capitalize(""))
}
