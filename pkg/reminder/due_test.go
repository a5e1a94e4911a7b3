package reminder

import (
	"testing"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func labels(tiers []Tier) []string {
	out := make([]string, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, t.Label)
	}
	return out
}

// eventIn returns an event announced at t0 that starts after the given offset
func eventIn(offset time.Duration) models.ScheduledEvent {
	return models.ScheduledEvent{
		ID:        "1",
		Category:  "hydra",
		Title:     "Hydra hunt",
		StartAt:   t0.Add(offset),
		Channel:   "100",
		CreatedAt: t0,
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name       string
		remaining  time.Duration
		halfway    time.Duration
		startFired bool
		want       []string
	}{
		{
			name:      "long range with halfway",
			remaining: 2 * time.Hour,
			halfway:   time.Hour,
			want:      []string{TierHalfway, "12h", "6h", "3h", "1h", "30m", "10m"},
		},
		{
			name:      "long range without halfway for short lead",
			remaining: 2 * time.Hour,
			halfway:   time.Minute,
			want:      []string{"12h", "6h", "3h", "1h", "30m", "10m"},
		},
		{
			name:      "exactly one hour is near term",
			remaining: time.Hour,
			halfway:   time.Hour,
			want:      []string{"30m", "15m"},
		},
		{
			name:      "halfway of a short announcement falls in near term",
			remaining: 45 * time.Minute,
			halfway:   45 * time.Minute,
			want:      []string{"30m", "15m"},
		},
		{
			name:      "start window",
			remaining: -30 * time.Second,
			want:      []string{"30m", "15m", TierStart},
		},
		{
			name:       "start already fired",
			remaining:  0,
			startFired: true,
			want:       []string{"30m", "15m"},
		},
		{
			name:      "after start window",
			remaining: -61 * time.Second,
			want:      []string{"30m", "15m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, labels(Candidates(tt.remaining, tt.halfway, tt.startFired)))
		})
	}
}

func TestHalfwayLead(t *testing.T) {
	assert.Equal(t, time.Hour, HalfwayLead(t0, t0.Add(2*time.Hour)))
	assert.Zero(t, HalfwayLead(time.Time{}, t0))
	assert.Zero(t, HalfwayLead(t0, t0.Add(-time.Minute)))
}

func TestDue_ThirtyMinuteWindow(t *testing.T) {
	e := eventIn(1830 * time.Second)
	e.CreatedAt = t0.Add(-24 * time.Hour)

	assert.Equal(t, []string{"30m"}, labels(Due(e, t0, time.Minute)))

	e.MarkFired("30m")
	assert.Empty(t, Due(e, t0, time.Minute))
}

func TestDue_WindowBoundaries(t *testing.T) {
	e := eventIn(30 * time.Minute)
	e.CreatedAt = t0.Add(-24 * time.Hour)

	// remaining == lead opens the window
	assert.Equal(t, []string{"30m"}, labels(Due(e, t0, time.Minute)))
	// remaining == lead+interval is one tick early
	assert.Empty(t, Due(e, t0.Add(-time.Minute), time.Minute))
	// remaining just below lead has missed the window
	assert.Empty(t, Due(e, t0.Add(time.Second), time.Minute))
}

func TestDue_HalfwayFiresExactlyOnce(t *testing.T) {
	e := eventIn(7200 * time.Second)
	assert.Equal(t, time.Hour, HalfwayLead(e.CreatedAt, e.StartAt))

	halfway := 0
	// Ticks land 30s off the minute so one of them falls inside [3600,3660)
	for now := t0.Add(30 * time.Second); now.Before(e.StartAt); now = now.Add(time.Minute) {
		for _, tier := range Due(e, now, time.Minute) {
			if tier.Label == TierHalfway {
				halfway++
				remaining := e.Remaining(now)
				assert.True(t, remaining >= 3600*time.Second && remaining < 3660*time.Second, "fired at %s", remaining)
			}
			e.MarkFired(tier.Label)
		}
	}

	assert.Equal(t, 1, halfway)
	assert.Equal(t, 1, countOf(e.FiredTiers, TierHalfway))
}

func TestDue_NoHalfwayForShortAnnouncements(t *testing.T) {
	// The midpoint lands inside the last hour, where only near-term tiers run
	for _, lead := range []time.Duration{75 * time.Minute, 90 * time.Minute, 115 * time.Minute} {
		e := eventIn(lead)
		for now := t0.Add(30 * time.Second); now.Before(e.StartAt); now = now.Add(time.Minute) {
			for _, tier := range Due(e, now, time.Minute) {
				e.MarkFired(tier.Label)
			}
		}
		assert.False(t, e.HasFired(TierHalfway), "announced %s ahead", lead)
	}
}

func TestDue_StartFiresOnceInsideWindow(t *testing.T) {
	e := eventIn(5 * time.Minute)
	e.CreatedAt = t0.Add(-24 * time.Hour)

	var firedAt []time.Duration
	for now := t0; now.Before(e.StartAt.Add(3 * time.Minute)); now = now.Add(15 * time.Second) {
		for _, tier := range Due(e, now, time.Minute) {
			if tier.Label == TierStart {
				firedAt = append(firedAt, e.Remaining(now))
			}
			e.MarkFired(tier.Label)
		}
	}

	if assert.Len(t, firedAt, 1) {
		assert.Equal(t, time.Duration(0), firedAt[0])
	}
}

func TestDue_StartNotBeforeOrAfterWindow(t *testing.T) {
	e := eventIn(time.Second)
	assert.NotContains(t, labels(Due(e, t0, time.Minute)), TierStart)

	e = eventIn(-60 * time.Second)
	assert.Contains(t, labels(Due(e, t0, time.Minute)), TierStart)
}

func TestDue_StaleEventProducesNothing(t *testing.T) {
	e := eventIn(-61 * time.Second)
	assert.True(t, Stale(e, t0))
	assert.Empty(t, Due(e, t0, time.Minute))
}

func TestDue_MultipleTiersInOneTick(t *testing.T) {
	// halfway and 1h share a window for an event announced two hours out
	e := eventIn(7200 * time.Second)
	now := e.StartAt.Add(-3630 * time.Second)

	assert.Equal(t, []string{TierHalfway, "1h"}, labels(Due(e, now, time.Minute)))
}

func TestDue_DefaultInterval(t *testing.T) {
	e := eventIn(1830 * time.Second)
	e.CreatedAt = t0.Add(-24 * time.Hour)
	assert.Equal(t, []string{"30m"}, labels(Due(e, t0, 0)))
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
