package reminder

import (
	"time"
)

// Tier labels with special handling
const (
	TierHalfway = "halfway"
	TierStart   = "start"
)

const (
	// longRangeThreshold separates the long-range and near-term catalogs
	longRangeThreshold = time.Hour
	// halfwayMinimumLead drops the halfway tier for very short events
	halfwayMinimumLead = time.Minute
	// startGrace is how long after the start instant the start tier may fire;
	// it is also the staleness cut-off for an event
	startGrace = time.Minute
)

// Tier is a named reminder threshold: it fires Lead before the start
type Tier struct {
	Label string
	Lead  time.Duration
}

var longRange = []Tier{
	{Label: "12h", Lead: 12 * time.Hour},
	{Label: "6h", Lead: 6 * time.Hour},
	{Label: "3h", Lead: 3 * time.Hour},
	{Label: "1h", Lead: time.Hour},
	{Label: "30m", Lead: 30 * time.Minute},
	{Label: "10m", Lead: 10 * time.Minute},
}

var nearTerm = []Tier{
	{Label: "30m", Lead: 30 * time.Minute},
	{Label: "15m", Lead: 15 * time.Minute},
}

// HalfwayLead returns the lead of the halfway tier for an event announced at
// created and starting at start: the midpoint of the announcement window
func HalfwayLead(created, start time.Time) time.Duration {
	if created.IsZero() || !start.After(created) {
		return 0
	}
	return start.Sub(created) / 2
}

// Candidates returns, in firing order, the tiers to evaluate for an event
// with the given time remaining. halfwayLead comes from HalfwayLead and
// startFired reports whether the start tier was already dispatched.
func Candidates(remaining, halfwayLead time.Duration, startFired bool) []Tier {
	var tiers []Tier

	if remaining > longRangeThreshold {
		if halfwayLead > halfwayMinimumLead {
			tiers = append(tiers, Tier{Label: TierHalfway, Lead: halfwayLead})
		}
		tiers = append(tiers, longRange...)
	} else {
		tiers = append(tiers, nearTerm...)
	}

	if !startFired && inStartWindow(remaining) {
		tiers = append(tiers, Tier{Label: TierStart, Lead: 0})
	}
	return tiers
}

func inStartWindow(remaining time.Duration) bool {
	return remaining >= -startGrace && remaining <= 0
}
