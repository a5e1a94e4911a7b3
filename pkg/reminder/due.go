package reminder

import (
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
)

// DefaultInterval is the polling interval the firing windows are sized to
const DefaultInterval = 60 * time.Second

// Stale reports whether the event is too far in the past to act on
func Stale(event models.ScheduledEvent, now time.Time) bool {
	return event.Remaining(now) < -startGrace
}

// Due returns the tiers of event that are due at now, in catalog order.
//
// A tier with lead L is due when it has not fired and
// 0 <= remaining-L < interval, so exactly one tick per interval sees its
// window. The start tier is due anywhere in [-1m, 0]. A window missed
// entirely, e.g. while the bot was down, is not fired later.
func Due(event models.ScheduledEvent, now time.Time, interval time.Duration) []Tier {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if Stale(event, now) {
		return nil
	}

	remaining := event.Remaining(now)
	halfway := HalfwayLead(event.CreatedAt, event.StartAt)

	var due []Tier
	for _, tier := range Candidates(remaining, halfway, event.HasFired(TierStart)) {
		if event.HasFired(tier.Label) {
			continue
		}
		if tier.Label == TierStart {
			if inStartWindow(remaining) {
				due = append(due, tier)
			}
			continue
		}
		if offset := remaining - tier.Lead; offset >= 0 && offset < interval {
			due = append(due, tier)
		}
	}
	return due
}
