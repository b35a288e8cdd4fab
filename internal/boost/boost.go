// Package boost computes the time-decayed popularity score of an item from
// its active pins. The score is a pure function of immutable pin timestamps
// and wall-clock now; it is never persisted as ground truth.
package boost

import (
	"time"

	"github.com/barterly/trade-engine/internal/types"
)

const (
	// baseContribution is the weight of a same-day pin.
	baseContribution = 10.0
	// decayRate shrinks a pin's contribution as it ages, per day.
	decayRate = 0.1

	hoursPerDay = 24.0
)

// Contribution returns the decayed weight of a single pin at the given time.
// A pin contributes exactly 10.0 the moment it is created, about 5.0 after
// ten days and about 2.5 after thirty.
func Contribution(pinnedAt, now time.Time) float64 {
	daysOld := now.Sub(pinnedAt).Hours() / hoursPerDay
	if daysOld < 0 {
		daysOld = 0
	}
	return baseContribution / (1 + daysOld*decayRate)
}

// Score sums the contributions of all active pins. It is monotonically
// non-increasing in now for a fixed pin set, strictly increases when a pin is
// added, and is always finite and >= 0.
func Score(pins []types.Pin, now time.Time) float64 {
	var score float64
	for i := range pins {
		score += Contribution(pins[i].PinnedAt, now)
	}
	return score
}
