package boost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterly/trade-engine/internal/types"
)

func TestContribution_Decay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		age      time.Duration
		expected float64
	}{
		{"same moment", 0, 10.0},
		{"ten days", 10 * 24 * time.Hour, 5.0},
		{"thirty days", 30 * 24 * time.Hour, 2.5},
		{"ninety days", 90 * 24 * time.Hour, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Contribution(now.Add(-tt.age), now)
			assert.InDelta(t, tt.expected, got, 0.01)
		})
	}
}

func TestContribution_FuturePinClampedToFullWeight(t *testing.T) {
	now := time.Now().UTC()
	// Clock skew between writer and reader must not inflate past 10.0
	got := Contribution(now.Add(time.Hour), now)
	assert.Equal(t, 10.0, got)
}

func TestScore_ThreePinScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pins := []types.Pin{
		{PinID: "pin_a", ItemID: "item_1", UserID: "usr_a", PinnedAt: now},
		{PinID: "pin_b", ItemID: "item_1", UserID: "usr_b", PinnedAt: now.Add(-10 * 24 * time.Hour)},
		{PinID: "pin_c", ItemID: "item_1", UserID: "usr_c", PinnedAt: now.Add(-30 * 24 * time.Hour)},
	}

	assert.InDelta(t, 17.5, Score(pins, now), 0.01)
}

func TestScore_MonotonicallyNonIncreasing(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pins := []types.Pin{
		{PinnedAt: start.Add(-24 * time.Hour)},
		{PinnedAt: start.Add(-72 * time.Hour)},
	}

	prev := Score(pins, start)
	for day := 1; day <= 60; day++ {
		cur := Score(pins, start.Add(time.Duration(day)*24*time.Hour))
		assert.LessOrEqual(t, cur, prev, "score increased between day %d and %d", day-1, day)
		assert.GreaterOrEqual(t, cur, 0.0)
		prev = cur
	}
}

func TestScore_AddingPinStrictlyIncreases(t *testing.T) {
	now := time.Now().UTC()
	pins := []types.Pin{{PinnedAt: now.Add(-48 * time.Hour)}}

	before := Score(pins, now)
	after := Score(append(pins, types.Pin{PinnedAt: now.Add(-100 * 24 * time.Hour)}), now)
	assert.Greater(t, after, before)
}

func TestScore_EmptyPinSet(t *testing.T) {
	assert.Zero(t, Score(nil, time.Now().UTC()))
}

// countingSource records how many snapshot reads hit the ledger
type countingSource struct {
	pins  []types.Pin
	calls int
}

func (c *countingSource) ActivePins(itemID string) ([]types.Pin, error) {
	c.calls++
	return c.pins, nil
}

func TestScorer_CachesWithinTTL(t *testing.T) {
	now := time.Now().UTC()
	source := &countingSource{pins: []types.Pin{{PinnedAt: now}}}
	scorer := NewScorer(source, 16, time.Minute)

	first, err := scorer.ItemScore("item_1", now)
	require.NoError(t, err)
	second, err := scorer.ItemScore("item_1", now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first.Score, second.Score)
}

func TestScorer_InvalidateForcesRecompute(t *testing.T) {
	now := time.Now().UTC()
	source := &countingSource{pins: []types.Pin{{PinnedAt: now}}}
	scorer := NewScorer(source, 16, time.Minute)

	_, err := scorer.ItemScore("item_1", now)
	require.NoError(t, err)

	source.pins = append(source.pins, types.Pin{PinnedAt: now})
	scorer.Invalidate("item_1")

	snap, err := scorer.ItemScore("item_1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 2, snap.PinCount)
}

func TestScorer_ExpiredEntryRecomputed(t *testing.T) {
	now := time.Now().UTC()
	source := &countingSource{pins: []types.Pin{{PinnedAt: now}}}
	scorer := NewScorer(source, 16, 10*time.Second)

	_, err := scorer.ItemScore("item_1", now)
	require.NoError(t, err)
	_, err = scorer.ItemScore("item_1", now.Add(11*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}

func TestScorer_ZeroTTLDisablesCache(t *testing.T) {
	now := time.Now().UTC()
	source := &countingSource{pins: []types.Pin{{PinnedAt: now}}}
	scorer := NewScorer(source, 16, 0)

	_, err := scorer.ItemScore("item_1", now)
	require.NoError(t, err)
	_, err = scorer.ItemScore("item_1", now)
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}
