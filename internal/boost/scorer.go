package boost

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/barterly/trade-engine/internal/types"
)

// PinSource supplies the active pin snapshot for an item.
type PinSource interface {
	ActivePins(itemID string) ([]types.Pin, error)
}

// Snapshot is a scored view of an item's pins at a point in time.
type Snapshot struct {
	Score      float64
	PinCount   int
	ComputedAt time.Time
}

// Scorer is a read-through layer over the pure scoring function. Cached
// entries live at most ttl, bounding staleness of the decaying score, and
// pin/unpin invalidate the item's entry immediately. The pin ledger stays
// the source of truth throughout.
type Scorer struct {
	source PinSource
	cache  *lru.Cache
	ttl    time.Duration
}

// NewScorer creates a scorer with an LRU cache of the given size and entry TTL.
// A zero ttl disables caching entirely.
func NewScorer(source PinSource, cacheSize int, ttl time.Duration) *Scorer {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, _ := lru.New(cacheSize)
	return &Scorer{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}
}

// ItemScore returns the item's boost score and pin count at now, serving from
// cache when the cached snapshot is fresh enough.
func (s *Scorer) ItemScore(itemID string, now time.Time) (Snapshot, error) {
	if s.ttl > 0 {
		if v, ok := s.cache.Get(itemID); ok {
			snap := v.(Snapshot)
			if now.Sub(snap.ComputedAt) < s.ttl {
				return snap, nil
			}
		}
	}

	pins, err := s.source.ActivePins(itemID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Score:      Score(pins, now),
		PinCount:   len(pins),
		ComputedAt: now,
	}
	if s.ttl > 0 {
		s.cache.Add(itemID, snap)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for an item. Called on pin and unpin
// so writes are visible on the next read.
func (s *Scorer) Invalidate(itemID string) {
	s.cache.Remove(itemID)
}
