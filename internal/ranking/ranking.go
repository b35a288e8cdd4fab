// Package ranking orders item collections by boost score. It is a read-only
// projection: it never mutates pins or items.
package ranking

import (
	"sort"
	"time"

	"github.com/barterly/trade-engine/internal/boost"
	"github.com/barterly/trade-engine/internal/catalog"
	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"

	"github.com/barterly/trade-engine/pkg/response"
)

// RankedItem is an item annotated with its derived boost fields
type RankedItem struct {
	types.Item
	BoostScore float64 `json:"boost_score"`
	PinCount   int     `json:"pin_count"`
}

// Rank sorts items by boost score descending, breaking ties by created_at
// descending (newer first) and then item_id ascending, so the ordering is
// fully deterministic.
func Rank(items []RankedItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].BoostScore != items[j].BoostScore {
			return items[i].BoostScore > items[j].BoostScore
		}
		if !items[i].Item.CreatedAt.Equal(items[j].Item.CreatedAt) {
			return items[i].Item.CreatedAt.After(items[j].Item.CreatedAt)
		}
		return items[i].ItemID < items[j].ItemID
	})
}

// Service serves ranked item feeds
type Service struct {
	catalog      *catalog.Service
	scorer       *boost.Scorer
	portfolioCap int
}

// NewService creates a ranking service over the catalog and boost scorer
func NewService(cat *catalog.Service, scorer *boost.Scorer, portfolioCap int) *Service {
	if portfolioCap <= 0 {
		portfolioCap = 20
	}
	return &Service{
		catalog:      cat,
		scorer:       scorer,
		portfolioCap: portfolioCap,
	}
}

// CategoryFeed returns available items, optionally filtered to one category,
// ranked by boost score at now.
func (s *Service) CategoryFeed(category string, now time.Time) ([]RankedItem, error) {
	items, err := s.catalog.ListAvailable(category)
	if err != nil {
		return nil, err
	}
	return s.annotateAndRank(items, now)
}

// Portfolio returns a user's available items, size-capped, ranked by boost
// score at now.
func (s *Service) Portfolio(userID string, now time.Time) ([]RankedItem, error) {
	items, err := s.catalog.ListOwnedAvailable(userID, s.portfolioCap)
	if err != nil {
		return nil, err
	}
	return s.annotateAndRank(items, now)
}

func (s *Service) annotateAndRank(items []types.Item, now time.Time) ([]RankedItem, error) {
	ranked := make([]RankedItem, 0, len(items))
	for _, item := range items {
		snap, err := s.scorer.ItemScore(item.ItemID, now)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedItem{
			Item:       item,
			BoostScore: snap.Score,
			PinCount:   snap.PinCount,
		})
	}

	Rank(ranked)
	return ranked, nil
}

// GinHandlers contains HTTP handlers for ranked feeds
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for ranked feeds
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListItemsHandler handles GET requests for the ranked category feed
// Query parameter: category (optional)
func (h *GinHandlers) ListItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.service.CategoryFeed(c.Query("category"), time.Now().UTC())
		response.Handle(c, items, err)
	}
}

// PortfolioHandler handles GET requests for a user's ranked portfolio
// URL parameter: user_id
func (h *GinHandlers) PortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.service.Portfolio(c.Param("user_id"), time.Now().UTC())
		response.Handle(c, items, err)
	}
}
