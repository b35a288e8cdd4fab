// Package pins is the append-only ledger of item endorsements. A pin is
// written once with its timestamp and either stays active or is hard-deleted
// on unpin; no history is kept for unpinned items.
package pins

import (
	"time"

	"github.com/barterly/trade-engine/internal/boost"
	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/pkg/response"
)

// Service handles pin and unpin operations against the ledger
type Service struct {
	db     *Database
	scorer *boost.Scorer
}

// NewService creates a new pin service. The scorer is invalidated on every
// write so reads never serve a score that predates a pin change.
func NewService(gormDB *gorm.DB, scorer *boost.Scorer) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		scorer: scorer,
	}
}

// Pin records the user's endorsement of the item and returns the item's
// fresh boost score. Owners may not boost their own items.
func (s *Service) Pin(itemID, userID string) (*PinResult, error) {
	logger := log.With().
		Str("item_id", itemID).
		Str("user_id", userID).
		Str("service", "pins").
		Logger()

	pin := &types.Pin{
		PinID:    types.NewID("pin"),
		ItemID:   itemID,
		UserID:   userID,
		PinnedAt: time.Now().UTC(),
	}
	if err := s.db.CreatePin(pin); err != nil {
		return nil, err
	}

	s.scorer.Invalidate(itemID)

	snap, err := s.scorer.ItemScore(itemID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("pin_id", pin.PinID).
		Float64("boost_score", snap.Score).
		Int("pin_count", snap.PinCount).
		Msg("pinned item")

	return &PinResult{
		PinID:         pin.PinID,
		ItemID:        itemID,
		NewBoostScore: snap.Score,
		PinCount:      snap.PinCount,
	}, nil
}

// Unpin removes the user's pin from the item
func (s *Service) Unpin(itemID, userID string) error {
	if err := s.db.DeletePin(itemID, userID); err != nil {
		return err
	}

	s.scorer.Invalidate(itemID)

	log.Info().
		Str("item_id", itemID).
		Str("user_id", userID).
		Str("service", "pins").
		Msg("unpinned item")

	return nil
}

// PinResult reports the outcome of a pin, including the recomputed score
type PinResult struct {
	PinID         string  `json:"pin_id"`
	ItemID        string  `json:"item_id"`
	NewBoostScore float64 `json:"new_boost_score"`
	PinCount      int     `json:"pin_count"`
}

// GinHandlers contains HTTP handlers for pin endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for pin endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PinItemHandler handles POST requests to pin an item
// Requires a valid JWT token
// URL parameter: item_id
func (h *GinHandlers) PinItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		result, err := h.service.Pin(c.Param("item_id"), userID)
		response.Handle(c, result, err)
	}
}

// UnpinItemHandler handles DELETE requests to unpin an item
// Requires a valid JWT token
// URL parameter: item_id
func (h *GinHandlers) UnpinItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		err := h.service.Unpin(c.Param("item_id"), userID)
		response.Handle(c, gin.H{"message": "Pin removed"}, err)
	}
}
