// Package reputation is the only writer of user trade points and rating
// fields. Trade completion awards points through it inside the completing
// transaction; ratings flow through RateTrade. No other package mutates
// these columns.
package reputation

import (
	"fmt"
	"time"

	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/pkg/response"
)

// Service aggregates trade points and rating averages for users
type Service struct {
	db *Database
}

// NewService creates a new reputation service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// AwardCompletion grants one trade point to each participant of a completed
// trade. It runs inside the transaction that flips is_completed false→true,
// so a retried confirm can never award twice: the caller only invokes this
// when its guarded completion update touched a row.
func (s *Service) AwardCompletion(tx *gorm.DB, ownerID, traderID string) error {
	for _, userID := range []string{ownerID, traderID} {
		res := tx.Model(&types.User{}).
			Where("user_id = ?", userID).
			Update("trade_points", gorm.Expr("trade_points + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("failed to award trade point to %s: %w", userID, res.Error)
		}
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("trader_id", traderID).
		Str("service", "reputation").
		Msg("awarded completion trade points")

	return nil
}

// RateTrade records the rater's 1-5 rating on the trade and applies it to the
// other participant's running average. Each side rates exactly once; the two
// directions are independent and order-insensitive.
func (s *Service) RateTrade(tradeID, raterID string, rating int) error {
	if rating < 1 || rating > 5 {
		return types.ErrInvalidRating
	}

	logger := log.With().
		Str("trade_id", tradeID).
		Str("rater_id", raterID).
		Str("service", "reputation").
		Logger()

	if err := s.db.RateTrade(tradeID, raterID, rating); err != nil {
		return err
	}

	logger.Info().Int("rating", rating).Msg("recorded trade rating")
	return nil
}

// GetUser returns the public reputation readout for a user
func (s *Service) GetUser(userID string) (*UserReputation, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, err
	}

	rep := &UserReputation{
		UserID:      user.UserID,
		Name:        user.Name,
		Username:    user.Username,
		TradePoints: user.TradePoints,
		RatingCount: user.RatingCount,
		CreatedAt:   user.CreatedAt,
	}
	if avg, ok := user.Rating(); ok {
		rep.Rating = &avg
	}
	return rep, nil
}

// UserReputation is the public profile view of a user's reputation.
// Rating is nil until the user has been rated at least once.
type UserReputation struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Username    string    `json:"username,omitempty"`
	TradePoints int       `json:"trade_points"`
	Rating      *float64  `json:"rating"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// GinHandlers contains HTTP handlers for reputation endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for reputation endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RateRequest is the request body for rating a completed trade
type RateRequest struct {
	Rating int `json:"rating" binding:"required"`
}

// RateTradeHandler handles POST requests to rate the other party of a
// completed trade. Requires a valid JWT token.
// URL parameter: trade_id
func (h *GinHandlers) RateTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		tradeID := c.Param("trade_id")

		var req RateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.service.RateTrade(tradeID, userID, req.Rating)
		response.Handle(c, gin.H{"message": "Rating submitted", "rating": req.Rating}, err)
	}
}

// GetUserHandler handles GET requests for a user's public reputation
// URL parameter: user_id
func (h *GinHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")

		rep, err := h.service.GetUser(userID)
		response.Handle(c, rep, err)
	}
}
