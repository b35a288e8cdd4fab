package trade

import (
	"time"

	"github.com/barterly/trade-engine/internal/reputation"
	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/pkg/response"
)

// Service owns the trade lifecycle: OPEN → PARTIAL → COMPLETED. No transition
// removes a confirmation, and COMPLETED is terminal.
type Service struct {
	db  *Database
	rep *reputation.Service
}

// NewService creates a new trade service with the given database connection.
// Completion side effects (trade point awards) run through the reputation
// service inside the completing transaction.
func NewService(gormDB *gorm.DB, rep *reputation.Service) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		rep: rep,
	}
}

// CreateTrade opens a trade on an available item for the requesting user.
// Resending the request while the trade is still open returns the existing
// trade instead of opening a second one.
func (s *Service) CreateTrade(itemID, requesterID string) (*types.Trade, error) {
	logger := log.With().
		Str("item_id", itemID).
		Str("requester_id", requesterID).
		Str("service", "trade").
		Logger()

	trade, err := s.db.CreateTrade(itemID, requesterID)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("trade_id", trade.TradeID).
		Str("owner_id", trade.OwnerID).
		Msg("opened trade")

	return trade, nil
}

// Confirm records the caller's confirmation on the trade. When this closes
// the second side, the trade transitions to COMPLETED exactly once: the
// completing transaction sets completed_at, awards trade points to both
// participants and takes the item off the market.
func (s *Service) Confirm(tradeID, userID string) (*types.Trade, error) {
	logger := log.With().
		Str("trade_id", tradeID).
		Str("user_id", userID).
		Str("service", "trade").
		Logger()

	trade, completed, err := s.db.Confirm(tradeID, userID, s.rep.AwardCompletion)
	if err != nil {
		return nil, err
	}

	if completed {
		logger.Info().
			Time("completed_at", *trade.CompletedAt).
			Msg("trade completed")
	} else {
		logger.Info().Str("state", trade.State()).Msg("recorded confirmation")
	}

	return trade, nil
}

// GetTrade returns the enriched trade detail for a participant
func (s *Service) GetTrade(tradeID, userID string) (*Detail, error) {
	trade, err := s.db.GetTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParticipant(userID) {
		return nil, types.ErrForbidden
	}
	return s.db.EnrichTrade(trade)
}

// ListTrades returns all trades the user participates in, newest first,
// enriched with item and participant data.
func (s *Service) ListTrades(userID string) ([]Detail, error) {
	trades, err := s.db.ListTrades(userID)
	if err != nil {
		return nil, err
	}

	details := make([]Detail, 0, len(trades))
	for i := range trades {
		detail, err := s.db.EnrichTrade(&trades[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// Detail is a trade enriched with its item and participants for the UI
type Detail struct {
	Trade  *types.Trade `json:"trade"`
	Item   *types.Item  `json:"item"`
	Owner  *types.User  `json:"owner"`
	Trader *types.User  `json:"trader"`
}

// GinHandlers contains HTTP handlers for trade endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trade endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateTradeRequest is the request body for opening a trade
type CreateTradeRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// CreateTradeHandler handles POST requests to open trades
// Requires a valid JWT token
func (h *GinHandlers) CreateTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		var req CreateTradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trade, err := h.service.CreateTrade(req.ItemID, userID)
		response.Handle(c, trade, err)
	}
}

// ConfirmTradeHandler handles POST requests to confirm a trade
// Requires a valid JWT token
// URL parameter: trade_id
func (h *GinHandlers) ConfirmTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		trade, err := h.service.Confirm(c.Param("trade_id"), userID)
		response.Handle(c, trade, err)
	}
}

// GetTradeHandler handles GET requests for a single trade
// Requires a valid JWT token; only participants can view
// URL parameter: trade_id
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		detail, err := h.service.GetTrade(c.Param("trade_id"), userID)
		response.Handle(c, detail, err)
	}
}

// ListTradesHandler handles GET requests for the caller's trades
// Requires a valid JWT token
func (h *GinHandlers) ListTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		details, err := h.service.ListTrades(userID)
		response.Handle(c, details, err)
	}
}

// now is indirected for tests that pin the clock
var now = func() time.Time { return time.Now().UTC() }
