// Package catalog is the engine's stand-in for the external item store.
// The engine does not own item CRUD; it needs item existence, ownership,
// category and the SetAvailability capability used on trade completion.
package catalog

import (
	"time"

	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/pkg/response"
)

// Service handles item lookups and provisioning
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GetItem retrieves an item by its ID
func (s *Service) GetItem(itemID string) (*types.Item, error) {
	return s.db.GetItem(itemID)
}

// ListAvailable returns available items, optionally filtered to one category,
// newest first.
func (s *Service) ListAvailable(category string) ([]types.Item, error) {
	return s.db.ListAvailable(category)
}

// ListOwnedAvailable returns a user's available items, newest first, capped
// at limit. The caller curates the portfolio surface from this.
func (s *Service) ListOwnedAvailable(userID string, limit int) ([]types.Item, error) {
	return s.db.ListOwnedAvailable(userID, limit)
}

// CreateItem provisions an item on behalf of the external item store
func (s *Service) CreateItem(ownerID, title, description, image, category string) (*types.Item, error) {
	item := &types.Item{
		ItemID:      types.NewID("item"),
		UserID:      ownerID,
		Title:       title,
		Description: description,
		Image:       image,
		Category:    category,
		IsAvailable: true,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.db.CreateItem(item); err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", item.ItemID).
		Str("owner_id", item.UserID).
		Str("category", item.Category).
		Str("service", "catalog").
		Msg("provisioned item")

	return item, nil
}

// GinHandlers contains HTTP handlers for catalog provisioning endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for catalog endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateItemRequest is the provisioning payload for internal routes
type CreateItemRequest struct {
	OwnerID     string `json:"owner_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category" binding:"required"`
}

// CreateItemHandler handles POST requests on the internal provisioning route
func (h *GinHandlers) CreateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		item, err := h.service.CreateItem(req.OwnerID, req.Title, req.Description, req.Image, req.Category)
		response.Handle(c, item, err)
	}
}
