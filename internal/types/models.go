package types

import (
	"time"

	"gorm.io/gorm"
)

// Trade tracks a two-party agreement over a single item from creation to
// mutual confirmation. A trade is never deleted; completion is terminal.
type Trade struct {
	gorm.Model      `json:"-"`
	TradeID         string     `gorm:"uniqueIndex" json:"trade_id"`
	ItemID          string     `gorm:"index" json:"item_id"`
	OwnerID         string     `gorm:"index" json:"owner_id"`
	TraderID        string     `gorm:"index" json:"trader_id"`
	OwnerConfirmed  bool       `json:"owner_confirmed"`
	TraderConfirmed bool       `json:"trader_confirmed"`
	IsCompleted     bool       `json:"is_completed"`
	OwnerRating     *int       `json:"owner_rating"`
	TraderRating    *int       `json:"trader_rating"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// Trade states derived from the confirmation flags.
const (
	TradeStateOpen      = "OPEN"
	TradeStatePartial   = "PARTIAL"
	TradeStateCompleted = "COMPLETED"
)

// State reports the trade's position in the lifecycle.
func (t *Trade) State() string {
	switch {
	case t.IsCompleted:
		return TradeStateCompleted
	case t.OwnerConfirmed || t.TraderConfirmed:
		return TradeStatePartial
	default:
		return TradeStateOpen
	}
}

// IsParticipant reports whether userID is the owner or the trader.
func (t *Trade) IsParticipant(userID string) bool {
	return t.OwnerID == userID || t.TraderID == userID
}

// Pin records a user's endorsement of an item. PinnedAt is immutable once
// written; a pin is either active or hard-deleted, never rewritten.
type Pin struct {
	gorm.Model `json:"-"`
	PinID      string    `gorm:"uniqueIndex" json:"pin_id"`
	ItemID     string    `gorm:"index:idx_pins_item_user,unique" json:"item_id"`
	UserID     string    `gorm:"index:idx_pins_item_user,unique" json:"user_id"`
	PinnedAt   time.Time `json:"pinned_at"`
}

// User carries the reputation fields owned by the reputation aggregator.
// TradePoints, RatingSum and RatingCount are mutated only there.
type User struct {
	gorm.Model  `json:"-"`
	UserID      string    `gorm:"uniqueIndex" json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Username    string    `json:"username,omitempty"`
	TradePoints int       `json:"trade_points"`
	RatingSum   float64   `json:"-"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Rating returns the running average and whether any ratings exist.
func (u *User) Rating() (float64, bool) {
	if u.RatingCount == 0 {
		return 0, false
	}
	return u.RatingSum / float64(u.RatingCount), true
}

// Item is the engine's view of the item store. Boost score and pin count are
// derived from the pin ledger at read time and never stored here.
type Item struct {
	gorm.Model  `json:"-"`
	ItemID      string    `gorm:"uniqueIndex" json:"item_id"`
	UserID      string    `gorm:"index" json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Category    string    `gorm:"index" json:"category"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}
