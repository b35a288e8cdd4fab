package trade

import (
	"errors"
	"fmt"

	"github.com/barterly/trade-engine/internal/catalog"
	"github.com/barterly/trade-engine/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateTrade opens a trade inside a transaction so the one-open-trade-per-
// item invariant holds under concurrent requests.
func (d *Database) CreateTrade(itemID, requesterID string) (*types.Trade, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var item types.Item
	if err := tx.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}

	if item.UserID == requesterID {
		tx.Rollback()
		return nil, types.ErrInvalidTarget
	}
	if !item.IsAvailable {
		tx.Rollback()
		return nil, types.ErrItemUnavailable
	}

	// At most one open trade per item. The requester resending gets their
	// existing trade back; anyone else is turned away.
	var existing types.Trade
	err := tx.Where("item_id = ? AND is_completed = ?", itemID, false).First(&existing).Error
	switch {
	case err == nil:
		tx.Rollback()
		if existing.TraderID == requesterID {
			return &existing, nil
		}
		return nil, types.ErrItemUnavailable
	case !errors.Is(err, gorm.ErrRecordNotFound):
		tx.Rollback()
		return nil, err
	}

	trade := &types.Trade{
		TradeID:   types.NewID("trade"),
		ItemID:    itemID,
		OwnerID:   item.UserID,
		TraderID:  requesterID,
		CreatedAt: now(),
	}
	if err := tx.Create(trade).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return trade, nil
}

// Confirm sets the caller's confirmation flag with a guarded update and, when
// both flags are set, performs the completion transition exactly once. The
// onComplete hook (reputation award) runs inside the same transaction, gated
// on the is_completed false→true flip, so two near-simultaneous confirms
// produce a single award pair and a single completed_at.
func (d *Database) Confirm(
	tradeID, userID string,
	onComplete func(tx *gorm.DB, ownerID, traderID string) error,
) (*types.Trade, bool, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return nil, false, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var trade types.Trade
	if err := tx.Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, types.ErrNotFound
		}
		return nil, false, err
	}

	if trade.IsCompleted {
		tx.Rollback()
		return nil, false, types.ErrTradeAlreadyCompleted
	}

	var confirmColumn string
	switch userID {
	case trade.OwnerID:
		confirmColumn = "owner_confirmed"
	case trade.TraderID:
		confirmColumn = "trader_confirmed"
	default:
		tx.Rollback()
		return nil, false, types.ErrForbidden
	}

	// Guarded update: flips the flag only if it is still unset
	res := tx.Model(&types.Trade{}).
		Where(fmt.Sprintf("trade_id = ? AND %s = ?", confirmColumn), tradeID, false).
		Update(confirmColumn, true)
	if res.Error != nil {
		tx.Rollback()
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, false, types.ErrAlreadyConfirmed
	}

	// Completion transition: the is_completed guard means at most one caller
	// ever sees RowsAffected == 1, no matter how the confirms interleave.
	completedAt := now()
	res = tx.Model(&types.Trade{}).
		Where("trade_id = ? AND owner_confirmed = ? AND trader_confirmed = ? AND is_completed = ?",
			tradeID, true, true, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, false, res.Error
	}

	completed := res.RowsAffected == 1
	if completed {
		if err := onComplete(tx, trade.OwnerID, trade.TraderID); err != nil {
			tx.Rollback()
			return nil, false, err
		}
		if err := catalog.SetAvailability(tx, trade.ItemID, false); err != nil {
			tx.Rollback()
			return nil, false, fmt.Errorf("failed to mark item unavailable: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, err
	}

	updated, err := d.GetTrade(tradeID)
	if err != nil {
		return nil, false, err
	}
	return updated, completed, nil
}

func (d *Database) GetTrade(tradeID string) (*types.Trade, error) {
	var trade types.Trade
	if err := d.db.Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &trade, nil
}

func (d *Database) ListTrades(userID string) ([]types.Trade, error) {
	var trades []types.Trade
	err := d.db.
		Where("owner_id = ? OR trader_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(50).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// EnrichTrade loads the item and both participants for a trade detail view
func (d *Database) EnrichTrade(trade *types.Trade) (*Detail, error) {
	var item types.Item
	if err := d.db.Where("item_id = ?", trade.ItemID).First(&item).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var owner, trader types.User
	if err := d.db.Where("user_id = ?", trade.OwnerID).First(&owner).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := d.db.Where("user_id = ?", trade.TraderID).First(&trader).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &Detail{
		Trade:  trade,
		Item:   &item,
		Owner:  &owner,
		Trader: &trader,
	}, nil
}
