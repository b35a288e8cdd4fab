package catalog

import (
	"errors"

	"github.com/barterly/trade-engine/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateItem(item *types.Item) error {
	return d.db.Create(item).Error
}

func (d *Database) GetItem(itemID string) (*types.Item, error) {
	var item types.Item
	if err := d.db.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (d *Database) ListAvailable(category string) ([]types.Item, error) {
	query := d.db.Where("is_available = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var items []types.Item
	if err := query.Order("created_at DESC").Limit(100).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (d *Database) ListOwnedAvailable(userID string, limit int) ([]types.Item, error) {
	var items []types.Item
	err := d.db.
		Where("user_id = ? AND is_available = ?", userID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SetAvailability flips the item's availability inside the caller's
// transaction. Trade completion uses this to take the item off the market.
func SetAvailability(tx *gorm.DB, itemID string, available bool) error {
	return tx.Model(&types.Item{}).
		Where("item_id = ?", itemID).
		Update("is_available", available).Error
}
