package pins

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

// CreatePin validates and inserts the pin in one transaction. The check runs
// before the write so a retried request lands on ErrAlreadyPinned instead of
// a second pin; the unique (item_id, user_id) index backstops the race.
func (d *Database) CreatePin(pin *types.Pin) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var item types.Item
	if err := tx.Where("item_id = ?", pin.ItemID).First(&item).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrNotFound
		}
		return err
	}

	if item.UserID == pin.UserID {
		tx.Rollback()
		return types.ErrSelfPin
	}

	var count int64
	if err := tx.Model(&types.Pin{}).
		Where("item_id = ? AND user_id = ?", pin.ItemID, pin.UserID).
		Count(&count).Error; err != nil {
		tx.Rollback()
		return err
	}
	if count > 0 {
		tx.Rollback()
		return types.ErrAlreadyPinned
	}

	if err := tx.Create(pin).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// DeletePin hard-deletes the user's pin on the item
func (d *Database) DeletePin(itemID, userID string) error {
	res := d.db.Unscoped().
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Delete(&types.Pin{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.ErrNotPinned
	}
	return nil
}

// ActivePins returns the active pin snapshot for one item
func (d *Database) ActivePins(itemID string) ([]types.Pin, error) {
	var pins []types.Pin
	if err := d.db.Where("item_id = ?", itemID).Find(&pins).Error; err != nil {
		return nil, err
	}
	return pins, nil
}

// ActivePinsForItems returns active pins grouped by item id for batch scoring
func (d *Database) ActivePinsForItems(itemIDs []string) (map[string][]types.Pin, error) {
	grouped := make(map[string][]types.Pin, len(itemIDs))
	if len(itemIDs) == 0 {
		return grouped, nil
	}

	var pins []types.Pin
	if err := d.db.Where("item_id IN ?", itemIDs).Find(&pins).Error; err != nil {
		return nil, err
	}
	for _, pin := range pins {
		grouped[pin.ItemID] = append(grouped[pin.ItemID], pin)
	}
	return grouped, nil
}
