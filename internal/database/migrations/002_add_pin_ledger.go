package migrations

import (
	"github.com/barterly/trade-engine/internal/types"
	"gorm.io/gorm"
)

// AddPinLedger creates the pins table and enforces one active pin per
// (item, user) pair at the storage layer.
func AddPinLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Pin{}); err != nil {
		return err
	}

	indexes := []string{
		// Backstop for the check-then-create race in the pin service
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pins_item_user
		 ON pins(item_id, user_id)`,

		// Scoring reads fetch all active pins for an item
		`CREATE INDEX IF NOT EXISTS idx_pins_item
		 ON pins(item_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
