package migrations

import (
	"github.com/barterly/trade-engine/internal/types"
	"gorm.io/gorm"
)

// AddTradeIndexes creates the trades table and its lookup indexes
func AddTradeIndexes(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Trade{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Open-trade lookups during trade creation check item + completion state
		`CREATE INDEX IF NOT EXISTS idx_trades_item_completed
		 ON trades(item_id, is_completed)`,

		// Both-role trade listings for a user
		`CREATE INDEX IF NOT EXISTS idx_trades_owner_created
		 ON trades(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_trader_created
		 ON trades(trader_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
