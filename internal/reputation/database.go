package reputation

import (
	"errors"
	"fmt"

	"github.com/barterly/trade-engine/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetUser(userID string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RateTrade sets the rater's rating column on the trade and applies the
// rating to the rated party, in one transaction. The guarded update on the
// null rating column makes a retried request land on ErrAlreadyRated instead
// of counting twice.
func (d *Database) RateTrade(tradeID, raterID string, rating int) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
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
			return types.ErrNotFound
		}
		return err
	}

	if !trade.IsCompleted {
		tx.Rollback()
		return types.ErrTradeNotCompleted
	}

	var ratingColumn, ratedUserID string
	switch raterID {
	case trade.OwnerID:
		ratingColumn = "owner_rating"
		ratedUserID = trade.TraderID
	case trade.TraderID:
		ratingColumn = "trader_rating"
		ratedUserID = trade.OwnerID
	default:
		tx.Rollback()
		return types.ErrForbidden
	}

	// Guarded write: only transitions null→value, exactly once
	res := tx.Model(&types.Trade{}).
		Where(fmt.Sprintf("trade_id = ? AND %s IS NULL", ratingColumn), tradeID).
		Update(ratingColumn, rating)
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return types.ErrAlreadyRated
	}

	res = tx.Model(&types.User{}).
		Where("user_id = ?", ratedUserID).
		Updates(map[string]interface{}{
			"rating_sum":   gorm.Expr("rating_sum + ?", rating),
			"rating_count": gorm.Expr("rating_count + ?", 1),
		})
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}

	return tx.Commit().Error
}
