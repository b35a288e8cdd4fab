package trade

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/internal/database"
	"github.com/barterly/trade-engine/internal/reputation"
	"github.com/barterly/trade-engine/internal/types"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return db
}

func seedUser(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	require.NoError(t, db.Create(&types.User{
		UserID:    userID,
		Email:     userID + "@example.com",
		Name:      userID,
		CreatedAt: time.Now().UTC(),
	}).Error)
}

func seedItem(t *testing.T, db *gorm.DB, itemID, ownerID string) {
	t.Helper()
	require.NoError(t, db.Create(&types.Item{
		ItemID:      itemID,
		UserID:      ownerID,
		Title:       "Test item",
		Category:    "books",
		IsAvailable: true,
		CreatedAt:   time.Now().UTC(),
	}).Error)
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	seedUser(t, db, "usr_owner")
	seedUser(t, db, "usr_trader")
	seedItem(t, db, "item_1", "usr_owner")
	return NewService(db, reputation.NewService(db)), db
}

func TestCreateTrade(t *testing.T) {
	svc, _ := newTestService(t)

	trade, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	assert.NotEmpty(t, trade.TradeID)
	assert.Equal(t, "usr_owner", trade.OwnerID)
	assert.Equal(t, "usr_trader", trade.TraderID)
	assert.Equal(t, types.TradeStateOpen, trade.State())
	assert.False(t, trade.IsCompleted)
	assert.Nil(t, trade.CompletedAt)
}

func TestCreateTrade_Errors(t *testing.T) {
	tests := []struct {
		name        string
		itemID      string
		requesterID string
		expected    error
	}{
		{"missing item", "item_missing", "usr_trader", types.ErrNotFound},
		{"self trade", "item_1", "usr_owner", types.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			_, err := svc.CreateTrade(tt.itemID, tt.requesterID)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCreateTrade_UnavailableItem(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Model(&types.Item{}).
		Where("item_id = ?", "item_1").
		Update("is_available", false).Error)

	_, err := svc.CreateTrade("item_1", "usr_trader")
	assert.ErrorIs(t, err, types.ErrItemUnavailable)
}

func TestCreateTrade_OneOpenTradePerItem(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "usr_second")

	first, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	// The same trader resending gets the existing trade back
	again, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)
	assert.Equal(t, first.TradeID, again.TradeID)

	// A different trader is turned away while the trade is open
	_, err = svc.CreateTrade("item_1", "usr_second")
	assert.ErrorIs(t, err, types.ErrItemUnavailable)
}

func TestConfirm_SingleSide(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	updated, err := svc.Confirm(created.TradeID, "usr_owner")
	require.NoError(t, err)

	assert.True(t, updated.OwnerConfirmed)
	assert.False(t, updated.TraderConfirmed)
	assert.Equal(t, types.TradeStatePartial, updated.State())
	assert.False(t, updated.IsCompleted)
}

func TestConfirm_Errors(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "usr_stranger")
	created, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	_, err = svc.Confirm("trade_missing", "usr_owner")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = svc.Confirm(created.TradeID, "usr_stranger")
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = svc.Confirm(created.TradeID, "usr_owner")
	require.NoError(t, err)
	_, err = svc.Confirm(created.TradeID, "usr_owner")
	assert.ErrorIs(t, err, types.ErrAlreadyConfirmed)
}

func TestConfirm_CompletionEffects(t *testing.T) {
	svc, db := newTestService(t)
	created, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	_, err = svc.Confirm(created.TradeID, "usr_owner")
	require.NoError(t, err)
	completed, err := svc.Confirm(created.TradeID, "usr_trader")
	require.NoError(t, err)

	assert.True(t, completed.IsCompleted)
	assert.Equal(t, types.TradeStateCompleted, completed.State())
	require.NotNil(t, completed.CompletedAt)

	// Item is off the market
	var item types.Item
	require.NoError(t, db.Where("item_id = ?", "item_1").First(&item).Error)
	assert.False(t, item.IsAvailable)

	// Both participants earned exactly one trade point
	for _, userID := range []string{"usr_owner", "usr_trader"} {
		var user types.User
		require.NoError(t, db.Where("user_id = ?", userID).First(&user).Error)
		assert.Equal(t, 1, user.TradePoints, "trade points for %s", userID)
	}

	// Further confirms are rejected without re-awarding
	_, err = svc.Confirm(created.TradeID, "usr_owner")
	assert.ErrorIs(t, err, types.ErrTradeAlreadyCompleted)

	var owner types.User
	require.NoError(t, db.Where("user_id = ?", "usr_owner").First(&owner).Error)
	assert.Equal(t, 1, owner.TradePoints)
}

func TestConfirm_ConcurrentExactlyOnce(t *testing.T) {
	svc, db := newTestService(t)
	created, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	// Both sides confirm at the same instant, each with a retry. Any mix of
	// success, AlreadyConfirmed and TradeAlreadyCompleted is fine as long as
	// the completion effects happen exactly once.
	confirmers := []string{"usr_owner", "usr_trader", "usr_owner", "usr_trader"}
	var wg sync.WaitGroup
	for _, userID := range confirmers {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := svc.Confirm(created.TradeID, uid)
			if err != nil {
				assert.True(t,
					err == types.ErrAlreadyConfirmed || err == types.ErrTradeAlreadyCompleted,
					"unexpected error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	var trade types.Trade
	require.NoError(t, db.Where("trade_id = ?", created.TradeID).First(&trade).Error)
	assert.True(t, trade.IsCompleted)
	assert.True(t, trade.OwnerConfirmed)
	assert.True(t, trade.TraderConfirmed)
	require.NotNil(t, trade.CompletedAt)

	for _, userID := range []string{"usr_owner", "usr_trader"} {
		var user types.User
		require.NoError(t, db.Where("user_id = ?", userID).First(&user).Error)
		assert.Equal(t, 1, user.TradePoints, "trade points for %s", userID)
	}
}

func TestCompletionInvariant_FlagsMatchState(t *testing.T) {
	svc, db := newTestService(t)
	created, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	check := func() {
		var trade types.Trade
		require.NoError(t, db.Where("trade_id = ?", created.TradeID).First(&trade).Error)
		assert.Equal(t, trade.OwnerConfirmed && trade.TraderConfirmed, trade.IsCompleted)
		assert.Equal(t, trade.IsCompleted, trade.CompletedAt != nil)
	}

	check()
	_, err = svc.Confirm(created.TradeID, "usr_trader")
	require.NoError(t, err)
	check()
	_, err = svc.Confirm(created.TradeID, "usr_owner")
	require.NoError(t, err)
	check()
}

func TestGetTrade_ParticipantsOnly(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "usr_stranger")
	created, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)

	detail, err := svc.GetTrade(created.TradeID, "usr_owner")
	require.NoError(t, err)
	assert.Equal(t, created.TradeID, detail.Trade.TradeID)
	assert.Equal(t, "item_1", detail.Item.ItemID)
	assert.Equal(t, "usr_owner", detail.Owner.UserID)
	assert.Equal(t, "usr_trader", detail.Trader.UserID)

	_, err = svc.GetTrade(created.TradeID, "usr_stranger")
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = svc.GetTrade("trade_missing", "usr_owner")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListTrades_BothRoles(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "usr_third")
	seedItem(t, db, "item_2", "usr_trader")

	first, err := svc.CreateTrade("item_1", "usr_trader")
	require.NoError(t, err)
	second, err := svc.CreateTrade("item_2", "usr_third")
	require.NoError(t, err)

	trades, err := svc.ListTrades("usr_trader")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	ids := []string{trades[0].Trade.TradeID, trades[1].Trade.TradeID}
	assert.Contains(t, ids, first.TradeID)
	assert.Contains(t, ids, second.TradeID)
}
