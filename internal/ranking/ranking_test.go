package ranking

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/internal/boost"
	"github.com/barterly/trade-engine/internal/catalog"
	"github.com/barterly/trade-engine/internal/database"
	"github.com/barterly/trade-engine/internal/pins"
	"github.com/barterly/trade-engine/internal/types"
)

func TestRank_ScoreDescending(t *testing.T) {
	now := time.Now().UTC()
	items := []RankedItem{
		{Item: types.Item{ItemID: "item_a", CreatedAt: now}, BoostScore: 5.0},
		{Item: types.Item{ItemID: "item_b", CreatedAt: now}, BoostScore: 15.0},
		{Item: types.Item{ItemID: "item_c", CreatedAt: now}, BoostScore: 10.0},
	}

	Rank(items)

	assert.Equal(t, "item_b", items[0].ItemID)
	assert.Equal(t, "item_c", items[1].ItemID)
	assert.Equal(t, "item_a", items[2].ItemID)
}

func TestRank_TieBreakNewerFirst(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	items := []RankedItem{
		{Item: types.Item{ItemID: "item_a", CreatedAt: older}, BoostScore: 10.0},
		{Item: types.Item{ItemID: "item_b", CreatedAt: newer}, BoostScore: 10.0},
	}

	Rank(items)

	assert.Equal(t, "item_b", items[0].ItemID)
	assert.Equal(t, "item_a", items[1].ItemID)
}

func TestRank_TieBreakLowerIDFirst(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []RankedItem{
		{Item: types.Item{ItemID: "item_b", CreatedAt: createdAt}, BoostScore: 10.0},
		{Item: types.Item{ItemID: "item_a", CreatedAt: createdAt}, BoostScore: 10.0},
	}

	Rank(items)

	assert.Equal(t, "item_a", items[0].ItemID)
	assert.Equal(t, "item_b", items[1].ItemID)
}

func TestRank_Deterministic(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	build := func() []RankedItem {
		return []RankedItem{
			{Item: types.Item{ItemID: "item_c", CreatedAt: createdAt}, BoostScore: 10.0},
			{Item: types.Item{ItemID: "item_a", CreatedAt: createdAt}, BoostScore: 10.0},
			{Item: types.Item{ItemID: "item_b", CreatedAt: createdAt.Add(time.Hour)}, BoostScore: 10.0},
			{Item: types.Item{ItemID: "item_d", CreatedAt: createdAt}, BoostScore: 2.0},
		}
	}

	first := build()
	Rank(first)
	second := build()
	Rank(second)

	for i := range first {
		assert.Equal(t, first[i].ItemID, second[i].ItemID)
	}
}

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

func TestCategoryFeed_AnnotatesAndRanks(t *testing.T) {
	db := setupTestDB(t)
	cat := catalog.NewService(db)

	quiet, err := cat.CreateItem("usr_owner", "Quiet item", "", "", "books")
	require.NoError(t, err)
	popular, err := cat.CreateItem("usr_owner", "Popular item", "", "", "books")
	require.NoError(t, err)
	_, err = cat.CreateItem("usr_owner", "Other category", "", "", "sports")
	require.NoError(t, err)

	scorer := boost.NewScorer(pins.NewDatabase(db), 16, 0)
	pinService := pins.NewService(db, scorer)
	_, err = pinService.Pin(popular.ItemID, "usr_fan1")
	require.NoError(t, err)
	_, err = pinService.Pin(popular.ItemID, "usr_fan2")
	require.NoError(t, err)

	svc := NewService(cat, scorer, 20)
	feed, err := svc.CategoryFeed("books", time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, feed, 2)
	assert.Equal(t, popular.ItemID, feed[0].ItemID)
	assert.Equal(t, 2, feed[0].PinCount)
	assert.InDelta(t, 20.0, feed[0].BoostScore, 0.01)
	assert.Equal(t, quiet.ItemID, feed[1].ItemID)
	assert.Zero(t, feed[1].PinCount)
}

func TestPortfolio_CappedAndOwnedOnly(t *testing.T) {
	db := setupTestDB(t)
	cat := catalog.NewService(db)

	for i := 0; i < 5; i++ {
		_, err := cat.CreateItem("usr_owner", fmt.Sprintf("Item %d", i), "", "", "books")
		require.NoError(t, err)
	}
	_, err := cat.CreateItem("usr_other", "Not mine", "", "", "books")
	require.NoError(t, err)

	scorer := boost.NewScorer(pins.NewDatabase(db), 16, 0)
	svc := NewService(cat, scorer, 3)

	portfolio, err := svc.Portfolio("usr_owner", time.Now().UTC())
	require.NoError(t, err)

	assert.Len(t, portfolio, 3)
	for _, item := range portfolio {
		assert.Equal(t, "usr_owner", item.UserID)
	}
}
