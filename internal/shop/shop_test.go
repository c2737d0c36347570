package shop

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/store"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, *store.Store, *ledger.Ledger, *clock.Fake) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fc := clock.NewFake(now)
	l := ledger.New(s, fc)
	return New(s, l, fc), s, l, fc
}

func insertItem(t *testing.T, s *store.Store, name string, priceCoins float64, consumable bool, stock int, metadata string) int64 {
	t.Helper()
	res, err := s.DB().ExecContext(context.Background(), `INSERT INTO shop_item
		(name, description, price_coins, price_xp, consumable, stock, metadata, active)
		VALUES (?, '', ?, 0, ?, ?, ?, 1)`, name, priceCoins, consumable, stock, metadata)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestBuy_DebitsCoinsAndUpsertsInventory(t *testing.T) {
	e, s, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 500, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	itemID := insertItem(t, s, "Potion", 50, true, -1, "{}")

	res, err := e.Buy(ctx, "g1", "u1", itemID, 2)
	require.NoError(t, err)
	require.Equal(t, 100.0, res.CostCoins)

	bal, err := l.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 400.0, bal.Coins)

	var quantity int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT quantity FROM inventory WHERE guild='g1' AND user='u1' AND item_id=?", itemID).Scan(&quantity))
	require.Equal(t, 2, quantity)
}

func TestBuy_RejectsInsufficientStock(t *testing.T) {
	e, s, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 500, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	itemID := insertItem(t, s, "Rare Token", 10, false, 1, "{}")

	_, err = e.Buy(ctx, "g1", "u1", itemID, 2)
	require.Error(t, err)
}

func TestBuy_RejectsInactiveItem(t *testing.T) {
	e, s, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 500, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	itemID := insertItem(t, s, "Disabled", 10, true, -1, "{}")
	_, err = s.DB().ExecContext(ctx, "UPDATE shop_item SET active = 0 WHERE id = ?", itemID)
	require.NoError(t, err)

	_, err = e.Buy(ctx, "g1", "u1", itemID, 1)
	require.Error(t, err)
}

func TestUse_AppliesActiveEffect(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, s, l, fc := newTestEngine(t, now)
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 500, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	itemID := insertItem(t, s, "XP Booster", 50, true, -1, `{"effect":"xp_boost","duration_minutes":60}`)
	_, err = e.Buy(ctx, "g1", "u1", itemID, 1)
	require.NoError(t, err)

	require.NoError(t, e.Use(ctx, "g1", "u1", itemID))

	active, data, err := e.HasActiveEffect(ctx, "g1", "u1", "xp_boost")
	require.NoError(t, err)
	require.True(t, active)
	require.Equal(t, "xp_boost", data["effect"])

	fc.Advance(61 * time.Minute)
	active, _, err = e.HasActiveEffect(ctx, "g1", "u1", "xp_boost")
	require.NoError(t, err)
	require.False(t, active)
}

func TestUse_RejectsWithNoInventory(t *testing.T) {
	e, s, _, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	itemID := insertItem(t, s, "Ghost Item", 10, true, -1, "{}")

	err := e.Use(ctx, "g1", "u1", itemID)
	require.Error(t, err)
}
