package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildkeeper/internal/ledger"
)

func seedShopItem(t *testing.T, d *Deps, name string, priceCoins, priceXP float64, consumable bool, stock int) int64 {
	t.Helper()
	consumableInt := 0
	if consumable {
		consumableInt = 1
	}
	res, err := d.Store.DB().ExecContext(context.Background(),
		`INSERT INTO shop_item (name, description, price_coins, price_xp, consumable, stock, metadata, active)
		 VALUES (?, 'a thing to buy', ?, ?, ?, ?, '{}', 1)`, name, priceCoins, priceXP, consumableInt, stock)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestShopList_ReturnsActiveItemsOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	seedShopItem(t, d, "Potion", 10, 0, true, -1)
	_, err := s.DB().ExecContext(ctx,
		`INSERT INTO shop_item (name, description, price_coins, price_xp, consumable, stock, metadata, active)
		 VALUES ('Retired Item', '', 5, 0, 1, -1, '{}', 0)`)
	require.NoError(t, err)

	list, err := d.ShopList(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Potion", list[0].Name)
}

func TestShopBuy_DeductsCoinsAndGrantsInventory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, _, _ := newTestDeps(t, now)
	ctx := context.Background()

	itemID := seedShopItem(t, d, "Potion", 10, 0, true, -1)

	_, err := d.Ledger.AddCoins(ctx, "g1", "u1", 50, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	result, err := d.ShopBuy(ctx, "g1", "u1", itemID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, result.Quantity)
	require.Equal(t, 20.0, result.CostCoins)

	bal, err := d.Ledger.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 30.0, bal.Coins)
}

func TestShopBuy_DefaultsQuantityToOneWhenNonPositive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, _, _ := newTestDeps(t, now)
	ctx := context.Background()

	itemID := seedShopItem(t, d, "Potion", 10, 0, true, -1)
	_, err := d.Ledger.AddCoins(ctx, "g1", "u1", 50, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	result, err := d.ShopBuy(ctx, "g1", "u1", itemID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Quantity)
}

func TestShopBuy_UnknownItemIsNotFound(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, _, _ := newTestDeps(t, now)
	ctx := context.Background()

	_, err := d.ShopBuy(ctx, "g1", "u1", 99999, 1)
	require.Error(t, err)
}
