package commands

import (
	"context"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/shop"
)

// ShopListing is one row of "shop list".
type ShopListing struct {
	ID          int64
	Name        string
	Description string
	PriceCoins  float64
	PriceXP     float64
	Stock       int
}

// ShopList returns every active shop item (spec.md §6 "shop list").
func (d *Deps) ShopList(ctx context.Context, guild, user string) ([]ShopListing, error) {
	if err := d.checkRateLimit(guild, user, "shop"); err != nil {
		return nil, err
	}
	rows, err := d.Store.DB().QueryContext(ctx, `SELECT id, name, description, price_coins, price_xp, stock
		FROM shop_item WHERE active = 1 ORDER BY price_coins, price_xp`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "shop list: query", err)
	}
	defer rows.Close()

	var out []ShopListing
	for rows.Next() {
		var item ShopListing
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.PriceCoins, &item.PriceXP, &item.Stock); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "shop list: scan", err)
		}
		out = append(out, item)
	}
	return out, nil
}

// ShopBuy purchases quantity (default 1 if <= 0) units of itemID
// (spec.md §6 "shop buy item_id=<int> quantity=<int?>").
func (d *Deps) ShopBuy(ctx context.Context, guild, user string, itemID int64, quantity int) (*shop.PurchaseResult, error) {
	if err := d.checkRateLimit(guild, user, "shop"); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		quantity = 1
	}

	var result *shop.PurchaseResult
	err := d.Locks.With(lock.Key(guild, user), func() error {
		var buyErr error
		result, buyErr = d.Shop.Buy(ctx, guild, user, itemID, quantity)
		return buyErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
