// Package shop implements buy/use/has_active_effect from spec.md
// §4.7. Grounded on the original bot's shop.py purchase flow, adapted
// to route every balance change through the ledger. Buy's coin debit,
// XP debit, stock decrement and inventory upsert are separate writes,
// not one store transaction.
package shop

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/store"
)

// Engine is the shop purchase/use API.
type Engine struct {
	store  *store.Store
	ledger *ledger.Ledger
	clock  clock.Clock
}

func New(s *store.Store, l *ledger.Ledger, c clock.Clock) *Engine {
	return &Engine{store: s, ledger: l, clock: c}
}

// Item is a shop_item row.
type Item struct {
	ID          int64
	Name        string
	Description string
	PriceCoins  float64
	PriceXP     float64
	Consumable  bool
	Stock       int
	Metadata    map[string]any
	Active      bool
}

// PurchaseResult is returned by Buy.
type PurchaseResult struct {
	Item       Item
	Quantity   int
	CostCoins  float64
	CostXP     float64
	Consumable bool
	LevelDown  bool
}

func (e *Engine) getItem(ctx context.Context, itemID int64) (*Item, error) {
	row := e.store.DB().QueryRowContext(ctx, `SELECT id, name, description, price_coins, price_xp,
		consumable, stock, metadata, active FROM shop_item WHERE id = ?`, itemID)
	var it Item
	var metaRaw string
	if err := row.Scan(&it.ID, &it.Name, &it.Description, &it.PriceCoins, &it.PriceXP,
		&it.Consumable, &it.Stock, &metaRaw, &it.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("shop_item", itemID)
		}
		return nil, fmt.Errorf("shop: get item: %w", err)
	}
	_ = json.Unmarshal([]byte(metaRaw), &it.Metadata)
	return &it, nil
}

// Buy implements spec.md §4.7's buy contract.
func (e *Engine) Buy(ctx context.Context, guild, user string, itemID int64, quantity int) (*PurchaseResult, error) {
	if quantity <= 0 {
		return nil, apperr.InvalidInput("quantity", "must be positive")
	}

	item, err := e.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, apperr.StateConflict("item is not active")
	}
	if item.Stock != -1 && item.Stock < quantity {
		return nil, apperr.InvalidInput("quantity", "insufficient stock")
	}

	costCoins := item.PriceCoins * float64(quantity)
	costXP := item.PriceXP * float64(quantity)

	bal, err := e.ledger.GetBalance(ctx, guild, user)
	if err != nil {
		return nil, err
	}
	if bal.Coins < costCoins {
		return nil, apperr.InsufficientFunds(string(ledger.CurrencyCoins), bal.Coins, costCoins)
	}
	if bal.XP < costXP {
		return nil, apperr.InsufficientFunds(string(ledger.CurrencyXP), bal.XP, costXP)
	}

	result := &PurchaseResult{Item: *item, Quantity: quantity, CostCoins: costCoins, CostXP: costXP, Consumable: item.Consumable}

	if costCoins > 0 {
		if _, err := e.ledger.SpendCoins(ctx, guild, user, costCoins, ledger.KindShopPurchase, &itemID, "shop_item", nil); err != nil {
			return nil, err
		}
	}
	if costXP > 0 {
		xpRes, err := e.ledger.SpendXP(ctx, guild, user, costXP, ledger.KindShopPurchase, &itemID, "shop_item", nil)
		if err != nil {
			return nil, err
		}
		result.LevelDown = xpRes.LevelDown
	}

	if item.Stock != -1 {
		if _, err := e.store.DB().ExecContext(ctx, `UPDATE shop_item SET stock = stock - ? WHERE id = ?`, quantity, itemID); err != nil {
			return nil, fmt.Errorf("shop: decrement stock: %w", err)
		}
	}

	if item.Consumable {
		if _, err := e.store.DB().ExecContext(ctx, `INSERT INTO inventory (guild, user, item_id, quantity)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(guild, user, item_id) DO UPDATE SET quantity = quantity + ?`,
			guild, user, itemID, quantity, quantity); err != nil {
			return nil, fmt.Errorf("shop: upsert inventory: %w", err)
		}
	}

	return result, nil
}

// Use implements spec.md §4.7's use contract: decrements inventory and,
// if the item carries effect metadata, upserts an active effect.
func (e *Engine) Use(ctx context.Context, guild, user string, itemID int64) error {
	var quantity int
	row := e.store.DB().QueryRowContext(ctx, `SELECT quantity FROM inventory WHERE guild = ? AND user = ? AND item_id = ?`, guild, user, itemID)
	if err := row.Scan(&quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("inventory", itemID)
		}
		return fmt.Errorf("shop: use lookup: %w", err)
	}
	if quantity <= 0 {
		return apperr.StateConflict("no inventory remaining for this item")
	}

	item, err := e.getItem(ctx, itemID)
	if err != nil {
		return err
	}

	return e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE inventory SET quantity = quantity - 1 WHERE guild = ? AND user = ? AND item_id = ?`, guild, user, itemID); err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}

		effectType, hasEffect := item.Metadata["effect"].(string)
		durationRaw, hasDuration := item.Metadata["duration_minutes"]
		if hasEffect && hasDuration {
			var durationMin float64
			switch v := durationRaw.(type) {
			case float64:
				durationMin = v
			case int:
				durationMin = float64(v)
			}
			expiresAt := e.clock.Now().Add(time.Duration(durationMin) * time.Minute)
			effectData, _ := json.Marshal(item.Metadata)
			if _, err := tx.ExecContext(ctx, `INSERT INTO active_effect (guild, user, effect_type, effect_data, expires_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(guild, user, effect_type) DO UPDATE SET effect_data = excluded.effect_data, expires_at = excluded.expires_at`,
				guild, user, effectType, string(effectData), expiresAt.Format(time.RFC3339)); err != nil {
				return fmt.Errorf("upsert active effect: %w", err)
			}
		}
		return nil
	})
}

// HasActiveEffect returns the non-expired active_effect row for
// (guild, user, effectType), if any.
func (e *Engine) HasActiveEffect(ctx context.Context, guild, user, effectType string) (bool, map[string]any, error) {
	var dataRaw, expiresAt string
	row := e.store.DB().QueryRowContext(ctx, `SELECT effect_data, expires_at FROM active_effect
		WHERE guild = ? AND user = ? AND effect_type = ?`, guild, user, effectType)
	if err := row.Scan(&dataRaw, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("shop: has active effect: %w", err)
	}

	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return false, nil, fmt.Errorf("shop: parse expires_at: %w", err)
	}
	if !e.clock.Now().Before(expires) {
		return false, nil, nil
	}

	var data map[string]any
	_ = json.Unmarshal([]byte(dataRaw), &data)
	return true, data, nil
}
