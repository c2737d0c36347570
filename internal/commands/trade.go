package commands

import (
	"context"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/trade"
)

const tradeWarnWindow = 30 * time.Second

// tradeWarnKey identifies one (sender, recipient, amounts) offer for
// the XP-warn two-step: the first invocation of an offer that would
// level the sender down returns a warning instead of creating the
// trade; an identical invocation within tradeWarnWindow proceeds.
type tradeWarnKey struct {
	guild, from, to string
	coins, xp       float64
}

// TradeOfferResult is the reply to "trade offer". Exactly one of
// Trade or Warning is set.
type TradeOfferResult struct {
	Trade   *trade.Trade
	Warning *trade.WarningPreview
}

// TradeOffer creates a pending trade, or — when the transfer would
// level the sender down and this is the first such attempt within the
// last 30s — returns a warning instead (spec.md §6 "trade offer").
func (d *Deps) TradeOffer(ctx context.Context, guild, from, to string, coins, xp float64) (*TradeOfferResult, error) {
	if err := d.checkRateLimit(guild, from, "trade"); err != nil {
		return nil, err
	}
	if err := validateSnowflake("user", to); err != nil {
		return nil, err
	}
	if from == to {
		return nil, apperr.New(apperr.KindInvalidInput, "cannot trade with yourself")
	}
	if coins < 0 || xp < 0 || (coins == 0 && xp == 0) {
		return nil, apperr.New(apperr.KindInvalidInput, "offer must include a positive amount of coins or xp")
	}

	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "trade offer: load settings", err)
	}

	if xp > 0 {
		preview, err := d.Trade.WarningPreview(ctx, guild, from, xp)
		if err != nil {
			return nil, err
		}
		if preview.WillLevelDown {
			key := tradeWarnKey{guild: guild, from: from, to: to, coins: coins, xp: xp}
			if !d.consumeTradeWarn(key) {
				return &TradeOfferResult{Warning: preview}, nil
			}
		}
	}

	t, err := d.Trade.Create(ctx, settings, from, to, coins, xp)
	if err != nil {
		return nil, err
	}
	return &TradeOfferResult{Trade: t}, nil
}

// consumeTradeWarn reports whether a prior warning for key is still
// within the acknowledgement window: false the first time (a warning
// should be shown), true on a repeat within tradeWarnWindow (the offer
// should proceed). Either way the stored timestamp resets so a third,
// much later call warns again instead of carrying the window forward
// indefinitely.
func (d *Deps) consumeTradeWarn(key tradeWarnKey) bool {
	now := d.Clock.Now()
	d.tradeWarnMu.Lock()
	defer d.tradeWarnMu.Unlock()

	warnedAt, ok := d.tradeWarnAt[key]
	if ok && now.Sub(warnedAt) <= tradeWarnWindow {
		delete(d.tradeWarnAt, key)
		return true
	}
	d.tradeWarnAt[key] = now
	return false
}

// TradeAccept accepts a pending trade into escrow (spec.md §6 "trade
// accept").
func (d *Deps) TradeAccept(ctx context.Context, guild, user string, tradeID int64) (*trade.Trade, error) {
	if err := d.checkRateLimit(guild, user, "trade"); err != nil {
		return nil, err
	}
	return d.Trade.Accept(ctx, guild, user, tradeID)
}

// TradeCancel cancels a pending or accepted trade, refunding escrow if
// needed (spec.md §6 "trade cancel").
func (d *Deps) TradeCancel(ctx context.Context, guild, user string, tradeID int64) (*trade.Trade, error) {
	if err := d.checkRateLimit(guild, user, "trade"); err != nil {
		return nil, err
	}
	return d.Trade.Cancel(ctx, guild, user, tradeID)
}

// TradePendingEntry is one row of "trade pending".
type TradePendingEntry struct {
	ID       int64
	FromUser string
	ToUser   string
	Coins    float64
	XP       float64
	Status   string
}

// TradePending lists the caller's open trades, or a single trade if id
// is given (spec.md §6 "trade pending id=<int?>").
func (d *Deps) TradePending(ctx context.Context, guild, user string, id int64) ([]TradePendingEntry, error) {
	if err := d.checkRateLimit(guild, user, "trade"); err != nil {
		return nil, err
	}

	query := `SELECT id, from_user, to_user, coins, xp, status FROM trade
		WHERE guild = ? AND (from_user = ? OR to_user = ?) AND status IN ('pending','accepted')`
	args := []any{guild, user, user}
	if id != 0 {
		query += ` AND id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.Store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "trade pending: query", err)
	}
	defer rows.Close()

	var out []TradePendingEntry
	for rows.Next() {
		var e TradePendingEntry
		if err := rows.Scan(&e.ID, &e.FromUser, &e.ToUser, &e.Coins, &e.XP, &e.Status); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "trade pending: scan", err)
		}
		out = append(out, e)
	}
	return out, nil
}
