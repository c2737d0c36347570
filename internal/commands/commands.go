// Package commands is the thin adapter layer behind spec.md §6's
// slash-command surface. Each exported method on Deps corresponds to
// one user-facing command: it runs the permission gate, rate-limit
// check and raw-argument validation that command needs (the order and
// the set of checks vary per command), then composes the economy
// engines.
// It has no knowledge of any specific chat platform — a platform
// client (Discord, etc.) is expected to parse its own interaction
// payloads into the typed arguments these methods accept and render
// the typed results back into messages.
package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/minigame"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/quest"
	"guildkeeper/internal/ratelimit"
	"guildkeeper/internal/shop"
	"guildkeeper/internal/store"
	"guildkeeper/internal/trade"
	"guildkeeper/internal/validate"
)

// Deps bundles every engine a command needs. One Deps serves an
// entire process; commands are safe for concurrent use since every
// economy mutation ultimately goes through store.WithTx or
// lock.UserLock.
type Deps struct {
	Store      *store.Store
	Clock      clock.Clock
	Ledger     *ledger.Ledger
	Quest      *quest.Engine
	Trade      *trade.Engine
	Shop       *shop.Engine
	Minigame   *minigame.Engine
	Moderation *moderation.Engine
	Limiter    *ratelimit.Limiter
	Locks      *lock.UserLock

	tradeWarnMu sync.Mutex
	tradeWarnAt map[tradeWarnKey]time.Time
}

// New builds a Deps ready to serve commands.
func New(s *store.Store, c clock.Clock, l *ledger.Ledger, q *quest.Engine, t *trade.Engine,
	sh *shop.Engine, mg *minigame.Engine, mod *moderation.Engine, limiter *ratelimit.Limiter, locks *lock.UserLock) *Deps {
	return &Deps{
		Store: s, Clock: c, Ledger: l, Quest: q, Trade: t, Shop: sh,
		Minigame: mg, Moderation: mod, Limiter: limiter, Locks: locks,
		tradeWarnAt: make(map[tradeWarnKey]time.Time),
	}
}

// todayUTC mirrors the quest engine's own day key so daily-claim
// status checks agree with what AssignDaily will do.
func (d *Deps) todayUTC() string {
	return d.Clock.Now().UTC().Format("2006-01-02")
}

// checkRateLimit wraps ratelimit.Limiter.Check and translates a
// limited result into the closed error taxonomy so every command
// handler fails the same way.
func (d *Deps) checkRateLimit(guild, user, command string) error {
	res := d.Limiter.Check(guild, user, command)
	if !res.Limited {
		return nil
	}
	kind := apperr.KindRateLimited
	if res.Reason == ratelimit.ReasonCooldown {
		kind = apperr.KindOnCooldown
	}
	return apperr.WithFields(kind, fmt.Sprintf("%s is rate limited", command), map[string]any{
		"retry_after_seconds": res.RetryAfter.Seconds(),
	})
}

// requireSettings loads guild config, the precondition for almost
// every engine call that reads tax/cooldown/cap tunables.
func (d *Deps) requireSettings(ctx context.Context, guild string) (*config.GuildSettings, error) {
	return config.LoadGuildSettings(ctx, d.Store, guild)
}

func validateSnowflake(field, value string) error {
	ok, _, reason := validate.ValidateSnowflake(value)
	if !ok {
		return apperr.New(apperr.KindInvalidInput, fmt.Sprintf("%s: %s", field, reason))
	}
	return nil
}

// WalletView is the read-only reply to the "wallet" command.
type WalletView struct {
	Coins float64
	XP    float64
	Level int
}

// Wallet returns a user's current balance (spec.md §6 "wallet").
func (d *Deps) Wallet(ctx context.Context, guild, user string) (*WalletView, error) {
	if err := d.checkRateLimit(guild, user, "wallet"); err != nil {
		return nil, err
	}
	bal, err := d.Ledger.GetBalance(ctx, guild, user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "wallet: load balance", err)
	}
	return &WalletView{Coins: bal.Coins, XP: bal.XP, Level: bal.Level}, nil
}

// History returns a user's most recent ledger transactions for the
// given currency (spec.md §6 "history").
func (d *Deps) History(ctx context.Context, guild, user string, currency ledger.Currency, limit int) ([]ledger.Transaction, error) {
	if err := d.checkRateLimit(guild, user, "history"); err != nil {
		return nil, err
	}
	ok, n, reason := validate.ValidateInteger(limit, true, 1, true, 100)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidInput, "history: "+reason)
	}
	txs, err := d.Ledger.GetTransactions(ctx, guild, user, currency, n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "history: load transactions", err)
	}
	return txs, nil
}

// InventoryItem is one row of the "inventory" command's reply.
type InventoryItem struct {
	ItemID   int64
	Name     string
	Quantity int
}

// Inventory lists a user's owned shop items (spec.md §6 "inventory").
func (d *Deps) Inventory(ctx context.Context, guild, user string) ([]InventoryItem, error) {
	if err := d.checkRateLimit(guild, user, "inventory"); err != nil {
		return nil, err
	}
	rows, err := d.Store.DB().QueryContext(ctx, `SELECT inventory.item_id, shop_item.name, inventory.quantity
		FROM inventory JOIN shop_item ON shop_item.id = inventory.item_id
		WHERE inventory.guild = ? AND inventory.user = ? AND inventory.quantity > 0
		ORDER BY shop_item.name`, guild, user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "inventory: query", err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var it InventoryItem
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Quantity); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "inventory: scan", err)
		}
		items = append(items, it)
	}
	return items, nil
}
