// Package ledger is the sole writer of user_balance and the
// append-only transactions log (spec.md §4.2). Every coin/XP mutation
// in the bot — quest rewards, trades, shop purchases, captures, duels
// — flows through here so the audit invariant (the sum of a user's
// transaction amounts for a currency equals their stored balance)
// always holds.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/store"
)

// Currency is one of the two balances tracked per (guild, user).
type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyXP    Currency = "xp"
)

// Kind tags a transaction's cause. The column is a plain TEXT so new
// kinds never require a migration; these constants are just the
// values the rest of the codebase is expected to use consistently.
type Kind string

const (
	KindQuestReward      Kind = "quest_reward"
	KindDailyClaim       Kind = "daily_claim"
	KindTradeEscrow      Kind = "trade_escrow"
	KindTradeRefund      Kind = "trade_refund"
	KindTradeSettlement  Kind = "trade_settlement"
	KindTradeTax         Kind = "trade_tax"
	KindShopPurchase     Kind = "shop_purchase"
	KindCapture          Kind = "capture"
	KindDuelWager        Kind = "duel_wager"
	KindDuelPayout       Kind = "duel_payout"
	KindDuelTax          Kind = "duel_tax"
	KindMessageXP        Kind = "message_xp"
	KindVoiceXP          Kind = "voice_xp"
	KindWelcomeBonus     Kind = "welcome_bonus"
	KindModerationReward Kind = "moderation_reward"
	KindManualAdjustment Kind = "manual_adjustment"
)

// Ledger is the balance-mutation API. It holds no state of its own
// beyond a store handle and a clock; every call is self-contained and
// safe to use from any goroutine.
type Ledger struct {
	store *store.Store
	clock clock.Clock
}

func New(s *store.Store, c clock.Clock) *Ledger {
	return &Ledger{store: s, clock: c}
}

// Balance is a user's current economic state.
type Balance struct {
	Guild    string
	User     string
	Coins    float64
	XP       float64
	Level    int
	Messages int
}

// MutationResult is returned by every balance-changing call.
type MutationResult struct {
	Old       float64
	New       float64
	LevelUp   bool
	LevelDown bool
	NewLevel  int
}

// LevelForXP implements spec.md §4.2's level formula.
func LevelForXP(xp float64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(xp/125))) + 1
}

// XPForLevel is the inverse helper spec.md §4.2 names: the XP floor a
// level requires. Level is always derived from XP, never authoritative.
func XPForLevel(level int) float64 {
	l := float64(level - 1)
	return l * l * 125
}

// EnsureUser inserts a zeroed user_balance row if one doesn't already
// exist, returning the (possibly just-created) balance.
func (l *Ledger) EnsureUser(ctx context.Context, guild, user string) (*Balance, error) {
	var bal *Balance
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		b, err := l.ensureUserTx(ctx, tx, guild, user)
		bal = b
		return err
	})
	return bal, err
}

func (l *Ledger) ensureUserTx(ctx context.Context, tx store.Tx, guild, user string) (*Balance, error) {
	_, err := tx.ExecContext(ctx, `INSERT INTO user_balance (guild, user, xp, level, messages, coins)
		VALUES (?, ?, 0, 1, 0, 0)
		ON CONFLICT(guild, user) DO NOTHING`, guild, user)
	if err != nil {
		return nil, fmt.Errorf("ledger: ensure user: %w", err)
	}
	return l.readBalanceTx(ctx, tx, guild, user)
}

func (l *Ledger) readBalanceTx(ctx context.Context, tx store.Tx, guild, user string) (*Balance, error) {
	row := tx.QueryRowContext(ctx, `SELECT guild, user, xp, level, messages, coins
		FROM user_balance WHERE guild = ? AND user = ?`, guild, user)
	b := &Balance{}
	if err := row.Scan(&b.Guild, &b.User, &b.XP, &b.Level, &b.Messages, &b.Coins); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user_balance", guild+"/"+user)
		}
		return nil, fmt.Errorf("ledger: read balance: %w", err)
	}
	return b, nil
}

// GetBalance returns the current balance, creating the row if absent.
func (l *Ledger) GetBalance(ctx context.Context, guild, user string) (*Balance, error) {
	var bal *Balance
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := l.ensureUserTx(ctx, tx, guild, user); err != nil {
			return err
		}
		b, err := l.readBalanceTx(ctx, tx, guild, user)
		bal = b
		return err
	})
	return bal, err
}

// EnsureUserTx is the tx-scoped counterpart of EnsureUser, for callers
// that compose several balance mutations into one transaction of
// their own (minigame capture/duel, quest claim).
func (l *Ledger) EnsureUserTx(ctx context.Context, tx store.Tx, guild, user string) (*Balance, error) {
	return l.ensureUserTx(ctx, tx, guild, user)
}

// ReadBalanceTx is the tx-scoped counterpart of GetBalance's read
// step.
func (l *Ledger) ReadBalanceTx(ctx context.Context, tx store.Tx, guild, user string) (*Balance, error) {
	return l.readBalanceTx(ctx, tx, guild, user)
}

// AddCoins credits amount (must be >= 0) to user's coin balance.
func (l *Ledger) AddCoins(ctx context.Context, guild, user string, amount float64, kind Kind, relatedID *int64, relatedType string, metadata map[string]any) (*MutationResult, error) {
	return l.mutate(ctx, guild, user, CurrencyCoins, amount, kind, relatedID, relatedType, metadata)
}

// SpendCoins debits amount (must be >= 0) from user's coin balance,
// failing with InsufficientFunds if the balance can't cover it.
func (l *Ledger) SpendCoins(ctx context.Context, guild, user string, amount float64, kind Kind, relatedID *int64, relatedType string, metadata map[string]any) (*MutationResult, error) {
	return l.mutate(ctx, guild, user, CurrencyCoins, -amount, kind, relatedID, relatedType, metadata)
}

// AddXP credits amount (must be >= 0) to user's XP balance,
// recomputing level.
func (l *Ledger) AddXP(ctx context.Context, guild, user string, amount float64, kind Kind, relatedID *int64, relatedType string, metadata map[string]any) (*MutationResult, error) {
	return l.mutate(ctx, guild, user, CurrencyXP, amount, kind, relatedID, relatedType, metadata)
}

// SpendXP debits amount (must be >= 0) from user's XP balance,
// recomputing level, failing with InsufficientFunds if insufficient.
func (l *Ledger) SpendXP(ctx context.Context, guild, user string, amount float64, kind Kind, relatedID *int64, relatedType string, metadata map[string]any) (*MutationResult, error) {
	return l.mutate(ctx, guild, user, CurrencyXP, -amount, kind, relatedID, relatedType, metadata)
}

// mutate implements the six-step contract of spec.md §4.2 for a
// signed amount on a single currency, opening its own transaction.
// Callers that need several mutations (plus other writes) to commit
// or fail together should use MutateTx inside their own store.WithTx
// instead.
func (l *Ledger) mutate(ctx context.Context, guild, user string, currency Currency, signedAmount float64, kind Kind, relatedID *int64, relatedType string, metadata map[string]any) (*MutationResult, error) {
	var result *MutationResult
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		r, err := l.MutateTx(ctx, tx, guild, user, currency, signedAmount, kind, relatedID, relatedType, metadata)
		result = r
		return err
	})
	return result, err
}

// MutateTx is the tx-scoped counterpart of mutate: the same six-step
// contract (ensure user, read balance, check sufficiency, update
// user_balance, append the transaction row) but run against a
// caller-supplied transaction instead of opening its own. Use this to
// compose several balance mutations, audit appends, and other writes
// (cooldowns, claimed flags, escrow state) into one atomic outcome —
// see trade.go's debitTx/creditTx for the established pattern.
func (l *Ledger) MutateTx(ctx context.Context, tx store.Tx, guild, user string, currency Currency, signedAmount float64, kind Kind, relatedID *int64, relatedType string, metadata map[string]any) (*MutationResult, error) {
	if _, err := l.ensureUserTx(ctx, tx, guild, user); err != nil {
		return nil, err
	}
	bal, err := l.readBalanceTx(ctx, tx, guild, user)
	if err != nil {
		return nil, err
	}

	var old, newBalance float64
	var newLevel int
	levelUp, levelDown := false, false

	switch currency {
	case CurrencyCoins:
		old = bal.Coins
	case CurrencyXP:
		old = bal.XP
	default:
		return nil, fmt.Errorf("ledger: unknown currency %q", currency)
	}

	if signedAmount < 0 && -signedAmount > old {
		return nil, apperr.InsufficientFunds(string(currency), old, -signedAmount)
	}
	newBalance = old + signedAmount

	switch currency {
	case CurrencyCoins:
		if _, err := tx.ExecContext(ctx, `UPDATE user_balance SET coins = ? WHERE guild = ? AND user = ?`, newBalance, guild, user); err != nil {
			return nil, fmt.Errorf("update coins: %w", err)
		}
	case CurrencyXP:
		newLevel = LevelForXP(newBalance)
		if newLevel > bal.Level {
			levelUp = true
		} else if newLevel < bal.Level {
			levelDown = true
		}
		if _, err := tx.ExecContext(ctx, `UPDATE user_balance SET xp = ?, level = ? WHERE guild = ? AND user = ?`, newBalance, newLevel, guild, user); err != nil {
			return nil, fmt.Errorf("update xp/level: %w", err)
		}
	}

	metaJSON := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = string(b)
	}

	now := l.clock.Now()
	_, err = tx.ExecContext(ctx, `INSERT INTO transactions
		(guild, user, kind, amount, currency, balance_after, metadata, related_id, related_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		guild, user, string(kind), signedAmount, string(currency), newBalance, metaJSON, relatedID, nullableString(relatedType), now.Format("2006-01-02T15:04:05Z07:00"))
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	return &MutationResult{
		Old:       old,
		New:       newBalance,
		LevelUp:   levelUp,
		LevelDown: levelDown,
		NewLevel:  newLevel,
	}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Transaction is a single append-only ledger row.
type Transaction struct {
	ID           int64
	Guild        string
	User         string
	Kind         string
	Amount       float64
	Currency     string
	BalanceAfter float64
	Metadata     string
	RelatedID    *int64
	RelatedType  *string
	CreatedAt    string
}

// GetTransactions returns the transaction log for (guild, user),
// newest first, optionally filtered by currency.
func (l *Ledger) GetTransactions(ctx context.Context, guild, user string, currency Currency, limit int) ([]Transaction, error) {
	query := `SELECT id, guild, user, kind, amount, currency, balance_after, metadata, related_id, related_type, created_at
		FROM transactions WHERE guild = ? AND user = ?`
	args := []any{guild, user}
	if currency != "" {
		query += " AND currency = ?"
		args = append(args, string(currency))
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: get transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Guild, &t.User, &t.Kind, &t.Amount, &t.Currency, &t.BalanceAfter, &t.Metadata, &t.RelatedID, &t.RelatedType, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LogTransaction appends a transaction row without mutating a balance,
// for callers that have already updated user_balance in their own
// query (e.g. bulk moderation adjustments outside the hot path).
func (l *Ledger) LogTransaction(ctx context.Context, tx store.Tx, guild, user string, currency Currency, amount, balanceAfter float64, kind Kind, relatedID *int64, relatedType string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transactions
		(guild, user, kind, amount, currency, balance_after, metadata, related_id, related_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, '{}', ?, ?, ?)`,
		guild, user, string(kind), amount, string(currency), balanceAfter, relatedID, nullableString(relatedType), l.clock.Now().Format("2006-01-02T15:04:05Z07:00"))
	if err != nil {
		return fmt.Errorf("ledger: log transaction: %w", err)
	}
	return nil
}
