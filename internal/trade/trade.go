// Package trade implements the escrowed player-to-player trade flow
// of spec.md §4.5: create (no funds move), accept (sender debited into
// escrow), a time-driven completion sweep, and cancel (with refund
// from the accepted state). Grounded on the original bot's trades.py.
package trade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/store"
)

// Status is a trade's lifecycle state. "expired" is part of the enum
// for forward compatibility but no code path in this engine ever
// produces it (see DESIGN.md).
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusExpired   Status = "expired"
)

const escrowDuration = 5 * time.Minute

// Engine is the trade state machine.
type Engine struct {
	store  *store.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	locks  *lock.UserLock
}

func New(s *store.Store, l *ledger.Ledger, c clock.Clock, locks *lock.UserLock) *Engine {
	return &Engine{store: s, ledger: l, clock: c, locks: locks}
}

// Trade is a trade row.
type Trade struct {
	ID              int64
	Guild           string
	FromUser        string
	ToUser          string
	Coins           float64
	XP              float64
	Status          Status
	TaxCoins        float64
	TaxXP           float64
	CreatedAt       string
	AcceptedAt      sql.NullString
	EscrowReleaseAt sql.NullString
	CompletedAt     sql.NullString
}

// Create implements create_trade: validates amounts, balances, the
// daily XP transfer cap, and the no-duplicate-pending-offer rule, then
// inserts a pending row with tax precomputed. No funds move yet.
func (e *Engine) Create(ctx context.Context, settings *config.GuildSettings, from, to string, coins, xp float64) (*Trade, error) {
	if from == to {
		return nil, apperr.InvalidInput("to", "cannot trade with yourself")
	}
	if coins == 0 && xp == 0 {
		return nil, apperr.InvalidInput("amount", "trade must include coins or xp")
	}
	if coins < 0 || xp < 0 {
		return nil, apperr.InvalidInput("amount", "amounts must be non-negative")
	}
	if xp > 0 && !settings.XPTradingEnabled {
		return nil, apperr.PermissionDenied("xp trading is disabled on this server")
	}

	bal, err := e.ledger.GetBalance(ctx, settings.Guild, from)
	if err != nil {
		return nil, err
	}
	if bal.Coins < coins {
		return nil, apperr.InsufficientFunds(string(ledger.CurrencyCoins), bal.Coins, coins)
	}
	if bal.XP < xp {
		return nil, apperr.InsufficientFunds(string(ledger.CurrencyXP), bal.XP, xp)
	}

	if xp > 0 {
		if err := e.checkDailyXPCap(ctx, settings, from, bal.XP, xp); err != nil {
			return nil, err
		}
	}

	var existingPending int
	err = e.store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM trade
		WHERE guild = ? AND from_user = ? AND to_user = ? AND status = 'pending'`,
		settings.Guild, from, to).Scan(&existingPending)
	if err != nil {
		return nil, fmt.Errorf("trade: check existing pending: %w", err)
	}
	if existingPending > 0 {
		return nil, apperr.StateConflict("a pending trade already exists for this recipient")
	}

	taxCoins := math.Floor(coins * settings.TradeTaxPercent / 100)
	taxXP := math.Floor(xp * settings.TradeTaxPercent / 100)

	now := e.clock.Now()
	var id int64
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO trade
			(guild, from_user, to_user, coins, xp, status, tax_coins, tax_xp, created_at)
			VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?)`,
			settings.Guild, from, to, coins, xp, taxCoins, taxXP, now.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}

	return e.get(ctx, settings.Guild, id)
}

// checkDailyXPCap implements the §4.5 daily transfer cap: cap = min(xp *
// cap_percent/100, cap_max), resetting the counter if 24h have elapsed
// since the last reset.
func (e *Engine) checkDailyXPCap(ctx context.Context, settings *config.GuildSettings, user string, currentXP, transferAmount float64) error {
	var transferred float64
	var lastReset sql.NullString
	row := e.store.DB().QueryRowContext(ctx, `SELECT daily_xp_transferred, last_xp_transfer_reset
		FROM daily_tracking WHERE guild = ? AND user = ?`, settings.Guild, user)
	err := row.Scan(&transferred, &lastReset)
	if errors.Is(err, sql.ErrNoRows) {
		transferred, lastReset = 0, sql.NullString{}
	} else if err != nil {
		return fmt.Errorf("trade: daily cap lookup: %w", err)
	}

	now := e.clock.Now()
	if !lastReset.Valid || lastReset.String == "" {
		transferred = 0
	} else if last, perr := time.Parse(time.RFC3339, lastReset.String); perr == nil {
		if now.Sub(last) >= 24*time.Hour {
			transferred = 0
		}
	}

	cap := math.Min(currentXP*settings.DailyXPTransferCapPercent/100, settings.DailyXPTransferCapMax)
	if transferred+transferAmount > cap {
		return apperr.WithFields(apperr.KindInvalidInput, "daily xp transfer cap exceeded", map[string]any{
			"cap": cap, "transferred": transferred, "attempted": transferAmount,
		})
	}
	return nil
}

func (e *Engine) recordXPTransfer(ctx context.Context, tx store.Tx, guild, user string, amount float64) error {
	now := e.clock.Now()
	_, err := tx.ExecContext(ctx, `INSERT INTO daily_tracking (guild, user, daily_xp_transferred, last_xp_transfer_reset)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild, user) DO UPDATE SET
			daily_xp_transferred = CASE
				WHEN last_xp_transfer_reset IS NULL OR last_xp_transfer_reset = ''
					OR (julianday(?) - julianday(last_xp_transfer_reset)) * 86400 >= 86400
				THEN ?
				ELSE daily_tracking.daily_xp_transferred + ?
			END,
			last_xp_transfer_reset = CASE
				WHEN last_xp_transfer_reset IS NULL OR last_xp_transfer_reset = ''
					OR (julianday(?) - julianday(last_xp_transfer_reset)) * 86400 >= 86400
				THEN ?
				ELSE last_xp_transfer_reset
			END`,
		guild, user, amount, now.Format(time.RFC3339), now.Format(time.RFC3339), amount, amount,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("trade: record xp transfer: %w", err)
	}
	return nil
}

// Accept implements accept_trade: only the recipient may accept a
// pending trade; the sender's funds are re-checked (they may have
// spent them since creation) and debited into escrow on success.
func (e *Engine) Accept(ctx context.Context, guild, user string, tradeID int64) (*Trade, error) {
	t, err := e.get(ctx, guild, tradeID)
	if err != nil {
		return nil, err
	}
	if t.ToUser != user {
		return nil, apperr.PermissionDenied("only the recipient may accept this trade")
	}
	if t.Status != StatusPending {
		return nil, apperr.StateConflict("trade is not pending")
	}

	var result *Trade
	err = e.locks.With(lock.Key(guild, t.FromUser), func() error {
		bal, err := e.ledger.GetBalance(ctx, guild, t.FromUser)
		if err != nil {
			return err
		}
		if bal.Coins < t.Coins || bal.XP < t.XP {
			_, cerr := e.store.DB().ExecContext(ctx, `UPDATE trade SET status = 'canceled' WHERE id = ?`, tradeID)
			if cerr != nil {
				return fmt.Errorf("trade: auto-cancel on insufficient funds: %w", cerr)
			}
			return apperr.InsufficientFunds("coins_or_xp", 0, 0)
		}

		now := e.clock.Now()
		release := now.Add(escrowDuration)

		return e.store.WithTx(ctx, func(tx store.Tx) error {
			if t.Coins > 0 {
				if _, err := e.debitTx(ctx, tx, guild, t.FromUser, ledger.CurrencyCoins, t.Coins, ledger.KindTradeEscrow, tradeID); err != nil {
					return err
				}
			}
			if t.XP > 0 {
				if _, err := e.debitTx(ctx, tx, guild, t.FromUser, ledger.CurrencyXP, t.XP, ledger.KindTradeEscrow, tradeID); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `UPDATE trade SET status = 'accepted', accepted_at = ?, escrow_release_at = ? WHERE id = ?`,
				now.Format(time.RFC3339), release.Format(time.RFC3339), tradeID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	result, err = e.get(ctx, guild, tradeID)
	return result, err
}

// debitTx applies a signed ledger mutation inside a caller-managed
// transaction: it reads and updates user_balance directly on tx and
// logs the entry through ledger.LogTransaction, so the debit stays
// within Accept's single escrow transaction.
func (e *Engine) debitTx(ctx context.Context, tx store.Tx, guild, user string, currency ledger.Currency, amount float64, kind ledger.Kind, relatedID int64) (float64, error) {
	col := "coins"
	if currency == ledger.CurrencyXP {
		col = "xp"
	}
	var current float64
	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM user_balance WHERE guild = ? AND user = ?", col), guild, user)
	if err := row.Scan(&current); err != nil {
		return 0, fmt.Errorf("trade: debit lookup: %w", err)
	}
	if current < amount {
		return 0, apperr.InsufficientFunds(string(currency), current, amount)
	}
	newBalance := current - amount
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE user_balance SET %s = ? WHERE guild = ? AND user = ?", col), newBalance, guild, user); err != nil {
		return 0, fmt.Errorf("trade: debit update: %w", err)
	}
	rid := relatedID
	if err := e.ledger.LogTransaction(ctx, tx, guild, user, currency, -amount, newBalance, kind, &rid, "trade"); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (e *Engine) creditTx(ctx context.Context, tx store.Tx, guild, user string, currency ledger.Currency, amount float64, kind ledger.Kind, relatedID int64) error {
	col := "coins"
	if currency == ledger.CurrencyXP {
		col = "xp"
	}
	if _, err := e.ledger.EnsureUserTx(ctx, tx, guild, user); err != nil {
		return err
	}
	var current float64
	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM user_balance WHERE guild = ? AND user = ?", col), guild, user)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("trade: credit lookup: %w", err)
	}
	newBalance := current + amount

	if currency == ledger.CurrencyXP {
		newLevel := ledger.LevelForXP(newBalance)
		if _, err := tx.ExecContext(ctx, "UPDATE user_balance SET xp = ?, level = ? WHERE guild = ? AND user = ?", newBalance, newLevel, guild, user); err != nil {
			return fmt.Errorf("trade: credit xp update: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, "UPDATE user_balance SET coins = ? WHERE guild = ? AND user = ?", newBalance, guild, user); err != nil {
			return fmt.Errorf("trade: credit coins update: %w", err)
		}
	}
	rid := relatedID
	return e.ledger.LogTransaction(ctx, tx, guild, user, currency, amount, newBalance, kind, &rid, "trade")
}

// SweepCompletions completes every accepted trade whose escrow_release_at
// has passed: credits the recipient (coins/xp minus tax), records the
// sender's daily XP transfer, and marks the trade completed. A failure
// on one trade is returned to the caller to log; the sweep continues
// with the rest (spec.md §4.5 "on partial failure... log and continue").
func (e *Engine) SweepCompletions(ctx context.Context, guild string) (completed int, failures []error) {
	now := e.clock.Now()
	rows, err := e.store.DB().QueryContext(ctx, `SELECT id FROM trade
		WHERE guild = ? AND status = 'accepted' AND escrow_release_at <= ?`,
		guild, now.Format(time.RFC3339))
	if err != nil {
		return 0, []error{fmt.Errorf("trade: sweep query: %w", err)}
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, []error{err}
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := e.completeOne(ctx, guild, id); err != nil {
			failures = append(failures, fmt.Errorf("trade %d: %w", id, err))
			continue
		}
		completed++
	}
	return completed, failures
}

func (e *Engine) completeOne(ctx context.Context, guild string, tradeID int64) error {
	t, err := e.get(ctx, guild, tradeID)
	if err != nil {
		return err
	}
	if t.Status != StatusAccepted {
		return nil
	}

	now := e.clock.Now()
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		if t.Coins-t.TaxCoins > 0 {
			if err := e.creditTx(ctx, tx, guild, t.ToUser, ledger.CurrencyCoins, t.Coins-t.TaxCoins, ledger.KindTradeSettlement, tradeID); err != nil {
				return err
			}
		}
		if t.XP-t.TaxXP > 0 {
			if err := e.creditTx(ctx, tx, guild, t.ToUser, ledger.CurrencyXP, t.XP-t.TaxXP, ledger.KindTradeSettlement, tradeID); err != nil {
				return err
			}
			if err := e.recordXPTransfer(ctx, tx, guild, t.FromUser, t.XP); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE trade SET status = 'completed', completed_at = ? WHERE id = ?`, now.Format(time.RFC3339), tradeID)
		return err
	})
}

// Cancel implements the cancel rules: completed trades can't be
// canceled; pending trades can be canceled by either party with no
// refund needed (funds never moved); accepted trades can only be
// canceled by the sender, who is refunded from escrow.
func (e *Engine) Cancel(ctx context.Context, guild, user string, tradeID int64) (*Trade, error) {
	t, err := e.get(ctx, guild, tradeID)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case StatusCompleted:
		return nil, apperr.StateConflict("trade is already completed")
	case StatusPending:
		if user != t.FromUser && user != t.ToUser {
			return nil, apperr.PermissionDenied("not a party to this trade")
		}
		if err := e.store.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.ExecContext(ctx, `UPDATE trade SET status = 'canceled' WHERE id = ?`, tradeID)
			return err
		}); err != nil {
			return nil, err
		}
	case StatusAccepted:
		if user != t.FromUser {
			return nil, apperr.PermissionDenied("only the sender may cancel an accepted trade")
		}
		if err := e.store.WithTx(ctx, func(tx store.Tx) error {
			if t.Coins > 0 {
				if err := e.creditTx(ctx, tx, guild, t.FromUser, ledger.CurrencyCoins, t.Coins, ledger.KindTradeRefund, tradeID); err != nil {
					return err
				}
			}
			if t.XP > 0 {
				if err := e.creditTx(ctx, tx, guild, t.FromUser, ledger.CurrencyXP, t.XP, ledger.KindTradeRefund, tradeID); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `UPDATE trade SET status = 'canceled' WHERE id = ?`, tradeID)
			return err
		}); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.StateConflict("trade cannot be canceled from its current state")
	}

	return e.get(ctx, guild, tradeID)
}

// WarningPreview computes the informational level-change preview
// spec.md §4.5 describes for an XP trade; it never blocks the trade.
type WarningPreview struct {
	CurrentXP    float64
	RemainingXP  float64
	CurrentLevel int
	NewLevel     int
	WillLevelDown bool
	LevelsLost   int
}

func (e *Engine) WarningPreview(ctx context.Context, guild, user string, xp float64) (*WarningPreview, error) {
	bal, err := e.ledger.GetBalance(ctx, guild, user)
	if err != nil {
		return nil, err
	}
	remaining := bal.XP - xp
	newLevel := ledger.LevelForXP(remaining)
	return &WarningPreview{
		CurrentXP:     bal.XP,
		RemainingXP:   remaining,
		CurrentLevel:  bal.Level,
		NewLevel:      newLevel,
		WillLevelDown: newLevel < bal.Level,
		LevelsLost:    bal.Level - newLevel,
	}, nil
}

func (e *Engine) get(ctx context.Context, guild string, id int64) (*Trade, error) {
	row := e.store.DB().QueryRowContext(ctx, `SELECT id, guild, from_user, to_user, coins, xp, status,
		tax_coins, tax_xp, created_at, accepted_at, escrow_release_at, completed_at
		FROM trade WHERE guild = ? AND id = ?`, guild, id)
	var t Trade
	var status string
	if err := row.Scan(&t.ID, &t.Guild, &t.FromUser, &t.ToUser, &t.Coins, &t.XP, &status,
		&t.TaxCoins, &t.TaxXP, &t.CreatedAt, &t.AcceptedAt, &t.EscrowReleaseAt, &t.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("trade", id)
		}
		return nil, fmt.Errorf("trade: get: %w", err)
	}
	t.Status = Status(status)
	return &t, nil
}
