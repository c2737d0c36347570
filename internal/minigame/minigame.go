// Package minigame implements capture and duel, spec.md §4.6's two
// gambling-flavored mini-games. Grounded on the original bot's
// minigame_engine.py for the odds/payout shapes, generalized to the
// injected clock/rng pair the rest of this module uses.
package minigame

import (
	"context"
	"fmt"
	"math"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/store"
)

// Engine runs capture/duel rolls through the ledger in a single
// transaction per outcome.
type Engine struct {
	store  *store.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	rng    rng.Source
	locks  *lock.UserLock
}

func New(s *store.Store, l *ledger.Ledger, c clock.Clock, r rng.Source, locks *lock.UserLock) *Engine {
	return &Engine{store: s, ledger: l, clock: c, rng: r, locks: locks}
}

// CaptureResult reports the outcome of one capture attempt.
type CaptureResult struct {
	Won        bool
	Roll       float64
	Odds       float64
	Winnings   float64
	NetChange  float64
	XPAwarded  float64
}

// Capture implements spec.md §4.6's capture odds, cooldown, and
// payout. The roll, cooldown write, and both currency mutations
// commit as one store transaction so a mid-operation failure leaves
// balances exactly where they were.
func (e *Engine) Capture(ctx context.Context, settings *config.GuildSettings, guild, user string, stake float64, luckBonus float64) (*CaptureResult, error) {
	if stake < 10 || stake > 1000 {
		return nil, apperr.InvalidInput("stake", "must be between 10 and 1000")
	}

	cooldown := time.Duration(settings.CaptureCooldownSeconds) * time.Second
	if err := e.checkCooldown(ctx, guild, user, "capture", cooldown); err != nil {
		return nil, err
	}

	var result *CaptureResult
	err := e.locks.With(lock.Key(guild, user), func() error {
		return e.store.WithTx(ctx, func(tx store.Tx) error {
			bal, err := e.ledger.EnsureUserTx(ctx, tx, guild, user)
			if err != nil {
				return err
			}
			if bal.Coins < stake {
				return apperr.InsufficientFunds(string(ledger.CurrencyCoins), bal.Coins, stake)
			}

			base := 0.30 + math.Min(float64(bal.Level-1)*0.01, 0.20) + math.Min(stake*0.0003, 0.15)
			total := math.Min(base+luckBonus, 0.75)
			roll := e.rng.Float64()

			if err := e.setCooldownTx(ctx, tx, guild, user, "capture"); err != nil {
				return err
			}

			r := &CaptureResult{Roll: roll, Odds: total}

			if roll < total {
				multiplier := 2.0 + (1 - total)
				winnings := math.Floor(stake * multiplier)
				netGain := winnings - stake
				xpAward := math.Floor(stake * 0.1)

				if _, err := e.ledger.MutateTx(ctx, tx, guild, user, ledger.CurrencyCoins, netGain, ledger.KindCapture, nil, "", nil); err != nil {
					return err
				}
				if xpAward > 0 {
					if _, err := e.ledger.MutateTx(ctx, tx, guild, user, ledger.CurrencyXP, xpAward, ledger.KindCapture, nil, "", nil); err != nil {
						return err
					}
				}
				r.Won = true
				r.Winnings = winnings
				r.NetChange = netGain
				r.XPAwarded = xpAward
			} else {
				xpAward := math.Max(1, math.Floor(stake*0.02))
				if _, err := e.ledger.MutateTx(ctx, tx, guild, user, ledger.CurrencyCoins, -stake, ledger.KindCapture, nil, "", nil); err != nil {
					return err
				}
				if _, err := e.ledger.MutateTx(ctx, tx, guild, user, ledger.CurrencyXP, xpAward, ledger.KindCapture, nil, "", nil); err != nil {
					return err
				}
				r.Won = false
				r.NetChange = -stake
				r.XPAwarded = xpAward
			}

			result = r
			return nil
		})
	})
	return result, err
}

// DuelResult reports the outcome of a duel for both participants.
type DuelResult struct {
	Winner      string
	Loser       string
	P1WinChance float64
	Roll        float64
	Pot         float64
	Tax         float64
	WinnerGain  float64
	LoserLoss   float64
}

// Duel implements spec.md §4.6's level-adjusted coin-flip duel. The
// cooldown write and both participants' currency mutations commit as
// one store transaction spanning the whole outcome.
func (e *Engine) Duel(ctx context.Context, settings *config.GuildSettings, guild, user1, user2 string, bet float64) (*DuelResult, error) {
	if user1 == user2 {
		return nil, apperr.InvalidInput("user2", "cannot duel yourself")
	}
	if bet < 10 || bet > 500 {
		return nil, apperr.InvalidInput("bet", "must be between 10 and 500")
	}

	cooldown := time.Duration(settings.DuelCooldownSeconds) * time.Second
	if err := e.checkCooldown(ctx, guild, user1, "duel", cooldown); err != nil {
		return nil, err
	}

	bal1, err := e.ledger.GetBalance(ctx, guild, user1)
	if err != nil {
		return nil, err
	}
	bal2, err := e.ledger.GetBalance(ctx, guild, user2)
	if err != nil {
		return nil, err
	}
	if bal1.Coins < bet {
		return nil, apperr.InsufficientFunds(string(ledger.CurrencyCoins), bal1.Coins, bet)
	}
	if bal2.Coins < bet {
		return nil, apperr.InsufficientFunds(string(ledger.CurrencyCoins), bal2.Coins, bet)
	}

	levelDiff := bal1.Level - bal2.Level
	shift := math.Min(math.Abs(float64(levelDiff))*0.02, 0.20)
	p1 := 0.50 + math.Copysign(shift, float64(levelDiff))
	if levelDiff == 0 {
		p1 = 0.50
	}

	var result *DuelResult
	err = e.locks.With(lock.Key(guild, user1), func() error {
		return e.locks.With(lock.Key(guild, user2), func() error {
			return e.store.WithTx(ctx, func(tx store.Tx) error {
				if err := e.setCooldownTx(ctx, tx, guild, user1, "duel"); err != nil {
					return err
				}

				roll := e.rng.Float64()
				winner, loser := user1, user2
				if roll >= p1 {
					winner, loser = user2, user1
				}

				pot := 2 * bet
				tax := math.Floor(pot * settings.DuelTaxPercent / 100)
				winnings := pot - tax
				netGain := winnings - bet

				winnerXP := math.Floor(bet * 0.1)
				loserXP := math.Max(1, math.Floor(bet*0.02))

				if _, err := e.ledger.MutateTx(ctx, tx, guild, loser, ledger.CurrencyCoins, -bet, ledger.KindDuelWager, nil, "", nil); err != nil {
					return err
				}
				metadata := map[string]any{"tax": tax, "opponent": loser}
				if _, err := e.ledger.MutateTx(ctx, tx, guild, winner, ledger.CurrencyCoins, netGain, ledger.KindDuelPayout, nil, "", metadata); err != nil {
					return err
				}
				if winnerXP > 0 {
					if _, err := e.ledger.MutateTx(ctx, tx, guild, winner, ledger.CurrencyXP, winnerXP, ledger.KindDuelPayout, nil, "", nil); err != nil {
						return err
					}
				}
				if loserXP > 0 {
					if _, err := e.ledger.MutateTx(ctx, tx, guild, loser, ledger.CurrencyXP, loserXP, ledger.KindDuelPayout, nil, "", nil); err != nil {
						return err
					}
				}

				result = &DuelResult{
					Winner: winner, Loser: loser, P1WinChance: p1, Roll: roll,
					Pot: pot, Tax: tax, WinnerGain: netGain, LoserLoss: bet,
				}
				return nil
			})
		})
	})
	return result, err
}

func (e *Engine) checkCooldown(ctx context.Context, guild, user, action string, cooldown time.Duration) error {
	var lastAction string
	row := e.store.DB().QueryRowContext(ctx, `SELECT last_action_at FROM cooldown WHERE guild = ? AND user = ? AND action_type = ?`, guild, user, action)
	if err := row.Scan(&lastAction); err != nil {
		return nil // no prior cooldown row
	}
	last, err := time.Parse(time.RFC3339, lastAction)
	if err != nil {
		return nil
	}
	elapsed := e.clock.Now().Sub(last)
	if elapsed < cooldown {
		return apperr.RateLimited(fmt.Sprintf("%s_cooldown", action), (cooldown - elapsed).Seconds())
	}
	return nil
}

func (e *Engine) setCooldownTx(ctx context.Context, tx store.Tx, guild, user, action string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cooldown (guild, user, action_type, last_action_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild, user, action_type) DO UPDATE SET last_action_at = excluded.last_action_at`,
		guild, user, action, e.clock.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("minigame: set cooldown: %w", err)
	}
	return nil
}
