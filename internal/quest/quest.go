// Package quest assigns, tracks progress on, and pays out the daily
// and weekly quest system spec.md §4.4 describes. Grounded on the
// original bot's quests.py (assign_daily_quests, increment_quest_
// progress, claim_quest, get_streak_multiplier).
package quest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/store"
)

// Engine assigns quests and tracks progress/claims.
type Engine struct {
	store  *store.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	rng    rng.Source
}

func New(s *store.Store, l *ledger.Ledger, c clock.Clock, r rng.Source) *Engine {
	return &Engine{store: s, ledger: l, clock: c, rng: r}
}

// Template is a quest_template row.
type Template struct {
	ID                 int64
	Name               string
	Description        string
	Type               string
	TargetType         string
	TargetValue        int
	RewardCoins        float64
	RewardXP           float64
	AllowOtherChannels bool
	Rarity             string
}

// UserQuest is a user_quest row, joined with its template for display.
type UserQuest struct {
	ID          int64
	Guild       string
	User        string
	QuestID     int64
	Progress    int
	Completed   bool
	Claimed     bool
	AssignedAt  string
	CompletedAt sql.NullString
	Template    Template
}

func todayUTC(c clock.Clock) string {
	return c.Now().UTC().Format("2006-01-02")
}

// AssignDaily assigns daily quests for (guild, user): numGuaranteed
// quests (preferring rarity=common), then numRandom additional daily
// templates each included with 50% probability. Returns the existing
// set unchanged if the user was already assigned today.
func (e *Engine) AssignDaily(ctx context.Context, guild, user string, numGuaranteed, numRandom int) ([]UserQuest, error) {
	existing, err := e.userDailyQuests(ctx, e.store.DB(), guild, user)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	templates, err := e.availableTemplates(ctx, e.store.DB(), "daily")
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, nil
	}

	var assigned []Template

	if numGuaranteed > 0 {
		pool := templates
		var common []Template
		for _, t := range templates {
			if t.Rarity == "common" {
				common = append(common, t)
			}
		}
		if len(common) > 0 {
			pool = common
		}
		assigned = append(assigned, sampleN(e.rng, pool, numGuaranteed)...)
	}

	remaining := excludeAssigned(templates, assigned)
	for i := 0; i < numRandom; i++ {
		if len(remaining) == 0 {
			break
		}
		if e.rng.Float64() < 0.5 {
			idx := e.rng.Intn(len(remaining))
			assigned = append(assigned, remaining[idx])
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		}
	}

	var out []UserQuest
	now := e.clock.Now()
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		for _, t := range assigned {
			res, err := tx.ExecContext(ctx, `INSERT INTO user_quest
				(guild, user, quest_id, progress, completed, claimed, assigned_at)
				VALUES (?, ?, ?, 0, 0, 0, ?)`, guild, user, t.ID, now.Format(time.RFC3339))
			if err != nil {
				return fmt.Errorf("insert user_quest: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			out = append(out, UserQuest{
				ID: id, Guild: guild, User: user, QuestID: t.ID,
				AssignedAt: now.Format(time.RFC3339), Template: t,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sampleN(r rng.Source, pool []Template, n int) []Template {
	if n >= len(pool) {
		cp := make([]Template, len(pool))
		copy(cp, pool)
		return cp
	}
	remaining := make([]Template, len(pool))
	copy(remaining, pool)
	var out []Template
	for i := 0; i < n && len(remaining) > 0; i++ {
		idx := r.Intn(len(remaining))
		out = append(out, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out
}

func excludeAssigned(all []Template, assigned []Template) []Template {
	taken := map[int64]bool{}
	for _, a := range assigned {
		taken[a.ID] = true
	}
	var out []Template
	for _, t := range all {
		if !taken[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (e *Engine) availableTemplates(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, questType string) ([]Template, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, description, type, target_type, target_value,
		reward_coins, reward_xp, allow_other_channels, rarity
		FROM quest_template WHERE type = ? AND active = 1 ORDER BY rarity, name`, questType)
	if err != nil {
		return nil, fmt.Errorf("quest: available templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Type, &t.TargetType, &t.TargetValue,
			&t.RewardCoins, &t.RewardXP, &t.AllowOtherChannels, &t.Rarity); err != nil {
			return nil, fmt.Errorf("quest: scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (e *Engine) userDailyQuests(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, guild, user string) ([]UserQuest, error) {
	today := todayUTC(e.clock)
	rows, err := q.QueryContext(ctx, `SELECT uq.id, uq.guild, uq.user, uq.quest_id, uq.progress, uq.completed,
		uq.claimed, uq.assigned_at, uq.completed_at,
		t.id, t.name, t.description, t.type, t.target_type, t.target_value,
		t.reward_coins, t.reward_xp, t.allow_other_channels, t.rarity
		FROM user_quest uq JOIN quest_template t ON uq.quest_id = t.id
		WHERE uq.guild = ? AND uq.user = ? AND date(uq.assigned_at) = ? AND t.type = 'daily'
		ORDER BY uq.assigned_at`, guild, user, today)
	if err != nil {
		return nil, fmt.Errorf("quest: user daily quests: %w", err)
	}
	defer rows.Close()

	var out []UserQuest
	for rows.Next() {
		var uq UserQuest
		if err := rows.Scan(&uq.ID, &uq.Guild, &uq.User, &uq.QuestID, &uq.Progress, &uq.Completed,
			&uq.Claimed, &uq.AssignedAt, &uq.CompletedAt,
			&uq.Template.ID, &uq.Template.Name, &uq.Template.Description, &uq.Template.Type,
			&uq.Template.TargetType, &uq.Template.TargetValue, &uq.Template.RewardCoins,
			&uq.Template.RewardXP, &uq.Template.AllowOtherChannels, &uq.Template.Rarity); err != nil {
			return nil, fmt.Errorf("quest: scan user quest: %w", err)
		}
		out = append(out, uq)
	}
	return out, rows.Err()
}

// CompletedQuest is returned by IncrementProgress for each quest that
// transitioned to completed.
type CompletedQuest struct {
	ID       int64
	Name     string
	Progress int
	Target   int
}

// IncrementProgress advances progress on every active (not completed,
// not claimed) quest of (guild, user) whose template target_type
// matches targetType, capping at target_value.
func (e *Engine) IncrementProgress(ctx context.Context, guild, user, targetType string, amount int) ([]CompletedQuest, error) {
	var completed []CompletedQuest
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT uq.id, uq.progress, t.target_value, t.name
			FROM user_quest uq JOIN quest_template t ON uq.quest_id = t.id
			WHERE uq.guild = ? AND uq.user = ? AND t.target_type = ?
			  AND uq.completed = 0 AND uq.claimed = 0`, guild, user, targetType)
		if err != nil {
			return fmt.Errorf("select active quests: %w", err)
		}

		type row struct {
			id       int64
			progress int
			target   int
			name     string
		}
		var matched []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.progress, &r.target, &r.name); err != nil {
				rows.Close()
				return fmt.Errorf("scan active quest: %w", err)
			}
			matched = append(matched, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, r := range matched {
			newProgress := r.progress + amount
			if newProgress > r.target {
				newProgress = r.target
			}
			isComplete := newProgress >= r.target

			if isComplete {
				_, err = tx.ExecContext(ctx, `UPDATE user_quest SET progress = ?, completed = 1, completed_at = ? WHERE id = ?`,
					newProgress, e.clock.Now().Format(time.RFC3339), r.id)
				if err != nil {
					return fmt.Errorf("mark completed: %w", err)
				}
				completed = append(completed, CompletedQuest{ID: r.id, Name: r.name, Progress: newProgress, Target: r.target})
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE user_quest SET progress = ? WHERE id = ?`, newProgress, r.id)
				if err != nil {
					return fmt.Errorf("update progress: %w", err)
				}
			}
		}
		return nil
	})
	return completed, err
}

// ClaimResult is returned by Claim.
type ClaimResult struct {
	QuestName    string
	CoinsAwarded float64
	XPAwarded    float64
	LevelUp      bool
	NewLevel     int
}

// Claim credits reward_coins/reward_xp for a completed, unclaimed
// user_quest and marks it claimed. The reward mutations and the
// claimed flag commit as one store transaction: a failure anywhere
// inside leaves the quest exactly as unclaimed as it started, so a
// retried claim can never mint a second payout.
func (e *Engine) Claim(ctx context.Context, guild, user string, userQuestID int64) (*ClaimResult, error) {
	var name string
	var completed, claimed bool
	var rewardCoins, rewardXP float64

	row := e.store.DB().QueryRowContext(ctx, `SELECT t.name, uq.completed, uq.claimed, t.reward_coins, t.reward_xp
		FROM user_quest uq JOIN quest_template t ON uq.quest_id = t.id
		WHERE uq.id = ? AND uq.guild = ? AND uq.user = ?`, userQuestID, guild, user)
	if err := row.Scan(&name, &completed, &claimed, &rewardCoins, &rewardXP); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user_quest", userQuestID)
		}
		return nil, fmt.Errorf("quest: claim lookup: %w", err)
	}
	if !completed {
		return nil, apperr.StateConflict("quest not yet completed")
	}
	if claimed {
		return nil, apperr.StateConflict("quest already claimed")
	}

	result := &ClaimResult{QuestName: name, CoinsAwarded: rewardCoins, XPAwarded: rewardXP}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var stillClaimed bool
		if err := tx.QueryRowContext(ctx, `SELECT claimed FROM user_quest WHERE id = ?`, userQuestID).Scan(&stillClaimed); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("user_quest", userQuestID)
			}
			return fmt.Errorf("quest: reclaim lookup: %w", err)
		}
		if stillClaimed {
			return apperr.StateConflict("quest already claimed")
		}

		if rewardCoins > 0 {
			if _, err := e.ledger.MutateTx(ctx, tx, guild, user, ledger.CurrencyCoins, rewardCoins, ledger.KindQuestReward, &userQuestID, "quest", nil); err != nil {
				return err
			}
		}
		if rewardXP > 0 {
			xpRes, err := e.ledger.MutateTx(ctx, tx, guild, user, ledger.CurrencyXP, rewardXP, ledger.KindQuestReward, &userQuestID, "quest", nil)
			if err != nil {
				return err
			}
			result.LevelUp = xpRes.LevelUp
			result.NewLevel = xpRes.NewLevel
		}

		if _, err := tx.ExecContext(ctx, `UPDATE user_quest SET claimed = 1 WHERE id = ?`, userQuestID); err != nil {
			return fmt.Errorf("quest: mark claimed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// StreakMultiplier implements the original's get_streak_multiplier.
func StreakMultiplier(streak int) float64 {
	switch {
	case streak >= 30:
		return 2.5
	case streak >= 14:
		return 2.0
	case streak >= 7:
		return 1.5
	default:
		return 1.0
	}
}

// UpdateStreak advances a user's daily streak: +1 on a consecutive
// day, unchanged on a same-day repeat, reset to 1 on any gap.
func (e *Engine) UpdateStreak(ctx context.Context, guild, user string) (int, error) {
	var lastClaim sql.NullString
	var currentStreak int
	row := e.store.DB().QueryRowContext(ctx, `SELECT last_daily_claim, streak FROM daily_tracking WHERE guild = ? AND user = ?`, guild, user)
	err := row.Scan(&lastClaim, &currentStreak)
	if errors.Is(err, sql.ErrNoRows) {
		lastClaim = sql.NullString{}
		currentStreak = 0
	} else if err != nil {
		return 0, fmt.Errorf("quest: update streak lookup: %w", err)
	}

	now := e.clock.Now().UTC()
	newStreak := 1

	if lastClaim.Valid && lastClaim.String != "" {
		lastDate, perr := time.Parse(time.RFC3339, lastClaim.String)
		if perr == nil {
			daysDiff := int(now.Truncate(24*time.Hour).Sub(lastDate.Truncate(24*time.Hour)).Hours() / 24)
			switch daysDiff {
			case 1:
				newStreak = currentStreak + 1
			case 0:
				newStreak = currentStreak
			}
		}
	}

	_, err = e.store.DB().ExecContext(ctx, `INSERT INTO daily_tracking (guild, user, streak, last_daily_claim)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild, user) DO UPDATE SET streak = excluded.streak, last_daily_claim = excluded.last_daily_claim`,
		guild, user, newStreak, now.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("quest: update streak write: %w", err)
	}

	return newStreak, nil
}
