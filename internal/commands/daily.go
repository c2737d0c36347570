package commands

import (
	"context"
	"database/sql"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/quest"
)

// DailyStatus is the reply to "daily status".
type DailyStatus struct {
	Streak          int
	AlreadyClaimed  bool
	LastClaim       string
	StreakMultiplier float64
}

// DailyClaimResult is the reply to "daily claim": the freshly assigned
// quests plus the updated streak. There is no single "award a login
// bonus" primitive in the quest engine — claiming daily means assigning
// the day's quests and refreshing the streak counter, exactly as the
// original bot's daily command does.
type DailyClaimResult struct {
	Streak           int
	StreakMultiplier float64
	AssignedQuests   int
}

// DailyStatus reports whether the day's quests have already been
// assigned and the caller's current streak (spec.md §6 "daily status").
func (d *Deps) DailyStatus(ctx context.Context, guild, user string) (*DailyStatus, error) {
	if err := d.checkRateLimit(guild, user, "daily"); err != nil {
		return nil, err
	}
	var streak int
	var lastClaim sql.NullString
	row := d.Store.DB().QueryRowContext(ctx,
		`SELECT streak, last_daily_claim FROM daily_tracking WHERE guild = ? AND user = ?`, guild, user)
	switch err := row.Scan(&streak, &lastClaim); err {
	case nil, sql.ErrNoRows:
	default:
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "daily status: load tracking", err)
	}

	today := d.todayUTC()
	return &DailyStatus{
		Streak:           streak,
		AlreadyClaimed:   lastClaim.String == today,
		LastClaim:        lastClaim.String,
		StreakMultiplier: quest.StreakMultiplier(streak),
	}, nil
}

// DailyClaim assigns the day's quests and advances the login streak
// (spec.md §6 "daily claim"), composing quest.AssignDaily and
// quest.UpdateStreak since the engine models these as two related but
// separate operations rather than a single "claim bonus" call.
func (d *Deps) DailyClaim(ctx context.Context, guild, user string) (*DailyClaimResult, error) {
	if err := d.checkRateLimit(guild, user, "daily"); err != nil {
		return nil, err
	}

	assigned, err := d.Quest.AssignDaily(ctx, guild, user, 2, 1)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "daily claim: assign quests", err)
	}
	streak, err := d.Quest.UpdateStreak(ctx, guild, user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "daily claim: update streak", err)
	}

	return &DailyClaimResult{
		Streak:           streak,
		StreakMultiplier: quest.StreakMultiplier(streak),
		AssignedQuests:   len(assigned),
	}, nil
}
