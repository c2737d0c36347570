package commands

import (
	"context"
	"database/sql"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/quest"
)

// QuestListEntry is one row of "quest list".
type QuestListEntry struct {
	UserQuestID int64
	Name        string
	Description string
	Progress    int
	Target      int
	Completed   bool
	Claimed     bool
}

// QuestList returns the caller's quests assigned for the current day
// (spec.md §6 "quest list").
func (d *Deps) QuestList(ctx context.Context, guild, user string) ([]QuestListEntry, error) {
	if err := d.checkRateLimit(guild, user, "quest"); err != nil {
		return nil, err
	}
	rows, err := d.Store.DB().QueryContext(ctx, `SELECT user_quest.id, quest_template.name,
		quest_template.description, user_quest.progress, quest_template.target_value,
		user_quest.completed, user_quest.claimed
		FROM user_quest JOIN quest_template ON quest_template.id = user_quest.quest_id
		WHERE user_quest.guild = ? AND user_quest.user = ?
		ORDER BY user_quest.assigned_at DESC, user_quest.id`, guild, user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "quest list: query", err)
	}
	defer rows.Close()

	var out []QuestListEntry
	for rows.Next() {
		var q QuestListEntry
		var completed, claimed int
		if err := rows.Scan(&q.UserQuestID, &q.Name, &q.Description, &q.Progress, &q.Target, &completed, &claimed); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "quest list: scan", err)
		}
		q.Completed = completed != 0
		q.Claimed = claimed != 0
		out = append(out, q)
	}
	return out, nil
}

// QuestClaim claims a single completed quest's reward by its
// user_quest id, or (if userQuestID is zero) the first completed,
// unclaimed quest found for the caller (spec.md §6 "quest claim
// [quest_id]" — the id argument is optional).
func (d *Deps) QuestClaim(ctx context.Context, guild, user string, userQuestID int64) (*quest.ClaimResult, error) {
	if err := d.checkRateLimit(guild, user, "quest"); err != nil {
		return nil, err
	}

	if userQuestID == 0 {
		row := d.Store.DB().QueryRowContext(ctx, `SELECT id FROM user_quest
			WHERE guild = ? AND user = ? AND completed = 1 AND claimed = 0
			ORDER BY assigned_at LIMIT 1`, guild, user)
		if err := row.Scan(&userQuestID); err != nil {
			if err == sql.ErrNoRows {
				return nil, apperr.New(apperr.KindNotFound, "no completed quests to claim")
			}
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "quest claim: lookup", err)
		}
	}

	return d.Quest.Claim(ctx, guild, user, userQuestID)
}
