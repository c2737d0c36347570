package commands

import (
	"context"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/config"
	"guildkeeper/internal/engagement"
	"guildkeeper/internal/ledger"
)

// MessageXPCommand is the rate-limiter command key for message-XP
// cooldowns; wiring code should call
// limiter.SetCommandCooldown(MessageXPCommand, 60*time.Second) to match
// the original bot's per-user 60s message-XP window.
const MessageXPCommand = "message_xp"

// MessageResult reports what a tracked message produced: XP gained
// (zero if the 60s cooldown absorbed it), the resulting quest
// completions, and any newly-qualified engagement role.
type MessageResult struct {
	XPAwarded       float64
	CompletedQuests []string
	NewRole         *config.XPThreshold
}

// HandleMessage is the chat-platform on_message hook's counterpart:
// it logs channel activity for reporting, grants xp_per_message XP
// once per 60s per user, advances any "messages_sent" quest progress,
// and reports a newly crossed engagement role threshold, if any
// (SPEC_FULL.md §10, grounded on the original bot's engagement.py
// on_message listener).
func (d *Deps) HandleMessage(ctx context.Context, guild, user, channelID string) (*MessageResult, error) {
	now := d.Clock.Now()
	if _, err := d.Store.DB().ExecContext(ctx, `INSERT INTO message_activity (guild, user, channel_id, created_at) VALUES (?, ?, ?, ?)`,
		guild, user, channelID, now.UTC().Format("2006-01-02T15:04:05Z07:00")); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "message: log activity", err)
	}

	result := &MessageResult{}

	rateCheck := d.Limiter.Check(guild, user, MessageXPCommand)
	if rateCheck.Limited {
		return result, nil
	}

	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "message: load settings", err)
	}

	mutation, err := d.Ledger.AddXP(ctx, guild, user, settings.XPPerMessage, ledger.KindMessageXP, nil, "", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "message: add xp", err)
	}
	result.XPAwarded = settings.XPPerMessage

	completed, err := d.Quest.IncrementProgress(ctx, guild, user, "messages_sent", 1)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "message: increment quest progress", err)
	}
	for _, c := range completed {
		result.CompletedQuests = append(result.CompletedQuests, c.Name)
	}

	if role, ok := engagement.HighestRoleForXP(settings, mutation.New); ok && mutation.New-settings.XPPerMessage < role.ThresholdPoints {
		result.NewRole = &role
	}

	return result, nil
}
