package commands

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/moderation"
)

// requireModerator enforces the `has_permissions(moderate_members)`
// gate the original bot applies to warn/unwarn/mute/unmute/modlog/
// review; the chat-platform client resolves the caller's roles and
// passes the result in, since this module has no role model of its
// own.
func requireModerator(callerIsModerator bool) error {
	if !callerIsModerator {
		return apperr.PermissionDenied("moderator role required")
	}
	return nil
}

// Warn issues a warning (spec.md §6 "warn", §4.8).
func (d *Deps) Warn(ctx context.Context, callerIsModerator bool, guild, user, moderator, reason string) (*moderation.WarnResult, error) {
	if err := requireModerator(callerIsModerator); err != nil {
		return nil, err
	}
	if err := d.checkRateLimit(guild, moderator, "warn"); err != nil {
		return nil, err
	}
	if err := validateSnowflake("user", user); err != nil {
		return nil, err
	}
	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "warn: load settings", err)
	}
	return d.Moderation.Warn(ctx, settings, guild, user, moderator, reason)
}

// Unwarn removes one warning (spec.md §6 "unwarn", §4.8).
func (d *Deps) Unwarn(ctx context.Context, callerIsModerator bool, guild, user, moderator, reason string) (int, error) {
	if err := requireModerator(callerIsModerator); err != nil {
		return 0, err
	}
	if err := d.checkRateLimit(guild, moderator, "unwarn"); err != nil {
		return 0, err
	}
	return d.Moderation.Unwarn(ctx, guild, user, moderator, reason)
}

// Mute manually mutes a user for the given duration, independent of
// their warn count (spec.md §6 "mute").
func (d *Deps) Mute(ctx context.Context, callerIsModerator bool, guild, user, moderator, reason string, duration time.Duration) (*moderation.Mute, error) {
	if err := requireModerator(callerIsModerator); err != nil {
		return nil, err
	}
	if err := d.checkRateLimit(guild, moderator, "mute"); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "duration must be positive")
	}
	return d.Moderation.ManualMute(ctx, guild, user, moderator, reason, duration)
}

// Unmute removes an active mute (spec.md §6 "unmute").
func (d *Deps) Unmute(ctx context.Context, callerIsModerator bool, guild, user, moderator, reason string) error {
	if err := requireModerator(callerIsModerator); err != nil {
		return err
	}
	if err := d.checkRateLimit(guild, moderator, "unmute"); err != nil {
		return err
	}
	return d.Moderation.ManualUnmute(ctx, guild, user, moderator, reason)
}

// ModlogEntry is one row of "modlog".
type ModlogEntry struct {
	Action          string
	WarnCountBefore int
	WarnCountAfter  int
	Moderator       string
	Reason          string
	CreatedAt       string
}

// Modlog lists recent moderation history, optionally scoped to one
// user (spec.md §6 "modlog").
func (d *Deps) Modlog(ctx context.Context, callerIsModerator bool, guild, user string, limit int) ([]ModlogEntry, error) {
	if err := requireModerator(callerIsModerator); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := `SELECT action, warn_count_before, warn_count_after, COALESCE(moderator, ''), COALESCE(reason, ''), created_at
		FROM warning_history WHERE guild = ?`
	args := []any{guild}
	if user != "" {
		query += ` AND user = ?`
		args = append(args, user)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.Store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "modlog: query", err)
	}
	defer rows.Close()

	var out []ModlogEntry
	for rows.Next() {
		var e ModlogEntry
		if err := rows.Scan(&e.Action, &e.WarnCountBefore, &e.WarnCountAfter, &e.Moderator, &e.Reason, &e.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "modlog: scan", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Appeal submits an appeal, enforcing the 48h cooldown between a
// user's submissions that spec.md §4.8 assigns to the caller rather
// than the engine.
func (d *Deps) Appeal(ctx context.Context, guild, user, reason string) (*moderation.Appeal, error) {
	if err := d.checkRateLimit(guild, user, "appeal"); err != nil {
		return nil, err
	}

	var lastCreatedAt string
	row := d.Store.DB().QueryRowContext(ctx, `SELECT created_at FROM appeal
		WHERE guild = ? AND user = ? ORDER BY created_at DESC LIMIT 1`, guild, user)
	err := row.Scan(&lastCreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "appeal: load last submission", err)
	}
	if err == nil {
		if last, parseErr := time.Parse(time.RFC3339, lastCreatedAt); parseErr == nil {
			if d.Clock.Now().Sub(last) < moderation.AppealCooldown {
				return nil, apperr.New(apperr.KindOnCooldown, "appeals are limited to one per 48 hours")
			}
		}
	}

	return d.Moderation.CreateAppeal(ctx, guild, user, reason)
}

// AppealReview decides a pending appeal (spec.md §4.8's review
// contract, gated the same way as the other moderator commands).
func (d *Deps) AppealReview(ctx context.Context, callerIsModerator bool, appealID int64, moderator, decision, note string) (*moderation.Appeal, error) {
	if err := requireModerator(callerIsModerator); err != nil {
		return nil, err
	}
	return d.Moderation.Review(ctx, appealID, moderator, decision, note)
}
