package commands

import (
	"context"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/config"
)

// requireAdmin enforces the `default_permissions(administrator=True)`
// gate the original bot applies to every minigame-channel admin
// command.
func requireAdmin(callerIsAdmin bool) error {
	if !callerIsAdmin {
		return apperr.PermissionDenied("administrator permission required")
	}
	return nil
}

// SetChannel designates the guild's minigame channel (spec.md §6
// "set-channel").
func (d *Deps) SetChannel(ctx context.Context, callerIsAdmin bool, guild, channelID string) error {
	if err := requireAdmin(callerIsAdmin); err != nil {
		return err
	}
	if err := validateSnowflake("channel", channelID); err != nil {
		return err
	}
	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "set-channel: load settings", err)
	}
	settings.MinigameChannelID = channelID
	if err := config.SaveGuildSettings(ctx, d.Store, settings); err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "set-channel: save settings", err)
	}
	return nil
}

// ClearChannel removes the guild's minigame channel restriction
// (spec.md §6 "clear-channel").
func (d *Deps) ClearChannel(ctx context.Context, callerIsAdmin bool, guild string) error {
	if err := requireAdmin(callerIsAdmin); err != nil {
		return err
	}
	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "clear-channel: load settings", err)
	}
	settings.MinigameChannelID = ""
	if err := config.SaveGuildSettings(ctx, d.Store, settings); err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "clear-channel: save settings", err)
	}
	return nil
}

// AllowChannel adds channelID to the guild's quest-exception list
// (channels where quest progress counts even outside the configured
// minigame channel). Returns false if it was already present (spec.md
// §6 "allow-channel").
func (d *Deps) AllowChannel(ctx context.Context, callerIsAdmin bool, guild, channelID string) (bool, error) {
	if err := requireAdmin(callerIsAdmin); err != nil {
		return false, err
	}
	if err := validateSnowflake("channel", channelID); err != nil {
		return false, err
	}
	res, err := d.Store.DB().ExecContext(ctx, `INSERT INTO quest_exception_channel (guild, channel_id)
		VALUES (?, ?) ON CONFLICT(guild, channel_id) DO NOTHING`, guild, channelID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreUnavailable, "allow-channel: insert", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveChannel removes channelID from the guild's quest-exception
// list. Returns false if it was not present (spec.md §6
// "remove-channel").
func (d *Deps) RemoveChannel(ctx context.Context, callerIsAdmin bool, guild, channelID string) (bool, error) {
	if err := requireAdmin(callerIsAdmin); err != nil {
		return false, err
	}
	res, err := d.Store.DB().ExecContext(ctx, `DELETE FROM quest_exception_channel WHERE guild = ? AND channel_id = ?`, guild, channelID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreUnavailable, "remove-channel: delete", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// IsQuestExceptionChannel reports whether channelID is a configured
// exception channel for guild, letting a chat-platform client decide
// whether to accept a quest-tracked action outside the minigame
// channel.
func (d *Deps) IsQuestExceptionChannel(ctx context.Context, guild, channelID string) (bool, error) {
	var n int
	row := d.Store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM quest_exception_channel WHERE guild = ? AND channel_id = ?`, guild, channelID)
	if err := row.Scan(&n); err != nil {
		return false, apperr.Wrap(apperr.KindStoreUnavailable, "quest exception lookup", err)
	}
	return n > 0, nil
}
