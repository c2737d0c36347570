package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"guildkeeper/internal/store"
)

// LoadGuildSettings reads the guild_settings row for guild, returning
// DefaultGuildSettings if no row exists yet (spec.md §4.1 step (e)).
func LoadGuildSettings(ctx context.Context, s *store.Store, guild string) (*GuildSettings, error) {
	row := s.DB().QueryRowContext(ctx, `SELECT
		trade_tax_percent, duel_tax_percent, xp_trading_enabled,
		daily_xp_transfer_cap_percent, daily_xp_transfer_cap_max,
		capture_cooldown_seconds, duel_cooldown_seconds, engagement_channel_ids,
		welcome_dm_enabled, welcome_dm_text, welcome_public_text,
		xp_per_message, welcome_bonus_xp, welcome_detection_enabled,
		announcements_channel_id, ambassador_role_id, new_member_role_id, new_member_role_duration_days,
		log_channel_id, appeal_channel_id, ai_enabled, ai_confidence_threshold, ai_flag_channel_id,
		ai_model, ollama_host, decay_multiplier, warn_1_decay_days, warn_2_decay_days, warn_3_decay_days,
		mute_duration_warn_2_minutes, mute_duration_warn_3_minutes, rules_message_id, xp_thresholds,
		minigame_channel_id
		FROM guild_settings WHERE guild = ?`, guild)

	g := DefaultGuildSettings(guild)
	var engagementChannels, xpThresholds string
	var announcementsChannelID, ambassadorRoleID, newMemberRoleID, logChannelID, appealChannelID,
		aiFlagChannelID, rulesMessageID, minigameChannelID sql.NullString

	err := row.Scan(
		&g.TradeTaxPercent, &g.DuelTaxPercent, &g.XPTradingEnabled,
		&g.DailyXPTransferCapPercent, &g.DailyXPTransferCapMax,
		&g.CaptureCooldownSeconds, &g.DuelCooldownSeconds, &engagementChannels,
		&g.WelcomeDMEnabled, &g.WelcomeDMText, &g.WelcomePublicText,
		&g.XPPerMessage, &g.WelcomeBonusXP, &g.WelcomeDetectionEnabled,
		&announcementsChannelID, &ambassadorRoleID, &newMemberRoleID, &g.NewMemberRoleDurationDays,
		&logChannelID, &appealChannelID, &g.AIEnabled, &g.AIConfidenceThreshold, &aiFlagChannelID,
		&g.AIModel, &g.OllamaHost, &g.DecayMultiplier, &g.Warn1DecayDays, &g.Warn2DecayDays, &g.Warn3DecayDays,
		&g.MuteDurationWarn2Min, &g.MuteDurationWarn3Min, &rulesMessageID, &xpThresholds,
		&minigameChannelID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultGuildSettings(guild), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: load guild settings: %w", err)
	}

	g.AnnouncementsChannelID = announcementsChannelID.String
	g.AmbassadorRoleID = ambassadorRoleID.String
	g.NewMemberRoleID = newMemberRoleID.String
	g.LogChannelID = logChannelID.String
	g.AppealChannelID = appealChannelID.String
	g.AIFlagChannelID = aiFlagChannelID.String
	g.RulesMessageID = rulesMessageID.String
	g.MinigameChannelID = minigameChannelID.String

	if engagementChannels != "" {
		_ = json.Unmarshal([]byte(engagementChannels), &g.EngagementChannelIDs)
	}
	if xpThresholds != "" {
		_ = json.Unmarshal([]byte(xpThresholds), &g.XPThresholds)
	}
	return g, nil
}

// SaveGuildSettings upserts the full row for g.Guild.
func SaveGuildSettings(ctx context.Context, s *store.Store, g *GuildSettings) error {
	engagementChannels, err := json.Marshal(g.EngagementChannelIDs)
	if err != nil {
		return fmt.Errorf("config: marshal engagement_channel_ids: %w", err)
	}
	xpThresholds, err := json.Marshal(g.XPThresholds)
	if err != nil {
		return fmt.Errorf("config: marshal xp_thresholds: %w", err)
	}

	_, err = s.DB().ExecContext(ctx, `INSERT INTO guild_settings (
		guild, trade_tax_percent, duel_tax_percent, xp_trading_enabled,
		daily_xp_transfer_cap_percent, daily_xp_transfer_cap_max,
		capture_cooldown_seconds, duel_cooldown_seconds, engagement_channel_ids,
		welcome_dm_enabled, welcome_dm_text, welcome_public_text,
		xp_per_message, welcome_bonus_xp, welcome_detection_enabled,
		announcements_channel_id, ambassador_role_id, new_member_role_id, new_member_role_duration_days,
		log_channel_id, appeal_channel_id, ai_enabled, ai_confidence_threshold, ai_flag_channel_id,
		ai_model, ollama_host, decay_multiplier, warn_1_decay_days, warn_2_decay_days, warn_3_decay_days,
		mute_duration_warn_2_minutes, mute_duration_warn_3_minutes, rules_message_id, xp_thresholds,
		minigame_channel_id
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(guild) DO UPDATE SET
		trade_tax_percent=excluded.trade_tax_percent, duel_tax_percent=excluded.duel_tax_percent,
		xp_trading_enabled=excluded.xp_trading_enabled,
		daily_xp_transfer_cap_percent=excluded.daily_xp_transfer_cap_percent,
		daily_xp_transfer_cap_max=excluded.daily_xp_transfer_cap_max,
		capture_cooldown_seconds=excluded.capture_cooldown_seconds,
		duel_cooldown_seconds=excluded.duel_cooldown_seconds,
		engagement_channel_ids=excluded.engagement_channel_ids,
		welcome_dm_enabled=excluded.welcome_dm_enabled, welcome_dm_text=excluded.welcome_dm_text,
		welcome_public_text=excluded.welcome_public_text,
		xp_per_message=excluded.xp_per_message, welcome_bonus_xp=excluded.welcome_bonus_xp,
		welcome_detection_enabled=excluded.welcome_detection_enabled,
		announcements_channel_id=excluded.announcements_channel_id,
		ambassador_role_id=excluded.ambassador_role_id, new_member_role_id=excluded.new_member_role_id,
		new_member_role_duration_days=excluded.new_member_role_duration_days,
		log_channel_id=excluded.log_channel_id, appeal_channel_id=excluded.appeal_channel_id,
		ai_enabled=excluded.ai_enabled, ai_confidence_threshold=excluded.ai_confidence_threshold,
		ai_flag_channel_id=excluded.ai_flag_channel_id,
		ai_model=excluded.ai_model, ollama_host=excluded.ollama_host,
		decay_multiplier=excluded.decay_multiplier,
		warn_1_decay_days=excluded.warn_1_decay_days, warn_2_decay_days=excluded.warn_2_decay_days,
		warn_3_decay_days=excluded.warn_3_decay_days,
		mute_duration_warn_2_minutes=excluded.mute_duration_warn_2_minutes,
		mute_duration_warn_3_minutes=excluded.mute_duration_warn_3_minutes,
		rules_message_id=excluded.rules_message_id, xp_thresholds=excluded.xp_thresholds,
		minigame_channel_id=excluded.minigame_channel_id`,
		g.Guild, g.TradeTaxPercent, g.DuelTaxPercent, g.XPTradingEnabled,
		g.DailyXPTransferCapPercent, g.DailyXPTransferCapMax,
		g.CaptureCooldownSeconds, g.DuelCooldownSeconds, string(engagementChannels),
		g.WelcomeDMEnabled, g.WelcomeDMText, g.WelcomePublicText,
		g.XPPerMessage, g.WelcomeBonusXP, g.WelcomeDetectionEnabled,
		nullIfEmpty(g.AnnouncementsChannelID), nullIfEmpty(g.AmbassadorRoleID), nullIfEmpty(g.NewMemberRoleID), g.NewMemberRoleDurationDays,
		nullIfEmpty(g.LogChannelID), nullIfEmpty(g.AppealChannelID), g.AIEnabled, g.AIConfidenceThreshold, nullIfEmpty(g.AIFlagChannelID),
		g.AIModel, g.OllamaHost, g.DecayMultiplier, g.Warn1DecayDays, g.Warn2DecayDays, g.Warn3DecayDays,
		g.MuteDurationWarn2Min, g.MuteDurationWarn3Min, nullIfEmpty(g.RulesMessageID), string(xpThresholds),
		nullIfEmpty(g.MinigameChannelID),
	)
	if err != nil {
		return fmt.Errorf("config: save guild settings: %w", err)
	}
	return nil
}

// ListGuilds returns every guild with a guild_settings row.
func ListGuilds(ctx context.Context, s *store.Store) ([]string, error) {
	rows, err := s.DB().QueryContext(ctx, `SELECT guild FROM guild_settings`)
	if err != nil {
		return nil, fmt.Errorf("config: list guilds: %w", err)
	}
	defer rows.Close()

	var guilds []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
