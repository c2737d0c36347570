package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildkeeper/internal/config"
)

func TestHandleMessage_AwardsXPAndLogsActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	settings.XPPerMessage = 5
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	result, err := d.HandleMessage(ctx, "g1", "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, 5.0, result.XPAwarded)

	bal, err := d.Ledger.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 5.0, bal.XP)

	var count int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM message_activity WHERE guild = ? AND user = ?`, "g1", "u1").Scan(&count))
	require.Equal(t, 1, count)
}

func TestHandleMessage_CooldownSuppressesSecondXPAward(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, fc := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	settings.XPPerMessage = 5
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.HandleMessage(ctx, "g1", "u1", "c1")
	require.NoError(t, err)

	second, err := d.HandleMessage(ctx, "g1", "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, 0.0, second.XPAwarded)

	bal, err := d.Ledger.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 5.0, bal.XP)

	fc.Advance(61 * time.Second)
	third, err := d.HandleMessage(ctx, "g1", "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, 5.0, third.XPAwarded)
}

func TestHandleMessage_IncrementsMessageQuestProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	res, err := s.DB().ExecContext(ctx,
		`INSERT INTO quest_template (name, description, type, target_type, target_value, reward_coins, reward_xp, allow_other_channels, rarity, active)
		 VALUES ('Chatterbox', 'send a message', 'daily', 'messages_sent', 1, 10, 0, 0, 'common', 1)`)
	require.NoError(t, err)
	templateID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx,
		`INSERT INTO user_quest (guild, user, quest_id, progress, completed, claimed, assigned_at)
		 VALUES (?, ?, ?, 0, 0, 0, ?)`, "g1", "u1", templateID, now.Format(time.RFC3339))
	require.NoError(t, err)

	_, err = d.HandleMessage(ctx, "g1", "u1", "c1")
	require.NoError(t, err)

	var completed bool
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT uq.completed FROM user_quest uq JOIN quest_template qt ON qt.id = uq.quest_id
		 WHERE uq.guild = ? AND uq.user = ? AND qt.target_type = 'messages_sent'`,
		"g1", "u1").Scan(&completed))
	require.True(t, completed)
}

func TestHandleMessage_ReportsNewlyQualifiedRole(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	settings.XPPerMessage = 10
	settings.XPThresholds = []config.XPThreshold{
		{ThresholdPoints: 10, RoleID: "role-1", RoleName: "Regular"},
	}
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	result, err := d.HandleMessage(ctx, "g1", "u1", "c1")
	require.NoError(t, err)
	require.NotNil(t, result.NewRole)
	require.Equal(t, "role-1", result.NewRole.RoleID)
}
