package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/config"
)

func TestWarn_RejectsNonModerator(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Warn(ctx, false, "g1", "100000000000000001", "mod1", "spamming")
	require.Error(t, err)
	require.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestWarn_IncrementsWarnCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	result, err := d.Warn(ctx, true, "g1", "100000000000000001", "mod1", "spamming")
	require.NoError(t, err)
	require.Equal(t, 1, result.WarnCount)
}

func TestUnwarn_DecrementsWarnCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Warn(ctx, true, "g1", "100000000000000001", "mod1", "spamming")
	require.NoError(t, err)

	count, err := d.Unwarn(ctx, true, "g1", "100000000000000001", "mod1", "appeal granted")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestMute_RejectsNonPositiveDuration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Mute(ctx, true, "g1", "100000000000000001", "mod1", "spamming", 0)
	require.Error(t, err)
}

func TestMuteAndUnmute_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	mute, err := d.Mute(ctx, true, "g1", "100000000000000001", "mod1", "spamming", 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, "mod1", mute.Moderator)

	err = d.Unmute(ctx, true, "g1", "100000000000000001", "mod1", "served time")
	require.NoError(t, err)
}

func TestModlog_ScopesToUserAndClampsLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Warn(ctx, true, "g1", "100000000000000001", "mod1", "spamming")
	require.NoError(t, err)

	entries, err := d.Modlog(ctx, true, "g1", "100000000000000001", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "mod1", entries[0].Moderator)
}

func TestAppeal_SecondSubmissionWithin48HoursIsOnCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, fc := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))
	_, err := d.Warn(ctx, true, "g1", "100000000000000001", "mod1", "spamming")
	require.NoError(t, err)

	first, err := d.Appeal(ctx, "g1", "100000000000000001", "please reconsider")
	require.NoError(t, err)

	_, err = d.Appeal(ctx, "g1", "100000000000000001", "please reconsider again")
	require.Error(t, err)
	require.Equal(t, apperr.KindOnCooldown, apperr.KindOf(err))

	_, err = d.AppealReview(ctx, true, first.ID, "mod1", "denied", "")
	require.NoError(t, err)

	fc.Advance(49 * time.Hour)
	_, err = d.Appeal(ctx, "g1", "100000000000000001", "one more time")
	require.NoError(t, err)
}

func TestAppealReview_RejectsNonModerator(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))
	_, err := d.Warn(ctx, true, "g1", "100000000000000001", "mod1", "spamming")
	require.NoError(t, err)

	appeal, err := d.Appeal(ctx, "g1", "100000000000000001", "please reconsider")
	require.NoError(t, err)

	_, err = d.AppealReview(ctx, false, appeal.ID, "mod1", "approved", "")
	require.Error(t, err)
	require.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}
