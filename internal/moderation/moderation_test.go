package moderation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/store"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, *clock.Fake) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fc := clock.NewFake(now)
	return New(s, fc), fc
}

// TestWarnEscalation_S6 walks spec.md §8 scenario S6: a second warn
// crosses into the 2-warning threshold, auto-muting the user; an
// approved appeal then decrements the counter and lifts the mute.
func TestWarnEscalation_S6(t *testing.T) {
	e, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")

	res, err := e.Warn(ctx, settings, "g1", "u1", "mod1", "first offense")
	require.NoError(t, err)
	require.Equal(t, 1, res.WarnCount)
	require.Nil(t, res.MuteApplied)

	res, err = e.Warn(ctx, settings, "g1", "u1", "mod1", "second offense")
	require.NoError(t, err)
	require.Equal(t, 2, res.WarnCount)
	require.NotNil(t, res.MuteApplied)
	require.Equal(t, time.Duration(settings.MuteDurationWarn2Min)*time.Minute, res.MuteApplied.ExpiresAt.Sub(res.MuteApplied.CreatedAt))

	appeal, err := e.CreateAppeal(ctx, "g1", "u1", "please reconsider")
	require.NoError(t, err)
	require.Equal(t, StatusPending, appeal.Status)

	reviewed, err := e.Review(ctx, appeal.ID, "mod2", StatusApproved, "ok")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, reviewed.Status)

	mute, err := e.ActiveMute(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Nil(t, mute)

	rows, err := e.store.DB().QueryContext(ctx, "SELECT action FROM warning_history WHERE guild='g1' AND user='u1' ORDER BY id ASC")
	require.NoError(t, err)
	defer rows.Close()
	var actions []string
	for rows.Next() {
		var a string
		require.NoError(t, rows.Scan(&a))
		actions = append(actions, a)
	}
	require.Equal(t, []string{
		ActionWarnIssued, ActionWarnIssued, ActionMuteApplied,
		ActionAppealCreated, ActionAppealReviewed, ActionWarnDecreased, ActionMuteRemoved,
	}, actions)
}

func TestUnwarn_FloorsAtZeroAndClearsMute(t *testing.T) {
	e, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")

	_, err := e.Warn(ctx, settings, "g1", "u1", "mod1", "r1")
	require.NoError(t, err)

	count, err := e.Unwarn(ctx, "g1", "u1", "mod1", "appeal")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = e.Unwarn(ctx, "g1", "u1", "mod1", "appeal")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestCreateAppeal_RejectsWithNoWarningsOrDuplicatePending(t *testing.T) {
	e, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")

	_, err := e.CreateAppeal(ctx, "g1", "u1", "no warnings yet")
	require.Error(t, err)

	_, err = e.Warn(ctx, settings, "g1", "u1", "mod1", "r1")
	require.NoError(t, err)

	_, err = e.CreateAppeal(ctx, "g1", "u1", "first appeal")
	require.NoError(t, err)

	_, err = e.CreateAppeal(ctx, "g1", "u1", "second appeal")
	require.Error(t, err)
}

func TestRunDecay_DecrementsPastDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, fc := newTestEngine(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")

	_, err := e.Warn(ctx, settings, "g1", "u1", "mod1", "r1")
	require.NoError(t, err)

	decayed, err := e.RunDecay(ctx, settings)
	require.NoError(t, err)
	require.Empty(t, decayed)

	fc.Advance(8 * 24 * time.Hour)
	decayed, err = e.RunDecay(ctx, settings)
	require.NoError(t, err)
	require.Len(t, decayed, 1)
	require.Equal(t, 0, decayed[0].CountAfter)
}
