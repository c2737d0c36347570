package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildkeeper/internal/config"
	"guildkeeper/internal/ledger"
)

func TestCapture_LosingRollDeductsStake(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))
	_, err := d.Ledger.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	result, err := d.Capture(ctx, "g1", "u1", 100)
	require.NoError(t, err)
	require.False(t, result.Won)
	require.Equal(t, -100.0, result.NetChange)
}

func TestCapture_RejectsStakeOutsideBounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Capture(ctx, "g1", "u1", 5)
	require.Error(t, err)

	_, err = d.Capture(ctx, "g1", "u1", 5000)
	require.Error(t, err)
}

func TestDuel_RejectsDuelingSelf(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()
	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Duel(ctx, "g1", "100000000000000001", "100000000000000001", 50)
	require.Error(t, err)
}

func TestDuel_ProducesWinnerAndLoserPayout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))

	_, err := d.Ledger.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)
	_, err = d.Ledger.AddCoins(ctx, "g1", "100000000000000002", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	result, err := d.Duel(ctx, "g1", "u1", "100000000000000002", 50)
	require.NoError(t, err)
	require.Contains(t, []string{"u1", "100000000000000002"}, result.Winner)
	require.NotEqual(t, result.Winner, result.Loser)
}

func TestMinigameStats_AggregatesCaptureOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, s, _ := newTestDeps(t, now)
	ctx := context.Background()

	settings := config.DefaultGuildSettings("g1")
	require.NoError(t, config.SaveGuildSettings(ctx, s, settings))
	_, err := d.Ledger.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	_, err = d.Capture(ctx, "g1", "u1", 100)
	require.NoError(t, err)

	stats, err := d.MinigameStats(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.CaptureLosses)
}
