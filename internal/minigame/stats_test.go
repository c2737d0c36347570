package minigame

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildkeeper/internal/config"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/rng"
)

func TestStats_AggregatesCaptureAndDuelHistory(t *testing.T) {
	e, l, _ := newTestEngine(t, rng.NewFixed(0.10), time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)
	_, err = l.AddCoins(ctx, "g1", "u2", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	settings := config.DefaultGuildSettings("g1")
	_, err = e.Capture(ctx, settings, "g1", "u1", 100, 0)
	require.NoError(t, err)

	_, err = e.Duel(ctx, settings, "g1", "u1", "u2", 50)
	require.NoError(t, err)

	stats, err := e.Stats(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.CaptureWins)
	require.Equal(t, 1, stats.DuelWins)
}
