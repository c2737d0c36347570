package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDailyClaim_AssignsQuestsAndAdvancesStreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, _, _ := newTestDeps(t, now)
	ctx := context.Background()

	result, err := d.DailyClaim(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Streak)
	require.Greater(t, result.AssignedQuests, 0)

	status, err := d.DailyStatus(ctx, "g1", "u1")
	require.NoError(t, err)
	require.True(t, status.AlreadyClaimed)
	require.Equal(t, 1, status.Streak)
}

func TestDailyStatus_NotYetClaimedForNewUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, _, _ := newTestDeps(t, now)
	ctx := context.Background()

	status, err := d.DailyStatus(ctx, "g1", "new-user")
	require.NoError(t, err)
	require.False(t, status.AlreadyClaimed)
	require.Equal(t, 0, status.Streak)
}
