package quest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/store"
)

func newTestEngine(t *testing.T, r rng.Source, now time.Time) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Seed(context.Background()))

	fc := clock.NewFake(now)
	l := ledger.New(s, fc)
	return New(s, l, fc, r), s
}

func TestAssignDaily_AssignsGuaranteedAndSkipsIfAlreadyAssigned(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, rng.NewFixed(0.9, 0.9), now)
	ctx := context.Background()

	first, err := e.AssignDaily(ctx, "g1", "u1", 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := e.AssignDaily(ctx, "g1", "u1", 1, 2)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestAssignDaily_IncludesRandomBonusQuests(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, rng.NewFixed(0.1, 0.1), now)
	ctx := context.Background()

	assigned, err := e.AssignDaily(ctx, "g1", "u1", 1, 2)
	require.NoError(t, err)
	require.Len(t, assigned, 3)
}

func TestIncrementProgress_CompletesAtTarget(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, rng.NewFixed(0.9, 0.9), now)
	ctx := context.Background()

	assigned, err := e.AssignDaily(ctx, "g1", "u1", 1, 0)
	require.NoError(t, err)
	require.Len(t, assigned, 1)

	target := assigned[0].Template.TargetValue
	completed, err := e.IncrementProgress(ctx, "g1", "u1", assigned[0].Template.TargetType, target)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, assigned[0].ID, completed[0].ID)
}

func TestClaim_CreditsRewardsAndMarksClaimed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, s := newTestEngine(t, rng.NewFixed(0.9, 0.9), now)
	ctx := context.Background()

	assigned, err := e.AssignDaily(ctx, "g1", "u1", 1, 0)
	require.NoError(t, err)
	target := assigned[0].Template.TargetValue

	_, err = e.IncrementProgress(ctx, "g1", "u1", assigned[0].Template.TargetType, target)
	require.NoError(t, err)

	result, err := e.Claim(ctx, "g1", "u1", assigned[0].ID)
	require.NoError(t, err)
	require.Equal(t, assigned[0].Template.RewardCoins, result.CoinsAwarded)

	_, err = e.Claim(ctx, "g1", "u1", assigned[0].ID)
	require.Error(t, err)

	var claimed bool
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT claimed FROM user_quest WHERE id = ?", assigned[0].ID).Scan(&claimed))
	require.True(t, claimed)
}

func TestStreakMultiplier(t *testing.T) {
	cases := map[int]float64{0: 1.0, 6: 1.0, 7: 1.5, 13: 1.5, 14: 2.0, 29: 2.0, 30: 2.5, 100: 2.5}
	for streak, want := range cases {
		require.Equal(t, want, StreakMultiplier(streak), "streak=%d", streak)
	}
}

func TestUpdateStreak_IncrementsOnConsecutiveDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, rng.NewFixed(0.9), now)
	ctx := context.Background()

	s1, err := e.UpdateStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, s1)

	e.clock.(*clock.Fake).Advance(24 * time.Hour)
	s2, err := e.UpdateStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 2, s2)
}

func TestUpdateStreak_ResetsAfterGap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, rng.NewFixed(0.9), now)
	ctx := context.Background()

	_, err := e.UpdateStreak(ctx, "g1", "u1")
	require.NoError(t, err)

	e.clock.(*clock.Fake).Advance(72 * time.Hour)
	s2, err := e.UpdateStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, s2)
}
