package voice

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

func newTestTracker(t *testing.T, now time.Time) (*Tracker, *ledger.Ledger, *clock.Fake) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fc := clock.NewFake(now)
	l := ledger.New(s, fc)
	tr := New(s, l, fc, rng.NewFixed(0.5).WithInts(5))
	return tr, l, fc
}

func TestAccrueAll_AwardsXPPerFullHourAndAdvancesClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr, l, fc := newTestTracker(t, now)
	ctx := context.Background()

	require.NoError(t, tr.Join(ctx, "g1", "u1", "c1"))

	fc.Advance(150 * time.Minute) // 2 full hours

	accrued, err := tr.AccrueAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, accrued)

	bal, err := l.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 40.0, bal.XP) // (15+5) per hour * 2 hours
}

func TestAccrueAll_SkipsSessionsUnderOneHour(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr, _, fc := newTestTracker(t, now)
	ctx := context.Background()

	require.NoError(t, tr.Join(ctx, "g1", "u1", "c1"))
	fc.Advance(30 * time.Minute)

	accrued, err := tr.AccrueAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, accrued)
}

func TestLeave_AccruesRemainderThenStopsTracking(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr, l, fc := newTestTracker(t, now)
	ctx := context.Background()

	require.NoError(t, tr.Join(ctx, "g1", "u1", "c1"))
	fc.Advance(time.Hour)
	require.NoError(t, tr.Leave(ctx, "g1", "u1"))

	bal, err := l.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 20.0, bal.XP)

	accrued, err := tr.AccrueAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, accrued)
}
