package trade

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/store"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, *ledger.Ledger, *clock.Fake) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fc := clock.NewFake(now)
	l := ledger.New(s, fc)
	e := New(s, l, fc, lock.NewUserLock())
	return e, l, fc
}

func testSettings(guild string) *config.GuildSettings {
	s := config.DefaultGuildSettings(guild)
	s.TradeTaxPercent = 5
	return s
}

func TestCreate_RejectsSelfTrade(t *testing.T) {
	e, _, _ := newTestEngine(t, time.Now())
	_, err := e.Create(context.Background(), testSettings("g1"), "u1", "u1", 10, 0)
	require.Error(t, err)
}

func TestCreate_RejectsInsufficientFunds(t *testing.T) {
	e, _, _ := newTestEngine(t, time.Now())
	_, err := e.Create(context.Background(), testSettings("g1"), "u1", "u2", 100, 0)
	require.Error(t, err)
}

func TestCreate_ComputesTax(t *testing.T) {
	e, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	tr, err := e.Create(ctx, testSettings("g1"), "u1", "u2", 100, 0)
	require.NoError(t, err)
	require.Equal(t, 5.0, tr.TaxCoins)
	require.Equal(t, StatusPending, tr.Status)
}

func TestCreate_RejectsDuplicatePending(t *testing.T) {
	e, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	_, err = e.Create(ctx, testSettings("g1"), "u1", "u2", 10, 0)
	require.NoError(t, err)

	_, err = e.Create(ctx, testSettings("g1"), "u1", "u2", 20, 0)
	require.Error(t, err)
}

func TestAcceptThenSweep_CreditsRecipientMinusTax(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, l, fc := newTestEngine(t, now)
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	tr, err := e.Create(ctx, testSettings("g1"), "u1", "u2", 100, 0)
	require.NoError(t, err)

	tr, err = e.Accept(ctx, "g1", "u2", tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, tr.Status)

	bal, err := l.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 900.0, bal.Coins)

	fc.Advance(6 * time.Minute)
	completed, failures := e.SweepCompletions(ctx, "g1")
	require.Equal(t, 1, completed)
	require.Empty(t, failures)

	recipientBal, err := l.GetBalance(ctx, "g1", "u2")
	require.NoError(t, err)
	require.Equal(t, 95.0, recipientBal.Coins)

	tr, err = e.get(ctx, "g1", tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, tr.Status)
}

func TestCancel_PendingNoRefundNeeded(t *testing.T) {
	e, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	tr, err := e.Create(ctx, testSettings("g1"), "u1", "u2", 100, 0)
	require.NoError(t, err)

	tr, err = e.Cancel(ctx, "g1", "u2", tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, tr.Status)

	bal, err := l.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1000.0, bal.Coins)
}

func TestCancel_AcceptedRefundsSender(t *testing.T) {
	e, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	tr, err := e.Create(ctx, testSettings("g1"), "u1", "u2", 100, 0)
	require.NoError(t, err)
	tr, err = e.Accept(ctx, "g1", "u2", tr.ID)
	require.NoError(t, err)

	_, err = e.Cancel(ctx, "g1", "u2", tr.ID)
	require.Error(t, err, "only sender may cancel an accepted trade")

	tr, err = e.Cancel(ctx, "g1", "u1", tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, tr.Status)

	bal, err := l.GetBalance(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1000.0, bal.Coins)
}

func TestCancel_CompletedRejected(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, l, fc := newTestEngine(t, now)
	ctx := context.Background()
	_, err := l.AddCoins(ctx, "g1", "u1", 1000, ledger.KindManualAdjustment, nil, "", nil)
	require.NoError(t, err)

	tr, err := e.Create(ctx, testSettings("g1"), "u1", "u2", 100, 0)
	require.NoError(t, err)
	tr, err = e.Accept(ctx, "g1", "u2", tr.ID)
	require.NoError(t, err)

	fc.Advance(6 * time.Minute)
	_, failures := e.SweepCompletions(ctx, "g1")
	require.Empty(t, failures)

	_, err = e.Cancel(ctx, "g1", "u1", tr.ID)
	require.Error(t, err)
}

func TestWarningPreview_ReportsLevelDown(t *testing.T) {
	e, l, _ := newTestEngine(t, time.Now())
	ctx := context.Background()
	_, err := l.AddXP(ctx, "g1", "u1", 500, ledger.KindMessageXP, nil, "", nil)
	require.NoError(t, err)

	preview, err := e.WarningPreview(ctx, "g1", "u1", 400)
	require.NoError(t, err)
	require.True(t, preview.WillLevelDown)
	require.Greater(t, preview.LevelsLost, 0)
}
