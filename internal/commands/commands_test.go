package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/minigame"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/quest"
	"guildkeeper/internal/ratelimit"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/shop"
	"guildkeeper/internal/store"
	"guildkeeper/internal/trade"
)

func newTestDeps(t *testing.T, now time.Time) (*Deps, *store.Store, *clock.Fake) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Seed(context.Background()))

	fc := clock.NewFake(now)
	fr := rng.NewFixed(0.9, 0.9)
	locks := lock.NewUserLock()
	l := ledger.New(s, fc)
	q := quest.New(s, l, fc, fr)
	tr := trade.New(s, l, fc, locks)
	sh := shop.New(s, l, fc)
	mg := minigame.New(s, l, fc, fr, locks)
	mod := moderation.New(s, fc)
	limiter := ratelimit.New(ratelimit.DefaultConfig(), fc)

	d := New(s, fc, l, q, tr, sh, mg, mod, limiter, locks)
	return d, s, fc
}
