package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
)

func TestCheck_CooldownBlocksRepeatWithinWindow(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := New(DefaultConfig(), fc)

	res := l.Check("g1", "u1", "daily")
	require.False(t, res.Limited)

	res = l.Check("g1", "u1", "daily")
	require.True(t, res.Limited)
	require.Equal(t, ReasonCooldown, res.Reason)

	fc.Advance(3 * time.Second)
	res = l.Check("g1", "u1", "daily")
	require.False(t, res.Limited)
}

func TestCheck_UserWindowLimitsRequests(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.UserMaxRequests = 3
	cfg.DefaultCooldown = 0
	l := New(cfg, fc)

	for i := 0; i < 3; i++ {
		res := l.Check("g1", "u1", "cmd"+string(rune('a'+i)))
		require.False(t, res.Limited, "request %d should not be limited", i)
	}

	res := l.Check("g1", "u1", "cmdx")
	require.True(t, res.Limited)
	require.Equal(t, ReasonUserRateLimit, res.Reason)
}

func TestCheck_SpamDetectorTriggersOnRepeatedCommand(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.DefaultCooldown = 0
	cfg.SpamThreshold = 3
	l := New(cfg, fc)

	for i := 0; i < 2; i++ {
		res := l.Check("g1", "u1", "spam")
		require.False(t, res.Limited)
		fc.Advance(time.Millisecond)
	}

	res := l.Check("g1", "u1", "spam")
	require.True(t, res.Limited)
}

func TestCheck_ServerWindowLimitsAcrossUsers(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.ServerMaxRequests = 2
	cfg.DefaultCooldown = 0
	l := New(cfg, fc)

	require.False(t, l.Check("g1", "u1", "a").Limited)
	require.False(t, l.Check("g1", "u2", "a").Limited)

	res := l.Check("g1", "u3", "a")
	require.True(t, res.Limited)
	require.Equal(t, ReasonServerRateLimit, res.Reason)
}

func TestCleanup_PrunesExpiredEntries(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := New(DefaultConfig(), fc)

	l.Check("g1", "u1", "cmd")
	fc.Advance(2 * time.Hour)
	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Empty(t, l.cooldowns)
	require.Empty(t, l.userWindows)
}
