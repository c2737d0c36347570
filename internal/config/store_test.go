package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/store"
)

func TestLoadGuildSettings_ReturnsDefaultsWhenNoRow(t *testing.T) {
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	g, err := LoadGuildSettings(context.Background(), s, "g1")
	require.NoError(t, err)
	require.Equal(t, DefaultGuildSettings("g1"), g)
}

func TestSaveThenLoadGuildSettings_RoundTrips(t *testing.T) {
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	g := DefaultGuildSettings("g1")
	g.TradeTaxPercent = 7.5
	g.AppealChannelID = "chan-1"
	g.XPThresholds = []XPThreshold{{ThresholdPoints: 100, RoleID: "r1"}}
	g.EngagementChannelIDs = []string{"c1", "c2"}

	require.NoError(t, SaveGuildSettings(ctx, s, g))

	loaded, err := LoadGuildSettings(ctx, s, "g1")
	require.NoError(t, err)
	require.Equal(t, g, loaded)

	guilds, err := ListGuilds(ctx, s)
	require.NoError(t, err)
	require.Equal(t, []string{"g1"}, guilds)
}
