package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fc := clock.NewFake(time.Date(2026, 7, 27, 12, 0, 0, 0, time.UTC))
	srv := New(s, fc, zerolog.Nop(), Config{APIKey: "test-secret", CORSOrigins: []string{"*"}})
	return srv, s
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestGuildRoutes_RejectMissingOrWrongAPIKey(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/guilds/g1/stats", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/guilds/g1/stats", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleLeaderboard_OrdersByXPDescAndCapsLimit(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	_, err := s.DB().ExecContext(ctx, `INSERT INTO user_balance (guild, user, xp, level, coins) VALUES
		('g1', 'alice', 500, 3, 10), ('g1', 'bob', 900, 4, 20)`)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/guilds/g1/leaderboard?limit=1", nil)
	req.Header.Set("X-API-Key", "test-secret")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var entries []LeaderboardEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "bob", entries[0].User)
}

func TestHandlePostConfig_AppliesOnlyWhitelistedKeysAndIgnoresUnknown(t *testing.T) {
	srv, s := newTestServer(t)

	body := bytes.NewBufferString(`{"xp_per_message": 12.5, "not_a_real_field": "oops"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/config", body)
	req.Header.Set("X-API-Key", "test-secret")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	saved, err := config.LoadGuildSettings(context.Background(), s, "g1")
	require.NoError(t, err)
	require.Equal(t, 12.5, saved.XPPerMessage)
}

func TestChallengeCRUD_CreateUpdateDelete(t *testing.T) {
	srv, _ := newTestServer(t)

	createBody := bytes.NewBufferString(`{"name":"Send 10 messages","type":"daily","target_type":"messages_sent","target_value":10,"reward_coins":50}`)
	req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/challenges", createBody)
	req.Header.Set("X-API-Key", "test-secret")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created ChallengeDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/guilds/g1/challenges", nil)
	req.Header.Set("X-API-Key", "test-secret")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []ChallengeDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
}
