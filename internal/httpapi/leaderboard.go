package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// LeaderboardEntry is one row of GET /leaderboard.
type LeaderboardEntry struct {
	User  string  `json:"user"`
	XP    float64 `json:"xp"`
	Level int     `json:"level"`
	Coins float64 `json:"coins"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.store.DB().QueryContext(r.Context(),
		`SELECT user, xp, level, coins FROM user_balance WHERE guild = ? ORDER BY xp DESC LIMIT ?`, guild, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "leaderboard: "+err.Error())
		return
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.User, &e.XP, &e.Level, &e.Coins); err != nil {
			writeError(w, http.StatusInternalServerError, "leaderboard: "+err.Error())
			return
		}
		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, entries)
}
