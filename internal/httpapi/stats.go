package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// StatsResponse is the body of GET /stats (spec.md §4.10).
type StatsResponse struct {
	Period      string        `json:"period"`
	TotalUsers  int           `json:"total_users"`
	TotalCoins  float64       `json:"total_coins"`
	TotalXP     float64       `json:"total_xp"`
	GrowthSeries []DayCount   `json:"growth_series"`
	TopMembers  []MemberStat  `json:"top_members"`
	TopChannels []ChannelStat `json:"top_channels"`
	HourlyHistogram [24]int   `json:"hourly_histogram"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type MemberStat struct {
	User string  `json:"user"`
	XP   float64 `json:"xp"`
}

type ChannelStat struct {
	ChannelID string `json:"channel_id"`
	Count     int    `json:"count"`
}

func periodSince(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "7d":
		return now.AddDate(0, 0, -7), true
	case "30d":
		return now.AddDate(0, 0, -30), true
	case "all", "":
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "all"
	}
	since, bounded := periodSince(period, s.clock.Now())

	resp := StatsResponse{Period: period}

	row := s.store.DB().QueryRowContext(r.Context(),
		`SELECT COUNT(*), COALESCE(SUM(coins), 0), COALESCE(SUM(xp), 0) FROM user_balance WHERE guild = ?`, guild)
	if err := row.Scan(&resp.TotalUsers, &resp.TotalCoins, &resp.TotalXP); err != nil {
		writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
		return
	}

	activityQuery := `SELECT substr(created_at, 1, 10) AS day, COUNT(*) FROM message_activity WHERE guild = ?`
	args := []any{guild}
	if bounded {
		activityQuery += ` AND created_at >= ?`
		args = append(args, since.UTC().Format(time.RFC3339))
	}
	activityQuery += ` GROUP BY day ORDER BY day`

	rows, err := s.store.DB().QueryContext(r.Context(), activityQuery, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
		return
	}
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
			return
		}
		resp.GrowthSeries = append(resp.GrowthSeries, dc)
	}
	rows.Close()

	memberRows, err := s.store.DB().QueryContext(r.Context(),
		`SELECT user, xp FROM user_balance WHERE guild = ? ORDER BY xp DESC LIMIT 10`, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
		return
	}
	for memberRows.Next() {
		var m MemberStat
		if err := memberRows.Scan(&m.User, &m.XP); err != nil {
			memberRows.Close()
			writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
			return
		}
		resp.TopMembers = append(resp.TopMembers, m)
	}
	memberRows.Close()

	channelQuery := `SELECT channel_id, COUNT(*) AS n FROM message_activity WHERE guild = ?`
	channelArgs := []any{guild}
	if bounded {
		channelQuery += ` AND created_at >= ?`
		channelArgs = append(channelArgs, since.UTC().Format(time.RFC3339))
	}
	channelQuery += ` GROUP BY channel_id ORDER BY n DESC LIMIT 10`

	channelRows, err := s.store.DB().QueryContext(r.Context(), channelQuery, channelArgs...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
		return
	}
	for channelRows.Next() {
		var c ChannelStat
		if err := channelRows.Scan(&c.ChannelID, &c.Count); err != nil {
			channelRows.Close()
			writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
			return
		}
		resp.TopChannels = append(resp.TopChannels, c)
	}
	channelRows.Close()

	hourQuery := `SELECT CAST(strftime('%H', created_at) AS INTEGER) AS hr, COUNT(*) FROM message_activity WHERE guild = ?`
	hourArgs := []any{guild}
	if bounded {
		hourQuery += ` AND created_at >= ?`
		hourArgs = append(hourArgs, since.UTC().Format(time.RFC3339))
	}
	hourQuery += ` GROUP BY hr`

	hourRows, err := s.store.DB().QueryContext(r.Context(), hourQuery, hourArgs...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
		return
	}
	for hourRows.Next() {
		var hr, count int
		if err := hourRows.Scan(&hr, &count); err != nil {
			hourRows.Close()
			writeError(w, http.StatusInternalServerError, "stats: "+err.Error())
			return
		}
		if hr >= 0 && hr < 24 {
			resp.HourlyHistogram[hr] = count
		}
	}
	hourRows.Close()

	writeJSON(w, http.StatusOK, resp)
}
