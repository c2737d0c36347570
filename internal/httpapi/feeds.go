package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// FeedDTO is the wire shape of a feed_subscription row for
// GET|POST|DELETE /streamers[/<id>] (platform "twitch") and
// GET|POST|PUT|DELETE /youtube[/<id>] (platform "youtube").
type FeedDTO struct {
	ID          int64  `json:"id,omitempty"`
	ExternalID  string `json:"external_id" validate:"required"`
	DisplayName string `json:"display_name"`
	ChannelID   string `json:"channel_id" validate:"required"`
	Active      bool   `json:"active"`
}

func (s *Server) handleListFeeds(platform string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guild := chi.URLParam(r, "guildID")
		rows, err := s.store.DB().QueryContext(r.Context(),
			`SELECT id, external_id, display_name, channel_id, active FROM feed_subscription WHERE guild = ? AND platform = ?`,
			guild, platform)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "feeds: "+err.Error())
			return
		}
		defer rows.Close()

		feeds := []FeedDTO{}
		for rows.Next() {
			var f FeedDTO
			var active int
			if err := rows.Scan(&f.ID, &f.ExternalID, &f.DisplayName, &f.ChannelID, &active); err != nil {
				writeError(w, http.StatusInternalServerError, "feeds: "+err.Error())
				return
			}
			f.Active = active != 0
			feeds = append(feeds, f)
		}
		writeJSON(w, http.StatusOK, feeds)
	}
}

func (s *Server) handleCreateFeed(platform string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guild := chi.URLParam(r, "guildID")

		var f FeedDTO
		f.Active = true
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(f); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := s.store.DB().ExecContext(r.Context(),
			`INSERT INTO feed_subscription (guild, platform, external_id, display_name, channel_id, active)
			VALUES (?,?,?,?,?,?)`,
			guild, platform, f.ExternalID, f.DisplayName, f.ChannelID, boolToInt(f.Active))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "feeds: "+err.Error())
			return
		}
		f.ID, _ = res.LastInsertId()
		writeJSON(w, http.StatusCreated, f)
	}
}

func (s *Server) handleUpdateFeed(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var f FeedDTO
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.DB().ExecContext(r.Context(),
		`UPDATE feed_subscription SET external_id=?, display_name=?, channel_id=?, active=? WHERE id=? AND guild=?`,
		f.ExternalID, f.DisplayName, f.ChannelID, boolToInt(f.Active), id, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "feeds: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	f.ID = id
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := s.store.DB().ExecContext(r.Context(), `DELETE FROM feed_subscription WHERE id = ? AND guild = ?`, id, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "feeds: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
