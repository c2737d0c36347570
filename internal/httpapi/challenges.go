package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ChallengeDTO is the wire shape of a quest_template row for
// GET|POST|PUT|DELETE /challenges (spec.md §4.10).
type ChallengeDTO struct {
	ID                 int64   `json:"id,omitempty"`
	Name               string  `json:"name" validate:"required"`
	Description        string  `json:"description"`
	Type               string  `json:"type" validate:"required,oneof=daily weekly"`
	TargetType         string  `json:"target_type" validate:"required"`
	TargetValue        int     `json:"target_value" validate:"min=1"`
	RewardCoins        float64 `json:"reward_coins"`
	RewardXP           float64 `json:"reward_xp"`
	AllowOtherChannels bool    `json:"allow_other_channels"`
	Rarity             string  `json:"rarity"`
	Active             bool    `json:"active"`
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.DB().QueryContext(r.Context(), `SELECT id, name, description, type, target_type,
		target_value, reward_coins, reward_xp, allow_other_channels, rarity, active FROM quest_template`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "challenges: "+err.Error())
		return
	}
	defer rows.Close()

	challenges := []ChallengeDTO{}
	for rows.Next() {
		var c ChallengeDTO
		var allowOther, active int
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.TargetType,
			&c.TargetValue, &c.RewardCoins, &c.RewardXP, &allowOther, &c.Rarity, &active); err != nil {
			writeError(w, http.StatusInternalServerError, "challenges: "+err.Error())
			return
		}
		c.AllowOtherChannels = allowOther != 0
		c.Active = active != 0
		challenges = append(challenges, c)
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var c ChallengeDTO
	c.Active = true
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.DB().ExecContext(r.Context(), `INSERT INTO quest_template
		(name, description, type, target_type, target_value, reward_coins, reward_xp, allow_other_channels, rarity, active)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.Name, c.Description, c.Type, c.TargetType, c.TargetValue, c.RewardCoins, c.RewardXP,
		boolToInt(c.AllowOtherChannels), defaultRarity(c.Rarity), boolToInt(c.Active))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "challenges: "+err.Error())
		return
	}
	c.ID, _ = res.LastInsertId()
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var c ChallengeDTO
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.DB().ExecContext(r.Context(), `UPDATE quest_template SET
		name=?, description=?, type=?, target_type=?, target_value=?, reward_coins=?, reward_xp=?,
		allow_other_channels=?, rarity=?, active=? WHERE id=?`,
		c.Name, c.Description, c.Type, c.TargetType, c.TargetValue, c.RewardCoins, c.RewardXP,
		boolToInt(c.AllowOtherChannels), defaultRarity(c.Rarity), boolToInt(c.Active), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "challenges: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	c.ID = id
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := s.store.DB().ExecContext(r.Context(), `DELETE FROM quest_template WHERE id = ?`, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "challenges: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func defaultRarity(r string) string {
	if r == "" {
		return "common"
	}
	return r
}
