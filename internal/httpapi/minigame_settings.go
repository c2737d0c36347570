package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guildkeeper/internal/config"
)

// minigameSettingsPatch covers the economy-tuning fields spec.md §9
// Open Question 3 calls "minigame-settings": trade/duel tax, XP
// trading toggle and cap, and action cooldowns.
type minigameSettingsPatch struct {
	TradeTaxPercent           *float64 `json:"trade_tax_percent"`
	DuelTaxPercent            *float64 `json:"duel_tax_percent"`
	XPTradingEnabled          *bool    `json:"xp_trading_enabled"`
	DailyXPTransferCapPercent *float64 `json:"daily_xp_transfer_cap_percent"`
	DailyXPTransferCapMax     *float64 `json:"daily_xp_transfer_cap_max"`
	CaptureCooldownSeconds    *int     `json:"capture_cooldown_seconds"`
	DuelCooldownSeconds       *int     `json:"duel_cooldown_seconds"`
}

func (p *minigameSettingsPatch) apply(g *config.GuildSettings) {
	if p.TradeTaxPercent != nil {
		g.TradeTaxPercent = *p.TradeTaxPercent
	}
	if p.DuelTaxPercent != nil {
		g.DuelTaxPercent = *p.DuelTaxPercent
	}
	if p.XPTradingEnabled != nil {
		g.XPTradingEnabled = *p.XPTradingEnabled
	}
	if p.DailyXPTransferCapPercent != nil {
		g.DailyXPTransferCapPercent = *p.DailyXPTransferCapPercent
	}
	if p.DailyXPTransferCapMax != nil {
		g.DailyXPTransferCapMax = *p.DailyXPTransferCapMax
	}
	if p.CaptureCooldownSeconds != nil {
		g.CaptureCooldownSeconds = *p.CaptureCooldownSeconds
	}
	if p.DuelCooldownSeconds != nil {
		g.DuelCooldownSeconds = *p.DuelCooldownSeconds
	}
}

func (s *Server) handleGetMinigameSettings(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")
	g, err := config.LoadGuildSettings(r.Context(), s.store, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "minigame-settings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, minigameSettingsPatch{
		TradeTaxPercent:           &g.TradeTaxPercent,
		DuelTaxPercent:            &g.DuelTaxPercent,
		XPTradingEnabled:          &g.XPTradingEnabled,
		DailyXPTransferCapPercent: &g.DailyXPTransferCapPercent,
		DailyXPTransferCapMax:     &g.DailyXPTransferCapMax,
		CaptureCooldownSeconds:    &g.CaptureCooldownSeconds,
		DuelCooldownSeconds:       &g.DuelCooldownSeconds,
	})
}

func (s *Server) handlePostMinigameSettings(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")

	var patch minigameSettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	g, err := config.LoadGuildSettings(r.Context(), s.store, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "minigame-settings: "+err.Error())
		return
	}
	patch.apply(g)

	if err := config.SaveGuildSettings(r.Context(), s.store, g); err != nil {
		writeError(w, http.StatusInternalServerError, "minigame-settings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}
