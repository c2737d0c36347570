package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guildkeeper/internal/config"
)

// configPatch mirrors spec.md §6's POST /config whitelist. Every
// field is a pointer so an absent JSON key leaves the existing value
// untouched; unknown keys are ignored rather than rejected (the spec
// calls for "silently drops others").
type configPatch struct {
	// engagement
	XPPerMessage              *float64 `json:"xp_per_message"`
	WelcomeBonusXP            *float64 `json:"welcome_bonus_xp"`
	WelcomeDetectionEnabled   *bool    `json:"welcome_detection_enabled"`
	AnnouncementsChannelID    *string  `json:"announcements_channel_id"`
	AmbassadorRoleID          *string  `json:"ambassador_role_id"`
	NewMemberRoleID           *string  `json:"new_member_role_id"`
	NewMemberRoleDurationDays *int     `json:"new_member_role_duration_days"`
	WelcomeDMEnabled          *bool    `json:"welcome_dm_enabled"`
	WelcomeDMText             *string  `json:"welcome_dm_text"`
	WelcomePublicText         *string  `json:"welcome_public_text"`

	// moderation
	LogChannelID          *string  `json:"log_channel_id"`
	AppealChannelID       *string  `json:"appeal_channel_id"`
	AIEnabled             *bool    `json:"ai_enabled"`
	AIConfidenceThreshold *float64 `json:"ai_confidence_threshold"`
	AIFlagChannelID       *string  `json:"ai_flag_channel_id"`
	AIModel               *string  `json:"ai_model"`
	OllamaHost            *string  `json:"ollama_host"`
	DecayMultiplier       *float64 `json:"decay_multiplier"`
	Warn1DecayDays        *int     `json:"warn_1_decay_days"`
	Warn2DecayDays        *int     `json:"warn_2_decay_days"`
	Warn3DecayDays        *int     `json:"warn_3_decay_days"`
	MuteDurationWarn2     *int     `json:"mute_duration_warn_2"`
	MuteDurationWarn3     *int     `json:"mute_duration_warn_3"`
	RulesMessageID        *string  `json:"rules_message_id"`

	XPThresholds *[]config.XPThreshold `json:"xp_thresholds"`
}

func (p *configPatch) apply(g *config.GuildSettings) {
	if p.XPPerMessage != nil {
		g.XPPerMessage = *p.XPPerMessage
	}
	if p.WelcomeBonusXP != nil {
		g.WelcomeBonusXP = *p.WelcomeBonusXP
	}
	if p.WelcomeDetectionEnabled != nil {
		g.WelcomeDetectionEnabled = *p.WelcomeDetectionEnabled
	}
	if p.AnnouncementsChannelID != nil {
		g.AnnouncementsChannelID = *p.AnnouncementsChannelID
	}
	if p.AmbassadorRoleID != nil {
		g.AmbassadorRoleID = *p.AmbassadorRoleID
	}
	if p.NewMemberRoleID != nil {
		g.NewMemberRoleID = *p.NewMemberRoleID
	}
	if p.NewMemberRoleDurationDays != nil {
		g.NewMemberRoleDurationDays = *p.NewMemberRoleDurationDays
	}
	if p.WelcomeDMEnabled != nil {
		g.WelcomeDMEnabled = *p.WelcomeDMEnabled
	}
	if p.WelcomeDMText != nil {
		g.WelcomeDMText = *p.WelcomeDMText
	}
	if p.WelcomePublicText != nil {
		g.WelcomePublicText = *p.WelcomePublicText
	}
	if p.LogChannelID != nil {
		g.LogChannelID = *p.LogChannelID
	}
	if p.AppealChannelID != nil {
		g.AppealChannelID = *p.AppealChannelID
	}
	if p.AIEnabled != nil {
		g.AIEnabled = *p.AIEnabled
	}
	if p.AIConfidenceThreshold != nil {
		g.AIConfidenceThreshold = *p.AIConfidenceThreshold
	}
	if p.AIFlagChannelID != nil {
		g.AIFlagChannelID = *p.AIFlagChannelID
	}
	if p.AIModel != nil {
		g.AIModel = *p.AIModel
	}
	if p.OllamaHost != nil {
		g.OllamaHost = *p.OllamaHost
	}
	if p.DecayMultiplier != nil {
		g.DecayMultiplier = *p.DecayMultiplier
	}
	if p.Warn1DecayDays != nil {
		g.Warn1DecayDays = *p.Warn1DecayDays
	}
	if p.Warn2DecayDays != nil {
		g.Warn2DecayDays = *p.Warn2DecayDays
	}
	if p.Warn3DecayDays != nil {
		g.Warn3DecayDays = *p.Warn3DecayDays
	}
	if p.MuteDurationWarn2 != nil {
		g.MuteDurationWarn2Min = *p.MuteDurationWarn2
	}
	if p.MuteDurationWarn3 != nil {
		g.MuteDurationWarn3Min = *p.MuteDurationWarn3
	}
	if p.RulesMessageID != nil {
		g.RulesMessageID = *p.RulesMessageID
	}
	if p.XPThresholds != nil {
		g.XPThresholds = *p.XPThresholds
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")
	g, err := config.LoadGuildSettings(r.Context(), s.store, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guildID")

	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	g, err := config.LoadGuildSettings(r.Context(), s.store, guild)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config: "+err.Error())
		return
	}
	patch.apply(g)

	if err := config.SaveGuildSettings(r.Context(), s.store, g); err != nil {
		writeError(w, http.StatusInternalServerError, "config: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}
