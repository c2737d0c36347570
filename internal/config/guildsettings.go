package config

// XPThreshold maps an XP point total to a role to grant, ordered by
// Threshold ascending (spec.md §3, §6 xp_thresholds).
type XPThreshold struct {
	ThresholdPoints float64 `json:"threshold_points"`
	RoleID          string  `json:"role_id"`
	RoleName        string  `json:"role_name,omitempty"`
}

// GuildSettings is the one-row-per-guild configuration record from
// spec.md §3. It is read from the guild_settings table on every
// LoadGuildSettings call and is not cached, so a row written by
// POST /config or POST /minigame-settings is seen by the next load.
type GuildSettings struct {
	Guild string

	TradeTaxPercent            float64
	DuelTaxPercent             float64
	XPTradingEnabled           bool
	DailyXPTransferCapPercent  float64
	DailyXPTransferCapMax      float64
	CaptureCooldownSeconds     int
	DuelCooldownSeconds        int
	EngagementChannelIDs       []string

	WelcomeDMEnabled  bool
	WelcomeDMText     string
	WelcomePublicText string

	XPPerMessage            float64
	WelcomeBonusXP          float64
	WelcomeDetectionEnabled bool
	AnnouncementsChannelID  string
	AmbassadorRoleID        string
	NewMemberRoleID         string
	NewMemberRoleDurationDays int

	LogChannelID          string
	AppealChannelID       string
	AIEnabled             bool
	AIConfidenceThreshold float64
	AIFlagChannelID       string
	AIModel               string
	OllamaHost             string
	DecayMultiplier        float64
	Warn1DecayDays         int
	Warn2DecayDays         int
	Warn3DecayDays         int
	MuteDurationWarn2Min   int
	MuteDurationWarn3Min   int
	RulesMessageID         string
	MinigameChannelID      string

	XPThresholds []XPThreshold
}

// DefaultGuildSettings returns the default row spec.md §4.1 step (e)
// and §9 Open Question 3 call for.
func DefaultGuildSettings(guild string) *GuildSettings {
	return &GuildSettings{
		Guild:                     guild,
		TradeTaxPercent:           5,
		DuelTaxPercent:            5,
		XPTradingEnabled:          true,
		DailyXPTransferCapPercent: 10.0,
		DailyXPTransferCapMax:     500,
		CaptureCooldownSeconds:    60,
		DuelCooldownSeconds:       300,
		XPPerMessage:              5,
		NewMemberRoleDurationDays: 7,
		AIConfidenceThreshold:     0.8,
		DecayMultiplier:           1.0,
		Warn1DecayDays:            7,
		Warn2DecayDays:            14,
		Warn3DecayDays:            21,
		MuteDurationWarn2Min:      60,
		MuteDurationWarn3Min:      1440,
	}
}

// DecayDays returns the decay window for a given warn count, per
// spec.md §4.8 ("decay_days(warn_count)... e.g., 1→7, 2→14, 3→21, else 28"),
// scaled by DecayMultiplier.
func (g *GuildSettings) DecayDays(warnCount int) float64 {
	var base int
	switch warnCount {
	case 1:
		base = g.Warn1DecayDays
	case 2:
		base = g.Warn2DecayDays
	case 3:
		base = g.Warn3DecayDays
	default:
		base = 28
	}
	return float64(base) * g.DecayMultiplier
}

// MuteDurationMinutes returns the mute duration applied when warnCount
// crosses into a configured threshold (spec.md §4.8).
func (g *GuildSettings) MuteDurationMinutes(warnCount int) int {
	switch warnCount {
	case 2:
		return g.MuteDurationWarn2Min
	case 3:
		return g.MuteDurationWarn3Min
	default:
		return 0
	}
}
