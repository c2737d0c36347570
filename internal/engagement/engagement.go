// Package engagement resolves which roles an XP total qualifies a
// member for, the pure-function counterpart to the original bot's
// engagement.py role-sync command (SPEC_FULL.md §10).
package engagement

import "guildkeeper/internal/config"

// RolesForXP returns every role whose threshold the given xp total
// meets or exceeds, ordered by threshold ascending (the same order
// guild settings store them in).
func RolesForXP(settings *config.GuildSettings, xp float64) []config.XPThreshold {
	var earned []config.XPThreshold
	for _, t := range settings.XPThresholds {
		if xp >= t.ThresholdPoints {
			earned = append(earned, t)
		}
	}
	return earned
}

// HighestRoleForXP returns the single highest-threshold role the xp
// total qualifies for, or false if none apply.
func HighestRoleForXP(settings *config.GuildSettings, xp float64) (config.XPThreshold, bool) {
	roles := RolesForXP(settings, xp)
	if len(roles) == 0 {
		return config.XPThreshold{}, false
	}
	return roles[len(roles)-1], true
}
