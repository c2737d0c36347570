package commands

import (
	"context"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/minigame"
	"guildkeeper/internal/validate"
)

// Capture runs the capture minigame (spec.md §6 "capture stake=<int>",
// §8 boundary: stake must fall in [10, 1000]).
func (d *Deps) Capture(ctx context.Context, guild, user string, stake int) (*minigame.CaptureResult, error) {
	if err := d.checkRateLimit(guild, user, "capture"); err != nil {
		return nil, err
	}
	ok, n, reason := validate.ValidateInteger(stake, true, 10, true, 1000)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidInput, "stake: "+reason)
	}

	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "capture: load settings", err)
	}

	return d.Minigame.Capture(ctx, settings, guild, user, float64(n), 0)
}

// Duel runs the duel minigame between the caller and opponent
// (spec.md §6 "duel opponent=<user> bet=<int>", §8: user1 == user2 is
// InvalidInput).
func (d *Deps) Duel(ctx context.Context, guild, user, opponent string, bet int) (*minigame.DuelResult, error) {
	if err := d.checkRateLimit(guild, user, "duel"); err != nil {
		return nil, err
	}
	if err := validateSnowflake("opponent", opponent); err != nil {
		return nil, err
	}
	if user == opponent {
		return nil, apperr.New(apperr.KindInvalidInput, "cannot duel yourself")
	}
	ok, n, reason := validate.ValidateInteger(bet, true, 1, false, 0)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidInput, "bet: "+reason)
	}

	settings, err := d.requireSettings(ctx, guild)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "duel: load settings", err)
	}

	return d.Minigame.Duel(ctx, settings, guild, user, opponent, float64(n))
}

// MinigameStats reports capture/duel win-loss counts and net coin flow
// (spec.md §6 "minigame stats").
func (d *Deps) MinigameStats(ctx context.Context, guild, user string) (*minigame.Stats, error) {
	if err := d.checkRateLimit(guild, user, "minigame"); err != nil {
		return nil, err
	}
	return d.Minigame.Stats(ctx, guild, user)
}
