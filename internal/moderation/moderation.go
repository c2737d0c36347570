// Package moderation implements warn/unwarn, decay, and the appeal
// workflow from spec.md §4.8. Grounded on the original bot's
// moderation_utils.py (warning_history bookkeeping, active mute
// records) and user_moderation.py (the warn/appeal command surface),
// generalized to route through the injected clock and a single store
// transaction per operation.
package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guildkeeper/internal/apperr"
	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/store"
)

// Action names recorded in warning_history.
const (
	ActionWarnIssued    = "warn_issued"
	ActionWarnDecreased = "warn_decreased"
	ActionMuteApplied   = "mute_applied"
	ActionMuteRemoved   = "mute_removed"
	ActionWarnDecay     = "warn_decay"
	ActionAppealCreated = "appeal_created"
	ActionAppealReviewed = "appeal_reviewed"
)

// AppealCooldown is the minimum spacing between a user's appeal
// submissions, enforced by callers (spec.md §4.8).
const AppealCooldown = 48 * time.Hour

// Engine is the moderation state machine.
type Engine struct {
	store *store.Store
	clock clock.Clock
}

func New(s *store.Store, c clock.Clock) *Engine {
	return &Engine{store: s, clock: c}
}

// Mute describes an active timeout, internal or external.
type Mute struct {
	Moderator string
	Reason    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// WarnResult reports the outcome of a warn call.
type WarnResult struct {
	WarnCount  int
	MuteApplied *Mute
}

func readState(ctx context.Context, tx store.Tx, guild, user string) (int, *Mute, error) {
	row := tx.QueryRowContext(ctx, `SELECT warn_count, mute_moderator, mute_reason, mute_expires_at, mute_created_at
		FROM moderation_state WHERE guild = ? AND user = ?`, guild, user)
	var warnCount int
	var moderator, reason, expiresAt, createdAt sql.NullString
	if err := row.Scan(&warnCount, &moderator, &reason, &expiresAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("moderation: read state: %w", err)
	}
	var mute *Mute
	if moderator.Valid && expiresAt.Valid {
		expires, _ := time.Parse(time.RFC3339, expiresAt.String)
		created, _ := time.Parse(time.RFC3339, createdAt.String)
		mute = &Mute{Moderator: moderator.String, Reason: reason.String, ExpiresAt: expires, CreatedAt: created}
	}
	return warnCount, mute, nil
}

func writeWarnCount(ctx context.Context, tx store.Tx, guild, user string, count int, now time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO moderation_state (guild, user, warn_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild, user) DO UPDATE SET warn_count = excluded.warn_count, updated_at = excluded.updated_at`,
		guild, user, count, now.Format(time.RFC3339))
	return err
}

func setMute(ctx context.Context, tx store.Tx, guild, user, moderator, reason string, expiresAt, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE moderation_state SET mute_moderator = ?, mute_reason = ?, mute_expires_at = ?, mute_created_at = ?
		WHERE guild = ? AND user = ?`,
		moderator, reason, expiresAt.Format(time.RFC3339), createdAt.Format(time.RFC3339), guild, user)
	return err
}

func clearMute(ctx context.Context, tx store.Tx, guild, user string) error {
	_, err := tx.ExecContext(ctx, `UPDATE moderation_state SET mute_moderator = NULL, mute_reason = NULL, mute_expires_at = NULL, mute_created_at = NULL
		WHERE guild = ? AND user = ?`, guild, user)
	return err
}

func logHistory(ctx context.Context, tx store.Tx, guild, user, action string, before, after int, moderator, reason string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO warning_history
		(guild, user, action, warn_count_before, warn_count_after, moderator, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		guild, user, action, before, after, nullable(moderator), nullable(reason), now.Format(time.RFC3339))
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Warn implements spec.md §4.8's warn contract: increments the
// counter, logs history, and applies a mute when the new count
// crosses a configured threshold.
func (e *Engine) Warn(ctx context.Context, settings *config.GuildSettings, guild, user, moderator, reason string) (*WarnResult, error) {
	var result *WarnResult
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		before, _, err := readState(ctx, tx, guild, user)
		if err != nil {
			return err
		}
		after := before + 1
		if after > 4 {
			after = 4 // the counter saturates at 4; the warn is still logged
		}
		now := e.clock.Now()

		if err := writeWarnCount(ctx, tx, guild, user, after, now); err != nil {
			return fmt.Errorf("moderation: write warn count: %w", err)
		}
		if err := logHistory(ctx, tx, guild, user, ActionWarnIssued, before, after, moderator, reason, now); err != nil {
			return fmt.Errorf("moderation: log warn_issued: %w", err)
		}

		result = &WarnResult{WarnCount: after}

		if durationMin := settings.MuteDurationMinutes(after); durationMin > 0 {
			expiresAt := now.Add(time.Duration(durationMin) * time.Minute)
			if err := setMute(ctx, tx, guild, user, moderator, reason, expiresAt, now); err != nil {
				return fmt.Errorf("moderation: set mute: %w", err)
			}
			if err := logHistory(ctx, tx, guild, user, ActionMuteApplied, after, after, moderator, reason, now); err != nil {
				return fmt.Errorf("moderation: log mute_applied: %w", err)
			}
			result.MuteApplied = &Mute{Moderator: moderator, Reason: reason, ExpiresAt: expiresAt, CreatedAt: now}
		}
		return nil
	})
	return result, err
}

// Unwarn implements spec.md §4.8's unwarn contract: decrements with a
// floor of 0 and removes any active mute once the counter reaches 0.
func (e *Engine) Unwarn(ctx context.Context, guild, user, moderator, reason string) (int, error) {
	var newCount int
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		before, mute, err := readState(ctx, tx, guild, user)
		if err != nil {
			return err
		}
		newCount = before - 1
		if newCount < 0 {
			newCount = 0
		}
		now := e.clock.Now()

		if err := writeWarnCount(ctx, tx, guild, user, newCount, now); err != nil {
			return fmt.Errorf("moderation: write warn count: %w", err)
		}
		if err := logHistory(ctx, tx, guild, user, ActionWarnDecreased, before, newCount, moderator, reason, now); err != nil {
			return fmt.Errorf("moderation: log warn_decreased: %w", err)
		}

		if newCount == 0 && mute != nil {
			if err := clearMute(ctx, tx, guild, user); err != nil {
				return fmt.Errorf("moderation: clear mute: %w", err)
			}
			if err := logHistory(ctx, tx, guild, user, ActionMuteRemoved, newCount, newCount, moderator, reason, now); err != nil {
				return fmt.Errorf("moderation: log mute_removed: %w", err)
			}
		}
		return nil
	})
	return newCount, err
}

// DecayCandidate is one user whose warn counter decayed during a pass.
type DecayCandidate struct {
	Guild      string
	User       string
	CountBefore int
	CountAfter  int
}

// RunDecay implements spec.md §4.8's scheduler pass: any user whose
// moderation_state.updated_at is older than decay_days(warn_count) has
// their counter decremented by one.
func (e *Engine) RunDecay(ctx context.Context, settings *config.GuildSettings) ([]DecayCandidate, error) {
	now := e.clock.Now()
	rows, err := e.store.DB().QueryContext(ctx, `SELECT guild, user, warn_count, updated_at
		FROM moderation_state WHERE guild = ? AND warn_count > 0`, settings.Guild)
	if err != nil {
		return nil, fmt.Errorf("moderation: decay scan: %w", err)
	}
	type candidate struct {
		guild, user string
		count       int
		updatedAt   time.Time
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var updatedRaw string
		if err := rows.Scan(&c.guild, &c.user, &c.count, &updatedRaw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("moderation: decay scan row: %w", err)
		}
		c.updatedAt, _ = time.Parse(time.RFC3339, updatedRaw)
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var decayed []DecayCandidate
	for _, c := range candidates {
		deadline := c.updatedAt.Add(time.Duration(settings.DecayDays(c.count) * float64(24*time.Hour)))
		if now.Before(deadline) {
			continue
		}
		err := e.store.WithTx(ctx, func(tx store.Tx) error {
			after := c.count - 1
			if err := writeWarnCount(ctx, tx, c.guild, c.user, after, now); err != nil {
				return err
			}
			return logHistory(ctx, tx, c.guild, c.user, ActionWarnDecay, c.count, after, "", "", now)
		})
		if err != nil {
			return decayed, err
		}
		decayed = append(decayed, DecayCandidate{Guild: c.guild, User: c.user, CountBefore: c.count, CountAfter: c.count - 1})
	}
	return decayed, nil
}

// Appeal is an appeal row.
type Appeal struct {
	ID                int64
	Guild             string
	User              string
	AppealReason      string
	Moderator         string
	Status            string
	ModeratorDecision string
	CreatedAt         time.Time
	ReviewedAt        *time.Time
}

// Appeal statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// CreateAppeal implements spec.md §4.8's appeal contract: rejects a
// user with no warnings or an existing pending appeal.
func (e *Engine) CreateAppeal(ctx context.Context, guild, user, reason string) (*Appeal, error) {
	var warnCount int
	row := e.store.DB().QueryRowContext(ctx, `SELECT warn_count FROM moderation_state WHERE guild = ? AND user = ?`, guild, user)
	if err := row.Scan(&warnCount); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("moderation: read warn count: %w", err)
	}
	if warnCount <= 0 {
		return nil, apperr.StateConflict("user has no active warnings to appeal")
	}

	var pendingCount int
	row = e.store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM appeal WHERE guild = ? AND user = ? AND status = ?`, guild, user, StatusPending)
	if err := row.Scan(&pendingCount); err != nil {
		return nil, fmt.Errorf("moderation: count pending appeals: %w", err)
	}
	if pendingCount > 0 {
		return nil, apperr.StateConflict("an appeal is already pending")
	}

	now := e.clock.Now()
	var appeal *Appeal
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO appeal (guild, user, appeal_reason, status, created_at)
			VALUES (?, ?, ?, ?, ?)`, guild, user, reason, StatusPending, now.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert appeal: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := logHistory(ctx, tx, guild, user, ActionAppealCreated, warnCount, warnCount, "", reason, now); err != nil {
			return err
		}
		appeal = &Appeal{ID: id, Guild: guild, User: user, AppealReason: reason, Status: StatusPending, CreatedAt: now}
		return nil
	})
	return appeal, err
}

// Review implements spec.md §4.8's review contract: on approval,
// decrements the warn counter and removes any active mute.
func (e *Engine) Review(ctx context.Context, appealID int64, moderator, decision, note string) (*Appeal, error) {
	if decision != StatusApproved && decision != StatusDenied {
		return nil, apperr.InvalidInput("decision", "must be approved or denied")
	}

	var appeal Appeal
	row := e.store.DB().QueryRowContext(ctx, `SELECT id, guild, user, appeal_reason, status FROM appeal WHERE id = ?`, appealID)
	if err := row.Scan(&appeal.ID, &appeal.Guild, &appeal.User, &appeal.AppealReason, &appeal.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("appeal", appealID)
		}
		return nil, fmt.Errorf("moderation: read appeal: %w", err)
	}
	if appeal.Status != StatusPending {
		return nil, apperr.StateConflict("appeal has already been reviewed")
	}

	now := e.clock.Now()
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE appeal SET status = ?, moderator = ?, moderator_decision = ?, reviewed_at = ?
			WHERE id = ?`, decision, moderator, note, now.Format(time.RFC3339), appealID); err != nil {
			return fmt.Errorf("update appeal: %w", err)
		}
		before, mute, err := readState(ctx, tx, appeal.Guild, appeal.User)
		if err != nil {
			return err
		}
		if err := logHistory(ctx, tx, appeal.Guild, appeal.User, ActionAppealReviewed, before, before, moderator, note, now); err != nil {
			return err
		}

		if decision != StatusApproved {
			return nil
		}

		after := before - 1
		if after < 0 {
			after = 0
		}
		if err := writeWarnCount(ctx, tx, appeal.Guild, appeal.User, after, now); err != nil {
			return err
		}
		if err := logHistory(ctx, tx, appeal.Guild, appeal.User, ActionWarnDecreased, before, after, moderator, "appeal approved", now); err != nil {
			return err
		}
		if mute != nil {
			if err := clearMute(ctx, tx, appeal.Guild, appeal.User); err != nil {
				return err
			}
			if err := logHistory(ctx, tx, appeal.Guild, appeal.User, ActionMuteRemoved, after, after, moderator, "appeal approved", now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	appeal.Status = decision
	appeal.Moderator = moderator
	appeal.ModeratorDecision = note
	appeal.ReviewedAt = &now
	return &appeal, nil
}

// ManualMute applies a moderator-initiated mute independent of the
// warn counter (spec.md §6 "mute"), grounded on the original bot's
// standalone mute command rather than the warn-threshold escalation.
func (e *Engine) ManualMute(ctx context.Context, guild, user, moderator, reason string, duration time.Duration) (*Mute, error) {
	now := e.clock.Now()
	expiresAt := now.Add(duration)
	mute := &Mute{Moderator: moderator, Reason: reason, ExpiresAt: expiresAt, CreatedAt: now}
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		warnCount, _, err := readState(ctx, tx, guild, user)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO moderation_state (guild, user, warn_count, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(guild, user) DO NOTHING`, guild, user, warnCount, now.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("moderation: ensure state row: %w", err)
		}
		if err := setMute(ctx, tx, guild, user, moderator, reason, expiresAt, now); err != nil {
			return fmt.Errorf("moderation: set mute: %w", err)
		}
		return logHistory(ctx, tx, guild, user, ActionMuteApplied, warnCount, warnCount, moderator, reason, now)
	})
	if err != nil {
		return nil, err
	}
	return mute, nil
}

// ManualUnmute removes an active mute regardless of warn count
// (spec.md §6 "unmute"). Returns NotFound if the user has no active
// mute.
func (e *Engine) ManualUnmute(ctx context.Context, guild, user, moderator, reason string) error {
	now := e.clock.Now()
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		warnCount, mute, err := readState(ctx, tx, guild, user)
		if err != nil {
			return err
		}
		if mute == nil {
			return apperr.NotFound("mute", 0)
		}
		if err := clearMute(ctx, tx, guild, user); err != nil {
			return fmt.Errorf("moderation: clear mute: %w", err)
		}
		return logHistory(ctx, tx, guild, user, ActionMuteRemoved, warnCount, warnCount, moderator, reason, now)
	})
}

// ActiveMute returns the current mute for (guild, user), if any.
func (e *Engine) ActiveMute(ctx context.Context, guild, user string) (*Mute, error) {
	var mute *Mute
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		_, m, err := readState(ctx, tx, guild, user)
		mute = m
		return err
	})
	return mute, err
}
