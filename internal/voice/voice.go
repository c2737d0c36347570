// Package voice tracks voice-channel sessions and awards XP for time
// spent connected, spec.md §4.9's voice-XP accrual task. Grounded on
// the quest engine's clock/rng-injected style (internal/quest) since
// the original bot has no standalone voice module to imitate directly.
package voice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/store"
)

// Tracker records join/leave events and accrues XP for elapsed whole
// hours connected.
type Tracker struct {
	store  *store.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	rng    rng.Source
}

func New(s *store.Store, l *ledger.Ledger, c clock.Clock, r rng.Source) *Tracker {
	return &Tracker{store: s, ledger: l, clock: c, rng: r}
}

// Join starts tracking a voice session for (guild, user). Replaces
// any existing session for that user (a user can only be in one
// channel at a time).
func (t *Tracker) Join(ctx context.Context, guild, user, channelID string) error {
	now := t.clock.Now().Format(time.RFC3339)
	_, err := t.store.DB().ExecContext(ctx, `INSERT INTO voice_session (guild, user, channel_id, joined_at, last_accrued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild, user) DO UPDATE SET channel_id = excluded.channel_id, joined_at = excluded.joined_at, last_accrued_at = excluded.last_accrued_at`,
		guild, user, channelID, now, now)
	if err != nil {
		return fmt.Errorf("voice: join: %w", err)
	}
	return nil
}

// Leave accrues any whole hours elapsed since the last accrual and
// stops tracking the session.
func (t *Tracker) Leave(ctx context.Context, guild, user string) error {
	if _, err := t.accrueOne(ctx, guild, user); err != nil {
		return err
	}
	_, err := t.store.DB().ExecContext(ctx, `DELETE FROM voice_session WHERE guild = ? AND user = ?`, guild, user)
	if err != nil {
		return fmt.Errorf("voice: leave: %w", err)
	}
	return nil
}

// AccrueAll implements spec.md §4.9's 5-minute voice-XP accrual task:
// for every tracked session, award randint(15,25)*fullHoursElapsed XP
// and advance the session clock by that many whole hours.
func (t *Tracker) AccrueAll(ctx context.Context) (int, error) {
	rows, err := t.store.DB().QueryContext(ctx, `SELECT guild, user FROM voice_session`)
	if err != nil {
		return 0, fmt.Errorf("voice: list sessions: %w", err)
	}
	type key struct{ guild, user string }
	var sessions []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.guild, &k.user); err != nil {
			rows.Close()
			return 0, err
		}
		sessions = append(sessions, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	accrued := 0
	for _, s := range sessions {
		did, err := t.accrueOne(ctx, s.guild, s.user)
		if err != nil {
			return accrued, err
		}
		if did {
			accrued++
		}
	}
	return accrued, nil
}

func (t *Tracker) accrueOne(ctx context.Context, guild, user string) (bool, error) {
	var lastAccruedRaw string
	row := t.store.DB().QueryRowContext(ctx, `SELECT last_accrued_at FROM voice_session WHERE guild = ? AND user = ?`, guild, user)
	if err := row.Scan(&lastAccruedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("voice: read session: %w", err)
	}

	lastAccrued, err := time.Parse(time.RFC3339, lastAccruedRaw)
	if err != nil {
		return false, fmt.Errorf("voice: parse last_accrued_at: %w", err)
	}

	fullHours := int(t.clock.Now().Sub(lastAccrued) / time.Hour)
	if fullHours <= 0 {
		return false, nil
	}

	perHour := float64(15 + t.rng.Intn(11)) // [15,25] inclusive
	xp := perHour * float64(fullHours)

	if _, err := t.ledger.AddXP(ctx, guild, user, xp, ledger.KindVoiceXP, nil, "", nil); err != nil {
		return false, err
	}

	advanced := lastAccrued.Add(time.Duration(fullHours) * time.Hour)
	if _, err := t.store.DB().ExecContext(ctx, `UPDATE voice_session SET last_accrued_at = ? WHERE guild = ? AND user = ?`,
		advanced.Format(time.RFC3339), guild, user); err != nil {
		return false, fmt.Errorf("voice: advance session clock: %w", err)
	}
	return true, nil
}
