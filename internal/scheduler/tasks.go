package scheduler

import (
	"context"
	"fmt"
	"time"

	"guildkeeper/internal/config"
)

// runTempRoleExpiry implements spec.md §4.9's temp-role-expiry task:
// delete rows whose expires_at has passed and remove the role
// externally.
func (s *Scheduler) runTempRoleExpiry(ctx context.Context) error {
	now := s.clock.Now().Format(time.RFC3339)
	rows, err := s.store.DB().QueryContext(ctx, `SELECT guild, user, role_id FROM temp_role WHERE expires_at <= ?`, now)
	if err != nil {
		return fmt.Errorf("temp_role_expiry: query: %w", err)
	}
	type row struct{ guild, user, roleID string }
	var expired []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.guild, &r.user, &r.roleID); err != nil {
			rows.Close()
			return fmt.Errorf("temp_role_expiry: scan: %w", err)
		}
		expired = append(expired, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range expired {
		if _, err := s.store.DB().ExecContext(ctx, `DELETE FROM temp_role WHERE guild = ? AND user = ? AND role_id = ?`, r.guild, r.user, r.roleID); err != nil {
			return fmt.Errorf("temp_role_expiry: delete: %w", err)
		}
		if s.roles != nil {
			if err := s.roles.RemoveRole(ctx, r.guild, r.user, r.roleID); err != nil {
				return fmt.Errorf("temp_role_expiry: remove role: %w", err)
			}
		}
	}
	return nil
}

// runEventReminders implements spec.md §4.9's reminder windows: 24h
// when 23h<=delta<=25h, 1h when 30m<=delta<=90m, deduped via
// event_reminder_sent.
func (s *Scheduler) runEventReminders(ctx context.Context) error {
	now := s.clock.Now()
	rows, err := s.store.DB().QueryContext(ctx, `SELECT id, guild, name, starts_at FROM scheduled_event`)
	if err != nil {
		return fmt.Errorf("event_reminders: query: %w", err)
	}
	type row struct {
		id       int64
		guild    string
		name     string
		startsAt time.Time
	}
	var events []row
	for rows.Next() {
		var id int64
		var guild, name, startsRaw string
		if err := rows.Scan(&id, &guild, &name, &startsRaw); err != nil {
			rows.Close()
			return fmt.Errorf("event_reminders: scan: %w", err)
		}
		startsAt, err := time.Parse(time.RFC3339, startsRaw)
		if err != nil {
			rows.Close()
			return fmt.Errorf("event_reminders: parse starts_at: %w", err)
		}
		events = append(events, row{id, guild, name, startsAt})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range events {
		delta := e.startsAt.Sub(now)
		if delta >= 23*time.Hour && delta <= 25*time.Hour {
			if err := s.maybeRemind(ctx, e.guild, e.id, "24h", fmt.Sprintf("%q starts in about 24 hours", e.name)); err != nil {
				return err
			}
		}
		if delta >= 30*time.Minute && delta <= 90*time.Minute {
			if err := s.maybeRemind(ctx, e.guild, e.id, "1h", fmt.Sprintf("%q starts in about an hour", e.name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) maybeRemind(ctx context.Context, guild string, eventID int64, reminderType, message string) error {
	var exists int
	row := s.store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM event_reminder_sent WHERE guild = ? AND event_id = ? AND reminder_type = ?`, guild, eventID, reminderType)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("event_reminders: dedup check: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyGuild(ctx, guild, message); err != nil {
			return fmt.Errorf("event_reminders: notify: %w", err)
		}
	}

	_, err := s.store.DB().ExecContext(ctx, `INSERT INTO event_reminder_sent (guild, event_id, reminder_type, sent_at) VALUES (?, ?, ?, ?)`,
		guild, eventID, reminderType, s.clock.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("event_reminders: record sent: %w", err)
	}
	return nil
}

// runWeeklyChallenge implements spec.md §4.9's Monday 09:00 UTC task:
// select one random active weekly template per guild, post it, and
// record it in weekly_challenge_history.
func (s *Scheduler) runWeeklyChallenge(ctx context.Context) error {
	guilds, err := s.guilds(ctx)
	if err != nil {
		return fmt.Errorf("weekly_challenge: list guilds: %w", err)
	}
	for _, guild := range guilds {
		rows, err := s.store.DB().QueryContext(ctx, `SELECT id, name, description FROM quest_template WHERE type = 'weekly' AND active = 1`)
		if err != nil {
			return fmt.Errorf("weekly_challenge: query templates: %w", err)
		}
		type tmpl struct {
			id          int64
			name, descr string
		}
		var templates []tmpl
		for rows.Next() {
			var t tmpl
			if err := rows.Scan(&t.id, &t.name, &t.descr); err != nil {
				rows.Close()
				return fmt.Errorf("weekly_challenge: scan template: %w", err)
			}
			templates = append(templates, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(templates) == 0 {
			continue
		}

		chosen := templates[s.rng.Intn(len(templates))]
		now := s.clock.Now()
		if _, err := s.store.DB().ExecContext(ctx, `INSERT INTO weekly_challenge_history (guild, quest_id, posted_at) VALUES (?, ?, ?)`,
			guild, chosen.id, now.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("weekly_challenge: record history: %w", err)
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyGuild(ctx, guild, fmt.Sprintf("This week's challenge: %s — %s", chosen.name, chosen.descr)); err != nil {
				return fmt.Errorf("weekly_challenge: notify: %w", err)
			}
		}
	}
	return nil
}

// runTradeSweeper implements spec.md §4.9's 1-minute trade-escrow
// sweep across every guild.
func (s *Scheduler) runTradeSweeper(ctx context.Context) error {
	guilds, err := s.guilds(ctx)
	if err != nil {
		return fmt.Errorf("trade_sweeper: list guilds: %w", err)
	}
	for _, guild := range guilds {
		_, failures := s.trade.SweepCompletions(ctx, guild)
		if len(failures) > 0 {
			return fmt.Errorf("trade_sweeper: %d failures in guild %s: %w", len(failures), guild, failures[0])
		}
	}
	return nil
}

// runVoiceAccrual implements spec.md §4.9's 5-minute voice-XP task.
func (s *Scheduler) runVoiceAccrual(ctx context.Context) error {
	_, err := s.voice.AccrueAll(ctx)
	return err
}

// runExternalPoller implements spec.md §4.9's feed poll: dedupe by
// last-seen ID per channel, emit a notification on change.
func (s *Scheduler) runExternalPoller(ctx context.Context) error {
	if s.feeds == nil {
		return nil
	}
	rows, err := s.store.DB().QueryContext(ctx, `SELECT id, platform, external_id, display_name, last_seen_id, channel_id
		FROM feed_subscription WHERE active = 1`)
	if err != nil {
		return fmt.Errorf("external_poller: query: %w", err)
	}
	type sub struct {
		id                                              int64
		platform, externalID, displayName, lastSeen, channelID string
	}
	var subs []sub
	for rows.Next() {
		var sb sub
		if err := rows.Scan(&sb.id, &sb.platform, &sb.externalID, &sb.displayName, &sb.lastSeen, &sb.channelID); err != nil {
			rows.Close()
			return fmt.Errorf("external_poller: scan: %w", err)
		}
		subs = append(subs, sb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, sb := range subs {
		latest, ok, err := s.feeds.Latest(ctx, sb.platform, sb.externalID)
		if err != nil {
			return fmt.Errorf("external_poller: fetch %s/%s: %w", sb.platform, sb.externalID, err)
		}
		if !ok || latest == sb.lastSeen {
			continue
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyChannel(ctx, sb.channelID, fmt.Sprintf("%s is live/posted: %s", sb.displayName, latest)); err != nil {
				return fmt.Errorf("external_poller: notify: %w", err)
			}
		}
		if _, err := s.store.DB().ExecContext(ctx, `UPDATE feed_subscription SET last_seen_id = ? WHERE id = ?`, latest, sb.id); err != nil {
			return fmt.Errorf("external_poller: update last_seen_id: %w", err)
		}
	}
	return nil
}

// runWarnDecay implements spec.md §4.8's scheduler pass across every
// guild.
func (s *Scheduler) runWarnDecay(ctx context.Context) error {
	guilds, err := s.guilds(ctx)
	if err != nil {
		return fmt.Errorf("warn_decay: list guilds: %w", err)
	}
	for _, guild := range guilds {
		settings, err := config.LoadGuildSettings(ctx, s.store, guild)
		if err != nil {
			return fmt.Errorf("warn_decay: load settings: %w", err)
		}
		if _, err := s.moderation.RunDecay(ctx, settings); err != nil {
			return fmt.Errorf("warn_decay: %s: %w", guild, err)
		}
	}
	return nil
}

// runBackup implements spec.md §4.9's backup task: snapshot + rotate.
func (s *Scheduler) runBackup(ctx context.Context) error {
	_, err := s.store.Backup(ctx, s.cfg.BackupDir, s.cfg.MaxBackups)
	return err
}

// runRateLimiterCleanup implements spec.md §4.9's stale-counter prune.
func (s *Scheduler) runRateLimiterCleanup(ctx context.Context) error {
	s.limiter.Cleanup()
	return nil
}
