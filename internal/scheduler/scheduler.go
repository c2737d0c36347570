// Package scheduler owns the periodic background tasks: temp-role
// expiry, event reminders, the weekly challenge post, trade escrow
// sweeps, voice-XP accrual, external feed polling, database backups,
// and rate-limiter cleanup.
//
// Every task interval is a functional With* option over a Config with
// sane defaults, and task outcomes are reported on a channel the
// caller drains instead of being printed directly, so a single
// goroutine loop runs the whole set cooperatively.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/config"
	"guildkeeper/internal/metrics"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/quest"
	"guildkeeper/internal/ratelimit"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/store"
	"guildkeeper/internal/trade"
	"guildkeeper/internal/voice"
)

// RoleRemover is the chat-platform side of temp-role expiry: removing
// a role from a member is outside this module's scope, so the
// scheduler calls back into whatever client owns that API.
type RoleRemover interface {
	RemoveRole(ctx context.Context, guild, user, roleID string) error
}

// Notifier is the chat-platform side of event reminders, the weekly
// challenge post, and external feed notifications.
type Notifier interface {
	NotifyGuild(ctx context.Context, guild, message string) error
	NotifyChannel(ctx context.Context, channelID, message string) error
}

// FeedFetcher resolves the latest external ID for one feed
// subscription. ok is false when there is nothing new to report.
type FeedFetcher interface {
	Latest(ctx context.Context, platform, externalID string) (latestID string, ok bool, err error)
}

// Config holds every tunable interval, with spec.md §4.9's defaults.
type Config struct {
	TempRoleInterval         time.Duration
	EventReminderInterval    time.Duration
	TradeSweepInterval       time.Duration
	VoiceAccrualInterval     time.Duration
	ExternalPollInterval     time.Duration
	WarnDecayInterval        time.Duration
	BackupInterval           time.Duration
	RateLimiterCleanupInterval time.Duration

	BackupDir     string
	MaxBackups    int
	WeeklyQuestGuaranteed int
}

// DefaultConfig returns spec.md §4.9's periods.
func DefaultConfig() Config {
	return Config{
		TempRoleInterval:           time.Hour,
		EventReminderInterval:      time.Hour,
		TradeSweepInterval:         time.Minute,
		VoiceAccrualInterval:       5 * time.Minute,
		ExternalPollInterval:       15 * time.Minute,
		WarnDecayInterval:          time.Hour,
		BackupInterval:             6 * time.Hour,
		RateLimiterCleanupInterval: 10 * time.Minute,
		BackupDir:                  "./backups",
		MaxBackups:                 10,
	}
}

// Option configures a Scheduler via functional options.
type Option func(*Config)

func WithTempRoleInterval(d time.Duration) Option { return func(c *Config) { c.TempRoleInterval = d } }
func WithEventReminderInterval(d time.Duration) Option {
	return func(c *Config) { c.EventReminderInterval = d }
}
func WithTradeSweepInterval(d time.Duration) Option { return func(c *Config) { c.TradeSweepInterval = d } }
func WithVoiceAccrualInterval(d time.Duration) Option {
	return func(c *Config) { c.VoiceAccrualInterval = d }
}
func WithExternalPollInterval(d time.Duration) Option {
	return func(c *Config) { c.ExternalPollInterval = d }
}
func WithWarnDecayInterval(d time.Duration) Option { return func(c *Config) { c.WarnDecayInterval = d } }
func WithBackupInterval(d time.Duration) Option    { return func(c *Config) { c.BackupInterval = d } }
func WithRateLimiterCleanupInterval(d time.Duration) Option {
	return func(c *Config) { c.RateLimiterCleanupInterval = d }
}
func WithBackupDir(dir string) Option { return func(c *Config) { c.BackupDir = dir } }
func WithMaxBackups(n int) Option     { return func(c *Config) { c.MaxBackups = n } }

// Report is one task outcome, sent over the channel Reports() returns.
type Report struct {
	Timestamp time.Time
	Task      string
	Detail    string
	Err       error
}

// Scheduler owns every periodic task and the engines they drive.
type Scheduler struct {
	store      *store.Store
	clock      clock.Clock
	rng        rng.Source
	cfg        Config
	trade      *trade.Engine
	moderation *moderation.Engine
	quest      *quest.Engine
	voice      *voice.Tracker
	limiter    *ratelimit.Limiter
	roles      RoleRemover
	notifier   Notifier
	feeds      FeedFetcher

	reports chan Report
	cron    *cron.Cron
}

// Deps bundles the already-constructed engines a Scheduler drives.
// All fields are required except roles/notifier/feeds, which may be
// nil in tests that don't exercise chat-platform callbacks.
type Deps struct {
	Store      *store.Store
	Clock      clock.Clock
	RNG        rng.Source
	Trade      *trade.Engine
	Moderation *moderation.Engine
	Quest      *quest.Engine
	Voice      *voice.Tracker
	Limiter    *ratelimit.Limiter
	Roles      RoleRemover
	Notifier   Notifier
	Feeds      FeedFetcher
}

func New(d Deps, opts ...Option) *Scheduler {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Scheduler{
		store: d.Store, clock: d.Clock, rng: d.RNG, cfg: cfg,
		trade: d.Trade, moderation: d.Moderation, quest: d.Quest,
		voice: d.Voice, limiter: d.Limiter,
		roles: d.Roles, notifier: d.Notifier, feeds: d.Feeds,
		reports: make(chan Report, 32),
	}
}

// Reports returns the channel every task outcome is published on. The
// caller must drain it or Run will eventually block.
func (s *Scheduler) Reports() <-chan Report { return s.reports }

type taskSignal struct {
	name string
	fn   func(ctx context.Context) error
}

// Run blocks until ctx is canceled, driving every configured task.
// Tasks tick independently but all execute on a single cooperative
// loop: two tasks due on the same tick run sequentially, never
// concurrently, and no task holds a store transaction across a wait
// (spec.md §4.9). ready gates the first execution of every task;
// pass a already-closed channel to start immediately.
func (s *Scheduler) Run(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ready:
	case <-ctx.Done():
		return
	}

	sigCh := make(chan taskSignal, 16)
	var wg sync.WaitGroup

	tick := func(name string, interval time.Duration, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case sigCh <- taskSignal{name: name, fn: fn}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	tick("temp_role_expiry", s.cfg.TempRoleInterval, s.runTempRoleExpiry)
	tick("event_reminders", s.cfg.EventReminderInterval, s.runEventReminders)
	tick("trade_sweeper", s.cfg.TradeSweepInterval, s.runTradeSweeper)
	tick("voice_xp_accrual", s.cfg.VoiceAccrualInterval, s.runVoiceAccrual)
	tick("external_poller", s.cfg.ExternalPollInterval, s.runExternalPoller)
	tick("warn_decay", s.cfg.WarnDecayInterval, s.runWarnDecay)
	tick("db_backup", s.cfg.BackupInterval, s.runBackup)
	tick("rate_limiter_cleanup", s.cfg.RateLimiterCleanupInterval, s.runRateLimiterCleanup)

	s.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := s.cron.AddFunc("0 9 * * MON", func() {
		select {
		case sigCh <- taskSignal{name: "weekly_challenge", fn: s.runWeeklyChallenge}:
		case <-ctx.Done():
		}
	}); err != nil {
		s.publish(Report{Task: "scheduler", Err: fmt.Errorf("register weekly challenge cron: %w", err)})
	} else {
		s.cron.Start()
		defer s.cron.Stop()
	}

	go func() {
		wg.Wait()
		close(sigCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			start := s.clock.Now()
			err := sig.fn(ctx)
			metrics.ObserveSchedulerTask(sig.name, s.clock.Now().Sub(start).Seconds(), err)
			s.publish(Report{Task: sig.name, Err: err})
		}
	}
}

func (s *Scheduler) publish(r Report) {
	r.Timestamp = s.clock.Now()
	select {
	case s.reports <- r:
	default:
		// drop rather than block the cooperative loop; the caller is
		// expected to keep Reports() drained.
	}
}

func (s *Scheduler) guilds(ctx context.Context) ([]string, error) {
	return config.ListGuilds(ctx, s.store)
}
