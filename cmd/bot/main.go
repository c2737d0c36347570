// Command bot wires every engine, the scheduler, and the HTTP API
// into one running process: load config, dial dependencies, launch
// the background task loop, drain its report channel, serve the
// dashboard HTTP surface, and shut down cleanly on signal.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"guildkeeper/internal/clock"
	appconfig "guildkeeper/internal/config"
	"guildkeeper/internal/httpapi"
	"guildkeeper/internal/ledger"
	"guildkeeper/internal/lock"
	"guildkeeper/internal/minigame"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/quest"
	"guildkeeper/internal/ratelimit"
	"guildkeeper/internal/rng"
	"guildkeeper/internal/scheduler"
	"guildkeeper/internal/shop"
	"guildkeeper/internal/store"
	"guildkeeper/internal/trade"
	"guildkeeper/internal/voice"

	"guildkeeper/internal/commands"
)

func main() {
	envPath := os.Getenv("GUILDKEEPER_ENV_FILE")
	if envPath == "" {
		envPath = ".env"
	}
	cfg, err := appconfig.Load(envPath)
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.OpenWithRecovery(ctx, cfg.DatabasePath, cfg.BackupDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer s.Close()

	if err := s.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("seed catalog")
	}

	realClock := clock.Real{}
	realRNG := rng.NewReal(time.Now().UnixNano())
	locks := lock.NewUserLock()

	l := ledger.New(s, realClock)
	q := quest.New(s, l, realClock, realRNG)
	tr := trade.New(s, l, realClock, locks)
	sh := shop.New(s, l, realClock)
	mg := minigame.New(s, l, realClock, realRNG, locks)
	mod := moderation.New(s, realClock)
	voiceTracker := voice.New(s, l, realClock, realRNG)
	limiter := ratelimit.New(ratelimit.DefaultConfig(), realClock)
	limiter.SetCommandCooldown(commands.MessageXPCommand, 60*time.Second)

	deps := commands.New(s, realClock, l, q, tr, sh, mg, mod, limiter, locks)
	_ = deps // exposed for a chat-platform client to embed; no client is wired in this module

	sched := scheduler.New(scheduler.Deps{
		Store:      s,
		Clock:      realClock,
		RNG:        realRNG,
		Trade:      tr,
		Moderation: mod,
		Quest:      q,
		Voice:      voiceTracker,
		Limiter:    limiter,
	}, scheduler.WithBackupDir(cfg.BackupDir), scheduler.WithMaxBackups(cfg.MaxBackups))

	go drainReports(log, sched.Reports())

	ready := make(chan struct{})
	close(ready)
	go sched.Run(ctx, ready)

	httpServer := httpapi.New(s, realClock, log, httpapi.Config{
		APIKey:      cfg.HTTPAPISecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpServer.Router())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPAPIPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http api terminated")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http api shutdown")
	}
}

func drainReports(log zerolog.Logger, reports <-chan scheduler.Report) {
	for r := range reports {
		ev := log.Info()
		if r.Err != nil {
			ev = log.Error().Err(r.Err)
		}
		ev.Str("task", r.Task).Time("at", r.Timestamp).Msg("scheduler task")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
