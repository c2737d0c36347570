// Package metrics exposes the operational counters and gauges
// scraped by the /metrics endpoint (spec.md §6). Grounded on the
// near-ubiquitous promauto registration style across the pack's
// services (see DESIGN.md's dependency table).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Name:      "commands_total",
		Help:      "Commands processed, by name and outcome.",
	}, []string{"command", "outcome"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guildkeeper",
		Name:      "command_duration_seconds",
		Help:      "Command handling latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})

	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Name:      "ledger_transactions_total",
		Help:      "Ledger transactions recorded, by currency and kind.",
	}, []string{"currency", "kind"})

	SchedulerTaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Name:      "scheduler_task_runs_total",
		Help:      "Scheduler task executions, by task and outcome.",
	}, []string{"task", "outcome"})

	SchedulerTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guildkeeper",
		Name:      "scheduler_task_duration_seconds",
		Help:      "Scheduler task execution latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate limiter, by scope.",
	}, []string{"scope"})

	ActiveVoiceSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "guildkeeper",
		Name:      "active_voice_sessions",
		Help:      "Currently tracked voice sessions across all guilds.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Name:      "http_requests_total",
		Help:      "HTTP API requests, by route and status class.",
	}, []string{"route", "status"})
)

// ObserveSchedulerTask records one task's outcome and latency in a
// single call so scheduler.Run's report loop stays a one-liner.
func ObserveSchedulerTask(task string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SchedulerTaskRuns.WithLabelValues(task, outcome).Inc()
	SchedulerTaskDuration.WithLabelValues(task).Observe(seconds)
}
