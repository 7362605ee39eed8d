package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters exposed on /metrics.
var (
	// SpendsTotal counts spend attempts by outcome (ok, insufficient, error).
	SpendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_spends_total",
		Help: "Spend attempts by outcome.",
	}, []string{"outcome"})

	// TokensSpentTotal counts credits actually deducted.
	TokensSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_tokens_spent_total",
		Help: "Credits deducted from user ledgers.",
	})

	// SettlementsTotal counts settlement applications by result
	// (applied, duplicate, failed, not_found, error).
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlement notifications by result.",
	}, []string{"result"})

	// SweepUsersTotal counts per-user sweep outcomes by sweep and result.
	SweepUsersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_users_total",
		Help: "Per-user sweep outcomes.",
	}, []string{"sweep", "result"})

	// SweepDuration observes wall time of full sweep runs.
	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of full sweep runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"sweep"})
)
