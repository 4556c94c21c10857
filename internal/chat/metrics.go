package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes.
const (
	outcomeCompleted = "completed"
	outcomeDegraded  = "degraded"
	outcomeCooldown  = "cooldown"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "turns_total",
		Help:      "Chat turns by outcome.",
	}, []string{"outcome"})

	runStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "run_final_status_total",
		Help:      "Assistant runs by the status the driver ended on.",
	}, []string{"status"})

	runPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chat",
		Name:      "run_poll_attempts",
		Help:      "Poll attempts spent per assistant run.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 30},
	})

	threadsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "threads_created_total",
		Help:      "Remote threads created.",
	})

	replayFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "replay_append_failures_total",
		Help:      "History messages that failed to replay into a new thread.",
	})

	storeWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "store_write_failures_total",
		Help:      "Persistence failures after a reply was produced.",
	}, []string{"op"})
)
