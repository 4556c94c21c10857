package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/assistant-chat/internal/assistant"
	"github.com/ashureev/assistant-chat/internal/domain"
)

const (
	defaultPollInterval    = 1500 * time.Millisecond
	defaultMaxPollAttempts = 30
)

// Sleeper waits for d, returning early with ctx.Err() if ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunClient is the part of the thread client the driver needs.
type RunClient interface {
	StartRun(ctx context.Context, threadID string, params assistant.RunParams) (*assistant.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error)
}

// RunDriverConfig configures polling. Zero values take the defaults.
type RunDriverConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	Sleep        Sleeper
}

// RunDriver starts a run and polls it to a terminal state with a fixed
// interval and a bounded attempt budget.
type RunDriver struct {
	runs        RunClient
	interval    time.Duration
	maxAttempts int
	sleep       Sleeper
	logger      *slog.Logger
}

// RunState tracks one remote run through the polling loop.
type RunState struct {
	ID         string
	Status     domain.RunStatus
	Attempts   int
	PollErrors int
	LastError  *assistant.RunError
	// Err is the most recent call failure (start or poll), if any.
	Err error
}

// Started reports whether the provider accepted the run.
func (s RunState) Started() bool {
	return s.ID != ""
}

// NewRunDriver creates a driver.
func NewRunDriver(runs RunClient, cfg RunDriverConfig, logger *slog.Logger) *RunDriver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxPollAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunDriver{
		runs:        runs,
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxAttempts,
		sleep:       cfg.Sleep,
		logger:      logger,
	}
}

// Drive starts a run on the thread and polls it. A run the provider refused
// to start is reported as failed with Err set and no ID.
func (d *RunDriver) Drive(ctx context.Context, threadID string, params assistant.RunParams) RunState {
	run, err := d.runs.StartRun(ctx, threadID, params)
	if err != nil {
		d.logger.Error("Failed to start assistant run", "thread_id", threadID, "error", err)
		return RunState{Status: domain.RunStatusFailed, Err: err}
	}
	return d.Poll(ctx, threadID, run)
}

// Poll re-fetches the run while it is active. It exits on the first
// non-active status, or with RunStatusTimedOut once maxAttempts polls have
// been spent or ctx is done. A failed fetch consumes an attempt and the loop
// carries on with the last known status.
func (d *RunDriver) Poll(ctx context.Context, threadID string, run *assistant.Run) RunState {
	st := RunState{ID: run.ID, Status: run.Status, LastError: run.LastError}

	for st.Status.IsActive() {
		if st.Attempts >= d.maxAttempts {
			d.logger.Warn("Assistant run poll budget exhausted",
				"thread_id", threadID,
				"run_id", st.ID,
				"attempts", st.Attempts,
				"last_status", st.Status)
			st.Status = domain.RunStatusTimedOut
			return st
		}

		if err := d.sleep(ctx, d.interval); err != nil {
			d.logger.Warn("Assistant run deadline reached",
				"thread_id", threadID,
				"run_id", st.ID,
				"attempts", st.Attempts,
				"error", err)
			st.Status = domain.RunStatusTimedOut
			st.Err = err
			return st
		}
		st.Attempts++

		polled, err := d.runs.GetRun(ctx, threadID, st.ID)
		if err != nil {
			st.PollErrors++
			st.Err = err
			d.logger.Warn("Assistant run poll failed",
				"thread_id", threadID,
				"run_id", st.ID,
				"attempt", st.Attempts,
				"error", err)
			continue
		}
		st.Status = polled.Status
		st.LastError = polled.LastError
	}

	return st
}
