package domain

// RunStatus is the lifecycle state of a remote assistant run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCancelling RunStatus = "cancelling"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
	RunStatusExpired    RunStatus = "expired"
	RunStatusUnknown    RunStatus = "unknown"

	// RunStatusTimedOut is never reported by the provider. The run driver
	// assigns it when the poll budget or the wall-clock deadline runs out.
	RunStatusTimedOut RunStatus = "timed_out"
)

// ParseRunStatus maps a provider status string onto a RunStatus.
// Anything unrecognised (e.g. "requires_action") becomes RunStatusUnknown.
func ParseRunStatus(s string) RunStatus {
	switch st := RunStatus(s); st {
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling,
		RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return st
	default:
		return RunStatusUnknown
	}
}

// IsActive returns true while the run may still change state and should be polled.
func (s RunStatus) IsActive() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states the provider will never leave.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	default:
		return false
	}
}
