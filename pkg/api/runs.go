package api

import (
	"fmt"
	"time"
)

// LifecycleState represents the lifecycle of a run as seen by the controller
type LifecycleState string

const (
	LifecycleSubmitted LifecycleState = "submitted"
	LifecyclePolling   LifecycleState = "polling"
	LifecycleCompleted LifecycleState = "completed"
	LifecycleFailed    LifecycleState = "failed"
	// LifecycleUnknown is used when the controller stopped observing the run
	// without a terminal answer from the backend (timeout or cancellation).
	LifecycleUnknown LifecycleState = "unknown"
)

func (s LifecycleState) String() string {
	return string(s)
}

// IsTerminal returns true if the run will never change state again.
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case LifecycleCompleted, LifecycleFailed, LifecycleUnknown:
		return true
	}
	return false
}

// lifecycleTransitions only moves forward, a terminal state has no entry.
var lifecycleTransitions = map[LifecycleState][]LifecycleState{
	LifecycleSubmitted: {LifecyclePolling, LifecycleUnknown},
	LifecyclePolling:   {LifecycleCompleted, LifecycleFailed, LifecycleUnknown},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	for _, allowed := range lifecycleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func GetLifecycleState(s string) (LifecycleState, error) {
	switch s {
	case string(LifecycleSubmitted):
		return LifecycleSubmitted, nil
	case string(LifecyclePolling):
		return LifecyclePolling, nil
	case string(LifecycleCompleted):
		return LifecycleCompleted, nil
	case string(LifecycleFailed):
		return LifecycleFailed, nil
	case string(LifecycleUnknown):
		return LifecycleUnknown, nil
	default:
		return LifecycleState(s), fmt.Errorf("invalid lifecycle state: %s", s)
	}
}

// PollPhase is the state of the polling scheduler for one run
type PollPhase string

const (
	PhaseIdle              PollPhase = "idle"
	PhaseAwaitingFirstPoll PollPhase = "awaiting_first_poll"
	PhasePolling           PollPhase = "polling"
	PhaseCompleted         PollPhase = "completed"
	PhaseFailed            PollPhase = "failed"
	PhaseTimedOut          PollPhase = "timed_out"
	PhaseCancelled         PollPhase = "cancelled"
)

// IsActive returns true while a polling loop owns the run.
func (p PollPhase) IsActive() bool {
	return p == PhaseAwaitingFirstPoll || p == PhasePolling
}

// WorkflowParams are the user supplied parameters of a submission
type WorkflowParams struct {
	URL    string `json:"url" validate:"required,url"`
	Goal   string `json:"goal" validate:"required"`
	UseRAG bool   `json:"use_rag"`
}

// RunSnapshot is an immutable copy of a run record
type RunSnapshot struct {
	RunID          string         `json:"run_id"`
	LifecycleState LifecycleState `json:"lifecycle_state"`
	Phase          PollPhase      `json:"phase"`
	StatusText     string         `json:"status_text"`
	Error          string         `json:"error,omitempty"`
	Attempts       int            `json:"attempts"`
	Progress       int            `json:"progress,omitempty"`
	UseRAG         bool           `json:"use_rag"`
	SubmittedAt    time.Time      `json:"submitted_at"`
	LastPolledAt   *time.Time     `json:"last_polled_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	Report         *RunReport     `json:"report,omitempty"`
}

// RunSnapshotList represents list of run snapshots with pagination
type RunSnapshotList struct {
	Page
	Items []RunSnapshot `json:"items"`
}

// ControllerStatus is the controller wide status line and run counts
type ControllerStatus struct {
	StatusText   string         `json:"status_text"`
	CurrentRunID string         `json:"current_run_id,omitempty"`
	ActiveRuns   int            `json:"active_runs"`
	Runs         map[string]int `json:"runs"`
}
