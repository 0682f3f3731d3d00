package runs

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/gametester/runctl/pkg/api"
)

// run is the controller owned record of one run id. Every field is guarded
// by the controller mutex, callers only ever see snapshots.
type run struct {
	id     string
	seq    uint64
	useRAG bool

	state      api.LifecycleState
	phase      api.PollPhase
	statusText string
	err        string

	// attempts counts the status checks that got an answer or an error,
	// counted is the subset that counts toward the ceiling
	attempts int
	counted  int
	progress int

	submittedAt  time.Time
	lastPolledAt *time.Time
	finishedAt   *time.Time
	report       *api.RunReport

	timer  clock.Timer
	cancel context.CancelFunc
	done   chan struct{}
}

func newRun(id string, seq uint64, useRAG bool, now time.Time) *run {
	return &run{
		id:          id,
		seq:         seq,
		useRAG:      useRAG,
		state:       api.LifecycleSubmitted,
		phase:       api.PhaseIdle,
		submittedAt: now,
		done:        make(chan struct{}),
	}
}

// transition moves the lifecycle state forward.
func (r *run) transition(next api.LifecycleState) error {
	if r.state == next {
		return nil
	}
	if !r.state.CanTransitionTo(next) {
		return fmt.Errorf("invalid lifecycle transition for run %s: %s -> %s", r.id, r.state, next)
	}
	r.state = next
	return nil
}

func (r *run) finish(state api.LifecycleState, phase api.PollPhase, now time.Time) error {
	if err := r.transition(state); err != nil {
		return err
	}
	r.phase = phase
	r.finishedAt = &now
	return nil
}

func (r *run) snapshot() api.RunSnapshot {
	s := api.RunSnapshot{
		RunID:          r.id,
		LifecycleState: r.state,
		Phase:          r.phase,
		StatusText:     r.statusText,
		Error:          r.err,
		Attempts:       r.attempts,
		Progress:       r.progress,
		UseRAG:         r.useRAG,
		SubmittedAt:    r.submittedAt,
		Report:         r.report.Clone(),
	}
	if r.lastPolledAt != nil {
		t := *r.lastPolledAt
		s.LastPolledAt = &t
	}
	if r.finishedAt != nil {
		t := *r.finishedAt
		s.FinishedAt = &t
	}
	return s
}
