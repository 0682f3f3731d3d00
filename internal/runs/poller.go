package runs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/metrics"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

type tickOutcome int

const (
	tickContinue tickOutcome = iota
	tickCompleted
	tickStopped
)

const unknownFailure = "unknown error"

// poll owns the polling of one run. Ticks are strictly sequential: the timer
// is re-armed only once the previous answer has been applied.
func (c *Controller) poll(ctx context.Context, r *run) {
	runID := r.id
	timer := r.timer
	defer c.wg.Done()
	defer close(r.done)
	defer metrics.RunsActive.Dec()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.stopped(ctx, runID)
			c.record(runID)
			return
		case <-timer.C():
		}
		if ctx.Err() != nil {
			c.stopped(ctx, runID)
			c.record(runID)
			return
		}

		switch c.tick(ctx, runID, timer) {
		case tickContinue:
			continue
		case tickCompleted:
			c.record(runID)
			if c.policy.AutoFetchReport {
				if _, err := c.FetchReport(ctx, runID); err != nil {
					c.logger.Warn("Automatic report fetch failed", constants.LOG_RUN_ID, runID, "error", err.Error())
				}
			}
			return
		default:
			c.record(runID)
			return
		}
	}
}

// tick issues one status check for runID and applies the answer.
func (c *Controller) tick(ctx context.Context, runID string, timer clock.Timer) tickOutcome {
	ctx, span := c.tracer.Start(ctx, "runs.Poll", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	c.mu.Lock()
	r := c.runs[runID]
	if r.phase == api.PhaseAwaitingFirstPoll {
		if err := r.transition(api.LifecyclePolling); err != nil {
			c.logger.Error("Failed to start polling", constants.LOG_RUN_ID, runID, "error", err.Error())
		}
		c.setPhase(ctx, r, api.PhasePolling)
	}
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.backend.GetStatus(ctx, runID)
	metrics.StatusPollDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if ctx.Err() != nil {
		// cancelled while the request was in flight, the answer is dropped
		c.stopLocked(ctx, r, now)
		return tickStopped
	}
	r.attempts++
	r.lastPolledAt = &now
	logger := c.logger.With(constants.LOG_RUN_ID, runID, "attempt", r.attempts)

	if err != nil {
		metrics.StatusPolls.WithLabelValues(metrics.OutcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.err = err.Error()
		if serviceerrors.IsKind(err, messages.KindService) {
			c.setRunStatus(r, err.Error())
		} else {
			c.setRunStatus(r, messages.Render(messages.StatusPollError, "Attempts", r.attempts, "RunId", runID, "Error", err.Error()))
		}
		logger.Warn("Status check failed", "error", err.Error(), "kind", serviceerrors.KindOf(err))
		if c.policy.CountErrors {
			r.counted++
		}
		return c.continueOrTimeOut(ctx, r, timer, now)
	}

	r.counted++
	span.SetAttributes(attribute.String("status", string(resp.Status)))
	switch resp.Status {
	case api.BackendStatusCompleted:
		metrics.StatusPolls.WithLabelValues(metrics.OutcomeCompleted).Inc()
		r.err = ""
		r.progress = 100
		c.finishLocked(ctx, r, api.LifecycleCompleted, api.PhaseCompleted, now)
		c.setRunStatus(r, messages.Render(messages.StatusCompleted, "RunId", runID))
		return tickCompleted
	case api.BackendStatusFailed:
		metrics.StatusPolls.WithLabelValues(metrics.OutcomeFailed).Inc()
		r.err = resp.Error
		if r.err == "" {
			r.err = unknownFailure
		}
		c.finishLocked(ctx, r, api.LifecycleFailed, api.PhaseFailed, now)
		c.setRunStatus(r, messages.GetErrorMessage(messages.RunFailed, "RunId", runID, "Error", r.err))
		return tickStopped
	default:
		metrics.StatusPolls.WithLabelValues(metrics.OutcomeRunning).Inc()
		r.err = ""
		status := string(resp.Status)
		if status == "" {
			status = string(api.BackendStatusUnknown)
		}
		if resp.Progress > 0 {
			r.progress = int(resp.Progress)
			c.setRunStatus(r, messages.Render(messages.StatusPollingProgress, "RunId", runID, "Status", status, "Progress", r.progress, "Attempts", r.attempts))
		} else {
			c.setRunStatus(r, messages.Render(messages.StatusPolling, "RunId", runID, "Status", status, "Attempts", r.attempts))
		}
		logger.Debug("Run still in progress", "status", status, "progress", resp.Progress)
		return c.continueOrTimeOut(ctx, r, timer, now)
	}
}

// continueOrTimeOut must be called with mu held.
func (c *Controller) continueOrTimeOut(ctx context.Context, r *run, timer clock.Timer, now time.Time) tickOutcome {
	if c.policy.ceilingReached(r.counted) {
		msg := messages.GetErrorMessage(messages.PollingTimedOut, "RunId", r.id, "Attempts", r.attempts)
		r.err = msg
		c.finishLocked(ctx, r, api.LifecycleUnknown, api.PhaseTimedOut, now)
		c.setRunStatus(r, msg)
		return tickStopped
	}
	timer.Reset(c.policy.Interval)
	return tickContinue
}

func (c *Controller) stopped(ctx context.Context, runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.runs[runID]; ok {
		c.stopLocked(ctx, r, c.clock.Now())
	}
}

// stopLocked marks an active run as cancelled, it must be called with mu held.
func (c *Controller) stopLocked(ctx context.Context, r *run, now time.Time) {
	if !r.phase.IsActive() {
		return
	}
	c.finishLocked(ctx, r, api.LifecycleUnknown, api.PhaseCancelled, now)
	c.setRunStatus(r, messages.GetErrorMessage(messages.PollingCancelled, "RunId", r.id))
}

// finishLocked must be called with mu held.
func (c *Controller) finishLocked(ctx context.Context, r *run, state api.LifecycleState, phase api.PollPhase, now time.Time) {
	from := r.phase
	if err := r.finish(state, phase, now); err != nil {
		c.logger.Error("Invalid run transition", constants.LOG_RUN_ID, r.id, "error", err.Error())
		return
	}
	logging.LogRunTransition(ctx, c.logger, r.id, from, phase, "lifecycle_state", string(state), "attempts", r.attempts)
	metrics.RunsFinished.WithLabelValues(string(phase)).Inc()
}
