package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/metrics"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

const tracerName = "github.com/gametester/runctl/internal/runs"

// RunRecorder receives a snapshot every time a run reaches a terminal state
// or gets its report.
type RunRecorder interface {
	SaveRun(run *api.RunSnapshot) error
}

// Controller submits runs to the backend and polls each of them until the
// backend reports a terminal status, the attempt ceiling is reached or the
// polling is cancelled.
//
// Every run has its own polling goroutine. The run table and the status line
// are guarded by mu. The status line belongs to the most recently started
// run; the newest submission in flight writes its progress and failures to it
// without taking it over, so the owner's next update shows again.
type Controller struct {
	backend  abstractions.Backend
	validate *validator.Validate
	policy   Policy
	clock    clock.Clock
	logger   *slog.Logger
	recorder RunRecorder
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	runs         map[string]*run
	order        []string
	seq          uint64
	ownerSeq     uint64
	statusText   string
	currentRunID string
	closed       bool
}

func NewController(logger *slog.Logger, backend abstractions.Backend, validate *validator.Validate, policy Policy) (*Controller, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the run controller")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is required for the run controller")
	}
	if validate == nil {
		return nil, fmt.Errorf("validator is required for the run controller")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend:  backend,
		validate: validate,
		policy:   policy,
		clock:    clock.RealClock{},
		logger:   logger.With(constants.LOG_BACKEND, backend.Name()),
		tracer:   otel.Tracer(tracerName),
		ctx:      ctx,
		cancel:   cancel,
		runs:     make(map[string]*run),
	}, nil
}

// WithClock replaces the clock used for the polling timers. It must be
// called before the first submission.
func (c *Controller) WithClock(clk clock.Clock) *Controller {
	c.clock = clk
	return c
}

// WithRecorder sets the run history recorder. It must be called before the
// first submission.
func (c *Controller) WithRecorder(recorder RunRecorder) *Controller {
	c.recorder = recorder
	return c
}

func (c *Controller) GetPolicy() Policy {
	return c.policy
}

// Submit plans, ranks and executes a workflow, then starts polling the run
// returned by the backend. Each step is one request and the first failure
// ends the submission, nothing is retried.
func (c *Controller) Submit(ctx context.Context, params api.WorkflowParams) (*api.RunSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "runs.Submit", trace.WithAttributes(attribute.Bool("use_rag", params.UseRAG)))
	defer span.End()

	seq, err := c.beginSubmission()
	if err != nil {
		return nil, err
	}
	if err := c.validate.StructCtx(ctx, params); err != nil {
		return nil, c.submissionFailed(ctx, seq, validationError(err, "workflow"))
	}

	c.setSubmissionStatus(seq, messages.StatusPlanning)
	plan, err := c.backend.Plan(ctx, &api.PlanRequest{URL: params.URL, Goal: params.Goal, UseRAG: params.UseRAG})
	if err != nil {
		return nil, c.submissionFailed(ctx, seq, err)
	}

	c.setSubmissionStatus(seq, messages.Render(messages.StatusRanking, "Count", plan.Count))
	rank, err := c.backend.Rank(ctx)
	if err != nil {
		return nil, c.submissionFailed(ctx, seq, err)
	}

	c.setSubmissionStatus(seq, messages.Render(messages.StatusExecuting, "Selected", rank.Selected))
	return c.execute(ctx, seq, params.UseRAG)
}

// Execute starts the execution of test cases that were planned and ranked
// beforehand, then starts polling the run.
func (c *Controller) Execute(ctx context.Context) (*api.RunSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "runs.Execute")
	defer span.End()

	seq, err := c.beginSubmission()
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, seq, false)
}

func (c *Controller) execute(ctx context.Context, seq uint64, useRAG bool) (*api.RunSnapshot, error) {
	resp, err := c.backend.Execute(ctx)
	if err != nil {
		return nil, c.submissionFailed(ctx, seq, err)
	}
	runID := strings.TrimSpace(resp.RunID)
	if runID == "" {
		return nil, c.submissionFailed(ctx, seq, serviceerrors.NewServiceError(messages.RunIDMissing))
	}
	snapshot, err := c.startRun(seq, runID, useRAG)
	if err != nil {
		return nil, c.submissionFailed(ctx, seq, err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("run_id", runID))
	return snapshot, nil
}

func (c *Controller) beginSubmission() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, serviceerrors.NewServiceError(messages.ControllerClosed)
	}
	c.seq++
	return c.seq, nil
}

func (c *Controller) setSubmissionStatus(seq uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == c.seq {
		c.statusText = text
	}
}

func (c *Controller) submissionFailed(ctx context.Context, seq uint64, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.RunsSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
	c.logger.Info("Submission failed", "error", err.Error(), "kind", serviceerrors.KindOf(err))
	c.setSubmissionStatus(seq, messages.Render(messages.StatusSubmissionFailure, "Error", err.Error()))
	return err
}

// startRun registers the run and arms its first timer before the polling
// goroutine starts, so the schedule does not depend on goroutine start up.
func (c *Controller) startRun(seq uint64, runID string, useRAG bool) (*api.RunSnapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, serviceerrors.NewServiceError(messages.ControllerClosed)
	}
	if existing, ok := c.runs[runID]; ok {
		active := existing.phase.IsActive()
		c.mu.Unlock()
		if active {
			return nil, serviceerrors.NewServiceError(messages.RunStillActive, "RunId", runID)
		}
		return nil, serviceerrors.NewServiceError(messages.RunAlreadyFinished, "RunId", runID)
	}

	r := newRun(runID, seq, useRAG, c.clock.Now())
	ctx, cancel := context.WithCancel(c.ctx)
	r.cancel = cancel
	r.timer = c.clock.NewTimer(c.policy.InitialDelay)
	c.runs[runID] = r
	c.order = append(c.order, runID)
	if seq >= c.ownerSeq {
		c.ownerSeq = seq
		c.currentRunID = runID
	}
	c.setPhase(ctx, r, api.PhaseAwaitingFirstPoll)
	c.setRunStatus(r, messages.Render(messages.StatusSubmitted, "RunId", runID))
	snapshot := r.snapshot()

	c.wg.Add(1)
	metrics.RunsSubmitted.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.RunsActive.Inc()
	c.mu.Unlock()

	go c.poll(ctx, r)
	return &snapshot, nil
}

// setRunStatus must be called with mu held.
func (c *Controller) setRunStatus(r *run, text string) {
	r.statusText = text
	if r.seq == c.ownerSeq {
		c.statusText = text
	}
}

// setPhase must be called with mu held.
func (c *Controller) setPhase(ctx context.Context, r *run, phase api.PollPhase) {
	logging.LogRunTransition(ctx, c.logger, r.id, r.phase, phase, "lifecycle_state", string(r.state))
	r.phase = phase
}

// FetchReport issues one report request for the run. The run does not need
// to be tracked or completed, the backend decides whether the report is
// ready. The first report of a tracked completed run is stored and returned
// by every later fetch.
func (c *Controller) FetchReport(ctx context.Context, runID string) (*api.RunReport, error) {
	ctx, span := c.tracer.Start(ctx, "runs.FetchReport", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	if strings.TrimSpace(runID) == "" {
		err := serviceerrors.NewServiceError(messages.FieldRequired, "Field", "run_id")
		c.mu.Lock()
		c.statusText = err.Error()
		c.mu.Unlock()
		return nil, err
	}

	report, err := c.backend.GetReport(ctx, runID)

	c.mu.Lock()
	r, tracked := c.runs[runID]
	if err != nil {
		if tracked {
			c.setRunStatus(r, err.Error())
		}
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Info("Report fetch failed", constants.LOG_RUN_ID, runID, "error", err.Error(), "kind", serviceerrors.KindOf(err))
		return nil, err
	}
	if !tracked || r.state != api.LifecycleCompleted {
		c.mu.Unlock()
		return report, nil
	}
	stored := false
	if r.report == nil {
		r.report = report.Clone()
		stored = true
	}
	summary := r.report.Summary
	c.setRunStatus(r, messages.Render(messages.StatusReportFetched, "RunId", runID, "Passed", summary.Passed, "Total", summary.Total, "Failed", summary.Failed))
	result := r.report.Clone()
	c.mu.Unlock()

	if stored {
		c.logger.Info("Report stored", constants.LOG_RUN_ID, runID, "total", summary.Total, "passed", summary.Passed, "failed", summary.Failed)
		c.record(runID)
	}
	return result, nil
}

// Cancel stops the polling of a run. The pending timer is stopped and no
// further status check is issued. Cancelling a run that is not polled any
// more is a no-op.
func (c *Controller) Cancel(runID string) (*api.RunSnapshot, error) {
	c.mu.Lock()
	r, ok := c.runs[runID]
	if !ok {
		c.mu.Unlock()
		return nil, serviceerrors.NewServiceError(messages.RunNotFound, "RunId", runID)
	}
	active := r.phase.IsActive()
	cancel, done := r.cancel, r.done
	c.mu.Unlock()

	if active {
		cancel()
		<-done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := r.snapshot()
	return &snapshot, nil
}

// Wait blocks until the polling goroutine of the run has returned.
func (c *Controller) Wait(ctx context.Context, runID string) (*api.RunSnapshot, error) {
	c.mu.Lock()
	r, ok := c.runs[runID]
	if !ok {
		c.mu.Unlock()
		return nil, serviceerrors.NewServiceError(messages.RunNotFound, "RunId", runID)
	}
	done := r.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.Get(runID)
}

// Forget drops a run that is not polled any more.
func (c *Controller) Forget(runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.runs[runID]
	if !ok {
		return serviceerrors.NewServiceError(messages.RunNotFound, "RunId", runID)
	}
	if r.phase.IsActive() {
		return serviceerrors.NewServiceError(messages.RunStillActive, "RunId", runID)
	}
	delete(c.runs, runID)
	for i, id := range c.order {
		if id == runID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.currentRunID == runID {
		c.currentRunID = ""
	}
	return nil
}

func (c *Controller) Get(runID string) (*api.RunSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.runs[runID]
	if !ok {
		return nil, serviceerrors.NewServiceError(messages.RunNotFound, "RunId", runID)
	}
	snapshot := r.snapshot()
	return &snapshot, nil
}

// List returns the snapshots of the tracked runs in submission order.
func (c *Controller) List() []api.RunSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshots := make([]api.RunSnapshot, 0, len(c.order))
	for _, id := range c.order {
		snapshots = append(snapshots, c.runs[id].snapshot())
	}
	return snapshots
}

func (c *Controller) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusText
}

func (c *Controller) Status() api.ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := api.ControllerStatus{
		StatusText:   c.statusText,
		CurrentRunID: c.currentRunID,
		Runs:         make(map[string]int),
	}
	for _, r := range c.runs {
		status.Runs[string(r.state)]++
		if r.phase.IsActive() {
			status.ActiveRuns++
		}
	}
	return status
}

// Close cancels every polling goroutine and waits for them to return.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Controller) record(runID string) {
	if c.recorder == nil {
		return
	}
	c.mu.Lock()
	r, ok := c.runs[runID]
	if !ok {
		c.mu.Unlock()
		return
	}
	snapshot := r.snapshot()
	c.mu.Unlock()

	if err := c.recorder.SaveRun(&snapshot); err != nil {
		c.logger.Error("Failed to record the run", constants.LOG_RUN_ID, runID, "error", err.Error())
	}
}

func validationError(err error, typeName string) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return serviceerrors.Wrap(err, messages.RequestValidationFailed, "Type", typeName, "Error", err.Error())
	}
	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return serviceerrors.Wrap(err, messages.RequestValidationFailed, "Type", typeName, "Error", strings.Join(fields, ", "))
}
