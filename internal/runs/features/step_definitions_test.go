package features

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/runs"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/internal/validation"
	"github.com/gametester/runctl/pkg/api"
)

// scriptedBackend answers status checks from a per run script, the last
// answer repeats forever.
type scriptedBackend struct {
	mu       sync.Mutex
	scripts  map[string][]string
	reports  map[string]*api.RunReport
	runIDs   []string
	requests int
	checks   map[string]int
}

func (b *scriptedBackend) Name() string {
	return "scripted"
}

func (b *scriptedBackend) count() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
}

func (b *scriptedBackend) Plan(_ context.Context, _ *api.PlanRequest) (*api.PlanResponse, error) {
	b.count()
	return &api.PlanResponse{Count: 20}, nil
}

func (b *scriptedBackend) Rank(_ context.Context) (*api.RankResponse, error) {
	b.count()
	return &api.RankResponse{Selected: 10}, nil
}

func (b *scriptedBackend) Execute(_ context.Context) (*api.ExecuteResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	if len(b.runIDs) == 0 {
		return &api.ExecuteResponse{Status: "started"}, nil
	}
	runID := b.runIDs[0]
	b.runIDs = b.runIDs[1:]
	return &api.ExecuteResponse{Status: "started", RunID: runID}, nil
}

func (b *scriptedBackend) GetStatus(_ context.Context, runID string) (*api.StatusResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	b.checks[runID]++
	script := b.scripts[runID]
	if len(script) == 0 {
		return &api.StatusResponse{RunID: runID, Status: api.BackendStatusRunning}, nil
	}
	answer := script[len(script)-1]
	if b.checks[runID] <= len(script) {
		answer = script[b.checks[runID]-1]
	}
	switch answer {
	case "error":
		return nil, serviceerrors.NewServiceError(messages.BackendRequestFailed, "Method", "GET", "Endpoint", "/status/"+runID, "Error", "connection reset by peer")
	case "failed":
		return &api.StatusResponse{RunID: runID, Status: api.BackendStatusFailed, Error: "browser crashed"}, nil
	default:
		return &api.StatusResponse{RunID: runID, Status: api.BackendStatus(answer)}, nil
	}
}

func (b *scriptedBackend) GetReport(_ context.Context, runID string) (*api.RunReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	report, ok := b.reports[runID]
	if !ok {
		return nil, serviceerrors.NewServiceError(messages.ReportNotReady, "RunId", runID, "Message", "Execution not completed yet")
	}
	return report.Clone(), nil
}

// this is used for a scenario to ensure that scenarios do not share state
type scenarioConfig struct {
	backend    *scriptedBackend
	clock      *testingclock.FakeClock
	policy     runs.Policy
	controller *runs.Controller

	lastErr    error
	lastReport *api.RunReport
}

func newScenarioConfig() *scenarioConfig {
	return &scenarioConfig{
		backend: &scriptedBackend{
			scripts: make(map[string][]string),
			reports: make(map[string]*api.RunReport),
			checks:  make(map[string]int),
		},
		clock:  testingclock.NewFakeClock(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)),
		policy: runs.BaselinePolicy(),
	}
}

func (tc *scenarioConfig) getController() (*runs.Controller, error) {
	if tc.controller != nil {
		return tc.controller, nil
	}
	validate, err := validation.NewValidator()
	if err != nil {
		return nil, err
	}
	controller, err := runs.NewController(logging.DiscardLogger(), tc.backend, validate, tc.policy)
	if err != nil {
		return nil, err
	}
	tc.controller = controller.WithClock(tc.clock)
	return tc.controller, nil
}

func (tc *scenarioConfig) aPollingPolicy(initialDelay int, interval int) error {
	tc.policy.InitialDelay = time.Duration(initialDelay) * time.Second
	tc.policy.Interval = time.Duration(interval) * time.Second
	tc.policy.MaxAttempts = 0
	return nil
}

func (tc *scenarioConfig) thePolicyGivesUpAfter(attempts int) error {
	tc.policy.MaxAttempts = attempts
	return nil
}

func (tc *scenarioConfig) theBackendAnswers(answers string, runID string) error {
	tc.backend.mu.Lock()
	defer tc.backend.mu.Unlock()
	tc.backend.scripts[runID] = strings.Split(answers, ",")
	tc.backend.runIDs = append(tc.backend.runIDs, runID)
	return nil
}

func report(runID string, passed int, total int) *api.RunReport {
	return &api.RunReport{
		RunID:   runID,
		Summary: api.ReportSummary{Total: total, Passed: passed, Failed: total - passed},
	}
}

func (tc *scenarioConfig) theBackendHasAReport(runID string, passed int, total int) error {
	tc.backend.mu.Lock()
	defer tc.backend.mu.Unlock()
	tc.backend.reports[runID] = report(runID, passed, total)
	return nil
}

func (tc *scenarioConfig) iSubmitAWorkflow(url string, goal string) error {
	controller, err := tc.getController()
	if err != nil {
		return err
	}
	_, tc.lastErr = controller.Submit(context.Background(), api.WorkflowParams{URL: url, Goal: goal})
	return nil
}

func (tc *scenarioConfig) snapshot(runID string) (*api.RunSnapshot, error) {
	controller, err := tc.getController()
	if err != nil {
		return nil, err
	}
	return controller.Get(runID)
}

// theRunIsPolled advances the clock to each due status check and waits for
// the answer to be applied.
func (tc *scenarioConfig) theRunIsPolled(runID string, times int) error {
	for i := 0; i < times; i++ {
		before, err := tc.snapshot(runID)
		if err != nil {
			return err
		}
		if !before.Phase.IsActive() {
			return fmt.Errorf("run %s stopped polling after %d checks", runID, before.Attempts)
		}
		delay := tc.policy.Interval
		if before.Phase == api.PhaseAwaitingFirstPoll {
			delay = tc.policy.InitialDelay
		}
		tc.clock.Step(delay)

		deadline := time.Now().Add(2 * time.Second)
		for {
			after, err := tc.snapshot(runID)
			if err != nil {
				return err
			}
			if after.Attempts > before.Attempts || !after.Phase.IsActive() {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("run %s was not polled after %s", runID, delay)
			}
			time.Sleep(time.Millisecond)
		}
	}
	return nil
}

func (tc *scenarioConfig) theRunIsIn(runID string, state string, phase string) error {
	s, err := tc.snapshot(runID)
	if err != nil {
		return err
	}
	if string(s.LifecycleState) != state || string(s.Phase) != phase {
		return fmt.Errorf("expected run %s to be %s/%s, got %s/%s (%s)", runID, state, phase, s.LifecycleState, s.Phase, s.StatusText)
	}
	return nil
}

func (tc *scenarioConfig) theBackendReceivedStatusChecks(expected int, runID string) error {
	tc.backend.mu.Lock()
	defer tc.backend.mu.Unlock()
	if tc.backend.checks[runID] != expected {
		return fmt.Errorf("expected %d status checks for run %s, got %d", expected, runID, tc.backend.checks[runID])
	}
	return nil
}

func (tc *scenarioConfig) theStatusLineIs(expected string) error {
	controller, err := tc.getController()
	if err != nil {
		return err
	}
	if got := controller.StatusText(); got != expected {
		return fmt.Errorf("expected the status line %q, got %q", expected, got)
	}
	return nil
}

func (tc *scenarioConfig) secondsPass(seconds int) error {
	tc.clock.Step(time.Duration(seconds) * time.Second)
	return nil
}

func (tc *scenarioConfig) iFetchTheReport(runID string) error {
	controller, err := tc.getController()
	if err != nil {
		return err
	}
	tc.lastReport, tc.lastErr = controller.FetchReport(context.Background(), runID)
	return nil
}

func (tc *scenarioConfig) theLastReportHas(passed int, total int) error {
	if tc.lastErr != nil {
		return fmt.Errorf("the last report fetch failed: %w", tc.lastErr)
	}
	if tc.lastReport.Summary.Passed != passed || tc.lastReport.Summary.Total != total {
		return fmt.Errorf("expected %d of %d tests passed, got %d of %d", passed, total, tc.lastReport.Summary.Passed, tc.lastReport.Summary.Total)
	}
	return nil
}

func (tc *scenarioConfig) iCancelRun(runID string) error {
	controller, err := tc.getController()
	if err != nil {
		return err
	}
	_, err = controller.Cancel(runID)
	return err
}

func (tc *scenarioConfig) theRequestFailsWith(kind string) error {
	if tc.lastErr == nil {
		return fmt.Errorf("expected a %s error", kind)
	}
	if got := serviceerrors.KindOf(tc.lastErr); string(got) != kind {
		return fmt.Errorf("expected a %s error, got %s: %v", kind, got, tc.lastErr)
	}
	return nil
}

func (tc *scenarioConfig) theBackendReceivedNoRequest() error {
	tc.backend.mu.Lock()
	defer tc.backend.mu.Unlock()
	if tc.backend.requests != 0 {
		return fmt.Errorf("expected no backend request, got %d", tc.backend.requests)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := newScenarioConfig()

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		*tc = *newScenarioConfig()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.controller != nil {
			_ = tc.controller.Close()
		}
		return ctx, nil
	})

	ctx.Step(`^a polling policy with a (\d+) second initial delay and a (\d+) second interval$`, tc.aPollingPolicy)
	ctx.Step(`^the polling policy gives up after (\d+) attempts$`, tc.thePolicyGivesUpAfter)
	ctx.Step(`^the backend answers "([^"]*)" for run "([^"]*)"$`, tc.theBackendAnswers)
	ctx.Step(`^the backend has a report for run "([^"]*)" with (\d+) of (\d+) tests passed$`, tc.theBackendHasAReport)
	ctx.Step(`^the backend report for run "([^"]*)" changes to (\d+) of (\d+) tests passed$`, tc.theBackendHasAReport)
	ctx.Step(`^I submit a workflow for "([^"]*)" with goal "([^"]*)"$`, tc.iSubmitAWorkflow)
	ctx.Step(`^the run "([^"]*)" is polled (\d+) times$`, tc.theRunIsPolled)
	ctx.Step(`^the run "([^"]*)" is in lifecycle state "([^"]*)" and phase "([^"]*)"$`, tc.theRunIsIn)
	ctx.Step(`^the backend received (\d+) status checks for run "([^"]*)"$`, tc.theBackendReceivedStatusChecks)
	ctx.Step(`^the status line is "([^"]*)"$`, tc.theStatusLineIs)
	ctx.Step(`^(\d+) seconds pass$`, tc.secondsPass)
	ctx.Step(`^I fetch the report of run "([^"]*)"$`, tc.iFetchTheReport)
	ctx.Step(`^the last report has (\d+) of (\d+) tests passed$`, tc.theLastReportHas)
	ctx.Step(`^I cancel run "([^"]*)"$`, tc.iCancelRun)
	ctx.Step(`^the request fails with a "([^"]*)" error$`, tc.theRequestFailsWith)
	ctx.Step(`^the backend received no request$`, tc.theBackendReceivedNoRequest)
}
