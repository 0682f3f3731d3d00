package runs_test

import (
	"context"
	"sync"

	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

type statusAnswer struct {
	resp *api.StatusResponse
	err  error
}

func running(progress int) statusAnswer {
	return statusAnswer{resp: &api.StatusResponse{Status: api.BackendStatusRunning, Progress: api.Percent(progress)}}
}

func completed() statusAnswer {
	return statusAnswer{resp: &api.StatusResponse{Status: api.BackendStatusCompleted}}
}

func failed(msg string) statusAnswer {
	return statusAnswer{resp: &api.StatusResponse{Status: api.BackendStatusFailed, Error: msg}}
}

func transportFailure() statusAnswer {
	return statusAnswer{err: serviceerrors.NewServiceError(messages.BackendRequestFailed, "Method", "GET", "Endpoint", "/status", "Error", "connection refused")}
}

func servicePayload(msg string) statusAnswer {
	return statusAnswer{err: serviceerrors.NewServiceError(messages.BackendError, "Error", msg)}
}

// fakeBackend answers status checks from a per run script, the last answer
// of a script repeats forever.
type fakeBackend struct {
	mu sync.Mutex

	runIDs   []string
	statuses map[string][]statusAnswer
	reports  map[string]*api.RunReport

	planErr    error
	rankErr    error
	executeErr error
	reportErr  error
	// blockStatus makes status checks wait for the context
	blockStatus bool

	planCalls    int
	rankCalls    int
	executeCalls int
	statusCalls  map[string]int
	reportCalls  map[string]int
	lastPlan     *api.PlanRequest
}

func newFakeBackend(runIDs ...string) *fakeBackend {
	return &fakeBackend{
		runIDs:      runIDs,
		statuses:    make(map[string][]statusAnswer),
		reports:     make(map[string]*api.RunReport),
		statusCalls: make(map[string]int),
		reportCalls: make(map[string]int),
	}
}

func (f *fakeBackend) script(runID string, answers ...statusAnswer) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[runID] = answers
	return f
}

func (f *fakeBackend) Name() string {
	return "fake"
}

func (f *fakeBackend) Plan(_ context.Context, req *api.PlanRequest) (*api.PlanResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planCalls++
	f.lastPlan = req
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &api.PlanResponse{Status: "success", Count: 20}, nil
}

func (f *fakeBackend) Rank(_ context.Context) (*api.RankResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankCalls++
	if f.rankErr != nil {
		return nil, f.rankErr
	}
	return &api.RankResponse{Status: "success", Selected: 10}, nil
}

func (f *fakeBackend) Execute(_ context.Context) (*api.ExecuteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls++
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	if len(f.runIDs) == 0 {
		return &api.ExecuteResponse{Status: "started"}, nil
	}
	runID := f.runIDs[0]
	if len(f.runIDs) > 1 {
		f.runIDs = f.runIDs[1:]
	}
	return &api.ExecuteResponse{Status: "started", RunID: runID}, nil
}

func (f *fakeBackend) GetStatus(ctx context.Context, runID string) (*api.StatusResponse, error) {
	f.mu.Lock()
	f.statusCalls[runID]++
	call := f.statusCalls[runID]
	block := f.blockStatus
	answers := f.statuses[runID]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, serviceerrors.Wrap(ctx.Err(), messages.BackendRequestFailed, "Method", "GET", "Endpoint", "/status", "Error", ctx.Err().Error())
	}
	if len(answers) == 0 {
		return &api.StatusResponse{RunID: runID, Status: api.BackendStatusRunning}, nil
	}
	answer := answers[len(answers)-1]
	if call <= len(answers) {
		answer = answers[call-1]
	}
	if answer.err != nil {
		return nil, answer.err
	}
	resp := *answer.resp
	resp.RunID = runID
	return &resp, nil
}

func (f *fakeBackend) GetReport(_ context.Context, runID string) (*api.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls[runID]++
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	if report, ok := f.reports[runID]; ok {
		return report.Clone(), nil
	}
	return nil, serviceerrors.NewServiceError(messages.ReportNotReady, "RunId", runID, "Message", "Execution not completed yet")
}

func (f *fakeBackend) calls(runID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[runID]
}

func (f *fakeBackend) reportCallCount(runID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reportCalls[runID]
}

func (f *fakeBackend) submissionCalls() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planCalls, f.rankCalls, f.executeCalls
}

type fakeRecorder struct {
	mu    sync.Mutex
	saved []api.RunSnapshot
}

func (r *fakeRecorder) SaveRun(run *api.RunSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, *run)
	return nil
}

func (r *fakeRecorder) snapshots() []api.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.RunSnapshot(nil), r.saved...)
}

func sampleReport(runID string) *api.RunReport {
	return &api.RunReport{
		RunID:     runID,
		URL:       "https://play.example.com",
		Timestamp: "2026-01-01T10:00:00",
		Summary:   api.ReportSummary{Total: 10, Passed: 7, Failed: 2, Flaky: 1},
		Results: []api.TestResult{
			{TestcaseID: "tc-1", Verdict: "PASS", Reruns: 1, Reproducible: true},
			{TestcaseID: "tc-2", Verdict: "FAIL", Reruns: 2, Reproducible: true},
		},
		TriageNotes: map[string]string{"tc-2": "button not clickable"},
	}
}
