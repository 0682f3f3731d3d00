package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
	"github.com/gametester/runctl/pkg/testgenclient"
)

const (
	candidateCount   = 20
	selectedCount    = 10
	minRetrainSample = 10
	// DefaultRunDuration is used when no run duration is configured
	DefaultRunDuration = 20 * time.Second

	verdictPass = "PASS"
	verdictFail = "FAIL"
)

type candidate struct {
	id    string
	title string
	steps []string
}

type localRun struct {
	id        string
	url       string
	cases     []candidate
	startedAt time.Time
	report    *api.RunReport
}

// LocalBackend simulates the testgen backend in process. Plan produces
// candidates, rank keeps the best ones and a run completes with mock
// verdicts once the run duration has elapsed on the clock.
type LocalBackend struct {
	logger      *slog.Logger
	clock       clock.PassiveClock
	runDuration time.Duration

	mu         sync.Mutex
	url        string
	candidates []candidate
	selected   []candidate
	runs       map[string]*localRun
	runOrder   []string
	feedback   []api.FeedbackRequest
}

func NewLocalBackend(logger *slog.Logger, runDuration time.Duration) (abstractions.TestgenBackend, error) {
	return newLocalBackend(logger, clock.RealClock{}, runDuration), nil
}

// NewLocalBackendWithClock is NewLocalBackend with an injected clock
func NewLocalBackendWithClock(logger *slog.Logger, clk clock.PassiveClock, runDuration time.Duration) *LocalBackend {
	return newLocalBackend(logger, clk, runDuration)
}

func newLocalBackend(logger *slog.Logger, clk clock.PassiveClock, runDuration time.Duration) *LocalBackend {
	if runDuration <= 0 {
		runDuration = DefaultRunDuration
	}
	return &LocalBackend{
		logger:      logger.With("backend", "local"),
		clock:       clk,
		runDuration: runDuration,
		runs:        make(map[string]*localRun),
	}
}

func (b *LocalBackend) Name() string {
	return "local"
}

func backendError(format string, args ...any) error {
	return serviceerrors.NewServiceError(messages.BackendError, "Error", fmt.Sprintf(format, args...))
}

func (b *LocalBackend) Plan(ctx context.Context, req *api.PlanRequest) (*api.PlanResponse, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, backendError("Planner failed: url is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.url = req.URL
	b.candidates = generateCandidates(req.URL, candidateCount)
	b.selected = nil
	b.logger.Info("Generated candidates", "url", req.URL, "goal", req.Goal, "use_rag", req.UseRAG, "count", len(b.candidates))
	return &api.PlanResponse{
		Status:  "success",
		Count:   len(b.candidates),
		Message: fmt.Sprintf("Generated %d test case candidates", len(b.candidates)),
	}, nil
}

func (b *LocalBackend) Rank(ctx context.Context) (*api.RankResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.candidates) == 0 {
		return nil, backendError("No candidates found. Run /plan first.")
	}
	b.selected = rankCandidates(b.candidates, selectedCount)
	return &api.RankResponse{
		Status:   "success",
		Selected: len(b.selected),
		Message:  fmt.Sprintf("Selected top %d test cases", len(b.selected)),
	}, nil
}

func (b *LocalBackend) Execute(ctx context.Context) (*api.ExecuteResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.selected) == 0 {
		return nil, backendError("No ranked test cases found. Run /plan and /rank first.")
	}
	run := &localRun{
		id:        uuid.NewString(),
		url:       b.url,
		cases:     append([]candidate(nil), b.selected...),
		startedAt: b.clock.Now(),
	}
	b.runs[run.id] = run
	b.runOrder = append(b.runOrder, run.id)
	b.logger.Info("Execution started", "run_id", run.id, "test_cases", len(run.cases))
	return &api.ExecuteResponse{
		Status:  "started",
		RunID:   run.id,
		Message: fmt.Sprintf("Execution started for %d test cases", len(run.cases)),
	}, nil
}

// advance completes the run when its duration has elapsed. Callers hold mu.
func (b *LocalBackend) advance(run *localRun) (api.BackendStatus, int) {
	if run.report != nil {
		return api.BackendStatusCompleted, 100
	}
	elapsed := b.clock.Since(run.startedAt)
	if elapsed < b.runDuration {
		return api.BackendStatusRunning, int(elapsed * 100 / b.runDuration)
	}
	run.report = buildReport(run, b.clock.Now())
	b.logger.Info("Execution completed", "run_id", run.id, "passed", run.report.Summary.Passed, "failed", run.report.Summary.Failed)
	return api.BackendStatusCompleted, 100
}

func (b *LocalBackend) GetStatus(ctx context.Context, runID string) (*api.StatusResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[runID]
	if !ok {
		return nil, backendError("Run not found")
	}
	status, progress := b.advance(run)
	return &api.StatusResponse{RunID: runID, Status: status, Progress: api.Percent(progress)}, nil
}

func (b *LocalBackend) GetReport(ctx context.Context, runID string) (*api.RunReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[runID]
	if !ok {
		return nil, backendError("Run not found")
	}
	if status, _ := b.advance(run); status != api.BackendStatusCompleted {
		return nil, serviceerrors.NewServiceError(messages.ReportNotReady, "RunId", runID, "Message", "Execution not completed yet")
	}
	return run.report.Clone(), nil
}

func (b *LocalBackend) ListRuns(ctx context.Context) (*api.RunRecordList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := &api.RunRecordList{Runs: make([]api.RunRecord, 0, len(b.runOrder))}
	for _, id := range b.runOrder {
		run := b.runs[id]
		status, _ := b.advance(run)
		record := api.RunRecord{RunID: id, Status: status}
		if run.report != nil {
			ts := run.report.Timestamp
			record.Timestamp = &ts
		}
		list.Runs = append(list.Runs, record)
	}
	return list, nil
}

func (b *LocalBackend) SubmitFeedback(ctx context.Context, useRAG bool, req *api.FeedbackRequest) (*api.FeedbackResponse, error) {
	if req == nil {
		return nil, backendError("feedback is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.feedback = append(b.feedback, *req)
	return &api.FeedbackResponse{
		FeedbackID: len(b.feedback),
		Status:     "success",
		Message:    fmt.Sprintf("Feedback recorded for test %s", req.TestcaseID),
	}, nil
}

func (b *LocalBackend) GetRAGDocument(ctx context.Context, endpoint string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch endpoint {
	case testgenclient.EndpointRAGMetrics:
		passed, total := 0, 0
		for _, run := range b.runs {
			if run.report != nil {
				passed += run.report.Summary.Passed
				total += run.report.Summary.Total
			}
		}
		passRate := 0.0
		if total > 0 {
			passRate = float64(passed) * 100 / float64(total)
		}
		return map[string]any{
			"total_runs":     len(b.runs),
			"total_tests":    total,
			"pass_rate":      passRate,
			"total_feedback": len(b.feedback),
		}, nil
	case testgenclient.EndpointRAGStats:
		return map[string]any{
			"total_cases": len(b.candidates),
			"selected":    len(b.selected),
		}, nil
	case testgenclient.EndpointRAGLearningInsights:
		high, low := 0, 0
		for _, f := range b.feedback {
			if f.Score >= 4 {
				high++
			} else if f.Score <= 2 {
				low++
			}
		}
		trend := "needs_attention"
		if high > low {
			trend = "improving"
		}
		return map[string]any{
			"total_feedback":     len(b.feedback),
			"high_quality_tests": high,
			"low_quality_tests":  low,
			"learning_trend":     trend,
		}, nil
	default:
		return nil, backendError("Not Found")
	}
}

func (b *LocalBackend) Retrain(ctx context.Context) (*api.RetrainResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samples := 0
	for _, f := range b.feedback {
		if f.Score >= 3 {
			samples++
		}
	}
	if samples < minRetrainSample {
		return &api.RetrainResponse{
			Status:  "insufficient_data",
			Message: fmt.Sprintf("Need at least %d training samples, have %d", minRetrainSample, samples),
		}, nil
	}
	return &api.RetrainResponse{Status: "success", TrainingSamples: samples, Message: "Retraining completed"}, nil
}

func generateCandidates(url string, n int) []candidate {
	candidates := make([]candidate, 0, n)
	for i := 1; i <= n; i++ {
		steps := []string{
			"open " + url,
			"wait for game canvas to load",
			"attempt a valid move",
			"observe score / next state",
		}
		if i%3 == 1 {
			steps = append(steps, "try invalid input or rapid clicks")
		}
		if i%5 == 1 {
			steps = append(steps, "resize or change viewport")
		}
		candidates = append(candidates, candidate{
			id:    fmt.Sprintf("tc-%03d", i),
			title: fmt.Sprintf("PUZZLE_FLOW_%03d", i),
			steps: steps,
		})
	}
	return candidates
}

// score favours longer scenarios, ties are broken by the id
func score(c candidate) float64 {
	tie := 0
	for _, r := range c.id {
		tie += int(r)
	}
	return float64(len(c.steps)) + float64(tie%10)/100
}

func rankCandidates(candidates []candidate, n int) []candidate {
	ranked := append([]candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// verdict is a stable mock outcome, roughly four passes in five
func verdict(runID string, testcaseID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID + "/" + testcaseID))
	if h.Sum32()%5 == 0 {
		return verdictFail
	}
	return verdictPass
}

func buildReport(run *localRun, now time.Time) *api.RunReport {
	report := &api.RunReport{
		RunID:       run.id,
		URL:         run.url,
		Timestamp:   now.UTC().Format(time.RFC3339),
		TriageNotes: map[string]string{},
	}
	for _, c := range run.cases {
		v := verdict(run.id, c.id)
		result := api.TestResult{
			TestcaseID:   c.id,
			Verdict:      v,
			Artifacts:    make(map[string]api.StepArtifact, len(c.steps)),
			Reruns:       2,
			Reproducible: true,
			Notes:        "Test completed with verdict: " + v,
		}
		for i := range c.steps {
			step := api.StepArtifact{StepResult: "success"}
			if v == verdictFail && i == len(c.steps)-1 {
				step.StepResult = "assertion_failed"
				step.ConsoleLogs = []string{fmt.Sprintf("error: Failed step %d", i+1)}
			}
			result.Artifacts[fmt.Sprintf("%d", i+1)] = step
		}
		report.Results = append(report.Results, result)
		report.Summary.Total++
		if v == verdictPass {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
			report.TriageNotes[c.id] = "Test failed - needs investigation"
		}
	}
	return report
}
