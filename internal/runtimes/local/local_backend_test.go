package local

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
	"github.com/gametester/runctl/pkg/testgenclient"
)

func newTestBackend(t *testing.T) (*LocalBackend, *clocktesting.FakeClock) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return NewLocalBackendWithClock(logging.DiscardLogger(), clk, 10*time.Second), clk
}

func startRun(t *testing.T, b *LocalBackend) string {
	t.Helper()
	ctx := context.Background()
	plan, err := b.Plan(ctx, &api.PlanRequest{URL: "https://play.example.com/", Goal: "find bugs"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Count != candidateCount {
		t.Fatalf("expected %d candidates, got %d", candidateCount, plan.Count)
	}
	rank, err := b.Rank(ctx)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if rank.Selected != selectedCount {
		t.Fatalf("expected %d selected, got %d", selectedCount, rank.Selected)
	}
	exec, err := b.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if exec.RunID == "" {
		t.Fatalf("expected a run id")
	}
	return exec.RunID
}

func TestRunCompletesAfterDuration(t *testing.T) {
	b, clk := newTestBackend(t)
	ctx := context.Background()
	runID := startRun(t, b)

	clk.Step(4 * time.Second)
	status, err := b.GetStatus(ctx, runID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.Status != api.BackendStatusRunning || status.Progress != 40 {
		t.Fatalf("expected running at 40%%, got %s at %d%%", status.Status, status.Progress)
	}

	_, err = b.GetReport(ctx, runID)
	if !serviceerrors.IsKind(err, messages.KindService) {
		t.Fatalf("expected a service error for a running run, got %v", err)
	}

	clk.Step(6 * time.Second)
	status, err = b.GetStatus(ctx, runID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.Status != api.BackendStatusCompleted {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	report, err := b.GetReport(ctx, runID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.RunID != runID || report.URL != "https://play.example.com/" {
		t.Fatalf("unexpected report header %s %s", report.RunID, report.URL)
	}
	s := report.Summary
	if s.Total != selectedCount || s.Passed+s.Failed != s.Total || len(report.Results) != s.Total {
		t.Fatalf("inconsistent summary %+v with %d results", s, len(report.Results))
	}
	if len(report.TriageNotes) != s.Failed {
		t.Fatalf("expected one triage note per failure, got %d for %d", len(report.TriageNotes), s.Failed)
	}

	again, err := b.GetReport(ctx, runID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if again.Summary != report.Summary || again.Timestamp != report.Timestamp {
		t.Fatalf("report changed between fetches")
	}
}

func TestSubmissionOrder(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.Rank(ctx); !serviceerrors.IsKind(err, messages.KindService) {
		t.Fatalf("expected rank before plan to fail, got %v", err)
	}
	if _, err := b.Execute(ctx); !serviceerrors.IsKind(err, messages.KindService) {
		t.Fatalf("expected execute before rank to fail, got %v", err)
	}
	if _, err := b.Plan(ctx, &api.PlanRequest{Goal: "no url"}); err == nil {
		t.Fatalf("expected plan without url to fail")
	}
	if _, err := b.GetStatus(ctx, "missing"); err == nil || err.Error() != "Run not found" {
		t.Fatalf("expected 'Run not found', got %v", err)
	}
}

func TestRankPrefersLongerScenarios(t *testing.T) {
	ranked := rankCandidates(generateCandidates("https://play.example.com/", candidateCount), selectedCount)
	if len(ranked) != selectedCount {
		t.Fatalf("expected %d, got %d", selectedCount, len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if score(ranked[i-1]) < score(ranked[i]) {
			t.Fatalf("ranking not sorted at %d", i)
		}
	}
	if len(ranked[0].steps) != 6 {
		t.Fatalf("expected the first candidate to have the most steps, got %d", len(ranked[0].steps))
	}
}

func TestListRuns(t *testing.T) {
	b, clk := newTestBackend(t)
	first := startRun(t, b)
	clk.Step(10 * time.Second)
	second := startRun(t, b)

	list, err := b.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(list.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list.Runs))
	}
	if list.Runs[0].RunID != first || list.Runs[0].Status != api.BackendStatusCompleted || list.Runs[0].Timestamp == nil {
		t.Fatalf("unexpected first run %+v", list.Runs[0])
	}
	if list.Runs[1].RunID != second || list.Runs[1].Status != api.BackendStatusRunning || list.Runs[1].Timestamp != nil {
		t.Fatalf("unexpected second run %+v", list.Runs[1])
	}
}

func TestInsights(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < minRetrainSample-1; i++ {
		if _, err := b.SubmitFeedback(ctx, true, &api.FeedbackRequest{RunID: "r", TestcaseID: "tc-001", Score: 5}); err != nil {
			t.Fatalf("SubmitFeedback failed: %v", err)
		}
	}
	resp, err := b.Retrain(ctx)
	if err != nil {
		t.Fatalf("Retrain failed: %v", err)
	}
	if resp.Status != "insufficient_data" {
		t.Fatalf("expected insufficient_data, got %s", resp.Status)
	}

	if _, err := b.SubmitFeedback(ctx, false, &api.FeedbackRequest{RunID: "r", TestcaseID: "tc-002", Score: 3}); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	resp, err = b.Retrain(ctx)
	if err != nil {
		t.Fatalf("Retrain failed: %v", err)
	}
	if resp.Status != "success" || resp.TrainingSamples != minRetrainSample {
		t.Fatalf("unexpected retrain response %+v", resp)
	}

	insights, err := b.GetRAGDocument(ctx, testgenclient.EndpointRAGLearningInsights)
	if err != nil {
		t.Fatalf("GetRAGDocument failed: %v", err)
	}
	if insights["learning_trend"] != "improving" || insights["high_quality_tests"] != minRetrainSample-1 {
		t.Fatalf("unexpected insights %v", insights)
	}

	if _, err := b.GetRAGDocument(ctx, "/rag/unknown"); err == nil {
		t.Fatalf("expected an unknown document to fail")
	}
}
