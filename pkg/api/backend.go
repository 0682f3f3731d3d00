package api

import (
	"bytes"
	"encoding/json"
	"math"
)

// Wire types of the testgen backend. Field names are the backend contract and
// must not be renamed.

// BackendStatus is the status string reported by GET /status/{run_id}. Only
// completed and failed are terminal, every other value means "keep polling".
type BackendStatus string

const (
	BackendStatusRunning   BackendStatus = "running"
	BackendStatusCompleted BackendStatus = "completed"
	BackendStatusFailed    BackendStatus = "failed"
	BackendStatusUnknown   BackendStatus = "unknown"
)

func (s BackendStatus) IsTerminal() bool {
	return s == BackendStatusCompleted || s == BackendStatusFailed
}

// PlanRequest is the body of POST /plan
type PlanRequest struct {
	URL    string `json:"url" validate:"required,url"`
	Goal   string `json:"goal" validate:"required"`
	UseRAG bool   `json:"use_rag"`
}

type PlanResponse struct {
	Status  string `json:"status,omitempty"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

type RankResponse struct {
	Status   string `json:"status,omitempty"`
	Selected int    `json:"selected"`
	Message  string `json:"message,omitempty"`
}

type ExecuteResponse struct {
	Status  string `json:"status,omitempty"`
	RunID   string `json:"run_id"`
	Message string `json:"message,omitempty"`
}

// Percent is a progress value in percent. Backends send it as an integer or a
// float, fractions are rounded. Anything else decodes as zero so that an odd
// progress value never hides the status next to it.
type Percent int

func (p *Percent) UnmarshalJSON(data []byte) error {
	*p = 0
	var f float64
	if err := json.Unmarshal(bytes.TrimSpace(data), &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || f <= 0 {
		return nil
	}
	*p = Percent(math.Round(min(f, 100)))
	return nil
}

type StatusResponse struct {
	RunID    string        `json:"run_id,omitempty"`
	Status   BackendStatus `json:"status"`
	Progress Percent       `json:"progress,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ReportSummary holds the verdict counts of a run
type ReportSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Flaky  int `json:"flaky,omitempty"`
}

type StepArtifact struct {
	ScreenshotPath string   `json:"screenshot_path,omitempty"`
	DOMSnapshot    string   `json:"dom_snapshot,omitempty"`
	ConsoleLogs    []string `json:"console_logs,omitempty"`
	NetworkHARPath string   `json:"network_har_path,omitempty"`
	StepResult     string   `json:"step_result,omitempty"`
}

// TestResult is the outcome of one executed test case
type TestResult struct {
	TestcaseID   string                  `json:"testcase_id"`
	Verdict      string                  `json:"verdict"`
	Artifacts    map[string]StepArtifact `json:"artifacts,omitempty"`
	Reruns       int                     `json:"reruns"`
	Reproducible bool                    `json:"reproducible"`
	Notes        string                  `json:"notes,omitempty"`
}

// RunReport is the body of GET /report/{run_id} for a completed run
type RunReport struct {
	RunID       string            `json:"run_id"`
	URL         string            `json:"url,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Summary     ReportSummary     `json:"summary"`
	Results     []TestResult      `json:"results,omitempty"`
	TriageNotes map[string]string `json:"triage_notes,omitempty"`
}

// Clone returns a deep copy so callers never share the stored report.
func (r *RunReport) Clone() *RunReport {
	if r == nil {
		return nil
	}
	c := *r
	if r.Results != nil {
		c.Results = make([]TestResult, len(r.Results))
		for i, res := range r.Results {
			c.Results[i] = res
			if res.Artifacts != nil {
				c.Results[i].Artifacts = make(map[string]StepArtifact, len(res.Artifacts))
				for k, v := range res.Artifacts {
					v.ConsoleLogs = append([]string(nil), v.ConsoleLogs...)
					c.Results[i].Artifacts[k] = v
				}
			}
		}
	}
	if r.TriageNotes != nil {
		c.TriageNotes = make(map[string]string, len(r.TriageNotes))
		for k, v := range r.TriageNotes {
			c.TriageNotes[k] = v
		}
	}
	return &c
}

// FeedbackRequest is the body of POST /rag/feedback (or /feedback)
type FeedbackRequest struct {
	RunID      string `json:"run_id" validate:"required"`
	TestcaseID string `json:"testcase_id" validate:"required"`
	Score      int    `json:"score" validate:"required,min=1,max=5"`
	Comment    string `json:"comment,omitempty"`
}

type FeedbackResponse struct {
	FeedbackID any    `json:"feedback_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

type RetrainResponse struct {
	Status          string `json:"status,omitempty"`
	TrainingSamples int    `json:"training_samples,omitempty"`
	Message         string `json:"message"`
}

// MetricsBundle aggregates the three RAG metrics endpoints. The payloads are
// kept as decoded JSON and shown as-is.
type MetricsBundle struct {
	Metrics          map[string]any `json:"metrics"`
	Stats            map[string]any `json:"stats"`
	LearningInsights map[string]any `json:"learning_insights"`
}

type RunRecord struct {
	RunID     string        `json:"run_id"`
	Status    BackendStatus `json:"status"`
	Timestamp *string       `json:"timestamp"`
}

// RunRecordList is the body of GET /runs
type RunRecordList struct {
	Runs []RunRecord `json:"runs"`
}
