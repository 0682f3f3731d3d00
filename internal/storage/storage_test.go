package storage_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/internal/storage"
	"github.com/gametester/runctl/pkg/api"
)

func newStore(t *testing.T, name string) abstractions.RunStore {
	t.Helper()
	databaseConfig := map[string]any{
		"driver":        "sqlite",
		"url":           fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		"database_name": "runctl",
	}
	store, err := storage.NewStorage(&databaseConfig, logging.DiscardLogger())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshot(runID string, state api.LifecycleState, phase api.PollPhase, submittedAt time.Time) *api.RunSnapshot {
	return &api.RunSnapshot{
		RunID:          runID,
		LifecycleState: state,
		Phase:          phase,
		StatusText:     "Run " + runID + " is running (check 1)...",
		Attempts:       1,
		SubmittedAt:    submittedAt,
	}
}

// TestStorage walks the run history through save, update, list and delete.
func TestStorage(t *testing.T) {
	store := newStore(t, "runs_lifecycle")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("SaveRun stores a new run", func(t *testing.T) {
		if err := store.SaveRun(snapshot("abc-123", api.LifecyclePolling, api.PhasePolling, base)); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
		run, err := store.GetRun("abc-123")
		if err != nil {
			t.Fatalf("Failed to get run: %v", err)
		}
		if run.LifecycleState != api.LifecyclePolling || !run.SubmittedAt.Equal(base) {
			t.Fatalf("unexpected run %+v", run)
		}
	})

	t.Run("SaveRun replaces the previous snapshot", func(t *testing.T) {
		done := snapshot("abc-123", api.LifecycleCompleted, api.PhaseCompleted, base)
		done.Report = &api.RunReport{RunID: "abc-123", Summary: api.ReportSummary{Total: 10, Passed: 7, Failed: 3}}
		if err := store.SaveRun(done); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
		run, err := store.GetRun("abc-123")
		if err != nil {
			t.Fatalf("Failed to get run: %v", err)
		}
		if run.LifecycleState != api.LifecycleCompleted || run.Report == nil || run.Report.Summary.Passed != 7 {
			t.Fatalf("snapshot was not replaced: %+v", run)
		}
	})

	t.Run("GetRuns pages and filters", func(t *testing.T) {
		if err := store.SaveRun(snapshot("def-456", api.LifecycleFailed, api.PhaseFailed, base.Add(time.Minute))); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
		if err := store.SaveRun(snapshot("ghi-789", api.LifecycleCompleted, api.PhaseCompleted, base.Add(2*time.Minute))); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}

		all, err := store.GetRuns(2, 0, "")
		if err != nil {
			t.Fatalf("Failed to list runs: %v", err)
		}
		if all.TotalStored != 3 || len(all.Items) != 2 {
			t.Fatalf("expected 2 of 3 runs, got %d of %d", len(all.Items), all.TotalStored)
		}
		if all.Items[0].RunID != "ghi-789" || all.Items[1].RunID != "def-456" {
			t.Fatalf("expected the most recent runs first, got %s, %s", all.Items[0].RunID, all.Items[1].RunID)
		}

		completed, err := store.GetRuns(10, 0, string(api.LifecycleCompleted))
		if err != nil {
			t.Fatalf("Failed to list runs: %v", err)
		}
		if completed.TotalStored != 2 || len(completed.Items) != 2 {
			t.Fatalf("expected 2 completed runs, got %d", completed.TotalStored)
		}
	})

	t.Run("DeleteRun removes the run", func(t *testing.T) {
		if err := store.DeleteRun("def-456"); err != nil {
			t.Fatalf("Failed to delete run: %v", err)
		}
		if _, err := store.GetRun("def-456"); !serviceerrors.IsStorageNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := store.DeleteRun("def-456"); !serviceerrors.IsStorageNotFound(err) {
			t.Fatalf("expected not found on a second delete, got %v", err)
		}
	})

	t.Run("SaveRun requires a run id", func(t *testing.T) {
		if err := store.SaveRun(&api.RunSnapshot{}); err == nil {
			t.Fatalf("expected an error for a run without id")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(time.Second); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
		if store.GetDatasourceName() != "sqlite" {
			t.Fatalf("unexpected datasource %s", store.GetDatasourceName())
		}
	})
}

func TestNewStorageErrors(t *testing.T) {
	if _, err := storage.NewStorage(nil, logging.DiscardLogger()); err == nil {
		t.Fatalf("expected an error without configuration")
	}
	config := map[string]any{"driver": "mysql", "url": "root@/runs"}
	if _, err := storage.NewStorage(&config, logging.DiscardLogger()); err == nil {
		t.Fatalf("expected an error for an unsupported driver")
	}
}

func TestNewStorageDecodesDurations(t *testing.T) {
	databaseConfig := map[string]any{
		"driver":            "sqlite",
		"url":               "file:runs_durations?mode=memory&cache=shared",
		"conn_max_lifetime": "10m",
		"max_open_conns":    2,
		"ping_timeout":      "2s",
	}
	store, err := storage.NewStorage(&databaseConfig, logging.DiscardLogger())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.SaveRun(snapshot("ghi-789", api.LifecycleCompleted, api.PhaseCompleted, time.Now().UTC())); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
}

func TestNewStorageNeedsURL(t *testing.T) {
	config := map[string]any{"driver": "sqlite"}
	if _, err := storage.NewStorage(&config, logging.DiscardLogger()); err == nil {
		t.Fatalf("expected an error without a database url")
	}
}
