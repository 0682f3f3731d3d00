package handlers

import (
	"net/http"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/http_wrappers"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serialization"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

// HandleSubmitRun handles POST /api/v1/runs. The response is the snapshot of
// the new run, polling continues in the background.
func (h *Handlers) HandleSubmitRun(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	params := api.WorkflowParams{}
	if err := serialization.Unmarshal(h.validate, ctx, bodyBytes, &params, "run"); err != nil {
		w.Error(err, ctx.RequestID)
		return
	}

	snapshot, err := h.controller.Submit(ctx.Ctx, params)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.SetHeader("Location", ctx.BaseURL+"/api/v1/runs/"+snapshot.RunID)
	w.WriteJSON(snapshot, http.StatusAccepted)
}

// HandleListRuns handles GET /api/v1/runs. With history=true the runs are
// read from the history store instead of the controller.
func (h *Handlers) HandleListRuns(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	limit, offset, state, err := getPageParams(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	fromHistory, err := getBoolQuery(r, constants.QUERY_PARAMETER_HISTORY, false)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}

	var items []api.RunSnapshot
	var total int
	if fromHistory {
		if h.history == nil {
			w.ErrorWithMessageCode(ctx.RequestID, messages.FieldInvalid, "Field", constants.QUERY_PARAMETER_HISTORY, "Error", "no history store is configured")
			return
		}
		results, err := h.history.WithLogger(ctx.Logger).WithContext(ctx.Ctx).GetRuns(limit, offset, state)
		if err != nil {
			w.Error(err, ctx.RequestID)
			return
		}
		items, total = results.Items, results.TotalStored
	} else {
		items, total = pageRuns(h.controller.List(), limit, offset, state)
	}

	page, err := CreatePage(total, offset, limit, ctx, r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(api.RunSnapshotList{Page: *page, Items: items}, http.StatusOK)
}

func pageRuns(all []api.RunSnapshot, limit int, offset int, state string) ([]api.RunSnapshot, int) {
	filtered := make([]api.RunSnapshot, 0, len(all))
	// most recent first
	for i := len(all) - 1; i >= 0; i-- {
		if state == "" || string(all[i].LifecycleState) == state {
			filtered = append(filtered, all[i])
		}
	}
	total := len(filtered)
	if offset >= total {
		return []api.RunSnapshot{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total
}

// HandleGetRun handles GET /api/v1/runs/{run_id}. Runs that are no longer
// tracked are looked up in the history store.
func (h *Handlers) HandleGetRun(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	runID, err := getRunID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	snapshot, err := h.controller.Get(runID)
	if err != nil && serviceerrors.IsKind(err, messages.KindNotFound) && h.history != nil {
		snapshot, err = h.history.WithLogger(ctx.Logger).WithContext(ctx.Ctx).GetRun(runID)
	}
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(snapshot, http.StatusOK)
}

// HandleCancelRun handles DELETE /api/v1/runs/{run_id}. Only the local
// polling stops, the backend run is not affected.
func (h *Handlers) HandleCancelRun(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	runID, err := getRunID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	snapshot, err := h.controller.Cancel(runID)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(snapshot, http.StatusOK)
}

// HandleGetReport handles GET /api/v1/runs/{run_id}/report
func (h *Handlers) HandleGetReport(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	runID, err := getRunID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	report, err := h.controller.FetchReport(ctx.Ctx, runID)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(report, http.StatusOK)
}
