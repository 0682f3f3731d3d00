package handlers

import (
	"net/http"
	"time"

	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/http_wrappers"
	"github.com/gametester/runctl/pkg/api"
)

const (
	STATUS_HEALTHY = "healthy"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Build     string    `json:"build,omitempty"`
	BuildDate string    `json:"build_date,omitempty"`
}

type StatusResponse struct {
	api.ControllerStatus
	Policy  string `json:"policy"`
	History bool   `json:"history"`
}

func (h *Handlers) HandleHealth(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	healthInfo := HealthResponse{
		Status:    STATUS_HEALTHY,
		Timestamp: time.Now().UTC(),
	}
	if h.serviceConfig != nil && h.serviceConfig.Service != nil {
		healthInfo.Version = h.serviceConfig.Service.Version
		healthInfo.Build = h.serviceConfig.Service.Build
		healthInfo.BuildDate = h.serviceConfig.Service.BuildDate
	}
	w.WriteJSON(healthInfo, http.StatusOK)
}

// HandleStatus returns the status line shown by the presentation layer
// together with the run counts per lifecycle state.
func (h *Handlers) HandleStatus(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	policy := h.controller.GetPolicy()
	name := "unbounded"
	if policy.IsBounded() {
		name = "bounded"
	}
	w.WriteJSON(StatusResponse{
		ControllerStatus: h.controller.Status(),
		Policy:           name,
		History:          h.history != nil,
	}, http.StatusOK)
}
