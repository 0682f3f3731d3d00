package handlers

import (
	"github.com/go-playground/validator/v10"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/feedback"
	"github.com/gametester/runctl/internal/runs"
)

// Handlers serves the local run API. The history store is optional.
type Handlers struct {
	controller    *runs.Controller
	feedback      *feedback.Service
	history       abstractions.RunStore
	validate      *validator.Validate
	serviceConfig *config.Config
}

func New(controller *runs.Controller, feedbackService *feedback.Service, history abstractions.RunStore, validate *validator.Validate, serviceConfig *config.Config) *Handlers {
	return &Handlers{
		controller:    controller,
		feedback:      feedbackService,
		history:       history,
		validate:      validate,
		serviceConfig: serviceConfig,
	}
}
