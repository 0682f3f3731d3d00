package runtimes

import (
	"log/slog"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/runtimes/local"
)

// NewBackend returns the backend selected by the configuration: the in
// process simulator in local mode, the HTTP client otherwise.
func NewBackend(logger *slog.Logger, serviceConfig *config.Config) (abstractions.TestgenBackend, error) {

	var backend abstractions.TestgenBackend
	var err error

	if serviceConfig.Service != nil && serviceConfig.Service.LocalMode {
		var runDuration = local.DefaultRunDuration
		if serviceConfig.Backend != nil && serviceConfig.Backend.LocalRunDuration > 0 {
			runDuration = serviceConfig.Backend.LocalRunDuration
		}
		backend, err = local.NewLocalBackend(logger, runDuration)
	} else {
		backend, err = NewRemoteBackend(logger, serviceConfig.Backend)
	}

	if err == nil {
		logger.Info("Backend selected", "backend", backend.Name())
	}
	return backend, err
}
