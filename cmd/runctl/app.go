package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/feedback"
	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/runs"
	"github.com/gametester/runctl/internal/runtimes"
	"github.com/gametester/runctl/internal/storage"
	"github.com/gametester/runctl/internal/tracing"
	"github.com/gametester/runctl/internal/validation"
)

const shutdownTimeout = 30 * time.Second

// app holds the components wired from the configuration. Every command
// builds one and closes it when done.
type app struct {
	logger          *slog.Logger
	logShutdown     logging.ShutdownFunc
	conf            *config.Config
	validate        *validator.Validate
	backend         abstractions.TestgenBackend
	store           abstractions.RunStore
	controller      *runs.Controller
	feedback        *feedback.Service
	tracingShutdown tracing.ShutdownFunc
}

// newApp loads the configuration and builds the backend, the run controller
// and the feedback service. The history store is opened when the database
// section is configured.
func newApp(ctx context.Context, opts *rootOptions, logger *slog.Logger, logShutdown logging.ShutdownFunc) (*app, error) {
	a := &app{logger: logger, logShutdown: logShutdown}

	conf, err := config.LoadConfig(logger, Version, Build, BuildDate, opts.configDirs...)
	if err != nil {
		return a, err
	}
	if opts.local {
		conf.Service.LocalMode = true
	}
	a.conf = conf

	a.tracingShutdown, err = tracing.SetupTracing(ctx, conf, logger)
	if err != nil {
		return a, err
	}

	a.validate, err = validation.NewValidator()
	if err != nil {
		return a, err
	}

	if conf.IsDatabaseEnabled() {
		a.store, err = storage.NewStorage(conf.Database, logger)
		if err != nil {
			return a, err
		}
	}

	a.backend, err = runtimes.NewBackend(logger, conf)
	if err != nil {
		return a, err
	}

	policy, err := conf.Polling.Policy()
	if err != nil {
		return a, err
	}
	a.controller, err = runs.NewController(logger, a.backend, a.validate, policy)
	if err != nil {
		return a, err
	}
	if a.store != nil {
		a.controller.WithRecorder(a.store)
	}

	a.feedback, err = feedback.NewService(logger, a.backend, a.validate)
	if err != nil {
		return a, err
	}
	return a, nil
}

// newCLIApp builds the app of an interactive command, logging to stderr.
func newCLIApp(ctx context.Context, opts *rootOptions) (*app, error) {
	logger, logShutdown, err := logging.NewCLILogger(opts.verbose)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, opts, logger, logShutdown)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close stops the polling, then the store, the tracer and the logger, in
// that order. Components that were never built are skipped.
func (a *app) close() {
	if a == nil {
		return
	}
	var errs []error
	if a.controller != nil {
		errs = append(errs, a.controller.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.tracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.tracingShutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Failed to shut down cleanly", "error", err.Error())
	}
	if a.logShutdown != nil {
		_ = a.logShutdown() // ignore the error
	}
}

// requireStore returns the history store or an error naming the missing section
func (a *app) requireStore() (abstractions.RunStore, error) {
	if a.store == nil {
		return nil, errors.New("the run history needs a database section in the configuration")
	}
	return a.store, nil
}
