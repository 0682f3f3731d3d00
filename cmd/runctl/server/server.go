package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/feedback"
	"github.com/gametester/runctl/internal/handlers"
	"github.com/gametester/runctl/internal/http_wrappers"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/runs"
)

type Server struct {
	httpServer    *http.Server
	port          int
	logger        *slog.Logger
	serviceConfig *config.Config
	controller    *runs.Controller
	feedback      *feedback.Service
	history       abstractions.RunStore
	validate      *validator.Validate
}

// NewServer creates the HTTP server of the local run API. Routing uses the
// standard library net/http.ServeMux, each route switches on the HTTP method
// and builds the ExecutionContext before calling its handler.
//
// All routes are wrapped with the Prometheus metrics middleware. The history
// store is optional, without it the API only serves the runs tracked by the
// controller.
func NewServer(logger *slog.Logger,
	serviceConfig *config.Config,
	controller *runs.Controller,
	feedbackService *feedback.Service,
	history abstractions.RunStore,
	validate *validator.Validate) (*Server, error) {

	if logger == nil {
		return nil, fmt.Errorf("logger is required for the server")
	}
	if (serviceConfig == nil) || (serviceConfig.Service == nil) {
		return nil, fmt.Errorf("service config is required for the server")
	}
	if controller == nil {
		return nil, fmt.Errorf("run controller is required for the server")
	}
	if feedbackService == nil {
		return nil, fmt.Errorf("feedback service is required for the server")
	}
	if validate == nil {
		return nil, fmt.Errorf("validator is required for the server")
	}

	return &Server{
		port:          serviceConfig.Service.Port,
		logger:        logger,
		serviceConfig: serviceConfig,
		controller:    controller,
		feedback:      feedbackService,
		history:       history,
		validate:      validate,
	}, nil
}

func (s *Server) GetPort() int {
	return s.port
}

// loggerWithRequest returns the request id and a logger carrying the request
// fields. The request id is taken from X-Global-Transaction-Id or generated.
func (s *Server) loggerWithRequest(r *http.Request) (string, *slog.Logger) {
	requestID := r.Header.Get("X-Global-Transaction-Id")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	enhancedLogger := s.logger.With(constants.LOG_REQUEST_ID, requestID)

	if r.Method != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_METHOD, r.Method)
	}

	uri := ""
	if r.URL != nil {
		uri = r.URL.Path
	}
	if uri == "" {
		uri = r.RequestURI
	}
	if uri != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_URI, uri)
	}

	if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_USER_AGENT, userAgent)
	}

	if r.RemoteAddr != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_REMOTE_ADR, r.RemoteAddr)
	}

	remoteUser := ""
	if r.URL != nil && r.URL.User != nil {
		remoteUser = r.URL.User.Username()
	}
	if remoteUser == "" {
		remoteUser = r.Header.Get("Remote-User")
	}
	if remoteUser != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_USER, remoteUser)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_REFERER, referer)
	}

	return requestID, enhancedLogger
}

type handlerFunc func(*executioncontext.ExecutionContext, http_wrappers.RequestWrapper, http_wrappers.ResponseWrapper)

// route registers pattern with one handler per allowed method, any other
// method is answered with 405.
func (s *Server) route(router *http.ServeMux, pattern string, methods map[string]handlerFunc) {
	router.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		handler, ok := methods[req.Method()]
		if !ok {
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
			return
		}
		handler(ctx, req, resp)
	})
}

func (s *Server) setupRoutes() (http.Handler, error) {
	router := http.NewServeMux()
	h := handlers.New(s.controller, s.feedback, s.history, s.validate, s.serviceConfig)

	// Health and status endpoints
	s.route(router, "/api/v1/health", map[string]handlerFunc{
		http.MethodGet: h.HandleHealth,
	})
	s.route(router, "/api/v1/status", map[string]handlerFunc{
		http.MethodGet: h.HandleStatus,
	})

	// Run endpoints
	s.route(router, "/api/v1/runs", map[string]handlerFunc{
		http.MethodPost: h.HandleSubmitRun,
		http.MethodGet:  h.HandleListRuns,
	})
	s.route(router, fmt.Sprintf("/api/v1/runs/{%s}", constants.PATH_PARAMETER_RUN_ID), map[string]handlerFunc{
		http.MethodGet:    h.HandleGetRun,
		http.MethodDelete: h.HandleCancelRun,
	})
	s.route(router, fmt.Sprintf("/api/v1/runs/{%s}/report", constants.PATH_PARAMETER_RUN_ID), map[string]handlerFunc{
		http.MethodGet: h.HandleGetReport,
	})

	// Feedback and learning endpoints
	s.route(router, "/api/v1/feedback", map[string]handlerFunc{
		http.MethodPost: h.HandleSubmitFeedback,
	})
	s.route(router, "/api/v1/insights", map[string]handlerFunc{
		http.MethodGet: h.HandleGetInsights,
	})
	s.route(router, "/api/v1/retrain", map[string]handlerFunc{
		http.MethodPost: h.HandleRetrain,
	})
	s.route(router, "/api/v1/backend/runs", map[string]handlerFunc{
		http.MethodGet: h.HandleListBackendRuns,
	})

	// OpenAPI documentation endpoints
	s.route(router, "/openapi.yaml", map[string]handlerFunc{
		http.MethodGet: h.HandleOpenAPI,
	})
	s.route(router, "/docs", map[string]handlerFunc{
		http.MethodGet: h.HandleDocs,
	})

	if !s.serviceConfig.Service.DisableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	handler := http.Handler(router)
	// CORS is only enabled for local development
	if s.serviceConfig.Service.LocalMode {
		handler = CorsMiddleware(handler, s.serviceConfig)
	}
	if s.serviceConfig.IsOTelEnabled() {
		handler = otelhttp.NewHandler(handler, "runctl")
	}

	// outermost so that every request is measured
	handler = Middleware(handler)

	return handler, nil
}

// SetupRoutes exposes the route setup for testing
func (s *Server) SetupRoutes() (http.Handler, error) {
	return s.setupRoutes()
}

func (s *Server) Start() error {
	handler, err := s.setupRoutes()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.serviceConfig.Service.ReadyFile != "" {
		s.logger.Info("Writing the server ready message", "file", s.serviceConfig.Service.ReadyFile)
		if err := SetReady(s.serviceConfig, s.logger); err != nil {
			return err
		}
	}

	s.logger.Info("Server starting", "port", s.port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server gracefully...")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
