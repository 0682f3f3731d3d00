package features

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/gametester/runctl/cmd/runctl/server"
	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/feedback"
	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/runs"
	"github.com/gametester/runctl/internal/runtimes/local"
	"github.com/gametester/runctl/internal/validation"
)

var (
	// shared by every scenario of the suite
	api *apiFeature
)

// waitTimeout bounds how long a scenario waits for a run to finish
const waitTimeout = 10 * time.Second

type apiFeature struct {
	baseURL    *url.URL
	controller *runs.Controller
	httpServer *http.Server
	client     *http.Client
}

// scenarioConfig keeps the state of one scenario
type scenarioConfig struct {
	scenarioName string
	apiFeature   *apiFeature
	response     *http.Response
	body         []byte

	lastId string
}

func logDebug(format string, a ...any) {
	fmt.Printf(format, a...)
}

func createApiFeature() (*apiFeature, error) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	if serverURL := os.Getenv("SERVER_URL"); serverURL != "" {
		uri, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_URL: %w", err)
		}
		return &apiFeature{client: client, baseURL: uri}, nil
	}

	a := &apiFeature{client: client}
	if err := a.startLocalServer(); err != nil {
		return nil, err
	}
	return a, nil
}

// startLocalServer serves the API on a free port with the local backend and
// a fast polling policy.
func (a *apiFeature) startLocalServer() error {
	logger := logging.DiscardLogger()
	validate, err := validation.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	backend, err := local.NewLocalBackend(logger, 200*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to create the local backend: %w", err)
	}
	a.controller, err = runs.NewController(logger, backend, validate, runs.Policy{
		InitialDelay: 100 * time.Millisecond,
		Interval:     50 * time.Millisecond,
		MaxAttempts:  100,
		CountErrors:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to create the run controller: %w", err)
	}
	feedbackService, err := feedback.NewService(logger, backend, validate)
	if err != nil {
		return fmt.Errorf("failed to create the feedback service: %w", err)
	}

	serviceConfig := &config.Config{Service: &config.ServiceConfig{Version: "0.0.1", LocalMode: true}}
	srv, err := server.NewServer(logger, serviceConfig, a.controller, feedbackService, nil, validate)
	if err != nil {
		return err
	}
	handler, err := srv.SetupRoutes()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	a.baseURL, err = url.Parse("http://" + listener.Addr().String())
	if err != nil {
		return err
	}
	a.httpServer = &http.Server{Handler: handler}

	go func() {
		_ = a.httpServer.Serve(listener)
	}()
	return nil
}

func (a *apiFeature) cleanup() {
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.httpServer.Shutdown(ctx)
	}
	if a.controller != nil {
		_ = a.controller.Close()
	}
}

func (tc *scenarioConfig) theServiceIsRunning(ctx context.Context) error {
	var err error
	for range 10 {
		if err = tc.checkHealthEndpoint(); err == nil {
			return nil
		}
		logDebug("Error checking health endpoint: %v\n", err.Error())
		time.Sleep(100 * time.Millisecond)
	}
	return err
}

func (tc *scenarioConfig) checkHealthEndpoint() error {
	if err := tc.iSendARequestTo(http.MethodGet, "/api/v1/health"); err != nil {
		return fmt.Errorf("failed to send health check request: %w for URL %s", err, tc.apiFeature.baseURL.String())
	}
	if tc.response.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d", tc.response.StatusCode)
	}
	return nil
}

func (tc *scenarioConfig) iSendARequestTo(method, path string) error {
	return tc.send(method, path, "")
}

func (tc *scenarioConfig) iSendARequestToWithBody(method, path string, body *godog.DocString) error {
	return tc.send(method, path, body.Content)
}

func (tc *scenarioConfig) send(method, path, body string) error {
	if strings.Contains(path, "{id}") {
		if tc.lastId == "" {
			return fmt.Errorf("last ID is not set")
		}
		path = strings.Replace(path, "{id}", tc.lastId, 1)
	}

	var entity io.Reader
	if body != "" {
		entity = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, tc.apiFeature.baseURL.String()+path, entity)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	tc.response, err = tc.apiFeature.client.Do(req)
	if err != nil {
		return err
	}
	defer tc.response.Body.Close()
	tc.body, err = io.ReadAll(tc.response.Body)
	if err != nil {
		return err
	}

	if method == http.MethodPost && path == "/api/v1/runs" && tc.response.StatusCode == http.StatusAccepted {
		tc.lastId, err = extractRunId(tc.body)
		if err != nil {
			return err
		}
		if tc.lastId == "" {
			return fmt.Errorf("response does not contain a run id in response %s", string(tc.body))
		}
	}
	return nil
}

func extractRunId(body []byte) (string, error) {
	obj := make(map[string]any)
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", err
	}
	if id, ok := obj["run_id"].(string); ok {
		return id, nil
	}
	return "", nil
}

// iWaitForTheRunToFinish polls the snapshot of the last run until its
// polling phase is over.
func (tc *scenarioConfig) iWaitForTheRunToFinish() error {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if err := tc.iSendARequestTo(http.MethodGet, "/api/v1/runs/{id}"); err != nil {
			return err
		}
		var data map[string]any
		if err := json.Unmarshal(tc.body, &data); err != nil {
			return err
		}
		switch data["phase"] {
		case "awaiting_first_poll", "polling":
			time.Sleep(50 * time.Millisecond)
		default:
			return nil
		}
	}
	return fmt.Errorf("run %s did not finish within %s", tc.lastId, waitTimeout)
}

func (tc *scenarioConfig) theResponseStatusShouldBe(status int) error {
	if tc.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.response.StatusCode, string(tc.body))
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldBeJSON() error {
	contentType := tc.response.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("expected JSON content type, got %s", contentType)
	}
	var js any
	if err := json.Unmarshal(tc.body, &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %v", err)
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldContainWithValue(key, value string) error {
	var data map[string]any
	if err := json.Unmarshal(tc.body, &data); err != nil {
		return err
	}
	if data[key] != value {
		return fmt.Errorf("expected %s to be %s, got %v", key, value, data[key])
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldContainTheRunId(key string) error {
	return tc.theResponseShouldContainWithValue(key, tc.lastId)
}

func (tc *scenarioConfig) theResponseShouldContain(key string) error {
	var data map[string]any
	if err := json.Unmarshal(tc.body, &data); err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return fmt.Errorf("response does not contain key: %s", key)
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldContainPrometheusMetrics() error {
	bodyStr := string(tc.body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		return fmt.Errorf("response does not appear to be Prometheus metrics format")
	}
	return nil
}

func (tc *scenarioConfig) theMetricsShouldInclude(metricName string) error {
	if !strings.Contains(string(tc.body), metricName) {
		return fmt.Errorf("metrics do not include %s", metricName)
	}
	return nil
}

func (tc *scenarioConfig) theMetricsShouldShowRequestCountFor(path string) error {
	if !strings.Contains(string(tc.body), path) {
		return fmt.Errorf("metrics do not show requests for path %s", path)
	}
	return nil
}

func (tc *scenarioConfig) saveScenarioName(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	tc.scenarioName = sc.Name
	return ctx, nil
}

func setUpTestConf() {
	apiFeature, err := createApiFeature()
	if err != nil {
		panic(fmt.Errorf("failed to create API feature: %v", err))
	}
	api = apiFeature
}

func tidyUpTests() {
	if api != nil {
		api.cleanup()
	}
}

func InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(setUpTestConf)
	ctx.AfterSuite(tidyUpTests)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &scenarioConfig{apiFeature: api}

	ctx.Before(tc.saveScenarioName)

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I send a (GET|DELETE|POST) request to "([^"]*)"$`, tc.iSendARequestTo)
	ctx.Step(`^I send a (POST|PUT) request to "([^"]*)" with body:$`, tc.iSendARequestToWithBody)
	ctx.Step(`^I wait for the run to finish$`, tc.iWaitForTheRunToFinish)
	ctx.Step(`^the response code should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should be JSON$`, tc.theResponseShouldBeJSON)
	ctx.Step(`^the response should contain "([^"]*)" with value "([^"]*)"$`, tc.theResponseShouldContainWithValue)
	ctx.Step(`^the response should contain "([^"]*)" with the run id$`, tc.theResponseShouldContainTheRunId)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^the response should contain Prometheus metrics$`, tc.theResponseShouldContainPrometheusMetrics)
	ctx.Step(`^the metrics should include "([^"]*)"$`, tc.theMetricsShouldInclude)
	ctx.Step(`^the metrics should show request count for "([^"]*)"$`, tc.theMetricsShouldShowRequestCountFor)
}
