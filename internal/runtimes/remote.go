package runtimes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/pkg/testgenclient"
)

const defaultHTTPTimeout = 30 * time.Second

// NewRemoteBackend builds the HTTP client of the testgen backend
func NewRemoteBackend(logger *slog.Logger, backendConfig *config.BackendConfig) (*testgenclient.Client, error) {
	if backendConfig == nil || backendConfig.URL == "" {
		return nil, fmt.Errorf("the backend URL is not set, set backend.url or run in local mode")
	}

	token, err := backendConfig.GetToken()
	if err != nil {
		return nil, err
	}
	tlsConfig, err := backendConfig.BuildTLSConfig()
	if err != nil {
		return nil, err
	}

	client := testgenclient.NewClient(backendConfig.URL).WithLogger(logger)
	if tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		client = client.WithHTTPClient(&http.Client{Timeout: defaultHTTPTimeout, Transport: otelhttp.NewTransport(transport)})
	}
	if backendConfig.HTTPTimeout > 0 {
		client = client.WithTimeout(backendConfig.HTTPTimeout)
	}
	if token != "" {
		client = client.WithToken(token)
	}

	logger.Info("Backend client created", "url", client.GetBaseURL(), "tls", tlsConfig != nil, "token", token != "")
	return client, nil
}
