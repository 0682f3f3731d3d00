package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"
)

type BackendConfig struct {
	URL                string        `mapstructure:"url"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	Token              string        `mapstructure:"token"`
	TokenPath          string        `mapstructure:"token_path"`
	CACertPath         string        `mapstructure:"ca_cert_path"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	// LocalRunDuration is how long a run of the local backend takes to complete
	LocalRunDuration time.Duration `mapstructure:"local_run_duration"`
	TLSConfig        *tls.Config   // not serialized
}

// GetToken returns the configured token, reading token_path when no inline
// token is set.
func (b *BackendConfig) GetToken() (string, error) {
	if b == nil {
		return "", nil
	}
	if b.Token != "" {
		return b.Token, nil
	}
	if b.TokenPath == "" {
		return "", nil
	}
	token, err := os.ReadFile(b.TokenPath)
	if err != nil {
		return "", fmt.Errorf("failed to read backend token from %s: %w", b.TokenPath, err)
	}
	return strings.TrimSpace(string(token)), nil
}

// BuildTLSConfig returns the TLS configuration for the backend connection or
// nil when the defaults apply.
func (b *BackendConfig) BuildTLSConfig() (*tls.Config, error) {
	if b == nil {
		return nil, nil
	}
	if b.TLSConfig != nil {
		return b.TLSConfig, nil
	}
	if b.CACertPath == "" && !b.InsecureSkipVerify {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.InsecureSkipVerify, // #nosec G402 -- opt-in for development backends
	}
	if b.CACertPath != "" {
		pem, err := os.ReadFile(b.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read backend CA certificate %s: %w", b.CACertPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", b.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}
