package config

import "time"

const (
	ExporterTypeOTLPHTTP = "otlp-http"
	ExporterTypeOTLPGRPC = "otlp-grpc"
	ExporterTypeStdout   = "stdout"
)

type OTelConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ServiceName      string        `mapstructure:"service_name,omitempty"`
	ExporterType     string        `mapstructure:"exporter_type"`
	ExporterEndpoint string        `mapstructure:"exporter_endpoint,omitempty"`
	ExporterInsecure bool          `mapstructure:"exporter_insecure,omitempty"`
	SamplingRatio    *float64      `mapstructure:"sampling_ratio,omitempty"`
	ExportTimeout    time.Duration `mapstructure:"export_timeout,omitempty"`
}
