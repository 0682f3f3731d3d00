package config

type ServiceConfig struct {
	Version         string `mapstructure:"version,omitempty"`
	Build           string `mapstructure:"build,omitempty"`
	BuildDate       string `mapstructure:"build_date,omitempty"`
	Port            int    `mapstructure:"port,omitempty"`
	ReadyFile       string `mapstructure:"ready_file"`
	TerminationFile string `mapstructure:"termination_file"`
	LocalMode       bool   `mapstructure:"local_mode,omitempty"`
	DisableMetrics  bool   `mapstructure:"disable_metrics,omitempty"`
}
