package config

// Config is the configuration of runctl. Every section is optional in the
// file, missing sections fall back to the defaults of the section type.
type Config struct {
	Service  *ServiceConfig  `mapstructure:"service"`
	Backend  *BackendConfig  `mapstructure:"backend"`
	Polling  *PollingConfig  `mapstructure:"polling"`
	Database *map[string]any `mapstructure:"database,omitempty"`
	OTel     *OTelConfig     `mapstructure:"otel,omitempty"`
}

func (c *Config) IsOTelEnabled() bool {
	return c != nil && c.OTel != nil && c.OTel.Enabled
}

func (c *Config) IsDatabaseEnabled() bool {
	return c != nil && c.Database != nil && len(*c.Database) > 0
}
