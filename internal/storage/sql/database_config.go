package sql

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelsql"
)

const defaultPingTimeout = time.Second

// SQLDatabaseConfig is the database section of the configuration, decoded
// with mapstructure. Only the driver and the url are required.
type SQLDatabaseConfig struct {
	Driver          string         `mapstructure:"driver"`
	URL             string         `mapstructure:"url"`
	ConnMaxLifetime *time.Duration `mapstructure:"conn_max_lifetime,omitempty"`
	MaxIdleConns    *int           `mapstructure:"max_idle_conns,omitempty"`
	MaxOpenConns    *int           `mapstructure:"max_open_conns,omitempty"`
	// DatabaseName is reported on the database spans
	DatabaseName string `mapstructure:"database_name,omitempty"`
	// PingTimeout bounds the connectivity check done when the history store
	// is opened
	PingTimeout *time.Duration `mapstructure:"ping_timeout,omitempty"`
}

func (c *SQLDatabaseConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("the database url is not set, the run history needs one")
	}
	return checkDriver(c.Driver)
}

func (c *SQLDatabaseConfig) dbSystem() string {
	if c.Driver == POSTGRES_DRIVER {
		return "postgresql"
	}
	return "sqlite"
}

func (c *SQLDatabaseConfig) telemetryOptions() []otelsql.Option {
	opts := []otelsql.Option{otelsql.WithDBSystem(c.dbSystem())}
	if c.DatabaseName != "" {
		opts = append(opts, otelsql.WithDBName(c.DatabaseName))
	}
	return opts
}

func (c *SQLDatabaseConfig) applyPoolLimits(pool *sql.DB) {
	if c.ConnMaxLifetime != nil {
		pool.SetConnMaxLifetime(*c.ConnMaxLifetime)
	}
	if c.MaxIdleConns != nil {
		pool.SetMaxIdleConns(*c.MaxIdleConns)
	}
	if c.MaxOpenConns != nil {
		pool.SetMaxOpenConns(*c.MaxOpenConns)
	}
}

func (c *SQLDatabaseConfig) pingTimeout() time.Duration {
	if c.PingTimeout != nil && *c.PingTimeout > 0 {
		return *c.PingTimeout
	}
	return defaultPingTimeout
}
