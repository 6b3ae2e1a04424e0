// Package config loads engine configuration from file, environment and
// flags, in that precedence order.
package config

import (
	"fmt"
	"time"
)

// Config is the full engine configuration.
type Config struct {
	Service     ServiceConfig     `mapstructure:"service"`
	Store       StoreConfig       `mapstructure:"store"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Transaction TransactionConfig `mapstructure:"transaction"`
}

// ServiceConfig names the running service.
type ServiceConfig struct {
	Name string `mapstructure:"name"`
}

// StoreConfig configures the document store connection.
type StoreConfig struct {
	URL              string        `mapstructure:"url"`
	Database         string        `mapstructure:"database"`
	ReplicaSet       string        `mapstructure:"replica_set"`
	AuthDatabase     string        `mapstructure:"auth_database"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TransactionConfig configures the transaction coordinator.
type TransactionConfig struct {
	// LockTimeout bounds how long a transaction waits on contended
	// documents before aborting as retryable.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{Name: "declarion"},
		Store: StoreConfig{
			URL:              "mongodb://localhost:27017",
			Database:         "declarion",
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 5 * time.Second,
		},
		Logger: LoggerConfig{Level: "info", Format: "json"},
		Transaction: TransactionConfig{
			LockTimeout: 150 * time.Millisecond,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Store.Database == "" {
		return fmt.Errorf("store.database is required")
	}
	switch c.Logger.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logger.level %q is invalid", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("logger.format %q is invalid", c.Logger.Format)
	}
	if c.Transaction.LockTimeout <= 0 {
		return fmt.Errorf("transaction.lock_timeout must be positive")
	}
	return nil
}
