package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Provider loads Config from an optional file, then environment variables
// with the DECLARION_ prefix, then bound flags. Later sources win.
type Provider struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
	v          *viper.Viper
}

// NewProvider creates a provider. configFile may be empty.
func NewProvider(configFile string) *Provider {
	return &Provider{
		configFile: configFile,
		envPrefix:  "DECLARION",
		v:          viper.New(),
	}
}

// WithFlags binds a flag set whose values override file and environment.
func (p *Provider) WithFlags(flags *pflag.FlagSet) *Provider {
	p.flags = flags
	return p
}

// Load merges defaults, file, environment and flags into a Config.
func (p *Provider) Load() (*Config, error) {
	defaults := DefaultConfig()
	p.v.SetDefault("service.name", defaults.Service.Name)
	p.v.SetDefault("store.url", defaults.Store.URL)
	p.v.SetDefault("store.database", defaults.Store.Database)
	p.v.SetDefault("store.connect_timeout", defaults.Store.ConnectTimeout)
	p.v.SetDefault("store.operation_timeout", defaults.Store.OperationTimeout)
	p.v.SetDefault("logger.level", defaults.Logger.Level)
	p.v.SetDefault("logger.format", defaults.Logger.Format)
	p.v.SetDefault("transaction.lock_timeout", defaults.Transaction.LockTimeout)

	p.v.SetEnvPrefix(p.envPrefix)
	p.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	p.v.AutomaticEnv()

	if p.configFile != "" {
		p.v.SetConfigFile(p.configFile)
		if err := p.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if p.flags != nil {
		if err := p.v.BindPFlags(p.flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := p.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AllSettings returns the merged settings currently held by the provider.
func (p *Provider) AllSettings() map[string]interface{} {
	return p.v.AllSettings()
}
