// Package config loads application configuration from file and
// environment and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/migration-cli/internal/matcher"
	"github.com/sells-group/migration-cli/internal/repair"
	"github.com/sells-group/migration-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig    `yaml:"store" mapstructure:"store"`
	Import ImportConfig   `yaml:"import" mapstructure:"import"`
	Match  matcher.Config `yaml:"match" mapstructure:"match"`
	Repair repair.Config  `yaml:"repair" mapstructure:"repair"`
	Server ServerConfig   `yaml:"server" mapstructure:"server"`
	Log    LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ImportConfig configures the batch importer.
type ImportConfig struct {
	// Delimiter separates fields in batch input text.
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	// DefaultAgentID is the owning agent assigned to imported rows that
	// carry none. Empty means such rows are rejected per-row.
	DefaultAgentID string `yaml:"default_agent_id" mapstructure:"default_agent_id"`
}

// DelimiterRune returns the configured delimiter as a rune, defaulting
// to comma.
func (c ImportConfig) DelimiterRune() rune {
	if c.Delimiter == "" {
		return ','
	}
	if c.Delimiter == `\t` || c.Delimiter == "tab" {
		return '\t'
	}
	return []rune(c.Delimiter)[0]
}

// ServerConfig configures the operator HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "migration.db")
	v.SetDefault("import.delimiter", ",")
	v.SetDefault("import.default_agent_id", "")
	v.SetDefault("store.pool.max_conns", 0)
	v.SetDefault("store.pool.min_conns", 0)
	v.SetDefault("match.exact_name_weight", 0.8)
	v.SetDefault("match.exact_region_weight", 0.2)
	v.SetDefault("match.exact_region_default", 0.5)
	v.SetDefault("match.partial_name_threshold", 0.8)
	v.SetDefault("match.partial_name_weight", 0.7)
	v.SetDefault("match.partial_region_weight", 0.3)
	v.SetDefault("match.partial_region_default", 0.3)
	v.SetDefault("match.partial_total_threshold", 0.75)
	v.SetDefault("match.concurrency", 4)
	v.SetDefault("repair.concurrency", 4)
	v.SetDefault("repair.ops_per_sec", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Store.Driver != "sqlite" && cfg.Store.Driver != "postgres" {
		return nil, eris.Errorf("config: unknown store driver %q", cfg.Store.Driver)
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
