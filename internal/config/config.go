package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Limits LimitsConfig `mapstructure:"limits"`
	GC     GCConfig     `mapstructure:"gc"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LimitsConfig bounds what a single client request may look like on the
// wire. Static for the process lifetime; not re-read at runtime.
type LimitsConfig struct {
	MaxBulkLen  int  `mapstructure:"max_bulk_len"`  // max bytes in one bulk string
	MaxArrayLen int  `mapstructure:"max_array_len"` // max elements in one array
	MaxDepth    int  `mapstructure:"max_depth"`     // max array nesting
	Shards      uint `mapstructure:"shards"`        // keyspace shard count, power of two
}

// GCConfig defines the parameters for the background active expiration
type GCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`          // how often to run the background check
	SamplesPerCheck int           `mapstructure:"samples_per_check"` // how many keys to check per loop
	MatchThreshold  float64       `mapstructure:"match_threshold"`   // 0.0-1.0. if expired/scanned > threshold, repeat immediately
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("MOONBEAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "6380")

	// Limits
	viper.SetDefault("limits.max_bulk_len", 512*1024)
	viper.SetDefault("limits.max_array_len", 1024)
	viper.SetDefault("limits.max_depth", 32)
	viper.SetDefault("limits.shards", 32)

	// GC
	viper.SetDefault("gc.enabled", true)
	viper.SetDefault("gc.interval", "100ms")
	viper.SetDefault("gc.samples_per_check", 20)
	viper.SetDefault("gc.match_threshold", 0.25)

	// Logger
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}
