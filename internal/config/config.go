// Package config loads coinshelf settings from defaults, an optional YAML
// file, COINSHELF_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. COINSHELF_MARKET_TIMEOUT.
const EnvPrefix = "COINSHELF"

// Config represents the complete application configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Market   MarketConfig   `mapstructure:"market"   yaml:"market"`
	History  HistoryConfig  `mapstructure:"history"  yaml:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // empty = <data_dir>/coinshelf.db
}

// MarketConfig configures the remote market data client.
type MarketConfig struct {
	BaseURL    string        `mapstructure:"base_url"    yaml:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"   yaml:"cache_ttl"`
	VsCurrency string        `mapstructure:"vs_currency" yaml:"vs_currency"`
	TopLimit   int           `mapstructure:"top_limit"   yaml:"top_limit"`
}

// HistoryConfig configures price history retention.
type HistoryConfig struct {
	Retention time.Duration `mapstructure:"retention" yaml:"retention"` // 0 keeps everything
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir: "~/.coinshelf",
		Market: MarketConfig{
			BaseURL:    "https://api.coingecko.com/api/v3",
			Timeout:    10 * time.Second,
			CacheTTL:   5 * time.Minute,
			VsCurrency: "usd",
			TopLimit:   50,
		},
		History: HistoryConfig{
			Retention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":   "data_dir",
	"db":         "database.path",
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit config path. When empty, config.yaml is
	// searched in the working directory and ~/.coinshelf.
	ConfigFile string

	// Flags, when set, overrides values for every flag the user changed.
	Flags *pflag.FlagSet
}

// Load reads the configuration.
func Load(opts Options) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(expandHome(opts.ConfigFile))
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(homeDir(), ".coinshelf"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for flag, key := range flagKeys {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("error binding flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Database.Path = expandHome(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and obscurely.
func (c Config) Validate() error {
	if c.DataDir == "" && c.Database.Path == "" {
		return errors.New("config: data_dir or database.path is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	if c.Market.Timeout < 0 || c.Market.CacheTTL < 0 || c.History.Retention < 0 {
		return errors.New("config: durations must not be negative")
	}
	return nil
}

// DatabasePath returns the SQLite file path.
func (c Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, "coinshelf.db")
}

// PrefsDir returns the preferences directory.
func (c Config) PrefsDir() string {
	return filepath.Join(c.DataDir, "prefs")
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("market.base_url", d.Market.BaseURL)
	v.SetDefault("market.timeout", d.Market.Timeout)
	v.SetDefault("market.cache_ttl", d.Market.CacheTTL)
	v.SetDefault("market.vs_currency", d.Market.VsCurrency)
	v.SetDefault("market.top_limit", d.Market.TopLimit)

	v.SetDefault("history.retention", d.History.Retention)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
