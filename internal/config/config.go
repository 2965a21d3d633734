// Package config loads CLI settings from typedsql.yaml, TYPEDSQL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/typedsql/internal/sqlfmt"
)

const (
	configName = "typedsql"
	configType = "yaml"
	envPrefix  = "TYPEDSQL"
)

// Config keys.
const (
	KeyDialect           = "dialect"
	KeyDatabase          = "database"
	KeyManifest          = "manifest"
	KeyLogLevel          = "log_level"
	KeyFormat            = "format"
	KeyIgnoreForeignKeys = "ignore_foreign_keys"
)

// Formats are the accepted output formats.
var Formats = []string{"text", "json", "yaml"}

// Config holds the resolved settings.
type Config struct {
	Dialect  string `mapstructure:"dialect"`
	Database string `mapstructure:"database"`
	Manifest string `mapstructure:"manifest"`
	LogLevel string `mapstructure:"log_level"`
	Format   string `mapstructure:"format"`

	// IgnoreForeignKeys skips foreign key statements on dialects that cannot
	// alter constraints.
	IgnoreForeignKeys bool `mapstructure:"ignore_foreign_keys"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDialect, sqlfmt.SQLiteName)
	v.SetDefault(KeyDatabase, "typedsql.db")
	v.SetDefault(KeyManifest, "migrations/manifest.yaml")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyFormat, "text")
	v.SetDefault(KeyIgnoreForeignKeys, false)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or typedsql.yaml in dir when path is empty, binds flags
// and returns the validated configuration. A missing default file is not an
// error.
func Load(v *viper.Viper, path, dir string, flags *pflag.FlagSet) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range []string{KeyDialect, KeyDatabase, KeyManifest, KeyLogLevel, KeyFormat, KeyIgnoreForeignKeys} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %q: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	if _, err := sqlfmt.New(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(Formats, c.Format) {
		errs = append(errs, fmt.Errorf("invalid format %q: must be one of %v", c.Format, Formats))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to an slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
}

// Formatter returns the formatter for the configured dialect.
func (c *Config) Formatter() (*sqlfmt.Formatter, error) {
	var opts []sqlfmt.Option
	if c.IgnoreForeignKeys {
		opts = append(opts, sqlfmt.IgnoreForeignKeys())
	}
	return sqlfmt.New(c.Dialect, opts...)
}
