// Package config loads saij settings from defaults, an optional YAML file
// and SAIJ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/skan-io/saij/internal/connection"
)

// EnvConfig names the variable that points at a config file.
const EnvConfig = "SAIJ_CONFIG"

// Config holds application configuration.
type Config struct {
	Log     LogConfig
	Engine  EngineConfig
	Harness HarnessConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// EngineConfig holds engine defaults.
type EngineConfig struct {
	Mode string // simplex or duplex
}

// HarnessConfig holds scenario runner settings. A relative GoldenDir is
// resolved against the scenarios directory.
type HarnessConfig struct {
	GoldenDir string `mapstructure:"golden_dir"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info", Format: "text"},
		Engine:  EngineConfig{Mode: string(connection.Simplex)},
		Harness: HarnessConfig{GoldenDir: "golden"},
	}
}

// Load reads configuration. path overrides SAIJ_CONFIG; with neither, saij.yaml
// is looked up in the working directory and ~/.config/saij. A missing file is
// not an error. Env var overrides use prefix SAIJ_ (SAIJ_LOG_LEVEL=debug).
func Load(path string) (Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("engine.mode", defaults.Engine.Mode)
	v.SetDefault("harness.golden_dir", defaults.Harness.GoldenDir)

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "saij"))
		}
		v.SetConfigName("saij")
	}

	v.SetEnvPrefix("SAIJ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// An explicitly named file must exist; the search path is optional.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	return nil
}

// Level parses log.level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Mode parses engine.mode. Remote modes are rejected.
func (c Config) Mode() (connection.Mode, error) {
	mode, err := connection.ParseMode(c.Engine.Mode)
	if err != nil {
		return "", fmt.Errorf("engine.mode: %w", err)
	}
	if mode.Remote() {
		return "", fmt.Errorf("engine.mode: %q needs a transport saij does not provide", mode)
	}
	return mode, nil
}

// NewLogger builds a logger writing to w in the configured format. verbose
// forces debug level.
func (c Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
