package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// LoadConfig loads and validates configuration from, in increasing order of
// precedence:
//  1. Default values
//  2. The YAML file at path (optional; a missing file is not an error)
//  3. BOT_* environment variables, e.g. BOT_TELEGRAM_TOKEN
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %w", ErrConfiguration, path, err)
			}
			slog.Info("configuration file not found, using defaults", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	slog.Debug("configuration loaded",
		"path", path,
		"ai_provider", cfg.AI.Provider,
		"rate_limit_categories", len(cfg.RateLimits),
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}
