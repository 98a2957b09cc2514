// Package config loads dispatcher and worker-pool settings from the
// environment and an optional .env file, and builds the logger and pool
// the rest of the library consumes.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/asynckit/dispatch/pool"
)

// Config holds the tunable settings of a dispatcher deployment.
type Config struct {
	Workers   int
	QueueSize int
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and a .env file,
// applies defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")

	v.SetDefault("DISPATCH_WORKERS", 4)
	v.SetDefault("DISPATCH_QUEUE_SIZE", 8)
	v.SetDefault("DISPATCH_LOG_LEVEL", "info")
	v.SetDefault("DISPATCH_LOG_FORMAT", "text")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			slog.Warn("failed to read config file", "error", err)
		}
	}

	workers := v.GetInt("DISPATCH_WORKERS")
	if workers <= 0 {
		return nil, fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", workers)
	}
	queueSize := v.GetInt("DISPATCH_QUEUE_SIZE")
	if queueSize <= 0 {
		return nil, fmt.Errorf("DISPATCH_QUEUE_SIZE must be positive, got %d", queueSize)
	}

	format := strings.ToLower(v.GetString("DISPATCH_LOG_FORMAT"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("DISPATCH_LOG_FORMAT must be text or json, got %q", format)
	}

	var level slog.Level
	switch strings.ToLower(v.GetString("DISPATCH_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info":
		level = slog.LevelInfo
	default:
		slog.Warn("unrecognized log level, defaulting to info",
			"provided", v.GetString("DISPATCH_LOG_LEVEL"))
		level = slog.LevelInfo
	}

	return &Config{
		Workers:   workers,
		QueueSize: queueSize,
		LogLevel:  level,
		LogFormat: format,
	}, nil
}

// NewLogger builds an slog logger matching the configured level and
// format. A nil output defaults to stderr.
func (c *Config) NewLogger(output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: c.LogLevel}

	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

// NewWorkers builds the configured fixed-size worker pool.
func (c *Config) NewWorkers(logger *slog.Logger) *pool.Workers {
	return pool.NewWorkers(c.Workers, c.QueueSize, logger)
}
