package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ack timeout policies.
const (
	PolicyWait   = "wait"   // stop waiting, let the command run to completion
	PolicyCancel = "cancel" // also cancel the pending command's context
)

// Journal backends, chosen from which storage URLs are set.
const (
	JournalMemory   = "memory"
	JournalRedis    = "redis"
	JournalPostgres = "postgres"
	JournalHybrid   = "hybrid"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Network
	BindHost   string `env:"BIND_HOST" default:"0.0.0.0"`
	TaskPort   int    `env:"TASK_PORT" default:"30001"`
	LogPort    int    `env:"LOG_PORT" default:"30002"`
	StatusPort int    `env:"STATUS_PORT" default:"8084"` // 0 disables the status API

	// Timing
	AckTimeout        time.Duration `env:"ACK_TIMEOUT" default:"60s"`
	AckTimeoutPolicy  string        `env:"ACK_TIMEOUT_POLICY" default:"wait"`
	QueuePollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" default:"100ms"`
	GateRetryDelay    time.Duration `env:"GATE_RETRY_DELAY" default:"500ms"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" default:"5m"`

	// Limits
	MaxFrameSize int     `env:"MAX_FRAME_SIZE" default:"65536"`
	RateLimit    float64 `env:"RATE_LIMIT" default:"20"`
	RateBurst    int     `env:"RATE_BURST" default:"40"`
	ReplyErrors  bool    `env:"REPLY_ERRORS" default:"false"`

	// Device
	Device           string        `env:"DEVICE" default:"sim"`
	SimMotionLatency time.Duration `env:"SIM_MOTION_LATENCY" default:"50ms"`
	IOPulseWidth     time.Duration `env:"IO_PULSE_WIDTH" default:"200ms"`

	// Journal storage
	RedisURL             string        `env:"REDIS_URL"`
	RedisPassword        string        `env:"REDIS_PASSWORD"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	JournalSize          int           `env:"JOURNAL_SIZE" default:"1000"`
	JournalFlushInterval time.Duration `env:"JOURNAL_FLUSH_INTERVAL" default:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig reads the given .env files (".env" when none are given) and then the
// process environment. Missing files are ignored.
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("env_file_not_found", "file", f)
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	config := &Config{}
	loaders := []func() error{
		func() error { return loadEnvString(&config.GoEnv, "GO_ENV", "development") },

		func() error { return loadEnvString(&config.BindHost, "BIND_HOST", "0.0.0.0") },
		func() error { return loadEnvInt(&config.TaskPort, "TASK_PORT", 30001) },
		func() error { return loadEnvInt(&config.LogPort, "LOG_PORT", 30002) },
		func() error { return loadEnvInt(&config.StatusPort, "STATUS_PORT", 8084) },

		func() error { return loadEnvDuration(&config.AckTimeout, "ACK_TIMEOUT", 60*time.Second) },
		func() error { return loadEnvString(&config.AckTimeoutPolicy, "ACK_TIMEOUT_POLICY", PolicyWait) },
		func() error {
			return loadEnvDuration(&config.QueuePollInterval, "QUEUE_POLL_INTERVAL", 100*time.Millisecond)
		},
		func() error { return loadEnvDuration(&config.GateRetryDelay, "GATE_RETRY_DELAY", 500*time.Millisecond) },
		func() error { return loadEnvDuration(&config.ShutdownTimeout, "SHUTDOWN_TIMEOUT", 5*time.Second) },
		func() error { return loadEnvDuration(&config.IdleTimeout, "IDLE_TIMEOUT", 5*time.Minute) },

		func() error { return loadEnvInt(&config.MaxFrameSize, "MAX_FRAME_SIZE", 64*1024) },
		func() error { return loadEnvFloat(&config.RateLimit, "RATE_LIMIT", 20) },
		func() error { return loadEnvInt(&config.RateBurst, "RATE_BURST", 40) },
		func() error { return loadEnvBool(&config.ReplyErrors, "REPLY_ERRORS", false) },

		func() error { return loadEnvString(&config.Device, "DEVICE", "sim") },
		func() error { return loadEnvDuration(&config.SimMotionLatency, "SIM_MOTION_LATENCY", 50*time.Millisecond) },
		func() error { return loadEnvDuration(&config.IOPulseWidth, "IO_PULSE_WIDTH", 200*time.Millisecond) },

		func() error { return loadEnvString(&config.RedisURL, "REDIS_URL", "") },
		func() error { return loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", "") },
		func() error { return loadEnvString(&config.DatabaseURL, "DATABASE_URL", "") },
		func() error { return loadEnvInt(&config.JournalSize, "JOURNAL_SIZE", 1000) },
		func() error {
			return loadEnvDuration(&config.JournalFlushInterval, "JOURNAL_FLUSH_INTERVAL", 30*time.Second)
		},

		func() error { return loadEnvString(&config.LogLevel, "LOG_LEVEL", "info") },
		func() error { return loadEnvString(&config.LogFormat, "LOG_FORMAT", "text") },
	}
	for _, load := range loaders {
		if err := load(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errs []string

	for _, p := range []struct {
		name string
		port int
	}{{"TASK_PORT", c.TaskPort}, {"LOG_PORT", c.LogPort}} {
		if p.port < 0 || p.port > 65535 {
			errs = append(errs, p.name+" must be between 0 and 65535")
		}
	}
	if c.TaskPort != 0 && c.TaskPort == c.LogPort {
		errs = append(errs, "TASK_PORT and LOG_PORT must differ")
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		errs = append(errs, "STATUS_PORT must be between 0 and 65535")
	}

	if c.AckTimeout <= 0 {
		errs = append(errs, "ACK_TIMEOUT must be positive")
	}
	if !slices.Contains([]string{PolicyWait, PolicyCancel}, c.AckTimeoutPolicy) {
		errs = append(errs, "ACK_TIMEOUT_POLICY must be one of: wait, cancel")
	}
	if c.QueuePollInterval <= 0 {
		errs = append(errs, "QUEUE_POLL_INTERVAL must be positive")
	}
	if c.MaxFrameSize < 64 {
		errs = append(errs, "MAX_FRAME_SIZE must be at least 64")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, "RATE_LIMIT and RATE_BURST must not be negative")
	}
	if c.Device != "sim" {
		errs = append(errs, "DEVICE must be one of: sim")
	}
	if c.JournalSize <= 0 {
		errs = append(errs, "JOURNAL_SIZE must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// CancelOnTimeout reports whether the cancel policy is active.
func (c *Config) CancelOnTimeout() bool {
	return c.AckTimeoutPolicy == PolicyCancel
}

// JournalBackend picks the journal from the configured storage URLs.
func (c *Config) JournalBackend() string {
	switch {
	case c.RedisURL != "" && c.DatabaseURL != "":
		return JournalHybrid
	case c.RedisURL != "":
		return JournalRedis
	case c.DatabaseURL != "":
		return JournalPostgres
	default:
		return JournalMemory
	}
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}
