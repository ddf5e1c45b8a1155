package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tracescope.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	return LoadWithCLI(CLIFlags{ConfigPath: &yamlPath})
}

// LoadWithCLI is LoadFrom with command line overrides applied last.
// A nil ConfigPath uses DefaultConfigFile.
func LoadWithCLI(flags CLIFlags) (*Config, error) {
	cfg := Defaults()

	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}
	if err := loadYAML(&cfg, path); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TRACESCOPE_PORT")
	setString(&cfg.Server.CORSOrigin, "TRACESCOPE_CORS_ORIGIN")
	setInt64(&cfg.Server.MaxUploadMB, "TRACESCOPE_MAX_UPLOAD_MB")
	setString(&cfg.Logging.Level, "TRACESCOPE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TRACESCOPE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TRACESCOPE_LOG_ASYNC")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "TRACESCOPE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "TRACESCOPE_CACHE_TTL")

	// NATS
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "TRACESCOPE_NATS_SUBJECT")
	setString(&cfg.NATS.ExportBucket, "TRACESCOPE_NATS_EXPORT_BUCKET")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "TRACESCOPE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "TRACESCOPE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "TRACESCOPE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "TRACESCOPE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "TRACESCOPE_OTEL_SAMPLE_RATE")

	// Trace
	setString(&cfg.Trace.File, "TRACESCOPE_TRACE_FILE")
	setBool(&cfg.Trace.Watch, "TRACESCOPE_TRACE_WATCH")
	setFloat64(&cfg.Trace.SlowThresholdMs, "TRACESCOPE_SLOW_THRESHOLD_MS")

	// Filters
	setString(&cfg.Filters.PresetDir, "TRACESCOPE_FILTER_PRESET_DIR")
	setBool(&cfg.Filters.Apply, "TRACESCOPE_FILTER_APPLY")
	setString(&cfg.Filters.File, "TRACESCOPE_FILTER_FILE")

	setInt(&cfg.Breaker.MaxFailures, "TRACESCOPE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TRACESCOPE_BREAKER_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.MaxUploadMB < 1 {
		return errors.New("server.max_upload_mb must be >= 1")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.NATS.URL != "" && strings.TrimSpace(cfg.NATS.Subject) == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint == "" {
		return errors.New("otel.endpoint is required when otel is enabled")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be between 0 and 1")
	}
	if cfg.Trace.Watch && cfg.Trace.File == "" {
		return errors.New("trace.watch requires trace.file")
	}
	if cfg.Trace.SlowThresholdMs <= 0 {
		return errors.New("trace.slow_threshold_ms must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
