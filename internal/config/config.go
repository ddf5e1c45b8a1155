// Package config provides hierarchical configuration loading for TraceScope.
// Precedence: defaults < YAML file < environment variables < CLI flags.
package config

import "time"

// Config holds all runtime configuration for the TraceScope server and CLI.
type Config struct {
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Cache   Cache   `yaml:"cache"`
	NATS    NATS    `yaml:"nats"`
	OTEL    OTEL    `yaml:"otel"`
	Trace   Trace   `yaml:"trace"`
	Filters Filters `yaml:"filters"`
	Breaker Breaker `yaml:"breaker"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port        string `yaml:"port"`
	CORSOrigin  string `yaml:"cors_origin"`
	MaxUploadMB int64  `yaml:"max_upload_mb"` // Upper bound for trace uploads (default: 64)
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Cache holds the in-process export cache configuration.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	TTL         time.Duration `yaml:"ttl"`
}

// NATS holds session-event publishing configuration. An empty URL disables it.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`

	// ExportBucket names the JetStream KV bucket that mirrors rendered
	// exports for other consumers. Empty keeps exports in-process only.
	ExportBucket string `yaml:"export_bucket"`
}

// OTEL holds OpenTelemetry exporter configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Trace holds the trace file loaded at startup.
type Trace struct {
	File            string  `yaml:"file"`
	Watch           bool    `yaml:"watch"`             // Reload the file when it changes on disk
	SlowThresholdMs float64 `yaml:"slow_threshold_ms"` // Requests at or above this duration are slow (default: 1000)
}

// Filters holds noise filter configuration.
type Filters struct {
	PresetDir string `yaml:"preset_dir"` // Directory of extra YAML preset groups
	Apply     bool   `yaml:"apply"`
	File      string `yaml:"file"` // Exported filter settings applied at startup
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:        "8080",
			CORSOrigin:  "http://localhost:3000",
			MaxUploadMB: 64,
		},
		Logging: Logging{
			Level:   "info",
			Service: "tracescope",
		},
		Cache: Cache{
			L1MaxSizeMB: 32,
			TTL:         10 * time.Minute,
		},
		NATS: NATS{
			Subject:      "tracescope.session",
			ExportBucket: "TRACESCOPE_EXPORTS",
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "tracescope",
			Insecure:    true,
			SampleRate:  1.0,
		},
		Trace: Trace{
			SlowThresholdMs: 1000,
		},
		Filters: Filters{
			PresetDir: "filters",
			Apply:     true,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
