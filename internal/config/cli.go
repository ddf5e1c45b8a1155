package config

import (
	"flag"
	"io"
)

// CLIFlags holds command line overrides. A nil field was not given.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	NatsURL    *string
	TraceFile  *string
	Watch      *bool
}

// ParseFlags parses server flags. Long and short forms are accepted for the
// config path (-c) and port (-p).
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath, port, logLevel, natsURL, traceFile string
		watch                                          bool
	)
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "path to YAML config file (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "HTTP listen port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL for session events")
	fs.StringVar(&traceFile, "trace", "", "trace file loaded at startup")
	fs.BoolVar(&watch, "watch", false, "reload the trace file when it changes")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var out CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			out.ConfigPath = &configPath
		case "port", "p":
			out.Port = &port
		case "log-level":
			out.LogLevel = &logLevel
		case "nats-url":
			out.NatsURL = &natsURL
		case "trace":
			out.TraceFile = &traceFile
		case "watch":
			out.Watch = &watch
		}
	})
	return out, nil
}

// applyCLI overlays the given flags onto cfg.
func applyCLI(cfg *Config, f CLIFlags) {
	if f.Port != nil {
		cfg.Server.Port = *f.Port
	}
	if f.LogLevel != nil {
		cfg.Logging.Level = *f.LogLevel
	}
	if f.NatsURL != nil {
		cfg.NATS.URL = *f.NatsURL
	}
	if f.TraceFile != nil {
		cfg.Trace.File = *f.TraceFile
	}
	if f.Watch != nil {
		cfg.Trace.Watch = *f.Watch
	}
}
