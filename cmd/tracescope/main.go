// Command tracescope serves a recorded browser session as a correlated
// timeline and sequence diagram, or renders them offline.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := dispatch(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// dispatch runs the subcommand named by the first argument. Without one, or
// when the first argument is a flag, the server starts. A help request is not
// an error.
func dispatch(args []string) error {
	err := route(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func route(args []string) error {
	if len(args) > 0 && isHelp(args[0]) {
		printHelp()
		return nil
	}
	if len(args) == 0 || (len(args[0]) > 0 && args[0][0] == '-') {
		return runServe(args)
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "diagram":
		return runDiagram(args[1:], os.Stdout)
	case "export":
		return runExport(args[1:], os.Stdout)
	case "timeline":
		return runTimeline(args[1:], os.Stdout)
	case "version":
		fmt.Println(version)
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func isHelp(arg string) bool {
	switch arg {
	case "help", "-h", "-help", "--help":
		return true
	}
	return false
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: tracescope [command] [options]

Commands:
  serve      Start the HTTP/WebSocket API (default)
  diagram    Write the Mermaid sequence diagram of a trace
  export     Write the filtered trace JSON
  timeline   Print the correlated timeline
  version    Print the version

Examples:
  tracescope serve -c tracescope.yaml -trace session.json -watch
  tracescope diagram -trace session.json -o flow.mmd
  tracescope export -trace session.json -filters filters.json -overrides edits.json
  tracescope timeline -trace session.json -video-ms 42000
`)
}
