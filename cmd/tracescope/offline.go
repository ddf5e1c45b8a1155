package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Strob0t/TraceScope/internal/domain/filter"
	"github.com/Strob0t/TraceScope/internal/domain/override"
	"github.com/Strob0t/TraceScope/internal/service"
)

// offlineFlags are shared by the diagram, export and timeline commands.
type offlineFlags struct {
	trace     *string
	filters   *string
	noFilters *bool
	presets   *string
	overrides *string
	output    *string
}

func newOfflineFlags(fs *flag.FlagSet) offlineFlags {
	return offlineFlags{
		trace:     fs.String("trace", "", "trace JSON file (required)"),
		filters:   fs.String("filters", "", "exported filter settings to apply"),
		noFilters: fs.Bool("no-filters", false, "keep every request"),
		presets:   fs.String("presets", "", "directory of YAML filter presets"),
		overrides: fs.String("overrides", "", "JSON object of event id to {label, removed}"),
		output:    fs.String("o", "", "output file (default stdout)"),
	}
}

// runDiagram writes the Mermaid sequence diagram of a trace.
func runDiagram(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("diagram", flag.ContinueOnError)
	of := newOfflineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := openOffline(of, 0)
	if err != nil {
		return err
	}
	script, err := session.ExportDiagram()
	if err != nil {
		return err
	}
	return writeOutput(*of.output, w, []byte(script))
}

// runExport writes the visible trace as JSON.
func runExport(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	of := newOfflineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := openOffline(of, 0)
	if err != nil {
		return err
	}
	data, err := session.ExportTrace(context.Background())
	if err != nil {
		return err
	}
	return writeOutput(*of.output, w, data)
}

// runTimeline prints the correlated timeline, or its JSON with -json.
func runTimeline(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	of := newOfflineFlags(fs)
	videoMs := fs.Float64("video-ms", 0, "video duration in milliseconds")
	asJSON := fs.Bool("json", false, "write the timeline as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := openOffline(of, *videoMs)
	if err != nil {
		return err
	}
	if *asJSON {
		data, err := session.ExportTimeline(context.Background())
		if err != nil {
			return err
		}
		return writeOutput(*of.output, w, data)
	}

	snap, err := session.Snapshot()
	if err != nil {
		return err
	}
	if *of.output == "" {
		return newTimelineRenderer(w).Render(w, snap)
	}
	f, err := os.Create(*of.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := newTimelineRenderer(f).Render(f, snap); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// openOffline builds a session without hub, broker or cache and applies the
// filter, override and video flags to it.
func openOffline(of offlineFlags, videoMs float64) (*service.SessionService, error) {
	if *of.trace == "" {
		return nil, fmt.Errorf("--trace is required")
	}

	settings, err := offlineFilters(of)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(*of.trace)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	ctx := context.Background()
	session := service.NewSessionService(nil, settings, service.SessionConfig{})
	if _, err := session.Load(ctx, data, *of.trace); err != nil {
		return nil, err
	}

	if *of.overrides != "" {
		if err := applyOverrideFile(ctx, session, *of.overrides); err != nil {
			return nil, err
		}
	}
	if videoMs != 0 {
		if _, err := session.SetVideo(ctx, videoMs); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func offlineFilters(of offlineFlags) (filter.Settings, error) {
	var settings filter.Settings
	if *of.filters != "" {
		data, err := os.ReadFile(*of.filters)
		if err != nil {
			return filter.Settings{}, fmt.Errorf("read filters: %w", err)
		}
		if settings, err = filter.ImportSettings(data); err != nil {
			return filter.Settings{}, fmt.Errorf("filters %s: %w", *of.filters, err)
		}
	} else {
		settings = filter.DefaultSettings()
	}

	if *of.presets != "" {
		presets, err := filter.LoadPresetsFromDirectory(*of.presets)
		if err != nil {
			return filter.Settings{}, err
		}
		settings = settings.Merge(presets)
	}
	if *of.noFilters {
		settings.ApplyFilters = false
	}
	if err := settings.Validate(); err != nil {
		return filter.Settings{}, err
	}
	return settings, nil
}

// applyOverrideFile applies a JSON object mapping internal event ids to
// overrides. Ids are applied in sorted order.
func applyOverrideFile(ctx context.Context, session *service.SessionService, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	var edits map[string]override.Override
	if err := json.Unmarshal(data, &edits); err != nil {
		return fmt.Errorf("overrides %s: %w", path, err)
	}

	ids := make([]string, 0, len(edits))
	for id := range edits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		o := edits[id]
		var removed *bool
		if o.Removed {
			removed = &o.Removed
		}
		if o.Label == nil && removed == nil {
			continue
		}
		if _, err := session.SetOverride(ctx, id, o.Label, removed); err != nil {
			return fmt.Errorf("override %s: %w", id, err)
		}
	}
	return nil
}

func writeOutput(path string, w io.Writer, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // user-chosen output file
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
