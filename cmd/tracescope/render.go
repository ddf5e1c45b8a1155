package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Strob0t/TraceScope/internal/domain/timeline"
	"github.com/Strob0t/TraceScope/internal/service"
)

const defaultRenderWidth = 100

var markerColors = map[string]lipgloss.Color{
	timeline.ColorClick:           lipgloss.Color("39"),
	timeline.ColorNavigation:      lipgloss.Color("141"),
	timeline.ColorSPANavigation:   lipgloss.Color("177"),
	timeline.ColorRequestOK:       lipgloss.Color("42"),
	timeline.ColorRequestRedirect: lipgloss.Color("214"),
	timeline.ColorRequestError:    lipgloss.Color("196"),
	timeline.ColorRequestPending:  lipgloss.Color("245"),
	timeline.ColorRequestEmbedded: lipgloss.Color("240"),
}

// timelineRenderer prints markers in time order with requests indented
// under the interaction that triggered them.
type timelineRenderer struct {
	r     *lipgloss.Renderer
	width int
}

// newTimelineRenderer detects the color profile and width of w. Writers that
// are not terminals get plain text at the default width.
func newTimelineRenderer(w io.Writer) *timelineRenderer {
	width := defaultRenderWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			width = cols
		}
	}
	return &timelineRenderer{r: lipgloss.NewRenderer(w), width: width}
}

// Render writes the header and one line per marker of snap.
func (tr *timelineRenderer) Render(w io.Writer, snap *service.Snapshot) error {
	tl := snap.Timeline
	header := tr.r.NewStyle().Bold(true)
	faint := tr.r.NewStyle().Faint(true)

	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("Session %s", snap.SessionID)))
	b.WriteByte('\n')
	b.WriteString(faint.Render(fmt.Sprintf("%d interactions, %d requests, %d ignored, %d overrides, %.1fs",
		len(tl.InteractionMarkers), len(tl.RequestMarkers), snap.Ignored, snap.Overrides, tl.TimeRangeMs/1000)))
	b.WriteString("\n\n")

	line := tr.r.NewStyle().MaxWidth(tr.width)
	for _, m := range orderedMarkers(tl) {
		color := tr.r.NewStyle().Foreground(markerColors[m.Color])
		offset := fmt.Sprintf("%9.3fs", timeline.SeekSeconds(m.Timestamp, tl.Origin))

		var text string
		if m.Kind.IsInteraction() {
			text = fmt.Sprintf("%s  %s %s", offset, color.Render(fmt.Sprintf("%-14s", m.Kind)), m.Label)
		} else {
			text = fmt.Sprintf("%s    %s %s %s", offset, color.Render("->"), m.Label, faint.Render(m.From+" > "+m.To))
		}
		b.WriteString(line.Render(text))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// orderedMarkers merges interaction and request markers by timestamp. At equal
// timestamps interactions come first.
func orderedMarkers(tl timeline.Timeline) []timeline.Marker {
	all := make([]timeline.Marker, 0, len(tl.InteractionMarkers)+len(tl.RequestMarkers))
	all = append(all, tl.InteractionMarkers...)
	all = append(all, tl.RequestMarkers...)
	slices.SortStableFunc(all, func(a, b timeline.Marker) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		case a.Kind.IsInteraction() && !b.Kind.IsInteraction():
			return -1
		case !a.Kind.IsInteraction() && b.Kind.IsInteraction():
			return 1
		}
		return 0
	})
	return all
}
