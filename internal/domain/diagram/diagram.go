// Package diagram synthesizes Mermaid sequence diagrams from trace events and
// maps rendered message numbers back to the events that produced them.
package diagram

import (
	"strconv"
	"strings"

	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

// Arrows used in emitted message lines.
const (
	ArrowCall  = "->>"
	ArrowReply = "-->>"
)

// Notes emitted when a diagram has no message lines.
const (
	NoteEmptyTrace      = "No events recorded in this trace"
	NoteNoInteractions  = "No interactions to display"
	header              = "sequenceDiagram"
	indent              = "    "
	traceCommentPrefix  = "%%"
	embeddedAssetLabel  = "Embedded asset"
	noResponseStatusTxt = "No response"
)

type builder struct {
	lines    []string
	messages int
	pending  string
}

// comment marks the next message line as belonging to the event. Ids that
// would break the comment line are not written.
func (b *builder) comment(ev trace.Event) {
	b.pending = ""
	if id := ev.TraceID(); trace.ValidInternalID(id) {
		b.pending = id
	}
}

func (b *builder) message(from, arrow, to, text string) {
	if b.pending != "" {
		b.lines = append(b.lines, indent+traceCommentPrefix+b.pending)
		b.pending = ""
	}
	b.lines = append(b.lines, indent+participant(from)+arrow+participant(to)+": "+text)
	b.messages++
}

// Synthesize renders events as a Mermaid sequence diagram.
//
// Interactions are always drawn. Requests are drawn only once an interaction
// has been drawn; earlier requests are omitted. Each event's first message is
// preceded by a %%<id> comment naming it.
func Synthesize(events []trace.Event) string {
	b := &builder{lines: []string{header, indent + "autonumber"}}
	current := trace.DefaultHost
	gate := false

	for _, ev := range events {
		switch ev.Kind {
		case trace.KindClick:
			b.comment(ev)
			host := trace.InteractionHost(ev)
			b.message(trace.UserParticipant, ArrowCall, host, "Click "+quote(trace.DisplayLabel(ev)))
			current = host
			if target := trace.ClickTargetHost(ev); target != "" {
				b.message(host, ArrowCall, target, "Navigate")
				current = target
			}
			gate = true

		case trace.KindNavigation:
			b.comment(ev)
			dest := trace.DestinationHost(ev)
			transition := ""
			if ev.Navigation != nil {
				transition = ev.Navigation.TransitionType
			}
			b.message(trace.UserParticipant, ArrowCall, dest, TransitionLabel(transition)+" "+quote(Truncate(trace.DisplayLabel(ev))))
			current = dest
			gate = true

		case trace.KindSPANavigation:
			b.comment(ev)
			dest := trace.DestinationHost(ev)
			from := current
			if !gate {
				if prev := trace.PreviousHost(ev); prev != "" {
					from = prev
				}
			}
			navType := ""
			if ev.SPANavigation != nil {
				navType = ev.SPANavigation.NavigationType
			}
			b.message(from, ArrowCall, dest, NavigationTypeLabel(navType)+" "+quote(spaPath(ev)))
			current = dest
			gate = true

		case trace.KindRequest:
			if !gate {
				continue
			}
			b.comment(ev)
			request(b, ev, current)
		}
	}

	if b.messages == 0 {
		note := NoteNoInteractions
		if len(events) == 0 {
			note = NoteEmptyTrace
		}
		b.lines = append(b.lines, indent+"Note over "+trace.UserParticipant+": "+note)
	}
	return strings.Join(b.lines, "\n") + "\n"
}

func request(b *builder, ev trace.Event, current string) {
	if trace.IsDataURL(ev.URL) {
		text := embeddedAssetLabel
		if mime := dataMimeType(ev.URL); mime != "" {
			text += " (" + mime + ")"
		}
		b.message(current, ArrowCall, trace.EmbeddedHost, text)
		return
	}

	endpoint := trace.EndpointHost(ev)
	method := "GET"
	if ev.Request != nil && strings.TrimSpace(ev.Request.Method) != "" {
		method = strings.ToUpper(strings.TrimSpace(ev.Request.Method))
	}
	path := trace.RequestPath(ev)
	text := method + " " + Truncate(NormalizePath(path))
	if IsBeacon(endpoint, path) {
		text = "Beacon " + text
	}
	b.message(current, ArrowCall, endpoint, escape(text))

	if ev.Request != nil && ev.Request.OneWay {
		return
	}
	b.message(endpoint, ArrowReply, current, escape(statusText(ev.Request)))
}

func statusText(r *trace.Request) string {
	if r == nil || r.Status == nil {
		return noResponseStatusTxt
	}
	return strings.TrimSpace(strconv.Itoa(*r.Status) + " " + r.StatusText)
}

func spaPath(ev trace.Event) string {
	p := ev.Path
	if p == "" && ev.URL != "" {
		p = trace.URLPath(ev.URL)
	}
	if p == "" {
		p = trace.DisplayLabel(ev)
	}
	return Truncate(NormalizePath(p))
}

// dataMimeType returns the media type of a data: URL, or "".
func dataMimeType(raw string) string {
	rest := strings.TrimSpace(raw)[len("data:"):]
	if i := strings.IndexAny(rest, ";,"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

// quote wraps text in double quotes, escaping embedded quotes.
func quote(text string) string {
	return `"` + escape(text) + `"`
}

// escape makes text safe for a single message line.
func escape(text string) string {
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	return strings.ReplaceAll(text, `"`, `\"`)
}

// participant maps a host to a Mermaid participant name. Characters outside
// [A-Za-z0-9._-] become "_", as does a "-" that would run into an arrow.
func participant(name string) string {
	if name == "" {
		return trace.UnknownService
	}
	runes := []rune(name)
	var sb strings.Builder
	sb.Grow(len(name))
	for i, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			sb.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] != 'x':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
