package diagram

import (
	"regexp"
	"strings"
)

// Message is one arrow line of a diagram script.
type Message struct {
	// Seq is the 1-based number the renderer assigns with autonumber.
	Seq     int    `json:"seq"`
	From    string `json:"from"`
	Arrow   string `json:"arrow"`
	To      string `json:"to"`
	Text    string `json:"text"`
	TraceID string `json:"traceId,omitempty"`
}

var messageLine = regexp.MustCompile(`^([^\s:%][^:]*?)\s*(-->>|->>|-->|->|--x|-x|--\)|-\))\s*\+?-?([^:]+?)\s*:\s?(.*)$`)

// Lines parses the message lines of a script in order. A message directly
// preceded by a %%<id> comment carries that id.
func Lines(script string) []Message {
	var out []Message
	pending := ""
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "%%{"):
			continue
		case strings.HasPrefix(line, traceCommentPrefix):
			pending = strings.TrimSpace(line[len(traceCommentPrefix):])
			continue
		}
		m := messageLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, Message{
			Seq:     len(out) + 1,
			From:    m[1],
			Arrow:   m[2],
			To:      m[3],
			Text:    m[4],
			TraceID: pending,
		})
		pending = ""
	}
	return out
}

// TraceMap maps rendered sequence numbers to the event ids annotated in the
// script. Messages without a preceding comment are absent from the map.
func TraceMap(script string) map[int]string {
	out := make(map[int]string)
	for _, m := range Lines(script) {
		if m.TraceID != "" {
			out[m.Seq] = m.TraceID
		}
	}
	return out
}
