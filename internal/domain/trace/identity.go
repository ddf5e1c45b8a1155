package trace

import (
	"strconv"
	"strings"
	"unicode"
)

const internalIDPrefix = "ev-"

// BackfillInternalIDs assigns a position-based internal id to every event that
// lacks one. Ids already present are kept, so running it again on its own output
// changes nothing. A repeated internal id keeps its first occurrence; later
// duplicates are re-stamped, as are ids rejected by ValidInternalID. The input
// slice is not modified.
func BackfillInternalIDs(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)

	taken := make(map[string]bool, len(out))
	for i := range out {
		id := out[i].InternalID
		if id == "" {
			continue
		}
		if taken[id] || !ValidInternalID(id) {
			out[i].InternalID = ""
			continue
		}
		taken[id] = true
	}

	for i := range out {
		if out[i].InternalID != "" {
			continue
		}
		base := internalIDPrefix + strconv.Itoa(i)
		id := base
		for n := 1; taken[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		taken[id] = true
		out[i].InternalID = id
	}
	return out
}

// IndexByInternalID maps each internal id to its position in events.
func IndexByInternalID(events []Event) map[string]int {
	idx := make(map[string]int, len(events))
	for i := range events {
		if id := events[i].InternalID; id != "" {
			idx[id] = i
		}
	}
	return idx
}

// ValidInternalID reports whether id can name an event inside a diagram
// comment: non-empty, free of whitespace and control characters, and not
// starting with '{', which would read as a Mermaid directive.
func ValidInternalID(id string) bool {
	if id == "" || strings.HasPrefix(id, "{") {
		return false
	}
	return strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) < 0
}
