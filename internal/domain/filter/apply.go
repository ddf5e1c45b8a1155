package filter

import "github.com/Strob0t/TraceScope/internal/domain/trace"

// Result is the outcome of filtering one event list.
type Result struct {
	Kept []trace.Event
	// IgnoredCounts maps a group id to the number of requests it removed.
	IgnoredCounts map[string]int
}

// Ignored returns the total number of removed requests.
func (r Result) Ignored() int {
	n := 0
	for _, c := range r.IgnoredCounts {
		n += c
	}
	return n
}

// Apply removes the requests matched by the enabled groups of s.
//
// Filtering fails open: when filters are switched off or no group compiles to
// at least one rule, events are returned unchanged. Only requests are tested.
// A request is attributed to the first group that matches it.
func Apply(events []trace.Event, s Settings) Result {
	if !s.ApplyFilters {
		return Result{Kept: events, IgnoredCounts: map[string]int{}}
	}
	return ApplyCompiled(events, Compile(s))
}

// ApplyCompiled is Apply for groups that were already compiled.
func ApplyCompiled(events []trace.Event, groups []CompiledGroup) Result {
	counts := map[string]int{}
	if len(groups) == 0 {
		return Result{Kept: events, IgnoredCounts: counts}
	}

	kept := make([]trace.Event, 0, len(events))
	for _, ev := range events {
		if !ev.IsRequest() {
			kept = append(kept, ev)
			continue
		}
		if id, ok := firstMatch(groups, ev); ok {
			counts[id]++
			continue
		}
		kept = append(kept, ev)
	}
	return Result{Kept: kept, IgnoredCounts: counts}
}

func firstMatch(groups []CompiledGroup, ev trace.Event) (string, bool) {
	for _, g := range groups {
		if g.Matches(ev) {
			return g.ID, true
		}
	}
	return "", false
}
