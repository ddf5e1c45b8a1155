// Package timeline attributes requests to the interactions that caused them
// and projects events onto a shared time axis.
package timeline

import "github.com/Strob0t/TraceScope/internal/domain/trace"

// Correlation is the causal attribution of one event list, indexed by position.
type Correlation struct {
	// TriggeredBy holds, for each request, the index of the interaction that
	// precedes it, or -1. Non-request positions are always -1.
	TriggeredBy []int
	// Related holds, for each interaction, the indices of the requests up to
	// the next interaction. Non-interaction positions are nil.
	Related [][]int
}

// Correlate attributes every request to the most recent interaction before it.
// A request belongs to no interaction that follows it, and requests before
// the first interaction stay unattributed. Array order is authoritative.
func Correlate(events []trace.Event) Correlation {
	c := Correlation{
		TriggeredBy: make([]int, len(events)),
		Related:     make([][]int, len(events)),
	}
	last := -1
	for i, ev := range events {
		c.TriggeredBy[i] = -1
		switch {
		case ev.IsInteraction():
			last = i
			c.Related[i] = []int{}
		case ev.IsRequest():
			c.TriggeredBy[i] = last
			if last >= 0 {
				c.Related[last] = append(c.Related[last], i)
			}
		}
	}
	return c
}

// Trigger returns the interaction that caused the request at index i, or nil.
func (c Correlation) Trigger(events []trace.Event, i int) *trace.Event {
	if i < 0 || i >= len(c.TriggeredBy) || c.TriggeredBy[i] < 0 {
		return nil
	}
	return &events[c.TriggeredBy[i]]
}

// CurrentHost returns the host context established by trigger. Requests
// without a trigger run in the DefaultHost context.
func CurrentHost(trigger *trace.Event) string {
	if trigger == nil || !trigger.IsInteraction() {
		return trace.DefaultHost
	}
	return trace.DestinationHost(*trigger)
}

// Participants returns the two sides of an event as shown on its marker.
// Interactions run from the user to the host they land on; requests run from
// currentHost to the endpoint they were sent to. Unknown kinds have none.
func Participants(ev trace.Event, currentHost string) (from, to string) {
	switch ev.Kind {
	case trace.KindClick:
		host := trace.InteractionHost(ev)
		if target := trace.ClickTargetHost(ev); target != "" {
			return trace.UserParticipant, host + " → " + target
		}
		return trace.UserParticipant, host
	case trace.KindNavigation:
		dest := trace.DestinationHost(ev)
		if ev.Navigation != nil && ev.Navigation.TransitionType != "" {
			return trace.UserParticipant, dest + " (" + ev.Navigation.TransitionType + ")"
		}
		return trace.UserParticipant, dest
	case trace.KindSPANavigation:
		dest := trace.DestinationHost(ev)
		to = dest
		if prev := trace.PreviousHost(ev); prev != "" && prev != dest {
			to = prev + " → " + dest
		}
		if ev.SPANavigation != nil && ev.SPANavigation.NavigationType != "" {
			to += " (" + ev.SPANavigation.NavigationType + ")"
		}
		return trace.UserParticipant, to
	case trace.KindRequest:
		if currentHost == "" {
			currentHost = trace.DefaultHost
		}
		return currentHost, trace.EndpointHost(ev)
	}
	return "", ""
}
