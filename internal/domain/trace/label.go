package trace

import "strings"

// DisplayLabel returns the human-readable label of an event, falling back
// through the fields each kind records.
func DisplayLabel(e Event) string {
	candidates := []string{e.Label}
	switch e.Kind {
	case KindClick:
		if e.Click != nil {
			candidates = append(candidates, e.Click.Text, e.Click.Selector)
		}
		candidates = append(candidates, "Click")
	case KindNavigation:
		candidates = append(candidates, e.URL, e.TargetURL(), e.Host)
	case KindSPANavigation:
		candidates = append(candidates, e.URL, e.Path, e.Host)
	case KindRequest:
		method := ""
		if e.Request != nil {
			method = e.Request.Method
		}
		if e.URL != "" || e.Path != "" {
			candidates = append(candidates, strings.TrimSpace(method+" "+RequestPath(e)))
		}
	default:
		candidates = append(candidates, string(e.Kind))
	}

	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return Placeholder
}
