package trace

import (
	"net/url"
	"strings"
)

// Placeholder values used when a derivation has nothing to work with.
const (
	// DefaultHost is the host context of requests no interaction accounts for.
	DefaultHost = "server"
	// UnknownService names an endpoint whose host cannot be derived.
	UnknownService = "Service"
	// EmbeddedHost names the pseudo endpoint of inline data: resources.
	EmbeddedHost = "embedded"
	// UserParticipant is the actor behind every interaction.
	UserParticipant = "User"
	// Placeholder is shown for missing labels.
	Placeholder = "—"
)

// NormalizeHost strips a leading "www." (any case) and surrounding whitespace.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if len(host) >= 4 && strings.EqualFold(host[:4], "www.") {
		return host[4:]
	}
	return host
}

// IsDataURL reports whether raw is an inline data: URL.
func IsDataURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return len(raw) >= 5 && strings.EqualFold(raw[:5], "data:")
}

// HostFromURL extracts the normalized host from raw. Values that do not parse
// as absolute URLs degrade to everything before the first "/".
func HostFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsDataURL(raw) {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return NormalizeHost(u.Host)
	}

	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	rest = strings.TrimPrefix(rest, "//")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.ContainsAny(rest, " \t") {
		return ""
	}
	return NormalizeHost(rest)
}

// EndpointHost returns the host a request was sent to, trying the URL, the
// recorded host, the path and finally the label.
func EndpointHost(e Event) string {
	if IsDataURL(e.URL) {
		return EmbeddedHost
	}
	for _, candidate := range []string{e.URL, e.Host, e.Path, e.Label} {
		if h := HostFromURL(candidate); h != "" {
			return h
		}
	}
	return UnknownService
}

// URLPath returns the path and query of a URL for display. Relative values and
// unparseable URLs are returned as recorded; an empty result becomes "/".
func URLPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.Index(raw, "://"); i >= 0 {
			rest := raw[i+3:]
			if j := strings.Index(rest, "/"); j >= 0 {
				return rest[j:]
			}
			return "/"
		}
		return raw
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// RequestPath returns the display path of a request: its URL path, else its
// recorded path.
func RequestPath(e Event) string {
	if e.URL != "" {
		return URLPath(e.URL)
	}
	if e.Path != "" {
		return e.Path
	}
	return "/"
}

// firstHost returns the first non-empty host among the candidates. Each
// candidate is tried as a bare host first and as a URL second.
func firstHost(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c == "" {
			continue
		}
		if !strings.ContainsAny(c, "/:?#") {
			return NormalizeHost(c)
		}
		if h := HostFromURL(c); h != "" {
			return h
		}
	}
	return ""
}

// InteractionHost returns the host an interaction happened on, or DefaultHost.
func InteractionHost(e Event) string {
	if h := firstHost(e.Host, e.URL); h != "" {
		return h
	}
	return DefaultHost
}

// ClickTargetHost returns the host a click leads to when it differs from the
// host it happened on, else "".
func ClickTargetHost(e Event) string {
	if e.Click == nil {
		return ""
	}
	target := firstHost(e.Click.TargetHost, e.Click.TargetURL)
	if target == "" || target == InteractionHost(e) {
		return ""
	}
	return target
}

// PreviousHost returns the host an SPA navigation left, or "".
func PreviousHost(e Event) string {
	if e.SPANavigation == nil {
		return ""
	}
	return firstHost(e.SPANavigation.PreviousHost, e.SPANavigation.PreviousURL)
}

// DestinationHost returns the host context an interaction leaves the user on:
// the target of a cross-host click, the destination of a navigation or the
// host of an SPA route change. Other events yield DefaultHost.
func DestinationHost(e Event) string {
	var h string
	switch e.Kind {
	case KindClick:
		h = ClickTargetHost(e)
		if h == "" {
			h = InteractionHost(e)
		}
	case KindNavigation:
		h = firstHost(e.TargetHost(), e.TargetURL(), e.Host, e.URL)
	case KindSPANavigation:
		h = firstHost(e.Host, e.URL, PreviousHost(e))
	}
	if h == "" {
		return DefaultHost
	}
	return h
}
