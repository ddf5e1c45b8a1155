package diagram

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPathLength is the display length, in runes, of a request path.
const MaxPathLength = 60

var transitionLabels = map[string]string{
	"typed":         "Typed URL",
	"reload":        "Reload",
	"link":          "Link",
	"auto_bookmark": "Bookmark",
	"form_submit":   "Form submit",
	"back_forward":  "Back/Forward",
}

// TransitionLabel returns the display text of a navigation transition type.
func TransitionLabel(transition string) string {
	if l, ok := transitionLabels[strings.ToLower(strings.TrimSpace(transition))]; ok {
		return l
	}
	return "Navigate"
}

var navigationTypeLabels = map[string]string{
	"pushstate":    "Route to",
	"replacestate": "Replace route",
	"popstate":     "Back/Forward",
	"hashchange":   "Hash change",
}

// NavigationTypeLabel returns the display text of an SPA navigation type.
func NavigationTypeLabel(navType string) string {
	if l, ok := navigationTypeLabels[strings.ToLower(strings.TrimSpace(navType))]; ok {
		return l
	}
	return "Navigate"
}

var duplicateSlashes = regexp.MustCompile(`/{2,}`)

// NormalizePath strips ;matrix parameters from every path segment and
// collapses repeated slashes. The query string is kept.
func NormalizePath(p string) string {
	path, query, hasQuery := strings.Cut(p, "?")
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if j := strings.IndexByte(s, ';'); j >= 0 {
			segments[i] = s[:j]
		}
	}
	path = duplicateSlashes.ReplaceAllString(strings.Join(segments, "/"), "/")
	if path == "" {
		path = "/"
	}
	if hasQuery {
		return path + "?" + query
	}
	return path
}

// Truncate shortens text to MaxPathLength runes, ending with an ellipsis.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxPathLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxPathLength-1]) + "…"
}

// trackerHosts are host substrings of known analytics and telemetry services.
var trackerHosts = []string{
	"google-analytics.",
	"googletagmanager.",
	"doubleclick.net",
	"analytics.",
	"segment.io",
	"segment.com",
	"mixpanel.com",
	"amplitude.com",
	"hotjar.",
	"clarity.ms",
	"bat.bing.com",
	"facebook.net",
	"sentry.io",
	"nr-data.net",
	"datadoghq.",
}

var beaconPathWords = []string{"pixel", "beacon", "collect", "clear"}

// IsBeacon reports whether a request looks like telemetry.
func IsBeacon(host, path string) bool {
	host = strings.ToLower(host)
	for _, t := range trackerHosts {
		if strings.Contains(host, t) {
			return true
		}
	}
	path = strings.ToLower(path)
	for _, w := range beaconPathWords {
		if strings.Contains(path, w) {
			return true
		}
	}
	return false
}
