// Package filter implements regex-based noise filtering of request events.
//
// Filter configuration is user-edited text, so compilation never fails as a
// whole: a line that does not compile is dropped and the rest still applies.
package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

// Target selects which request field a rule is matched against.
type Target string

const (
	TargetURL    Target = "url"
	TargetMethod Target = "method"
	TargetStatus Target = "status"
)

// maxPatternLength bounds a single pattern line.
const maxPatternLength = 512

// Rule is one compiled pattern line.
type Rule struct {
	Target  Target
	Pattern *regexp.Regexp
	// Source is the line the rule was compiled from.
	Source string
}

// framedPattern matches the /body/flags form. Text whose trailing segment is
// not made of regex flags, such as /api/users, is a plain pattern.
var framedPattern = regexp.MustCompile(`^/(.+)/([dgimsuvy]*)$`)

// CompilePattern compiles one pattern. Plain patterns are case-insensitive;
// /body/flags patterns use exactly the given flags. The second result is false
// when the pattern is empty, too long, repeats a flag or does not compile.
func CompilePattern(text string) (*regexp.Regexp, bool) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxPatternLength {
		return nil, false
	}

	body, flags := text, "i"
	if m := framedPattern.FindStringSubmatch(text); m != nil {
		body, flags = m[1], m[2]
	}

	prefix, ok := inlineFlags(flags)
	if !ok {
		return nil, false
	}
	re, err := regexp.Compile(prefix + body)
	if err != nil {
		return nil, false
	}
	return re, true
}

// inlineFlags converts JavaScript-style regex flags to an RE2 inline group.
// Flags without an RE2 meaning (g, y, u, v, d) are accepted and ignored.
func inlineFlags(flags string) (string, bool) {
	var set []byte
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return "", false
		}
		seen[f] = true
		switch f {
		case 'i', 'm', 's':
			set = append(set, byte(f))
		}
	}
	if len(set) == 0 {
		return "", true
	}
	return "(?" + string(set) + ")", true
}

// ParseRules parses newline-separated pattern text. A leading "method:" or
// "status:" selects the matched field; anything else matches the URL.
// Blank lines, lines starting with "#" and invalid lines are skipped.
func ParseRules(text string) []Rule {
	var rules []Rule
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		target, pattern := splitTarget(line)
		re, ok := CompilePattern(pattern)
		if !ok {
			continue
		}
		rules = append(rules, Rule{Target: target, Pattern: re, Source: line})
	}
	return rules
}

func splitTarget(line string) (Target, string) {
	for _, t := range []Target{TargetMethod, TargetStatus} {
		prefix := string(t) + ":"
		if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
			return t, line[len(prefix):]
		}
	}
	return TargetURL, line
}

// Matches reports whether the rule matches the request event.
func (r Rule) Matches(ev trace.Event) bool {
	return r.Pattern.MatchString(targetValue(ev, r.Target))
}

func targetValue(ev trace.Event, target Target) string {
	switch target {
	case TargetMethod:
		if ev.Request != nil {
			return ev.Request.Method
		}
		return ""
	case TargetStatus:
		if ev.Request != nil && ev.Request.Status != nil {
			return strconv.Itoa(*ev.Request.Status)
		}
		return ""
	default:
		if ev.URL != "" {
			return ev.URL
		}
		return ev.Path
	}
}
