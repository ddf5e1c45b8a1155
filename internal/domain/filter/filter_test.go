package filter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/TraceScope/internal/domain"
	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

func request(id, method, url string, status int) trace.Event {
	st := status
	return trace.Event{
		Kind:       trace.KindRequest,
		InternalID: id,
		URL:        url,
		Request:    &trace.Request{Method: method, Status: &st},
	}
}

func click(id string) trace.Event {
	return trace.Event{Kind: trace.KindClick, InternalID: id, Click: &trace.Click{}}
}

func ids(events []trace.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.InternalID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		ok      bool
		match   bool
	}{
		{"plain is case-insensitive", `\.png$`, "A.PNG", true, true},
		{"framed without i is case-sensitive", `/\.png$/`, "A.PNG", true, false},
		{"framed with i", `/\.png$/i`, "A.PNG", true, true},
		{"ignored js flags", `/api/gu`, "/api/x", true, true},
		{"multiline flag", `/^b$/m`, "a\nb", true, true},
		{"non-flag suffix is a plain pattern", `/api/users`, "https://x.com/API/Users", true, true},
		{"repeated flag", `/api/ii`, "/api", false, false},
		{"framed body keeps slashes", `/api\/v1/`, "/api/v1", true, true},
		{"invalid regex", `([a-z`, "", false, false},
		{"lookahead unsupported", `foo(?=bar)`, "", false, false},
		{"empty", "   ", "", false, false},
		{"slash only is plain", `/`, "/a", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, ok := CompilePattern(tt.pattern)
			if ok != tt.ok {
				t.Fatalf("CompilePattern(%q) ok = %v, want %v", tt.pattern, ok, tt.ok)
			}
			if !ok {
				if re != nil {
					t.Errorf("expected nil regexp for rejected pattern")
				}
				return
			}
			if got := re.MatchString(tt.input); got != tt.match {
				t.Errorf("match %q = %v, want %v", tt.input, got, tt.match)
			}
		})
	}
}

func TestParseRules(t *testing.T) {
	text := "method:^options$\n\n# comment\nstatus:^5\\d\\d$\n([bad\n  \\.js$  \r\nSTATUS:404"
	rules := ParseRules(text)
	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}
	want := []Target{TargetMethod, TargetStatus, TargetURL, TargetStatus}
	for i, r := range rules {
		if r.Target != want[i] {
			t.Errorf("rule %d target = %q, want %q", i, r.Target, want[i])
		}
	}
	if rules[2].Source != `\.js$` {
		t.Errorf("expected trimmed source, got %q", rules[2].Source)
	}
}

func TestRuleTargets(t *testing.T) {
	ev := request("r", "OPTIONS", "https://x.com/a", 503)
	pathOnly := trace.Event{Kind: trace.KindRequest, Path: "/static/app.js", Request: &trace.Request{Method: "GET"}}

	tests := []struct {
		name string
		line string
		ev   trace.Event
		want bool
	}{
		{"method", "method:^options$", ev, true},
		{"status", `status:^5\d\d$`, ev, true},
		{"status miss", "status:^2", ev, false},
		{"missing status never matches", "status:.*x", pathOnly, false},
		{"url", `x\.com/a$`, ev, true},
		{"path fallback", `\.js$`, pathOnly, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := ParseRules(tt.line)
			if len(rules) != 1 {
				t.Fatalf("expected one rule from %q", tt.line)
			}
			if got := rules[0].Matches(tt.ev); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyStaticAssetsExample(t *testing.T) {
	s := Settings{
		ApplyFilters: true,
		Groups: []Group{
			{ID: "static-assets", Label: "Static assets", Enabled: true, PatternsText: `\.png$`},
		},
	}
	events := []trace.Event{
		click("c"),
		request("r1", "GET", "https://x.com/a.png", 200),
		request("r2", "GET", "https://x.com/a.PNG", 200),
		request("r3", "GET", "https://x.com/api", 200),
	}

	res := Apply(events, s)
	if got := ids(res.Kept); !equalStrings(got, []string{"c", "r3"}) {
		t.Errorf("kept = %v", got)
	}
	if res.IgnoredCounts["static-assets"] != 2 {
		t.Errorf("expected 2 ignored by static-assets, got %v", res.IgnoredCounts)
	}
	if res.Ignored() != 2 {
		t.Errorf("Ignored() = %d", res.Ignored())
	}
}

func TestApplyFirstGroupWins(t *testing.T) {
	s := Settings{
		ApplyFilters:    true,
		CustomRegexText: "x\\.com",
		Groups: []Group{
			{ID: "a", Enabled: true, PatternsText: `\.png$`},
			{ID: "b", Enabled: true, PatternsText: `/img/`},
			{ID: "off", Enabled: false, PatternsText: `.*`},
		},
	}
	events := []trace.Event{
		request("1", "GET", "https://x.com/img/a.png", 200),
		request("2", "GET", "https://x.com/img/a.gif", 200),
		request("3", "GET", "https://x.com/other", 200),
		request("4", "GET", "https://y.com/other", 200),
	}

	res := Apply(events, s)
	want := map[string]int{"a": 1, "b": 1, CustomGroupID: 1}
	if len(res.IgnoredCounts) != len(want) {
		t.Fatalf("counts = %v, want %v", res.IgnoredCounts, want)
	}
	for id, n := range want {
		if res.IgnoredCounts[id] != n {
			t.Errorf("count[%s] = %d, want %d", id, res.IgnoredCounts[id], n)
		}
	}
	if got := ids(res.Kept); !equalStrings(got, []string{"4"}) {
		t.Errorf("kept = %v", got)
	}
}

func TestApplyFailsOpen(t *testing.T) {
	events := []trace.Event{request("1", "GET", "https://x.com/a.png", 200)}

	tests := []struct {
		name string
		s    Settings
	}{
		{"disabled", Settings{ApplyFilters: false, Groups: []Group{{ID: "a", Enabled: true, PatternsText: ".*"}}}},
		{"only invalid patterns", Settings{ApplyFilters: true, Groups: []Group{{ID: "a", Enabled: true, PatternsText: "([\n/x/gg"}}}},
		{"nothing enabled", Settings{ApplyFilters: true, Groups: []Group{{ID: "a", PatternsText: ".*"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply(events, tt.s)
			if len(res.Kept) != 1 || &res.Kept[0] != &events[0] {
				t.Errorf("expected input returned unchanged")
			}
			if len(res.IgnoredCounts) != 0 {
				t.Errorf("expected empty counts, got %v", res.IgnoredCounts)
			}
		})
	}
}

func TestApplyOnlyFiltersRequests(t *testing.T) {
	s := Settings{ApplyFilters: true, CustomRegexText: ".*"}
	nav := trace.Event{Kind: trace.KindNavigation, InternalID: "n", URL: "https://x.com", Navigation: &trace.Navigation{}}
	other := trace.Event{Kind: "scroll", InternalID: "o"}
	res := Apply([]trace.Event{nav, other, request("r", "GET", "https://x.com", 200)}, s)
	if got := ids(res.Kept); !equalStrings(got, []string{"n", "o"}) {
		t.Errorf("kept = %v", got)
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if !s.ApplyFilters {
		t.Error("expected filters applied by default")
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	for _, g := range s.Groups {
		lines := strings.Split(g.PatternsText, "\n")
		if got := len(ParseRules(g.PatternsText)); got != len(lines) {
			t.Errorf("preset %s: %d of %d patterns compile", g.ID, got, len(lines))
		}
	}

	res := Apply([]trace.Event{
		request("img", "GET", "https://cdn.app.com/logo.svg?v=3", 200),
		request("ga", "POST", "https://www.google-analytics.com/g/collect", 204),
		request("font", "GET", "https://fonts.gstatic.com/s/inter.woff2", 200),
		request("api", "GET", "https://api.app.com/users", 200),
	}, s)
	if got := ids(res.Kept); !equalStrings(got, []string{"font", "api"}) {
		t.Errorf("kept = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
		ok     bool
	}{
		{"empty", nil, true},
		{"unique", []Group{{ID: "a"}, {ID: "b"}}, true},
		{"blank id", []Group{{ID: " "}}, false},
		{"duplicate", []Group{{ID: "a"}, {ID: "a"}}, false},
		{"reserved", []Group{{ID: CustomGroupID}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Settings{Groups: tt.groups}.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, ok want %v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestExportImportReproducesRules(t *testing.T) {
	s := DefaultSettings()
	s.CustomRegexText = "method:^HEAD$\n/tracking/i"
	s.Groups[2].Enabled = true

	data, err := ExportSettings(s, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExportSettings: %v", err)
	}
	got, err := ImportSettings(data)
	if err != nil {
		t.Fatalf("ImportSettings: %v", err)
	}

	before, after := Compile(s), Compile(got)
	if len(before) != len(after) {
		t.Fatalf("compiled %d groups, re-imported %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || len(before[i].Rules) != len(after[i].Rules) {
			t.Fatalf("group %d differs: %s/%d vs %s/%d", i,
				before[i].ID, len(before[i].Rules), after[i].ID, len(after[i].Rules))
		}
		for j := range before[i].Rules {
			b, a := before[i].Rules[j], after[i].Rules[j]
			if b.Target != a.Target || b.Pattern.String() != a.Pattern.String() {
				t.Errorf("group %s rule %d differs", before[i].ID, j)
			}
		}
	}
}

func TestImportSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"missing version", `{"filters":{"applyFilters":true,"groups":[]}}`},
		{"future version", `{"version":99,"filters":{"applyFilters":true,"groups":[]}}`},
		{"missing filters", `{"version":1}`},
		{"duplicate group", `{"version":1,"filters":{"groups":[{"id":"a"},{"id":"a"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportSettings([]byte(tt.data))
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestLoadPresetsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	content := `
id: internal-health
label: Health checks
enabled: true
patterns:
  - /healthz$
  - method:^HEAD$
`
	if err := os.WriteFile(filepath.Join(dir, "health.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	groups, err := LoadPresetsFromDirectory(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 preset, got %d", len(groups))
	}
	g := groups[0]
	if g.ID != "internal-health" || !g.Enabled || g.PatternsText != "/healthz$\nmethod:^HEAD$" {
		t.Errorf("unexpected group: %+v", g)
	}

	merged := DefaultSettings().Merge(groups)
	if _, ok := merged.Group("internal-health"); !ok {
		t.Error("expected merged preset")
	}
	if len(merged.Merge(groups).Groups) != len(merged.Groups) {
		t.Error("expected merge to skip existing ids")
	}
}

func TestLoadPresetsMissingDirectory(t *testing.T) {
	groups, err := LoadPresetsFromDirectory(filepath.Join(t.TempDir(), "nope"))
	if err != nil || groups != nil {
		t.Errorf("expected nil, nil; got %v, %v", groups, err)
	}
}

func TestLoadPresetRequiresID(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("label: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPresetsFromDirectory(dir); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
