package filter

import (
	"strings"

	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

// CustomGroupID identifies the free-form group compiled after all presets.
const CustomGroupID = "custom"

// Group is a named, user-toggleable set of pattern lines.
type Group struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	Enabled      bool   `json:"enabled"`
	PatternsText string `json:"patternsText"`
}

// Settings is the complete filter configuration of a session.
type Settings struct {
	ApplyFilters    bool    `json:"applyFilters"`
	CustomRegexText string  `json:"customRegexText"`
	Groups          []Group `json:"groups"`
}

// CompiledGroup is a group reduced to its valid rules.
type CompiledGroup struct {
	ID    string
	Rules []Rule
}

// Matches reports whether any rule of the group matches ev.
func (g CompiledGroup) Matches(ev trace.Event) bool {
	for _, r := range g.Rules {
		if r.Matches(ev) {
			return true
		}
	}
	return false
}

// Compile returns the enabled groups in declaration order followed by the
// custom group. Groups without a single valid rule are left out.
func Compile(s Settings) []CompiledGroup {
	var out []CompiledGroup
	for _, g := range s.Groups {
		if !g.Enabled {
			continue
		}
		if rules := ParseRules(g.PatternsText); len(rules) > 0 {
			out = append(out, CompiledGroup{ID: g.ID, Rules: rules})
		}
	}
	if rules := ParseRules(s.CustomRegexText); len(rules) > 0 {
		out = append(out, CompiledGroup{ID: CustomGroupID, Rules: rules})
	}
	return out
}

// Group returns the group with the given id.
func (s Settings) Group(id string) (Group, bool) {
	for _, g := range s.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	cp := s
	cp.Groups = append([]Group(nil), s.Groups...)
	return cp
}

// presetLines joins pattern lines into group text.
func presetLines(lines ...string) string {
	return strings.Join(lines, "\n")
}

// DefaultGroups returns the built-in preset groups.
func DefaultGroups() []Group {
	return []Group{
		{
			ID:          "static-assets",
			Label:       "Static assets",
			Description: "Images, stylesheets and icons.",
			Enabled:     true,
			PatternsText: presetLines(
				`\.(png|jpe?g|gif|webp|avif|svg|ico|bmp)(\?|#|$)`,
				`\.css(\?|#|$)`,
				`favicon\.ico`,
			),
		},
		{
			ID:          "analytics",
			Label:       "Analytics & trackers",
			Description: "Third-party analytics, tag managers and ad pixels.",
			Enabled:     true,
			PatternsText: presetLines(
				`google-analytics\.com`,
				`googletagmanager\.com`,
				`doubleclick\.net`,
				`facebook\.(com|net)/tr`,
				`(api|cdn)\.segment\.(io|com)`,
				`mixpanel\.com`,
				`hotjar\.(com|io)`,
				`clarity\.ms`,
				`bat\.bing\.com`,
			),
		},
		{
			ID:          "fonts",
			Label:       "Fonts",
			Description: "Web font files and font CDNs.",
			PatternsText: presetLines(
				`\.(woff2?|ttf|otf|eot)(\?|#|$)`,
				`fonts\.(googleapis|gstatic)\.com`,
			),
		},
		{
			ID:          "media",
			Label:       "Media",
			Description: "Audio and video segments.",
			PatternsText: presetLines(
				`\.(mp4|webm|mp3|ogg|m4s|m3u8|ts)(\?|#|$)`,
			),
		},
		{
			ID:           "source-maps",
			Label:        "Source maps",
			Description:  "Source map downloads made by devtools.",
			PatternsText: presetLines(`\.map(\?|$)`),
		},
		{
			ID:           "preflight",
			Label:        "CORS preflight",
			Description:  "OPTIONS requests sent before cross-origin calls.",
			PatternsText: presetLines(`method:^OPTIONS$`),
		},
		{
			ID:          "dev-server",
			Label:       "Dev server",
			Description: "Hot module reload and dev-server sockets.",
			PatternsText: presetLines(
				`/sockjs-node/`,
				`__webpack_hmr`,
				`hot-update\.(json|js)`,
				`/@vite/`,
				`/_next/webpack-hmr`,
			),
		},
		{
			ID:           "extensions",
			Label:        "Browser extensions",
			Description:  "Requests issued by installed extensions.",
			PatternsText: presetLines(`^(chrome|moz|safari-web)-extension://`),
		},
	}
}

// DefaultSettings returns filtering enabled with the built-in presets.
func DefaultSettings() Settings {
	return Settings{
		ApplyFilters: true,
		Groups:       DefaultGroups(),
	}
}
