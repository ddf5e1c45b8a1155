// Package insight summarizes the request traffic of a filtered trace.
package insight

import (
	"sort"

	"github.com/Strob0t/TraceScope/internal/domain/trace"
)

// DefaultSlowThresholdMs is used when no threshold is configured.
const DefaultSlowThresholdMs = 1000

// RequestRef identifies a request listed in a summary.
type RequestRef struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Host       string  `json:"host"`
	Status     int     `json:"status,omitempty"`
	DurationMs float64 `json:"durationMs,omitempty"`
}

// HostCount is the number of requests sent to one endpoint host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// Summary describes the traffic of one event list.
type Summary struct {
	Requests           int                `json:"requests"`
	Interactions       map[trace.Kind]int `json:"interactions"`
	Failed             []RequestRef       `json:"failed"`
	Slow               []RequestRef       `json:"slow"`
	Hosts              []HostCount        `json:"hosts"`
	TransferBytes      float64            `json:"transferBytes"`
	SlowThresholdMs    float64            `json:"slowThresholdMs"`
	UnattributedCount  int                `json:"unattributed"`
	EmbeddedAssetCount int                `json:"embeddedAssets"`
}

// Summarize counts requests and interactions and lists failed and slow
// requests. Requests without a status are never failed and requests without
// a duration are never slow.
func Summarize(events []trace.Event, slowThresholdMs float64) Summary {
	if slowThresholdMs <= 0 {
		slowThresholdMs = DefaultSlowThresholdMs
	}
	s := Summary{
		Interactions:    map[trace.Kind]int{},
		Failed:          []RequestRef{},
		Slow:            []RequestRef{},
		Hosts:           []HostCount{},
		SlowThresholdMs: slowThresholdMs,
	}

	hosts := map[string]int{}
	seenInteraction := false
	for _, ev := range events {
		if ev.IsInteraction() {
			s.Interactions[ev.Kind]++
			seenInteraction = true
			continue
		}
		if !ev.IsRequest() {
			continue
		}

		s.Requests++
		if !seenInteraction {
			s.UnattributedCount++
		}
		host := trace.EndpointHost(ev)
		hosts[host]++
		if host == trace.EmbeddedHost {
			s.EmbeddedAssetCount++
		}

		r := ev.Request
		if r == nil {
			continue
		}
		if r.TransferSize != nil {
			s.TransferBytes += *r.TransferSize
		}
		ref := RequestRef{ID: ev.TraceID(), Label: trace.DisplayLabel(ev), Host: host}
		if r.Status != nil {
			ref.Status = *r.Status
		}
		if r.Duration != nil {
			ref.DurationMs = *r.Duration
		}
		if r.Status != nil && *r.Status >= 400 {
			s.Failed = append(s.Failed, ref)
		}
		if r.Duration != nil && *r.Duration >= slowThresholdMs {
			s.Slow = append(s.Slow, ref)
		}
	}

	for h, n := range hosts {
		s.Hosts = append(s.Hosts, HostCount{Host: h, Count: n})
	}
	sort.Slice(s.Hosts, func(i, j int) bool {
		if s.Hosts[i].Count != s.Hosts[j].Count {
			return s.Hosts[i].Count > s.Hosts[j].Count
		}
		return s.Hosts[i].Host < s.Hosts[j].Host
	})
	sort.SliceStable(s.Slow, func(i, j int) bool { return s.Slow[i].DurationMs > s.Slow[j].DurationMs })
	return s
}
