// Package trace defines the recorded browser session model: the trace file,
// its events and the helpers every downstream stage shares (identity, hosts, labels).
package trace

import "encoding/json"

// Kind identifies what an event observed.
type Kind string

const (
	KindClick         Kind = "click"
	KindNavigation    Kind = "navigation"
	KindSPANavigation Kind = "spa-navigation"
	KindRequest       Kind = "request"
)

// IsInteraction reports whether events of this kind can cause network activity.
func (k Kind) IsInteraction() bool {
	return k == KindClick || k == KindNavigation || k == KindSPANavigation
}

// Known reports whether the kind is one this package interprets.
func (k Kind) Known() bool {
	return k.IsInteraction() || k == KindRequest
}

// Click holds the fields specific to a click interaction.
type Click struct {
	Selector   string
	Text       string
	TargetHost string
	TargetURL  string
}

// Navigation holds the fields specific to a full-page navigation.
type Navigation struct {
	TransitionType string
	TargetHost     string
	TargetURL      string
}

// SPANavigation holds the fields specific to a client-side route change.
type SPANavigation struct {
	NavigationType string
	PreviousHost   string
	PreviousURL    string
}

// Request holds the fields specific to a network request.
type Request struct {
	Method       string
	Status       *int
	StatusText   string
	Duration     *float64
	Timings      map[string]float64
	TransferSize *float64
	RequestBody  *Body
	ResponseBody *Body
	// OneWay marks fire-and-forget requests that have no response to show.
	OneWay bool
}

// Body is a captured request or response payload.
type Body struct {
	MimeType string
	Encoding string
	Text     string
	Extra    map[string]json.RawMessage
}

// Event is one observed occurrence during a recorded session.
//
// The shared fields live on Event itself; exactly one of the variant pointers is
// set for known kinds, none for unknown kinds. Fields the decoder does not
// interpret are kept in Extra and written back unchanged.
type Event struct {
	Kind       Kind
	ID         string
	InternalID string
	TS         float64
	HasTS      bool
	Label      string
	Host       string
	URL        string
	Path       string

	Click         *Click
	Navigation    *Navigation
	SPANavigation *SPANavigation
	Request       *Request

	Extra map[string]json.RawMessage

	idNumeric bool
	kindKey   string
}

// Timestamp returns the event timestamp in epoch milliseconds and whether it is set.
func (e Event) Timestamp() (float64, bool) {
	return e.TS, e.HasTS
}

// At returns a copy of e with its timestamp set to ts.
func (e Event) At(ts float64) Event {
	e.TS = ts
	e.HasTS = true
	return e
}

// IsInteraction reports whether e is a click, navigation or SPA navigation.
func (e Event) IsInteraction() bool {
	return e.Kind.IsInteraction()
}

// IsRequest reports whether e is a network request.
func (e Event) IsRequest() bool {
	return e.Kind == KindRequest
}

// TraceID returns the identity used to cross-reference the event from markers
// and diagram lines: the internal id, or the log id when none was assigned.
func (e Event) TraceID() string {
	if e.InternalID != "" {
		return e.InternalID
	}
	return e.ID
}

// TargetHost returns the destination host recorded on a click or navigation.
func (e Event) TargetHost() string {
	switch {
	case e.Click != nil:
		return e.Click.TargetHost
	case e.Navigation != nil:
		return e.Navigation.TargetHost
	}
	return ""
}

// TargetURL returns the destination URL recorded on a click or navigation.
func (e Event) TargetURL() string {
	switch {
	case e.Click != nil:
		return e.Click.TargetURL
	case e.Navigation != nil:
		return e.Navigation.TargetURL
	}
	return ""
}

// UnmarshalJSON decodes an event leniently: known fields with an unexpected
// JSON type are preserved in Extra instead of failing the whole trace.
func (e *Event) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}

	var ev Event
	var kind string
	switch {
	case f.take("kind", &kind):
		ev.kindKey = "kind"
	case f.take("type", &kind):
		ev.kindKey = "type"
	}
	ev.Kind = Kind(kind)

	ev.ID, ev.idNumeric = f.takeID("id")
	f.take("internalId", &ev.InternalID)
	ev.HasTS = f.take("ts", &ev.TS)
	f.take("label", &ev.Label)
	f.take("host", &ev.Host)
	f.take("url", &ev.URL)
	f.take("path", &ev.Path)

	switch ev.Kind {
	case KindClick:
		c := &Click{}
		f.take("selector", &c.Selector)
		f.take("text", &c.Text)
		f.take("targetHost", &c.TargetHost)
		f.take("targetUrl", &c.TargetURL)
		ev.Click = c
	case KindNavigation:
		n := &Navigation{}
		f.take("transitionType", &n.TransitionType)
		f.take("targetHost", &n.TargetHost)
		f.take("targetUrl", &n.TargetURL)
		ev.Navigation = n
	case KindSPANavigation:
		s := &SPANavigation{}
		f.take("navigationType", &s.NavigationType)
		f.take("previousHost", &s.PreviousHost)
		f.take("previousUrl", &s.PreviousURL)
		ev.SPANavigation = s
	case KindRequest:
		r := &Request{}
		f.take("method", &r.Method)
		var status int
		if f.take("status", &status) {
			r.Status = &status
		}
		f.take("statusText", &r.StatusText)
		var duration float64
		if f.take("duration", &duration) {
			r.Duration = &duration
		}
		var timings map[string]float64
		if f.take("timings", &timings) {
			r.Timings = timings
		}
		var size float64
		if f.take("transferSize", &size) {
			r.TransferSize = &size
		}
		var reqBody, respBody Body
		if f.take("requestBody", &reqBody) {
			r.RequestBody = &reqBody
		}
		if f.take("responseBody", &respBody) {
			r.ResponseBody = &respBody
		}
		f.take("oneWay", &r.OneWay)
		ev.Request = r
	}

	ev.Extra = f.rest()
	*e = ev
	return nil
}

// MarshalJSON encodes the event with its preserved extra fields.
func (e Event) MarshalJSON() ([]byte, error) {
	out := newFieldWriter(e.Extra)

	kindKey := e.kindKey
	if kindKey == "" {
		kindKey = "kind"
	}
	out.str(kindKey, string(e.Kind))
	if e.idNumeric && isJSONNumber(e.ID) {
		out.raw("id", json.RawMessage(e.ID))
	} else {
		out.str("id", e.ID)
	}
	out.str("internalId", e.InternalID)
	if e.HasTS {
		out.value("ts", e.TS)
	}
	out.str("label", e.Label)
	out.str("host", e.Host)
	out.str("url", e.URL)
	out.str("path", e.Path)

	switch {
	case e.Click != nil:
		out.str("selector", e.Click.Selector)
		out.str("text", e.Click.Text)
		out.str("targetHost", e.Click.TargetHost)
		out.str("targetUrl", e.Click.TargetURL)
	case e.Navigation != nil:
		out.str("transitionType", e.Navigation.TransitionType)
		out.str("targetHost", e.Navigation.TargetHost)
		out.str("targetUrl", e.Navigation.TargetURL)
	case e.SPANavigation != nil:
		out.str("navigationType", e.SPANavigation.NavigationType)
		out.str("previousHost", e.SPANavigation.PreviousHost)
		out.str("previousUrl", e.SPANavigation.PreviousURL)
	case e.Request != nil:
		r := e.Request
		out.str("method", r.Method)
		if r.Status != nil {
			out.value("status", *r.Status)
		}
		out.str("statusText", r.StatusText)
		if r.Duration != nil {
			out.value("duration", *r.Duration)
		}
		if r.Timings != nil {
			out.value("timings", r.Timings)
		}
		if r.TransferSize != nil {
			out.value("transferSize", *r.TransferSize)
		}
		if r.RequestBody != nil {
			out.value("requestBody", r.RequestBody)
		}
		if r.ResponseBody != nil {
			out.value("responseBody", r.ResponseBody)
		}
		if r.OneWay {
			out.value("oneWay", true)
		}
	}

	if out.err != nil {
		return nil, out.err
	}
	return json.Marshal(out.m)
}

// UnmarshalJSON decodes a body, keeping unknown fields.
func (b *Body) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var body Body
	f.take("mimeType", &body.MimeType)
	f.take("encoding", &body.Encoding)
	f.take("text", &body.Text)
	body.Extra = f.rest()
	*b = body
	return nil
}

// MarshalJSON encodes a body with its preserved extra fields.
func (b Body) MarshalJSON() ([]byte, error) {
	out := newFieldWriter(b.Extra)
	out.str("mimeType", b.MimeType)
	out.str("encoding", b.Encoding)
	out.str("text", b.Text)
	if out.err != nil {
		return nil, out.err
	}
	return json.Marshal(out.m)
}
