// Package override implements the non-destructive edit layer over trace events.
// Edits are keyed by internal id and applied as a projection; the raw events
// are never modified.
package override

import "github.com/Strob0t/TraceScope/internal/domain/trace"

// Override is a user edit of one event.
type Override struct {
	Label   *string `json:"label,omitempty"`
	Removed bool    `json:"removed,omitempty"`
}

// isNoop reports whether o changes nothing about original.
func (o Override) isNoop(original trace.Event) bool {
	if o.Removed {
		return false
	}
	return o.Label == nil || *o.Label == original.Label
}

// Table maps internal ids to overrides. No-op overrides are never stored, so
// the table size equals the number of modified events.
//
// Table is not safe for concurrent use; the session owns it.
type Table struct {
	entries map[string]Override
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Override)}
}

// NewTableFrom builds a table from a plain map, dropping entries without a key.
// Entries are taken as-is because the originals are not known here.
func NewTableFrom(m map[string]Override) *Table {
	t := NewTable()
	for id, o := range m {
		if id == "" || (!o.Removed && o.Label == nil) {
			continue
		}
		t.entries[id] = o
	}
	return t
}

// Get returns the override for id.
func (t *Table) Get(id string) (Override, bool) {
	o, ok := t.entries[id]
	return o, ok
}

// SetLabel records a label edit for original. Setting the label back to the
// original value clears the edit.
func (t *Table) SetLabel(original trace.Event, label string) {
	o := t.entries[original.InternalID]
	o.Label = &label
	t.put(original, o)
}

// SetRemoved marks original as removed or restores it.
func (t *Table) SetRemoved(original trace.Event, removed bool) {
	o := t.entries[original.InternalID]
	o.Removed = removed
	t.put(original, o)
}

// Clear drops every edit of the event with the given internal id.
// It reports whether an edit existed.
func (t *Table) Clear(id string) bool {
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

// Reset drops all edits.
func (t *Table) Reset() {
	t.entries = make(map[string]Override)
}

// HasModifications reports whether any edit is active.
func (t *Table) HasModifications() bool {
	return len(t.entries) > 0
}

// Len returns the number of modified events.
func (t *Table) Len() int {
	return len(t.entries)
}

// Snapshot returns a copy of the table contents.
func (t *Table) Snapshot() map[string]Override {
	out := make(map[string]Override, len(t.entries))
	for id, o := range t.entries {
		if o.Label != nil {
			label := *o.Label
			o.Label = &label
		}
		out[id] = o
	}
	return out
}

func (t *Table) put(original trace.Event, o Override) {
	if original.InternalID == "" {
		return
	}
	if o.Label != nil && *o.Label == original.Label {
		o.Label = nil
	}
	if o.isNoop(original) {
		delete(t.entries, original.InternalID)
		return
	}
	t.entries[original.InternalID] = o
}

// Apply projects overrides onto events. Removed events are dropped, relabelled
// events are replaced by a shallow copy carrying the new label, and everything
// else passes through unchanged. Order is preserved.
func Apply(events []trace.Event, overrides map[string]Override) []trace.Event {
	if len(overrides) == 0 {
		return events
	}
	out := make([]trace.Event, 0, len(events))
	for _, ev := range events {
		o, ok := overrides[ev.InternalID]
		if !ok || ev.InternalID == "" {
			out = append(out, ev)
			continue
		}
		if o.Removed {
			continue
		}
		if o.Label != nil && *o.Label != ev.Label {
			ev.Label = *o.Label
		}
		out = append(out, ev)
	}
	return out
}
