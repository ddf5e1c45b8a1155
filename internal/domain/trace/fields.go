package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

var errNotObject = errors.New("expected a JSON object")

// fields is a decoded JSON object whose known keys are consumed one at a time;
// whatever remains is preserved verbatim.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var f fields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// take decodes key into dst and removes it. A null value is consumed as absent.
// A value of the wrong type is left in place so it survives re-encoding.
func (f fields) take(key string, dst any) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	if isNull(raw) {
		delete(f, key)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	delete(f, key)
	return true
}

// takeID consumes an id that may be a JSON string or number.
func (f fields) takeID(key string) (id string, numeric bool) {
	raw, ok := f[key]
	if !ok {
		return "", false
	}
	if isNull(raw) {
		delete(f, key)
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		delete(f, key)
		return s, false
	}
	text := string(bytes.TrimSpace(raw))
	if isJSONNumber(text) {
		delete(f, key)
		return text, true
	}
	return "", false
}

func (f fields) rest() map[string]json.RawMessage {
	if len(f) == 0 {
		return nil
	}
	return f
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isJSONNumber(s string) bool {
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	return json.Valid([]byte(s))
}

// fieldWriter assembles a JSON object on top of preserved extra fields.
type fieldWriter struct {
	m   map[string]json.RawMessage
	err error
}

func newFieldWriter(extra map[string]json.RawMessage) *fieldWriter {
	m := make(map[string]json.RawMessage, len(extra)+8)
	for k, v := range extra {
		m[k] = v
	}
	return &fieldWriter{m: m}
}

// str writes a non-empty string value.
func (w *fieldWriter) str(key, v string) {
	if v == "" {
		return
	}
	w.value(key, v)
}

func (w *fieldWriter) raw(key string, v json.RawMessage) {
	w.m[key] = v
}

func (w *fieldWriter) value(key string, v any) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		w.err = err
		return
	}
	w.m[key] = data
}
