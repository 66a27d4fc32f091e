package attr

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates the typed value variants carried on the wire.
type Kind string

const (
	KindString     Kind = "string"
	KindBool       Kind = "bool"
	KindInt        Kind = "int"
	KindFloat      Kind = "float"
	KindTimestamp  Kind = "timestamp" // nanoseconds since the Unix epoch
	KindTimelineID Kind = "timeline_id"
)

// Value is a typed attribute value. The zero value is the empty string.
type Value struct {
	kind Kind
	str  string
	b    bool
	i    int64
	f    float64
	ts   uint64
}

func String(s string) Value      { return Value{kind: KindString, str: s} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, f: f} }
func Timestamp(ns uint64) Value  { return Value{kind: KindTimestamp, ts: ns} }
func TimelineID(id string) Value { return Value{kind: KindTimelineID, str: id} }

// Kind reports the variant held by the value.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindString
	}
	return v.kind
}

// String renders the value as text, primarily for logs and tests.
func (v Value) String() string {
	switch v.Kind() {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindTimestamp:
		return strconv.FormatUint(v.ts, 10)
	default:
		return v.str
	}
}

// wireValue is the JSON shape used by the ingest protocol. Timestamps are
// encoded as decimal strings so nanosecond values survive JSON number
// handling in other runtimes.
type wireValue struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value in its tagged wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind() {
	case KindBool:
		payload = v.b
	case KindInt:
		payload = v.i
	case KindFloat:
		payload = v.f
	case KindTimestamp:
		payload = strconv.FormatUint(v.ts, 10)
	default:
		payload = v.str
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Kind(), Value: raw})
}

// UnmarshalJSON decodes the tagged wire form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("attr: decode value: %w", err)
	}
	switch w.Type {
	case KindString, KindTimelineID, "":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("attr: decode %s value: %w", w.Type, err)
		}
		if w.Type == KindTimelineID {
			*v = TimelineID(s)
		} else {
			*v = String(s)
		}
	case KindBool:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return fmt.Errorf("attr: decode bool value: %w", err)
		}
		*v = Bool(b)
	case KindInt:
		var i int64
		if err := json.Unmarshal(w.Value, &i); err != nil {
			return fmt.Errorf("attr: decode int value: %w", err)
		}
		*v = Int(i)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return fmt.Errorf("attr: decode float value: %w", err)
		}
		*v = Float(f)
	case KindTimestamp:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("attr: decode timestamp value: %w", err)
		}
		ns, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("attr: decode timestamp value: %w", err)
		}
		*v = Timestamp(ns)
	default:
		return fmt.Errorf("attr: unknown value type %q", w.Type)
	}
	return nil
}
