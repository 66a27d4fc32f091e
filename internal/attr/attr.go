package attr

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyValue is one ordered attribute pair as handed to the emitter.
type KeyValue struct {
	Key   string
	Value Value
}

// ParseKeyEqValue parses a "key=value" configuration string into a typed
// attribute pair. The value side follows the backend's typed grammar:
// bool literals and numbers become typed values, everything else is a
// string. Surrounding single or double quotes force a string and are
// stripped.
func ParseKeyEqValue(s string) (KeyValue, error) {
	key, raw, found := strings.Cut(s, "=")
	if !found {
		return KeyValue{}, fmt.Errorf("attr: %q is not of the form key=value", s)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return KeyValue{}, fmt.Errorf("attr: empty key in %q", s)
	}
	return KeyValue{Key: key, Value: ParseValue(raw)}, nil
}

// ParseValue interprets a raw string according to the typed-attribute
// grammar. It never fails; unrecognized input is a string value.
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)

	if len(trimmed) >= 2 {
		if (trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') ||
			(trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') {
			return String(trimmed[1 : len(trimmed)-1])
		}
	}

	switch trimmed {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}

	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Float(f)
	}

	return String(trimmed)
}
