// Package record models one raw entity returned by the MediaWiki query API
// (a block, a protection entry, a protected title, a user) as a loosely typed
// document, and provides the typed accessors the row transformers use to turn
// it into a strictly typed row.
//
// Numbers are expected as json.Number (the API client decodes with
// UseNumber), but float64, int and numeric strings are accepted as well.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one raw API entity.
type Record map[string]any

// HasFlag reports whether the boolean flag name is set. The API encodes
// boolean properties by key presence (an empty string value), so the value
// itself is never inspected.
func HasFlag(r Record, name string) bool {
	_, ok := r[name]
	return ok
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the string value at key. Numbers are rendered in their
// decimal form. A missing key is a ShapeError.
func (r Record) String(key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", missing(key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", &ShapeError{Field: key, Reason: fmt.Sprintf("want string, got %T", v)}
	}
}

// StringOr returns the string at key, or def when the key is absent.
func (r Record) StringOr(key, def string) (string, error) {
	if !r.Has(key) {
		return def, nil
	}
	return r.String(key)
}

// OptionalString returns nil when key is absent, otherwise a pointer to its
// string value. Used for columns that map absence to SQL NULL.
func (r Record) OptionalString(key string) (*string, error) {
	if !r.Has(key) {
		return nil, nil
	}
	s, err := r.String(key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Int returns the integer at key. Numeric strings are parsed; fractional
// values are rejected.
func (r Record) Int(key string) (int64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, missing(key)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, &ShapeError{Field: key, Reason: err.Error()}
	}
	return n, nil
}

// IntFirst returns the integer at the first key present among keys.
func (r Record) IntFirst(keys ...string) (int64, error) {
	for _, k := range keys {
		if r.Has(k) {
			return r.Int(k)
		}
	}
	return 0, missing(strings.Join(keys, "|"))
}

// Strings returns the list of strings at key. A missing key yields nil.
func (r Record) Strings(key string) ([]string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &ShapeError{Field: key, Reason: fmt.Sprintf("want list, got %T", v)}
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &ShapeError{Field: fmt.Sprintf("%s[%d]", key, i), Reason: fmt.Sprintf("want string, got %T", item)}
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseInt converts an ID-like value (json.Number, float64, int, numeric
// string) into an int64.
func ParseInt(v any) (int64, error) {
	return toInt(v)
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return 0, fmt.Errorf("not an integer: %q", t.String())
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}
