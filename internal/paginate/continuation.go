package paginate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ContinuationError reports a continuation marker that cannot be followed.
type ContinuationError struct {
	Query  string
	Reason string
	Marker any
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("paginate %s: continuation: %s (marker %v)", e.Query, e.Reason, e.Marker)
}

// continuation extracts the marker of doc as a flat key/value map. It returns
// nil when the response carries no marker.
func continuation(doc map[string]any, q Query) (map[string]string, error) {
	fail := func(reason string, marker any) error {
		return &ContinuationError{Query: q.Name, Reason: reason, Marker: marker}
	}

	var out map[string]string

	if raw, ok := doc["continue"]; ok {
		obj, ok := raw.(map[string]any)
		if !ok || len(obj) == 0 {
			return nil, fail("continue is not a non-empty object", raw)
		}
		m, err := flatten(obj)
		if err != nil {
			return nil, fail(err.Error(), raw)
		}
		if q.ContinueKey != "" {
			if _, ok := m[q.ContinueKey]; !ok {
				return nil, fail(fmt.Sprintf("missing key %q", q.ContinueKey), raw)
			}
		}
		out = m
	} else if raw, ok := doc["query-continue"]; ok {
		obj, ok := raw.(map[string]any)
		if !ok || len(obj) == 0 {
			return nil, fail("query-continue is not a non-empty object", raw)
		}

		modules := []string{q.Module}
		if q.Module == "" {
			modules = modules[:0]
			for k := range obj {
				modules = append(modules, k)
			}
			sort.Strings(modules)
		}

		out = map[string]string{}
		for _, mod := range modules {
			sub, ok := obj[mod].(map[string]any)
			if !ok {
				return nil, fail(fmt.Sprintf("query-continue has no %q object", mod), raw)
			}
			m, err := flatten(sub)
			if err != nil {
				return nil, fail(err.Error(), raw)
			}
			for k, v := range m {
				out[k] = v
			}
		}
		if len(out) == 0 {
			return nil, fail("query-continue is empty", raw)
		}
	} else {
		return nil, nil
	}
	return out, nil
}

func flatten(obj map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			// Booleans are key presence in the request format.
			if t {
				out[k] = ""
			}
		default:
			return nil, fmt.Errorf("key %q has non-scalar value of type %T", k, v)
		}
	}
	return out, nil
}
