// Package transform converts raw API records into typed rows of the four
// destination tables. Each transformer validates the fields its table
// requires and reports anything unusable as a *record.ShapeError.
package transform

import (
	"strings"

	"wikisync/internal/record"
)

// InfinityConvention selects how a never-expiring expiry is stored.
type InfinityConvention int

const (
	// InfinityVerbatim stores the literal "infinity".
	InfinityVerbatim InfinityConvention = iota
	// InfinityNull stores SQL NULL.
	InfinityNull
)

// Infinity is the stored token for a never-expiring expiry.
const Infinity = "infinity"

var tsStripper = strings.NewReplacer("-", "", "T", "", ":", "", "Z", "")

// Timestamp converts an API timestamp (2013-01-05T01:16:52Z) to the compact
// 14-digit database form (20130105011652).
func Timestamp(s string) (string, error) {
	out := tsStripper.Replace(s)
	if len(out) != 14 {
		return "", &record.ShapeError{Field: "timestamp", Reason: "malformed timestamp " + quote(s)}
	}
	for i := 0; i < len(out); i++ {
		if out[i] < '0' || out[i] > '9' {
			return "", &record.ShapeError{Field: "timestamp", Reason: "malformed timestamp " + quote(s)}
		}
	}
	return out, nil
}

// IsInfinity reports whether s is the API's never-expires value. Older
// wikis answer "infinity", newer ones "infinite".
func IsInfinity(s string) bool {
	return s == "infinity" || s == "infinite"
}

// Expiry converts an expiry value. A never-expires value becomes "infinity"
// or nil depending on conv; anything else goes through Timestamp.
func Expiry(s string, conv InfinityConvention) (*string, error) {
	if IsInfinity(s) {
		if conv == InfinityNull {
			return nil, nil
		}
		v := Infinity
		return &v, nil
	}
	ts, err := Timestamp(s)
	if err != nil {
		return nil, &record.ShapeError{Field: "expiry", Reason: "malformed expiry " + quote(s)}
	}
	return &ts, nil
}

func quote(s string) string { return `"` + s + `"` }

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
